package main

import (
	"fmt"
	"io"
	"time"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/dispatchlab/rtdcheck/internal/metrics"
	"github.com/dispatchlab/rtdcheck/internal/runner/tasks"
	"github.com/dispatchlab/rtdcheck/internal/scenario"
)

var (
	runSuite     string
	runOnly      []string
	runReportDir string
	runDriver    string
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run the scenario suite once",
	Long: `Run executes every enabled scenario, prints a summary, writes the Markdown
and HTML reports, records the run in the history database and exits 1 when any
scenario failed.`,
	RunE: runRun,
}

func init() {
	runCmd.Flags().StringVar(&runSuite, "suite", "", "suite YAML file (default: suite from config, else the built-in regression suite)")
	runCmd.Flags().StringSliceVar(&runOnly, "only", nil, "run only the named scenarios, even when disabled")
	runCmd.Flags().StringVar(&runReportDir, "report", "", "directory for report.md and report.html (default: artifacts dir)")
	runCmd.Flags().StringVar(&runDriver, "driver", "", "override browser.driver (playwright or chromedp)")
}

func runRun(cmd *cobra.Command, args []string) error {
	loader, logger, err := loadConfig()
	if err != nil {
		return err
	}
	cfg := loader.Config()
	if runSuite != "" {
		cfg.Suite = runSuite
	}
	if runDriver != "" {
		cfg.Browser.Driver = runDriver
	}
	if runReportDir == "" {
		runReportDir = cfg.Artifacts.Dir
	}

	suite, err := scenario.Load(cfg.Suite)
	if err != nil {
		return err
	}
	if suite, err = suite.Only(runOnly...); err != nil {
		return err
	}

	driver, err := newDriver(cfg.Browser.Driver, logger)
	if err != nil {
		return err
	}
	rec, err := openHistory(cmd, cfg)
	if err != nil {
		return err
	}
	defer rec.Close()

	var m *metrics.Collector
	if cfg.Metrics.Enabled {
		m = metrics.New()
	}
	p := &tasks.Pipeline{
		Config:    loader.Config,
		Driver:    driver,
		Metrics:   m,
		History:   rec,
		Logger:    logger,
		Suite:     suite,
		ReportDir: runReportDir,
	}
	rep, err := p.Execute(cmd.Context(), "manual")
	if rep != nil {
		printSummary(cmd.OutOrStdout(), rep)
	}
	if err != nil {
		return err
	}
	if !rep.OK() {
		return errFailures
	}
	return nil
}

var (
	passLabel = color.New(color.FgGreen, color.Bold).SprintFunc()
	failLabel = color.New(color.FgRed, color.Bold).SprintFunc()
	skipLabel = color.New(color.FgYellow).SprintFunc()
	dim       = color.New(color.Faint).SprintFunc()
)

func printSummary(w io.Writer, rep *scenario.Report) {
	fmt.Fprintf(w, "\n%s  %s\n\n", rep.Suite, dim(rep.RunID))
	for _, o := range rep.Outcomes {
		var label string
		switch {
		case o.Passed():
			label = passLabel("PASS")
		case o.Failed():
			label = failLabel("FAIL")
		default:
			label = skipLabel("SKIP")
		}
		line := fmt.Sprintf("  %s  %-32s %s", label, o.Name, dim(o.Duration.Round(time.Millisecond)))
		if o.Pages > 0 || o.APIValues > 0 {
			line += dim(fmt.Sprintf("  %d pages, %d api / %d ui values", o.Pages, o.APIValues, o.UIValues))
		}
		fmt.Fprintln(w, line)
		if o.Failed() {
			fmt.Fprintf(w, "        %s\n", failLabel(o.Error()))
			if o.Artifacts != "" {
				fmt.Fprintf(w, "        %s\n", dim("artifacts: "+o.Artifacts))
			}
		}
	}

	passed, failed, skipped := rep.Counts()
	verdict := passLabel("PASSED")
	if failed > 0 {
		verdict = failLabel("FAILED")
	}
	fmt.Fprintf(w, "\n%s  %d passed, %d failed, %d skipped in %s\n",
		verdict, passed, failed, skipped, rep.Duration().Round(time.Millisecond))
}
