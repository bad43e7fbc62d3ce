package main

import (
	"errors"
	"fmt"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"
	"github.com/xeonx/timeago"

	"github.com/dispatchlab/rtdcheck/internal/history"
)

var (
	historyLimit int
	historyRun   string
)

var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "List recent suite runs",
	RunE: func(cmd *cobra.Command, args []string) error {
		loader, _, err := loadConfig()
		if err != nil {
			return err
		}
		cfg := loader.Config()
		if !cfg.History.Enabled {
			return errors.New("history is disabled (history.enabled: false)")
		}
		rec, err := history.Open(cmd.Context(), cfg.History.Path)
		if err != nil {
			return err
		}
		defer rec.Close()

		if historyRun != "" {
			run, err := rec.Get(cmd.Context(), historyRun)
			if err != nil {
				return err
			}
			printRun(cmd, *run, time.Now())
			return nil
		}
		runs, err := rec.Recent(cmd.Context(), historyLimit)
		if err != nil {
			return err
		}
		printRuns(cmd, runs, time.Now())
		return nil
	},
}

func init() {
	historyCmd.Flags().IntVarP(&historyLimit, "limit", "n", 20, "number of runs to list")
	historyCmd.Flags().StringVar(&historyRun, "run", "", "show the outcomes of one run")
}

func ago(t, now time.Time) string {
	cfg := timeago.English
	cfg.Max = 30 * 24 * time.Hour
	return cfg.FormatReference(t, now)
}

func printRuns(cmd *cobra.Command, runs []history.Run, now time.Time) {
	if len(runs) == 0 {
		fmt.Fprintln(cmd.OutOrStdout(), "no runs recorded")
		return
	}
	w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "RUN\tSTARTED\tTRIGGER\tRESULT\tPASSED\tFAILED\tSKIPPED\tDURATION")
	for _, r := range runs {
		result := passLabel("ok")
		if !r.OK() {
			result = failLabel("fail")
		}
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%d\t%d\t%d\t%s\n",
			r.ID, ago(r.StartedAt, now), r.Trigger, result, r.Passed, r.Failed, r.Skipped, r.Duration().Round(time.Second))
	}
	w.Flush()
}

func printRun(cmd *cobra.Command, run history.Run, now time.Time) {
	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "%s  %s (%s), %d passed, %d failed, %d skipped\n\n",
		run.ID, ago(run.StartedAt, now), run.Trigger, run.Passed, run.Failed, run.Skipped)
	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "SCENARIO\tKIND\tSTATUS\tPAGES\tAPI\tUI\tERROR")
	for _, o := range run.Outcomes {
		fmt.Fprintf(w, "%s\t%s\t%s\t%d\t%d\t%d\t%s\n", o.Name, o.Kind, o.Status, o.Pages, o.APIValues, o.UIValues, o.Error)
	}
	w.Flush()
}
