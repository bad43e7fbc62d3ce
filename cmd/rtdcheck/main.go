package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/dispatchlab/rtdcheck/internal/browser"
	"github.com/dispatchlab/rtdcheck/internal/browser/cdpdriver"
	"github.com/dispatchlab/rtdcheck/internal/browser/pwdriver"
	"github.com/dispatchlab/rtdcheck/internal/config"
	"github.com/dispatchlab/rtdcheck/internal/history"
	"github.com/dispatchlab/rtdcheck/internal/logging"
	"github.com/dispatchlab/rtdcheck/internal/version"
)

// errFailures makes the process exit 1 without printing anything more
var errFailures = errors.New("scenarios failed")

var (
	configPath string
	logLevel   string
)

var rootCmd = &cobra.Command{
	Use:   "rtdcheck",
	Short: "Cross-check the Ready To Dispatch table against its data API",
	Long: `rtdcheck drives a browser through the Ready To Dispatch page, applies
filters, walks every table page and checks that the rendered values and the
intercepted API responses both satisfy the filter.`,
	Version:       version.Get().String(),
	SilenceUsage:  true,
	SilenceErrors: true,
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "YAML config file (default: defaults plus RTDCHECK_* environment)")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "override logging.level")

	rootCmd.AddCommand(runCmd)
	rootCmd.AddCommand(scheduleCmd)
	rootCmd.AddCommand(validateCmd)
	rootCmd.AddCommand(historyCmd)
	rootCmd.AddCommand(versionCmd)
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	err := rootCmd.ExecuteContext(ctx)
	stop()
	logging.Sync()
	switch {
	case err == nil:
	case errors.Is(err, errFailures):
		os.Exit(1)
	default:
		fmt.Fprintln(os.Stderr, "rtdcheck:", err)
		os.Exit(2)
	}
}

// loadConfig reads the configuration and starts logging with it
func loadConfig() (*config.Loader, *zap.Logger, error) {
	loader, err := config.NewLoader(configPath)
	if err != nil {
		return nil, nil, err
	}
	cfg := loader.Config()
	if logLevel != "" {
		cfg.Logging.Level = logLevel
	}
	logger := logging.Initialize(cfg.Logging, os.Stderr)
	for _, w := range cfg.Warnings() {
		logger.Warn(w)
	}
	return loader, logger, nil
}

func newDriver(name string, logger *zap.Logger) (browser.Driver, error) {
	switch name {
	case "playwright", "":
		return pwdriver.New(logger), nil
	case "chromedp":
		return cdpdriver.New(logger), nil
	default:
		return nil, fmt.Errorf("unknown browser driver %q", name)
	}
}

// openHistory returns nil when history is disabled
func openHistory(cmd *cobra.Command, cfg *config.Config) (*history.Recorder, error) {
	if !cfg.History.Enabled {
		return nil, nil
	}
	return history.Open(cmd.Context(), cfg.History.Path)
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Fprintln(cmd.OutOrStdout(), version.Get().Full())
	},
}
