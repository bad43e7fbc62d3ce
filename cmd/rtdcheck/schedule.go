package main

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/dispatchlab/rtdcheck/internal/config"
	"github.com/dispatchlab/rtdcheck/internal/metrics"
	"github.com/dispatchlab/rtdcheck/internal/runner"
	"github.com/dispatchlab/rtdcheck/internal/runner/tasks"
	"github.com/dispatchlab/rtdcheck/internal/status"
)

var (
	scheduleCron   string
	scheduleListen string
	scheduleNow    bool
)

var scheduleCmd = &cobra.Command{
	Use:   "schedule",
	Short: "Run the suite on a cron schedule and serve its status",
	Long: `Schedule runs the suite on schedule.cron (six fields, seconds first) and
serves /healthz, /metrics and /runs on metrics.listen. Editing the config file
reschedules without a restart. SIGINT or SIGTERM waits for a running suite to
finish before exiting.`,
	RunE: runSchedule,
}

func init() {
	scheduleCmd.Flags().StringVar(&scheduleCron, "cron", "", "override schedule.cron")
	scheduleCmd.Flags().StringVar(&scheduleListen, "listen", "", "override metrics.listen for the status server")
	scheduleCmd.Flags().BoolVar(&scheduleNow, "now", false, "also run once immediately")
}

func runSchedule(cmd *cobra.Command, args []string) error {
	loader, logger, err := loadConfig()
	if err != nil {
		return err
	}
	cfg := loader.Config()
	if scheduleCron != "" {
		cfg.Schedule.Cron = scheduleCron
	}
	if scheduleListen != "" {
		cfg.Metrics.Listen = scheduleListen
	}
	// the --cron flag keeps winning over reloaded files
	current := func() *config.Config {
		c := *loader.Config()
		if scheduleCron != "" {
			c.Schedule.Cron = scheduleCron
		}
		return &c
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

	m := metrics.New()
	task := tasks.NewSuiteTask(&tasks.Pipeline{
		Config:    current,
		Driver:    driver,
		Metrics:   m,
		History:   rec,
		Logger:    logger,
		ReportDir: cfg.Artifacts.Dir,
	})
	registry := runner.NewTaskRegistry()
	registry.Register(task)
	r := runner.NewRunner(registry, logger)

	ctx := cmd.Context()
	trigger := func() error {
		go func() {
			_ = r.RunNow(context.WithoutCancel(ctx), tasks.SuiteTaskName)
		}()
		return nil
	}

	if configPath != "" {
		err := loader.Watch(func(c *config.Config, err error) {
			if err != nil {
				logger.Error("config reload rejected, keeping the previous one", zap.Error(err))
				return
			}
			logger.Info("config reloaded", zap.String("cron", current().Schedule.Cron))
			if err := r.Reschedule(tasks.SuiteTaskName); err != nil {
				logger.Error("reschedule failed", zap.Error(err))
			}
		})
		if err != nil {
			return err
		}
	}

	srv := status.New(cfg.Metrics.Listen, status.Options{
		Task:    task,
		History: rec,
		Metrics: m,
		Next:    func() (time.Time, bool) { return r.Next(tasks.SuiteTaskName) },
		Trigger: trigger,
		Logger:  logger,
	})
	srvErr := make(chan error, 1)
	go func() { srvErr <- srv.ListenAndServe() }()

	if scheduleNow {
		_ = trigger()
	}

	runErr := r.Start(ctx)

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Warn("status server shutdown", zap.Error(err))
	}
	if err := <-srvErr; err != nil {
		return fmt.Errorf("status server: %w", err)
	}
	if runErr != nil && ctx.Err() == nil {
		return runErr
	}
	return nil
}
