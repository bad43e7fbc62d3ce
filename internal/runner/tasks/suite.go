package tasks

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"github.com/dispatchlab/rtdcheck/internal/browser"
	"github.com/dispatchlab/rtdcheck/internal/config"
	"github.com/dispatchlab/rtdcheck/internal/history"
	"github.com/dispatchlab/rtdcheck/internal/metrics"
	"github.com/dispatchlab/rtdcheck/internal/report"
	"github.com/dispatchlab/rtdcheck/internal/runner"
	"github.com/dispatchlab/rtdcheck/internal/scenario"
)

// SuiteTaskName is the registry name of the scheduled suite run
const SuiteTaskName = "rtd-suite"

// ErrAlreadyRunning is returned when a run is triggered while the previous one is still going
var ErrAlreadyRunning = errors.New("suite run already in progress")

// Pipeline is one complete suite execution: launch, run, report, record
type Pipeline struct {
	Config  func() *config.Config
	Driver  browser.Driver
	Metrics *metrics.Collector
	History *history.Recorder
	Logger  *zap.Logger
	// Suite overrides the suite named in the configuration
	Suite *scenario.Suite
	// ReportDir receives <run id>/report.{md,html} when set
	ReportDir string
	// RunnerOptions are appended to the scenario runner's options
	RunnerOptions []scenario.Option
}

// Execute runs the suite once. The error covers setup and bookkeeping problems;
// scenario failures are only reflected in the report.
func (p *Pipeline) Execute(ctx context.Context, trigger string) (*scenario.Report, error) {
	cfg := p.Config()
	logger := p.logger()

	suite := p.Suite
	if suite == nil {
		var err error
		if suite, err = scenario.Load(cfg.Suite); err != nil {
			return nil, err
		}
	}

	session, err := browser.Open(ctx, p.Driver, BrowserOptions(cfg.Browser),
		browser.WithArtifacts(browser.Artifacts{
			Dir:         cfg.Artifacts.Dir,
			Videos:      cfg.Artifacts.Videos,
			Traces:      cfg.Artifacts.Traces,
			Screenshots: cfg.Artifacts.Screenshots,
		}),
		browser.WithSessionLogger(logger.Named("browser")))
	if err != nil {
		return nil, err
	}

	opts := append([]scenario.Option{
		scenario.WithLogger(logger.Named("scenario")),
		scenario.WithMetrics(p.Metrics),
		scenario.WithTrigger(trigger),
	}, p.RunnerOptions...)
	rep := scenario.NewRunner(cfg, session, opts...).Run(ctx, suite)

	var errs []error
	if err := session.Close(); err != nil {
		errs = append(errs, fmt.Errorf("close browser: %w", err))
	}
	if p.ReportDir != "" {
		md, page, err := report.Write(p.ReportDir, rep)
		if err != nil {
			errs = append(errs, err)
		} else {
			logger.Info("report written", zap.String("markdown", md), zap.String("html", page))
		}
	}
	if p.History != nil {
		// a cancelled run is still worth recording
		hctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 10*time.Second)
		err := p.History.Record(hctx, rep.History())
		cancel()
		if err != nil {
			errs = append(errs, err)
		}
	}
	if cfg.Metrics.Textfile != "" && p.Metrics != nil {
		if err := p.Metrics.WriteTextfile(cfg.Metrics.Textfile); err != nil {
			errs = append(errs, fmt.Errorf("write metrics textfile: %w", err))
		}
	}

	passed, failed, skipped := rep.Counts()
	logger.Info("suite finished",
		zap.String("run_id", rep.RunID),
		zap.String("suite", rep.Suite),
		zap.String("trigger", trigger),
		zap.Int("passed", passed),
		zap.Int("failed", failed),
		zap.Int("skipped", skipped),
		zap.Duration("duration", rep.Duration()))
	return rep, errors.Join(errs...)
}

func (p *Pipeline) logger() *zap.Logger {
	if p.Logger == nil {
		return zap.NewNop()
	}
	return p.Logger
}

// BrowserOptions maps the browser section onto driver launch options
func BrowserOptions(c config.BrowserConfig) browser.Options {
	return browser.Options{
		Headless:       c.Headless,
		SlowMo:         c.SlowMo,
		ActionTimeout:  c.ActionTimeout,
		ViewportWidth:  c.ViewportWidth,
		ViewportHeight: c.ViewportHeight,
		Install:        c.Install,
	}
}

// SuiteTask runs the pipeline on the configured cron schedule
type SuiteTask struct {
	pipeline *Pipeline
	running  atomic.Bool

	mu      sync.RWMutex
	last    *scenario.Report
	lastErr error
}

// NewSuiteTask wraps p for the task runner
func NewSuiteTask(p *Pipeline) *SuiteTask {
	return &SuiteTask{pipeline: p}
}

var _ runner.Task = (*SuiteTask)(nil)

func (t *SuiteTask) Name() string { return SuiteTaskName }

// Schedule follows the live configuration so a reload can reschedule the task
func (t *SuiteTask) Schedule() string { return t.pipeline.Config().Schedule.Cron }

func (t *SuiteTask) Timeout() time.Duration {
	if d := t.pipeline.Config().Schedule.Timeout; d > 0 {
		return d
	}
	return 30 * time.Minute
}

// Run executes one scheduled suite run. Overlapping runs are refused.
func (t *SuiteTask) Run(ctx context.Context) error {
	if !t.running.CompareAndSwap(false, true) {
		t.pipeline.logger().Warn("skipping scheduled run", zap.Error(ErrAlreadyRunning))
		return ErrAlreadyRunning
	}
	defer t.running.Store(false)

	rep, err := t.pipeline.Execute(ctx, "schedule")

	t.mu.Lock()
	if rep != nil {
		t.last = rep
	}
	t.lastErr = err
	t.mu.Unlock()

	if err != nil {
		return err
	}
	if _, failed, _ := rep.Counts(); failed > 0 {
		return fmt.Errorf("%d of %d scenarios failed", failed, len(rep.Outcomes))
	}
	return nil
}

// Running reports whether a run is in progress
func (t *SuiteTask) Running() bool { return t.running.Load() }

// Last returns the most recent report and the error of the most recent run
func (t *SuiteTask) Last() (*scenario.Report, error) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.last, t.lastErr
}
