package runner

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"
)

// Runner manages and executes scheduled suite runs
type Runner struct {
	cron     *cron.Cron
	registry *TaskRegistry
	logger   *zap.Logger
	wg       sync.WaitGroup

	mu      sync.Mutex
	ctx     context.Context
	entries map[string]cron.EntryID
	specs   map[string]string
}

// NewRunner creates a new task runner
func NewRunner(registry *TaskRegistry, logger *zap.Logger) *Runner {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Runner{
		cron:     cron.New(cron.WithSeconds()),
		registry: registry,
		logger:   logger.Named("runner"),
		entries:  make(map[string]cron.EntryID),
		specs:    make(map[string]string),
	}
}

// Start schedules every registered task and blocks until ctx ends or the process
// receives SIGINT/SIGTERM
func (r *Runner) Start(ctx context.Context) error {
	r.logger.Info("starting task runner")

	r.mu.Lock()
	r.ctx = ctx
	r.mu.Unlock()

	for _, task := range r.registry.All() {
		if err := r.schedule(task); err != nil {
			return err
		}
	}

	r.cron.Start()
	r.logger.Info("task runner started", zap.Int("tasks", len(r.registry.All())))

	return r.waitForShutdown(ctx)
}

func (r *Runner) schedule(task Task) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	spec := task.Schedule()
	id, err := r.cron.AddFunc(spec, func() {
		r.executeTask(r.runContext(), task)
	})
	if err != nil {
		return fmt.Errorf("failed to schedule task %s: %w", task.Name(), err)
	}
	r.entries[task.Name()] = id
	r.specs[task.Name()] = spec
	r.logger.Info("task scheduled",
		zap.String("task", task.Name()),
		zap.String("schedule", spec),
		zap.Time("next", next(r.cron.Entry(id))))
	return nil
}

// Reschedule picks up a changed Schedule() for the named task. The old entry stays
// in place when the new spec does not parse.
func (r *Runner) Reschedule(name string) error {
	task, ok := r.registry.Get(name)
	if !ok {
		return fmt.Errorf("unknown task %s", name)
	}
	spec := task.Schedule()

	r.mu.Lock()
	old, scheduled := r.entries[name]
	same := r.specs[name] == spec
	r.mu.Unlock()
	if scheduled && same {
		return nil
	}
	if _, err := cron.NewParser(cronFields).Parse(spec); err != nil {
		return fmt.Errorf("invalid schedule %q for %s: %w", spec, name, err)
	}
	if scheduled {
		r.cron.Remove(old)
	}
	return r.schedule(task)
}

// cronFields matches cron.WithSeconds
const cronFields = cron.Second | cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow | cron.Descriptor

// Next reports when the named task runs next
func (r *Runner) Next(name string) (time.Time, bool) {
	r.mu.Lock()
	id, ok := r.entries[name]
	r.mu.Unlock()
	if !ok {
		return time.Time{}, false
	}
	return next(r.cron.Entry(id)), true
}

// next works before the scheduler has started, when Entry.Next is still zero
func next(e cron.Entry) time.Time {
	if !e.Next.IsZero() || e.Schedule == nil {
		return e.Next
	}
	return e.Schedule.Next(time.Now())
}

// RunNow executes the named task immediately, outside its schedule
func (r *Runner) RunNow(ctx context.Context, name string) error {
	task, ok := r.registry.Get(name)
	if !ok {
		return fmt.Errorf("unknown task %s", name)
	}
	return r.executeTask(ctx, task)
}

func (r *Runner) runContext() context.Context {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.ctx == nil {
		return context.Background()
	}
	return r.ctx
}

// executeTask runs a single task with timeout and error handling
func (r *Runner) executeTask(ctx context.Context, task Task) error {
	r.wg.Add(1)
	defer r.wg.Done()

	taskCtx, cancel := context.WithTimeout(ctx, task.Timeout())
	defer cancel()

	log := r.logger.With(zap.String("task", task.Name()))
	log.Info("executing task")

	start := time.Now()
	err := task.Run(taskCtx)
	duration := time.Since(start)

	if err != nil {
		log.Error("task failed", zap.Duration("duration", duration), zap.Error(err))
	} else {
		log.Info("task completed", zap.Duration("duration", duration))
	}
	return err
}

// Stop gracefully shuts down the runner
func (r *Runner) Stop() {
	r.logger.Info("stopping task runner")

	// Stop accepting new tasks
	ctx := r.cron.Stop()

	// Wait for running tasks to complete
	r.wg.Wait()
	<-ctx.Done()

	r.logger.Info("task runner stopped")
}

// waitForShutdown waits for termination signals
func (r *Runner) waitForShutdown(ctx context.Context) error {
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(sigChan)

	select {
	case sig := <-sigChan:
		r.logger.Info("received signal", zap.String("signal", sig.String()))
		r.Stop()
		return nil
	case <-ctx.Done():
		r.logger.Info("context cancelled")
		r.Stop()
		return ctx.Err()
	}
}
