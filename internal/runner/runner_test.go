package runner

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

type fakeTask struct {
	name    string
	timeout time.Duration
	err     error
	ran     chan struct{}
	calls   atomic.Int32

	mu   sync.Mutex
	spec string
}

func newFakeTask(name, spec string) *fakeTask {
	return &fakeTask{name: name, spec: spec, timeout: time.Second, ran: make(chan struct{}, 16)}
}

func (f *fakeTask) Name() string { return f.name }

func (f *fakeTask) Schedule() string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.spec
}

func (f *fakeTask) setSchedule(spec string) {
	f.mu.Lock()
	f.spec = spec
	f.mu.Unlock()
}

func (f *fakeTask) Timeout() time.Duration { return f.timeout }

func (f *fakeTask) Run(ctx context.Context) error {
	f.calls.Add(1)
	select {
	case f.ran <- struct{}{}:
	default:
	}
	if f.timeout < 10*time.Millisecond {
		<-ctx.Done()
		return ctx.Err()
	}
	return f.err
}

func TestTaskRegistry(t *testing.T) {
	reg := NewTaskRegistry()
	reg.Register(newFakeTask("b", "@every 1h"))
	reg.Register(newFakeTask("a", "@every 1h"))

	task, ok := reg.Get("a")
	require.True(t, ok)
	assert.Equal(t, "a", task.Name())
	_, ok = reg.Get("missing")
	assert.False(t, ok)

	all := reg.All()
	require.Len(t, all, 2)
	assert.Equal(t, "a", all[0].Name())
	assert.Equal(t, "b", all[1].Name())
}

func TestStartRunsScheduledTasks(t *testing.T) {
	task := newFakeTask("suite", "* * * * * *")
	reg := NewTaskRegistry()
	reg.Register(task)
	r := NewRunner(reg, zap.NewNop())

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- r.Start(ctx) }()

	select {
	case <-task.ran:
	case <-time.After(3 * time.Second):
		t.Fatal("task never ran")
	}
	cancel()
	assert.ErrorIs(t, <-done, context.Canceled)
}

func TestStartRejectsBadSchedule(t *testing.T) {
	reg := NewTaskRegistry()
	reg.Register(newFakeTask("suite", "every tuesday"))
	r := NewRunner(reg, nil)

	err := r.Start(context.Background())
	assert.ErrorContains(t, err, "failed to schedule task suite")
	r.cron.Stop()
}

func TestRunNow(t *testing.T) {
	core, logs := observer.New(zap.InfoLevel)
	task := newFakeTask("suite", "@every 1h")
	task.err = errors.New("2 scenarios failed")
	reg := NewTaskRegistry()
	reg.Register(task)
	r := NewRunner(reg, zap.New(core))

	err := r.RunNow(context.Background(), "suite")
	assert.EqualError(t, err, "2 scenarios failed")
	assert.Equal(t, int32(1), task.calls.Load())
	assert.Equal(t, 1, logs.FilterMessage("task failed").Len())

	assert.Error(t, r.RunNow(context.Background(), "nope"))
}

func TestRunNowTimeout(t *testing.T) {
	task := newFakeTask("slow", "@every 1h")
	task.timeout = time.Millisecond
	reg := NewTaskRegistry()
	reg.Register(task)
	r := NewRunner(reg, nil)

	err := r.RunNow(context.Background(), "slow")
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestReschedule(t *testing.T) {
	task := newFakeTask("suite", "0 0 6 * * *")
	reg := NewTaskRegistry()
	reg.Register(task)
	r := NewRunner(reg, nil)
	require.NoError(t, r.schedule(task))

	before, ok := r.Next("suite")
	require.True(t, ok)

	require.NoError(t, r.Reschedule("suite"), "an unchanged spec is a no-op")

	task.setSchedule("0 30 7 * * *")
	require.NoError(t, r.Reschedule("suite"))
	after, _ := r.Next("suite")
	assert.NotEqual(t, before, after)
	assert.Len(t, r.cron.Entries(), 1)

	task.setSchedule("not a spec")
	assert.ErrorContains(t, r.Reschedule("suite"), "invalid schedule")
	assert.Len(t, r.cron.Entries(), 1, "the previous entry survives")

	assert.Error(t, r.Reschedule("missing"))
	_, ok = r.Next("missing")
	assert.False(t, ok)
}
