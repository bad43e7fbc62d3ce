package scenario

import (
	"time"

	"github.com/dispatchlab/rtdcheck/internal/history"
)

// Outcome is what one scenario produced
type Outcome struct {
	Name      string
	Kind      Kind
	Filter    string
	Status    string
	Err       error
	Started   time.Time
	Duration  time.Duration
	Pages     int
	APIValues int
	UIValues  int
	Skipped   int
	Artifacts string
}

func (o Outcome) Passed() bool { return o.Status == history.StatusPassed }
func (o Outcome) Failed() bool { return o.Status == history.StatusFailed }

// Error is the failure message, or ""
func (o Outcome) Error() string {
	if o.Err == nil {
		return ""
	}
	return o.Err.Error()
}

// Report is the result of one suite run
type Report struct {
	RunID    string
	Suite    string
	Trigger  string
	Started  time.Time
	Finished time.Time
	Outcomes []Outcome
}

// Counts tallies outcomes by status
func (r *Report) Counts() (passed, failed, skipped int) {
	for _, o := range r.Outcomes {
		switch o.Status {
		case history.StatusPassed:
			passed++
		case history.StatusFailed:
			failed++
		default:
			skipped++
		}
	}
	return passed, failed, skipped
}

// OK reports whether no scenario failed
func (r *Report) OK() bool {
	_, failed, _ := r.Counts()
	return failed == 0
}

func (r *Report) Duration() time.Duration { return r.Finished.Sub(r.Started) }

// History converts the report for the run-history store
func (r *Report) History() history.Run {
	passed, failed, skipped := r.Counts()
	run := history.Run{
		ID:         r.RunID,
		Trigger:    r.Trigger,
		StartedAt:  r.Started,
		FinishedAt: r.Finished,
		Passed:     passed,
		Failed:     failed,
		Skipped:    skipped,
		Outcomes:   make([]history.Outcome, len(r.Outcomes)),
	}
	for i, o := range r.Outcomes {
		run.Outcomes[i] = history.Outcome{
			RunID:      r.RunID,
			Name:       o.Name,
			Kind:       string(o.Kind),
			Status:     o.Status,
			Error:      o.Error(),
			DurationMS: o.Duration.Milliseconds(),
			Pages:      o.Pages,
			APIValues:  o.APIValues,
			UIValues:   o.UIValues,
		}
	}
	return run
}
