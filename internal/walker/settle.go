package walker

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/dispatchlab/rtdcheck/internal/browser"
	"github.com/dispatchlab/rtdcheck/internal/faults"
	"github.com/dispatchlab/rtdcheck/internal/pagination"
)

// Settler waits, after the response for page has arrived, until the rendered
// table belongs to that page
type Settler interface {
	Settle(ctx context.Context, page int) error
}

// FixedDelay sleeps for Delay. It is an approximation: a slow render can still
// outlast it.
type FixedDelay struct {
	Delay time.Duration
}

func (f FixedDelay) Settle(ctx context.Context, _ int) error {
	if f.Delay <= 0 {
		return nil
	}
	t := time.NewTimer(f.Delay)
	defer t.Stop()
	select {
	case <-t.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// SummaryAdvanced polls the pagination summary until its first row index is the
// first row of page, which the table only shows once the page has rendered.
type SummaryAdvanced struct {
	Page     browser.Page
	Summary  string
	PageSize int
	Timeout  time.Duration
	Interval time.Duration
}

func (s SummaryAdvanced) Settle(ctx context.Context, page int) error {
	want := pagination.FirstRowOf(page, s.PageSize)
	interval := s.Interval
	if interval <= 0 {
		interval = 100 * time.Millisecond
	}
	deadline := time.Now().Add(s.Timeout)
	loc := s.Page.Locator(s.Summary)
	last := ""
	for {
		text, err := loc.Text()
		if err == nil {
			last = strings.TrimSpace(text)
			if sum, perr := pagination.ParseSummary(last); perr == nil && sum.From == want {
				return nil
			}
		}
		if !time.Now().Before(deadline) {
			return &faults.TimeoutError{
				Op:     "settle",
				Target: fmt.Sprintf("%s showing row %d (last seen %q)", s.Summary, want, last),
				After:  s.Timeout,
			}
		}
		t := time.NewTimer(interval)
		select {
		case <-t.C:
		case <-ctx.Done():
			t.Stop()
			return ctx.Err()
		}
	}
}

// NetworkIdle waits until the page has had no request in flight for the driver's quiet period
type NetworkIdle struct {
	Page    browser.Page
	Timeout time.Duration
}

func (n NetworkIdle) Settle(_ context.Context, _ int) error {
	return n.Page.WaitForNetworkIdle(n.Timeout)
}

// Chain runs settlers in order
type Chain []Settler

func (c Chain) Settle(ctx context.Context, page int) error {
	for _, s := range c {
		if err := s.Settle(ctx, page); err != nil {
			return err
		}
	}
	return nil
}
