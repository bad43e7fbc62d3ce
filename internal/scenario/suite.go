// Package scenario models RTD check suites and runs them against a live browser.
package scenario

import (
	"errors"
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/dispatchlab/rtdcheck/internal/apicheck"
	"github.com/dispatchlab/rtdcheck/internal/browser"
	"github.com/dispatchlab/rtdcheck/internal/filter"
)

// Kind selects what a scenario does on the RTD page
type Kind string

const (
	KindNavigate            Kind = "navigate"
	KindLast7Days           Kind = "last_7_days"
	KindCustomDateRange     Kind = "custom_date_range"
	KindInvalidOrderID      Kind = "invalid_order_id"
	KindAmountInvalidMin    Kind = "amount_invalid_min"
	KindAmountMinExceedsMax Kind = "amount_min_exceeds_max"
	KindAmountFilter        Kind = "amount_filter"
	KindRiskFilter          Kind = "risk_filter"
	KindExport              Kind = "export"
)

// Kinds lists every supported kind
var Kinds = []Kind{
	KindNavigate, KindLast7Days, KindCustomDateRange, KindInvalidOrderID,
	KindAmountInvalidMin, KindAmountMinExceedsMax, KindAmountFilter, KindRiskFilter, KindExport,
}

// DateSpec is a date range in suite files. Each end is DD-MM-YYYY, "today" or
// "today-N" for N days back. An empty To means today.
type DateSpec struct {
	From string `yaml:"from" json:"from"`
	To   string `yaml:"to,omitempty" json:"to,omitempty"`
}

var relativeDay = regexp.MustCompile(`^today(?:\s*-\s*(\d+))?$`)

// Resolve turns the date expressions into a concrete custom range relative to today
func (d DateSpec) Resolve(today time.Time) (filter.DateRange, error) {
	from, err := resolveDay(d.From, today)
	if err != nil {
		return filter.DateRange{}, fmt.Errorf("date.from: %w", err)
	}
	to := today
	if d.To != "" {
		if to, err = resolveDay(d.To, today); err != nil {
			return filter.DateRange{}, fmt.Errorf("date.to: %w", err)
		}
	}
	r := filter.Custom(from, to)
	return r, r.Validate()
}

func resolveDay(s string, today time.Time) (time.Time, error) {
	s = strings.ToLower(strings.TrimSpace(s))
	if m := relativeDay.FindStringSubmatch(s); m != nil {
		if m[1] == "" {
			return today, nil
		}
		n, _ := strconv.Atoi(m[1])
		return today.AddDate(0, 0, -n), nil
	}
	return filter.ParseDate(s)
}

// Scenario is one check. Which optional fields apply depends on Kind.
type Scenario struct {
	Name     string `yaml:"name" json:"name"`
	Kind     Kind   `yaml:"kind" json:"kind"`
	Disabled bool   `yaml:"disabled,omitempty" json:"disabled,omitempty"`

	Date    *DateSpec               `yaml:"date,omitempty" json:"date,omitempty"`
	OrderID string                  `yaml:"order_id,omitempty" json:"order_id,omitempty"`
	Amount  *filter.AmountCondition `yaml:"amount,omitempty" json:"amount,omitempty"`
	Risk    *filter.RiskSet         `yaml:"risk,omitempty" json:"risk,omitempty"`
	Toast   string                  `yaml:"toast,omitempty" json:"toast,omitempty"`
	Expect  apicheck.Expectation    `yaml:"expect,omitempty" json:"expect,omitempty"`

	// MinResults fails a walking scenario that saw fewer rendered values
	MinResults int `yaml:"min_results,omitempty" json:"min_results,omitempty"`
}

// Filter is the filter dimension the scenario exercises, for reports
func (s Scenario) Filter() string {
	switch {
	case s.Amount != nil:
		return s.Amount.String()
	case s.Risk != nil:
		labels := make([]string, len(s.Risk.Selected))
		for i, l := range s.Risk.Selected {
			labels[i] = string(l)
		}
		return "risk in [" + strings.Join(labels, ", ") + "]"
	case s.OrderID != "":
		return "order id " + s.OrderID
	case s.Date != nil:
		to := s.Date.To
		if to == "" {
			to = "today"
		}
		return "date " + s.Date.From + " .. " + to
	case s.Kind == KindLast7Days:
		return "date last 7 days"
	}
	return ""
}

// Validate checks the fields the scenario's kind needs
func (s Scenario) Validate() error {
	if strings.TrimSpace(s.Name) == "" {
		return errors.New("scenario has no name")
	}
	need := func(ok bool, field string) error {
		if !ok {
			return fmt.Errorf("scenario %q (%s) needs %s", s.Name, s.Kind, field)
		}
		return nil
	}
	if s.Date != nil {
		if _, err := s.Date.Resolve(time.Now()); err != nil {
			return fmt.Errorf("scenario %q: %w", s.Name, err)
		}
	}
	// the date only scopes the rows; amount and risk are the filter under test
	if spec := (filter.Spec{Amount: s.Amount, Risk: s.Risk}); spec.Kind() != "none" {
		if err := spec.Validate(); err != nil {
			return fmt.Errorf("scenario %q: %w", s.Name, err)
		}
	}

	switch s.Kind {
	case KindNavigate, KindLast7Days, KindExport:
		return nil
	case KindCustomDateRange:
		return need(s.Date != nil, "date")
	case KindInvalidOrderID:
		return need(s.OrderID != "", "order_id")
	case KindAmountInvalidMin:
		if err := need(s.Amount != nil && s.Amount.Comparator == filter.Range, "a range amount"); err != nil {
			return err
		}
		return need(s.Expect.MessageContains != "", "expect.message_contains")
	case KindAmountMinExceedsMax:
		if err := need(s.Amount != nil && s.Amount.Comparator == filter.Range, "a range amount"); err != nil {
			return err
		}
		return need(s.Toast != "", "toast")
	case KindAmountFilter:
		return need(s.Amount != nil, "amount")
	case KindRiskFilter:
		return need(s.Risk != nil, "risk")
	}
	return fmt.Errorf("scenario %q has unknown kind %q", s.Name, s.Kind)
}

// Suite is an ordered list of scenarios
type Suite struct {
	Name      string     `yaml:"name" json:"name"`
	Scenarios []Scenario `yaml:"scenarios" json:"scenarios"`
}

// Validate checks every scenario and that names are unique
func (s *Suite) Validate() error {
	if len(s.Scenarios) == 0 {
		return errors.New("suite has no scenarios")
	}
	seen := make(map[string]bool, len(s.Scenarios))
	var errs []error
	for _, sc := range s.Scenarios {
		if err := sc.Validate(); err != nil {
			errs = append(errs, err)
			continue
		}
		// artifacts are stored per slug
		key := browser.Slug(sc.Name)
		if seen[key] {
			errs = append(errs, fmt.Errorf("duplicate scenario name %q (artifact directory %q)", sc.Name, key))
		}
		seen[key] = true
	}
	return errors.Join(errs...)
}

// Only returns a copy of the suite restricted to the named scenarios, in suite
// order. Named scenarios run even when disabled.
func (s *Suite) Only(names ...string) (*Suite, error) {
	if len(names) == 0 {
		return s, nil
	}
	want := make(map[string]bool, len(names))
	for _, n := range names {
		want[strings.ToLower(n)] = true
	}
	out := &Suite{Name: s.Name}
	for _, sc := range s.Scenarios {
		if want[strings.ToLower(sc.Name)] {
			sc.Disabled = false
			out.Scenarios = append(out.Scenarios, sc)
			delete(want, strings.ToLower(sc.Name))
		}
	}
	if len(want) > 0 {
		missing := make([]string, 0, len(want))
		for _, n := range names {
			if want[strings.ToLower(n)] {
				missing = append(missing, n)
			}
		}
		return nil, fmt.Errorf("no scenario named %s in suite %q", strings.Join(missing, ", "), s.Name)
	}
	return out, nil
}
