// Package filter models the RTD filters a scenario applies: an order date range,
// an amount condition or a set of risk labels. A scenario exercises exactly one.
package filter

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/dispatchlab/rtdcheck/internal/validate"
)

// Comparator is the amount condition chosen in the filter dropdown
type Comparator string

const (
	Range       Comparator = "range"
	GreaterThan Comparator = "gt"
	LessThan    Comparator = "lt"
	AtLeast     Comparator = "gte"
	AtMost      Comparator = "lte"
	Equal       Comparator = "eq"
)

var comparators = []struct {
	c     Comparator
	label string
}{
	{Range, "Select Range"},
	{GreaterThan, "Greater than"},
	{LessThan, "Less than"},
	{AtLeast, "Greater than and equal to"},
	{AtMost, "Less than and equal to"},
	{Equal, "Equal to"},
}

// ParseComparator accepts either the short code or the dropdown label
func ParseComparator(s string) (Comparator, error) {
	for _, e := range comparators {
		if strings.EqualFold(s, string(e.c)) || strings.EqualFold(s, e.label) {
			return e.c, nil
		}
	}
	return "", fmt.Errorf("unknown amount comparator %q", s)
}

// Label is the text of the comparator's dropdown option
func (c Comparator) Label() string {
	for _, e := range comparators {
		if e.c == c {
			return e.label
		}
	}
	return string(c)
}

// OptionIndex is the comparator's position in the dropdown, or -1
func (c Comparator) OptionIndex() int {
	for i, e := range comparators {
		if e.c == c {
			return i
		}
	}
	return -1
}

// AmountCondition is an amount filter. Range uses Min and Max; every other
// comparator uses Value.
type AmountCondition struct {
	Comparator Comparator `yaml:"comparator" json:"comparator"`
	Min        float64    `yaml:"min,omitempty" json:"min,omitempty"`
	Max        float64    `yaml:"max,omitempty" json:"max,omitempty"`
	Value      float64    `yaml:"value,omitempty" json:"value,omitempty"`
}

// Validate checks the condition is well formed. It does not apply the server's
// business rules (minimum 0.1, min <= max); scenarios exercise those on purpose.
func (a AmountCondition) Validate() error {
	if a.Comparator.OptionIndex() < 0 {
		return fmt.Errorf("unknown amount comparator %q", a.Comparator)
	}
	return nil
}

// Predicate is the condition every filtered amount must satisfy
func (a AmountCondition) Predicate() validate.Predicate[float64] {
	switch a.Comparator {
	case Range:
		return validate.Between{Lo: a.Min, Hi: a.Max}
	case GreaterThan:
		return validate.Above(a.Value)
	case LessThan:
		return validate.Below(a.Value)
	case AtLeast:
		return validate.AtLeast(a.Value)
	case AtMost:
		return validate.AtMost(a.Value)
	default:
		return validate.EqualTo(a.Value)
	}
}

func (a AmountCondition) String() string {
	if a.Comparator == Range {
		return fmt.Sprintf("amount %s %g..%g", a.Comparator, a.Min, a.Max)
	}
	return fmt.Sprintf("amount %s %g", a.Comparator, a.Value)
}

// RiskLabel is one risk category of an order
type RiskLabel string

const (
	RiskNA     RiskLabel = "NA"
	RiskLow    RiskLabel = "Low Risk"
	RiskMedium RiskLabel = "Medium Risk"
	RiskHigh   RiskLabel = "High Risk"
)

// RiskLabels lists the categories in filter-panel order
var RiskLabels = []RiskLabel{RiskNA, RiskLow, RiskMedium, RiskHigh}

// ParseRiskLabel accepts the label text case-insensitively, with or without "Risk"
func ParseRiskLabel(s string) (RiskLabel, error) {
	norm := strings.TrimSpace(strings.ToLower(s))
	for _, l := range RiskLabels {
		full := strings.ToLower(string(l))
		if norm == full || norm+" risk" == full {
			return l, nil
		}
	}
	return "", fmt.Errorf("unknown risk label %q", s)
}

// RiskSet is a risk filter
type RiskSet struct {
	Selected []RiskLabel `yaml:"selected" json:"selected"`
}

func (r RiskSet) Validate() error {
	if len(r.Selected) == 0 {
		return errors.New("risk filter selects no labels")
	}
	for _, l := range r.Selected {
		if _, err := ParseRiskLabel(string(l)); err != nil {
			return err
		}
	}
	return nil
}

// Predicate is substring membership in the selected labels
func (r RiskSet) Predicate() validate.Predicate[string] {
	labels := make(validate.AnyOf, len(r.Selected))
	for i, l := range r.Selected {
		labels[i] = string(l)
	}
	return labels
}

// DisplayDate is how the RTD date picker renders dates
const DisplayDate = "02-01-2006"

// Preset identifies a date picker shortcut
type Preset string

const (
	PresetLast7Days Preset = "Last 7 Days"
	PresetCustom    Preset = "Custom Range"
)

// DateRange is an order date filter, inclusive on both ends
type DateRange struct {
	Preset Preset
	From   time.Time
	To     time.Time
}

// Last7Days is the picker preset: today and the six days before it
func Last7Days(today time.Time) DateRange {
	day := truncate(today)
	return DateRange{Preset: PresetLast7Days, From: day.AddDate(0, 0, -6), To: day}
}

// Custom is an explicit range
func Custom(from, to time.Time) DateRange {
	return DateRange{Preset: PresetCustom, From: truncate(from), To: truncate(to)}
}

func (d DateRange) Validate() error {
	if d.To.Before(d.From) {
		return fmt.Errorf("date range ends %s before it starts %s", Format(d.To), Format(d.From))
	}
	return nil
}

// Display renders the range the way the picker's summary box does
func (d DateRange) Display() string { return Format(d.From) + " - " + Format(d.To) }

// Format renders t as DD-MM-YYYY
func Format(t time.Time) string { return t.Format(DisplayDate) }

// ParseDate reads DD-MM-YYYY
func ParseDate(s string) (time.Time, error) {
	t, err := time.ParseInLocation(DisplayDate, strings.TrimSpace(s), time.Local)
	if err != nil {
		return time.Time{}, fmt.Errorf("date %q is not DD-MM-YYYY: %w", s, err)
	}
	return t, nil
}

func truncate(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, t.Location())
}

// Spec holds exactly one filter dimension
type Spec struct {
	Date   *DateRange
	Amount *AmountCondition
	Risk   *RiskSet
}

// Kind names the dimension set on s
func (s Spec) Kind() string {
	switch {
	case s.Date != nil:
		return "date"
	case s.Amount != nil:
		return "amount"
	case s.Risk != nil:
		return "risk"
	}
	return "none"
}

// Validate checks that exactly one dimension is set and that it is well formed
func (s Spec) Validate() error {
	set := 0
	for _, present := range []bool{s.Date != nil, s.Amount != nil, s.Risk != nil} {
		if present {
			set++
		}
	}
	if set != 1 {
		return fmt.Errorf("filter must set exactly one dimension, got %d", set)
	}
	switch {
	case s.Date != nil:
		return s.Date.Validate()
	case s.Amount != nil:
		return s.Amount.Validate()
	default:
		return s.Risk.Validate()
	}
}
