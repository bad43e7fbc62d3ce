// Package validate checks extracted value lists against a filter's predicate.
package validate

import (
	"fmt"
	"strconv"
	"strings"
)

// Predicate is a condition every extracted value must satisfy
type Predicate[V any] interface {
	Holds(v V) bool
	String() string
}

// Between holds for Lo <= v <= Hi
type Between struct{ Lo, Hi float64 }

func (p Between) Holds(v float64) bool { return p.Lo <= v && v <= p.Hi }
func (p Between) String() string       { return fmt.Sprintf("between %s and %s", num(p.Lo), num(p.Hi)) }

// Above holds for v > bound
type Above float64

func (p Above) Holds(v float64) bool { return v > float64(p) }
func (p Above) String() string       { return "greater than " + num(float64(p)) }

// Below holds for v < bound
type Below float64

func (p Below) Holds(v float64) bool { return v < float64(p) }
func (p Below) String() string       { return "less than " + num(float64(p)) }

// AtLeast holds for v >= bound
type AtLeast float64

func (p AtLeast) Holds(v float64) bool { return v >= float64(p) }
func (p AtLeast) String() string       { return "greater than or equal to " + num(float64(p)) }

// AtMost holds for v <= bound
type AtMost float64

func (p AtMost) Holds(v float64) bool { return v <= float64(p) }
func (p AtMost) String() string       { return "less than or equal to " + num(float64(p)) }

// EqualTo holds for exact equality
type EqualTo float64

func (p EqualTo) Holds(v float64) bool { return v == float64(p) }
func (p EqualTo) String() string       { return "equal to " + num(float64(p)) }

// AnyOf holds when at least one label is a substring of v, so decorated
// renderings such as "Low Risk (12)" still match "Low Risk".
type AnyOf []string

func (p AnyOf) Holds(v string) bool {
	for _, label := range p {
		if strings.Contains(v, label) {
			return true
		}
	}
	return false
}

func (p AnyOf) String() string { return "containing one of [" + strings.Join(p, ", ") + "]" }

// Violation names the first value that failed a predicate
type Violation struct {
	Source    string
	Index     int
	Value     string
	Predicate string
}

func (v *Violation) Error() string {
	return fmt.Sprintf("%s value #%d (%s) is not %s", v.Source, v.Index+1, v.Value, v.Predicate)
}

// Check fails on the first value in values that does not satisfy p.
// An empty list passes.
func Check[V any](source string, values []V, p Predicate[V]) error {
	for i, v := range values {
		if !p.Holds(v) {
			return &Violation{Source: source, Index: i, Value: format(v), Predicate: p.String()}
		}
	}
	return nil
}

// Group is one named value list
type Group[V any] struct {
	Source string
	Values []V
}

// CheckAll applies p to each group in order and stops at the first violation
func CheckAll[V any](p Predicate[V], groups ...Group[V]) error {
	for _, g := range groups {
		if err := Check(g.Source, g.Values, p); err != nil {
			return err
		}
	}
	return nil
}

func format(v any) string {
	switch x := v.(type) {
	case float64:
		return num(x)
	case string:
		return strconv.Quote(x)
	default:
		return fmt.Sprint(x)
	}
}

func num(f float64) string { return strconv.FormatFloat(f, 'f', -1, 64) }
