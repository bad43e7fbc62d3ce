// Package faults defines the error taxonomy shared by the cross-validation engine.
// Every error here is fatal to the scenario that raised it; nothing retries.
package faults

import (
	"errors"
	"fmt"
	"time"
)

// TimeoutError reports an element or network event that never appeared within its bound
type TimeoutError struct {
	Op     string
	Target string
	After  time.Duration
	Err    error
}

func (e *TimeoutError) Error() string {
	msg := fmt.Sprintf("%s: timed out after %s waiting for %s", e.Op, e.After, e.Target)
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *TimeoutError) Unwrap() error { return e.Err }

// PaginationStateError reports a pagination control whose state contradicts the expected page count
type PaginationStateError struct {
	Page       int
	TotalPages int
	Control    string
	Reason     string
}

func (e *PaginationStateError) Error() string {
	return fmt.Sprintf("pagination: page %d of %d: %s %s", e.Page, e.TotalPages, e.Control, e.Reason)
}

// ExtractionError reports a JSON key that a scenario requires but the response lacks
type ExtractionError struct {
	Key       string
	ParentKey string
	Page      int
}

func (e *ExtractionError) Error() string {
	where := fmt.Sprintf("key %q", e.Key)
	if e.ParentKey != "" {
		where = fmt.Sprintf("key %q under %q", e.Key, e.ParentKey)
	}
	if e.Page > 0 {
		return fmt.Sprintf("extraction: no %s in API response for page %d", where, e.Page)
	}
	return fmt.Sprintf("extraction: no %s in API response", where)
}

// ParseError reports text that had to be numeric (or JSON) and was not
type ParseError struct {
	Input string
	Want  string
	Err   error
}

func (e *ParseError) Error() string {
	input := e.Input
	if len(input) > 120 {
		input = input[:117] + "..."
	}
	if e.Err != nil {
		return fmt.Sprintf("parse: %q is not a valid %s: %v", input, e.Want, e.Err)
	}
	return fmt.Sprintf("parse: %q is not a valid %s", input, e.Want)
}

func (e *ParseError) Unwrap() error { return e.Err }

// IsTimeout reports whether err carries a TimeoutError
func IsTimeout(err error) bool {
	var target *TimeoutError
	return errors.As(err, &target)
}

// IsPaginationState reports whether err carries a PaginationStateError
func IsPaginationState(err error) bool {
	var target *PaginationStateError
	return errors.As(err, &target)
}

// IsExtraction reports whether err carries an ExtractionError
func IsExtraction(err error) bool {
	var target *ExtractionError
	return errors.As(err, &target)
}

// IsParse reports whether err carries a ParseError
func IsParse(err error) bool {
	var target *ParseError
	return errors.As(err, &target)
}
