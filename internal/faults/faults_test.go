package faults

import (
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestErrorMessages(t *testing.T) {
	t.Run("timeout names op and target", func(t *testing.T) {
		err := &TimeoutError{Op: "intercept", Target: "POST /api/v1/order", After: 30 * time.Second}
		assert.Equal(t, "intercept: timed out after 30s waiting for POST /api/v1/order", err.Error())
	})

	t.Run("pagination names page and control", func(t *testing.T) {
		err := &PaginationStateError{Page: 3, TotalPages: 4, Control: "button.p-paginator-next", Reason: "is disabled"}
		assert.Equal(t, "pagination: page 3 of 4: button.p-paginator-next is disabled", err.Error())
	})

	t.Run("extraction with parent and page", func(t *testing.T) {
		err := &ExtractionError{Key: "title", ParentKey: "order_risk", Page: 2}
		assert.Equal(t, `extraction: no key "title" under "order_risk" in API response for page 2`, err.Error())
	})

	t.Run("parse truncates long input", func(t *testing.T) {
		long := make([]byte, 200)
		for i := range long {
			long[i] = 'x'
		}
		err := &ParseError{Input: string(long), Want: "number"}
		assert.Contains(t, err.Error(), "...")
		assert.Less(t, len(err.Error()), 200)
	})
}

func TestClassifiers(t *testing.T) {
	wrapped := fmt.Errorf("walk page 2: %w", &TimeoutError{Op: "intercept"})
	assert.True(t, IsTimeout(wrapped))
	assert.False(t, IsParse(wrapped))

	assert.True(t, IsPaginationState(fmt.Errorf("x: %w", &PaginationStateError{})))
	assert.True(t, IsExtraction(&ExtractionError{Key: "k"}))

	inner := errors.New("strconv: invalid syntax")
	perr := &ParseError{Input: "abc", Want: "number", Err: inner}
	assert.True(t, IsParse(perr))
	assert.ErrorIs(t, perr, inner)
}
