package apicheck

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dispatchlab/rtdcheck/internal/intercept"
	"github.com/dispatchlab/rtdcheck/internal/jsonpath"
)

func exchange(status int, body string) *intercept.Exchange {
	return &intercept.Exchange{
		URL:        "https://my.example.com/api/v1/order/forward/get/data",
		Method:     "POST",
		StatusCode: status,
		Raw:        []byte(body),
		Body:       jsonpath.MustParse(body),
	}
}

func TestVerifyNoRecords(t *testing.T) {
	exp := Expectation{Status: 200, Envelope: "success", EmptyData: true}
	require.NoError(t, exp.Verify(context.Background(), exchange(200, `{"status":"success","data":[]}`)))

	err := exp.Verify(context.Background(), exchange(200, `{"status":"success","data":[{"order_id":"A1"}]}`))
	require.Error(t, err)
	var m *Mismatch
	require.True(t, errors.As(err, &m))
	assert.Equal(t, "data", m.Check)
}

func TestVerifyValidationError(t *testing.T) {
	const snippet = "The Min Amount field must be greater than or equal to 0.1."
	exp := Expectation{Status: 422, Envelope: "error", MessageContains: snippet}

	t.Run("plain message", func(t *testing.T) {
		body := `{"status":"error","message":"` + snippet + `"}`
		assert.NoError(t, exp.Verify(context.Background(), exchange(422, body)))
	})

	t.Run("field error map", func(t *testing.T) {
		body := `{"status":"error","message":{"min_amount":["` + snippet + `"]}}`
		assert.NoError(t, exp.Verify(context.Background(), exchange(422, body)))
	})

	t.Run("every mismatch is reported", func(t *testing.T) {
		err := exp.Verify(context.Background(), exchange(200, `{"status":"success","data":[]}`))
		require.Error(t, err)
		assert.Contains(t, err.Error(), "status code: want 422, got 200")
		assert.Contains(t, err.Error(), "envelope status")
		assert.Contains(t, err.Error(), "message")
	})
}

func TestVerifyEnvelopeSchema(t *testing.T) {
	exp := Expectation{Envelope: "success"}
	err := exp.Verify(context.Background(), exchange(200, `{"data":[]}`))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "response envelope invalid")

	err = exp.Verify(context.Background(), exchange(200, `{"status":"pending"}`))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "response envelope invalid")
}

func TestAssertions(t *testing.T) {
	doc := jsonpath.MustParse(`{"status":"success","data":[{"final_total_price":"120.50"},{"final_total_price":"80"}],"total":2}`).Interface()
	ctx := context.Background()

	tests := []struct {
		name    string
		a       Assertion
		wantErr string
	}{
		{"equals string", Assertion{Query: ".status", Equals: "success"}, ""},
		{"equals int from yaml", Assertion{Query: ".data | length", Equals: 2}, ""},
		{"equals float", Assertion{Query: ".total", Equals: 2.0}, ""},
		{"truthy", Assertion{Query: `all(.data[]; .final_total_price | tonumber > 0)`}, ""},
		{"falsy", Assertion{Query: `any(.data[]; .final_total_price | tonumber > 100) | not`}, "truthy"},
		{"not equal", Assertion{Query: ".status", Equals: "error"}, "want error, got success"},
		{"no result", Assertion{Query: "empty", Equals: 1}, "no result"},
		{"bad query", Assertion{Query: ".data[", Equals: 1}, "parse jq"},
		{"runtime error", Assertion{Query: ".status | tonumber"}, "evaluate jq"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.a.Eval(ctx, doc)
			if tt.wantErr == "" {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestExpectationIsZero(t *testing.T) {
	assert.True(t, Expectation{}.IsZero())
	assert.False(t, Expectation{EmptyData: true}.IsZero())
	assert.NoError(t, Expectation{}.Verify(context.Background(), exchange(500, `[]`)))
	assert.Error(t, Expectation{}.Verify(context.Background(), nil))
}
