// Package apicheck verifies an intercepted exchange against what a scenario
// expects of the status code, the response envelope and arbitrary jq queries.
package apicheck

import (
	"context"
	"errors"
	"fmt"
	"reflect"
	"strings"

	"github.com/itchyny/gojq"
	"github.com/xeipuuv/gojsonschema"

	"github.com/dispatchlab/rtdcheck/internal/intercept"
)

// envelopeSchema is the shape every RTD data response shares
const envelopeSchema = `{
  "$schema": "http://json-schema.org/draft-07/schema#",
  "title": "RTD response envelope",
  "type": "object",
  "required": ["status"],
  "properties": {
    "status": {"type": "string", "enum": ["success", "error"]},
    "message": {"type": ["string", "array", "object", "null"]},
    "data": {}
  }
}`

var envelopeLoader = gojsonschema.NewStringLoader(envelopeSchema)

// Assertion is a jq query whose first result must equal Equals, or be truthy
// when Equals is unset
type Assertion struct {
	Query  string `yaml:"query" json:"query"`
	Equals any    `yaml:"equals,omitempty" json:"equals,omitempty"`
}

// Expectation lists the checks for one exchange. Zero fields are not checked.
type Expectation struct {
	Status          int         `yaml:"status,omitempty" json:"status,omitempty"`
	Envelope        string      `yaml:"envelope,omitempty" json:"envelope,omitempty"`
	MessageContains string      `yaml:"message_contains,omitempty" json:"message_contains,omitempty"`
	EmptyData       bool        `yaml:"empty_data,omitempty" json:"empty_data,omitempty"`
	JQ              []Assertion `yaml:"jq,omitempty" json:"jq,omitempty"`
}

// IsZero reports whether e checks nothing
func (e Expectation) IsZero() bool {
	return e.Status == 0 && e.Envelope == "" && e.MessageContains == "" && !e.EmptyData && len(e.JQ) == 0
}

// Mismatch is one failed check
type Mismatch struct {
	Check string
	Want  any
	Got   any
}

func (m *Mismatch) Error() string {
	return fmt.Sprintf("%s: want %v, got %v", m.Check, m.Want, m.Got)
}

// Verify runs every check and returns the mismatches joined, or nil
func (e Expectation) Verify(ctx context.Context, ex *intercept.Exchange) error {
	if ex == nil {
		return errors.New("apicheck: no exchange to verify")
	}
	var errs []error

	if e.Status != 0 && ex.StatusCode != e.Status {
		errs = append(errs, &Mismatch{Check: "status code", Want: e.Status, Got: ex.StatusCode})
	}

	doc := ex.Body.Interface()
	if e.Envelope != "" || e.MessageContains != "" || e.EmptyData {
		if err := ValidateEnvelope(doc); err != nil {
			errs = append(errs, err)
		}
	}
	if e.Envelope != "" {
		got, _ := lookup(doc, "status")
		if got != e.Envelope {
			errs = append(errs, &Mismatch{Check: "envelope status", Want: e.Envelope, Got: got})
		}
	}
	if e.MessageContains != "" {
		msg := Message(doc)
		if !strings.Contains(msg, e.MessageContains) {
			errs = append(errs, &Mismatch{Check: "message", Want: fmt.Sprintf("to contain %q", e.MessageContains), Got: fmt.Sprintf("%q", msg)})
		}
	}
	if e.EmptyData {
		data, ok := lookup(doc, "data")
		if !ok || !empty(data) {
			errs = append(errs, &Mismatch{Check: "data", Want: "[]", Got: data})
		}
	}

	for _, a := range e.JQ {
		if err := a.Eval(ctx, doc); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// Eval runs the query against doc
func (a Assertion) Eval(ctx context.Context, doc any) error {
	query, err := gojq.Parse(a.Query)
	if err != nil {
		return fmt.Errorf("parse jq %q: %w", a.Query, err)
	}
	code, err := gojq.Compile(query)
	if err != nil {
		return fmt.Errorf("compile jq %q: %w", a.Query, err)
	}
	iter := code.RunWithContext(ctx, doc)
	v, ok := iter.Next()
	if !ok {
		return &Mismatch{Check: "jq " + a.Query, Want: describe(a.Equals), Got: "no result"}
	}
	if err, isErr := v.(error); isErr {
		return fmt.Errorf("evaluate jq %q: %w", a.Query, err)
	}
	if a.Equals == nil {
		if !truthy(v) {
			return &Mismatch{Check: "jq " + a.Query, Want: "a truthy result", Got: v}
		}
		return nil
	}
	if !equal(a.Equals, v) {
		return &Mismatch{Check: "jq " + a.Query, Want: a.Equals, Got: v}
	}
	return nil
}

// ValidateEnvelope checks doc against the response envelope schema
func ValidateEnvelope(doc any) error {
	result, err := gojsonschema.Validate(envelopeLoader, gojsonschema.NewGoLoader(doc))
	if err != nil {
		return fmt.Errorf("envelope validation: %w", err)
	}
	if result.Valid() {
		return nil
	}
	msgs := make([]string, 0, len(result.Errors()))
	for _, re := range result.Errors() {
		msgs = append(msgs, re.String())
	}
	return fmt.Errorf("response envelope invalid: %s", strings.Join(msgs, "; "))
}

// Message flattens the envelope's message, which the API sends either as a
// string or as a map of field errors, into one string
func Message(doc any) string {
	msg, _ := lookup(doc, "message")
	var parts []string
	var collect func(v any)
	collect = func(v any) {
		switch t := v.(type) {
		case string:
			parts = append(parts, t)
		case []any:
			for _, item := range t {
				collect(item)
			}
		case map[string]any:
			for _, item := range t {
				collect(item)
			}
		}
	}
	collect(msg)
	return strings.Join(parts, " ")
}

func lookup(doc any, key string) (any, bool) {
	m, ok := doc.(map[string]any)
	if !ok {
		return nil, false
	}
	v, ok := m[key]
	return v, ok
}

func empty(v any) bool {
	switch t := v.(type) {
	case nil:
		return true
	case []any:
		return len(t) == 0
	case map[string]any:
		return len(t) == 0
	}
	return false
}

func truthy(v any) bool {
	return v != nil && v != false
}

func describe(v any) string {
	if v == nil {
		return "a truthy result"
	}
	return fmt.Sprint(v)
}

// normalize maps integers, which YAML decoding and jq builtins like length
// produce, onto float64
func normalize(v any) any {
	switch t := v.(type) {
	case int:
		return float64(t)
	case int64:
		return float64(t)
	case uint64:
		return float64(t)
	case []any:
		out := make([]any, len(t))
		for i, item := range t {
			out[i] = normalize(item)
		}
		return out
	case map[string]any:
		out := make(map[string]any, len(t))
		for k, item := range t {
			out[k] = normalize(item)
		}
		return out
	}
	return v
}

func equal(want, got any) bool {
	return reflect.DeepEqual(normalize(want), normalize(got))
}
