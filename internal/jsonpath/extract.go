package jsonpath

import (
	"regexp"
	"strconv"
	"strings"

	"github.com/dispatchlab/rtdcheck/internal/faults"
)

// ExtractByKey returns every value stored under key, at any depth, in depth-first
// pre-order. A matched value is collected as a whole and not searched further.
func ExtractByKey(doc Value, key string) []Value {
	found := []Value{}
	walk(doc, func(k string, v Value) bool {
		if k == key {
			found = append(found, v)
			return false
		}
		return true
	})
	return found
}

// ExtractObjectsByParentKey returns every object stored under parentKey. Values under
// parentKey that are not objects are searched like any other value.
func ExtractObjectsByParentKey(doc Value, parentKey string) []Value {
	found := []Value{}
	walk(doc, func(k string, v Value) bool {
		if k == parentKey && v.kind == KindObject {
			found = append(found, v)
			return false
		}
		return true
	})
	return found
}

// ExtractUnder scopes to each object under parentKey, then collects key inside it
func ExtractUnder(doc Value, parentKey, key string) []Value {
	found := []Value{}
	for _, scope := range ExtractObjectsByParentKey(doc, parentKey) {
		found = append(found, ExtractByKey(scope, key)...)
	}
	return found
}

// walk visits every object member below v. visit returns false to stop descending
// into that member's value.
func walk(v Value, visit func(key string, v Value) bool) {
	switch v.kind {
	case KindObject:
		for _, m := range v.members {
			if visit(m.Key, m.Value) {
				walk(m.Value, visit)
			}
		}
	case KindArray:
		for _, item := range v.items {
			walk(item, visit)
		}
	}
}

var nonNumeric = regexp.MustCompile(`[^\d.]+`)

// Number reads v as a float. Strings are accepted after dropping everything that is
// not a digit or a dot, so "₹1,250.00" and "1250" read the same. A minus sign
// ahead of the first digit is kept: "-₹5" reads as -5.
func Number(v Value) (float64, error) {
	switch v.kind {
	case KindNumber:
		f, err := strconv.ParseFloat(v.text, 64)
		if err != nil {
			return 0, &faults.ParseError{Input: v.text, Want: "number", Err: err}
		}
		return f, nil
	case KindString:
		cleaned := nonNumeric.ReplaceAllString(v.text, "")
		if lead := strings.IndexFunc(v.text, isDigitOrDot); lead > 0 && strings.Contains(v.text[:lead], "-") {
			cleaned = "-" + cleaned
		}
		f, err := strconv.ParseFloat(cleaned, 64)
		if err != nil {
			return 0, &faults.ParseError{Input: v.text, Want: "number", Err: err}
		}
		return f, nil
	default:
		return 0, &faults.ParseError{Input: v.String(), Want: "number"}
	}
}

func isDigitOrDot(r rune) bool { return r == '.' || ('0' <= r && r <= '9') }

// Text returns the contents of a string value, or the JSON rendering of anything else
func Text(v Value) string {
	if s, ok := v.Str(); ok {
		return s
	}
	return v.String()
}
