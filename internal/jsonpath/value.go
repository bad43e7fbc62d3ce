// Package jsonpath provides a typed JSON value and key-based extraction over it.
package jsonpath

import (
	"fmt"
	"io"
	"strconv"
	"strings"

	jsoniter "github.com/json-iterator/go"

	"github.com/dispatchlab/rtdcheck/internal/faults"
)

// Kind discriminates the variants of a JSON value
type Kind uint8

const (
	KindNull Kind = iota
	KindBool
	KindNumber
	KindString
	KindArray
	KindObject
)

func (k Kind) String() string {
	switch k {
	case KindNull:
		return "null"
	case KindBool:
		return "bool"
	case KindNumber:
		return "number"
	case KindString:
		return "string"
	case KindArray:
		return "array"
	case KindObject:
		return "object"
	default:
		return fmt.Sprintf("kind(%d)", uint8(k))
	}
}

// Member is one key/value pair of an object, kept in document order
type Member struct {
	Key   string
	Value Value
}

// Value is an immutable JSON value. The zero Value is null.
type Value struct {
	kind    Kind
	boolean bool
	text    string // string contents, or the literal of a number
	items   []Value
	members []Member
}

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// Parse decodes a single JSON document
func Parse(data []byte) (Value, error) {
	iter := jsoniter.ParseBytes(json, data)
	if iter.WhatIsNext() == jsoniter.InvalidValue {
		return Value{}, &faults.ParseError{Input: string(data), Want: "JSON document", Err: iter.Error}
	}
	v := read(iter)
	if iter.Error != nil && iter.Error != io.EOF {
		return Value{}, &faults.ParseError{Input: string(data), Want: "JSON document", Err: iter.Error}
	}
	// only a top-level number runs into the end of input when complete
	if iter.Error == io.EOF && v.kind != KindNumber {
		return Value{}, &faults.ParseError{Input: string(data), Want: "JSON document", Err: io.ErrUnexpectedEOF}
	}
	if iter.WhatIsNext() != jsoniter.InvalidValue {
		return Value{}, &faults.ParseError{Input: string(data), Want: "JSON document", Err: fmt.Errorf("trailing data")}
	}
	return v, nil
}

// MustParse is Parse for literals in tests and fixtures
func MustParse(s string) Value {
	v, err := Parse([]byte(s))
	if err != nil {
		panic(err)
	}
	return v
}

func read(iter *jsoniter.Iterator) Value {
	switch iter.WhatIsNext() {
	case jsoniter.NilValue:
		iter.ReadNil()
		return Value{}
	case jsoniter.BoolValue:
		return Value{kind: KindBool, boolean: iter.ReadBool()}
	case jsoniter.NumberValue:
		return Value{kind: KindNumber, text: string(iter.ReadNumber())}
	case jsoniter.StringValue:
		return Value{kind: KindString, text: iter.ReadString()}
	case jsoniter.ArrayValue:
		items := []Value{}
		iter.ReadArrayCB(func(it *jsoniter.Iterator) bool {
			items = append(items, read(it))
			return it.Error == nil
		})
		return Value{kind: KindArray, items: items}
	case jsoniter.ObjectValue:
		members := []Member{}
		iter.ReadObjectCB(func(it *jsoniter.Iterator, key string) bool {
			members = append(members, Member{Key: key, Value: read(it)})
			return it.Error == nil
		})
		return Value{kind: KindObject, members: members}
	default:
		iter.ReportError("read", "unexpected token")
		return Value{}
	}
}

// StringValue builds a string Value
func StringValue(s string) Value { return Value{kind: KindString, text: s} }

// NumberValue builds a number Value
func NumberValue(f float64) Value {
	return Value{kind: KindNumber, text: strconv.FormatFloat(f, 'f', -1, 64)}
}

// Kind returns the variant of v
func (v Value) Kind() Kind { return v.kind }

// IsNull reports whether v is JSON null
func (v Value) IsNull() bool { return v.kind == KindNull }

// Str returns the contents of a string value
func (v Value) Str() (string, bool) {
	if v.kind != KindString {
		return "", false
	}
	return v.text, true
}

// Float returns the value of a number
func (v Value) Float() (float64, bool) {
	if v.kind != KindNumber {
		return 0, false
	}
	f, err := strconv.ParseFloat(v.text, 64)
	return f, err == nil
}

// Boolean returns the value of a bool
func (v Value) Boolean() (bool, bool) {
	return v.boolean, v.kind == KindBool
}

// Len is the number of elements of an array or members of an object
func (v Value) Len() int {
	switch v.kind {
	case KindArray:
		return len(v.items)
	case KindObject:
		return len(v.members)
	}
	return 0
}

// Elements returns a copy of an array's elements
func (v Value) Elements() []Value {
	if v.kind != KindArray {
		return nil
	}
	return append([]Value(nil), v.items...)
}

// Members returns a copy of an object's members in document order
func (v Value) Members() []Member {
	if v.kind != KindObject {
		return nil
	}
	return append([]Member(nil), v.members...)
}

// Get returns the first member of an object named key
func (v Value) Get(key string) (Value, bool) {
	for _, m := range v.members {
		if m.Key == key {
			return m.Value, true
		}
	}
	return Value{}, false
}

// Interface converts v into plain Go values (map[string]any, []any, float64, string, bool, nil)
func (v Value) Interface() any {
	switch v.kind {
	case KindBool:
		return v.boolean
	case KindNumber:
		f, _ := v.Float()
		return f
	case KindString:
		return v.text
	case KindArray:
		out := make([]any, len(v.items))
		for i, item := range v.items {
			out[i] = item.Interface()
		}
		return out
	case KindObject:
		out := make(map[string]any, len(v.members))
		for _, m := range v.members {
			if _, dup := out[m.Key]; !dup {
				out[m.Key] = m.Value.Interface()
			}
		}
		return out
	}
	return nil
}

// String renders v as compact JSON, keeping member order
func (v Value) String() string {
	var b strings.Builder
	v.write(&b)
	return b.String()
}

func (v Value) write(b *strings.Builder) {
	switch v.kind {
	case KindNull:
		b.WriteString("null")
	case KindBool:
		b.WriteString(strconv.FormatBool(v.boolean))
	case KindNumber:
		b.WriteString(v.text)
	case KindString:
		b.WriteString(strconv.Quote(v.text))
	case KindArray:
		b.WriteByte('[')
		for i, item := range v.items {
			if i > 0 {
				b.WriteByte(',')
			}
			item.write(b)
		}
		b.WriteByte(']')
	case KindObject:
		b.WriteByte('{')
		for i, m := range v.members {
			if i > 0 {
				b.WriteByte(',')
			}
			b.WriteString(strconv.Quote(m.Key))
			b.WriteByte(':')
			m.Value.write(b)
		}
		b.WriteByte('}')
	}
}
