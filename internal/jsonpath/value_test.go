package jsonpath

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dispatchlab/rtdcheck/internal/faults"
)

func TestParse(t *testing.T) {
	t.Run("keeps member order", func(t *testing.T) {
		v, err := Parse([]byte(`{"z": 1, "a": 2, "m": 3}`))
		require.NoError(t, err)
		keys := []string{}
		for _, m := range v.Members() {
			keys = append(keys, m.Key)
		}
		assert.Equal(t, []string{"z", "a", "m"}, keys)
	})

	t.Run("round trips compact form", func(t *testing.T) {
		src := `{"status":"error","message":"The Min Amount field must be greater than or equal to 0.1.","data":[],"n":null,"ok":false}`
		v, err := Parse([]byte(src))
		require.NoError(t, err)
		assert.Equal(t, src, v.String())
	})

	t.Run("empty key is preserved", func(t *testing.T) {
		v, err := Parse([]byte(`{"": 1}`))
		require.NoError(t, err)
		got, ok := v.Get("")
		require.True(t, ok)
		f, _ := got.Float()
		assert.Equal(t, 1.0, f)
	})

	t.Run("top-level scalars", func(t *testing.T) {
		for src, want := range map[string]Kind{`42`: KindNumber, `-0.5`: KindNumber, `"x"`: KindString, `true`: KindBool, `null`: KindNull} {
			v, err := Parse([]byte(src))
			require.NoError(t, err, src)
			assert.Equal(t, want, v.Kind(), src)
		}
	})

	truncated := []string{`[1, 2`, `[1, 2,`, `{"data": [{"final_total_price": "5"}`, `{"a": "b`, `"open`}
	for _, bad := range truncated {
		t.Run("rejects truncated "+bad, func(t *testing.T) {
			_, err := Parse([]byte(bad))
			require.Error(t, err)
			assert.True(t, faults.IsParse(err))
		})
	}

	for _, bad := range []string{``, `{"a":`, `[1, 2`, `{"a": 1} trailing`, `<html>`} {
		bad := bad
		t.Run("rejects "+bad, func(t *testing.T) {
			_, err := Parse([]byte(bad))
			require.Error(t, err)
			assert.True(t, faults.IsParse(err))
		})
	}
}

func TestInterface(t *testing.T) {
	v := MustParse(`{"status": "success", "data": [{"id": 1}], "flag": true, "none": null}`)
	got, ok := v.Interface().(map[string]any)
	require.True(t, ok)
	assert.Equal(t, "success", got["status"])
	assert.Equal(t, true, got["flag"])
	assert.Nil(t, got["none"])
	data, ok := got["data"].([]any)
	require.True(t, ok)
	assert.Equal(t, map[string]any{"id": 1.0}, data[0])
}

func TestAccessors(t *testing.T) {
	v := MustParse(`[1, "x", true]`)
	assert.Equal(t, KindArray, v.Kind())
	assert.Equal(t, 3, v.Len())

	items := v.Elements()
	_, isStr := items[0].Str()
	assert.False(t, isStr)
	s, isStr := items[1].Str()
	assert.True(t, isStr)
	assert.Equal(t, "x", s)
	b, isBool := items[2].Boolean()
	assert.True(t, isBool)
	assert.True(t, b)

	assert.True(t, Value{}.IsNull())
	assert.Equal(t, "null", Value{}.String())
	assert.Equal(t, `"a\"b"`, StringValue(`a"b`).String())
	assert.Equal(t, "10", NumberValue(10).String())
}
