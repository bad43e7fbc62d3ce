package validate

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFloatPredicates(t *testing.T) {
	tests := []struct {
		name string
		p    Predicate[float64]
		pass []float64
		fail []float64
	}{
		{"between", Between{10, 100}, []float64{10, 55.5, 100}, []float64{9.99, 100.01}},
		{"above", Above(100), []float64{100.01, 5000}, []float64{100, 1}},
		{"below", Below(100), []float64{0.1, 99.99}, []float64{100, 250}},
		{"at least", AtLeast(100), []float64{100, 101}, []float64{99.9}},
		{"at most", AtMost(10), []float64{10, 0.5}, []float64{10.01}},
		{"equal", EqualTo(10), []float64{10.0}, []float64{10.0000001, 9}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			for _, v := range tt.pass {
				assert.True(t, tt.p.Holds(v), "%v should satisfy %s", v, tt.p)
			}
			for _, v := range tt.fail {
				assert.False(t, tt.p.Holds(v), "%v should not satisfy %s", v, tt.p)
			}
		})
	}
}

func TestAnyOf(t *testing.T) {
	p := AnyOf{"Low Risk", "Medium Risk"}
	assert.True(t, p.Holds("Low Risk"))
	assert.True(t, p.Holds("Medium Risk Order"))
	assert.False(t, p.Holds("High Risk"))
	assert.False(t, p.Holds("NA"))
	assert.Equal(t, "containing one of [Low Risk, Medium Risk]", p.String())
}

func TestCheck(t *testing.T) {
	t.Run("empty list passes", func(t *testing.T) {
		assert.NoError(t, Check[float64]("api", nil, EqualTo(10)))
		assert.NoError(t, Check("ui", []string{}, Predicate[string](AnyOf{"NA"})))
	})

	t.Run("first failure is named", func(t *testing.T) {
		err := Check("ui", []float64{10, 10, 12.5, 3}, Predicate[float64](EqualTo(10)))
		require.Error(t, err)
		var v *Violation
		require.True(t, errors.As(err, &v))
		assert.Equal(t, 2, v.Index)
		assert.Equal(t, "12.5", v.Value)
		assert.Equal(t, "ui value #3 (12.5) is not equal to 10", err.Error())
	})

	t.Run("string values are quoted", func(t *testing.T) {
		err := Check("api", []string{"Low Risk", "High Risk"}, Predicate[string](AnyOf{"Low Risk"}))
		assert.EqualError(t, err, `api value #2 ("High Risk") is not containing one of [Low Risk]`)
	})
}

func TestCheckAll(t *testing.T) {
	p := Predicate[float64](Between{10, 100})
	err := CheckAll(p,
		Group[float64]{Source: "api", Values: []float64{10, 20}},
		Group[float64]{Source: "ui", Values: []float64{20, 101}},
	)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "ui value #2 (101)")

	assert.NoError(t, CheckAll(p, Group[float64]{Source: "api"}, Group[float64]{Source: "ui"}))
}
