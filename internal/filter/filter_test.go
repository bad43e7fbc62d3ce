package filter

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestComparator(t *testing.T) {
	tests := []struct {
		c     Comparator
		label string
		index int
	}{
		{Range, "Select Range", 0},
		{GreaterThan, "Greater than", 1},
		{LessThan, "Less than", 2},
		{AtLeast, "Greater than and equal to", 3},
		{AtMost, "Less than and equal to", 4},
		{Equal, "Equal to", 5},
	}
	for _, tt := range tests {
		t.Run(string(tt.c), func(t *testing.T) {
			assert.Equal(t, tt.label, tt.c.Label())
			assert.Equal(t, tt.index, tt.c.OptionIndex())

			byLabel, err := ParseComparator(tt.label)
			require.NoError(t, err)
			assert.Equal(t, tt.c, byLabel)
		})
	}

	_, err := ParseComparator("between")
	assert.Error(t, err)
	assert.Equal(t, -1, Comparator("between").OptionIndex())
}

func TestAmountPredicate(t *testing.T) {
	tests := []struct {
		cond AmountCondition
		in   float64
		out  float64
	}{
		{AmountCondition{Comparator: Range, Min: 10, Max: 100}, 100, 100.5},
		{AmountCondition{Comparator: GreaterThan, Value: 100}, 100.5, 100},
		{AmountCondition{Comparator: LessThan, Value: 100}, 99, 100},
		{AmountCondition{Comparator: AtLeast, Value: 100}, 100, 99.99},
		{AmountCondition{Comparator: AtMost, Value: 10}, 10, 10.5},
		{AmountCondition{Comparator: Equal, Value: 10}, 10, 11},
	}
	for _, tt := range tests {
		t.Run(tt.cond.String(), func(t *testing.T) {
			require.NoError(t, tt.cond.Validate())
			p := tt.cond.Predicate()
			assert.True(t, p.Holds(tt.in))
			assert.False(t, p.Holds(tt.out))
		})
	}

	assert.Error(t, AmountCondition{Comparator: "approx"}.Validate())
	assert.NoError(t, AmountCondition{Comparator: Range, Min: 0, Max: 100}.Validate(), "server-side limits are not enforced locally")
}

func TestRisk(t *testing.T) {
	for in, want := range map[string]RiskLabel{"na": RiskNA, "low": RiskLow, "Medium Risk": RiskMedium, " HIGH risk ": RiskHigh} {
		got, err := ParseRiskLabel(in)
		require.NoError(t, err, in)
		assert.Equal(t, want, got)
	}
	_, err := ParseRiskLabel("severe")
	assert.Error(t, err)

	set := RiskSet{Selected: []RiskLabel{RiskLow, RiskMedium}}
	require.NoError(t, set.Validate())
	assert.True(t, set.Predicate().Holds("Medium Risk"))
	assert.False(t, set.Predicate().Holds("High Risk"))
	assert.Error(t, RiskSet{}.Validate())
}

func TestDateRange(t *testing.T) {
	today := time.Date(2025, time.March, 5, 15, 4, 5, 0, time.UTC)

	last7 := Last7Days(today)
	assert.Equal(t, "27-02-2025 - 05-03-2025", last7.Display())
	assert.Equal(t, PresetLast7Days, last7.Preset)

	from, err := ParseDate("01-01-2025")
	require.NoError(t, err)
	custom := Custom(from, today)
	require.NoError(t, custom.Validate())
	assert.Equal(t, "01-01-2025", Format(custom.From))

	assert.Error(t, Custom(today, from).Validate())
	_, err = ParseDate("2025-01-01")
	assert.Error(t, err)
}

func TestSpec(t *testing.T) {
	amount := &AmountCondition{Comparator: Equal, Value: 10}
	s := Spec{Amount: amount}
	require.NoError(t, s.Validate())
	assert.Equal(t, "amount", s.Kind())

	assert.Error(t, Spec{}.Validate())
	assert.Error(t, Spec{Amount: amount, Risk: &RiskSet{Selected: []RiskLabel{RiskNA}}}.Validate())
	assert.Equal(t, "none", Spec{}.Kind())
}
