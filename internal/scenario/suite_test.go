package scenario

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dispatchlab/rtdcheck/internal/filter"
)

const suiteYAML = `
name: nightly
scenarios:
  - name: open
    kind: navigate
  - name: january onwards
    kind: custom_date_range
    date: {from: 01-01-2025}
  - name: big orders
    kind: amount_filter
    date: {from: today-30, to: today}
    amount: {comparator: gte, value: 2500}
    min_results: 1
    expect:
      status: 200
      envelope: success
      jq:
        - query: '.data | length > 0'
        - query: '.status'
          equals: success
  - name: risky
    kind: risk_filter
    risk: {selected: [High Risk, Medium Risk]}
  - name: export
    kind: export
    disabled: true
`

func TestParse(t *testing.T) {
	s, err := Parse([]byte(suiteYAML))
	require.NoError(t, err)
	assert.Equal(t, "nightly", s.Name)
	require.Len(t, s.Scenarios, 5)

	big := s.Scenarios[2]
	assert.Equal(t, KindAmountFilter, big.Kind)
	assert.Equal(t, filter.AmountCondition{Comparator: filter.AtLeast, Value: 2500}, *big.Amount)
	assert.Equal(t, 200, big.Expect.Status)
	require.Len(t, big.Expect.JQ, 2)
	assert.Equal(t, "success", big.Expect.JQ[1].Equals)
	assert.Equal(t, []filter.RiskLabel{filter.RiskHigh, filter.RiskMedium}, s.Scenarios[3].Risk.Selected)
	assert.True(t, s.Scenarios[4].Disabled)
}

func TestParseRejects(t *testing.T) {
	tests := []struct {
		name   string
		yaml   string
		schema bool
		want   string
	}{
		{"unknown kind", "name: x\nscenarios:\n  - {name: a, kind: teleport}\n", true, "kind"},
		{"bad comparator", "name: x\nscenarios:\n  - {name: a, kind: amount_filter, amount: {comparator: between}}\n", true, "comparator"},
		{"unknown field", "name: x\nscenarios:\n  - {name: a, kind: navigate, colour: red}\n", true, "colour"},
		{"bad date", "name: x\nscenarios:\n  - {name: a, kind: custom_date_range, date: {from: 2025-01-01}}\n", true, "from"},
		{"no scenarios", "name: x\nscenarios: []\n", true, "scenarios"},
		{"amount kind without amount", "name: x\nscenarios:\n  - {name: a, kind: amount_filter}\n", false, "needs amount"},
		{"min check needs message", "name: x\nscenarios:\n  - {name: a, kind: amount_invalid_min, amount: {comparator: range, min: 0, max: 1}}\n", false, "message_contains"},
		{"duplicate names", "name: x\nscenarios:\n  - {name: A, kind: navigate}\n  - {name: a, kind: navigate}\n", false, "duplicate"},
		{"names sharing an artifact directory", "name: x\nscenarios:\n  - {name: risk low, kind: navigate}\n  - {name: risk-low, kind: navigate}\n", false, "duplicate"},
		{"amount and risk together", "name: x\nscenarios:\n  - {name: a, kind: amount_filter, amount: {comparator: gt, value: 1}, risk: {selected: [NA]}}\n", false, "exactly one dimension"},
		{"range ends first", "name: x\nscenarios:\n  - {name: a, kind: custom_date_range, date: {from: today, to: today-3}}\n", false, "before it starts"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Parse([]byte(tt.yaml))
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.want)
			var se SchemaErrors
			assert.Equal(t, tt.schema, errors.As(err, &se))
		})
	}

	_, err := Parse([]byte("name: [unterminated"))
	assert.ErrorContains(t, err, "parse suite YAML")
}

func TestDefaultSuite(t *testing.T) {
	s := DefaultSuite()
	require.NoError(t, s.Validate())

	kinds := map[Kind]int{}
	for _, sc := range s.Scenarios {
		kinds[sc.Kind]++
	}
	for _, k := range Kinds {
		assert.NotZero(t, kinds[k], "default suite covers %s", k)
	}
	assert.Equal(t, 6, kinds[KindAmountFilter])
	assert.Equal(t, 5, kinds[KindRiskFilter])

	// the broad filters must match orders; exact or single-level ones may be empty
	required := map[string]int{}
	for _, sc := range s.Scenarios {
		if sc.Kind == KindAmountFilter || sc.Kind == KindRiskFilter {
			required[sc.Name] = sc.MinResults
		}
	}
	assert.Equal(t, map[string]int{
		"amount range 10-100":     1,
		"amount greater than 100": 1,
		"amount less than 100":    1,
		"amount equal to 10":      0,
		"amount at least 100":     1,
		"amount at most 10":       0,
		"risk low and medium":     1,
		"risk NA":                 0,
		"risk low":                0,
		"risk high":               0,
		"risk medium":             0,
	}, required)

	loaded, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, s, loaded)
}

func TestLoad(t *testing.T) {
	path := filepath.Join(t.TempDir(), "suite.yaml")
	require.NoError(t, os.WriteFile(path, []byte(suiteYAML), 0o644))
	s, err := Load(path)
	require.NoError(t, err)
	assert.Len(t, s.Scenarios, 5)

	_, err = Load(filepath.Join(t.TempDir(), "absent.yaml"))
	assert.Error(t, err)
}

func TestOnly(t *testing.T) {
	s := DefaultSuite()
	only, err := s.Only("EXPORT", "risk na")
	require.NoError(t, err)
	require.Len(t, only.Scenarios, 2)
	assert.Equal(t, "risk NA", only.Scenarios[0].Name, "suite order is kept")
	assert.False(t, only.Scenarios[1].Disabled, "a named scenario runs even when disabled")
	assert.True(t, s.Scenarios[len(s.Scenarios)-1].Disabled, "the source suite is untouched")

	_, err = s.Only("risk na", "nope")
	assert.ErrorContains(t, err, "nope")

	same, err := s.Only()
	require.NoError(t, err)
	assert.Same(t, s, same)
}

func TestDateSpecResolve(t *testing.T) {
	today := time.Date(2025, 4, 8, 17, 0, 0, 0, time.Local)
	r, err := DateSpec{From: "today-6"}.Resolve(today)
	require.NoError(t, err)
	assert.Equal(t, filter.Last7Days(today).Display(), r.Display())
	assert.Equal(t, filter.PresetCustom, r.Preset)

	r, err = DateSpec{From: "01-01-2025", To: "Today - 1"}.Resolve(today)
	require.NoError(t, err)
	assert.Equal(t, "01-01-2025 - 07-04-2025", r.Display())

	_, err = DateSpec{From: "yesterday"}.Resolve(today)
	assert.Error(t, err)
}

func TestScenarioFilter(t *testing.T) {
	assert.Equal(t, "risk in [NA, High Risk]",
		Scenario{Risk: &filter.RiskSet{Selected: []filter.RiskLabel{filter.RiskNA, filter.RiskHigh}}}.Filter())
	assert.Equal(t, "order id X-1", Scenario{OrderID: "X-1"}.Filter())
	assert.Equal(t, "date today-30 .. today", Scenario{Date: &DateSpec{From: "today-30"}}.Filter())
	assert.Equal(t, "", Scenario{Kind: KindNavigate}.Filter())
}
