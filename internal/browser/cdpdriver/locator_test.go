package cdpdriver

import (
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
)

func TestSelectStep(t *testing.T) {
	tests := []struct {
		selector string
		want     step
	}{
		{"td.order_risk", step{Selector: "td.order_risk", CSS: "td.order_risk", Nth: -1, Query: true}},
		{"button:has-text('Apply')", step{Selector: "button:has-text('Apply')", CSS: "button", Text: "Apply", Nth: -1, Query: true}},
		{`th.order_amount:has-text("Amount")`, step{Selector: `th.order_amount:has-text("Amount")`, CSS: "th.order_amount", Text: "Amount", Nth: -1, Query: true}},
		{":has-text('Filters')", step{Selector: ":has-text('Filters')", CSS: "*", Text: "Filters", Nth: -1, Query: true}},
	}
	for _, tt := range tests {
		t.Run(tt.selector, func(t *testing.T) {
			if diff := cmp.Diff(tt.want, selectStep(tt.selector)); diff != "" {
				t.Errorf("selectStep mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestLocatorChain(t *testing.T) {
	p := &Page{}
	rows := p.Locator("table tbody").Locator("tr")
	cell := rows.Nth(2).Locator("td.order_risk")
	assert.Equal(t, "table tbody >> tr >> nth=2 >> td.order_risk", cell.String())
	assert.Equal(t, "table tbody >> tr", rows.String(), "chaining does not mutate the parent")

	steps, err := json.Marshal(cell.(*Locator).steps)
	assert.NoError(t, err)
	assert.JSONEq(t, `[
		{"css":"table tbody","nth":-1,"query":true},
		{"css":"tr","nth":-1,"query":true},
		{"nth":2,"query":false},
		{"css":"td.order_risk","nth":-1,"query":true}
	]`, string(steps))
}
