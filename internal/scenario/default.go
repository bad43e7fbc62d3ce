package scenario

import (
	"github.com/dispatchlab/rtdcheck/internal/apicheck"
	"github.com/dispatchlab/rtdcheck/internal/filter"
)

const minAmountMessage = "The Min Amount field must be greater than or equal to 0.1."

func amount(c filter.Comparator, value float64) *filter.AmountCondition {
	return &filter.AmountCondition{Comparator: c, Value: value}
}

func amountRange(lo, hi float64) *filter.AmountCondition {
	return &filter.AmountCondition{Comparator: filter.Range, Min: lo, Max: hi}
}

func risks(labels ...filter.RiskLabel) *filter.RiskSet {
	return &filter.RiskSet{Selected: labels}
}

// DefaultSuite is the regression suite run when no suite file is given
func DefaultSuite() *Suite {
	invalidMin := apicheck.Expectation{Status: 422, Envelope: "error", MessageContains: minAmountMessage}
	listed := apicheck.Expectation{Status: 200, Envelope: "success"}

	return &Suite{
		Name: "rtd-regression",
		Scenarios: []Scenario{
			{Name: "login and open RTD", Kind: KindNavigate},
			{Name: "last 7 days", Kind: KindLast7Days},
			{Name: "custom date range", Kind: KindCustomDateRange, Date: &DateSpec{From: "01-01-2025"}},
			{
				Name: "unknown order id", Kind: KindInvalidOrderID, OrderID: "INVALID_ORDER_ID",
				Expect: apicheck.Expectation{Status: 200, Envelope: "success", EmptyData: true},
			},
			{Name: "amount min zero", Kind: KindAmountInvalidMin, Amount: amountRange(0, 100), Expect: invalidMin},
			{Name: "amount min negative", Kind: KindAmountInvalidMin, Amount: amountRange(-1, 100), Expect: invalidMin},
			{
				Name: "amount min above max", Kind: KindAmountMinExceedsMax, Amount: amountRange(100, 10),
				Toast: "Min Amount should not be greater than Max Amount!",
			},
			{Name: "amount range 10-100", Kind: KindAmountFilter, Amount: amountRange(10, 100), Expect: listed, MinResults: 1},
			{Name: "amount greater than 100", Kind: KindAmountFilter, Amount: amount(filter.GreaterThan, 100), Expect: listed, MinResults: 1},
			{Name: "amount less than 100", Kind: KindAmountFilter, Amount: amount(filter.LessThan, 100), Expect: listed, MinResults: 1},
			{Name: "amount equal to 10", Kind: KindAmountFilter, Amount: amount(filter.Equal, 10), Expect: listed},
			{Name: "amount at least 100", Kind: KindAmountFilter, Amount: amount(filter.AtLeast, 100), Expect: listed, MinResults: 1},
			{Name: "amount at most 10", Kind: KindAmountFilter, Amount: amount(filter.AtMost, 10), Expect: listed},
			{Name: "risk low and medium", Kind: KindRiskFilter, Risk: risks(filter.RiskLow, filter.RiskMedium), Expect: listed, MinResults: 1},
			{Name: "risk NA", Kind: KindRiskFilter, Risk: risks(filter.RiskNA), Expect: listed},
			{Name: "risk low", Kind: KindRiskFilter, Risk: risks(filter.RiskLow), Expect: listed},
			{Name: "risk high", Kind: KindRiskFilter, Risk: risks(filter.RiskHigh), Expect: listed},
			{Name: "risk medium", Kind: KindRiskFilter, Risk: risks(filter.RiskMedium), Expect: listed},
			{Name: "export", Kind: KindExport, Date: &DateSpec{From: "today-30"}, MinResults: 1, Disabled: true},
		},
	}
}
