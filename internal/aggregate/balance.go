// Package aggregate turns event lists into the numbers the dashboard shows:
// overall totals, per-category expense sums for the pie chart and per-period
// income/expense sums for the bar chart.
//
// Every function is pure and total. Events with an unrecognized type are
// skipped, never reported as errors.
package aggregate

import (
	"github.com/shopspring/decimal"

	"portfel/internal/core"
)

// Totals is the income/expense/balance triple of a list of events.
type Totals struct {
	Income  decimal.Decimal
	Expense decimal.Decimal
	Balance decimal.Decimal
}

// Balance sums income and expense over events. The caller filters the list
// to the range it wants; no date filtering happens here.
func Balance(events []core.Event) Totals {
	income, expense := decimal.Zero, decimal.Zero
	for _, e := range events {
		switch e.Type.Kind() {
		case core.KindIncome:
			income = income.Add(e.Amount)
		case core.KindExpense:
			expense = expense.Add(e.Amount)
		}
	}
	return Totals{
		Income:  income,
		Expense: expense,
		Balance: income.Sub(expense),
	}
}

// Restrict returns the events dated within [from, to], keeping order.
func Restrict(events []core.Event, from, to core.Date) []core.Event {
	out := make([]core.Event, 0, len(events))
	for _, e := range events {
		if e.Date.Within(from, to) {
			out = append(out, e)
		}
	}
	return out
}
