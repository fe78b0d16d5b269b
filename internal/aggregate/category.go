package aggregate

import (
	"github.com/shopspring/decimal"

	"portfel/internal/core"
)

// Palette is the cyclic list of pie slice colors.
var Palette = []string{
	"#bd4a4a", "#c59347", "#ddc72e", "#4dd151", "#9966FF",
	"#29dcd0", "#dc4646", "#2e54c6", "#9328c5", "#0088FE",
}

// CategoryTotal is the expense sum of one category.
type CategoryTotal struct {
	Category core.Category
	Amount   decimal.Decimal
	Color    string
}

// ByCategory sums expense amounts per category in first-seen order. Income
// is never part of the breakdown and a category is only added by a non-zero
// expense, so zero slices do not exist. Colors follow the output order,
// wrapping around the palette.
func ByCategory(events []core.Event) []CategoryTotal {
	index := make(map[core.Category]int)
	var out []CategoryTotal
	for _, e := range events {
		if e.Type.Kind() != core.KindExpense || e.Amount.IsZero() {
			continue
		}
		i, ok := index[e.Category]
		if !ok {
			i = len(out)
			index[e.Category] = i
			out = append(out, CategoryTotal{
				Category: e.Category,
				Amount:   decimal.Zero,
				Color:    ColorAt(i),
			})
		}
		out[i].Amount = out[i].Amount.Add(e.Amount)
	}
	return out
}

// ColorAt returns the palette color for slice i.
func ColorAt(i int) string {
	return Palette[i%len(Palette)]
}

// AsMap returns the category -> amount view of totals.
func AsMap(totals []CategoryTotal) map[core.Category]decimal.Decimal {
	m := make(map[core.Category]decimal.Decimal, len(totals))
	for _, t := range totals {
		m[t.Category] = t.Amount
	}
	return m
}
