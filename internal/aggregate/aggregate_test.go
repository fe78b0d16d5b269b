package aggregate

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"portfel/internal/core"
)

func day(y int, m time.Month, d int) core.Date { return core.NewDate(y, m, d) }

func amt(s string) decimal.Decimal { return decimal.RequireFromString(s) }

func ev(t core.EventType, amount string, date core.Date, cat core.Category) core.Event {
	return core.Event{Title: "x", Type: t, Amount: amt(amount), Date: date, Category: cat}
}

func assertAmount(t *testing.T, want string, got decimal.Decimal, msgAndArgs ...any) {
	t.Helper()
	assert.True(t, got.Equal(amt(want)), append([]any{"want %s, got %s", want, got}, msgAndArgs...)...)
}

// dashboardScenario is the reference list used across the aggregation tests.
func dashboardScenario() []core.Event {
	return []core.Event{
		ev(core.Income, "1000", day(2024, time.January, 5), core.SalariesAndIncome),
		ev(core.Expense, "300", day(2024, time.January, 10), core.DailyShopping),
		ev(core.Expense, "200", day(2024, time.February, 1), core.Transport),
	}
}

func TestBalance(t *testing.T) {
	t.Run("empty list", func(t *testing.T) {
		got := Balance(nil)
		assert.True(t, got.Income.IsZero())
		assert.True(t, got.Expense.IsZero())
		assert.True(t, got.Balance.IsZero())
	})

	t.Run("reference scenario", func(t *testing.T) {
		got := Balance(dashboardScenario())
		assertAmount(t, "1000", got.Income)
		assertAmount(t, "500", got.Expense)
		assertAmount(t, "500", got.Balance)
	})

	t.Run("unknown types contribute nothing", func(t *testing.T) {
		events := append(dashboardScenario(),
			ev("TRANSFER", "999", day(2024, time.January, 6), core.Others),
			ev("", "1", day(2024, time.January, 6), core.Others),
		)
		got := Balance(events)
		assertAmount(t, "1000", got.Income)
		assertAmount(t, "500", got.Expense)
	})

	t.Run("localized aliases", func(t *testing.T) {
		got := Balance([]core.Event{
			ev(core.IncomeLabel, "10.10", day(2024, time.May, 1), core.Others),
			ev(core.ExpenseLabel, "0.20", day(2024, time.May, 1), core.Others),
		})
		assertAmount(t, "10.1", got.Income)
		assertAmount(t, "0.2", got.Expense)
		assertAmount(t, "9.9", got.Balance)
	})

	t.Run("balance is exact", func(t *testing.T) {
		var events []core.Event
		for i := 0; i < 10; i++ {
			events = append(events, ev(core.Expense, "0.1", day(2024, time.May, 1), core.Others))
		}
		events = append(events, ev(core.Income, "1", day(2024, time.May, 1), core.Others))
		got := Balance(events)
		assert.True(t, got.Balance.IsZero(), got.Balance.String())
		assert.True(t, got.Income.Sub(got.Expense).Equal(got.Balance))
	})
}

func TestRestrict(t *testing.T) {
	got := Restrict(dashboardScenario(), day(2024, time.January, 6), day(2024, time.January, 31))
	require.Len(t, got, 1)
	assert.Equal(t, core.DailyShopping, got[0].Category)
}

func TestByCategory(t *testing.T) {
	t.Run("expenses only", func(t *testing.T) {
		got := ByCategory([]core.Event{
			ev(core.Expense, "50", day(2024, time.January, 1), core.DailyShopping),
			ev(core.Expense, "25", day(2024, time.January, 2), core.DailyShopping),
			ev(core.Income, "5000", day(2024, time.January, 3), core.SalariesAndIncome),
		})
		m := AsMap(got)
		require.Len(t, m, 1)
		assertAmount(t, "75", m[core.DailyShopping])
	})

	t.Run("first seen order and colors", func(t *testing.T) {
		got := ByCategory([]core.Event{
			ev(core.Expense, "1", day(2024, time.January, 1), core.Transport),
			ev(core.Expense, "2", day(2024, time.January, 1), core.Pets),
			ev(core.ExpenseLabel, "3", day(2024, time.January, 1), core.Transport),
		})
		require.Len(t, got, 2)
		assert.Equal(t, core.Transport, got[0].Category)
		assert.Equal(t, Palette[0], got[0].Color)
		assertAmount(t, "4", got[0].Amount)
		assert.Equal(t, core.Pets, got[1].Category)
		assert.Equal(t, Palette[1], got[1].Color)
	})

	t.Run("zero amounts never create a slice", func(t *testing.T) {
		got := ByCategory([]core.Event{
			ev(core.Expense, "0", day(2024, time.January, 1), core.Pets),
			ev(core.Expense, "7", day(2024, time.January, 1), core.Transport),
		})
		require.Len(t, got, 1)
		assert.Equal(t, core.Transport, got[0].Category)
	})

	t.Run("palette wraps", func(t *testing.T) {
		var events []core.Event
		for _, c := range core.Categories()[:12] {
			events = append(events, ev(core.Expense, "1", day(2024, time.January, 1), c))
		}
		got := ByCategory(events)
		require.Len(t, got, 12)
		assert.Equal(t, Palette[0], got[10].Color)
		assert.Equal(t, Palette[1], got[11].Color)
	})
}

func labels(buckets []Bucket) []string {
	out := make([]string, len(buckets))
	for i, b := range buckets {
		out[i] = b.Label
	}
	return out
}

func TestPeriodsMonthMode(t *testing.T) {
	t.Run("reference scenario", func(t *testing.T) {
		got := Periods(dashboardScenario(), day(2024, time.January, 1), day(2024, time.February, 29))
		require.Len(t, got, 2)
		assert.Equal(t, "styczeń 2024", got[0].Label)
		assertAmount(t, "1000", got[0].Income)
		assertAmount(t, "300", got[0].Expense)
		assert.Equal(t, "luty 2024", got[1].Label)
		assertAmount(t, "0", got[1].Income)
		assertAmount(t, "200", got[1].Expense)
	})

	t.Run("partial months at both edges", func(t *testing.T) {
		from, to := day(2024, time.January, 15), day(2024, time.March, 20)
		require.Equal(t, 65, from.DaysUntil(to))
		got := Periods(nil, from, to)
		assert.Equal(t, []string{"15.01-31.01", "luty 2024", "1.03-20.03"}, labels(got))
	})

	t.Run("single day edge bucket", func(t *testing.T) {
		got := Periods(nil, day(2023, time.November, 30), day(2024, time.January, 1))
		assert.Equal(t, []string{"30.11", "grudzień 2023", "1.01"}, labels(got))
	})

	t.Run("one day past the threshold switches to months", func(t *testing.T) {
		from := day(2024, time.January, 1)
		assert.Equal(t, ModeWeek, ModeFor(from, from.AddDays(31)))
		assert.Equal(t, ModeMonth, ModeFor(from, from.AddDays(32)))
	})
}

func TestPeriodsWeekMode(t *testing.T) {
	t.Run("range inside one week", func(t *testing.T) {
		// Wednesday to Sunday
		got := Periods(nil, day(2024, time.January, 3), day(2024, time.January, 7))
		require.Len(t, got, 1)
		assert.Equal(t, day(2024, time.January, 1), got[0].Start)
		assert.Equal(t, "1.01-7.01", got[0].Label)
	})

	t.Run("seven days from a Wednesday cross a Monday", func(t *testing.T) {
		got := Periods(nil, day(2024, time.January, 3), day(2024, time.January, 9))
		assert.Equal(t, []string{"1.01-7.01", "8.01-9.01"}, labels(got))
	})

	t.Run("last bucket of a single day", func(t *testing.T) {
		got := Periods(nil, day(2024, time.January, 3), day(2024, time.January, 8))
		assert.Equal(t, []string{"1.01-7.01", "8.01"}, labels(got))
	})

	t.Run("full month in week mode keeps day ranges", func(t *testing.T) {
		got := Periods(nil, day(2024, time.February, 1), day(2024, time.February, 29))
		assert.Equal(t, []string{"29.01-4.02", "5.02-11.02", "12.02-18.02", "19.02-25.02", "26.02-29.02"}, labels(got))
	})

	t.Run("events before from are excluded even inside the first week", func(t *testing.T) {
		events := []core.Event{
			ev(core.Expense, "40", day(2024, time.January, 1), core.Pets),
			ev(core.Expense, "2", day(2024, time.January, 4), core.Pets),
			ev(core.Income, "9", day(2024, time.January, 8), core.Pets),
			ev(core.Income, "100", day(2024, time.January, 10), core.Pets),
		}
		got := Periods(events, day(2024, time.January, 3), day(2024, time.January, 9))
		require.Len(t, got, 2)
		assertAmount(t, "2", got[0].Expense)
		assertAmount(t, "0", got[0].Income)
		assertAmount(t, "9", got[1].Income)
	})
}

func TestPeriodsMatchesBalance(t *testing.T) {
	events := []core.Event{
		ev(core.Income, "1000", day(2023, time.December, 28), core.SalariesAndIncome),
		ev(core.Expense, "12.34", day(2024, time.January, 1), core.DailyShopping),
		ev(core.Expense, "300", day(2024, time.January, 10), core.HomeBills),
		ev(core.IncomeLabel, "50", day(2024, time.January, 21), core.GiftsAndFamily),
		ev("LOAN", "77", day(2024, time.January, 22), core.LoansAndCredits),
		ev(core.Expense, "200", day(2024, time.February, 1), core.Transport),
		ev(core.Expense, "8.5", day(2024, time.April, 30), core.Pets),
	}
	ranges := [][2]core.Date{
		{day(2024, time.January, 1), day(2024, time.January, 31)},
		{day(2024, time.January, 3), day(2024, time.January, 9)},
		{day(2023, time.December, 1), day(2024, time.April, 30)},
		{day(2024, time.January, 21), day(2024, time.January, 21)},
	}
	for _, r := range ranges {
		from, to := r[0], r[1]
		want := Balance(Restrict(events, from, to))
		income, expense := decimal.Zero, decimal.Zero
		for _, b := range Periods(events, from, to) {
			income = income.Add(b.Income)
			expense = expense.Add(b.Expense)
			assert.False(t, b.Start.After(b.End))
		}
		assert.True(t, income.Equal(want.Income), "%s..%s income", from, to)
		assert.True(t, expense.Equal(want.Expense), "%s..%s expense", from, to)
	}
}

func TestPeriodsContiguousAndSorted(t *testing.T) {
	got := Periods(nil, day(2024, time.January, 15), day(2024, time.December, 3))
	require.NotEmpty(t, got)
	assert.Equal(t, day(2024, time.January, 15), got[0].Start)
	assert.Equal(t, day(2024, time.December, 3), got[len(got)-1].End)
	for i := 1; i < len(got); i++ {
		assert.Equal(t, got[i-1].End.AddDays(1), got[i].Start)
	}
}

func TestPeriodsInvertedRange(t *testing.T) {
	assert.Empty(t, Periods(dashboardScenario(), day(2024, time.February, 1), day(2024, time.January, 1)))
}

func TestCharts(t *testing.T) {
	buckets := Periods(dashboardScenario(), day(2024, time.January, 1), day(2024, time.February, 29))
	bar, err := json.Marshal(BarChart(buckets))
	require.NoError(t, err)
	assert.JSONEq(t, `{
		"labels": ["styczeń 2024", "luty 2024"],
		"datasets": [
			{"label": "Przychód", "data": [1000.00, 0.00], "backgroundColor": ["#4dd151"]},
			{"label": "Wydatek", "data": [300.00, 200.00], "backgroundColor": ["#bd4a4a"]}
		]
	}`, string(bar))

	pie := PieChart(ByCategory(dashboardScenario()), func(c core.Category) string { return string(c) })
	assert.Equal(t, []string{"DAILY_SHOPPING", "TRANSPORT"}, pie.Labels)
	assert.Equal(t, []string{Palette[0], Palette[1]}, pie.Datasets[0].BackgroundColor)
	assert.Equal(t, []json.Number{"300.00", "200.00"}, pie.Datasets[0].Data)
}
