package aggregate

import (
	"strconv"

	"github.com/shopspring/decimal"

	"portfel/internal/core"
)

// WeekModeMaxDays is the longest range, in days between its ends, that is
// still charted week by week. Longer ranges are charted by calendar month.
const WeekModeMaxDays = 31

// Mode is the bucketing granularity chosen for a range.
type Mode int

const (
	ModeWeek Mode = iota
	ModeMonth
)

// Bucket is one bar of the income/expense chart.
type Bucket struct {
	Start   core.Date
	End     core.Date
	Label   string
	Income  decimal.Decimal
	Expense decimal.Decimal
}

var polishMonths = [...]string{
	"styczeń", "luty", "marzec", "kwiecień", "maj", "czerwiec",
	"lipiec", "sierpień", "wrzesień", "październik", "listopad", "grudzień",
}

// ModeFor returns the granularity used for [from, to].
func ModeFor(from, to core.Date) Mode {
	if from.DaysUntil(to) <= WeekModeMaxDays {
		return ModeWeek
	}
	return ModeMonth
}

// Periods partitions [from, to] into buckets and sums income and expense of
// the events falling into each.
//
// Short ranges use Monday-start weeks; the first week starts on the Monday
// on or before from and the last one is cut at to. Longer ranges use
// calendar months, cut at both ends. Every bucket is returned even when no
// event falls into it, ordered by start. Events outside [from, to] are
// ignored; an event goes to the first bucket containing its date. An
// inverted range yields no buckets.
func Periods(events []core.Event, from, to core.Date) []Bucket {
	if to.Before(from) {
		return nil
	}

	mode := ModeFor(from, to)
	var buckets []Bucket
	if mode == ModeWeek {
		buckets = weeks(from, to)
	} else {
		buckets = months(from, to)
	}
	for i := range buckets {
		buckets[i].Label = label(buckets[i].Start, buckets[i].End, mode)
	}

	for _, e := range events {
		if !e.Date.Within(from, to) {
			continue
		}
		kind := e.Type.Kind()
		if kind == core.KindUnknown {
			continue
		}
		for i := range buckets {
			if !e.Date.Within(buckets[i].Start, buckets[i].End) {
				continue
			}
			if kind == core.KindIncome {
				buckets[i].Income = buckets[i].Income.Add(e.Amount)
			} else {
				buckets[i].Expense = buckets[i].Expense.Add(e.Amount)
			}
			break
		}
	}
	return buckets
}

func weeks(from, to core.Date) []Bucket {
	var out []Bucket
	for start := from.StartOfWeek(); !start.After(to); start = start.AddDays(7) {
		end := start.AddDays(6)
		if end.After(to) {
			end = to
		}
		out = append(out, newBucket(start, end))
	}
	return out
}

func months(from, to core.Date) []Bucket {
	var out []Bucket
	for start := from; !start.After(to); {
		end := start.EndOfMonth()
		if end.After(to) {
			end = to
		}
		out = append(out, newBucket(start, end))
		start = end.AddDays(1)
	}
	return out
}

func newBucket(start, end core.Date) Bucket {
	return Bucket{Start: start, End: end, Income: decimal.Zero, Expense: decimal.Zero}
}

func label(start, end core.Date, mode Mode) string {
	switch {
	case mode == ModeMonth && start.Day() == 1 && end.Equal(start.EndOfMonth()):
		return polishMonths[start.Month()-1] + " " + strconv.Itoa(start.Year())
	case start.Equal(end):
		return dayLabel(start)
	default:
		return dayLabel(start) + "-" + dayLabel(end)
	}
}

// dayLabel formats d as D.MM.
func dayLabel(d core.Date) string {
	m := int(d.Month())
	mm := strconv.Itoa(m)
	if m < 10 {
		mm = "0" + mm
	}
	return strconv.Itoa(d.Day()) + "." + mm
}
