package aggregate

import (
	"encoding/json"

	"github.com/shopspring/decimal"

	"portfel/internal/core"
)

// Series names used by the bar chart legend.
const (
	IncomeSeries  = "Przychód"
	ExpenseSeries = "Wydatek"
)

// ChartData is the labels + datasets document consumed by the browser
// charting script.
type ChartData struct {
	Labels   []string  `json:"labels"`
	Datasets []Dataset `json:"datasets"`
}

type Dataset struct {
	Label           string        `json:"label,omitempty"`
	Data            []json.Number `json:"data"`
	BackgroundColor []string      `json:"backgroundColor"`
}

// BarChart converts period buckets into an income series and an expense series.
func BarChart(buckets []Bucket) ChartData {
	chart := ChartData{
		Labels: make([]string, 0, len(buckets)),
		Datasets: []Dataset{
			{Label: IncomeSeries, Data: make([]json.Number, 0, len(buckets)), BackgroundColor: []string{Palette[3]}},
			{Label: ExpenseSeries, Data: make([]json.Number, 0, len(buckets)), BackgroundColor: []string{Palette[0]}},
		},
	}
	for _, b := range buckets {
		chart.Labels = append(chart.Labels, b.Label)
		chart.Datasets[0].Data = append(chart.Datasets[0].Data, number(b.Income))
		chart.Datasets[1].Data = append(chart.Datasets[1].Data, number(b.Expense))
	}
	return chart
}

// PieChart converts category totals into a single dataset; name turns a
// category code into its display label.
func PieChart(totals []CategoryTotal, name func(core.Category) string) ChartData {
	chart := ChartData{
		Labels:   make([]string, 0, len(totals)),
		Datasets: []Dataset{{Data: make([]json.Number, 0, len(totals))}},
	}
	for _, t := range totals {
		chart.Labels = append(chart.Labels, name(t.Category))
		chart.Datasets[0].Data = append(chart.Datasets[0].Data, number(t.Amount))
		chart.Datasets[0].BackgroundColor = append(chart.Datasets[0].BackgroundColor, t.Color)
	}
	return chart
}

func number(d decimal.Decimal) json.Number {
	return json.Number(d.StringFixed(2))
}
