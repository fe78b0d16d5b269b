package main

import (
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
	"github.com/spf13/cobra"

	"portfel/internal/core"
)

var hundredPLN = decimal.NewFromInt(100)

func ratesCmd(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "rates",
		Short: "Show currency rates",
		Long:  `Show how much of each currency one złoty buys, with the change since the previous table.`,
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			backend, jar, err := opts.backend()
			if err != nil {
				return err
			}
			rates, err := backend.Public(jar).CurrencyRates(cmd.Context())
			if err != nil {
				return fmt.Errorf("fetch rates: %w", err)
			}
			_, err = fmt.Fprintln(cmd.OutOrStdout(), renderRates(rates))
			return err
		},
	}
}

func renderRates(rates []core.CurrencyRate) string {
	if len(rates) == 0 {
		return subtleStyle.Render("Brak kursów walut.")
	}
	rows := [][]string{{"Waluta", "Za 1 PLN", "Zmiana", "100 PLN"}}
	for _, r := range rates {
		change := r.ChangePercent().Abs().StringFixed(2) + "%"
		switch r.Trend() {
		case core.TrendUp:
			change = incomeStyle.Render("▲ " + change)
		case core.TrendDown:
			change = expenseStyle.Render("▼ " + change)
		default:
			change = subtleStyle.Render("= " + change)
		}
		rows = append(rows, []string{
			strings.ToUpper(r.Code),
			r.Rate.StringFixed(4),
			change,
			r.Convert(hundredPLN).StringFixed(3),
		})
	}
	return titleStyle.Render("Kursy walut") + "\n" + table(rows)
}
