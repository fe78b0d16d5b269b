package main

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"portfel/internal/aggregate"
	"portfel/internal/core"
	"portfel/internal/mapper"
)

func summaryCmd(opts *options) *cobra.Command {
	var from, to string
	cmd := &cobra.Command{
		Use:   "summary",
		Short: "Show the account summary for a date range",
		Long: `Log in with PORTFEL_USERNAME and PORTFEL_PASSWORD and print the balance,
the expense breakdown by category and the income/expense per period.

The range defaults to the current month up to today.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			start, end, err := summaryRange(from, to, core.Today())
			if err != nil {
				return err
			}
			username, password := os.Getenv("PORTFEL_USERNAME"), os.Getenv("PORTFEL_PASSWORD")
			if username == "" || password == "" {
				return errors.New("PORTFEL_USERNAME and PORTFEL_PASSWORD must be set")
			}

			backend, jar, err := opts.backend()
			if err != nil {
				return err
			}
			ctx := cmd.Context()
			if err := backend.Public(jar).Login(ctx, username, password); err != nil {
				return fmt.Errorf("login: %w", err)
			}
			page, err := backend.Protected(jar, nil).Events(ctx, start, end)
			if err != nil {
				return fmt.Errorf("fetch events: %w", err)
			}
			var events []core.Event
			if page != nil {
				events = page.Events
			}
			_, err = fmt.Fprintln(cmd.OutOrStdout(), renderSummary(events, start, end))
			return err
		},
	}
	cmd.Flags().StringVar(&from, "from", "", "first day (YYYY-MM-DD)")
	cmd.Flags().StringVar(&to, "to", "", "last day (YYYY-MM-DD)")
	return cmd
}

// summaryRange resolves the flags against today.
func summaryRange(from, to string, today core.Date) (core.Date, core.Date, error) {
	start, end := today.StartOfMonth(), today
	var err error
	if from != "" {
		if start, err = core.ParseDate(from); err != nil {
			return start, end, fmt.Errorf("--from: %w", err)
		}
	}
	if to != "" {
		if end, err = core.ParseDate(to); err != nil {
			return start, end, fmt.Errorf("--to: %w", err)
		}
	}
	if end.Before(start) {
		return start, end, errors.New("--from must not be after --to")
	}
	return start, end, nil
}

func renderSummary(events []core.Event, from, to core.Date) string {
	events = aggregate.Restrict(events, from, to)
	totals := aggregate.Balance(events)

	var b strings.Builder
	b.WriteString(titleStyle.Render(fmt.Sprintf("Podsumowanie od %s do %s", from, to)))
	b.WriteString("\n")

	balance := incomeStyle.Render(core.FormatAmount(totals.Balance))
	if totals.Balance.IsNegative() {
		balance = expenseStyle.Render(core.FormatAmount(totals.Balance))
	}
	b.WriteString(boxStyle.Render(strings.Join([]string{
		"Przychody: " + incomeStyle.Render(core.FormatAmount(totals.Income)),
		"Wydatki:   " + expenseStyle.Render(core.FormatAmount(totals.Expense)),
		"Saldo:     " + balance,
	}, "\n")))
	b.WriteString("\n\n")

	if len(events) == 0 {
		b.WriteString(subtleStyle.Render("Brak wydarzeń w wybranym okresie."))
		return b.String()
	}

	if categories := aggregate.ByCategory(events); len(categories) > 0 {
		rows := [][]string{{"Kategoria", "Wydatki"}}
		for _, c := range categories {
			rows = append(rows, []string{mapper.CategoryName(c.Category), core.FormatAmount(c.Amount)})
		}
		b.WriteString(table(rows))
		b.WriteString("\n\n")
	}

	rows := [][]string{{"Okres", "Przychody", "Wydatki"}}
	for _, bucket := range aggregate.Periods(events, from, to) {
		rows = append(rows, []string{bucket.Label, core.FormatAmount(bucket.Income), core.FormatAmount(bucket.Expense)})
	}
	b.WriteString(table(rows))
	return b.String()
}
