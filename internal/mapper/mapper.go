// Package mapper translates canonical codes to the Polish labels shown to
// users and back.
package mapper

import (
	"strings"

	"portfel/internal/core"
)

type categoryEntry struct {
	label string
	code  core.Category
}

// categoryTable is ordered by label; it is also the order of category pickers.
var categoryTable = []categoryEntry{
	{"elektronika", core.Electronics},
	{"finanse i płatności", core.FinanceAndPayments},
	{"inwestycje i lokaty", core.InvestmentsAndSavings},
	{"kultura i edukacja", core.CultureAndEducation},
	{"moda i dodatki", core.FashionAndAccessories},
	{"nieruchomości", core.RealEstate},
	{"opłaty domowe", core.HomeBills},
	{"pożyczki i kredyty", core.LoansAndCredits},
	{"prezenty i rodzina", core.GiftsAndFamily},
	{"przelewy i transakcje", core.TransfersAndTransactions},
	{"rozrywka i wypoczynek", core.EntertainmentAndLeisure},
	{"transport", core.Transport},
	{"usługi i serwis", core.ServicesAndRepairs},
	{"wynagrodzenia i przychody", core.SalariesAndIncome},
	{"wyposażenie", core.Equipment},
	{"zakupy codzienne", core.DailyShopping},
	{"zdrowie i uroda", core.HealthAndBeauty},
	{"zwierzęta domowe", core.Pets},
	{"inne", core.Others},
}

var eventTypeLabels = map[core.EventType]string{
	core.Income:  string(core.IncomeLabel),
	core.Expense: string(core.ExpenseLabel),
}

type paymentEntry struct {
	code  core.PaymentType
	label string
}

var paymentTable = []paymentEntry{
	{core.Card, "Karta"},
	{core.Cash, "Gotówka"},
	{core.Blik, "Blik"},
	{core.Other, "Inne"},
}

// CategoryCode returns the code of a category label. Labels must match
// exactly.
func CategoryCode(label string) (core.Category, bool) {
	for _, e := range categoryTable {
		if e.label == label {
			return e.code, true
		}
	}
	return "", false
}

// CategoryLabel returns the label of a category code, matching the code
// case-insensitively.
func CategoryLabel(code core.Category) (string, bool) {
	for _, e := range categoryTable {
		if strings.EqualFold(string(e.code), string(code)) {
			return e.label, true
		}
	}
	return "", false
}

// CategoryName is CategoryLabel falling back to the raw code, for views.
func CategoryName(code core.Category) string {
	if label, ok := CategoryLabel(code); ok {
		return label
	}
	return string(code)
}

// CategoryOption is one entry of a category picker.
type CategoryOption struct {
	Code  core.Category
	Label string
}

// CategoryOptions lists every category in label order.
func CategoryOptions() []CategoryOption {
	out := make([]CategoryOption, len(categoryTable))
	for i, e := range categoryTable {
		out[i] = CategoryOption{Code: e.code, Label: e.label}
	}
	return out
}

// EventTypeLabel returns the label of an event type; unknown values pass
// through unchanged.
func EventTypeLabel(t core.EventType) string {
	if label, ok := eventTypeLabels[t]; ok {
		return label
	}
	return string(t)
}

// EventTypeCode is the inverse of EventTypeLabel; unknown values pass
// through unchanged.
func EventTypeCode(label string) core.EventType {
	for code, l := range eventTypeLabels {
		if l == label {
			return code
		}
	}
	return core.EventType(label)
}

// PaymentTypeLabel returns the label of a payment type; unknown values pass
// through unchanged.
func PaymentTypeLabel(p core.PaymentType) string {
	for _, e := range paymentTable {
		if e.code == p {
			return e.label
		}
	}
	return string(p)
}

// PaymentTypeCode returns the code of a payment label, case-insensitively;
// unknown values pass through unchanged.
func PaymentTypeCode(label string) core.PaymentType {
	for _, e := range paymentTable {
		if strings.EqualFold(e.label, label) {
			return e.code
		}
	}
	return core.PaymentType(label)
}
