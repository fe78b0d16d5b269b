package core

import (
	"sort"
	"strings"

	"github.com/shopspring/decimal"
)

// BaseCurrency is the currency every rate is expressed against.
const BaseCurrency = "PLN"

// Trend is the direction of a rate change.
type Trend int

const (
	TrendFlat Trend = iota
	TrendUp
	TrendDown
)

// CurrencyRate is a rate relative to BaseCurrency with the previous
// period's rate kept for the change indicator.
type CurrencyRate struct {
	Code     string
	Rate     decimal.Decimal
	PrevRate decimal.Decimal
}

// rateOrder is the order the backend stores its currencies in.
var rateOrder = []string{"EUR", "USD", "GBP", "CZK", "CHF", "NOK", "SEK", "DKK", "CNY", "HUF"}

var hundred = decimal.NewFromInt(100)

// ChangePercent returns (rate - prevRate) / prevRate * 100, or zero when
// there is no previous rate.
func (r CurrencyRate) ChangePercent() decimal.Decimal {
	if r.PrevRate.IsZero() {
		return decimal.Zero
	}
	return r.Rate.Sub(r.PrevRate).Div(r.PrevRate).Mul(hundred)
}

func (r CurrencyRate) Trend() Trend {
	switch r.ChangePercent().Sign() {
	case 1:
		return TrendUp
	case -1:
		return TrendDown
	default:
		return TrendFlat
	}
}

// Convert returns amount of BaseCurrency expressed in r's currency,
// rounded to three decimals.
func (r CurrencyRate) Convert(amount decimal.Decimal) decimal.Decimal {
	return amount.Mul(r.Rate).Round(3)
}

// RatesFromLists pairs the current and previous rate lists keyed by
// currency code. Codes are uppercased and values rounded to three
// decimals; a code missing from prev keeps its current rate as previous.
// Known currencies come first in backend order, the rest alphabetically.
func RatesFromLists(prev, current map[string]decimal.Decimal) []CurrencyRate {
	prevByCode := make(map[string]decimal.Decimal, len(prev))
	for code, v := range prev {
		prevByCode[strings.ToUpper(code)] = v
	}

	rates := make([]CurrencyRate, 0, len(current))
	for code, v := range current {
		code = strings.ToUpper(code)
		p, ok := prevByCode[code]
		if !ok {
			p = v
		}
		rates = append(rates, CurrencyRate{
			Code:     code,
			Rate:     v.Round(3),
			PrevRate: p.Round(3),
		})
	}

	sort.Slice(rates, func(i, j int) bool {
		oi, oj := orderOf(rates[i].Code), orderOf(rates[j].Code)
		if oi != oj {
			return oi < oj
		}
		return rates[i].Code < rates[j].Code
	})
	return rates
}

func orderOf(code string) int {
	for i, c := range rateOrder {
		if c == code {
			return i
		}
	}
	return len(rateOrder)
}

// FindRate returns the rate for code, case-insensitively.
func FindRate(rates []CurrencyRate, code string) (CurrencyRate, bool) {
	for _, r := range rates {
		if strings.EqualFold(r.Code, code) {
			return r, true
		}
	}
	return CurrencyRate{}, false
}
