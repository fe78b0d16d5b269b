package core

import "github.com/shopspring/decimal"

// fallbackThreshold is the top score at or below which the catch-all
// category is offered before the model's picks.
const fallbackThreshold = 0.5

// CategorySuggestion is one scored category proposed for an event title.
type CategorySuggestion struct {
	Category Category
	Score    float64
}

// WithFallback adds the Others category to a ranked suggestion list: first
// when the best score is at or below 0.5, last otherwise. An Others entry
// already proposed by the model is moved rather than duplicated.
func WithFallback(ranked []CategorySuggestion) []CategorySuggestion {
	out := make([]CategorySuggestion, 0, len(ranked)+1)
	for _, s := range ranked {
		if s.Category != Others {
			out = append(out, s)
		}
	}
	fallback := CategorySuggestion{Category: Others}
	if len(out) == 0 || out[0].Score <= fallbackThreshold {
		return append([]CategorySuggestion{fallback}, out...)
	}
	return append(out, fallback)
}

// ReceiptScan is the result of trimming a receipt photo. Every extracted
// field is optional; fields that failed validation are left empty.
type ReceiptScan struct {
	Image             []byte
	ContentType       string
	NIP               string
	PaymentType       PaymentType
	Sum               decimal.NullDecimal
	TransactionNumber string
	Date              Date
}

// HasFields reports whether any OCR field survived validation.
func (r ReceiptScan) HasFields() bool {
	return r.NIP != "" || r.PaymentType != "" || r.Sum.Valid || r.TransactionNumber != "" || !r.Date.IsZero()
}
