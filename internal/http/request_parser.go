// Package http provides the web frontend: routes, handlers and the glue
// between visitor state, the API clients and the templates.
//
// This file holds the request parsing helpers shared by the handlers.
package http

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/url"
	"strings"

	"portfel/internal/core"
	"portfel/internal/mapper"
)

const (
	// maxReceiptBytes bounds receipt uploads.
	maxReceiptBytes = 10 << 20
	// maxRangeYears bounds the dashboard range.
	maxRangeYears = 10
)

var errInvertedRange = errors.New("date from is after date to")

// DateRange is the inclusive dashboard range.
type DateRange struct {
	From core.Date
	To   core.Date
}

// DefaultRange is the calendar month containing today.
func DefaultRange(today core.Date) DateRange {
	return DateRange{From: today.StartOfMonth(), To: today.EndOfMonth()}
}

// ParseDateRange reads from and to (YYYY-MM-DD) from query. A missing or
// malformed bound falls back to the current month's; an inverted range is an
// error. A range longer than maxRangeYears keeps its end and has its start
// moved forward.
func ParseDateRange(query url.Values, today core.Date) (DateRange, error) {
	r := DefaultRange(today)
	if d, err := core.ParseDate(strings.TrimSpace(query.Get("from"))); err == nil {
		r.From = d
	}
	if d, err := core.ParseDate(strings.TrimSpace(query.Get("to"))); err == nil {
		r.To = d
	}
	if r.To.Before(r.From) {
		return r, errInvertedRange
	}
	if earliest := core.NewDate(r.To.Year()-maxRangeYears, r.To.Month(), r.To.Day()); r.From.Before(earliest) {
		r.From = earliest
	}
	return r, nil
}

// eventForm is the add-event dialog form.
type eventForm struct {
	Title         string
	Type          string
	Amount        string
	Date          string
	Category      string
	Description   string
	PaymentType   string
	NIP           string
	InvoiceNumber string
	Receipt       string
}

func parseEventForm(form url.Values) eventForm {
	return eventForm{
		Title:         sanitizeInput(form.Get("title")),
		Type:          strings.TrimSpace(form.Get("type")),
		Amount:        strings.TrimSpace(form.Get("amount")),
		Date:          strings.TrimSpace(form.Get("date")),
		Category:      strings.TrimSpace(form.Get("category")),
		Description:   sanitizeInput(form.Get("description")),
		PaymentType:   strings.TrimSpace(form.Get("paymentType")),
		NIP:           strings.TrimSpace(form.Get("nip")),
		InvoiceNumber: strings.TrimSpace(form.Get("invoiceNumber")),
		Receipt:       strings.TrimSpace(form.Get("base64String")),
	}
}

// Values returns the form as template values for re-rendering.
func (f eventForm) Values() map[string]string {
	return map[string]string{
		"title":         f.Title,
		"type":          f.Type,
		"amount":        f.Amount,
		"date":          f.Date,
		"category":      f.Category,
		"description":   f.Description,
		"paymentType":   f.PaymentType,
		"nip":           f.NIP,
		"invoiceNumber": f.InvoiceNumber,
		"base64String":  f.Receipt,
	}
}

// Event converts the form into an add-event payload. Type, category and
// payment type accept both codes and labels.
func (f eventForm) Event() (core.NewEvent, error) {
	e := core.NewEvent{
		Title:        f.Title,
		Type:         mapper.EventTypeCode(f.Type),
		Description:  f.Description,
		PaymentType:  mapper.PaymentTypeCode(f.PaymentType),
		Base64String: f.Receipt,
	}

	amount, err := core.ParseAmount(f.Amount)
	if err != nil {
		return e, err
	}
	e.Amount = amount

	e.Date, err = core.ParseDate(f.Date)
	if err != nil {
		return e, core.ErrInvalidDate
	}

	e.Category = core.Category(f.Category)
	if code, ok := mapper.CategoryCode(f.Category); ok {
		e.Category = code
	}

	if f.NIP != "" {
		nip, ok := core.NormalizeNIP(f.NIP)
		if !ok {
			return e, core.ErrInvalidNIP
		}
		e.NIP = json.Number(nip)
	}
	if f.InvoiceNumber != "" {
		if !isDigits(f.InvoiceNumber) {
			return e, errInvalidInvoiceNumber
		}
		e.InvoiceNumber = json.Number(f.InvoiceNumber)
	}
	return e, e.Validate()
}

var errInvalidInvoiceNumber = errors.New("invoice number must be digits")

func isDigits(s string) bool {
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return s != ""
}

// sanitizeInput removes control characters except tab and newlines and
// trims whitespace.
func sanitizeInput(s string) string {
	return strings.TrimSpace(strings.Map(func(r rune) rune {
		if r < 32 && r != 9 && r != 10 && r != 13 {
			return -1
		}
		return r
	}, s))
}

// formValue returns a sanitized form field.
func formValue(r *http.Request, key string) string {
	return sanitizeInput(r.FormValue(key))
}

// ParseFormOrFail parses the request form and returns an error response on
// failure, nil on success.
func ParseFormOrFail(r *http.Request) *HTMXResponseBuilder {
	if err := r.ParseForm(); err != nil {
		return BadRequestError("Nieprawidłowy format żądania.")
	}
	return nil
}
