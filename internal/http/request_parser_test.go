package http

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"portfel/internal/core"
)

func TestParseDateRange(t *testing.T) {
	today := core.NewDate(2024, time.June, 12)

	tests := []struct {
		name     string
		query    url.Values
		wantFrom core.Date
		wantTo   core.Date
		wantErr  bool
	}{
		{
			name:     "empty query uses current month",
			query:    url.Values{},
			wantFrom: core.NewDate(2024, time.June, 1),
			wantTo:   core.NewDate(2024, time.June, 30),
		},
		{
			name:     "explicit range",
			query:    url.Values{"from": {"2024-01-15"}, "to": {"2024-03-02"}},
			wantFrom: core.NewDate(2024, time.January, 15),
			wantTo:   core.NewDate(2024, time.March, 2),
		},
		{
			name:     "malformed bound falls back",
			query:    url.Values{"from": {"15.01.2024"}, "to": {" 2024-06-20 "}},
			wantFrom: core.NewDate(2024, time.June, 1),
			wantTo:   core.NewDate(2024, time.June, 20),
		},
		{
			name:     "overlong range keeps its end",
			query:    url.Values{"from": {"0001-01-01"}, "to": {"9999-12-31"}},
			wantFrom: core.NewDate(9989, time.December, 31),
			wantTo:   core.NewDate(9999, time.December, 31),
		},
		{
			name:     "ten years is allowed",
			query:    url.Values{"from": {"2014-06-12"}, "to": {"2024-06-12"}},
			wantFrom: core.NewDate(2014, time.June, 12),
			wantTo:   core.NewDate(2024, time.June, 12),
		},
		{
			name:    "inverted range",
			query:   url.Values{"from": {"2024-06-20"}, "to": {"2024-06-10"}},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r, err := ParseDateRange(tt.query, today)
			if tt.wantErr {
				assert.ErrorIs(t, err, errInvertedRange)
				return
			}
			require.NoError(t, err)
			assert.True(t, r.From.Equal(tt.wantFrom), "from = %s", r.From)
			assert.True(t, r.To.Equal(tt.wantTo), "to = %s", r.To)
		})
	}
}

func TestEventForm_Event(t *testing.T) {
	valid := url.Values{
		"title":    {"  Zakupy\x00 "},
		"type":     {"EXPENSE"},
		"amount":   {"12,345"},
		"date":     {"2024-06-03"},
		"category": {"DAILY_SHOPPING"},
	}

	e, err := parseEventForm(valid).Event()
	require.NoError(t, err)
	assert.Equal(t, "Zakupy", e.Title)
	assert.Equal(t, core.Expense, e.Type)
	assert.True(t, e.Amount.Equal(decimal.RequireFromString("12.35")))
	assert.Equal(t, "2024-06-03", e.Date.String())
	assert.Equal(t, core.DailyShopping, e.Category)

	tests := []struct {
		name    string
		change  url.Values
		wantErr error
	}{
		{"missing amount", url.Values{"amount": {""}}, core.ErrInvalidAmount},
		{"bad date", url.Values{"date": {"jutro"}}, core.ErrInvalidDate},
		{"bad nip", url.Values{"nip": {"123"}}, core.ErrInvalidNIP},
		{"bad invoice", url.Values{"invoiceNumber": {"FV/1"}}, errInvalidInvoiceNumber},
		{"empty title", url.Values{"title": {"   "}}, core.ErrEmptyTitle},
		{"unknown category", url.Values{"category": {"SPACE"}}, core.ErrUnknownCategory},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			form := url.Values{}
			for k, v := range valid {
				form[k] = v
			}
			for k, v := range tt.change {
				form[k] = v
			}
			_, err := parseEventForm(form).Event()
			assert.ErrorIs(t, err, tt.wantErr)
		})
	}
}

func TestEventForm_OptionalFields(t *testing.T) {
	form := url.Values{
		"title":         {"Paliwo"},
		"type":          {"EXPENSE"},
		"amount":        {"250"},
		"date":          {"2024-06-03"},
		"category":      {"TRANSPORT"},
		"paymentType":   {"CARD"},
		"nip":           {"526-000-12-46"},
		"invoiceNumber": {"2024061"},
		"base64String":  {"aGVsbG8="},
	}

	e, err := parseEventForm(form).Event()
	require.NoError(t, err)
	assert.Equal(t, core.Card, e.PaymentType)
	assert.Equal(t, json.Number("5260001246"), e.NIP)
	assert.Equal(t, json.Number("2024061"), e.InvoiceNumber)
	assert.Equal(t, "aGVsbG8=", e.Base64String)
	assert.Equal(t, "250", parseEventForm(form).Values()["amount"])
}

func TestSanitizeInput(t *testing.T) {
	assert.Equal(t, "a\tb\nc", sanitizeInput(" a\tb\nc\x07 "))
	assert.Equal(t, "", sanitizeInput("\x00\x01"))
}

func TestParseFormOrFail(t *testing.T) {
	req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader("title=ok"))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	assert.Nil(t, ParseFormOrFail(req))

	bad := httptest.NewRequest(http.MethodPost, "/", strings.NewReader("%zz"))
	bad.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	resp := ParseFormOrFail(bad)
	require.NotNil(t, resp)

	rec := httptest.NewRecorder()
	resp.Write(rec)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}
