package devapi

import (
	_ "embed"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"portfel/internal/core"
	applog "portfel/internal/log"
	"portfel/internal/storage"
)

//go:embed demo-data.json
var demoData []byte

func (s *Server) handleAddEvent(w http.ResponseWriter, r *http.Request, user storage.User) {
	ctx := r.Context()
	var payload core.NewEvent
	if err := decodeJSON(w, r, &payload); err != nil {
		w.WriteHeader(http.StatusBadRequest)
		return
	}
	if err := payload.Validate(); err != nil {
		writeText(w, http.StatusBadRequest, err.Error())
		return
	}
	if payload.Base64String != "" {
		if _, err := base64.StdEncoding.DecodeString(payload.Base64String); err != nil {
			writeText(w, http.StatusBadRequest, "invalid receipt image")
			return
		}
	}

	e := core.Event{
		Title:         payload.Title,
		Type:          payload.Type,
		Amount:        payload.Amount,
		Date:          payload.Date,
		Category:      payload.Category,
		Description:   payload.Description,
		PaymentType:   payload.PaymentType,
		NIP:           payload.NIP,
		InvoiceNumber: payload.InvoiceNumber,
		ReceiptImage:  payload.Base64String,
	}
	if _, err := s.store.AddEvent(ctx, user.ID, e); err != nil {
		s.logger.ErrorContext(ctx, "Adding event failed", applog.FieldError, err)
		w.WriteHeader(http.StatusInternalServerError)
		return
	}
	s.logger.InfoContext(ctx, "Event added",
		applog.FieldOperation, applog.OpCreate,
		applog.FieldUsername, user.Username,
		applog.FieldEventType, e.Type,
		applog.FieldAmount, e.Amount.String())
	w.WriteHeader(http.StatusCreated)
}

type eventPage struct {
	FirstEventDate core.Date    `json:"firstEventDate"`
	Events         []core.Event `json:"events"`
}

func (s *Server) handleGetEvents(w http.ResponseWriter, r *http.Request, user storage.User) {
	ctx := r.Context()
	q := r.URL.Query()
	from, err := core.ParseDate(q.Get("startDate"))
	if err != nil {
		w.WriteHeader(http.StatusBadRequest)
		return
	}
	to, err := core.ParseDate(q.Get("endDate"))
	if err != nil {
		w.WriteHeader(http.StatusBadRequest)
		return
	}

	first, ok, err := s.store.FirstEventDate(ctx, user.ID)
	if err != nil {
		s.logger.ErrorContext(ctx, "First event lookup failed", applog.FieldError, err)
		w.WriteHeader(http.StatusInternalServerError)
		return
	}
	if !ok {
		w.WriteHeader(http.StatusNotFound)
		return
	}
	events, err := s.store.EventsBetween(ctx, user.ID, from, to)
	if err != nil {
		s.logger.ErrorContext(ctx, "Listing events failed", applog.FieldError, err)
		w.WriteHeader(http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, eventPage{FirstEventDate: first, Events: events})
}

func (s *Server) handleLoadDemo(w http.ResponseWriter, r *http.Request, user storage.User) {
	ctx := r.Context()
	events, err := DemoEvents(core.DateOf(s.now()))
	if err == nil {
		err = s.store.AddEvents(ctx, user.ID, events)
	}
	if err != nil {
		s.logger.ErrorContext(ctx, "Loading demo events failed", applog.FieldError, err)
		w.WriteHeader(http.StatusInternalServerError)
		return
	}
	s.logger.InfoContext(ctx, "Demo events loaded",
		applog.FieldOperation, applog.OpLoadDemo,
		applog.FieldUsername, user.Username,
		applog.FieldEventCount, len(events))
	w.WriteHeader(http.StatusCreated)
}

// DemoEvents returns the demonstration set moved by whole months so that
// its newest month is the month of today. Days past the end of a shorter
// month are clamped to its last day.
func DemoEvents(today core.Date) ([]core.Event, error) {
	var events []core.Event
	if err := json.Unmarshal(demoData, &events); err != nil {
		return nil, fmt.Errorf("decode demo data: %w", err)
	}
	if len(events) == 0 {
		return events, nil
	}
	latest := events[0].Date
	for _, e := range events[1:] {
		if e.Date.After(latest) {
			latest = e.Date
		}
	}
	shift := monthIndex(today) - monthIndex(latest)
	for i := range events {
		events[i].Date = shiftMonths(events[i].Date, shift)
	}
	return events, nil
}

func monthIndex(d core.Date) int {
	return d.Year()*12 + int(d.Month()) - 1
}

func shiftMonths(d core.Date, n int) core.Date {
	first := core.NewDate(d.Year(), d.Month()+time.Month(n), 1)
	day := d.Day()
	if last := first.EndOfMonth().Day(); day > last {
		day = last
	}
	return core.NewDate(first.Year(), first.Month(), day)
}

// handleRates answers with the two newest rate tables as
// {prevRateList, currentRateList}, each {id, insertDate, <code>: rate...}.
func (s *Server) handleRates(w http.ResponseWriter, r *http.Request) {
	prev, current, err := s.store.LatestRates(r.Context())
	if err != nil {
		s.logger.ErrorContext(r.Context(), "Loading rates failed", applog.FieldError, err)
		w.WriteHeader(http.StatusInternalServerError)
		return
	}
	if len(current) == 0 {
		w.WriteHeader(http.StatusNotFound)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"prevRateList":    rateTable(1, prev),
		"currentRateList": rateTable(2, current),
	})
}

func rateTable(id int, rates []storage.ExchangeRate) map[string]any {
	table := map[string]any{"id": id}
	for _, r := range rates {
		table["insertDate"] = r.InsertDate
		table[r.Code] = json.Number(r.Rate)
	}
	return table
}
