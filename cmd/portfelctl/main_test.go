package main

import (
	"bytes"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"portfel/internal/core"
)

func fakeBackend(t *testing.T) *httptest.Server {
	t.Helper()
	mux := http.NewServeMux()
	mux.HandleFunc("GET /currency-rates", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{
			"prevRateList": {"id": 1, "insertDate": "2024-06-02", "eur": 0.2300, "usd": 0.2550},
			"currentRateList": {"id": 2, "insertDate": "2024-06-03", "eur": 0.2320, "usd": 0.2500}
		}`))
	})
	mux.HandleFunc("POST /user/login", func(w http.ResponseWriter, r *http.Request) {
		if r.PostFormValue("username") != "anna" || r.PostFormValue("password") != "tajne123!" {
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusUnauthorized)
			_, _ = w.Write([]byte(`{"message":"Błędny login lub hasło"}`))
			return
		}
		http.SetCookie(w, &http.Cookie{Name: "SESSION", Value: "s1", Path: "/"})
	})
	mux.HandleFunc("GET /event/get-events", func(w http.ResponseWriter, r *http.Request) {
		if c, err := r.Cookie("SESSION"); err != nil || c.Value != "s1" {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"firstEventDate": "2024-06-01", "events": [
			{"title": "Pensja", "type": "INCOME", "amount": 5000, "date": "2024-06-01", "category": "SALARIES_AND_INCOME"},
			{"title": "Czynsz", "type": "EXPENSE", "amount": 2000, "date": "2024-06-03", "category": "HOME_BILLS"},
			{"title": "Zakupy", "type": "EXPENSE", "amount": 150.5, "date": "2024-06-12", "category": "DAILY_SHOPPING"}
		]}`))
	})
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv
}

func run(t *testing.T, args ...string) (string, error) {
	t.Helper()
	var out bytes.Buffer
	cmd := newRootCmd()
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetArgs(args)
	err := cmd.Execute()
	return out.String(), err
}

func TestRatesCommand(t *testing.T) {
	srv := fakeBackend(t)
	out, err := run(t, "rates", "--backend", srv.URL)
	require.NoError(t, err)
	assert.Contains(t, out, "Kursy walut")
	assert.Contains(t, out, "EUR")
	assert.Contains(t, out, "0.2320")
	assert.Contains(t, out, "23.200")
	assert.Contains(t, out, "USD")
}

func TestSummaryCommand(t *testing.T) {
	srv := fakeBackend(t)

	t.Run("requires credentials", func(t *testing.T) {
		t.Setenv("PORTFEL_USERNAME", "")
		t.Setenv("PORTFEL_PASSWORD", "")
		_, err := run(t, "summary", "--backend", srv.URL)
		assert.ErrorContains(t, err, "PORTFEL_USERNAME")
	})

	t.Run("rejected login", func(t *testing.T) {
		t.Setenv("PORTFEL_USERNAME", "anna")
		t.Setenv("PORTFEL_PASSWORD", "zle")
		_, err := run(t, "summary", "--backend", srv.URL, "--from", "2024-06-01", "--to", "2024-06-30")
		assert.ErrorContains(t, err, "Błędny login lub hasło")
	})

	t.Run("prints totals", func(t *testing.T) {
		t.Setenv("PORTFEL_USERNAME", "anna")
		t.Setenv("PORTFEL_PASSWORD", "tajne123!")
		out, err := run(t, "summary", "--backend", srv.URL, "--from", "2024-06-01", "--to", "2024-06-30")
		require.NoError(t, err)
		assert.Contains(t, out, "Podsumowanie od 2024-06-01 do 2024-06-30")
		assert.Contains(t, out, "5 000,00 zł")
		assert.Contains(t, out, "2 150,50 zł")
		assert.Contains(t, out, "2 849,50 zł")
		assert.Contains(t, out, "27.05-2.06")
	})
}

func TestSummaryRange(t *testing.T) {
	today := core.NewDate(2024, time.June, 15)
	tests := []struct {
		name     string
		from, to string
		want     [2]string
		wantErr  bool
	}{
		{name: "defaults to month to date", want: [2]string{"2024-06-01", "2024-06-15"}},
		{name: "explicit", from: "2024-01-01", to: "2024-03-31", want: [2]string{"2024-01-01", "2024-03-31"}},
		{name: "inverted", from: "2024-06-10", to: "2024-06-01", wantErr: true},
		{name: "malformed", from: "wczoraj", wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			from, to, err := summaryRange(tt.from, tt.to, today)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, [2]string{from.String(), to.String()})
		})
	}
}

func TestRenderSummary_NoEvents(t *testing.T) {
	out := renderSummary(nil, core.NewDate(2024, time.June, 1), core.NewDate(2024, time.June, 30))
	assert.Contains(t, out, "Brak wydarzeń w wybranym okresie.")
	assert.Contains(t, out, "0,00 zł")
}

func TestRenderRates_Empty(t *testing.T) {
	assert.Contains(t, renderRates(nil), "Brak kursów walut.")
	assert.Contains(t, renderRates([]core.CurrencyRate{{Code: "EUR", Rate: decimal.RequireFromString("0.25")}}), "25.000")
}
