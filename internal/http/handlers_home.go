package http

import (
	"net/http"
	"strings"

	"github.com/shopspring/decimal"
	"golang.org/x/sync/errgroup"

	"portfel/internal/core"
	applog "portfel/internal/log"
)

const (
	defaultConverterAmount = "100"
	defaultConverterCode   = "EUR"
)

func (s *Server) handleIndex(w http.ResponseWriter, r *http.Request) {
	s.renderHome(w, r, nil)
}

// renderHome renders the home page with the currency table and the
// converter. Rates and the signed-in user are fetched concurrently. dialog
// is passed to renderPage.
func (s *Server) renderHome(w http.ResponseWriter, r *http.Request, dialog *dialogData) {
	st := visitorFrom(r.Context())
	client := s.public(st)
	logger := applog.FromContext(r.Context())

	var (
		rates    []core.CurrencyRate
		username string
	)
	g, ctx := errgroup.WithContext(r.Context())
	g.Go(func() error {
		var err error
		rates, err = client.CurrencyRates(ctx)
		return err
	})
	g.Go(func() error {
		name, err := client.CurrentUser(ctx)
		if err != nil {
			logger.WarnContext(ctx, "Session check failed", applog.FieldError, err.Error())
			return nil
		}
		username = name
		return nil
	})

	page := pageData{Title: "Portfel", Active: "home"}
	if err := g.Wait(); err != nil {
		logger.WarnContext(r.Context(), "Currency rates unavailable", applog.FieldError, err.Error())
		banner := st.Fail(upstreamMessage(err))
		page.Banner = &banner
	}

	switch {
	case username != "":
		st.Session.SignIn(username)
	case st.Session.Authenticated():
		st.Session.Expire()
	}

	page.Rates = rateViews(rates, defaultConverterCode)
	page.Converter = converterFor(rates, defaultConverterAmount, defaultConverterCode)
	s.renderPage(w, r, st, "index_page", page, dialog)
}

// handleConverter recomputes the converter result for amount and code.
func (s *Server) handleConverter(w http.ResponseWriter, r *http.Request) {
	st := visitorFrom(r.Context())
	rates, err := s.public(st).CurrencyRates(r.Context())
	if err != nil {
		applog.FromContext(r.Context()).WarnContext(r.Context(), "Currency rates unavailable", applog.FieldError, err.Error())
		s.renderPartial(w, r, "converter_result", converterView{Error: upstreamMessage(err)})
		return
	}
	q := r.URL.Query()
	s.renderPartial(w, r, "converter_result", converterFor(rates, q.Get("amount"), q.Get("code")))
}

// converterFor converts amount PLN into code. An unparsable amount yields
// an error message instead of a result.
func converterFor(rates []core.CurrencyRate, amount, code string) converterView {
	v := converterView{Amount: strings.TrimSpace(amount), Code: strings.ToUpper(strings.TrimSpace(code))}
	for _, rate := range rates {
		v.Codes = append(v.Codes, rate.Code)
	}
	if len(rates) == 0 {
		return v
	}
	if v.Code == "" {
		v.Code = defaultConverterCode
	}
	rate, ok := core.FindRate(rates, v.Code)
	if !ok {
		v.Error = "Nieznana waluta."
		return v
	}
	value, err := decimal.NewFromString(strings.Replace(v.Amount, ",", ".", 1))
	if err != nil || value.IsNegative() {
		v.Error = "Podaj prawidłową kwotę."
		return v
	}
	v.Result = value.String() + " " + core.BaseCurrency + " = " + rate.Convert(value).StringFixed(3) + " " + rate.Code
	return v
}
