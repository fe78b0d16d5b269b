package http

import (
	"bytes"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"html/template"
	"net/http"
	"strings"

	"github.com/shopspring/decimal"

	"portfel/internal/aggregate"
	"portfel/internal/core"
	"portfel/internal/mapper"
	"portfel/internal/state"
	"portfel/internal/validation"
	appweb "portfel/web"
)

// pageData is shared by the full-page templates.
type pageData struct {
	Title  string
	Active string
	User   string
	Dialog template.HTML
	Banner *state.Banner

	Rates     []rateView
	Converter converterView

	From    string
	To      string
	MaxDate string
}

type rateView struct {
	Code     string
	Rate     string
	Change   string
	Trend    string
	Selected bool
}

type converterView struct {
	Codes  []string
	Code   string
	Amount string
	Result string
	Error  string
}

type option struct {
	Code  string
	Label string
}

// dialogData feeds every dialog template; each uses the fields it needs.
type dialogData struct {
	Name    state.Dialog
	Values  map[string]string
	Errors  validation.FieldErrors
	Banner  *state.Banner
	Message string
	Success bool
	Pin     string
	Email   string

	EventTypes   []option
	Categories   []option
	PaymentTypes []option
	Today        string
}

type checkView struct {
	Field   string
	OK      bool
	Message string
}

type dashboardView struct {
	From     string
	To       string
	MinDate  string
	Mode     string
	Income   string
	Expense  string
	Balance  string
	Negative bool

	BarChart   string
	PieChart   string
	Categories []categoryView
	History    []historyView
}

type categoryView struct {
	Label  string
	Amount string
	Color  string
}

type historyView struct {
	Title       string
	Type        string
	Income      bool
	Amount      string
	Date        string
	Category    string
	PaymentType string
	Description string
	HasReceipt  bool
}

type receiptView struct {
	ImageURL      template.URL
	Image         string
	Amount        string
	Date          string
	NIP           string
	PaymentType   string
	InvoiceNumber string
	Complete      bool
	Error         string
}

var templateFuncs = template.FuncMap{
	"amount": core.FormatAmount,
	"fieldError": func(errs validation.FieldErrors, field string) string {
		return errs[field]
	},
	"value": func(values map[string]string, key string) string {
		return values[key]
	},
}

func parseTemplates() (*template.Template, error) {
	t, err := template.New("portfel").Funcs(templateFuncs).ParseFS(appweb.TemplatesFS, "templates/*.html")
	if err != nil {
		return nil, fmt.Errorf("parse templates: %w", err)
	}
	return t, nil
}

// dialogTemplate is the template rendering dialog d.
func dialogTemplate(d state.Dialog) string {
	return "dialog_" + strings.ReplaceAll(string(d), "-", "_")
}

func (s *Server) newDialogData(d state.Dialog) dialogData {
	data := dialogData{
		Name:   d,
		Values: map[string]string{},
		Today:  s.today().String(),
	}
	for _, t := range []core.EventType{core.Expense, core.Income} {
		data.EventTypes = append(data.EventTypes, option{Code: string(t), Label: mapper.EventTypeLabel(t)})
	}
	for _, c := range mapper.CategoryOptions() {
		data.Categories = append(data.Categories, option{Code: string(c.Code), Label: c.Label})
	}
	for _, p := range core.PaymentTypes() {
		data.PaymentTypes = append(data.PaymentTypes, option{Code: string(p), Label: mapper.PaymentTypeLabel(p)})
	}
	return data
}

func (s *Server) renderDialog(data dialogData) (template.HTML, error) {
	if data.Name == state.DialogNone {
		return "", nil
	}
	var buf bytes.Buffer
	if err := s.templates.ExecuteTemplate(&buf, dialogTemplate(data.Name), data); err != nil {
		return "", fmt.Errorf("render dialog %s: %w", data.Name, err)
	}
	return template.HTML(buf.String()), nil
}

// writeDialog opens data.Name for the visitor and swaps it into #dialog.
func (s *Server) writeDialog(w http.ResponseWriter, r *http.Request, st *state.AppState, data dialogData) {
	st.Dialogs.Open(data.Name)
	html, err := s.renderDialog(data)
	if err != nil {
		s.templateError(w, r, err)
		return
	}
	NewHTMXResponse().
		Retarget("#dialog", "innerHTML").
		BodyHTML(string(html)).
		Write(w)
}

// renderPage renders a full page with the visitor's open dialog. dialog
// carries extra data for that dialog and may be nil.
func (s *Server) renderPage(w http.ResponseWriter, r *http.Request, st *state.AppState, name string, page pageData, dialog *dialogData) {
	page.User = st.Session.Username()
	if current := st.Dialogs.Current(); current != state.DialogNone {
		data := s.newDialogData(current)
		if dialog != nil && dialog.Name == current {
			data = *dialog
		}
		html, err := s.renderDialog(data)
		if err != nil {
			s.templateError(w, r, err)
			return
		}
		page.Dialog = html
	}

	b := NewHTMXResponse()
	if err := b.Render(s.templates, name, page); err != nil {
		s.templateError(w, r, err)
		return
	}
	b.Write(w)
}

// renderPartial writes the named fragment with status 200.
func (s *Server) renderPartial(w http.ResponseWriter, r *http.Request, name string, data any) {
	b := NewHTMXResponse()
	if err := b.Render(s.templates, name, data); err != nil {
		s.templateError(w, r, err)
		return
	}
	b.Write(w)
}

// writeBanner swaps an inline error banner into target.
func (s *Server) writeBanner(w http.ResponseWriter, r *http.Request, st *state.AppState, target, message string) {
	banner := st.Fail(message)
	b := NewHTMXResponse().Retarget(target, "innerHTML")
	if err := b.Render(s.templates, "banner", &banner); err != nil {
		s.templateError(w, r, err)
		return
	}
	b.Write(w)
}

func rateViews(rates []core.CurrencyRate, selected string) []rateView {
	out := make([]rateView, 0, len(rates))
	for _, r := range rates {
		v := rateView{
			Code:     r.Code,
			Rate:     r.Rate.StringFixed(3),
			Change:   r.ChangePercent().Abs().StringFixed(2) + "%",
			Selected: strings.EqualFold(r.Code, selected),
		}
		switch r.Trend() {
		case core.TrendUp:
			v.Trend = "up"
		case core.TrendDown:
			v.Trend = "down"
		default:
			v.Trend = "flat"
		}
		out = append(out, v)
	}
	return out
}

// buildDashboardView runs the aggregation engine over a committed
// dashboard snapshot.
func buildDashboardView(d state.Dashboard) (dashboardView, error) {
	events := aggregate.Restrict(d.Events, d.From, d.To)
	totals := aggregate.Balance(events)
	categories := aggregate.ByCategory(events)
	buckets := aggregate.Periods(events, d.From, d.To)

	view := dashboardView{
		From:     d.From.String(),
		To:       d.To.String(),
		Mode:     "tygodnie",
		Income:   core.FormatAmount(totals.Income),
		Expense:  core.FormatAmount(totals.Expense),
		Balance:  core.FormatAmount(totals.Balance),
		Negative: totals.Balance.IsNegative(),
	}
	if !d.FirstEventDate.IsZero() {
		view.MinDate = d.FirstEventDate.String()
	}
	if aggregate.ModeFor(d.From, d.To) == aggregate.ModeMonth {
		view.Mode = "miesiące"
	}

	bar, err := json.Marshal(aggregate.BarChart(buckets))
	if err != nil {
		return view, fmt.Errorf("encode bar chart: %w", err)
	}
	pie, err := json.Marshal(aggregate.PieChart(categories, mapper.CategoryName))
	if err != nil {
		return view, fmt.Errorf("encode pie chart: %w", err)
	}
	view.BarChart, view.PieChart = string(bar), string(pie)

	for _, c := range categories {
		view.Categories = append(view.Categories, categoryView{
			Label:  mapper.CategoryName(c.Category),
			Amount: core.FormatAmount(c.Amount),
			Color:  c.Color,
		})
	}
	for _, e := range events {
		h := historyView{
			Title:       e.Title,
			Type:        mapper.EventTypeLabel(e.Type),
			Income:      e.Type.Kind() == core.KindIncome,
			Amount:      core.FormatAmount(e.Amount),
			Date:        e.Date.String(),
			Category:    mapper.CategoryName(e.Category),
			Description: e.Description,
			HasReceipt:  e.ReceiptImage != "",
		}
		if e.PaymentType != "" {
			h.PaymentType = mapper.PaymentTypeLabel(e.PaymentType)
		}
		view.History = append(view.History, h)
	}
	return view, nil
}

// buildReceiptView prepares the trimmed receipt and its OCR fields for the
// add-event form.
func buildReceiptView(scan *core.ReceiptScan) receiptView {
	v := receiptView{
		NIP:           scan.NIP,
		InvoiceNumber: scan.TransactionNumber,
		PaymentType:   string(scan.PaymentType),
		Complete:      scan.HasFields(),
	}
	if len(scan.Image) > 0 && strings.HasPrefix(scan.ContentType, "image/") {
		v.Image = base64.StdEncoding.EncodeToString(scan.Image)
		v.ImageURL = template.URL("data:" + scan.ContentType + ";base64," + v.Image)
	}
	if scan.Sum.Valid {
		v.Amount = amountInput(scan.Sum.Decimal)
	}
	if !scan.Date.IsZero() {
		v.Date = scan.Date.String()
	}
	return v
}

// amountInput formats d for an amount form field.
func amountInput(d decimal.Decimal) string {
	return strings.Replace(d.StringFixed(2), ".", ",", 1)
}
