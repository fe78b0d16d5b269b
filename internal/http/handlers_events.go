package http

import (
	"errors"
	"io"
	"net/http"
	"strings"

	"portfel/internal/api"
	"portfel/internal/core"
	applog "portfel/internal/log"
	"portfel/internal/mapper"
	"portfel/internal/state"
	"portfel/internal/validation"
)

const (
	eventAddedText   = "Dodano nowe zdarzenie."
	demoLoadedText   = "Załadowano dane demonstracyjne."
	receiptErrorText    = "Nie udało się odczytać paragonu. Spróbuj innego zdjęcia."
	receiptTooLargeText = "Plik jest za duży lub uszkodzony."
	receiptOfflineText  = "Odczyt paragonów jest chwilowo niedostępny."
)

// eventFieldErrors names the form field an add-event parse error belongs
// to.
var eventFieldErrors = []struct {
	err     error
	field   string
	message string
}{
	{core.ErrEmptyTitle, "title", "Tytuł jest wymagany."},
	{core.ErrTitleTooLong, "title", "Tytuł jest za długi."},
	{core.ErrInvalidAmount, "amount", "Podaj prawidłową kwotę."},
	{core.ErrInvalidDate, "date", "Podaj prawidłową datę."},
	{core.ErrUnknownType, "type", "Wybierz rodzaj zdarzenia."},
	{core.ErrUnknownCategory, "category", "Wybierz kategorię."},
	{core.ErrUnknownPaymentType, "paymentType", "Wybierz sposób płatności."},
	{core.ErrInvalidNIP, "nip", "NIP musi składać się z 10 cyfr."},
	{errInvalidInvoiceNumber, "invoiceNumber", "Numer faktury może zawierać tylko cyfry."},
}

func eventErrors(err error) validation.FieldErrors {
	for _, fe := range eventFieldErrors {
		if errors.Is(err, fe.err) {
			return validation.FieldErrors{fe.field: fe.message}
		}
	}
	return validation.FieldErrors{"": validation.Message("")}
}

func (s *Server) eventsLogger(r *http.Request) *applog.Logger {
	return applog.FromContext(r.Context()).WithComponent(applog.ComponentEvents)
}

// eventSaved closes the dialogs and asks the dashboard to reload.
func eventSaved(w http.ResponseWriter, st *state.AppState, notice string) {
	st.Dialogs.CloseAll()
	NewHTMXResponse().
		Retarget("#dialog", "innerHTML").
		TriggerDialogClosed().
		TriggerDashboardRefresh().
		TriggerSuccessNotification(notice).
		Write(w)
}

func (s *Server) handleAddEvent(w http.ResponseWriter, r *http.Request) {
	st := visitorFrom(r.Context())
	if !st.Session.Authenticated() {
		s.loginRequired(w, r, st)
		return
	}
	if resp := ParseFormOrFail(r); resp != nil {
		resp.Write(w)
		return
	}

	form := parseEventForm(r.PostForm)
	event, err := form.Event()
	if err != nil {
		data := s.newDialogData(state.DialogAddEvent)
		data.Values, data.Errors = form.Values(), eventErrors(err)
		s.writeDialog(w, r, st, data)
		return
	}

	logger := s.eventsLogger(r)
	if err := s.protected(st).AddEvent(r.Context(), event); err != nil {
		if errors.Is(err, api.ErrUnauthorized) {
			s.loginRequired(w, r, st)
			return
		}
		logger.ErrorContext(r.Context(), "Failed to add event",
			applog.FieldEventTitle, event.Title,
			applog.FieldError, err.Error())
		s.dialogFailure(w, r, st, state.DialogAddEvent, form.Values(), upstreamMessage(err))
		return
	}

	logger.InfoContext(r.Context(), "Event added",
		applog.FieldEventTitle, event.Title,
		applog.FieldEventType, string(event.Type),
		applog.FieldAmount, event.Amount.String())
	eventSaved(w, st, eventAddedText)
}

// handleLoadDemo fills an empty account with demonstration events.
func (s *Server) handleLoadDemo(w http.ResponseWriter, r *http.Request) {
	st := visitorFrom(r.Context())
	if !st.Session.Authenticated() {
		s.loginRequired(w, r, st)
		return
	}
	if err := s.protected(st).LoadDemo(r.Context()); err != nil {
		if errors.Is(err, api.ErrUnauthorized) {
			s.loginRequired(w, r, st)
			return
		}
		s.eventsLogger(r).ErrorContext(r.Context(), "Failed to load demo events", applog.FieldError, err.Error())
		NewHTMXResponse().
			Status(http.StatusNoContent).
			TriggerErrorNotification(upstreamMessage(err)).
			Write(w)
		return
	}
	eventSaved(w, st, demoLoadedText)
}

type categoryOptions struct {
	Suggested []option
	Others    []option
}

// handleSuggestions proposes categories for the typed title. Without a
// title, or when the model is unavailable, every category is offered.
func (s *Server) handleSuggestions(w http.ResponseWriter, r *http.Request) {
	title := strings.ToLower(formValue(r, "title"))
	var ranked []core.CategorySuggestion
	if title != "" && s.ml != nil {
		var err error
		ranked, err = s.ml.SuggestCategories(r.Context(), title, api.DefaultSuggestions)
		if err != nil {
			s.eventsLogger(r).WarnContext(r.Context(), "Category suggestions unavailable", applog.FieldError, err.Error())
			ranked = nil
		} else {
			ranked = core.WithFallback(ranked)
		}
	}
	s.renderPartial(w, r, "category_options", buildCategoryOptions(ranked))
}

// buildCategoryOptions lists the suggested categories first, in rank order,
// then the remaining ones in catalogue order.
func buildCategoryOptions(ranked []core.CategorySuggestion) categoryOptions {
	var out categoryOptions
	seen := make(map[core.Category]bool, len(ranked))
	for _, s := range ranked {
		if seen[s.Category] {
			continue
		}
		seen[s.Category] = true
		out.Suggested = append(out.Suggested, option{Code: string(s.Category), Label: mapper.CategoryName(s.Category)})
	}
	for _, c := range mapper.CategoryOptions() {
		if !seen[c.Code] {
			out.Others = append(out.Others, option{Code: string(c.Code), Label: c.Label})
		}
	}
	return out
}

// handleReceipt sends an uploaded receipt photo to the trimming service and
// fills the add-event form with what it read.
func (s *Server) handleReceipt(w http.ResponseWriter, r *http.Request) {
	st := visitorFrom(r.Context())
	if !st.Session.Authenticated() {
		s.loginRequired(w, r, st)
		return
	}
	if s.ml == nil {
		s.renderPartial(w, r, "receipt_result", receiptView{Error: receiptOfflineText})
		return
	}
	r.Body = http.MaxBytesReader(w, r.Body, maxReceiptBytes+1<<20)
	if err := r.ParseMultipartForm(maxReceiptBytes); err != nil {
		s.renderPartial(w, r, "receipt_result", receiptView{Error: receiptTooLargeText})
		return
	}
	file, header, err := r.FormFile("receipt")
	if err != nil {
		s.renderPartial(w, r, "receipt_result", receiptView{Error: "Wybierz zdjęcie paragonu."})
		return
	}
	defer file.Close()

	image, err := io.ReadAll(io.LimitReader(file, maxReceiptBytes+1))
	if err != nil {
		s.renderPartial(w, r, "receipt_result", receiptView{Error: receiptErrorText})
		return
	}
	if len(image) > maxReceiptBytes {
		s.renderPartial(w, r, "receipt_result", receiptView{Error: receiptTooLargeText})
		return
	}
	contentType := header.Header.Get("Content-Type")
	if contentType == "" || contentType == "application/octet-stream" {
		contentType = http.DetectContentType(image)
	}

	logger := s.eventsLogger(r)
	scan, err := s.ml.TrimReceipt(r.Context(), header.Filename, contentType, image)
	switch {
	case err != nil:
		logger.ErrorContext(r.Context(), "Receipt trimming failed", applog.FieldError, err.Error())
		s.renderPartial(w, r, "receipt_result", receiptView{Error: upstreamMessage(err)})
	case scan == nil:
		logger.InfoContext(r.Context(), "Receipt rejected by trimming service")
		s.renderPartial(w, r, "receipt_result", receiptView{Error: receiptErrorText})
	default:
		s.renderPartial(w, r, "receipt_result", buildReceiptView(scan))
	}
}
