package http

import (
	"errors"
	"html/template"
	"net/http"

	"portfel/internal/api"
	applog "portfel/internal/log"
	"portfel/internal/state"
)

const dashboardTarget = "#dashboard"

// handleDashboardPage renders the dashboard shell; its content is loaded by
// the page through handleDashboard. A visitor without a known session is
// checked against the backend once before being sent to the login dialog.
func (s *Server) handleDashboardPage(w http.ResponseWriter, r *http.Request) {
	st := visitorFrom(r.Context())
	if !st.Session.Authenticated() {
		name, err := s.public(st).CurrentUser(r.Context())
		if err != nil || name == "" {
			s.loginRequired(w, r, st)
			return
		}
		st.Session.SignIn(name)
	}

	rng := DefaultRange(s.today())
	page := pageData{
		Title:   "Portfel - panel",
		Active:  "dashboard",
		From:    rng.From.String(),
		To:      rng.To.String(),
		MaxDate: s.today().EndOfMonth().String(),
	}
	s.renderPage(w, r, st, "dashboard_page", page, nil)
}

// handleDashboard loads the events of the requested range and renders the
// summary, the charts and the history. Only the newest load of a visitor is
// rendered; an overtaken one answers 204 so the page keeps what it shows.
func (s *Server) handleDashboard(w http.ResponseWriter, r *http.Request) {
	st := visitorFrom(r.Context())
	logger := applog.FromContext(r.Context()).WithComponent(applog.ComponentDashboard)
	if !st.Session.Authenticated() {
		s.loginRequired(w, r, st)
		return
	}

	rng, err := ParseDateRange(r.URL.Query(), s.today())
	if err != nil {
		s.writeBanner(w, r, st, dashboardTarget, "Data początkowa nie może być późniejsza niż data końcowa.")
		return
	}

	id := st.Dashboard.Begin()
	page, err := s.protected(st).Events(r.Context(), rng.From, rng.To)
	if err != nil {
		if errors.Is(err, api.ErrUnauthorized) {
			logger.InfoContext(r.Context(), "Session expired while loading dashboard")
			s.loginRequired(w, r, st)
			return
		}
		logger.ErrorContext(r.Context(), "Failed to load events",
			applog.FieldDateFrom, rng.From.String(),
			applog.FieldDateTo, rng.To.String(),
			applog.FieldError, err.Error())
		if st.Dashboard.Accept(id) {
			s.writeBanner(w, r, st, dashboardTarget, upstreamMessage(err))
			return
		}
		s.metrics.RecordStaleResponse("dashboard")
		w.WriteHeader(http.StatusNoContent)
		return
	}

	snapshot := state.Dashboard{From: rng.From, To: rng.To, NoEvents: page == nil, LoadedAt: s.now()}
	if page != nil {
		snapshot.Events = page.Events
		snapshot.FirstEventDate = page.FirstEventDate
	}
	if !st.CommitDashboard(id, snapshot) {
		s.metrics.RecordStaleResponse("dashboard")
		logger.DebugContext(r.Context(), "Dropped stale dashboard response",
			applog.FieldDateFrom, rng.From.String(),
			applog.FieldDateTo, rng.To.String())
		w.WriteHeader(http.StatusNoContent)
		return
	}

	if snapshot.NoEvents {
		st.Dialogs.Open(state.DialogWelcome)
		dialog, err := s.renderDialog(s.newDialogData(state.DialogWelcome))
		if err != nil {
			s.templateError(w, r, err)
			return
		}
		s.renderPartial(w, r, "dashboard_empty", struct{ Dialog template.HTML }{dialog})
		return
	}

	view, err := buildDashboardView(snapshot)
	if err != nil {
		s.templateError(w, r, err)
		return
	}
	logger.DebugContext(r.Context(), "Dashboard loaded",
		applog.FieldDateFrom, view.From,
		applog.FieldDateTo, view.To,
		applog.FieldEventCount, len(view.History))
	s.renderPartial(w, r, "dashboard_content", view)
}
