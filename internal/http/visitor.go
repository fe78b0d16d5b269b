package http

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"portfel/internal/api"
	applog "portfel/internal/log"
	"portfel/internal/state"
)

// VisitorCookie carries the visitor id.
const VisitorCookie = "portfel_visitor"

type visitorKey struct{}

// withVisitor attaches the visitor's AppState to page and UI requests,
// issuing a new visitor cookie when the presented one is unknown.
func (s *Server) withVisitor(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !needsVisitor(r.URL.Path) {
			next.ServeHTTP(w, r)
			return
		}

		var id string
		if c, err := r.Cookie(VisitorCookie); err == nil {
			id = c.Value
		}
		st, created, err := s.store.Acquire(id)
		if err != nil {
			s.logger.ErrorContext(r.Context(), "Visitor state unavailable", applog.FieldError, err.Error())
			InternalServerError("Nie udało się utworzyć sesji.").Write(w)
			return
		}
		if created {
			http.SetCookie(w, &http.Cookie{
				Name:     VisitorCookie,
				Value:    st.ID,
				Path:     "/",
				HttpOnly: true,
				Secure:   s.secureCookies,
				SameSite: http.SameSiteLaxMode,
			})
		}
		ctx := context.WithValue(r.Context(), visitorKey{}, st)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func needsVisitor(path string) bool {
	for _, prefix := range []string{"/static/", "/healthz", "/readyz", "/metrics"} {
		if strings.HasPrefix(path, prefix) {
			return false
		}
	}
	return true
}

// visitorFrom returns the state attached by withVisitor.
func visitorFrom(ctx context.Context) *state.AppState {
	st, _ := ctx.Value(visitorKey{}).(*state.AppState)
	return st
}

func isHTMX(r *http.Request) bool {
	return r.Header.Get("HX-Request") == "true"
}

// loginRequired sends the visitor to the home page with the login dialog
// open.
func (s *Server) loginRequired(w http.ResponseWriter, r *http.Request, st *state.AppState) {
	st.Dialogs.Open(state.DialogLogin)
	if isHTMX(r) {
		NewHTMXResponse().Redirect("/").Write(w)
		return
	}
	http.Redirect(w, r, "/", http.StatusSeeOther)
}

func (s *Server) public(st *state.AppState) *api.PublicClient {
	return s.backend.Public(st.CookieJar())
}

// protected returns a session client whose 401 answers expire the
// visitor's session.
func (s *Server) protected(st *state.AppState) *api.ProtectedClient {
	return s.backend.Protected(st.CookieJar(), st.Session.Expire)
}

// upstreamMessage is the banner text for a failed backend call.
func upstreamMessage(err error) string {
	if errors.Is(err, api.ErrUnavailable) {
		return "Serwis jest chwilowo niedostępny. Spróbuj ponownie za chwilę."
	}
	return "Wystąpił błąd połączenia z serwerem. Spróbuj ponownie."
}
