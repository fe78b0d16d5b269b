// Package devapi is a self-contained implementation of the backend REST API
// the frontend talks to. It keeps accounts, sessions, events and exchange
// rates in SQLite and hands account e-mails to a notifier, so the frontend
// can be developed and tested without the production backend.
package devapi

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"

	"portfel/internal/amqp"
	"portfel/internal/core"
	applog "portfel/internal/log"
	"portfel/internal/storage"
	"portfel/internal/validation"
)

// SessionCookie carries the login session id.
const SessionCookie = "SESSION"

// AnonymousUser is reported by /user/me without a session and cannot be
// registered.
const AnonymousUser = "anonymousUser"

// Store is the persistence used by the handlers.
type Store interface {
	Ping(ctx context.Context) error

	CreateUser(ctx context.Context, username, email, firstName, passwordHash string) (storage.User, error)
	UsernameTaken(ctx context.Context, username string) (bool, error)
	EmailTaken(ctx context.Context, email string) (bool, error)
	UserByUsername(ctx context.Context, username string) (storage.User, error)
	UserByEmail(ctx context.Context, email string) (storage.User, error)
	UserByID(ctx context.Context, id int64) (storage.User, error)
	DeleteUser(ctx context.Context, id int64) error

	IssuePin(ctx context.Context, userID int64, purpose string, ttl time.Duration) (string, error)
	LookupPin(ctx context.Context, purpose, pin string) (storage.Pincode, error)
	Activate(ctx context.Context, pin storage.Pincode) error
	ResetPassword(ctx context.Context, pin storage.Pincode, passwordHash string) error

	CreateSession(ctx context.Context, userID int64, ttl time.Duration) (storage.Session, error)
	SessionUser(ctx context.Context, sessionID string) (storage.User, error)
	DeleteSession(ctx context.Context, sessionID string) error

	AddEvent(ctx context.Context, userID int64, e core.Event) (int64, error)
	AddEvents(ctx context.Context, userID int64, events []core.Event) error
	EventsBetween(ctx context.Context, userID int64, from, to core.Date) ([]core.Event, error)
	FirstEventDate(ctx context.Context, userID int64) (core.Date, bool, error)

	LatestRates(ctx context.Context) (prev, current []storage.ExchangeRate, err error)
}

// Options configure a Server.
type Options struct {
	PinTTL     time.Duration
	SessionTTL time.Duration
	// FrontendURL prefixes the links sent in notifications.
	FrontendURL string
	// BcryptCost defaults to bcrypt.DefaultCost.
	BcryptCost int
	Notifier   amqp.Notifier
	Logger     *applog.Logger
	Now        func() time.Time
}

// Server serves the backend API.
type Server struct {
	store       Store
	notifier    amqp.Notifier
	validator   *validation.Engine
	logger      *applog.Logger
	now         func() time.Time
	pinTTL      time.Duration
	sessionTTL  time.Duration
	frontendURL string
	cost        int
	mux         *http.ServeMux
}

func New(store Store, opts Options) *Server {
	if opts.PinTTL <= 0 {
		opts.PinTTL = 24 * time.Hour
	}
	if opts.SessionTTL <= 0 {
		opts.SessionTTL = 12 * time.Hour
	}
	if opts.BcryptCost == 0 {
		opts.BcryptCost = bcrypt.DefaultCost
	}
	if opts.Logger == nil {
		opts.Logger = applog.Discard()
	}
	if opts.Notifier == nil {
		opts.Notifier = amqp.LogNotifier{Logger: opts.Logger.Logger}
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}

	s := &Server{
		store:       store,
		notifier:    opts.Notifier,
		validator:   validation.New(),
		logger:      opts.Logger.WithComponent(applog.ComponentDevAPI),
		now:         opts.Now,
		pinTTL:      opts.PinTTL,
		sessionTTL:  opts.SessionTTL,
		frontendURL: strings.TrimRight(opts.FrontendURL, "/"),
		cost:        opts.BcryptCost,
		mux:         http.NewServeMux(),
	}
	s.routes()
	return s
}

func (s *Server) routes() {
	s.mux.HandleFunc("GET /healthz", s.handleHealth)
	s.mux.HandleFunc("GET /currency-rates", s.handleRates)

	s.mux.HandleFunc("POST /user/check-email", s.handleCheckEmail)
	s.mux.HandleFunc("POST /user/check-username", s.handleCheckUsername)
	s.mux.HandleFunc("POST /user/registration", s.handleRegistration)
	s.mux.HandleFunc("GET /user/authorize-registration/{pin}", s.handleAuthorize)
	s.mux.HandleFunc("POST /user/forgot-password", s.handleForgotPassword)
	s.mux.HandleFunc("GET /user/verify-reset/{pin}/{email}", s.handleVerifyReset)
	s.mux.HandleFunc("PUT /user/reset-password/{pin}/{email}", s.handleResetPassword)
	s.mux.HandleFunc("POST /user/login", s.handleLogin)
	s.mux.HandleFunc("POST /user/logout", s.handleLogout)
	s.mux.HandleFunc("GET /user/me", s.handleMe)
	s.mux.HandleFunc("DELETE /user/delete-account", s.requireUser(s.handleDeleteAccount))

	s.mux.HandleFunc("POST /event/add-event", s.requireUser(s.handleAddEvent))
	s.mux.HandleFunc("GET /event/get-events", s.requireUser(s.handleGetEvents))
	s.mux.HandleFunc("POST /event/load-demo", s.requireUser(s.handleLoadDemo))
}

// Handler returns the API wrapped in request logging.
func (s *Server) Handler() http.Handler {
	return applog.Middleware(s.logger, requestID)(s.logRequests(s.mux))
}

func requestID(r *http.Request) string {
	if id := r.Header.Get("X-Request-ID"); id != "" {
		return id
	}
	return uuid.NewString()
}

func (s *Server) logRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rec, r)
		applog.LogHTTPEnd(r.Context(), applog.FromContext(r.Context()), r, rec.status, time.Since(start).Milliseconds(), r.RemoteAddr)
	})
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(code int) {
	r.status = code
	r.ResponseWriter.WriteHeader(code)
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	if err := s.store.Ping(r.Context()); err != nil {
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "unhealthy", "error": err.Error()})
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "healthy"})
}

// requireUser answers 401 unless the request carries a live session.
func (s *Server) requireUser(next func(http.ResponseWriter, *http.Request, storage.User)) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		user, ok := s.sessionUser(r)
		if !ok {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		next(w, r, user)
	}
}

func (s *Server) sessionUser(r *http.Request) (storage.User, bool) {
	c, err := r.Cookie(SessionCookie)
	if err != nil || c.Value == "" {
		return storage.User{}, false
	}
	user, err := s.store.SessionUser(r.Context(), c.Value)
	if err != nil {
		if !errors.Is(err, storage.ErrNotFound) {
			s.logger.ErrorContext(r.Context(), "Session lookup failed", applog.FieldError, err)
		}
		return storage.User{}, false
	}
	return user, true
}

// link builds a frontend URL from escaped path segments.
func (s *Server) link(segments ...string) string {
	return s.frontendURL + "/" + strings.Join(segments, "/")
}

func (s *Server) notify(ctx context.Context, n *amqp.Notification) error {
	if err := s.notifier.Notify(ctx, n); err != nil {
		s.logger.ErrorContext(ctx, "Notification failed",
			applog.FieldNotifyKind, n.Kind,
			applog.FieldError, err)
		return err
	}
	return nil
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeText(w http.ResponseWriter, status int, text string) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(status)
	_, _ = w.Write([]byte(text))
}

func decodeJSON(w http.ResponseWriter, r *http.Request, v any) error {
	return json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes)).Decode(v)
}

const maxBodyBytes = 8 << 20
