package http

import (
	"context"
	"encoding/json"
	"html/template"
	"io/fs"
	"net/http"
	"sync"
	"time"

	"portfel/internal/api"
	"portfel/internal/config"
	"portfel/internal/core"
	applog "portfel/internal/log"
	"portfel/internal/metrics"
	"portfel/internal/middleware/ratelimit"
	"portfel/internal/middleware/security"
	"portfel/internal/middleware/trace"
	"portfel/internal/state"
	"portfel/internal/validation"
	appweb "portfel/web"
)

// Deps are the collaborators of the web server.
type Deps struct {
	Backend   *api.Backend
	ML        *api.MLClient
	Store     *state.Store
	Validator *validation.Engine
	Logger    *applog.Logger
	Metrics   metrics.Collector

	// MetricsHandler serves /metrics when set.
	MetricsHandler http.Handler
	// Ready reports whether the upstreams can serve traffic; nil means
	// always ready.
	Ready func(context.Context) error
	// Now defaults to time.Now.
	Now func() time.Time
}

type Server struct {
	http.Server
	mux       *http.ServeMux
	templates *template.Template

	backend   *api.Backend
	ml        *api.MLClient
	store     *state.Store
	validator *validation.Engine
	logger    *applog.Logger
	metrics   metrics.Collector
	ready     func(context.Context) error
	now       func() time.Time

	limiter       *ratelimit.Limiter
	detector      *security.Detector
	secureCookies bool
	started       time.Time
	shutdownOnce  sync.Once
}

// NewServer parses the embedded templates and wires routes and middleware.
func NewServer(cfg *config.Config, deps Deps) (*Server, error) {
	t, err := parseTemplates()
	if err != nil {
		return nil, err
	}

	s := &Server{
		mux:           http.NewServeMux(),
		templates:     t,
		backend:       deps.Backend,
		ml:            deps.ML,
		store:         deps.Store,
		validator:     deps.Validator,
		logger:        deps.Logger,
		metrics:       deps.Metrics,
		ready:         deps.Ready,
		now:           deps.Now,
		detector:      security.NewDetector(),
		limiter:       ratelimit.NewLimiter(ratelimit.Config{RequestsPerMinute: cfg.RateLimit}),
		secureCookies: cfg.SecureCookies,
	}
	if s.logger == nil {
		s.logger = applog.Discard()
	}
	if s.metrics == nil {
		s.metrics = metrics.NoOp{}
	}
	if s.validator == nil {
		s.validator = validation.New()
	}
	if s.now == nil {
		s.now = time.Now
	}
	s.started = s.now()

	if err := s.routes(deps.MetricsHandler); err != nil {
		return nil, err
	}

	httpLogger := s.logger.WithComponent(applog.ComponentHTTP)
	var handler http.Handler = s.mux
	handler = applog.Middleware(httpLogger, trace.RequestIDOf)(handler)
	handler = s.withVisitor(handler)
	handler = s.limiter.Middleware(s.detector.ClientIP, s.rateLimited)(handler)
	handler = s.detector.Middleware(handler)
	handler = security.NewHeadersMiddleware(security.DefaultHeadersConfig()).Middleware(handler)
	handler = trace.NewMiddleware(httpLogger, s.metrics, s.detector.ClientIP).Middleware(handler)

	s.Server = http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      60 * time.Second,
		IdleTimeout:       120 * time.Second,
	}
	return s, nil
}

func (s *Server) routes(metricsHandler http.Handler) error {
	sub, err := fs.Sub(appweb.StaticFS, "static")
	if err != nil {
		return err
	}
	s.mux.Handle("GET /static/", security.StaticAssetMiddleware(3600)(http.StripPrefix("/static/", http.FileServer(http.FS(sub)))))

	s.handle("GET /healthz", s.handleHealth)
	s.handle("GET /readyz", s.handleReady)
	if metricsHandler != nil {
		s.mux.Handle("GET /metrics", metricsHandler)
	}

	s.handle("GET /{$}", s.handleIndex)
	s.handle("GET /ui/converter", s.handleConverter)

	s.handle("GET /dashboard", s.handleDashboardPage)
	s.handle("GET /ui/dashboard", s.handleDashboard)

	s.handle("GET /ui/dialogs/{name}", s.handleOpenDialog)
	s.handle("POST /ui/dialogs/close", s.handleCloseDialogs)

	s.handle("POST /auth/login", s.handleLogin)
	s.handle("POST /auth/logout", s.handleLogout)
	s.handle("POST /auth/register", s.handleRegister)
	s.handle("POST /auth/forgot-password", s.handleForgotPassword)
	s.handle("POST /ui/check/email", s.handleCheckEmail)
	s.handle("POST /ui/check/username", s.handleCheckUsername)
	s.handle("POST /ui/check/password", s.handleCheckPassword)
	s.handle("GET /confirm/{pin}", s.handleConfirm)
	s.handle("GET /reset-password/{pin}/{email}", s.handleResetPasswordPage)
	s.handle("POST /reset-password/{pin}/{email}", s.handleResetPassword)
	s.handle("POST /account/delete", s.handleDeleteAccount)

	s.handle("POST /events", s.handleAddEvent)
	s.handle("POST /events/demo", s.handleLoadDemo)
	s.handle("POST /ui/suggestions", s.handleSuggestions)
	s.handle("POST /ui/receipt", s.handleReceipt)
	return nil
}

// handle registers h and reports its pattern to the trace middleware.
func (s *Server) handle(pattern string, h http.HandlerFunc) {
	s.mux.HandleFunc(pattern, func(w http.ResponseWriter, r *http.Request) {
		trace.SetRoute(r.Context(), pattern)
		h(w, r)
	})
}

// Shutdown stops the background goroutines and drains the HTTP server.
func (s *Server) Shutdown(ctx context.Context) error {
	var err error
	s.shutdownOnce.Do(func() {
		s.limiter.Stop()
		err = s.Server.Shutdown(ctx)
	})
	return err
}

func (s *Server) today() core.Date {
	return core.DateOf(s.now())
}

func (s *Server) rateLimited(w http.ResponseWriter, r *http.Request) {
	applog.FromContext(r.Context()).WarnContext(r.Context(), "Rate limit exceeded",
		applog.FieldClientIP, s.detector.ClientIP(r),
		applog.FieldPath, r.URL.Path)
	ErrorResponse(http.StatusTooManyRequests, "Zbyt wiele zapytań. Spróbuj ponownie za chwilę.").Write(w)
}

func (s *Server) templateError(w http.ResponseWriter, r *http.Request, err error) {
	applog.FromContext(r.Context()).ErrorContext(r.Context(), "Template execution failed",
		applog.FieldComponent, applog.ComponentTemplate,
		applog.FieldError, err.Error())
	InternalServerError("Wystąpił błąd podczas wyświetlania strony.").Write(w)
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(map[string]any{
		"status":    "ok",
		"timestamp": s.now().Format(time.RFC3339),
		"uptime":    s.now().Sub(s.started).Round(time.Second).String(),
	})
}

func (s *Server) handleReady(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	status, code := "ready", http.StatusOK
	checks := map[string]any{
		"templates": "ok",
		"visitors":  s.store.Len(),
		"rate_limiter": map[string]any{
			"active_clients": s.limiter.ActiveClients(),
			"rejected":       s.limiter.Hits(),
		},
		"suspicious_requests": s.detector.SuspiciousCount(),
	}
	if s.ready != nil {
		if err := s.ready(ctx); err != nil {
			checks["upstreams"] = "failed: " + err.Error()
			status, code = "not_ready", http.StatusServiceUnavailable
		} else {
			checks["upstreams"] = "ok"
		}
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(map[string]any{
		"status":    status,
		"timestamp": s.now().Format(time.RFC3339),
		"checks":    checks,
	})
}
