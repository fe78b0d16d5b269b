// Package trace tags every request with an id, logs its completion and
// records it in the metrics collector.
package trace

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"net/http"
	"time"

	applog "portfel/internal/log"
	"portfel/internal/metrics"
)

type (
	contextKey struct{}
	routeKey   struct{}
)

// route is filled by the handler with the pattern it was registered under.
type route struct {
	pattern string
}

// HeaderRequestID is echoed on every response.
const HeaderRequestID = "X-Request-ID"

// Middleware handles request tracing and logging.
type Middleware struct {
	logger    *applog.Logger
	metrics   metrics.Collector
	extractIP func(*http.Request) string
}

// NewMiddleware creates a trace middleware. A nil collector records nothing.
func NewMiddleware(logger *applog.Logger, collector metrics.Collector, extractIP func(*http.Request) string) *Middleware {
	if collector == nil {
		collector = metrics.NoOp{}
	}
	return &Middleware{logger: logger, metrics: collector, extractIP: extractIP}
}

func (m *Middleware) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()

		requestID := GenerateRequestID()
		rt := &route{}
		ctx := context.WithValue(r.Context(), contextKey{}, requestID)
		ctx = context.WithValue(ctx, routeKey{}, rt)
		r = r.WithContext(ctx)
		w.Header().Set(HeaderRequestID, requestID)

		rw := &responseWriter{ResponseWriter: w, statusCode: http.StatusOK}
		next.ServeHTTP(rw, r)

		duration := time.Since(start)
		clientIP := ""
		if m.extractIP != nil {
			clientIP = m.extractIP(r)
		}
		pattern := rt.pattern
		if pattern == "" {
			pattern = r.Pattern
		}
		if pattern == "" {
			pattern = "unmatched"
		}
		m.metrics.RecordHTTPRequest(r.Method, pattern, rw.statusCode, duration)
		applog.LogHTTPEnd(ctx, m.logger.With(applog.FieldRequestID, requestID), r, rw.statusCode, duration.Milliseconds(), clientIP)
	})
}

// responseWriter captures the status code.
type responseWriter struct {
	http.ResponseWriter
	statusCode  int
	wroteHeader bool
}

func (rw *responseWriter) WriteHeader(code int) {
	if !rw.wroteHeader {
		rw.statusCode = code
		rw.wroteHeader = true
	}
	rw.ResponseWriter.WriteHeader(code)
}

func (rw *responseWriter) Write(b []byte) (int, error) {
	rw.wroteHeader = true
	return rw.ResponseWriter.Write(b)
}

func (rw *responseWriter) Unwrap() http.ResponseWriter {
	return rw.ResponseWriter
}

// SetRoute records the route pattern serving the request, for requests
// whose context was replaced below the middleware.
func SetRoute(ctx context.Context, pattern string) {
	if rt, ok := ctx.Value(routeKey{}).(*route); ok {
		rt.pattern = pattern
	}
}

// GenerateRequestID creates a unique request ID for tracing.
func GenerateRequestID() string {
	bytes := make([]byte, 8)
	if _, err := rand.Read(bytes); err != nil {
		return fmt.Sprintf("req_%d", time.Now().UnixNano())
	}
	return "req_" + hex.EncodeToString(bytes)
}

// RequestID extracts the request ID from ctx.
func RequestID(ctx context.Context) string {
	if id, ok := ctx.Value(contextKey{}).(string); ok {
		return id
	}
	return ""
}

// RequestIDOf is RequestID for a request; it fits applog.Middleware.
func RequestIDOf(r *http.Request) string {
	return RequestID(r.Context())
}
