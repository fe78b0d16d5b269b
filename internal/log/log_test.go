package log

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestParseLevel(t *testing.T) {
	tests := map[string]slog.Level{
		"debug":   slog.LevelDebug,
		"DEBUG":   slog.LevelDebug,
		" warn ":  slog.LevelWarn,
		"warning": slog.LevelWarn,
		"error":   slog.LevelError,
		"info":    slog.LevelInfo,
		"":        slog.LevelInfo,
		"verbose": slog.LevelInfo,
	}
	for in, want := range tests {
		assert.Equal(t, want, ParseLevel(in), "input %q", in)
	}
}

func TestLogger_ComponentAppearsOnce(t *testing.T) {
	var buf bytes.Buffer
	logger := New(Config{Level: slog.LevelDebug, Component: ComponentHTTP, Output: &buf})

	logger.WithComponent(ComponentAuth).Info("signed in", FieldUsername, "anna")

	line := buf.String()
	assert.Equal(t, 1, strings.Count(line, "component="))
	assert.Contains(t, line, "component=auth")
	assert.Contains(t, line, "username=anna")
}

func TestLogger_RequestScopedComponent(t *testing.T) {
	var buf bytes.Buffer
	logger := New(Config{Component: ComponentHTTP, Output: &buf})

	h := Middleware(logger, func(*http.Request) string { return "req-7" })(
		http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			FromContext(r.Context()).WithComponent(ComponentDashboard).InfoContext(r.Context(), "loaded")
		}))
	h.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/ui/dashboard", nil))

	line := buf.String()
	assert.Equal(t, 1, strings.Count(line, "component="))
	assert.Contains(t, line, "component=dashboard")
	assert.Contains(t, line, "request_id=req-7")
	assert.Equal(t, ComponentDashboard, FromContext(context.Background()).WithComponent(ComponentDashboard).Component())
}

func TestMiddleware_AddsRequestID(t *testing.T) {
	var buf bytes.Buffer
	logger := New(Config{Component: ComponentHTTP, Output: &buf})

	h := Middleware(logger, func(*http.Request) string { return "req-1" })(
		http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			FromContext(r.Context()).InfoContext(r.Context(), "handled")
		}))
	h.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/", nil))

	assert.Contains(t, buf.String(), "request_id=req-1")
}

func TestFromContext_Fallback(t *testing.T) {
	assert.Equal(t, "unknown", FromContext(context.Background()).Component())
}

func TestLogHTTPEnd_Levels(t *testing.T) {
	var buf bytes.Buffer
	logger := New(Config{Output: &buf})
	r := httptest.NewRequest(http.MethodGet, "/dashboard?from=2024-01-01", nil)

	LogHTTPEnd(context.Background(), logger, r, http.StatusBadGateway, 12, "10.0.0.1")
	assert.Contains(t, buf.String(), "level=ERROR")
	assert.Contains(t, buf.String(), `query="from=2024-01-01"`)

	buf.Reset()
	LogHTTPEnd(context.Background(), logger, r, http.StatusNotFound, 3, "10.0.0.1")
	assert.Contains(t, buf.String(), "level=WARN")
}

func TestFields(t *testing.T) {
	f := NewFields().WithVisitor("v1", "").WithError(errors.New("boom")).WithOperation(OpFetch)
	assert.Equal(t, "v1", f[FieldVisitorID])
	assert.NotContains(t, f, FieldUsername)
	assert.Equal(t, "boom", f[FieldError])
	assert.Len(t, f.Args(), 6)
}
