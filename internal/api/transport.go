// Package api talks to the backend REST API and the ML service on behalf
// of a visitor.
//
// Every call goes through an Upstream, which owns the circuit breaker and
// the call metrics of one service. Clients are cheap views binding an
// Upstream to the cookie jar of one visitor.
package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/sony/gobreaker"

	"portfel/internal/metrics"
)

const maxResponseBytes = 16 << 20

var (
	// ErrUnauthorized is returned when the backend rejects the session.
	ErrUnauthorized = errors.New("unauthorized")
	// ErrUnavailable is returned while an upstream's circuit is open.
	ErrUnavailable = errors.New("service unavailable")

	errServerSide = errors.New("server error")
)

// StatusError is a non-2xx answer the caller has no specific handling for.
type StatusError struct {
	Op      string
	Code    int
	Message string
}

func (e *StatusError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("%s: status %d", e.Op, e.Code)
	}
	return fmt.Sprintf("%s: status %d: %s", e.Op, e.Code, e.Message)
}

// Options tune an Upstream.
type Options struct {
	Timeout         time.Duration
	BreakerFailures int
	BreakerTimeout  time.Duration
	Metrics         metrics.Collector
	// Transport defaults to http.DefaultTransport.
	Transport http.RoundTripper
}

// Upstream is one remote service shared by all visitors.
type Upstream struct {
	name    string
	baseURL string
	timeout time.Duration
	rt      http.RoundTripper
	breaker *gobreaker.CircuitBreaker
	metrics metrics.Collector
}

func NewUpstream(name, baseURL string, opts Options) *Upstream {
	if opts.Timeout <= 0 {
		opts.Timeout = 10 * time.Second
	}
	if opts.BreakerFailures <= 0 {
		opts.BreakerFailures = 5
	}
	if opts.BreakerTimeout <= 0 {
		opts.BreakerTimeout = 30 * time.Second
	}
	if opts.Metrics == nil {
		opts.Metrics = metrics.NoOp{}
	}
	if opts.Transport == nil {
		opts.Transport = http.DefaultTransport
	}

	u := &Upstream{
		name:    name,
		baseURL: strings.TrimRight(baseURL, "/"),
		timeout: opts.Timeout,
		rt:      opts.Transport,
		metrics: opts.Metrics,
	}
	failures := uint32(opts.BreakerFailures)
	u.breaker = gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:    name,
		Timeout: opts.BreakerTimeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= failures
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			slog.Warn("Circuit breaker state changed", "upstream", name, "from", from.String(), "to", to.String())
			u.metrics.RecordCircuitState(name, circuitState(to))
		},
	})
	return u
}

func (u *Upstream) Name() string { return u.name }

// Ready fails while the upstream's circuit is open.
func (u *Upstream) Ready() error {
	if u.breaker.State() == gobreaker.StateOpen {
		return fmt.Errorf("%s: %w", u.name, ErrUnavailable)
	}
	return nil
}

// request describes one call.
type request struct {
	op          string
	method      string
	path        string
	query       map[string]string
	body        []byte
	contentType string
	jar         http.CookieJar
}

type response struct {
	status int
	header http.Header
	body   []byte
}

func (r *response) ok() bool { return r.status >= 200 && r.status < 300 }

// text returns the body as trimmed text.
func (r *response) text() string {
	return strings.TrimSpace(string(r.body))
}

// message extracts a human readable error text: the JSON message field
// when present, the plain body otherwise.
func (r *response) message() string {
	var payload struct {
		Message string `json:"message"`
	}
	if json.Unmarshal(r.body, &payload) == nil && payload.Message != "" {
		return payload.Message
	}
	if strings.HasPrefix(r.header.Get("Content-Type"), "text/") {
		return r.text()
	}
	return ""
}

func (r *response) statusError(op string) *StatusError {
	return &StatusError{Op: op, Code: r.status, Message: r.message()}
}

func jsonRequest(op, method, path string, v any) (request, error) {
	body, err := json.Marshal(v)
	if err != nil {
		return request{}, fmt.Errorf("%s: encode request: %w", op, err)
	}
	return request{op: op, method: method, path: path, body: body, contentType: "application/json"}, nil
}

// do performs req. Transport failures and 5xx answers count against the
// breaker; any answer that arrived is returned, 5xx included.
func (u *Upstream) do(ctx context.Context, req request) (*response, error) {
	start := time.Now()
	result, err := u.breaker.Execute(func() (any, error) {
		resp, err := u.roundTrip(ctx, req)
		if err != nil {
			return nil, err
		}
		if resp.status >= 500 {
			return resp, errServerSide
		}
		return resp, nil
	})

	status := 0
	resp, _ := result.(*response)
	if resp != nil {
		status = resp.status
	}
	u.metrics.RecordUpstreamCall(u.name, req.op, status, time.Since(start))

	switch {
	case errors.Is(err, gobreaker.ErrOpenState), errors.Is(err, gobreaker.ErrTooManyRequests):
		return nil, fmt.Errorf("%s: %w", req.op, ErrUnavailable)
	case errors.Is(err, errServerSide):
		return resp, nil
	case err != nil:
		return nil, fmt.Errorf("%s: %w", req.op, err)
	}
	return resp, nil
}

func (u *Upstream) roundTrip(ctx context.Context, req request) (*response, error) {
	ctx, cancel := context.WithTimeout(ctx, u.timeout)
	defer cancel()

	var body io.Reader
	if req.body != nil {
		body = bytes.NewReader(req.body)
	}
	httpReq, err := http.NewRequestWithContext(ctx, req.method, u.baseURL+req.path, body)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	if req.contentType != "" {
		httpReq.Header.Set("Content-Type", req.contentType)
	}
	httpReq.Header.Set("Accept", "application/json, text/plain, */*")
	if len(req.query) > 0 {
		q := httpReq.URL.Query()
		for k, v := range req.query {
			q.Set(k, v)
		}
		httpReq.URL.RawQuery = q.Encode()
	}

	client := &http.Client{Transport: u.rt, Jar: req.jar}
	httpResp, err := client.Do(httpReq)
	if err != nil {
		return nil, err
	}
	defer httpResp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(httpResp.Body, maxResponseBytes))
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}
	return &response{status: httpResp.StatusCode, header: httpResp.Header, body: data}, nil
}

func circuitState(s gobreaker.State) metrics.CircuitState {
	switch s {
	case gobreaker.StateOpen:
		return metrics.CircuitOpen
	case gobreaker.StateHalfOpen:
		return metrics.CircuitHalfOpen
	default:
		return metrics.CircuitClosed
	}
}
