package api

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"

	"portfel/internal/core"
)

// EventPage is the answer of get-events.
type EventPage struct {
	Events         []core.Event `json:"events"`
	FirstEventDate core.Date    `json:"firstEventDate"`
}

// ProtectedClient calls the endpoints that require a session. Every 401
// answer is reported to the onUnauthorized observer and returned as
// ErrUnauthorized.
type ProtectedClient struct {
	up             *Upstream
	jar            http.CookieJar
	onUnauthorized func()
}

func (c *ProtectedClient) do(ctx context.Context, req request) (*response, error) {
	req.jar = c.jar
	resp, err := c.up.do(ctx, req)
	if err != nil {
		return nil, err
	}
	if resp.status == http.StatusUnauthorized {
		if c.onUnauthorized != nil {
			c.onUnauthorized()
		}
		return nil, fmt.Errorf("%s: %w", req.op, ErrUnauthorized)
	}
	return resp, nil
}

// Events returns the events dated within [from, to]. A nil page without
// error means the backend holds no events for the account yet (404); any
// other failed answer is a *StatusError.
func (c *ProtectedClient) Events(ctx context.Context, from, to core.Date) (*EventPage, error) {
	const op = "get-events"
	resp, err := c.do(ctx, request{
		op:     op,
		method: http.MethodGet,
		path:   "/event/get-events",
		query:  map[string]string{"startDate": from.String(), "endDate": to.String()},
	})
	if err != nil {
		return nil, err
	}
	if resp.status == http.StatusNotFound {
		return nil, nil
	}
	if !resp.ok() {
		return nil, resp.statusError(op)
	}
	var page EventPage
	if err := json.Unmarshal(resp.body, &page); err != nil {
		return nil, fmt.Errorf("%s: decode: %w", op, err)
	}
	return &page, nil
}

// AddEvent stores a new event.
func (c *ProtectedClient) AddEvent(ctx context.Context, e core.NewEvent) error {
	const op = "add-event"
	req, err := jsonRequest(op, http.MethodPost, "/event/add-event", e)
	if err != nil {
		return err
	}
	resp, err := c.do(ctx, req)
	if err != nil {
		return err
	}
	if !resp.ok() {
		return resp.statusError(op)
	}
	return nil
}

// LoadDemo fills the account with demonstration events.
func (c *ProtectedClient) LoadDemo(ctx context.Context) error {
	const op = "load-demo"
	resp, err := c.do(ctx, request{op: op, method: http.MethodPost, path: "/event/load-demo"})
	if err != nil {
		return err
	}
	if !resp.ok() {
		return resp.statusError(op)
	}
	return nil
}

// DeleteAccount removes the account after checking password. It reports
// true only for a 204 answer.
func (c *ProtectedClient) DeleteAccount(ctx context.Context, password string) (bool, error) {
	req, err := jsonRequest("delete-account", http.MethodDelete, "/user/delete-account", map[string]string{"password": password})
	if err != nil {
		return false, err
	}
	resp, err := c.do(ctx, req)
	if err != nil {
		return false, err
	}
	return resp.status == http.StatusNoContent, nil
}
