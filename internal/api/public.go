package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"github.com/shopspring/decimal"

	"portfel/internal/core"
)

// AnonymousUser is what the backend reports for a visitor without session.
const AnonymousUser = "anonymousUser"

// Texts used when the backend could not be asked at all.
const (
	MissingPinText     = "Brak kodu PIN w adresie URL."
	AuthorizeErrorText = "Wystąpił błąd podczas autoryzacji rejestracji."
	BadResetLinkText   = "Błędny adres URL."
	LoginFailedText    = "Błędny login lub hasło"
)

var (
	ErrInvalidRegistration = errors.New("invalid registration data")
	ErrAccountExists       = errors.New("username or email already exists")
)

// Registration is the payload of a sign-up.
type Registration struct {
	FirstName   string `json:"firstName"`
	Email       string `json:"email"`
	Username    string `json:"username"`
	Password    string `json:"password"`
	ConPassword string `json:"conPassword"`
}

type PublicClient struct {
	backend *Backend
	jar     http.CookieJar
}

func (c *PublicClient) available(ctx context.Context, op, path string, payload any) (bool, error) {
	req, err := jsonRequest(op, http.MethodPost, path, payload)
	if err != nil {
		return false, err
	}
	resp, err := c.backend.up.do(ctx, req)
	if err != nil {
		return false, err
	}
	switch resp.status {
	case http.StatusOK:
		return true, nil
	case http.StatusConflict:
		return false, nil
	default:
		return false, resp.statusError(op)
	}
}

// CheckEmail reports whether email is still free.
func (c *PublicClient) CheckEmail(ctx context.Context, email string) (bool, error) {
	return c.available(ctx, "check-email", "/user/check-email", map[string]string{"email": email})
}

// CheckUsername reports whether username is still free.
func (c *PublicClient) CheckUsername(ctx context.Context, username string) (bool, error) {
	return c.available(ctx, "check-username", "/user/check-username", map[string]string{"username": username})
}

// CurrencyRates returns the current exchange rates against the złoty.
// Concurrent calls share one upstream request.
func (c *PublicClient) CurrencyRates(ctx context.Context) ([]core.CurrencyRate, error) {
	v, err, _ := c.backend.rates.Do("currency-rates", func() (any, error) {
		return c.fetchRates(context.WithoutCancel(ctx))
	})
	if err != nil {
		return nil, err
	}
	rates := v.([]core.CurrencyRate)
	out := make([]core.CurrencyRate, len(rates))
	copy(out, rates)
	return out, nil
}

func (c *PublicClient) fetchRates(ctx context.Context) ([]core.CurrencyRate, error) {
	const op = "currency-rates"
	resp, err := c.backend.up.do(ctx, request{op: op, method: http.MethodGet, path: "/currency-rates"})
	if err != nil {
		return nil, err
	}
	if !resp.ok() {
		return nil, resp.statusError(op)
	}
	var payload struct {
		Prev    map[string]json.RawMessage `json:"prevRateList"`
		Current map[string]json.RawMessage `json:"currentRateList"`
	}
	if err := json.Unmarshal(resp.body, &payload); err != nil {
		return nil, fmt.Errorf("%s: decode: %w", op, err)
	}
	prev, err := rateList(payload.Prev)
	if err != nil {
		return nil, fmt.Errorf("%s: previous list: %w", op, err)
	}
	current, err := rateList(payload.Current)
	if err != nil {
		return nil, fmt.Errorf("%s: current list: %w", op, err)
	}
	return core.RatesFromLists(prev, current), nil
}

// rateList reads a {id, insertDate, <code>: <rate>...} object.
func rateList(raw map[string]json.RawMessage) (map[string]decimal.Decimal, error) {
	out := make(map[string]decimal.Decimal, len(raw))
	for key, value := range raw {
		if key == "id" || key == "insertDate" {
			continue
		}
		s := strings.Trim(string(value), `"`)
		if s == "null" || s == "" {
			continue
		}
		d, err := decimal.NewFromString(s)
		if err != nil {
			return nil, fmt.Errorf("rate %s: %w", key, err)
		}
		out[key] = d
	}
	return out, nil
}

// Register creates an account. A 400 answer yields ErrInvalidRegistration,
// a 409 answer ErrAccountExists.
func (c *PublicClient) Register(ctx context.Context, r Registration) error {
	const op = "registration"
	req, err := jsonRequest(op, http.MethodPost, "/user/registration", r)
	if err != nil {
		return err
	}
	resp, err := c.backend.up.do(ctx, req)
	if err != nil {
		return err
	}
	switch {
	case resp.ok():
		return nil
	case resp.status == http.StatusBadRequest:
		return ErrInvalidRegistration
	case resp.status == http.StatusConflict:
		return ErrAccountExists
	default:
		return resp.statusError(op)
	}
}

// AuthorizeRegistration confirms an account with the pin from the
// activation mail. The text is the backend's answer, suitable for display.
func (c *PublicClient) AuthorizeRegistration(ctx context.Context, pin string) (bool, string, error) {
	if pin == "" {
		return false, MissingPinText, nil
	}
	resp, err := c.backend.up.do(ctx, request{
		op:     "authorize-registration",
		method: http.MethodGet,
		path:   "/user/authorize-registration/" + url.PathEscape(pin),
	})
	if err != nil {
		return false, AuthorizeErrorText, err
	}
	return resp.ok(), resp.text(), nil
}

// Login signs in; on success the session cookie is kept in the jar. A
// rejected login yields a *StatusError whose Message is the backend's
// reason.
func (c *PublicClient) Login(ctx context.Context, username, password string) error {
	const op = "login"
	form := url.Values{"username": {username}, "password": {password}}
	resp, err := c.backend.up.do(ctx, request{
		op:          op,
		method:      http.MethodPost,
		path:        "/user/login",
		body:        []byte(form.Encode()),
		contentType: "application/x-www-form-urlencoded",
		jar:         c.jar,
	})
	if err != nil {
		return err
	}
	if resp.ok() {
		return nil
	}
	se := resp.statusError(op)
	if se.Message == "" {
		se.Message = LoginFailedText
	}
	return se
}

func (c *PublicClient) Logout(ctx context.Context) error {
	const op = "logout"
	resp, err := c.backend.up.do(ctx, request{op: op, method: http.MethodPost, path: "/user/logout", jar: c.jar})
	if err != nil {
		return err
	}
	if !resp.ok() {
		return resp.statusError(op)
	}
	return nil
}

// ForgotPassword asks for a password reset mail.
func (c *PublicClient) ForgotPassword(ctx context.Context, email string) (bool, string, error) {
	req, err := jsonRequest("forgot-password", http.MethodPost, "/user/forgot-password", map[string]string{"email": email})
	if err != nil {
		return false, "", err
	}
	resp, err := c.backend.up.do(ctx, req)
	if err != nil {
		return false, "", err
	}
	return resp.ok(), resp.text(), nil
}

// VerifyReset checks a reset link before the new password form is shown.
func (c *PublicClient) VerifyReset(ctx context.Context, pin, email string) (bool, string, error) {
	if pin == "" || email == "" {
		return false, BadResetLinkText, nil
	}
	resp, err := c.backend.up.do(ctx, request{
		op:     "verify-reset",
		method: http.MethodGet,
		path:   "/user/verify-reset/" + url.PathEscape(pin) + "/" + url.PathEscape(email),
	})
	if err != nil {
		return false, "", err
	}
	return resp.ok(), resp.text(), nil
}

// ResetPassword sets a new password through a reset link.
func (c *PublicClient) ResetPassword(ctx context.Context, pin, email, password, conPassword string) (bool, string, error) {
	if pin == "" || email == "" {
		return false, BadResetLinkText, nil
	}
	req, err := jsonRequest("reset-password", http.MethodPut,
		"/user/reset-password/"+url.PathEscape(pin)+"/"+url.PathEscape(email),
		map[string]string{"password": password, "conPassword": conPassword})
	if err != nil {
		return false, "", err
	}
	resp, err := c.backend.up.do(ctx, req)
	if err != nil {
		return false, "", err
	}
	return resp.ok(), resp.text(), nil
}

// CurrentUser returns the signed-in username, or "" without a session.
func (c *PublicClient) CurrentUser(ctx context.Context) (string, error) {
	resp, err := c.backend.up.do(ctx, request{op: "me", method: http.MethodGet, path: "/user/me", jar: c.jar})
	if err != nil {
		return "", err
	}
	if !resp.ok() {
		return "", nil
	}
	name := resp.text()
	if name == AnonymousUser {
		return "", nil
	}
	return name, nil
}
