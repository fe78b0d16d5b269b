package devapi

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/cookiejar"
	"net/http/httptest"
	"net/url"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"portfel/internal/amqp"
	"portfel/internal/core"
	"portfel/internal/storage"
)

type recordingNotifier struct {
	mu   sync.Mutex
	sent []*amqp.Notification
}

func (n *recordingNotifier) Notify(_ context.Context, msg *amqp.Notification) error {
	if err := msg.Validate(); err != nil {
		return err
	}
	n.mu.Lock()
	defer n.mu.Unlock()
	n.sent = append(n.sent, msg)
	return nil
}

func (n *recordingNotifier) last(t *testing.T) *amqp.Notification {
	t.Helper()
	n.mu.Lock()
	defer n.mu.Unlock()
	require.NotEmpty(t, n.sent)
	return n.sent[len(n.sent)-1]
}

type harness struct {
	t        *testing.T
	srv      *httptest.Server
	client   *http.Client
	notifier *recordingNotifier

	mu  sync.Mutex
	now time.Time
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	repo, err := storage.NewSQLiteRepository(filepath.Join(t.TempDir(), "devapi.db"))
	require.NoError(t, err)
	t.Cleanup(func() { repo.Close() })

	h := &harness{t: t, notifier: &recordingNotifier{}, now: time.Now()}
	api := New(repo, Options{
		PinTTL:      time.Hour,
		SessionTTL:  time.Hour,
		FrontendURL: "http://front.test/",
		BcryptCost:  bcrypt.MinCost,
		Notifier:    h.notifier,
		Now:         h.clock,
	})
	h.srv = httptest.NewServer(api.Handler())
	t.Cleanup(h.srv.Close)

	jar, err := cookiejar.New(nil)
	require.NoError(t, err)
	h.client = &http.Client{Jar: jar}
	return h
}

func (h *harness) clock() time.Time {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.now
}

func (h *harness) advance(d time.Duration) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.now = h.now.Add(d)
}

func (h *harness) do(method, path, contentType string, body []byte) (int, string) {
	h.t.Helper()
	req, err := http.NewRequest(method, h.srv.URL+path, bytes.NewReader(body))
	require.NoError(h.t, err)
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	resp, err := h.client.Do(req)
	require.NoError(h.t, err)
	defer resp.Body.Close()
	data, err := io.ReadAll(resp.Body)
	require.NoError(h.t, err)
	return resp.StatusCode, strings.TrimSpace(string(data))
}

func (h *harness) json(method, path string, v any) (int, string) {
	h.t.Helper()
	body, err := json.Marshal(v)
	require.NoError(h.t, err)
	return h.do(method, path, "application/json", body)
}

func (h *harness) get(path string) (int, string) {
	h.t.Helper()
	return h.do(http.MethodGet, path, "", nil)
}

func (h *harness) login(username, password string) (int, string) {
	h.t.Helper()
	form := url.Values{"username": {username}, "password": {password}}
	return h.do(http.MethodPost, "/user/login", "application/x-www-form-urlencoded", []byte(form.Encode()))
}

func registrationFor(username, email string) map[string]string {
	return map[string]string{
		"firstName":   "Anna",
		"email":       email,
		"username":    username,
		"password":    "tajne123!",
		"conPassword": "tajne123!",
	}
}

// activeUser registers and activates anna and leaves her logged in.
func (h *harness) activeUser() {
	h.t.Helper()
	status, _ := h.json(http.MethodPost, "/user/registration", registrationFor("anna", "anna@example.com"))
	require.Equal(h.t, http.StatusCreated, status)
	pin := h.notifier.last(h.t).Pin
	status, _ = h.get("/user/authorize-registration/" + pin)
	require.Equal(h.t, http.StatusOK, status)
	status, _ = h.login("anna", "tajne123!")
	require.Equal(h.t, http.StatusOK, status)
}

func TestRegistrationAndActivation(t *testing.T) {
	h := newHarness(t)

	status, _ := h.json(http.MethodPost, "/user/registration", registrationFor("anna", "Anna@Example.com"))
	require.Equal(t, http.StatusCreated, status)

	n := h.notifier.last(t)
	assert.Equal(t, amqp.KindActivation, n.Kind)
	assert.Equal(t, "anna@example.com", n.Email)
	assert.Len(t, n.Pin, 6)
	assert.Equal(t, "http://front.test/confirm/"+n.Pin, n.Link)

	t.Run("duplicates and reserved names conflict", func(t *testing.T) {
		status, _ := h.json(http.MethodPost, "/user/registration", registrationFor("anna", "other@example.com"))
		assert.Equal(t, http.StatusConflict, status)
		status, _ = h.json(http.MethodPost, "/user/registration", registrationFor("anna2", "anna@example.com"))
		assert.Equal(t, http.StatusConflict, status)
		status, _ = h.json(http.MethodPost, "/user/registration", registrationFor(AnonymousUser, "anon@example.com"))
		assert.Equal(t, http.StatusConflict, status)
	})

	t.Run("invalid data is rejected", func(t *testing.T) {
		reg := registrationFor("bartek", "bartek@example.com")
		reg["conPassword"] = "inne1234!"
		status, _ := h.json(http.MethodPost, "/user/registration", reg)
		assert.Equal(t, http.StatusBadRequest, status)

		reg = registrationFor("bartek", "bartek@example.com")
		reg["password"], reg["conPassword"] = "krotkie", "krotkie"
		status, _ = h.json(http.MethodPost, "/user/registration", reg)
		assert.Equal(t, http.StatusBadRequest, status)
	})

	t.Run("availability checks", func(t *testing.T) {
		status, _ := h.json(http.MethodPost, "/user/check-email", map[string]string{"email": "anna@example.com"})
		assert.Equal(t, http.StatusConflict, status)
		status, _ = h.json(http.MethodPost, "/user/check-email", map[string]string{"email": "nowy@example.com"})
		assert.Equal(t, http.StatusOK, status)
		status, _ = h.json(http.MethodPost, "/user/check-username", map[string]string{"username": "anna"})
		assert.Equal(t, http.StatusConflict, status)
		status, _ = h.json(http.MethodPost, "/user/check-username", map[string]string{"username": "nowy"})
		assert.Equal(t, http.StatusOK, status)
	})

	status, body := h.login("anna", "tajne123!")
	assert.Equal(t, http.StatusUnauthorized, status)
	assert.JSONEq(t, `{"message":"Profil nie został zautoryzowany"}`, body)

	status, body = h.get("/user/authorize-registration/000000")
	if n.Pin != "000000" {
		assert.Equal(t, http.StatusGone, status)
		assert.Equal(t, "Link aktywacyjny wygasł", body)
	}

	status, body = h.get("/user/authorize-registration/" + n.Pin)
	assert.Equal(t, http.StatusOK, status)
	assert.Equal(t, "Autoryzacja przebiegła pomyślnie", body)

	status, _ = h.get("/user/authorize-registration/" + n.Pin)
	assert.Equal(t, http.StatusGone, status, "pins are single use")
}

func TestActivationPinExpires(t *testing.T) {
	h := newHarness(t)
	status, _ := h.json(http.MethodPost, "/user/registration", registrationFor("anna", "anna@example.com"))
	require.Equal(t, http.StatusCreated, status)

	h.advance(2 * time.Hour)
	status, body := h.get("/user/authorize-registration/" + h.notifier.last(t).Pin)
	assert.Equal(t, http.StatusGone, status)
	assert.Equal(t, "Link aktywacyjny wygasł", body)
}

func TestLoginLogout(t *testing.T) {
	h := newHarness(t)
	h.activeUser()

	_, body := h.get("/user/me")
	assert.Equal(t, "anna", body)

	status, _ := h.do(http.MethodPost, "/user/logout", "", nil)
	assert.Equal(t, http.StatusOK, status)
	_, body = h.get("/user/me")
	assert.Equal(t, AnonymousUser, body)

	tests := []struct {
		name     string
		username string
		password string
		message  string
	}{
		{"unknown user", "ghost", "tajne123!", "Błędny login"},
		{"wrong password", "anna", "zle-haslo1", "Błędny login lub hasło"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			status, body := h.login(tt.username, tt.password)
			assert.Equal(t, http.StatusUnauthorized, status)
			var payload struct {
				Message string `json:"message"`
			}
			require.NoError(t, json.Unmarshal([]byte(body), &payload))
			assert.Equal(t, tt.message, payload.Message)
		})
	}
}

func TestPasswordReset(t *testing.T) {
	h := newHarness(t)
	h.activeUser()

	status, body := h.json(http.MethodPost, "/user/forgot-password", map[string]string{"email": "nikt@example.com"})
	assert.Equal(t, http.StatusNotFound, status)
	assert.Equal(t, "Adres email nie istnieje", body)

	status, body = h.json(http.MethodPost, "/user/forgot-password", map[string]string{"email": "anna@example.com"})
	require.Equal(t, http.StatusOK, status)
	assert.Equal(t, "Link aktywacyjny został wysłany na adres: anna@example.com", body)

	n := h.notifier.last(t)
	assert.Equal(t, amqp.KindPasswordReset, n.Kind)
	assert.Equal(t, "http://front.test/reset-password/"+n.Pin+"/anna@example.com", n.Link)

	status, body = h.get("/user/verify-reset/" + n.Pin + "/inna@example.com")
	assert.Equal(t, http.StatusNotFound, status)
	assert.Equal(t, "Błędne dane, prosimy wygenerować link ponownie", body)

	status, _ = h.get("/user/verify-reset/" + n.Pin + "/anna@example.com")
	assert.Equal(t, http.StatusOK, status)

	path := "/user/reset-password/" + n.Pin + "/anna@example.com"
	status, _ = h.json(http.MethodPut, path, map[string]string{"password": "nowe1234!", "conPassword": "inne1234!"})
	assert.Equal(t, http.StatusBadRequest, status)

	status, _ = h.json(http.MethodPut, path, map[string]string{"password": "nowe1234!", "conPassword": "nowe1234!"})
	require.Equal(t, http.StatusOK, status)

	status, _ = h.login("anna", "tajne123!")
	assert.Equal(t, http.StatusUnauthorized, status)
	status, _ = h.login("anna", "nowe1234!")
	assert.Equal(t, http.StatusOK, status)
}

func TestPasswordResetLinkExpires(t *testing.T) {
	h := newHarness(t)
	h.activeUser()

	status, _ := h.json(http.MethodPost, "/user/forgot-password", map[string]string{"email": "anna@example.com"})
	require.Equal(t, http.StatusOK, status)
	pin := h.notifier.last(t).Pin

	h.advance(2 * time.Hour)
	status, body := h.get("/user/verify-reset/" + pin + "/anna@example.com")
	assert.Equal(t, http.StatusGone, status)
	assert.Equal(t, "Data ważności linku minęła, prosimy wygenerować go ponownie", body)

	status, body = h.json(http.MethodPut, "/user/reset-password/"+pin+"/anna@example.com",
		map[string]string{"password": "nowe1234!", "conPassword": "nowe1234!"})
	assert.Equal(t, http.StatusGone, status)
	assert.Equal(t, "Data ważności linku minęła, prosimy wygenerować link ponownie", body)
}

func TestForgotPasswordRequiresActivation(t *testing.T) {
	h := newHarness(t)
	status, _ := h.json(http.MethodPost, "/user/registration", registrationFor("anna", "anna@example.com"))
	require.Equal(t, http.StatusCreated, status)

	status, body := h.json(http.MethodPost, "/user/forgot-password", map[string]string{"email": "anna@example.com"})
	assert.Equal(t, http.StatusConflict, status)
	assert.Equal(t, "Nie można zresetować hasła. Proszę najpierw autoryzować swój profil", body)
}

func TestEvents(t *testing.T) {
	h := newHarness(t)

	status, _ := h.get("/event/get-events?startDate=2024-06-01&endDate=2024-06-30")
	assert.Equal(t, http.StatusUnauthorized, status)

	h.activeUser()

	status, _ = h.get("/event/get-events?startDate=2024-06-01&endDate=2024-06-30")
	assert.Equal(t, http.StatusNotFound, status, "no events yet")

	status, _ = h.json(http.MethodPost, "/event/add-event", map[string]any{
		"title":       "Zakupy",
		"type":        "EXPENSE",
		"amount":      "45.50",
		"date":        "2024-06-10",
		"category":    "DAILY_SHOPPING",
		"paymentType": "CARD",
	})
	require.Equal(t, http.StatusCreated, status)

	status, _ = h.json(http.MethodPost, "/event/add-event", map[string]any{
		"title": "", "type": "EXPENSE", "amount": "1", "date": "2024-06-10", "category": "PETS",
	})
	assert.Equal(t, http.StatusBadRequest, status)

	status, body := h.get("/event/get-events?startDate=2024-06-01&endDate=2024-06-30")
	require.Equal(t, http.StatusOK, status)
	var page struct {
		FirstEventDate core.Date    `json:"firstEventDate"`
		Events         []core.Event `json:"events"`
	}
	require.NoError(t, json.Unmarshal([]byte(body), &page))
	assert.Equal(t, "2024-06-10", page.FirstEventDate.String())
	require.Len(t, page.Events, 1)
	assert.Equal(t, "Zakupy", page.Events[0].Title)
	assert.Equal(t, "45.5", page.Events[0].Amount.String())

	status, body = h.get("/event/get-events?startDate=2024-07-01&endDate=2024-07-31")
	require.Equal(t, http.StatusOK, status)
	require.NoError(t, json.Unmarshal([]byte(body), &page))
	assert.Empty(t, page.Events)

	status, _ = h.get("/event/get-events?startDate=jutro&endDate=2024-07-31")
	assert.Equal(t, http.StatusBadRequest, status)
}

func TestLoadDemo(t *testing.T) {
	h := newHarness(t)
	h.activeUser()

	status, _ := h.do(http.MethodPost, "/event/load-demo", "", nil)
	require.Equal(t, http.StatusCreated, status)

	today := core.DateOf(h.clock())
	from := today.StartOfMonth().AddDays(-1).StartOfMonth()
	status, body := h.get("/event/get-events?startDate=" + from.String() + "&endDate=" + today.EndOfMonth().String())
	require.Equal(t, http.StatusOK, status)
	var page struct {
		Events []core.Event `json:"events"`
	}
	require.NoError(t, json.Unmarshal([]byte(body), &page))
	assert.NotEmpty(t, page.Events)
}

func TestDemoEvents(t *testing.T) {
	events, err := DemoEvents(core.NewDate(2026, time.February, 15))
	require.NoError(t, err)
	require.NotEmpty(t, events)

	first := core.NewDate(2025, time.December, 1)
	last := core.NewDate(2026, time.February, 28)
	latest := events[0].Date
	for _, e := range events {
		assert.True(t, e.Date.Within(first, last), "%s outside shifted window", e.Date)
		assert.True(t, e.Type.Valid(), e.Title)
		assert.True(t, e.Category.Valid(), e.Title)
		if e.Date.After(latest) {
			latest = e.Date
		}
	}
	assert.Equal(t, time.February, latest.Month())
}

func TestShiftMonths(t *testing.T) {
	tests := []struct {
		in   core.Date
		n    int
		want string
	}{
		{core.NewDate(2024, time.January, 31), 1, "2024-02-29"},
		{core.NewDate(2024, time.September, 15), 17, "2026-02-15"},
		{core.NewDate(2024, time.March, 31), -1, "2024-02-29"},
		{core.NewDate(2024, time.December, 5), 0, "2024-12-05"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, shiftMonths(tt.in, tt.n).String())
	}
}

func TestDeleteAccount(t *testing.T) {
	h := newHarness(t)

	status, _ := h.json(http.MethodDelete, "/user/delete-account", map[string]string{"password": "tajne123!"})
	assert.Equal(t, http.StatusUnauthorized, status)

	h.activeUser()

	status, _ = h.json(http.MethodDelete, "/user/delete-account", map[string]string{"password": "zle-haslo1"})
	assert.Equal(t, http.StatusForbidden, status)

	status, _ = h.json(http.MethodDelete, "/user/delete-account", map[string]string{"password": "tajne123!"})
	require.Equal(t, http.StatusNoContent, status)
	n := h.notifier.last(t)
	assert.Equal(t, amqp.KindAccountDeleted, n.Kind)
	assert.Equal(t, "anna@example.com", n.Email)

	_, body := h.get("/user/me")
	assert.Equal(t, AnonymousUser, body)
	status, _ = h.login("anna", "tajne123!")
	assert.Equal(t, http.StatusUnauthorized, status)
}

func TestCurrencyRates(t *testing.T) {
	h := newHarness(t)

	status, body := h.get("/currency-rates")
	require.Equal(t, http.StatusOK, status)

	var payload struct {
		Prev    map[string]json.RawMessage `json:"prevRateList"`
		Current map[string]json.RawMessage `json:"currentRateList"`
	}
	require.NoError(t, json.Unmarshal([]byte(body), &payload))
	assert.Contains(t, payload.Current, "insertDate")
	assert.Contains(t, payload.Current, "eur")
	assert.Contains(t, payload.Prev, "eur")
}

func TestHealth(t *testing.T) {
	h := newHarness(t)
	status, body := h.get("/healthz")
	assert.Equal(t, http.StatusOK, status)
	assert.JSONEq(t, `{"status":"healthy"}`, body)
}
