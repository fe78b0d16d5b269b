package state

import (
	"fmt"
	"net/http"
	"net/http/cookiejar"
	"sync"
	"time"

	"golang.org/x/net/publicsuffix"

	"portfel/internal/core"
)

// Dashboard is the last accepted dashboard load of a visitor.
type Dashboard struct {
	From           core.Date
	To             core.Date
	Events         []core.Event
	FirstEventDate core.Date
	// NoEvents is set when the backend holds no events for the account.
	NoEvents bool
	LoadedAt time.Time
}

// Banner is an inline error message. Key changes on every failure so that
// repeating the same message still replaces the rendered banner.
type Banner struct {
	Key     uint64
	Message string
}

// AppState is everything the frontend remembers about one visitor. It is
// safe for concurrent use by overlapping requests of the same visitor.
type AppState struct {
	ID        string
	Dialogs   *Dialogs
	Session   *Session
	Dashboard *Sequencer
	CreatedAt time.Time

	mu        sync.Mutex
	jar       http.CookieJar
	snapshot  *Dashboard
	bannerKey uint64
}

// NewAppState creates the state of visitor id with an empty cookie jar for
// backend calls. When the session expires the login dialog opens and the
// dashboard snapshot is dropped.
func NewAppState(id string) (*AppState, error) {
	jar, err := cookiejar.New(&cookiejar.Options{PublicSuffixList: publicsuffix.List})
	if err != nil {
		return nil, fmt.Errorf("create cookie jar: %w", err)
	}
	s := &AppState{
		ID:        id,
		Dialogs:   &Dialogs{},
		Session:   &Session{},
		Dashboard: &Sequencer{},
		jar:       jar,
		CreatedAt: time.Now(),
	}
	s.Session.Observe(func() {
		s.ClearDashboard()
		s.Dialogs.Open(DialogLogin)
	})
	return s, nil
}

// CommitDashboard stores d as the current dashboard if request id is still
// the newest one issued by the dashboard sequencer. It reports whether d
// was stored.
func (s *AppState) CommitDashboard(id uint64, d Dashboard) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.Dashboard.Accept(id) {
		return false
	}
	s.snapshot = &d
	return true
}

// CurrentDashboard returns a copy of the last committed dashboard.
func (s *AppState) CurrentDashboard() (Dashboard, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.snapshot == nil {
		return Dashboard{}, false
	}
	return *s.snapshot, true
}

func (s *AppState) ClearDashboard() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.snapshot = nil
}

// Fail returns a banner carrying msg and a fresh key.
func (s *AppState) Fail(msg string) Banner {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.bannerKey++
	return Banner{Key: s.bannerKey, Message: msg}
}

// SignOut forgets the user, the backend cookies and the dashboard.
func (s *AppState) SignOut() error {
	jar, err := cookiejar.New(&cookiejar.Options{PublicSuffixList: publicsuffix.List})
	if err != nil {
		return fmt.Errorf("reset cookie jar: %w", err)
	}
	s.mu.Lock()
	s.jar = jar
	s.snapshot = nil
	s.mu.Unlock()
	s.Session.SignOut()
	s.Dialogs.CloseAll()
	return nil
}

// CookieJar returns the jar used for backend calls of this visitor.
func (s *AppState) CookieJar() http.CookieJar {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.jar
}
