package api

import (
	"net/http"

	"golang.org/x/sync/singleflight"
)

// Backend hands out clients of the backend REST API bound to a visitor's
// cookie jar. Requests that do not depend on the visitor, like the
// currency rates, are collapsed across visitors.
type Backend struct {
	up    *Upstream
	rates singleflight.Group
}

func NewBackend(up *Upstream) *Backend {
	return &Backend{up: up}
}

// Public returns the client of the endpoints usable without a session.
// Login stores the session cookie in jar.
func (b *Backend) Public(jar http.CookieJar) *PublicClient {
	return &PublicClient{backend: b, jar: jar}
}

// Protected returns the client of the session endpoints. onUnauthorized is
// called whenever the backend answers 401; it may be nil.
func (b *Backend) Protected(jar http.CookieJar, onUnauthorized func()) *ProtectedClient {
	return &ProtectedClient{up: b.up, jar: jar, onUnauthorized: onUnauthorized}
}
