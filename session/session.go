package session

import (
	"net/http"
	"sync/atomic"
	"time"
)

// Cookie is the serializable subset of an HTTP cookie the session
// carries across save/restore. The cookie jar owns attribute semantics
// at runtime; only name/value pairs travel in bundles, scoped back to
// the GitHub host on restore.
type Cookie struct {
	Name  string `json:"name"`
	Value string `json:"value"`
}

// Session is one authenticated browser-equivalent session.
//
// All fields except the validity flag are set once during the handshake
// and treated as immutable afterwards.
type Session struct {
	// Identity is the login the session was established for.
	Identity string `json:"identity"`
	// CSRFToken is the page-embedded token echoed on XHR requests.
	CSRFToken string `json:"csrf_token"`
	// Cookies is the jar snapshot taken after the handshake.
	Cookies []Cookie `json:"cookies"`

	CreatedAt time.Time `json:"created_at"`
	// ExpiresAt bounds validity; zero means no client-side bound.
	ExpiresAt time.Time `json:"expires_at"`

	invalid atomic.Bool
}

// Valid reports whether the session may still be borrowed at the given
// instant. A session invalidated by any caller stays invalid.
func (s *Session) Valid(now time.Time) bool {
	if s == nil || s.invalid.Load() {
		return false
	}
	if !s.ExpiresAt.IsZero() && !now.Before(s.ExpiresAt) {
		return false
	}
	return true
}

// Invalidate permanently marks the session unusable. Safe to call from
// any goroutine, any number of times.
func (s *Session) Invalidate() {
	if s != nil {
		s.invalid.Store(true)
	}
}

// HTTPCookies converts the snapshot for injection into a cookie jar.
func (s *Session) HTTPCookies() []*http.Cookie {
	cookies := make([]*http.Cookie, 0, len(s.Cookies))
	for _, c := range s.Cookies {
		cookies = append(cookies, &http.Cookie{Name: c.Name, Value: c.Value})
	}
	return cookies
}

// SnapshotCookies captures jar cookies into the serializable form.
func SnapshotCookies(cookies []*http.Cookie) []Cookie {
	snapshot := make([]Cookie, 0, len(cookies))
	for _, c := range cookies {
		snapshot = append(snapshot, Cookie{Name: c.Name, Value: c.Value})
	}
	return snapshot
}
