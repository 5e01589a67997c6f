package ghWeb

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync"
	"time"
)

const (
	testUser     = "octocat"
	testPassword = "hunter2"
	testOTPSeed  = "JBSWY3DPEHPK3PXP"
	testCSRF     = "csrf-abc123"
)

// fakeGitHub imitates the slice of github.com the client talks to:
// the login handshake, the two-factor interstitial, one JSON endpoint,
// and one form-based endpoint.
type fakeGitHub struct {
	srv *httptest.Server

	requireOTP bool
	loginDelay time.Duration

	mu             sync.Mutex
	sessions       map[string]bool
	nextSession    int
	loginPagePulls int
	loginPosts     int
	otpPosts       int
	hovercardHits  int
	lastCSRFHeader string
	orgPosts       []map[string]string
	logoutPosts    int

	// hovercardStatus decides the status of the nth hovercard hit
	// (1-based). Nil means 200 for authenticated callers.
	hovercardStatus func(hit int) int
	hovercardBody   string
}

func newFakeGitHub() *fakeGitHub {
	g := &fakeGitHub{
		sessions:      map[string]bool{},
		hovercardBody: `{"login":"octocat","bio":"Works on fish"}`,
	}

	mux := http.NewServeMux()
	mux.HandleFunc("GET /", g.handleHome)
	mux.HandleFunc("GET /login", g.handleLoginPage)
	mux.HandleFunc("POST /session", g.handleLoginPost)
	mux.HandleFunc("GET /sessions/two-factor", g.handleTwoFactorPage)
	mux.HandleFunc("POST /sessions/two-factor", g.handleTwoFactorPost)
	mux.HandleFunc("GET /users/{username}/hovercard", g.handleHovercard)
	mux.HandleFunc("GET /account/organizations/new", g.handleOrgPage)
	mux.HandleFunc("POST /organizations", g.handleOrgPost)
	mux.HandleFunc("GET /logout", g.handleLogoutPage)
	mux.HandleFunc("POST /logout", g.handleLogoutPost)

	g.srv = httptest.NewServer(mux)
	return g
}

func (g *fakeGitHub) Close() { g.srv.Close() }

func (g *fakeGitHub) URL() string { return g.srv.URL }

func (g *fakeGitHub) authed(r *http.Request) bool {
	c, err := r.Cookie("user_session")
	if err != nil {
		return false
	}
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.sessions[c.Value]
}

func (g *fakeGitHub) issueSession(w http.ResponseWriter) {
	g.mu.Lock()
	g.nextSession++
	token := fmt.Sprintf("sess-%d", g.nextSession)
	g.sessions[token] = true
	g.mu.Unlock()
	http.SetCookie(w, &http.Cookie{Name: "user_session", Value: token, Path: "/"})
}

// revokeAll makes every issued session cookie invalid server-side, the
// same way GitHub kills sessions on password change.
func (g *fakeGitHub) revokeAll() {
	g.mu.Lock()
	defer g.mu.Unlock()
	for token := range g.sessions {
		g.sessions[token] = false
	}
}

func (g *fakeGitHub) counters() (loginPosts, otpPosts, hovercardHits int) {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.loginPosts, g.otpPosts, g.hovercardHits
}

func (g *fakeGitHub) handleHome(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path != "/" {
		http.NotFound(w, r)
		return
	}
	if !g.authed(r) {
		fmt.Fprint(w, `<!DOCTYPE html><html><head><title>GitHub</title></head><body>Sign in</body></html>`)
		return
	}
	fmt.Fprintf(w, `<!DOCTYPE html><html><head><meta name="csrf-token" content="%s"><meta name="user-login" content="%s"></head><body>Dashboard</body></html>`,
		testCSRF, testUser)
}

func (g *fakeGitHub) handleLoginPage(w http.ResponseWriter, r *http.Request) {
	g.mu.Lock()
	g.loginPagePulls++
	g.mu.Unlock()
	fmt.Fprint(w, `<!DOCTYPE html><html><body>
<form id="login" action="/session" method="post">
<input type="hidden" name="authenticity_token" value="tok-login">
<input type="text" name="login" value="">
<input type="password" name="password" value="">
<input type="hidden" name="return_to" value="/">
</form></body></html>`)
}

func (g *fakeGitHub) handleLoginPost(w http.ResponseWriter, r *http.Request) {
	if g.loginDelay > 0 {
		time.Sleep(g.loginDelay)
	}
	g.mu.Lock()
	g.loginPosts++
	g.mu.Unlock()

	if r.FormValue("authenticity_token") != "tok-login" {
		http.Error(w, "missing token", http.StatusUnprocessableEntity)
		return
	}
	if r.FormValue("login") != testUser || r.FormValue("password") != testPassword {
		// Back to the anonymous login page, like the real site.
		g.handleLoginPage(w, r)
		return
	}
	if g.requireOTP {
		http.Redirect(w, r, "/sessions/two-factor", http.StatusFound)
		return
	}
	g.issueSession(w)
	http.Redirect(w, r, "/", http.StatusFound)
}

func (g *fakeGitHub) handleTwoFactorPage(w http.ResponseWriter, r *http.Request) {
	fmt.Fprint(w, `<!DOCTYPE html><html><body>
<form action="/sessions/two-factor" method="post">
<input type="hidden" name="authenticity_token" value="tok-otp">
<input type="text" name="otp" value="">
</form></body></html>`)
}

func (g *fakeGitHub) handleTwoFactorPost(w http.ResponseWriter, r *http.Request) {
	g.mu.Lock()
	g.otpPosts++
	g.mu.Unlock()

	if r.FormValue("authenticity_token") != "tok-otp" {
		http.Error(w, "missing token", http.StatusUnprocessableEntity)
		return
	}
	if !g.otpValid(r.FormValue("otp")) {
		http.Redirect(w, r, "/sessions/two-factor", http.StatusFound)
		return
	}
	g.issueSession(w)
	http.Redirect(w, r, "/", http.StatusFound)
}

// otpValid accepts the current step's code and its neighbors so a step
// boundary between client and server cannot flake the test.
func (g *fakeGitHub) otpValid(code string) bool {
	gen := newOTPGenerator(TOTPConfig{})
	now := time.Now()
	for _, at := range []time.Time{now.Add(-30 * time.Second), now, now.Add(30 * time.Second)} {
		want, err := gen.code(testOTPSeed, at)
		if err == nil && want == code {
			return true
		}
	}
	return false
}

func (g *fakeGitHub) handleHovercard(w http.ResponseWriter, r *http.Request) {
	g.mu.Lock()
	g.hovercardHits++
	hit := g.hovercardHits
	g.lastCSRFHeader = r.Header.Get("Scoped-CSRF-Token")
	override := g.hovercardStatus
	body := g.hovercardBody
	g.mu.Unlock()

	if override != nil {
		if status := override(hit); status != http.StatusOK {
			http.Error(w, http.StatusText(status), status)
			return
		}
	} else if !g.authed(r) {
		http.Error(w, "unauthorized", http.StatusUnauthorized)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	fmt.Fprint(w, body)
}

func (g *fakeGitHub) handleOrgPage(w http.ResponseWriter, r *http.Request) {
	if !g.authed(r) {
		http.Error(w, "unauthorized", http.StatusUnauthorized)
		return
	}
	fmt.Fprint(w, `<!DOCTYPE html><html><body>
<form id="unrelated" action="/search" method="get">
<input type="text" name="q" value="ignored">
</form>
<form id="org-new-form" action="/organizations" method="post">
<input type="hidden" name="authenticity_token" value="tok-org">
<input type="hidden" name="organization[plan]" value="free">
<input type="text" name="organization[login]" value="">
</form></body></html>`)
}

func (g *fakeGitHub) handleOrgPost(w http.ResponseWriter, r *http.Request) {
	if !g.authed(r) {
		http.Error(w, "unauthorized", http.StatusUnauthorized)
		return
	}
	if err := r.ParseForm(); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	posted := map[string]string{}
	for key := range r.PostForm {
		posted[key] = r.PostForm.Get(key)
	}
	g.mu.Lock()
	g.orgPosts = append(g.orgPosts, posted)
	g.mu.Unlock()
	w.Header().Set("Content-Type", "application/json")
	fmt.Fprint(w, `{"ok":true}`)
}

func (g *fakeGitHub) handleLogoutPage(w http.ResponseWriter, r *http.Request) {
	fmt.Fprint(w, `<!DOCTYPE html><html><body>
<form action="/logout" method="post">
<input type="hidden" name="authenticity_token" value="tok-logout">
</form></body></html>`)
}

func (g *fakeGitHub) handleLogoutPost(w http.ResponseWriter, r *http.Request) {
	g.mu.Lock()
	g.logoutPosts++
	g.mu.Unlock()
	if c, err := r.Cookie("user_session"); err == nil {
		g.mu.Lock()
		g.sessions[c.Value] = false
		g.mu.Unlock()
	}
	http.Redirect(w, r, "/", http.StatusFound)
}

// stubClock records backoff sleeps instead of performing them, so
// retry schedules run instantly.
type stubClock struct {
	mu     sync.Mutex
	now    time.Time
	sleeps []time.Duration
}

func newStubClock() *stubClock {
	return &stubClock{now: time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)}
}

func (c *stubClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *stubClock) Sleep(ctx context.Context, d time.Duration) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	c.mu.Lock()
	c.sleeps = append(c.sleeps, d)
	c.now = c.now.Add(d)
	c.mu.Unlock()
	return nil
}

func (c *stubClock) sleepCount() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.sleeps)
}

// newTestClient wires a client against the fake server with retries
// kept short and the stub clock installed.
func newTestClient(t interface {
	Helper()
	Fatalf(string, ...any)
}, g *fakeGitHub, creds Credentials, mutate func(*Config)) (*Client, *stubClock) {
	t.Helper()

	cfg := DefaultConfig()
	cfg.HTTP.BaseURL = g.URL()
	cfg.HTTP.RequestTimeout = 5 * time.Second
	cfg.HTTP.HandshakeTimeout = 10 * time.Second
	cfg.Retry.BackoffBase = 10 * time.Millisecond
	cfg.Retry.BackoffCeiling = 40 * time.Millisecond
	if mutate != nil {
		mutate(&cfg)
	}

	client, err := New().
		WithConfig(cfg).
		WithCredentials(creds).
		Build()
	if err != nil {
		t.Fatalf("build client: %v", err)
	}

	clock := newStubClock()
	client.clock = clock
	return client, clock
}

func decodeJSON[T any](t interface {
	Helper()
	Fatalf(string, ...any)
}, data []byte) T {
	t.Helper()
	var out T
	if err := json.Unmarshal(data, &out); err != nil {
		t.Fatalf("decode json: %v", err)
	}
	return out
}
