package ghWeb

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/MrEthical07/ghWeb/internal/htmlform"
	"github.com/MrEthical07/ghWeb/session"
	"github.com/rs/zerolog"
	"golang.org/x/sync/singleflight"
)

const (
	loginPath     = "/login"
	twoFactorPath = "/sessions/two-factor"
	logoutPath    = "/logout"
)

// authenticator owns the current session and everything that mutates
// it. Executing calls borrow the session through ensureSession; the
// cookie jar and the session pointer are the only shared mutable state
// in the client, and both are serialized here.
type authenticator struct {
	creds   Credentials
	config  Config
	tr      *transport
	otp     *otpGenerator
	store   *session.Store
	metrics *Metrics
	log     zerolog.Logger

	group   singleflight.Group
	mu      sync.Mutex
	current *session.Session
}

func newAuthenticator(creds Credentials, cfg Config, tr *transport, store *session.Store, metrics *Metrics, log zerolog.Logger) *authenticator {
	return &authenticator{
		creds:   creds,
		config:  cfg,
		tr:      tr,
		otp:     newOTPGenerator(cfg.TOTP),
		store:   store,
		metrics: metrics,
		log:     log,
	}
}

func (a *authenticator) snapshot() *session.Session {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.current
}

// ensureSession returns the cached session when it is still valid, and
// otherwise coalesces all blocked callers onto a single handshake. A
// caller cancelling its own context stops waiting but the shared
// handshake keeps running for everyone else.
func (a *authenticator) ensureSession(ctx context.Context) (*session.Session, error) {
	if sess := a.snapshot(); sess.Valid(time.Now()) {
		return sess, nil
	}

	ch := a.group.DoChan("session", func() (any, error) {
		// Another caller may have finished the refresh between our
		// validity check and the flight starting.
		if sess := a.snapshot(); sess.Valid(time.Now()) {
			return sess, nil
		}

		// Detached from any single caller so one cancellation cannot
		// abort a refresh the rest are waiting on; bounded by the
		// handshake timeout instead.
		hctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), a.config.HTTP.HandshakeTimeout)
		defer cancel()

		sess, err := a.establish(hctx)
		if err != nil {
			a.metrics.Inc(MetricAuthFailure)
			return nil, err
		}

		a.mu.Lock()
		a.current = sess
		a.mu.Unlock()

		return sess, nil
	})

	select {
	case result := <-ch:
		if result.Err != nil {
			return nil, result.Err
		}
		return result.Val.(*session.Session), nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// invalidate marks a borrowed session unusable and drops its persisted
// bundle. The next ensureSession triggers a fresh handshake. A stale
// borrower invalidating after a refresh only poisons its own copy; the
// current session and its bundle stay untouched.
func (a *authenticator) invalidate(sess *session.Session) {
	if sess == nil {
		return
	}
	sess.Invalidate()

	a.mu.Lock()
	isCurrent := a.current == sess
	a.mu.Unlock()
	if !isCurrent {
		return
	}

	if a.store != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := a.store.Delete(ctx, sess.Identity); err != nil {
			a.log.Warn().Err(err).Msg("drop persisted session")
		}
	}
}

// logout tears the session down server-side (best effort) and locally.
func (a *authenticator) logout(ctx context.Context) error {
	sess := a.snapshot()
	if sess == nil {
		return nil
	}

	// GitHub's logout is itself a form POST carrying an
	// authenticity_token, so it goes through the same form cycle.
	_, err := submitForm(ctx, a.tr, FormRequest{URL: a.config.HTTP.BaseURL + logoutPath})
	a.invalidate(sess)
	if err != nil {
		a.log.Warn().Err(err).Msg("server-side logout failed; session invalidated locally")
		return err
	}
	return nil
}

// establish produces a fresh session via whichever path the
// credentials allow: restore from the store, cookie injection, or the
// full login handshake.
func (a *authenticator) establish(ctx context.Context) (*session.Session, error) {
	if sess := a.restore(ctx); sess != nil {
		return sess, nil
	}
	if len(a.creds.Cookies) > 0 {
		return a.importCookies(ctx)
	}
	return a.login(ctx)
}

// restore tries the persisted bundle. Any failure is a cache miss, not
// an error: the handshake path is always available behind it.
func (a *authenticator) restore(ctx context.Context) *session.Session {
	if a.store == nil {
		return nil
	}

	sess, err := a.store.Load(ctx, a.creds.identity())
	if err != nil {
		if a.log.GetLevel() <= zerolog.DebugLevel {
			a.log.Debug().Err(err).Msg("no persisted session")
		}
		return nil
	}
	if !sess.Valid(time.Now()) {
		return nil
	}
	if err := a.tr.setCookies(a.config.HTTP.BaseURL, sess.HTTPCookies()); err != nil {
		return nil
	}

	a.metrics.Inc(MetricSessionRestored)
	a.log.Info().Str("identity", sess.Identity).Msg("session restored from store")
	return sess
}

// importCookies establishes a session from a caller-supplied cookie
// bundle: inject, fetch one authenticated page, and scrape the CSRF
// token and login from it.
func (a *authenticator) importCookies(ctx context.Context) (*session.Session, error) {
	sess := &session.Session{Cookies: a.creds.Cookies}
	if err := a.tr.setCookies(a.config.HTTP.BaseURL, sess.HTTPCookies()); err != nil {
		return nil, &AuthenticationError{Stage: "cookie-import", Reason: "cookie injection failed", Err: err}
	}

	page, err := a.tr.roundTrip(ctx, http.MethodGet, a.config.HTTP.BaseURL, htmlAcceptHeader(), nil)
	if err != nil {
		return nil, err
	}
	if page.Status < 200 || page.Status > 299 {
		return nil, &AuthenticationError{
			Stage:  "cookie-import",
			Reason: fmt.Sprintf("authenticated page fetch returned %d", page.Status),
		}
	}

	return a.finishHandshake(page, a.creds.identity(), "cookie-import")
}

// login replays what a browser does on github.com/login: scrape and
// submit the login form, clear the two-factor interstitial when it
// appears, and land on an authenticated page.
func (a *authenticator) login(ctx context.Context) (*session.Session, error) {
	a.metrics.Inc(MetricAuthHandshake)
	a.log.Info().Str("username", a.creds.Username).Msg("starting login handshake")

	resp, err := submitForm(ctx, a.tr, FormRequest{
		URL: a.config.HTTP.BaseURL + loginPath,
		Fields: map[string]string{
			"login":    a.creds.Username,
			"password": a.creds.Password,
		},
	})
	if err != nil {
		return nil, loginError("login", "login form submission failed", err)
	}

	if strings.Contains(resp.URL, twoFactorPath) {
		resp, err = a.twoFactor(ctx, resp.URL)
		if err != nil {
			return nil, err
		}
	}

	if !loggedIn(resp.Body) {
		return nil, &AuthenticationError{Stage: "login", Reason: "credentials rejected"}
	}

	return a.finishHandshake(resp, a.creds.Username, "login")
}

func (a *authenticator) twoFactor(ctx context.Context, pageURL string) (*Response, error) {
	if a.creds.OTPSeed == "" {
		return nil, &AuthenticationError{
			Stage:  "two-factor",
			Reason: "account requires a one-time code",
			Err:    ErrTwoFactorRequired,
		}
	}

	code, err := a.otp.code(a.creds.OTPSeed, time.Now())
	if err != nil {
		return nil, &AuthenticationError{Stage: "two-factor", Reason: "otp generation failed", Err: err}
	}

	resp, err := submitForm(ctx, a.tr, FormRequest{
		URL:    pageURL,
		Fields: map[string]string{"otp": code},
	})
	if err != nil {
		return nil, loginError("two-factor", "two-factor form submission failed", err)
	}
	if strings.Contains(resp.URL, twoFactorPath) {
		return nil, &AuthenticationError{Stage: "two-factor", Reason: "one-time code rejected"}
	}
	return resp, nil
}

// finishHandshake scrapes the session artifacts off the authenticated
// page, snapshots the jar, and persists the bundle when a store is
// configured.
func (a *authenticator) finishHandshake(page *Response, fallbackIdentity, stage string) (*session.Session, error) {
	csrf, ok := htmlform.MetaContent(bytes.NewReader(page.Body), "csrf-token")
	if !ok || csrf == "" {
		return nil, &AuthenticationError{Stage: "csrf", Reason: "page carries no csrf token", Err: ErrCSRFTokenMissing}
	}

	identity := fallbackIdentity
	if login, ok := htmlform.MetaContent(bytes.NewReader(page.Body), "user-login"); ok && login != "" {
		identity = login
	}

	now := time.Now()
	sess := &session.Session{
		Identity:  identity,
		CSRFToken: csrf,
		Cookies:   session.SnapshotCookies(a.tr.cookies(a.config.HTTP.BaseURL)),
		CreatedAt: now,
	}
	if a.config.Session.TTL > 0 {
		sess.ExpiresAt = now.Add(a.config.Session.TTL)
	}

	if a.store != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := a.store.Save(ctx, sess); err != nil {
			a.log.Warn().Err(err).Msg("persist session")
		}
	}

	a.log.Info().Str("identity", identity).Str("stage", stage).Msg("session established")
	return sess, nil
}

// loggedIn checks for the user-login meta GitHub embeds on every
// authenticated page. Its absence after a handshake means the server
// bounced us back to an anonymous page.
func loggedIn(body []byte) bool {
	login, ok := htmlform.MetaContent(bytes.NewReader(body), "user-login")
	return ok && login != ""
}

// loginError keeps transport-level classification intact: a network
// fault during the handshake is still a NetworkError, everything else
// becomes an AuthenticationError for the stage.
func loginError(stage, reason string, err error) error {
	var netErr *NetworkError
	if errors.As(err, &netErr) {
		return err
	}
	return &AuthenticationError{Stage: stage, Reason: reason, Err: err}
}
