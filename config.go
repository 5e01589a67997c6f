package ghWeb

import (
	"errors"
	"net/url"
	"strings"
	"time"
)

// Config tunes the client. Zero values are filled from DefaultConfig by
// the Builder; a Config is cloned at Build time and treated as
// immutable afterwards.
type Config struct {
	HTTP    HTTPConfig
	Retry   RetryConfig
	Session SessionConfig
	TOTP    TOTPConfig
	Drift   DriftConfig
}

/*
====================================
HTTP CONFIG
====================================
*/

// HTTPConfig tunes the transport layer.
type HTTPConfig struct {
	// BaseURL is the web UI host. Default https://github.com.
	BaseURL string
	// UserAgent is sent on every request. The default imitates a
	// desktop browser; GitHub serves different markup to clients that
	// do not look like one.
	UserAgent string
	// RequestTimeout bounds one request/response exchange.
	RequestTimeout time.Duration
	// HandshakeTimeout bounds the whole login flow, which spans
	// several exchanges.
	HandshakeTimeout time.Duration
	// MaxIdleConns sizes the pooled connection set.
	MaxIdleConns int
	// MaxBodyBytes caps how much of a response body is read.
	MaxBodyBytes int64
	// PacingRPS throttles outbound requests across all callers.
	// Zero disables pacing.
	PacingRPS float64
	// PacingBurst is the pacing bucket size when pacing is on.
	PacingBurst int
}

/*
====================================
RETRY CONFIG
====================================
*/

// RetryConfig bounds the transient-failure retry schedule. Statuses
// outside RetryableStatuses are surfaced immediately as HTTPError.
type RetryConfig struct {
	// MaxAttempts counts transport attempts including the first.
	MaxAttempts int
	// BackoffBase is the first delay; later delays double up to
	// BackoffCeiling.
	BackoffBase    time.Duration
	BackoffCeiling time.Duration
	// RetryableStatuses are retried with backoff. 429 plus the
	// transient 5xx set by default.
	RetryableStatuses []int
}

func (c RetryConfig) retryable(status int) bool {
	for _, s := range c.RetryableStatuses {
		if s == status {
			return true
		}
	}
	return false
}

/*
====================================
SESSION CONFIG
====================================
*/

// SessionConfig tunes session lifetime and persistence.
type SessionConfig struct {
	// TTL is the client-side validity bound. Past it the next call
	// refreshes rather than trusting cookies GitHub may have expired.
	// Zero means no client-side bound.
	TTL time.Duration
	// StorePrefix namespaces persisted bundles in Redis.
	StorePrefix string
}

/*
====================================
TOTP CONFIG
====================================
*/

// TOTPConfig describes the code generator for the two-factor step.
// Defaults match GitHub's authenticator-app provisioning.
type TOTPConfig struct {
	Digits    int
	Period    int
	Algorithm string // "SHA1" (default), "SHA256", "SHA512"
}

/*
====================================
DRIFT CONFIG
====================================
*/

// DriftConfig tunes the asynchronous drift reporter.
type DriftConfig struct {
	// Enabled turns report delivery on. Detection always runs; this
	// only gates the dispatcher.
	Enabled bool
	// BufferSize is the report channel depth. Reports beyond it are
	// dropped and counted, never blocking a call.
	BufferSize int
}

// DefaultConfig returns the configuration the Builder starts from.
// Callers tweak the returned value and hand it back through
// [Builder.WithConfig].
func DefaultConfig() Config {
	return Config{
		HTTP: HTTPConfig{
			BaseURL: "https://github.com",
			UserAgent: "Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15_7) " +
				"AppleWebKit/537.36 (KHTML, like Gecko) Chrome/126.0.0.0 Safari/537.36",
			RequestTimeout:   30 * time.Second,
			HandshakeTimeout: 90 * time.Second,
			MaxIdleConns:     10,
			MaxBodyBytes:     4 << 20,
		},
		Retry: RetryConfig{
			MaxAttempts:       4,
			BackoffBase:       500 * time.Millisecond,
			BackoffCeiling:    8 * time.Second,
			RetryableStatuses: []int{429, 502, 503, 504},
		},
		Session: SessionConfig{
			TTL:         12 * time.Hour,
			StorePrefix: "ghweb:sess:",
		},
		TOTP: TOTPConfig{
			Digits:    6,
			Period:    30,
			Algorithm: "SHA1",
		},
		Drift: DriftConfig{
			Enabled:    true,
			BufferSize: 64,
		},
	}
}

// Validate rejects configurations the client cannot run with.
func (c Config) Validate() error {
	u, err := url.Parse(c.HTTP.BaseURL)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return errors.New("HTTP.BaseURL must be an absolute URL")
	}
	if c.HTTP.RequestTimeout <= 0 {
		return errors.New("HTTP.RequestTimeout must be positive")
	}
	if c.HTTP.HandshakeTimeout < c.HTTP.RequestTimeout {
		return errors.New("HTTP.HandshakeTimeout must cover at least one request")
	}
	if c.HTTP.MaxBodyBytes <= 0 {
		return errors.New("HTTP.MaxBodyBytes must be positive")
	}
	if c.HTTP.PacingRPS < 0 {
		return errors.New("HTTP.PacingRPS must not be negative")
	}
	if c.HTTP.PacingRPS > 0 && c.HTTP.PacingBurst < 1 {
		return errors.New("HTTP.PacingBurst must be at least 1 when pacing is enabled")
	}
	if c.Retry.MaxAttempts < 1 {
		return errors.New("Retry.MaxAttempts must be at least 1")
	}
	if c.Retry.BackoffBase <= 0 || c.Retry.BackoffCeiling < c.Retry.BackoffBase {
		return errors.New("Retry backoff bounds invalid")
	}
	for _, s := range c.Retry.RetryableStatuses {
		if s < 400 || s > 599 {
			return errors.New("Retry.RetryableStatuses must be 4xx or 5xx codes")
		}
	}
	if c.Session.TTL < 0 {
		return errors.New("Session.TTL must not be negative")
	}
	if c.TOTP.Digits < 6 || c.TOTP.Digits > 10 {
		return errors.New("TOTP.Digits must be between 6 and 10")
	}
	if c.TOTP.Period < 1 {
		return errors.New("TOTP.Period must be positive")
	}
	switch strings.ToUpper(c.TOTP.Algorithm) {
	case "", "SHA1", "SHA256", "SHA512":
	default:
		return errors.New("TOTP.Algorithm must be SHA1, SHA256, or SHA512")
	}
	if c.Drift.Enabled && c.Drift.BufferSize < 1 {
		return errors.New("Drift.BufferSize must be at least 1 when drift reporting is enabled")
	}
	return nil
}

func cloneConfig(c Config) Config {
	out := c
	out.Retry.RetryableStatuses = append([]int(nil), c.Retry.RetryableStatuses...)
	return out
}
