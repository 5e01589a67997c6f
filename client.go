package ghWeb

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"sync/atomic"
	"time"

	"github.com/MrEthical07/ghWeb/binding"
	"github.com/MrEthical07/ghWeb/internal/backoff"
	"github.com/MrEthical07/ghWeb/session"
	"github.com/rs/zerolog"
)

// Client executes calls against GitHub's non-public endpoints. It is
// safe for concurrent use: calls share the transport's connection pool
// and cookie jar, borrow sessions from the authenticator, and never
// block each other during backoff waits.
//
// Construct through [New]; the zero Client is not usable.
type Client struct {
	config  Config
	tr      *transport
	auth    *authenticator
	drift   *driftDispatcher
	metrics *Metrics
	log     zerolog.Logger
	clock   backoff.Clock
	closed  atomic.Bool
}

// callSpec is the executor's view of one bound call after the path
// template has been resolved.
type callSpec struct {
	name            string
	method          string
	path            string
	requiresSession bool
	csrf            binding.CSRFMode
}

// Call executes a typed endpoint binding. It is a free function because
// methods cannot carry type parameters.
//
// The full pipeline runs per call: session ensure, path expansion, CSRF
// attachment, transport exchange, bounded retries, shape check, and
// typed decode. Violations surface as *SchemaDriftError and are also
// handed to the drift sink; a partially typed value is never returned.
func Call[T any](ctx context.Context, c *Client, b binding.Binding[T], params binding.Params) (T, error) {
	var zero T

	path, err := binding.Expand(b.Path, params)
	if err != nil {
		return zero, err
	}

	// Pin one correlation ID for the exchange and any drift report.
	reqID := requestIDFromContext(ctx)
	ctx = WithRequestID(ctx, reqID)

	resp, err := c.execute(ctx, callSpec{
		name:            b.Name,
		method:          b.Method,
		path:            path,
		requiresSession: b.RequiresSession,
		csrf:            b.CSRF,
	})
	if err != nil {
		return zero, err
	}

	value, report := b.Parse(resp.Body)
	if report == nil {
		c.metrics.Inc(MetricCallSuccess)
		return value, nil
	}

	if report.Clean() {
		// Extra fields only: the endpoint grew, the call still stands.
		c.metrics.Inc(MetricDriftInfo)
		c.metrics.Inc(MetricCallSuccess)
		c.drift.report(DriftReport{
			Timestamp:   time.Now(),
			Endpoint:    b.Name,
			RequestID:   reqID,
			Report:      *report,
			BodySnippet: snippet(resp.Body, 256),
		})
		return value, nil
	}

	c.metrics.Inc(MetricDriftDetected)
	c.metrics.Inc(MetricCallFailure)
	c.drift.report(DriftReport{
		Timestamp:   time.Now(),
		Endpoint:    b.Name,
		RequestID:   reqID,
		Report:      *report,
		BodySnippet: snippet(resp.Body, 256),
		Fatal:       true,
	})
	c.log.Warn().
		Str("endpoint", b.Name).
		Str("request_id", reqID).
		Str("drift", report.Summary()).
		Msg("response no longer matches binding")

	return zero, &SchemaDriftError{
		Endpoint: b.Name,
		Report:   *report,
		Body:     snippet(resp.Body, 256),
	}
}

// Do executes an endpoint that has no typed binding yet: the generic
// low-level escape hatch. The session is ensured and the CSRF header
// attached; the raw response comes back for the caller to interpret.
func (c *Client) Do(ctx context.Context, method, path string, params binding.Params) (*Response, error) {
	expanded, err := binding.Expand(path, params)
	if err != nil {
		return nil, err
	}
	return c.execute(ctx, callSpec{
		name:            "raw",
		method:          method,
		path:            expanded,
		requiresSession: true,
		csrf:            binding.CSRFHeader,
	})
}

// SubmitForm runs the scrape-merge-post cycle against a form-based
// endpoint with an ensured session. Relative URLs resolve against the
// configured base.
func (c *Client) SubmitForm(ctx context.Context, req FormRequest) (*Response, error) {
	if c.closed.Load() {
		return nil, ErrClientClosed
	}
	if _, err := c.auth.ensureSession(ctx); err != nil {
		return nil, err
	}
	if strings.HasPrefix(req.URL, "/") {
		req.URL = c.config.HTTP.BaseURL + req.URL
	}
	return submitForm(ctx, c.tr, req)
}

// Logout tears the session down, server-side best effort and locally
// always.
func (c *Client) Logout(ctx context.Context) error {
	if c.closed.Load() {
		return ErrClientClosed
	}
	return c.auth.logout(ctx)
}

// Close stops the drift dispatcher after draining queued reports.
// In-flight calls finish; new calls fail with ErrClientClosed.
func (c *Client) Close() {
	if c == nil {
		return
	}
	if c.closed.CompareAndSwap(false, true) {
		c.drift.Close()
	}
}

// MetricsSnapshot copies the client's counters.
func (c *Client) MetricsSnapshot() MetricsSnapshot {
	if c == nil {
		return MetricsSnapshot{Counters: map[MetricID]uint64{}}
	}
	return c.metrics.Snapshot()
}

// DriftDropped returns how many drift reports were discarded because
// the sink could not keep up.
func (c *Client) DriftDropped() uint64 {
	if c == nil {
		return 0
	}
	return c.drift.Dropped()
}

// execute runs the retry state machine around one exchange. Transient
// failures (network faults and the configured status set) back off and
// retry within the attempt budget; a 401/403 on a session-bound call
// gets exactly one forced refresh outside that budget; everything else
// is terminal.
func (c *Client) execute(ctx context.Context, spec callSpec) (*Response, error) {
	if c.closed.Load() {
		return nil, ErrClientClosed
	}

	reqID := requestIDFromContext(ctx)
	log := c.log.With().Str("endpoint", spec.name).Str("request_id", reqID).Logger()
	fullURL := c.config.HTTP.BaseURL + spec.path

	m := backoff.New(backoff.Policy{
		MaxAttempts: c.config.Retry.MaxAttempts,
		Base:        c.config.Retry.BackoffBase,
		Ceiling:     c.config.Retry.BackoffCeiling,
	}, c.clock)

	authRetried := false

	for {
		m.Begin()

		var sess *session.Session
		if spec.requiresSession {
			var err error
			sess, err = c.auth.ensureSession(ctx)
			if err != nil {
				m.Fail()
				c.metrics.Inc(MetricCallFailure)
				return nil, err
			}
		}

		header := http.Header{}
		header.Set("Accept", "application/json")
		header.Set("X-Requested-With", "XMLHttpRequest")
		if spec.csrf == binding.CSRFHeader && sess != nil {
			header.Set("Scoped-CSRF-Token", sess.CSRFToken)
		}

		resp, err := c.tr.roundTrip(ctx, spec.method, fullURL, header, nil)
		if err != nil {
			var netErr *NetworkError
			if !errors.As(err, &netErr) {
				// Caller cancellation, not a fault.
				m.Fail()
				c.metrics.Inc(MetricCallFailure)
				return nil, err
			}

			c.metrics.Inc(MetricNetworkError)
			if !m.Retryable() {
				m.Exhaust()
				c.metrics.Inc(MetricCallFailure)
				log.Warn().Err(err).Int("attempts", m.Attempts()).Msg("network retries exhausted")
				return nil, err
			}
			c.metrics.Inc(MetricRetry)
			log.Debug().Err(err).Int("attempt", m.Attempts()).Msg("network fault; backing off")
			if werr := m.Wait(ctx); werr != nil {
				c.metrics.Inc(MetricCallFailure)
				return nil, werr
			}
			continue
		}

		switch {
		case resp.Status >= 200 && resp.Status <= 299:
			m.Succeed()
			return resp, nil

		case (resp.Status == http.StatusUnauthorized || resp.Status == http.StatusForbidden) && spec.requiresSession:
			if authRetried {
				m.Fail()
				c.metrics.Inc(MetricCallFailure)
				return nil, &AuthenticationError{
					Stage:  "retry",
					Reason: fmt.Sprintf("session rejected twice with %d on %s", resp.Status, spec.name),
				}
			}
			authRetried = true
			c.metrics.Inc(MetricAuthRefresh)
			c.auth.invalidate(sess)
			log.Info().Int("status", resp.Status).Msg("session rejected; refreshing once")
			continue

		case c.config.Retry.retryable(resp.Status):
			if !m.Retryable() {
				m.Exhaust()
				c.metrics.Inc(MetricHTTPError)
				c.metrics.Inc(MetricCallFailure)
				log.Warn().Int("status", resp.Status).Int("attempts", m.Attempts()).Msg("retries exhausted")
				return nil, &HTTPError{
					Status:   resp.Status,
					Endpoint: spec.name,
					URL:      resp.URL,
					Body:     snippet(resp.Body, 256),
				}
			}
			c.metrics.Inc(MetricRetry)
			log.Debug().Int("status", resp.Status).Int("attempt", m.Attempts()).Msg("transient status; backing off")
			if werr := m.Wait(ctx); werr != nil {
				c.metrics.Inc(MetricCallFailure)
				return nil, werr
			}
			continue

		default:
			m.Fail()
			c.metrics.Inc(MetricHTTPError)
			c.metrics.Inc(MetricCallFailure)
			return nil, &HTTPError{
				Status:   resp.Status,
				Endpoint: spec.name,
				URL:      resp.URL,
				Body:     snippet(resp.Body, 256),
			}
		}
	}
}
