package ghWeb

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/http/cookiejar"
	"net/url"

	"github.com/rs/zerolog"
	"golang.org/x/net/publicsuffix"
	"golang.org/x/time/rate"
)

// transport owns the pooled connection set and the shared cookie jar.
// It speaks raw exchanges only: non-2xx statuses are results, and the
// only errors it produces are *NetworkError or the caller's own
// context error.
type transport struct {
	client  *http.Client
	config  HTTPConfig
	limiter *rate.Limiter
	log     zerolog.Logger
}

func newTransport(cfg HTTPConfig, client *http.Client, log zerolog.Logger) (*transport, error) {
	if client == nil {
		client = &http.Client{
			Transport: &http.Transport{
				MaxIdleConns:        cfg.MaxIdleConns,
				MaxIdleConnsPerHost: cfg.MaxIdleConns,
			},
		}
	}
	if client.Jar == nil {
		jar, err := cookiejar.New(&cookiejar.Options{PublicSuffixList: publicsuffix.List})
		if err != nil {
			return nil, fmt.Errorf("create cookie jar: %w", err)
		}
		client.Jar = jar
	}

	t := &transport{
		client: client,
		config: cfg,
		log:    log,
	}
	if cfg.PacingRPS > 0 {
		t.limiter = rate.NewLimiter(rate.Limit(cfg.PacingRPS), cfg.PacingBurst)
	}
	return t, nil
}

// roundTrip performs one exchange. The shared jar picks up every
// Set-Cookie on the way back, so session cookies persist across calls
// without the executor touching them.
func (t *transport) roundTrip(ctx context.Context, method, rawURL string, header http.Header, body io.Reader) (*Response, error) {
	if t.limiter != nil {
		if err := t.limiter.Wait(ctx); err != nil {
			return nil, err
		}
	}

	ctx, cancel := context.WithTimeout(ctx, t.config.RequestTimeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, method, rawURL, body)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}

	req.Header.Set("User-Agent", t.config.UserAgent)
	req.Header.Set("Accept-Language", "en-US,en;q=0.9")
	for key, values := range header {
		req.Header.Del(key)
		for _, v := range values {
			req.Header.Add(key, v)
		}
	}

	t.log.Trace().Str("method", method).Str("url", rawURL).Msg("sending request")

	resp, err := t.client.Do(req)
	if err != nil {
		// A cancelled caller is not a network fault.
		if cause := contextCause(ctx); cause != nil {
			return nil, cause
		}
		t.log.Debug().Str("method", method).Str("url", rawURL).Err(err).Msg("transport failure")
		return nil, &NetworkError{Op: method, URL: rawURL, Err: err}
	}
	defer func() { _ = resp.Body.Close() }()

	data, err := io.ReadAll(io.LimitReader(resp.Body, t.config.MaxBodyBytes))
	if err != nil {
		if cause := contextCause(ctx); cause != nil {
			return nil, cause
		}
		return nil, &NetworkError{Op: method, URL: rawURL, Err: err}
	}

	finalURL := rawURL
	if resp.Request != nil && resp.Request.URL != nil {
		finalURL = resp.Request.URL.String()
	}

	t.log.Trace().Int("status", resp.StatusCode).Str("url", finalURL).Msg("received response")

	return &Response{
		Status: resp.StatusCode,
		Header: resp.Header,
		Body:   data,
		URL:    finalURL,
	}, nil
}

// cookies snapshots the jar for a URL.
func (t *transport) cookies(rawURL string) []*http.Cookie {
	u, err := url.Parse(rawURL)
	if err != nil {
		return nil
	}
	return t.client.Jar.Cookies(u)
}

// setCookies injects cookies into the jar scoped to a URL. Used by the
// credential-injection and session-restore paths.
func (t *transport) setCookies(rawURL string, cookies []*http.Cookie) error {
	u, err := url.Parse(rawURL)
	if err != nil {
		return fmt.Errorf("parse cookie scope url: %w", err)
	}
	t.client.Jar.SetCookies(u, cookies)
	return nil
}

// contextCause returns the caller-visible context error, if the
// exchange died because of cancellation rather than the per-request
// timeout this transport added itself.
func contextCause(ctx context.Context) error {
	if err := context.Cause(ctx); err != nil && err != context.DeadlineExceeded {
		return err
	}
	return nil
}
