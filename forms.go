package ghWeb

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"github.com/MrEthical07/ghWeb/internal/htmlform"
)

// FormRequest describes one fetch-merge-submit cycle against a web UI
// form: fetch the page, scrape the form's pre-filled inputs (including
// the authenticity_token GitHub plants there), overlay the caller's
// fields, and POST to the form's action URL.
type FormRequest struct {
	// URL is the page carrying the form.
	URL string
	// FormID selects the form by id; empty picks the first form.
	FormID string
	// Fields overlay the scraped inputs. Caller fields win.
	Fields map[string]string
}

// submitForm runs one form cycle over the transport. Both the login
// handshake and form-based endpoints go through here, so the CSRF
// double-submit (token cookie from the GET, token field in the POST)
// is handled in exactly one place.
func submitForm(ctx context.Context, tr *transport, req FormRequest) (*Response, error) {
	page, err := tr.roundTrip(ctx, http.MethodGet, req.URL, htmlAcceptHeader(), nil)
	if err != nil {
		return nil, err
	}
	if page.Status < 200 || page.Status > 299 {
		return nil, &HTTPError{
			Status:   page.Status,
			Endpoint: "form_fetch",
			URL:      page.URL,
			Body:     snippet(page.Body, 256),
		}
	}

	forms, err := htmlform.Parse(bytes.NewReader(page.Body))
	if err != nil {
		return nil, fmt.Errorf("scrape %s: %w", req.URL, err)
	}
	form, err := htmlform.Find(forms, req.FormID)
	if err != nil {
		if errors.Is(err, htmlform.ErrFormNotFound) || errors.Is(err, htmlform.ErrNoForms) {
			return nil, fmt.Errorf("%w: %q on %s", ErrFormNotFound, req.FormID, req.URL)
		}
		return nil, err
	}

	data := url.Values{}
	for name, value := range form.Fields {
		data.Set(name, value)
	}
	for name, value := range req.Fields {
		data.Set(name, value)
	}

	// The page may have been reached through a redirect; resolve the
	// action against where the form actually lives.
	action, err := htmlform.ResolveAction(page.URL, form.Action)
	if err != nil {
		return nil, err
	}

	header := htmlAcceptHeader()
	header.Set("Content-Type", "application/x-www-form-urlencoded")
	header.Set("Origin", originOf(action))

	result, err := tr.roundTrip(ctx, http.MethodPost, action, header, strings.NewReader(data.Encode()))
	if err != nil {
		return nil, err
	}
	return result, nil
}

func htmlAcceptHeader() http.Header {
	header := http.Header{}
	header.Set("Accept", "text/html,application/xhtml+xml,application/xml;q=0.9,*/*;q=0.8")
	return header
}

func originOf(rawURL string) string {
	u, err := url.Parse(rawURL)
	if err != nil {
		return ""
	}
	return u.Scheme + "://" + u.Host
}
