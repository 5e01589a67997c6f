package ghWeb

import (
	"errors"
	"fmt"

	"github.com/MrEthical07/ghWeb/binding"
)

var (
	// ErrClientClosed is returned by calls made after Close.
	ErrClientClosed = errors.New("client closed")
	// ErrCredentialsIncomplete is returned when neither a
	// username/password pair nor a cookie bundle was supplied.
	ErrCredentialsIncomplete = errors.New("credentials incomplete")
	// ErrTwoFactorRequired is returned when the handshake lands on the
	// two-factor page but no OTP seed is configured.
	ErrTwoFactorRequired = errors.New("two-factor required but no otp seed configured")
	// ErrCSRFTokenMissing is returned when the authenticated page does
	// not carry an extractable csrf-token meta tag.
	ErrCSRFTokenMissing = errors.New("csrf token not found in page")
	// ErrFormNotFound is returned by the form flow when the page does
	// not contain the expected form.
	ErrFormNotFound = errors.New("form not found")
	// ErrCompanyNameRequired is returned when a business organization
	// is created without a company name.
	ErrCompanyNameRequired = errors.New("business organization requires a company name")
)

// NetworkError is a transport-level failure: DNS, connect, reset, or
// timeout. It is always retryable under the configured policy and never
// carries an HTTP status; non-2xx responses are results, not network
// errors.
type NetworkError struct {
	Op  string
	URL string
	Err error
}

func (e *NetworkError) Error() string {
	return fmt.Sprintf("network error: %s %s: %v", e.Op, e.URL, e.Err)
}

func (e *NetworkError) Unwrap() error { return e.Err }

// AuthenticationError means the login handshake was rejected or a
// session-bound call kept failing after one forced refresh. It is fatal
// to the call.
type AuthenticationError struct {
	// Stage names where the handshake died: "login", "two-factor",
	// "csrf", or "retry" for the post-refresh rejection.
	Stage  string
	Reason string
	Err    error
}

func (e *AuthenticationError) Error() string {
	msg := fmt.Sprintf("authentication failed at %s: %s", e.Stage, e.Reason)
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *AuthenticationError) Unwrap() error { return e.Err }

// HTTPError is a non-2xx response outside the retry policy, surfaced
// with enough of the body to tell a moved endpoint from stale
// credentials.
type HTTPError struct {
	Status   int
	Endpoint string
	URL      string
	// Body is a bounded snippet of the response body.
	Body string
}

func (e *HTTPError) Error() string {
	return fmt.Sprintf("%s: http %d from %s: %s", e.Endpoint, e.Status, e.URL, e.Body)
}

// SchemaDriftError means the endpoint answered 2xx but the body no
// longer matches the binding's declared shape. The call never returns a
// partially typed value; it returns this, carrying the full detector
// report and a body snippet.
type SchemaDriftError struct {
	Endpoint string
	Report   binding.Report
	// Body is a bounded snippet of the drifted response body.
	Body string
}

func (e *SchemaDriftError) Error() string {
	return fmt.Sprintf("%s: response shape drifted: %s (body: %s)", e.Endpoint, e.Report.Summary(), e.Body)
}

// snippet bounds a response body for inclusion in errors and reports.
func snippet(body []byte, max int) string {
	if len(body) <= max {
		return string(body)
	}
	return string(body[:max]) + "..."
}
