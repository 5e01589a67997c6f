package binding

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"strings"
)

// ErrMissingParam is returned by Expand when a path placeholder has no
// value in the supplied Params.
var ErrMissingParam = errors.New("missing path parameter")

// ErrUnknownParam is returned by Expand when Params carries a key that
// does not appear in the path template.
var ErrUnknownParam = errors.New("unknown path parameter")

// Params binds named path-template placeholders to concrete values.
// Values are path-escaped during expansion.
type Params map[string]string

// CSRFMode selects how a binding's requests carry the CSRF token, per
// GitHub's double-submit convention.
type CSRFMode uint8

const (
	// CSRFNone sends no CSRF artifact. Safe for idempotent GETs.
	CSRFNone CSRFMode = iota
	// CSRFHeader echoes the session token in the Scoped-CSRF-Token
	// header alongside X-Requested-With, as the web UI does for XHR
	// endpoints.
	CSRFHeader
	// CSRFForm embeds the scraped authenticity_token form field. Used
	// by the form-flow endpoints, where the token is collected from the
	// page itself rather than the session.
	CSRFForm
)

// Binding is the immutable description of one non-public endpoint: where
// it lives, what it needs from the session, and what shape it answers
// with. Bindings are package-level values defined once per endpoint and
// never mutated.
//
// The type parameter T is the decoded result type. Parse must never
// panic and must never guess: on a shape mismatch it returns the zero T
// and a non-clean Report for the drift detector to consume.
type Binding[T any] struct {
	// Name identifies the endpoint in logs, metrics, and drift reports.
	Name string
	// Method is the HTTP verb, e.g. http.MethodGet.
	Method string
	// Path is the template relative to the GitHub host. Placeholders
	// use {name} syntax and are resolved through Expand.
	Path string
	// RequiresSession marks endpoints that refuse anonymous callers.
	RequiresSession bool
	// CSRF selects the token transport for state-changing requests.
	CSRF CSRFMode
	// Shape declares the required response fields and their kinds.
	Shape Shape
	// Parse decodes a raw 2xx body into T, or reports the violation.
	Parse func(raw []byte) (T, *Report)
}

// Expand resolves a path template against params. Every placeholder must
// be bound and every param must be consumed; both directions failing
// loudly keeps a typo'd binding from silently hitting the wrong URL.
func Expand(path string, params Params) (string, error) {
	used := make(map[string]bool, len(params))

	var b strings.Builder
	rest := path
	for {
		open := strings.IndexByte(rest, '{')
		if open < 0 {
			b.WriteString(rest)
			break
		}
		closing := strings.IndexByte(rest[open:], '}')
		if closing < 0 {
			return "", fmt.Errorf("unterminated placeholder in %q", path)
		}

		name := rest[open+1 : open+closing]
		value, ok := params[name]
		if !ok || value == "" {
			return "", fmt.Errorf("%w: %q in %q", ErrMissingParam, name, path)
		}
		used[name] = true

		b.WriteString(rest[:open])
		b.WriteString(url.PathEscape(value))
		rest = rest[open+closing+1:]
	}

	for name := range params {
		if !used[name] {
			return "", fmt.Errorf("%w: %q not in %q", ErrUnknownParam, name, path)
		}
	}

	return b.String(), nil
}

// JSON builds a Parse function for JSON endpoints: the body is checked
// against shape first, and only a clean body is decoded into T. The
// returned Report is non-nil whenever the detector found anything to
// say, including informational extra fields on an otherwise clean body.
func JSON[T any](shape Shape) func(raw []byte) (T, *Report) {
	return func(raw []byte) (T, *Report) {
		var zero T

		report := Check(shape, raw)
		if !report.Clean() {
			return zero, &report
		}

		var value T
		if err := json.Unmarshal(raw, &value); err != nil {
			report.Malformed = true
			return zero, &report
		}

		if report.Noted() {
			return value, &report
		}
		return value, nil
	}
}
