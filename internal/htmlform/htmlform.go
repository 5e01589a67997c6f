// Package htmlform scrapes HTML documents the way a browser submits
// them: it locates <form> elements, collects their pre-filled input
// values (including GitHub's hidden authenticity_token), and resolves
// relative action URLs. It performs no I/O of its own.
package htmlform

import (
	"errors"
	"fmt"
	"io"
	"net/url"
	"strings"

	"golang.org/x/net/html"
)

// ErrNoForms is returned when the document contains no form at all.
var ErrNoForms = errors.New("no forms in document")

// ErrFormNotFound is returned when no form matches the requested id.
var ErrFormNotFound = errors.New("form not found")

// Form is one scraped <form>: its identity, where it submits, and the
// name/value pairs of its pre-filled inputs.
type Form struct {
	ID     string
	Action string
	Method string
	// Fields holds inputs that carry both a name and a non-empty value.
	// Empty user-facing fields (login, password, otp) are intentionally
	// absent; the caller supplies those.
	Fields map[string]string
}

// Parse extracts every form from an HTML document. The tokenizer-based
// x/net/html parser accepts the tag soup GitHub actually serves.
func Parse(r io.Reader) ([]Form, error) {
	doc, err := html.Parse(r)
	if err != nil {
		return nil, fmt.Errorf("parse html: %w", err)
	}

	var forms []Form
	walk(doc, func(n *html.Node) {
		if n.Type != html.ElementNode || n.Data != "form" {
			return
		}
		form := Form{
			ID:     attr(n, "id"),
			Action: attr(n, "action"),
			Method: strings.ToUpper(attr(n, "method")),
			Fields: map[string]string{},
		}
		walk(n, func(input *html.Node) {
			if input.Type != html.ElementNode || input.Data != "input" {
				return
			}
			name := attr(input, "name")
			value := attr(input, "value")
			if name != "" && value != "" {
				form.Fields[name] = value
			}
		})
		forms = append(forms, form)
	})

	return forms, nil
}

// Find selects the form to submit. An empty id picks the first (and
// usually only) form, matching how the login page is laid out.
func Find(forms []Form, id string) (Form, error) {
	if len(forms) == 0 {
		return Form{}, ErrNoForms
	}
	if id == "" {
		return forms[0], nil
	}
	for _, form := range forms {
		if form.ID == id {
			return form, nil
		}
	}
	return Form{}, fmt.Errorf("%w: %q", ErrFormNotFound, id)
}

// ResolveAction resolves a form's action against the page it was
// scraped from, mirroring urljoin semantics. An empty action submits
// back to the page URL.
func ResolveAction(pageURL, action string) (string, error) {
	page, err := url.Parse(pageURL)
	if err != nil {
		return "", fmt.Errorf("parse page url: %w", err)
	}
	if action == "" {
		return page.String(), nil
	}
	ref, err := url.Parse(action)
	if err != nil {
		return "", fmt.Errorf("parse form action: %w", err)
	}
	return page.ResolveReference(ref).String(), nil
}

// MetaContent returns the content attribute of the first
// <meta name="..."> element with the given name. GitHub embeds the
// XHR CSRF token as <meta name="csrf-token">.
func MetaContent(r io.Reader, name string) (string, bool) {
	doc, err := html.Parse(r)
	if err != nil {
		return "", false
	}

	var content string
	var found bool
	walk(doc, func(n *html.Node) {
		if found || n.Type != html.ElementNode || n.Data != "meta" {
			return
		}
		if attr(n, "name") == name {
			content = attr(n, "content")
			found = true
		}
	})
	return content, found
}

func walk(n *html.Node, fn func(*html.Node)) {
	fn(n)
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		walk(c, fn)
	}
}

func attr(n *html.Node, key string) string {
	for _, a := range n.Attr {
		if a.Key == key {
			return a.Val
		}
	}
	return ""
}
