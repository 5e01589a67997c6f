package binding

import (
	"encoding/json"
	"sort"
	"strings"
)

// FieldKind is the expected JSON kind of a required field.
type FieldKind uint8

const (
	// KindAny accepts any present value, including null.
	KindAny FieldKind = iota
	// KindString expects a JSON string.
	KindString
	// KindNumber expects a JSON number.
	KindNumber
	// KindBool expects a JSON boolean.
	KindBool
	// KindObject expects a JSON object.
	KindObject
	// KindArray expects a JSON array.
	KindArray
)

// String returns the kind name used in drift reports.
func (k FieldKind) String() string {
	switch k {
	case KindString:
		return "string"
	case KindNumber:
		return "number"
	case KindBool:
		return "bool"
	case KindObject:
		return "object"
	case KindArray:
		return "array"
	default:
		return "any"
	}
}

// Shape declares the fields a response must carry and their kinds.
type Shape map[string]FieldKind

// FieldIssue describes one field whose kind no longer matches the
// binding's declaration.
type FieldIssue struct {
	Field string
	Want  string
	Got   string
}

// Report is the outcome of checking one raw body against a Shape.
// Missing and WrongKind entries fail the call; Extra entries are
// informational only and never fail it.
type Report struct {
	// Malformed is set when the body is not a JSON object at all.
	Malformed bool
	// Missing lists declared fields absent from the body, sorted.
	Missing []string
	// WrongKind lists declared fields present with the wrong kind.
	WrongKind []FieldIssue
	// Extra lists undeclared fields the server now sends, sorted.
	Extra []string
}

// Clean reports whether the body satisfied the declared shape. Extra
// fields do not make a report unclean.
func (r Report) Clean() bool {
	return !r.Malformed && len(r.Missing) == 0 && len(r.WrongKind) == 0
}

// Noted reports whether the detector found anything at all, including
// informational extra fields.
func (r Report) Noted() bool {
	return !r.Clean() || len(r.Extra) > 0
}

// Summary renders the report as a single diagnostic line.
func (r Report) Summary() string {
	if r.Malformed {
		return "body is not a JSON object"
	}

	var parts []string
	if len(r.Missing) > 0 {
		parts = append(parts, "missing "+strings.Join(r.Missing, ", "))
	}
	for _, issue := range r.WrongKind {
		parts = append(parts, issue.Field+" is "+issue.Got+" not "+issue.Want)
	}
	if len(r.Extra) > 0 {
		parts = append(parts, "extra "+strings.Join(r.Extra, ", "))
	}
	if len(parts) == 0 {
		return "clean"
	}
	return strings.Join(parts, "; ")
}

// Check compares a raw JSON body against shape. It is a pure function:
// no I/O, no logging, no panics regardless of input.
func Check(shape Shape, raw []byte) Report {
	var body map[string]json.RawMessage
	if err := json.Unmarshal(raw, &body); err != nil || body == nil {
		return Report{Malformed: true}
	}

	var report Report
	for field, want := range shape {
		value, ok := body[field]
		if !ok {
			report.Missing = append(report.Missing, field)
			continue
		}
		got := kindOf(value)
		if want != KindAny && got != want.String() {
			report.WrongKind = append(report.WrongKind, FieldIssue{
				Field: field,
				Want:  want.String(),
				Got:   got,
			})
		}
	}

	for field := range body {
		if _, ok := shape[field]; !ok {
			report.Extra = append(report.Extra, field)
		}
	}

	sort.Strings(report.Missing)
	sort.Strings(report.Extra)
	sort.Slice(report.WrongKind, func(i, j int) bool {
		return report.WrongKind[i].Field < report.WrongKind[j].Field
	})

	return report
}

func kindOf(raw json.RawMessage) string {
	trimmed := strings.TrimSpace(string(raw))
	if trimmed == "" {
		return "empty"
	}
	switch trimmed[0] {
	case '"':
		return "string"
	case '{':
		return "object"
	case '[':
		return "array"
	case 't', 'f':
		return "bool"
	case 'n':
		return "null"
	default:
		return "number"
	}
}
