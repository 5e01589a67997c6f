package htmlform

import (
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// Mirrors the two-form document used to exercise form selection: the
// first form carries a hidden value, the second has an explicit id.
const twoFormDoc = `<!DOCTYPE html>
<html>
<body>
  <form action="/foo" method="post">
    <input type="hidden" name="key" value="value">
    <input type="text" name="login" value="">
    <input type="password" name="password">
  </form>
  <form id="form2" action="/form2" method="post">
    <input type="hidden" name="key" value="value2">
  </form>
</body>
</html>`

const loginDoc = `<html><head>
<meta name="csrf-token" content="meta-token-value">
</head><body>
<form action="/session" method="post" accept-charset="UTF-8">
  <input type="hidden" name="authenticity_token" value="tok123">
  <input type="hidden" name="return_to" value="https://github.com/">
  <input type="text" name="login">
  <input type="password" name="password">
  <input type="submit" name="commit" value="Sign in">
</form>
</body></html>`

func TestParseCollectsNamedValues(t *testing.T) {
	forms, err := Parse(strings.NewReader(twoFormDoc))
	require.NoError(t, err)
	require.Len(t, forms, 2)

	assert.Equal(t, "/foo", forms[0].Action)
	assert.Equal(t, "POST", forms[0].Method)
	assert.Equal(t, map[string]string{"key": "value"}, forms[0].Fields,
		"empty and value-less inputs must be skipped")

	assert.Equal(t, "form2", forms[1].ID)
	assert.Equal(t, map[string]string{"key": "value2"}, forms[1].Fields)
}

func TestFindFirstFormByDefault(t *testing.T) {
	forms, err := Parse(strings.NewReader(twoFormDoc))
	require.NoError(t, err)

	form, err := Find(forms, "")
	require.NoError(t, err)
	assert.Equal(t, "/foo", form.Action)
}

func TestFindByID(t *testing.T) {
	forms, err := Parse(strings.NewReader(twoFormDoc))
	require.NoError(t, err)

	form, err := Find(forms, "form2")
	require.NoError(t, err)
	assert.Equal(t, "/form2", form.Action)
}

func TestFindMissingForm(t *testing.T) {
	forms, err := Parse(strings.NewReader(twoFormDoc))
	require.NoError(t, err)

	_, err = Find(forms, "no_form")
	assert.True(t, errors.Is(err, ErrFormNotFound))
}

func TestFindNoForms(t *testing.T) {
	forms, err := Parse(strings.NewReader("<html><body><p>empty</p></body></html>"))
	require.NoError(t, err)
	assert.Empty(t, forms)

	_, err = Find(forms, "")
	assert.True(t, errors.Is(err, ErrNoForms))
}

func TestParseLoginFormKeepsAuthenticityToken(t *testing.T) {
	forms, err := Parse(strings.NewReader(loginDoc))
	require.NoError(t, err)
	require.Len(t, forms, 1)

	assert.Equal(t, "tok123", forms[0].Fields["authenticity_token"])
	assert.Equal(t, "https://github.com/", forms[0].Fields["return_to"])
	_, hasLogin := forms[0].Fields["login"]
	assert.False(t, hasLogin, "blank login input must not be pre-filled")
}

func TestResolveAction(t *testing.T) {
	tests := []struct {
		name   string
		page   string
		action string
		want   string
	}{
		{"relative", "https://github.com/login", "/session", "https://github.com/session"},
		{"sibling", "https://github.com/account/organizations/new", "new_org", "https://github.com/account/organizations/new_org"},
		{"absolute", "https://github.com/login", "https://github.com/session", "https://github.com/session"},
		{"empty posts back", "https://github.com/login", "", "https://github.com/login"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ResolveAction(tt.page, tt.action)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestMetaContent(t *testing.T) {
	token, ok := MetaContent(strings.NewReader(loginDoc), "csrf-token")
	require.True(t, ok)
	assert.Equal(t, "meta-token-value", token)

	_, ok = MetaContent(strings.NewReader(loginDoc), "octolytics-app-id")
	assert.False(t, ok)
}
