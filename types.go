package ghWeb

import (
	"net/http"

	"github.com/MrEthical07/ghWeb/session"
)

// Credentials is what the client authenticates with: either a
// username/password pair (plus the TOTP seed when the account has
// two-factor enabled) for the handshake path, or a pre-authenticated
// cookie bundle lifted from a browser for the injection path.
type Credentials struct {
	Username string
	Password string
	// OTPSeed is the base32 authenticator secret. Required only when
	// the login flow reaches the two-factor page.
	OTPSeed string
	// Cookies, when set, skips the handshake entirely.
	Cookies []session.Cookie
}

func (c Credentials) validate() error {
	if len(c.Cookies) > 0 {
		return nil
	}
	if c.Username == "" || c.Password == "" {
		return ErrCredentialsIncomplete
	}
	return nil
}

// identity names the credential context for session storage and logs.
func (c Credentials) identity() string {
	if c.Username != "" {
		return c.Username
	}
	return "cookie-import"
}

// Response is the raw outcome of one executed exchange, exposed by the
// low-level Do path and the form flow. Status may be any HTTP code the
// executor decided not to retry.
type Response struct {
	Status int
	Header http.Header
	Body   []byte
	// URL is the final URL after redirects. The handshake uses it to
	// detect the two-factor interstitial.
	URL string
}
