package session

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// ErrSealKeyTooShort is returned when the HMAC key is under 32 bytes.
var ErrSealKeyTooShort = errors.New("seal key must be at least 32 bytes")

// ErrBundleInvalid is returned when a bundle fails signature or
// structural verification.
var ErrBundleInvalid = errors.New("session bundle invalid")

// ErrBundleExpired is returned when a bundle's validity window has
// passed. Distinct from ErrBundleInvalid so callers can fall back to a
// fresh handshake without logging it as tampering.
var ErrBundleExpired = errors.New("session bundle expired")

// Sealer signs session bundles with HS256 before they leave process
// memory and verifies them on the way back in. A session restored from
// an unsigned or altered blob would put attacker-chosen cookies into
// the jar, so Open never returns a session from a bundle that does not
// verify.
type Sealer struct {
	key []byte
}

type bundleClaims struct {
	Bundle json.RawMessage `json:"bundle"`
	jwt.RegisteredClaims
}

// NewSealer builds a Sealer for the given HMAC key.
func NewSealer(key []byte) (*Sealer, error) {
	if len(key) < 32 {
		return nil, ErrSealKeyTooShort
	}
	return &Sealer{key: append([]byte(nil), key...)}, nil
}

// Seal serializes and signs a session. The envelope expiry mirrors the
// session's own validity bound, so a stale bundle dies with its
// session.
func (s *Sealer) Seal(sess *Session) (string, error) {
	if s == nil {
		return "", ErrBundleInvalid
	}
	payload, err := json.Marshal(sess)
	if err != nil {
		return "", fmt.Errorf("encode session: %w", err)
	}

	claims := bundleClaims{
		Bundle: payload,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:  sess.Identity,
			IssuedAt: jwt.NewNumericDate(time.Now()),
		},
	}
	if !sess.ExpiresAt.IsZero() {
		claims.ExpiresAt = jwt.NewNumericDate(sess.ExpiresAt)
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(s.key)
	if err != nil {
		return "", fmt.Errorf("sign session bundle: %w", err)
	}
	return signed, nil
}

// Open verifies a sealed bundle and reconstructs the session. The
// restored session starts valid; the caller re-checks it against the
// server on first use.
func (s *Sealer) Open(sealed string) (*Session, error) {
	if s == nil {
		return nil, ErrBundleInvalid
	}

	var claims bundleClaims
	_, err := jwt.ParseWithClaims(sealed, &claims, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method %v", t.Header["alg"])
		}
		return s.key, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, ErrBundleExpired
		}
		return nil, fmt.Errorf("%w: %v", ErrBundleInvalid, err)
	}

	var sess Session
	if err := json.Unmarshal(claims.Bundle, &sess); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrBundleInvalid, err)
	}
	if sess.Identity == "" || claims.Subject != sess.Identity {
		return nil, ErrBundleInvalid
	}
	return &sess, nil
}
