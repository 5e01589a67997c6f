package session

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// ErrNotFound is returned by Load when no bundle exists for the
// identity.
var ErrNotFound = errors.New("session not found")

// ErrStoreUnavailable is returned when the Redis backend cannot be
// reached. Callers treat it like a cache miss and fall back to a fresh
// handshake.
var ErrStoreUnavailable = errors.New("session store unavailable")

const minTTL = time.Second

// Store persists sealed session bundles in Redis, keyed by identity.
// Bundles expire with the session they carry, so the store never hands
// back a session the validity window has already closed on.
type Store struct {
	redis  redis.UniversalClient
	prefix string
	sealer *Sealer
}

// NewStore builds a Store on the given client. The prefix namespaces
// keys so one Redis can serve several credential contexts.
func NewStore(client redis.UniversalClient, prefix string, sealer *Sealer) *Store {
	if prefix == "" {
		prefix = "ghweb:sess:"
	}
	return &Store{redis: client, prefix: prefix, sealer: sealer}
}

func (st *Store) key(identity string) string {
	return st.prefix + identity
}

// Save seals and writes the session, TTL'd to its expiry. Sessions
// without a client-side bound are written with a day of grace rather
// than forever.
func (st *Store) Save(ctx context.Context, sess *Session) error {
	if st == nil || st.redis == nil {
		return ErrStoreUnavailable
	}
	if sess == nil || sess.Identity == "" {
		return errors.New("session has no identity")
	}

	sealed, err := st.sealer.Seal(sess)
	if err != nil {
		return err
	}

	ttl := 24 * time.Hour
	if !sess.ExpiresAt.IsZero() {
		ttl = time.Until(sess.ExpiresAt)
		if ttl < minTTL {
			ttl = minTTL
		}
	}

	if err := st.redis.Set(ctx, st.key(sess.Identity), sealed, ttl).Err(); err != nil {
		return fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}
	return nil
}

// Load reads and verifies the bundle for identity. An expired or
// tampered bundle is deleted and reported as not found, so callers
// always end up on the handshake path rather than on a poisoned
// session.
func (st *Store) Load(ctx context.Context, identity string) (*Session, error) {
	if st == nil || st.redis == nil {
		return nil, ErrStoreUnavailable
	}

	sealed, err := st.redis.Get(ctx, st.key(identity)).Result()
	if errors.Is(err, redis.Nil) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}

	sess, err := st.sealer.Open(sealed)
	if err != nil {
		_ = st.redis.Del(ctx, st.key(identity)).Err()
		return nil, fmt.Errorf("%w: %v", ErrNotFound, err)
	}
	return sess, nil
}

// Delete removes the bundle for identity. Deleting an absent bundle is
// not an error.
func (st *Store) Delete(ctx context.Context, identity string) error {
	if st == nil || st.redis == nil {
		return ErrStoreUnavailable
	}
	if err := st.redis.Del(ctx, st.key(identity)).Err(); err != nil {
		return fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}
	return nil
}
