package ghWeb

import (
	"errors"
	"net/http"

	"github.com/MrEthical07/ghWeb/internal/backoff"
	"github.com/MrEthical07/ghWeb/session"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
)

// Builder assembles a Client. Construction is allocation-only: no
// network I/O happens until the first call needs a session.
type Builder struct {
	config Config
	creds  Credentials

	logger     *zerolog.Logger
	sink       DriftSink
	httpClient *http.Client

	redis   redis.UniversalClient
	sealKey []byte

	built bool
}

// New starts a Builder with the default configuration.
func New() *Builder {
	return &Builder{config: DefaultConfig()}
}

// WithConfig replaces the whole configuration.
func (b *Builder) WithConfig(cfg Config) *Builder {
	b.config = cloneConfig(cfg)
	return b
}

// WithCredentials sets what the client authenticates with.
func (b *Builder) WithCredentials(creds Credentials) *Builder {
	b.creds = creds
	return b
}

// WithLogger sets the structured logger. Without one the client is
// silent.
func (b *Builder) WithLogger(log zerolog.Logger) *Builder {
	b.logger = &log
	return b
}

// WithDriftSink sets the receiver for drift reports.
func (b *Builder) WithDriftSink(sink DriftSink) *Builder {
	b.sink = sink
	return b
}

// WithHTTPClient supplies the underlying *http.Client, mainly for
// tests and proxy setups. A cookie jar is attached if it has none.
func (b *Builder) WithHTTPClient(client *http.Client) *Builder {
	b.httpClient = client
	return b
}

// WithSessionStore enables session persistence on the given Redis
// client. The seal key signs bundles before they leave the process and
// must be at least 32 bytes.
func (b *Builder) WithSessionStore(client redis.UniversalClient, sealKey []byte) *Builder {
	b.redis = client
	b.sealKey = append([]byte(nil), sealKey...)
	return b
}

// Build validates the configuration and assembles the Client.
func (b *Builder) Build() (*Client, error) {
	if b.built {
		return nil, errors.New("builder already used")
	}

	cfg := cloneConfig(b.config)
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if err := b.creds.validate(); err != nil {
		return nil, err
	}

	log := zerolog.Nop()
	if b.logger != nil {
		log = *b.logger
	}

	tr, err := newTransport(cfg.HTTP, b.httpClient, log.With().Str("component", "transport").Logger())
	if err != nil {
		return nil, err
	}

	var store *session.Store
	if b.redis != nil {
		sealer, err := session.NewSealer(b.sealKey)
		if err != nil {
			return nil, err
		}
		store = session.NewStore(b.redis, cfg.Session.StorePrefix, sealer)
	}

	metrics := NewMetrics()
	auth := newAuthenticator(b.creds, cfg, tr, store, metrics,
		log.With().Str("component", "auth").Logger())

	client := &Client{
		config:  cfg,
		tr:      tr,
		auth:    auth,
		drift:   newDriftDispatcher(cfg.Drift, b.sink),
		metrics: metrics,
		log:     log.With().Str("component", "executor").Logger(),
		clock:   backoff.SystemClock(),
	}

	b.built = true

	return client, nil
}
