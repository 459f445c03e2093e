package keynotify

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"net/url"
	"strings"

	"github.com/MrEthical07/keynotify/credential"
	"github.com/MrEthical07/keynotify/internal/audit"
	"github.com/jonboulle/clockwork"
	"github.com/redis/go-redis/v9"
)

// Builder defines a public type used by keynotify APIs.
//
// Builder instances are intended to be configured during initialization and then treated as immutable unless documented otherwise.
type Builder struct {
	config Config

	httpClient *http.Client
	redis      redis.UniversalClient
	durable    credential.Backend
	session    credential.Backend
	navigator  Navigator
	clock      clockwork.Clock
	logger     *slog.Logger
	auditSink  AuditSink

	built bool
}

// New describes the new operation and its observable behavior.
//
// New returns a Builder holding DefaultConfig.
// New does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
func New() *Builder {
	return &Builder{
		config: defaultConfig(),
	}
}

// WithConfig describes the withconfig operation and its observable behavior.
//
// WithConfig replaces the whole configuration; zero fields are not defaulted.
// WithConfig does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
func (b *Builder) WithConfig(cfg Config) *Builder {
	b.config = cfg
	return b
}

// WithBaseURL sets the API base URL.
func (b *Builder) WithBaseURL(baseURL string) *Builder {
	b.config.BaseURL = baseURL
	return b
}

// WithHTTPClient describes the withhttpclient operation and its observable behavior.
//
// WithHTTPClient sets the client used for every attempt. Its Timeout, if any, applies on top of Config.Timeout.
// WithHTTPClient does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
func (b *Builder) WithHTTPClient(client *http.Client) *Builder {
	b.httpClient = client
	return b
}

// WithRedis describes the withredis operation and its observable behavior.
//
// WithRedis supplies the client used when Storage.Backend is StorageRedis. The Client does not close it.
// WithRedis does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
func (b *Builder) WithRedis(client redis.UniversalClient) *Builder {
	b.redis = client
	return b
}

// WithBackends describes the withbackends operation and its observable behavior.
//
// WithBackends overrides the storage configuration with explicit tier backends. A nil backend keeps the configured one.
// WithBackends does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
func (b *Builder) WithBackends(durable, session credential.Backend) *Builder {
	b.durable = durable
	b.session = session
	return b
}

// WithNavigator sets the view moved to LoginPath on a 401.
func (b *Builder) WithNavigator(nav Navigator) *Builder {
	b.navigator = nav
	return b
}

// WithClock sets the clock used for retry waits. Tests pass a fake clock.
func (b *Builder) WithClock(clock clockwork.Clock) *Builder {
	b.clock = clock
	return b
}

// WithLogger sets the logger. The default is built from Config.Log.
func (b *Builder) WithLogger(logger *slog.Logger) *Builder {
	b.logger = logger
	return b
}

// WithAuditSink describes the withauditsink operation and its observable behavior.
//
// WithAuditSink sets the audit destination; it takes effect only when Config.Audit.Enabled is set.
// WithAuditSink does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
func (b *Builder) WithAuditSink(sink AuditSink) *Builder {
	b.auditSink = sink
	return b
}

// WithMetricsEnabled describes the withmetricsenabled operation and its observable behavior.
//
// WithMetricsEnabled toggles the lock-free counters.
// WithMetricsEnabled does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
func (b *Builder) WithMetricsEnabled(enabled bool) *Builder {
	b.config.Metrics.Enabled = enabled
	return b
}

// WithLatencyHistograms describes the withlatencyhistograms operation and its observable behavior.
//
// WithLatencyHistograms toggles the per-call latency histogram.
// WithLatencyHistograms does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
func (b *Builder) WithLatencyHistograms(enabled bool) *Builder {
	b.config.Metrics.EnableLatencyHistograms = enabled
	return b
}

// Build describes the build operation and its observable behavior.
//
// Build may return an error when the configuration is invalid or the durable backend cannot be opened.
// A Builder can be used once.
func (b *Builder) Build() (*Client, error) {
	if b.built {
		return nil, errors.New("builder already used")
	}

	cfg := b.config
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	base, err := url.Parse(strings.TrimRight(cfg.BaseURL, "/"))
	if err != nil {
		return nil, err
	}

	logger := b.logger
	if logger == nil {
		logger = slog.Default()
	}
	clock := b.clock
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	httpClient := b.httpClient
	if httpClient == nil {
		httpClient = &http.Client{}
	}

	// -------- CREDENTIAL SLOT --------
	var closers []func() error
	durable := b.durable
	if durable == nil {
		d, closer, err := openDurable(context.Background(), cfg.Storage, b.redis)
		if err != nil {
			return nil, err
		}
		durable = d
		closers = append(closers, closer)
	}
	var slotOpts []credential.SlotOption
	if cfg.Storage.Key != "" {
		slotOpts = append(slotOpts, credential.WithKey(cfg.Storage.Key))
	}
	slot := credential.NewSlot(durable, b.session, slotOpts...)

	client := &Client{
		cfg:        cfg,
		baseURL:    base,
		httpClient: httpClient,
		slot:       slot,
		bus:        NewRevocationBus(),
		clock:      clock,
		logger:     logger,
		nav:        b.navigator,
		closers:    closers,
	}
	client.metrics = NewMetrics(cfg.Metrics)
	client.audit = audit.NewDispatcher(audit.Config{
		Enabled:    cfg.Audit.Enabled,
		BufferSize: cfg.Audit.BufferSize,
		DropIfFull: cfg.Audit.DropIfFull,
		Clock:      clock,
		OnDrop: func(ev audit.Event) {
			logger.Warn("audit event dropped", "type", ev.Type, "request_id", ev.RequestID)
		},
	}, b.auditSink)

	// -------- SESSION --------
	client.session = newSession(slot, logger, client.metrics, client.emitAudit)
	client.unsubscribe = client.bus.Subscribe(client.session.revoked)
	client.verifier = newVerifier(client)

	b.built = true

	return client, nil
}
