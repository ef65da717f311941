package goVolunteer

import (
	"errors"
	"log/slog"
	"time"

	internalaudit "github.com/MrEthical07/goVolunteer/internal/audit"
	"github.com/MrEthical07/goVolunteer/persist"
)

// Builder assembles a [Store]. Builders are single-use and perform no I/O;
// the first network call happens in [Store.Bootstrap].
type Builder struct {
	config Config

	service   AuthService
	persist   persist.Store
	logger    *slog.Logger
	auditSink AuditSink
	now       func() time.Time

	built bool
}

// New returns a Builder seeded with [DefaultConfig].
func New() *Builder {
	return &Builder{
		config: defaultConfig(),
	}
}

// WithConfig replaces the whole configuration.
func (b *Builder) WithConfig(cfg Config) *Builder {
	b.config = cloneConfig(cfg)
	return b
}

// WithAuthService sets the authentication collaborator. Required.
func (b *Builder) WithAuthService(service AuthService) *Builder {
	b.service = service
	return b
}

// WithPersistence sets the credential store. Defaults to [persist.NewMemory].
func (b *Builder) WithPersistence(store persist.Store) *Builder {
	b.persist = store
	return b
}

// WithLogger sets the structured logger. Defaults to a discarding logger.
func (b *Builder) WithLogger(logger *slog.Logger) *Builder {
	b.logger = logger
	return b
}

// WithAuditSink sets the audit sink and enables auditing.
func (b *Builder) WithAuditSink(sink AuditSink) *Builder {
	b.auditSink = sink
	if sink != nil {
		b.config.Audit.Enabled = true
	}
	return b
}

// WithMetricsEnabled toggles in-process counters.
func (b *Builder) WithMetricsEnabled(enabled bool) *Builder {
	b.config.Metrics.Enabled = enabled
	return b
}

// WithLatencyHistograms toggles the hydrate latency histogram.
func (b *Builder) WithLatencyHistograms(enabled bool) *Builder {
	b.config.Metrics.EnableLatencyHistograms = enabled
	return b
}

// WithClock overrides time.Now, used for credential expiry checks and
// audit timestamps.
func (b *Builder) WithClock(now func() time.Time) *Builder {
	b.now = now
	return b
}

// Build validates the configuration and returns the Store.
func (b *Builder) Build() (*Store, error) {
	if b.built {
		return nil, errors.New("builder already used")
	}

	cfg := cloneConfig(b.config)
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	if b.service == nil {
		return nil, errors.New("auth service required")
	}

	store := b.persist
	if store == nil {
		store = persist.NewMemory()
	}

	logger := b.logger
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}

	now := b.now
	if now == nil {
		now = time.Now
	}

	s := &Store{
		config:  cfg,
		service: b.service,
		persist: store,
		logger:  logger.With("component", "session"),
		metrics: NewMetrics(cfg.Metrics),
		audit: internalaudit.NewDispatcher(internalaudit.Config{
			Enabled:    cfg.Audit.Enabled,
			BufferSize: cfg.Audit.BufferSize,
			DropIfFull: cfg.Audit.DropIfFull,
		}, b.auditSink),
		now: now,
	}

	b.built = true

	return s, nil
}
