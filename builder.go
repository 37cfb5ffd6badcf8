package goSession

import (
	"errors"
	"time"

	internalaudit "github.com/MrEthical07/goSession/internal/audit"
	"github.com/MrEthical07/goSession/internal/rate"
	"github.com/MrEthical07/goSession/jwt"
	"github.com/MrEthical07/goSession/tokencache"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
)

// Builder assembles an [Engine]. Configure it during initialization and call
// Build once.
type Builder struct {
	config Config

	resolver  IdentityResolver
	redis     redis.UniversalClient
	auditSink AuditSink
	logger    *zerolog.Logger
	now       func() time.Time

	built bool
}

// New returns a Builder holding [DefaultConfig].
func New() *Builder {
	return &Builder{
		config: DefaultConfig(),
	}
}

// WithConfig replaces the whole configuration. Later With* calls override
// individual fields.
func (b *Builder) WithConfig(cfg Config) *Builder {
	b.config = cloneConfig(cfg)
	return b
}

// WithSecret sets the HMAC signing secret.
func (b *Builder) WithSecret(secret []byte) *Builder {
	b.config.JWT.Secret = cloneBytes(secret)
	return b
}

// WithIdentityResolver connects Login and RefreshToken to a user directory.
// Token-level operations work without one.
func (b *Builder) WithIdentityResolver(r IdentityResolver) *Builder {
	b.resolver = r
	return b
}

// WithRedis supplies the client used by the failed-login throttle. It is
// required when Config.Throttle.Enabled is set and unused otherwise.
func (b *Builder) WithRedis(client redis.UniversalClient) *Builder {
	b.redis = client
	return b
}

// WithAuditSink sets the destination for audit events. Events are only
// produced when Config.Audit.Enabled is set; without a sink they are discarded.
func (b *Builder) WithAuditSink(sink AuditSink) *Builder {
	b.auditSink = sink
	return b
}

// WithLogger sets the base logger. A request logger attached with
// zerolog's WithContext takes precedence for that call.
func (b *Builder) WithLogger(logger zerolog.Logger) *Builder {
	b.logger = &logger
	return b
}

// WithClock replaces time.Now for issuance, classification and audit stamps.
func (b *Builder) WithClock(now func() time.Time) *Builder {
	b.now = now
	return b
}

// WithMetricsEnabled toggles the in-process counters.
func (b *Builder) WithMetricsEnabled(enabled bool) *Builder {
	b.config.Metrics.Enabled = enabled
	return b
}

// WithLatencyHistograms toggles the verification latency histogram.
func (b *Builder) WithLatencyHistograms(enabled bool) *Builder {
	b.config.Metrics.EnableLatencyHistograms = enabled
	return b
}

// Build validates the configuration and starts the Engine. A Builder can be
// built only once.
func (b *Builder) Build() (*Engine, error) {
	if b.built {
		return nil, errors.New("builder already used")
	}

	cfg := cloneConfig(b.config)
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if cfg.Throttle.Enabled && b.redis == nil {
		return nil, errors.New("login throttle requires a redis client")
	}

	now := b.now
	if now == nil {
		now = time.Now
	}
	base := zerolog.Nop()
	if b.logger != nil {
		base = *b.logger
	}
	logger := base.With().Str("component", "gosession").Logger()

	// -------- CODEC --------
	codec, err := jwt.NewCodec(jwt.Config{
		SigningMethod: jwt.SigningMethod(cfg.JWT.SigningMethod),
		Secret:        cloneBytes(cfg.JWT.Secret),
		PrivateKey:    cloneBytes(cfg.JWT.PrivateKey),
		PublicKey:     cloneBytes(cfg.JWT.PublicKey),
		Validity:      cfg.JWT.Validity,
		Issuer:        cfg.JWT.Issuer,
		Audience:      cfg.JWT.Audience,
		Leeway:        cfg.JWT.Leeway,
		MaxFutureIAT:  cfg.JWT.MaxFutureIAT,
		KeyID:         cfg.JWT.KeyID,
		Now:           now,
	})
	if err != nil {
		return nil, err
	}

	engine := &Engine{
		config:   cloneConfig(cfg),
		codec:    codec,
		resolver: b.resolver,
		log:      logger,
		now:      now,
		metrics:  NewMetrics(cfg.Metrics),
	}

	// -------- TOKEN CACHE --------
	eviction, err := tokencache.ParseEvictionPolicy(cfg.Cache.Eviction)
	if err != nil {
		return nil, err
	}
	cache, err := tokencache.New(codec, tokencache.Config{
		MaxEntries:    cfg.Cache.MaxEntries,
		HardTTL:       cfg.Cache.HardTTL,
		RefreshBuffer: cfg.Cache.RefreshBuffer,
		Shards:        cfg.Cache.Shards,
		SweepInterval: cfg.Cache.SweepInterval,
		Eviction:      eviction,
		Now:           now,
		Logger:        &base,
		OnEvict:       engine.onEvict,
	})
	if err != nil {
		return nil, err
	}
	engine.cache = cache

	// -------- THROTTLE --------
	if cfg.Throttle.Enabled {
		engine.throttle = rate.New(b.redis, rate.Config{
			MaxAttempts:      cfg.Throttle.MaxAttempts,
			Cooldown:         cfg.Throttle.Cooldown,
			EnableIPThrottle: cfg.Throttle.EnableIPThrottle,
			Prefix:           cfg.Throttle.KeyPrefix,
		})
	}

	// -------- AUDIT --------
	engine.audit = internalaudit.NewDispatcher(internalaudit.Config{
		Enabled:    cfg.Audit.Enabled,
		BufferSize: cfg.Audit.BufferSize,
		DropIfFull: cfg.Audit.DropIfFull,
		Now:        now,
	}, b.auditSink)

	b.built = true

	return engine, nil
}
