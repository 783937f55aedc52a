package authkit

import (
	"errors"
	"log"

	"github.com/redis/go-redis/v9"

	internalaudit "github.com/storekeep/authkit/internal/audit"
	"github.com/storekeep/authkit/password"
	"github.com/storekeep/authkit/token"
)

// Builder assembles an [Engine]. Zero-value Config fields fall back to
// defaults; Build validates the result and wires every component.
type Builder struct {
	config Config
	redis  *redis.Client

	principals PrincipalStore
	auditSink  AuditSink

	built bool
}

func New() *Builder {
	return &Builder{
		config: defaultConfig(),
	}
}

func (b *Builder) WithConfig(cfg Config) *Builder {
	b.config = cloneConfig(cfg)
	return b
}

// WithRedis enables the shared revocation and rate-limit tiers. Without a
// client both stay process-local, which is fine for a single replica.
func (b *Builder) WithRedis(client *redis.Client) *Builder {
	b.redis = client
	return b
}

func (b *Builder) WithPrincipalStore(store PrincipalStore) *Builder {
	b.principals = store
	return b
}

func (b *Builder) WithAuditSink(sink AuditSink) *Builder {
	b.auditSink = sink
	return b
}

func (b *Builder) WithMetricsEnabled(enabled bool) *Builder {
	b.config.Metrics.Enabled = enabled
	return b
}

func (b *Builder) WithLatencyHistograms(enabled bool) *Builder {
	b.config.Metrics.EnableLatencyHistograms = enabled
	return b
}

// Build validates the configuration, constructs every component, and starts
// the background sweepers. A builder can be used once.
func (b *Builder) Build() (*Engine, error) {
	if b.built {
		return nil, errors.New("builder already used")
	}

	cfg := cloneConfig(b.config)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	if b.principals == nil {
		return nil, errors.New("principal store required")
	}

	/* ==== CREDENTIAL HASHER ==== */
	hasher, err := password.NewHasher(password.Config{
		Memory:      cfg.Password.Memory,
		Time:        cfg.Password.Time,
		Parallelism: cfg.Password.Parallelism,
		SaltLength:  cfg.Password.SaltLength,
		KeyLength:   cfg.Password.KeyLength,
	})
	if err != nil {
		return nil, err
	}

	/* ==== TOKEN CODEC ==== */
	codec, err := token.NewCodec(token.Config{
		AccessSecret:  cfg.Token.AccessSecret,
		RefreshSecret: cfg.Token.RefreshSecret,
		AccessTTL:     cfg.Token.AccessTTL,
		RefreshTTL:    cfg.Token.RefreshTTL,
		Issuer:        cfg.Token.Issuer,
		Audience:      cfg.Token.Audience,
		Leeway:        cfg.Token.Leeway,
	})
	if err != nil {
		return nil, err
	}
	if codec.DerivedRefreshSecret() {
		log.Printf("authkit: refresh secret derived from access secret, configure a distinct one for production")
	}

	var redisClient redis.UniversalClient
	if b.redis != nil {
		redisClient = b.redis
	}

	/* ==== STORES AND LIMITERS ==== */
	revocations := newRevocationStore(cfg.Revocation, redisClient)
	revocations.startSweeper(cfg.Revocation.SweepInterval)

	limiter := newLoginLimiter(cfg.RateLimit, redisClient)
	limiter.startSweeper(cfg.RateLimit.SweepInterval)

	/* ==== OBSERVABILITY ==== */
	dispatcher := internalaudit.NewDispatcher(internalaudit.Config{
		Enabled:    cfg.Audit.Enabled,
		BufferSize: cfg.Audit.BufferSize,
		DropIfFull: cfg.Audit.DropIfFull,
	}, b.auditSink)

	engine := &Engine{
		config:      cfg,
		principals:  b.principals,
		hasher:      hasher,
		codec:       codec,
		totp:        newTOTPManager(cfg.TOTP),
		totpReplay:  newTOTPReplayGuard(),
		revocations: revocations,
		limiter:     limiter,
		audit:       dispatcher,
		metrics:     NewMetrics(cfg.Metrics),
		hashGate:    make(chan struct{}, cfg.Password.maxConcurrent()),
	}

	b.built = true
	return engine, nil
}
