package authkit

import (
	"errors"
	"runtime"
	"time"
)

// Config holds all engine tuning. Instances are intended to be configured
// during initialization and then treated as immutable.
type Config struct {
	Token      TokenConfig
	Password   PasswordConfig
	TOTP       TOTPConfig
	RateLimit  RateLimitConfig
	Revocation RevocationConfig
	Audit      AuditConfig
	Metrics    MetricsConfig
}

/*
====================================
TOKEN CONFIG
====================================
*/

// TokenConfig configures JWT issuance and verification.
//
// AccessSecret and RefreshSecret SHOULD be distinct. When RefreshSecret is
// empty the engine derives one from AccessSecret with a fixed HMAC label; that
// keeps single-secret deployments functional but weakens the separation
// between token kinds and is not the recommended default.
type TokenConfig struct {
	AccessTTL     time.Duration
	RefreshTTL    time.Duration
	AccessSecret  []byte
	RefreshSecret []byte
	Issuer        string
	Audience      string
	Leeway        time.Duration
}

/*
====================================
PASSWORD CONFIG
====================================
*/

// PasswordConfig configures argon2id costs and the strength policy.
type PasswordConfig struct {
	Memory      uint32 // in KB
	Time        uint32
	Parallelism uint8
	SaltLength  uint32
	KeyLength   uint32

	MinLength int
	MaxLength int

	// UpgradeOnLogin rehashes legacy or under-parameterized credentials after a
	// successful verification and writes back via PrincipalStore.
	UpgradeOnLogin bool

	// MaxConcurrentHashes bounds simultaneous argon2 computations so login
	// storms cannot starve lightweight requests. 0 means 2*GOMAXPROCS.
	MaxConcurrentHashes int
}

/*
====================================
TOTP CONFIG
====================================
*/

// TOTPConfig configures the time-based one-time-password verifier.
type TOTPConfig struct {
	Issuer    string
	Digits    int
	Period    int
	Algorithm string // "SHA1" (default), "SHA256", "SHA512"

	// Skew is the drift tolerance in time steps either side of now. It is
	// capped at 1 (±30s); widening it changes brute-force exposure.
	Skew int

	BackupCodeCount  int
	BackupCodeLength int
}

/*
====================================
RATE LIMIT CONFIG
====================================
*/

// RateLimitConfig configures the fixed-window login limiter.
type RateLimitConfig struct {
	MaxAttempts   int
	Window        time.Duration
	Lockout       time.Duration
	FailureWeight int

	// EnableIPThrottle also counts attempts per client IP when one is attached
	// to the request context.
	EnableIPThrottle bool

	SweepInterval time.Duration
}

// RevocationConfig configures the token revocation store.
type RevocationConfig struct {
	SweepInterval time.Duration
	// RedisPrefix namespaces keys on the optional shared tier.
	RedisPrefix string
}

// AuditConfig controls the asynchronous audit dispatcher.
type AuditConfig struct {
	Enabled    bool
	BufferSize int
	DropIfFull bool
}

// MetricsConfig controls the in-process metrics system.
type MetricsConfig struct {
	Enabled                 bool
	EnableLatencyHistograms bool
}

/*
====================================
DEFAULT CONFIG
====================================
*/

// DefaultConfig returns the baseline configuration. Callers set secrets and
// issuer details on top of it before passing it to the builder.
func DefaultConfig() Config {
	return defaultConfig()
}

func defaultConfig() Config {
	return Config{
		Token: TokenConfig{
			AccessTTL:  15 * time.Minute,
			RefreshTTL: 30 * 24 * time.Hour,
			Leeway:     30 * time.Second,
		},
		Password: PasswordConfig{
			Memory:         65536,
			Time:           3,
			Parallelism:    4,
			SaltLength:     16,
			KeyLength:      32,
			MinLength:      8,
			MaxLength:      128,
			UpgradeOnLogin: true,
		},
		TOTP: TOTPConfig{
			Issuer:           "storekeep",
			Digits:           6,
			Period:           30,
			Algorithm:        "SHA1",
			Skew:             1,
			BackupCodeCount:  10,
			BackupCodeLength: 8,
		},
		RateLimit: RateLimitConfig{
			MaxAttempts:      5,
			Window:           time.Minute,
			Lockout:          15 * time.Minute,
			FailureWeight:    2,
			EnableIPThrottle: true,
			SweepInterval:    5 * time.Minute,
		},
		Revocation: RevocationConfig{
			SweepInterval: 5 * time.Minute,
			RedisPrefix:   "rvk",
		},
		Audit: AuditConfig{
			Enabled:    false,
			BufferSize: 1024,
			DropIfFull: true,
		},
		Metrics: MetricsConfig{
			Enabled:                 false,
			EnableLatencyHistograms: false,
		},
	}
}

func cloneConfig(cfg Config) Config {
	out := cfg
	out.Token.AccessSecret = cloneBytes(cfg.Token.AccessSecret)
	out.Token.RefreshSecret = cloneBytes(cfg.Token.RefreshSecret)
	return out
}

func cloneBytes(b []byte) []byte {
	if len(b) == 0 {
		return nil
	}
	out := make([]byte, len(b))
	copy(out, b)
	return out
}

func (c *PasswordConfig) maxConcurrent() int {
	if c.MaxConcurrentHashes > 0 {
		return c.MaxConcurrentHashes
	}
	return 2 * runtime.GOMAXPROCS(0)
}

/*
====================================
VALIDATION
====================================
*/

// Validate checks the configuration for internally inconsistent or unsafe
// values. Build calls it; callers constructing a Config by hand may call it
// directly.
func (c *Config) Validate() error {
	// Token
	if c.Token.AccessTTL <= 0 {
		return errors.New("Token AccessTTL must be > 0")
	}
	if c.Token.RefreshTTL <= 0 {
		return errors.New("Token RefreshTTL must be > 0")
	}
	if c.Token.RefreshTTL < c.Token.AccessTTL {
		return errors.New("Token RefreshTTL must be >= AccessTTL")
	}
	if len(c.Token.AccessSecret) < 32 {
		return errors.New("Token AccessSecret must be at least 32 bytes")
	}
	if len(c.Token.RefreshSecret) > 0 && len(c.Token.RefreshSecret) < 32 {
		return errors.New("Token RefreshSecret must be at least 32 bytes when set")
	}
	if c.Token.Issuer == "" {
		return errors.New("Token Issuer must be set")
	}
	if c.Token.Audience == "" {
		return errors.New("Token Audience must be set")
	}
	if c.Token.Leeway < 0 || c.Token.Leeway > 2*time.Minute {
		return errors.New("Token Leeway must be in [0, 2m]")
	}

	// Password
	if c.Password.Memory < 8*1024 {
		return errors.New("Password Memory must be >= 8192 KB")
	}
	if c.Password.Time < 1 {
		return errors.New("Password Time must be >= 1")
	}
	if c.Password.Parallelism < 1 {
		return errors.New("Password Parallelism must be >= 1")
	}
	if c.Password.SaltLength < 16 {
		return errors.New("Password SaltLength must be >= 16")
	}
	if c.Password.KeyLength < 16 {
		return errors.New("Password KeyLength must be >= 16")
	}
	if c.Password.MinLength < 8 {
		return errors.New("Password MinLength must be >= 8")
	}
	if c.Password.MaxLength < c.Password.MinLength {
		return errors.New("Password MaxLength must be >= MinLength")
	}
	if c.Password.MaxConcurrentHashes < 0 {
		return errors.New("Password MaxConcurrentHashes must be >= 0")
	}

	// TOTP
	if c.TOTP.Digits != 6 && c.TOTP.Digits != 8 {
		return errors.New("TOTP Digits must be 6 or 8")
	}
	if c.TOTP.Period <= 0 {
		return errors.New("TOTP Period must be > 0")
	}
	if c.TOTP.Skew < 0 || c.TOTP.Skew > 1 {
		return errors.New("TOTP Skew must be 0 or 1")
	}
	switch c.TOTP.Algorithm {
	case "", "SHA1", "SHA256", "SHA512":
	default:
		return errors.New("unsupported TOTP algorithm")
	}
	if c.TOTP.BackupCodeCount < 0 {
		return errors.New("TOTP BackupCodeCount must be >= 0")
	}
	if c.TOTP.BackupCodeCount > 0 && c.TOTP.BackupCodeLength < 8 {
		return errors.New("TOTP BackupCodeLength must be >= 8")
	}

	// Rate limiting
	if c.RateLimit.MaxAttempts <= 0 {
		return errors.New("RateLimit MaxAttempts must be > 0")
	}
	if c.RateLimit.Window <= 0 {
		return errors.New("RateLimit Window must be > 0")
	}
	if c.RateLimit.Lockout <= 0 {
		return errors.New("RateLimit Lockout must be > 0")
	}
	if c.RateLimit.FailureWeight < 1 {
		return errors.New("RateLimit FailureWeight must be >= 1")
	}
	if c.RateLimit.SweepInterval <= 0 {
		return errors.New("RateLimit SweepInterval must be > 0")
	}

	// Revocation
	if c.Revocation.SweepInterval <= 0 {
		return errors.New("Revocation SweepInterval must be > 0")
	}

	// Audit
	if c.Audit.Enabled && c.Audit.BufferSize <= 0 {
		return errors.New("Audit BufferSize must be > 0 when audit is enabled")
	}

	return nil
}
