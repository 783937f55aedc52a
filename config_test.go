package authkit

import (
	"bytes"
	"strings"
	"testing"
	"time"
)

func validConfig() Config {
	cfg := defaultConfig()
	cfg.Token.AccessSecret = bytes.Repeat([]byte{0xA1}, 32)
	cfg.Token.RefreshSecret = bytes.Repeat([]byte{0xB2}, 32)
	cfg.Token.Issuer = "authkit-test"
	cfg.Token.Audience = "storekeep-api"
	return cfg
}

func TestValidateAcceptsDefaults(t *testing.T) {
	cfg := validConfig()
	if err := cfg.Validate(); err != nil {
		t.Fatalf("Validate: %v", err)
	}
}

func TestValidateRejections(t *testing.T) {
	cases := []struct {
		name   string
		mutate func(*Config)
		want   string
	}{
		{"zero access ttl", func(c *Config) { c.Token.AccessTTL = 0 }, "AccessTTL"},
		{"refresh below access", func(c *Config) { c.Token.RefreshTTL = time.Minute; c.Token.AccessTTL = time.Hour }, "RefreshTTL"},
		{"short access secret", func(c *Config) { c.Token.AccessSecret = []byte("short") }, "AccessSecret"},
		{"short refresh secret", func(c *Config) { c.Token.RefreshSecret = []byte("short") }, "RefreshSecret"},
		{"no issuer", func(c *Config) { c.Token.Issuer = "" }, "Issuer"},
		{"no audience", func(c *Config) { c.Token.Audience = "" }, "Audience"},
		{"huge leeway", func(c *Config) { c.Token.Leeway = time.Hour }, "Leeway"},
		{"low memory", func(c *Config) { c.Password.Memory = 1024 }, "Memory"},
		{"zero time cost", func(c *Config) { c.Password.Time = 0 }, "Time"},
		{"min length too low", func(c *Config) { c.Password.MinLength = 4 }, "MinLength"},
		{"max below min", func(c *Config) { c.Password.MaxLength = 6 }, "MaxLength"},
		{"odd digits", func(c *Config) { c.TOTP.Digits = 7 }, "Digits"},
		{"wide skew", func(c *Config) { c.TOTP.Skew = 2 }, "Skew"},
		{"bad algorithm", func(c *Config) { c.TOTP.Algorithm = "MD5" }, "algorithm"},
		{"short backup codes", func(c *Config) { c.TOTP.BackupCodeLength = 4 }, "BackupCodeLength"},
		{"zero attempts", func(c *Config) { c.RateLimit.MaxAttempts = 0 }, "MaxAttempts"},
		{"zero window", func(c *Config) { c.RateLimit.Window = 0 }, "Window"},
		{"zero failure weight", func(c *Config) { c.RateLimit.FailureWeight = 0 }, "FailureWeight"},
		{"zero revocation sweep", func(c *Config) { c.Revocation.SweepInterval = 0 }, "SweepInterval"},
		{"audit without buffer", func(c *Config) { c.Audit.Enabled = true; c.Audit.BufferSize = 0 }, "BufferSize"},
	}

	for _, tc := range cases {
		cfg := validConfig()
		tc.mutate(&cfg)
		err := cfg.Validate()
		if err == nil {
			t.Fatalf("%s: expected error", tc.name)
		}
		if !strings.Contains(err.Error(), tc.want) {
			t.Fatalf("%s: error %q does not mention %q", tc.name, err, tc.want)
		}
	}
}

func TestCloneConfigIsolatesSecrets(t *testing.T) {
	cfg := validConfig()
	clone := cloneConfig(cfg)

	cfg.Token.AccessSecret[0] ^= 0xFF
	if clone.Token.AccessSecret[0] == cfg.Token.AccessSecret[0] {
		t.Fatal("clone shares the access secret backing array")
	}
}

func TestBuilderRequiresPrincipalStore(t *testing.T) {
	if _, err := New().WithConfig(validConfig()).Build(); err == nil {
		t.Fatal("expected error without a principal store")
	}
}

func TestBuilderSingleUse(t *testing.T) {
	b := New().WithConfig(testEngineConfig()).WithPrincipalStore(newMemStore())

	engine, err := b.Build()
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	defer engine.Close()

	if _, err := b.Build(); err == nil {
		t.Fatal("expected error on second Build")
	}
}

func TestPasswordMaxConcurrentDefault(t *testing.T) {
	cfg := PasswordConfig{}
	if cfg.maxConcurrent() <= 0 {
		t.Fatal("default concurrency bound not positive")
	}
	cfg.MaxConcurrentHashes = 3
	if cfg.maxConcurrent() != 3 {
		t.Fatalf("maxConcurrent = %d, want 3", cfg.maxConcurrent())
	}
}
