package internaldefs

import (
	authkit "github.com/storekeep/authkit"
)

// CounterDef binds a MetricID to its exported name and help text.
type CounterDef struct {
	ID   authkit.MetricID
	Name string
	Help string
}

type HistogramDef struct {
	ID   authkit.MetricID
	Name string
	Help string
}

var CounterDefs = []CounterDef{
	{ID: authkit.MetricLoginSuccess, Name: "authkit_login_success_total", Help: "Successful login attempts."},
	{ID: authkit.MetricLoginFailure, Name: "authkit_login_failure_total", Help: "Failed login attempts."},
	{ID: authkit.MetricLoginRateLimited, Name: "authkit_login_rate_limited_total", Help: "Rate-limited login attempts."},
	{ID: authkit.MetricLoginLocked, Name: "authkit_login_locked_total", Help: "Login attempts rejected during an active lockout."},
	{ID: authkit.MetricMFARequired, Name: "authkit_mfa_required_total", Help: "Login flows paused for a second factor."},
	{ID: authkit.MetricMFASuccess, Name: "authkit_mfa_success_total", Help: "Successful second-factor verifications."},
	{ID: authkit.MetricMFAFailure, Name: "authkit_mfa_failure_total", Help: "Failed second-factor verifications."},
	{ID: authkit.MetricBackupCodeUsed, Name: "authkit_backup_code_used_total", Help: "Logins completed with a backup code."},
	{ID: authkit.MetricRefreshSuccess, Name: "authkit_refresh_success_total", Help: "Successful refresh rotations."},
	{ID: authkit.MetricRefreshFailure, Name: "authkit_refresh_failure_total", Help: "Failed refresh attempts."},
	{ID: authkit.MetricTokenRevoked, Name: "authkit_token_revoked_total", Help: "Tokens added to the revocation store."},
	{ID: authkit.MetricAuthenticateSuccess, Name: "authkit_authenticate_success_total", Help: "Access tokens accepted by Authenticate."},
	{ID: authkit.MetricAuthenticateRejected, Name: "authkit_authenticate_rejected_total", Help: "Access tokens rejected by Authenticate."},
	{ID: authkit.MetricPasswordUpgraded, Name: "authkit_password_upgraded_total", Help: "Stored hashes rewritten to current parameters."},
	{ID: authkit.MetricLimiterFailOpen, Name: "authkit_limiter_fail_open_total", Help: "Limiter backend failures bypassed fail-open."},
	{ID: authkit.MetricRevocationMirrorFailed, Name: "authkit_revocation_mirror_failed_total", Help: "Revocation operations that could not reach the shared tier."},
}

var HistogramDefs = []HistogramDef{
	{ID: authkit.MetricAuthenticateLatency, Name: "authkit_authenticate_latency_seconds", Help: "Authenticate latency histogram."},
}

// HistogramBounds are the upper bucket bounds in seconds, matching the
// engine's fixed millisecond buckets.
var HistogramBounds = []string{
	"0.005",
	"0.01",
	"0.025",
	"0.05",
	"0.1",
	"0.25",
	"0.5",
	"+Inf",
}

// HistogramBoundSuffix gives each bound a name-safe form for exporters that
// cannot use label values.
var HistogramBoundSuffix = []string{
	"0_005",
	"0_01",
	"0_025",
	"0_05",
	"0_1",
	"0_25",
	"0_5",
	"inf",
}

// NormalizeBuckets pads or truncates a raw bucket slice to the fixed width.
func NormalizeBuckets(raw []uint64) [8]uint64 {
	var out [8]uint64
	for i := 0; i < len(out) && i < len(raw); i++ {
		out[i] = raw[i]
	}
	return out
}

// CumulativeBuckets converts per-bucket counts into a running total, the
// shape Prometheus histograms expect.
func CumulativeBuckets(raw [8]uint64) [8]uint64 {
	var out [8]uint64
	var running uint64
	for i := 0; i < len(raw); i++ {
		running += raw[i]
		out[i] = running
	}
	return out
}
