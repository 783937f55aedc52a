package authkit

import (
	"errors"
	"fmt"
	"time"

	"github.com/storekeep/authkit/password"
	"github.com/storekeep/authkit/token"
)

var (
	// ErrTokenMalformed indicates the token is not three dot-separated segments.
	ErrTokenMalformed = token.ErrMalformed
	// ErrTokenSignature indicates the HMAC over header.payload did not match.
	ErrTokenSignature = token.ErrSignature
	// ErrTokenExpired indicates exp is in the past on an otherwise valid token.
	ErrTokenExpired = token.ErrExpired
	// ErrIssuerMismatch indicates the iss claim does not match the configured issuer.
	ErrIssuerMismatch = token.ErrIssuer
	// ErrAudienceMismatch indicates the aud claim does not match the configured audience.
	ErrAudienceMismatch = token.ErrAudience
	// ErrWrongTokenType indicates a refresh token was presented where an access
	// token is expected, or vice versa.
	ErrWrongTokenType = token.ErrWrongType
	// ErrTokenRevoked indicates the token was explicitly revoked before its expiry.
	ErrTokenRevoked = errors.New("token revoked")

	// ErrUnknownHashFormat indicates a stored credential hash with an
	// unrecognized prefix. This is a hard failure, never treated as "no match".
	ErrUnknownHashFormat = password.ErrUnknownFormat
	// ErrPasswordPolicy indicates the password failed the strength policy.
	ErrPasswordPolicy = errors.New("password policy violation")

	// ErrInvalidCredentials covers unknown account and wrong password alike.
	ErrInvalidCredentials = errors.New("invalid credentials")
	// ErrUserNotFound indicates the principal behind a valid token no longer exists.
	ErrUserNotFound = errors.New("user not found")
	// ErrUserBanned indicates a principal that exists but is banned. The one
	// credential failure whose reason is user-visible at the HTTP boundary.
	ErrUserBanned = errors.New("user banned")

	// ErrRateLimited indicates the fixed-window attempt budget is exhausted.
	ErrRateLimited = errors.New("rate limited")
	// ErrLocked indicates lockout escalation is active for the identifier.
	ErrLocked = errors.New("login locked")
	// ErrLimiterUnavailable indicates the limiter's shared backend is unreachable.
	// The engine fails open on this and records a security audit event.
	ErrLimiterUnavailable = errors.New("rate limiter backend unavailable")
	// ErrRevocationUnavailable indicates the revocation store's shared backend
	// is unreachable. The local map stays authoritative; the engine records a
	// security audit event for the degraded window.
	ErrRevocationUnavailable = errors.New("revocation backend unavailable")

	// ErrMFARequired indicates credentials verified but a second factor is
	// pending. The engine reports this state through LoginResult.MFARequired
	// rather than as an error; the sentinel exists for hosts that prefer an
	// error-shaped mapping at their own boundary.
	ErrMFARequired = errors.New("mfa required")
	// ErrMFAInvalid indicates a TOTP or backup code that did not verify.
	ErrMFAInvalid = errors.New("invalid mfa code")

	// ErrEngineNotReady indicates use of an Engine that was not built.
	ErrEngineNotReady = errors.New("engine not initialized")
)

// RateLimitError carries the retry window for Limited and Locked rejections.
// It unwraps to [ErrRateLimited] or [ErrLocked] so callers can branch with
// errors.Is, and exposes the limit for X-RateLimit response headers.
type RateLimitError struct {
	Locked     bool
	RetryAfter time.Duration
	Limit      int
}

func (e *RateLimitError) Error() string {
	if e.Locked {
		return fmt.Sprintf("login locked, retry after %s", e.RetryAfter)
	}
	return fmt.Sprintf("rate limited, retry after %s", e.RetryAfter)
}

func (e *RateLimitError) Unwrap() error {
	if e.Locked {
		return ErrLocked
	}
	return ErrRateLimited
}
