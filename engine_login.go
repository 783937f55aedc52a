package authkit

import (
	"context"
	"errors"
	"strconv"
	"strings"
	"time"
	"unicode"

	"github.com/storekeep/authkit/token"
)

// Login authenticates an email/password pair and mints a token pair. When
// the account has MFA enabled, the result carries MFARequired=true and no
// tokens; the client resubmits through [Engine.LoginWithCode].
func (e *Engine) Login(ctx context.Context, email, pass string) (*LoginResult, error) {
	if e == nil {
		return nil, ErrEngineNotReady
	}
	return e.login(ctx, email, pass, "")
}

// LoginWithCode completes an MFA login with a TOTP code or a backup code.
func (e *Engine) LoginWithCode(ctx context.Context, email, pass, code string) (*LoginResult, error) {
	if e == nil {
		return nil, ErrEngineNotReady
	}
	if strings.TrimSpace(code) == "" {
		return nil, ErrMFAInvalid
	}
	return e.login(ctx, email, pass, code)
}

// LoginQuota returns the attempt limit and the remaining budget for the
// identifier, for X-RateLimit response headers.
func (e *Engine) LoginQuota(ctx context.Context, identifier string) (limit, remaining int) {
	if e == nil || e.limiter == nil {
		return 0, 0
	}
	return e.limiter.Quota(normalizeEmail(identifier))
}

// HashPassword applies the strength policy and returns an Argon2id hash for
// storage. Hashing runs under the same concurrency gate as login.
func (e *Engine) HashPassword(ctx context.Context, pass string) (string, error) {
	if e == nil {
		return "", ErrEngineNotReady
	}
	if err := e.checkPasswordStrength(pass); err != nil {
		return "", err
	}

	if err := e.acquireHashSlot(ctx); err != nil {
		return "", err
	}
	defer e.releaseHashSlot()

	return e.hasher.Hash(pass)
}

func (e *Engine) login(ctx context.Context, email, pass, code string) (*LoginResult, error) {
	identifier := normalizeEmail(email)
	ip := clientIPFromContext(ctx)

	if err := e.limiter.Check(ctx, identifier, ip); err != nil {
		if !e.limiterBypass(ctx, identifier, err) {
			e.metricInc(limitMetric(err))
			e.emitAudit(ctx, limitEvent(err), false, "", err, nil)
			return nil, err
		}
	}
	if err := e.limiter.RecordAttempt(ctx, identifier, ip); err != nil {
		e.limiterBypass(ctx, identifier, err)
	}

	principal, err := e.principals.FindByEmail(ctx, identifier)
	if err != nil {
		if errors.Is(err, ErrUserNotFound) {
			// Burn comparable hashing work so response timing does not
			// reveal whether the account exists. The decoy pays the same
			// gate toll as a real verification, otherwise unknown-account
			// traffic would queue differently under load.
			if err := e.acquireHashSlot(ctx); err != nil {
				return nil, err
			}
			e.hasher.VerifyDummy(pass)
			e.releaseHashSlot()
			e.loginFailed(ctx, identifier, ip, "", ErrInvalidCredentials)
			return nil, ErrInvalidCredentials
		}
		return nil, err
	}

	if err := e.acquireHashSlot(ctx); err != nil {
		return nil, err
	}
	ok, verr := e.hasher.Verify(pass, principal.PasswordHash)
	e.releaseHashSlot()
	if verr != nil {
		// Unknown or corrupt stored hash is an operator problem, surfaced
		// as-is rather than folded into a credential mismatch.
		e.emitAudit(ctx, auditEventLoginFailure, false, principal.ID, verr, nil)
		return nil, verr
	}
	if !ok {
		e.loginFailed(ctx, identifier, ip, principal.ID, ErrInvalidCredentials)
		return nil, ErrInvalidCredentials
	}

	if principal.Banned() {
		e.loginFailed(ctx, identifier, ip, principal.ID, ErrUserBanned)
		return nil, ErrUserBanned
	}

	consumedBackup := -1
	if principal.MFAEnabled {
		if code == "" {
			e.metricInc(MetricMFARequired)
			e.emitAudit(ctx, auditEventMFARequired, true, principal.ID, nil, nil)
			return &LoginResult{Principal: principal, MFARequired: true, ConsumedBackupCode: -1}, nil
		}

		idx, err := e.verifySecondFactor(principal, code)
		if err != nil {
			e.metricInc(MetricMFAFailure)
			e.loginFailed(ctx, identifier, ip, principal.ID, err)
			return nil, err
		}
		consumedBackup = idx
		e.metricInc(MetricMFASuccess)
		if idx >= 0 {
			e.metricInc(MetricBackupCodeUsed)
			e.emitAudit(ctx, auditEventBackupCodeUsed, true, principal.ID, nil, func() map[string]string {
				return map[string]string{"slot": strconv.Itoa(idx)}
			})
		} else {
			e.emitAudit(ctx, auditEventMFASuccess, true, principal.ID, nil, nil)
		}
	}

	e.maybeUpgradeHash(ctx, principal, pass)

	if err := e.limiter.Clear(ctx, identifier, ip); err != nil {
		e.limiterBypass(ctx, identifier, err)
	}

	result, err := e.issuePair(principal)
	if err != nil {
		return nil, err
	}
	result.ConsumedBackupCode = consumedBackup

	e.metricInc(MetricLoginSuccess)
	e.emitAudit(ctx, auditEventLoginSuccess, true, principal.ID, nil, nil)
	return result, nil
}

func (e *Engine) verifySecondFactor(principal PrincipalRecord, code string) (int, error) {
	secret, err := decodeTOTPSecret(principal.TOTPSecret)
	if err == nil {
		ok, counter, verr := e.totp.VerifyCode(secret, code, time.Now())
		if verr == nil && ok {
			// A code is good for one login: the matched counter must move
			// forward, so replaying it within the skew window fails.
			if !e.totpReplay.markUsed(principal.ID, counter) {
				return -1, ErrMFAInvalid
			}
			return -1, nil
		}
	}

	if idx := verifyBackupCode(code, principal.BackupCodeHashes); idx >= 0 {
		// Consumption of the matched slot is the principal store's job,
		// keyed by the index the host receives.
		return idx, nil
	}

	return -1, ErrMFAInvalid
}

// maybeUpgradeHash rewrites a legacy or under-parameterized hash after a
// successful verification. Best effort: a store failure does not fail login.
func (e *Engine) maybeUpgradeHash(ctx context.Context, principal PrincipalRecord, pass string) {
	if !e.config.Password.UpgradeOnLogin {
		return
	}
	needs, err := e.hasher.NeedsUpgrade(principal.PasswordHash)
	if err != nil || !needs {
		return
	}

	upgraded, err := e.hasher.Hash(pass)
	if err != nil {
		return
	}
	if err := e.principals.UpdatePasswordHash(ctx, principal.ID, upgraded); err != nil {
		return
	}

	e.metricInc(MetricPasswordUpgraded)
	e.emitAudit(ctx, auditEventPasswordUpgraded, true, principal.ID, nil, nil)
}

func (e *Engine) issuePair(principal PrincipalRecord) (*LoginResult, error) {
	access, expiresAt, err := e.codec.Issue(principal.ID, principal.Email, principal.Role, token.TypeAccess)
	if err != nil {
		return nil, err
	}
	refresh, _, err := e.codec.Issue(principal.ID, principal.Email, principal.Role, token.TypeRefresh)
	if err != nil {
		return nil, err
	}

	return &LoginResult{
		AccessToken:        access,
		RefreshToken:       refresh,
		ExpiresAt:          expiresAt,
		Principal:          principal,
		ConsumedBackupCode: -1,
	}, nil
}

func (e *Engine) loginFailed(ctx context.Context, identifier, ip, userID string, cause error) {
	if err := e.limiter.RecordFailure(ctx, identifier, ip); err != nil {
		e.limiterBypass(ctx, identifier, err)
	}
	e.metricInc(MetricLoginFailure)
	e.emitAudit(ctx, auditEventLoginFailure, false, userID, cause, nil)
}

// limiterBypass handles a limiter backend failure under the fail-open
// policy: record it loudly, then let the request through.
func (e *Engine) limiterBypass(ctx context.Context, identifier string, err error) bool {
	if !errors.Is(err, ErrLimiterUnavailable) {
		return false
	}
	e.metricInc(MetricLimiterFailOpen)
	e.emitAudit(ctx, auditEventLimiterFailOpen, false, "", err, func() map[string]string {
		return map[string]string{"identifier": identifier}
	})
	return true
}

func (e *Engine) checkPasswordStrength(pass string) error {
	if len(pass) < e.config.Password.MinLength || len(pass) > e.config.Password.MaxLength {
		return ErrPasswordPolicy
	}

	var hasUpper, hasLower, hasDigit bool
	for _, r := range pass {
		switch {
		case unicode.IsUpper(r):
			hasUpper = true
		case unicode.IsLower(r):
			hasLower = true
		case unicode.IsDigit(r):
			hasDigit = true
		}
	}
	if !hasUpper || !hasLower || !hasDigit {
		return ErrPasswordPolicy
	}
	return nil
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

func limitMetric(err error) MetricID {
	if errors.Is(err, ErrLocked) {
		return MetricLoginLocked
	}
	return MetricLoginRateLimited
}

func limitEvent(err error) string {
	if errors.Is(err, ErrLocked) {
		return auditEventLoginLocked
	}
	return auditEventLoginRateLimited
}
