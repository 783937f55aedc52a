package authkit

import (
	"context"
	"errors"
	"time"

	"github.com/storekeep/authkit/token"
)

// Refresh exchanges a refresh token for a fresh token pair. The presented
// refresh token is revoked for its remaining lifetime, so each one is
// single-use. A new access token is always minted, never extended.
func (e *Engine) Refresh(ctx context.Context, refreshToken string) (*LoginResult, error) {
	if e == nil {
		return nil, ErrEngineNotReady
	}
	if refreshToken == "" {
		return nil, ErrTokenMalformed
	}

	revoked, rerr := e.revocations.IsRevoked(ctx, refreshToken)
	if rerr != nil {
		e.revocationDegraded(ctx, rerr)
	}
	if revoked {
		e.refreshFailed(ctx, "", ErrTokenRevoked)
		return nil, ErrTokenRevoked
	}

	claims, err := e.codec.Verify(refreshToken, token.TypeRefresh)
	if err != nil {
		e.refreshFailed(ctx, "", err)
		return nil, err
	}

	principal, err := e.principals.FindByID(ctx, claims.Subject)
	if err != nil {
		if errors.Is(err, ErrUserNotFound) {
			e.refreshFailed(ctx, claims.Subject, ErrUserNotFound)
		}
		return nil, err
	}
	if principal.Banned() {
		e.refreshFailed(ctx, principal.ID, ErrUserBanned)
		return nil, ErrUserBanned
	}

	// Rotate: the old refresh token dies with the new pair's birth. The local
	// entry always takes; a failed mirror write only degrades replica sync.
	if err := e.revocations.Revoke(ctx, refreshToken, claims.ExpiresAt.Time); err != nil {
		e.revocationDegraded(ctx, err)
	}
	e.metricInc(MetricTokenRevoked)

	result, err := e.issuePair(principal)
	if err != nil {
		return nil, err
	}

	e.metricInc(MetricRefreshSuccess)
	e.emitAudit(ctx, auditEventRefreshSuccess, true, principal.ID, nil, nil)
	return result, nil
}

// Logout revokes the presented access token for its remaining lifetime.
// Idempotent: an already-revoked, expired, or unusable token is not an error.
func (e *Engine) Logout(ctx context.Context, accessToken string) error {
	if e == nil {
		return ErrEngineNotReady
	}
	if accessToken == "" {
		return nil
	}

	claims, err := e.codec.Verify(accessToken, token.TypeAccess)
	if err != nil {
		// Expired or invalid tokens have nothing left to revoke.
		return nil
	}

	expiresAt := time.Now().Add(e.config.Token.AccessTTL)
	if claims.ExpiresAt != nil {
		expiresAt = claims.ExpiresAt.Time
	}
	if err := e.revocations.Revoke(ctx, accessToken, expiresAt); err != nil {
		// The token is revoked locally; only the shared tier missed it.
		e.revocationDegraded(ctx, err)
	}

	e.metricInc(MetricTokenRevoked)
	e.emitAudit(ctx, auditEventLogout, true, claims.Subject, nil, nil)
	e.emitAudit(ctx, auditEventTokenRevoked, true, claims.Subject, nil, nil)
	return nil
}

func (e *Engine) refreshFailed(ctx context.Context, userID string, cause error) {
	e.metricInc(MetricRefreshFailure)
	e.emitAudit(ctx, auditEventRefreshInvalid, false, userID, cause, nil)
}
