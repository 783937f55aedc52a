package authkit

import (
	"context"
	"errors"
	"time"

	"github.com/storekeep/authkit/token"
)

// Authenticate runs the per-request pipeline over a raw bearer token. The
// check order is fixed: the cheap revocation lookup runs before any
// cryptography, and the principal store is consulted only after every
// cryptographic check has passed.
func (e *Engine) Authenticate(ctx context.Context, rawToken string) (*AuthResult, error) {
	if e == nil {
		return nil, ErrEngineNotReady
	}

	start := time.Now()
	result, err := e.authenticate(ctx, rawToken)
	e.metricObserve(MetricAuthenticateLatency, time.Since(start))

	if err != nil {
		e.metricInc(MetricAuthenticateRejected)
		e.emitAudit(ctx, auditEventAuthRejected, false, "", err, nil)
		return nil, err
	}

	e.metricInc(MetricAuthenticateSuccess)
	return result, nil
}

func (e *Engine) authenticate(ctx context.Context, rawToken string) (*AuthResult, error) {
	if rawToken == "" {
		return nil, ErrTokenMalformed
	}

	revoked, rerr := e.revocations.IsRevoked(ctx, rawToken)
	if rerr != nil {
		e.revocationDegraded(ctx, rerr)
	}
	if revoked {
		return nil, ErrTokenRevoked
	}

	claims, err := e.codec.Verify(rawToken, token.TypeAccess)
	if err != nil {
		return nil, err
	}

	principal, err := e.principals.FindByID(ctx, claims.Subject)
	if err != nil {
		if errors.Is(err, ErrUserNotFound) {
			return nil, ErrUserNotFound
		}
		return nil, err
	}
	if principal.Banned() {
		return nil, ErrUserBanned
	}

	return &AuthResult{Principal: principal, Claims: *claims}, nil
}
