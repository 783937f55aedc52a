package authkit

import (
	"context"
	"errors"
	"time"
)

const (
	auditEventLoginSuccess       = "login_success"
	auditEventLoginFailure       = "login_failure"
	auditEventLoginRateLimited   = "login_rate_limited"
	auditEventLoginLocked        = "login_locked"
	auditEventMFARequired        = "mfa_required"
	auditEventMFASuccess         = "mfa_success"
	auditEventMFAFailure         = "mfa_failure"
	auditEventBackupCodeUsed     = "backup_code_used"
	auditEventMFAEnrollStarted   = "mfa_enroll_started"
	auditEventMFAEnrollConfirmed = "mfa_enroll_confirmed"
	auditEventRefreshSuccess     = "refresh_success"
	auditEventRefreshInvalid     = "refresh_invalid"
	auditEventLogout             = "logout"
	auditEventTokenRevoked       = "token_revoked"
	auditEventAuthRejected       = "authenticate_rejected"
	auditEventPasswordUpgraded   = "password_hash_upgraded"
	auditEventLimiterFailOpen    = "limiter_fail_open"
	auditEventRevocationDegraded = "revocation_mirror_failed"
)

// AuditErrorCode is the stable error label attached to audit events.
type AuditErrorCode string

const (
	auditErrInvalidCredentials AuditErrorCode = "invalid_credentials"
	auditErrRateLimited        AuditErrorCode = "rate_limited"
	auditErrLocked             AuditErrorCode = "account_locked"
	auditErrInvalidToken       AuditErrorCode = "invalid_token"
	auditErrTokenExpired       AuditErrorCode = "token_expired"
	auditErrTokenRevoked       AuditErrorCode = "token_revoked"
	auditErrWrongTokenType     AuditErrorCode = "wrong_token_type"
	auditErrUserNotFound       AuditErrorCode = "user_not_found"
	auditErrUserBanned         AuditErrorCode = "user_banned"
	auditErrUnknownHashFormat  AuditErrorCode = "unknown_hash_format"
	auditErrPasswordPolicy     AuditErrorCode = "password_policy"
	auditErrMFARequired        AuditErrorCode = "mfa_required"
	auditErrMFAInvalid         AuditErrorCode = "mfa_invalid"
	auditErrUnavailable        AuditErrorCode = "backend_unavailable"
	auditErrInternal           AuditErrorCode = "internal_error"
)

func (e *Engine) emitAudit(
	ctx context.Context,
	eventType string,
	success bool,
	userID string,
	err error,
	metadataBuilder func() map[string]string,
) {
	if e == nil || e.audit == nil {
		return
	}

	var metadata map[string]string
	if metadataBuilder != nil {
		metadata = metadataBuilder()
	}

	event := AuditEvent{
		Timestamp: time.Now().UTC(),
		EventType: eventType,
		UserID:    userID,
		IP:        clientIPFromContext(ctx),
		UserAgent: userAgentFromContext(ctx),
		Success:   success,
		Metadata:  metadata,
	}
	if code := auditErrorCode(err); code != "" {
		event.Error = string(code)
	}

	e.audit.Emit(ctx, event)
}

func auditErrorCode(err error) AuditErrorCode {
	if err == nil {
		return ""
	}

	switch {
	case errors.Is(err, ErrInvalidCredentials):
		return auditErrInvalidCredentials
	case errors.Is(err, ErrLocked):
		return auditErrLocked
	case errors.Is(err, ErrRateLimited):
		return auditErrRateLimited
	case errors.Is(err, ErrTokenRevoked):
		return auditErrTokenRevoked
	case errors.Is(err, ErrTokenExpired):
		return auditErrTokenExpired
	case errors.Is(err, ErrWrongTokenType):
		return auditErrWrongTokenType
	case errors.Is(err, ErrTokenMalformed),
		errors.Is(err, ErrTokenSignature),
		errors.Is(err, ErrIssuerMismatch),
		errors.Is(err, ErrAudienceMismatch):
		return auditErrInvalidToken
	case errors.Is(err, ErrUserNotFound):
		return auditErrUserNotFound
	case errors.Is(err, ErrUserBanned):
		return auditErrUserBanned
	case errors.Is(err, ErrUnknownHashFormat):
		return auditErrUnknownHashFormat
	case errors.Is(err, ErrPasswordPolicy):
		return auditErrPasswordPolicy
	case errors.Is(err, ErrMFARequired):
		return auditErrMFARequired
	case errors.Is(err, ErrMFAInvalid):
		return auditErrMFAInvalid
	case errors.Is(err, ErrLimiterUnavailable),
		errors.Is(err, ErrRevocationUnavailable):
		return auditErrUnavailable
	default:
		return auditErrInternal
	}
}
