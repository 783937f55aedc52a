package authkit

import (
	"context"
	"time"
)

// ProvisionMFA starts TOTP enrollment for the account: a fresh secret, the
// otpauth:// URI for the QR code, and a one-time batch of backup codes. The
// plaintext codes appear only in the returned value; the host stores the
// secret and hashes after the user proves possession with
// [Engine.VerifyEnrollmentCode].
func (e *Engine) ProvisionMFA(ctx context.Context, email string) (*MFAEnrollment, error) {
	if e == nil {
		return nil, ErrEngineNotReady
	}

	identifier := normalizeEmail(email)
	principal, err := e.principals.FindByEmail(ctx, identifier)
	if err != nil {
		return nil, err
	}
	if principal.Banned() {
		return nil, ErrUserBanned
	}

	_, secretBase32, err := e.totp.GenerateSecret()
	if err != nil {
		return nil, err
	}

	codes, hashes, err := generateBackupCodes(e.config.TOTP.BackupCodeCount, e.config.TOTP.BackupCodeLength)
	if err != nil {
		return nil, err
	}

	e.emitAudit(ctx, auditEventMFAEnrollStarted, true, principal.ID, nil, nil)

	return &MFAEnrollment{
		SecretBase32:     secretBase32,
		URI:              e.totp.ProvisionURI(secretBase32, principal.Email),
		BackupCodes:      codes,
		BackupCodeHashes: hashes,
	}, nil
}

// VerifyEnrollmentCode checks the first code from the user's authenticator
// against a just-provisioned secret, proving the secret was captured before
// the host enables MFA on the account.
func (e *Engine) VerifyEnrollmentCode(secretBase32, code string) (bool, error) {
	if e == nil {
		return false, ErrEngineNotReady
	}

	secret, err := decodeTOTPSecret(secretBase32)
	if err != nil {
		return false, err
	}

	ok, _, err := e.totp.VerifyCode(secret, code, time.Now())
	if err != nil {
		return false, err
	}
	if !ok {
		return false, nil
	}
	return true, nil
}

// ConfirmMFAEnrollment is the audited variant used once the host has
// persisted the secret: it validates the proof code and reports the outcome
// to the audit stream.
func (e *Engine) ConfirmMFAEnrollment(ctx context.Context, email, secretBase32, code string) error {
	if e == nil {
		return ErrEngineNotReady
	}

	identifier := normalizeEmail(email)
	principal, err := e.principals.FindByEmail(ctx, identifier)
	if err != nil {
		return err
	}

	ok, err := e.VerifyEnrollmentCode(secretBase32, code)
	if err != nil {
		return err
	}
	if !ok {
		e.metricInc(MetricMFAFailure)
		e.emitAudit(ctx, auditEventMFAFailure, false, principal.ID, ErrMFAInvalid, nil)
		return ErrMFAInvalid
	}

	e.emitAudit(ctx, auditEventMFAEnrollConfirmed, true, principal.ID, nil, nil)
	return nil
}
