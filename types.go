package authkit

import (
	"context"
	"io"
	"time"

	internalaudit "github.com/storekeep/authkit/internal/audit"
	"github.com/storekeep/authkit/token"
)

// PrincipalStore is the interface callers must implement to integrate authkit
// with their user database. The engine treats it as read-only except for
// UpdatePasswordHash, which is used for best-effort hash upgrades on login.
// Failed/successful-login bookkeeping on the user record is the host's concern.
type PrincipalStore interface {
	FindByID(ctx context.Context, id string) (PrincipalRecord, error)
	FindByEmail(ctx context.Context, email string) (PrincipalRecord, error)
	UpdatePasswordHash(ctx context.Context, id string, newHash string) error
}

// PrincipalRecord is the account snapshot returned by [PrincipalStore].
// PasswordHash and TOTPSecret are opaque stored material; authkit never logs
// either.
type PrincipalRecord struct {
	ID           string
	Email        string
	Role         string
	PasswordHash string
	BannedAt     *time.Time

	MFAEnabled bool
	// TOTPSecret is the base32-encoded shared secret, empty unless MFAEnabled.
	TOTPSecret string
	// BackupCodeHashes are hex-encoded SHA-256 hashes of the unconsumed backup
	// codes. Plaintext codes are never stored.
	BackupCodeHashes []string
}

// Banned reports whether the principal is currently banned.
func (p PrincipalRecord) Banned() bool {
	return p.BannedAt != nil && !p.BannedAt.IsZero()
}

// LoginResult is returned by [Engine.Login], [Engine.LoginWithCode], and
// [Engine.Refresh]. When MFARequired is set no tokens have been issued yet and
// the client must repeat the login with a TOTP or backup code.
type LoginResult struct {
	AccessToken  string
	RefreshToken string
	ExpiresAt    time.Time
	Principal    PrincipalRecord

	MFARequired bool

	// ConsumedBackupCode is the index of the backup-code hash that matched,
	// or -1. Removing the consumed hash from storage is the caller's
	// responsibility; authkit does not mutate the principal record.
	ConsumedBackupCode int
}

// AuthResult is returned by [Engine.Authenticate] once the request-time
// pipeline reaches its Authenticated state.
type AuthResult struct {
	Principal PrincipalRecord
	Claims    token.Claims
}

// MFAEnrollment holds the material generated by [Engine.ProvisionMFA]. The
// plaintext backup codes are returned exactly once for display; only the
// hashes belong in storage.
type MFAEnrollment struct {
	SecretBase32     string
	URI              string
	BackupCodes      []string
	BackupCodeHashes []string
}

// AuditEvent is a structured security event emitted by the engine.
type AuditEvent = internalaudit.Event

// AuditSink receives [AuditEvent] values from the engine's audit dispatcher.
type AuditSink = internalaudit.Sink

// NoOpSink is an [AuditSink] that silently discards all events.
type NoOpSink = internalaudit.NoOpSink

// ChannelSink is a buffered channel-based [AuditSink].
type ChannelSink = internalaudit.ChannelSink

// JSONWriterSink is an [AuditSink] that writes JSON-encoded events to an
// [io.Writer], one object per line.
type JSONWriterSink = internalaudit.JSONWriterSink

// NewChannelSink creates a [ChannelSink] with the given buffer capacity.
func NewChannelSink(buffer int) *ChannelSink {
	return internalaudit.NewChannelSink(buffer)
}

// NewJSONWriterSink creates a [JSONWriterSink] that writes to w.
func NewJSONWriterSink(w io.Writer) *JSONWriterSink {
	return internalaudit.NewJSONWriterSink(w)
}
