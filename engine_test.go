package authkit

import (
	"bytes"
	"context"
	"strings"
	"sync"
	"testing"
	"time"

	"golang.org/x/crypto/bcrypt"
)

// memStore is an in-memory PrincipalStore for tests.
type memStore struct {
	mu   sync.Mutex
	byID map[string]PrincipalRecord
}

func newMemStore() *memStore {
	return &memStore{byID: make(map[string]PrincipalRecord)}
}

func (s *memStore) add(rec PrincipalRecord) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.byID[rec.ID] = rec
}

func (s *memStore) get(id string) (PrincipalRecord, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	rec, ok := s.byID[id]
	return rec, ok
}

func (s *memStore) FindByID(ctx context.Context, id string) (PrincipalRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	rec, ok := s.byID[id]
	if !ok {
		return PrincipalRecord{}, ErrUserNotFound
	}
	return rec, nil
}

func (s *memStore) FindByEmail(ctx context.Context, email string) (PrincipalRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, rec := range s.byID {
		if strings.EqualFold(rec.Email, email) {
			return rec, nil
		}
	}
	return PrincipalRecord{}, ErrUserNotFound
}

func (s *memStore) UpdatePasswordHash(ctx context.Context, id string, newHash string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	rec, ok := s.byID[id]
	if !ok {
		return ErrUserNotFound
	}
	rec.PasswordHash = newHash
	s.byID[id] = rec
	return nil
}

func testEngineConfig() Config {
	cfg := defaultConfig()
	cfg.Token.AccessSecret = bytes.Repeat([]byte{0xA1}, 32)
	cfg.Token.RefreshSecret = bytes.Repeat([]byte{0xB2}, 32)
	cfg.Token.Issuer = "authkit-test"
	cfg.Token.Audience = "storekeep-api"
	// Minimum argon2 cost keeps the suite fast.
	cfg.Password.Memory = 8 * 1024
	cfg.Password.Time = 1
	cfg.Password.Parallelism = 1
	cfg.Metrics.Enabled = true
	return cfg
}

func newTestEngine(t *testing.T, store *memStore, mutate ...func(*Config)) *Engine {
	t.Helper()

	cfg := testEngineConfig()
	for _, fn := range mutate {
		fn(&cfg)
	}

	engine, err := New().
		WithConfig(cfg).
		WithPrincipalStore(store).
		Build()
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	t.Cleanup(engine.Close)
	return engine
}

const testPassword = "Sup3rSecret42"

func seedUser(t *testing.T, e *Engine, store *memStore, id, email string, mutate ...func(*PrincipalRecord)) PrincipalRecord {
	t.Helper()

	hash, err := e.hasher.Hash(testPassword)
	if err != nil {
		t.Fatalf("Hash: %v", err)
	}

	rec := PrincipalRecord{
		ID:           id,
		Email:        email,
		Role:         "member",
		PasswordHash: hash,
	}
	for _, fn := range mutate {
		fn(&rec)
	}
	store.add(rec)
	return rec
}

func seedMFAUser(t *testing.T, e *Engine, store *memStore, id, email string) (PrincipalRecord, []byte, []string) {
	t.Helper()

	secret := []byte("12345678901234567890")
	codes, hashes, err := generateBackupCodes(3, 8)
	if err != nil {
		t.Fatalf("generateBackupCodes: %v", err)
	}

	rec := seedUser(t, e, store, id, email, func(r *PrincipalRecord) {
		r.MFAEnabled = true
		r.TOTPSecret = "GEZDGNBVGY3TQOJQGEZDGNBVGY3TQOJQ"
		r.BackupCodeHashes = hashes
	})
	return rec, secret, codes
}

func banned(r *PrincipalRecord) {
	ts := time.Now().Add(-time.Hour)
	r.BannedAt = &ts
}

func legacyBcryptHash(t *testing.T, pass string) string {
	t.Helper()
	raw, err := bcrypt.GenerateFromPassword([]byte(pass), bcrypt.MinCost)
	if err != nil {
		t.Fatalf("bcrypt: %v", err)
	}
	// Old PHP-era records carry the $2y$ marker.
	return "$2y$" + string(raw)[4:]
}

func currentTOTP(t *testing.T, secret []byte) string {
	t.Helper()
	code, err := hotpCode(secret, time.Now().Unix()/30, 6, "SHA1")
	if err != nil {
		t.Fatalf("hotpCode: %v", err)
	}
	return code
}
