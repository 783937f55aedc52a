package authkit

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/storekeep/authkit/token"
)

// revocationStore tracks revoked tokens by fingerprint until their natural
// expiry. The in-memory map is authoritative for this process; an optional
// Redis tier shares revocations across replicas. A Redis outage degrades to
// local-only operation, it never blocks revocation, but the degradation is
// reported through ErrRevocationUnavailable so the engine can surface it.
type revocationStore struct {
	mu      sync.RWMutex
	entries map[string]time.Time

	redis  redis.UniversalClient
	prefix string

	stopOnce sync.Once
	stop     chan struct{}
}

func newRevocationStore(cfg RevocationConfig, redisClient redis.UniversalClient) *revocationStore {
	return &revocationStore{
		entries: make(map[string]time.Time),
		redis:   redisClient,
		prefix:  cfg.RedisPrefix,
		stop:    make(chan struct{}),
	}
}

func (s *revocationStore) key(fingerprint string) string {
	return s.prefix + ":" + fingerprint
}

// Revoke marks the raw token revoked until expiresAt. A token already past
// its expiry needs no entry. Only the fingerprint is retained. The local
// entry always takes effect; a failed mirror write to the shared tier is
// reported as ErrRevocationUnavailable so callers can record the degradation.
func (s *revocationStore) Revoke(ctx context.Context, rawToken string, expiresAt time.Time) error {
	ttl := time.Until(expiresAt)
	if ttl <= 0 {
		return nil
	}

	fingerprint := token.Fingerprint(rawToken)

	s.mu.Lock()
	s.entries[fingerprint] = expiresAt
	s.mu.Unlock()

	if s.redis != nil {
		if err := s.redis.Set(ctx, s.key(fingerprint), "1", ttl).Err(); err != nil {
			// Local entry already holds; replicas catch up when Redis returns.
			return fmt.Errorf("%w: %v", ErrRevocationUnavailable, err)
		}
	}

	return nil
}

// IsRevoked reports whether the raw token is currently revoked. An entry
// past its expiry counts as absent; removal is left to the sweeper. The
// boolean answer stays authoritative for this process even when the shared
// tier is unreachable; the error reports that the tier could not be asked.
func (s *revocationStore) IsRevoked(ctx context.Context, rawToken string) (bool, error) {
	fingerprint := token.Fingerprint(rawToken)
	now := time.Now()

	s.mu.RLock()
	expiresAt, ok := s.entries[fingerprint]
	s.mu.RUnlock()

	if ok && now.Before(expiresAt) {
		return true, nil
	}

	if s.redis != nil {
		n, err := s.redis.Exists(ctx, s.key(fingerprint)).Result()
		if err != nil {
			return false, fmt.Errorf("%w: %v", ErrRevocationUnavailable, err)
		}
		if n > 0 {
			return true, nil
		}
	}

	return false, nil
}

// Sweep drops every expired entry and returns how many were removed.
func (s *revocationStore) Sweep(now time.Time) int {
	s.mu.Lock()
	defer s.mu.Unlock()

	removed := 0
	for fingerprint, expiresAt := range s.entries {
		if !now.Before(expiresAt) {
			delete(s.entries, fingerprint)
			removed++
		}
	}
	return removed
}

func (s *revocationStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.entries)
}

func (s *revocationStore) startSweeper(interval time.Duration) {
	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()

		for {
			select {
			case now := <-ticker.C:
				s.Sweep(now)
			case <-s.stop:
				return
			}
		}
	}()
}

func (s *revocationStore) Stop() {
	s.stopOnce.Do(func() {
		close(s.stop)
	})
}
