package authkit

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
)

func newTestRevocationStore(t *testing.T, client redis.UniversalClient) *revocationStore {
	t.Helper()
	s := newRevocationStore(RevocationConfig{
		SweepInterval: time.Minute,
		RedisPrefix:   "rvk",
	}, client)
	t.Cleanup(s.Stop)
	return s
}

func mustCheckRevoked(t *testing.T, s *revocationStore, raw string) bool {
	t.Helper()
	revoked, err := s.IsRevoked(context.Background(), raw)
	if err != nil {
		t.Fatalf("IsRevoked: %v", err)
	}
	return revoked
}

func TestRevokeAndCheck(t *testing.T) {
	s := newTestRevocationStore(t, nil)
	ctx := context.Background()

	if mustCheckRevoked(t, s, "tok-a") {
		t.Fatal("unrevoked token reported revoked")
	}

	if err := s.Revoke(ctx, "tok-a", time.Now().Add(time.Hour)); err != nil {
		t.Fatalf("Revoke: %v", err)
	}
	if !mustCheckRevoked(t, s, "tok-a") {
		t.Fatal("revoked token reported clean")
	}
	if mustCheckRevoked(t, s, "tok-b") {
		t.Fatal("other token reported revoked")
	}
}

func TestRevokeExpiredTokenIsNoOp(t *testing.T) {
	s := newTestRevocationStore(t, nil)
	ctx := context.Background()

	if err := s.Revoke(ctx, "tok-a", time.Now().Add(-time.Minute)); err != nil {
		t.Fatalf("Revoke: %v", err)
	}
	if s.Len() != 0 {
		t.Fatalf("store holds %d entries for an expired token", s.Len())
	}
}

func TestRevokedEntryExpires(t *testing.T) {
	s := newTestRevocationStore(t, nil)
	ctx := context.Background()

	if err := s.Revoke(ctx, "tok-a", time.Now().Add(30*time.Millisecond)); err != nil {
		t.Fatalf("Revoke: %v", err)
	}
	if !mustCheckRevoked(t, s, "tok-a") {
		t.Fatal("token not revoked inside TTL")
	}

	time.Sleep(60 * time.Millisecond)

	if mustCheckRevoked(t, s, "tok-a") {
		t.Fatal("token still revoked past expiry")
	}
	// Expired means absent to readers; the entry itself waits for the sweeper.
	if s.Len() != 1 {
		t.Fatalf("store holds %d entries, want 1 pending sweep", s.Len())
	}

	if removed := s.Sweep(time.Now()); removed != 1 {
		t.Fatalf("Sweep removed %d, want 1", removed)
	}
	if s.Len() != 0 {
		t.Fatalf("store holds %d entries after sweep", s.Len())
	}
}

func TestRevocationSharedTier(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	first := newTestRevocationStore(t, client)
	second := newTestRevocationStore(t, client)
	ctx := context.Background()

	if err := first.Revoke(ctx, "tok-shared", time.Now().Add(time.Hour)); err != nil {
		t.Fatalf("Revoke: %v", err)
	}

	// The second replica has no local entry but sees the shared one.
	if !mustCheckRevoked(t, second, "tok-shared") {
		t.Fatal("revocation not visible across replicas")
	}
}

func TestRevocationRedisOutageDegradesToLocal(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	s := newTestRevocationStore(t, client)
	ctx := context.Background()

	mr.Close()

	// The failed mirror write is reported, but the local entry still holds.
	err := s.Revoke(ctx, "tok-a", time.Now().Add(time.Hour))
	if !errors.Is(err, ErrRevocationUnavailable) {
		t.Fatalf("Revoke with dead backend = %v, want ErrRevocationUnavailable", err)
	}

	revoked, err := s.IsRevoked(ctx, "tok-a")
	if !revoked {
		t.Fatal("local revocation lost when backend is down")
	}
	if err != nil {
		// A locally revoked token never needs the shared tier.
		t.Fatalf("locally answered check reported backend error: %v", err)
	}

	// A token with no local entry cannot consult the dead tier; the check
	// answers from local state and reports the degraded window.
	revoked, err = s.IsRevoked(ctx, "tok-unknown")
	if revoked {
		t.Fatal("unknown token reported revoked")
	}
	if !errors.Is(err, ErrRevocationUnavailable) {
		t.Fatalf("check against dead backend = %v, want ErrRevocationUnavailable", err)
	}
}

func TestRevocationConcurrentAccess(t *testing.T) {
	s := newTestRevocationStore(t, nil)
	ctx := context.Background()
	expiry := time.Now().Add(time.Hour)

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func(n int) {
			defer wg.Done()
			for j := 0; j < 100; j++ {
				raw := string(rune('a'+n)) + "-token"
				_ = s.Revoke(ctx, raw, expiry)
				_, _ = s.IsRevoked(ctx, raw)
				s.Sweep(time.Now())
			}
		}(i)
	}
	wg.Wait()

	if s.Len() != 8 {
		t.Fatalf("store holds %d entries, want 8", s.Len())
	}
}
