package authkit

import (
	"context"
	"errors"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
)

func loginPair(t *testing.T, e *Engine) *LoginResult {
	t.Helper()
	result, err := e.Login(context.Background(), "a@example.com", testPassword)
	if err != nil {
		t.Fatalf("Login: %v", err)
	}
	return result
}

func TestRefreshRotation(t *testing.T) {
	store := newMemStore()
	e := newTestEngine(t, store)
	seedUser(t, e, store, "u1", "a@example.com")
	ctx := context.Background()

	first := loginPair(t, e)

	second, err := e.Refresh(ctx, first.RefreshToken)
	if err != nil {
		t.Fatalf("Refresh: %v", err)
	}
	if second.AccessToken == "" || second.RefreshToken == "" {
		t.Fatal("refresh returned an incomplete pair")
	}
	if second.RefreshToken == first.RefreshToken {
		t.Fatal("refresh token not rotated")
	}

	// The presented refresh token is single-use.
	if _, err := e.Refresh(ctx, first.RefreshToken); !errors.Is(err, ErrTokenRevoked) {
		t.Fatalf("replayed refresh: got %v, want ErrTokenRevoked", err)
	}

	// The new one still works.
	if _, err := e.Refresh(ctx, second.RefreshToken); err != nil {
		t.Fatalf("Refresh with rotated token: %v", err)
	}
}

func TestRefreshRejectsAccessToken(t *testing.T) {
	store := newMemStore()
	e := newTestEngine(t, store)
	seedUser(t, e, store, "u1", "a@example.com")

	pair := loginPair(t, e)

	_, err := e.Refresh(context.Background(), pair.AccessToken)
	if !errors.Is(err, ErrWrongTokenType) {
		t.Fatalf("got %v, want ErrWrongTokenType", err)
	}
}

func TestRefreshBannedUser(t *testing.T) {
	store := newMemStore()
	e := newTestEngine(t, store)
	rec := seedUser(t, e, store, "u1", "a@example.com")
	ctx := context.Background()

	pair := loginPair(t, e)

	banned(&rec)
	store.add(rec)

	if _, err := e.Refresh(ctx, pair.RefreshToken); !errors.Is(err, ErrUserBanned) {
		t.Fatalf("got %v, want ErrUserBanned", err)
	}
}

func TestRefreshDeletedUser(t *testing.T) {
	store := newMemStore()
	e := newTestEngine(t, store)
	seedUser(t, e, store, "u1", "a@example.com")
	ctx := context.Background()

	pair := loginPair(t, e)

	store.mu.Lock()
	delete(store.byID, "u1")
	store.mu.Unlock()

	if _, err := e.Refresh(ctx, pair.RefreshToken); !errors.Is(err, ErrUserNotFound) {
		t.Fatalf("got %v, want ErrUserNotFound", err)
	}
}

func TestRefreshGarbage(t *testing.T) {
	store := newMemStore()
	e := newTestEngine(t, store)

	for _, input := range []string{"", "not-a-token", "a.b.c"} {
		if _, err := e.Refresh(context.Background(), input); err == nil {
			t.Fatalf("Refresh(%q): expected error", input)
		}
	}
}

func TestLogoutRevokesAccessToken(t *testing.T) {
	store := newMemStore()
	e := newTestEngine(t, store)
	seedUser(t, e, store, "u1", "a@example.com")
	ctx := context.Background()

	pair := loginPair(t, e)

	if _, err := e.Authenticate(ctx, pair.AccessToken); err != nil {
		t.Fatalf("Authenticate before logout: %v", err)
	}

	if err := e.Logout(ctx, pair.AccessToken); err != nil {
		t.Fatalf("Logout: %v", err)
	}

	if _, err := e.Authenticate(ctx, pair.AccessToken); !errors.Is(err, ErrTokenRevoked) {
		t.Fatalf("got %v, want ErrTokenRevoked after logout", err)
	}
}

func TestRevocationMirrorOutageDegradesLoudly(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	store := newMemStore()
	engine, err := New().
		WithConfig(testEngineConfig()).
		WithPrincipalStore(store).
		WithRedis(client).
		Build()
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	t.Cleanup(engine.Close)

	seedUser(t, engine, store, "u1", "a@example.com")
	ctx := context.Background()
	pair := loginPair(t, engine)

	mr.Close()

	// Logout and refresh still succeed on the local revocation map alone.
	if err := engine.Logout(ctx, pair.AccessToken); err != nil {
		t.Fatalf("Logout with dead mirror: %v", err)
	}
	if _, err := engine.Authenticate(ctx, pair.AccessToken); !errors.Is(err, ErrTokenRevoked) {
		t.Fatalf("got %v, want ErrTokenRevoked after degraded logout", err)
	}

	refreshed, err := engine.Refresh(ctx, pair.RefreshToken)
	if err != nil {
		t.Fatalf("Refresh with dead mirror: %v", err)
	}
	if refreshed.RefreshToken == pair.RefreshToken {
		t.Fatal("refresh token not rotated")
	}
	if _, err := engine.Refresh(ctx, pair.RefreshToken); !errors.Is(err, ErrTokenRevoked) {
		t.Fatalf("replayed refresh: got %v, want ErrTokenRevoked", err)
	}

	if engine.MetricsSnapshot().Counters[MetricRevocationMirrorFailed] == 0 {
		t.Fatal("degraded mirror not counted")
	}
}

func TestLogoutIdempotent(t *testing.T) {
	store := newMemStore()
	e := newTestEngine(t, store)
	seedUser(t, e, store, "u1", "a@example.com")
	ctx := context.Background()

	pair := loginPair(t, e)

	if err := e.Logout(ctx, pair.AccessToken); err != nil {
		t.Fatalf("Logout: %v", err)
	}
	if err := e.Logout(ctx, pair.AccessToken); err != nil {
		t.Fatalf("second Logout: %v", err)
	}
	if err := e.Logout(ctx, "garbage-token"); err != nil {
		t.Fatalf("Logout of garbage: %v", err)
	}
	if err := e.Logout(ctx, ""); err != nil {
		t.Fatalf("Logout of empty token: %v", err)
	}
}
