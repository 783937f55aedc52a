package authkit

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
)

type limiterEntry struct {
	count       int
	windowStart time.Time
	lockedUntil time.Time
}

// loginLimiter enforces a fixed attempt window per identifier with lockout
// escalation. Counters live under a reader-writer lock: checks and quota
// reads run concurrently, mutations serialize. An optional Redis tier shares
// counters across replicas. Backend failures surface as ErrLimiterUnavailable
// so the engine can fail open and record the bypass.
type loginLimiter struct {
	mu      sync.RWMutex
	entries map[string]*limiterEntry

	config RateLimitConfig
	redis  redis.UniversalClient

	// Overridable in tests.
	now func() time.Time

	stopOnce sync.Once
	stop     chan struct{}
}

func newLoginLimiter(cfg RateLimitConfig, redisClient redis.UniversalClient) *loginLimiter {
	return &loginLimiter{
		entries: make(map[string]*limiterEntry),
		config:  cfg,
		redis:   redisClient,
		now:     time.Now,
		stop:    make(chan struct{}),
	}
}

func identifierKey(identifier string) string { return "id:" + identifier }
func ipKey(ip string) string                 { return "ip:" + ip }
func lockKey(key string) string              { return "lock:" + key }

// Check reports whether the identifier (and, when IP throttling is on, the
// client IP) still has attempt budget. Returns a *RateLimitError when the
// window is exhausted or a lockout is active.
func (l *loginLimiter) Check(ctx context.Context, identifier, ip string) error {
	if err := l.checkKey(ctx, identifierKey(identifier)); err != nil {
		return err
	}
	if l.config.EnableIPThrottle && ip != "" {
		if err := l.checkKey(ctx, ipKey(ip)); err != nil {
			return err
		}
	}
	return nil
}

// RecordAttempt charges one unit against the window for the attempt itself.
func (l *loginLimiter) RecordAttempt(ctx context.Context, identifier, ip string) error {
	return l.record(ctx, identifier, ip, 1)
}

// RecordFailure charges the failure weight, so wrong-password guesses
// escalate to lockout faster than plain traffic.
func (l *loginLimiter) RecordFailure(ctx context.Context, identifier, ip string) error {
	return l.record(ctx, identifier, ip, l.config.FailureWeight)
}

// Clear drops all counters for the identifier and IP. Called after a
// successful login so earlier failures stop penalizing the user.
func (l *loginLimiter) Clear(ctx context.Context, identifier, ip string) error {
	keys := []string{identifierKey(identifier)}
	if l.config.EnableIPThrottle && ip != "" {
		keys = append(keys, ipKey(ip))
	}

	l.mu.Lock()
	for _, key := range keys {
		delete(l.entries, key)
	}
	l.mu.Unlock()

	if l.redis != nil {
		all := make([]string, 0, len(keys)*2)
		for _, key := range keys {
			all = append(all, key, lockKey(key))
		}
		if err := l.redis.Del(ctx, all...).Err(); err != nil {
			return fmt.Errorf("%w: %v", ErrLimiterUnavailable, err)
		}
	}

	return nil
}

// Quota returns the configured limit and the remaining budget for the
// identifier, for X-RateLimit response headers.
func (l *loginLimiter) Quota(identifier string) (limit, remaining int) {
	limit = l.config.MaxAttempts
	now := l.now()

	l.mu.RLock()
	defer l.mu.RUnlock()

	e, ok := l.entries[identifierKey(identifier)]
	if !ok || now.Sub(e.windowStart) >= l.config.Window {
		return limit, limit
	}
	if now.Before(e.lockedUntil) {
		return limit, 0
	}

	remaining = limit - e.count
	if remaining < 0 {
		remaining = 0
	}
	return limit, remaining
}

func (l *loginLimiter) checkKey(ctx context.Context, key string) error {
	now := l.now()

	l.mu.RLock()
	e, ok := l.entries[key]
	if ok {
		if now.Before(e.lockedUntil) {
			retry := e.lockedUntil.Sub(now)
			l.mu.RUnlock()
			return &RateLimitError{Locked: true, RetryAfter: retry, Limit: l.config.MaxAttempts}
		}
		if now.Sub(e.windowStart) < l.config.Window && e.count >= l.config.MaxAttempts {
			retry := e.windowStart.Add(l.config.Window).Sub(now)
			l.mu.RUnlock()
			return &RateLimitError{RetryAfter: retry, Limit: l.config.MaxAttempts}
		}
	}
	l.mu.RUnlock()

	if l.redis == nil {
		return nil
	}

	locked, err := l.redis.Exists(ctx, lockKey(key)).Result()
	if err != nil {
		return fmt.Errorf("%w: %v", ErrLimiterUnavailable, err)
	}
	if locked > 0 {
		ttl, err := l.redis.TTL(ctx, lockKey(key)).Result()
		if err != nil || ttl < 0 {
			ttl = l.config.Lockout
		}
		return &RateLimitError{Locked: true, RetryAfter: ttl, Limit: l.config.MaxAttempts}
	}

	count, err := l.redis.Get(ctx, key).Int64()
	if err != nil {
		if err == redis.Nil {
			return nil
		}
		return fmt.Errorf("%w: %v", ErrLimiterUnavailable, err)
	}
	if count >= int64(l.config.MaxAttempts) {
		ttl, err := l.redis.TTL(ctx, key).Result()
		if err != nil || ttl < 0 {
			ttl = l.config.Window
		}
		return &RateLimitError{RetryAfter: ttl, Limit: l.config.MaxAttempts}
	}

	return nil
}

func (l *loginLimiter) record(ctx context.Context, identifier, ip string, weight int) error {
	if weight <= 0 {
		weight = 1
	}

	keys := []string{identifierKey(identifier)}
	if l.config.EnableIPThrottle && ip != "" {
		keys = append(keys, ipKey(ip))
	}

	var firstErr error
	for _, key := range keys {
		if err := l.recordKey(ctx, key, weight); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

func (l *loginLimiter) recordKey(ctx context.Context, key string, weight int) error {
	now := l.now()
	escalated := false

	l.mu.Lock()
	e, ok := l.entries[key]
	if !ok || now.Sub(e.windowStart) >= l.config.Window {
		e = &limiterEntry{windowStart: now}
		l.entries[key] = e
	}
	e.count += weight
	// Crossing the budget (not merely reaching it) triggers the lockout.
	if e.count > l.config.MaxAttempts && l.config.Lockout > 0 && !now.Before(e.lockedUntil) {
		e.lockedUntil = now.Add(l.config.Lockout)
		escalated = true
	}
	l.mu.Unlock()

	if l.redis == nil {
		return nil
	}

	count, err := l.redis.IncrBy(ctx, key, int64(weight)).Result()
	if err != nil {
		return fmt.Errorf("%w: %v", ErrLimiterUnavailable, err)
	}
	// Fixed-window semantics: set TTL only for the first hit in the window.
	if count == int64(weight) {
		if err := l.redis.Expire(ctx, key, l.config.Window).Err(); err != nil {
			return fmt.Errorf("%w: %v", ErrLimiterUnavailable, err)
		}
	}
	if (escalated || count > int64(l.config.MaxAttempts)) && l.config.Lockout > 0 {
		if err := l.redis.Set(ctx, lockKey(key), "1", l.config.Lockout).Err(); err != nil {
			return fmt.Errorf("%w: %v", ErrLimiterUnavailable, err)
		}
	}

	return nil
}

// sweep drops entries whose window and lockout have both elapsed.
func (l *loginLimiter) sweep(now time.Time) int {
	l.mu.Lock()
	defer l.mu.Unlock()

	removed := 0
	for key, e := range l.entries {
		if now.Sub(e.windowStart) >= l.config.Window && !now.Before(e.lockedUntil) {
			delete(l.entries, key)
			removed++
		}
	}
	return removed
}

func (l *loginLimiter) startSweeper(interval time.Duration) {
	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()

		for {
			select {
			case now := <-ticker.C:
				l.sweep(now)
			case <-l.stop:
				return
			}
		}
	}()
}

func (l *loginLimiter) Stop() {
	l.stopOnce.Do(func() {
		close(l.stop)
	})
}
