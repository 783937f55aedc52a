package authkit

import (
	"context"
	"errors"
	"time"

	internalaudit "github.com/storekeep/authkit/internal/audit"
	"github.com/storekeep/authkit/password"
	"github.com/storekeep/authkit/token"
)

// Engine is the authentication core. Construct one through [Builder.Build];
// all methods are safe for concurrent use.
type Engine struct {
	config      Config
	principals  PrincipalStore
	hasher      *password.Hasher
	codec       *token.Codec
	totp        *totpManager
	totpReplay  *totpReplayGuard
	revocations *revocationStore
	limiter     *loginLimiter
	audit       *internalaudit.Dispatcher
	metrics     *Metrics

	// hashGate bounds concurrent memory-hard hashing so a login storm
	// cannot starve lightweight requests.
	hashGate chan struct{}
}

// Close flushes the audit pipeline and stops the background sweepers.
func (e *Engine) Close() {
	if e == nil {
		return
	}
	if e.audit != nil {
		e.audit.Close()
	}
	if e.revocations != nil {
		e.revocations.Stop()
	}
	if e.limiter != nil {
		e.limiter.Stop()
	}
}

// AuditDropped reports how many audit events were discarded because the
// buffer was full.
func (e *Engine) AuditDropped() uint64 {
	if e == nil || e.audit == nil {
		return 0
	}
	return e.audit.Dropped()
}

func (e *Engine) MetricsSnapshot() Snapshot {
	if e == nil || e.metrics == nil {
		return Snapshot{
			Counters:   map[MetricID]uint64{},
			Histograms: map[MetricID][]uint64{},
		}
	}
	return e.metrics.Snapshot()
}

func (e *Engine) metricInc(id MetricID) {
	if e == nil || e.metrics == nil {
		return
	}
	e.metrics.Inc(id)
}

func (e *Engine) metricObserve(id MetricID, d time.Duration) {
	if e == nil || e.metrics == nil {
		return
	}
	e.metrics.Observe(id, d)
}

// revocationDegraded handles a revocation mirror failure: the local map has
// already answered, so record the degraded window loudly and move on.
func (e *Engine) revocationDegraded(ctx context.Context, err error) bool {
	if !errors.Is(err, ErrRevocationUnavailable) {
		return false
	}
	e.metricInc(MetricRevocationMirrorFailed)
	e.emitAudit(ctx, auditEventRevocationDegraded, false, "", err, nil)
	return true
}

// acquireHashSlot blocks until a hashing slot is free or the context ends.
// Release by receiving from the gate.
func (e *Engine) acquireHashSlot(ctx context.Context) error {
	select {
	case e.hashGate <- struct{}{}:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (e *Engine) releaseHashSlot() {
	<-e.hashGate
}
