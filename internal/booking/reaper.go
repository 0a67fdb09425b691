package booking

import (
	"context"
	"log/slog"
	"time"
)

const (
	// DefaultReapInterval is how often the reaper sweeps for stale locks.
	DefaultReapInterval = 30 * time.Second

	// sweepBatch caps how many locks one sweep will touch.  Leftovers are
	// picked up on the next tick.
	sweepBatch = 256
)

// Reaper is the periodic sweep that reclaims seats from expired locks.  It
// is purely additive: the engine is correct even if it never runs, because
// both the lock and confirm paths re-check expiry from the persisted
// timestamp.  The sweep exists so seats abandoned mid-checkout come back to
// other searchers within a tick instead of waiting for the next touch.
//
// Each lock is expired in its own transaction through the same conditional
// active→expired transition the confirm path uses, so the reaper and a
// concurrent confirm racing over one lock produce exactly one seat
// restoration.
type Reaper struct {
	svc      *Service
	interval time.Duration
	log      *slog.Logger
}

// NewReaper builds a reaper over the given engine.  interval <= 0 falls
// back to DefaultReapInterval.
func NewReaper(svc *Service, interval time.Duration, log *slog.Logger) *Reaper {
	if interval <= 0 {
		interval = DefaultReapInterval
	}
	if log == nil {
		log = slog.Default()
	}
	return &Reaper{svc: svc, interval: interval, log: log}
}

// Run sweeps on a fixed ticker until ctx is cancelled.  It never returns an
// error to anyone: per-lock failures are logged and the next tick retries.
func (r *Reaper) Run(ctx context.Context) {
	t := time.NewTicker(r.interval)
	defer t.Stop()
	r.log.Info("reaper started", "interval", r.interval.String())
	for {
		select {
		case <-ctx.Done():
			r.log.Info("reaper stopped")
			return
		case <-t.C:
			r.Sweep(ctx)
		}
	}
}

// Sweep runs one pass: list locks past their expires_at, expire each one.
// Exported so an operator endpoint or test can force a pass.
func (r *Reaper) Sweep(ctx context.Context) {
	locks, err := r.svc.store.ExpiredActiveLocks(ctx, r.svc.now(), sweepBatch)
	if err != nil {
		r.log.Error("reaper: list expired locks", "error", err)
		return
	}
	reclaimed := 0
	for _, l := range locks {
		if err := r.svc.expireLock(ctx, l.ID); err != nil {
			r.log.Error("reaper: expire lock", "lock_id", l.ID, "ride_id", l.RideID, "error", err)
			continue
		}
		reclaimed++
	}
	if reclaimed > 0 {
		r.log.Info("reaper: reclaimed stale holds", "count", reclaimed)
	}
}
