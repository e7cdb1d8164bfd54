package toolproc

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"
)

// Reaper is the last-resort safety net: a background timer that scans this
// application's process family and kills members exceeding a maximum age.
//
// It is intentionally decoupled from the executor's Registry. A process that
// escaped normal tracking (executor crash, detached child) is still caught
// here, at the cost of precision: a legitimate long-running invocation can be
// reaped if MaxAge is set below realistic tool runtimes. The executor
// observes such a kill as an abnormal exit and retries as usual.
//
// Every sweep failure is counted and swallowed; a bad sweep must never stop
// the timer.
type Reaper struct {
	log  *zap.Logger
	enum Enumerator

	mu       sync.Mutex
	running  bool
	cancel   context.CancelFunc
	interval time.Duration
	maxAge   time.Duration

	scans  atomic.Int64
	killed atomic.Int64
	errors atomic.Int64

	// now is injectable for age-boundary tests.
	now func() time.Time
}

// ReaperStats is a point-in-time view of the reaper. Counters are process-wide
// and never reset.
type ReaperStats struct {
	IsRunning bool
	Interval  time.Duration
	MaxAge    time.Duration
	Scans     int64
	Killed    int64
	Errors    int64
}

// NewReaper wires the reaper to a process enumerator.
func NewReaper(log *zap.Logger, enum Enumerator) *Reaper {
	return &Reaper{
		log:  log.Named("reaper"),
		enum: enum,
		now:  time.Now,
	}
}

// Start begins the recurring sweep. Idempotent: calling Start while running
// is a no-op (exactly one timer loop exists at any time).
func (r *Reaper) Start(interval, maxAge time.Duration) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.running {
		return
	}

	ctx, cancel := context.WithCancel(context.Background())
	r.running = true
	r.cancel = cancel
	r.interval = interval
	r.maxAge = maxAge

	r.log.Info("reaper started",
		zap.Duration("interval", interval),
		zap.Duration("max_age", maxAge))

	go r.loop(ctx, interval, maxAge)
}

// Stop cancels the timer. Idempotent. Start may be called again afterwards.
func (r *Reaper) Stop() {
	r.mu.Lock()
	defer r.mu.Unlock()

	if !r.running {
		return
	}
	r.cancel()
	r.running = false
	r.cancel = nil

	r.log.Info("reaper stopped")
}

func (r *Reaper) loop(ctx context.Context, interval, maxAge time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			r.Sweep(ctx, maxAge)
		}
	}
}

// Sweep performs one scan-and-kill pass: every family member older than
// maxAge (strictly) is terminated. Enumeration and kill errors are counted,
// never propagated.
func (r *Reaper) Sweep(ctx context.Context, maxAge time.Duration) {
	r.scans.Add(1)

	family, err := r.enum.Family(ctx)
	if err != nil {
		r.errors.Add(1)
		r.log.Warn("family enumeration failed", zap.Error(err))
		return
	}

	now := r.now()
	for _, p := range family {
		age := now.Sub(p.StartedAt)
		if age <= maxAge {
			continue
		}

		if err := r.enum.Kill(p.PID); err != nil {
			// Commonly a benign race: the process exited between scan and kill.
			r.errors.Add(1)
			r.log.Warn("orphan kill failed",
				zap.Int32("pid", p.PID),
				zap.String("name", p.Name),
				zap.Error(err))
			continue
		}

		r.killed.Add(1)
		r.log.Info("orphan reaped",
			zap.Int32("pid", p.PID),
			zap.String("name", p.Name),
			zap.Duration("age", age))
	}
}

// CleanupAll kills every family member regardless of age. Operator escape
// hatch; same error-swallowing policy as a sweep.
func (r *Reaper) CleanupAll(ctx context.Context) {
	r.scans.Add(1)

	family, err := r.enum.Family(ctx)
	if err != nil {
		r.errors.Add(1)
		r.log.Warn("family enumeration failed", zap.Error(err))
		return
	}

	for _, p := range family {
		if err := r.enum.Kill(p.PID); err != nil {
			r.errors.Add(1)
			r.log.Warn("cleanup kill failed", zap.Int32("pid", p.PID), zap.Error(err))
			continue
		}
		r.killed.Add(1)
	}

	r.log.Info("cleanup pass finished", zap.Int("family_size", len(family)))
}

// Stats returns a snapshot of reaper state and counters. Pure read.
func (r *Reaper) Stats() ReaperStats {
	r.mu.Lock()
	running := r.running
	interval := r.interval
	maxAge := r.maxAge
	r.mu.Unlock()

	return ReaperStats{
		IsRunning: running,
		Interval:  interval,
		MaxAge:    maxAge,
		Scans:     r.scans.Load(),
		Killed:    r.killed.Load(),
		Errors:    r.errors.Load(),
	}
}
