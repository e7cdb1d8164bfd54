package service

import (
	"context"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/adopscmd/toolgate/internal/infrastructure/toolproc"
	"go.uber.org/zap"
)

type StatusOptions struct {
	// TTL controls how long we serve the in-memory snapshot.
	// 150–400ms works well for 1.5s polling; default 250ms.
	TTL time.Duration
	// AlertThreshold is the active-process count above which the
	// snapshot carries a warning alert. Default 5.
	AlertThreshold int
}

func (o *StatusOptions) setDefaults() {
	if o.TTL <= 0 {
		o.TTL = 250 * time.Millisecond
	}
	if o.AlertThreshold <= 0 {
		o.AlertThreshold = 5
	}
}

// Alert flags an abnormal condition worth surfacing in dashboards.
type Alert struct {
	Level   string `json:"level"`
	Message string `json:"message"`
}

// ActiveProcesses describes the currently registered subprocesses.
type ActiveProcesses struct {
	Count     int                      `json:"count"`
	Processes []toolproc.ProcessRecord `json:"processes"`
}

// CleanupStatus is the wire view of the reaper counters, durations in ms.
type CleanupStatus struct {
	IsRunning  bool  `json:"isRunning"`
	IntervalMS int64 `json:"intervalMs"`
	MaxAgeMS   int64 `json:"maxAgeMs"`
	Scans      int64 `json:"scans"`
	Killed     int64 `json:"killed"`
	Errors     int64 `json:"errors"`
}

// Snapshot is the full observability view served at /api/status.
type Snapshot struct {
	Semaphore       toolproc.SemaphoreStatus `json:"semaphore"`
	ActiveProcesses ActiveProcesses          `json:"activeProcesses"`
	Cleanup         CleanupStatus            `json:"cleanup"`
	Alert           *Alert                   `json:"alert"`
	GeneratedAt     time.Time                `json:"generatedAt"`
}

// StatusResult lets the handler set headers/telemetry.
type StatusResult struct {
	Data     *Snapshot
	CacheHit bool
}

// StatusService assembles point-in-time snapshots of the semaphore,
// process registry, and reaper, with a short-TTL cache so dashboard
// polling doesn't hammer the enumeration path.
type StatusService struct {
	log    *zap.Logger
	sem    *toolproc.Semaphore
	reg    *toolproc.Registry
	reaper *toolproc.Reaper

	mu      sync.RWMutex
	cache   *Snapshot
	expires time.Time

	opts StatusOptions
	now  func() time.Time

	sg singleflight.Group
}

// NewStatusService wires components and cache policy.
// Reuse a single instance per process (handlers call Get()).
func NewStatusService(log *zap.Logger, sem *toolproc.Semaphore, reg *toolproc.Registry, reaper *toolproc.Reaper, opts StatusOptions) *StatusService {
	opts.setDefaults()

	return &StatusService{
		log:    log.Named("status_service"),
		sem:    sem,
		reg:    reg,
		reaper: reaper,
		opts:   opts,
		now:    time.Now,
	}
}

// Get returns the cached snapshot or refreshes it when expired.
// Multiple concurrent refreshes are coalesced.
func (s *StatusService) Get(ctx context.Context) (StatusResult, error) {
	// Fast path: fresh cache
	s.mu.RLock()
	if s.cache != nil && s.now().Before(s.expires) {
		out := s.cache
		s.mu.RUnlock()
		return StatusResult{Data: out, CacheHit: true}, nil
	}
	s.mu.RUnlock()

	// Slow path: singleflight refresh
	v, err, _ := s.sg.Do("status-refresh", func() (any, error) {
		// Double-check freshness after we won the flight
		s.mu.RLock()
		if s.cache != nil && s.now().Before(s.expires) {
			out := s.cache
			s.mu.RUnlock()
			return StatusResult{Data: out, CacheHit: true}, nil
		}
		s.mu.RUnlock()

		snap := s.refresh()

		s.mu.Lock()
		s.cache = snap
		s.expires = s.now().Add(s.opts.TTL)
		s.mu.Unlock()

		return StatusResult{Data: snap, CacheHit: false}, nil
	})
	if err != nil {
		return StatusResult{}, err
	}
	return v.(StatusResult), nil
}

// Invalidate drops the cached snapshot so the next Get refreshes.
func (s *StatusService) Invalidate() {
	s.mu.Lock()
	s.cache = nil
	s.expires = time.Time{}
	s.mu.Unlock()
}

// refresh assembles a fresh snapshot. All sources are in-memory reads,
// so this cannot fail; the singleflight is purely to coalesce callers.
func (s *StatusService) refresh() *Snapshot {
	procs := s.reg.List()
	rs := s.reaper.Stats()

	snap := &Snapshot{
		Semaphore: s.sem.Status(),
		ActiveProcesses: ActiveProcesses{
			Count:     len(procs),
			Processes: procs,
		},
		Cleanup: CleanupStatus{
			IsRunning:  rs.IsRunning,
			IntervalMS: rs.Interval.Milliseconds(),
			MaxAgeMS:   rs.MaxAge.Milliseconds(),
			Scans:      rs.Scans,
			Killed:     rs.Killed,
			Errors:     rs.Errors,
		},
		GeneratedAt: s.now(),
	}
	snap.Alert = s.alertFor(len(procs))
	return snap
}

func (s *StatusService) alertFor(active int) *Alert {
	if active <= s.opts.AlertThreshold {
		return nil
	}
	return &Alert{
		Level:   "warning",
		Message: "elevated active process count; check for stuck tool invocations",
	}
}
