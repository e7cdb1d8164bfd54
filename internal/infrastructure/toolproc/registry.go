package toolproc

import (
	"sync"
	"time"
)

// ProcessRecord describes one live invocation process. Diagnostics only; the
// registry never owns process lifetime.
type ProcessRecord struct {
	PID       int       `json:"pid"`
	StartTime time.Time `json:"startTime"`
	Command   string    `json:"commandDescriptor"`
}

// Registry indexes currently-running invocation processes by OS pid.
//
// It is a pure observability surface: the executor registers a pid right
// after a successful spawn and unregisters it in the attempt's single
// teardown path. No component may branch on registry contents to decide
// whether to spawn; admission is the Semaphore's job alone.
type Registry struct {
	mu      sync.RWMutex
	records map[int]ProcessRecord
}

// NewRegistry initializes an empty process index.
func NewRegistry() *Registry {
	return &Registry{records: make(map[int]ProcessRecord)}
}

// Register adds a record for pid with the current timestamp.
func (r *Registry) Register(pid int, command string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.records[pid] = ProcessRecord{
		PID:       pid,
		StartTime: time.Now(),
		Command:   command,
	}
}

// Unregister removes the record for pid. Safe on unknown pids.
func (r *Registry) Unregister(pid int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.records, pid)
}

// List returns a defensive snapshot of all current records.
func (r *Registry) List() []ProcessRecord {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]ProcessRecord, 0, len(r.records))
	for _, rec := range r.records {
		out = append(out, rec)
	}
	return out
}

// Count returns the number of live records.
func (r *Registry) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.records)
}
