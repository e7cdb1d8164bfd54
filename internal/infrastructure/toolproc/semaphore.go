package toolproc

import (
	"context"
	"sync"
)

// Semaphore is the admission gate for tool-invocation processes: a counting
// semaphore with a strict-FIFO wait queue and a readable status snapshot.
//
// Fairness model:
//   - Acquire grants immediately while capacity remains AND nobody is queued
//     (a late arrival must never overtake a parked waiter).
//   - Release hands the freed slot to the head waiter directly; the slot is
//     never returned to the free pool while the queue is non-empty, so grants
//     happen in arrival order.
//
// Calling Release without a matching Acquire is a protocol violation and
// panics. The held count can therefore never go negative.
type Semaphore struct {
	mu      sync.Mutex
	maxCap  int
	current int
	waiters []chan struct{} // FIFO; closed channel = slot granted
}

// SemaphoreStatus is a point-in-time view of the gate.
type SemaphoreStatus struct {
	Current       int `json:"current"`
	Queued        int `json:"queued"`
	MaxConcurrent int `json:"maxConcurrent"`
}

// NewSemaphore initializes the gate with a fixed capacity.
// Non-positive capacities are clamped to 1; a zero-width gate would park
// every caller forever.
func NewSemaphore(maxConcurrent int) *Semaphore {
	if maxConcurrent < 1 {
		maxConcurrent = 1
	}
	return &Semaphore{maxCap: maxConcurrent}
}

// Acquire blocks until a slot is held or ctx is done.
//
// There is no timeout on queueing itself; callers bound the whole attempt,
// not the wait. On ctx cancellation a parked waiter is unlinked without
// disturbing the order of the others; if the grant raced the cancellation,
// the already-transferred slot is returned before reporting the error.
func (s *Semaphore) Acquire(ctx context.Context) error {
	s.mu.Lock()
	if s.current < s.maxCap && len(s.waiters) == 0 {
		s.current++
		s.mu.Unlock()
		return nil
	}

	ready := make(chan struct{})
	s.waiters = append(s.waiters, ready)
	s.mu.Unlock()

	select {
	case <-ready:
		return nil

	case <-ctx.Done():
		s.mu.Lock()
		for i, w := range s.waiters {
			if w == ready {
				s.waiters = append(s.waiters[:i], s.waiters[i+1:]...)
				s.mu.Unlock()
				return ctx.Err()
			}
		}
		s.mu.Unlock()
		// Not queued anymore: Release granted us the slot concurrently.
		// Hand it back so the count stays accurate.
		<-ready
		s.Release()
		return ctx.Err()
	}
}

// Release frees the caller's slot. If anyone is queued, the slot transfers
// directly to the head waiter (the held count is unchanged); otherwise the
// count drops.
func (s *Semaphore) Release() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.current <= 0 {
		panic("toolproc: Semaphore.Release without matching Acquire")
	}

	if len(s.waiters) > 0 {
		ready := s.waiters[0]
		s.waiters = s.waiters[1:]
		close(ready) // slot ownership transfers; current unchanged
		return
	}

	s.current--
}

// Status returns a snapshot of the gate. Pure read; safe to call
// concurrently with Acquire/Release.
func (s *Semaphore) Status() SemaphoreStatus {
	s.mu.Lock()
	defer s.mu.Unlock()
	return SemaphoreStatus{
		Current:       s.current,
		Queued:        len(s.waiters),
		MaxConcurrent: s.maxCap,
	}
}
