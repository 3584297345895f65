// Package support holds the cross-cutting concurrency primitives shared by
// Fetcher and Validator: a bounded-concurrency semaphore and a generic
// channel-backed lazy iterator adapter.
package support

import "context"

// Semaphore is a counting semaphore bounding in-flight work. Permit
// acquisition precedes any network activity for a unit of work, per spec §5;
// it is the sole admission-control mechanism (no per-host throttling).
type Semaphore struct {
	slots chan struct{}
}

// NewSemaphore builds a Semaphore with n permits. n <= 0 is treated as 1 to
// avoid a permanently-blocked pipeline.
func NewSemaphore(n int) *Semaphore {
	if n <= 0 {
		n = 1
	}
	return &Semaphore{slots: make(chan struct{}, n)}
}

// Acquire blocks until a permit is available or ctx is done.
func (s *Semaphore) Acquire(ctx context.Context) error {
	select {
	case s.slots <- struct{}{}:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Release returns a permit to the pool.
func (s *Semaphore) Release() {
	<-s.slots
}
