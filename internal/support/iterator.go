package support

import (
	"sync"
	"sync/atomic"
)

// Iterator is a pull-style sequence backed by an MPMC channel fed by
// background producer goroutines (spec §9 "lazy cross-task iteration"). Next
// blocks until an item is available, the channel is drained with all
// producers finished, or the iterator has been closed.
type Iterator[T any] struct {
	ch       <-chan T
	finished *atomic.Bool
	closeFn  func()
	once     sync.Once
}

// NewIterator wraps ch (closed by the producer side once all producers have
// finished) into an Iterator. finished is a shared flag producers check on
// their next loop boundary to stop spawning new work; closeFn is invoked
// exactly once when the consumer calls Close, setting that flag and
// releasing any producer-side resources.
func NewIterator[T any](ch <-chan T, finished *atomic.Bool, closeFn func()) *Iterator[T] {
	return &Iterator[T]{ch: ch, finished: finished, closeFn: closeFn}
}

// Next returns the next item and true, or the zero value and false when the
// sequence is exhausted (channel closed and drained).
func (it *Iterator[T]) Next() (T, bool) {
	v, ok := <-it.ch
	return v, ok
}

// Close triggers cooperative shutdown: producers observe the shared
// "finished" flag on their next loop boundary and stop spawning new work;
// in-flight tasks are abandoned best-effort (spec §5 cancellation
// semantics). Safe to call multiple times or after exhaustion.
func (it *Iterator[T]) Close() {
	it.once.Do(func() {
		if it.finished != nil {
			it.finished.Store(true)
		}
		if it.closeFn != nil {
			it.closeFn()
		}
	})
}

// Drain consumes every remaining item and discards it, then closes. Useful
// in tests that only want the final count.
func (it *Iterator[T]) Drain() []T {
	var out []T
	for {
		v, ok := it.Next()
		if !ok {
			break
		}
		out = append(out, v)
	}
	it.Close()
	return out
}
