// Package sync provides synchronization primitives that work without the
// Go scheduler.
package sync

import "sync/atomic"

// spinAttemptsBeforeYield bounds the busy-wait between calls to yieldFn.
const spinAttemptsBeforeYield = 64

var (
	// yieldFn is invoked after a batch of failed acquisition attempts. It is
	// nil while the kernel has no scheduler to yield to.
	yieldFn func()
)

// Spinlock implements a lock where each task trying to acquire it busy-waits
// till the lock becomes available. The zero value is an unlocked lock.
type Spinlock struct {
	state atomic.Uint32
}

// Acquire blocks until the lock can be acquired by the currently active task.
// Any attempt to re-acquire a lock already held by the current task will cause
// a deadlock.
func (l *Spinlock) Acquire() {
	for attempts := 1; !l.state.CompareAndSwap(0, 1); attempts++ {
		if attempts%spinAttemptsBeforeYield == 0 && yieldFn != nil {
			yieldFn()
		}
	}
}

// TryToAcquire attempts to acquire the lock and returns true if the lock could
// be acquired or false otherwise.
func (l *Spinlock) TryToAcquire() bool {
	return l.state.CompareAndSwap(0, 1)
}

// Release relinquishes a held lock allowing other tasks to acquire it. Calling
// Release while the lock is free has no effect.
func (l *Spinlock) Release() {
	l.state.Store(0)
}
