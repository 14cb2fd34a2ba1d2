package refresh

import "sync/atomic"

// refreshLock gives non-blocking single-flight semantics: a rebuild that
// finds the lock held reports busy instead of queueing.
type refreshLock struct {
	state atomic.Int32 // 0 = unlocked, 1 = locked
}

// TryAcquire attempts to take the lock without blocking and reports
// whether it succeeded.
func (l *refreshLock) TryAcquire() bool {
	return l.state.CompareAndSwap(0, 1)
}

// Release releases the lock. Only the holder may call it.
func (l *refreshLock) Release() {
	l.state.Store(0)
}
