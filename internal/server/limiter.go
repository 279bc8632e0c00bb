package server

import "sync/atomic"

// ConnectionLimiter caps the number of live client connections. The POP3
// and SMTP listeners share one limiter, so the cap applies to the
// process as a whole rather than per port.
type ConnectionLimiter struct {
	limit   int64
	current atomic.Int64
}

// NewConnectionLimiter creates a limiter allowing at most limit
// concurrent connections.
func NewConnectionLimiter(limit int) *ConnectionLimiter {
	return &ConnectionLimiter{limit: int64(limit)}
}

// TryAcquire claims a connection slot, reporting false when the limiter
// is at capacity and the connection should be rejected.
func (l *ConnectionLimiter) TryAcquire() bool {
	for {
		n := l.current.Load()
		if n >= l.limit {
			return false
		}
		if l.current.CompareAndSwap(n, n+1) {
			return true
		}
	}
}

// Release returns a slot claimed by TryAcquire.
func (l *ConnectionLimiter) Release() {
	l.current.Add(-1)
}

// Current returns the number of live connections.
func (l *ConnectionLimiter) Current() int64 {
	return l.current.Load()
}
