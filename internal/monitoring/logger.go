// Package monitoring holds the diagnostic logger shared by the library
// packages. Binaries log with the standard log package directly.
package monitoring

import (
	"log"
	"sync"
	"time"
)

// Logf is the package-level diagnostic logger. It defaults to log.Printf but may
// be replaced by SetLogger. Tests or production code can redirect or mute it.
var Logf func(format string, v ...interface{}) = log.Printf

// SetLogger replaces the package logger. Passing nil will set a no-op logger.
func SetLogger(f func(format string, v ...interface{})) {
	if f == nil {
		Logf = func(string, ...interface{}) {}
		return
	}
	Logf = f
}

// Throttle emits at most one message per interval through Logf and
// reports how many were suppressed in between. It is safe for concurrent
// use. Per-frame paths use it so a persistent fault does not flood logs.
type Throttle struct {
	Interval time.Duration

	mu         sync.Mutex
	last       time.Time
	suppressed int
	now        func() time.Time
}

// NewThrottle returns a Throttle with the given interval.
func NewThrottle(interval time.Duration) *Throttle {
	return &Throttle{Interval: interval}
}

// Logf logs when the interval has elapsed since the last emitted message,
// otherwise counts the message as suppressed. It reports whether the
// message was emitted.
func (t *Throttle) Logf(format string, v ...interface{}) bool {
	t.mu.Lock()
	now := time.Now
	if t.now != nil {
		now = t.now
	}
	ts := now()
	if !t.last.IsZero() && ts.Sub(t.last) < t.Interval {
		t.suppressed++
		t.mu.Unlock()
		return false
	}
	skipped := t.suppressed
	t.last = ts
	t.suppressed = 0
	t.mu.Unlock()

	if skipped > 0 {
		Logf(format+" (%d similar suppressed)", append(v, skipped)...)
	} else {
		Logf(format, v...)
	}
	return true
}
