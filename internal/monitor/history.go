// Package monitor serves a debug view of a running tracking session: a
// chart of recent raw and fused positions and a JSON status endpoint.
package monitor

import (
	"sync"

	"github.com/banshee-data/markertrack/internal/tracking"
)

// DefaultHistorySize holds ten seconds at 30 fps.
const DefaultHistorySize = 300

// Sample is one frame as kept in History.
type Sample struct {
	Timestamp float64     `json:"timestamp"`
	Success   bool        `json:"success"`
	Markers   []int       `json:"markers,omitempty"`
	Raw       *[3]float64 `json:"raw,omitempty"`
	Fused     [3]float64  `json:"fused"`
}

// History is a fixed-size ring of recent frames. It is safe for
// concurrent use; Observe is meant to be installed as tracking.Loop's
// Observer.
type History struct {
	mu    sync.RWMutex
	buf   []Sample
	next  int
	full  bool
	total uint64
}

// NewHistory returns a History holding up to size samples.
func NewHistory(size int) *History {
	if size <= 0 {
		size = DefaultHistorySize
	}
	return &History{buf: make([]Sample, size)}
}

// Observe records a frame result.
func (h *History) Observe(r tracking.FrameResult) {
	t := r.Fused.Translation()
	s := Sample{
		Timestamp: r.Timestamp,
		Success:   r.Success,
		Markers:   append([]int(nil), r.Markers...),
		Fused:     [3]float64{t.X, t.Y, t.Z},
	}
	if r.Raw != nil {
		rt := r.Raw.Translation()
		s.Raw = &[3]float64{rt.X, rt.Y, rt.Z}
	}

	h.mu.Lock()
	h.buf[h.next] = s
	h.next = (h.next + 1) % len(h.buf)
	if h.next == 0 {
		h.full = true
	}
	h.total++
	h.mu.Unlock()
}

// Snapshot returns the retained samples, oldest first.
func (h *History) Snapshot() []Sample {
	h.mu.RLock()
	defer h.mu.RUnlock()
	if !h.full {
		return append([]Sample(nil), h.buf[:h.next]...)
	}
	out := make([]Sample, 0, len(h.buf))
	out = append(out, h.buf[h.next:]...)
	return append(out, h.buf[:h.next]...)
}

// Latest returns the most recent sample.
func (h *History) Latest() (Sample, bool) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	if !h.full && h.next == 0 {
		return Sample{}, false
	}
	i := (h.next - 1 + len(h.buf)) % len(h.buf)
	return h.buf[i], true
}

// Total returns the number of frames ever observed.
func (h *History) Total() uint64 {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.total
}
