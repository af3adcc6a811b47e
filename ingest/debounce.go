package ingest

import (
	"sync"
	"time"
)

// DefaultDebounceWindow is how long a repeated read of the same code counts as
// the same physical scan.
const DefaultDebounceWindow = 2 * time.Second

// Event is one code delivered by a decoder.
type Event struct {
	Code       string
	DetectedAt time.Time
}

// Debouncer drops repeated deliveries of a code within its window.
// A suppressed delivery does not extend the window.
type Debouncer struct {
	mu     sync.Mutex
	window time.Duration
	last   map[string]time.Time
}

func NewDebouncer(window time.Duration) *Debouncer {
	if window <= 0 {
		window = DefaultDebounceWindow
	}
	return &Debouncer{window: window, last: make(map[string]time.Time)}
}

// Allow reports whether ev should be treated as a new physical scan. A read
// stamped before the previous one is outside the window.
func (d *Debouncer) Allow(ev Event) bool {
	d.mu.Lock()
	defer d.mu.Unlock()

	for code, at := range d.last {
		if ev.DetectedAt.Sub(at) > d.window {
			delete(d.last, code)
		}
	}

	if prev, ok := d.last[ev.Code]; ok {
		if delta := ev.DetectedAt.Sub(prev); delta >= 0 && delta <= d.window {
			return false
		}
	}
	d.last[ev.Code] = ev.DetectedAt
	return true
}

// Forget drops the window for code, so that a read whose submission failed
// can be retried at once.
func (d *Debouncer) Forget(code string) {
	d.mu.Lock()
	defer d.mu.Unlock()
	delete(d.last, code)
}
