package glass

import (
	"sync"
	"time"
)

// PointerSampler coalesces pointer events between frames. Any number of
// Move/Leave calls may arrive between two Sample calls; Sample sees only the
// latest one. Event producers may run on other goroutines.
type PointerSampler struct {
	mu        sync.Mutex
	latest    Pointer
	pending   bool
	received  int
	coalesced int
}

// Move records a pointer position in device pixels.
func (s *PointerSampler) Move(x, y float64) {
	s.push(Pointer{X: x, Y: y, Valid: true})
}

// Leave records that the pointer is no longer present.
func (s *PointerSampler) Leave() {
	s.push(Pointer{})
}

func (s *PointerSampler) push(p Pointer) {
	s.mu.Lock()
	if s.pending {
		s.coalesced++
	}
	s.latest = p
	s.pending = true
	s.received++
	s.mu.Unlock()
}

// Sample returns the latest pointer and whether it changed since the
// previous Sample. Call once per frame.
func (s *PointerSampler) Sample() (Pointer, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	changed := s.pending
	s.pending = false
	return s.latest, changed
}

// Stats returns the number of events received and the number dropped
// because a newer event replaced them before a Sample.
func (s *PointerSampler) Stats() (received, coalesced int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.received, s.coalesced
}

// DefaultResizeWindow coalesces resize bursts shorter than one 60 Hz frame.
const DefaultResizeWindow = 16 * time.Millisecond

// ResizeDebouncer delays field regeneration until a panel has stopped
// resizing for Window. It is polled from the frame loop; no timers or
// goroutines are involved.
type ResizeDebouncer struct {
	Window time.Duration

	width, height int
	deadline      time.Time
	pending       bool
}

// NewResizeDebouncer creates a debouncer. A non-positive window uses
// DefaultResizeWindow.
func NewResizeDebouncer(window time.Duration) *ResizeDebouncer {
	if window <= 0 {
		window = DefaultResizeWindow
	}
	return &ResizeDebouncer{Window: window}
}

// Request records a new size observed at now and restarts the window.
func (d *ResizeDebouncer) Request(now time.Time, width, height int) {
	d.width, d.height = width, height
	d.deadline = now.Add(d.Window)
	d.pending = true
}

// Poll returns the settled size once the window has elapsed since the last
// Request. ok is false while a burst is still in progress or nothing is
// pending.
func (d *ResizeDebouncer) Poll(now time.Time) (width, height int, ok bool) {
	if !d.pending || now.Before(d.deadline) {
		return 0, 0, false
	}
	d.pending = false
	return d.width, d.height, true
}

// Pending reports whether a size is waiting for its window to elapse.
func (d *ResizeDebouncer) Pending() bool {
	return d.pending
}
