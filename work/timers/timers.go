// Package timers provides cancellable one-shot timers with a
// single-pending-timer discipline. Every delayed action in the kiosk
// (reconnect countdowns, tour rotation) goes through a Slot so that at most
// one timer per owner is ever live, and replacing a timer is atomic with
// cancelling its predecessor.
package timers

import (
	"sync"
	"sync/atomic"
	"time"

	"github.com/benbjohnson/clock"
)

// Scheduler creates timers on a clock. Production code uses the real clock;
// tests inject clock.NewMock() and drive time explicitly.
type Scheduler struct {
	clk clock.Clock
}

// New creates a Scheduler. A nil clock means the wall clock.
func New(clk clock.Clock) *Scheduler {
	if clk == nil {
		clk = clock.New()
	}
	return &Scheduler{clk: clk}
}

// Clock returns the underlying clock, for callers that need Now/After.
func (s *Scheduler) Clock() clock.Clock {
	return s.clk
}

// Handle is one scheduled callback. Cancel wins any race with firing: a
// callback observed as cancelled never runs.
type Handle struct {
	timer     *clock.Timer
	cancelled atomic.Bool
}

// Schedule runs fn once after d. The returned handle stays valid after the
// callback runs; cancelling a fired handle is a no-op.
func (s *Scheduler) Schedule(d time.Duration, fn func()) *Handle {
	h := &Handle{}
	h.timer = s.clk.AfterFunc(d, func() {
		if h.cancelled.Load() {
			return
		}
		fn()
	})
	return h
}

// Cancel stops the timer. The flag is set before the stop so a callback
// already dequeued by the runtime still sees the cancellation.
func (h *Handle) Cancel() {
	if h == nil {
		return
	}
	h.cancelled.Store(true)
	h.timer.Stop()
}

// Slot owns at most one pending timer. Replace cancels whatever was pending
// and installs the new timer in the same critical section, so two callers
// racing on the same slot can never leave two timers live.
type Slot struct {
	mu      sync.Mutex
	sched   *Scheduler
	pending *Handle
}

// NewSlot creates a Slot backed by the scheduler.
func NewSlot(sched *Scheduler) *Slot {
	return &Slot{sched: sched}
}

// Replace cancels any pending timer and schedules fn after d. When the timer
// fires, the slot is cleared before fn runs, so fn may call Replace again to
// chain (countdown ticks do exactly that).
func (s *Slot) Replace(d time.Duration, fn func()) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.pending != nil {
		s.pending.Cancel()
	}

	var h *Handle
	h = s.sched.Schedule(d, func() {
		s.mu.Lock()
		if s.pending != h {
			// Superseded between fire and lock acquisition.
			s.mu.Unlock()
			return
		}
		s.pending = nil
		s.mu.Unlock()
		fn()
	})
	s.pending = h
}

// Cancel stops the pending timer, if any.
func (s *Slot) Cancel() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.pending != nil {
		s.pending.Cancel()
		s.pending = nil
	}
}

// Pending reports whether a timer is currently live on the slot.
func (s *Slot) Pending() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.pending != nil
}
