// Package reconnect implements the visible retry countdown. A countdown
// ticks once per second so the overlay can show "reconnecting in Ns", and
// fires exactly one expiry callback when it reaches zero. At most one
// countdown is live per viewport; starting a new one replaces the old one
// atomically, and retries are unbounded.
package reconnect

import (
	"sync"
	"time"

	"nvr-kiosk/work/timers"
)

// Kind distinguishes why the countdown is running; it selects overlay color
// and wording, and the metric label.
type Kind int

const (
	KindNetwork Kind = iota // Recorder unreachable, waiting to re-probe
	KindStream              // Single stream died, waiting to restart it
)

// String returns the kind name for logs and metric labels.
func (k Kind) String() string {
	if k == KindStream {
		return "stream"
	}
	return "network"
}

// Countdown is one viewport's retry timer. The tick and expiry callbacks run
// on the timer goroutine; callers route side effects through the dispatcher.
type Countdown struct {
	slot     *timers.Slot
	onTick   func(kind Kind, remaining int)
	onExpire func(kind Kind)

	mu        sync.Mutex
	gen       int // invalidates stale tick chains after Start/Cancel
	kind      Kind
	remaining int
	active    bool
}

// NewCountdown creates a countdown. onTick fires immediately on Start and
// then once per second; onExpire fires once when the countdown hits zero.
func NewCountdown(sched *timers.Scheduler, onTick func(Kind, int), onExpire func(Kind)) *Countdown {
	if onTick == nil {
		onTick = func(Kind, int) {}
	}
	if onExpire == nil {
		onExpire = func(Kind) {}
	}
	return &Countdown{
		slot:     timers.NewSlot(sched),
		onTick:   onTick,
		onExpire: onExpire,
	}
}

// Start begins a countdown of the given length, replacing any countdown
// already running. The first tick is emitted synchronously so the overlay
// updates without waiting a second.
func (c *Countdown) Start(kind Kind, seconds int) {
	if seconds < 1 {
		seconds = 1
	}

	c.mu.Lock()
	c.gen++
	gen := c.gen
	c.kind = kind
	c.remaining = seconds
	c.active = true
	c.slot.Replace(time.Second, func() { c.tick(gen) })
	c.mu.Unlock()

	c.onTick(kind, seconds)
}

// Cancel stops the countdown without firing expiry.
func (c *Countdown) Cancel() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.gen++
	c.active = false
	c.slot.Cancel()
}

// Pending reports whether a countdown is currently running.
func (c *Countdown) Pending() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.active
}

// Remaining returns the current kind and seconds left. ok is false when no
// countdown is running.
func (c *Countdown) Remaining() (kind Kind, seconds int, ok bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.kind, c.remaining, c.active
}

func (c *Countdown) tick(gen int) {
	c.mu.Lock()
	if gen != c.gen {
		c.mu.Unlock()
		return
	}
	c.remaining--
	kind, remaining := c.kind, c.remaining
	if remaining > 0 {
		c.slot.Replace(time.Second, func() { c.tick(gen) })
	} else {
		c.active = false
	}
	c.mu.Unlock()

	if remaining > 0 {
		c.onTick(kind, remaining)
		return
	}
	c.onExpire(kind)
}
