// Package dispatch owns the single presentation loop. Background goroutines
// (watchdog, countdowns, tour rotation) never touch the engine or the UI
// directly; they enqueue closures here and one consumer goroutine runs them
// in FIFO order. That single-writer discipline is what keeps engine handles
// and overlay state race-free without fine-grained locks.
package dispatch

import (
	"sync"
	"sync/atomic"

	"nvr-kiosk/work/logger"
	"nvr-kiosk/work/metrics"
)

// OverlayUpdate is one status banner instruction for the UI layer.
type OverlayUpdate struct {
	Text    string `json:"text"`
	Subtext string `json:"subtext"`
	Color   string `json:"color"` // "red" for outages, "yellow" for stream retries
	Visible bool   `json:"visible"`
}

// SlotUpdate is one grid-cell render instruction.
type SlotUpdate struct {
	Slot         int    `json:"slot"`
	CameraID     int    `json:"cameraId"`
	IsFiller     bool   `json:"isFiller"`
	DisplayState string `json:"displayState"`
}

// Loop is the presentation loop: a bounded FIFO queue drained by exactly one
// goroutine.
type Loop struct {
	queue    chan func()
	stopChan chan struct{}
	running  atomic.Bool
	done     chan struct{}

	mu           sync.RWMutex
	overlaySinks []func(OverlayUpdate)
	slotSinks    []func(SlotUpdate)
}

// NewLoop creates a loop with the given queue depth.
func NewLoop(depth int) *Loop {
	if depth <= 0 {
		depth = 256
	}
	return &Loop{
		queue:    make(chan func(), depth),
		stopChan: make(chan struct{}),
		done:     make(chan struct{}),
	}
}

// Start launches the consumer goroutine. Safe to call once.
func (l *Loop) Start() {
	if !l.running.CompareAndSwap(false, true) {
		return
	}
	go l.run()
}

// Stop shuts the consumer down. Queued work that has not run yet is dropped.
func (l *Loop) Stop() {
	if !l.running.CompareAndSwap(true, false) {
		return
	}
	close(l.stopChan)
	<-l.done
}

func (l *Loop) run() {
	defer close(l.done)
	for {
		select {
		case fn := <-l.queue:
			fn()
		case <-l.stopChan:
			return
		}
	}
}

// Dispatch enqueues fn without blocking. A full queue drops the update and
// reports it; health cycles must never stall behind a slow renderer.
func (l *Loop) Dispatch(fn func()) bool {
	select {
	case l.queue <- fn:
		return true
	default:
		metrics.DispatchDropped.Inc()
		logger.Warn("Presentation queue full, dropping update")
		return false
	}
}

// Call enqueues fn and waits for it to finish on the loop. Used where
// ordering guarantees require the work to be complete before the caller
// proceeds (stopping a slot's playback before reassigning it). Must not be
// called from the loop goroutine itself.
func (l *Loop) Call(fn func()) {
	done := make(chan struct{})
	if !l.Dispatch(func() {
		defer close(done)
		fn()
	}) {
		return
	}
	select {
	case <-done:
	case <-l.stopChan:
	}
}

// OnOverlay registers a sink for overlay updates. Sinks run on the loop.
func (l *Loop) OnOverlay(fn func(OverlayUpdate)) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.overlaySinks = append(l.overlaySinks, fn)
}

// OnSlot registers a sink for slot render updates. Sinks run on the loop.
func (l *Loop) OnSlot(fn func(SlotUpdate)) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.slotSinks = append(l.slotSinks, fn)
}

// PublishOverlay fans an overlay update out to every registered sink, in
// FIFO order with everything else on the loop.
func (l *Loop) PublishOverlay(u OverlayUpdate) {
	l.Dispatch(func() {
		l.mu.RLock()
		sinks := l.overlaySinks
		l.mu.RUnlock()
		for _, s := range sinks {
			s(u)
		}
	})
}

// PublishSlot fans a slot update out to every registered sink.
func (l *Loop) PublishSlot(u SlotUpdate) {
	l.Dispatch(func() {
		l.mu.RLock()
		sinks := l.slotSinks
		l.mu.RUnlock()
		for _, s := range sinks {
			s(u)
		}
	})
}
