// Package health holds the per-viewport stream health state machine. It is
// pure decision logic: the watchdog feeds it one observation per cycle
// (network reachability plus the engine's playback state) and acts on the
// returned verdict. Nothing in here touches timers, the engine, or the UI.
package health

import (
	"sync"
	"time"

	"github.com/benbjohnson/clock"

	"nvr-kiosk/work/engine"
)

// StreamState is the health classification of one viewport.
type StreamState int

const (
	Unknown      StreamState = iota // No observation yet
	Connecting                      // Playback starting or state not yet determinable
	Playing                         // Stream healthy and rendering
	StreamFailed                    // Network fine, this stream died
	NetworkDown                     // Recorder unreachable
)

// String returns the state name for logs and API responses.
func (s StreamState) String() string {
	switch s {
	case Connecting:
		return "connecting"
	case Playing:
		return "playing"
	case StreamFailed:
		return "stream_failed"
	case NetworkDown:
		return "network_down"
	default:
		return "unknown"
	}
}

// Action tells the watchdog what to do after an evaluation.
type Action int

const (
	ActionNone         Action = iota // Nothing to do this cycle
	ActionHealthy                    // Stream just became healthy: clear overlays, cancel countdowns
	ActionRecovered                  // Network just came back: restart playback, settle window opens
	ActionNetworkLost                // Recorder just became unreachable: stop playback, show outage overlay
	ActionStreamFailed               // Stream just died: show retry overlay, start countdown
)

// Monitor tracks health for a single viewport. Evaluate transitions happen
// at most once per observation; repeated observations of the same condition
// return ActionNone so the watchdog never re-fires side effects.
type Monitor struct {
	clk    clock.Clock
	settle time.Duration

	mu          sync.Mutex
	state       StreamState
	retries     int
	settleUntil time.Time
}

// NewMonitor creates a monitor. settle is the grace period after a
// network-recovery restart during which engine state is not trusted; a
// freshly restarted player reports transient garbage while it spins up.
func NewMonitor(clk clock.Clock, settle time.Duration) *Monitor {
	if clk == nil {
		clk = clock.New()
	}
	return &Monitor{clk: clk, settle: settle, state: Unknown}
}

// Evaluate folds one observation into the state machine and returns the
// action the watchdog should take. Network reachability always wins over
// engine state: an unreachable recorder means NetworkDown regardless of
// what the player claims.
func (m *Monitor) Evaluate(networkUp bool, es engine.State) Action {
	m.mu.Lock()
	defer m.mu.Unlock()

	if !networkUp {
		if m.state == NetworkDown {
			return ActionNone
		}
		m.state = NetworkDown
		return ActionNetworkLost
	}

	if m.state == NetworkDown {
		// Recorder is back. Retry accounting starts over and the engine
		// gets a settle window before its state counts again.
		m.state = Connecting
		m.retries = 0
		m.settleUntil = m.clk.Now().Add(m.settle)
		return ActionRecovered
	}

	if m.clk.Now().Before(m.settleUntil) {
		return ActionNone
	}

	switch es {
	case engine.StatePlaying:
		if m.state == Playing {
			return ActionNone
		}
		m.state = Playing
		m.retries = 0
		return ActionHealthy

	case engine.StateError, engine.StateEnded, engine.StateStopped:
		if m.state == StreamFailed {
			return ActionNone
		}
		m.state = StreamFailed
		return ActionStreamFailed

	default:
		// Connecting or unknown: still coming up, keep waiting.
		m.state = Connecting
		return ActionNone
	}
}

// NoteRestart records a playback restart made outside Evaluate's own
// transitions (retry expiry, manual restart, page rotation). The viewport
// goes back to connecting so the next engine failure classifies as a fresh
// stream failure instead of a repeat of the old one.
func (m *Monitor) NoteRestart() {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.state != NetworkDown {
		m.state = Connecting
	}
}

// RecordRetry counts one reconnect attempt. Called when a retry countdown
// expires and the restart is dispatched. Retries are unbounded; the count
// only feeds overlays and metrics.
func (m *Monitor) RecordRetry() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.retries++
	return m.retries
}

// State returns the current health classification.
func (m *Monitor) State() StreamState {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state
}

// Retries returns the reconnect attempts since the last healthy period.
func (m *Monitor) Retries() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.retries
}
