package health

import (
	"testing"
	"time"

	"github.com/benbjohnson/clock"

	"nvr-kiosk/work/engine"
)

func newTestMonitor() (*Monitor, *clock.Mock) {
	mock := clock.NewMock()
	return NewMonitor(mock, 2*time.Second), mock
}

func TestNetworkLossFiresOnce(t *testing.T) {
	m, _ := newTestMonitor()

	if got := m.Evaluate(false, engine.StateUnknown); got != ActionNetworkLost {
		t.Fatalf("first down observation: got %v, want ActionNetworkLost", got)
	}
	if got := m.Evaluate(false, engine.StateUnknown); got != ActionNone {
		t.Fatalf("repeat down observation: got %v, want ActionNone", got)
	}
	if m.State() != NetworkDown {
		t.Fatalf("state = %v, want NetworkDown", m.State())
	}
}

func TestNetworkRecoveryResetsRetriesAndSettles(t *testing.T) {
	m, mock := newTestMonitor()

	m.Evaluate(false, engine.StateUnknown)
	m.RecordRetry()
	m.RecordRetry()

	if got := m.Evaluate(true, engine.StateStopped); got != ActionRecovered {
		t.Fatalf("recovery: got %v, want ActionRecovered", got)
	}
	if m.Retries() != 0 {
		t.Fatalf("retries = %d after recovery, want 0", m.Retries())
	}

	// Engine reports garbage during the settle window; it must be ignored.
	if got := m.Evaluate(true, engine.StateError); got != ActionNone {
		t.Fatalf("during settle: got %v, want ActionNone", got)
	}

	mock.Add(2 * time.Second)
	if got := m.Evaluate(true, engine.StateError); got != ActionStreamFailed {
		t.Fatalf("after settle: got %v, want ActionStreamFailed", got)
	}
}

func TestPlayingResetsRetries(t *testing.T) {
	m, _ := newTestMonitor()

	m.Evaluate(true, engine.StateError)
	m.RecordRetry()
	m.RecordRetry()
	m.RecordRetry()

	if got := m.Evaluate(true, engine.StatePlaying); got != ActionHealthy {
		t.Fatalf("playing: got %v, want ActionHealthy", got)
	}
	if m.Retries() != 0 {
		t.Fatalf("retries = %d after playing, want 0", m.Retries())
	}
	if got := m.Evaluate(true, engine.StatePlaying); got != ActionNone {
		t.Fatalf("repeat playing: got %v, want ActionNone", got)
	}
}

func TestStreamFailureFiresOnce(t *testing.T) {
	m, _ := newTestMonitor()

	if got := m.Evaluate(true, engine.StateError); got != ActionStreamFailed {
		t.Fatalf("first failure: got %v, want ActionStreamFailed", got)
	}
	if got := m.Evaluate(true, engine.StateError); got != ActionNone {
		t.Fatalf("repeat failure: got %v, want ActionNone", got)
	}
	if m.State() != StreamFailed {
		t.Fatalf("state = %v, want StreamFailed", m.State())
	}
}

func TestEndedAndStoppedCountAsFailures(t *testing.T) {
	for _, es := range []engine.State{engine.StateEnded, engine.StateStopped} {
		m, _ := newTestMonitor()
		if got := m.Evaluate(true, es); got != ActionStreamFailed {
			t.Fatalf("engine %v: got %v, want ActionStreamFailed", es, got)
		}
	}
}

func TestRestartReclassifiesNextFailure(t *testing.T) {
	m, _ := newTestMonitor()

	m.Evaluate(true, engine.StateError)
	m.NoteRestart()

	if m.State() != Connecting {
		t.Fatalf("state after restart = %v, want Connecting", m.State())
	}
	if got := m.Evaluate(true, engine.StateError); got != ActionStreamFailed {
		t.Fatalf("failure after restart: got %v, want ActionStreamFailed", got)
	}
}

func TestConnectingIsQuiet(t *testing.T) {
	m, _ := newTestMonitor()

	if got := m.Evaluate(true, engine.StateConnecting); got != ActionNone {
		t.Fatalf("connecting: got %v, want ActionNone", got)
	}
	if got := m.Evaluate(true, engine.StateUnknown); got != ActionNone {
		t.Fatalf("unknown: got %v, want ActionNone", got)
	}
	if m.State() != Connecting {
		t.Fatalf("state = %v, want Connecting", m.State())
	}
}

func TestNetworkWinsOverEngineState(t *testing.T) {
	m, _ := newTestMonitor()

	m.Evaluate(true, engine.StatePlaying)
	if got := m.Evaluate(false, engine.StatePlaying); got != ActionNetworkLost {
		t.Fatalf("down while playing: got %v, want ActionNetworkLost", got)
	}
}
