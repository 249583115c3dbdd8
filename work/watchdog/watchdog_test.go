package watchdog

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/benbjohnson/clock"

	"nvr-kiosk/work/config"
	"nvr-kiosk/work/dispatch"
	"nvr-kiosk/work/engine"
	"nvr-kiosk/work/prober"
	"nvr-kiosk/work/timers"
)

type fakeProber struct {
	mu sync.Mutex
	up map[string]bool
}

func (f *fakeProber) Probe(_ context.Context, addr string) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.up[addr]
}

func (f *fakeProber) set(addr string, ok bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.up[addr] = ok
}

type fakeTarget struct {
	mu       sync.Mutex
	id       string
	addr     string
	enabled  bool
	state    engine.State
	restarts int
	stops    int
}

func (f *fakeTarget) ID() string       { return f.id }
func (f *fakeTarget) Endpoint() string { return f.addr }

func (f *fakeTarget) Enabled() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.enabled
}

func (f *fakeTarget) EngineState() engine.State {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.state
}

func (f *fakeTarget) Restart() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.restarts++
	f.state = engine.StateConnecting
}

func (f *fakeTarget) StopPlayback() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.stops++
	f.state = engine.StateStopped
}

func (f *fakeTarget) setState(s engine.State) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.state = s
}

func (f *fakeTarget) counts() (restarts, stops int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.restarts, f.stops
}

const testAddr = "10.0.0.5:554"

func newTestManager(t *testing.T) (*Manager, *fakeTarget, *fakeProber, *clock.Mock, *dispatch.Loop) {
	t.Helper()
	cfg := &config.Config{
		PingInterval:     5 * time.Second,
		SettleDelay:      2 * time.Second,
		StreamRetryDelay: 5 * time.Second,
	}

	mock := clock.NewMock()
	sched := timers.New(mock)

	loop := dispatch.NewLoop(64)
	loop.Start()
	t.Cleanup(loop.Stop)

	fp := &fakeProber{up: map[string]bool{testAddr: true}}
	pool, err := prober.NewPool(fp, 2)
	if err != nil {
		t.Fatalf("probe pool: %v", err)
	}
	t.Cleanup(pool.Release)

	m := NewManager(cfg, pool, loop, sched)
	tgt := &fakeTarget{id: "slot-0", addr: testAddr, enabled: true, state: engine.StatePlaying}
	m.Register(tgt)
	return m, tgt, fp, mock, loop
}

// flush waits for everything the watchdog dispatched to run.
func flush(loop *dispatch.Loop) {
	loop.Call(func() {})
}

func snapshotOf(t *testing.T, m *Manager, id string) ViewportStatus {
	t.Helper()
	for _, vs := range m.Snapshot() {
		if vs.ID == id {
			return vs
		}
	}
	t.Fatalf("no snapshot for %s", id)
	return ViewportStatus{}
}

func TestNetworkOutageAndRecovery(t *testing.T) {
	m, tgt, fp, mock, loop := newTestManager(t)
	ctx := context.Background()

	m.runCycle(ctx)
	flush(loop)
	if vs := snapshotOf(t, m, "slot-0"); vs.State != "playing" {
		t.Fatalf("healthy cycle: state = %s, want playing", vs.State)
	}

	// Recorder drops: playback stops once, one countdown starts.
	fp.set(testAddr, false)
	m.runCycle(ctx)
	flush(loop)
	if _, stops := tgt.counts(); stops != 1 {
		t.Fatalf("stops = %d, want 1", stops)
	}
	vs := snapshotOf(t, m, "slot-0")
	if vs.State != "network_down" || vs.CountdownKind != "network" {
		t.Fatalf("outage snapshot = %+v", vs)
	}

	// The outage persisting must not stack stops or countdowns.
	m.runCycle(ctx)
	flush(loop)
	if _, stops := tgt.counts(); stops != 1 {
		t.Fatalf("repeat outage cycle stopped again: %d stops", stops)
	}

	// Countdown expiry while still down: retry recorded, countdown re-arms.
	mock.Add(5 * time.Second)
	vs = snapshotOf(t, m, "slot-0")
	if vs.Retries != 1 {
		t.Fatalf("retries = %d after expiry, want 1", vs.Retries)
	}
	if vs.CountdownKind != "network" {
		t.Fatal("network countdown did not re-arm during outage")
	}

	// Recovery: exactly one restart, retries reset, countdown cancelled.
	fp.set(testAddr, true)
	m.runCycle(ctx)
	flush(loop)
	if restarts, _ := tgt.counts(); restarts != 1 {
		t.Fatalf("restarts = %d, want 1", restarts)
	}
	vs = snapshotOf(t, m, "slot-0")
	if vs.Retries != 0 {
		t.Fatalf("retries = %d after recovery, want 0", vs.Retries)
	}
	if vs.CountdownKind != "" {
		t.Fatal("countdown survived recovery")
	}

	// Engine noise inside the settle window is ignored.
	tgt.setState(engine.StateError)
	m.runCycle(ctx)
	flush(loop)
	if vs := snapshotOf(t, m, "slot-0"); vs.CountdownKind != "" {
		t.Fatal("settle window did not suppress engine failure")
	}

	mock.Add(2 * time.Second)
	tgt.setState(engine.StatePlaying)
	m.runCycle(ctx)
	flush(loop)
	if vs := snapshotOf(t, m, "slot-0"); vs.State != "playing" {
		t.Fatalf("state after settle = %s, want playing", vs.State)
	}
}

func TestStreamFailureRetryLoop(t *testing.T) {
	m, tgt, _, mock, loop := newTestManager(t)
	ctx := context.Background()

	tgt.setState(engine.StateError)
	m.runCycle(ctx)
	flush(loop)

	vs := snapshotOf(t, m, "slot-0")
	if vs.State != "stream_failed" || vs.CountdownKind != "stream" {
		t.Fatalf("failure snapshot = %+v", vs)
	}
	if restarts, _ := tgt.counts(); restarts != 0 {
		t.Fatal("restart before countdown expiry")
	}

	// Expiry restarts the stream and counts the attempt.
	mock.Add(5 * time.Second)
	flush(loop)
	if restarts, _ := tgt.counts(); restarts != 1 {
		t.Fatalf("restarts = %d after expiry, want 1", restarts)
	}
	if vs := snapshotOf(t, m, "slot-0"); vs.Retries != 1 {
		t.Fatalf("retries = %d, want 1", vs.Retries)
	}

	// Second failure, second retry. No backoff escalation.
	m.runCycle(ctx)
	flush(loop)
	tgt.setState(engine.StateError)
	m.runCycle(ctx)
	flush(loop)
	mock.Add(5 * time.Second)
	flush(loop)
	if restarts, _ := tgt.counts(); restarts != 2 {
		t.Fatalf("restarts = %d after second expiry, want 2", restarts)
	}
	if vs := snapshotOf(t, m, "slot-0"); vs.Retries != 2 {
		t.Fatalf("retries = %d, want 2", vs.Retries)
	}

	// Back to playing: retries reset.
	tgt.setState(engine.StatePlaying)
	m.runCycle(ctx)
	flush(loop)
	vs = snapshotOf(t, m, "slot-0")
	if vs.State != "playing" || vs.Retries != 0 {
		t.Fatalf("recovered snapshot = %+v", vs)
	}
}

func TestHealthyCancelsPendingCountdown(t *testing.T) {
	m, tgt, _, mock, loop := newTestManager(t)
	ctx := context.Background()

	tgt.setState(engine.StateError)
	m.runCycle(ctx)
	flush(loop)
	if vs := snapshotOf(t, m, "slot-0"); vs.CountdownKind != "stream" {
		t.Fatalf("setup: no stream countdown (%+v)", vs)
	}

	// Stream comes back on its own before the countdown expires.
	tgt.setState(engine.StatePlaying)
	m.runCycle(ctx)
	flush(loop)

	mock.Add(time.Minute)
	flush(loop)
	if restarts, _ := tgt.counts(); restarts != 0 {
		t.Fatalf("cancelled countdown still restarted: %d", restarts)
	}
}

func TestDisabledTargetIgnored(t *testing.T) {
	m, tgt, fp, _, loop := newTestManager(t)
	ctx := context.Background()

	tgt.mu.Lock()
	tgt.enabled = false
	tgt.mu.Unlock()

	fp.set(testAddr, false)
	m.runCycle(ctx)
	flush(loop)

	if _, stops := tgt.counts(); stops != 0 {
		t.Fatal("disabled target was acted on")
	}
	if vs := snapshotOf(t, m, "slot-0"); vs.CountdownKind != "" {
		t.Fatal("disabled target got a countdown")
	}
}

func TestUnregisterCancelsCountdown(t *testing.T) {
	m, tgt, _, mock, loop := newTestManager(t)
	ctx := context.Background()

	tgt.setState(engine.StateError)
	m.runCycle(ctx)
	flush(loop)

	m.Unregister("slot-0")
	mock.Add(time.Minute)
	flush(loop)

	if restarts, _ := tgt.counts(); restarts != 0 {
		t.Fatal("unregistered target restarted")
	}
}

func TestStartStopIdempotent(t *testing.T) {
	m, _, _, _, _ := newTestManager(t)

	m.Start()
	m.Start()
	if !m.Running() {
		t.Fatal("manager not running after Start")
	}
	m.Stop()
	m.Stop()
	if m.Running() {
		t.Fatal("manager still running after Stop")
	}
}
