// Package watchdog runs the connectivity and stream-health loop. Every ping
// interval it probes each distinct recorder endpoint once, feeds the verdict
// and the engine state into each viewport's health monitor, and acts on the
// result: cancel countdowns and hide overlays when a stream is healthy,
// stop playback and show the outage overlay when the recorder drops, start
// retry countdowns when a stream dies. All engine side effects go through
// the presentation loop; the watchdog goroutine itself never touches a
// playback handle.
package watchdog

import (
	"context"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/puzpuzpuz/xsync/v3"
	"go.uber.org/ratelimit"

	"nvr-kiosk/work/config"
	"nvr-kiosk/work/dispatch"
	"nvr-kiosk/work/engine"
	"nvr-kiosk/work/health"
	"nvr-kiosk/work/logger"
	"nvr-kiosk/work/metrics"
	"nvr-kiosk/work/prober"
	"nvr-kiosk/work/reconnect"
	"nvr-kiosk/work/timers"
)

// Target is one supervised viewport. The tour scheduler's slots implement
// this; tests use fakes.
type Target interface {
	// ID identifies the viewport in logs, metrics and the status API.
	ID() string
	// Endpoint is the host:port to probe. Empty means nothing to probe.
	Endpoint() string
	// Enabled reports whether the viewport currently has a stream to watch.
	Enabled() bool
	// EngineState is the playback state of the viewport's session.
	EngineState() engine.State
	// Restart tears playback down and starts it fresh. Runs on the
	// presentation loop.
	Restart()
	// StopPlayback stops and releases the session. Runs on the presentation
	// loop.
	StopPlayback()
}

// viewport bundles a target with its health monitor and retry countdown.
type viewport struct {
	target    Target
	monitor   *health.Monitor
	countdown *reconnect.Countdown
}

// Manager owns the watchdog loop and the supervised viewport registry.
type Manager struct {
	cfg    *config.Config
	probes *prober.Pool
	loop   *dispatch.Loop
	sched  *timers.Scheduler
	clk    clock.Clock

	// limiter paces playback restarts so a flapping recorder cannot spawn
	// player processes faster than the box can absorb.
	limiter ratelimit.Limiter

	viewports *xsync.MapOf[string, *viewport]

	running  atomic.Bool
	stopChan chan struct{}
	done     chan struct{}
}

// NewManager creates a watchdog. The scheduler supplies both the timers for
// countdowns and the clock for the loop, so tests drive everything from one
// mock clock.
func NewManager(cfg *config.Config, probes *prober.Pool, loop *dispatch.Loop, sched *timers.Scheduler) *Manager {
	return &Manager{
		cfg:       cfg,
		probes:    probes,
		loop:      loop,
		sched:     sched,
		clk:       sched.Clock(),
		limiter:   ratelimit.New(2), // restarts per second, across all slots
		viewports: xsync.NewMapOf[string, *viewport](),
	}
}

// Register places a target under supervision. Re-registering an ID replaces
// the old viewport and drops its pending countdown.
func (m *Manager) Register(t Target) {
	vp := &viewport{
		target:  t,
		monitor: health.NewMonitor(m.clk, m.cfg.SettleDelay),
	}
	vp.countdown = reconnect.NewCountdown(m.sched,
		func(kind reconnect.Kind, remaining int) { m.onCountdownTick(vp, kind, remaining) },
		func(kind reconnect.Kind) { m.onCountdownExpire(vp, kind) },
	)

	if old, loaded := m.viewports.LoadAndStore(t.ID(), vp); loaded {
		old.countdown.Cancel()
	}
}

// Unregister removes a target from supervision and cancels its countdown.
func (m *Manager) Unregister(id string) {
	if vp, loaded := m.viewports.LoadAndDelete(id); loaded {
		vp.countdown.Cancel()
	}
}

// Start launches the watchdog loop. Safe to call once.
func (m *Manager) Start() {
	if !m.running.CompareAndSwap(false, true) {
		return
	}
	m.stopChan = make(chan struct{})
	m.done = make(chan struct{})
	logger.Info("Watchdog started (ping interval %s)", m.cfg.PingInterval)
	go m.run()
}

// Stop halts the loop and cancels every pending countdown.
func (m *Manager) Stop() {
	if !m.running.CompareAndSwap(true, false) {
		return
	}
	close(m.stopChan)
	<-m.done
	m.viewports.Range(func(_ string, vp *viewport) bool {
		vp.countdown.Cancel()
		return true
	})
	logger.Info("Watchdog stopped")
}

func (m *Manager) run() {
	defer close(m.done)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go func() {
		<-m.stopChan
		cancel()
	}()

	for {
		m.runCycle(ctx)
		select {
		case <-m.clk.After(m.cfg.PingInterval):
		case <-m.stopChan:
			return
		}
	}
}

// runCycle is one probe-evaluate-act pass over every viewport.
func (m *Manager) runCycle(ctx context.Context) {
	addrs := make([]string, 0, 4)
	m.viewports.Range(func(_ string, vp *viewport) bool {
		if vp.target.Enabled() && vp.target.Endpoint() != "" {
			addrs = append(addrs, vp.target.Endpoint())
		}
		return true
	})

	results := m.probes.ProbeAll(ctx, addrs)
	for addr, ok := range results {
		verdict := "up"
		if !ok {
			verdict = "down"
		}
		metrics.ProbeResults.WithLabelValues(addr, verdict).Inc()
	}

	m.viewports.Range(func(_ string, vp *viewport) bool {
		m.evaluate(vp, results)
		return true
	})
}

func (m *Manager) evaluate(vp *viewport, results map[string]bool) {
	t := vp.target
	if !t.Enabled() || t.Endpoint() == "" {
		vp.countdown.Cancel()
		return
	}

	networkUp := results[t.Endpoint()]
	action := vp.monitor.Evaluate(networkUp, t.EngineState())
	metrics.SlotState.WithLabelValues(t.ID()).Set(float64(vp.monitor.State()))

	switch action {
	case health.ActionHealthy:
		vp.countdown.Cancel()
		m.loop.PublishOverlay(dispatch.OverlayUpdate{Visible: false})
		logger.Debug("%s: stream healthy", t.ID())

	case health.ActionRecovered:
		vp.countdown.Cancel()
		logger.Info("%s: network restored, restarting stream", t.ID())
		m.loop.PublishOverlay(dispatch.OverlayUpdate{
			Text:    "Network restored",
			Subtext: "Restarting stream...",
			Color:   "yellow",
			Visible: true,
		})
		m.limiter.Take()
		m.loop.Dispatch(t.Restart)

	case health.ActionNetworkLost:
		logger.Warn("%s: recorder unreachable at %s", t.ID(), t.Endpoint())
		metrics.StreamErrors.WithLabelValues("network").Inc()
		m.loop.Dispatch(t.StopPlayback)
		if !vp.countdown.Pending() {
			vp.countdown.Start(reconnect.KindNetwork, seconds(m.cfg.PingInterval))
		}

	case health.ActionStreamFailed:
		logger.Warn("%s: stream failed (engine %s)", t.ID(), t.EngineState())
		metrics.StreamErrors.WithLabelValues("stream").Inc()
		if !vp.countdown.Pending() {
			vp.countdown.Start(reconnect.KindStream, seconds(m.cfg.StreamRetryDelay))
		}
	}
}

func (m *Manager) onCountdownTick(vp *viewport, kind reconnect.Kind, remaining int) {
	u := dispatch.OverlayUpdate{Visible: true}
	switch kind {
	case reconnect.KindNetwork:
		u.Text = "NVR unreachable"
		u.Subtext = countdownText("Retrying", remaining)
		u.Color = "red"
	case reconnect.KindStream:
		u.Text = "Stream lost"
		u.Subtext = countdownText("Reconnecting", remaining)
		u.Color = "yellow"
	}
	m.loop.PublishOverlay(u)
}

func (m *Manager) onCountdownExpire(vp *viewport, kind reconnect.Kind) {
	attempt := vp.monitor.RecordRetry()
	metrics.ReconnectAttempts.WithLabelValues(kind.String()).Inc()

	switch kind {
	case reconnect.KindNetwork:
		// The loop re-probes on its own cadence; the countdown is the
		// visible half. Keep it cycling while the outage lasts.
		if vp.monitor.State() == health.NetworkDown {
			vp.countdown.Start(reconnect.KindNetwork, seconds(m.cfg.PingInterval))
		}

	case reconnect.KindStream:
		logger.Info("%s: reconnect attempt %d", vp.target.ID(), attempt)
		vp.monitor.NoteRestart()
		m.limiter.Take()
		m.loop.Dispatch(vp.target.Restart)
	}
}

// ViewportStatus is one supervised viewport's state for the status API.
type ViewportStatus struct {
	ID                 string `json:"id"`
	State              string `json:"state"`
	Retries            int    `json:"retries"`
	CountdownKind      string `json:"countdownKind,omitempty"`
	CountdownRemaining int    `json:"countdownRemaining,omitempty"`
}

// Snapshot returns the current status of every supervised viewport.
func (m *Manager) Snapshot() []ViewportStatus {
	out := make([]ViewportStatus, 0, 8)
	m.viewports.Range(func(id string, vp *viewport) bool {
		vs := ViewportStatus{
			ID:      id,
			State:   vp.monitor.State().String(),
			Retries: vp.monitor.Retries(),
		}
		if kind, remaining, ok := vp.countdown.Remaining(); ok {
			vs.CountdownKind = kind.String()
			vs.CountdownRemaining = remaining
		}
		out = append(out, vs)
		return true
	})
	return out
}

// Running reports whether the watchdog loop is active.
func (m *Manager) Running() bool {
	return m.running.Load()
}

func seconds(d time.Duration) int {
	s := int(d / time.Second)
	if s < 1 {
		s = 1
	}
	return s
}

func countdownText(verb string, remaining int) string {
	if remaining == 1 {
		return verb + " in 1 second"
	}
	return fmt.Sprintf("%s in %d seconds", verb, remaining)
}
