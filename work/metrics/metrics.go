// Package metrics defines the Prometheus collectors exported on /metrics.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// ProbeResults counts reachability probes by endpoint and verdict.
	ProbeResults = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "kiosk_probe_results_total",
		Help: "Endpoint reachability probes by result",
	}, []string{"endpoint", "result"})

	// StreamErrors counts health transitions into a failure state.
	StreamErrors = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "kiosk_stream_errors_total",
		Help: "Stream health failures by type",
	}, []string{"type"})

	// ReconnectAttempts counts retry countdowns that expired and triggered
	// a playback restart.
	ReconnectAttempts = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "kiosk_reconnect_attempts_total",
		Help: "Playback restarts triggered by expired retry countdowns",
	}, []string{"kind"})

	// TourRotations counts page advances of the camera tour.
	TourRotations = promauto.NewCounter(prometheus.CounterOpts{
		Name: "kiosk_tour_rotations_total",
		Help: "Tour page rotations",
	})

	// SlotState reports the current health state per grid slot
	// (0=unknown 1=connecting 2=playing 3=stream_failed 4=network_down).
	SlotState = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Name: "kiosk_slot_state",
		Help: "Current health state per grid slot",
	}, []string{"slot"})

	// ActiveStreams reports how many playback sessions are currently live.
	ActiveStreams = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "kiosk_active_streams",
		Help: "Live playback sessions",
	})

	// DispatchDropped counts presentation updates dropped on a full queue.
	DispatchDropped = promauto.NewCounter(prometheus.CounterOpts{
		Name: "kiosk_dispatch_dropped_total",
		Help: "Presentation updates dropped because the queue was full",
	})

	// ConfigSaves counts admin configuration saves.
	ConfigSaves = promauto.NewCounter(prometheus.CounterOpts{
		Name: "kiosk_config_saves_total",
		Help: "Configuration saves through the admin API",
	})
)
