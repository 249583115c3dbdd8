// Package kiosk assembles the application: configuration, persistence, the
// presentation loop, the tour scheduler and the watchdog, and exposes the
// operations the admin API calls.
package kiosk

import (
	"fmt"
	"io"
	"sync"
	"time"

	"nvr-kiosk/work/cache"
	"nvr-kiosk/work/config"
	"nvr-kiosk/work/database"
	"nvr-kiosk/work/dispatch"
	"nvr-kiosk/work/engine"
	"nvr-kiosk/work/filter"
	"nvr-kiosk/work/logger"
	"nvr-kiosk/work/metrics"
	"nvr-kiosk/work/parser"
	"nvr-kiosk/work/prober"
	"nvr-kiosk/work/timers"
	"nvr-kiosk/work/tour"
	"nvr-kiosk/work/watchdog"
)

// Kiosk is the running application. Config holds the immutable boot
// settings; the admin-mutable parts (tour, endpoint) live behind mu and are
// read through TourConfig/Endpoint, never from Config directly.
type Kiosk struct {
	Config   *config.Config
	DB       *database.DB
	Loop     *dispatch.Loop
	Tour     *tour.Scheduler
	Watchdog *watchdog.Manager
	Cache    *cache.Snapshots

	mu       sync.RWMutex
	tourCfg  config.TourConfig
	endpoint config.StreamEndpoint

	probes     *prober.Pool
	sched      *timers.Scheduler
	registered map[string]bool
	startedAt  time.Time
}

// New wires the application together. Configuration saved through the admin
// API (persisted in SQLite) overrides the file/default values.
func New(cfg *config.Config) (*Kiosk, error) {
	db, err := database.Open(cfg.DatabasePath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	tourCfg := cfg.Tour
	endpoint := cfg.Endpoint
	if tc, found, err := db.LoadTourConfig(); err != nil {
		logger.Warn("Ignoring persisted tour config: %v", err)
	} else if found {
		tourCfg = tc
	}
	if e, found, err := db.LoadEndpoint(); err != nil {
		logger.Warn("Ignoring persisted endpoint: %v", err)
	} else if found {
		endpoint = e
	}

	probes, err := prober.NewPool(prober.NewTCP(cfg.ProbeTimeout), cfg.WorkerThreads)
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to create probe pool: %w", err)
	}

	loop := dispatch.NewLoop(256)
	sched := timers.New(nil)
	eng := engine.NewExec(cfg.PlayerCommand, playerArgs(cfg), 2*time.Second)

	k := &Kiosk{
		Config:     cfg,
		DB:         db,
		Loop:       loop,
		Tour:       tour.NewScheduler(eng, loop, sched, cfg.ObfuscateUrls),
		Watchdog:   watchdog.NewManager(cfg, probes, loop, sched),
		Cache:      cache.New(cfg.CacheDuration),
		tourCfg:    tourCfg,
		endpoint:   endpoint,
		probes:     probes,
		sched:      sched,
		registered: make(map[string]bool),
		startedAt:  time.Now(),
	}
	return k, nil
}

// TourConfig returns the current tour configuration.
func (k *Kiosk) TourConfig() config.TourConfig {
	k.mu.RLock()
	defer k.mu.RUnlock()
	return k.tourCfg
}

// Endpoint returns the current recorder endpoint.
func (k *Kiosk) Endpoint() config.StreamEndpoint {
	k.mu.RLock()
	defer k.mu.RUnlock()
	return k.endpoint
}

// playerArgs builds the player argument list: configured extras plus the
// network cache sized from config.
func playerArgs(cfg *config.Config) []string {
	args := make([]string, 0, len(cfg.PlayerArgs)+1)
	args = append(args, cfg.PlayerArgs...)
	args = append(args, fmt.Sprintf("--network-caching=%d", cfg.NetworkCaching))
	return args
}

// Start brings the kiosk up: presentation loop first, then the tour renders
// its first page, then the watchdog begins supervising the slots.
func (k *Kiosk) Start() {
	k.Loop.Start()
	k.Tour.Apply(k.TourConfig(), k.Endpoint())
	k.syncWatchdogTargets()
	k.Watchdog.Start()
}

// Shutdown stops everything in reverse order of Start.
func (k *Kiosk) Shutdown() {
	k.Watchdog.Stop()
	k.Tour.Stop()
	k.Loop.Stop()
	k.probes.Release()
	if err := k.DB.Close(); err != nil {
		logger.Warn("Database close failed: %v", err)
	}
}

// syncWatchdogTargets reconciles the watchdog registry with the current
// grid slots, dropping supervision of slots removed by a grid-size change.
func (k *Kiosk) syncWatchdogTargets() {
	current := make(map[string]bool)
	for _, slot := range k.Tour.Slots() {
		current[slot.ID()] = true
		k.Watchdog.Register(slot)
	}
	for id := range k.registered {
		if !current[id] {
			k.Watchdog.Unregister(id)
		}
	}
	k.registered = current
}

// ApplyTourConfig persists and applies a new tour configuration: the
// rotation resets to the first page and every slot re-renders.
func (k *Kiosk) ApplyTourConfig(tc config.TourConfig) error {
	if !config.IsValidGridSize(tc.GridSize) {
		return fmt.Errorf("invalid grid size %d", tc.GridSize)
	}
	if tc.Interval < time.Second {
		return fmt.Errorf("tour interval too short: %s", tc.Interval)
	}
	tc.ActiveCameraIDs = config.NormalizeCameraIDs(tc.ActiveCameraIDs)

	if err := k.DB.SaveTourConfig(tc); err != nil {
		return err
	}
	k.mu.Lock()
	k.tourCfg = tc
	k.mu.Unlock()
	k.Tour.Apply(tc, k.Endpoint())
	k.syncWatchdogTargets()
	k.Cache.Invalidate()
	metrics.ConfigSaves.Inc()
	return nil
}

// ApplyEndpoint persists a new recorder endpoint and restarts the tour
// against it.
func (k *Kiosk) ApplyEndpoint(e config.StreamEndpoint) error {
	if e.Host == "" || e.Port == "" {
		return fmt.Errorf("endpoint host and port are required")
	}
	if err := k.DB.SaveEndpoint(e); err != nil {
		return err
	}
	k.mu.Lock()
	k.endpoint = e
	k.mu.Unlock()
	k.Tour.Apply(k.TourConfig(), e)
	k.syncWatchdogTargets()
	k.Cache.Invalidate()
	metrics.ConfigSaves.Inc()
	return nil
}

// RestartStreams restarts playback on every occupied slot.
func (k *Kiosk) RestartStreams() {
	logger.Info("Manual stream restart requested")
	k.Tour.RestartAll()
}

// ImportCameras reads an M3U playlist, applies the configured name filters,
// and merges the result into the camera catalog. Returns how many cameras
// were imported.
func (k *Kiosk) ImportCameras(r io.Reader) (int, error) {
	entries, err := parser.ParseM3U(r)
	if err != nil {
		return 0, err
	}

	f, err := filter.New(k.Config.NameIncludeRegex, k.Config.NameExcludeRegex)
	if err != nil {
		return 0, err
	}
	entries = f.Apply(entries)

	cams := make([]database.Camera, 0, len(entries))
	for _, e := range entries {
		cams = append(cams, database.Camera{
			Channel: e.Channel,
			Name:    e.Name,
			Enabled: true,
		})
	}
	if err := k.DB.UpsertCameras(cams); err != nil {
		return 0, err
	}
	logger.Info("Imported %d cameras from playlist", len(cams))
	return len(cams), nil
}

// Uptime reports how long the kiosk has been running.
func (k *Kiosk) Uptime() time.Duration {
	return time.Since(k.startedAt)
}
