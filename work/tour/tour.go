// Package tour rotates the camera grid through pages of the active camera
// list. It owns the grid slots (each one a viewport with its own playback
// session), the page math, and the single rotation timer. All engine calls
// happen on the presentation loop.
package tour

import (
	"math/rand"
	"strconv"
	"sync"
	"time"

	"github.com/puzpuzpuz/xsync/v3"

	"nvr-kiosk/work/config"
	"nvr-kiosk/work/dispatch"
	"nvr-kiosk/work/engine"
	"nvr-kiosk/work/logger"
	"nvr-kiosk/work/metrics"
	"nvr-kiosk/work/timers"
	"nvr-kiosk/work/utils"
)

// Slot is one grid cell: a camera assignment plus its playback session. It
// doubles as the watchdog's restart target for that cell.
type Slot struct {
	index     int
	eng       engine.Engine
	obfuscate bool

	mu       sync.RWMutex
	cameraID int
	isFiller bool
	url      string
	addr     string
	handle   engine.Handle
	occupied bool
}

// Index returns the slot's position in the grid.
func (v *Slot) Index() int {
	return v.index
}

// ID identifies the slot in logs and metrics.
func (v *Slot) ID() string {
	return "slot-" + strconv.Itoa(v.index)
}

// CameraID returns the camera currently assigned, or NoCamera.
func (v *Slot) CameraID() int {
	v.mu.RLock()
	defer v.mu.RUnlock()
	return v.cameraID
}

// IsFiller reports whether the current assignment is a filler.
func (v *Slot) IsFiller() bool {
	v.mu.RLock()
	defer v.mu.RUnlock()
	return v.isFiller
}

// Endpoint returns the host:port the slot's stream comes from, for probing.
// Empty when the slot is blank.
func (v *Slot) Endpoint() string {
	v.mu.RLock()
	defer v.mu.RUnlock()
	return v.addr
}

// StreamURL returns the full stream URL the slot plays. Empty when blank.
func (v *Slot) StreamURL() string {
	v.mu.RLock()
	defer v.mu.RUnlock()
	return v.url
}

// Enabled reports whether the slot has a camera to watch over.
func (v *Slot) Enabled() bool {
	v.mu.RLock()
	defer v.mu.RUnlock()
	return v.occupied
}

// EngineState reports the playback state of the slot's session.
func (v *Slot) EngineState() engine.State {
	v.mu.RLock()
	h := v.handle
	v.mu.RUnlock()
	if h == nil {
		return engine.StateUnknown
	}
	return v.eng.State(h)
}

// Assign points the slot at a camera on the given recorder and starts
// playback. The previous session, if any, is stopped and released before
// the new camera owns the slot. Must run on the presentation loop.
func (v *Slot) Assign(e Entry, base config.StreamEndpoint) {
	v.mu.Lock()
	defer v.mu.Unlock()

	if v.handle != nil {
		v.eng.Stop(v.handle)
		v.eng.Release(v.handle)
		v.handle = nil
		metrics.ActiveStreams.Dec()
	}

	v.cameraID = e.CameraID
	v.isFiller = e.IsFiller
	if e.CameraID == NoCamera {
		v.url = ""
		v.addr = ""
		v.occupied = false
		return
	}

	endpoint := base.WithChannel(e.CameraID)
	v.url = utils.BuildStreamURL(endpoint)
	v.addr = endpoint.Addr()
	v.occupied = true
	v.playLocked()
}

// Restart tears the slot's session down and starts it fresh on the same
// camera. Must run on the presentation loop.
func (v *Slot) Restart() {
	v.mu.Lock()
	defer v.mu.Unlock()
	if !v.occupied {
		return
	}
	if v.handle != nil {
		v.eng.Stop(v.handle)
		v.eng.Release(v.handle)
		v.handle = nil
		metrics.ActiveStreams.Dec()
	}
	v.playLocked()
}

// StopPlayback stops and releases the slot's session, keeping the camera
// assignment. Must run on the presentation loop.
func (v *Slot) StopPlayback() {
	v.mu.Lock()
	defer v.mu.Unlock()
	if v.handle == nil {
		return
	}
	v.eng.Stop(v.handle)
	v.eng.Release(v.handle)
	v.handle = nil
	metrics.ActiveStreams.Dec()
}

func (v *Slot) playLocked() {
	h, err := v.eng.Play(v.url)
	if err != nil {
		logger.Error("Slot %d: failed to start camera %d: %v",
			v.index, v.cameraID, err)
		return
	}
	v.handle = h
	metrics.ActiveStreams.Inc()
	loggable := v.url
	if v.obfuscate {
		loggable = utils.ObfuscateURL(v.url)
	}
	logger.Debug("Slot %d: playing camera %d (%s)", v.index, v.cameraID, loggable)
}

// Scheduler drives the page rotation. One rotation timer exists at most;
// applying a new configuration cancels it, resets to page zero and renders
// immediately.
type Scheduler struct {
	eng       engine.Engine
	loop      *dispatch.Loop
	sched     *timers.Scheduler
	obfuscate bool

	rotation *timers.Slot
	rng      *rand.Rand
	rngMu    sync.Mutex

	mu        sync.RWMutex
	gridSize  int
	interval  time.Duration
	ids       []int
	endpoint  config.StreamEndpoint
	pageIndex int
	slots     *xsync.MapOf[int, *Slot]
}

// NewScheduler creates a tour scheduler. Apply must be called before the
// tour shows anything. obfuscateURLs controls whether stream URLs are
// masked in debug logs.
func NewScheduler(eng engine.Engine, loop *dispatch.Loop, sched *timers.Scheduler, obfuscateURLs bool) *Scheduler {
	return &Scheduler{
		eng:       eng,
		loop:      loop,
		sched:     sched,
		obfuscate: obfuscateURLs,
		rotation:  timers.NewSlot(sched),
		rng:       rand.New(rand.NewSource(time.Now().UnixNano())),
		slots:     xsync.NewMapOf[int, *Slot](),
	}
}

// Apply installs a tour configuration and the recorder endpoint its streams
// come from: the rotation timer is cancelled, the page index resets to zero,
// the first page renders immediately, and the timer is re-armed only if
// there is more than one page. The endpoint is snapshotted here so renders
// in flight never observe a half-written configuration. Safe to call at any
// time from any goroutine except the presentation loop.
func (s *Scheduler) Apply(tc config.TourConfig, endpoint config.StreamEndpoint) {
	s.rotation.Cancel()

	ids := config.NormalizeCameraIDs(tc.ActiveCameraIDs)
	gridSize := tc.GridSize
	if !config.IsValidGridSize(gridSize) {
		gridSize = 4
	}

	s.mu.Lock()
	s.gridSize = gridSize
	s.interval = tc.Interval
	s.ids = ids
	s.endpoint = endpoint
	s.pageIndex = 0
	s.mu.Unlock()

	logger.Info("Tour config applied: %d cameras, %d-slot grid, %d page(s), %s interval",
		len(ids), gridSize, TotalPages(len(ids), gridSize), tc.Interval)

	s.loop.Call(s.render)
	s.armRotation()
}

// Pages returns the total page count under the current configuration.
func (s *Scheduler) Pages() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return TotalPages(len(s.ids), s.gridSize)
}

// PageIndex returns the page currently showing.
func (s *Scheduler) PageIndex() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.pageIndex
}

// Slots returns the current grid slots in index order.
func (s *Scheduler) Slots() []*Slot {
	s.mu.RLock()
	size := s.gridSize
	s.mu.RUnlock()

	out := make([]*Slot, 0, size)
	for i := 0; i < size; i++ {
		if v, ok := s.slots.Load(i); ok {
			out = append(out, v)
		}
	}
	return out
}

// RestartAll restarts playback on every occupied slot. Used after a network
// recovery and by the admin refresh endpoint.
func (s *Scheduler) RestartAll() {
	s.loop.Call(func() {
		s.slots.Range(func(_ int, v *Slot) bool {
			v.Restart()
			return true
		})
	})
}

// Stop cancels the rotation and tears down every playback session.
func (s *Scheduler) Stop() {
	s.rotation.Cancel()
	s.loop.Call(func() {
		s.slots.Range(func(_ int, v *Slot) bool {
			v.StopPlayback()
			return true
		})
	})
}

// armRotation schedules the next page flip. A single-page tour never
// rotates, so no timer is armed for it.
func (s *Scheduler) armRotation() {
	s.mu.RLock()
	interval := s.interval
	pages := TotalPages(len(s.ids), s.gridSize)
	s.mu.RUnlock()

	if pages < 2 || interval <= 0 {
		return
	}
	s.rotation.Replace(interval, s.rotate)
}

// rotate advances to the next page, wrapping at the end, then re-arms.
func (s *Scheduler) rotate() {
	s.mu.Lock()
	pages := TotalPages(len(s.ids), s.gridSize)
	if pages > 0 {
		s.pageIndex = (s.pageIndex + 1) % pages
	}
	page := s.pageIndex
	s.mu.Unlock()

	metrics.TourRotations.Inc()
	logger.Debug("Tour rotating to page %d of %d", page+1, pages)

	s.loop.Call(s.render)
	s.armRotation()
}

// render reconciles the grid with the current page. Runs on the presentation
// loop. Slots already showing the right camera are left alone; everything
// else is stopped, released and reassigned in place.
func (s *Scheduler) render() {
	s.mu.RLock()
	ids := s.ids
	gridSize := s.gridSize
	page := s.pageIndex
	base := s.endpoint
	s.mu.RUnlock()

	s.rngMu.Lock()
	entries := ComputePage(ids, gridSize, page, s.rng)
	s.rngMu.Unlock()

	// Drop slots beyond the grid after a size change.
	s.slots.Range(func(i int, v *Slot) bool {
		if i >= gridSize {
			v.StopPlayback()
			s.slots.Delete(i)
		}
		return true
	})

	for i, e := range entries {
		v, ok := s.slots.Load(i)
		if !ok {
			v = &Slot{index: i, eng: s.eng, obfuscate: s.obfuscate, cameraID: NoCamera}
			s.slots.Store(i, v)
		}

		// An existing slot already playing this camera from this recorder
		// is left alone; an endpoint change makes the URL differ and forces
		// the reassign.
		if ok {
			wantURL := ""
			if e.CameraID != NoCamera {
				wantURL = utils.BuildStreamURL(base.WithChannel(e.CameraID))
			}
			if v.CameraID() == e.CameraID && v.IsFiller() == e.IsFiller &&
				v.StreamURL() == wantURL && (e.CameraID == NoCamera || v.EngineState().Alive()) {
				continue
			}
		}
		v.Assign(e, base)

		s.loop.PublishSlot(dispatch.SlotUpdate{
			Slot:         i,
			CameraID:     e.CameraID,
			IsFiller:     e.IsFiller,
			DisplayState: v.EngineState().String(),
		})
	}
}
