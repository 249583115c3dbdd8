// Package engine defines the video engine adapter boundary. The watchdog and
// tour scheduler only ever talk to this interface, so the actual player
// (a VLC subprocess in production, a fake in tests) stays swappable.
package engine

// State is the closed set of playback states an adapter may report. Adapters
// must map whatever their underlying player exposes onto these values;
// anything unmappable is StateUnknown.
type State int

const (
	StateUnknown State = iota // Adapter cannot determine the player state
	StateConnecting           // Playback requested, media not yet rendering
	StatePlaying              // Media is actively rendering
	StateError                // Player reported an unrecoverable error
	StateEnded                // Stream ended on its own
	StateStopped              // Playback stopped by request
)

// String returns the state name for logs and API responses.
func (s State) String() string {
	switch s {
	case StateConnecting:
		return "connecting"
	case StatePlaying:
		return "playing"
	case StateError:
		return "error"
	case StateEnded:
		return "ended"
	case StateStopped:
		return "stopped"
	default:
		return "unknown"
	}
}

// Alive reports whether the state describes a session worth leaving alone.
func (s State) Alive() bool {
	return s == StateConnecting || s == StatePlaying
}

// Handle identifies one playback session owned by an adapter. Callers treat
// it as opaque and must not use a handle after Release.
type Handle interface{}

// Engine is the video engine adapter. Implementations must be safe for use
// from a single goroutine per handle; the dispatcher serializes all calls.
type Engine interface {
	// Play starts a new playback session for the stream URL and returns its
	// handle. The session typically reports StateConnecting until the first
	// frame renders.
	Play(url string) (Handle, error)

	// Stop halts playback for the handle. Stopping an already-stopped or
	// unknown handle is a no-op.
	Stop(h Handle)

	// Release frees all resources tied to the handle. The handle must not be
	// used afterwards. Callers stop before releasing.
	Release(h Handle)

	// State reports the current playback state for the handle. Unknown
	// handles report StateUnknown.
	State(h Handle) State
}
