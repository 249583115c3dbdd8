package engine

import "sync"

// Fake is an in-memory Engine used by tests. It records every call and lets
// the test script playback states directly.
type Fake struct {
	mu       sync.Mutex
	nextID   int
	states   map[Handle]State
	urls     map[Handle]string
	played   []string
	released int

	// PlayErr, when set, is returned by the next Play calls.
	PlayErr error
}

type fakeHandle struct{ id int }

// NewFake creates an empty fake engine.
func NewFake() *Fake {
	return &Fake{
		states: make(map[Handle]State),
		urls:   make(map[Handle]string),
	}
}

// Play records the URL and opens a session in the connecting state.
func (f *Fake) Play(url string) (Handle, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.PlayErr != nil {
		return nil, f.PlayErr
	}
	f.nextID++
	h := &fakeHandle{id: f.nextID}
	f.states[h] = StateConnecting
	f.urls[h] = url
	f.played = append(f.played, url)
	return h, nil
}

// Stop moves the session to the stopped state.
func (f *Fake) Stop(h Handle) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.states[h]; ok {
		f.states[h] = StateStopped
	}
}

// Release forgets the session entirely.
func (f *Fake) Release(h Handle) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.states[h]; ok {
		delete(f.states, h)
		delete(f.urls, h)
		f.released++
	}
}

// State reports the scripted state, or unknown for released handles.
func (f *Fake) State(h Handle) State {
	f.mu.Lock()
	defer f.mu.Unlock()
	if s, ok := f.states[h]; ok {
		return s
	}
	return StateUnknown
}

// SetState scripts the state for one session.
func (f *Fake) SetState(h Handle, s State) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.states[h]; ok {
		f.states[h] = s
	}
}

// SetAll scripts the state for every live session.
func (f *Fake) SetAll(s State) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for h := range f.states {
		f.states[h] = s
	}
}

// URL returns the stream URL a session was opened with.
func (f *Fake) URL(h Handle) string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.urls[h]
}

// PlayedURLs returns every URL passed to Play, in call order.
func (f *Fake) PlayedURLs() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]string, len(f.played))
	copy(out, f.played)
	return out
}

// Live returns the number of sessions not yet released.
func (f *Fake) Live() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.states)
}

// Released returns how many sessions have been released.
func (f *Fake) Released() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.released
}
