package engine

import "testing"

func TestStateString(t *testing.T) {
	cases := map[State]string{
		StateUnknown:    "unknown",
		StateConnecting: "connecting",
		StatePlaying:    "playing",
		StateError:      "error",
		StateEnded:      "ended",
		StateStopped:    "stopped",
		State(99):       "unknown",
	}
	for s, want := range cases {
		if got := s.String(); got != want {
			t.Errorf("%d.String() = %q, want %q", s, got, want)
		}
	}
}

func TestStateAlive(t *testing.T) {
	for _, s := range []State{StateConnecting, StatePlaying} {
		if !s.Alive() {
			t.Errorf("%v should be alive", s)
		}
	}
	for _, s := range []State{StateUnknown, StateError, StateEnded, StateStopped} {
		if s.Alive() {
			t.Errorf("%v should not be alive", s)
		}
	}
}

func TestFakeLifecycle(t *testing.T) {
	f := NewFake()

	h, err := f.Play("rtsp://example/1")
	if err != nil {
		t.Fatalf("Play: %v", err)
	}
	if f.State(h) != StateConnecting {
		t.Fatalf("new session state = %v, want connecting", f.State(h))
	}

	f.SetState(h, StatePlaying)
	if f.State(h) != StatePlaying {
		t.Fatal("SetState did not stick")
	}

	f.Stop(h)
	if f.State(h) != StateStopped {
		t.Fatalf("state after stop = %v, want stopped", f.State(h))
	}

	f.Release(h)
	if f.State(h) != StateUnknown {
		t.Fatal("released handle should report unknown")
	}
	if f.Live() != 0 || f.Released() != 1 {
		t.Fatalf("live=%d released=%d, want 0 and 1", f.Live(), f.Released())
	}
}
