package reconnect

import (
	"sync"
	"testing"
	"time"

	"github.com/benbjohnson/clock"

	"nvr-kiosk/work/timers"
)

type recorder struct {
	mu      sync.Mutex
	ticks   []int
	expires []Kind
}

func (r *recorder) onTick(_ Kind, remaining int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.ticks = append(r.ticks, remaining)
}

func (r *recorder) onExpire(k Kind) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.expires = append(r.expires, k)
}

func (r *recorder) snapshot() ([]int, []Kind) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]int(nil), r.ticks...), append([]Kind(nil), r.expires...)
}

func newTestCountdown() (*Countdown, *recorder, *clock.Mock) {
	mock := clock.NewMock()
	rec := &recorder{}
	c := NewCountdown(timers.New(mock), rec.onTick, rec.onExpire)
	return c, rec, mock
}

func TestCountdownTicksToExpiry(t *testing.T) {
	c, rec, mock := newTestCountdown()

	c.Start(KindStream, 3)
	mock.Add(3 * time.Second)

	ticks, expires := rec.snapshot()
	wantTicks := []int{3, 2, 1}
	if len(ticks) != len(wantTicks) {
		t.Fatalf("ticks = %v, want %v", ticks, wantTicks)
	}
	for i, want := range wantTicks {
		if ticks[i] != want {
			t.Fatalf("ticks = %v, want %v", ticks, wantTicks)
		}
	}
	if len(expires) != 1 || expires[0] != KindStream {
		t.Fatalf("expires = %v, want one KindStream", expires)
	}
	if c.Pending() {
		t.Fatal("countdown still pending after expiry")
	}
}

func TestCancelSuppressesExpiry(t *testing.T) {
	c, rec, mock := newTestCountdown()

	c.Start(KindNetwork, 5)
	mock.Add(2 * time.Second)
	c.Cancel()
	mock.Add(10 * time.Second)

	_, expires := rec.snapshot()
	if len(expires) != 0 {
		t.Fatalf("cancelled countdown expired: %v", expires)
	}
	if c.Pending() {
		t.Fatal("cancelled countdown reports pending")
	}
}

func TestRestartReplacesCountdown(t *testing.T) {
	c, rec, mock := newTestCountdown()

	c.Start(KindNetwork, 10)
	mock.Add(2 * time.Second)
	// A new failure replaces the old countdown outright.
	c.Start(KindStream, 2)
	mock.Add(2 * time.Second)

	_, expires := rec.snapshot()
	if len(expires) != 1 || expires[0] != KindStream {
		t.Fatalf("expires = %v, want exactly one KindStream", expires)
	}

	// The superseded chain must stay dead.
	mock.Add(20 * time.Second)
	_, expires = rec.snapshot()
	if len(expires) != 1 {
		t.Fatalf("stale countdown chain resurfaced: %v", expires)
	}
}

func TestRemaining(t *testing.T) {
	c, _, mock := newTestCountdown()

	if _, _, ok := c.Remaining(); ok {
		t.Fatal("idle countdown reports remaining")
	}

	c.Start(KindNetwork, 5)
	kind, secs, ok := c.Remaining()
	if !ok || kind != KindNetwork || secs != 5 {
		t.Fatalf("Remaining() = %v %d %v, want KindNetwork 5 true", kind, secs, ok)
	}

	mock.Add(2 * time.Second)
	_, secs, _ = c.Remaining()
	if secs != 3 {
		t.Fatalf("remaining after 2s = %d, want 3", secs)
	}
}

func TestMinimumOneSecond(t *testing.T) {
	c, rec, mock := newTestCountdown()

	c.Start(KindStream, 0)
	mock.Add(time.Second)

	_, expires := rec.snapshot()
	if len(expires) != 1 {
		t.Fatalf("zero-length countdown: expires = %v, want 1", expires)
	}
}
