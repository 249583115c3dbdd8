package dispatch

import (
	"sync"
	"testing"
)

func TestFIFOOrder(t *testing.T) {
	loop := NewLoop(64)
	loop.Start()
	defer loop.Stop()

	var mu sync.Mutex
	var got []int
	for i := 0; i < 20; i++ {
		i := i
		loop.Dispatch(func() {
			mu.Lock()
			got = append(got, i)
			mu.Unlock()
		})
	}
	loop.Call(func() {})

	mu.Lock()
	defer mu.Unlock()
	if len(got) != 20 {
		t.Fatalf("ran %d closures, want 20", len(got))
	}
	for i, v := range got {
		if v != i {
			t.Fatalf("out of order at %d: %v", i, got)
		}
	}
}

func TestCallRunsSynchronously(t *testing.T) {
	loop := NewLoop(8)
	loop.Start()
	defer loop.Stop()

	ran := false
	loop.Call(func() { ran = true })
	if !ran {
		t.Fatal("Call returned before the closure ran")
	}
}

func TestDispatchDropsWhenFull(t *testing.T) {
	// Not started: nothing drains the queue.
	loop := NewLoop(2)

	if !loop.Dispatch(func() {}) || !loop.Dispatch(func() {}) {
		t.Fatal("dispatch rejected with queue space available")
	}
	if loop.Dispatch(func() {}) {
		t.Fatal("dispatch accepted past queue capacity")
	}
}

func TestOverlaySinksReceiveUpdates(t *testing.T) {
	loop := NewLoop(8)
	loop.Start()
	defer loop.Stop()

	var mu sync.Mutex
	var got []OverlayUpdate
	loop.OnOverlay(func(u OverlayUpdate) {
		mu.Lock()
		got = append(got, u)
		mu.Unlock()
	})

	loop.PublishOverlay(OverlayUpdate{Text: "NVR unreachable", Color: "red", Visible: true})
	loop.PublishOverlay(OverlayUpdate{Visible: false})
	loop.Call(func() {})

	mu.Lock()
	defer mu.Unlock()
	if len(got) != 2 {
		t.Fatalf("sink received %d updates, want 2", len(got))
	}
	if !got[0].Visible || got[0].Color != "red" {
		t.Fatalf("first update = %+v", got[0])
	}
	if got[1].Visible {
		t.Fatal("second update should hide the overlay")
	}
}

func TestSlotSinksReceiveUpdates(t *testing.T) {
	loop := NewLoop(8)
	loop.Start()
	defer loop.Stop()

	var mu sync.Mutex
	var got []SlotUpdate
	loop.OnSlot(func(u SlotUpdate) {
		mu.Lock()
		got = append(got, u)
		mu.Unlock()
	})

	loop.PublishSlot(SlotUpdate{Slot: 2, CameraID: 7, IsFiller: true, DisplayState: "connecting"})
	loop.Call(func() {})

	mu.Lock()
	defer mu.Unlock()
	if len(got) != 1 || got[0].Slot != 2 || got[0].CameraID != 7 || !got[0].IsFiller {
		t.Fatalf("slot updates = %+v", got)
	}
}

func TestStopIsIdempotent(t *testing.T) {
	loop := NewLoop(8)
	loop.Start()
	loop.Stop()
	loop.Stop()
}
