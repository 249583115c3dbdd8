package filter

import (
	"testing"

	"nvr-kiosk/work/parser"
)

func entries(names ...string) []parser.CameraEntry {
	out := make([]parser.CameraEntry, len(names))
	for i, n := range names {
		out[i] = parser.CameraEntry{Name: n, Channel: i + 1}
	}
	return out
}

func TestPassThrough(t *testing.T) {
	f, err := New("", "")
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	got := f.Apply(entries("Front Door", "Garage"))
	if len(got) != 2 {
		t.Fatalf("pass-through dropped entries: %+v", got)
	}
}

func TestIncludeOnly(t *testing.T) {
	f, err := New("door|gate", "")
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	got := f.Apply(entries("Front Door", "Garage", "Back Gate"))
	if len(got) != 2 {
		t.Fatalf("got %+v, want Front Door and Back Gate", got)
	}
}

func TestExcludeOnly(t *testing.T) {
	f, err := New("", "test|spare")
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	got := f.Apply(entries("Front Door", "Test Bench", "Spare Cam"))
	if len(got) != 1 || got[0].Name != "Front Door" {
		t.Fatalf("got %+v, want only Front Door", got)
	}
}

func TestExcludeWinsOverInclude(t *testing.T) {
	f, err := New("cam", "spare")
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	got := f.Apply(entries("Yard Cam", "Spare Cam"))
	if len(got) != 1 || got[0].Name != "Yard Cam" {
		t.Fatalf("got %+v, want only Yard Cam", got)
	}
}

func TestMatchIsCaseInsensitive(t *testing.T) {
	f, err := New("door", "")
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if !f.Match("FRONT DOOR") {
		t.Fatal("include match should ignore case")
	}
}

func TestInvalidPattern(t *testing.T) {
	if _, err := New("(", ""); err == nil {
		t.Fatal("expected error for invalid include pattern")
	}
	if _, err := New("", "["); err == nil {
		t.Fatal("expected error for invalid exclude pattern")
	}
}
