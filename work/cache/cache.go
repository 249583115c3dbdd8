// Package cache holds short-lived response snapshots for the admin API so a
// dashboard polling every second cannot hammer stats collection.
package cache

import (
	"time"

	"github.com/maypok86/otter/v2"
)

// Snapshots is a small TTL cache of rendered API payloads keyed by route.
type Snapshots struct {
	cache *otter.Cache[string, []byte]
}

// New creates a snapshot cache whose entries expire ttl after being written.
func New(ttl time.Duration) *Snapshots {
	c := otter.Must(&otter.Options[string, []byte]{
		MaximumSize:      64,
		ExpiryCalculator: otter.ExpiryWriting[string, []byte](ttl),
	})
	return &Snapshots{cache: c}
}

// Get returns the cached payload for a key if it has not expired.
func (s *Snapshots) Get(key string) ([]byte, bool) {
	return s.cache.GetIfPresent(key)
}

// Set stores a payload under a key.
func (s *Snapshots) Set(key string, payload []byte) {
	s.cache.Set(key, payload)
}

// Invalidate drops every cached payload. Called after configuration changes
// so stale snapshots never outlive a save.
func (s *Snapshots) Invalidate() {
	s.cache.InvalidateAll()
}
