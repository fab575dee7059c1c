// Package nowplaying holds the last-write-wins stream metadata cell and
// fans updates out to subscribers (SSE, gossip-adjacent consumers).
package nowplaying

import (
	"sync"

	"github.com/shortwave/go-shortwave/internal/radio/hub"
	"github.com/shortwave/go-shortwave/internal/radio/types"
)

// BufferSize is the now-playing hub capacity.
const BufferSize = 128

// Store is a single-value cell under mutual exclusion. Set replaces the
// cell atomically and publishes; there is no merge.
type Store struct {
	mu      sync.RWMutex
	current *types.NowPlaying
	updates *hub.Hub[types.NowPlaying]
}

// NewStore creates an empty store.
func NewStore() *Store {
	return &Store{updates: hub.New[types.NowPlaying](BufferSize)}
}

// Set replaces the current value and publishes it.
func (s *Store) Set(np types.NowPlaying) {
	s.mu.Lock()
	cp := np
	s.current = &cp
	s.mu.Unlock()
	s.updates.Publish(np)
}

// Get returns the current value, or false if nothing has been set.
func (s *Store) Get() (types.NowPlaying, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.current == nil {
		return types.NowPlaying{}, false
	}
	return *s.current, true
}

// Updates returns the fan-out hub for live subscribers.
func (s *Store) Updates() *hub.Hub[types.NowPlaying] { return s.updates }
