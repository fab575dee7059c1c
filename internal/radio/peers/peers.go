// Package peers keeps the loose, non-authoritative directory of known
// nodes, keyed by API base URL. It informs operators and future catch-up
// requests; registry truth never depends on it.
package peers

import (
	"sort"
	"sync"
	"time"

	"github.com/shortwave/go-shortwave/internal/radio/types"
)

// Directory is a thread-safe PeerInfo map.
type Directory struct {
	mu    sync.RWMutex
	peers map[string]types.PeerInfo
}

// NewDirectory creates an empty directory.
func NewDirectory() *Directory {
	return &Directory{peers: make(map[string]types.PeerInfo)}
}

// Upsert adds or refreshes a peer row keyed by its API base URL.
func (d *Directory) Upsert(info types.PeerInfo) {
	d.mu.Lock()
	d.peers[info.APIBaseURL] = info
	d.mu.Unlock()
}

// Touch refreshes last_seen for an existing peer; unknown URLs are ignored.
func (d *Directory) Touch(apiBaseURL string, at time.Time) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if p, ok := d.peers[apiBaseURL]; ok {
		p.LastSeen = at
		d.peers[apiBaseURL] = p
	}
}

// List returns all known peers ordered by API base URL.
func (d *Directory) List() []types.PeerInfo {
	d.mu.RLock()
	out := make([]types.PeerInfo, 0, len(d.peers))
	for _, p := range d.peers {
		out = append(out, p)
	}
	d.mu.RUnlock()
	sort.Slice(out, func(i, j int) bool { return out[i].APIBaseURL < out[j].APIBaseURL })
	return out
}
