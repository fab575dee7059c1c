package publisher

import (
	"crypto/ed25519"
	"crypto/rand"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/shortwave/go-shortwave/internal/errors"
	"github.com/shortwave/go-shortwave/internal/radio/freq"
	"github.com/shortwave/go-shortwave/internal/radio/registry"
	"github.com/shortwave/go-shortwave/internal/radio/types"
)

type recordingGossip struct {
	mu       sync.Mutex
	ads      []*types.StationAdvertisement
	releases []*types.ReleaseRequest
}

func (g *recordingGossip) PublishAdvertise(ad *types.StationAdvertisement) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.ads = append(g.ads, ad)
}

func (g *recordingGossip) PublishRelease(rel *types.ReleaseRequest) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.releases = append(g.releases, rel)
}

func newTestPublisher(t *testing.T, reg Registry, gossip Gossip, ttl uint32) *Publisher {
	t.Helper()
	_, priv, err := ed25519.GenerateKey(rand.Reader)
	if err != nil {
		t.Fatalf("generate key: %v", err)
	}
	station := Station{
		ID:         uuid.New(),
		Frequency:  freq.MustParse("100.5"),
		Name:       "Test FM",
		StreamURL:  "http://node.example/stream",
		TTLSeconds: ttl,
	}
	return New(station, priv, reg, gossip)
}

func TestAdvertiseSignsAcceptably(t *testing.T) {
	reg := registry.New(registry.Config{})
	gossip := &recordingGossip{}
	p := newTestPublisher(t, reg, gossip, 60)

	p.Advertise()

	snap := reg.Snapshot()
	if len(snap) != 1 {
		t.Fatalf("expected 1 assignment, got %d", len(snap))
	}
	if snap[0].Frequency.Key() != "100.5" {
		t.Fatalf("frequency = %q", snap[0].Frequency.Key())
	}
	if snap[0].OwnerPublicKey != p.OwnerPublicKey() {
		t.Fatalf("owner key mismatch")
	}

	gossip.mu.Lock()
	defer gossip.mu.Unlock()
	if len(gossip.ads) != 1 {
		t.Fatalf("expected 1 gossiped ad, got %d", len(gossip.ads))
	}
}

func TestEachAdvertisementHasFreshMessageID(t *testing.T) {
	reg := registry.New(registry.Config{})
	gossip := &recordingGossip{}
	p := newTestPublisher(t, reg, gossip, 60)

	p.Advertise()
	p.Advertise()

	gossip.mu.Lock()
	defer gossip.mu.Unlock()
	if len(gossip.ads) != 2 {
		t.Fatalf("expected 2 ads, got %d", len(gossip.ads))
	}
	if gossip.ads[0].MessageID == gossip.ads[1].MessageID {
		t.Fatalf("heartbeats must not reuse message IDs")
	}
}

type rejectingRegistry struct{}

func (rejectingRegistry) AcceptAdvertisement(ad *types.StationAdvertisement) (types.StationAssignment, error) {
	return types.StationAssignment{}, errors.NewConflictError(ad.Frequency.Key(), uuid.New())
}

func TestRejectedAdvertisementIsNotGossiped(t *testing.T) {
	gossip := &recordingGossip{}
	p := newTestPublisher(t, rejectingRegistry{}, gossip, 60)

	p.Advertise()

	gossip.mu.Lock()
	defer gossip.mu.Unlock()
	if len(gossip.ads) != 0 {
		t.Fatalf("rejected ad must not reach the mesh")
	}
}

func TestReleaseVerifiesAgainstRegistry(t *testing.T) {
	reg := registry.New(registry.Config{})
	gossip := &recordingGossip{}
	p := newTestPublisher(t, reg, gossip, 60)

	p.Advertise()
	p.Release("signing off")

	gossip.mu.Lock()
	if len(gossip.releases) != 1 {
		gossip.mu.Unlock()
		t.Fatalf("expected 1 release")
	}
	rel := gossip.releases[0]
	gossip.mu.Unlock()

	if !reg.Release(rel.Frequency.Key(), rel.StationID, rel.Signature) {
		t.Fatalf("release signature must verify under the owner key on record")
	}
	if len(reg.Snapshot()) != 0 {
		t.Fatalf("released frequency still present")
	}
}

func TestHeartbeatInterval(t *testing.T) {
	cases := []struct {
		ttl  uint32
		want time.Duration
	}{
		{60, 30 * time.Second},
		{600, 300 * time.Second},
		{10, 10 * time.Second}, // floored
		{15, 10 * time.Second}, // floored
	}
	for _, tc := range cases {
		p := newTestPublisher(t, registry.New(registry.Config{}), &recordingGossip{}, tc.ttl)
		if p.Interval() != tc.want {
			t.Fatalf("ttl %d: interval = %v, want %v", tc.ttl, p.Interval(), tc.want)
		}
	}
}
