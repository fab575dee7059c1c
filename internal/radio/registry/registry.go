// Package registry implements the distributed frequency-assignment
// registry: the authoritative local map of frequency key to station
// assignment, fed by signed advertisements (local heartbeat or gossip),
// drained by signed releases and TTL expiry.
package registry

// Concurrency model: sync.RWMutex guards the assignment map. Snapshot/Get
// take the read lock; Accept/Release/Expire/Import take the write lock, and
// in Accept the conflict check and the insert share one write-lock scope so
// two accepts for the same key cannot interleave. The seen-message set has
// its own short-lived lock taken before signature verification to
// short-circuit duplicates. Events are published after the map mutation, so
// a subscriber that observes an event and then reads the registry sees at
// least the announced row.

import (
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/shortwave/go-shortwave/internal/errors"
	"github.com/shortwave/go-shortwave/internal/logger"
	"github.com/shortwave/go-shortwave/internal/radio/crypto"
	"github.com/shortwave/go-shortwave/internal/radio/hub"
	"github.com/shortwave/go-shortwave/internal/radio/types"
)

// EventBufferSize is the registry event hub capacity.
const EventBufferSize = 1024

// Config holds registry construction knobs.
type Config struct {
	// MaxFrequenciesPerOwner caps concurrent assignments per owner public
	// key. Zero means the default of 3.
	MaxFrequenciesPerOwner uint32
	// Now overrides the clock (tests). Nil means time.Now.
	Now func() time.Time
}

// Registry is the in-memory frequency-assignment store.
type Registry struct {
	mu      sync.RWMutex
	entries map[string]types.StationAssignment

	seenMu sync.Mutex
	seen   map[uuid.UUID]struct{}

	maxPerOwner uint32
	events      *hub.Hub[types.RegistryEvent]
	now         func() time.Time
	log         *slog.Logger
}

// New creates an empty registry.
func New(cfg Config) *Registry {
	if cfg.MaxFrequenciesPerOwner == 0 {
		cfg.MaxFrequenciesPerOwner = 3
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	return &Registry{
		entries:     make(map[string]types.StationAssignment),
		seen:        make(map[uuid.UUID]struct{}),
		maxPerOwner: cfg.MaxFrequenciesPerOwner,
		events:      hub.New[types.RegistryEvent](EventBufferSize),
		now:         cfg.Now,
		log:         logger.Logger().With("component", "registry"),
	}
}

// Events returns the registry event hub. Subscribers receive one
// RegistryEvent per observable state change, starting at the current tail.
func (r *Registry) Events() *hub.Hub[types.RegistryEvent] { return r.events }

// AcceptAdvertisement authenticates ad and applies it to the registry.
// On success the resulting assignment is returned and an upsert event is
// emitted. Replayed message IDs are idempotent successes. Rejections
// (conflict, owner mismatch, owner cap) describe authoritative state and
// leave the registry untouched.
func (r *Registry) AcceptAdvertisement(ad *types.StationAdvertisement) (types.StationAssignment, error) {
	key := ad.Frequency.Key()

	// Dedup before the (comparatively expensive) verification step. A seen
	// message is an idempotent success when the slot is populated; an unseen
	// key falls through so a replay after expiry can still re-establish it.
	r.seenMu.Lock()
	_, dup := r.seen[ad.MessageID]
	r.seenMu.Unlock()
	if dup {
		r.mu.RLock()
		existing, ok := r.entries[key]
		r.mu.RUnlock()
		if ok {
			return existing, nil
		}
	}

	pub, err := crypto.ParsePublicKeyB64(ad.OwnerPublicKey)
	if err != nil {
		return types.StationAssignment{}, err
	}
	sig, err := crypto.ParseSignatureB64(ad.Signature)
	if err != nil {
		return types.StationAssignment{}, err
	}
	msg := crypto.CanonicalAdBytes(crypto.NamespaceAdvertise, key, ad.StationID.String(),
		ad.StreamURL, types.Timestamp(ad.AdvertisedAt), ad.TTLSeconds)
	if err := crypto.Verify(pub, msg, sig); err != nil {
		return types.StationAssignment{}, errors.NewSignatureError("accept.advertisement", nil)
	}

	r.mu.Lock()
	if existing, ok := r.entries[key]; ok {
		if existing.StationID != ad.StationID {
			r.mu.Unlock()
			return types.StationAssignment{}, errors.NewConflictError(key, existing.StationID)
		}
		if existing.OwnerPublicKey != ad.OwnerPublicKey {
			r.mu.Unlock()
			return types.StationAssignment{}, errors.NewOwnerMismatchError()
		}
	} else {
		var count uint32
		for _, a := range r.entries {
			if a.OwnerPublicKey == ad.OwnerPublicKey {
				count++
			}
		}
		if count >= r.maxPerOwner {
			r.mu.Unlock()
			return types.StationAssignment{}, errors.NewOwnerCapError(r.maxPerOwner)
		}
	}

	assignment := types.StationAssignment{
		StationID:      ad.StationID,
		Frequency:      ad.Frequency,
		Name:           ad.Name,
		StreamURL:      ad.StreamURL,
		CreatedAt:      r.now(),
		LastSeen:       ad.AdvertisedAt,
		ExpiresAt:      ad.AdvertisedAt.Add(time.Duration(ad.TTLSeconds) * time.Second),
		OwnerPublicKey: ad.OwnerPublicKey,
	}
	r.entries[key] = assignment
	r.mu.Unlock()

	r.seenMu.Lock()
	r.seen[ad.MessageID] = struct{}{}
	r.seenMu.Unlock()

	r.events.Publish(types.RegistryEvent{Kind: types.EventUpsert, Assignment: assignment})
	return assignment, nil
}

// Release removes the assignment at frequencyKey if stationID matches the
// current holder and signatureB64 verifies over the canonical release bytes
// under the holder's owner key. Any failure path returns false without
// mutating state; the operation is idempotent from the caller's view.
func (r *Registry) Release(frequencyKey string, stationID uuid.UUID, signatureB64 string) bool {
	// Read pass: pick up the owner key to verify against. A release signed
	// by anyone but the current owner has no effect.
	r.mu.RLock()
	entry, ok := r.entries[frequencyKey]
	r.mu.RUnlock()
	if !ok || entry.StationID != stationID {
		return false
	}

	pub, err := crypto.ParsePublicKeyB64(entry.OwnerPublicKey)
	if err != nil {
		return false
	}
	sig, err := crypto.ParseSignatureB64(signatureB64)
	if err != nil {
		return false
	}
	msg := crypto.CanonicalReleaseBytes(crypto.NamespaceRelease, frequencyKey, stationID.String())
	if err := crypto.Verify(pub, msg, sig); err != nil {
		return false
	}

	// Verified; re-check under the write lock before removing.
	r.mu.Lock()
	entry, ok = r.entries[frequencyKey]
	if !ok || entry.StationID != stationID {
		r.mu.Unlock()
		return false
	}
	delete(r.entries, frequencyKey)
	r.mu.Unlock()

	r.events.Publish(types.RegistryEvent{Kind: types.EventDelete, Assignment: entry})
	return true
}

// Expire removes every assignment whose expires_at has passed and emits one
// delete event per removal. Safe to run concurrently with accepts: both take
// the write lock, so an acceptance that lands first refreshes expires_at and
// the row survives.
func (r *Registry) Expire() int {
	now := r.now()
	var removed []types.StationAssignment
	r.mu.Lock()
	for key, a := range r.entries {
		if !a.ExpiresAt.After(now) {
			delete(r.entries, key)
			removed = append(removed, a)
		}
	}
	r.mu.Unlock()

	for _, a := range removed {
		r.events.Publish(types.RegistryEvent{Kind: types.EventDelete, Assignment: a})
	}
	return len(removed)
}

// Snapshot returns the live assignments (expires_at strictly in the future).
// Expiry is enforced at this read boundary too, so stale rows are never
// served between sweeps.
func (r *Registry) Snapshot() []types.StationAssignment {
	now := r.now()
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]types.StationAssignment, 0, len(r.entries))
	for _, a := range r.entries {
		if a.ExpiresAt.After(now) {
			out = append(out, a)
		}
	}
	return out
}

// Get returns whatever is present at key, with no expiry filter.
func (r *Registry) Get(key string) (types.StationAssignment, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	a, ok := r.entries[key]
	return a, ok
}

// Import adopts the incoming row unconditionally (last-writer-wins) and
// emits an upsert event. Used by peer catch-up, which carries full
// previously-verified assignments rather than signed advertisements;
// unverified rows must enter via AcceptAdvertisement only.
func (r *Registry) Import(a types.StationAssignment) {
	key := a.Frequency.Key()
	r.mu.Lock()
	r.entries[key] = a
	r.mu.Unlock()
	r.events.Publish(types.RegistryEvent{Kind: types.EventUpsert, Assignment: a})
}

// OwnerCount returns the number of assignments held by the given owner key
// (expired rows included until swept).
func (r *Registry) OwnerCount(ownerPublicKey string) int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	n := 0
	for _, a := range r.entries {
		if a.OwnerPublicKey == ownerPublicKey {
			n++
		}
	}
	return n
}
