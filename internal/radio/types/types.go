// Package types defines the wire-level entities shared by the registry,
// the gossip mesh, and the HTTP surface. Frequencies always travel as
// strings to preserve arbitrary precision; timestamps are RFC 3339.
package types

import (
	"time"

	"github.com/google/uuid"

	"github.com/shortwave/go-shortwave/internal/radio/freq"
)

// Registry event kinds.
const (
	EventUpsert = "upsert"
	EventDelete = "delete"
)

// NodeInfo identifies this node to health checks and peers.
type NodeInfo struct {
	NodeID     uuid.UUID `json:"node_id"`
	APIBaseURL string    `json:"api_base_url"`
	Version    string    `json:"version"`
}

// PeerInfo is one row of the loose (non-authoritative) peer directory.
type PeerInfo struct {
	NodeID     uuid.UUID `json:"node_id"`
	APIBaseURL string    `json:"api_base_url"`
	LastSeen   time.Time `json:"last_seen"`
}

// StationAdvertisement is a signed, self-describing claim that a station
// should hold a frequency for TTLSeconds. The signature covers the canonical
// advertisement bytes (see the crypto package) under OwnerPublicKey.
type StationAdvertisement struct {
	MessageID      uuid.UUID    `json:"message_id"`
	StationID      uuid.UUID    `json:"station_id"`
	Frequency      freq.Decimal `json:"frequency"`
	Name           string       `json:"name"`
	StreamURL      string       `json:"stream_url"`
	AdvertisedAt   time.Time    `json:"advertised_at"`
	TTLSeconds     uint32       `json:"ttl_seconds"`
	OwnerPublicKey string       `json:"owner_public_key"`
	Signature      string       `json:"signature"`
}

// StationAssignment is the authoritative local view of a held frequency.
type StationAssignment struct {
	StationID      uuid.UUID    `json:"station_id"`
	Frequency      freq.Decimal `json:"frequency"`
	Name           string       `json:"name"`
	StreamURL      string       `json:"stream_url"`
	CreatedAt      time.Time    `json:"created_at"`
	LastSeen       time.Time    `json:"last_seen"`
	ExpiresAt      time.Time    `json:"expires_at"`
	OwnerPublicKey string       `json:"owner_public_key"`
}

// ReleaseRequest revokes an assignment. Signature covers the canonical
// release bytes under the owner key currently on record for the frequency.
type ReleaseRequest struct {
	StationID uuid.UUID    `json:"station_id"`
	Frequency freq.Decimal `json:"frequency"`
	Reason    string       `json:"reason,omitempty"`
	Signature string       `json:"signature"`
}

// RegistryEvent is emitted on every observable registry state change.
type RegistryEvent struct {
	Kind       string            `json:"event"`
	Assignment StationAssignment `json:"assignment"`
}

// NowPlaying is the last-write-wins stream metadata cell.
type NowPlaying struct {
	Title     string    `json:"title,omitempty"`
	Artist    string    `json:"artist,omitempty"`
	Album     string    `json:"album,omitempty"`
	CoverURL  string    `json:"cover_url,omitempty"`
	UpdatedAt time.Time `json:"updated_at"`
}

// ErrorResponse is the uniform HTTP error body.
type ErrorResponse struct {
	Error string `json:"error"`
}

// Timestamp renders t the way this node serializes timestamps into signed
// canonical bytes. Signer and verifier must agree byte-for-byte, so every
// caller routes through here rather than formatting ad hoc.
func Timestamp(t time.Time) string {
	return t.UTC().Format(time.RFC3339Nano)
}
