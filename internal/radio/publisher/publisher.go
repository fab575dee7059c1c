// Package publisher runs the local station's heartbeat: it periodically
// signs a fresh advertisement, applies it to the local registry, and hands
// it to the gossip layer. TTL-based expiry means a station that stops
// heartbeating simply fades out of every registry.
package publisher

import (
	"context"
	"crypto/ed25519"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/shortwave/go-shortwave/internal/errors"
	"github.com/shortwave/go-shortwave/internal/logger"
	"github.com/shortwave/go-shortwave/internal/radio/crypto"
	"github.com/shortwave/go-shortwave/internal/radio/freq"
	"github.com/shortwave/go-shortwave/internal/radio/types"
)

// minHeartbeat floors the advertise interval so tiny TTLs don't turn the
// mesh into a firehose.
const minHeartbeat = 10 * time.Second

// Station describes the frequency claim this node advertises.
type Station struct {
	ID         uuid.UUID
	Frequency  freq.Decimal
	Name       string
	StreamURL  string
	TTLSeconds uint32
}

// Registry is the local acceptance path; the publisher goes through the same
// door as remote advertisements so its own claims obey the same rules.
type Registry interface {
	AcceptAdvertisement(ad *types.StationAdvertisement) (types.StationAssignment, error)
}

// Gossip is the outbound mesh surface.
type Gossip interface {
	PublishAdvertise(ad *types.StationAdvertisement)
	PublishRelease(rel *types.ReleaseRequest)
}

// Publisher signs and emits this node's advertisements on a heartbeat.
type Publisher struct {
	station Station
	priv    ed25519.PrivateKey
	pubB64  string

	reg    Registry
	gossip Gossip

	interval time.Duration
	now      func() time.Time
	log      *slog.Logger
}

// New builds a publisher. The heartbeat interval is TTL/2, floored at 10s,
// so two heartbeats always fit inside one TTL window.
func New(station Station, priv ed25519.PrivateKey, reg Registry, gossip Gossip) *Publisher {
	interval := time.Duration(station.TTLSeconds) * time.Second / 2
	if interval < minHeartbeat {
		interval = minHeartbeat
	}
	return &Publisher{
		station:  station,
		priv:     priv,
		pubB64:   crypto.EncodePublicKeyB64(priv.Public().(ed25519.PublicKey)),
		reg:      reg,
		gossip:   gossip,
		interval: interval,
		now:      time.Now,
		log: logger.WithStation(logger.Logger().With("component", "publisher"),
			station.ID.String(), station.Frequency.Key()),
	}
}

// Interval reports the heartbeat period.
func (p *Publisher) Interval() time.Duration { return p.interval }

// OwnerPublicKey returns the base64 owner key this publisher signs under.
func (p *Publisher) OwnerPublicKey() string { return p.pubB64 }

// Run advertises immediately, then on every heartbeat tick, until ctx is
// cancelled. On cancellation a signed release is sent so peers drop the
// frequency without waiting out the TTL.
func (p *Publisher) Run(ctx context.Context) {
	p.Advertise()
	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			p.Release("shutdown")
			return
		case <-ticker.C:
			p.Advertise()
		}
	}
}

// Advertise signs one fresh advertisement, applies it locally, and gossips
// it on success. A rejection (conflict, owner mismatch, cap) is logged and
// retried at the next heartbeat; the competing claim may expire by then.
func (p *Publisher) Advertise() {
	ad := p.buildAdvertisement()
	if _, err := p.reg.AcceptAdvertisement(ad); err != nil {
		if errors.IsReject(err) {
			p.log.Warn("advertisement rejected, will retry", "error", err)
		} else {
			p.log.Error("advertisement failed", "error", err)
		}
		return
	}
	p.gossip.PublishAdvertise(ad)
	p.log.Debug("advertised", "message_id", ad.MessageID.String(), "ttl_seconds", ad.TTLSeconds)
}

// Release signs and sends a revocation for this station's frequency.
func (p *Publisher) Release(reason string) {
	key := p.station.Frequency.Key()
	msg := crypto.CanonicalReleaseBytes(crypto.NamespaceRelease, key, p.station.ID.String())
	rel := &types.ReleaseRequest{
		StationID: p.station.ID,
		Frequency: p.station.Frequency,
		Reason:    reason,
		Signature: crypto.EncodeSignatureB64(crypto.Sign(p.priv, msg)),
	}
	p.gossip.PublishRelease(rel)
	p.log.Info("released frequency", "reason", reason)
}

func (p *Publisher) buildAdvertisement() *types.StationAdvertisement {
	at := p.now()
	key := p.station.Frequency.Key()
	msg := crypto.CanonicalAdBytes(crypto.NamespaceAdvertise, key, p.station.ID.String(),
		p.station.StreamURL, types.Timestamp(at), p.station.TTLSeconds)
	return &types.StationAdvertisement{
		MessageID:      uuid.New(),
		StationID:      p.station.ID,
		Frequency:      p.station.Frequency,
		Name:           p.station.Name,
		StreamURL:      p.station.StreamURL,
		AdvertisedAt:   at,
		TTLSeconds:     p.station.TTLSeconds,
		OwnerPublicKey: p.pubB64,
		Signature:      crypto.EncodeSignatureB64(crypto.Sign(p.priv, msg)),
	}
}
