package gossip

import (
	"context"
	"log/slog"

	"github.com/google/uuid"

	"github.com/shortwave/go-shortwave/internal/errors"
	"github.com/shortwave/go-shortwave/internal/logger"
	"github.com/shortwave/go-shortwave/internal/radio/types"
)

// OutboundQueueSize bounds the egress queue; a full queue drops with a log
// line (the next heartbeat re-advertises, so loss is tolerable).
const OutboundQueueSize = 128

// Registry is the subset of registry behavior the adapter dispatches into.
type Registry interface {
	AcceptAdvertisement(ad *types.StationAdvertisement) (types.StationAssignment, error)
	Release(frequencyKey string, stationID uuid.UUID, signatureB64 string) bool
}

// TopicPublisher publishes raw bytes on a named topic. Implemented by the
// libp2p transport; tests substitute a recorder.
type TopicPublisher interface {
	Publish(ctx context.Context, topic string, data []byte) error
}

type outbound struct {
	topic string
	data  []byte
}

// Adapter owns the bounded outbound queue and the inbound dispatch path.
type Adapter struct {
	reg Registry
	pub TopicPublisher
	out chan outbound
	log *slog.Logger
}

// NewAdapter wires a registry and a topic publisher together.
func NewAdapter(reg Registry, pub TopicPublisher) *Adapter {
	return &Adapter{
		reg: reg,
		pub: pub,
		out: make(chan outbound, OutboundQueueSize),
		log: logger.Logger().With("component", "gossip"),
	}
}

// PublishAdvertise enqueues ad for egress. Never blocks.
func (a *Adapter) PublishAdvertise(ad *types.StationAdvertisement) {
	data, err := EncodeAdvertise(ad)
	if err != nil {
		a.log.Warn("encode advertisement failed", "error", err)
		return
	}
	a.enqueue(TopicAdvertise, data)
}

// PublishRelease enqueues rel for egress. Never blocks.
func (a *Adapter) PublishRelease(rel *types.ReleaseRequest) {
	data, err := EncodeRelease(rel)
	if err != nil {
		a.log.Warn("encode release failed", "error", err)
		return
	}
	a.enqueue(TopicRelease, data)
}

func (a *Adapter) enqueue(topic string, data []byte) {
	select {
	case a.out <- outbound{topic: topic, data: data}:
	default:
		a.log.Warn("outbound gossip queue full, dropping", "topic", topic)
	}
}

// Run drains the outbound queue until ctx is cancelled. Publish failures
// are logged and never fatal; gossip is fire-and-forget.
func (a *Adapter) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case msg := <-a.out:
			if err := a.pub.Publish(ctx, msg.topic, msg.data); err != nil {
				a.log.Warn("gossip publish failed", "topic", msg.topic,
					"error", errors.NewTransportError("gossip.publish", err))
			}
		}
	}
}

// Drain publishes whatever is queued until the queue is empty or ctx
// expires. Called at shutdown after the last producer stopped, so the
// goodbye release actually reaches the mesh instead of dying in the queue.
func (a *Adapter) Drain(ctx context.Context) {
	for {
		if ctx.Err() != nil {
			return
		}
		select {
		case msg := <-a.out:
			if err := a.pub.Publish(ctx, msg.topic, msg.data); err != nil {
				a.log.Warn("gossip publish failed", "topic", msg.topic,
					"error", errors.NewTransportError("gossip.publish", err))
			}
		default:
			return
		}
	}
}

// HandleInbound decodes one received message and dispatches it. Results are
// discarded: the registry itself is authoritative for what to do, and a
// rejected or invalid remote message simply doesn't change local state.
func (a *Adapter) HandleInbound(topic string, data []byte) {
	msg, err := Decode(data)
	if err != nil {
		a.log.Debug("dropping undecodable gossip message", "topic", topic, "error", err)
		return
	}
	switch {
	case msg.Advertise != nil:
		if _, err := a.reg.AcceptAdvertisement(msg.Advertise); err != nil {
			if errors.IsSignature(err) || errors.IsInput(err) {
				a.log.Debug("dropping remote advertisement", "error", err)
			} else {
				a.log.Debug("remote advertisement rejected", "error", err)
			}
		}
	case msg.Release != nil:
		key := msg.Release.Frequency.Key()
		_ = a.reg.Release(key, msg.Release.StationID, msg.Release.Signature)
	}
}
