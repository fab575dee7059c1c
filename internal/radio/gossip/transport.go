package gossip

import (
	"context"
	"crypto/ed25519"
	"crypto/rand"
	"encoding/base64"
	"fmt"
	"log/slog"
	"os"
	"strings"

	"github.com/libp2p/go-libp2p"
	pubsub "github.com/libp2p/go-libp2p-pubsub"
	p2pcrypto "github.com/libp2p/go-libp2p/core/crypto"
	"github.com/libp2p/go-libp2p/core/host"
	"github.com/libp2p/go-libp2p/core/peer"
	"github.com/libp2p/go-libp2p/p2p/discovery/mdns"
	ma "github.com/multiformats/go-multiaddr"

	"github.com/shortwave/go-shortwave/internal/logger"
)

// mdnsServiceTag names the local-network discovery service.
const mdnsServiceTag = "shortwave"

// maxGossipMessageSize bounds one pubsub message (an advertisement envelope
// is well under 1 KiB; the headroom covers long names and URLs).
const maxGossipMessageSize = 128 * 1024

// TransportConfig configures the libp2p mesh.
type TransportConfig struct {
	ListenAddrs []string // multiaddrs; empty means /ip4/0.0.0.0/tcp/0
	Bootstrap   []string // peer multiaddrs to dial at startup
	EnableMDNS  bool
	KeyPath     string // persistent identity key; empty means ephemeral
}

// Transport is the gossipsub mesh connection: one host, two topics.
type Transport struct {
	host   host.Host
	ps     *pubsub.PubSub
	topics map[string]*pubsub.Topic
	subs   map[string]*pubsub.Subscription
	mdns   mdns.Service
	log    *slog.Logger
}

// LoadOrCreateIdentity resolves the node's libp2p key. An existing file may
// be a protobuf-encoded keypair (preferred) or a raw 32-byte Ed25519 secret,
// optionally base64-encoded in text form. A missing file is created with a
// fresh protobuf-encoded key so the peer ID is stable across restarts.
func LoadOrCreateIdentity(path string) (p2pcrypto.PrivKey, error) {
	if path == "" {
		priv, _, err := p2pcrypto.GenerateEd25519Key(rand.Reader)
		return priv, err
	}
	raw, err := os.ReadFile(path)
	if err == nil {
		if key, perr := p2pcrypto.UnmarshalPrivateKey(raw); perr == nil {
			return key, nil
		}
		seed := raw
		if len(seed) != ed25519.SeedSize {
			if dec, derr := base64.StdEncoding.DecodeString(strings.TrimSpace(string(raw))); derr == nil {
				seed = dec
			}
		}
		if len(seed) != ed25519.SeedSize {
			return nil, fmt.Errorf("p2p key file %s: expect protobuf keypair or 32-byte ed25519 secret", path)
		}
		return p2pcrypto.UnmarshalEd25519PrivateKey(ed25519.NewKeyFromSeed(seed))
	}

	priv, _, err := p2pcrypto.GenerateEd25519Key(rand.Reader)
	if err != nil {
		return nil, err
	}
	if data, merr := p2pcrypto.MarshalPrivateKey(priv); merr == nil {
		// Best effort; an unwritable path just means a fresh identity next run.
		_ = os.WriteFile(path, data, 0o600)
	}
	return priv, nil
}

// NewTransport builds the host, joins both topics, and kicks off discovery.
func NewTransport(ctx context.Context, cfg TransportConfig) (*Transport, error) {
	log := logger.Logger().With("component", "p2p")

	key, err := LoadOrCreateIdentity(cfg.KeyPath)
	if err != nil {
		return nil, fmt.Errorf("p2p identity: %w", err)
	}

	opts := []libp2p.Option{libp2p.Identity(key)}
	if len(cfg.ListenAddrs) == 0 {
		opts = append(opts, libp2p.ListenAddrStrings("/ip4/0.0.0.0/tcp/0"))
	} else {
		var addrs []ma.Multiaddr
		for _, s := range cfg.ListenAddrs {
			addr, aerr := ma.NewMultiaddr(s)
			if aerr != nil {
				log.Warn("invalid listen multiaddr", "addr", s, "error", aerr)
				continue
			}
			addrs = append(addrs, addr)
		}
		opts = append(opts, libp2p.ListenAddrs(addrs...))
	}

	h, err := libp2p.New(opts...)
	if err != nil {
		return nil, fmt.Errorf("libp2p host: %w", err)
	}
	log.Info("libp2p starting", "peer_id", h.ID().String())

	ps, err := pubsub.NewGossipSub(ctx, h, pubsub.WithMaxMessageSize(maxGossipMessageSize))
	if err != nil {
		_ = h.Close()
		return nil, fmt.Errorf("gossipsub: %w", err)
	}

	t := &Transport{
		host:   h,
		ps:     ps,
		topics: make(map[string]*pubsub.Topic),
		subs:   make(map[string]*pubsub.Subscription),
		log:    log,
	}
	for _, name := range []string{TopicAdvertise, TopicRelease} {
		topic, terr := ps.Join(name)
		if terr != nil {
			_ = h.Close()
			return nil, fmt.Errorf("join %s: %w", name, terr)
		}
		sub, serr := topic.Subscribe()
		if serr != nil {
			_ = h.Close()
			return nil, fmt.Errorf("subscribe %s: %w", name, serr)
		}
		t.topics[name] = topic
		t.subs[name] = sub
	}

	if cfg.EnableMDNS {
		svc := mdns.NewMdnsService(h, mdnsServiceTag, &mdnsNotifee{h: h, log: log})
		if err := svc.Start(); err != nil {
			log.Warn("mdns start failed", "error", err)
		} else {
			t.mdns = svc
		}
	}

	for _, b := range cfg.Bootstrap {
		info, berr := peer.AddrInfoFromString(b)
		if berr != nil {
			log.Warn("invalid bootstrap multiaddr", "addr", b, "error", berr)
			continue
		}
		go func(info peer.AddrInfo) {
			if cerr := h.Connect(ctx, info); cerr != nil {
				log.Warn("bootstrap dial failed", "peer", info.ID.String(), "error", cerr)
			}
		}(*info)
	}

	return t, nil
}

// ID returns the local peer ID.
func (t *Transport) ID() peer.ID { return t.host.ID() }

// Publish sends data on the named topic.
func (t *Transport) Publish(ctx context.Context, topic string, data []byte) error {
	tp, ok := t.topics[topic]
	if !ok {
		return fmt.Errorf("unknown topic %q", topic)
	}
	return tp.Publish(ctx, data)
}

// Run pumps received messages into handle until ctx is cancelled.
// Self-originated messages are skipped; remote duplicates are handled by the
// registry's message-id dedup.
func (t *Transport) Run(ctx context.Context, handle func(topic string, data []byte)) {
	self := t.host.ID()
	for name, sub := range t.subs {
		go func(name string, sub *pubsub.Subscription) {
			for {
				msg, err := sub.Next(ctx)
				if err != nil {
					return // context cancelled or subscription closed
				}
				if msg.ReceivedFrom == self {
					continue
				}
				handle(name, msg.Data)
			}
		}(name, sub)
	}
}

// Close tears down discovery and the host.
func (t *Transport) Close() error {
	if t.mdns != nil {
		_ = t.mdns.Close()
	}
	for _, sub := range t.subs {
		sub.Cancel()
	}
	return t.host.Close()
}

// mdnsNotifee dials every locally-discovered peer.
type mdnsNotifee struct {
	h   host.Host
	log *slog.Logger
}

func (n *mdnsNotifee) HandlePeerFound(info peer.AddrInfo) {
	if info.ID == n.h.ID() {
		return
	}
	if err := n.h.Connect(context.Background(), info); err != nil {
		n.log.Debug("mdns dial failed", "peer", info.ID.String(), "error", err)
	}
}
