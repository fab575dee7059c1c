// Package node assembles the whole radio node: registry, gossip mesh,
// publisher heartbeat, HTTP and IPC surfaces, blocklist fetcher, and the
// expiry sweeper, with one lifecycle for all of them.
package node

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/shortwave/go-shortwave/internal/logger"
	"github.com/shortwave/go-shortwave/internal/radio/blocklist"
	"github.com/shortwave/go-shortwave/internal/radio/gossip"
	"github.com/shortwave/go-shortwave/internal/radio/httpapi"
	"github.com/shortwave/go-shortwave/internal/radio/hub"
	"github.com/shortwave/go-shortwave/internal/radio/ipc"
	"github.com/shortwave/go-shortwave/internal/radio/nowplaying"
	"github.com/shortwave/go-shortwave/internal/radio/peers"
	"github.com/shortwave/go-shortwave/internal/radio/publisher"
	"github.com/shortwave/go-shortwave/internal/radio/registry"
	"github.com/shortwave/go-shortwave/internal/radio/types"
)

// AudioBufferSize is the audio hub capacity (chunks, not bytes).
const AudioBufferSize = 256

// shutdownTimeout bounds the HTTP drain on stop.
const shutdownTimeout = 5 * time.Second

// releaseGrace bounds how long shutdown waits for the goodbye release (and
// anything else still queued) to reach the mesh.
const releaseGrace = 2 * time.Second

// Node is a fully wired shortwave node.
type Node struct {
	cfg Config
	res resolved
	log *slog.Logger

	registry   *registry.Registry
	nowPlaying *nowplaying.Store
	audio      *hub.Hub[[]byte]
	blocklist  *blocklist.Store
	peers      *peers.Directory

	http      *httpapi.Server
	sweeper   *registry.Sweeper
	fetcher   *blocklist.Fetcher
	publisher *publisher.Publisher
	ipcNow    *ipc.Listener
	ipcAudio  *ipc.Listener

	version string
}

// New validates cfg and builds every component. Nothing touches the network
// until Run.
func New(cfg Config, version string) (*Node, error) {
	res, err := cfg.resolve()
	if err != nil {
		return nil, fmt.Errorf("config: %w", err)
	}

	n := &Node{
		cfg:        cfg,
		res:        res,
		log:        logger.Logger().With("component", "node", "node_id", res.nodeID.String()),
		registry:   registry.New(registry.Config{MaxFrequenciesPerOwner: cfg.MaxFrequenciesPerOwner}),
		nowPlaying: nowplaying.NewStore(),
		audio:      hub.New[[]byte](AudioBufferSize),
		blocklist:  blocklist.NewStore(),
		peers:      peers.NewDirectory(),
		version:    version,
	}

	for _, url := range cfg.Peers {
		n.peers.Upsert(types.PeerInfo{APIBaseURL: url, LastSeen: time.Now()})
	}

	n.http = httpapi.New(httpapi.Config{ListenAddr: cfg.Bind}, httpapi.Deps{
		Node: types.NodeInfo{
			NodeID:     res.nodeID,
			APIBaseURL: cfg.PublicURL,
			Version:    version,
		},
		Registry:    n.registry,
		NowPlaying:  n.nowPlaying,
		Audio:       n.audio,
		Blocklist:   n.blocklist,
		Peers:       n.peers,
		SourceToken: cfg.SourceToken,
	})

	n.sweeper = registry.NewSweeper(n.registry, registry.SweepInterval)
	if cfg.BlocklistURL != "" {
		n.fetcher = blocklist.NewFetcher(n.blocklist, cfg.BlocklistURL, cfg.BlocklistRefresh())
	}
	if cfg.NowPlayingSocket != "" {
		n.ipcNow = ipc.NewNowPlayingListener(cfg.NowPlayingSocket, n.nowPlaying)
	}
	if cfg.AudioSocket != "" {
		n.ipcAudio = ipc.NewAudioListener(cfg.AudioSocket, n.audio)
	}
	return n, nil
}

// Registry exposes the registry for tests and embedding callers.
func (n *Node) Registry() *registry.Registry { return n.registry }

// HTTPAddr returns the bound HTTP address once Run has started serving.
func (n *Node) HTTPAddr() string { return n.http.Addr() }

// Run starts every worker and blocks until ctx is cancelled, then tears
// down in reverse dependency order. Startup errors are fatal and returned
// before any serving begins.
func (n *Node) Run(ctx context.Context) error {
	// runCtx is not derived from ctx: the workers must stay up briefly after
	// the shutdown signal so the publisher's goodbye release can still be
	// gossiped on a live transport.
	runCtx, cancel := context.WithCancel(context.Background())
	defer cancel()

	transport, err := gossip.NewTransport(runCtx, gossip.TransportConfig{
		ListenAddrs: n.cfg.P2PListenAddrs,
		Bootstrap:   n.cfg.P2PBootstrap,
		EnableMDNS:  n.cfg.MDNSEnabled(),
		KeyPath:     n.cfg.P2PKeyPath,
	})
	if err != nil {
		return err
	}
	defer transport.Close()

	adapter := gossip.NewAdapter(n.registry, transport)
	go adapter.Run(runCtx)
	transport.Run(runCtx, adapter.HandleInbound)

	go n.sweeper.Run(runCtx)
	if n.fetcher != nil {
		go n.fetcher.Run(runCtx)
	}

	if n.ipcNow != nil {
		if err := n.ipcNow.Start(runCtx); err != nil {
			return err
		}
	}
	if n.ipcAudio != nil {
		if err := n.ipcAudio.Start(runCtx); err != nil {
			return err
		}
	}

	pubCtx, pubCancel := context.WithCancel(runCtx)
	defer pubCancel()
	pubDone := make(chan struct{})
	if n.cfg.StationConfigured() {
		n.publisher = publisher.New(publisher.Station{
			ID:         n.res.stationID,
			Frequency:  n.res.frequency,
			Name:       n.cfg.Station.Name,
			StreamURL:  n.cfg.StreamURL(),
			TTLSeconds: n.cfg.AdvertiseTTLSecs,
		}, n.res.ownerKey, n.registry, adapter)
		go func() {
			defer close(pubDone)
			n.publisher.Run(pubCtx)
		}()
		n.log.Info("station configured",
			"station_id", n.res.stationID.String(),
			"frequency", n.res.frequency.Key(),
			"persistent_owner", n.res.hasOwner)
	} else {
		close(pubDone)
	}

	if err := n.http.Start(); err != nil {
		return err
	}
	n.log.Info("node running", "http", n.http.Addr(), "peer_id", transport.ID().String())

	<-ctx.Done()
	n.log.Info("shutting down")

	// Stop the publisher first so its goodbye release lands in the outbound
	// queue, then flush the queue while the transport is still up.
	pubCancel()
	<-pubDone
	drainCtx, drainCancel := context.WithTimeout(context.Background(), releaseGrace)
	adapter.Drain(drainCtx)
	drainCancel()

	stopCtx, stopCancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer stopCancel()
	if err := n.http.Stop(stopCtx); err != nil {
		n.log.Warn("http shutdown incomplete", "error", err)
	}
	if n.ipcNow != nil {
		n.ipcNow.Close()
	}
	if n.ipcAudio != nil {
		n.ipcAudio.Close()
	}
	return nil
}
