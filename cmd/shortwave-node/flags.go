package main

import (
	"flag"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/shortwave/go-shortwave/internal/radio/node"
)

// version is injected at build time with -ldflags "-X main.version=...". Defaults to dev.
var version = "dev"

// cliConfig holds user supplied flag values prior to merging into node.Config.
type cliConfig struct {
	configPath  string
	showVersion bool
	logLevel    string
	node        node.Config
}

// parseFlags merges the three configuration sources. Precedence, lowest
// first: YAML config file, SHORTWAVE_* environment variables, command-line
// flags.
func parseFlags(args []string) (*cliConfig, error) {
	fs := flag.NewFlagSet("shortwave-node", flag.ContinueOnError)
	fs.SetOutput(os.Stdout)

	cfg := &cliConfig{}
	var flagCfg node.Config
	var peerURLs, p2pListen, p2pBootstrap stringSliceFlag
	var mdns bool

	fs.StringVar(&cfg.configPath, "config", "", "Path to YAML config file")
	fs.BoolVar(&cfg.showVersion, "version", false, "Print version and exit")
	fs.StringVar(&cfg.logLevel, "log-level", "", "Log level: debug|info|warn|error")

	fs.StringVar(&flagCfg.NodeID, "node-id", "", "Node UUID (random if absent)")
	fs.StringVar(&flagCfg.Bind, "bind", "", "HTTP listen address (default :8080)")
	fs.StringVar(&flagCfg.PublicURL, "public-url", "", "Public base URL of this node's API")
	fs.Var(&peerURLs, "peer", "Peer API base URL (can be specified multiple times)")
	fs.StringVar(&flagCfg.SourceToken, "source-token", "", "Bearer token required by PUT /api/v1/source")
	fs.StringVar(&flagCfg.Station.Name, "station-name", "", "Station display name")
	fs.StringVar(&flagCfg.Station.Frequency, "station-frequency", "", "Frequency to claim (decimal string)")
	fs.StringVar(&flagCfg.Station.StationID, "station-id", "", "Station UUID (random if absent)")
	ttl := fs.Uint("advertise-ttl", 0, "Advertisement TTL in seconds (min 10, default 60)")
	fs.StringVar(&flagCfg.OwnerSecretKey, "owner-key", "", "Base64 Ed25519 seed for the owner identity (ephemeral if absent)")
	maxOwned := fs.Uint("max-owned", 0, "Max frequencies per owner key (min 1, default 3)")
	fs.StringVar(&flagCfg.NowPlayingSocket, "now-socket", "", "Unix socket path for now-playing metadata")
	fs.StringVar(&flagCfg.AudioSocket, "audio-socket", "", "Unix socket path for raw audio ingest")
	fs.StringVar(&flagCfg.BlocklistURL, "blocklist-url", "", "URL of the IP blocklist to fetch")
	blRefresh := fs.Uint("blocklist-refresh", 0, "Blocklist refresh period in seconds (min 30, default 600)")
	fs.Var(&p2pListen, "p2p-listen", "libp2p listen multiaddr (can be specified multiple times)")
	fs.Var(&p2pBootstrap, "bootstrap", "Bootstrap peer multiaddr (can be specified multiple times)")
	fs.BoolVar(&mdns, "mdns", true, "Enable mDNS local peer discovery")
	fs.StringVar(&flagCfg.P2PKeyPath, "p2p-key", "", "Path to the libp2p identity key file")

	if err := fs.Parse(args); err != nil {
		return nil, err
	}

	// Base layer: config file.
	if cfg.configPath != "" {
		fileCfg, err := node.LoadConfigFile(cfg.configPath)
		if err != nil {
			return nil, err
		}
		cfg.node = fileCfg
	}

	// Middle layer: environment.
	applyEnv(&cfg.node)

	// Top layer: only flags the user actually set.
	flagCfg.AdvertiseTTLSecs = uint32(*ttl)
	flagCfg.MaxFrequenciesPerOwner = uint32(*maxOwned)
	flagCfg.BlocklistRefreshSecs = uint32(*blRefresh)
	flagCfg.Peers = peerURLs
	flagCfg.P2PListenAddrs = p2pListen
	flagCfg.P2PBootstrap = p2pBootstrap
	set := map[string]bool{}
	fs.Visit(func(f *flag.Flag) { set[f.Name] = true })
	applyFlags(&cfg.node, &flagCfg, set, mdns)

	if cfg.logLevel != "" {
		switch cfg.logLevel {
		case "debug", "info", "warn", "error":
		default:
			return nil, fmt.Errorf("invalid log-level %q", cfg.logLevel)
		}
		cfg.node.LogLevel = cfg.logLevel
	}
	return cfg, nil
}

func applyFlags(dst, src *node.Config, set map[string]bool, mdns bool) {
	if set["node-id"] {
		dst.NodeID = src.NodeID
	}
	if set["bind"] {
		dst.Bind = src.Bind
	}
	if set["public-url"] {
		dst.PublicURL = src.PublicURL
	}
	if set["peer"] {
		dst.Peers = src.Peers
	}
	if set["source-token"] {
		dst.SourceToken = src.SourceToken
	}
	if set["station-name"] {
		dst.Station.Name = src.Station.Name
	}
	if set["station-frequency"] {
		dst.Station.Frequency = src.Station.Frequency
	}
	if set["station-id"] {
		dst.Station.StationID = src.Station.StationID
	}
	if set["advertise-ttl"] {
		dst.AdvertiseTTLSecs = src.AdvertiseTTLSecs
	}
	if set["owner-key"] {
		dst.OwnerSecretKey = src.OwnerSecretKey
	}
	if set["max-owned"] {
		dst.MaxFrequenciesPerOwner = src.MaxFrequenciesPerOwner
	}
	if set["now-socket"] {
		dst.NowPlayingSocket = src.NowPlayingSocket
	}
	if set["audio-socket"] {
		dst.AudioSocket = src.AudioSocket
	}
	if set["blocklist-url"] {
		dst.BlocklistURL = src.BlocklistURL
	}
	if set["blocklist-refresh"] {
		dst.BlocklistRefreshSecs = src.BlocklistRefreshSecs
	}
	if set["p2p-listen"] {
		dst.P2PListenAddrs = src.P2PListenAddrs
	}
	if set["bootstrap"] {
		dst.P2PBootstrap = src.P2PBootstrap
	}
	if set["mdns"] {
		v := mdns
		dst.EnableMDNS = &v
	}
	if set["p2p-key"] {
		dst.P2PKeyPath = src.P2PKeyPath
	}
}

// applyEnv overlays SHORTWAVE_* variables onto cfg. List-valued variables
// are comma separated.
func applyEnv(cfg *node.Config) {
	envString("SHORTWAVE_NODE_ID", &cfg.NodeID)
	envString("SHORTWAVE_BIND", &cfg.Bind)
	envString("SHORTWAVE_PUBLIC_URL", &cfg.PublicURL)
	envList("SHORTWAVE_PEERS", &cfg.Peers)
	envString("SHORTWAVE_SOURCE_TOKEN", &cfg.SourceToken)
	envString("SHORTWAVE_STATION_NAME", &cfg.Station.Name)
	envString("SHORTWAVE_STATION_FREQUENCY", &cfg.Station.Frequency)
	envString("SHORTWAVE_STATION_ID", &cfg.Station.StationID)
	envUint32("SHORTWAVE_ADVERTISE_TTL_SECS", &cfg.AdvertiseTTLSecs)
	envString("SHORTWAVE_OWNER_SECRET_KEY", &cfg.OwnerSecretKey)
	envUint32("SHORTWAVE_MAX_FREQUENCIES_PER_OWNER", &cfg.MaxFrequenciesPerOwner)
	envString("SHORTWAVE_NOW_PLAYING_SOCKET", &cfg.NowPlayingSocket)
	envString("SHORTWAVE_AUDIO_SOCKET", &cfg.AudioSocket)
	envString("SHORTWAVE_BLOCKLIST_URL", &cfg.BlocklistURL)
	envUint32("SHORTWAVE_BLOCKLIST_REFRESH_SECS", &cfg.BlocklistRefreshSecs)
	envList("SHORTWAVE_P2P_LISTEN", &cfg.P2PListenAddrs)
	envList("SHORTWAVE_P2P_BOOTSTRAP", &cfg.P2PBootstrap)
	envString("SHORTWAVE_P2P_KEY_PATH", &cfg.P2PKeyPath)
	if v, ok := os.LookupEnv("SHORTWAVE_ENABLE_MDNS"); ok {
		if b, err := strconv.ParseBool(v); err == nil {
			cfg.EnableMDNS = &b
		}
	}
}

func envString(name string, dst *string) {
	if v, ok := os.LookupEnv(name); ok && v != "" {
		*dst = v
	}
}

func envUint32(name string, dst *uint32) {
	if v, ok := os.LookupEnv(name); ok {
		if n, err := strconv.ParseUint(v, 10, 32); err == nil {
			*dst = uint32(n)
		}
	}
}

func envList(name string, dst *[]string) {
	if v, ok := os.LookupEnv(name); ok && v != "" {
		parts := strings.Split(v, ",")
		out := parts[:0]
		for _, p := range parts {
			if p = strings.TrimSpace(p); p != "" {
				out = append(out, p)
			}
		}
		*dst = out
	}
}

// stringSliceFlag implements flag.Value for multiple string values
type stringSliceFlag []string

func (s *stringSliceFlag) String() string {
	return strings.Join(*s, ", ")
}

func (s *stringSliceFlag) Set(value string) error {
	*s = append(*s, value)
	return nil
}
