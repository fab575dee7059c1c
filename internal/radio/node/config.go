package node

import (
	"crypto/ed25519"
	"crypto/rand"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/google/uuid"
	"gopkg.in/yaml.v3"

	"github.com/shortwave/go-shortwave/internal/radio/crypto"
	"github.com/shortwave/go-shortwave/internal/radio/freq"
)

// Defaults and floors for the tunable knobs.
const (
	DefaultBind             = ":8080"
	DefaultAdvertiseTTL     = 60
	MinAdvertiseTTL         = 10
	DefaultOwnerCap         = 3
	MinOwnerCap             = 1
	DefaultBlocklistRefresh = 600
	MinBlocklistRefresh     = 30
)

// StationConfig names the frequency claim this node broadcasts.
type StationConfig struct {
	Name      string `yaml:"name"`
	Frequency string `yaml:"frequency"`
	StationID string `yaml:"station_id"` // UUID; random if absent
}

// Config is the full node configuration. Zero values take documented
// defaults; floors are clamped up rather than rejected.
type Config struct {
	NodeID      string        `yaml:"node_id"` // UUID; random if absent
	Bind        string        `yaml:"bind"`
	PublicURL   string        `yaml:"public_url"`
	Peers       []string      `yaml:"peers"` // initial peer directory (API base URLs)
	SourceToken string        `yaml:"source_token"`
	Station     StationConfig `yaml:"station"`

	AdvertiseTTLSecs       uint32 `yaml:"advertise_ttl_secs"`
	OwnerSecretKey         string `yaml:"owner_secret_key"` // base64 32-byte seed; absent = ephemeral
	MaxFrequenciesPerOwner uint32 `yaml:"max_frequencies_per_owner"`

	NowPlayingSocket string `yaml:"now_playing_socket"`
	AudioSocket      string `yaml:"audio_socket"`

	BlocklistURL         string `yaml:"blocklist_url"`
	BlocklistRefreshSecs uint32 `yaml:"blocklist_refresh_secs"`

	P2PListenAddrs []string `yaml:"p2p_listen_addrs"`
	P2PBootstrap   []string `yaml:"p2p_bootstrap"`
	EnableMDNS     *bool    `yaml:"enable_mdns"` // default true
	P2PKeyPath     string   `yaml:"p2p_key_path"`

	LogLevel string `yaml:"log_level"`
}

// LoadConfigFile parses a YAML config file.
func LoadConfigFile(path string) (Config, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return Config{}, fmt.Errorf("read config %s: %w", path, err)
	}
	var cfg Config
	if err := yaml.Unmarshal(raw, &cfg); err != nil {
		return Config{}, fmt.Errorf("parse config %s: %w", path, err)
	}
	return cfg, nil
}

func (c *Config) applyDefaults() {
	if c.Bind == "" {
		c.Bind = DefaultBind
	}
	if c.AdvertiseTTLSecs == 0 {
		c.AdvertiseTTLSecs = DefaultAdvertiseTTL
	}
	if c.AdvertiseTTLSecs < MinAdvertiseTTL {
		c.AdvertiseTTLSecs = MinAdvertiseTTL
	}
	if c.MaxFrequenciesPerOwner == 0 {
		c.MaxFrequenciesPerOwner = DefaultOwnerCap
	}
	if c.MaxFrequenciesPerOwner < MinOwnerCap {
		c.MaxFrequenciesPerOwner = MinOwnerCap
	}
	if c.BlocklistRefreshSecs == 0 {
		c.BlocklistRefreshSecs = DefaultBlocklistRefresh
	}
	if c.BlocklistRefreshSecs < MinBlocklistRefresh {
		c.BlocklistRefreshSecs = MinBlocklistRefresh
	}
}

// MDNSEnabled resolves the tri-state toggle; absent means on.
func (c *Config) MDNSEnabled() bool {
	return c.EnableMDNS == nil || *c.EnableMDNS
}

// BlocklistRefresh returns the refresh period as a duration.
func (c *Config) BlocklistRefresh() time.Duration {
	return time.Duration(c.BlocklistRefreshSecs) * time.Second
}

// StreamURL derives the public stream endpoint from public_url.
func (c *Config) StreamURL() string {
	return strings.TrimRight(c.PublicURL, "/") + "/stream"
}

// resolved carries the parsed, validated form of a Config.
type resolved struct {
	nodeID    uuid.UUID
	stationID uuid.UUID
	frequency freq.Decimal
	ownerKey  ed25519.PrivateKey
	hasOwner  bool // ownerKey came from config rather than generated
}

// resolve validates and materializes the identity fields. Station frequency
// is required only when a station is configured at all (name or frequency
// set); a registry-only relay node runs without one.
func (c *Config) resolve() (resolved, error) {
	c.applyDefaults()
	var r resolved

	if c.NodeID == "" {
		r.nodeID = uuid.New()
	} else {
		id, err := uuid.Parse(c.NodeID)
		if err != nil {
			return r, fmt.Errorf("node_id: %w", err)
		}
		r.nodeID = id
	}

	if c.StationConfigured() {
		if c.Station.Frequency == "" {
			return r, fmt.Errorf("station.frequency is required when a station is configured")
		}
		f, err := freq.Parse(c.Station.Frequency)
		if err != nil {
			return r, fmt.Errorf("station.frequency: %w", err)
		}
		r.frequency = f

		if c.Station.StationID == "" {
			r.stationID = uuid.New()
		} else {
			id, err := uuid.Parse(c.Station.StationID)
			if err != nil {
				return r, fmt.Errorf("station.station_id: %w", err)
			}
			r.stationID = id
		}
	}

	if c.OwnerSecretKey != "" {
		key, err := crypto.ParseSecretKeyB64(c.OwnerSecretKey)
		if err != nil {
			return r, fmt.Errorf("owner_secret_key: %w", err)
		}
		r.ownerKey = key
		r.hasOwner = true
	} else {
		// Ephemeral identity: a restart rotates ownership and the old
		// claims age out via TTL.
		_, key, err := ed25519.GenerateKey(rand.Reader)
		if err != nil {
			return r, fmt.Errorf("generate owner key: %w", err)
		}
		r.ownerKey = key
	}

	return r, nil
}

// StationConfigured reports whether this node advertises a station.
func (c *Config) StationConfigured() bool {
	return c.Station.Name != "" || c.Station.Frequency != ""
}
