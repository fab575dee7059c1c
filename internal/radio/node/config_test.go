package node

import (
	"crypto/ed25519"
	"crypto/rand"
	"encoding/base64"
	"os"
	"path/filepath"
	"testing"
)

func TestDefaultsAndFloors(t *testing.T) {
	var c Config
	c.applyDefaults()
	if c.Bind != ":8080" {
		t.Fatalf("bind = %q", c.Bind)
	}
	if c.AdvertiseTTLSecs != 60 {
		t.Fatalf("ttl = %d", c.AdvertiseTTLSecs)
	}
	if c.MaxFrequenciesPerOwner != 3 {
		t.Fatalf("owner cap = %d", c.MaxFrequenciesPerOwner)
	}
	if c.BlocklistRefreshSecs != 600 {
		t.Fatalf("refresh = %d", c.BlocklistRefreshSecs)
	}

	c = Config{AdvertiseTTLSecs: 3, BlocklistRefreshSecs: 5}
	c.applyDefaults()
	if c.AdvertiseTTLSecs != 10 {
		t.Fatalf("ttl floor: %d", c.AdvertiseTTLSecs)
	}
	if c.BlocklistRefreshSecs != 30 {
		t.Fatalf("refresh floor: %d", c.BlocklistRefreshSecs)
	}
}

func TestMDNSDefaultsOn(t *testing.T) {
	var c Config
	if !c.MDNSEnabled() {
		t.Fatalf("mdns must default to enabled")
	}
	off := false
	c.EnableMDNS = &off
	if c.MDNSEnabled() {
		t.Fatalf("explicit false must disable mdns")
	}
}

func TestStreamURLDerivation(t *testing.T) {
	c := Config{PublicURL: "http://radio.example/"}
	if got := c.StreamURL(); got != "http://radio.example/stream" {
		t.Fatalf("stream url = %q", got)
	}
	c.PublicURL = "http://radio.example"
	if got := c.StreamURL(); got != "http://radio.example/stream" {
		t.Fatalf("stream url = %q", got)
	}
}

func TestResolveGeneratesEphemeralIdentity(t *testing.T) {
	c := Config{Station: StationConfig{Name: "Jazz", Frequency: "100.5"}}
	r, err := c.resolve()
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	if r.hasOwner {
		t.Fatalf("no configured key must mean ephemeral identity")
	}
	if len(r.ownerKey) != ed25519.PrivateKeySize {
		t.Fatalf("owner key size = %d", len(r.ownerKey))
	}
	if r.frequency.Key() != "100.5" {
		t.Fatalf("frequency = %q", r.frequency.Key())
	}
	if r.stationID.String() == "00000000-0000-0000-0000-000000000000" {
		t.Fatalf("station id must be generated")
	}
}

func TestResolveUsesConfiguredOwnerKey(t *testing.T) {
	seed := make([]byte, ed25519.SeedSize)
	if _, err := rand.Read(seed); err != nil {
		t.Fatalf("seed: %v", err)
	}
	c := Config{OwnerSecretKey: base64.StdEncoding.EncodeToString(seed)}
	r, err := c.resolve()
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	if !r.hasOwner {
		t.Fatalf("configured key must be marked persistent")
	}
	want := ed25519.NewKeyFromSeed(seed)
	if !want.Equal(r.ownerKey) {
		t.Fatalf("owner key does not match configured seed")
	}
}

func TestResolveRejectsBadIdentity(t *testing.T) {
	for _, c := range []Config{
		{NodeID: "not-a-uuid"},
		{Station: StationConfig{Name: "Jazz"}}, // name without frequency
		{Station: StationConfig{Frequency: "garbage"}},
		{Station: StationConfig{Frequency: "100.5", StationID: "nope"}},
		{OwnerSecretKey: "%%%"},
	} {
		if _, err := c.resolve(); err == nil {
			t.Fatalf("config %+v must fail to resolve", c)
		}
	}
}

func TestLoadConfigFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "node.yaml")
	body := `
bind: ":9000"
public_url: "http://radio.example"
source_token: "hunter2"
station:
  name: "Night Jazz"
  frequency: "101.9"
advertise_ttl_secs: 120
enable_mdns: false
p2p_bootstrap:
  - "/ip4/203.0.113.1/tcp/4001/p2p/12D3KooWExample"
`
	if err := os.WriteFile(path, []byte(body), 0o600); err != nil {
		t.Fatalf("write: %v", err)
	}
	cfg, err := LoadConfigFile(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Bind != ":9000" || cfg.SourceToken != "hunter2" {
		t.Fatalf("cfg = %+v", cfg)
	}
	if cfg.Station.Frequency != "101.9" || cfg.Station.Name != "Night Jazz" {
		t.Fatalf("station = %+v", cfg.Station)
	}
	if cfg.AdvertiseTTLSecs != 120 {
		t.Fatalf("ttl = %d", cfg.AdvertiseTTLSecs)
	}
	if cfg.MDNSEnabled() {
		t.Fatalf("enable_mdns: false must stick")
	}
	if len(cfg.P2PBootstrap) != 1 {
		t.Fatalf("bootstrap = %v", cfg.P2PBootstrap)
	}
}
