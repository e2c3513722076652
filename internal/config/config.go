package config

import (
	"errors"
	"fmt"
	"net"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Peer represents a peer node in the cluster.
type Peer struct {
	ID   string `yaml:"id"`
	Addr string `yaml:"addr"`
}

// ServerConfig holds gRPC server configuration
type ServerConfig struct {
	NodeID          string        `yaml:"node_id"`
	ListenAddr      string        `yaml:"listen_addr"`
	AdvertiseAddr   string        `yaml:"advertise_addr"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`
}

// AntiEntropyConfig holds periodic sync configuration
type AntiEntropyConfig struct {
	Enabled       bool          `yaml:"enabled"`
	Interval      time.Duration `yaml:"interval"`
	PeerTimeout   time.Duration `yaml:"peer_timeout"`
	RepairTimeout time.Duration `yaml:"repair_timeout"`
	Required      int           `yaml:"required"`
}

// DefaultGossipPort is the gossip port used when bind_port is not set.
const DefaultGossipPort = 7946

// GossipConfig holds gossip protocol configuration
type GossipConfig struct {
	Enabled          bool          `yaml:"enabled"`
	BindAddr         string        `yaml:"bind_addr"`
	BindPort         *int          `yaml:"bind_port"` // nil means 7946, 0 an ephemeral port
	SeedNodes        []string      `yaml:"seed_nodes"`
	GossipInterval   time.Duration `yaml:"gossip_interval"`
	ProbeInterval    time.Duration `yaml:"probe_interval"`
	ProbeTimeout     time.Duration `yaml:"probe_timeout"`
	PushPullInterval time.Duration `yaml:"push_pull_interval"`
}

// MetricsConfig holds metrics configuration
type MetricsConfig struct {
	Enabled    bool   `yaml:"enabled"`
	ListenAddr string `yaml:"listen_addr"`
}

// LoggingConfig holds logging configuration
type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// Config holds the node configuration.
type Config struct {
	Server      ServerConfig      `yaml:"server"`
	Peers       []Peer            `yaml:"peers"`
	AntiEntropy AntiEntropyConfig `yaml:"anti_entropy"`
	Gossip      GossipConfig      `yaml:"gossip"`
	Metrics     MetricsConfig     `yaml:"metrics"`
	Logging     LoggingConfig     `yaml:"logging"`
}

// LoadConfig loads configuration from a file
func LoadConfig(filePath string) (*Config, error) {
	data, err := os.ReadFile(filePath)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}
	return Parse(data)
}

// Parse decodes YAML configuration, applies defaults and validates it.
func Parse(data []byte) (*Config, error) {
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	SetDefaults(&cfg)

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return &cfg, nil
}

// SetDefaults sets default values for unspecified configuration
func SetDefaults(cfg *Config) {
	if cfg.Server.ListenAddr == "" {
		cfg.Server.ListenAddr = "127.0.0.1:7000"
	}
	if cfg.Server.AdvertiseAddr == "" {
		cfg.Server.AdvertiseAddr = cfg.Server.ListenAddr
	}
	if cfg.Server.ShutdownTimeout == 0 {
		cfg.Server.ShutdownTimeout = 10 * time.Second
	}

	if cfg.AntiEntropy.Interval == 0 {
		cfg.AntiEntropy.Interval = time.Second
	}
	if cfg.AntiEntropy.PeerTimeout == 0 {
		cfg.AntiEntropy.PeerTimeout = 2 * time.Second
	}
	if cfg.AntiEntropy.RepairTimeout == 0 {
		cfg.AntiEntropy.RepairTimeout = 2 * time.Second
	}

	if cfg.Gossip.BindAddr == "" {
		cfg.Gossip.BindAddr = "0.0.0.0"
	}
	if cfg.Gossip.BindPort == nil {
		port := DefaultGossipPort
		cfg.Gossip.BindPort = &port
	}
	if cfg.Gossip.GossipInterval == 0 {
		cfg.Gossip.GossipInterval = 200 * time.Millisecond
	}
	if cfg.Gossip.ProbeInterval == 0 {
		cfg.Gossip.ProbeInterval = time.Second
	}
	if cfg.Gossip.ProbeTimeout == 0 {
		cfg.Gossip.ProbeTimeout = 500 * time.Millisecond
	}
	if cfg.Gossip.PushPullInterval == 0 {
		cfg.Gossip.PushPullInterval = 30 * time.Second
	}

	if cfg.Metrics.ListenAddr == "" {
		cfg.Metrics.ListenAddr = "127.0.0.1:9100"
	}

	if cfg.Logging.Level == "" {
		cfg.Logging.Level = "info"
	}
	if cfg.Logging.Format == "" {
		cfg.Logging.Format = "json"
	}
}

// Validate validates the configuration
func (c *Config) Validate() error {
	if c.Server.NodeID == "" {
		return errors.New("server.node_id is required")
	}
	if _, _, err := net.SplitHostPort(c.Server.ListenAddr); err != nil {
		return fmt.Errorf("server.listen_addr: %w", err)
	}

	seen := make(map[string]bool, len(c.Peers))
	for i, p := range c.Peers {
		if p.ID == "" || p.Addr == "" {
			return fmt.Errorf("peers[%d]: id and addr are required", i)
		}
		if seen[p.ID] {
			return fmt.Errorf("peers[%d]: duplicate id %q", i, p.ID)
		}
		seen[p.ID] = true
	}

	if c.AntiEntropy.Required < 0 {
		return errors.New("anti_entropy.required cannot be negative")
	}
	if p := c.Gossip.BindPort; p != nil && (*p < 0 || *p > 65535) {
		return errors.New("gossip.bind_port must be between 0 and 65535")
	}

	switch c.Logging.Format {
	case "json", "console":
	default:
		return fmt.Errorf("logging.format must be json or console, got %q", c.Logging.Format)
	}
	return nil
}

// ParsePeers parses a comma-separated list of peers in the format:
// "id1=addr1,id2=addr2,id3=addr3"
func ParsePeers(peersStr string) ([]Peer, error) {
	if peersStr == "" {
		return []Peer{}, nil
	}

	parts := strings.Split(peersStr, ",")
	peers := make([]Peer, 0, len(parts))

	for _, part := range parts {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}

		kv := strings.SplitN(part, "=", 2)
		if len(kv) != 2 {
			return nil, fmt.Errorf("invalid peer format: %s (expected id=addr)", part)
		}

		id := strings.TrimSpace(kv[0])
		addr := strings.TrimSpace(kv[1])

		if id == "" || addr == "" {
			return nil, fmt.Errorf("peer ID and address cannot be empty: %s", part)
		}

		peers = append(peers, Peer{
			ID:   id,
			Addr: addr,
		})
	}

	return peers, nil
}

// SyncPeers returns the configured peers, excluding self.
func (c *Config) SyncPeers() []Peer {
	peers := make([]Peer, 0, len(c.Peers))
	for _, peer := range c.Peers {
		// Skip self if it appears in peers list
		if peer.ID != c.Server.NodeID {
			peers = append(peers, peer)
		}
	}
	return peers
}
