// Package config loads the static router configuration record described in
// spec section 6: router identity plus optional OSPF and BGP sub-configs.
// There is no dynamic reconfiguration language — the record is read once at
// startup and handed to the agent.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
	"github.com/route-beacon/ribagent/internal/rerrors"
)

// ErrConfiguration is re-exported for callers that only import config.
var ErrConfiguration = rerrors.ErrConfiguration

// Config is the top-level configuration surface of spec section 6.
type Config struct {
	Service  ServiceConfig   `koanf:"service"`
	RouterID string          `koanf:"router_id"`
	OSPF     *OSPFConfig     `koanf:"ospf"`
	BGP      *BGPConfig      `koanf:"bgp"`
	Journal  JournalConfig   `koanf:"journal"`
	EventBus EventBusConfig  `koanf:"eventbus"`
	Diag     DiagnosticsConfig `koanf:"diagnostics"`
}

type ServiceConfig struct {
	InstanceID             string `koanf:"instance_id"`
	HTTPListen             string `koanf:"http_listen"`
	LogLevel               string `koanf:"log_level"`
	ShutdownTimeoutSeconds int    `koanf:"shutdown_timeout_seconds"`
}

// OSPFConfig is present only if OSPF should run (spec section 6).
type OSPFConfig struct {
	AreaID        string         `koanf:"area_id"`
	Interface     string         `koanf:"interface"`
	SourceAddress string         `koanf:"source_address"`
	NetworkType   string         `koanf:"network_type"` // broadcast|p2p|p2mp|nbma|virtual-link
	UnicastPeer   string         `koanf:"unicast_peer"`
	HelloInterval int            `koanf:"hello_interval_seconds"`
	DeadInterval  int            `koanf:"dead_interval_seconds"`
	RouterPriority uint8         `koanf:"router_priority"`

	// PrefixLength is the interface subnet's CIDR prefix length. Reading
	// it from the host's interface configuration is out of scope (spec
	// section 1), so it is part of the static configuration record
	// rather than queried at startup.
	PrefixLength int `koanf:"prefix_length"`
}

// BGPConfig is present only if BGP should run (spec section 6).
type BGPConfig struct {
	LocalAS             uint32        `koanf:"local_as"`
	HoldTime            int           `koanf:"hold_time_seconds"`
	ConnectRetryTime    int           `koanf:"connect_retry_seconds"`
	RouteReflector      bool          `koanf:"route_reflector"`
	ClusterID           string        `koanf:"cluster_id"`
	OriginatedNetworks  []string      `koanf:"originated_networks"`
	Peers               []PeerConfig  `koanf:"peers"`
}

// PeerConfig is one BGP neighbor (spec section 6).
type PeerConfig struct {
	Address             string `koanf:"address"`
	PeerAS              uint32 `koanf:"peer_as"`
	Passive             bool   `koanf:"passive"`
	RouteReflectorClient bool  `koanf:"route_reflector_client"`
	ImportPolicy        string `koanf:"import_policy"`
	ExportPolicy        string `koanf:"export_policy"`
	EnableFlapDamping   bool   `koanf:"enable_flap_damping"`
	EnableRPKI          bool   `koanf:"enable_rpki"`
	RPKIRejectInvalid   bool   `koanf:"rpki_reject_invalid"`
	EnableGracefulRestart bool `koanf:"enable_graceful_restart"`
	EnableFlowspec      bool   `koanf:"enable_flowspec"`
	MaxPrefixes         int    `koanf:"max_prefixes"`
}

// JournalConfig controls the optional pgx-backed event journal.
type JournalConfig struct {
	Enabled  bool   `koanf:"enabled"`
	DSN      string `koanf:"dsn"`
	MaxConns int32  `koanf:"max_conns"`
	MinConns int32  `koanf:"min_conns"`
	RetentionDays int `koanf:"retention_days"`
}

// EventBusConfig controls the optional Kafka event publisher.
type EventBusConfig struct {
	Enabled  bool     `koanf:"enabled"`
	Brokers  []string `koanf:"brokers"`
	Topic    string   `koanf:"topic"`
	ClientID string   `koanf:"client_id"`
}

// DiagnosticsConfig controls the optional compressed wire-capture buffer.
type DiagnosticsConfig struct {
	Enabled      bool `koanf:"enabled"`
	CaptureBytes int  `koanf:"capture_ring_bytes"`
}

func (o *OSPFConfig) HelloIntervalDuration() time.Duration {
	return time.Duration(o.HelloInterval) * time.Second
}

func (o *OSPFConfig) DeadIntervalDuration() time.Duration {
	return time.Duration(o.DeadInterval) * time.Second
}

func (b *BGPConfig) HoldTimeDuration() time.Duration {
	return time.Duration(b.HoldTime) * time.Second
}

func (b *BGPConfig) ConnectRetryDuration() time.Duration {
	return time.Duration(b.ConnectRetryTime) * time.Second
}

// Load reads the configuration from a YAML file (if path is non-empty),
// then overlays environment variables prefixed ROUTEAGENT_.
func Load(path string) (*Config, error) {
	k := koanf.New(".")

	if path != "" {
		if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("loading config file %s: %w", path, err)
		}
	}

	if err := k.Load(env.Provider("ROUTEAGENT_", ".", func(s string) string {
		s = strings.TrimPrefix(s, "ROUTEAGENT_")
		s = strings.ToLower(s)
		s = strings.ReplaceAll(s, "__", ".")
		return s
	}), nil); err != nil {
		return nil, fmt.Errorf("loading env config: %w", err)
	}

	cfg := &Config{
		Service: ServiceConfig{
			InstanceID:             "ribagent-1",
			HTTPListen:             ":8080",
			LogLevel:               "info",
			ShutdownTimeoutSeconds: 5,
		},
		Journal: JournalConfig{
			MaxConns:      4,
			MinConns:      0,
			RetentionDays: 14,
		},
		Diag: DiagnosticsConfig{
			CaptureBytes: 4 << 20,
		},
	}

	if err := k.Unmarshal("", cfg); err != nil {
		return nil, fmt.Errorf("unmarshaling config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("%w: %s", ErrConfiguration, err)
	}

	return cfg, nil
}

func (c *Config) Validate() error {
	if c.RouterID == "" {
		return fmt.Errorf("router_id is required")
	}
	if c.OSPF == nil && c.BGP == nil {
		return fmt.Errorf("at least one of ospf or bgp must be configured")
	}
	if c.BGP != nil {
		if c.BGP.LocalAS == 0 {
			return fmt.Errorf("bgp.local_as is required when bgp is configured")
		}
		if c.BGP.HoldTime == 1 || c.BGP.HoldTime == 2 {
			return fmt.Errorf("bgp.hold_time_seconds of 1 or 2 is invalid (RFC 4271)")
		}
		for i, p := range c.BGP.Peers {
			if p.Address == "" {
				return fmt.Errorf("bgp.peers[%d].address is required", i)
			}
			if p.PeerAS == 0 {
				return fmt.Errorf("bgp.peers[%d].peer_as is required", i)
			}
		}
	}
	if c.OSPF != nil {
		if c.OSPF.Interface == "" {
			return fmt.Errorf("ospf.interface is required when ospf is configured")
		}
		if c.OSPF.PrefixLength <= 0 || c.OSPF.PrefixLength > 32 {
			return fmt.Errorf("ospf.prefix_length must be between 1 and 32")
		}
	}
	return nil
}
