// Package config loads the daemon's YAML configuration file, applies a
// fixed table of environment-variable overrides, and validates and
// defaults the result, in the teacher's load-then-override-then-validate
// shape.
package config

import (
	"encoding/hex"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Config is the root configuration for the gatewayd daemon.
type Config struct {
	Server        ServerConfig        `yaml:"server"`
	Router        RouterConfig        `yaml:"router"`
	Poc           PocConfig           `yaml:"poc"`
	ConfigService ConfigServiceConfig `yaml:"config_service"`
	Entropy       EntropyConfig       `yaml:"entropy"`
	Keypair       KeypairConfig       `yaml:"keypair"`
	Region        RegionConfig        `yaml:"region"`
	Log           LogConfig           `yaml:"log"`

	// InsecureTLS dials every gRPC conduit and the configuration
	// service with plaintext credentials instead of TLS. Meant for
	// local development against a plaintext test fixture.
	InsecureTLS bool `yaml:"insecure_tls"`
}

// ServerConfig configures the UDP packet-forwarder listener.
type ServerConfig struct {
	ListenUDP string `yaml:"listen_udp"`
}

// RouterConfig configures the packet-router gRPC conduit. PubKey is
// the server's Ed25519 public key, hex-encoded, used to verify
// authenticated streaming responses.
type RouterConfig struct {
	URI    string `yaml:"uri"`
	PubKey string `yaml:"pubkey"`
	Queue  int    `yaml:"queue"`
}

// PocConfig configures the proof-of-coverage ingest gRPC conduit.
// PubKey is hex-encoded, as RouterConfig.PubKey.
type PocConfig struct {
	URI    string `yaml:"uri"`
	PubKey string `yaml:"pubkey"`
}

// ConfigServiceConfig configures the remote region-parameter source.
// PubKey is hex-encoded, as RouterConfig.PubKey.
type ConfigServiceConfig struct {
	URI    string `yaml:"uri"`
	PubKey string `yaml:"pubkey"`
}

// EntropyConfig configures the remote entropy source.
type EntropyConfig struct {
	URI string `yaml:"uri"`
}

// KeypairConfig locates the gateway's signing keypair on disk.
type KeypairConfig struct {
	Path string `yaml:"path"`
}

// RegionConfig selects the region to use before the first region
// update arrives from the config service.
type RegionConfig struct {
	Default string `yaml:"default"`
}

// LogConfig configures the zerolog output.
type LogConfig struct {
	Level  string `yaml:"level"`
	Pretty bool   `yaml:"pretty"`
}

const (
	defaultRouterQueue = 20
	defaultRegion      = "EU868"
	defaultLogLevel    = "info"
)

// Load reads filename as YAML, applies environment overrides, then
// validates and defaults the result.
func Load(filename string) (*Config, error) {
	data, err := os.ReadFile(filename)
	if err != nil {
		return nil, fmt.Errorf("config: read %s: %w", filename, err)
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("config: unmarshal %s: %w", filename, err)
	}

	cfg.applyEnvOverrides()

	if err := cfg.validateAndSetDefaults(); err != nil {
		return nil, fmt.Errorf("config: %w", err)
	}

	return &cfg, nil
}

// applyEnvOverrides lets the deployment environment override the
// handful of fields that are secrets or per-environment URIs without
// editing the checked-in YAML file.
func (c *Config) applyEnvOverrides() {
	if v := os.Getenv("GATEWAYD_ROUTER_URI"); v != "" {
		c.Router.URI = v
	}
	if v := os.Getenv("GATEWAYD_POC_URI"); v != "" {
		c.Poc.URI = v
	}
	if v := os.Getenv("GATEWAYD_CONFIG_URI"); v != "" {
		c.ConfigService.URI = v
	}
	if v := os.Getenv("GATEWAYD_ENTROPY_URI"); v != "" {
		c.Entropy.URI = v
	}
	if v := os.Getenv("GATEWAYD_KEYPAIR_PATH"); v != "" {
		c.Keypair.Path = v
	}
	if v := os.Getenv("GATEWAYD_REGION"); v != "" {
		c.Region.Default = v
	}
	if v := os.Getenv("GATEWAYD_LOG_LEVEL"); v != "" {
		c.Log.Level = v
	}
}

// validateAndSetDefaults rejects a config missing a required field and
// fills in the rest with the daemon's defaults.
func (c *Config) validateAndSetDefaults() error {
	if c.Server.ListenUDP == "" {
		return fmt.Errorf("server.listen_udp is required")
	}
	if c.Router.URI == "" {
		return fmt.Errorf("router.uri is required")
	}
	if c.Poc.URI == "" {
		return fmt.Errorf("poc.uri is required")
	}
	if c.Keypair.Path == "" {
		return fmt.Errorf("keypair.path is required")
	}
	for _, pk := range []struct{ name, value string }{
		{"router.pubkey", c.Router.PubKey},
		{"poc.pubkey", c.Poc.PubKey},
		{"config_service.pubkey", c.ConfigService.PubKey},
	} {
		if pk.value == "" {
			continue
		}
		if _, err := hex.DecodeString(pk.value); err != nil {
			return fmt.Errorf("%s is not valid hex: %w", pk.name, err)
		}
	}

	if c.Router.Queue == 0 {
		c.Router.Queue = defaultRouterQueue
	}
	if c.Region.Default == "" {
		c.Region.Default = defaultRegion
	}
	if c.Log.Level == "" {
		c.Log.Level = defaultLogLevel
	}

	switch c.Region.Default {
	case "EU868", "US915", "AU915", "AS923", "CN470", "KR920", "IN865", "RU864":
		// known region name
	default:
		return fmt.Errorf("unknown region %q", c.Region.Default)
	}

	return nil
}
