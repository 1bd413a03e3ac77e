// Package config loads the service and CLI configuration from a YAML file.
package config

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/jaskrrish/Go-BB84/internal/qkd"
	"github.com/jaskrrish/Go-BB84/internal/qkd/quantum"
	"github.com/jaskrrish/Go-BB84/internal/store"
	"sigs.k8s.io/yaml"
)

const (
	DefaultPort            = "8080"
	DefaultCleanupInterval = 5 * time.Minute
	DefaultMaxAttempts     = 3
)

// Duration is a time.Duration written as a string such as "90s" or "24h"
type Duration struct {
	time.Duration
}

func (d Duration) MarshalJSON() ([]byte, error) {
	return json.Marshal(d.String())
}

func (d *Duration) UnmarshalJSON(b []byte) error {
	var s string
	if err := json.Unmarshal(b, &s); err != nil {
		return fmt.Errorf("duration must be a string: %w", err)
	}
	v, err := time.ParseDuration(s)
	if err != nil {
		return err
	}
	d.Duration = v
	return nil
}

// Config is the root of the configuration file
type Config struct {
	Server   ServerConfig   `json:"server"`
	Protocol ProtocolConfig `json:"protocol"`
	Store    StoreConfig    `json:"store"`
}

// ServerConfig holds the HTTP service settings
type ServerConfig struct {
	Port            string   `json:"port"`
	CleanupInterval Duration `json:"cleanup_interval"`
}

// ProtocolConfig holds the BB84 parameters and the channel backend
type ProtocolConfig struct {
	Qubits         int                 `json:"qubits"`
	RevealFraction float64             `json:"reveal_fraction"`
	Threshold      float64             `json:"threshold"`
	Backend        quantum.BackendType `json:"backend"`
	Shots          int                 `json:"shots"`
	NoiseLevel     float64             `json:"noise_level"`
	MaxAttempts    int                 `json:"max_attempts"`
	KeyTTL         Duration            `json:"key_ttl"`
}

// StoreConfig selects where issued keys are kept
type StoreConfig struct {
	Driver string `json:"driver"`
	Path   string `json:"path,omitempty"`
}

// Default returns the configuration used when no file is given
func Default() *Config {
	return &Config{
		Server: ServerConfig{
			Port:            DefaultPort,
			CleanupInterval: Duration{DefaultCleanupInterval},
		},
		Protocol: ProtocolConfig{
			Qubits:         qkd.DefaultQubits,
			RevealFraction: qkd.DefaultRevealFraction,
			Threshold:      qkd.DefaultThreshold,
			Backend:        quantum.BackendSimulator,
			Shots:          quantum.DefaultShots,
			MaxAttempts:    DefaultMaxAttempts,
			KeyTTL:         Duration{qkd.DefaultKeyTTL},
		},
		Store: StoreConfig{Driver: store.DriverMemory},
	}
}

// Load reads the YAML file at path over the defaults. An empty path yields
// the defaults. The PORT environment variable overrides server.port.
func Load(path string) (*Config, error) {
	cfg := Default()

	if path != "" {
		yamlBytes, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("reading config file: %w", err)
		}
		if err := cfg.decode(yamlBytes); err != nil {
			return nil, fmt.Errorf("%s: %w", path, err)
		}
	}

	if port := os.Getenv("PORT"); port != "" {
		cfg.Server.Port = port
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) decode(yamlBytes []byte) error {
	jsonBytes, err := yaml.YAMLToJSON(yamlBytes)
	if err != nil {
		return fmt.Errorf("converting config YAML to JSON: %w", err)
	}
	dec := json.NewDecoder(bytes.NewReader(jsonBytes))
	dec.DisallowUnknownFields()
	if err := dec.Decode(c); err != nil {
		return fmt.Errorf("decoding config: %w", err)
	}
	return nil
}

// QKD returns the protocol parameters for one run
func (p ProtocolConfig) QKD(eavesdropper bool) qkd.Config {
	return qkd.Config{
		Qubits:         p.Qubits,
		RevealFraction: p.RevealFraction,
		Threshold:      p.Threshold,
		Eavesdropper:   eavesdropper,
	}
}

// ManagerOptions returns the session manager settings
func (p ProtocolConfig) ManagerOptions() qkd.ManagerOptions {
	return qkd.ManagerOptions{
		MaxAttempts: p.MaxAttempts,
		KeyTTL:      p.KeyTTL.Duration,
		NoiseLevel:  p.NoiseLevel,
		Shots:       p.Shots,
		Defaults:    p.QKD(false),
		Backend:     p.Backend,
	}
}

// Open opens the configured key store
func (s StoreConfig) Open() (store.KeyStore, error) {
	return store.Open(s.Driver, s.Path)
}

// Validate checks every stanza
func (c *Config) Validate() error {
	if c.Server.Port == "" {
		return fmt.Errorf("server.port must be set")
	}
	if c.Server.CleanupInterval.Duration <= 0 {
		return fmt.Errorf("server.cleanup_interval must be positive")
	}

	if err := c.Protocol.QKD(false).Validate(); err != nil {
		return fmt.Errorf("protocol: %w", err)
	}
	switch c.Protocol.Backend {
	case quantum.BackendSimulator, quantum.BackendShots:
	default:
		return fmt.Errorf("protocol.backend %q must be %q or %q", c.Protocol.Backend, quantum.BackendSimulator, quantum.BackendShots)
	}
	if c.Protocol.Shots%2 == 0 || c.Protocol.Shots < 0 {
		return fmt.Errorf("protocol.shots %d: %w", c.Protocol.Shots, quantum.ErrEvenShots)
	}
	if c.Protocol.NoiseLevel < 0 || c.Protocol.NoiseLevel > 1 {
		return fmt.Errorf("protocol.noise_level %v not in [0,1]", c.Protocol.NoiseLevel)
	}
	if c.Protocol.MaxAttempts < 1 {
		return fmt.Errorf("protocol.max_attempts must be at least 1")
	}
	if c.Protocol.KeyTTL.Duration <= 0 {
		return fmt.Errorf("protocol.key_ttl must be positive")
	}

	switch c.Store.Driver {
	case store.DriverMemory:
	case store.DriverBolt:
		if c.Store.Path == "" {
			return fmt.Errorf("store.path is required for the bolt driver")
		}
	default:
		return fmt.Errorf("store.driver %q must be %q or %q", c.Store.Driver, store.DriverMemory, store.DriverBolt)
	}
	return nil
}
