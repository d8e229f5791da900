package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// StockPolicy selects how the inventory ledger treats a decrement that
// would cross zero.
type StockPolicy string

const (
	// StockPolicyReject fails the adjustment with ErrInsufficientStock.
	StockPolicyReject StockPolicy = "reject"
	// StockPolicyClamp clamps the count to zero and marks the line sold out.
	StockPolicyClamp StockPolicy = "clamp"
)

// Config is the server configuration, loaded from a YAML file with
// defaults applied for anything unset.
type Config struct {
	ListenAddr string `yaml:"listen_addr"`
	DataDir    string `yaml:"data_dir"`

	Log struct {
		Level string `yaml:"level"`
		JSON  bool   `yaml:"json"`
	} `yaml:"log"`

	Events struct {
		// RingSize is the per-shift retained event count for replay.
		RingSize int `yaml:"ring_size"`
		// SubscriberBuffer is the bounded outbound buffer per subscriber.
		SubscriberBuffer int `yaml:"subscriber_buffer"`
	} `yaml:"events"`

	Inventory struct {
		Policy StockPolicy `yaml:"policy"`
	} `yaml:"inventory"`

	Archiver struct {
		Interval time.Duration `yaml:"interval"`
		Grace    time.Duration `yaml:"grace"`
	} `yaml:"archiver"`

	Auth struct {
		TokenTTL time.Duration `yaml:"token_ttl"`
	} `yaml:"auth"`
}

// Default returns the configuration used when no file is given.
func Default() *Config {
	cfg := &Config{
		ListenAddr: ":8080",
		DataDir:    "/var/lib/galley",
	}
	cfg.Log.Level = "info"
	cfg.Events.RingSize = 256
	cfg.Events.SubscriberBuffer = 64
	cfg.Inventory.Policy = StockPolicyReject
	cfg.Archiver.Interval = time.Minute
	cfg.Archiver.Grace = 5 * time.Minute
	cfg.Auth.TokenTTL = 7 * 24 * time.Hour
	return cfg
}

// Load reads path and merges it over the defaults.
func Load(path string) (*Config, error) {
	cfg := Default()
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config: %w", err)
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks values that would otherwise fail far from their cause.
func (c *Config) Validate() error {
	if c.Events.RingSize <= 0 {
		return fmt.Errorf("events.ring_size must be positive, got %d", c.Events.RingSize)
	}
	if c.Events.SubscriberBuffer <= 0 {
		return fmt.Errorf("events.subscriber_buffer must be positive, got %d", c.Events.SubscriberBuffer)
	}
	switch c.Inventory.Policy {
	case StockPolicyReject, StockPolicyClamp:
	default:
		return fmt.Errorf("inventory.policy must be %q or %q, got %q",
			StockPolicyReject, StockPolicyClamp, c.Inventory.Policy)
	}
	return nil
}
