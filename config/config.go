// Package config provides configuration loading and management for feedsync.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"
)

// Config represents the complete feedsync configuration
type Config struct {
	API      APIConfig      `yaml:"api"`
	NATS     NATSConfig     `yaml:"nats"`
	Realtime RealtimeConfig `yaml:"realtime"`
	Viewer   ViewerConfig   `yaml:"viewer"`
}

// APIConfig configures the backend API client
type APIConfig struct {
	// BaseURL is the API origin (default: http://localhost:3000)
	BaseURL string `yaml:"base_url"`
	// Timeout is the maximum time to wait for API responses
	Timeout time.Duration `yaml:"timeout"`
}

// NATSConfig configures the NATS connection
type NATSConfig struct {
	// URL is the NATS server URL (empty = use embedded server)
	URL string `yaml:"url"`
	// Embedded indicates whether to use embedded NATS
	Embedded bool `yaml:"embedded"`
}

// RealtimeConfig configures live feed subscriptions
type RealtimeConfig struct {
	// MaxPostChannels caps the per-post subscription count
	MaxPostChannels int `yaml:"max_post_channels"`
}

// ViewerConfig identifies the person whose feed this is
type ViewerConfig struct {
	Name   string `yaml:"name"`
	Handle string `yaml:"handle"`
	Avatar string `yaml:"avatar"`
}

// DefaultConfig returns a Config with sensible defaults
func DefaultConfig() *Config {
	return &Config{
		API: APIConfig{
			BaseURL: "http://localhost:3000",
			Timeout: 10 * time.Second,
		},
		NATS: NATSConfig{
			URL:      "",
			Embedded: true,
		},
		Realtime: RealtimeConfig{
			MaxPostChannels: 50,
		},
		Viewer: ViewerConfig{},
	}
}

// Validate checks that the configuration is valid
func (c *Config) Validate() error {
	if c.API.BaseURL == "" {
		return fmt.Errorf("api.base_url is required")
	}
	if c.API.Timeout <= 0 {
		return fmt.Errorf("api.timeout must be positive")
	}
	if c.Realtime.MaxPostChannels <= 0 {
		return fmt.Errorf("realtime.max_post_channels must be positive")
	}
	return nil
}

// LoadFromFile loads configuration from a YAML file
func LoadFromFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	config := DefaultConfig()
	if err := yaml.Unmarshal(data, config); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	return config, nil
}

// SaveToFile saves configuration to a YAML file
func (c *Config) SaveToFile(path string) error {
	// Ensure parent directory exists
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	return nil
}

// Merge merges another config into this one (other takes precedence for non-zero values)
func (c *Config) Merge(other *Config) {
	if other == nil {
		return
	}

	// API
	if other.API.BaseURL != "" {
		c.API.BaseURL = other.API.BaseURL
	}
	if other.API.Timeout != 0 {
		c.API.Timeout = other.API.Timeout
	}

	// NATS
	if other.NATS.URL != "" {
		c.NATS.URL = other.NATS.URL
		c.NATS.Embedded = false
	}

	// Realtime
	if other.Realtime.MaxPostChannels != 0 {
		c.Realtime.MaxPostChannels = other.Realtime.MaxPostChannels
	}

	// Viewer
	if other.Viewer.Name != "" {
		c.Viewer.Name = other.Viewer.Name
	}
	if other.Viewer.Handle != "" {
		c.Viewer.Handle = other.Viewer.Handle
	}
	if other.Viewer.Avatar != "" {
		c.Viewer.Avatar = other.Viewer.Avatar
	}
}
