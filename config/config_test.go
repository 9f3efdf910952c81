package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()

	if cfg.API.BaseURL != "http://localhost:3000" {
		t.Errorf("expected default base URL http://localhost:3000, got %s", cfg.API.BaseURL)
	}
	if cfg.API.Timeout != 10*time.Second {
		t.Errorf("expected default timeout 10s, got %v", cfg.API.Timeout)
	}
	if cfg.Realtime.MaxPostChannels != 50 {
		t.Errorf("expected default channel cap 50, got %d", cfg.Realtime.MaxPostChannels)
	}
	if !cfg.NATS.Embedded {
		t.Error("expected embedded NATS by default")
	}
}

func TestConfigValidate(t *testing.T) {
	tests := []struct {
		name    string
		modify  func(*Config)
		wantErr bool
	}{
		{
			name:    "valid default config",
			modify:  func(c *Config) {},
			wantErr: false,
		},
		{
			name:    "missing base URL",
			modify:  func(c *Config) { c.API.BaseURL = "" },
			wantErr: true,
		},
		{
			name:    "zero timeout",
			modify:  func(c *Config) { c.API.Timeout = 0 },
			wantErr: true,
		},
		{
			name:    "negative channel cap",
			modify:  func(c *Config) { c.Realtime.MaxPostChannels = -1 },
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.modify(cfg)
			err := cfg.Validate()
			if (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestLoadFromFile(t *testing.T) {
	// Create temp file with config
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "config.yaml")

	content := `
api:
  base_url: "http://test:9999"
  timeout: 30s
nats:
  url: "nats://test:4222"
realtime:
  max_post_channels: 25
viewer:
  name: "Alice"
  handle: "alice"
`
	if err := os.WriteFile(configPath, []byte(content), 0644); err != nil {
		t.Fatalf("failed to write test config: %v", err)
	}

	cfg, err := LoadFromFile(configPath)
	if err != nil {
		t.Fatalf("LoadFromFile() error = %v", err)
	}

	if cfg.API.BaseURL != "http://test:9999" {
		t.Errorf("expected base URL http://test:9999, got %s", cfg.API.BaseURL)
	}
	if cfg.API.Timeout != 30*time.Second {
		t.Errorf("expected timeout 30s, got %v", cfg.API.Timeout)
	}
	if cfg.NATS.URL != "nats://test:4222" {
		t.Errorf("expected NATS URL nats://test:4222, got %s", cfg.NATS.URL)
	}
	if cfg.Realtime.MaxPostChannels != 25 {
		t.Errorf("expected channel cap 25, got %d", cfg.Realtime.MaxPostChannels)
	}
	if cfg.Viewer.Handle != "alice" {
		t.Errorf("expected viewer handle alice, got %s", cfg.Viewer.Handle)
	}
}

func TestConfigMerge(t *testing.T) {
	base := DefaultConfig()
	override := &Config{
		API: APIConfig{
			BaseURL: "http://override:8080",
		},
		Viewer: ViewerConfig{
			Handle: "bob",
		},
	}

	base.Merge(override)

	if base.API.BaseURL != "http://override:8080" {
		t.Errorf("expected base URL http://override:8080, got %s", base.API.BaseURL)
	}
	// Timeout should remain from base since override didn't set it
	if base.API.Timeout != 10*time.Second {
		t.Errorf("expected timeout to remain default, got %v", base.API.Timeout)
	}
	if base.Viewer.Handle != "bob" {
		t.Errorf("expected viewer handle bob, got %s", base.Viewer.Handle)
	}
	if base.Realtime.MaxPostChannels != 50 {
		t.Errorf("expected channel cap to remain default, got %d", base.Realtime.MaxPostChannels)
	}
}

func TestConfigMergeExternalNATSDisablesEmbedded(t *testing.T) {
	base := DefaultConfig()
	base.Merge(&Config{NATS: NATSConfig{URL: "nats://remote:4222"}})

	if base.NATS.Embedded {
		t.Error("expected embedded NATS to be disabled when a URL is set")
	}
	if base.NATS.URL != "nats://remote:4222" {
		t.Errorf("expected NATS URL nats://remote:4222, got %s", base.NATS.URL)
	}
}

func TestConfigSaveToFile(t *testing.T) {
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "subdir", "config.yaml")

	cfg := DefaultConfig()
	cfg.Viewer.Handle = "saved-handle"

	if err := cfg.SaveToFile(configPath); err != nil {
		t.Fatalf("SaveToFile() error = %v", err)
	}

	// Verify file was created
	if _, err := os.Stat(configPath); os.IsNotExist(err) {
		t.Error("config file was not created")
	}

	// Load and verify
	loaded, err := LoadFromFile(configPath)
	if err != nil {
		t.Fatalf("failed to load saved config: %v", err)
	}
	if loaded.Viewer.Handle != "saved-handle" {
		t.Errorf("expected viewer handle saved-handle, got %s", loaded.Viewer.Handle)
	}
}
