package config

import (
	"bytes"
	"path/filepath"
	"testing"
)

func TestNewConfigValidates(t *testing.T) {
	cfg := NewConfig(t.TempDir())
	if err := cfg.Validate(); err != nil {
		t.Errorf("default config invalid: %v", err)
	}
}

func TestValidateRejectsBadValues(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"bad network mode", func(c *Config) { c.Content.Mode = "federated" }},
		{"bad database type", func(c *Config) { c.Database.Type = "postgres" }},
		{"missing base dir", func(c *Config) { c.BaseDir = "" }},
		{"missing repo dir", func(c *Config) { c.Content.RepoDir = "" }},
		{"sqlite without data dir", func(c *Config) { c.Database.DataDir = "" }},
		{"mirror without bucket", func(c *Config) { c.Content.Mirror.Enabled = true }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := NewConfig(t.TempDir())
			tt.mutate(cfg)
			if err := cfg.Validate(); err == nil {
				t.Error("Validate accepted an invalid config")
			}
		})
	}
}

func TestManagerRoundTrip(t *testing.T) {
	cfg := NewConfig("/data/driftfs")
	cfg.Content.Mode = "hybrid"
	cfg.Content.BootstrapPeers = []string{"/ip4/10.0.0.1/tcp/4501/p2p/QmPeer"}
	cfg.Metrics.Enabled = true

	var buf bytes.Buffer
	m := &Manager{}
	if err := m.Write(&buf, cfg); err != nil {
		t.Fatalf("Write: %v", err)
	}
	got, err := m.Read(&buf)
	if err != nil {
		t.Fatalf("Read: %v", err)
	}

	if got.Content.Mode != "hybrid" {
		t.Errorf("mode = %q", got.Content.Mode)
	}
	if len(got.Content.BootstrapPeers) != 1 {
		t.Errorf("bootstrap peers = %v", got.Content.BootstrapPeers)
	}
	if !got.Metrics.Enabled || got.Metrics.Addr != ":9101" {
		t.Errorf("metrics = %+v", got.Metrics)
	}
	if got.Database.DataDir != cfg.Database.DataDir {
		t.Errorf("data dir = %q, want %q", got.Database.DataDir, cfg.Database.DataDir)
	}
}

func TestInitRefusesExistingFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "driftfs.toml")
	cfg := NewConfig(t.TempDir())

	if err := Init(path, cfg); err != nil {
		t.Fatalf("Init: %v", err)
	}
	if err := Init(path, cfg); err == nil {
		t.Error("Init overwrote an existing config file")
	}

	got, err := ReadFromFile(path)
	if err != nil {
		t.Fatalf("ReadFromFile: %v", err)
	}
	if got.BaseDir != cfg.BaseDir {
		t.Errorf("base dir = %q, want %q", got.BaseDir, cfg.BaseDir)
	}
}
