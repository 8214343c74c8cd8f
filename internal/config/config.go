package config

import (
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/BurntSushi/toml"
	"github.com/go-playground/validator/v10"
)

// Config is the main configuration for driftfs.
type Config struct {
	BaseDir    string          `toml:"base_dir" validate:"required"`
	LogDir     string          `toml:"log_dir"`
	Database   DatabaseConfig  `toml:"database" validate:"required"`
	Content    ContentConfig   `toml:"content" validate:"required"`
	Indexer    IndexerConfig   `toml:"indexer"`
	Thumbnails ThumbnailConfig `toml:"thumbnails"`
	Metrics    MetricsConfig   `toml:"metrics"`
}

// MetricsConfig configures the prometheus endpoint.
type MetricsConfig struct {
	Enabled bool `toml:"enabled"`
	// Addr is the listen address for /metrics, e.g. ":9101".
	Addr string `toml:"addr,omitempty"`
}

// DatabaseConfig selects the metadata store backend.
// Tagged union: Type determines which other fields matter.
type DatabaseConfig struct {
	Type    string `toml:"type" validate:"oneof=sqlite memory"`
	DataDir string `toml:"data_dir,omitempty"`
}

// ContentConfig configures the content-addressed object store.
type ContentConfig struct {
	// Mode is the network participation mode.
	Mode string `toml:"mode" validate:"oneof=private public hybrid"`
	// RepoDir is the repository root (blocks/ and datastore/ live here).
	RepoDir string `toml:"repo_dir" validate:"required"`
	// ListenAddrs are multiaddrs for the p2p host. Ignored in private mode.
	ListenAddrs []string `toml:"listen_addrs,omitempty"`
	// BootstrapPeers are multiaddrs dialed on startup for peer discovery.
	BootstrapPeers []string `toml:"bootstrap_peers,omitempty"`
	// KeyPath points to an age identity used to encrypt blocks at rest.
	// Only honored in private mode; empty disables encryption.
	KeyPath string `toml:"key_path,omitempty"`
	// Mirror configures the optional S3 cold mirror for pinned blocks.
	Mirror S3MirrorConfig `toml:"mirror"`
}

// S3MirrorConfig configures the S3 block mirror.
type S3MirrorConfig struct {
	Enabled   bool   `toml:"enabled"`
	Bucket    string `toml:"bucket,omitempty"`
	Prefix    string `toml:"prefix,omitempty"`
	Region    string `toml:"region,omitempty"`
	Endpoint  string `toml:"endpoint,omitempty"`
	AccessKey string `toml:"access_key,omitempty"`
	SecretKey string `toml:"secret_key,omitempty"`
}

// IndexerConfig configures the background indexing worker.
type IndexerConfig struct {
	// IntervalSeconds is the wait between empty-queue rescans.
	IntervalSeconds int `toml:"interval_seconds" validate:"gte=0"`
	// BatchSize bounds how many unindexed files one scan enqueues.
	BatchSize int `toml:"batch_size" validate:"gte=0"`
}

// ThumbnailConfig configures preview generation.
type ThumbnailConfig struct {
	Enabled bool `toml:"enabled"`
	// FFmpegPath overrides the binary looked up on PATH for video frames.
	FFmpegPath string `toml:"ffmpeg_path,omitempty"`
}

// NewConfig creates a Config with defaults rooted at baseDir.
func NewConfig(baseDir string) *Config {
	return &Config{
		BaseDir: baseDir,
		LogDir:  filepath.Join(baseDir, "log"),
		Database: DatabaseConfig{
			Type:    "sqlite",
			DataDir: filepath.Join(baseDir, "db"),
		},
		Content: ContentConfig{
			Mode:        "private",
			RepoDir:     filepath.Join(baseDir, "repo"),
			ListenAddrs: []string{"/ip4/0.0.0.0/tcp/4501"},
		},
		Indexer: IndexerConfig{
			IntervalSeconds: 30,
			BatchSize:       20,
		},
		Thumbnails: ThumbnailConfig{Enabled: true},
		Metrics:    MetricsConfig{Enabled: false, Addr: ":9101"},
	}
}

// Validate checks structural constraints on the config.
func (c *Config) Validate() error {
	if err := validator.New().Struct(c); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}
	if c.Database.Type == "sqlite" && c.Database.DataDir == "" {
		return fmt.Errorf("invalid config: data_dir required for sqlite database")
	}
	if c.Content.Mirror.Enabled && c.Content.Mirror.Bucket == "" {
		return fmt.Errorf("invalid config: mirror bucket required when mirror is enabled")
	}
	return nil
}

// Manager handles reading and writing configuration.
type Manager struct{}

// Read decodes a Config from the provided reader.
func (m *Manager) Read(r io.Reader) (*Config, error) {
	var cfg Config
	if _, err := toml.NewDecoder(r).Decode(&cfg); err != nil {
		return nil, fmt.Errorf("failed to decode config: %w", err)
	}
	return &cfg, nil
}

// Write encodes a Config to the provided writer.
func (m *Manager) Write(w io.Writer, cfg *Config) error {
	if err := toml.NewEncoder(w).Encode(cfg); err != nil {
		return fmt.Errorf("failed to encode config: %w", err)
	}
	return nil
}

// ReadFromFile reads and validates a Config from the given path.
func ReadFromFile(path string) (*Config, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open config file: %w", err)
	}
	defer f.Close()

	m := &Manager{}
	cfg, err := m.Read(f)
	if err != nil {
		return nil, fmt.Errorf("reading config from %s: %w", path, err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validating config from %s: %w", path, err)
	}
	return cfg, nil
}

// writeToFile writes a Config to the specified file path.
func writeToFile(path string, cfg *Config) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create config file: %w", err)
	}
	defer f.Close()

	m := &Manager{}
	if err := m.Write(f, cfg); err != nil {
		return fmt.Errorf("writing config to %s: %w", path, err)
	}
	return nil
}

// Init initializes a new config file at the specified path.
func Init(path string, cfg *Config) error {
	if _, err := os.Stat(path); err == nil {
		return fmt.Errorf("config file already exists at %s", path)
	}
	if err := writeToFile(path, cfg); err != nil {
		return fmt.Errorf("initializing config: %w", err)
	}
	return nil
}
