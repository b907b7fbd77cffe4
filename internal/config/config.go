package config

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/BurntSushi/toml"

	"reel-go/internal/reel"
)

// Config represents the main configuration for reel.
type Config struct {
	CollectionID string           `toml:"collection_id"`
	BaseDir      string           `toml:"base_dir"`
	LogDir       string           `toml:"log_dir"`
	Library      LibraryConfig    `toml:"library"`
	Vaults       []VaultConfig    `toml:"vaults"`
	Encryption   EncryptionConfig `toml:"encryption"`
	Database     DatabaseConfig   `toml:"database"`
	Staging      StagingConfig    `toml:"staging"`
	Filesystem   FilesystemConfig `toml:"filesystem"`
	Sources      SourcesConfig    `toml:"sources"`
}

// LibraryConfig controls scanning and the defaults for staged moves.
type LibraryConfig struct {
	Root        string   `toml:"root"`         // default destination root for moves; empty keeps files beside themselves
	Template    string   `toml:"template"`     // default destination template
	Extensions  []string `toml:"extensions"`   // media extensions picked up by scan
	Order       []string `toml:"order"`        // source preference order; the user block always wins
	ScanSources []string `toml:"scan_sources"` // sources fetched while scanning
}

// EncryptionConfig holds paths to the age key pair used for snapshot encryption.
type EncryptionConfig struct {
	Type           string `toml:"type"` // "age", "test", or "none" (default)
	PublicKeyPath  string `toml:"public_key_path"`
	PrivateKeyPath string `toml:"private_key_path"`
	Armor          bool   `toml:"armor"` // write snapshots as ASCII-armored PEM text
}

// FilesystemConfig holds filesystem-related settings.
type FilesystemConfig struct {
	Ignore []string `toml:"ignore"`
}

// SourcesConfig configures the built-in metadata sources.
type SourcesConfig struct {
	Web WebSourceConfig `toml:"web"`
}

// WebSourceConfig configures the catalog scraping source. Fetching fails
// while BaseURL is empty.
type WebSourceConfig struct {
	BaseURL        string `toml:"base_url"`
	TimeoutSeconds int    `toml:"timeout_seconds"`
	UserAgent      string `toml:"user_agent,omitempty"`
}

// VaultConfig represents configuration for a snapshot vault backend.
// This uses a tagged union pattern - the Type field determines which other fields are relevant.
type VaultConfig struct {
	Type string `toml:"type"` // "memory", "s3", or "filesystem"
	Name string `toml:"name"`

	// S3-specific fields (only used when Type == "s3")
	S3Bucket          string `toml:"s3_bucket,omitempty"`
	S3Prefix          string `toml:"s3_prefix,omitempty"`
	S3Region          string `toml:"s3_region,omitempty"`
	S3Endpoint        string `toml:"s3_endpoint,omitempty"` // S3-compatible services; implies path-style addressing
	S3AccessKeyID     string `toml:"s3_access_key_id,omitempty"`
	S3SecretAccessKey string `toml:"s3_secret_access_key,omitempty"`

	// FileSystem-specific fields (only used when Type == "filesystem")
	FSVaultRoot string `toml:"fs_vault_root,omitempty"`
}

// DatabaseConfig represents configuration for the collection database.
// This uses a tagged union pattern - the Type field determines which other fields are relevant.
type DatabaseConfig struct {
	Type    string `toml:"type"`               // "sqlite" or "memory"
	DataDir string `toml:"data_dir,omitempty"` // only used for type=sqlite
}

// StagingConfig represents configuration for the pending command queue.
// This uses a tagged union pattern - the Type field determines which other fields are relevant.
type StagingConfig struct {
	Type        string `toml:"type"`                  // "memory" or "filesystem"
	StagingDir  string `toml:"staging_dir,omitempty"` // only used for type=filesystem
	MaxCommands int    `toml:"max_commands"`          // queue limit; defaults to 10000
}

// NewConfig creates a new Config with the provided values and default paths.
func NewConfig(collectionID, baseDir string) *Config {
	return &Config{
		CollectionID: collectionID,
		BaseDir:      baseDir,
		LogDir:       filepath.Join(baseDir, "log"),
		Library: LibraryConfig{
			Template:    reel.DefaultTemplate,
			Extensions:  append([]string(nil), reel.DefaultExtensions...),
			Order:       append([]string(nil), reel.DefaultSourceOrder()...),
			ScanSources: []string{"guess"},
		},
		Encryption: EncryptionConfig{
			Type:           "none",
			PublicKeyPath:  filepath.Join(baseDir, "keys", "reel.pub"),
			PrivateKeyPath: filepath.Join(baseDir, "keys", "reel.key"),
		},
		Database: DatabaseConfig{Type: "sqlite", DataDir: filepath.Join(baseDir, "db")},
		Staging:  StagingConfig{Type: "filesystem", StagingDir: filepath.Join(baseDir, "staging")},
		Sources:  SourcesConfig{Web: WebSourceConfig{TimeoutSeconds: 15}},
	}
}

// Validate checks values the factories do not.
func (c *Config) Validate() error {
	if c.CollectionID == "" {
		return fmt.Errorf("collection_id must be set")
	}
	if c.BaseDir == "" {
		return fmt.Errorf("base_dir must be set")
	}
	seen := make(map[string]bool)
	for _, name := range c.Library.Order {
		n := strings.ToLower(strings.TrimSpace(name))
		if n == "" {
			return fmt.Errorf("library.order contains an empty source name")
		}
		if n == reel.UserSource {
			return fmt.Errorf("library.order must not list %q; the user block always wins", reel.UserSource)
		}
		if seen[n] {
			return fmt.Errorf("library.order lists %q twice", n)
		}
		seen[n] = true
	}
	for _, ext := range c.Library.Extensions {
		if strings.TrimSpace(ext) == "" {
			return fmt.Errorf("library.extensions contains an empty extension")
		}
	}
	if c.Sources.Web.TimeoutSeconds < 0 {
		return fmt.Errorf("sources.web.timeout_seconds must not be negative")
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

// ReadFromFile reads a Config from the specified file path.
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
		return nil, fmt.Errorf("invalid config %s: %w", path, err)
	}
	return cfg, nil
}

// writeToFile writes a Config to the specified file path. The file may hold
// vault credentials so it is created owner-only.
func writeToFile(path string, cfg *Config) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0o600)
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

// Init initializes a new config file at the specified path with the provided Config.
func Init(path string, cfg *Config) error {
	if _, err := os.Stat(path); err == nil {
		return fmt.Errorf("config file already exists at %s", path)
	}

	if err := writeToFile(path, cfg); err != nil {
		return fmt.Errorf("initializing config: %w", err)
	}
	return nil
}
