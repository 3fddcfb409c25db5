package config

import (
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/BurntSushi/toml"
)

// Config represents the main configuration for keyhaven.
type Config struct {
	Identity string        `toml:"identity"`
	BaseDir  string        `toml:"base_dir"`
	LogDir   string        `toml:"log_dir"`
	Vault    VaultConfig   `toml:"vault"`
	Storage  StorageConfig `toml:"storage"`
	Token    TokenConfig   `toml:"token"`
	Seed     SeedConfig    `toml:"seed"`
	KDF      KDFConfig     `toml:"kdf"`
}

// VaultConfig configures the cloud record transport.
// Tagged union: the Type field determines which other fields are relevant.
type VaultConfig struct {
	Type string `toml:"type"` // "memory", "filesystem", or "s3"

	// Filesystem-specific (Type == "filesystem")
	FSRoot string `toml:"fs_root,omitempty"`

	// S3-specific (Type == "s3")
	S3Bucket    string `toml:"s3_bucket,omitempty"`
	S3Prefix    string `toml:"s3_prefix,omitempty"`
	S3Region    string `toml:"s3_region,omitempty"`
	S3AccessKey string `toml:"s3_access_key,omitempty"`
	S3SecretKey string `toml:"s3_secret_key,omitempty"`
}

// StorageConfig configures durable local key storage.
// Tagged union: the Type field determines which other fields are relevant.
type StorageConfig struct {
	Type string `toml:"type"` // "sqlite", "agefile", or "memory"

	DataDir string `toml:"data_dir,omitempty"`

	// Device identity file for type=agefile; generated on init.
	KeyPath string `toml:"key_path,omitempty"`
}

// TokenConfig configures the access token provider.
// Tagged union: the Type field determines which other fields are relevant.
type TokenConfig struct {
	Type string `toml:"type"` // "static" or "http"

	// Static token value (Type == "static")
	Value string `toml:"value,omitempty"`

	// Auth service settings (Type == "http")
	Endpoint string `toml:"endpoint,omitempty"`
	APIKey   string `toml:"api_key,omitempty"`
}

// SeedConfig points at the brain-key seed service.
type SeedConfig struct {
	Endpoint string `toml:"endpoint"`
}

// KDFConfig holds the argon2id settings for brain-key stretching.
// Zero values fall back to the built-in defaults.
type KDFConfig struct {
	Time     uint32 `toml:"time,omitempty"`
	MemoryKB uint32 `toml:"memory_kb,omitempty"`
	Threads  uint8  `toml:"threads,omitempty"`
}

// NewConfig creates a Config with the provided values and default layout.
func NewConfig(identity, baseDir string) *Config {
	return &Config{
		Identity: identity,
		BaseDir:  baseDir,
		LogDir:   filepath.Join(baseDir, "log"),
		Vault: VaultConfig{
			Type:   "filesystem",
			FSRoot: filepath.Join(baseDir, "vault"),
		},
		Storage: StorageConfig{
			Type:    "sqlite",
			DataDir: filepath.Join(baseDir, "data"),
			KeyPath: filepath.Join(baseDir, "keys", "device.key"),
		},
		Token: TokenConfig{Type: "static"},
	}
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
