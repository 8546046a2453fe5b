package config

import (
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"time"

	"github.com/BurntSushi/toml"
)

// DefaultMaxBackups is the retention applied after each backup when the
// config does not set max_backups.
const DefaultMaxBackups = 10

// DefaultBackupRoot is the backup directory, relative to the working directory.
const DefaultBackupRoot = ".backups"

// DefaultLockWaitSeconds is how long a mutating command waits for another
// invocation to release the backup root lock.
const DefaultLockWaitSeconds = 30

// Config represents the main configuration for safeop.
type Config struct {
	BaseDir     string           `toml:"base_dir"`
	LogDir      string           `toml:"log_dir"`
	BackupRoot  string           `toml:"backup_root"`
	MaxBackups  int              `toml:"max_backups"`
	DisableLock bool             `toml:"disable_lock"`
	LockWait    int              `toml:"lock_wait_seconds,omitempty"` // 0 uses DefaultLockWaitSeconds; negative fails fast
	Index       IndexConfig      `toml:"index"`
	Encryption  EncryptionConfig `toml:"encryption"`
	Mirror      MirrorConfig     `toml:"mirror"`
}

// IndexConfig represents configuration for the artifact index.
// This uses a tagged union pattern - the Type field determines which other fields are relevant.
type IndexConfig struct {
	Type string `toml:"type"`           // "sqlite" (default) or "memory"
	Path string `toml:"path,omitempty"` // only used for type=sqlite; defaults to <backup_root>/index.db
}

// EncryptionConfig holds paths to the age key pair used for encryption.
type EncryptionConfig struct {
	Type           string `toml:"type"` // "none" (default), "age" or "test"
	PublicKeyPath  string `toml:"public_key_path"`
	PrivateKeyPath string `toml:"private_key_path"`
}

// MirrorConfig represents configuration for the remote mirror.
// This uses a tagged union pattern - the Type field determines which other fields are relevant.
type MirrorConfig struct {
	Type string `toml:"type"` // "none" (default), "memory", "directory" or "s3"

	// Directory-specific field (only used when Type == "directory")
	Dir string `toml:"dir,omitempty"`

	// S3-specific fields (only used when Type == "s3")
	S3Bucket    string `toml:"s3_bucket,omitempty"`
	S3Prefix    string `toml:"s3_prefix,omitempty"`
	S3Region    string `toml:"s3_region,omitempty"`
	S3Endpoint  string `toml:"s3_endpoint,omitempty"`   // for S3-compatible services
	S3PathStyle bool   `toml:"s3_path_style,omitempty"` // required by most S3-compatible services
	S3AccessKey string `toml:"s3_access_key,omitempty"` // falls back to the default AWS credential chain
	S3SecretKey string `toml:"s3_secret_key,omitempty"`

	TimeoutSeconds int `toml:"timeout_seconds,omitempty"` // per request; defaults to 30
}

// NewConfig creates a Config with default paths under baseDir.
func NewConfig(baseDir string) *Config {
	return &Config{
		BaseDir:    baseDir,
		LogDir:     filepath.Join(baseDir, "log"),
		BackupRoot: DefaultBackupRoot,
		MaxBackups: DefaultMaxBackups,
		Index:      IndexConfig{Type: "sqlite"},
		Encryption: EncryptionConfig{
			Type:           "none",
			PublicKeyPath:  filepath.Join(baseDir, "keys", "safeop.pub"),
			PrivateKeyPath: filepath.Join(baseDir, "keys", "safeop.key"),
		},
		Mirror: MirrorConfig{Type: "none"},
	}
}

// MaxBackupsOrDefault returns the configured retention, or
// DefaultMaxBackups when unset.
func (c *Config) MaxBackupsOrDefault() int {
	if c.MaxBackups == 0 {
		return DefaultMaxBackups
	}
	return c.MaxBackups
}

// LockWaitDuration returns how long to wait for the backup root lock.
func (c *Config) LockWaitDuration() time.Duration {
	switch {
	case c.LockWait == 0:
		return DefaultLockWaitSeconds * time.Second
	case c.LockWait < 0:
		return 0
	}
	return time.Duration(c.LockWait) * time.Second
}

// Validate checks values the TOML decoder cannot.
func (c *Config) Validate() error {
	if c.MaxBackups < 0 {
		return fmt.Errorf("max_backups must not be negative: %d", c.MaxBackups)
	}
	if c.Mirror.TimeoutSeconds < 0 {
		return fmt.Errorf("mirror.timeout_seconds must not be negative: %d", c.Mirror.TimeoutSeconds)
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
	return cfg, nil
}

// Load reads the config at path, falling back to NewConfig(baseDir) when
// the file does not exist. Fields left empty in the file take the defaults.
func Load(path, baseDir string) (*Config, error) {
	defaults := NewConfig(baseDir)

	f, err := os.Open(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return defaults, nil
		}
		return nil, fmt.Errorf("failed to open config file: %w", err)
	}
	defer f.Close()

	// Decoding over the defaults keeps any key the file omits.
	if _, err := toml.NewDecoder(f).Decode(defaults); err != nil {
		return nil, fmt.Errorf("reading config from %s: %w", path, err)
	}
	if err := defaults.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config %s: %w", path, err)
	}
	return defaults, nil
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
