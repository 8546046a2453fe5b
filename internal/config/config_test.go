package config

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestManager_ReadWrite_RoundTrip(t *testing.T) {
	original := &Config{
		BaseDir:     "/home/user/.local/share/safeop",
		LogDir:      "/home/user/.local/share/safeop/log",
		BackupRoot:  "/srv/backups",
		MaxBackups:  5,
		DisableLock: true,
		Index:       IndexConfig{Type: "sqlite", Path: "/srv/backups/meta.db"},
		Encryption: EncryptionConfig{
			Type:           "age",
			PublicKeyPath:  "/home/user/.local/share/safeop/keys/safeop.pub",
			PrivateKeyPath: "/home/user/.local/share/safeop/keys/safeop.key",
		},
		Mirror: MirrorConfig{
			Type:           "s3",
			S3Bucket:       "team-backups",
			S3Prefix:       "safeop",
			S3Region:       "eu-west-1",
			S3Endpoint:     "http://localhost:9000",
			S3PathStyle:    true,
			TimeoutSeconds: 10,
		},
	}

	var buf bytes.Buffer
	m := &Manager{}

	if err := m.Write(&buf, original); err != nil {
		t.Fatalf("Write() error = %v", err)
	}

	got, err := m.Read(&buf)
	if err != nil {
		t.Fatalf("Read() error = %v", err)
	}

	if got.BaseDir != original.BaseDir {
		t.Errorf("BaseDir = %q, want %q", got.BaseDir, original.BaseDir)
	}
	if got.BackupRoot != original.BackupRoot {
		t.Errorf("BackupRoot = %q, want %q", got.BackupRoot, original.BackupRoot)
	}
	if got.MaxBackups != 5 {
		t.Errorf("MaxBackups = %d, want 5", got.MaxBackups)
	}
	if !got.DisableLock {
		t.Error("DisableLock = false, want true")
	}
	if got.Index.Path != original.Index.Path {
		t.Errorf("Index.Path = %q, want %q", got.Index.Path, original.Index.Path)
	}
	if got.Encryption.Type != "age" {
		t.Errorf("Encryption.Type = %q, want %q", got.Encryption.Type, "age")
	}
	if got.Mirror.S3Bucket != "team-backups" {
		t.Errorf("Mirror.S3Bucket = %q, want %q", got.Mirror.S3Bucket, "team-backups")
	}
	if !got.Mirror.S3PathStyle {
		t.Error("Mirror.S3PathStyle = false, want true")
	}
	if got.Mirror.TimeoutSeconds != 10 {
		t.Errorf("Mirror.TimeoutSeconds = %d, want 10", got.Mirror.TimeoutSeconds)
	}
}

func TestNewConfig(t *testing.T) {
	cfg := NewConfig("/data/safeop")

	if cfg.LogDir != "/data/safeop/log" {
		t.Errorf("LogDir = %q, want %q", cfg.LogDir, "/data/safeop/log")
	}
	if cfg.BackupRoot != DefaultBackupRoot {
		t.Errorf("BackupRoot = %q, want %q", cfg.BackupRoot, DefaultBackupRoot)
	}
	if cfg.MaxBackups != DefaultMaxBackups {
		t.Errorf("MaxBackups = %d, want %d", cfg.MaxBackups, DefaultMaxBackups)
	}
	if cfg.Encryption.PublicKeyPath != "/data/safeop/keys/safeop.pub" {
		t.Errorf("Encryption.PublicKeyPath = %q", cfg.Encryption.PublicKeyPath)
	}
	if cfg.Encryption.Type != "none" || cfg.Mirror.Type != "none" {
		t.Errorf("optional features enabled by default: encryption=%q mirror=%q", cfg.Encryption.Type, cfg.Mirror.Type)
	}
}

func TestConfig_MaxBackupsOrDefault(t *testing.T) {
	tests := []struct {
		set  int
		want int
	}{
		{set: 0, want: DefaultMaxBackups},
		{set: 3, want: 3},
	}
	for _, tt := range tests {
		cfg := &Config{MaxBackups: tt.set}
		if got := cfg.MaxBackupsOrDefault(); got != tt.want {
			t.Errorf("MaxBackupsOrDefault() with %d = %d, want %d", tt.set, got, tt.want)
		}
	}
}

func TestConfig_LockWaitDuration(t *testing.T) {
	tests := []struct {
		set  int
		want time.Duration
	}{
		{set: 0, want: DefaultLockWaitSeconds * time.Second},
		{set: 5, want: 5 * time.Second},
		{set: -1, want: 0},
	}
	for _, tt := range tests {
		cfg := &Config{LockWait: tt.set}
		if got := cfg.LockWaitDuration(); got != tt.want {
			t.Errorf("LockWaitDuration() with %d = %v, want %v", tt.set, got, tt.want)
		}
	}
}

func TestInit(t *testing.T) {
	t.Run("creates config file", func(t *testing.T) {
		dir := t.TempDir()
		path := filepath.Join(dir, "safeop.toml")

		if err := Init(path, NewConfig(dir)); err != nil {
			t.Fatalf("Init() error = %v", err)
		}
		if _, err := os.Stat(path); err != nil {
			t.Fatalf("config file not created: %v", err)
		}
	})

	t.Run("fails if file already exists", func(t *testing.T) {
		dir := t.TempDir()
		path := filepath.Join(dir, "safeop.toml")
		cfg := NewConfig(dir)

		if err := Init(path, cfg); err != nil {
			t.Fatalf("first Init() error = %v", err)
		}
		if err := Init(path, cfg); err == nil {
			t.Fatal("second Init() expected error")
		}
	})
}

func TestReadFromFile(t *testing.T) {
	t.Run("reads valid config", func(t *testing.T) {
		dir := t.TempDir()
		path := filepath.Join(dir, "safeop.toml")
		cfg := NewConfig(dir)
		cfg.Index = IndexConfig{Type: "memory"}

		if err := Init(path, cfg); err != nil {
			t.Fatalf("Init() error = %v", err)
		}

		got, err := ReadFromFile(path)
		if err != nil {
			t.Fatalf("ReadFromFile() error = %v", err)
		}
		if got.Index.Type != "memory" {
			t.Errorf("Index.Type = %q, want %q", got.Index.Type, "memory")
		}
	})

	t.Run("returns error for missing file", func(t *testing.T) {
		if _, err := ReadFromFile("/nonexistent/path/safeop.toml"); err == nil {
			t.Fatal("ReadFromFile() expected error for missing file")
		}
	})
}

func TestLoad(t *testing.T) {
	t.Run("missing file yields defaults", func(t *testing.T) {
		dir := t.TempDir()
		cfg, err := Load(filepath.Join(dir, "absent.toml"), dir)
		if err != nil {
			t.Fatalf("Load() error = %v", err)
		}
		if cfg.MaxBackups != DefaultMaxBackups || cfg.BaseDir != dir {
			t.Errorf("Load() = %+v, want defaults", cfg)
		}
	})

	t.Run("partial file keeps defaults", func(t *testing.T) {
		dir := t.TempDir()
		path := filepath.Join(dir, "safeop.toml")
		content := "max_backups = 3\n\n[mirror]\ntype = \"memory\"\n"
		if err := os.WriteFile(path, []byte(content), 0644); err != nil {
			t.Fatal(err)
		}

		cfg, err := Load(path, dir)
		if err != nil {
			t.Fatalf("Load() error = %v", err)
		}
		if cfg.MaxBackups != 3 {
			t.Errorf("MaxBackups = %d, want 3", cfg.MaxBackups)
		}
		if cfg.Mirror.Type != "memory" {
			t.Errorf("Mirror.Type = %q, want %q", cfg.Mirror.Type, "memory")
		}
		if cfg.BackupRoot != DefaultBackupRoot {
			t.Errorf("BackupRoot = %q, want default", cfg.BackupRoot)
		}
		if cfg.Index.Type != "sqlite" {
			t.Errorf("Index.Type = %q, want default sqlite", cfg.Index.Type)
		}
	})

	t.Run("negative max_backups rejected", func(t *testing.T) {
		dir := t.TempDir()
		path := filepath.Join(dir, "safeop.toml")
		if err := os.WriteFile(path, []byte("max_backups = -1\n"), 0644); err != nil {
			t.Fatal(err)
		}
		if _, err := Load(path, dir); err == nil {
			t.Fatal("Load() expected error for negative max_backups")
		}
	})

	t.Run("malformed file", func(t *testing.T) {
		dir := t.TempDir()
		path := filepath.Join(dir, "safeop.toml")
		if err := os.WriteFile(path, []byte("max_backups = \"many\"\n"), 0644); err != nil {
			t.Fatal(err)
		}
		if _, err := Load(path, dir); err == nil {
			t.Fatal("Load() expected error for malformed config")
		}
	})
}
