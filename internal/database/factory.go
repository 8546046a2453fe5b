package database

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"safeop/internal/config"
	"safeop/internal/safeop"
)

// IndexFileName is the default index location inside the backup root.
const IndexFileName = "index.db"

// ErrUnknownIndexType reports an index.type the factory does not know.
var ErrUnknownIndexType = errors.New("unknown index type")

// NewIndexFromConfig creates an Index implementation based on the index config type.
// A sqlite index without an explicit path lives in the backup root.
func NewIndexFromConfig(cfg config.IndexConfig, backupRoot string) (safeop.Index, error) {
	switch cfg.Type {
	case "sqlite", "":
		path := cfg.Path
		if path == "" {
			if backupRoot == "" {
				return nil, fmt.Errorf("backup root required for sqlite index without path")
			}
			path = filepath.Join(backupRoot, IndexFileName)
		}
		return openIndex(path)
	case "memory":
		return openIndex(":memory:")
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnknownIndexType, cfg.Type)
	}
}

// NewReadOnlyIndexFromConfig opens the configured index for commands that
// only read. It never creates anything on disk: when the sqlite file does
// not exist yet, an empty in-memory index stands in for it.
func NewReadOnlyIndexFromConfig(cfg config.IndexConfig, backupRoot string) (safeop.Index, error) {
	if cfg.Type == "sqlite" || cfg.Type == "" {
		path := cfg.Path
		if path == "" && backupRoot != "" {
			path = filepath.Join(backupRoot, IndexFileName)
		}
		if path != "" {
			if _, err := os.Stat(path); errors.Is(err, fs.ErrNotExist) {
				return openIndex(":memory:")
			}
		}
	}
	return NewIndexFromConfig(cfg, backupRoot)
}

// openIndex avoids returning a typed nil inside the interface on error.
func openIndex(path string) (safeop.Index, error) {
	idx, err := NewSQLiteIndex(path)
	if err != nil {
		return nil, err
	}
	return idx, nil
}
