package mirror

import (
	"context"
	"fmt"

	"safeop/internal/config"
	"safeop/internal/safeop"
)

// NewMirrorFromConfig creates a Mirror based on the mirror config type.
// It returns nil when mirroring is disabled.
func NewMirrorFromConfig(ctx context.Context, cfg config.MirrorConfig) (safeop.Mirror, error) {
	switch cfg.Type {
	case "none", "":
		return nil, nil
	case "memory":
		return NewMemoryMirror(), nil
	case "directory":
		if cfg.Dir == "" {
			return nil, fmt.Errorf("dir required for directory mirror")
		}
		m, err := NewDirectoryMirror(cfg.Dir)
		if err != nil {
			return nil, err
		}
		return m, nil
	case "s3":
		m, err := NewS3Mirror(ctx, cfg)
		if err != nil {
			return nil, err
		}
		return m, nil
	default:
		return nil, fmt.Errorf("unknown mirror type: %s", cfg.Type)
	}
}
