// Package artifacts stores report images on the local filesystem or in MinIO.
package artifacts

import (
	"context"
	"errors"
	"fmt"

	"aeye-server-go/internal/domain/report"
	"aeye-server-go/internal/platform/config"
)

// ErrNotFound is returned by Get for unknown keys.
var ErrNotFound = errors.New("artifact not found")

// New builds the configured store. MinIO buckets are created when missing.
func New(ctx context.Context, cfg config.ArtifactsConfig) (report.ArtifactStore, error) {
	switch cfg.Driver {
	case "local", "":
		return NewFileStore(cfg.Dir)
	case "minio":
		store, err := NewObjectStore(cfg.MinIO)
		if err != nil {
			return nil, err
		}
		if err := store.EnsureBucket(ctx); err != nil {
			return nil, err
		}
		return store, nil
	default:
		return nil, fmt.Errorf("unsupported artifacts driver %q", cfg.Driver)
	}
}
