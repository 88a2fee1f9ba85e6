// Package blob selects a core.Store implementation for the document driver.
package blob

import (
	"context"
	"fmt"

	"safetynet/internal/infra/blob/core"
	"safetynet/internal/infra/blob/fs"
	"safetynet/internal/infra/blob/memory"
	"safetynet/internal/infra/blob/s3"
)

// Config carries the settings consumed by Open.
type Config struct {
	Driver core.Driver
	FSRoot string
	S3     s3.Config
}

// Open constructs the blob store named by cfg.Driver (default fs).
func Open(ctx context.Context, cfg Config) (core.Store, error) {
	driver := cfg.Driver
	if driver == "" {
		driver = core.DriverFilesystem
	}
	switch driver {
	case core.DriverFilesystem:
		return fs.New(cfg.FSRoot)
	case core.DriverS3:
		return s3.New(ctx, cfg.S3)
	case core.DriverMemory:
		return memory.New(), nil
	default:
		return nil, fmt.Errorf("unknown blob driver %s", driver)
	}
}
