package core

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"safetynet/internal/infra/blob"
	blobcore "safetynet/internal/infra/blob/core"
	"safetynet/internal/infra/blob/s3"
	"safetynet/internal/infra/persistence/blobdoc"
	"safetynet/internal/infra/persistence/document"
	"safetynet/internal/infra/persistence/memory"
	"safetynet/internal/infra/persistence/postgres"
	redisstore "safetynet/internal/infra/persistence/redis"
	"safetynet/internal/infra/persistence/snapshot"
	"safetynet/internal/infra/persistence/sqlite"
)

// StorageDriver identifies a concrete persistent storage implementation.
type StorageDriver string

const (
	StorageMemory   StorageDriver = "memory"   // in-memory only (tests / ephemeral)
	StorageFS       StorageDriver = "fs"       // JSON document file (default)
	StorageS3       StorageDriver = "s3"       // JSON document object in S3 / MinIO
	StorageSQLite   StorageDriver = "sqlite"   // embedded sqlite file
	StoragePostgres StorageDriver = "postgres" // PostgreSQL server
	StorageRedis    StorageDriver = "redis"    // one Redis key
)

// StorageConfig carries every driver's settings; only the selected driver's
// fields are read.
type StorageConfig struct {
	Driver      StorageDriver
	DataPath    string // fs: document file
	SeedPath    string // memory/sqlite/postgres/redis/s3: document loaded when the backend is empty
	SQLitePath  string
	PostgresDSN string
	Redis       redisstore.Options
	S3          s3.Config
	S3Key       string
}

// OpenPersistentStore selects and loads a backend. Any load failure is
// returned and must abort startup.
func OpenPersistentStore(ctx context.Context, cfg StorageConfig, engine *RulesEngine) (PersistentStore, error) {
	if engine == nil {
		engine = NewDefaultRulesEngine()
	}
	driver := cfg.Driver
	if driver == "" {
		driver = StorageFS
	}
	opts := seedOptions(cfg.SeedPath)
	switch driver {
	case StorageMemory:
		st := memory.NewStore(engine)
		if cfg.SeedPath != "" {
			seed, err := LoadDocumentFile(cfg.SeedPath)
			if err != nil {
				return nil, err
			}
			st.ImportState(seed)
		}
		return st, nil
	case StorageFS:
		if cfg.DataPath == "" {
			return nil, fmt.Errorf("fs driver requires a data path")
		}
		blobs, err := blob.Open(ctx, blob.Config{Driver: blobcore.DriverFilesystem, FSRoot: filepath.Dir(cfg.DataPath)})
		if err != nil {
			return nil, err
		}
		return blobdoc.NewStore(ctx, blobs, filepath.Base(cfg.DataPath), engine)
	case StorageS3:
		blobs, err := blob.Open(ctx, blob.Config{Driver: blobcore.DriverS3, S3: cfg.S3})
		if err != nil {
			return nil, err
		}
		return blobdoc.NewStore(ctx, blobs, cfg.S3Key, engine, opts...)
	case StorageSQLite:
		return sqlite.NewStore(ctx, cfg.SQLitePath, engine, opts...)
	case StoragePostgres:
		return postgres.NewStore(ctx, cfg.PostgresDSN, engine, opts...)
	case StorageRedis:
		return redisstore.NewStore(ctx, cfg.Redis, engine, opts...)
	default:
		return nil, fmt.Errorf("unknown storage driver %s", driver)
	}
}

// LoadDocumentFile reads and decodes a dataset document from disk.
func LoadDocumentFile(path string) (memory.Snapshot, error) {
	// #nosec G304 -- operator-supplied path
	data, err := os.ReadFile(path)
	if err != nil {
		return memory.Snapshot{}, fmt.Errorf("read document %s: %w", path, err)
	}
	s, err := document.Decode(data)
	if err != nil {
		return memory.Snapshot{}, fmt.Errorf("decode document %s: %w", path, err)
	}
	return s, nil
}

func seedOptions(seedPath string) []snapshot.Option {
	if seedPath == "" {
		return []snapshot.Option{snapshot.WithAllowEmpty()}
	}
	return []snapshot.Option{snapshot.WithSeed(func() (memory.Snapshot, error) {
		return LoadDocumentFile(seedPath)
	})}
}
