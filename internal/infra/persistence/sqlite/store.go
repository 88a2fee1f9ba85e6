// Package sqlite persists the dataset to a single SQLite table holding one
// JSON array per bucket. The whole table is rewritten after every commit.
package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"safetynet/internal/infra/persistence/document"
	"safetynet/internal/infra/persistence/memory"
	"safetynet/internal/infra/persistence/snapshot"
	"safetynet/pkg/domain"

	_ "modernc.org/sqlite" // pure go sqlite driver
)

// DefaultPath is used when no database path is configured.
const DefaultPath = "safetynet.db"

// Backend implements snapshot.Backend over a SQLite database file.
type Backend struct {
	db   *sql.DB
	path string
}

// Open opens (creating if needed) the database at path and ensures the state table exists.
func Open(ctx context.Context, path string) (*Backend, error) {
	if path == "" {
		path = DefaultPath
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o750); err != nil && !errors.Is(err, os.ErrExist) {
		return nil, fmt.Errorf("create dirs: %w", err)
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	if _, err := db.ExecContext(ctx, `CREATE TABLE IF NOT EXISTS state (
		bucket TEXT PRIMARY KEY,
		payload BLOB NOT NULL
	)`); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("create state table: %w", err)
	}
	return &Backend{db: db, path: path}, nil
}

// NewStore constructs a snapshotting SQLite-backed persistent store.
func NewStore(ctx context.Context, path string, engine *domain.RulesEngine, opts ...snapshot.Option) (*snapshot.Store, error) {
	backend, err := Open(ctx, path)
	if err != nil {
		return nil, err
	}
	st, err := snapshot.Open(ctx, backend, engine, opts...)
	if err != nil {
		_ = backend.Close()
		return nil, err
	}
	return st, nil
}

// Name identifies the backend in logs and errors.
func (b *Backend) Name() string { return "sqlite:" + b.path }

// Load reads every bucket row. An empty table means no document.
func (b *Backend) Load(ctx context.Context) (memory.Snapshot, error) {
	rows, err := b.db.QueryContext(ctx, `SELECT bucket, payload FROM state`)
	if err != nil {
		return memory.Snapshot{}, fmt.Errorf("select state: %w", err)
	}
	defer func() { _ = rows.Close() }()
	var (
		s     memory.Snapshot
		found bool
	)
	for rows.Next() {
		var bucket string
		var payload []byte
		if err := rows.Scan(&bucket, &payload); err != nil {
			return memory.Snapshot{}, fmt.Errorf("scan: %w", err)
		}
		found = true
		if err := document.DecodeBucket(&s, bucket, payload); err != nil {
			return memory.Snapshot{}, err
		}
	}
	if err := rows.Err(); err != nil {
		return memory.Snapshot{}, fmt.Errorf("iterate state: %w", err)
	}
	if !found {
		return memory.Snapshot{}, snapshot.ErrNoDocument
	}
	return s, nil
}

// Save upserts every bucket inside one SQL transaction.
func (b *Backend) Save(ctx context.Context, s memory.Snapshot) (retErr error) {
	buckets, err := document.EncodeBuckets(s)
	if err != nil {
		return err
	}
	tx, err := b.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() {
		if retErr != nil {
			_ = tx.Rollback()
		}
	}()
	for _, bucket := range document.Buckets {
		if _, err := tx.ExecContext(ctx, `INSERT INTO state(bucket,payload) VALUES(?,?) ON CONFLICT(bucket) DO UPDATE SET payload=excluded.payload`, bucket, buckets[bucket]); err != nil {
			return fmt.Errorf("upsert %s: %w", bucket, err)
		}
	}
	return tx.Commit()
}

// Close closes the database handle.
func (b *Backend) Close() error { return b.db.Close() }

// DB exposes the underlying sql.DB for integration testing hooks.
func (b *Backend) DB() *sql.DB { return b.db }

// Path returns the configured database path.
func (b *Backend) Path() string { return b.path }
