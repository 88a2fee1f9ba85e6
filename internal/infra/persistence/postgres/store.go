// Package postgres persists the dataset to a Postgres state table holding one
// JSONB array per bucket, rewritten in one transaction after every commit.
package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"sync"

	"safetynet/internal/infra/persistence/document"
	"safetynet/internal/infra/persistence/memory"
	"safetynet/internal/infra/persistence/snapshot"
	"safetynet/pkg/domain"

	_ "github.com/jackc/pgx/v5/stdlib" // register pgx as a database/sql driver
)

const (
	defaultDriver = "pgx"
	// DefaultDSN is used when no DSN is configured.
	DefaultDSN = "postgres://localhost/safetynet?sslmode=disable"
)

var (
	sqlOpen = sql.Open
	openMu  sync.Mutex
)

// Backend implements snapshot.Backend over a Postgres database.
type Backend struct {
	db *sql.DB
}

// Open connects to dsn, pings the server and ensures the state table exists.
func Open(ctx context.Context, dsn string) (*Backend, error) {
	if dsn == "" {
		dsn = DefaultDSN
	}
	openMu.Lock()
	db, err := sqlOpen(defaultDriver, dsn)
	openMu.Unlock()
	if err != nil {
		return nil, fmt.Errorf("open postgres: %w", err)
	}
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping postgres: %w", err)
	}
	if err := ensureStateTable(ctx, db); err != nil {
		_ = db.Close()
		return nil, err
	}
	return &Backend{db: db}, nil
}

// NewStore opens a Postgres-backed store and hydrates it from the state table.
func NewStore(ctx context.Context, dsn string, engine *domain.RulesEngine, opts ...snapshot.Option) (*snapshot.Store, error) {
	backend, err := Open(ctx, dsn)
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

func ensureStateTable(ctx context.Context, db *sql.DB) error {
	ddl := `CREATE TABLE IF NOT EXISTS state (
		bucket TEXT PRIMARY KEY,
		payload JSONB NOT NULL
	)`
	if _, err := db.ExecContext(ctx, ddl); err != nil {
		return fmt.Errorf("ensure state table: %w", err)
	}
	return nil
}

// Name identifies the backend in logs and errors.
func (b *Backend) Name() string { return "postgres" }

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
			return memory.Snapshot{}, fmt.Errorf("scan state: %w", err)
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

// Save upserts every bucket inside one transaction.
func (b *Backend) Save(ctx context.Context, s memory.Snapshot) error {
	buckets, err := document.EncodeBuckets(s)
	if err != nil {
		return err
	}
	tx, err := b.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	committed := false
	defer func() {
		if !committed {
			_ = tx.Rollback()
		}
	}()
	for _, bucket := range document.Buckets {
		if _, err := tx.ExecContext(ctx, `INSERT INTO state(bucket,payload) VALUES($1,$2) ON CONFLICT(bucket) DO UPDATE SET payload=EXCLUDED.payload`, bucket, buckets[bucket]); err != nil {
			return fmt.Errorf("upsert %s: %w", bucket, err)
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit: %w", err)
	}
	committed = true
	return nil
}

// Close closes the connection pool.
func (b *Backend) Close() error { return b.db.Close() }

// DB exposes the underlying sql.DB for integration testing hooks.
func (b *Backend) DB() *sql.DB { return b.db }

// OverrideSQLOpen swaps the sqlOpen function for tests and returns a restore function.
func OverrideSQLOpen(fn func(driverName, dataSourceName string) (*sql.DB, error)) func() {
	openMu.Lock()
	defer openMu.Unlock()
	prev := sqlOpen
	sqlOpen = fn
	return func() {
		openMu.Lock()
		defer openMu.Unlock()
		sqlOpen = prev
	}
}
