// Package redis persists the dataset as one JSON document stored under a
// single Redis key. SET replaces the value atomically.
package redis

import (
	"context"
	"errors"
	"fmt"

	goredis "github.com/redis/go-redis/v9"

	"safetynet/internal/infra/persistence/document"
	"safetynet/internal/infra/persistence/memory"
	"safetynet/internal/infra/persistence/snapshot"
	"safetynet/pkg/domain"
)

// DefaultKey is the Redis key used when none is configured.
const DefaultKey = "safetynet:document"

// Options configures the Redis connection.
type Options struct {
	Addr     string
	Password string
	DB       int
	Key      string
}

// Backend implements snapshot.Backend over a Redis string key.
type Backend struct {
	client *goredis.Client
	key    string
}

// NewClient builds a go-redis client from opts.
func NewClient(opts Options) *goredis.Client {
	return goredis.NewClient(&goredis.Options{
		Addr:     opts.Addr,
		Password: opts.Password,
		DB:       opts.DB,
	})
}

// NewBackend wraps an existing client. key defaults to DefaultKey.
func NewBackend(client *goredis.Client, key string) *Backend {
	if key == "" {
		key = DefaultKey
	}
	return &Backend{client: client, key: key}
}

// NewStore connects, pings and hydrates a store from the document key.
func NewStore(ctx context.Context, opts Options, engine *domain.RulesEngine, storeOpts ...snapshot.Option) (*snapshot.Store, error) {
	client := NewClient(opts)
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("ping redis %s: %w", opts.Addr, err)
	}
	backend := NewBackend(client, opts.Key)
	st, err := snapshot.Open(ctx, backend, engine, storeOpts...)
	if err != nil {
		_ = backend.Close()
		return nil, err
	}
	return st, nil
}

// Name identifies the backend in logs and errors.
func (b *Backend) Name() string { return "redis:" + b.key }

// Load fetches and decodes the document.
func (b *Backend) Load(ctx context.Context) (memory.Snapshot, error) {
	data, err := b.client.Get(ctx, b.key).Bytes()
	if err != nil {
		if errors.Is(err, goredis.Nil) {
			return memory.Snapshot{}, snapshot.ErrNoDocument
		}
		return memory.Snapshot{}, fmt.Errorf("get %s: %w", b.key, err)
	}
	return document.Decode(data)
}

// Save replaces the document value.
func (b *Backend) Save(ctx context.Context, s memory.Snapshot) error {
	data, err := document.Encode(s)
	if err != nil {
		return err
	}
	if err := b.client.Set(ctx, b.key, data, 0).Err(); err != nil {
		return fmt.Errorf("set %s: %w", b.key, err)
	}
	return nil
}

// Close closes the client.
func (b *Backend) Close() error { return b.client.Close() }
