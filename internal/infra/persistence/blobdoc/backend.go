// Package blobdoc stores the dataset as one JSON document inside a blob
// store: a local file for the fs driver, an object for the s3 driver.
package blobdoc

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"

	"safetynet/internal/infra/blob/core"
	"safetynet/internal/infra/persistence/document"
	"safetynet/internal/infra/persistence/memory"
	"safetynet/internal/infra/persistence/snapshot"
	"safetynet/pkg/domain"
)

// DefaultKey is the blob key used when none is configured.
const DefaultKey = "data.json"

// Backend reads and writes the document under a single blob key.
type Backend struct {
	blobs core.Store
	key   string
}

// NewBackend binds a backend to key inside blobs.
func NewBackend(blobs core.Store, key string) *Backend {
	if key == "" {
		key = DefaultKey
	}
	return &Backend{blobs: blobs, key: key}
}

// NewStore opens a durable store over the document at key.
func NewStore(ctx context.Context, blobs core.Store, key string, engine *domain.RulesEngine, opts ...snapshot.Option) (*snapshot.Store, error) {
	return snapshot.Open(ctx, NewBackend(blobs, key), engine, opts...)
}

// Name reports the blob driver and key.
func (b *Backend) Name() string { return fmt.Sprintf("%s:%s", b.blobs.Driver(), b.key) }

// Key returns the blob key holding the document.
func (b *Backend) Key() string { return b.key }

// Load reads and decodes the document.
func (b *Backend) Load(ctx context.Context) (memory.Snapshot, error) {
	_, rc, err := b.blobs.Get(ctx, b.key)
	if err != nil {
		if errors.Is(err, core.ErrNotFound) {
			return memory.Snapshot{}, fmt.Errorf("%w: %w", snapshot.ErrNoDocument, err)
		}
		return memory.Snapshot{}, fmt.Errorf("read %s: %w", b.key, err)
	}
	defer func() { _ = rc.Close() }()
	data, err := io.ReadAll(rc)
	if err != nil {
		return memory.Snapshot{}, fmt.Errorf("read %s: %w", b.key, err)
	}
	return document.Decode(data)
}

// Save encodes the snapshot and replaces the document.
func (b *Backend) Save(ctx context.Context, s memory.Snapshot) error {
	data, err := document.Encode(s)
	if err != nil {
		return err
	}
	_, err = b.blobs.Put(ctx, b.key, bytes.NewReader(data), core.PutOptions{ContentType: "application/json"})
	return err
}

// Close is a no-op; blob stores hold no long-lived resources.
func (b *Backend) Close() error { return nil }
