// Package snapshot turns the in-memory store into a durable one. Every
// committed transaction is followed by a full-document Save on the backend.
package snapshot

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"safetynet/internal/infra/persistence/memory"
	"safetynet/pkg/domain"
)

var _ domain.PersistentStore = (*Store)(nil)

// ErrNoDocument is returned by Backend.Load when nothing has been stored yet.
var ErrNoDocument = errors.New("no stored document")

// Backend loads and saves the whole dataset.
type Backend interface {
	Name() string
	Load(ctx context.Context) (memory.Snapshot, error)
	Save(ctx context.Context, snapshot memory.Snapshot) error
	Close() error
}

// Store embeds the in-memory store and persists its state after each commit.
type Store struct {
	*memory.Store
	backend Backend
	writeMu sync.Mutex
}

type openOptions struct {
	seed       func() (memory.Snapshot, error)
	allowEmpty bool
}

// Option customises Open.
type Option func(*openOptions)

// WithSeed supplies the dataset used when the backend holds no document.
// The seed is written back immediately so later starts load it directly.
func WithSeed(seed func() (memory.Snapshot, error)) Option {
	return func(o *openOptions) { o.seed = seed }
}

// WithAllowEmpty starts from an empty dataset when the backend holds no
// document and no seed is configured.
func WithAllowEmpty() Option {
	return func(o *openOptions) { o.allowEmpty = true }
}

// Open loads the backend document into a fresh in-memory store. A missing
// document is fatal unless a seed or WithAllowEmpty is given; unreadable or
// malformed documents are always fatal.
func Open(ctx context.Context, backend Backend, engine *domain.RulesEngine, opts ...Option) (*Store, error) {
	var o openOptions
	for _, opt := range opts {
		opt(&o)
	}
	mem := memory.NewStore(engine)
	s := &Store{Store: mem, backend: backend}
	loaded, err := backend.Load(ctx)
	switch {
	case err == nil:
		mem.ImportState(loaded)
		return s, nil
	case !errors.Is(err, ErrNoDocument):
		return nil, fmt.Errorf("load %s document: %w", backend.Name(), err)
	case o.seed != nil:
		seed, seedErr := o.seed()
		if seedErr != nil {
			return nil, fmt.Errorf("load seed for %s: %w", backend.Name(), seedErr)
		}
		mem.ImportState(seed)
		if err := s.persist(ctx); err != nil {
			return nil, fmt.Errorf("write seed to %s: %w", backend.Name(), err)
		}
		return s, nil
	case o.allowEmpty:
		return s, nil
	default:
		return nil, fmt.Errorf("load %s document: %w", backend.Name(), err)
	}
}

// RunInTransaction commits through the in-memory store, then saves the full
// state. A failed save leaves the commit in place and returns a
// domain.PersistenceError alongside the rule result.
func (s *Store) RunInTransaction(ctx context.Context, fn func(domain.Transaction) error) (domain.Result, error) {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()
	res, err := s.Store.RunInTransaction(ctx, fn)
	if err != nil {
		return res, err
	}
	if err := s.persist(ctx); err != nil {
		return res, domain.PersistenceError{Op: "commit", Err: err}
	}
	return res, nil
}

// Flush saves the current state without a mutation.
func (s *Store) Flush(ctx context.Context) error {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()
	return s.persist(ctx)
}

// Backend exposes the configured backend.
func (s *Store) Backend() Backend { return s.backend }

// Close releases backend resources.
func (s *Store) Close() error { return s.backend.Close() }

func (s *Store) persist(ctx context.Context) error {
	if err := s.backend.Save(ctx, s.ExportState()); err != nil {
		return fmt.Errorf("save %s document: %w", s.backend.Name(), err)
	}
	return nil
}
