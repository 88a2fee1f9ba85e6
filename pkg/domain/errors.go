package domain

import (
	"errors"
	"fmt"
)

// Sentinels for errors.Is matching against the typed errors below.
var (
	ErrNotFound    = errors.New("not found")
	ErrConflict    = errors.New("already exists")
	ErrPersistence = errors.New("persistence failure")
	ErrValidation  = errors.New("invalid entity")
)

// NotFoundError is returned when a lookup by key finds nothing.
type NotFoundError struct {
	Entity EntityType
	Key    string
}

func (e NotFoundError) Error() string {
	if e.Key == "" {
		return fmt.Sprintf("%s not found", e.Entity)
	}
	return fmt.Sprintf("%s %q not found", e.Entity, e.Key)
}

// Is enables errors.Is(err, ErrNotFound).
func (e NotFoundError) Is(target error) bool { return target == ErrNotFound }

// ConflictError is returned when a create targets a key that already exists.
type ConflictError struct {
	Entity EntityType
	Key    string
}

func (e ConflictError) Error() string {
	return fmt.Sprintf("%s %q already exists", e.Entity, e.Key)
}

// Is enables errors.Is(err, ErrConflict).
func (e ConflictError) Is(target error) bool { return target == ErrConflict }

// PersistenceError reports that the full-document write failed. The in-memory
// mutation it accompanies has already been applied.
type PersistenceError struct {
	Op  string
	Err error
}

func (e PersistenceError) Error() string {
	return fmt.Sprintf("persist after %s: %v (change applied in memory only)", e.Op, e.Err)
}

// Unwrap returns the underlying backend error.
func (e PersistenceError) Unwrap() error { return e.Err }

// Is enables errors.Is(err, ErrPersistence).
func (e PersistenceError) Is(target error) bool { return target == ErrPersistence }

// ValidationError reports an entity field that fails its domain constraint.
type ValidationError struct {
	Entity EntityType
	Field  string
	Reason string
}

func (e ValidationError) Error() string {
	return fmt.Sprintf("%s.%s: %s", e.Entity, e.Field, e.Reason)
}

// Is enables errors.Is(err, ErrValidation).
func (e ValidationError) Is(target error) bool { return target == ErrValidation }
