// Package store defines the conversation store capability shared by the
// file, pebble and postgres backends. A deployment picks exactly one backend
// via configuration; callers only see this interface.
package store

import (
	"context"
	"errors"

	"contextdb/pkg/models"
)

// ErrNotFound is returned when an operation requires an existing log and
// none is present (export only; plain fetch of an absent log yields an empty
// sequence instead).
var ErrNotFound = errors.New("no conversation log found")

// ErrUnauthorized is returned by owner-scoped backends when no principal can
// be resolved from the request context.
var ErrUnauthorized = errors.New("unauthorized")

// Store is the conversation store. All operations take the raw chat id from
// the caller; implementations sanitize it before touching storage.
//
// Concurrency contract: DeleteOne and Overwrite are read-modify-write and
// must be mutually exclusive per chat id; Append must serialize with any
// in-flight Overwrite or DeleteAll for the same id.
type Store interface {
	// Fetch returns the ordered log, or an empty slice when no log exists.
	Fetch(ctx context.Context, chatID string) ([]models.MessageRecord, error)
	// Append assigns ID/CreatedAt when absent, writes one record and returns
	// the materialized record. Provisions the container on first use.
	Append(ctx context.Context, chatID string, rec models.MessageRecord) (models.MessageRecord, error)
	// DeleteOne removes the record whose id equals messageID, preserving the
	// relative order of the rest. Missing records are an idempotent no-op.
	DeleteOne(ctx context.Context, chatID, messageID string) error
	// Overwrite replaces the entire log all-or-nothing. An empty recs slice
	// removes the log.
	Overwrite(ctx context.Context, chatID string, recs []models.MessageRecord) error
	// DeleteAll removes the entire log. Idempotent.
	DeleteAll(ctx context.Context, chatID string) error
	// Exists reports whether a log exists for the id.
	Exists(ctx context.Context, chatID string) (bool, error)
	// List enumerates known conversation ids (owner-scoped backends list
	// only the caller's own conversations).
	List(ctx context.Context) ([]string, error)
	Close() error
}
