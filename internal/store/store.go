// Package store implements the versioned record store underlying documents,
// threads, posts, support requests, and volunteers. Two backends share one
// contract: an in-process memory engine and a Postgres table keyed by
// (kind, id) with the record payload as JSONB.
package store

import (
	"context"

	"agora/core/internal/domain"
)

// AnyVersion disables the optimistic version check on Update: concurrent
// writers are serialized per id and the last writer wins, each bumping the
// version by exactly 1. Passing a concrete expected version instead makes a
// lost race fail with a CONFLICT error so the caller can retry.
const AnyVersion int64 = 0

// Mutator edits a record in place. It runs on a private copy under the
// record's write lock; returning an error aborts the write and leaves the
// stored record untouched.
type Mutator func(domain.Record) error

type Store interface {
	// Create inserts a fully populated record. A duplicate id within the
	// kind fails with a CONFLICT error.
	Create(ctx context.Context, rec domain.Record) error

	// Get returns a snapshot of the record, or nil (and no error) when the
	// id is unknown or was deleted.
	Get(ctx context.Context, kind domain.Kind, id string) (domain.Record, error)

	// List returns snapshots of every record of the kind ordered by
	// creation time.
	List(ctx context.Context, kind domain.Kind) ([]domain.Record, error)

	// Update applies mutate as the given actor, serialized against other
	// writes to the same id. On success the version is bumped by exactly 1
	// and UpdatedAt refreshed. Fails with NOT_FOUND for unknown ids,
	// NOT_AUTHORIZED when actor is not the stored author, and CONFLICT
	// when expected is not AnyVersion and does not match.
	Update(ctx context.Context, kind domain.Kind, id, actor string, expected int64, mutate Mutator) (domain.Record, error)

	// Mutate is the counter write path (view counts, reply counts): same
	// per-id serialization as Update but no author check and no version
	// bump, so concurrent readers never disturb optimistic versioning.
	Mutate(ctx context.Context, kind domain.Kind, id string, mutate Mutator) (domain.Record, error)

	// Delete removes the record under the same authorization rule as
	// Update. Subsequent Gets return nil; the id is never reissued.
	Delete(ctx context.Context, kind domain.Kind, id, actor string) error

	Ping(ctx context.Context) error
}

// factories produces empty records for payload decoding, one per kind.
var factories = map[domain.Kind]func() domain.Record{
	domain.KindDocument:       func() domain.Record { return &domain.Document{} },
	domain.KindThread:         func() domain.Record { return &domain.Thread{} },
	domain.KindPost:           func() domain.Record { return &domain.Post{} },
	domain.KindSupportRequest: func() domain.Record { return &domain.SupportRequest{} },
	domain.KindVolunteer:      func() domain.Record { return &domain.Volunteer{} },
}
