// Package store persists the ordered list of session records in a single
// durable slot. The list is kept most-recent-first, capped at MaxSessions,
// and holds at most one auto-save record at any time.
package store

import (
	"context"
	"errors"

	"github.com/sessionguard/sessionguard/pkg/snapshot"
)

// MaxSessions is the retention cap. Records beyond the cap are dropped
// silently, oldest first.
const MaxSessions = 50

// ErrNotFound is returned when an operation names a record id that does
// not exist in the store.
var ErrNotFound = errors.New("session not found")

// Store is durable CRUD over the ordered session list.
//
// ListAll and FindLatestAuto degrade on storage failure (empty list / no
// record) instead of propagating; Save and Delete surface failures so the
// caller decides whether to retry.
type Store interface {
	// ListAll returns all records, most-recent-first.
	ListAll(ctx context.Context) []snapshot.SessionRecord

	// Get returns the record with the given id, or ErrNotFound.
	Get(ctx context.Context, id string) (snapshot.SessionRecord, error)

	// Save inserts the record at the front of the list. An auto-save
	// record replaces any existing auto-save instead of appending. The
	// list is then truncated to MaxSessions and persisted as one write.
	Save(ctx context.Context, record snapshot.SessionRecord) error

	// Update rewrites the record with the same id at its current list
	// position, or returns ErrNotFound. The list order is untouched.
	Update(ctx context.Context, record snapshot.SessionRecord) error

	// Delete removes the record with the given id. Deleting an absent id
	// is a no-op, not an error.
	Delete(ctx context.Context, id string) error

	// FindLatestAuto returns the single auto-save record, if present.
	FindLatestAuto(ctx context.Context) (snapshot.SessionRecord, bool)
}
