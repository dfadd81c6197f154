// Package store defines the local Record Store contract implemented by
// concrete backends.
package store

import (
	"context"
	"time"

	"github.com/avilov/habitsync/internal/model"
)

// Store is the durable local replica of habit records and tombstones.
// It is the read-through side of the offline-first pair; the remote service
// stays authoritative for ID assignment.
//
// All mutations are durable before the call returns. Conflicting writes to
// the same record are serialized by the storage engine; no additional
// application-level lock is layered on top.
type Store interface {
	// Upsert inserts or replaces a habit record keyed by ID.
	// It is not an error if the record does not exist yet.
	Upsert(ctx context.Context, h model.Habit) error

	// Get returns a habit by ID, or errs.ErrNotFound.
	Get(ctx context.Context, id string) (*model.Habit, error)

	// ListByDate returns all habits whose [StartDate, EndDate] range
	// contains d, inclusive on both ends. A malformed d fails with
	// errs.ErrInvalidDate rather than returning an empty result.
	ListByDate(ctx context.Context, d model.Date) ([]model.Habit, error)

	// Delete removes the habit and inserts a tombstone with the given
	// deletion time in the same transaction. Deleting an absent habit
	// still records the tombstone.
	Delete(ctx context.Context, id string, deleteTime time.Time) error

	// ListIDs returns the full set of locally-known habit IDs.
	ListIDs(ctx context.Context) ([]string, error)

	// Tombstone returns the deletion time recorded for id, or
	// errs.ErrNotFound when no tombstone exists.
	Tombstone(ctx context.Context, id string) (time.Time, error)

	// DropTombstone removes the tombstone for id, if any.
	DropTombstone(ctx context.Context, id string) error

	// PruneTombstones deletes tombstones with DeleteTime before olderThan
	// and returns how many were removed.
	PruneTombstones(ctx context.Context, olderThan time.Time) (int64, error)

	// SetReminderRefs replaces the opaque reminder-identifier list of a
	// habit. The refs belong to the notification subsystem; this layer
	// only persists them. Fails with errs.ErrNotFound if the habit is
	// absent.
	SetReminderRefs(ctx context.Context, id string, refs []string) error

	// GetReminderRefs returns the reminder-identifier list of a habit,
	// or errs.ErrNotFound if the habit is absent.
	GetReminderRefs(ctx context.Context, id string) ([]string, error)

	// Close releases the underlying database handle.
	Close() error
}
