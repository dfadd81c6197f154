// Package remote defines the consumed contract of the authoritative habit
// service. The core depends on this capability set; it does not implement
// the service itself.
package remote

import (
	"context"
	"time"

	"github.com/avilov/habitsync/internal/model"
)

// Service is the remote, authoritative replica of the habit set.
//
// Failures are reported as errors; the only distinguished outcome is
// errs.ErrNotFound on Fetch. Timeouts surface as ordinary errors from the
// underlying transport.
type Service interface {
	// Fetch returns a habit by ID, or errs.ErrNotFound.
	Fetch(ctx context.Context, id string) (*model.Habit, error)

	// List returns all habits known to the remote side.
	List(ctx context.Context) ([]model.Habit, error)

	// Create stores a new habit and returns it with the remote-minted ID.
	// Any ID on the input is ignored.
	Create(ctx context.Context, h model.Habit) (*model.Habit, error)

	// Update replaces the habit stored under id.
	Update(ctx context.Context, id string, h model.Habit) (*model.Habit, error)

	// Delete removes the habit stored under id.
	Delete(ctx context.Context, id string) error

	// RemovedSince reports which of the candidate IDs the remote side
	// knows were deleted, with their deletion times. IDs it has never
	// seen, or still holds, are absent from the result.
	RemovedSince(ctx context.Context, ids []string) (map[string]time.Time, error)
}
