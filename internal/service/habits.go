// Package service implements the user-facing habit operations: local-first
// reads, and writes mirrored inline to the remote service.
package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/avilov/habitsync/internal/model"
	"github.com/avilov/habitsync/internal/remote"
	"github.com/avilov/habitsync/internal/store"
)

// Habits exposes create/update/read/delete/complete operations over the
// Record Store and the remote service.
//
// Mirrored writes are two-phase and not atomic: when the remote half fails
// after the local half succeeded, the operation fails as a whole and the two
// replicas stay divergent until the next sync pass converges them. That
// eventual-consistency contract is deliberate; this layer never rolls back.
type Habits struct {
	store  store.Store
	remote remote.Service
	log    *zap.Logger
	now    func() time.Time
}

// New constructs the habit service. A nil logger disables logging.
func New(st store.Store, rs remote.Service, log *zap.Logger) *Habits {
	if log == nil {
		log = zap.NewNop()
	}
	return &Habits{store: st, remote: rs, log: log, now: time.Now}
}

// Create registers a new habit. The remote side mints the ID, then the
// record is mirrored into the local store.
func (s *Habits) Create(ctx context.Context, h model.Habit) (*model.Habit, error) {
	if h.Title == "" {
		return nil, errors.New("validation: empty title")
	}
	if err := validateRange(h.StartDate, h.EndDate); err != nil {
		return nil, err
	}
	if h.Privacy == "" {
		h.Privacy = model.PrivacyPrivate
	}

	created, err := s.remote.Create(ctx, h)
	if err != nil {
		return nil, fmt.Errorf("remote create: %w", err)
	}
	created.LastModified = s.now()
	if err := s.store.Upsert(ctx, *created); err != nil {
		return nil, fmt.Errorf("mirror create locally: %w", err)
	}
	s.log.Debug("habit created", zap.String("id", created.ID))
	return created, nil
}

// Update applies a partial delta locally, then mirrors the full record to
// the remote side (whole-record replace-on-write).
func (s *Habits) Update(ctx context.Context, id string, d model.HabitDelta) (*model.Habit, error) {
	if id == "" {
		return nil, errors.New("validation: empty id")
	}
	if d.Empty() {
		return nil, errors.New("validation: empty delta")
	}
	if d.StartDate != nil {
		if _, err := model.ParseDate(string(*d.StartDate)); err != nil {
			return nil, err
		}
	}
	if d.EndDate != nil {
		if _, err := model.ParseDate(string(*d.EndDate)); err != nil {
			return nil, err
		}
	}

	h, err := s.store.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	d.Apply(h)
	h.LastModified = s.now()
	if err := s.store.Upsert(ctx, *h); err != nil {
		return nil, err
	}
	if _, err := s.remote.Update(ctx, id, *h); err != nil {
		return nil, fmt.Errorf("remote update: %w", err)
	}
	return h, nil
}

// Get returns a habit from the local store.
func (s *Habits) Get(ctx context.Context, id string) (*model.Habit, error) {
	if id == "" {
		return nil, errors.New("validation: empty id")
	}
	return s.store.Get(ctx, id)
}

// ListForDate returns habits active on the given date, local reads only.
func (s *Habits) ListForDate(ctx context.Context, d model.Date) ([]model.Habit, error) {
	return s.store.ListByDate(ctx, d)
}

// Delete removes the habit locally (recording a tombstone) and mirrors the
// deletion to the remote side.
func (s *Habits) Delete(ctx context.Context, id string) error {
	if id == "" {
		return errors.New("validation: empty id")
	}
	if err := s.store.Delete(ctx, id, s.now()); err != nil {
		return err
	}
	if err := s.remote.Delete(ctx, id); err != nil {
		return fmt.Errorf("remote delete: %w", err)
	}
	s.log.Debug("habit deleted", zap.String("id", id))
	return nil
}

// MarkCompleted records a completion date on the habit's streaks. Recording
// the same date twice is a no-op.
func (s *Habits) MarkCompleted(ctx context.Context, id, date string) (*model.Habit, error) {
	if id == "" {
		return nil, errors.New("validation: empty id")
	}
	if _, err := model.ParseDate(date); err != nil {
		return nil, err
	}

	h, err := s.store.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if h.CompletedOn(date) {
		return h, nil
	}
	h.Streaks = append(h.Streaks, date)
	h.LastModified = s.now()
	if err := s.store.Upsert(ctx, *h); err != nil {
		return nil, err
	}
	if _, err := s.remote.Update(ctx, id, *h); err != nil {
		return nil, fmt.Errorf("remote update: %w", err)
	}
	return h, nil
}

// SetReminderRefs stores the opaque reminder identifiers for a habit on
// behalf of the notification subsystem. Local only: reminders are device
// state and never mirrored.
func (s *Habits) SetReminderRefs(ctx context.Context, id string, refs []string) error {
	if id == "" {
		return errors.New("validation: empty id")
	}
	return s.store.SetReminderRefs(ctx, id, refs)
}

// GetReminderRefs returns the stored reminder identifiers for a habit.
func (s *Habits) GetReminderRefs(ctx context.Context, id string) ([]string, error) {
	if id == "" {
		return nil, errors.New("validation: empty id")
	}
	return s.store.GetReminderRefs(ctx, id)
}

func validateRange(start, end model.Date) error {
	if _, err := model.ParseDate(string(start)); err != nil {
		return err
	}
	if _, err := model.ParseDate(string(end)); err != nil {
		return err
	}
	if string(end) < string(start) {
		return errors.New("validation: end date before start date")
	}
	return nil
}
