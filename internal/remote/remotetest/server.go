// Package remotetest provides an in-memory remote.Service for tests and
// offline development.
package remotetest

import (
	"context"
	"sync"
	"time"

	"github.com/gofrs/uuid/v5"

	"github.com/avilov/habitsync/internal/errs"
	"github.com/avilov/habitsync/internal/model"
	"github.com/avilov/habitsync/internal/remote"
)

// Server holds the authoritative habit set in memory. Safe for concurrent
// use. Every operation can be forced to fail through FailWith, to exercise
// propagation paths.
type Server struct {
	mu      sync.Mutex
	habits  map[string]model.Habit
	removed map[string]time.Time

	// FailWith, when non-nil, is returned by every operation.
	FailWith error

	// Calls counts operations by name, for batching assertions.
	Calls map[string]int
}

var _ remote.Service = (*Server)(nil)

// NewServer returns an empty in-memory remote.
func NewServer() *Server {
	return &Server{
		habits:  make(map[string]model.Habit),
		removed: make(map[string]time.Time),
		Calls:   make(map[string]int),
	}
}

// Seed inserts a habit as-is, keeping its ID.
func (s *Server) Seed(h model.Habit) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.habits[h.ID] = h
}

// MarkRemoved records that id was deleted remotely at t.
func (s *Server) MarkRemoved(id string, t time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.habits, id)
	s.removed[id] = t
}

// Has reports whether the remote currently holds id.
func (s *Server) Has(id string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.habits[id]
	return ok
}

// Fetch returns a habit by ID, or errs.ErrNotFound.
func (s *Server) Fetch(_ context.Context, id string) (*model.Habit, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.Calls["fetch"]++
	if s.FailWith != nil {
		return nil, s.FailWith
	}
	h, ok := s.habits[id]
	if !ok {
		return nil, errs.ErrNotFound
	}
	return &h, nil
}

// List returns all habits.
func (s *Server) List(_ context.Context) ([]model.Habit, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.Calls["list"]++
	if s.FailWith != nil {
		return nil, s.FailWith
	}
	out := make([]model.Habit, 0, len(s.habits))
	for _, h := range s.habits {
		out = append(out, h)
	}
	return out, nil
}

// Create mints a fresh ID and stores the habit under it.
func (s *Server) Create(_ context.Context, h model.Habit) (*model.Habit, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.Calls["create"]++
	if s.FailWith != nil {
		return nil, s.FailWith
	}
	h.ID = uuid.Must(uuid.NewV4()).String()
	s.habits[h.ID] = h
	return &h, nil
}

// Update replaces the habit stored under id.
func (s *Server) Update(_ context.Context, id string, h model.Habit) (*model.Habit, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.Calls["update"]++
	if s.FailWith != nil {
		return nil, s.FailWith
	}
	if _, ok := s.habits[id]; !ok {
		return nil, errs.ErrNotFound
	}
	h.ID = id
	s.habits[id] = h
	return &h, nil
}

// Delete removes the habit and records the deletion time.
func (s *Server) Delete(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.Calls["delete"]++
	if s.FailWith != nil {
		return s.FailWith
	}
	delete(s.habits, id)
	s.removed[id] = time.Now()
	return nil
}

// RemovedSince returns the subset of ids known to be deleted remotely.
func (s *Server) RemovedSince(_ context.Context, ids []string) (map[string]time.Time, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.Calls["removedSince"]++
	if s.FailWith != nil {
		return nil, s.FailWith
	}
	out := make(map[string]time.Time)
	for _, id := range ids {
		if t, ok := s.removed[id]; ok {
			out[id] = t
		}
	}
	return out, nil
}
