// Package sqlite contains the SQLite implementation of the Record Store.
package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"

	"github.com/avilov/habitsync/internal/errs"
	"github.com/avilov/habitsync/internal/migrate"
	"github.com/avilov/habitsync/internal/model"
	"github.com/avilov/habitsync/internal/store"
)

// timeLayout is how timestamps are stored in TEXT columns, always UTC.
const timeLayout = time.RFC3339Nano

// Store implements store.Store on an embedded SQLite database file.
type Store struct{ db *sql.DB }

var _ store.Store = (*Store)(nil)

// Open opens (creating if needed) the database at path and applies pending
// migrations.
func Open(ctx context.Context, path string) (*Store, error) {
	if dir := filepath.Dir(path); dir != "." && dir != "" {
		if err := os.MkdirAll(dir, 0o700); err != nil {
			return nil, fmt.Errorf("create data dir: %w", err)
		}
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	// modernc/sqlite permits a single writer; one pooled connection keeps
	// conflicting writes serialized at the engine level.
	db.SetMaxOpenConns(1)
	if err := migrate.Up(ctx, db); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("apply migrations: %w", err)
	}
	return &Store{db: db}, nil
}

// Close closes the underlying database handle.
func (s *Store) Close() error { return s.db.Close() }

const habitColumns = `id, title, description, start_date, end_date,
reminder_time, reminder_days, reminder_refs, streaks, last_modified, privacy`

// Upsert inserts or replaces a habit record keyed by ID.
func (s *Store) Upsert(ctx context.Context, h model.Habit) error {
	const q = `
INSERT INTO habits (` + habitColumns + `)
VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11)
ON CONFLICT(id) DO UPDATE SET
  title=excluded.title, description=excluded.description,
  start_date=excluded.start_date, end_date=excluded.end_date,
  reminder_time=excluded.reminder_time, reminder_days=excluded.reminder_days,
  reminder_refs=excluded.reminder_refs, streaks=excluded.streaks,
  last_modified=excluded.last_modified, privacy=excluded.privacy`
	_, err := s.db.ExecContext(ctx, q,
		h.ID, h.Title, h.Description,
		string(h.StartDate), string(h.EndDate),
		h.ReminderTime, encodeList(h.ReminderDays), encodeList(h.ReminderRefs),
		encodeList(h.Streaks), fmtTime(h.LastModified), string(h.Privacy),
	)
	return err
}

// Get returns a habit by ID, or errs.ErrNotFound.
func (s *Store) Get(ctx context.Context, id string) (*model.Habit, error) {
	const q = `SELECT ` + habitColumns + ` FROM habits WHERE id=$1`
	h, err := scanHabit(s.db.QueryRowContext(ctx, q, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, errs.ErrNotFound
		}
		return nil, err
	}
	return h, nil
}

// ListByDate returns habits whose active range contains d, inclusive on both
// ends. Lexicographic comparison on YYYY-MM-DD matches calendar order.
func (s *Store) ListByDate(ctx context.Context, d model.Date) ([]model.Habit, error) {
	if _, err := model.ParseDate(string(d)); err != nil {
		return nil, err
	}
	const q = `SELECT ` + habitColumns + ` FROM habits
WHERE start_date<=$1 AND end_date>=$1 ORDER BY id`
	rows, err := s.db.QueryContext(ctx, q, string(d))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []model.Habit
	for rows.Next() {
		h, err := scanHabit(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *h)
	}
	return out, rows.Err()
}

// Delete removes the habit and records a tombstone in one transaction.
func (s *Store) Delete(ctx context.Context, id string, deleteTime time.Time) (err error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
			return
		}
		err = tx.Commit()
	}()

	if _, err = tx.ExecContext(ctx, `DELETE FROM habits WHERE id=$1`, id); err != nil {
		return err
	}
	const ins = `
INSERT INTO tombstones (id, delete_time) VALUES ($1,$2)
ON CONFLICT(id) DO UPDATE SET delete_time=excluded.delete_time`
	_, err = tx.ExecContext(ctx, ins, id, fmtTime(deleteTime))
	return err
}

// ListIDs returns the full set of locally-known habit IDs.
func (s *Store) ListIDs(ctx context.Context) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT id FROM habits ORDER BY id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

// Tombstone returns the recorded deletion time for id, or errs.ErrNotFound.
func (s *Store) Tombstone(ctx context.Context, id string) (time.Time, error) {
	var raw string
	err := s.db.QueryRowContext(ctx,
		`SELECT delete_time FROM tombstones WHERE id=$1`, id).Scan(&raw)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return time.Time{}, errs.ErrNotFound
		}
		return time.Time{}, err
	}
	return parseTime(raw)
}

// DropTombstone removes the tombstone for id, if any.
func (s *Store) DropTombstone(ctx context.Context, id string) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM tombstones WHERE id=$1`, id)
	return err
}

// PruneTombstones deletes tombstones older than the cutoff and reports how
// many were removed.
func (s *Store) PruneTombstones(ctx context.Context, olderThan time.Time) (int64, error) {
	res, err := s.db.ExecContext(ctx,
		`DELETE FROM tombstones WHERE delete_time<$1`, fmtTime(olderThan))
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

// SetReminderRefs replaces the reminder-identifier list of an existing habit.
func (s *Store) SetReminderRefs(ctx context.Context, id string, refs []string) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE habits SET reminder_refs=$1 WHERE id=$2`, encodeList(refs), id)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return errs.ErrNotFound
	}
	return nil
}

// GetReminderRefs returns the reminder-identifier list of a habit.
func (s *Store) GetReminderRefs(ctx context.Context, id string) ([]string, error) {
	var raw string
	err := s.db.QueryRowContext(ctx,
		`SELECT reminder_refs FROM habits WHERE id=$1`, id).Scan(&raw)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, errs.ErrNotFound
		}
		return nil, err
	}
	return decodeList(raw)
}

// scanner covers *sql.Row and *sql.Rows.
type scanner interface{ Scan(dest ...any) error }

func scanHabit(row scanner) (*model.Habit, error) {
	var (
		h                 model.Habit
		start, end        string
		days, refs, dates string
		modified, privacy string
	)
	err := row.Scan(&h.ID, &h.Title, &h.Description, &start, &end,
		&h.ReminderTime, &days, &refs, &dates, &modified, &privacy)
	if err != nil {
		return nil, err
	}
	h.StartDate, h.EndDate = model.Date(start), model.Date(end)
	h.Privacy = model.Privacy(privacy)
	if h.ReminderDays, err = decodeList(days); err != nil {
		return nil, err
	}
	if h.ReminderRefs, err = decodeList(refs); err != nil {
		return nil, err
	}
	if h.Streaks, err = decodeList(dates); err != nil {
		return nil, err
	}
	if h.LastModified, err = parseTime(modified); err != nil {
		return nil, err
	}
	return &h, nil
}

// encodeList stores string lists as JSON text; empty and nil both become [].
func encodeList(v []string) string {
	if len(v) == 0 {
		return "[]"
	}
	b, _ := json.Marshal(v)
	return string(b)
}

// decodeList returns nil for an empty JSON array.
func decodeList(raw string) ([]string, error) {
	var v []string
	if err := json.Unmarshal([]byte(raw), &v); err != nil {
		return nil, fmt.Errorf("decode list column: %w", err)
	}
	if len(v) == 0 {
		return nil, nil
	}
	return v, nil
}

func fmtTime(t time.Time) string { return t.UTC().Format(timeLayout) }

func parseTime(raw string) (time.Time, error) {
	t, err := time.Parse(timeLayout, raw)
	if err != nil {
		return time.Time{}, fmt.Errorf("parse stored timestamp: %w", err)
	}
	return t, nil
}
