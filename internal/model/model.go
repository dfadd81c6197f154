// Package model defines domain entities used by the store, the remote client
// and the sync machinery.
package model

import (
	"fmt"
	"time"

	"github.com/avilov/habitsync/internal/errs"
)

// DateLayout is the wire and storage format for calendar dates.
const DateLayout = "2006-01-02"

// Date is a calendar date in YYYY-MM-DD form. The zero value is empty.
type Date string

// ParseDate validates s and returns it as a Date.
// Malformed input is a contract violation (errs.ErrInvalidDate).
func ParseDate(s string) (Date, error) {
	if _, err := time.Parse(DateLayout, s); err != nil {
		return "", fmt.Errorf("%w: %q", errs.ErrInvalidDate, s)
	}
	return Date(s), nil
}

// Time returns the date at midnight UTC. Panics on a Date that did not come
// from ParseDate; keep construction funneled through it.
func (d Date) Time() time.Time {
	t, err := time.Parse(DateLayout, string(d))
	if err != nil {
		panic(fmt.Sprintf("model: invalid Date %q", string(d)))
	}
	return t
}

// Privacy controls who can see a habit on the remote side.
type Privacy string

const (
	PrivacyPrivate Privacy = "private"
	PrivacyFriends Privacy = "friends"
	PrivacyPublic  Privacy = "public"
)

// Habit is a single trackable habit together with its completion history.
// IDs are opaque and assigned by the remote service at creation time; the
// local store never mints one.
type Habit struct {
	ID           string
	Title        string
	Description  string
	StartDate    Date      // inclusive
	EndDate      Date      // inclusive
	ReminderTime string    // HH:MM time of day
	ReminderDays []string  // weekday names on which reminders fire
	ReminderRefs []string  // opaque notification identifiers, not interpreted here
	Streaks      []string  // completion dates (YYYY-MM-DD); order carries no meaning
	LastModified time.Time
	Privacy      Privacy
}

// ActiveOn reports whether d falls inside the habit's [StartDate, EndDate]
// range, inclusive on both ends.
func (h *Habit) ActiveOn(d Date) bool {
	return string(h.StartDate) <= string(d) && string(d) <= string(h.EndDate)
}

// CompletedOn reports whether date is already recorded in Streaks.
func (h *Habit) CompletedOn(date string) bool {
	for _, s := range h.Streaks {
		if s == date {
			return true
		}
	}
	return false
}

// Tombstone records that a habit was deleted locally, so a later sync pass
// can tell "deleted here while offline" apart from "never existed here".
type Tombstone struct {
	ID         string
	DeleteTime time.Time
}

// HabitDelta is a partial update listing exactly the mutable fields.
// A nil field leaves the current value untouched. Immutable fields (ID,
// Streaks, ReminderRefs, LastModified) have dedicated operations instead.
type HabitDelta struct {
	Title        *string
	Description  *string
	StartDate    *Date
	EndDate      *Date
	ReminderTime *string
	ReminderDays *[]string
	Privacy      *Privacy
}

// Apply copies the set fields of d onto h.
func (d *HabitDelta) Apply(h *Habit) {
	if d.Title != nil {
		h.Title = *d.Title
	}
	if d.Description != nil {
		h.Description = *d.Description
	}
	if d.StartDate != nil {
		h.StartDate = *d.StartDate
	}
	if d.EndDate != nil {
		h.EndDate = *d.EndDate
	}
	if d.ReminderTime != nil {
		h.ReminderTime = *d.ReminderTime
	}
	if d.ReminderDays != nil {
		h.ReminderDays = append([]string(nil), (*d.ReminderDays)...)
	}
	if d.Privacy != nil {
		h.Privacy = *d.Privacy
	}
}

// Empty reports whether the delta sets no fields at all.
func (d *HabitDelta) Empty() bool {
	return d.Title == nil && d.Description == nil &&
		d.StartDate == nil && d.EndDate == nil &&
		d.ReminderTime == nil && d.ReminderDays == nil && d.Privacy == nil
}
