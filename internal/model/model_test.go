package model

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/avilov/habitsync/internal/errs"
)

func TestParseDate(t *testing.T) {
	t.Parallel()

	d, err := ParseDate("2026-02-14")
	require.NoError(t, err)
	require.Equal(t, Date("2026-02-14"), d)

	for _, bad := range []string{"", "14-02-2026", "2026/02/14", "2026-02-30", "soon"} {
		_, err := ParseDate(bad)
		require.ErrorIs(t, err, errs.ErrInvalidDate, "input %q", bad)
	}
}

func TestHabit_ActiveOn(t *testing.T) {
	t.Parallel()
	h := Habit{StartDate: "2026-01-10", EndDate: "2026-01-20"}

	require.True(t, h.ActiveOn("2026-01-10"), "inclusive start")
	require.True(t, h.ActiveOn("2026-01-20"), "inclusive end")
	require.True(t, h.ActiveOn("2026-01-15"))
	require.False(t, h.ActiveOn("2026-01-09"))
	require.False(t, h.ActiveOn("2026-01-21"))
}

func TestHabit_CompletedOn(t *testing.T) {
	t.Parallel()
	h := Habit{Streaks: []string{"2026-01-01", "2026-01-03"}}

	require.True(t, h.CompletedOn("2026-01-03"))
	require.False(t, h.CompletedOn("2026-01-02"))
	require.False(t, (&Habit{}).CompletedOn("2026-01-02"))
}

func TestHabitDelta_Apply(t *testing.T) {
	t.Parallel()
	h := Habit{
		ID:           "h1",
		Title:        "old",
		Description:  "keep me",
		StartDate:    "2026-01-01",
		EndDate:      "2026-12-31",
		ReminderDays: []string{"Monday"},
		Privacy:      PrivacyPrivate,
	}

	title := "new"
	days := []string{"Saturday", "Sunday"}
	pub := PrivacyPublic
	d := HabitDelta{Title: &title, ReminderDays: &days, Privacy: &pub}
	require.False(t, d.Empty())
	d.Apply(&h)

	require.Equal(t, "new", h.Title)
	require.Equal(t, "keep me", h.Description)
	require.Equal(t, []string{"Saturday", "Sunday"}, h.ReminderDays)
	require.Equal(t, PrivacyPublic, h.Privacy)
	require.Equal(t, "h1", h.ID, "immutable fields untouched")

	// the delta holds a copy, not an alias
	days[0] = "mutated"
	require.Equal(t, "Saturday", h.ReminderDays[0])
}

func TestHabitDelta_Empty(t *testing.T) {
	t.Parallel()
	require.True(t, (&HabitDelta{}).Empty())

	s := ""
	require.False(t, (&HabitDelta{Description: &s}).Empty())
}
