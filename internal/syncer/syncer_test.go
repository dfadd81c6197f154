package syncer

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/avilov/habitsync/internal/errs"
	"github.com/avilov/habitsync/internal/model"
	"github.com/avilov/habitsync/internal/remote"
	"github.com/avilov/habitsync/internal/remote/remotetest"
	"github.com/avilov/habitsync/internal/store/sqlite"
)

func newStore(t *testing.T) *sqlite.Store {
	t.Helper()
	s, err := sqlite.Open(context.Background(), filepath.Join(t.TempDir(), "habits.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func habit(id, title string) model.Habit {
	return model.Habit{
		ID:           id,
		Title:        title,
		StartDate:    "2026-01-01",
		EndDate:      "2026-12-31",
		LastModified: time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC),
		Privacy:      model.PrivacyPrivate,
	}
}

func TestSync_ConvergesAllFourPartitions(t *testing.T) {
	ctx := context.Background()
	st := newStore(t)
	rs := remotetest.NewServer()
	s := New(st, rs, Config{}, nil)

	// shared on both sides, untouched
	require.NoError(t, st.Upsert(ctx, habit("shared", "shared")))
	rs.Seed(habit("shared", "shared"))

	// local-only, never seen remotely: upload
	require.NoError(t, st.Upsert(ctx, habit("local-new", "push me")))

	// local-only but deleted remotely: purge here
	require.NoError(t, st.Upsert(ctx, habit("stale", "remote deleted me")))
	rs.MarkRemoved("stale", time.Now())

	// remote-only, no tombstone here: download
	rs.Seed(habit("remote-new", "pull me"))

	// remote-only with a local tombstone: purge there
	rs.Seed(habit("gone", "deleted offline"))
	require.NoError(t, st.Delete(ctx, "gone", time.Now()))

	require.NoError(t, s.Sync(ctx))

	// upload happened under a remote-minted ID
	remoteAll, err := rs.List(ctx)
	require.NoError(t, err)
	titles := map[string]bool{}
	for _, h := range remoteAll {
		titles[h.Title] = true
	}
	require.True(t, titles["push me"])

	// downloaded record is readable locally
	got, err := st.Get(ctx, "remote-new")
	require.NoError(t, err)
	require.Equal(t, "pull me", got.Title)

	// stale local copy purged without leaving a tombstone
	_, err = st.Get(ctx, "stale")
	require.ErrorIs(t, err, errs.ErrNotFound)
	_, err = st.Tombstone(ctx, "stale")
	require.ErrorIs(t, err, errs.ErrNotFound)

	// offline deletion propagated
	require.False(t, rs.Has("gone"))

	// shared record untouched on both sides
	_, err = st.Get(ctx, "shared")
	require.NoError(t, err)
	require.True(t, rs.Has("shared"))
}

func TestSync_UploadRekeysUnderRemoteID(t *testing.T) {
	ctx := context.Background()
	st := newStore(t)
	rs := remotetest.NewServer()
	s := New(st, rs, Config{}, nil)

	require.NoError(t, st.Upsert(ctx, habit("provisional", "run")))
	require.NoError(t, s.Sync(ctx))

	_, err := st.Get(ctx, "provisional")
	require.ErrorIs(t, err, errs.ErrNotFound)

	ids, err := st.ListIDs(ctx)
	require.NoError(t, err)
	require.Len(t, ids, 1)
	require.NotEqual(t, "provisional", ids[0])
	require.True(t, rs.Has(ids[0]))
}

func TestSync_SecondPassIsNoop(t *testing.T) {
	ctx := context.Background()
	st := newStore(t)
	rs := remotetest.NewServer()
	s := New(st, rs, Config{}, nil)

	require.NoError(t, st.Upsert(ctx, habit("a", "a")))
	rs.Seed(habit("b", "b"))

	require.NoError(t, s.Sync(ctx))
	creates := rs.Calls["create"]
	require.NoError(t, s.Sync(ctx))

	require.Equal(t, creates, rs.Calls["create"], "converged state must not re-upload")

	ids, err := st.ListIDs(ctx)
	require.NoError(t, err)
	require.Len(t, ids, 2)
}

// flakyFetch simulates the benign race where a habit disappears remotely
// between listing and fetching.
type flakyFetch struct {
	remote.Service
	gone string
}

func (f *flakyFetch) Fetch(ctx context.Context, id string) (*model.Habit, error) {
	if id == f.gone {
		return nil, errs.ErrNotFound
	}
	return f.Service.Fetch(ctx, id)
}

func TestSync_DownloadToleratesVanishedRecord(t *testing.T) {
	ctx := context.Background()
	st := newStore(t)
	rs := remotetest.NewServer()
	rs.Seed(habit("vanishing", "gone between list and fetch"))
	s := New(st, &flakyFetch{Service: rs, gone: "vanishing"}, Config{}, nil)

	require.NoError(t, s.Sync(ctx))

	_, err := st.Get(ctx, "vanishing")
	require.ErrorIs(t, err, errs.ErrNotFound)
}

// failingDelete lets gather succeed and fails only the apply phase.
type failingDelete struct {
	remote.Service
	err error
}

func (f *failingDelete) Delete(context.Context, string) error { return f.err }

func TestSync_ActionFailureSurfaces(t *testing.T) {
	ctx := context.Background()
	st := newStore(t)
	rs := remotetest.NewServer()
	boom := errors.New("remote down")
	s := New(st, &failingDelete{Service: rs, err: boom}, Config{}, nil)

	rs.Seed(habit("doomed", "x"))
	require.NoError(t, st.Delete(ctx, "doomed", time.Now()))

	err := s.Sync(ctx)
	require.ErrorIs(t, err, boom)

	// tombstone survives the failed pass; the next one retries
	_, err = st.Tombstone(ctx, "doomed")
	require.NoError(t, err)
}

func TestSync_PrunesExpiredTombstonesAfterSuccess(t *testing.T) {
	ctx := context.Background()
	st := newStore(t)
	rs := remotetest.NewServer()
	s := New(st, rs, Config{TombstoneRetention: 24 * time.Hour}, nil)

	// deleted locally long ago; remote never had it, so no action results
	require.NoError(t, st.Delete(ctx, "ancient", time.Now().Add(-48*time.Hour)))
	require.NoError(t, st.Delete(ctx, "fresh", time.Now()))

	require.NoError(t, s.Sync(ctx))

	_, err := st.Tombstone(ctx, "ancient")
	require.ErrorIs(t, err, errs.ErrNotFound)
	_, err = st.Tombstone(ctx, "fresh")
	require.NoError(t, err)
}

func TestSync_RetentionZeroKeepsTombstones(t *testing.T) {
	ctx := context.Background()
	st := newStore(t)
	rs := remotetest.NewServer()
	s := New(st, rs, Config{}, nil)

	require.NoError(t, st.Delete(ctx, "keeper", time.Now().Add(-10000*time.Hour)))
	require.NoError(t, s.Sync(ctx))

	_, err := st.Tombstone(ctx, "keeper")
	require.NoError(t, err)
}
