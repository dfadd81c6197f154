// Package syncer drives full synchronization passes between the local
// Record Store and the remote service.
package syncer

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/avilov/habitsync/internal/errs"
	"github.com/avilov/habitsync/internal/remote"
	"github.com/avilov/habitsync/internal/resolver"
	"github.com/avilov/habitsync/internal/store"
)

// DefaultTombstoneRetention bounds how long a local deletion marker keeps
// protecting against resurrection from the remote replica. A device offline
// longer than this can see a deleted habit reappear after re-sync.
const DefaultTombstoneRetention = 90 * 24 * time.Hour

// Config tunes a Syncer.
type Config struct {
	// TombstoneRetention is the age past which tombstones are pruned
	// after a fully successful pass. Zero means never prune.
	TombstoneRetention time.Duration

	// MaxParallel caps concurrent apply actions. Defaults to 8.
	MaxParallel int
}

// Syncer executes gather-resolve-apply passes. A pass does not roll back
// actions that already succeeded; partial outcomes converge on the next
// pass, since the plan is recomputed from current state every time.
type Syncer struct {
	store  store.Store
	remote remote.Service
	cfg    Config
	log    *zap.Logger
	now    func() time.Time
}

// New constructs a Syncer. A nil logger disables logging.
func New(st store.Store, rs remote.Service, cfg Config, log *zap.Logger) *Syncer {
	if cfg.MaxParallel <= 0 {
		cfg.MaxParallel = 8
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &Syncer{store: st, remote: rs, cfg: cfg, log: log, now: time.Now}
}

// Sync runs one full synchronization pass. The first action failure is
// returned; already-applied actions stay applied.
func (s *Syncer) Sync(ctx context.Context) error {
	start := s.now()

	local, err := s.store.ListIDs(ctx)
	if err != nil {
		return fmt.Errorf("list local ids: %w", err)
	}
	remoteHabits, err := s.remote.List(ctx)
	if err != nil {
		return fmt.Errorf("list remote: %w", err)
	}
	remoteIDs := make([]string, 0, len(remoteHabits))
	for _, h := range remoteHabits {
		remoteIDs = append(remoteIDs, h.ID)
	}

	plan, err := resolver.Resolve(ctx, local, remoteIDs, resolver.Lookups{
		RemovedSince: s.remote.RemovedSince,
		Tombstone:    s.store.Tombstone,
	})
	if err != nil {
		return fmt.Errorf("resolve: %w", err)
	}

	if err := s.apply(ctx, plan); err != nil {
		return err
	}

	if s.cfg.TombstoneRetention > 0 {
		cutoff := s.now().Add(-s.cfg.TombstoneRetention)
		pruned, err := s.store.PruneTombstones(ctx, cutoff)
		if err != nil {
			return fmt.Errorf("prune tombstones: %w", err)
		}
		if pruned > 0 {
			s.log.Info("pruned tombstones", zap.Int64("count", pruned))
		}
	}

	s.log.Info("sync pass complete",
		zap.Int("uploaded", len(plan.Upload)),
		zap.Int("downloaded", len(plan.Download)),
		zap.Int("deleted_local", len(plan.DeleteLocal)),
		zap.Int("deleted_remote", len(plan.DeleteRemote)),
		zap.Duration("dur", s.now().Sub(start)),
	)
	return nil
}

// apply executes all planned actions concurrently. Actions touch disjoint
// IDs by construction, so no intra-ID ordering is needed.
func (s *Syncer) apply(ctx context.Context, plan resolver.Plan) error {
	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(s.cfg.MaxParallel)

	for _, id := range plan.Upload {
		g.Go(func() error {
			if err := s.upload(ctx, id); err != nil {
				return fmt.Errorf("upload %s: %w", id, err)
			}
			return nil
		})
	}
	for _, id := range plan.Download {
		g.Go(func() error {
			if err := s.download(ctx, id); err != nil {
				return fmt.Errorf("download %s: %w", id, err)
			}
			return nil
		})
	}
	for _, id := range plan.DeleteLocal {
		g.Go(func() error {
			if err := s.deleteLocal(ctx, id); err != nil {
				return fmt.Errorf("delete local %s: %w", id, err)
			}
			return nil
		})
	}
	for _, id := range plan.DeleteRemote {
		g.Go(func() error {
			if err := s.remote.Delete(ctx, id); err != nil {
				return fmt.Errorf("delete remote %s: %w", id, err)
			}
			return nil
		})
	}
	return g.Wait()
}

// upload pushes a local-only habit to the remote side. The remote mints the
// canonical ID; when it differs from the provisional local one, the record
// is re-keyed. The retired ID's tombstone can never match a remote record
// and falls to retention pruning.
func (s *Syncer) upload(ctx context.Context, id string) error {
	h, err := s.store.Get(ctx, id)
	if err != nil {
		return err
	}
	created, err := s.remote.Create(ctx, *h)
	if err != nil {
		return err
	}
	if created.ID == id {
		return nil
	}
	// device-only state never crosses the wire; carry it onto the new key
	created.ReminderRefs = h.ReminderRefs
	created.LastModified = h.LastModified
	if err := s.store.Upsert(ctx, *created); err != nil {
		return err
	}
	return s.store.Delete(ctx, id, s.now())
}

// download pulls a remote-only habit into the local store. Absence is a
// benign race: the record can vanish remotely between listing and fetching.
func (s *Syncer) download(ctx context.Context, id string) error {
	h, err := s.remote.Fetch(ctx, id)
	if err != nil {
		if errors.Is(err, errs.ErrNotFound) {
			s.log.Debug("download skipped, gone remotely", zap.String("id", id))
			return nil
		}
		return err
	}
	return s.store.Upsert(ctx, *h)
}

// deleteLocal purges a habit the remote authority reports as deleted,
// leaving no tombstone behind: the deletion originated remotely and needs
// no further propagation.
func (s *Syncer) deleteLocal(ctx context.Context, id string) error {
	if err := s.store.Delete(ctx, id, s.now()); err != nil {
		return err
	}
	return s.store.DropTombstone(ctx, id)
}
