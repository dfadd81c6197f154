// Package resolver computes the reconciliation plan between the local and
// remote habit sets.
//
// The algorithm works on the asymmetric set differences only: divergence is
// assumed to come from records created or deleted while offline, not from
// concurrent edits of the same record on two devices. IDs present on both
// sides are left untouched.
package resolver

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/avilov/habitsync/internal/errs"
)

// Lookups carries the two I/O callbacks the resolver needs. Both must be
// side-effect free from the resolver's point of view.
type Lookups struct {
	// RemovedSince reports which of the candidate IDs were deleted on the
	// remote side, with deletion times. Called at most once, and only
	// with a non-empty candidate set.
	RemovedSince func(ctx context.Context, ids []string) (map[string]time.Time, error)

	// Tombstone returns the local deletion time for id, or
	// errs.ErrNotFound when the habit was never deleted here.
	Tombstone func(ctx context.Context, id string) (time.Time, error)
}

// Plan is the four-way partition of reconciliation work. The sets are
// pairwise disjoint and their union equals the symmetric difference of the
// input ID sets.
type Plan struct {
	Upload       []string // local-only, not deleted remotely: push to remote
	Download     []string // remote-only, no local tombstone: pull to local
	DeleteLocal  []string // local-only but deleted remotely: purge here
	DeleteRemote []string // remote-only but tombstoned here: purge there
}

// Empty reports whether the plan contains no work.
func (p *Plan) Empty() bool {
	return len(p.Upload) == 0 && len(p.Download) == 0 &&
		len(p.DeleteLocal) == 0 && len(p.DeleteRemote) == 0
}

// Total returns the number of planned actions.
func (p *Plan) Total() int {
	return len(p.Upload) + len(p.Download) + len(p.DeleteLocal) + len(p.DeleteRemote)
}

// Resolve partitions the difference between the local and remote ID sets.
// A failing lookup aborts the whole resolution; no partial plan is returned.
func Resolve(ctx context.Context, local, remote []string, lk Lookups) (Plan, error) {
	remoteSet := toSet(remote)
	localSet := toSet(local)

	var onlyLocal []string
	for _, id := range local {
		if _, ok := remoteSet[id]; !ok {
			onlyLocal = append(onlyLocal, id)
		}
	}
	var onlyRemote []string
	for _, id := range remote {
		if _, ok := localSet[id]; !ok {
			onlyRemote = append(onlyRemote, id)
		}
	}

	var plan Plan

	// One batched call; skipped entirely when nothing is local-only.
	var removed map[string]time.Time
	if len(onlyLocal) > 0 {
		var err error
		removed, err = lk.RemovedSince(ctx, onlyLocal)
		if err != nil {
			return Plan{}, fmt.Errorf("removed-since lookup: %w", err)
		}
	}
	for _, id := range onlyLocal {
		if _, gone := removed[id]; gone {
			plan.DeleteLocal = append(plan.DeleteLocal, id)
		} else {
			plan.Upload = append(plan.Upload, id)
		}
	}

	for _, id := range onlyRemote {
		_, err := lk.Tombstone(ctx, id)
		switch {
		case err == nil:
			plan.DeleteRemote = append(plan.DeleteRemote, id)
		case errors.Is(err, errs.ErrNotFound):
			plan.Download = append(plan.Download, id)
		default:
			return Plan{}, fmt.Errorf("tombstone lookup %s: %w", id, err)
		}
	}

	return plan, nil
}

func toSet(ids []string) map[string]struct{} {
	s := make(map[string]struct{}, len(ids))
	for _, id := range ids {
		s[id] = struct{}{}
	}
	return s
}
