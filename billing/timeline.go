/*
timeline.go - Cap timeline manager

PURPOSE:
  Owns the ordered set of earnings-cap periods and the only stateful
  mutation path of the engine. Enforces the no-overlap invariant and
  performs automatic adjustment of neighboring periods when one is
  inserted or removed, so that the timeline stays contiguous.

FAILURE SEMANTICS:
  Overlap resolution never silently drops data. The single case the
  timeline resolves on its own is inserting after an open-ended
  predecessor, which is truncated to the day before the new period and
  reported as an Adjustment. Every other conflict is rejected with
  OverlappingPeriodsError and zero mutation. Deleting a period that is
  already active or past is always rejected.

ATOMICITY:
  Insert, Delete and RecalculateAll mutate multiple related records (the
  new/deleted period plus a neighbor) inside repo.WithTx. After any of
  them returns, FindApplicable immediately reflects the new timeline.

SEE ALSO:
  - cap.go: CapPeriod type and repository interface
  - errors.go: OverlappingPeriodsError, PeriodNotDeletableError
*/
package billing

import (
	"context"
	"sort"
)

// Timeline manages the full ordered set of cap periods.
type Timeline struct {
	repo CapPeriodRepository
}

func NewTimeline(repo CapPeriodRepository) *Timeline {
	return &Timeline{repo: repo}
}

// Adjustment reports an automatic change the timeline made to a neighboring
// period, so callers can surface it to the end user.
type Adjustment struct {
	PeriodID      string
	PreviousUntil *Date // nil = was open-ended
	NewUntil      *Date // nil = now open-ended
}

// =============================================================================
// QUERIES
// =============================================================================

// List returns all cap periods ascending by ValidFrom.
func (t *Timeline) List(ctx context.Context) ([]CapPeriod, error) {
	periods, err := t.repo.ListCapPeriods(ctx)
	if err != nil {
		return nil, err
	}
	sortByValidFrom(periods)
	return periods, nil
}

// FindApplicable returns the unique period containing the date, or nil when
// no cap is configured for it. Under the no-overlap invariant at most one
// period can match.
func (t *Timeline) FindApplicable(ctx context.Context, d Date) (*CapPeriod, error) {
	periods, err := t.repo.ListCapPeriods(ctx)
	if err != nil {
		return nil, err
	}
	for i := range periods {
		if periods[i].Contains(d) {
			return &periods[i], nil
		}
	}
	return nil, nil
}

// =============================================================================
// MUTATIONS
// =============================================================================

// Insert commits a new cap period after checking it against the existing
// timeline.
//
//   - Zero overlaps: committed directly.
//   - Exactly one overlap with an open-ended period starting strictly before
//     the new one: that predecessor is truncated to the day before the new
//     period's start, the new period is committed, and the truncation is
//     returned as an Adjustment.
//   - Anything else: rejected with OverlappingPeriodsError, nothing mutated.
func (t *Timeline) Insert(ctx context.Context, p CapPeriod) (*Adjustment, error) {
	if err := validateCapPeriod(p); err != nil {
		return nil, err
	}

	existing, err := t.repo.ListCapPeriods(ctx)
	if err != nil {
		return nil, err
	}

	var conflicts []CapPeriod
	for _, e := range existing {
		if e.ID != p.ID && e.Overlaps(p) {
			conflicts = append(conflicts, e)
		}
	}

	switch {
	case len(conflicts) == 0:
		return nil, t.repo.WithTx(ctx, func(r CapPeriodRepository) error {
			return r.SaveCapPeriod(ctx, p)
		})

	case len(conflicts) == 1 && conflicts[0].OpenEnded() && conflicts[0].ValidFrom.Before(p.ValidFrom):
		prev := conflicts[0]
		until := p.ValidFrom.AddDays(-1)
		adj := &Adjustment{PeriodID: prev.ID, PreviousUntil: nil, NewUntil: &until}

		err := t.repo.WithTx(ctx, func(r CapPeriodRepository) error {
			prev.ValidUntil = &until
			if err := r.SaveCapPeriod(ctx, prev); err != nil {
				return err
			}
			return r.SaveCapPeriod(ctx, p)
		})
		if err != nil {
			return nil, err
		}
		return adj, nil

	default:
		ids := make([]string, len(conflicts))
		for i, c := range conflicts {
			ids[i] = c.ID
		}
		return nil, &OverlappingPeriodsError{ConflictIDs: ids}
	}
}

// Delete removes a future cap period and re-stitches the timeline: the
// immediately preceding period's ValidUntil becomes the day before the
// following period's ValidFrom, or open-ended when nothing follows.
// Periods with ValidFrom <= today are active or past and cannot be deleted.
func (t *Timeline) Delete(ctx context.Context, id string, today Date) (*Adjustment, error) {
	target, err := t.repo.GetCapPeriod(ctx, id)
	if err != nil {
		return nil, err
	}
	if target == nil {
		return nil, ErrPeriodNotFound
	}
	if !target.ValidFrom.After(today) {
		return nil, &PeriodNotDeletableError{ID: target.ID, ValidFrom: target.ValidFrom}
	}

	periods, err := t.repo.ListCapPeriods(ctx)
	if err != nil {
		return nil, err
	}
	sortByValidFrom(periods)

	var prev, next *CapPeriod
	for i := range periods {
		if periods[i].ID == target.ID {
			if i > 0 {
				prev = &periods[i-1]
			}
			if i+1 < len(periods) {
				next = &periods[i+1]
			}
			break
		}
	}

	var adj *Adjustment
	err = t.repo.WithTx(ctx, func(r CapPeriodRepository) error {
		if err := r.DeleteCapPeriod(ctx, target.ID); err != nil {
			return err
		}
		if prev == nil {
			return nil
		}

		var until *Date
		if next != nil {
			u := next.ValidFrom.AddDays(-1)
			until = &u
		}
		adj = &Adjustment{PeriodID: prev.ID, PreviousUntil: prev.ValidUntil, NewUntil: until}
		prev.ValidUntil = until
		return r.SaveCapPeriod(ctx, *prev)
	})
	if err != nil {
		return nil, err
	}
	return adj, nil
}

// RecalculateAll walks all periods ascending by ValidFrom and force-sets
// each ValidUntil to the day before the next period's ValidFrom (open-ended
// for the last). Idempotent; used to repair drift after manual edits.
func (t *Timeline) RecalculateAll(ctx context.Context) ([]Adjustment, error) {
	periods, err := t.repo.ListCapPeriods(ctx)
	if err != nil {
		return nil, err
	}
	sortByValidFrom(periods)

	var adjustments []Adjustment
	err = t.repo.WithTx(ctx, func(r CapPeriodRepository) error {
		for i := range periods {
			var until *Date
			if i+1 < len(periods) {
				u := periods[i+1].ValidFrom.AddDays(-1)
				until = &u
			}
			if sameDatePtr(periods[i].ValidUntil, until) {
				continue
			}
			adjustments = append(adjustments, Adjustment{
				PeriodID:      periods[i].ID,
				PreviousUntil: periods[i].ValidUntil,
				NewUntil:      until,
			})
			periods[i].ValidUntil = until
			if err := r.SaveCapPeriod(ctx, periods[i]); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return adjustments, nil
}

// SetActiveFlags marks exactly the period containing today as active and
// all others inactive. Re-run whenever the timeline changes or the date
// has advanced.
func (t *Timeline) SetActiveFlags(ctx context.Context, today Date) error {
	periods, err := t.repo.ListCapPeriods(ctx)
	if err != nil {
		return err
	}

	return t.repo.WithTx(ctx, func(r CapPeriodRepository) error {
		for i := range periods {
			active := periods[i].Contains(today)
			if periods[i].Active == active {
				continue
			}
			periods[i].Active = active
			if err := r.SaveCapPeriod(ctx, periods[i]); err != nil {
				return err
			}
		}
		return nil
	})
}

// =============================================================================
// HELPERS
// =============================================================================

func validateCapPeriod(p CapPeriod) error {
	if p.Limit <= 0 {
		return &InvalidDateRangeError{Reason: "limit must be positive"}
	}
	// Ranges are inclusive, so validFrom == validUntil is a one-day period.
	if p.ValidUntil != nil && p.ValidUntil.Before(p.ValidFrom) {
		return &InvalidDateRangeError{
			Reason: "validFrom " + p.ValidFrom.String() + " must not follow validUntil " + p.ValidUntil.String(),
		}
	}
	return nil
}

func sortByValidFrom(periods []CapPeriod) {
	sort.Slice(periods, func(i, j int) bool {
		return periods[i].ValidFrom.Before(periods[j].ValidFrom)
	})
}

func sameDatePtr(a, b *Date) bool {
	if a == nil || b == nil {
		return a == b
	}
	return a.Equal(*b)
}
