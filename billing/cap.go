package billing

import (
	"context"
	"time"
)

// =============================================================================
// CAP PERIOD - An interval during which a single monthly earnings cap applies
// =============================================================================

// CapPeriod is a contiguous, administratively defined interval during which
// one monthly earnings cap is in effect.
//
// INVARIANTS (enforced by the Timeline, timeline.go):
//   - No two cap periods overlap (nil ValidUntil counts as +infinity).
//   - At most one period is open-ended, and it is chronologically last.
//   - ValidFrom never follows ValidUntil; both equal is a one-day period.
type CapPeriod struct {
	ID         string
	Limit      Cents
	ValidFrom  Date
	ValidUntil *Date // nil = open-ended
	CreatedBy  string
	Active     bool
	CreatedAt  time.Time
}

// Contains returns true if the date falls within [ValidFrom, ValidUntil].
// Open-ended periods contain everything from ValidFrom onward.
func (c CapPeriod) Contains(d Date) bool {
	if d.Before(c.ValidFrom) {
		return false
	}
	return c.ValidUntil == nil || d.BeforeOrEqual(*c.ValidUntil)
}

// Overlaps returns true if the two periods share at least one day.
func (c CapPeriod) Overlaps(other CapPeriod) bool {
	if c.ValidUntil != nil && c.ValidUntil.Before(other.ValidFrom) {
		return false
	}
	if other.ValidUntil != nil && other.ValidUntil.Before(c.ValidFrom) {
		return false
	}
	return true
}

// OpenEnded returns true when the period has no end date.
func (c CapPeriod) OpenEnded() bool { return c.ValidUntil == nil }

// =============================================================================
// REPOSITORY - Durable storage for cap periods
// =============================================================================

// CapPeriodRepository is the persistence boundary for cap periods. The
// Timeline expresses its multi-record adjustments as a sequence of Save and
// Delete calls inside WithTx; the implementation must apply them atomically
// so no reader ever observes an unresolved overlap or a stale neighbor.
type CapPeriodRepository interface {
	// ListCapPeriods returns all periods ascending by ValidFrom.
	ListCapPeriods(ctx context.Context) ([]CapPeriod, error)

	// GetCapPeriod returns nil (no error) when the period doesn't exist.
	GetCapPeriod(ctx context.Context, id string) (*CapPeriod, error)

	// SaveCapPeriod inserts or updates a period.
	SaveCapPeriod(ctx context.Context, p CapPeriod) error

	DeleteCapPeriod(ctx context.Context, id string) error

	// WithTx executes fn within a transaction. If fn returns an error the
	// transaction is rolled back and no mutation is visible.
	WithTx(ctx context.Context, fn func(CapPeriodRepository) error) error
}
