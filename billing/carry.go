/*
carry.go - Carry-forward ledger

PURPOSE:
  Computes, for a target billing period, how much of an employee's
  accumulated earnings is payable under the prevailing cap and how much
  excess rolls forward into the next period.

ALGORITHM:
  Starting from the employee's first recorded entry, replay forward
  period by period up to (but excluding) the target:

      periodTotal = sum(entries in period) + carry
      carry       = max(0, periodTotal - applicableCap(period))

  The applicable cap is resolved per period via the Timeline, so a cap
  change mid-history changes how much historical carry accumulates.
  Replaying full history is the correctness baseline; a per-period memo
  (carry-out keyed by period start) makes repeated queries cheap and is
  invalidated for a period and everything after it whenever an entry or
  cap period at or before it changes.

DETERMINISM:
  All arithmetic is integer cents, so repeated replays of a fixed set of
  entries and cap history produce bit-identical results.

SEE ALSO:
  - period.go: Period Calculator driving the replay
  - timeline.go: Cap resolution
*/
package billing

import (
	"context"
	"sync"
)

// Ledger computes carry-in and period summaries by replaying history.
type Ledger struct {
	entries EntryRepository
	caps    *Timeline

	mu   sync.Mutex
	memo map[string]map[Date]Cents // employeeID -> period start -> carry-out
}

func NewLedger(entries EntryRepository, caps *Timeline) *Ledger {
	return &Ledger{
		entries: entries,
		caps:    caps,
		memo:    make(map[string]map[Date]Cents),
	}
}

// Summary is the payable/carry breakdown of a single billing period.
type Summary struct {
	Period         WorkPeriod
	CarryIn        Cents
	PeriodTotal    Cents // entries in the period, excluding carry
	ActualEarnings Cents // PeriodTotal + CarryIn
	Cap            *Cents // nil = no cap configured for the period
	Paid           Cents
	CarryOut       Cents
	ExceedsLimit   bool
}

// =============================================================================
// CARRY-IN
// =============================================================================

// ComputeCarryIn replays the employee's history from the first recorded
// entry up to (but excluding) the target period and returns the excess
// carried into it. Always >= 0.
func (l *Ledger) ComputeCarryIn(ctx context.Context, employeeID string, cfg BillingConfig, target WorkPeriod) (Cents, error) {
	first, err := l.entries.FirstEntryDate(ctx, employeeID)
	if err != nil {
		return 0, err
	}
	if first == nil {
		return 0, nil
	}

	p := cfg.PeriodContaining(*first)
	carry := Cents(0)
	for p.Start.Before(target.Start) {
		if cached, ok := l.memoGet(employeeID, p.Start); ok {
			carry = cached
			p = cfg.NextPeriod(p)
			continue
		}

		out, err := l.carryOut(ctx, employeeID, p, carry)
		if err != nil {
			return 0, err
		}
		carry = out
		l.memoPut(employeeID, p.Start, out)
		p = cfg.NextPeriod(p)
	}
	return carry, nil
}

// carryOut applies the cap rule to one period.
func (l *Ledger) carryOut(ctx context.Context, employeeID string, p WorkPeriod, carryIn Cents) (Cents, error) {
	total, err := l.periodTotal(ctx, employeeID, p)
	if err != nil {
		return 0, err
	}
	capPeriod, err := l.caps.FindApplicable(ctx, p.End)
	if err != nil {
		return 0, err
	}
	if capPeriod == nil {
		// No cap configured: everything is payable, nothing carries.
		return 0, nil
	}
	return maxCents(0, total+carryIn-capPeriod.Limit), nil
}

func (l *Ledger) periodTotal(ctx context.Context, employeeID string, p WorkPeriod) (Cents, error) {
	entries, err := l.entries.ListEntries(ctx, employeeID, p.Start, p.End)
	if err != nil {
		return 0, err
	}
	var total Cents
	for _, e := range entries {
		total += e.Earnings
	}
	return total, nil
}

// =============================================================================
// PERIOD SUMMARY
// =============================================================================

// ComputePeriodSummary computes the full payable/carry breakdown for the
// target period, including the carry-in from all preceding history.
func (l *Ledger) ComputePeriodSummary(ctx context.Context, employeeID string, cfg BillingConfig, target WorkPeriod) (Summary, error) {
	carryIn, err := l.ComputeCarryIn(ctx, employeeID, cfg, target)
	if err != nil {
		return Summary{}, err
	}
	total, err := l.periodTotal(ctx, employeeID, target)
	if err != nil {
		return Summary{}, err
	}
	capPeriod, err := l.caps.FindApplicable(ctx, target.End)
	if err != nil {
		return Summary{}, err
	}

	actual := total + carryIn
	s := Summary{
		Period:         target,
		CarryIn:        carryIn,
		PeriodTotal:    total,
		ActualEarnings: actual,
		Paid:           actual,
	}
	if capPeriod != nil {
		limit := capPeriod.Limit
		s.Cap = &limit
		s.Paid = minCents(actual, limit)
		s.CarryOut = maxCents(0, actual-limit)
		s.ExceedsLimit = actual > limit
	}
	return s, nil
}

// =============================================================================
// MEMO - Per-period carry cache
// =============================================================================

// InvalidateFrom drops the employee's memoized carry for the period
// containing d and everything after it. Call when an entry in or before the
// affected period changes.
func (l *Ledger) InvalidateFrom(employeeID string, cfg BillingConfig, d Date) {
	start := cfg.PeriodContaining(d).Start
	l.mu.Lock()
	defer l.mu.Unlock()
	for pstart := range l.memo[employeeID] {
		if pstart.AfterOrEqual(start) {
			delete(l.memo[employeeID], pstart)
		}
	}
}

// InvalidateAll drops every memoized carry. Call when the cap timeline
// changes: a cap edit can reach arbitrarily far back for any employee.
func (l *Ledger) InvalidateAll() {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.memo = make(map[string]map[Date]Cents)
}

func (l *Ledger) memoGet(employeeID string, periodStart Date) (Cents, bool) {
	l.mu.Lock()
	defer l.mu.Unlock()
	c, ok := l.memo[employeeID][periodStart]
	return c, ok
}

func (l *Ledger) memoPut(employeeID string, periodStart Date, carryOut Cents) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.memo[employeeID] == nil {
		l.memo[employeeID] = make(map[Date]Cents)
	}
	l.memo[employeeID][periodStart] = carryOut
}
