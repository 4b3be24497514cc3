/*
Package billing implements the billing-period and earnings carry-over engine
for monthly-capped part-time employment.

PURPOSE:
  Three cooperating components, each depending on the previous:

  1. Period Calculator (this file) - pure functions turning an employee's
     (startDay, endDay) configuration into concrete calendar date ranges,
     with calendar-aware clamping.
  2. Timeline (timeline.go) - the ordered collection of earnings-cap
     periods, with automatic adjustment of neighbors on insert/delete.
  3. Ledger (carry.go) - computes, for any billing period, how much of the
     accumulated earnings is payable under the prevailing cap and how much
     carries forward into the next period.

DESIGN PRINCIPLES:
  1. The calculator and ledger are pure over repository interfaces; the
     Timeline owns the only mutation path.
  2. All day math runs on the UTC-pinned Date type (date.go). Month-boundary
     arithmetic is the most failure-prone part of this domain.
  3. Monetary arithmetic is integer cents (money.go) so replays are exact.
*/
package billing

import "time"

// =============================================================================
// BILLING CONFIG - Per-employee period definition
// =============================================================================

// BillingConfig is an employee's billing-day configuration. Days are in
// [1,31]; callers pre-validate the range. If StartDay <= EndDay the billing
// period lies within one calendar month, otherwise it spans from StartDay of
// one month to EndDay of the next.
type BillingConfig struct {
	StartDay int
	EndDay   int
}

// Valid reports whether both days are within [1,31].
func (c BillingConfig) Valid() bool {
	return c.StartDay >= 1 && c.StartDay <= 31 && c.EndDay >= 1 && c.EndDay <= 31
}

// =============================================================================
// WORK PERIOD - A materialized billing period
// =============================================================================

// WorkPeriod is a concrete [Start, End] date range produced by evaluating a
// BillingConfig against a reference month. Derived on demand, never persisted.
type WorkPeriod struct {
	Start      Date
	End        Date
	CrossMonth bool
}

// Contains returns true if the date is within [Start, End].
func (p WorkPeriod) Contains(d Date) bool {
	return d.AfterOrEqual(p.Start) && d.BeforeOrEqual(p.End)
}

// LabelMonth returns the month the period is reported as. A period inside a
// single calendar month is named after that month; a cross-month period like
// 22 July - 21 August is naturally reported as "August", so it is named
// after its end month.
func (p WorkPeriod) LabelMonth() (int, time.Month) {
	if p.CrossMonth {
		return p.End.Year(), p.End.Month()
	}
	return p.Start.Year(), p.Start.Month()
}

// Label returns the human-readable period name, e.g. "August 2025".
func (p WorkPeriod) Label() string {
	year, month := p.LabelMonth()
	return NewDate(year, month, 1).Time().Format("January 2006")
}

func (p WorkPeriod) String() string {
	return "[" + p.Start.String() + ", " + p.End.String() + "]"
}

// =============================================================================
// PERIOD CALCULATOR
// =============================================================================

// ComputePeriod evaluates (startDay, endDay) against the month of the
// reference date. Conventionally the 15th of the target month is passed to
// avoid edge ambiguity. Both boundaries are clamped to the last actual day
// of their month when the configured day does not exist (day 31 in
// February). Any startDay/endDay in [1,31] is accepted.
func ComputePeriod(startDay, endDay int, ref Date) WorkPeriod {
	year, month := ref.Year(), ref.Month()
	start := NewDate(year, month, clampDay(startDay, year, month))

	if startDay <= endDay {
		return WorkPeriod{
			Start: start,
			End:   NewDate(year, month, clampDay(endDay, year, month)),
		}
	}

	endYear, endMonth := NextMonth(year, month)
	return WorkPeriod{
		Start:      start,
		End:        NewDate(endYear, endMonth, clampDay(endDay, endYear, endMonth)),
		CrossMonth: true,
	}
}

func clampDay(day, year int, month time.Month) int {
	if max := DaysInMonth(year, month); day > max {
		return max
	}
	return day
}

// PeriodFor evaluates the config against the month of the reference date.
func (c BillingConfig) PeriodFor(ref Date) WorkPeriod {
	return ComputePeriod(c.StartDay, c.EndDay, ref)
}

// PeriodContaining returns the billing period that contains the given date.
// For a cross-month config the date may fall into the period anchored to
// the previous month (e.g. Jan 10 belongs to Dec 22 - Jan 21).
func (c BillingConfig) PeriodContaining(d Date) WorkPeriod {
	p := c.PeriodFor(MidMonth(d.Year(), d.Month()))
	if d.Before(p.Start) {
		year, month := PrevMonth(d.Year(), d.Month())
		p = c.PeriodFor(MidMonth(year, month))
	}
	return p
}

// PeriodForLabel returns the period reported under the given month name.
// For a same-month config that is the period inside that month; for a
// cross-month config it is the period ending in it (the "August" period of
// a 22-21 config runs 22 July - 21 August).
func (c BillingConfig) PeriodForLabel(year int, month time.Month) WorkPeriod {
	if c.StartDay > c.EndDay {
		year, month = PrevMonth(year, month)
	}
	return c.PeriodFor(MidMonth(year, month))
}

// NextPeriod returns the period anchored one month after p.
func (c BillingConfig) NextPeriod(p WorkPeriod) WorkPeriod {
	year, month := NextMonth(p.Start.Year(), p.Start.Month())
	return c.PeriodFor(MidMonth(year, month))
}
