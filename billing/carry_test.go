package billing_test

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lohnwerk/minijob-engine/billing"
	"github.com/lohnwerk/minijob-engine/billing/store"
)

// =============================================================================
// TEST FIXTURE
// =============================================================================

const testEmployee = "emp-1"

type ledgerFixture struct {
	mem    *store.Memory
	tl     *billing.Timeline
	ledger *billing.Ledger
	cfg    billing.BillingConfig
	seq    int
}

func newLedgerFixture(t *testing.T, cfg billing.BillingConfig) *ledgerFixture {
	t.Helper()
	mem := store.NewMemory()
	tl := billing.NewTimeline(mem)
	return &ledgerFixture{
		mem:    mem,
		tl:     tl,
		ledger: billing.NewLedger(mem, tl),
		cfg:    cfg,
	}
}

func (f *ledgerFixture) addEntry(t *testing.T, d billing.Date, earnings billing.Cents) {
	t.Helper()
	f.seq++
	err := f.mem.SaveEntry(context.Background(), billing.Entry{
		ID:         fmt.Sprintf("entry-%d", f.seq),
		EmployeeID: testEmployee,
		Date:       d,
		Minutes:    60,
		Earnings:   earnings,
	})
	require.NoError(t, err)
}

func (f *ledgerFixture) addCap(t *testing.T, id string, limit billing.Cents, from billing.Date, until *billing.Date) {
	t.Helper()
	require.NoError(t, f.mem.SaveCapPeriod(context.Background(),
		billing.CapPeriod{ID: id, Limit: limit, ValidFrom: from, ValidUntil: until}))
}

func (f *ledgerFixture) summary(t *testing.T, ref billing.Date) billing.Summary {
	t.Helper()
	s, err := f.ledger.ComputePeriodSummary(context.Background(), testEmployee, f.cfg, f.cfg.PeriodFor(ref))
	require.NoError(t, err)
	return s
}

// =============================================================================
// WORKED EXAMPLE
// =============================================================================

func TestLedger_ExcessCarriesIntoNextPeriod(t *testing.T) {
	// GIVEN: A 500.00 cap and 600.00 earned in January
	// WHEN: Computing January and February summaries
	// THEN: January pays 500.00 and carries 100.00; February's carry-in of
	//       100.00 is paid out with no further carry

	f := newLedgerFixture(t, billing.BillingConfig{StartDay: 1, EndDay: 31})
	f.addCap(t, "cap-1", 50000, date(2024, time.January, 1), nil)
	f.addEntry(t, date(2024, time.January, 10), 35000)
	f.addEntry(t, date(2024, time.January, 24), 25000)

	jan := f.summary(t, date(2024, time.January, 15))
	assert.Equal(t, billing.Cents(0), jan.CarryIn)
	assert.Equal(t, billing.Cents(60000), jan.PeriodTotal)
	assert.Equal(t, billing.Cents(60000), jan.ActualEarnings)
	require.NotNil(t, jan.Cap)
	assert.Equal(t, billing.Cents(50000), *jan.Cap)
	assert.Equal(t, billing.Cents(50000), jan.Paid)
	assert.Equal(t, billing.Cents(10000), jan.CarryOut)
	assert.True(t, jan.ExceedsLimit)

	feb := f.summary(t, date(2024, time.February, 15))
	assert.Equal(t, billing.Cents(10000), feb.CarryIn)
	assert.Equal(t, billing.Cents(0), feb.PeriodTotal)
	assert.Equal(t, billing.Cents(10000), feb.ActualEarnings)
	assert.Equal(t, billing.Cents(10000), feb.Paid)
	assert.Equal(t, billing.Cents(0), feb.CarryOut)
	assert.False(t, feb.ExceedsLimit)
}

func TestLedger_CarryChainsAcrossSeveralPeriods(t *testing.T) {
	// Earnings stay above the cap for three months, so the excess keeps
	// accumulating before draining.
	f := newLedgerFixture(t, billing.BillingConfig{StartDay: 1, EndDay: 31})
	f.addCap(t, "cap-1", 50000, date(2024, time.January, 1), nil)
	f.addEntry(t, date(2024, time.January, 10), 60000) // carry 100
	f.addEntry(t, date(2024, time.February, 10), 55000) // 550+100 -> carry 150
	f.addEntry(t, date(2024, time.March, 10), 50000)    // 500+150 -> carry 150

	apr := f.summary(t, date(2024, time.April, 15))
	assert.Equal(t, billing.Cents(15000), apr.CarryIn)
	assert.Equal(t, billing.Cents(15000), apr.Paid)
	assert.Equal(t, billing.Cents(0), apr.CarryOut)
}

// =============================================================================
// CONSERVATION PROPERTY
// =============================================================================

func TestLedger_CarryConservation(t *testing.T) {
	// For every period: carryIn + periodTotal == paid + carryOut.
	f := newLedgerFixture(t, billing.BillingConfig{StartDay: 1, EndDay: 31})
	f.addCap(t, "cap-1", 53800, date(2024, time.January, 1), nil)

	earnings := []billing.Cents{61234, 12345, 99999, 0, 53800, 53801}
	for i, e := range earnings {
		if e > 0 {
			f.addEntry(t, date(2024, time.Month(i+1), 14), e)
		}
	}

	var totalPaid, totalEarned billing.Cents
	for m := time.January; m <= time.December; m++ {
		s := f.summary(t, date(2024, m, 15))
		assert.Equal(t, s.CarryIn+s.PeriodTotal, s.Paid+s.CarryOut,
			"conservation violated in %s", s.Period.Label())
		assert.GreaterOrEqual(t, s.CarryOut, billing.Cents(0))
		totalPaid += s.Paid
		totalEarned += s.PeriodTotal
	}

	dec := f.summary(t, date(2024, time.December, 15))
	assert.Equal(t, totalEarned, totalPaid+dec.CarryOut,
		"everything earned is either paid out or still carried")
}

// =============================================================================
// CAP CHANGES MID-HISTORY
// =============================================================================

func TestLedger_CapChangeMidHistoryChangesReplay(t *testing.T) {
	// GIVEN: 600.00 earned in January under a 500.00 cap
	// WHEN: A 520.00 cap takes over from February
	// THEN: February absorbs January's 100.00 carry under the new limit

	f := newLedgerFixture(t, billing.BillingConfig{StartDay: 1, EndDay: 31})
	f.addCap(t, "cap-old", 50000, date(2024, time.January, 1),
		datePtr(date(2024, time.January, 31)))
	f.addCap(t, "cap-new", 52000, date(2024, time.February, 1), nil)

	f.addEntry(t, date(2024, time.January, 10), 60000)
	f.addEntry(t, date(2024, time.February, 10), 45000)

	feb := f.summary(t, date(2024, time.February, 15))
	assert.Equal(t, billing.Cents(10000), feb.CarryIn)
	assert.Equal(t, billing.Cents(55000), feb.ActualEarnings)
	require.NotNil(t, feb.Cap)
	assert.Equal(t, billing.Cents(52000), *feb.Cap)
	assert.Equal(t, billing.Cents(52000), feb.Paid)
	assert.Equal(t, billing.Cents(3000), feb.CarryOut)

	mar := f.summary(t, date(2024, time.March, 15))
	assert.Equal(t, billing.Cents(3000), mar.CarryIn)
}

func TestLedger_CrossMonthPeriodUsesCapAtPeriodEnd(t *testing.T) {
	// A 22-21 period ending 2024-02-21 is governed by the cap in force on
	// Feb 21, not on its January start.
	f := newLedgerFixture(t, billing.BillingConfig{StartDay: 22, EndDay: 21})
	f.addCap(t, "cap-old", 50000, date(2023, time.January, 1),
		datePtr(date(2024, time.January, 31)))
	f.addCap(t, "cap-new", 60000, date(2024, time.February, 1), nil)

	f.addEntry(t, date(2024, time.January, 25), 65000)

	s := f.summary(t, date(2024, time.January, 15))
	assert.Equal(t, date(2024, time.January, 22), s.Period.Start)
	assert.Equal(t, date(2024, time.February, 21), s.Period.End)
	require.NotNil(t, s.Cap)
	assert.Equal(t, billing.Cents(60000), *s.Cap)
	assert.Equal(t, billing.Cents(60000), s.Paid)
	assert.Equal(t, billing.Cents(5000), s.CarryOut)
}

// =============================================================================
// NO CAP CONFIGURED
// =============================================================================

func TestLedger_NoCap_EverythingPaidNothingCarried(t *testing.T) {
	f := newLedgerFixture(t, billing.BillingConfig{StartDay: 1, EndDay: 31})
	f.addEntry(t, date(2024, time.January, 10), 123456)

	jan := f.summary(t, date(2024, time.January, 15))
	assert.Nil(t, jan.Cap)
	assert.Equal(t, billing.Cents(123456), jan.Paid)
	assert.Equal(t, billing.Cents(0), jan.CarryOut)
	assert.False(t, jan.ExceedsLimit)

	feb := f.summary(t, date(2024, time.February, 15))
	assert.Equal(t, billing.Cents(0), feb.CarryIn)
}

func TestLedger_NoEntries_ZeroSummary(t *testing.T) {
	f := newLedgerFixture(t, billing.BillingConfig{StartDay: 1, EndDay: 31})
	f.addCap(t, "cap-1", 50000, date(2024, time.January, 1), nil)

	s := f.summary(t, date(2024, time.June, 15))
	assert.Equal(t, billing.Cents(0), s.CarryIn)
	assert.Equal(t, billing.Cents(0), s.Paid)
	assert.Equal(t, billing.Cents(0), s.CarryOut)
}

// =============================================================================
// MEMOIZATION
// =============================================================================

func TestLedger_MemoInvalidation_MatchesFreshReplay(t *testing.T) {
	// GIVEN: A memoized replay over several months
	// WHEN: A January entry changes and InvalidateFrom is called
	// THEN: Subsequent summaries match a ledger with no memo at all

	cfg := billing.BillingConfig{StartDay: 1, EndDay: 31}
	f := newLedgerFixture(t, cfg)
	f.addCap(t, "cap-1", 50000, date(2024, time.January, 1), nil)
	f.addEntry(t, date(2024, time.January, 10), 60000)
	f.addEntry(t, date(2024, time.February, 10), 52000)

	// Warm the memo.
	_ = f.summary(t, date(2024, time.April, 15))

	backdated := date(2024, time.January, 20)
	f.addEntry(t, backdated, 10000)
	f.ledger.InvalidateFrom(testEmployee, cfg, backdated)

	fresh := billing.NewLedger(f.mem, f.tl)
	for m := time.January; m <= time.June; m++ {
		want, err := fresh.ComputePeriodSummary(context.Background(), testEmployee, cfg, cfg.PeriodFor(date(2024, m, 15)))
		require.NoError(t, err)
		got := f.summary(t, date(2024, m, 15))
		assert.Equal(t, want, got, "stale memo for %s", got.Period.Label())
	}
}

func TestLedger_InvalidateAll_AfterCapChange(t *testing.T) {
	f := newLedgerFixture(t, billing.BillingConfig{StartDay: 1, EndDay: 31})
	f.addCap(t, "cap-1", 50000, date(2024, time.January, 1), nil)
	f.addEntry(t, date(2024, time.January, 10), 60000)

	feb := f.summary(t, date(2024, time.February, 15))
	assert.Equal(t, billing.Cents(10000), feb.CarryIn)

	// Raising the historical cap retroactively erases the carry.
	f.addCap(t, "cap-1", 70000, date(2024, time.January, 1), nil)
	f.ledger.InvalidateAll()

	feb = f.summary(t, date(2024, time.February, 15))
	assert.Equal(t, billing.Cents(0), feb.CarryIn)
}

// =============================================================================
// DETERMINISM
// =============================================================================

func TestLedger_RepeatedReplaysAreIdentical(t *testing.T) {
	f := newLedgerFixture(t, billing.BillingConfig{StartDay: 15, EndDay: 14})
	f.addCap(t, "cap-1", 53800, date(2023, time.June, 1), nil)
	f.addEntry(t, date(2023, time.July, 3), 61733)
	f.addEntry(t, date(2023, time.September, 28), 54201)
	f.addEntry(t, date(2024, time.January, 2), 49999)

	first := f.summary(t, date(2024, time.March, 1))
	for i := 0; i < 5; i++ {
		assert.Equal(t, first, f.summary(t, date(2024, time.March, 1)))
	}

	// A memo-less ledger agrees with the memoized one.
	fresh := billing.NewLedger(f.mem, f.tl)
	want, err := fresh.ComputePeriodSummary(context.Background(), testEmployee, f.cfg, f.cfg.PeriodFor(date(2024, time.March, 1)))
	require.NoError(t, err)
	assert.Equal(t, want, first)
}
