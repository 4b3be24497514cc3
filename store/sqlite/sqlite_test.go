package sqlite

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lohnwerk/minijob-engine/billing"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := New(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func testDate(y int, m time.Month, d int) billing.Date {
	return billing.NewDate(y, m, d)
}

// =============================================================================
// EMPLOYEES
// =============================================================================

func TestStore_EmployeeRoundTrip(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	emp := billing.Employee{
		ID:         "emp-1",
		Name:       "Anna Schmidt",
		Email:      "anna@example.com",
		StartDay:   22,
		EndDay:     21,
		HourlyRate: 1282,
		CreatedAt:  time.Date(2024, time.March, 1, 12, 0, 0, 0, time.UTC),
	}
	require.NoError(t, s.SaveEmployee(ctx, emp))

	got, err := s.GetEmployee(ctx, "emp-1")
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, emp, *got)

	// Upsert updates in place.
	emp.HourlyRate = 1400
	require.NoError(t, s.SaveEmployee(ctx, emp))
	got, err = s.GetEmployee(ctx, "emp-1")
	require.NoError(t, err)
	assert.Equal(t, billing.Cents(1400), got.HourlyRate)

	list, err := s.ListEmployees(ctx)
	require.NoError(t, err)
	assert.Len(t, list, 1)
}

func TestStore_GetEmployee_MissingIsNil(t *testing.T) {
	s := newTestStore(t)
	got, err := s.GetEmployee(context.Background(), "nope")
	require.NoError(t, err)
	assert.Nil(t, got)
}

// =============================================================================
// ENTRIES
// =============================================================================

func seedEmployee(t *testing.T, s *Store, id string) {
	t.Helper()
	require.NoError(t, s.SaveEmployee(context.Background(), billing.Employee{
		ID: id, Name: "Test", StartDay: 1, EndDay: 31, HourlyRate: 1282,
	}))
}

func TestStore_ListEntries_RangeAndOrder(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	seedEmployee(t, s, "emp-1")

	// Inserted out of order on purpose.
	for i, d := range []billing.Date{
		testDate(2024, time.March, 20),
		testDate(2024, time.March, 5),
		testDate(2024, time.April, 2),
	} {
		require.NoError(t, s.SaveEntry(ctx, billing.Entry{
			ID: string(rune('a' + i)), EmployeeID: "emp-1", Date: d,
			Minutes: 60, Earnings: 1282,
		}))
	}

	entries, err := s.ListEntries(ctx, "emp-1", testDate(2024, time.March, 1), testDate(2024, time.March, 31))
	require.NoError(t, err)
	require.Len(t, entries, 2)
	assert.Equal(t, testDate(2024, time.March, 5), entries[0].Date)
	assert.Equal(t, testDate(2024, time.March, 20), entries[1].Date)
}

func TestStore_FirstEntryDate(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	seedEmployee(t, s, "emp-1")

	first, err := s.FirstEntryDate(ctx, "emp-1")
	require.NoError(t, err)
	assert.Nil(t, first, "no entries yet")

	require.NoError(t, s.SaveEntry(ctx, billing.Entry{
		ID: "e1", EmployeeID: "emp-1", Date: testDate(2024, time.March, 20), Minutes: 60, Earnings: 1282,
	}))
	require.NoError(t, s.SaveEntry(ctx, billing.Entry{
		ID: "e2", EmployeeID: "emp-1", Date: testDate(2024, time.January, 5), Minutes: 60, Earnings: 1282,
	}))

	first, err = s.FirstEntryDate(ctx, "emp-1")
	require.NoError(t, err)
	require.NotNil(t, first)
	assert.Equal(t, testDate(2024, time.January, 5), *first)
}

func TestStore_DeleteEntry(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	seedEmployee(t, s, "emp-1")

	require.NoError(t, s.SaveEntry(ctx, billing.Entry{
		ID: "e1", EmployeeID: "emp-1", Date: testDate(2024, time.March, 20), Minutes: 60, Earnings: 1282,
	}))
	require.NoError(t, s.DeleteEntry(ctx, "e1"))

	err := s.DeleteEntry(ctx, "e1")
	assert.ErrorIs(t, err, billing.ErrEntryNotFound)
}

// =============================================================================
// CAP PERIODS
// =============================================================================

func TestStore_CapPeriodRoundTrip(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	until := testDate(2024, time.December, 31)
	bounded := billing.CapPeriod{
		ID: "cap-1", Limit: 53800,
		ValidFrom:  testDate(2024, time.January, 1),
		ValidUntil: &until,
		CreatedBy:  "hr",
		CreatedAt:  time.Date(2023, time.December, 1, 9, 0, 0, 0, time.UTC),
	}
	open := billing.CapPeriod{
		ID: "cap-2", Limit: 55600,
		ValidFrom: testDate(2025, time.January, 1),
		Active:    true,
		CreatedAt: time.Date(2024, time.November, 1, 9, 0, 0, 0, time.UTC),
	}
	require.NoError(t, s.SaveCapPeriod(ctx, bounded))
	require.NoError(t, s.SaveCapPeriod(ctx, open))

	got, err := s.GetCapPeriod(ctx, "cap-1")
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, bounded, *got)

	got, err = s.GetCapPeriod(ctx, "cap-2")
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Nil(t, got.ValidUntil)
	assert.True(t, got.Active)

	list, err := s.ListCapPeriods(ctx)
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, "cap-1", list[0].ID, "ordered by valid_from")
}

func TestStore_DeleteCapPeriod_MissingIsNotFound(t *testing.T) {
	s := newTestStore(t)
	err := s.DeleteCapPeriod(context.Background(), "nope")
	assert.ErrorIs(t, err, billing.ErrPeriodNotFound)
}

// =============================================================================
// TRANSACTIONS
// =============================================================================

func TestStore_WithTx_RollbackOnError(t *testing.T) {
	// GIVEN: A committed cap period
	// WHEN: A transaction saves a second one, truncates the first and then fails
	// THEN: Neither change is visible afterwards

	s := newTestStore(t)
	ctx := context.Background()

	first := billing.CapPeriod{ID: "cap-1", Limit: 53800, ValidFrom: testDate(2024, time.January, 1)}
	require.NoError(t, s.SaveCapPeriod(ctx, first))

	boom := errors.New("boom")
	err := s.WithTx(ctx, func(r billing.CapPeriodRepository) error {
		until := testDate(2024, time.December, 31)
		first.ValidUntil = &until
		if err := r.SaveCapPeriod(ctx, first); err != nil {
			return err
		}
		if err := r.SaveCapPeriod(ctx, billing.CapPeriod{
			ID: "cap-2", Limit: 55600, ValidFrom: testDate(2025, time.January, 1),
		}); err != nil {
			return err
		}
		return boom
	})
	require.ErrorIs(t, err, boom)

	got, err := s.GetCapPeriod(ctx, "cap-1")
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Nil(t, got.ValidUntil, "truncation rolled back")

	got, err = s.GetCapPeriod(ctx, "cap-2")
	require.NoError(t, err)
	assert.Nil(t, got, "insert rolled back")
}

func TestStore_WithTx_CommitsBothRecords(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	err := s.WithTx(ctx, func(r billing.CapPeriodRepository) error {
		if err := r.SaveCapPeriod(ctx, billing.CapPeriod{
			ID: "cap-1", Limit: 53800, ValidFrom: testDate(2024, time.January, 1),
		}); err != nil {
			return err
		}
		return r.SaveCapPeriod(ctx, billing.CapPeriod{
			ID: "cap-2", Limit: 55600, ValidFrom: testDate(2025, time.January, 1),
		})
	})
	require.NoError(t, err)

	list, err := s.ListCapPeriods(ctx)
	require.NoError(t, err)
	assert.Len(t, list, 2)
}

// =============================================================================
// ENGINE ON SQLITE
// =============================================================================

func TestStore_TimelineInsertThroughTransaction(t *testing.T) {
	// The timeline's auto-truncation path runs end to end against SQLite.
	s := newTestStore(t)
	ctx := context.Background()
	tl := billing.NewTimeline(s)

	_, err := tl.Insert(ctx, billing.CapPeriod{
		ID: "cap-2024", Limit: 53800, ValidFrom: testDate(2024, time.January, 1),
	})
	require.NoError(t, err)

	adj, err := tl.Insert(ctx, billing.CapPeriod{
		ID: "cap-2025", Limit: 55600, ValidFrom: testDate(2025, time.January, 1),
	})
	require.NoError(t, err)
	require.NotNil(t, adj)
	assert.Equal(t, "cap-2024", adj.PeriodID)

	got, err := s.GetCapPeriod(ctx, "cap-2024")
	require.NoError(t, err)
	require.NotNil(t, got.ValidUntil)
	assert.Equal(t, testDate(2024, time.December, 31), *got.ValidUntil)
}
