package billing

import (
	"context"
	"time"
)

// =============================================================================
// EMPLOYEE - Billing configuration provider
// =============================================================================

// Employee carries the per-employee billing configuration and the hourly
// rate used to derive entry earnings.
type Employee struct {
	ID         string
	Name       string
	Email      string
	StartDay   int
	EndDay     int
	HourlyRate Cents
	CreatedAt  time.Time
}

// BillingConfig returns the employee's billing-day configuration.
func (e Employee) BillingConfig() BillingConfig {
	return BillingConfig{StartDay: e.StartDay, EndDay: e.EndDay}
}

// EmployeeRepository supplies employee identity and configuration.
type EmployeeRepository interface {
	ListEmployees(ctx context.Context) ([]Employee, error)

	// GetEmployee returns nil (no error) when the employee doesn't exist.
	GetEmployee(ctx context.Context, id string) (*Employee, error)

	SaveEmployee(ctx context.Context, e Employee) error
}

// =============================================================================
// ENTRY - Atomic unit of recorded work
// =============================================================================

// Entry is a single recorded unit of work. Earnings is derived when the
// entry is recorded (minutes x hourly rate, see EarningsFor) and treated as
// an opaque non-negative amount by the carry-forward computation.
type Entry struct {
	ID         string
	EmployeeID string
	Date       Date
	Minutes    int
	Earnings   Cents
	Note       string
	CreatedAt  time.Time
}

// EntryRepository supplies recorded work entries per employee.
type EntryRepository interface {
	// ListEntries returns entries with from <= Date <= to, ascending by date.
	ListEntries(ctx context.Context, employeeID string, from, to Date) ([]Entry, error)

	// FirstEntryDate returns the date of the employee's earliest entry, or
	// nil when the employee has no entries.
	FirstEntryDate(ctx context.Context, employeeID string) (*Date, error)

	SaveEntry(ctx context.Context, e Entry) error
	DeleteEntry(ctx context.Context, id string) error
}
