package billing

import (
	"fmt"

	"github.com/shopspring/decimal"
)

// =============================================================================
// CENTS - Monetary amounts in integer minor units
// =============================================================================

// Cents is a monetary amount in euro cents. All internal arithmetic is done
// on integers so that replaying history is exactly reproducible; conversion
// to decimal happens only at parse and presentation boundaries.
type Cents int64

// Decimal returns the amount as a decimal in major units (euros).
func (c Cents) Decimal() decimal.Decimal {
	return decimal.New(int64(c), -2)
}

// String formats the amount with two decimal places, e.g. "538.00".
func (c Cents) String() string {
	return c.Decimal().StringFixed(2)
}

func (c Cents) IsNegative() bool { return c < 0 }
func (c Cents) IsZero() bool     { return c == 0 }

// CentsFromDecimal converts a major-unit decimal to cents, rounding
// half-even at the cent boundary.
func CentsFromDecimal(d decimal.Decimal) Cents {
	return Cents(d.Shift(2).RoundBank(0).IntPart())
}

// ParseCents parses a major-unit decimal string ("538.00") into cents.
func ParseCents(s string) (Cents, error) {
	d, err := decimal.NewFromString(s)
	if err != nil {
		return 0, fmt.Errorf("parse amount %q: %w", s, err)
	}
	return CentsFromDecimal(d), nil
}

// EarningsFor derives the earnings for a span of worked minutes at an hourly
// rate. The division is carried out in decimal and rounded half-even to the
// cent so that 90 minutes at 12.82/h comes out the same on every replay.
func EarningsFor(minutes int, hourlyRate Cents) Cents {
	d := decimal.NewFromInt(int64(hourlyRate)).
		Mul(decimal.NewFromInt(int64(minutes))).
		Div(decimal.NewFromInt(60))
	return Cents(d.RoundBank(0).IntPart())
}

func maxCents(a, b Cents) Cents {
	if a > b {
		return a
	}
	return b
}

func minCents(a, b Cents) Cents {
	if a < b {
		return a
	}
	return b
}
