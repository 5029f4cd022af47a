// Package money provides the exact two-decimal amount type used for every
// monetary value in the system. Amounts never touch binary floats; they are
// constructed from decimal strings or minor units and stay exact through all
// arithmetic.
package money

import (
	"database/sql/driver"
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
)

// Money is an exact amount with at most two decimal places. The zero value
// is 0.00 and is ready to use.
type Money struct {
	d decimal.Decimal
}

// Epsilon is the tolerance used when comparing tendered amounts against
// amounts due. It is never applied to stored values.
var Epsilon = FromMinorUnits(1)

func Zero() Money {
	return Money{}
}

// FromMinorUnits builds an amount from an integer count of minor units
// (e.g. 7000 -> 70.00).
func FromMinorUnits(units int64) Money {
	return Money{d: decimal.New(units, -2)}
}

// Parse reads a decimal string such as "70.00" or "-5.5". Strings with more
// than two decimal places are rejected rather than rounded; rounding belongs
// to display boundaries, not to ingestion.
func Parse(s string) (Money, error) {
	d, err := decimal.NewFromString(strings.TrimSpace(s))
	if err != nil {
		return Money{}, fmt.Errorf("invalid amount %q: %w", s, err)
	}
	if d.Exponent() < -2 {
		return Money{}, fmt.Errorf("invalid amount %q: more than two decimal places", s)
	}
	return Money{d: d}, nil
}

// MustParse is Parse for compile-time constants and tests; it panics on
// malformed input.
func MustParse(s string) Money {
	m, err := Parse(s)
	if err != nil {
		panic(err)
	}
	return m
}

func (m Money) Add(o Money) Money  { return Money{d: m.d.Add(o.d)} }
func (m Money) Sub(o Money) Money  { return Money{d: m.d.Sub(o.d)} }
func (m Money) Neg() Money         { return Money{d: m.d.Neg()} }
func (m Money) Cmp(o Money) int    { return m.d.Cmp(o.d) }
func (m Money) Equal(o Money) bool { return m.d.Equal(o.d) }

// MulInt scales the amount by an integer quantity. Quantity times a two
// decimal unit price is always exact.
func (m Money) MulInt(qty int64) Money {
	return Money{d: m.d.Mul(decimal.NewFromInt(qty))}
}

func (m Money) IsZero() bool     { return m.d.IsZero() }
func (m Money) IsNegative() bool { return m.d.IsNegative() }
func (m Money) IsPositive() bool { return m.d.IsPositive() }

func Min(a, b Money) Money {
	if a.Cmp(b) <= 0 {
		return a
	}
	return b
}

// Covers reports whether m is at least due, allowing Epsilon of slack for
// the comparison only.
func (m Money) Covers(due Money) bool {
	return m.Add(Epsilon).Cmp(due) >= 0
}

// MinorUnits returns the amount as an integer count of minor units.
func (m Money) MinorUnits() int64 {
	return m.d.Shift(2).IntPart()
}

// String renders with exactly two decimal places, the canonical wire form.
func (m Money) String() string {
	return m.d.StringFixed(2)
}

func (m Money) MarshalJSON() ([]byte, error) {
	return []byte(`"` + m.String() + `"`), nil
}

func (m *Money) UnmarshalJSON(data []byte) error {
	s := strings.Trim(string(data), `"`)
	if s == "" || s == "null" {
		*m = Money{}
		return nil
	}
	parsed, err := Parse(s)
	if err != nil {
		return err
	}
	*m = parsed
	return nil
}

// Value implements driver.Valuer so amounts persist as NUMERIC strings.
func (m Money) Value() (driver.Value, error) {
	return m.String(), nil
}

// Scan implements sql.Scanner for NUMERIC columns.
func (m *Money) Scan(src any) error {
	var d decimal.Decimal
	if err := d.Scan(src); err != nil {
		return err
	}
	m.d = d
	return nil
}
