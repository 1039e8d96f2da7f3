// Package core provides money parsing and handling utilities.
//
// Amounts are kept as integer cents everywhere. Decimal text coming from forms
// and going to displays or spreadsheets is converted with shopspring/decimal so
// no float ever touches a balance.
package core

import (
	"strings"

	"github.com/shopspring/decimal"
)

// MaxCents bounds every single amount and every balance: 1.000.000 €.
// Sums of bounded amounts over the supported date window stay far below
// the int64 range.
const MaxCents = 100_000_000

var maxCents = decimal.NewFromInt(MaxCents)

// ParseDecimalToCents converts a decimal string to cents with proper rounding.
//
// It accepts both dot (12.34) and comma (12,34) decimal separators and performs
// half-up rounding on the third decimal place. The result is always positive cents.
// Returns an error for invalid formats, negative values, zero amounts or
// amounts above MaxCents.
//
// Examples:
//
//	ParseDecimalToCents("12.34") -> 1234, nil
//	ParseDecimalToCents("12,34") -> 1234, nil
//	ParseDecimalToCents("12.345") -> 1235, nil
//	ParseDecimalToCents("0") -> 0, ErrInvalidAmount
func ParseDecimalToCents(s string) (int64, error) {
	cents, err := parseCents(s)
	if err != nil {
		return 0, err
	}
	if cents <= 0 {
		return 0, ErrInvalidAmount
	}
	return cents, nil
}

// ParseOptionalCents is like ParseDecimalToCents but treats an empty string as
// zero and accepts zero. Used for the start balance of a new account.
func ParseOptionalCents(s string) (int64, error) {
	if strings.TrimSpace(s) == "" {
		return 0, nil
	}
	return parseCents(s)
}

func parseCents(s string) (int64, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, ErrInvalidAmount
	}
	// Normalize decimal comma to dot
	s = strings.ReplaceAll(s, ",", ".")
	if strings.HasPrefix(s, "+") || strings.HasPrefix(s, "-") {
		return 0, ErrInvalidAmount
	}
	if strings.ContainsAny(s, "eE") {
		return 0, ErrInvalidAmount
	}
	d, err := decimal.NewFromString(s)
	if err != nil {
		return 0, ErrInvalidAmount
	}
	cents := d.Shift(2).Round(0)
	if cents.GreaterThan(maxCents) {
		return 0, ErrAmountTooLarge
	}
	return cents.IntPart(), nil
}

// Add returns m + o.
func (m Money) Add(o Money) Money {
	return Money{Cents: m.Cents + o.Cents}
}

// Times returns m multiplied by n.
func (m Money) Times(n int64) Money {
	return Money{Cents: m.Cents * n}
}

// Neg returns -m.
func (m Money) Neg() Money {
	return Money{Cents: -m.Cents}
}

// IsNegative reports whether m is below zero.
func (m Money) IsNegative() bool { return m.Cents < 0 }

// Decimal returns the amount in euros as an exact decimal.
func (m Money) Decimal() decimal.Decimal {
	return decimal.New(m.Cents, -2)
}

// Euros returns the euro value as a float64 for display purposes.
// Note: Use cents for calculations to avoid floating-point precision issues.
func (m Money) Euros() float64 {
	return m.Decimal().InexactFloat64()
}

// Format renders the amount the way German households read it: "1.234,50 €".
func (m Money) Format() string {
	s := m.Decimal().Abs().StringFixed(2)
	intPart, frac, _ := strings.Cut(s, ".")

	var b strings.Builder
	if m.Cents < 0 {
		b.WriteByte('-')
	}
	for i, r := range intPart {
		if i > 0 && (len(intPart)-i)%3 == 0 {
			b.WriteByte('.')
		}
		b.WriteRune(r)
	}
	b.WriteByte(',')
	b.WriteString(frac)
	b.WriteString(" €")
	return b.String()
}

// String implements fmt.Stringer.
func (m Money) String() string {
	return m.Format()
}

// SumAmounts adds up the amounts of the given transactions.
func SumAmounts(txs []Transaction) Money {
	var total Money
	for _, t := range txs {
		total = total.Add(t.Amount)
	}
	return total
}
