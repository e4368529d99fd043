// Package types provides common types used across the gate.
package types

import (
	"encoding/json"
	"fmt"
	"math"
	"strings"
)

// Money represents a monetary value in the smallest unit of a settlement
// currency. Amounts are unsigned and all arithmetic is integer-only with
// explicit wrap checks — no floating point, no negative balances.
//
// Examples:
//   - USDC(5_000_000) = 5 USDC (6 decimal places)
//   - SOL(1_000_000_000) = 1 SOL (9 decimal places, lamports)
//   - USD(4900) = $49.00 (cents)
type Money struct {
	Amount   uint64 `json:"amount"`   // Smallest unit (lamports, cents, etc)
	Currency string `json:"currency"` // Lowercase code: "sol", "usdc", "usd"
}

// Common currency constructors

// SOL creates a Money value in lamports (9 decimal places).
func SOL(lamports uint64) Money { return Money{Amount: lamports, Currency: "sol"} }

// USDC creates a Money value in USDC base units (6 decimal places).
func USDC(units uint64) Money { return Money{Amount: units, Currency: "usdc"} }

// USD creates a Money value in US Dollar cents.
func USD(cents uint64) Money { return Money{Amount: cents, Currency: "usd"} }

// EUR creates a Money value in Euro cents.
func EUR(cents uint64) Money { return Money{Amount: cents, Currency: "eur"} }

// Zero returns a zero Money value in the specified currency.
func Zero(currency string) Money { return Money{Amount: 0, Currency: strings.ToLower(currency)} }

// Arithmetic operations

// Add adds two Money values. Panics if currencies don't match or the sum
// would wrap around uint64.
func (m Money) Add(other Money) Money {
	sum, err := m.CheckedAdd(other)
	if err != nil {
		panic(err.Error())
	}
	return sum
}

// Subtract subtracts another Money value. Panics if currencies don't match
// or the result would underflow below zero.
func (m Money) Subtract(other Money) Money {
	diff, err := m.CheckedSub(other)
	if err != nil {
		panic(err.Error())
	}
	return diff
}

// CheckedAdd adds two Money values, returning an error instead of panicking
// on currency mismatch or uint64 wrap. Use for externally supplied amounts.
func (m Money) CheckedAdd(other Money) (Money, error) {
	if m.Currency != other.Currency {
		return Money{}, fmt.Errorf("money: currency mismatch: %s != %s", m.Currency, other.Currency)
	}
	if other.Amount > math.MaxUint64-m.Amount {
		return Money{}, fmt.Errorf("money: %d + %d overflows", m.Amount, other.Amount)
	}
	return Money{Amount: m.Amount + other.Amount, Currency: m.Currency}, nil
}

// CheckedSub subtracts another Money value, returning an error instead of
// panicking on currency mismatch or underflow.
func (m Money) CheckedSub(other Money) (Money, error) {
	if m.Currency != other.Currency {
		return Money{}, fmt.Errorf("money: currency mismatch: %s != %s", m.Currency, other.Currency)
	}
	if other.Amount > m.Amount {
		return Money{}, fmt.Errorf("money: %d - %d underflows", m.Amount, other.Amount)
	}
	return Money{Amount: m.Amount - other.Amount, Currency: m.Currency}, nil
}

// Multiply multiplies the Money by a quantity. Panics on wrap.
func (m Money) Multiply(qty uint64) Money {
	if qty != 0 && m.Amount > math.MaxUint64/qty {
		panic(fmt.Sprintf("money: %d * %d overflows", m.Amount, qty))
	}
	return Money{Amount: m.Amount * qty, Currency: m.Currency}
}

// Comparison methods

// IsZero returns true if the amount is zero.
func (m Money) IsZero() bool { return m.Amount == 0 }

// IsPositive returns true if the amount is greater than zero.
func (m Money) IsPositive() bool { return m.Amount > 0 }

// Equal returns true if both Money values are equal (same amount and currency).
func (m Money) Equal(other Money) bool {
	return m.Amount == other.Amount && m.Currency == other.Currency
}

// LessThan returns true if this Money is less than other. Panics if currencies don't match.
func (m Money) LessThan(other Money) bool {
	m.assertSameCurrency(other)
	return m.Amount < other.Amount
}

// Covers returns true if this Money is at least other (same-currency only,
// false on mismatch rather than panicking). Used for payment validation.
func (m Money) Covers(other Money) bool {
	if m.Currency != other.Currency {
		return false
	}
	return m.Amount >= other.Amount
}

// Formatting methods

// FormatMajor returns the major unit string without currency symbol.
// For "usd": "49.00" for USD(4900). For "sol": "1.000000000" for SOL(1e9).
func (m Money) FormatMajor() string {
	decimals := currencyDecimals(m.Currency)
	if decimals == 0 {
		return fmt.Sprintf("%d", m.Amount)
	}

	divisor := uint64(1)
	for i := 0; i < decimals; i++ {
		divisor *= 10
	}

	major := m.Amount / divisor
	minor := m.Amount % divisor

	format := fmt.Sprintf("%%d.%%0%dd", decimals)
	return fmt.Sprintf(format, major, minor)
}

// String returns a human-readable string with the currency attached.
// Examples: "$49.00", "1.000000000 SOL", "5.000000 USDC"
func (m Money) String() string {
	switch strings.ToLower(m.Currency) {
	case "usd":
		return "$" + m.FormatMajor()
	case "eur":
		return "€" + m.FormatMajor()
	default:
		return m.FormatMajor() + " " + strings.ToUpper(m.Currency)
	}
}

// MarshalJSON implements json.Marshaler.
func (m Money) MarshalJSON() ([]byte, error) {
	return json.Marshal(struct {
		Amount   uint64 `json:"amount"`
		Currency string `json:"currency"`
		Display  string `json:"display"`
	}{
		Amount:   m.Amount,
		Currency: m.Currency,
		Display:  m.String(),
	})
}

// Helper functions

// assertSameCurrency panics if currencies don't match.
func (m Money) assertSameCurrency(other Money) {
	if m.Currency != other.Currency {
		panic(fmt.Sprintf("money: currency mismatch: %s != %s", m.Currency, other.Currency))
	}
}

// currencyDecimals returns the number of decimal places for a currency.
func currencyDecimals(currency string) int {
	switch strings.ToLower(currency) {
	case "sol":
		return 9
	case "usdc", "usdt":
		return 6
	case "jpy", "krw":
		return 0
	default:
		return 2
	}
}

// Sum calculates the sum of multiple Money values. All must share a currency.
func Sum(values ...Money) Money {
	if len(values) == 0 {
		return Zero("usd")
	}

	result := values[0]
	for i := 1; i < len(values); i++ {
		result = result.Add(values[i])
	}
	return result
}
