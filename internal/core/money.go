// Package core provides money parsing and handling utilities.
//
// Amounts are fixed-point with two fractional digits and are kept as integer
// cents everywhere except at the text boundary.
package core

import (
	"encoding/json"
	"strings"

	"github.com/shopspring/decimal"
)

// MaxAmountCents is the exclusive upper bound of an amount: 12 digits total,
// two of them fractional.
const MaxAmountCents int64 = 1_000_000_000_000

type Money struct {
	Cents int64
}

// ParseMoney converts a decimal string to Money.
//
// It accepts both dot (12.34) and comma (12,34) decimal separators. Values
// with more than two significant fractional digits are rejected rather than
// rounded, as are zero, negative and oversized amounts.
//
// Examples:
//
//	ParseMoney("12.34")  -> 1234 cents
//	ParseMoney("12,5")   -> 1250 cents
//	ParseMoney("12.340") -> 1234 cents
//	ParseMoney("12.345") -> ErrInvalidAmount
func ParseMoney(s string) (Money, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return Money{}, ErrInvalidAmount
	}
	s = strings.ReplaceAll(s, ",", ".")
	d, err := decimal.NewFromString(s)
	if err != nil {
		return Money{}, ErrInvalidAmount
	}
	return MoneyFromDecimal(d)
}

// MoneyFromDecimal validates d as a transaction amount.
func MoneyFromDecimal(d decimal.Decimal) (Money, error) {
	if !d.IsPositive() {
		return Money{}, ErrInvalidAmount
	}
	if !d.Equal(d.Truncate(2)) {
		return Money{}, ErrInvalidAmount
	}
	cents := d.Shift(2)
	if cents.GreaterThanOrEqual(decimal.NewFromInt(MaxAmountCents)) {
		return Money{}, ErrInvalidAmount
	}
	return Money{Cents: cents.IntPart()}, nil
}

// Validate reports whether m is a storable transaction amount.
func (m Money) Validate() error {
	if m.Cents <= 0 || m.Cents >= MaxAmountCents {
		return ErrInvalidAmount
	}
	return nil
}

func (m Money) Decimal() decimal.Decimal {
	return decimal.New(m.Cents, -2)
}

// String renders the amount with exactly two fractional digits.
func (m Money) String() string {
	return m.Decimal().StringFixed(2)
}

func (m Money) Sub(o Money) Money { return Money{Cents: m.Cents - o.Cents} }

// MarshalJSON emits the amount as a quoted decimal string.
func (m Money) MarshalJSON() ([]byte, error) {
	return json.Marshal(m.String())
}

// UnmarshalJSON accepts a quoted decimal string or a bare JSON number.
func (m *Money) UnmarshalJSON(data []byte) error {
	raw := strings.TrimSpace(string(data))
	if raw == "null" {
		return ErrInvalidAmount
	}
	if strings.HasPrefix(raw, `"`) {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return ErrInvalidAmount
		}
		raw = s
	}
	parsed, err := ParseMoney(raw)
	if err != nil {
		return err
	}
	*m = parsed
	return nil
}
