package quant

import (
	"errors"
	"fmt"
	"math"
	"math/big"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// ErrNotFinite is returned for NaN or infinite inputs.
var ErrNotFinite = errors.New("value is not a finite number")

// Bounds for decimals accepted from outside the engine. A decimal's exponent is
// unbounded, and comparing 1e-300000000 with 1 expands it to every digit.
const (
	MinExponent = -18
	MaxExponent = 18
	MaxDigits   = 38
)

var maxCoefficient = new(big.Int).Exp(big.NewInt(10), big.NewInt(MaxDigits), nil)

// FromFloat converts a float64 from an external boundary (UI, JSON feed) to a decimal.
// NaN and ±Inf are rejected instead of silently producing garbage.
func FromFloat(f float64) (decimal.Decimal, error) {
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return decimal.Zero, ErrNotFinite
	}
	return decimal.NewFromFloat(f), nil
}

// ParseDecimal parses a numeric string (e.g. "92000.50") without going through float64.
// Empty strings and the literal "null" are rejected.
func ParseDecimal(s string) (decimal.Decimal, error) {
	s = strings.TrimSpace(s)
	if s == "" || s == "null" {
		return decimal.Zero, fmt.Errorf("empty numeric value")
	}
	if strings.EqualFold(s, "nan") || strings.Contains(strings.ToLower(s), "inf") {
		return decimal.Zero, ErrNotFinite
	}
	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero, fmt.Errorf("parse %q: %w", s, err)
	}
	return d, nil
}

// IsPositive reports whether d is strictly greater than zero.
func IsPositive(d decimal.Decimal) bool {
	return d.Sign() > 0
}

// InRange reports whether d can take part in ledger arithmetic: its exponent lies
// within [MinExponent, MaxExponent] and its coefficient has at most MaxDigits digits.
// Zero is checked too, since 0e-300000000 still rescales its operands.
func InRange(d decimal.Decimal) bool {
	if exp := d.Exponent(); exp < MinExponent || exp > MaxExponent {
		return false
	}
	return d.Coefficient().CmpAbs(maxCoefficient) < 0
}

// Notional returns price × quantity.
func Notional(price, qty decimal.Decimal) decimal.Decimal {
	return price.Mul(qty)
}

// ParseMillis converts an exchange timestamp in Unix milliseconds to time.Time.
func ParseMillis(ms int64) time.Time {
	if ms <= 0 {
		return time.Time{}
	}
	return time.UnixMilli(ms)
}
