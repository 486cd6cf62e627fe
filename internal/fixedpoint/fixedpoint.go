// Package fixedpoint holds the arbitrary-precision decimal helpers used by
// every money computation. Amounts cross into integer minor units only at
// contract or venue boundaries, and always by truncation toward zero.
package fixedpoint

import (
	"errors"
	"math/big"

	"github.com/shopspring/decimal"
)

// DivisionPrecision is the number of fractional digits kept by Div.
// Results are deterministic for identical inputs.
const DivisionPrecision int32 = 36

// ErrDivisionByZero is returned by Quo when the divisor is zero.
var ErrDivisionByZero = errors.New("fixedpoint: division by zero")

var (
	One     = decimal.NewFromInt(1)
	Hundred = decimal.NewFromInt(100)
	// BasisPoints is the denominator of rates expressed in 1/10000.
	BasisPoints = decimal.NewFromInt(10000)
)

// Div returns a / b rounded half away from zero to DivisionPrecision
// digits. It panics when b is zero; use Quo where b is untrusted.
func Div(a, b decimal.Decimal) decimal.Decimal {
	return a.DivRound(b, DivisionPrecision)
}

// Quo is Div with an error instead of a panic on a zero divisor.
func Quo(a, b decimal.Decimal) (decimal.Decimal, error) {
	if b.IsZero() {
		return decimal.Zero, ErrDivisionByZero
	}
	return Div(a, b), nil
}

// Pow10 returns 10^exp exactly. Negative exponents are allowed.
func Pow10(exp int32) decimal.Decimal {
	return decimal.New(1, exp)
}

// FromMinorUnits converts an integer amount in minor units into human units.
func FromMinorUnits(raw *big.Int, decimals int32) decimal.Decimal {
	if raw == nil {
		return decimal.Zero
	}
	return decimal.NewFromBigInt(raw, -decimals)
}

// ToMinorUnits converts human units into integer minor units, truncating
// toward zero.
func ToMinorUnits(d decimal.Decimal, decimals int32) *big.Int {
	return d.Shift(decimals).Truncate(0).BigInt()
}

// Truncate drops every fractional digit of d, toward zero.
func Truncate(d decimal.Decimal) decimal.Decimal {
	return d.Truncate(0)
}

// FloorDiv returns floor(a / b) for b > 0.
func FloorDiv(a, b decimal.Decimal) decimal.Decimal {
	if b.IsZero() {
		panic(ErrDivisionByZero)
	}
	q := a.DivRound(b, DivisionPrecision)
	f := q.Floor()
	// DivRound may round a value just below an integer up onto it.
	if f.Mul(b).GreaterThan(a) {
		f = f.Sub(One)
	}
	return f
}

// Clamp bounds d to [lo, hi].
func Clamp(d, lo, hi decimal.Decimal) decimal.Decimal {
	if d.LessThan(lo) {
		return lo
	}
	if d.GreaterThan(hi) {
		return hi
	}
	return d
}

// BigToDecimal wraps an integer without scaling.
func BigToDecimal(v *big.Int) decimal.Decimal {
	if v == nil {
		return decimal.Zero
	}
	return decimal.NewFromBigInt(v, 0)
}
