// Package decimal implements the fixed-point arithmetic Tenor's type
// checker and rule engine use for Decimal and Money values: an unscaled
// big.Int paired with a scale, so equality and ordering are exact and
// independent of float64 rounding.
package decimal

import (
	"fmt"
	"math/big"
	"strings"
)

// Decimal is an exact fixed-point number: value = Unscaled / 10^Scale.
type Decimal struct {
	Unscaled *big.Int
	Scale    uint32
}

// Parse reads a decimal literal lexeme such as "1000.00" or "-3" into its
// exact unscaled/scale representation, preserving trailing zeros (and
// therefore the literal's declared scale).
func Parse(lexeme string) (Decimal, error) {
	neg := strings.HasPrefix(lexeme, "-")
	s := strings.TrimPrefix(lexeme, "-")
	intPart, fracPart, hasFrac := strings.Cut(s, ".")
	digits := intPart + fracPart
	if digits == "" {
		return Decimal{}, fmt.Errorf("decimal: empty literal %q", lexeme)
	}
	unscaled, ok := new(big.Int).SetString(digits, 10)
	if !ok {
		return Decimal{}, fmt.Errorf("decimal: malformed literal %q", lexeme)
	}
	if neg {
		unscaled.Neg(unscaled)
	}
	scale := uint32(0)
	if hasFrac {
		scale = uint32(len(fracPart))
	}
	return Decimal{Unscaled: unscaled, Scale: scale}, nil
}

// FromInt64 lifts an integer into a zero-scale Decimal.
func FromInt64(n int64) Decimal {
	return Decimal{Unscaled: big.NewInt(n), Scale: 0}
}

func (d Decimal) rescale(scale uint32) Decimal {
	if scale == d.Scale {
		return d
	}
	diff := int64(scale) - int64(d.Scale)
	factor := new(big.Int).Exp(big.NewInt(10), big.NewInt(abs64(diff)), nil)
	u := new(big.Int)
	if diff > 0 {
		u.Mul(d.Unscaled, factor)
	} else {
		u.Div(d.Unscaled, factor)
	}
	return Decimal{Unscaled: u, Scale: scale}
}

func abs64(n int64) int64 {
	if n < 0 {
		return -n
	}
	return n
}

func maxScale(a, b Decimal) uint32 {
	if a.Scale > b.Scale {
		return a.Scale
	}
	return b.Scale
}

// Cmp compares two Decimals at their common scale: -1, 0, or 1.
func Cmp(a, b Decimal) int {
	s := maxScale(a, b)
	return a.rescale(s).Unscaled.Cmp(b.rescale(s).Unscaled)
}

// Add returns a+b at the larger of the two operands' scales.
func Add(a, b Decimal) Decimal {
	s := maxScale(a, b)
	ra, rb := a.rescale(s), b.rescale(s)
	return Decimal{Unscaled: new(big.Int).Add(ra.Unscaled, rb.Unscaled), Scale: s}
}

// Mul returns a*b at scale = a.Scale + b.Scale, matching the elaborator's
// Decimal x Decimal -> Decimal(precision=sum, scale=sum) typing rule.
func Mul(a, b Decimal) Decimal {
	return Decimal{Unscaled: new(big.Int).Mul(a.Unscaled, b.Unscaled), Scale: a.Scale + b.Scale}
}

// FitsPrecisionScale reports whether d can be represented exactly by a
// Decimal(precision, scale) type without losing magnitude.
func FitsPrecisionScale(d Decimal, precision, scale uint32) bool {
	r := d.rescale(scale)
	digits := len(strings.TrimPrefix(r.Unscaled.String(), "-"))
	return uint32(digits) <= precision
}

// String renders the decimal in fixed-point form, e.g. "12.340".
func (d Decimal) String() string {
	s := d.rescale(d.Scale)
	neg := s.Unscaled.Sign() < 0
	digits := new(big.Int).Abs(s.Unscaled).String()
	for uint32(len(digits)) <= d.Scale {
		digits = "0" + digits
	}
	var out string
	if d.Scale == 0 {
		out = digits
	} else {
		cut := len(digits) - int(d.Scale)
		out = digits[:cut] + "." + digits[cut:]
	}
	if neg {
		out = "-" + out
	}
	return out
}

// Money pairs an exact amount with its ISO 4217 currency code.
type Money struct {
	Amount   Decimal
	Currency string
}
