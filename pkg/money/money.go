// Package money holds the fixed-point arithmetic shared by the costing engines.
// Monetary values are int64 minor units; per-base-unit costs are scaled by
// CostScale. Intermediate products are computed as exact decimals built from
// the shortest representation of each float factor and rounded half away
// from zero.
package money

import (
	"errors"
	"fmt"
	"math"
	"regexp"
	"strings"

	"github.com/shopspring/decimal"
)

// CostScale is the fixed-point factor applied to cost_per_base_x10000 values.
const CostScale = 10000

// MaxQuantityFractionDigits bounds the precision accepted for purchase quantities.
const MaxQuantityFractionDigits = 6

var (
	ErrEmpty         = errors.New("value is empty")
	ErrNotNumeric    = errors.New("value is not numeric")
	ErrTooPrecise    = errors.New("value has too many fractional digits")
	ErrOutOfRange    = errors.New("value is out of range")
	ErrZeroDivisor   = errors.New("divisor must be positive")
	amountPattern    = regexp.MustCompile(`^([+-])?(\d*)(?:\.(\d*))?$`)
	groupedPattern   = regexp.MustCompile(`^\d{1,3}(?:,\d{3})+(?:\.\d*)?$`)
	costScaleDecimal = decimal.NewFromInt(CostScale)
	oneDecimal       = decimal.NewFromInt(1)
	maxInt64Decimal  = decimal.NewFromInt(math.MaxInt64)
	minInt64Decimal  = decimal.NewFromInt(math.MinInt64)
)

// maxMajorDigits keeps major*100 comfortably inside int64.
const maxMajorDigits = 15

// Round rounds d half away from zero and returns the integer part.
func Round(d decimal.Decimal) int64 {
	return d.Round(0).IntPart()
}

// RoundChecked is Round that fails with ErrOutOfRange instead of wrapping
// when the result does not fit in int64.
func RoundChecked(d decimal.Decimal) (int64, error) {
	return fitInt64(d.Round(0))
}

// MulInt returns a*b, or ErrOutOfRange when the product overflows int64.
func MulInt(a, b int64) (int64, error) {
	return fitInt64(decimal.NewFromInt(a).Mul(decimal.NewFromInt(b)))
}

// AddInt returns a+b, or ErrOutOfRange when the sum overflows int64.
func AddInt(a, b int64) (int64, error) {
	return fitInt64(decimal.NewFromInt(a).Add(decimal.NewFromInt(b)))
}

// SubInt returns a-b, or ErrOutOfRange when the difference overflows int64.
func SubInt(a, b int64) (int64, error) {
	return fitInt64(decimal.NewFromInt(a).Sub(decimal.NewFromInt(b)))
}

func fitInt64(d decimal.Decimal) (int64, error) {
	if d.GreaterThan(maxInt64Decimal) || d.LessThan(minInt64Decimal) {
		return 0, fmt.Errorf("%w: %s", ErrOutOfRange, d.String())
	}
	return d.IntPart(), nil
}

// Factor converts a float factor to its exact shortest decimal form.
func Factor(f float64) decimal.Decimal {
	return decimal.NewFromFloat(f)
}

// MulRound returns round(base * factors...).
func MulRound(base int64, factors ...float64) int64 {
	acc := decimal.NewFromInt(base)
	for _, f := range factors {
		acc = acc.Mul(Factor(f))
	}
	return Round(acc)
}

// OnePlus returns 1 + f as an exact decimal.
func OnePlus(f float64) float64 {
	v, _ := oneDecimal.Add(Factor(f)).Float64()
	return v
}

// ToBase returns quantity * factor as an exact decimal.
func ToBase(quantity, factor float64) decimal.Decimal {
	return Factor(quantity).Mul(Factor(factor))
}

// LineCost returns round(qtyInBase * costX10000 / CostScale).
func LineCost(qtyInBase decimal.Decimal, costX10000 int64) int64 {
	return Round(qtyInBase.Mul(decimal.NewFromInt(costX10000)).Div(costScaleDecimal))
}

// DivRound returns round(numerator / denominator).
func DivRound(numerator, denominator int64) (int64, error) {
	if denominator <= 0 {
		return 0, ErrZeroDivisor
	}
	return Round(decimal.NewFromInt(numerator).Div(decimal.NewFromInt(denominator))), nil
}

// CostPerBaseX10000 returns round(totalMinor * CostScale / baseQty).
func CostPerBaseX10000(totalMinor int64, baseQty decimal.Decimal) (int64, error) {
	if !baseQty.IsPositive() {
		return 0, ErrZeroDivisor
	}
	return Round(decimal.NewFromInt(totalMinor).Mul(costScaleDecimal).Div(baseQty)), nil
}

// Ratio returns numerator / denominator, or nil when the denominator is not positive.
func Ratio(numerator, denominator int64) *float64 {
	if denominator <= 0 {
		return nil
	}
	v, _ := decimal.NewFromInt(numerator).Div(decimal.NewFromInt(denominator)).Float64()
	return &v
}

// ParseQuantity parses a plain decimal with at most maxFraction fractional digits.
func ParseQuantity(raw string, maxFraction int) (decimal.Decimal, error) {
	cleaned := cleanNumber(raw)
	if cleaned == "" {
		return decimal.Zero, ErrEmpty
	}
	m := amountPattern.FindStringSubmatch(cleaned)
	if m == nil || (m[2] == "" && m[3] == "") {
		return decimal.Zero, fmt.Errorf("%w: %q", ErrNotNumeric, raw)
	}
	if len(m[3]) > maxFraction {
		return decimal.Zero, fmt.Errorf("%w: %q", ErrTooPrecise, raw)
	}
	if len(m[2]) > maxMajorDigits {
		return decimal.Zero, fmt.Errorf("%w: %q", ErrOutOfRange, raw)
	}
	d, err := decimal.NewFromString(cleaned)
	if err != nil {
		return decimal.Zero, fmt.Errorf("%w: %q", ErrNotNumeric, raw)
	}
	return d, nil
}

// ParseMinor converts a currency string into minor units as major*100 + minor.
// Digits beyond the second fractional place are truncated, not rounded, and the
// sign applies to the whole value.
func ParseMinor(raw string) (int64, error) {
	cleaned := cleanNumber(raw)
	if cleaned == "" {
		return 0, ErrEmpty
	}
	m := amountPattern.FindStringSubmatch(cleaned)
	if m == nil || (m[2] == "" && m[3] == "") {
		return 0, fmt.Errorf("%w: %q", ErrNotNumeric, raw)
	}
	if len(m[2]) > maxMajorDigits {
		return 0, fmt.Errorf("%w: %q", ErrOutOfRange, raw)
	}

	var major int64
	for _, r := range m[2] {
		major = major*10 + int64(r-'0')
	}

	frac := m[3]
	if len(frac) > 2 {
		frac = frac[:2]
	}
	for len(frac) < 2 {
		frac += "0"
	}
	minor := int64(frac[0]-'0')*10 + int64(frac[1]-'0')

	value := major*100 + minor
	if m[1] == "-" {
		value = -value
	}
	return value, nil
}

// cleanNumber strips whitespace, a leading currency symbol and thousands
// separators. Commas that do not group the integer part in threes (a decimal
// comma such as "1,5") are left in place so the value fails to parse.
func cleanNumber(raw string) string {
	s := strings.ReplaceAll(strings.TrimSpace(raw), " ", "")
	sign := ""
	if strings.HasPrefix(s, "-") || strings.HasPrefix(s, "+") {
		sign, s = s[:1], s[1:]
	}
	s = strings.TrimLeft(s, "$€£")
	if strings.Contains(s, ",") && groupedPattern.MatchString(s) {
		s = strings.ReplaceAll(s, ",", "")
	}
	return sign + s
}
