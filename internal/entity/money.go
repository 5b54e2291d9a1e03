package domain

import (
	"fmt"
	"math"

	"github.com/shopspring/decimal"
)

// MinorUnitScale is the number of decimal places between display units and
// the ledger's smallest unit (rupees -> paise).
const MinorUnitScale = 2

// Money is an amount in the smallest currency unit. Arithmetic stays in
// integers; decimals only appear when parsing or formatting at the boundary.
type Money int64

// ParseMoney reads a display amount such as "262.50". More than two
// fractional digits is rejected rather than rounded.
func ParseMoney(s string) (Money, error) {
	d, err := decimal.NewFromString(s)
	if err != nil {
		return 0, fmt.Errorf("%w: %q is not a number", ErrInvalidAmount, s)
	}
	return MoneyFromDecimal(d)
}

var (
	minMinor = decimal.NewFromInt(math.MinInt64)
	maxMinor = decimal.NewFromInt(math.MaxInt64)
)

func MoneyFromDecimal(d decimal.Decimal) (Money, error) {
	if !d.Equal(d.Truncate(MinorUnitScale)) {
		return 0, fmt.Errorf("%w: %s has more than %d decimal places", ErrInvalidAmount, d.String(), MinorUnitScale)
	}
	minor := d.Shift(MinorUnitScale)
	if minor.LessThan(minMinor) || minor.GreaterThan(maxMinor) {
		return 0, fmt.Errorf("%w: %s is out of range", ErrInvalidAmount, d.String())
	}
	return Money(minor.IntPart()), nil
}

func (m Money) Decimal() decimal.Decimal { return decimal.New(int64(m), -MinorUnitScale) }

func (m Money) String() string { return m.Decimal().StringFixed(MinorUnitScale) }

// Times multiplies a non-negative amount by a non-negative quantity and
// fails instead of wrapping.
func (m Money) Times(qty int) (Money, error) {
	if m < 0 || qty < 0 {
		return 0, fmt.Errorf("%w: %s x %d", ErrInvalidAmount, m, qty)
	}
	if m != 0 && int64(qty) > math.MaxInt64/int64(m) {
		return 0, fmt.Errorf("%w: %s x %d overflows", ErrInvalidAmount, m, qty)
	}
	return m * Money(qty), nil
}

// Plus adds two non-negative amounts and fails instead of wrapping.
func (m Money) Plus(o Money) (Money, error) {
	if m < 0 || o < 0 {
		return 0, fmt.Errorf("%w: %s + %s", ErrInvalidAmount, m, o)
	}
	if m > math.MaxInt64-o {
		return 0, fmt.Errorf("%w: %s + %s overflows", ErrInvalidAmount, m, o)
	}
	return m + o, nil
}

// ApplyRate returns m*rate rounded to the minor unit, half-up.
func (m Money) ApplyRate(rate decimal.Decimal) Money {
	return Money(decimal.NewFromInt(int64(m)).Mul(rate).Round(0).IntPart())
}

// TaxPolicy is the single flat rate applied to a cart subtotal.
type TaxPolicy struct {
	Rate decimal.Decimal
}

// DefaultTaxRate is 5%.
var DefaultTaxRate = decimal.RequireFromString("0.05")

func (p TaxPolicy) Tax(subtotal Money) Money {
	if subtotal <= 0 {
		return 0
	}
	return subtotal.ApplyRate(p.Rate)
}

func (p TaxPolicy) Validate() error {
	if p.Rate.IsNegative() || p.Rate.GreaterThanOrEqual(decimal.NewFromInt(1)) {
		return fmt.Errorf("%w: tax rate %s out of range [0,1)", ErrValidation, p.Rate)
	}
	return nil
}

// ParseTaxRate reads a fractional rate such as "0.05".
func ParseTaxRate(s string) (decimal.Decimal, error) {
	r, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Decimal{}, fmt.Errorf("%w: tax rate %q is not a number", ErrValidation, s)
	}
	if err := (TaxPolicy{Rate: r}).Validate(); err != nil {
		return decimal.Decimal{}, err
	}
	return r, nil
}
