package domain

import (
	"math"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseMoney(t *testing.T) {
	m, err := ParseMoney("262.5")
	require.NoError(t, err)
	assert.Equal(t, Money(26250), m)
	assert.Equal(t, "262.50", m.String())

	_, err = ParseMoney("262.505")
	assert.ErrorIs(t, err, ErrInvalidAmount)

	_, err = ParseMoney("two hundred")
	assert.ErrorIs(t, err, ErrInvalidAmount)

	_, err = ParseMoney("1e20")
	assert.ErrorIs(t, err, ErrInvalidAmount)
	_, err = ParseMoney("-1e20")
	assert.ErrorIs(t, err, ErrInvalidAmount)
}

func TestMoney_CheckedArithmetic(t *testing.T) {
	m, err := Money(100000).Times(3)
	require.NoError(t, err)
	assert.Equal(t, Money(300000), m)

	_, err = Money(100000).Times(100_000_000_000_000)
	assert.ErrorIs(t, err, ErrInvalidAmount)
	_, err = Money(100).Times(-1)
	assert.ErrorIs(t, err, ErrInvalidAmount)

	m, err = Money(0).Times(math.MaxInt)
	require.NoError(t, err)
	assert.Equal(t, Money(0), m)

	_, err = Money(math.MaxInt64).Plus(1)
	assert.ErrorIs(t, err, ErrInvalidAmount)
	m, err = Money(40).Plus(2)
	require.NoError(t, err)
	assert.Equal(t, Money(42), m)
}

func TestTaxPolicy_RoundsHalfUp(t *testing.T) {
	p := TaxPolicy{Rate: DefaultTaxRate}
	assert.Equal(t, Money(1250), p.Tax(25000))
	assert.Equal(t, Money(1), p.Tax(10), "0.5 paise rounds up")
	assert.Equal(t, Money(0), p.Tax(9), "0.45 paise rounds down")
	assert.Equal(t, Money(0), p.Tax(0))
}

func TestTaxPolicy_Validate(t *testing.T) {
	assert.NoError(t, TaxPolicy{Rate: decimal.Zero}.Validate())
	assert.ErrorIs(t, TaxPolicy{Rate: decimal.NewFromInt(1)}.Validate(), ErrValidation)
	assert.ErrorIs(t, TaxPolicy{Rate: decimal.NewFromInt(-1)}.Validate(), ErrValidation)

	r, err := ParseTaxRate("0.18")
	require.NoError(t, err)
	assert.True(t, r.Equal(decimal.RequireFromString("0.18")))
	_, err = ParseTaxRate("lots")
	assert.ErrorIs(t, err, ErrValidation)
}
