package domain

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func confirmedOrder(t *testing.T) *Order {
	t.Helper()
	o := newOrder(t, 0)
	require.NoError(t, o.Confirm(t0))
	return o
}

func TestNewInvoice_MirrorsOrder(t *testing.T) {
	o := confirmedOrder(t)
	inv, err := NewInvoice("INV-000001", o, TaxCombined, t0)
	require.NoError(t, err)
	assert.Equal(t, o.TotalAmount, inv.TotalAmount)
	assert.Equal(t, o.RemainingAmount, inv.Balance)
	assert.Equal(t, PaymentStatusUnpaid, inv.PaymentStatus)
	assert.Equal(t, InvoiceDraft, inv.Status)
	assert.NoError(t, inv.CheckConsistency(o))
}

func TestNewInvoice_RequiresConfirmed(t *testing.T) {
	o := newOrder(t, 0)
	_, err := NewInvoice("INV-000001", o, TaxCombined, t0)
	assert.ErrorIs(t, err, ErrPrecondition)
}

func TestInvoice_ResyncTracksPayments(t *testing.T) {
	o := confirmedOrder(t)
	inv, err := NewInvoice("INV-000001", o, TaxCombined, t0)
	require.NoError(t, err)

	o.ApplyPayment(10000, t0)
	assert.Error(t, inv.CheckConsistency(o), "stale until resynced")
	inv.Resync(o, t0)
	assert.Equal(t, PaymentStatusPartial, inv.PaymentStatus)
	assert.NoError(t, inv.CheckConsistency(o))

	o.ApplyPayment(o.RemainingAmount, t0)
	inv.Resync(o, t0)
	assert.Equal(t, PaymentStatusPaid, inv.PaymentStatus)
	assert.Equal(t, InvoicePaid, inv.Status)
	assert.Equal(t, Money(0), inv.Balance)
}

func TestInvoice_MarkSent(t *testing.T) {
	inv, err := NewInvoice("INV-000001", confirmedOrder(t), TaxCombined, t0)
	require.NoError(t, err)
	require.NoError(t, inv.MarkSent(t0))
	assert.Equal(t, InvoiceSent, inv.Status)
	assert.ErrorIs(t, inv.MarkSent(t0), ErrPrecondition)
}

func TestBuildTaxLines(t *testing.T) {
	rate := DefaultTaxRate

	lines := BuildTaxLines(TaxCGSTSGST, rate, 1250)
	require.Len(t, lines, 2)
	assert.Equal(t, Money(625), lines[0].Amount)
	assert.Equal(t, Money(625), lines[1].Amount)
	assert.True(t, lines[0].Rate.Equal(decimal.RequireFromString("0.025")))

	// odd paise: CGST takes the rounded half, SGST the rest
	lines = BuildTaxLines(TaxCGSTSGST, rate, 1251)
	assert.Equal(t, Money(626), lines[0].Amount)
	assert.Equal(t, Money(625), lines[1].Amount)

	lines = BuildTaxLines(TaxIGST, rate, 1251)
	require.Len(t, lines, 1)
	assert.Equal(t, "IGST", lines[0].Name)

	lines = BuildTaxLines(TaxCombined, rate, 1251)
	assert.Equal(t, "GST", lines[0].Name)
}

func TestDerivePaymentStatus(t *testing.T) {
	assert.Equal(t, PaymentStatusUnpaid, DerivePaymentStatus(0, 100))
	assert.Equal(t, PaymentStatusPartial, DerivePaymentStatus(50, 50))
	assert.Equal(t, PaymentStatusPaid, DerivePaymentStatus(100, 0))
}

func TestParseTaxMode(t *testing.T) {
	m, err := ParseTaxMode("")
	require.NoError(t, err)
	assert.Equal(t, TaxCombined, m)
	_, err = ParseTaxMode("vat")
	assert.ErrorIs(t, err, ErrValidation)
}
