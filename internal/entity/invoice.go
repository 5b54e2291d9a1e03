package domain

import (
	"fmt"
	"slices"
	"time"

	"github.com/shopspring/decimal"
)

type PaymentStatus string

const (
	PaymentStatusUnpaid  PaymentStatus = "unpaid"
	PaymentStatusPartial PaymentStatus = "partial"
	PaymentStatusPaid    PaymentStatus = "paid"
)

type InvoiceStatus string

const (
	InvoiceDraft     InvoiceStatus = "draft"
	InvoiceSent      InvoiceStatus = "sent"
	InvoicePaid      InvoiceStatus = "paid"
	InvoiceCancelled InvoiceStatus = "cancelled"
)

// TaxMode selects how the checkout tax is broken down on the invoice.
type TaxMode string

const (
	TaxCombined TaxMode = "combined"
	TaxCGSTSGST TaxMode = "cgst_sgst"
	TaxIGST     TaxMode = "igst"
)

func ParseTaxMode(s string) (TaxMode, error) {
	switch m := TaxMode(s); m {
	case TaxCombined, TaxCGSTSGST, TaxIGST:
		return m, nil
	case "":
		return TaxCombined, nil
	}
	return "", fmt.Errorf("%w: unknown tax mode %q", ErrValidation, s)
}

type TaxLine struct {
	Name   string
	Rate   decimal.Decimal
	Amount Money
}

// BuildTaxLines splits an already computed tax amount into invoice lines.
// The lines always sum to tax: for the split mode CGST takes the half-up
// share and SGST the remainder.
func BuildTaxLines(mode TaxMode, rate decimal.Decimal, tax Money) []TaxLine {
	switch mode {
	case TaxCGSTSGST:
		half := rate.Div(decimal.NewFromInt(2))
		cgst := tax.ApplyRate(decimal.New(5, -1))
		return []TaxLine{
			{Name: "CGST", Rate: half, Amount: cgst},
			{Name: "SGST", Rate: half, Amount: tax - cgst},
		}
	case TaxIGST:
		return []TaxLine{{Name: "IGST", Rate: rate, Amount: tax}}
	default:
		return []TaxLine{{Name: "GST", Rate: rate, Amount: tax}}
	}
}

func DerivePaymentStatus(received, balance Money) PaymentStatus {
	switch {
	case received == 0:
		return PaymentStatusUnpaid
	case balance == 0:
		return PaymentStatusPaid
	default:
		return PaymentStatusPartial
	}
}

// Invoice is the billing snapshot of an order. Items, customer and totals are
// frozen at generation; only the received/balance mirror moves afterwards.
type Invoice struct {
	Number         string
	OrderNumber    string
	Items          []OrderItem
	Customer       Customer
	Subtotal       Money
	TaxLines       []TaxLine
	TaxAmount      Money
	TotalAmount    Money
	ReceivedAmount Money
	Balance        Money
	PaymentStatus  PaymentStatus
	Status         InvoiceStatus
	IssuedAt       time.Time
	UpdatedAt      time.Time
}

func NewInvoice(number string, o *Order, mode TaxMode, now time.Time) (*Invoice, error) {
	if err := o.CanGenerateInvoice(); err != nil {
		return nil, err
	}
	inv := &Invoice{
		Number:      number,
		OrderNumber: o.Number,
		Items:       slices.Clone(o.Items),
		Customer:    o.Customer,
		Subtotal:    o.Subtotal,
		TaxLines:    BuildTaxLines(mode, o.TaxRate, o.TaxAmount),
		TaxAmount:   o.TaxAmount,
		TotalAmount: o.TotalAmount,
		Status:      InvoiceDraft,
		IssuedAt:    now,
	}
	inv.Resync(o, now)
	return inv, nil
}

// Resync mirrors the order's received amount and balance.
func (inv *Invoice) Resync(o *Order, now time.Time) {
	inv.ReceivedAmount = o.ReceivedAmount
	inv.Balance = o.RemainingAmount
	inv.PaymentStatus = DerivePaymentStatus(inv.ReceivedAmount, inv.Balance)
	if inv.PaymentStatus == PaymentStatusPaid && inv.Status != InvoiceCancelled {
		inv.Status = InvoicePaid
	}
	inv.UpdatedAt = now
}

func (inv *Invoice) MarkSent(now time.Time) error {
	if inv.Status != InvoiceDraft {
		return fmt.Errorf("%w: invoice %s is %s, only drafts can be sent", ErrPrecondition, inv.Number, inv.Status)
	}
	inv.Status = InvoiceSent
	inv.UpdatedAt = now
	return nil
}

func (inv *Invoice) Cancel(now time.Time) {
	inv.Status = InvoiceCancelled
	inv.UpdatedAt = now
}

// CheckConsistency verifies the invoice against its order: same total, same
// balance, and tax lines that add up.
func (inv *Invoice) CheckConsistency(o *Order) error {
	if inv.TotalAmount != o.TotalAmount {
		return fmt.Errorf("%w: invoice %s total %s != order total %s", ErrPrecondition, inv.Number, inv.TotalAmount, o.TotalAmount)
	}
	if inv.Balance != o.RemainingAmount || inv.ReceivedAmount != o.ReceivedAmount {
		return fmt.Errorf("%w: invoice %s balance %s != order remaining %s", ErrPrecondition, inv.Number, inv.Balance, o.RemainingAmount)
	}
	var tax Money
	for _, l := range inv.TaxLines {
		tax += l.Amount
	}
	if tax != inv.TaxAmount || inv.Subtotal+inv.TaxAmount != inv.TotalAmount {
		return fmt.Errorf("%w: invoice %s tax lines do not add up", ErrPrecondition, inv.Number)
	}
	return nil
}

func (inv *Invoice) Clone() *Invoice {
	cp := *inv
	cp.Items = slices.Clone(inv.Items)
	cp.TaxLines = slices.Clone(inv.TaxLines)
	return &cp
}
