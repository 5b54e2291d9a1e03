package domain

import (
	"fmt"
	"slices"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

type Status string

const (
	StatusPending   Status = "pending"
	StatusConfirmed Status = "confirmed"
	StatusPreparing Status = "preparing"
	StatusReady     Status = "ready"
	StatusDelivered Status = "delivered"
	StatusCancelled Status = "cancelled"
)

// fulfilment is the forward-only sequence driven by Advance.
var fulfilment = []Status{StatusConfirmed, StatusPreparing, StatusReady, StatusDelivered}

func ParseStatus(s string) (Status, error) {
	st := Status(strings.ToLower(strings.TrimSpace(s)))
	switch st {
	case StatusPending, StatusConfirmed, StatusPreparing, StatusReady, StatusDelivered, StatusCancelled:
		return st, nil
	}
	return "", fmt.Errorf("%w: unknown order status %q", ErrValidation, s)
}

func (s Status) Terminal() bool { return s == StatusDelivered || s == StatusCancelled }

type Customer struct {
	Name    string `json:"name"`
	Phone   string `json:"phone"`
	Address string `json:"address"`
}

// OrderItem is a point-in-time copy of a catalog line.
type OrderItem struct {
	ItemID    string `json:"itemId"`
	Name      string `json:"name"`
	UnitPrice Money  `json:"unitPrice"`
	Quantity  int    `json:"quantity"`
	Subtotal  Money  `json:"subtotal"`
}

func NewOrderItem(itemID, name string, price Money, qty int) (OrderItem, error) {
	sub, err := price.Times(qty)
	if err != nil {
		return OrderItem{}, fmt.Errorf("item %s: %w", itemID, err)
	}
	return OrderItem{ItemID: itemID, Name: name, UnitPrice: price, Quantity: qty, Subtotal: sub}, nil
}

type Order struct {
	Number          string
	Items           []OrderItem
	Subtotal        Money
	TaxRate         decimal.Decimal
	TaxAmount       Money
	TotalAmount     Money
	AdvancePayment  Money
	ReceivedAmount  Money
	RemainingAmount Money
	// OverpaidAmount holds whatever arrived beyond TotalAmount; ReceivedAmount
	// is capped so RemainingAmount never goes negative.
	OverpaidAmount   Money
	Status           Status
	ScheduledFor     time.Time
	Customer         Customer
	Instructions     string
	DenyReason       string
	InvoiceGenerated bool
	InvoiceNumber    string
	Version          int64
	CreatedAt        time.Time
	UpdatedAt        time.Time
}

type NewOrderParams struct {
	Number       string
	Snapshot     CheckoutSnapshot
	Customer     Customer
	ScheduledFor time.Time
	Instructions string
	Advance      Money
	Now          time.Time
}

// NewOrder admits a checkout snapshot as a pending order. A non-zero advance
// must leave at least one minor unit outstanding.
func NewOrder(p NewOrderParams) (*Order, error) {
	if p.Number == "" {
		return nil, fmt.Errorf("%w: order number required", ErrValidation)
	}
	if len(p.Snapshot.Items) == 0 {
		return nil, ErrEmptyCart
	}
	if strings.TrimSpace(p.Customer.Phone) == "" {
		return nil, fmt.Errorf("%w: customer phone required", ErrValidation)
	}
	o := &Order{
		Number:       p.Number,
		Items:        slices.Clone(p.Snapshot.Items),
		Subtotal:     p.Snapshot.Subtotal,
		TaxRate:      p.Snapshot.Tax.Rate,
		TaxAmount:    p.Snapshot.TaxAmount,
		TotalAmount:  p.Snapshot.Total,
		Status:       StatusPending,
		ScheduledFor: p.ScheduledFor,
		Customer:     p.Customer,
		Instructions: strings.TrimSpace(p.Instructions),
		CreatedAt:    p.Now,
		UpdatedAt:    p.Now,
	}
	if p.Advance != 0 {
		if err := CheckAdvance(p.Advance, o.TotalAmount); err != nil {
			return nil, err
		}
	}
	o.AdvancePayment = p.Advance
	o.ReceivedAmount = p.Advance
	o.RemainingAmount = o.TotalAmount - o.ReceivedAmount
	if err := o.CheckInvariants(); err != nil {
		return nil, err
	}
	return o, nil
}

// CheckAdvance enforces 1 <= amount <= outstanding-1.
func CheckAdvance(amount, outstanding Money) error {
	if amount < 1 || amount > outstanding-1 {
		return fmt.Errorf("%w: advance %s must be between 0.01 and %s", ErrInvalidAmount, amount, outstanding-1)
	}
	return nil
}

func (o *Order) Confirm(now time.Time) error {
	if o.Status != StatusPending {
		return o.rejectTransition(StatusConfirmed)
	}
	o.setStatus(StatusConfirmed, now)
	return nil
}

func (o *Order) Deny(reason string, now time.Time) error {
	if o.Status != StatusPending {
		return o.rejectTransition(StatusCancelled)
	}
	reason = strings.TrimSpace(reason)
	if reason == "" {
		return fmt.Errorf("%w: deny reason required", ErrValidation)
	}
	o.DenyReason = reason
	o.setStatus(StatusCancelled, now)
	return nil
}

// Cancel is the admin cancel for orders already in fulfilment.
func (o *Order) Cancel(reason string, now time.Time) error {
	switch o.Status {
	case StatusConfirmed, StatusPreparing, StatusReady:
	default:
		return o.rejectTransition(StatusCancelled)
	}
	o.DenyReason = strings.TrimSpace(reason)
	o.setStatus(StatusCancelled, now)
	return nil
}

// Advance moves strictly forward through confirmed → preparing → ready → delivered.
func (o *Order) Advance(to Status, now time.Time) error {
	from := slices.Index(fulfilment, o.Status)
	target := slices.Index(fulfilment, to)
	if from < 0 || target < 0 || target <= from {
		return o.rejectTransition(to)
	}
	o.setStatus(to, now)
	return nil
}

// CanDelete allows deletion of terminal orders only, and never while an
// invoice is still attached.
func (o *Order) CanDelete() error {
	if !o.Status.Terminal() {
		return fmt.Errorf("%w: order %s is %s, only delivered or cancelled orders can be deleted", ErrPrecondition, o.Number, o.Status)
	}
	if o.InvoiceNumber != "" {
		return fmt.Errorf("%w: order %s still has invoice %s", ErrPrecondition, o.Number, o.InvoiceNumber)
	}
	return nil
}

// CanGenerateInvoice reports why an invoice cannot be generated, if it cannot.
func (o *Order) CanGenerateInvoice() error {
	if o.InvoiceGenerated {
		return fmt.Errorf("%w: order %s", ErrAlreadyGenerated, o.Number)
	}
	if o.Status != StatusConfirmed {
		return fmt.Errorf("%w: invoice requires a confirmed order, %s is %s", ErrPrecondition, o.Number, o.Status)
	}
	return nil
}

func (o *Order) AttachInvoice(number string, now time.Time) {
	o.InvoiceGenerated = true
	o.InvoiceNumber = number
	o.UpdatedAt = now
}

func (o *Order) DetachInvoice(now time.Time) {
	o.InvoiceNumber = ""
	o.UpdatedAt = now
}

// QuoteAmount returns what a payment of type t would charge. custom is only
// read for advance payments.
func (o *Order) QuoteAmount(t PaymentType, custom Money) (Money, error) {
	if o.RemainingAmount <= 0 {
		return 0, fmt.Errorf("%w: order %s has nothing outstanding", ErrPrecondition, o.Number)
	}
	switch t {
	case PaymentFull:
		return o.TotalAmount, nil
	case PaymentRemaining:
		return o.RemainingAmount, nil
	case PaymentAdvance:
		if err := CheckAdvance(custom, o.RemainingAmount); err != nil {
			return 0, err
		}
		return custom, nil
	}
	return 0, fmt.Errorf("%w: unknown payment type %q", ErrValidation, t)
}

// ApplyPayment credits a confirmed payment. Anything beyond the outstanding
// balance is recorded in OverpaidAmount and the overshoot is returned.
func (o *Order) ApplyPayment(amount Money, now time.Time) Money {
	var over Money
	o.ReceivedAmount += amount
	if o.ReceivedAmount > o.TotalAmount {
		over = o.ReceivedAmount - o.TotalAmount
		o.OverpaidAmount += over
		o.ReceivedAmount = o.TotalAmount
	}
	o.RemainingAmount = o.TotalAmount - o.ReceivedAmount
	o.UpdatedAt = now
	return over
}

func (o *Order) CheckInvariants() error {
	var sub Money
	for _, it := range o.Items {
		want, err := it.UnitPrice.Times(it.Quantity)
		if err != nil || it.Subtotal != want {
			return fmt.Errorf("%w: item %s subtotal drift", ErrValidation, it.ItemID)
		}
		if sub, err = sub.Plus(it.Subtotal); err != nil {
			return fmt.Errorf("%w: order %s subtotal: %v", ErrValidation, o.Number, err)
		}
	}
	if total, err := sub.Plus(o.TaxAmount); err != nil || sub != o.Subtotal || o.TotalAmount != total {
		return fmt.Errorf("%w: order %s total %s != items %s + tax %s", ErrValidation, o.Number, o.TotalAmount, sub, o.TaxAmount)
	}
	if o.RemainingAmount < 0 || o.RemainingAmount != o.TotalAmount-o.ReceivedAmount {
		return fmt.Errorf("%w: order %s remaining %s inconsistent with received %s", ErrValidation, o.Number, o.RemainingAmount, o.ReceivedAmount)
	}
	return nil
}

func (o *Order) Clone() *Order {
	cp := *o
	cp.Items = slices.Clone(o.Items)
	return &cp
}

func (o *Order) setStatus(s Status, now time.Time) {
	o.Status = s
	o.UpdatedAt = now
}

func (o *Order) rejectTransition(to Status) error {
	return fmt.Errorf("%w: order %s cannot move from %s to %s", ErrInvalidTransition, o.Number, o.Status, to)
}
