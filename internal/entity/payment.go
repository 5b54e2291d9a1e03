package domain

import (
	"fmt"
	"strings"
	"time"
)

type PaymentType string

const (
	PaymentFull      PaymentType = "full"
	PaymentAdvance   PaymentType = "advance"
	PaymentRemaining PaymentType = "remaining"
)

func ParsePaymentType(s string) (PaymentType, error) {
	t := PaymentType(strings.ToLower(strings.TrimSpace(s)))
	switch t {
	case PaymentFull, PaymentAdvance, PaymentRemaining:
		return t, nil
	}
	return "", fmt.Errorf("%w: unknown payment type %q", ErrValidation, s)
}

type Outcome string

const (
	OutcomePending   Outcome = "pending"
	OutcomeSucceeded Outcome = "succeeded"
	OutcomeFailed    Outcome = "failed"
	OutcomeCancelled Outcome = "cancelled"
)

// Payment is one checkout attempt. It is settled exactly once; after that the
// record is immutable.
type Payment struct {
	ID             string
	OrderNumber    string // empty for a checkout intent not yet bound to an order
	IntentRef      string
	ConfirmationID string
	Signature      string
	Amount         Money
	Type           PaymentType
	Outcome        Outcome
	FailureCode    string
	FailureReason  string
	CreatedAt      time.Time
	SettledAt      time.Time
}

func (p *Payment) Pending() bool { return p.Outcome == OutcomePending }

// Expired reports whether a pending intent has outlived ttl without a callback.
func (p *Payment) Expired(now time.Time, ttl time.Duration) bool {
	return p.Pending() && ttl > 0 && now.Sub(p.CreatedAt) >= ttl
}

func (p *Payment) Succeed(confirmationID, signature string, now time.Time) error {
	if !p.Pending() {
		return fmt.Errorf("%w: payment %s already %s", ErrPrecondition, p.IntentRef, p.Outcome)
	}
	p.ConfirmationID = confirmationID
	p.Signature = signature
	p.settle(OutcomeSucceeded, now)
	return nil
}

func (p *Payment) Fail(code, reason string, now time.Time) error {
	if !p.Pending() {
		return fmt.Errorf("%w: payment %s already %s", ErrPrecondition, p.IntentRef, p.Outcome)
	}
	p.FailureCode = code
	p.FailureReason = reason
	p.settle(OutcomeFailed, now)
	return nil
}

// Cancel closes a pending intent that will never be credited: abandoned by
// the customer, timed out, or orphaned by an order cancellation.
func (p *Payment) Cancel(reason string, now time.Time) error {
	if !p.Pending() {
		return fmt.Errorf("%w: payment %s already %s", ErrPrecondition, p.IntentRef, p.Outcome)
	}
	p.FailureReason = reason
	p.settle(OutcomeCancelled, now)
	return nil
}

func (p *Payment) settle(o Outcome, now time.Time) {
	p.Outcome = o
	p.SettledAt = now
}

func (p *Payment) Clone() *Payment {
	cp := *p
	return &cp
}

// CallbackKind tags a gateway callback.
type CallbackKind string

const (
	CallbackSucceeded CallbackKind = "succeeded"
	CallbackFailed    CallbackKind = "failed"
	CallbackCancelled CallbackKind = "cancelled"
)

// GatewayCallback is the validated form of whatever the processor sent back,
// whether by redirect, webhook or event stream.
type GatewayCallback struct {
	Kind           CallbackKind
	IntentRef      string
	ConfirmationID string
	Signature      string
	ErrorCode      string
	ErrorReason    string
}

func (c GatewayCallback) Validate() error {
	if strings.TrimSpace(c.IntentRef) == "" {
		return fmt.Errorf("%w: intent reference required", ErrValidation)
	}
	switch c.Kind {
	case CallbackSucceeded:
		if c.ConfirmationID == "" || c.Signature == "" {
			return fmt.Errorf("%w: succeeded callback needs confirmation id and signature", ErrValidation)
		}
	case CallbackFailed, CallbackCancelled:
	default:
		return fmt.Errorf("%w: unknown callback kind %q", ErrValidation, c.Kind)
	}
	return nil
}
