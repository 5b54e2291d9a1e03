package usecase

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	domain "github.com/aq2208/gorder-settlement/internal/entity"
)

type PaymentsConfig struct {
	Currency string
	// IntentTTL is how long a pending intent may wait for a callback before
	// it is treated as abandoned.
	IntentTTL time.Duration
}

type Intent struct {
	IntentRef   string
	OrderNumber string
	Amount      domain.Money
	Type        domain.PaymentType
	Currency    string
}

type VerifyResult struct {
	Order   *domain.Order
	Invoice *domain.Invoice
	Payment *domain.Payment
	// Duplicate is set when the confirmation had already been applied; the
	// projection is returned unchanged.
	Duplicate bool
}

// Payments reconciles money received against order totals.
type Payments struct {
	core
	processor PaymentProcessor
	verifier  SignatureVerifier
	cfg       PaymentsConfig
}

func NewPayments(d Deps, processor PaymentProcessor, verifier SignatureVerifier, cfg PaymentsConfig) *Payments {
	return &Payments{core: newCore(d, "payments"), processor: processor, verifier: verifier, cfg: cfg}
}

func (uc *Payments) Quote(ctx context.Context, number string, t domain.PaymentType, custom domain.Money) (domain.Money, error) {
	v, err := uc.view(ctx, number)
	if err != nil {
		return 0, err
	}
	return quoteFor(v.Order, t, custom)
}

func quoteFor(o *domain.Order, t domain.PaymentType, custom domain.Money) (domain.Money, error) {
	if o.Status == domain.StatusCancelled {
		return 0, fmt.Errorf("%w: %s", domain.ErrOrderCancelled, o.Number)
	}
	if t == domain.PaymentFull && o.ReceivedAmount > 0 {
		return 0, fmt.Errorf("%w: order %s is partly paid, pay the remaining amount instead", domain.ErrPrecondition, o.Number)
	}
	return o.QuoteAmount(t, custom)
}

// CreateIntent registers a pending payment with the processor. Only one live
// intent per order is allowed; an expired one is abandoned first. Amounts
// are not credited until Verify.
func (uc *Payments) CreateIntent(ctx context.Context, number string, t domain.PaymentType, custom domain.Money) (Intent, error) {
	unlock := uc.Locks.Lock(number)
	defer unlock()

	var amount domain.Money
	err := uc.Store.WithinTx(ctx, func(ctx context.Context, r Repos) error {
		o, err := r.Orders.Get(ctx, number)
		if err != nil {
			return err
		}
		if amount, err = quoteFor(o, t, custom); err != nil {
			return err
		}
		return uc.abandonExpired(ctx, r, number)
	})
	if err != nil {
		return Intent{}, err
	}

	ref, err := uc.processor.CreateIntent(ctx, amount, uc.cfg.Currency, map[string]string{
		"order": number,
		"type":  string(t),
	})
	if err != nil {
		return Intent{}, fmt.Errorf("create intent for %s: %w", number, err)
	}

	p := &domain.Payment{
		ID:          uuid.NewString(),
		OrderNumber: number,
		IntentRef:   ref,
		Amount:      amount,
		Type:        t,
		Outcome:     domain.OutcomePending,
		CreatedAt:   uc.now(),
	}
	err = uc.Store.WithinTx(ctx, func(ctx context.Context, r Repos) error {
		o, err := r.Orders.Get(ctx, number)
		if err != nil {
			return err
		}
		if o.Status == domain.StatusCancelled {
			return fmt.Errorf("%w: %s", domain.ErrOrderCancelled, number)
		}
		return r.Payments.Create(ctx, p)
	})
	if err != nil {
		return Intent{}, err
	}
	uc.logger(ctx).Info("payment intent created", "order", number, "intent", ref, "type", t, "amount", amount.String())
	return Intent{IntentRef: ref, OrderNumber: number, Amount: amount, Type: t, Currency: uc.cfg.Currency}, nil
}

// abandonExpired closes stale intents and refuses when a live one remains.
func (uc *Payments) abandonExpired(ctx context.Context, r Repos, number string) error {
	pending, err := r.Payments.ListPending(ctx, number)
	if err != nil {
		return err
	}
	now := uc.now()
	for _, p := range pending {
		if !p.Expired(now, uc.cfg.IntentTTL) {
			return fmt.Errorf("%w: payment %s for order %s is still in progress", domain.ErrPrecondition, p.IntentRef, number)
		}
		if err := p.Cancel("abandoned", now); err != nil {
			return err
		}
		if err := r.Payments.Update(ctx, p); err != nil {
			return err
		}
		paymentsSettled.WithLabelValues(string(p.Type), string(p.Outcome)).Inc()
	}
	return nil
}

// Verify applies a processor confirmation. The signature is checked first;
// then the payment, order and invoice move together in one transaction. A
// confirmation id seen before is absorbed: Duplicate is set and nothing is
// credited twice.
func (uc *Payments) Verify(ctx context.Context, intentRef, confirmationID, signature string) (VerifyResult, error) {
	if intentRef == "" || confirmationID == "" {
		return VerifyResult{}, fmt.Errorf("%w: intent reference and confirmation id required", domain.ErrValidation)
	}
	if err := uc.verifier.VerifyPayment(intentRef, confirmationID, signature); err != nil {
		return VerifyResult{}, err
	}
	number, err := uc.orderOf(ctx, intentRef)
	if err != nil {
		return VerifyResult{}, err
	}
	if number == "" {
		return VerifyResult{}, fmt.Errorf("%w: intent %s belongs to a checkout, confirm it when placing the order", domain.ErrPrecondition, intentRef)
	}

	unlock := uc.Locks.Lock(number)
	defer unlock()

	var res VerifyResult
	err = uc.Store.WithinTx(ctx, func(ctx context.Context, r Repos) error {
		p, err := r.Payments.GetByIntent(ctx, intentRef)
		if err != nil {
			return err
		}
		if err := r.Payments.ClaimConfirmation(ctx, confirmationID, intentRef); err != nil {
			return err
		}
		o, err := r.Orders.Get(ctx, number)
		if err != nil {
			return err
		}
		if o.Status == domain.StatusCancelled {
			return fmt.Errorf("%w: %s, payment %s not credited", domain.ErrOrderCancelled, number, intentRef)
		}
		now := uc.now()
		if err := p.Succeed(confirmationID, signature, now); err != nil {
			return err
		}
		if over := o.ApplyPayment(p.Amount, now); over > 0 {
			overpayments.Inc()
			uc.logger(ctx).Warn("payment exceeded balance", "order", number, "intent", intentRef, "overpaid", over.String())
		}
		if err := o.CheckInvariants(); err != nil {
			return err
		}
		if err := r.Payments.Update(ctx, p); err != nil {
			return err
		}
		if err := r.Orders.Update(ctx, o); err != nil {
			return err
		}
		inv, err := resyncInvoice(ctx, r, o, now)
		if err != nil {
			return err
		}
		res = VerifyResult{Order: o.Clone(), Payment: p.Clone(), Invoice: inv}
		return nil
	})
	if errors.Is(err, domain.ErrDuplicateConfirmation) {
		duplicateConfirmations.Inc()
		uc.logger(ctx).Info("duplicate confirmation absorbed", "order", number, "confirmation", confirmationID)
		return uc.current(ctx, number, intentRef)
	}
	if err != nil {
		return VerifyResult{}, err
	}
	paymentsSettled.WithLabelValues(string(res.Payment.Type), string(res.Payment.Outcome)).Inc()
	uc.logger(ctx).Info("payment verified", "order", number, "intent", intentRef,
		"amount", res.Payment.Amount.String(), "remaining", res.Order.RemainingAmount.String())
	return res, nil
}

// Fail records a processor-reported failure. Money is never touched.
func (uc *Payments) Fail(ctx context.Context, intentRef, code, reason string) (*domain.Payment, error) {
	return uc.close(ctx, intentRef, func(p *domain.Payment, now time.Time) error {
		return p.Fail(code, reason, now)
	})
}

// Abandon closes an intent the customer walked away from.
func (uc *Payments) Abandon(ctx context.Context, intentRef, reason string) (*domain.Payment, error) {
	return uc.close(ctx, intentRef, func(p *domain.Payment, now time.Time) error {
		return p.Cancel(reason, now)
	})
}

// HandleCallback routes a validated gateway callback to Verify, Fail or
// Abandon.
func (uc *Payments) HandleCallback(ctx context.Context, cb domain.GatewayCallback) error {
	if err := cb.Validate(); err != nil {
		return err
	}
	var err error
	switch cb.Kind {
	case domain.CallbackSucceeded:
		_, err = uc.Verify(ctx, cb.IntentRef, cb.ConfirmationID, cb.Signature)
	case domain.CallbackFailed:
		_, err = uc.Fail(ctx, cb.IntentRef, cb.ErrorCode, cb.ErrorReason)
	case domain.CallbackCancelled:
		_, err = uc.Abandon(ctx, cb.IntentRef, cb.ErrorReason)
	}
	return err
}

// ExpireAbandoned cancels intents that never got a callback within IntentTTL
// and returns how many it closed.
func (uc *Payments) ExpireAbandoned(ctx context.Context, limit int) (int, error) {
	if uc.cfg.IntentTTL <= 0 {
		return 0, nil
	}
	var stale []*domain.Payment
	err := uc.Store.WithinTx(ctx, func(ctx context.Context, r Repos) error {
		var err error
		stale, err = r.Payments.ListStalePending(ctx, uc.now().Add(-uc.cfg.IntentTTL), limit)
		return err
	})
	if err != nil {
		return 0, err
	}
	n := 0
	for _, p := range stale {
		_, err := uc.Abandon(ctx, p.IntentRef, "abandoned")
		if errors.Is(err, domain.ErrPrecondition) {
			continue // settled meanwhile
		}
		if err != nil {
			return n, err
		}
		n++
	}
	return n, nil
}

// RunSweeper calls ExpireAbandoned every interval until ctx ends.
func (uc *Payments) RunSweeper(ctx context.Context, interval time.Duration) {
	t := time.NewTicker(interval)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-t.C:
			n, err := uc.ExpireAbandoned(ctx, 100)
			if err != nil {
				uc.log.Error("expire abandoned intents", "err", err)
				continue
			}
			if n > 0 {
				uc.log.Info("expired abandoned intents", "count", n)
			}
		}
	}
}

func (uc *Payments) close(ctx context.Context, intentRef string, fn func(p *domain.Payment, now time.Time) error) (*domain.Payment, error) {
	number, err := uc.orderOf(ctx, intentRef)
	if err != nil {
		return nil, err
	}
	if number != "" {
		unlock := uc.Locks.Lock(number)
		defer unlock()
	}
	var out *domain.Payment
	err = uc.Store.WithinTx(ctx, func(ctx context.Context, r Repos) error {
		p, err := r.Payments.GetByIntent(ctx, intentRef)
		if err != nil {
			return err
		}
		if err := fn(p, uc.now()); err != nil {
			return err
		}
		if err := r.Payments.Update(ctx, p); err != nil {
			return err
		}
		out = p.Clone()
		return nil
	})
	if err != nil {
		return nil, err
	}
	paymentsSettled.WithLabelValues(string(out.Type), string(out.Outcome)).Inc()
	return out, nil
}

func (uc *Payments) orderOf(ctx context.Context, intentRef string) (string, error) {
	var number string
	err := uc.Store.WithinTx(ctx, func(ctx context.Context, r Repos) error {
		p, err := r.Payments.GetByIntent(ctx, intentRef)
		if err != nil {
			return err
		}
		number = p.OrderNumber
		return nil
	})
	if err != nil {
		return "", err
	}
	return number, nil
}

func (uc *Payments) current(ctx context.Context, number, intentRef string) (VerifyResult, error) {
	res := VerifyResult{Duplicate: true}
	err := uc.Store.WithinTx(ctx, func(ctx context.Context, r Repos) error {
		p, err := r.Payments.GetByIntent(ctx, intentRef)
		if err != nil {
			return err
		}
		o, err := r.Orders.Get(ctx, number)
		if err != nil {
			return err
		}
		res.Payment, res.Order = p.Clone(), o.Clone()
		if o.InvoiceNumber != "" {
			inv, err := r.Invoices.Get(ctx, o.InvoiceNumber)
			if err != nil {
				return err
			}
			res.Invoice = inv.Clone()
		}
		return nil
	})
	return res, err
}
