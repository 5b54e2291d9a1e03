package usecase

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	domain "github.com/aq2208/gorder-settlement/internal/entity"
)

var ErrDuplicate = errors.New("duplicate idempotency key")

type CheckoutLine struct {
	ItemID   string
	Quantity int
}

// AdvanceProof is the processor's confirmation for an advance paid through a
// checkout intent before the order existed.
type AdvanceProof struct {
	IntentRef      string
	ConfirmationID string
	Signature      string
}

type PlaceOrderInput struct {
	IdempotencyKey string
	Customer       domain.Customer
	Lines          []CheckoutLine
	ScheduledFor   time.Time
	Instructions   string
	Advance        *AdvanceProof
}

type PlaceOrderOutput struct {
	Order    *domain.Order
	Replayed bool
	// NotifyErr is set when the admin alert for the new order was not queued.
	NotifyErr error
}

type CheckoutIntent struct {
	IntentRef string
	Amount    domain.Money
	Total     domain.Money
	Currency  string
}

type CheckoutConfig struct {
	Tax      domain.TaxPolicy
	Currency string
}

// Checkout turns a client-side selection into a pending order.
type Checkout struct {
	core
	catalog   Catalog
	processor PaymentProcessor
	verifier  SignatureVerifier
	idem      IdempotencyStore
	cfg       CheckoutConfig
}

func NewCheckout(d Deps, catalog Catalog, processor PaymentProcessor, verifier SignatureVerifier, idem IdempotencyStore, cfg CheckoutConfig) *Checkout {
	return &Checkout{
		core:      newCore(d, "checkout"),
		catalog:   catalog,
		processor: processor,
		verifier:  verifier,
		idem:      idem,
		cfg:       cfg,
	}
}

// BuildCart replays the submitted lines against the catalog. Repeated items
// merge by identity.
func (uc *Checkout) BuildCart(ctx context.Context, lines []CheckoutLine) (domain.Cart, error) {
	var cart domain.Cart
	for _, l := range lines {
		if l.Quantity < 1 {
			return domain.Cart{}, fmt.Errorf("%w: quantity for %s must be at least 1", domain.ErrValidation, l.ItemID)
		}
		it, err := uc.catalog.Lookup(ctx, l.ItemID)
		if err != nil {
			return domain.Cart{}, fmt.Errorf("lookup %s: %w", l.ItemID, err)
		}
		if !it.Available {
			return domain.Cart{}, fmt.Errorf("%w: %s is not available", domain.ErrValidation, it.Name)
		}
		q := cart.Quantity(it.ID) + l.Quantity
		if l.Quantity > domain.MaxLineQuantity || q > domain.MaxLineQuantity {
			return domain.Cart{}, fmt.Errorf("%w: at most %d of %s per order", domain.ErrValidation, domain.MaxLineQuantity, it.Name)
		}
		cart.AddItem(it)
		cart.SetQuantity(it.ID, q)
	}
	return cart, nil
}

func (uc *Checkout) Quote(ctx context.Context, lines []CheckoutLine) (domain.CheckoutSnapshot, error) {
	cart, err := uc.BuildCart(ctx, lines)
	if err != nil {
		return domain.CheckoutSnapshot{}, err
	}
	return cart.SnapshotForCheckout(uc.cfg.Tax, uc.now())
}

// CreateIntent opens an advance-payment intent for a cart that is not an
// order yet. The amount is bound server-side and checked again at placement.
func (uc *Checkout) CreateIntent(ctx context.Context, lines []CheckoutLine, amount domain.Money) (CheckoutIntent, error) {
	snap, err := uc.Quote(ctx, lines)
	if err != nil {
		return CheckoutIntent{}, err
	}
	if err := domain.CheckAdvance(amount, snap.Total); err != nil {
		return CheckoutIntent{}, err
	}
	ref, err := uc.processor.CreateIntent(ctx, amount, uc.cfg.Currency, map[string]string{
		"purpose": "checkout_advance",
		"total":   snap.Total.String(),
	})
	if err != nil {
		return CheckoutIntent{}, fmt.Errorf("create checkout intent: %w", err)
	}
	p := &domain.Payment{
		ID:        uuid.NewString(),
		IntentRef: ref,
		Amount:    amount,
		Type:      domain.PaymentAdvance,
		Outcome:   domain.OutcomePending,
		CreatedAt: uc.now(),
	}
	if err := uc.Store.WithinTx(ctx, func(ctx context.Context, r Repos) error {
		return r.Payments.Create(ctx, p)
	}); err != nil {
		return CheckoutIntent{}, err
	}
	return CheckoutIntent{IntentRef: ref, Amount: amount, Total: snap.Total, Currency: uc.cfg.Currency}, nil
}

// Execute places the order. With an idempotency key, a retried request gets
// the original order back instead of a second one.
func (uc *Checkout) Execute(ctx context.Context, in PlaceOrderInput) (PlaceOrderOutput, error) {
	scope := strings.TrimSpace(in.Customer.Phone)
	useIdem := uc.idem != nil && in.IdempotencyKey != ""
	if useIdem {
		// Fast path: idempotency recall
		if number, ok, _ := uc.idem.Recall(ctx, scope, in.IdempotencyKey); ok {
			return uc.replay(ctx, number)
		}
		ok, err := uc.idem.TryLock(ctx, scope, in.IdempotencyKey)
		if err != nil {
			return PlaceOrderOutput{}, err
		}
		if !ok {
			return PlaceOrderOutput{}, ErrDuplicate
		}
	}
	out, err := uc.place(ctx, in)
	if useIdem {
		if err != nil {
			_ = uc.idem.Release(ctx, scope, in.IdempotencyKey)
		} else {
			_ = uc.idem.Remember(ctx, scope, in.IdempotencyKey, out.Order.Number)
		}
	}
	return out, err
}

func (uc *Checkout) place(ctx context.Context, in PlaceOrderInput) (PlaceOrderOutput, error) {
	if in.Advance != nil {
		if number, ok, err := uc.placedWith(ctx, *in.Advance); err != nil {
			return PlaceOrderOutput{}, err
		} else if ok {
			return uc.replay(ctx, number)
		}
		if err := uc.verifier.VerifyPayment(in.Advance.IntentRef, in.Advance.ConfirmationID, in.Advance.Signature); err != nil {
			return PlaceOrderOutput{}, err
		}
	}

	cart, err := uc.BuildCart(ctx, in.Lines)
	if err != nil {
		return PlaceOrderOutput{}, err
	}
	now := uc.now()
	snap, err := cart.SnapshotForCheckout(uc.cfg.Tax, now)
	if err != nil {
		return PlaceOrderOutput{}, err
	}
	number := newOrderNumber(now)

	var placed *domain.Order
	err = uc.Store.WithinTx(ctx, func(ctx context.Context, r Repos) error {
		var (
			advance domain.Money
			pay     *domain.Payment
		)
		if in.Advance != nil {
			p, err := uc.bindAdvance(ctx, r, *in.Advance, number, now)
			if err != nil {
				return err
			}
			advance, pay = p.Amount, p
		}
		o, err := domain.NewOrder(domain.NewOrderParams{
			Number:       number,
			Snapshot:     snap,
			Customer:     in.Customer,
			ScheduledFor: in.ScheduledFor,
			Instructions: in.Instructions,
			Advance:      advance,
			Now:          now,
		})
		if err != nil {
			return err
		}
		if err := r.Orders.Create(ctx, o); err != nil {
			return err
		}
		if pay != nil {
			if err := r.Payments.Update(ctx, pay); err != nil {
				return err
			}
		}
		placed = o.Clone()
		return nil
	})
	if err != nil {
		return PlaceOrderOutput{}, err
	}
	if in.Advance != nil {
		paymentsSettled.WithLabelValues(string(domain.PaymentAdvance), string(domain.OutcomeSucceeded)).Inc()
	}

	res := uc.transitioned(ctx, "", placed)
	return PlaceOrderOutput{Order: placed, NotifyErr: res.NotifyErr}, nil
}

func (uc *Checkout) bindAdvance(ctx context.Context, r Repos, proof AdvanceProof, number string, now time.Time) (*domain.Payment, error) {
	p, err := r.Payments.GetByIntent(ctx, proof.IntentRef)
	if err != nil {
		return nil, err
	}
	if p.OrderNumber != "" || p.Type != domain.PaymentAdvance {
		return nil, fmt.Errorf("%w: intent %s is not an open checkout intent", domain.ErrPrecondition, proof.IntentRef)
	}
	if err := r.Payments.ClaimConfirmation(ctx, proof.ConfirmationID, proof.IntentRef); err != nil {
		return nil, err
	}
	if err := p.Succeed(proof.ConfirmationID, proof.Signature, now); err != nil {
		return nil, err
	}
	p.OrderNumber = number
	return p, nil
}

// placedWith reports the order an advance confirmation was already used for.
func (uc *Checkout) placedWith(ctx context.Context, proof AdvanceProof) (string, bool, error) {
	var number string
	err := uc.Store.WithinTx(ctx, func(ctx context.Context, r Repos) error {
		p, err := r.Payments.GetByIntent(ctx, proof.IntentRef)
		if err != nil {
			return err
		}
		if p.Outcome == domain.OutcomeSucceeded && p.ConfirmationID == proof.ConfirmationID {
			number = p.OrderNumber
		}
		return nil
	})
	if err != nil {
		return "", false, err
	}
	return number, number != "", nil
}

func (uc *Checkout) replay(ctx context.Context, number string) (PlaceOrderOutput, error) {
	v, err := uc.view(ctx, number)
	if err != nil {
		return PlaceOrderOutput{}, err
	}
	return PlaceOrderOutput{Order: v.Order, Replayed: true}, nil
}

func newOrderNumber(now time.Time) string {
	return "ORD-" + now.Format("060102") + "-" + strings.ToUpper(uuid.NewString()[:8])
}
