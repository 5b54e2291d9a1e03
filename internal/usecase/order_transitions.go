package usecase

import (
	"context"
	"errors"

	domain "github.com/aq2208/gorder-settlement/internal/entity"
)

// Orders drives the order state machine.
type Orders struct {
	core
}

func NewOrders(d Deps) *Orders {
	return &Orders{core: newCore(d, "orders")}
}

func (uc *Orders) Get(ctx context.Context, number string) (OrderView, error) {
	return uc.view(ctx, number)
}

// Status answers from the cache when it can and falls back to the store.
func (uc *Orders) Status(ctx context.Context, number string) (domain.Status, error) {
	if uc.Cache != nil {
		if s, ok, err := uc.Cache.GetStatus(ctx, number); err == nil && ok {
			return domain.Status(s), nil
		}
	}
	v, err := uc.view(ctx, number)
	if err != nil {
		return "", err
	}
	if uc.Cache != nil {
		_ = uc.Cache.SetStatus(ctx, number, string(v.Order.Status))
	}
	return v.Order.Status, nil
}

func (uc *Orders) Confirm(ctx context.Context, number string) (TransitionResult, error) {
	return uc.transition(ctx, number, func(_ context.Context, _ Repos, o *domain.Order) error {
		return o.Confirm(uc.now())
	})
}

// Deny rejects a pending order. In-flight intents are closed in the same
// transaction so a late callback cannot credit a cancelled order.
func (uc *Orders) Deny(ctx context.Context, number, reason string) (TransitionResult, error) {
	return uc.transition(ctx, number, func(ctx context.Context, r Repos, o *domain.Order) error {
		if err := o.Deny(reason, uc.now()); err != nil {
			return err
		}
		return uc.closeOpenPaymentsAndInvoice(ctx, r, o)
	})
}

func (uc *Orders) Cancel(ctx context.Context, number, reason string) (TransitionResult, error) {
	return uc.transition(ctx, number, func(ctx context.Context, r Repos, o *domain.Order) error {
		if err := o.Cancel(reason, uc.now()); err != nil {
			return err
		}
		return uc.closeOpenPaymentsAndInvoice(ctx, r, o)
	})
}

func (uc *Orders) Advance(ctx context.Context, number string, to domain.Status) (TransitionResult, error) {
	return uc.transition(ctx, number, func(_ context.Context, _ Repos, o *domain.Order) error {
		return o.Advance(to, uc.now())
	})
}

// Delete removes a delivered or cancelled order. An order that still carries
// an invoice is never deleted; the invoice has to go first.
func (uc *Orders) Delete(ctx context.Context, number string) error {
	unlock := uc.Locks.Lock(number)
	defer unlock()

	err := uc.Store.WithinTx(ctx, func(ctx context.Context, r Repos) error {
		o, err := r.Orders.Get(ctx, number)
		if err != nil {
			return err
		}
		if err := o.CanDelete(); err != nil {
			return err
		}
		if err := r.Orders.Delete(ctx, number); err != nil {
			return err
		}
		uc.log.Info("order deleted", "order", number, "status", o.Status)
		return nil
	})
	if err != nil {
		return err
	}
	if uc.Cache != nil {
		if err := uc.Cache.DeleteStatus(ctx, number); err != nil {
			uc.log.Warn("status cache evict failed", "order", number, "err", err)
		}
	}
	return nil
}

func (uc *Orders) transition(ctx context.Context, number string, fn func(ctx context.Context, r Repos, o *domain.Order) error) (TransitionResult, error) {
	var from domain.Status
	o, err := uc.mutateOrder(ctx, number, func(ctx context.Context, r Repos, o *domain.Order) error {
		from = o.Status
		return fn(ctx, r, o)
	})
	if err != nil {
		return TransitionResult{}, err
	}
	return uc.transitioned(ctx, from, o), nil
}

func (uc *Orders) closeOpenPaymentsAndInvoice(ctx context.Context, r Repos, o *domain.Order) error {
	pending, err := r.Payments.ListPending(ctx, o.Number)
	if err != nil {
		return err
	}
	for _, p := range pending {
		if err := p.Cancel("order cancelled", uc.now()); err != nil {
			return err
		}
		if err := r.Payments.Update(ctx, p); err != nil {
			return err
		}
		paymentsSettled.WithLabelValues(string(p.Type), string(p.Outcome)).Inc()
	}
	if o.InvoiceNumber == "" {
		return nil
	}
	inv, err := r.Invoices.Get(ctx, o.InvoiceNumber)
	if errors.Is(err, domain.ErrNotFound) {
		return nil
	}
	if err != nil {
		return err
	}
	inv.Cancel(uc.now())
	return r.Invoices.Update(ctx, inv)
}
