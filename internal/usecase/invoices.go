package usecase

import (
	"context"
	"errors"
	"fmt"
	"time"

	domain "github.com/aq2208/gorder-settlement/internal/entity"
)

// Invoices binds orders to their billing snapshot.
type Invoices struct {
	core
	mode domain.TaxMode
}

func NewInvoices(d Deps, mode domain.TaxMode) *Invoices {
	return &Invoices{core: newCore(d, "invoices"), mode: mode}
}

// Generate snapshots a confirmed order into its one and only invoice.
func (uc *Invoices) Generate(ctx context.Context, orderNumber string) (OrderView, error) {
	var inv *domain.Invoice
	o, err := uc.mutateOrder(ctx, orderNumber, func(ctx context.Context, r Repos, o *domain.Order) error {
		if err := o.CanGenerateInvoice(); err != nil {
			return err
		}
		number, err := r.Invoices.NextNumber(ctx)
		if err != nil {
			return err
		}
		now := uc.now()
		if inv, err = domain.NewInvoice(number, o, uc.mode, now); err != nil {
			return err
		}
		if err := r.Invoices.Create(ctx, inv); err != nil {
			return err
		}
		o.AttachInvoice(number, now)
		return nil
	})
	if err != nil {
		return OrderView{}, err
	}
	uc.log.Info("invoice generated", "order", orderNumber, "invoice", inv.Number, "total", inv.TotalAmount.String())
	return OrderView{Order: o, Invoice: inv.Clone()}, nil
}

// Resync re-mirrors the order's amounts onto its invoice.
func (uc *Invoices) Resync(ctx context.Context, orderNumber string) (OrderView, error) {
	unlock := uc.Locks.Lock(orderNumber)
	defer unlock()

	var v OrderView
	err := uc.Store.WithinTx(ctx, func(ctx context.Context, r Repos) error {
		o, err := r.Orders.Get(ctx, orderNumber)
		if err != nil {
			return err
		}
		if o.InvoiceNumber == "" {
			return fmt.Errorf("%w: order %s has no invoice", domain.ErrNotFound, orderNumber)
		}
		inv, err := resyncInvoice(ctx, r, o, uc.now())
		if err != nil {
			return err
		}
		v = OrderView{Order: o.Clone(), Invoice: inv}
		return nil
	})
	return v, err
}

func (uc *Invoices) MarkSent(ctx context.Context, number string) (*domain.Invoice, error) {
	return uc.mutateInvoice(ctx, number, func(ctx context.Context, r Repos, inv *domain.Invoice, _ *domain.Order) error {
		if err := inv.MarkSent(uc.now()); err != nil {
			return err
		}
		return r.Invoices.Update(ctx, inv)
	})
}

// Delete removes an invoice once its order is delivered. The invoice of a
// cancelled order stays, and so does the order.
func (uc *Invoices) Delete(ctx context.Context, number string) error {
	_, err := uc.mutateInvoice(ctx, number, func(ctx context.Context, r Repos, inv *domain.Invoice, o *domain.Order) error {
		if o.Status != domain.StatusDelivered {
			return fmt.Errorf("%w: invoice %s can only be deleted once order %s is delivered (now %s)", domain.ErrPrecondition, number, o.Number, o.Status)
		}
		if err := r.Invoices.Delete(ctx, number); err != nil {
			return err
		}
		o.DetachInvoice(uc.now())
		return r.Orders.Update(ctx, o)
	})
	if err == nil {
		uc.log.Info("invoice deleted", "invoice", number)
	}
	return err
}

// Snapshot hands a renderer a copy that has been checked against the order.
func (uc *Invoices) Snapshot(ctx context.Context, number string) (*domain.Invoice, error) {
	var out *domain.Invoice
	err := uc.Store.WithinTx(ctx, func(ctx context.Context, r Repos) error {
		inv, err := r.Invoices.Get(ctx, number)
		if err != nil {
			return err
		}
		o, err := r.Orders.Get(ctx, inv.OrderNumber)
		if err != nil {
			return err
		}
		if err := inv.CheckConsistency(o); err != nil {
			return err
		}
		out = inv.Clone()
		return nil
	})
	return out, err
}

func (uc *Invoices) mutateInvoice(ctx context.Context, number string, fn func(ctx context.Context, r Repos, inv *domain.Invoice, o *domain.Order) error) (*domain.Invoice, error) {
	orderNumber, err := uc.orderOfInvoice(ctx, number)
	if err != nil {
		return nil, err
	}
	unlock := uc.Locks.Lock(orderNumber)
	defer unlock()

	var out *domain.Invoice
	err = uc.Store.WithinTx(ctx, func(ctx context.Context, r Repos) error {
		inv, err := r.Invoices.Get(ctx, number)
		if err != nil {
			return err
		}
		o, err := r.Orders.Get(ctx, orderNumber)
		if err != nil {
			return err
		}
		if err := fn(ctx, r, inv, o); err != nil {
			return err
		}
		out = inv.Clone()
		return nil
	})
	return out, err
}

func (uc *Invoices) orderOfInvoice(ctx context.Context, number string) (string, error) {
	var orderNumber string
	err := uc.Store.WithinTx(ctx, func(ctx context.Context, r Repos) error {
		inv, err := r.Invoices.Get(ctx, number)
		if err != nil {
			return err
		}
		orderNumber = inv.OrderNumber
		return nil
	})
	return orderNumber, err
}

// resyncInvoice mirrors o onto its invoice, if it has one.
func resyncInvoice(ctx context.Context, r Repos, o *domain.Order, now time.Time) (*domain.Invoice, error) {
	if o.InvoiceNumber == "" {
		return nil, nil
	}
	inv, err := r.Invoices.Get(ctx, o.InvoiceNumber)
	if errors.Is(err, domain.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	inv.Resync(o, now)
	if err := r.Invoices.Update(ctx, inv); err != nil {
		return nil, err
	}
	return inv.Clone(), nil
}
