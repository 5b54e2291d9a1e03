package usecase

import (
	"context"
	"log/slog"
	"time"

	"github.com/google/uuid"

	domain "github.com/aq2208/gorder-settlement/internal/entity"
	"github.com/aq2208/gorder-settlement/internal/logging"
)

// Deps is shared by every order-scoped use case. Events and Cache are
// optional.
type Deps struct {
	Store  Store
	Locks  *KeyLock
	Events EventSink
	Cache  OrderCache
	Clock  func() time.Time
}

type core struct {
	Deps
	log *slog.Logger
}

func newCore(d Deps, component string) core {
	if d.Locks == nil {
		d.Locks = NewKeyLock()
	}
	if d.Clock == nil {
		d.Clock = time.Now
	}
	return core{Deps: d, log: logging.New(component)}
}

func (c core) now() time.Time { return c.Clock().UTC() }

// logger prefers the request-scoped logger and falls back to the use case's own.
func (c core) logger(ctx context.Context) *slog.Logger { return logging.FromCtxOr(ctx, c.log) }

// OrderView is the projection returned to API callers.
type OrderView struct {
	Order   *domain.Order
	Invoice *domain.Invoice
}

// TransitionResult tells the caller the state changed. NotifyErr reports a
// side effect that could not be queued; the transition stands regardless.
type TransitionResult struct {
	Order     *domain.Order
	NotifyErr error
}

// mutateOrder runs fn on the order under its lock inside one transaction and
// saves the order afterwards.
func (c core) mutateOrder(ctx context.Context, number string, fn func(ctx context.Context, r Repos, o *domain.Order) error) (*domain.Order, error) {
	unlock := c.Locks.Lock(number)
	defer unlock()

	var out *domain.Order
	err := c.Store.WithinTx(ctx, func(ctx context.Context, r Repos) error {
		o, err := r.Orders.Get(ctx, number)
		if err != nil {
			return err
		}
		if err := fn(ctx, r, o); err != nil {
			return err
		}
		if err := o.CheckInvariants(); err != nil {
			return err
		}
		if err := r.Orders.Update(ctx, o); err != nil {
			return err
		}
		out = o.Clone()
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// transitioned runs the post-commit side effects of a status change.
func (c core) transitioned(ctx context.Context, from domain.Status, o *domain.Order) TransitionResult {
	orderTransitions.WithLabelValues(string(from), string(o.Status)).Inc()
	l := c.logger(ctx)
	l.Info("order transitioned", "order", o.Number, "from", from, "to", o.Status)

	if c.Cache != nil {
		if err := c.Cache.SetStatus(ctx, o.Number, string(o.Status)); err != nil {
			l.Warn("status cache refresh failed", "order", o.Number, "err", err)
		}
	}

	res := TransitionResult{Order: o}
	if c.Events == nil {
		return res
	}
	msg := OrderStatusChangedMsg{
		EventID:     uuid.NewString(),
		OrderNumber: o.Number,
		Phone:       o.Customer.Phone,
		From:        string(from),
		Status:      string(o.Status),
		Reason:      o.DenyReason,
		OccurredAt:  o.UpdatedAt,
	}
	if err := c.Events.Enqueue(msg); err != nil {
		l.Warn("status notification not queued", "order", o.Number, "status", o.Status, "err", err)
		res.NotifyErr = err
	}
	return res
}

func (c core) view(ctx context.Context, number string) (OrderView, error) {
	var v OrderView
	err := c.Store.WithinTx(ctx, func(ctx context.Context, r Repos) error {
		o, err := r.Orders.Get(ctx, number)
		if err != nil {
			return err
		}
		v.Order = o.Clone()
		if o.InvoiceNumber != "" {
			inv, err := r.Invoices.Get(ctx, o.InvoiceNumber)
			if err != nil {
				return err
			}
			v.Invoice = inv.Clone()
		}
		return nil
	})
	return v, err
}
