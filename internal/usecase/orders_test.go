package usecase_test

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	domain "github.com/aq2208/gorder-settlement/internal/entity"
	"github.com/aq2208/gorder-settlement/internal/usecase"
)

func TestOrders_FulfilmentFlow(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	o := e.confirmed(t)

	for _, to := range []domain.Status{domain.StatusPreparing, domain.StatusReady, domain.StatusDelivered} {
		res, err := e.orders.Advance(ctx, o.Number, to)
		require.NoError(t, err)
		assert.Equal(t, to, res.Order.Status)
	}
	_, err := e.orders.Advance(ctx, o.Number, domain.StatusReady)
	assert.ErrorIs(t, err, domain.ErrInvalidTransition)
	_, err = e.orders.Cancel(ctx, o.Number, "late")
	assert.ErrorIs(t, err, domain.ErrInvalidTransition)

	assert.Equal(t, []string{"pending", "confirmed", "preparing", "ready", "delivered"}, e.events.statuses())

	st, err := e.orders.Status(ctx, o.Number)
	require.NoError(t, err)
	assert.Equal(t, domain.StatusDelivered, st)
}

func TestOrders_AdvanceMaySkipButNotRewind(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	o := e.confirmed(t)

	_, err := e.orders.Advance(ctx, o.Number, domain.StatusReady)
	require.NoError(t, err)
	_, err = e.orders.Advance(ctx, o.Number, domain.StatusPreparing)
	assert.ErrorIs(t, err, domain.ErrInvalidTransition)

	pending := e.place(t)
	_, err = e.orders.Advance(ctx, pending.Number, domain.StatusPreparing)
	assert.ErrorIs(t, err, domain.ErrInvalidTransition)
}

func TestOrders_DenyClosesOpenIntents(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	o := e.place(t)

	_, err := e.orders.Deny(ctx, o.Number, "  ")
	assert.ErrorIs(t, err, domain.ErrValidation)

	in, err := e.payments.CreateIntent(ctx, o.Number, domain.PaymentFull, 0)
	require.NoError(t, err)

	res, err := e.orders.Deny(ctx, o.Number, "out of stock")
	require.NoError(t, err)
	assert.Equal(t, domain.StatusCancelled, res.Order.Status)
	assert.Equal(t, "out of stock", res.Order.DenyReason)

	// the intent was cancelled with the order, so a late failure report is refused
	_, err = e.payments.Fail(ctx, in.IntentRef, "timeout", "")
	assert.ErrorIs(t, err, domain.ErrPrecondition)

	_, err = e.orders.Confirm(ctx, o.Number)
	assert.ErrorIs(t, err, domain.ErrInvalidTransition)
}

func TestOrders_CancelCancelsInvoice(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	o := e.confirmed(t)

	v, err := e.invoices.Generate(ctx, o.Number)
	require.NoError(t, err)

	_, err = e.orders.Cancel(ctx, o.Number, "customer request")
	require.NoError(t, err)

	inv, err := e.invoices.Snapshot(ctx, v.Invoice.Number)
	require.NoError(t, err)
	assert.Equal(t, domain.InvoiceCancelled, inv.Status)
}

func TestOrders_DeletePolicies(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()

	live := e.confirmed(t)
	err := e.orders.Delete(ctx, live.Number)
	assert.ErrorIs(t, err, domain.ErrPrecondition)

	o := e.confirmed(t)
	v, err := e.invoices.Generate(ctx, o.Number)
	require.NoError(t, err)
	invNumber := v.Invoice.Number

	// invoice of an order in flight stays
	assert.ErrorIs(t, e.invoices.Delete(ctx, invNumber), domain.ErrPrecondition)

	for _, to := range []domain.Status{domain.StatusPreparing, domain.StatusReady, domain.StatusDelivered} {
		_, err := e.orders.Advance(ctx, o.Number, to)
		require.NoError(t, err)
	}
	// delivered but still invoiced
	assert.ErrorIs(t, e.orders.Delete(ctx, o.Number), domain.ErrPrecondition)

	require.NoError(t, e.invoices.Delete(ctx, invNumber))
	_, err = e.invoices.Snapshot(ctx, invNumber)
	assert.ErrorIs(t, err, domain.ErrNotFound)

	require.NoError(t, e.orders.Delete(ctx, o.Number))
	_, err = e.orders.Get(ctx, o.Number)
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestOrders_CancelledOrderKeepsInvoice(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	o := e.confirmed(t)

	v, err := e.invoices.Generate(ctx, o.Number)
	require.NoError(t, err)
	_, err = e.orders.Cancel(ctx, o.Number, "customer request")
	require.NoError(t, err)

	assert.ErrorIs(t, e.invoices.Delete(ctx, v.Invoice.Number), domain.ErrPrecondition)
	inv, err := e.invoices.Snapshot(ctx, v.Invoice.Number)
	require.NoError(t, err)
	assert.Equal(t, domain.InvoiceCancelled, inv.Status)

	// the order still carries the invoice, so it cannot go either
	assert.ErrorIs(t, e.orders.Delete(ctx, o.Number), domain.ErrPrecondition)
}

func TestOrders_DeleteDeniedOrder(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	o := e.place(t)
	_, err := e.orders.Deny(ctx, o.Number, "closed")
	require.NoError(t, err)
	assert.NoError(t, e.orders.Delete(ctx, o.Number))
}

func TestOrders_DeleteEvictsStatusCache(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	o := e.place(t)
	_, err := e.orders.Deny(ctx, o.Number, "closed")
	require.NoError(t, err)

	st, err := e.orders.Status(ctx, o.Number)
	require.NoError(t, err)
	assert.Equal(t, domain.StatusCancelled, st)

	require.NoError(t, e.orders.Delete(ctx, o.Number))
	_, ok, _ := e.cache.GetStatus(ctx, o.Number)
	assert.False(t, ok)
	_, err = e.orders.Status(ctx, o.Number)
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestOrders_NotifyFailureDoesNotUndoTransition(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	o := e.place(t)

	e.events.mu.Lock()
	e.events.err = usecase.ErrDispatchQueueFull
	e.events.mu.Unlock()

	res, err := e.orders.Confirm(ctx, o.Number)
	require.NoError(t, err)
	assert.True(t, errors.Is(res.NotifyErr, usecase.ErrDispatchQueueFull))

	v, err := e.orders.Get(ctx, o.Number)
	require.NoError(t, err)
	assert.Equal(t, domain.StatusConfirmed, v.Order.Status)
}

func TestOrders_StatusFallsBackToStore(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	o := e.place(t)

	e.cache.mu.Lock()
	e.cache.m = nil
	e.cache.mu.Unlock()

	st, err := e.orders.Status(ctx, o.Number)
	require.NoError(t, err)
	assert.Equal(t, domain.StatusPending, st)
	cached, ok, _ := e.cache.GetStatus(ctx, o.Number)
	assert.True(t, ok)
	assert.Equal(t, "pending", cached)

	_, err = e.orders.Status(ctx, "ORD-missing")
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestInvoices_GenerateOnce(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()

	pending := e.place(t)
	_, err := e.invoices.Generate(ctx, pending.Number)
	assert.ErrorIs(t, err, domain.ErrPrecondition)

	o := e.confirmed(t)
	v, err := e.invoices.Generate(ctx, o.Number)
	require.NoError(t, err)
	assert.Equal(t, "INV-000001", v.Invoice.Number)
	assert.Equal(t, v.Invoice.Number, v.Order.InvoiceNumber)
	assert.Equal(t, o.TotalAmount, v.Invoice.TotalAmount)
	assert.Equal(t, domain.PaymentStatusUnpaid, v.Invoice.PaymentStatus)

	_, err = e.invoices.Generate(ctx, o.Number)
	assert.ErrorIs(t, err, domain.ErrAlreadyGenerated)

	sent, err := e.invoices.MarkSent(ctx, v.Invoice.Number)
	require.NoError(t, err)
	assert.Equal(t, domain.InvoiceSent, sent.Status)
}

func TestInvoices_ResyncMirrorsPayments(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	o := e.confirmed(t)

	e.pay(t, o.Number, domain.PaymentAdvance, 10000)
	v, err := e.invoices.Generate(ctx, o.Number)
	require.NoError(t, err)
	// an invoice generated after a payment starts from the received amount
	assert.Equal(t, domain.Money(10000), v.Invoice.ReceivedAmount)
	assert.Equal(t, domain.PaymentStatusPartial, v.Invoice.PaymentStatus)

	v, err = e.invoices.Resync(ctx, o.Number)
	require.NoError(t, err)
	assert.Equal(t, domain.Money(90000), v.Invoice.Balance)

	other := e.confirmed(t)
	_, err = e.invoices.Resync(ctx, other.Number)
	assert.ErrorIs(t, err, domain.ErrNotFound)
}
