package usecase_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	domain "github.com/aq2208/gorder-settlement/internal/entity"
	"github.com/aq2208/gorder-settlement/internal/usecase"
)

func TestCheckout_BuildCartMergesRepeatedItems(t *testing.T) {
	e := newEnv(t)
	cart, err := e.checkout.BuildCart(context.Background(), []usecase.CheckoutLine{
		{ItemID: "lassi", Quantity: 1},
		{ItemID: "thali", Quantity: 1},
		{ItemID: "lassi", Quantity: 2},
	})
	require.NoError(t, err)
	require.Len(t, cart.Lines, 2)
	assert.Equal(t, 3, cart.Quantity("lassi"))
	total, err := cart.Total()
	require.NoError(t, err)
	assert.Equal(t, domain.Money(124000), total)
}

func TestCheckout_RejectsBadLines(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	cases := []struct {
		name  string
		lines []usecase.CheckoutLine
		want  error
	}{
		{"empty", nil, domain.ErrEmptyCart},
		{"zero quantity", []usecase.CheckoutLine{{ItemID: "thali", Quantity: 0}}, domain.ErrValidation},
		{"unavailable", []usecase.CheckoutLine{{ItemID: "kulfi", Quantity: 1}}, domain.ErrValidation},
		{"unknown", []usecase.CheckoutLine{{ItemID: "dosa", Quantity: 1}}, domain.ErrNotFound},
		{"huge quantity", []usecase.CheckoutLine{{ItemID: "thali", Quantity: 100_000_000_000_000}}, domain.ErrValidation},
		{"merged lines over cap", []usecase.CheckoutLine{
			{ItemID: "lassi", Quantity: domain.MaxLineQuantity},
			{ItemID: "lassi", Quantity: 1},
		}, domain.ErrValidation},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := e.checkout.Quote(ctx, tc.lines)
			assert.ErrorIs(t, err, tc.want)
		})
	}
}

func TestCheckout_PlacesPendingOrder(t *testing.T) {
	e := newEnv(t)
	o := e.place(t, usecase.CheckoutLine{ItemID: "thali", Quantity: 1}, usecase.CheckoutLine{ItemID: "lassi", Quantity: 2})

	assert.Equal(t, domain.StatusPending, o.Status)
	assert.Equal(t, domain.Money(116000), o.TotalAmount)
	assert.Equal(t, domain.Money(116000), o.RemainingAmount)
	assert.Regexp(t, `^ORD-260504-[0-9A-F]{8}$`, o.Number)
	assert.Equal(t, []string{"pending"}, e.events.statuses())

	s, ok, _ := e.cache.GetStatus(context.Background(), o.Number)
	assert.True(t, ok)
	assert.Equal(t, "pending", s)
}

func TestCheckout_RequiresPhone(t *testing.T) {
	e := newEnv(t)
	_, err := e.checkout.Execute(context.Background(), usecase.PlaceOrderInput{
		Lines: []usecase.CheckoutLine{{ItemID: "thali", Quantity: 1}},
	})
	assert.ErrorIs(t, err, domain.ErrValidation)
}

func TestCheckout_IdempotencyKeyReplays(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	in := usecase.PlaceOrderInput{
		IdempotencyKey: "cart-42",
		Customer:       domain.Customer{Phone: "+919800000001"},
		Lines:          []usecase.CheckoutLine{{ItemID: "thali", Quantity: 1}},
	}

	first, err := e.checkout.Execute(ctx, in)
	require.NoError(t, err)
	assert.False(t, first.Replayed)

	again, err := e.checkout.Execute(ctx, in)
	require.NoError(t, err)
	assert.True(t, again.Replayed)
	assert.Equal(t, first.Order.Number, again.Order.Number)

	// same key from another customer is a different request
	in.Customer.Phone = "+919800000002"
	other, err := e.checkout.Execute(ctx, in)
	require.NoError(t, err)
	assert.NotEqual(t, first.Order.Number, other.Order.Number)
}

func TestCheckout_InFlightKeyIsDuplicate(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	ok, err := e.idem.TryLock(ctx, "+919800000001", "cart-7")
	require.NoError(t, err)
	require.True(t, ok)

	_, err = e.checkout.Execute(ctx, usecase.PlaceOrderInput{
		IdempotencyKey: "cart-7",
		Customer:       domain.Customer{Phone: "+919800000001"},
		Lines:          []usecase.CheckoutLine{{ItemID: "thali", Quantity: 1}},
	})
	assert.ErrorIs(t, err, usecase.ErrDuplicate)
}

func TestCheckout_FailedAttemptReleasesKey(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	in := usecase.PlaceOrderInput{
		IdempotencyKey: "cart-9",
		Customer:       domain.Customer{Phone: "+919800000001"},
		Lines:          []usecase.CheckoutLine{{ItemID: "kulfi", Quantity: 1}},
	}
	_, err := e.checkout.Execute(ctx, in)
	require.ErrorIs(t, err, domain.ErrValidation)

	in.Lines = []usecase.CheckoutLine{{ItemID: "thali", Quantity: 1}}
	out, err := e.checkout.Execute(ctx, in)
	require.NoError(t, err)
	assert.False(t, out.Replayed)
}

func TestCheckout_AdvanceIsBoundToOrder(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	lines := []usecase.CheckoutLine{{ItemID: "thali", Quantity: 1}}

	_, err := e.checkout.CreateIntent(ctx, lines, 100000)
	assert.ErrorIs(t, err, domain.ErrInvalidAmount)

	ci, err := e.checkout.CreateIntent(ctx, lines, 30000)
	require.NoError(t, err)
	assert.Equal(t, domain.Money(100000), ci.Total)
	assert.Equal(t, "INR", ci.Currency)

	conf, sig, err := e.proc.Capture(ci.IntentRef)
	require.NoError(t, err)
	in := usecase.PlaceOrderInput{
		Customer: domain.Customer{Phone: "+919800000001"},
		Lines:    lines,
		Advance:  &usecase.AdvanceProof{IntentRef: ci.IntentRef, ConfirmationID: conf, Signature: sig},
	}

	out, err := e.checkout.Execute(ctx, in)
	require.NoError(t, err)
	o := out.Order
	assert.Equal(t, domain.Money(30000), o.AdvancePayment)
	assert.Equal(t, domain.Money(30000), o.ReceivedAmount)
	assert.Equal(t, domain.Money(70000), o.RemainingAmount)

	// the same proof replays the order instead of placing a second one
	again, err := e.checkout.Execute(ctx, in)
	require.NoError(t, err)
	assert.True(t, again.Replayed)
	assert.Equal(t, o.Number, again.Order.Number)

	// the remaining amount is what the next quote asks for
	_, err = e.orders.Confirm(ctx, o.Number)
	require.NoError(t, err)
	res := e.pay(t, o.Number, domain.PaymentRemaining, 0)
	assert.Equal(t, domain.Money(0), res.Order.RemainingAmount)
}

func TestCheckout_AdvanceWithBadSignature(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	lines := []usecase.CheckoutLine{{ItemID: "thali", Quantity: 1}}

	ci, err := e.checkout.CreateIntent(ctx, lines, 30000)
	require.NoError(t, err)
	conf, _, err := e.proc.Capture(ci.IntentRef)
	require.NoError(t, err)

	_, err = e.checkout.Execute(ctx, usecase.PlaceOrderInput{
		Customer: domain.Customer{Phone: "+919800000001"},
		Lines:    lines,
		Advance:  &usecase.AdvanceProof{IntentRef: ci.IntentRef, ConfirmationID: conf, Signature: "deadbeef"},
	})
	assert.ErrorIs(t, err, domain.ErrSignatureMismatch)
}

func TestCheckout_OrderIntentCannotPayForCheckout(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	o := e.confirmed(t)

	in, err := e.payments.CreateIntent(ctx, o.Number, domain.PaymentAdvance, 10000)
	require.NoError(t, err)
	conf, sig, err := e.proc.Capture(in.IntentRef)
	require.NoError(t, err)

	_, err = e.checkout.Execute(ctx, usecase.PlaceOrderInput{
		Customer: domain.Customer{Phone: "+919800000001"},
		Lines:    []usecase.CheckoutLine{{ItemID: "thali", Quantity: 1}},
		Advance:  &usecase.AdvanceProof{IntentRef: in.IntentRef, ConfirmationID: conf, Signature: sig},
	})
	assert.ErrorIs(t, err, domain.ErrPrecondition)
}
