package domain

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func pendingPayment() *Payment {
	return &Payment{IntentRef: "pi_1", Amount: 10000, Type: PaymentAdvance, Outcome: OutcomePending, CreatedAt: t0}
}

func TestPayment_SettlesOnce(t *testing.T) {
	p := pendingPayment()
	require.NoError(t, p.Succeed("pay_1", "sig", t0.Add(time.Minute)))
	assert.Equal(t, OutcomeSucceeded, p.Outcome)
	assert.Equal(t, "pay_1", p.ConfirmationID)
	assert.Equal(t, t0.Add(time.Minute), p.SettledAt)

	assert.ErrorIs(t, p.Succeed("pay_2", "sig", t0), ErrPrecondition)
	assert.ErrorIs(t, p.Fail("x", "y", t0), ErrPrecondition)
	assert.ErrorIs(t, p.Cancel("z", t0), ErrPrecondition)
	assert.Equal(t, "pay_1", p.ConfirmationID)
}

func TestPayment_FailAndCancel(t *testing.T) {
	p := pendingPayment()
	require.NoError(t, p.Fail("card_declined", "insufficient funds", t0))
	assert.Equal(t, OutcomeFailed, p.Outcome)
	assert.Equal(t, "card_declined", p.FailureCode)

	p = pendingPayment()
	require.NoError(t, p.Cancel("abandoned", t0))
	assert.Equal(t, OutcomeCancelled, p.Outcome)
}

func TestPayment_Expired(t *testing.T) {
	p := pendingPayment()
	assert.False(t, p.Expired(t0.Add(29*time.Minute), 30*time.Minute))
	assert.True(t, p.Expired(t0.Add(30*time.Minute), 30*time.Minute))
	assert.False(t, p.Expired(t0.Add(time.Hour), 0), "zero ttl never expires")

	require.NoError(t, p.Fail("", "", t0))
	assert.False(t, p.Expired(t0.Add(time.Hour), time.Minute))
}

func TestGatewayCallback_Validate(t *testing.T) {
	assert.NoError(t, GatewayCallback{Kind: CallbackSucceeded, IntentRef: "pi", ConfirmationID: "pay", Signature: "s"}.Validate())
	assert.NoError(t, GatewayCallback{Kind: CallbackFailed, IntentRef: "pi"}.Validate())
	assert.ErrorIs(t, GatewayCallback{Kind: CallbackSucceeded, IntentRef: "pi"}.Validate(), ErrValidation)
	assert.ErrorIs(t, GatewayCallback{Kind: CallbackFailed}.Validate(), ErrValidation)
	assert.ErrorIs(t, GatewayCallback{Kind: "refunded", IntentRef: "pi"}.Validate(), ErrValidation)
}

func TestParsePaymentType(t *testing.T) {
	pt, err := ParsePaymentType("Remaining")
	require.NoError(t, err)
	assert.Equal(t, PaymentRemaining, pt)
	_, err = ParsePaymentType("tip")
	assert.ErrorIs(t, err, ErrValidation)
}
