package gateway

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	domain "github.com/aq2208/gorder-settlement/internal/entity"
	"github.com/aq2208/gorder-settlement/internal/security"
)

func TestSandboxProcessor_CaptureIsVerifiable(t *testing.T) {
	signer, err := security.NewPaymentSigner([]byte("0123456789abcdef"))
	require.NoError(t, err)
	sb := NewSandboxProcessor(signer)

	ref, err := sb.CreateIntent(context.Background(), 26250, "INR", nil)
	require.NoError(t, err)
	assert.Contains(t, ref, "pi_")

	amt, ok := sb.Amount(ref)
	require.True(t, ok)
	assert.Equal(t, domain.Money(26250), amt)

	conf, sig, err := sb.Capture(ref)
	require.NoError(t, err)
	assert.NoError(t, signer.VerifyPayment(ref, conf, sig))
	assert.ErrorIs(t, signer.VerifyPayment(ref, conf+"x", sig), domain.ErrSignatureMismatch)
}

func TestSandboxProcessor_Rejects(t *testing.T) {
	signer, _ := security.NewPaymentSigner([]byte("0123456789abcdef"))
	sb := NewSandboxProcessor(signer)

	_, err := sb.CreateIntent(context.Background(), 0, "INR", nil)
	assert.ErrorIs(t, err, domain.ErrInvalidAmount)

	_, _, err = sb.Capture("pi_missing")
	assert.Error(t, err)
}
