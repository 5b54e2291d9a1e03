package kafka

import (
	"context"
	"errors"
	"fmt"

	domain "github.com/aq2208/gorder-settlement/internal/entity"
	"github.com/aq2208/gorder-settlement/internal/usecase"
)

// CallbackApplier is satisfied by *usecase.Payments.
type CallbackApplier interface {
	HandleCallback(ctx context.Context, cb domain.GatewayCallback) error
}

type PaymentCallbackHandler struct {
	Payments CallbackApplier
}

func NewPaymentCallbackHandler(p CallbackApplier) *PaymentCallbackHandler {
	return &PaymentCallbackHandler{Payments: p}
}

func (h *PaymentCallbackHandler) Handle(ctx context.Context, ev usecase.PaymentCallbackMsg) error {
	cb, err := ev.Callback()
	if err != nil {
		return fmt.Errorf("%w: %v", ErrPermanent, err)
	}
	err = h.Payments.HandleCallback(ctx, cb)
	if err != nil && isPermanent(err) {
		return fmt.Errorf("%w: %v", ErrPermanent, err)
	}
	return err
}

func isPermanent(err error) bool {
	for _, target := range []error{
		domain.ErrValidation,
		domain.ErrSignatureMismatch,
		domain.ErrNotFound,
		domain.ErrPrecondition,
		domain.ErrOrderCancelled,
		domain.ErrInvalidAmount,
		domain.ErrInvalidTransition,
	} {
		if errors.Is(err, target) {
			return true
		}
	}
	return false
}
