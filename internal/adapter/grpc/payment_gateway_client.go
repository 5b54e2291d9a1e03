package grpc

import (
	"context"
	"errors"
	"fmt"
	"time"

	domain "github.com/aq2208/gorder-settlement/internal/entity"
	"github.com/aq2208/gorder-settlement/internal/usecase"
)

const createIntentMethod = "/payments.v1.Gateway/CreateIntent"

type createIntentRequest struct {
	AmountMinor int64             `json:"amount_minor"`
	Currency    string            `json:"currency"`
	Metadata    map[string]string `json:"metadata,omitempty"`
}

type createIntentResponse struct {
	IntentRef string `json:"intent_ref"`
}

// PaymentGatewayClient creates payment intents at the external gateway.
type PaymentGatewayClient struct {
	c caller
}

func NewPaymentGatewayClient(inv Invoker, timeout time.Duration, userAgent string) *PaymentGatewayClient {
	return &PaymentGatewayClient{c: newCaller(inv, timeout, userAgent)}
}

func (p *PaymentGatewayClient) CreateIntent(ctx context.Context, amount domain.Money, currency string, md map[string]string) (string, error) {
	var resp createIntentResponse
	err := p.c.call(ctx, createIntentMethod, &createIntentRequest{
		AmountMinor: int64(amount),
		Currency:    currency,
		Metadata:    md,
	}, &resp)
	if err != nil {
		return "", fmt.Errorf("gateway create intent: %w", err)
	}
	if resp.IntentRef == "" {
		return "", errors.New("gateway create intent: empty intent ref")
	}
	return resp.IntentRef, nil
}

var _ usecase.PaymentProcessor = (*PaymentGatewayClient)(nil)
