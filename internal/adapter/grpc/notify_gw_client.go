package grpc

import (
	"context"
	"time"

	domain "github.com/aq2208/gorder-settlement/internal/entity"
	"github.com/aq2208/gorder-settlement/internal/usecase"
)

const notifyMethod = "/notify.v1.Notifier/SendStatus"

type notifyRequest struct {
	Phone       string `json:"phone"`
	OrderNumber string `json:"order_number"`
	Status      string `json:"status"`
}

type notifyResponse struct {
	Accepted bool `json:"accepted"`
}

// NotifyGWClient pushes customer notifications through the notify gateway.
type NotifyGWClient struct {
	c caller
}

func NewNotifyGWClient(inv Invoker, timeout time.Duration, userAgent string) *NotifyGWClient {
	return &NotifyGWClient{c: newCaller(inv, timeout, userAgent)}
}

// Notify makes one extra attempt when the gateway reports a transient failure.
func (n *NotifyGWClient) Notify(ctx context.Context, phone, orderNumber string, st domain.Status) error {
	req := &notifyRequest{
		Phone:       phone,
		OrderNumber: orderNumber,
		Status:      string(st),
	}
	var resp notifyResponse
	err := n.c.call(ctx, notifyMethod, req, &resp)
	if err != nil && Retryable(err) && ctx.Err() == nil {
		err = n.c.call(ctx, notifyMethod, req, &resp)
	}
	return err
}

var _ usecase.Notifier = (*NotifyGWClient)(nil)
