package queue

import (
	"context"
	"errors"

	amqp "github.com/rabbitmq/amqp091-go"
)

// ErrPoison marks deliveries that can never succeed: bad JSON, an unknown
// status, a missing order number. The router drops them.
var ErrPoison = errors.New("poison message")

// Handler consumes one delivery. nil acks it, an ErrPoison drops it, and any
// other error gets one more try through a requeue.
type Handler interface {
	Handle(ctx context.Context, d amqp.Delivery) error
}
