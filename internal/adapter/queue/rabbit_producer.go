package queue

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/aq2208/gorder-settlement/internal/usecase"
	amqp "github.com/rabbitmq/amqp091-go"
)

// Topology names the exchange/queue pair status events travel through.
type Topology struct {
	Exchange   string
	RoutingKey string
	Queue      string
}

func DefaultTopology() Topology {
	return Topology{Exchange: "order.events", RoutingKey: "order.status_changed", Queue: "order.status.q"}
}

// RabbitProducer implements usecase.EventPublisher
type RabbitProducer struct {
	ch   *amqp.Channel
	topo Topology
}

// NewRabbitProducer sets up the exchange, queue, and binding once at startup.
func NewRabbitProducer(ch *amqp.Channel, topo Topology) (*RabbitProducer, error) {
	// 1. declare exchange (topic type, durable)
	if err := ch.ExchangeDeclare(
		topo.Exchange,
		"topic",
		true,  // durable
		false, // auto-delete
		false, // internal
		false, // no-wait
		nil,
	); err != nil {
		return nil, fmt.Errorf("declare exchange: %w", err)
	}

	// 2. declare queue
	q, err := ch.QueueDeclare(
		topo.Queue,
		true,  // durable
		false, // auto-delete
		false, // exclusive
		false, // no-wait
		nil,
	)
	if err != nil {
		return nil, fmt.Errorf("declare queue: %w", err)
	}

	// 3. bind queue → exchange
	if err := ch.QueueBind(q.Name, topo.RoutingKey, topo.Exchange, false, nil); err != nil {
		return nil, fmt.Errorf("queue bind: %w", err)
	}

	// 4. publisher confirms; PublishStatusChanged waits for the ack
	if err := ch.Confirm(false); err != nil {
		return nil, fmt.Errorf("enable confirm mode: %w", err)
	}

	return &RabbitProducer{ch: ch, topo: topo}, nil
}

// PublishStatusChanged sends an "order.status_changed" event to the exchange.
func (p *RabbitProducer) PublishStatusChanged(ctx context.Context, msg usecase.OrderStatusChangedMsg) error {
	body, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("marshal message: %w", err)
	}

	pub := amqp.Publishing{
		ContentType:  "application/json",
		DeliveryMode: amqp.Persistent, // survive broker restarts
		MessageId:    msg.EventID,
		Timestamp:    msg.OccurredAt,
		Body:         body,
	}

	conf, err := p.ch.PublishWithDeferredConfirmWithContext(ctx, p.topo.Exchange, p.topo.RoutingKey, false, false, pub)
	if err != nil {
		return fmt.Errorf("publish: %w", err)
	}
	ok, err := conf.WaitContext(ctx)
	if err != nil {
		return fmt.Errorf("publish confirm: %w", err)
	}
	if !ok {
		return fmt.Errorf("publish nacked by broker: event %s", msg.EventID)
	}
	return nil
}

var _ usecase.EventPublisher = (*RabbitProducer)(nil)
