package kafka

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/IBM/sarama"

	"github.com/aq2208/gorder-settlement/internal/logging"
	"github.com/aq2208/gorder-settlement/internal/usecase"
)

// ErrPermanent marks callbacks that will never apply; they are committed and skipped.
var ErrPermanent = errors.New("permanent callback error")

// HandlerFunc processes a decoded event.
type HandlerFunc func(ctx context.Context, ev usecase.PaymentCallbackMsg) error

// Consumer consumes a topic with a single handler.
type Consumer struct {
	Group  sarama.ConsumerGroup
	Topics []string
	Handle HandlerFunc
	Logger *slog.Logger

	drain sync.Once
}

func NewConsumer(group sarama.ConsumerGroup, topics []string, h HandlerFunc) *Consumer {
	return &Consumer{
		Group:  group,
		Topics: topics,
		Handle: h,
		Logger: logging.New("kafka-consumer"),
	}
}

func (c *Consumer) Start(ctx context.Context) error {
	handler := newCGHandler(c.Handle, c.Logger)
	// Start may be called again after a failure; the error channel is shared
	c.drain.Do(func() {
		go func() {
			for err := range c.Group.Errors() {
				c.Logger.Warn("consumer group error", "err", err)
			}
		}()
	})
	for {
		if err := c.Group.Consume(ctx, c.Topics, handler); err != nil {
			return err
		}
		// Consume returns on cancel, on a rebalance, or when a claim gave up on
		// a message; the next session resumes from the last committed offset.
		if ctx.Err() != nil {
			return ctx.Err()
		}
	}
}

type cgHandler struct {
	handle HandlerFunc
	logger *slog.Logger

	attempts  int
	baseDelay time.Duration
	maxDelay  time.Duration
}

func newCGHandler(h HandlerFunc, logger *slog.Logger) *cgHandler {
	return &cgHandler{
		handle:    h,
		logger:    logger,
		attempts:  5,
		baseDelay: 200 * time.Millisecond,
		maxDelay:  5 * time.Second,
	}
}

func (h *cgHandler) Setup(sarama.ConsumerGroupSession) error   { return nil }
func (h *cgHandler) Cleanup(sarama.ConsumerGroupSession) error { return nil }

// ConsumeClaim marks offsets strictly in order. A message that still fails
// after its retries ends the claim unmarked, so nothing behind it is committed.
func (h *cgHandler) ConsumeClaim(sess sarama.ConsumerGroupSession, claim sarama.ConsumerGroupClaim) error {
	for msg := range claim.Messages() {
		meta, err := h.process(sess.Context(), msg)
		if err != nil {
			return fmt.Errorf("partition %d offset %d: %w", msg.Partition, msg.Offset, err)
		}
		sess.MarkMessage(msg, meta)
	}
	return nil
}

// process returns the commit metadata once the offset may be committed, or
// the last transient error when it may not.
func (h *cgHandler) process(ctx context.Context, msg *sarama.ConsumerMessage) (string, error) {
	var ev usecase.PaymentCallbackMsg
	if err := json.Unmarshal(msg.Value, &ev); err != nil {
		h.logger.Warn("kafka decode error", "err", err, "off", msg.Offset)
		// mark to avoid reprocessing poison
		return "decode-error", nil
	}
	delay := h.baseDelay
	for attempt := 1; ; attempt++ {
		err := h.handle(ctx, ev)
		if err == nil {
			return "", nil
		}
		if errors.Is(err, ErrPermanent) {
			h.logger.Warn("callback rejected", "err", err, "intent", ev.IntentRef, "off", msg.Offset)
			return "rejected", nil
		}
		h.logger.Error("handler error", "err", err, "key", string(msg.Key), "off", msg.Offset, "attempt", attempt)
		if attempt >= h.attempts {
			return "", err
		}
		select {
		case <-ctx.Done():
			return "", ctx.Err()
		case <-time.After(delay):
		}
		if delay *= 2; delay > h.maxDelay {
			delay = h.maxDelay
		}
	}
}
