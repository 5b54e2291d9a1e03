package usecase

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/aq2208/gorder-settlement/internal/logging"
)

var ErrDispatchQueueFull = errors.New("event dispatch queue full")

const statusChangedChannel = "order.status_changed"

// Dispatcher delivers events after their transition has committed. Delivery
// is retried with exponential backoff; events that exhaust their attempts
// are parked in the outbox, never pushed back into the transition.
type Dispatcher struct {
	pub     EventPublisher
	park    OutboxRepo // optional
	queue   chan OrderStatusChangedMsg
	log     *slog.Logger
	timeout time.Duration

	maxAttempts int
	baseDelay   time.Duration
	maxDelay    time.Duration

	mu     sync.RWMutex
	closed bool
	wg     sync.WaitGroup
}

type DispatcherOption func(*Dispatcher)

func WithQueueSize(n int) DispatcherOption { return func(d *Dispatcher) { d.queue = make(chan OrderStatusChangedMsg, n) } }
func WithMaxAttempts(n int) DispatcherOption { return func(d *Dispatcher) { d.maxAttempts = n } }
func WithBackoff(base, max time.Duration) DispatcherOption {
	return func(d *Dispatcher) { d.baseDelay, d.maxDelay = base, max }
}
func WithOutbox(o OutboxRepo) DispatcherOption { return func(d *Dispatcher) { d.park = o } }

// NewDispatcher defaults: queue=1024, attempts=5, backoff 200ms..10s.
func NewDispatcher(pub EventPublisher, opts ...DispatcherOption) *Dispatcher {
	d := &Dispatcher{
		pub:         pub,
		queue:       make(chan OrderStatusChangedMsg, 1024),
		log:         logging.New("dispatcher"),
		timeout:     5 * time.Second,
		maxAttempts: 5,
		baseDelay:   200 * time.Millisecond,
		maxDelay:    10 * time.Second,
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// Start spawns workers; they exit once Stop drains the queue or ctx ends.
func (d *Dispatcher) Start(ctx context.Context, workers int) {
	if workers < 1 {
		workers = 1
	}
	for i := 0; i < workers; i++ {
		d.wg.Add(1)
		go func() {
			defer d.wg.Done()
			for {
				select {
				case <-ctx.Done():
					return
				case msg, ok := <-d.queue:
					if !ok {
						return
					}
					d.deliver(ctx, msg)
				}
			}
		}()
	}
}

func (d *Dispatcher) Enqueue(msg OrderStatusChangedMsg) error {
	d.mu.RLock()
	defer d.mu.RUnlock()
	if d.closed {
		dispatchFailures.WithLabelValues("closed").Inc()
		return ErrDispatchQueueFull
	}
	select {
	case d.queue <- msg:
		return nil
	default:
		dispatchFailures.WithLabelValues("enqueue").Inc()
		return ErrDispatchQueueFull
	}
}

// Stop closes the queue and waits for in-flight deliveries.
func (d *Dispatcher) Stop() {
	d.mu.Lock()
	if !d.closed {
		d.closed = true
		close(d.queue)
	}
	d.mu.Unlock()
	d.wg.Wait()
}

func (d *Dispatcher) deliver(ctx context.Context, msg OrderStatusChangedMsg) {
	delay := d.baseDelay
	var err error
	for attempt := 1; attempt <= d.maxAttempts; attempt++ {
		callCtx, cancel := context.WithTimeout(ctx, d.timeout)
		err = d.pub.PublishStatusChanged(callCtx, msg)
		cancel()
		if err == nil {
			return
		}
		d.log.Warn("dispatch attempt failed",
			"order", msg.OrderNumber, "status", msg.Status, "attempt", attempt, "err", err)
		if attempt == d.maxAttempts {
			break
		}
		select {
		case <-ctx.Done():
			return
		case <-time.After(delay):
		}
		delay *= 2
		if delay > d.maxDelay {
			delay = d.maxDelay
		}
	}

	dispatchFailures.WithLabelValues("deliver").Inc()
	d.log.Error("dispatch gave up", "order", msg.OrderNumber, "status", msg.Status, "err", err)
	if d.park == nil {
		return
	}
	payload, mErr := json.Marshal(msg)
	if mErr != nil {
		return
	}
	if pErr := d.park.InsertUndelivered(context.WithoutCancel(ctx), statusChangedChannel, payload, err.Error()); pErr != nil {
		d.log.Error("park undelivered event", "order", msg.OrderNumber, "err", pErr)
	}
}
