package queue

import (
	"context"
	"errors"
	"fmt"
	"testing"

	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	domain "github.com/aq2208/gorder-settlement/internal/entity"
	"github.com/aq2208/gorder-settlement/internal/usecase"
)

type recNotifier struct {
	calls []string
	err   error
}

func (r *recNotifier) Notify(_ context.Context, phone, orderNumber string, st domain.Status) error {
	r.calls = append(r.calls, phone+"|"+orderNumber+"|"+string(st))
	return r.err
}

func TestStatusNotifyHandler_ThroughJSONHandler(t *testing.T) {
	n := &recNotifier{}
	h := JSONHandler[usecase.OrderStatusChangedMsg]{HandleFunc: NewStatusNotifyHandler(n).HandleStatusChanged}

	err := h.Handle(context.Background(), amqp.Delivery{
		Body: []byte(`{"eventId":"e1","orderNumber":"ORD-1","phone":"+919999900000","from":"pending","status":"confirmed"}`),
	})
	require.NoError(t, err)
	assert.Equal(t, []string{"+919999900000|ORD-1|confirmed"}, n.calls)
}

func TestStatusNotifyHandler_Poison(t *testing.T) {
	n := &recNotifier{}
	h := JSONHandler[usecase.OrderStatusChangedMsg]{HandleFunc: NewStatusNotifyHandler(n).HandleStatusChanged}

	err := h.Handle(context.Background(), amqp.Delivery{Body: []byte(`{not json`)})
	assert.ErrorIs(t, err, ErrPoison)

	err = h.Handle(context.Background(), amqp.Delivery{Body: []byte(`{"orderNumber":"ORD-1","status":"teleported"}`)})
	assert.ErrorIs(t, err, ErrPoison)
	assert.Empty(t, n.calls)
}

func TestDirectPublisher_SurfacesNotifierError(t *testing.T) {
	n := &recNotifier{err: errors.New("sms down")}
	p := NewDirectPublisher(NewStatusNotifyHandler(n))

	err := p.PublishStatusChanged(context.Background(), usecase.OrderStatusChangedMsg{
		OrderNumber: "ORD-1", Phone: "+919999900000", Status: "cancelled",
	})
	require.Error(t, err)
	assert.NotErrorIs(t, err, ErrPoison)

	// no phone: nothing to send
	require.NoError(t, p.PublishStatusChanged(context.Background(), usecase.OrderStatusChangedMsg{
		OrderNumber: "ORD-2", Status: "confirmed",
	}))
	assert.Len(t, n.calls, 1)
}

func TestMaskPhone(t *testing.T) {
	assert.Equal(t, "****0000", maskPhone("+919999900000"))
	assert.Equal(t, "****", maskPhone("12"))
}

func TestShouldRequeue(t *testing.T) {
	transient := errors.New("notifier timeout")
	assert.True(t, shouldRequeue(transient, false))
	assert.False(t, shouldRequeue(transient, true))
	assert.False(t, shouldRequeue(fmt.Errorf("decode: %w", ErrPoison), false))
}
