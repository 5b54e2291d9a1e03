package kafka

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/IBM/sarama"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	domain "github.com/aq2208/gorder-settlement/internal/entity"
	"github.com/aq2208/gorder-settlement/internal/logging"
	"github.com/aq2208/gorder-settlement/internal/usecase"
)

type fakeApplier struct {
	got []domain.GatewayCallback
	err error
}

func (f *fakeApplier) HandleCallback(_ context.Context, cb domain.GatewayCallback) error {
	f.got = append(f.got, cb)
	return f.err
}

func TestPaymentCallbackHandler_RoutesKinds(t *testing.T) {
	app := &fakeApplier{}
	h := NewPaymentCallbackHandler(app)

	require.NoError(t, h.Handle(context.Background(), usecase.PaymentCallbackMsg{
		Event: "payment.captured", IntentRef: "pi_1", ConfirmationID: "pay_1", Signature: "ab",
	}))
	require.NoError(t, h.Handle(context.Background(), usecase.PaymentCallbackMsg{
		Event: "payment.failed", IntentRef: "pi_2", ErrorCode: "card_declined",
	}))
	require.Len(t, app.got, 2)
	assert.Equal(t, domain.CallbackSucceeded, app.got[0].Kind)
	assert.Equal(t, domain.CallbackFailed, app.got[1].Kind)
}

func TestPaymentCallbackHandler_Classifies(t *testing.T) {
	cases := []struct {
		name      string
		err       error
		permanent bool
	}{
		{"signature", fmt.Errorf("verify: %w", domain.ErrSignatureMismatch), true},
		{"cancelled order", domain.ErrOrderCancelled, true},
		{"unknown intent", domain.ErrNotFound, true},
		{"version race", domain.ErrConflict, false},
		{"db down", errors.New("dial tcp: refused"), false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			h := NewPaymentCallbackHandler(&fakeApplier{err: tc.err})
			err := h.Handle(context.Background(), usecase.PaymentCallbackMsg{
				Event: "payment.captured", IntentRef: "pi_1", ConfirmationID: "pay_1", Signature: "ab",
			})
			require.Error(t, err)
			assert.Equal(t, tc.permanent, errors.Is(err, ErrPermanent))
		})
	}
}

func TestPaymentCallbackHandler_InvalidEventIsPermanent(t *testing.T) {
	app := &fakeApplier{}
	err := NewPaymentCallbackHandler(app).Handle(context.Background(), usecase.PaymentCallbackMsg{Event: "payment.refunded", IntentRef: "pi_1"})
	assert.ErrorIs(t, err, ErrPermanent)
	assert.Empty(t, app.got)
}

func testCGHandler(fn HandlerFunc) *cgHandler {
	h := newCGHandler(fn, logging.New("test"))
	h.attempts, h.baseDelay, h.maxDelay = 3, time.Millisecond, time.Millisecond
	return h
}

func TestCGHandler_Process(t *testing.T) {
	var handled int
	h := testCGHandler(func(_ context.Context, ev usecase.PaymentCallbackMsg) error {
		handled++
		switch ev.IntentRef {
		case "pi_bad":
			return fmt.Errorf("%w: nope", ErrPermanent)
		case "pi_retry":
			return errors.New("transient")
		}
		return nil
	})

	meta, err := h.process(context.Background(), &sarama.ConsumerMessage{Value: []byte("{oops")})
	require.NoError(t, err)
	assert.Equal(t, "decode-error", meta)

	_, err = h.process(context.Background(), &sarama.ConsumerMessage{Value: []byte(`{"event":"payment.captured","intentRef":"pi_ok"}`)})
	require.NoError(t, err)

	meta, err = h.process(context.Background(), &sarama.ConsumerMessage{Value: []byte(`{"intentRef":"pi_bad"}`)})
	require.NoError(t, err)
	assert.Equal(t, "rejected", meta)

	_, err = h.process(context.Background(), &sarama.ConsumerMessage{Value: []byte(`{"intentRef":"pi_retry"}`)})
	require.Error(t, err)
	assert.Equal(t, 2+3, handled)
}

func TestCGHandler_ProcessRecoversWithinRetries(t *testing.T) {
	calls := 0
	h := testCGHandler(func(context.Context, usecase.PaymentCallbackMsg) error {
		calls++
		if calls < 3 {
			return domain.ErrConflict
		}
		return nil
	})
	_, err := h.process(context.Background(), &sarama.ConsumerMessage{Value: []byte(`{"intentRef":"pi_1"}`)})
	require.NoError(t, err)
	assert.Equal(t, 3, calls)
}

type fakeSession struct {
	ctx    context.Context
	marked []int64
}

func (s *fakeSession) Claims() map[string][]int32                        { return nil }
func (s *fakeSession) MemberID() string                                  { return "m-1" }
func (s *fakeSession) GenerationID() int32                               { return 1 }
func (s *fakeSession) MarkOffset(string, int32, int64, string)           {}
func (s *fakeSession) Commit()                                           {}
func (s *fakeSession) ResetOffset(string, int32, int64, string)          {}
func (s *fakeSession) Context() context.Context                          { return s.ctx }
func (s *fakeSession) MarkMessage(msg *sarama.ConsumerMessage, _ string) { s.marked = append(s.marked, msg.Offset) }

type fakeClaim struct{ msgs chan *sarama.ConsumerMessage }

func (c *fakeClaim) Topic() string                            { return "payments.callbacks" }
func (c *fakeClaim) Partition() int32                         { return 0 }
func (c *fakeClaim) InitialOffset() int64                     { return 0 }
func (c *fakeClaim) HighWaterMarkOffset() int64               { return int64(cap(c.msgs)) }
func (c *fakeClaim) Messages() <-chan *sarama.ConsumerMessage { return c.msgs }

func newFakeClaim(refs ...string) *fakeClaim {
	c := &fakeClaim{msgs: make(chan *sarama.ConsumerMessage, len(refs))}
	for i, ref := range refs {
		c.msgs <- &sarama.ConsumerMessage{
			Topic:  "payments.callbacks",
			Offset: int64(i),
			Value:  []byte(`{"event":"payment.captured","intentRef":"` + ref + `"}`),
		}
	}
	close(c.msgs)
	return c
}

func TestCGHandler_ConsumeClaimStopsAtStuckMessage(t *testing.T) {
	var seen []string
	h := testCGHandler(func(_ context.Context, ev usecase.PaymentCallbackMsg) error {
		seen = append(seen, ev.IntentRef)
		if ev.IntentRef == "pi_stuck" {
			return errors.New("db down")
		}
		return nil
	})
	sess := &fakeSession{ctx: context.Background()}

	err := h.ConsumeClaim(sess, newFakeClaim("pi_1", "pi_stuck", "pi_3"))
	require.Error(t, err)
	// offset 1 is never passed, so a later commit cannot skip it
	assert.Equal(t, []int64{0}, sess.marked)
	assert.NotContains(t, seen, "pi_3")
}

func TestCGHandler_ConsumeClaimMarksRejectedAndContinues(t *testing.T) {
	h := testCGHandler(func(_ context.Context, ev usecase.PaymentCallbackMsg) error {
		if ev.IntentRef == "pi_bad" {
			return fmt.Errorf("%w: unknown intent", ErrPermanent)
		}
		return nil
	})
	sess := &fakeSession{ctx: context.Background()}

	require.NoError(t, h.ConsumeClaim(sess, newFakeClaim("pi_1", "pi_bad", "pi_3")))
	assert.Equal(t, []int64{0, 1, 2}, sess.marked)
}

func TestCGHandler_ConsumeClaimStopsOnCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	h := testCGHandler(func(context.Context, usecase.PaymentCallbackMsg) error {
		cancel()
		return errors.New("transient")
	})
	h.baseDelay, h.maxDelay = time.Hour, time.Hour
	sess := &fakeSession{ctx: ctx}

	err := h.ConsumeClaim(sess, newFakeClaim("pi_1"))
	assert.ErrorIs(t, err, context.Canceled)
	assert.Empty(t, sess.marked)
}
