package usecase

import (
	"time"

	domain "github.com/aq2208/gorder-settlement/internal/entity"
)

// Published on order.events after every committed status change.
type OrderStatusChangedMsg struct {
	EventID     string    `json:"eventId"`
	OrderNumber string    `json:"orderNumber"`
	Phone       string    `json:"phone"`
	From        string    `json:"from"`
	Status      string    `json:"status"`
	Reason      string    `json:"reason,omitempty"`
	OccurredAt  time.Time `json:"occurredAt"`
}

// Sent by the payment gateway on Kafka.
type PaymentCallbackMsg struct {
	Event          string `json:"event"` // payment.captured | payment.failed | payment.cancelled
	IntentRef      string `json:"intentRef"`
	ConfirmationID string `json:"confirmationId,omitempty"`
	Signature      string `json:"signature,omitempty"`
	ErrorCode      string `json:"errorCode,omitempty"`
	ErrorReason    string `json:"errorReason,omitempty"`
}

// Callback converts the wire event into the domain's tagged callback.
func (m PaymentCallbackMsg) Callback() (domain.GatewayCallback, error) {
	cb := domain.GatewayCallback{
		IntentRef:      m.IntentRef,
		ConfirmationID: m.ConfirmationID,
		Signature:      m.Signature,
		ErrorCode:      m.ErrorCode,
		ErrorReason:    m.ErrorReason,
	}
	switch m.Event {
	case "payment.captured", "payment.succeeded":
		cb.Kind = domain.CallbackSucceeded
	case "payment.failed":
		cb.Kind = domain.CallbackFailed
	case "payment.cancelled":
		cb.Kind = domain.CallbackCancelled
	default:
		cb.Kind = domain.CallbackKind(m.Event)
	}
	return cb, cb.Validate()
}
