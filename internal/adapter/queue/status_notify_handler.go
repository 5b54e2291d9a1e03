package queue

import (
	"context"
	"fmt"
	"log/slog"

	domain "github.com/aq2208/gorder-settlement/internal/entity"
	"github.com/aq2208/gorder-settlement/internal/logging"
	"github.com/aq2208/gorder-settlement/internal/usecase"
)

// StatusNotifyHandler tells the customer about a committed status change.
// Meant for JSONHandler[usecase.OrderStatusChangedMsg].
type StatusNotifyHandler struct {
	notifier usecase.Notifier
	log      *slog.Logger
}

func NewStatusNotifyHandler(n usecase.Notifier) *StatusNotifyHandler {
	return &StatusNotifyHandler{notifier: n, log: logging.New("status-notify")}
}

func (h *StatusNotifyHandler) HandleStatusChanged(ctx context.Context, msg usecase.OrderStatusChangedMsg) error {
	st, err := domain.ParseStatus(msg.Status)
	if err != nil || msg.OrderNumber == "" {
		return fmt.Errorf("%w: event %s status=%q order=%q", ErrPoison, msg.EventID, msg.Status, msg.OrderNumber)
	}
	if msg.Phone == "" {
		h.log.Debug("no phone on order, skipping notify", "order", msg.OrderNumber)
		return nil
	}
	if err := h.notifier.Notify(ctx, msg.Phone, msg.OrderNumber, st); err != nil {
		return fmt.Errorf("notify %s: %w", msg.OrderNumber, err)
	}
	return nil
}

// DirectPublisher hands events straight to the notify handler when no broker
// is configured.
type DirectPublisher struct {
	h *StatusNotifyHandler
}

func NewDirectPublisher(h *StatusNotifyHandler) *DirectPublisher {
	return &DirectPublisher{h: h}
}

func (p *DirectPublisher) PublishStatusChanged(ctx context.Context, msg usecase.OrderStatusChangedMsg) error {
	return p.h.HandleStatusChanged(ctx, msg)
}

// LogNotifier stands in for the notify gateway in local runs.
type LogNotifier struct {
	log *slog.Logger
}

func NewLogNotifier() *LogNotifier { return &LogNotifier{log: logging.New("notifier")} }

func (n *LogNotifier) Notify(_ context.Context, phone, orderNumber string, st domain.Status) error {
	n.log.Info("customer notified", "phone", maskPhone(phone), "order", orderNumber, "status", st)
	return nil
}

func maskPhone(p string) string {
	if len(p) <= 4 {
		return "****"
	}
	return "****" + p[len(p)-4:]
}

var (
	_ usecase.EventPublisher = (*DirectPublisher)(nil)
	_ usecase.Notifier       = (*LogNotifier)(nil)
)
