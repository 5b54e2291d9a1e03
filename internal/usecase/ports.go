package usecase

import (
	"context"
	"time"

	domain "github.com/aq2208/gorder-settlement/internal/entity"
)

type OrderRepo interface {
	Create(ctx context.Context, o *domain.Order) error
	Get(ctx context.Context, number string) (*domain.Order, error)
	// Update persists o if the stored version still equals o.Version, then
	// bumps o.Version. A stale version yields domain.ErrConflict.
	Update(ctx context.Context, o *domain.Order) error
	Delete(ctx context.Context, number string) error
}

type PaymentRepo interface {
	Create(ctx context.Context, p *domain.Payment) error
	GetByIntent(ctx context.Context, intentRef string) (*domain.Payment, error)
	Update(ctx context.Context, p *domain.Payment) error
	ListPending(ctx context.Context, orderNumber string) ([]*domain.Payment, error)
	ListStalePending(ctx context.Context, createdBefore time.Time, limit int) ([]*domain.Payment, error)
	// ClaimConfirmation records confirmationID as used. A second claim of the
	// same id fails with domain.ErrDuplicateConfirmation.
	ClaimConfirmation(ctx context.Context, confirmationID, intentRef string) error
}

type InvoiceRepo interface {
	NextNumber(ctx context.Context) (string, error)
	Create(ctx context.Context, inv *domain.Invoice) error
	Get(ctx context.Context, number string) (*domain.Invoice, error)
	Update(ctx context.Context, inv *domain.Invoice) error
	Delete(ctx context.Context, number string) error
}

// Repos is the set of repositories bound to one transaction.
type Repos struct {
	Orders   OrderRepo
	Payments PaymentRepo
	Invoices InvoiceRepo
}

// Store runs fn atomically: every write made through r commits together or
// not at all.
type Store interface {
	WithinTx(ctx context.Context, fn func(ctx context.Context, r Repos) error) error
}

// OutboxRepo parks events the dispatcher could not deliver.
type OutboxRepo interface {
	InsertUndelivered(ctx context.Context, channel string, payload []byte, lastErr string) error
}

type IdempotencyStore interface {
	TryLock(ctx context.Context, scope, key string) (bool, error)
	Remember(ctx context.Context, scope, key, value string) error
	Recall(ctx context.Context, scope, key string) (string, bool, error)
	// Release drops a lock whose request failed so the client may retry.
	Release(ctx context.Context, scope, key string) error
}

type OrderCache interface {
	SetStatus(ctx context.Context, orderNumber string, status string) error
	GetStatus(ctx context.Context, orderNumber string) (string, bool, error)
	DeleteStatus(ctx context.Context, orderNumber string) error
}

type Catalog interface {
	Lookup(ctx context.Context, itemID string) (domain.CatalogItem, error)
}

type Notifier interface {
	Notify(ctx context.Context, phone, orderNumber string, status domain.Status) error
}

type PaymentProcessor interface {
	CreateIntent(ctx context.Context, amount domain.Money, currency string, metadata map[string]string) (string, error)
}

type SignatureVerifier interface {
	VerifyPayment(intentRef, confirmationID, signature string) error
}

type EventPublisher interface {
	PublishStatusChanged(ctx context.Context, msg OrderStatusChangedMsg) error
}

// EventSink accepts events after a transition commits. Enqueue must not block.
type EventSink interface {
	Enqueue(msg OrderStatusChangedMsg) error
}
