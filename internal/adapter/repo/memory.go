package repo

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	domain "github.com/aq2208/gorder-settlement/internal/entity"
	"github.com/aq2208/gorder-settlement/internal/usecase"
)

// MemoryStore keeps everything in maps. Each transaction works on a private
// copy that replaces the live state only on success, so a failed fn leaves
// nothing behind.
type MemoryStore struct {
	mu    sync.Mutex
	state memState
}

type memState struct {
	orders        map[string]*domain.Order
	payments      map[string]*domain.Payment // by intent ref
	confirmations map[string]string          // confirmation id -> intent ref
	invoices      map[string]*domain.Invoice
	invoiceSeq    int64
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{state: memState{
		orders:        make(map[string]*domain.Order),
		payments:      make(map[string]*domain.Payment),
		confirmations: make(map[string]string),
		invoices:      make(map[string]*domain.Invoice),
	}}
}

func (s *MemoryStore) WithinTx(ctx context.Context, fn func(ctx context.Context, r usecase.Repos) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	work := s.state.clone()
	r := usecase.Repos{
		Orders:   memOrders{st: &work},
		Payments: memPayments{st: &work},
		Invoices: memInvoices{st: &work},
	}
	if err := fn(ctx, r); err != nil {
		return err
	}
	s.state = work
	return nil
}

func (st memState) clone() memState {
	cp := memState{
		orders:        make(map[string]*domain.Order, len(st.orders)),
		payments:      make(map[string]*domain.Payment, len(st.payments)),
		confirmations: make(map[string]string, len(st.confirmations)),
		invoices:      make(map[string]*domain.Invoice, len(st.invoices)),
		invoiceSeq:    st.invoiceSeq,
	}
	for k, v := range st.orders {
		cp.orders[k] = v.Clone()
	}
	for k, v := range st.payments {
		cp.payments[k] = v.Clone()
	}
	for k, v := range st.confirmations {
		cp.confirmations[k] = v
	}
	for k, v := range st.invoices {
		cp.invoices[k] = v.Clone()
	}
	return cp
}

type memOrders struct{ st *memState }

func (r memOrders) Create(_ context.Context, o *domain.Order) error {
	if _, ok := r.st.orders[o.Number]; ok {
		return fmt.Errorf("%w: order %s exists", domain.ErrConflict, o.Number)
	}
	o.Version = 1
	r.st.orders[o.Number] = o.Clone()
	return nil
}

func (r memOrders) Get(_ context.Context, number string) (*domain.Order, error) {
	o, ok := r.st.orders[number]
	if !ok {
		return nil, fmt.Errorf("%w: order %s", domain.ErrNotFound, number)
	}
	return o.Clone(), nil
}

func (r memOrders) Update(_ context.Context, o *domain.Order) error {
	cur, ok := r.st.orders[o.Number]
	if !ok {
		return fmt.Errorf("%w: order %s", domain.ErrNotFound, o.Number)
	}
	if cur.Version != o.Version {
		return fmt.Errorf("%w: order %s at version %d, have %d", domain.ErrConflict, o.Number, cur.Version, o.Version)
	}
	o.Version++
	r.st.orders[o.Number] = o.Clone()
	return nil
}

func (r memOrders) Delete(_ context.Context, number string) error {
	if _, ok := r.st.orders[number]; !ok {
		return fmt.Errorf("%w: order %s", domain.ErrNotFound, number)
	}
	delete(r.st.orders, number)
	return nil
}

type memPayments struct{ st *memState }

func (r memPayments) Create(_ context.Context, p *domain.Payment) error {
	if _, ok := r.st.payments[p.IntentRef]; ok {
		return fmt.Errorf("%w: intent %s exists", domain.ErrConflict, p.IntentRef)
	}
	r.st.payments[p.IntentRef] = p.Clone()
	return nil
}

func (r memPayments) GetByIntent(_ context.Context, intentRef string) (*domain.Payment, error) {
	p, ok := r.st.payments[intentRef]
	if !ok {
		return nil, fmt.Errorf("%w: payment intent %s", domain.ErrNotFound, intentRef)
	}
	return p.Clone(), nil
}

func (r memPayments) Update(_ context.Context, p *domain.Payment) error {
	if _, ok := r.st.payments[p.IntentRef]; !ok {
		return fmt.Errorf("%w: payment intent %s", domain.ErrNotFound, p.IntentRef)
	}
	r.st.payments[p.IntentRef] = p.Clone()
	return nil
}

func (r memPayments) ListPending(_ context.Context, orderNumber string) ([]*domain.Payment, error) {
	var out []*domain.Payment
	for _, p := range r.st.payments {
		if p.OrderNumber == orderNumber && p.Pending() {
			out = append(out, p.Clone())
		}
	}
	sortByCreated(out)
	return out, nil
}

func (r memPayments) ListStalePending(_ context.Context, createdBefore time.Time, limit int) ([]*domain.Payment, error) {
	var out []*domain.Payment
	for _, p := range r.st.payments {
		if p.Pending() && !p.CreatedAt.After(createdBefore) {
			out = append(out, p.Clone())
		}
	}
	sortByCreated(out)
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (r memPayments) ClaimConfirmation(_ context.Context, confirmationID, intentRef string) error {
	if _, ok := r.st.confirmations[confirmationID]; ok {
		return fmt.Errorf("%w: %s", domain.ErrDuplicateConfirmation, confirmationID)
	}
	r.st.confirmations[confirmationID] = intentRef
	return nil
}

type memInvoices struct{ st *memState }

func (r memInvoices) NextNumber(_ context.Context) (string, error) {
	r.st.invoiceSeq++
	return formatInvoiceNumber(r.st.invoiceSeq), nil
}

func (r memInvoices) Create(_ context.Context, inv *domain.Invoice) error {
	if _, ok := r.st.invoices[inv.Number]; ok {
		return fmt.Errorf("%w: invoice %s exists", domain.ErrConflict, inv.Number)
	}
	r.st.invoices[inv.Number] = inv.Clone()
	return nil
}

func (r memInvoices) Get(_ context.Context, number string) (*domain.Invoice, error) {
	inv, ok := r.st.invoices[number]
	if !ok {
		return nil, fmt.Errorf("%w: invoice %s", domain.ErrNotFound, number)
	}
	return inv.Clone(), nil
}

func (r memInvoices) Update(_ context.Context, inv *domain.Invoice) error {
	if _, ok := r.st.invoices[inv.Number]; !ok {
		return fmt.Errorf("%w: invoice %s", domain.ErrNotFound, inv.Number)
	}
	r.st.invoices[inv.Number] = inv.Clone()
	return nil
}

func (r memInvoices) Delete(_ context.Context, number string) error {
	if _, ok := r.st.invoices[number]; !ok {
		return fmt.Errorf("%w: invoice %s", domain.ErrNotFound, number)
	}
	delete(r.st.invoices, number)
	return nil
}

func sortByCreated(ps []*domain.Payment) {
	sort.Slice(ps, func(i, j int) bool { return ps[i].CreatedAt.Before(ps[j].CreatedAt) })
}

func formatInvoiceNumber(seq int64) string {
	return fmt.Sprintf("INV-%06d", seq)
}

// MemoryCatalog is a fixed menu, for dev runs and tests.
type MemoryCatalog struct {
	mu    sync.RWMutex
	items map[string]domain.CatalogItem
}

func NewMemoryCatalog(items ...domain.CatalogItem) *MemoryCatalog {
	c := &MemoryCatalog{items: make(map[string]domain.CatalogItem, len(items))}
	for _, it := range items {
		c.items[it.ID] = it
	}
	return c
}

func (c *MemoryCatalog) Put(it domain.CatalogItem) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.items[it.ID] = it
}

func (c *MemoryCatalog) Lookup(_ context.Context, itemID string) (domain.CatalogItem, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	it, ok := c.items[itemID]
	if !ok {
		return domain.CatalogItem{}, fmt.Errorf("%w: menu item %s", domain.ErrNotFound, itemID)
	}
	return it, nil
}

var (
	_ usecase.Store   = (*MemoryStore)(nil)
	_ usecase.Catalog = (*MemoryCatalog)(nil)
)
