package usecase_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/aq2208/gorder-settlement/internal/adapter/cache"
	"github.com/aq2208/gorder-settlement/internal/adapter/gateway"
	"github.com/aq2208/gorder-settlement/internal/adapter/repo"
	domain "github.com/aq2208/gorder-settlement/internal/entity"
	"github.com/aq2208/gorder-settlement/internal/security"
	"github.com/aq2208/gorder-settlement/internal/usecase"
)

type fakeClock struct {
	mu sync.Mutex
	t  time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *fakeClock) Add(d time.Duration) {
	c.mu.Lock()
	c.t = c.t.Add(d)
	c.mu.Unlock()
}

type recordingSink struct {
	mu   sync.Mutex
	msgs []usecase.OrderStatusChangedMsg
	err  error
}

func (s *recordingSink) Enqueue(msg usecase.OrderStatusChangedMsg) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return s.err
	}
	s.msgs = append(s.msgs, msg)
	return nil
}

func (s *recordingSink) statuses() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]string, 0, len(s.msgs))
	for _, m := range s.msgs {
		out = append(out, m.Status)
	}
	return out
}

type mapCache struct {
	mu sync.Mutex
	m  map[string]string
}

func (c *mapCache) SetStatus(_ context.Context, number, status string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.m == nil {
		c.m = map[string]string{}
	}
	c.m[number] = status
	return nil
}

func (c *mapCache) GetStatus(_ context.Context, number string) (string, bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	s, ok := c.m[number]
	return s, ok, nil
}

func (c *mapCache) DeleteStatus(_ context.Context, number string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.m, number)
	return nil
}

var errGatewayDown = errors.New("gateway down")

// flakyProcessor fails CreateIntent while down is set.
type flakyProcessor struct {
	*gateway.SandboxProcessor
	mu   sync.Mutex
	down bool
}

func (p *flakyProcessor) CreateIntent(ctx context.Context, amount domain.Money, currency string, md map[string]string) (string, error) {
	p.mu.Lock()
	down := p.down
	p.mu.Unlock()
	if down {
		return "", errGatewayDown
	}
	return p.SandboxProcessor.CreateIntent(ctx, amount, currency, md)
}

func (p *flakyProcessor) setDown(v bool) {
	p.mu.Lock()
	p.down = v
	p.mu.Unlock()
}

type env struct {
	store    *repo.MemoryStore
	catalog  *repo.MemoryCatalog
	proc     *flakyProcessor
	signer   *security.PaymentSigner
	clock    *fakeClock
	events   *recordingSink
	cache    *mapCache
	idem     *cache.MemoryIdempotencyStore
	checkout *usecase.Checkout
	orders   *usecase.Orders
	payments *usecase.Payments
	invoices *usecase.Invoices
}

const intentTTL = 15 * time.Minute

// newEnv builds the use cases on the memory store with no tax, so totals are
// the plain item prices.
func newEnv(t *testing.T) *env {
	t.Helper()
	signer, err := security.NewPaymentSigner([]byte("usecase-test-key"))
	require.NoError(t, err)

	e := &env{
		store: repo.NewMemoryStore(),
		catalog: repo.NewMemoryCatalog(
			domain.CatalogItem{ID: "thali", Name: "Family Thali", Price: 100000, Available: true},
			domain.CatalogItem{ID: "lassi", Name: "Mango Lassi", Price: 8000, Available: true},
			domain.CatalogItem{ID: "kulfi", Name: "Kulfi", Price: 6000, Available: false},
		),
		proc:   &flakyProcessor{SandboxProcessor: gateway.NewSandboxProcessor(signer)},
		signer: signer,
		clock:  &fakeClock{t: time.Date(2026, 5, 4, 10, 0, 0, 0, time.UTC)},
		events: &recordingSink{},
		cache:  &mapCache{},
		idem:   cache.NewMemoryIdempotencyStore(time.Hour),
	}
	d := usecase.Deps{
		Store:  e.store,
		Locks:  usecase.NewKeyLock(),
		Events: e.events,
		Cache:  e.cache,
		Clock:  e.clock.Now,
	}
	tax := domain.TaxPolicy{Rate: decimal.Zero}
	e.checkout = usecase.NewCheckout(d, e.catalog, e.proc, signer, e.idem, usecase.CheckoutConfig{Tax: tax, Currency: "INR"})
	e.orders = usecase.NewOrders(d)
	e.payments = usecase.NewPayments(d, e.proc, signer, usecase.PaymentsConfig{Currency: "INR", IntentTTL: intentTTL})
	e.invoices = usecase.NewInvoices(d, domain.TaxCombined)
	return e
}

func (e *env) place(t *testing.T, lines ...usecase.CheckoutLine) *domain.Order {
	t.Helper()
	if len(lines) == 0 {
		lines = []usecase.CheckoutLine{{ItemID: "thali", Quantity: 1}}
	}
	out, err := e.checkout.Execute(context.Background(), usecase.PlaceOrderInput{
		Customer: domain.Customer{Name: "Ravi", Phone: "+919812345678"},
		Lines:    lines,
	})
	require.NoError(t, err)
	return out.Order
}

func (e *env) confirmed(t *testing.T) *domain.Order {
	t.Helper()
	o := e.place(t)
	res, err := e.orders.Confirm(context.Background(), o.Number)
	require.NoError(t, err)
	return res.Order
}

// pay opens an intent and confirms it through the sandbox.
func (e *env) pay(t *testing.T, number string, typ domain.PaymentType, custom domain.Money) usecase.VerifyResult {
	t.Helper()
	ctx := context.Background()
	in, err := e.payments.CreateIntent(ctx, number, typ, custom)
	require.NoError(t, err)
	conf, sig, err := e.proc.Capture(in.IntentRef)
	require.NoError(t, err)
	res, err := e.payments.Verify(ctx, in.IntentRef, conf, sig)
	require.NoError(t, err)
	return res
}
