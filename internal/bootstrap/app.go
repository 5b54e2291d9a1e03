package bootstrap

import (
	"context"
	"database/sql"
	"errors"
	"time"

	_ "github.com/go-sql-driver/mysql"
	"github.com/redis/go-redis/v9"

	"github.com/aq2208/gorder-settlement/configs"
	domain "github.com/aq2208/gorder-settlement/internal/entity"
	"github.com/aq2208/gorder-settlement/internal/usecase"
)

// Engine bundles the use cases the transports drive.
type Engine struct {
	Checkout *usecase.Checkout
	Orders   *usecase.Orders
	Payments *usecase.Payments
	Invoices *usecase.Invoices
}

// Ports are the adapters an Engine runs on. Events, Cache and Idempotency
// may be nil.
type Ports struct {
	Store       usecase.Store
	Catalog     usecase.Catalog
	Processor   usecase.PaymentProcessor
	Verifier    usecase.SignatureVerifier
	Idempotency usecase.IdempotencyStore
	Cache       usecase.OrderCache
	Events      usecase.EventSink
	Clock       func() time.Time
}

type EngineConfig struct {
	Currency    string
	Tax         domain.TaxPolicy
	InvoiceMode domain.TaxMode
	IntentTTL   time.Duration
}

// EngineConfigFrom reads the money, tax and payment sections of cfg.
func EngineConfigFrom(cfg configs.Config) (EngineConfig, error) {
	rate := domain.DefaultTaxRate
	if cfg.Tax.Rate != "" {
		r, err := domain.ParseTaxRate(cfg.Tax.Rate)
		if err != nil {
			return EngineConfig{}, err
		}
		rate = r
	}
	mode, err := domain.ParseTaxMode(cfg.Tax.InvoiceMode)
	if err != nil {
		return EngineConfig{}, err
	}
	return EngineConfig{
		Currency:    cfg.Money.Currency,
		Tax:         domain.TaxPolicy{Rate: rate},
		InvoiceMode: mode,
		IntentTTL:   cfg.Payments.IntentTTL,
	}, nil
}

func NewEngine(p Ports, cfg EngineConfig) (*Engine, error) {
	if p.Store == nil || p.Catalog == nil || p.Processor == nil || p.Verifier == nil {
		return nil, errors.New("engine: store, catalog, processor and verifier are required")
	}
	if err := cfg.Tax.Validate(); err != nil {
		return nil, err
	}
	if cfg.InvoiceMode == "" {
		cfg.InvoiceMode = domain.TaxCombined
	}
	// one lock table shared by every use case so they serialize per order
	d := usecase.Deps{
		Store:  p.Store,
		Locks:  usecase.NewKeyLock(),
		Events: p.Events,
		Cache:  p.Cache,
		Clock:  p.Clock,
	}
	return &Engine{
		Checkout: usecase.NewCheckout(d, p.Catalog, p.Processor, p.Verifier, p.Idempotency,
			usecase.CheckoutConfig{Tax: cfg.Tax, Currency: cfg.Currency}),
		Orders: usecase.NewOrders(d),
		Payments: usecase.NewPayments(d, p.Processor, p.Verifier,
			usecase.PaymentsConfig{Currency: cfg.Currency, IntentTTL: cfg.IntentTTL}),
		Invoices: usecase.NewInvoices(d, cfg.InvoiceMode),
	}, nil
}

// OpenMySQL opens the pool and waits for the server to answer.
func OpenMySQL(ctx context.Context, cfg configs.Config) (*sql.DB, error) {
	db, err := sql.Open("mysql", cfg.MySQL.DSN)
	if err != nil {
		return nil, err
	}
	lifetime := cfg.MySQL.ConnMaxLifetime
	if lifetime <= 0 {
		lifetime = 30 * time.Minute
	}
	db.SetConnMaxLifetime(lifetime)
	db.SetMaxOpenConns(orDefault(cfg.MySQL.MaxOpenConns, 16))
	db.SetMaxIdleConns(orDefault(cfg.MySQL.MaxIdleConns, 16))

	pingCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		_ = db.Close()
		return nil, err
	}
	return db, nil
}

// OpenRedis returns nil when no address is configured.
func OpenRedis(ctx context.Context, cfg configs.Config) (*redis.Client, error) {
	if cfg.Redis.Addr == "" {
		return nil, nil
	}
	rdb := redis.NewClient(&redis.Options{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})
	if err := rdb.Ping(ctx).Err(); err != nil {
		_ = rdb.Close()
		return nil, err
	}
	return rdb, nil
}

func orDefault(n, def int) int {
	if n > 0 {
		return n
	}
	return def
}
