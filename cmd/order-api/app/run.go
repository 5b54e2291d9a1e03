package app

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rabbitmq/amqp091-go"

	"github.com/aq2208/gorder-settlement/configs"
	"github.com/aq2208/gorder-settlement/internal/adapter/cache"
	"github.com/aq2208/gorder-settlement/internal/adapter/gateway"
	grpcadapter "github.com/aq2208/gorder-settlement/internal/adapter/grpc"
	"github.com/aq2208/gorder-settlement/internal/adapter/http"
	"github.com/aq2208/gorder-settlement/internal/adapter/http/middleware"
	"github.com/aq2208/gorder-settlement/internal/adapter/kafka"
	"github.com/aq2208/gorder-settlement/internal/adapter/queue"
	"github.com/aq2208/gorder-settlement/internal/adapter/repo"
	"github.com/aq2208/gorder-settlement/internal/bootstrap"
	domain "github.com/aq2208/gorder-settlement/internal/entity"
	"github.com/aq2208/gorder-settlement/internal/logging"
	"github.com/aq2208/gorder-settlement/internal/security"
	"github.com/aq2208/gorder-settlement/internal/usecase"
)

const userAgent = "gorder-settlement/order-api"

type App struct {
	Router *gin.Engine
	Engine *bootstrap.Engine
}

// InitWithConfig wires every adapter named in cfg. Background workers run
// until ctx ends; cleanup releases connections after the dispatcher drains.
func InitWithConfig(ctx context.Context, cfg configs.Config) (*App, func(), error) {
	log := logging.New("bootstrap")
	var closers []func()
	cleanup := func() {
		for i := len(closers) - 1; i >= 0; i-- {
			closers[i]()
		}
	}
	fail := func(err error) (*App, func(), error) {
		cleanup()
		return nil, nil, err
	}

	// storage
	var (
		store   usecase.Store
		catalog usecase.Catalog
		outbox  usecase.OutboxRepo
	)
	switch cfg.Storage.Driver {
	case "mysql":
		db, err := bootstrap.OpenMySQL(ctx, cfg)
		if err != nil {
			return fail(fmt.Errorf("mysql: %w", err))
		}
		closers = append(closers, func() { _ = db.Close() })
		if cfg.MySQL.Migrate {
			if err := repo.Migrate(ctx, db); err != nil {
				return fail(fmt.Errorf("migrate: %w", err))
			}
		}
		store, catalog, outbox = repo.NewMySQLStore(db), repo.NewMySQLCatalog(db), repo.NewMySQLOutboxRepo(db)
	default:
		log.Warn("using in-memory storage; data is lost on restart")
		store, catalog = repo.NewMemoryStore(), repo.NewMemoryCatalog(demoMenu()...)
	}

	// redis: idempotency + status cache
	var (
		idem       usecase.IdempotencyStore
		orderCache usecase.OrderCache
	)
	rdb, err := bootstrap.OpenRedis(ctx, cfg)
	if err != nil {
		return fail(fmt.Errorf("redis: %w", err))
	}
	if rdb != nil {
		closers = append(closers, func() { _ = rdb.Close() })
		idem = cache.NewRedisIdempotencyStore(rdb, cfg.Idempotency.TTL)
		orderCache = cache.NewRedisCache(rdb, cfg.Cache.TTL)
	} else {
		idem = cache.NewMemoryIdempotencyStore(cfg.Idempotency.TTL)
	}

	// load crypto keys
	cm, err := security.LoadCryptoMaterial(cfg)
	if err != nil {
		return fail(err)
	}
	signer, err := security.NewPaymentSigner(cm.HMACKey)
	if err != nil {
		return fail(err)
	}
	var webhook *middleware.WebhookVerify
	if cm.RSAPub != nil {
		cs, err := security.NewCryptoService(&cm)
		if err != nil {
			return fail(err)
		}
		webhook = middleware.NewWebhookVerify(cs)
	}

	// payment processor
	var (
		processor usecase.PaymentProcessor
		sandbox   *gateway.SandboxProcessor
	)
	switch cfg.PaymentGateway.Mode {
	case "grpc":
		conn, closeConn, err := InitGRPCConn(ctx, cfg.PaymentGateway.GRPC)
		if err != nil {
			return fail(fmt.Errorf("payment gateway: %w", err))
		}
		closers = append(closers, closeConn)
		processor = grpcadapter.NewPaymentGatewayClient(conn, cfg.PaymentGateway.GRPC.Timeout, userAgent)
	default:
		sandbox = gateway.NewSandboxProcessor(signer)
		processor = sandbox
	}

	// customer notifications
	var notifier usecase.Notifier = queue.NewLogNotifier()
	if t := cfg.Notifier.GRPC; t.Target != "" {
		conn, closeConn, err := InitGRPCConn(ctx, t)
		if err != nil {
			return fail(fmt.Errorf("notify gateway: %w", err))
		}
		closers = append(closers, closeConn)
		notifier = grpcadapter.NewNotifyGWClient(conn, t.Timeout, userAgent)
	}
	notifyHandler := queue.NewStatusNotifyHandler(notifier)

	// events: rabbit when configured, in-process otherwise
	var publisher usecase.EventPublisher = queue.NewDirectPublisher(notifyHandler)
	if cfg.Rabbit.URL != "" {
		conn, err := amqp091.Dial(cfg.Rabbit.URL)
		if err != nil {
			return fail(fmt.Errorf("rabbitmq: %w", err))
		}
		closers = append(closers, func() { _ = conn.Close() })
		producer, err := setupQueue(conn, cfg, notifyHandler)
		if err != nil {
			return fail(err)
		}
		publisher = producer
	}

	dispOpts := []usecase.DispatcherOption{}
	if n := cfg.Dispatcher.QueueSize; n > 0 {
		dispOpts = append(dispOpts, usecase.WithQueueSize(n))
	}
	if n := cfg.Dispatcher.MaxAttempts; n > 0 {
		dispOpts = append(dispOpts, usecase.WithMaxAttempts(n))
	}
	if outbox != nil {
		dispOpts = append(dispOpts, usecase.WithOutbox(outbox))
	}
	dispatcher := usecase.NewDispatcher(publisher, dispOpts...)
	// workers outlive ctx so Stop can drain what is already queued
	dispatcher.Start(context.WithoutCancel(ctx), cfg.Dispatcher.Workers)
	closers = append(closers, dispatcher.Stop)

	engCfg, err := bootstrap.EngineConfigFrom(cfg)
	if err != nil {
		return fail(err)
	}
	eng, err := bootstrap.NewEngine(bootstrap.Ports{
		Store:       store,
		Catalog:     catalog,
		Processor:   processor,
		Verifier:    signer,
		Idempotency: idem,
		Cache:       orderCache,
		Events:      dispatcher,
	}, engCfg)
	if err != nil {
		return fail(err)
	}

	if len(cfg.Kafka.Brokers) > 0 {
		if err := setupKafkaListener(ctx, cfg, eng.Payments, log); err != nil {
			return fail(err)
		}
	}
	if every := cfg.Payments.SweepInterval; every > 0 && cfg.Payments.IntentTTL > 0 {
		go eng.Payments.RunSweeper(ctx, every)
	}

	// init handlers + routers + middleware
	handlers := http.Handlers{
		Checkout: http.NewCheckoutHandler(eng.Checkout),
		Orders:   http.NewOrderHandler(eng.Orders, eng.Invoices),
		Invoices: http.NewInvoiceHandler(eng.Invoices),
		Payments: http.NewPaymentHandler(eng.Payments),
		Token:    http.NewTokenHandler(cfg),
		Authz:    middleware.NewAuthz(cfg),
		Webhook:  webhook,
	}
	if cfg.App.Sandbox && sandbox != nil {
		handlers.Sandbox = http.NewSandboxHandler(sandbox)
	}
	if webhook == nil {
		log.Warn("payment webhook disabled: no payment_gateway.webhook_pub_pem")
	}

	log.Info("order-api wired",
		"storage", cfg.Storage.Driver,
		"gateway", cfg.PaymentGateway.Mode,
		"redis", rdb != nil,
		"rabbitmq", cfg.Rabbit.URL != "",
		"kafka", len(cfg.Kafka.Brokers) > 0)

	return &App{Router: http.NewRouter(handlers), Engine: eng}, cleanup, nil
}

// setupQueue declares the topology, returns the producer and starts the
// consumer that forwards status changes to the notifier.
func setupQueue(conn *amqp091.Connection, cfg configs.Config, h *queue.StatusNotifyHandler) (*queue.RabbitProducer, error) {
	topo := queue.DefaultTopology()
	if cfg.Rabbit.Exchange != "" {
		topo.Exchange = cfg.Rabbit.Exchange
	}
	if cfg.Rabbit.RoutingKey != "" {
		topo.RoutingKey = cfg.Rabbit.RoutingKey
	}
	if cfg.Rabbit.Queue != "" {
		topo.Queue = cfg.Rabbit.Queue
	}

	pubCh, err := conn.Channel()
	if err != nil {
		return nil, fmt.Errorf("rabbitmq channel: %w", err)
	}
	producer, err := queue.NewRabbitProducer(pubCh, topo)
	if err != nil {
		return nil, err
	}

	// consumers get their own channel; confirm mode stays on the publisher's
	subCh, err := conn.Channel()
	if err != nil {
		return nil, fmt.Errorf("rabbitmq channel: %w", err)
	}
	prefetch := cfg.Rabbit.Prefetch
	if prefetch <= 0 {
		prefetch = 50
	}
	router := queue.NewRouter(subCh, queue.WithPrefetch(prefetch))
	router.Register(topo.Queue, queue.JSONHandler[usecase.OrderStatusChangedMsg]{HandleFunc: h.HandleStatusChanged})
	if err := router.Start(); err != nil {
		return nil, fmt.Errorf("rabbitmq consume: %w", err)
	}
	return producer, nil
}

func setupKafkaListener(ctx context.Context, cfg configs.Config, payments *usecase.Payments, log *slog.Logger) error {
	grp, err := kafka.NewGroup(cfg.Kafka.Brokers, cfg.Kafka.GroupID)
	if err != nil {
		return fmt.Errorf("kafka group: %w", err)
	}

	h := kafka.NewPaymentCallbackHandler(payments)
	consumer := kafka.NewConsumer(grp, []string{cfg.Kafka.TopicPayments}, h.Handle)

	go func() {
		defer grp.Close()
		for {
			err := consumer.Start(ctx)
			if ctx.Err() != nil {
				return
			}
			log.Error("kafka consumer stopped, restarting", "err", err)
			select {
			case <-ctx.Done():
				return
			case <-time.After(5 * time.Second):
			}
		}
	}()
	return nil
}

// demoMenu seeds the in-memory catalog for local runs.
func demoMenu() []domain.CatalogItem {
	return []domain.CatalogItem{
		{ID: "paneer-tikka", Name: "Paneer Tikka", Price: 10000, Available: true},
		{ID: "veg-biryani", Name: "Veg Biryani", Price: 15000, Available: true},
		{ID: "masala-dosa", Name: "Masala Dosa", Price: 8000, Available: true},
		{ID: "gulab-jamun", Name: "Gulab Jamun", Price: 6000, Available: false},
	}
}

