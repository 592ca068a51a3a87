package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/ariefcatur/go-sales-orders/internal/config"
	"github.com/ariefcatur/go-sales-orders/internal/httpx"
	"github.com/ariefcatur/go-sales-orders/internal/inventory"
	kafkax "github.com/ariefcatur/go-sales-orders/internal/kafka"
	"github.com/ariefcatur/go-sales-orders/internal/logger"
	"github.com/ariefcatur/go-sales-orders/internal/notify"
	"github.com/ariefcatur/go-sales-orders/internal/orders"
	"github.com/ariefcatur/go-sales-orders/internal/postgres"
	"github.com/ariefcatur/go-sales-orders/internal/redisx"
	"github.com/ariefcatur/go-sales-orders/internal/sales"
	"github.com/joho/godotenv"
	"github.com/redis/go-redis/v9"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

func main() {
	_ = godotenv.Load()
	cfg := config.Load()

	log, err := logger.New(cfg.LogLevel, cfg.LogEncoding, cfg.Development())
	if err != nil {
		panic(err)
	}
	defer func() { _ = log.Sync() }()
	log = log.With(zap.String("service", cfg.ServiceName), zap.String("instance", cfg.InstanceID))

	if cfg.JWTSecret == "" {
		log.Fatal("JWT_SECRET is required")
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Store
	var store orders.Store
	switch cfg.Store {
	case "memory":
		mem := orders.NewMemStore()
		seedDemo(mem)
		store = mem
		log.Warn("using in-memory store; data is lost on restart")
	default:
		db, err := postgres.Connect(ctx, cfg.PostgresDSN, cfg.PostgresMaxConns)
		if err != nil {
			log.Fatal("db connect", zap.Error(err))
		}
		defer db.Close()
		repo := &orders.Repo{DB: db}
		if err := repo.EnsureSchema(ctx); err != nil {
			log.Fatal("db schema", zap.Error(err))
		}
		store = repo
		log.Info("connected to postgres")
	}

	// Redis (opsional): status cache + dedup relay
	var (
		rdb   *redis.Client
		cache httpx.StatusCache
		dedup notify.Deduper
	)
	if cfg.RedisAddr != "" {
		rdb = redisx.New(cfg.RedisAddr)
		defer rdb.Close()
		if err := redisx.Ping(ctx, rdb); err != nil {
			log.Warn("redis unreachable, cache degrades to misses", zap.String("addr", cfg.RedisAddr), zap.Error(err))
		}
		cache = redisx.NewStatusCache(rdb, log)
		dedup = redisx.NewDedup(rdb, cfg.ServiceName, cfg.InstanceID)
	}

	registry := notify.NewRegistry()
	dispatcherOpts := []notify.Option{}
	var events sales.Events = sales.NopEvents{}
	var producers []*kafkax.Producer

	// Kafka (opsional): lifecycle events + fan-out notifikasi antar instance
	if len(cfg.KafkaBrokers) > 0 {
		orderProd := kafkax.NewProducer(cfg.KafkaBrokers, cfg.KafkaOrderTopic, 1024, log)
		orderProd.Start(ctx)
		notifProd := kafkax.NewProducer(cfg.KafkaBrokers, cfg.KafkaNotificationTopic, 1024, log)
		notifProd.Start(ctx)
		producers = append(producers, orderProd, notifProd)

		events = sales.NewKafkaEvents(orderProd, cfg.ServiceName)
		dispatcherOpts = append(dispatcherOpts, notify.WithFanout(notifProd, cfg.InstanceID))

		// setiap instance punya group sendiri supaya semua instance menerima semua notifikasi
		group := cfg.ServiceName + "-relay-" + cfg.InstanceID
		relay := notify.NewRelay(registry, cfg.InstanceID, dedup, log)
		cons := kafkax.NewConsumer(cfg.KafkaBrokers, group, cfg.KafkaNotificationTopic, cfg.KafkaWorkers, log)
		go func() {
			log.Info("relay consumer started", zap.String("group", group), zap.Int("workers", cfg.KafkaWorkers))
			if err := cons.Start(ctx, relay.HandleMessage); err != nil {
				log.Error("relay consumer exit", zap.Error(err))
			}
		}()
	} else {
		log.Info("kafka disabled, lifecycle events are not published")
	}

	dispatcher := notify.NewDispatcher(registry, log, dispatcherOpts...)
	svc := sales.NewService(store, inventory.NewLedger(log), dispatcher, events, log)

	router := httpx.NewRouter(log)
	httpx.Protected(router, httpx.NewAuthenticator(cfg.JWTSecret),
		&httpx.OrdersHandler{Service: svc, Cache: cache, Log: log},
		&httpx.NotificationsHandler{Inbox: notify.NewInbox(store.Notifications()), Log: log},
		&httpx.WSHandler{Server: notify.NewWSServer(registry, cfg.WSAllowedOrigins, log), Log: log},
	)

	// HTTP server
	srv := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           router,
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		log.Info("HTTP listening", zap.String("addr", cfg.HTTPAddr), zap.String("store", cfg.Store))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal("listen", zap.Error(err))
		}
	}()

	// wait signal
	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
	<-sig
	log.Info("shutting down...")

	ctx2, cancel2 := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel2()
	_ = srv.Shutdown(ctx2)
	dispatcher.Wait() // push & fan-out yang masih jalan
	for _, p := range producers {
		p.Close() // tutup inbox -> flush & close writer
	}
	cancel() // stop consumer
	for _, p := range producers {
		p.WaitClosed()
	}
}

// seedDemo mengisi katalog kecil supaya mode memory bisa langsung dipakai.
func seedDemo(s *orders.MemStore) {
	for _, p := range []orders.Product{
		{Name: "Printer Paper A4", SKU: "PAP-A4", Category: "office", UnitPrice: decimal.RequireFromString("4.99"), Stock: 200},
		{Name: "Toner Cartridge", SKU: "TON-01", Category: "office", UnitPrice: decimal.RequireFromString("59.00"), Stock: 25},
		{Name: "Desk Lamp", SKU: "LMP-10", Category: "furniture", UnitPrice: decimal.RequireFromString("23.50"), Stock: 10},
	} {
		p.IsActive = true
		s.PutProduct(p)
	}
}
