package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"go.uber.org/zap"

	"github.com/ariefcatur/go-rental-booking/internal/booking"
	"github.com/ariefcatur/go-rental-booking/internal/config"
	"github.com/ariefcatur/go-rental-booking/internal/httpx"
	kafkax "github.com/ariefcatur/go-rental-booking/internal/kafka"
	"github.com/ariefcatur/go-rental-booking/internal/memstore"
	"github.com/ariefcatur/go-rental-booking/internal/postgres"
	"github.com/ariefcatur/go-rental-booking/internal/redisx"
	"github.com/ariefcatur/go-rental-booking/internal/settings"
)

func newLogger(level string) *zap.Logger {
	var (
		log *zap.Logger
		err error
	)
	if level == "debug" {
		log, err = zap.NewDevelopment()
	} else {
		log, err = zap.NewProduction()
	}
	if err != nil {
		panic(err)
	}
	return log
}

func main() {
	_ = godotenv.Load()

	cfg := config.Load()
	log := newLogger(cfg.LogLevel)
	defer func() { _ = log.Sync() }()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Store
	var store booking.Store
	switch cfg.StoreDriver {
	case "memory":
		log.Warn("using in-memory store; data is lost on exit")
		store = memstore.New()
	default:
		db, err := postgres.Connect(ctx, cfg.PostgresDSN)
		if err != nil {
			log.Fatal("db connect", zap.Error(err))
		}
		defer db.Close()
		if err := postgres.Migrate(ctx, db); err != nil {
			log.Fatal("db migrate", zap.Error(err))
		}
		store = &postgres.Store{DB: db}
	}

	// Redis
	rdb := redisx.New(cfg.RedisAddr)
	defer rdb.Close()

	// Settings
	static, err := settings.FromConfig(cfg)
	if err != nil {
		log.Fatal("settings", zap.Error(err))
	}
	provider := &settings.Cached{Next: static, Redis: rdb, TTL: cfg.SettingsCacheTTL, Log: log}

	opts := []booking.Option{
		booking.WithLogger(log),
		booking.WithReadRetries(cfg.ReadRetries, 50*time.Millisecond),
	}
	if cfg.LockBackend == "redis" {
		opts = append(opts, booking.WithLocker(redisx.NewLocker(rdb, cfg.LockTTL, log)))
	}
	svc := booking.NewService(store, provider, opts...)

	// Kafka producers: lifecycle & invoice
	pOrders := kafkax.NewProducer(cfg.KafkaBrokers, booking.TopicOrderLifecycle, 1024, log)
	pOrders.Start(ctx)
	pInvoices := kafkax.NewProducer(cfg.KafkaBrokers, booking.TopicInvoiceIssued, 1024, log)
	pInvoices.Start(ctx)

	router := httpx.NewRouter(log)
	bh := &httpx.BookingHandler{
		Service:  svc,
		Events:   pOrders,
		Invoices: pInvoices,
		Cache:    redisx.NewOrderCache(rdb),
		Name:     cfg.ServiceName,
		Log:      log,
	}
	bh.Register(router)

	srv := &http.Server{Addr: cfg.HTTPAddr, Handler: router}

	go func() {
		log.Info("HTTP listening", zap.String("addr", cfg.HTTPAddr), zap.String("store", cfg.StoreDriver), zap.String("lock", cfg.LockBackend))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal("listen", zap.Error(err))
		}
	}()

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
	<-sig
	log.Info("shutting down...")

	ctx2, cancel2 := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel2()
	_ = srv.Shutdown(ctx2)
	pOrders.Close() // flush queued events before the writers stop
	pInvoices.Close()
	pOrders.WaitClosed()
	pInvoices.WaitClosed()
	cancel()
}
