package main

import (
	"context"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/ariefcatur/go-rental-booking/internal/booking"
	"github.com/ariefcatur/go-rental-booking/internal/config"
	kafkax "github.com/ariefcatur/go-rental-booking/internal/kafka"
	"github.com/ariefcatur/go-rental-booking/internal/notify"
	"github.com/ariefcatur/go-rental-booking/internal/redisx"
)

func main() {
	_ = godotenv.Load()
	cfg := config.Load()

	log, err := zap.NewProduction()
	if err != nil {
		panic(err)
	}
	defer func() { _ = log.Sync() }()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	rdb := redisx.New(cfg.RedisAddr)
	defer rdb.Close()

	name := cfg.ServiceName + "-notifier"
	svc := &notify.Service{
		Dedup: &redisx.Dedup{Client: rdb, Service: name, TTL: redisx.TTLDedup},
		Sink:  notify.LogSink{Log: log},
		Log:   log,
	}

	lifecycle := kafkax.NewConsumer(cfg.KafkaBrokers, cfg.NotifierGroup, booking.TopicOrderLifecycle, cfg.NotifierWorkers, log)
	invoices := kafkax.NewConsumer(cfg.KafkaBrokers, cfg.NotifierGroup, booking.TopicInvoiceIssued, cfg.NotifierWorkers, log)

	log.Info("notifier started",
		zap.String("group", cfg.NotifierGroup),
		zap.Strings("topics", []string{booking.TopicOrderLifecycle, booking.TopicInvoiceIssued}),
		zap.Int("workers", cfg.NotifierWorkers))

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error { return lifecycle.Start(gctx, svc.HandleLifecycle) })
	g.Go(func() error { return invoices.Start(gctx, svc.HandleInvoice) })
	if err := g.Wait(); err != nil {
		log.Error("consumer exit", zap.Error(err))
	}
	log.Info("notifier stopped")
}
