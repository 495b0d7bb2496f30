package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/kmercart/kmercart-api/internal/config"
	"github.com/kmercart/kmercart-api/internal/events"
	kafkax "github.com/kmercart/kmercart-api/internal/kafka"
	"github.com/kmercart/kmercart-api/internal/logx"
	"github.com/kmercart/kmercart-api/internal/metrics"
	"github.com/kmercart/kmercart-api/internal/notifications"
	"github.com/kmercart/kmercart-api/internal/postgres"
	"github.com/kmercart/kmercart-api/internal/redisx"
	"go.uber.org/zap"
)

// The notifier turns order, stock, review and payout events from kafka into
// stored notifications and fans them out to the API's live streams.
func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "config: %v\n", err)
		os.Exit(1)
	}
	log := logx.Must(cfg.ServiceName+"-notifier", cfg.LogLevel, cfg.Development())
	defer func() { _ = log.Sync() }()

	if err := run(cfg, log); err != nil {
		log.Fatal("notifier stopped", zap.Error(err))
	}
}

func run(cfg config.Config, log *zap.Logger) error {
	if !cfg.EventsEnabled() {
		return errors.New("KAFKA_BROKERS is required")
	}
	if cfg.StoreDriver != config.DriverPostgres {
		return fmt.Errorf("the notifier needs STORE_DRIVER=%s", config.DriverPostgres)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	db, err := postgres.Connect(ctx, cfg.PostgresDSN, int32(cfg.PostgresMaxConns))
	if err != nil {
		return err
	}
	defer db.Close()
	store := postgres.New(db)

	m := metrics.New("kmercart_notifier")
	svc := &notifications.Service{
		Store:   store,
		Log:     log.Named("notifications"),
		Created: m.NotificationCreated,
	}
	consumer := &notifications.Consumer{
		Service:     svc,
		Dedup:       &notifications.MemoryDedup{},
		ServiceName: cfg.ServiceName + "-notifier",
		Log:         log,
	}
	if cfg.RedisAddr != "" {
		rdb, err := redisx.New(ctx, cfg.RedisAddr)
		if err != nil {
			return err
		}
		defer rdb.Close()
		svc.Broadcaster = redisx.Broadcaster{RDB: rdb, Log: log.Named("pubsub")}
		consumer.Dedup = redisx.Dedup{RDB: rdb}
	} else {
		log.Warn("no redis: dedup is per process and live streams get nothing")
	}

	// metrics and health on their own port
	r := chi.NewRouter()
	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		if err := store.Ping(r.Context()); err != nil {
			http.Error(w, "unavailable", http.StatusServiceUnavailable)
			return
		}
		_, _ = w.Write([]byte("ok"))
	})
	r.Method(http.MethodGet, "/metrics", m.Handler())
	srv := &http.Server{Addr: cfg.NotifierAddr, Handler: r, ReadHeaderTimeout: 5 * time.Second}
	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error("metrics server", zap.Error(err))
		}
	}()

	cons := kafkax.NewConsumer(kafkax.ConsumerConfig{
		Brokers: cfg.KafkaBrokers,
		GroupID: cfg.NotifierGroup,
		Topics:  events.Topics,
		Workers: cfg.NotifierWorkers,
	}, log)
	done := make(chan error, 1)
	go func() {
		log.Info("notifier consumer started",
			zap.String("group", cfg.NotifierGroup),
			zap.Strings("topics", events.Topics),
			zap.Int("workers", cfg.NotifierWorkers),
			zap.String("metrics_addr", cfg.NotifierAddr))
		done <- cons.Start(ctx, consumer.HandleMessage)
	}()

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
	var runErr error
	select {
	case s := <-sig:
		log.Info("shutting down consumer", zap.String("signal", s.String()))
		cancel()
		<-done
	case err := <-done:
		if err != nil && !errors.Is(err, context.Canceled) {
			runErr = fmt.Errorf("consumer: %w", err)
		}
	}

	shutdownCtx, cancelShutdown := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancelShutdown()
	_ = srv.Shutdown(shutdownCtx)
	return runErr
}
