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

	"github.com/kmercart/kmercart-api/internal/auth"
	"github.com/kmercart/kmercart-api/internal/cart"
	"github.com/kmercart/kmercart-api/internal/catalog"
	"github.com/kmercart/kmercart-api/internal/config"
	"github.com/kmercart/kmercart-api/internal/events"
	"github.com/kmercart/kmercart-api/internal/httpx"
	kafkax "github.com/kmercart/kmercart-api/internal/kafka"
	"github.com/kmercart/kmercart-api/internal/logx"
	"github.com/kmercart/kmercart-api/internal/memstore"
	"github.com/kmercart/kmercart-api/internal/metrics"
	"github.com/kmercart/kmercart-api/internal/notifications"
	"github.com/kmercart/kmercart-api/internal/orders"
	"github.com/kmercart/kmercart-api/internal/payouts"
	"github.com/kmercart/kmercart-api/internal/postgres"
	"github.com/kmercart/kmercart-api/internal/redisx"
	"github.com/kmercart/kmercart-api/internal/reviews"
	"github.com/kmercart/kmercart-api/internal/upload"
	"github.com/kmercart/kmercart-api/internal/users"
	"github.com/kmercart/kmercart-api/internal/vendors"
	"go.uber.org/zap"
)

// store is what both storage drivers implement.
type store interface {
	users.Store
	catalog.ProductStore
	catalog.CategoryStore
	cart.Store
	orders.Store
	reviews.Store
	reviews.ProductStore
	notifications.Store
	payouts.Store
	vendors.Analytics
}

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "config: %v\n", err)
		os.Exit(1)
	}
	log := logx.Must(cfg.ServiceName, cfg.LogLevel, cfg.Development())
	defer func() { _ = log.Sync() }()

	if err := run(cfg, log); err != nil {
		log.Fatal("api stopped", zap.Error(err))
	}
}

func run(cfg config.Config, log *zap.Logger) error {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	m := metrics.New("kmercart")
	var checks []func(context.Context) error

	// storage
	var st store
	if cfg.StoreDriver == config.DriverPostgres {
		db, err := postgres.Connect(ctx, cfg.PostgresDSN, int32(cfg.PostgresMaxConns))
		if err != nil {
			return err
		}
		defer db.Close()
		pg := postgres.New(db)
		if err := pg.Migrate(ctx, log); err != nil {
			return err
		}
		st = pg
		checks = append(checks, pg.Ping)
	} else {
		log.Warn("memory store in use; data is lost on restart")
		st = memstore.New()
	}

	// redis-backed sessions, rate limit and fan-out, or their in-process twins
	var (
		sessions    auth.SessionStore         = auth.NewMemorySessions()
		limiter     httpx.Limiter             = httpx.NewIPLimiter(cfg.RateLimitMax, cfg.RateLimitWindow)
		broadcaster notifications.Broadcaster = notifications.NewHub(16)
		dedup       notifications.Deduper     = &notifications.MemoryDedup{}
	)
	if cfg.RedisAddr != "" {
		rdb, err := redisx.New(ctx, cfg.RedisAddr)
		if err != nil {
			return err
		}
		defer rdb.Close()
		sessions = redisx.Sessions{RDB: rdb}
		limiter = redisx.RateLimiter{RDB: rdb, Max: cfg.RateLimitMax, Window: cfg.RateLimitWindow}
		broadcaster = redisx.Broadcaster{RDB: rdb, Log: log.Named("pubsub")}
		dedup = redisx.Dedup{RDB: rdb}
		checks = append(checks, func(ctx context.Context) error { return rdb.Ping(ctx).Err() })
	} else if cfg.EventsEnabled() {
		log.Warn("kafka without redis: notifications from the notifier will not reach live streams")
	}

	notifSvc := &notifications.Service{
		Store:       st,
		Broadcaster: broadcaster,
		Log:         log.Named("notifications"),
		Created:     m.NotificationCreated,
	}

	// events: kafka when brokers are configured, otherwise an in-process bus
	// that feeds the notification consumer directly
	busCtx, stopBus := context.WithCancel(context.Background())
	defer stopBus()
	var (
		pub         events.Publisher
		closeEvents func()
	)
	if cfg.EventsEnabled() {
		prod := kafkax.NewProducer(cfg.KafkaBrokers, 1024, log)
		prod.OnError(m.PublishFailed)
		prod.Start(busCtx)
		pub = prod
		closeEvents = func() {
			prod.Close()
			stopBus()
			prod.WaitClosed()
		}
	} else {
		bus := events.NewLocalBus(log, 1024)
		consumer := &notifications.Consumer{
			Service:     notifSvc,
			Dedup:       dedup,
			ServiceName: cfg.ServiceName,
			Log:         log.Named("notifier"),
		}
		bus.Subscribe(consumer.HandleEvent)
		bus.Start(busCtx)
		pub = bus
		closeEvents = func() {
			bus.Close()
			bus.WaitClosed()
		}
	}
	pub = m.Publisher(pub)

	// services
	userSvc := &users.Service{Store: st, Orders: st, Reviews: st}
	authSvc := &auth.Service{
		Users:    st,
		Sessions: sessions,
		Tokens:   auth.NewIssuer(cfg.JWTAccessSecret, cfg.JWTRefreshSecret, cfg.JWTAccessTTL, cfg.JWTRefreshTTL),
		Log:      log.Named("auth"),
	}
	catalogSvc := &catalog.Service{
		Products:    st,
		Categories:  st,
		Events:      pub,
		ServiceName: cfg.ServiceName,
		Log:         log.Named("catalog"),
	}
	orderSvc := &orders.Service{
		Store:       st,
		Carts:       st,
		Products:    st,
		Events:      pub,
		Observer:    m,
		ServiceName: cfg.ServiceName,
		Log:         log.Named("orders"),
	}
	reviewSvc := &reviews.Service{
		Store:       st,
		Products:    st,
		Purchases:   st,
		Events:      pub,
		ServiceName: cfg.ServiceName,
		Log:         log.Named("reviews"),
	}
	payoutSvc := &payouts.Service{
		Store:       st,
		Vendors:     st,
		Events:      pub,
		ServiceName: cfg.ServiceName,
		Log:         log.Named("payouts"),
	}

	router := httpx.NewRouter(httpx.Deps{
		Auth:          authSvc,
		Users:         userSvc,
		Catalog:       catalogSvc,
		Cart:          &cart.Service{Carts: st, Products: st},
		Orders:        orderSvc,
		Vendors:       &vendors.Service{Profiles: st, Analytics: st},
		Reviews:       reviewSvc,
		Notifications: notifSvc,
		Payouts:       payoutSvc,
		Uploads:       upload.Store{Dir: cfg.UploadDir, BaseURL: cfg.PublicBaseURL, MaxBytes: cfg.MaxUploadBytes},
		Limiter:       limiter,
		Metrics:       m,
		Ready: func(ctx context.Context) error {
			for _, check := range checks {
				if err := check(ctx); err != nil {
					return err
				}
			}
			return nil
		},
		Log:        log,
		APIPrefix:  cfg.APIPrefix,
		CORSOrigin: cfg.CORSOrigin,
	})

	srv := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           router,
		ReadHeaderTimeout: 5 * time.Second,
	}
	errCh := make(chan error, 1)
	go func() {
		log.Info("http listening", zap.String("addr", cfg.HTTPAddr), zap.String("store", cfg.StoreDriver), zap.Bool("kafka", cfg.EventsEnabled()))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
	select {
	case s := <-sig:
		log.Info("shutting down", zap.String("signal", s.String()))
	case err := <-errCh:
		closeEvents()
		return fmt.Errorf("listen: %w", err)
	}

	shutdownCtx, cancelShutdown := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancelShutdown()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Warn("http shutdown", zap.Error(err))
	}
	// flush queued events once no handler can publish any more
	closeEvents()
	return nil
}
