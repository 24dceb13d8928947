package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"go.opentelemetry.io/otel"
	"go.uber.org/zap"

	"github.com/ariefcatur/go-store-orders/internal/config"
	"github.com/ariefcatur/go-store-orders/internal/httpx"
	"github.com/ariefcatur/go-store-orders/internal/inventory"
	kafkax "github.com/ariefcatur/go-store-orders/internal/kafka"
	"github.com/ariefcatur/go-store-orders/internal/logx"
	"github.com/ariefcatur/go-store-orders/internal/orders"
	"github.com/ariefcatur/go-store-orders/internal/platform"
	"github.com/ariefcatur/go-store-orders/internal/postgres"
	"github.com/ariefcatur/go-store-orders/internal/redisx"
	"github.com/ariefcatur/go-store-orders/internal/tracing"
)

func main() {
	_ = godotenv.Load()

	cfg := config.Load()
	log := logx.New(cfg.LogLevel, cfg.LogFormat)
	defer func() { _ = log.Sync() }()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	shutdownTracing, err := tracing.Init(cfg.ServiceName, cfg.JaegerEndpoint, log)
	if err != nil {
		log.Fatal("tracing init", zap.Error(err))
	}

	// DB
	db, err := postgres.Connect(ctx, cfg.PostgresDSN)
	if err != nil {
		log.Fatal("db connect", zap.Error(err))
	}
	defer db.Close()
	if err := postgres.Migrate(ctx, db); err != nil {
		log.Fatal("db migrate", zap.Error(err))
	}

	// Metrics
	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

	// Remote store
	store, err := platform.New(cfg.Platform(),
		platform.WithTracer(otel.Tracer("store-platform")),
		platform.WithMetrics(platform.NewMetrics(reg)),
		platform.WithLogger(log.Named("platform")),
	)
	if err != nil {
		log.Fatal("store client", zap.Error(err))
	}

	// Item locks
	var locker inventory.Locker
	switch cfg.ItemLockMode {
	case config.LockRedis:
		rdb := redisx.New(cfg.RedisAddr)
		defer rdb.Close()
		if err := rdb.Ping(ctx).Err(); err != nil {
			log.Fatal("redis ping", zap.Error(err))
		}
		locker = redisx.NewLocker(rdb, cfg.ItemLockTTL)
	case config.LockNone:
	default:
		locker = inventory.NewLocalLocker()
	}
	log.Info("item locking", zap.String("mode", cfg.ItemLockMode))

	// Kafka producer
	prod := kafkax.NewProducer(cfg.KafkaBrokers, cfg.OrderEventsTopic, 1024, log.Named("kafka"))
	prod.Start(ctx)
	reg.MustRegister(prod.DroppedCollector())

	coord := orders.NewCoordinator(
		store,
		inventory.NewAdjuster(store, locker, log.Named("inventory")),
		&postgres.Ledger{DB: db},
		&orders.KafkaPublisher{Producer: prod},
		log.Named("orders"),
		cfg.ServiceName,
	)

	router := httpx.NewRouter(reg)
	sh := &httpx.StoreHandler{
		Orders:  coord,
		Catalog: store,
		Carts:   &postgres.Carts{DB: db},
		Users:   &postgres.Users{DB: db},
		Log:     log.Named("http"),
	}
	sh.Register(router)

	// HTTP server
	srv := &http.Server{Addr: cfg.HTTPAddr, Handler: router, ReadHeaderTimeout: 5 * time.Second}

	// graceful shutdown
	go func() {
		log.Info("HTTP listening", zap.String("addr", cfg.HTTPAddr))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal("listen", zap.Error(err))
		}
	}()

	// wait signal
	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
	<-sig
	log.Info("shutting down")

	ctx2, cancel2 := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel2()
	_ = srv.Shutdown(ctx2)
	prod.Close() // stop intake, loop flushes the rest
	prod.WaitClosed()
	cancel()
	if err := shutdownTracing(ctx2); err != nil {
		log.Warn("tracing shutdown", zap.Error(err))
	}
}
