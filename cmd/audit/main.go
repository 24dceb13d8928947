package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"go.uber.org/zap"

	"github.com/ariefcatur/go-store-orders/internal/audit"
	"github.com/ariefcatur/go-store-orders/internal/config"
	kafkax "github.com/ariefcatur/go-store-orders/internal/kafka"
	"github.com/ariefcatur/go-store-orders/internal/logx"
	"github.com/ariefcatur/go-store-orders/internal/postgres"
	"github.com/ariefcatur/go-store-orders/internal/redisx"
)

func main() {
	_ = godotenv.Load()
	cfg := config.Load()
	log := logx.New(cfg.LogLevel, cfg.LogFormat).Named("audit")
	defer func() { _ = log.Sync() }()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// DB
	db, err := postgres.Connect(ctx, cfg.PostgresDSN)
	if err != nil {
		log.Fatal("db connect", zap.Error(err))
	}
	defer db.Close()
	if err := postgres.Migrate(ctx, db); err != nil {
		log.Fatal("db migrate", zap.Error(err))
	}

	// Redis
	rdb := redisx.New(cfg.RedisAddr)
	defer rdb.Close()

	svc := &audit.Service{
		Events: &postgres.AuditLog{DB: db},
		Dedup:  &redisx.Dedup{RDB: rdb, Service: cfg.AuditGroup},
		Log:    log,
	}

	cons := kafkax.NewConsumer(cfg.KafkaBrokers, cfg.AuditGroup, cfg.OrderEventsTopic, cfg.AuditWorkers, log.Named("kafka"))
	done := make(chan struct{})
	go func() {
		defer close(done)
		log.Info("audit consumer started",
			zap.String("group", cfg.AuditGroup),
			zap.String("topic", cfg.OrderEventsTopic),
			zap.Int("workers", cfg.AuditWorkers))
		if err := cons.Start(ctx, svc.HandleEvent); err != nil {
			log.Error("consumer exit", zap.Error(err))
			cancel()
		}
	}()

	// graceful shutdown
	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
	select {
	case <-sig:
	case <-ctx.Done():
	}
	log.Info("shutting down consumer")
	cancel()
	<-done
}
