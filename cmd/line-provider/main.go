package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"

	"github.com/linebet/line-bet-platform/internal/line-provider/httpapi"
	"github.com/linebet/line-bet-platform/internal/line-provider/publisher"
	"github.com/linebet/line-bet-platform/internal/line-provider/repo"
	"github.com/linebet/line-bet-platform/internal/line-provider/service"
	"github.com/linebet/line-bet-platform/internal/shared/amqpbus"
	"github.com/linebet/line-bet-platform/internal/shared/config"
	"github.com/linebet/line-bet-platform/internal/shared/db"
	"github.com/linebet/line-bet-platform/internal/shared/logger"
	"github.com/linebet/line-bet-platform/internal/shared/metrics"
)

func main() {
	cfg := config.Load("line-provider")
	log, err := logger.New(cfg.ServiceName, cfg.Env)
	if err != nil {
		panic(fmt.Errorf("logger init: %w", err))
	}
	defer log.Sync()

	// Postgres: registro de verdade dos eventos
	pg, err := db.ConnectPostgres(cfg.PostgresDSN)
	if err != nil {
		log.Fatal("postgres connect", zap.Error(err))
	}
	defer pg.Close()

	if err := db.Migrate(pg, repo.Migrations); err != nil {
		log.Fatal("migrate", zap.Error(err))
	}
	log.Info("postgres connected")

	// Bus: conecta com retry e provisiona a topologia antes de aceitar
	// qualquer mutação — publish sem exchange declarado falharia
	bus, err := amqpbus.Connect(cfg.AMQPURL, cfg.ExchangeName, cfg.QueueName, log)
	if err != nil {
		log.Fatal("amqp connect", zap.Error(err))
	}
	defer bus.Close()

	if err := bus.DeclareTopology(); err != nil {
		log.Fatal("amqp topology", zap.Error(err))
	}

	// Métricas Prometheus da propagação
	published := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "line_provider_messages_published_total", Help: "mutações publicadas no exchange",
	})
	publishErrs := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "line_provider_publish_errors_total", Help: "falhas de publicação (gravado mas não propagado)",
	})
	prometheus.MustRegister(published, publishErrs)

	pub := publisher.NewAMQPPublisher(bus, log)
	pub.OnPublished = func() { published.Inc() }
	pub.OnError = func() { publishErrs.Inc() }

	store := repo.NewPostgres(pg)
	svc := service.New(store, pub, log)

	// metrics/health: valida Postgres e broker
	metrics.StartMetricsServer(cfg.MetricsPort, func(ctx context.Context) error {
		if err := pg.PingContext(ctx); err != nil {
			return fmt.Errorf("postgres: %w", err)
		}
		if err := bus.Healthy(); err != nil {
			return fmt.Errorf("amqp: %w", err)
		}
		return nil
	})
	log.Info("metrics/health listening", zap.String("port", cfg.MetricsPort))

	api := &httpapi.API{Svc: svc, Log: log}
	srv := &http.Server{
		Addr:    ":" + cfg.HTTPPort,
		Handler: api.Router(),
	}

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	go func() {
		<-ctx.Done()
		log.Info("shutdown signal received")
		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer shutdownCancel()
		_ = srv.Shutdown(shutdownCtx)
	}()

	log.Info("line-provider listening", zap.String("addr", srv.Addr))
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		log.Fatal("api", zap.Error(err))
	}
	log.Info("line-provider stopped")
}
