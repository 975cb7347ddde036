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

	"github.com/linebet/line-bet-platform/internal/bet-maker/betting"
	bmcache "github.com/linebet/line-bet-platform/internal/bet-maker/cache"
	"github.com/linebet/line-bet-platform/internal/bet-maker/consumer"
	bmhttp "github.com/linebet/line-bet-platform/internal/bet-maker/httpapi"
	"github.com/linebet/line-bet-platform/internal/bet-maker/repo"
	"github.com/linebet/line-bet-platform/internal/shared/amqpbus"
	sharedcache "github.com/linebet/line-bet-platform/internal/shared/cache"
	"github.com/linebet/line-bet-platform/internal/shared/config"
	"github.com/linebet/line-bet-platform/internal/shared/db"
	"github.com/linebet/line-bet-platform/internal/shared/logger"
	"github.com/linebet/line-bet-platform/internal/shared/metrics"
)

func main() {
	cfg := config.Load("bet-maker")
	log, err := logger.New(cfg.ServiceName, cfg.Env)
	if err != nil {
		panic(fmt.Errorf("logger init: %w", err))
	}
	defer log.Sync()

	// Postgres: réplica de eventos + livro de apostas
	pg, err := db.ConnectPostgres(cfg.PostgresDSN)
	if err != nil {
		log.Fatal("postgres connect", zap.Error(err))
	}
	defer pg.Close()

	if err := db.Migrate(pg, repo.Migrations); err != nil {
		log.Fatal("migrate", zap.Error(err))
	}
	log.Info("postgres connected")

	// Redis: snapshots de eventos e lista de ativos
	redisClient, err := sharedcache.ConnectRedis(cfg.RedisAddr)
	if err != nil {
		log.Fatal("redis connect", zap.Error(err))
	}
	defer redisClient.Close()
	log.Info("redis connected")

	// Bus: o loop de consumo só começa depois da topologia declarada —
	// dial com backoff no lugar de sleep fixo de startup
	bus, err := amqpbus.Connect(cfg.AMQPURL, cfg.ExchangeName, cfg.QueueName, log)
	if err != nil {
		log.Fatal("amqp connect", zap.Error(err))
	}
	defer bus.Close()

	if err := bus.DeclareTopology(); err != nil {
		log.Fatal("amqp topology", zap.Error(err))
	}

	deliveries, err := bus.Consume()
	if err != nil {
		log.Fatal("amqp consume", zap.Error(err))
	}

	// Métricas Prometheus do pipeline de aplicação
	consumed := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "bet_maker_messages_consumed_total", Help: "mensagens recebidas da fila",
	})
	applied := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "bet_maker_messages_applied_total", Help: "mensagens aplicadas e confirmadas",
	})
	dropped := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "bet_maker_messages_dropped_total", Help: "mensagens veneno descartadas",
	})
	errorsBy := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "bet_maker_apply_errors_total", Help: "erros por estágio (redelivery)",
	}, []string{"stage"})
	prometheus.MustRegister(consumed, applied, dropped, errorsBy)

	store := repo.NewPostgres(pg)
	eventsCache := bmcache.New(redisClient, 30*time.Second)

	applier := &consumer.Applier{
		Log:   log,
		Store: store,
		Cache: eventsCache,
	}
	cons := &consumer.Consumer{
		Log:        log,
		Deliveries: deliveries,
		Applier:    applier,
		OnConsumed: func() { consumed.Inc() },
		OnApplied:  func() { applied.Inc() },
		OnDropped:  func() { dropped.Inc() },
		OnError:    func(stage string) { errorsBy.WithLabelValues(stage).Inc() },
	}

	// metrics/health: valida Postgres, Redis e broker
	metrics.StartMetricsServer(cfg.MetricsPort, func(ctx context.Context) error {
		if err := pg.PingContext(ctx); err != nil {
			return fmt.Errorf("postgres: %w", err)
		}
		if err := redisClient.Ping(ctx).Err(); err != nil {
			return fmt.Errorf("redis: %w", err)
		}
		if err := bus.Healthy(); err != nil {
			return fmt.Errorf("amqp: %w", err)
		}
		return nil
	})
	log.Info("metrics/health listening", zap.String("port", cfg.MetricsPort))

	bets := betting.New(store, log)
	api := bmhttp.NewServer(log, store, bets, eventsCache)
	srv := &http.Server{
		Addr:    ":" + cfg.HTTPPort,
		Handler: api.Router(),
	}

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	// loop de consumo roda em paralelo ao HTTP; mensagens em voo no
	// shutdown voltam pra fila e são reaplicadas no próximo boot
	go func() {
		log.Info("consumer started")
		if err := cons.Run(ctx); err != nil && ctx.Err() == nil {
			log.Fatal("consumer stopped with error", zap.Error(err))
		}
		log.Info("consumer stopped")
	}()

	go func() {
		<-ctx.Done()
		log.Info("shutdown signal received")
		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer shutdownCancel()
		_ = srv.Shutdown(shutdownCtx)
	}()

	log.Info("bet-maker listening", zap.String("addr", srv.Addr))
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		log.Fatal("api", zap.Error(err))
	}
	log.Info("bet-maker stopped")
}
