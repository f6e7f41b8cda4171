// Package main provides the saga consumer that reacts to sale lifecycle events.
package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/jackc/pgx/v5/pgxpool"
	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/redis/rueidis"

	"github.com/pharmanet/saledetail-service/internal/config"
	"github.com/pharmanet/saledetail-service/internal/idempotency"
	"github.com/pharmanet/saledetail-service/internal/logger"
	"github.com/pharmanet/saledetail-service/internal/messaging"
	"github.com/pharmanet/saledetail-service/internal/repository"
)

const (
	signalBufferSize = 1
	exitCode         = 1
)

func setupSignalHandling() (context.Context, context.CancelFunc) {
	ctx, cancel := context.WithCancel(context.Background())

	sigChan := make(chan os.Signal, signalBufferSize)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		<-sigChan
		slog.Info("shutdown signal received, stopping consumer")
		cancel()
	}()

	return ctx, cancel
}

func main() {
	cfg, err := config.LoadConfig()
	if err != nil {
		slog.Error("failed to load config", slog.String("error", err.Error()))
		os.Exit(exitCode)
	}

	loggerInstance := logger.Setup(cfg.LogLevel)
	slog.SetDefault(loggerInstance)

	dbPool, err := pgxpool.New(context.Background(), cfg.DatabaseURL)
	if err != nil {
		slog.Error("failed to connect to database", slog.String("error", err.Error()))
		os.Exit(exitCode)
	}
	defer dbPool.Close()

	redisClient, err := rueidis.NewClient(rueidis.ClientOption{
		InitAddress: []string{cfg.RedisAddr},
	})
	if err != nil {
		slog.Error("failed to connect to Redis", slog.String("error", err.Error()))
		os.Exit(exitCode)
	}
	defer redisClient.Close()

	conn, err := amqp.Dial(cfg.AMQPURL)
	if err != nil {
		slog.Error("failed to connect to broker", slog.String("error", err.Error()))
		os.Exit(exitCode)
	}
	defer conn.Close()

	ch, err := conn.Channel()
	if err != nil {
		slog.Error("failed to open channel", slog.String("error", err.Error()))
		os.Exit(exitCode)
	}
	defer ch.Close()

	if err := messaging.DeclareTopology(ch, cfg.Exchange, cfg.Queue, messaging.DefaultBindings); err != nil {
		slog.Error("failed to declare topology", slog.String("error", err.Error()))
		os.Exit(exitCode)
	}

	registry := messaging.NewHandlerRegistry()
	handlers := messaging.NewSagaHandlers(repository.NewUnitOfWorkFactory(dbPool))

	if err := handlers.Register(registry); err != nil {
		slog.Error("failed to register handlers", slog.String("error", err.Error()))
		os.Exit(exitCode)
	}

	store := idempotency.NewRedisStore(redisClient, cfg.IdempotencyTTL)
	consumer := messaging.NewSagaConsumer(ch, cfg.Queue, cfg.ConsumerTag, registry, store)

	ctx, cancel := setupSignalHandling()
	defer cancel()

	slog.Info("starting saga consumer",
		slog.String("service", "consumer"),
		slog.String("exchange", cfg.Exchange),
		slog.String("queue", cfg.Queue),
		slog.String("consumer_tag", cfg.ConsumerTag),
	)

	if err := consumer.Run(ctx); err != nil {
		slog.Error("consumer exited", slog.String("error", err.Error()))
		os.Exit(exitCode)
	}
}
