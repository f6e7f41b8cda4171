// Package main provides the outbox dispatcher that polls pending records and
// publishes them to the saga exchange.
package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/jackc/pgx/v5/pgxpool"
	amqp "github.com/rabbitmq/amqp091-go"

	"github.com/pharmanet/saledetail-service/internal/config"
	"github.com/pharmanet/saledetail-service/internal/logger"
	"github.com/pharmanet/saledetail-service/internal/messaging"
	"github.com/pharmanet/saledetail-service/internal/outbox"
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
		slog.Info("shutdown signal received, stopping dispatcher")
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

	if err := messaging.DeclareTopology(ch, cfg.Exchange, cfg.Queue, messaging.DefaultBindings); err != nil {
		slog.Error("failed to declare topology", slog.String("error", err.Error()))
		os.Exit(exitCode)
	}

	_ = ch.Close()

	publisher, err := messaging.NewAMQPPublisher(conn, cfg.Exchange)
	if err != nil {
		slog.Error("failed to create publisher", slog.String("error", err.Error()))
		os.Exit(exitCode)
	}
	defer publisher.Close()

	outboxRepo := repository.NewOutboxRepositoryImpl(dbPool)
	dispatcher := outbox.NewDispatcher(outboxRepo, publisher, cfg.DispatchInterval, cfg.DispatchBatchSize, cfg.MaxAttempts)

	ctx, cancel := setupSignalHandling()
	defer cancel()

	slog.Info("starting outbox dispatcher",
		slog.String("service", "dispatcher"),
		slog.String("exchange", cfg.Exchange),
	)

	dispatcher.Run(ctx)
}
