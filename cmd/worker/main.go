package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/TejasGoyal/test-tinyb-skillora/internal/app"
	"github.com/TejasGoyal/test-tinyb-skillora/internal/config"
	"github.com/TejasGoyal/test-tinyb-skillora/internal/logger"
	"github.com/TejasGoyal/test-tinyb-skillora/internal/store/rabbitmq"
)

func main() {
	cfg := config.Load()

	log, err := logger.New(cfg.AppEnv)
	if err != nil {
		panic(err)
	}
	defer log.Sync()

	if cfg.RabbitURL == "" {
		log.Fatal("RABBIT_URL is required for the worker")
	}

	a, err := app.New(cfg, log)
	if err != nil {
		log.Fatal("startup failed", "error", err)
	}
	defer a.Close()

	consumer, err := rabbitmq.NewConsumer(cfg.RabbitURL, cfg.RabbitQueue, cfg.WorkerConcurrency, log.With("component", "worker"))
	if err != nil {
		log.Fatal("rabbit consumer", "error", err)
	}
	defer consumer.Close()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := consumer.Run(ctx, a.Jobs.Run); err != nil {
		log.Error("worker stopped", "error", err)
	}
}
