package main

import (
	"context"
	"errors"
	"os"
	"time"

	"portfel/internal/amqp"
	"portfel/internal/cli"
	applog "portfel/internal/log"
	"portfel/internal/mailer"
)

func main() {
	cli.LoadEnvFile()

	logger := cli.SetupLogger(applog.ComponentMailer, os.Getenv("LOG_LEVEL"))
	cfg := cli.LoadAndValidateMailerConfig(logger)

	client, err := amqp.NewClient(cfg.AMQP.URL, cfg.AMQP.Exchange, cfg.AMQP.Queue)
	if err != nil {
		logger.Error("Failed to initialize AMQP client", applog.FieldError, err)
		os.Exit(1)
	}

	m := &mailer.Mailer{From: cfg.From, Outbox: cfg.OutboxDir, Logger: logger}

	ctx, done := cli.GracefulShutdown(logger, 10*time.Second, func(context.Context) {
		if err := client.Close(); err != nil {
			logger.Error("AMQP close error", applog.FieldError, err)
		}
	})

	logger.Info("Starting mailer", "queue", cfg.AMQP.Queue, "outbox", cfg.OutboxDir)
	if err := client.Consume(ctx, m.Handle); err != nil && !errors.Is(err, context.Canceled) {
		logger.Error("Message consumption failed", applog.FieldError, err)
		os.Exit(1)
	}

	cli.WaitForShutdown(ctx, done)
}
