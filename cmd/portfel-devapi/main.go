package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"time"

	"portfel/internal/amqp"
	"portfel/internal/cli"
	"portfel/internal/devapi"
	applog "portfel/internal/log"
)

const sessionPurgeInterval = time.Hour

func main() {
	cli.LoadEnvFile()

	logger := cli.SetupLogger(applog.ComponentDevAPI, os.Getenv("LOG_LEVEL"))
	cfg := cli.LoadAndValidateDevAPIConfig(logger)

	repo := cli.InitSQLite(logger, cfg.SQLiteDBPath)
	defer repo.Close()

	var notifier amqp.Notifier = amqp.LogNotifier{Logger: logger.WithComponent(applog.ComponentAMQP).Logger}
	if cfg.AMQP.Enabled() {
		client, err := amqp.NewClient(cfg.AMQP.URL, cfg.AMQP.Exchange, cfg.AMQP.Queue)
		if err != nil {
			logger.Error("Failed to initialize AMQP client", applog.FieldError, err)
			os.Exit(1)
		}
		defer client.Close()
		notifier = client
		logger.Info("Publishing notifications to AMQP", "exchange", cfg.AMQP.Exchange)
	} else {
		logger.Info("AMQP disabled, notifications are logged")
	}

	api := devapi.New(repo, devapi.Options{
		PinTTL:      cfg.PinTTL,
		SessionTTL:  cfg.SessionTTL,
		FrontendURL: cfg.FrontendURL,
		Notifier:    notifier,
		Logger:      logger,
	})
	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           api.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	ctx, done := cli.GracefulShutdown(logger, 30*time.Second, func(ctx context.Context) {
		if err := srv.Shutdown(ctx); err != nil {
			logger.Error("Server shutdown error", applog.FieldError, err)
		}
	})

	go purgeSessions(ctx, logger, repo)

	logger.Info("Starting development backend", "port", cfg.Port, "db", cfg.SQLiteDBPath)
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logger.Error("Server error", applog.FieldError, err, "port", cfg.Port)
		os.Exit(1)
	}

	cli.WaitForShutdown(ctx, done)
}

func purgeSessions(ctx context.Context, logger *applog.Logger, repo interface {
	PurgeExpiredSessions(context.Context) (int64, error)
}) {
	ticker := time.NewTicker(sessionPurgeInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			n, err := repo.PurgeExpiredSessions(ctx)
			if err != nil {
				logger.Error("Session purge failed", applog.FieldError, err)
				continue
			}
			if n > 0 {
				logger.Info("Expired sessions removed", "count", n)
			}
		}
	}
}
