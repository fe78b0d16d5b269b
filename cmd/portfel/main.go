package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"time"

	"portfel/internal/api"
	"portfel/internal/cache"
	"portfel/internal/cli"
	apphttp "portfel/internal/http"
	applog "portfel/internal/log"
	"portfel/internal/metrics"
	"portfel/internal/state"
	"portfel/internal/validation"
)

func main() {
	cli.LoadEnvFile()

	logger := cli.SetupLogger(applog.ComponentApp, os.Getenv("LOG_LEVEL"))
	cfg := cli.LoadAndValidateConfig(logger)

	prom := metrics.NewPrometheus("portfel")
	upstreamOpts := api.Options{
		Timeout:         cfg.UpstreamTimeout,
		BreakerFailures: cfg.BreakerFailures,
		BreakerTimeout:  cfg.BreakerOpenTimeout,
		Metrics:         prom,
	}
	backendUp := api.NewUpstream("backend", cfg.BackendURL, upstreamOpts)
	mlUp := api.NewUpstream("ml", cfg.MLURL, upstreamOpts)

	store := state.NewStore(cfg.MaxVisitors, cfg.SessionTTL)
	prom.GaugeFunc("portfel_active_visitors", "Visitors with live state.", func() float64 {
		return float64(store.Len())
	})

	caches := cache.NewManager()
	caches.Register(store.Cleaner())
	caches.StartCleanup(cfg.CleanupInterval)

	srv, err := apphttp.NewServer(cfg, apphttp.Deps{
		Backend:        api.NewBackend(backendUp),
		ML:             api.NewMLClient(mlUp),
		Store:          store,
		Validator:      validation.New(),
		Logger:         logger,
		Metrics:        prom,
		MetricsHandler: prom.Handler(),
		Ready: func(context.Context) error {
			return errors.Join(backendUp.Ready(), mlUp.Ready())
		},
	})
	if err != nil {
		logger.Error("Failed to create server", applog.FieldError, err)
		os.Exit(1)
	}

	ctx, done := cli.GracefulShutdown(logger, 30*time.Second, func(ctx context.Context) {
		if err := srv.Shutdown(ctx); err != nil {
			logger.Error("Server shutdown error", applog.FieldError, err)
		}
		caches.Stop()
	})

	logger.Info("Starting portfel server",
		"port", cfg.Port,
		"backend_url", cfg.BackendURL,
		"ml_url", cfg.MLURL)
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logger.Error("Server error", applog.FieldError, err, "port", cfg.Port)
		os.Exit(1)
	}

	cli.WaitForShutdown(ctx, done)
}
