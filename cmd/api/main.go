package main

import (
	"context"
	"errors"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"drive-gateway/internal/config"
	"drive-gateway/internal/logging"
	"drive-gateway/internal/storage"

	// Use an alias to prevent naming collisions with the 'server' variable
	apiserver "drive-gateway/internal/api/server"
)

func main() {
	log.SetFlags(log.LstdFlags | log.Lshortfile)

	// 1. Setup Configuration. Missing key or credentials stop the process here.
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("❌ Invalid configuration: %v", err)
	}

	logger := logging.New(cfg.Server.LogLevel, cfg.Server.LogFormat, os.Stdout)
	slog.SetDefault(logger)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// 2. Storage client, built once and shared by every request
	store, err := storage.New(context.Background(), cfg, logger)
	if err != nil {
		logger.Error("failed to initialize storage provider", "provider", cfg.Storage.Provider, "error", err)
		os.Exit(1)
	}

	// 3. Setup Metrics
	go serveMetrics(cfg.Server.MetricsPort, logger)

	// 4. Start Server
	srv := apiserver.New(cfg, store, logger)

	logger.Info("API server starting", "addr", cfg.Server.Port, "provider", store.ProviderName())
	if err := srv.Start(ctx, cfg.Server.Port); err != nil {
		logger.Error("server failed", "error", err)
		os.Exit(1)
	}
	logger.Info("API server stopped")
}

func serveMetrics(addr string, logger *slog.Logger) {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())

	srv := &http.Server{Addr: addr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}
	logger.Info("metrics exposed", "addr", addr, "path", "/metrics")
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logger.Warn("metrics server error", "error", err)
	}
}
