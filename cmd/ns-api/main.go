// Command ns-api serves the signal analysis of stored aggregate tables over HTTP.
package main

import (
	"DDoSpectra/internal/config"
	"DDoSpectra/internal/logging"
	"DDoSpectra/internal/metrics"
	"DDoSpectra/internal/model"
	"DDoSpectra/internal/notification"
	"DDoSpectra/internal/query"
	"context"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"
)

func main() {
	configPath := flag.String("config", "configs/config.yaml", "Path to the YAML configuration.")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "ns-api: %v\n", err)
		os.Exit(model.ExitCode(err))
	}

	logger := logging.Must(cfg.Logging)
	defer logger.Sync()

	var notifier model.Notifier = notification.NewLogNotifier(logger)
	if cfg.Alerter.Enabled && cfg.NATS.Enabled {
		nn, err := notification.NewNATSNotifier(cfg.NATS, logger)
		if err != nil {
			logger.Fatal("Failed to connect alert notifier", zap.Error(err))
		}
		notifier = nn
	}
	defer notifier.Close()

	h := &APIHandler{cfg: cfg, logger: logger, metrics: metrics.New(), notifier: notifier}

	// Find the first enabled ClickHouse writer config
	for _, writerDef := range cfg.Aggregator.Writers {
		if writerDef.Enabled && writerDef.Type == "clickhouse" {
			querier, err := query.NewClickHouseQuerier(writerDef.ClickHouse)
			if err != nil {
				logger.Fatal("Failed to create querier", zap.Error(err))
			}
			h.querier = querier
			break
		}
	}
	if h.querier == nil {
		logger.Info("No enabled ClickHouse writer found, run queries are disabled")
	}

	// Start HTTP server
	server := &http.Server{
		Addr:    cfg.API.ListenAddr,
		Handler: NewRouter(h),
	}

	go func() {
		logger.Info("API server starting", zap.String("addr", server.Addr), zap.String("data_dir", cfg.API.DataDir))
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("Could not listen", zap.String("addr", server.Addr), zap.Error(err))
		}
	}()

	// Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	logger.Info("API server shutting down...")

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		logger.Error("Server forced to shutdown", zap.Error(err))
	}
	logger.Info("API server exited.")
}
