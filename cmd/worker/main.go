package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/prometheus/client_golang/prometheus"

	"rollcall/internal/app"
	"rollcall/internal/attendance"
	"rollcall/internal/config"
	"rollcall/internal/logging"
	"rollcall/internal/metrics"
	"rollcall/internal/worker"
)

// Worker subscribes to the scan feed and runs every scan through the pipeline.
func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config: %v", err)
	}
	logger := logging.New(os.Stdout, cfg.LogLevel, cfg.LogFormat)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	res, err := app.Open(ctx, cfg, logger)
	if err != nil {
		logger.Error("startup failed", "error", err)
		os.Exit(1)
	}
	defer func() { _ = res.Close() }()

	loc, err := cfg.Location()
	if err != nil {
		logger.Error("timezone", "error", err)
		os.Exit(1)
	}

	m := metrics.NewPipeline(prometheus.DefaultRegisterer)
	pipeline := attendance.NewPipeline(
		attendance.NewResolver(res.Repo),
		attendance.NewScheduleMatcher(res.Repo),
		attendance.NewLedger(res.Repo),
		attendance.WithLocation(loc),
		attendance.WithObserver(m),
		attendance.WithLogger(logging.Named(logger, "pipeline")),
	)

	pool := worker.NewPool(cfg.Workers, res.Feed, pipeline,
		worker.WithRecorder(m),
		worker.WithLogger(logging.Named(logger, "worker")),
	)
	logger.Info("worker started, waiting for scans", "timezone", loc.String(), "store", cfg.StoreBackend, "feed", cfg.FeedBackend)
	if err := pool.Run(ctx); err != nil {
		logger.Error("worker failed", "error", err)
		os.Exit(1)
	}
	logger.Info("worker stopped")
}
