package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/couchcryptid/disaster-archive-etl/internal/adapter/emdat"
	httpadapter "github.com/couchcryptid/disaster-archive-etl/internal/adapter/http"
	kafkaadapter "github.com/couchcryptid/disaster-archive-etl/internal/adapter/kafka"
	"github.com/couchcryptid/disaster-archive-etl/internal/config"
	"github.com/couchcryptid/disaster-archive-etl/internal/domain"
	"github.com/couchcryptid/disaster-archive-etl/internal/observability"
	"github.com/couchcryptid/disaster-archive-etl/internal/pipeline"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	logger := observability.NewLogger(cfg.LogLevel, cfg.LogFormat)
	metrics := observability.NewMetrics()

	dict, err := config.LoadAliasDictionary(cfg.AliasDictionaryPath)
	if err != nil {
		logger.Error("failed to load alias dictionary", "error", err)
		os.Exit(1)
	}
	strategies, err := config.LoadStrategyMap(cfg.ImputeStrategyPath)
	if err != nil {
		logger.Error("failed to load imputation strategies", "error", err)
		os.Exit(1)
	}
	geo, err := domain.NewGeoLookup(cfg.Curation.GeoLookupVersion)
	if err != nil {
		logger.Error("failed to build geo lookup", "error", err)
		os.Exit(1)
	}

	extractor := emdat.NewReader(cfg.DatasetPath, logger)
	curator := pipeline.NewCurator(cfg.TemporalPolicy(), dict, geo, strategies, cfg.DerivePolicy(), logger)
	writer := kafkaadapter.NewWriter(cfg, logger)

	p := pipeline.New(extractor, curator, writer, logger, metrics)

	srv := httpadapter.NewServer(cfg.HTTPAddr, p, logger)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Start HTTP server.
	go func() {
		if err := srv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("http server error", "error", err)
		}
	}()

	// Start curation pipeline.
	go func() {
		if err := p.Run(ctx); err != nil {
			logger.Error("pipeline error", "error", err)
			stop()
		}
	}()

	<-ctx.Done()
	logger.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("http server shutdown error", "error", err)
	}
	if err := writer.Close(); err != nil {
		logger.Error("kafka writer close error", "error", err)
	}

	logger.Info("shutdown complete")
}
