package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/02loveslollipop/ldas-malaria-viewer/services/api/analysis"
	"github.com/02loveslollipop/ldas-malaria-viewer/services/api/config"
	"github.com/02loveslollipop/ldas-malaria-viewer/services/api/dataset"
	"github.com/02loveslollipop/ldas-malaria-viewer/services/api/db"
	"github.com/02loveslollipop/ldas-malaria-viewer/services/api/geo"
	httpserver "github.com/02loveslollipop/ldas-malaria-viewer/services/api/http"
	"github.com/02loveslollipop/ldas-malaria-viewer/services/api/observability"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		slog.Error("config error", "error", err)
		os.Exit(1)
	}

	logger := observability.NewLogger(cfg.LogLevel, cfg.LogFormat, os.Stdout)
	slog.SetDefault(logger)
	metrics := observability.NewMetrics()

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	ds, districts, err := load(ctx, cfg)
	if err != nil {
		logger.Error("failed to load data", "source", cfg.DatasetSource, "error", err)
		os.Exit(1)
	}
	metrics.DatasetObservations.Set(float64(ds.Len()))
	metrics.DatasetDistricts.Set(float64(len(ds.Districts())))
	metrics.GeometryDistricts.Set(float64(len(districts)))
	logger.Info("data loaded",
		"source", cfg.DatasetSource,
		"observations", ds.Len(),
		"variables", len(ds.Variables()),
		"districts", len(ds.Districts()),
		"geometries", len(districts),
	)

	svc := analysis.NewService(ds, analysis.ServiceConfig{
		Logger:   logger,
		Metrics:  metrics,
		CacheTTL: cfg.CorrelationCacheTTL,
		Window:   cfg.Window,
		Order:    cfg.ShiftOrder,
	})
	defer svc.Close()

	srv := httpserver.New(cfg, svc, districts, logger, metrics)
	logger.Info("REST API listening", "addr", cfg.ListenAddr())

	if err := srv.Run(ctx); err != nil {
		logger.Error("server error", "error", err)
		os.Exit(1)
	}
}

func load(ctx context.Context, cfg config.Config) (*dataset.Dataset, []geo.District, error) {
	switch cfg.DatasetSource {
	case config.SourcePostgres:
		store, err := db.New(ctx, cfg.DatabaseURL)
		if err != nil {
			return nil, nil, fmt.Errorf("db connection: %w", err)
		}
		defer store.Close()

		obs, err := store.LoadObservations(ctx)
		if err != nil {
			return nil, nil, err
		}
		ds, err := dataset.New(obs)
		if err != nil {
			return nil, nil, err
		}
		districts, err := store.LoadDistricts(ctx)
		if err != nil {
			return nil, nil, err
		}
		return ds, districts, nil
	default:
		ds, err := dataset.LoadCSV(cfg.DatasetPath)
		if err != nil {
			return nil, nil, err
		}
		districts, err := geo.LoadGeoJSON(cfg.GeometryPath, geo.LoadOptions{
			IDProperty:   cfg.GeometryIDProperty,
			NameProperty: cfg.GeometryNameProperty,
			PadWidth:     cfg.GeometryIDPad,
		})
		if err != nil {
			return nil, nil, err
		}
		return ds, districts, nil
	}
}
