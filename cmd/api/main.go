package main

import (
	"context"
	"net/http"
	"os"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/marketpulse/marketpulse-backend/api/routes"
	"github.com/marketpulse/marketpulse-backend/internal/catalog"
	"github.com/marketpulse/marketpulse-backend/internal/history"
	"github.com/marketpulse/marketpulse-backend/internal/inventory"
	"github.com/marketpulse/marketpulse-backend/internal/supply"
	"github.com/marketpulse/marketpulse-backend/pkg/config"
	"github.com/marketpulse/marketpulse-backend/pkg/db"
	"github.com/marketpulse/marketpulse-backend/pkg/logger"
	"github.com/marketpulse/marketpulse-backend/pkg/metrics"
	"github.com/marketpulse/marketpulse-backend/pkg/migrate"
	"github.com/marketpulse/marketpulse-backend/pkg/redis"
)

func main() {
	logg := logger.New(logger.Options{ServiceName: "api"})

	if err := godotenv.Load(); err != nil {
		logg.Warn(context.Background(), ".env file not found, relying on environment")
	}

	cfg, err := config.Load()
	if err != nil {
		logg.Error(context.Background(), "failed to load config", err)
		os.Exit(1)
	}

	logg = logger.New(logger.Options{
		ServiceName: "api",
		Level:       logger.ParseLevel(cfg.App.LogLevel),
		WarnStack:   cfg.App.LogWarnStack,
	})

	dbClient, err := db.New(context.Background(), cfg.DB, logg)
	if err != nil {
		logg.Error(context.Background(), "failed to bootstrap database", err)
		os.Exit(1)
	}
	defer func() {
		if err := dbClient.Close(); err != nil {
			logg.Error(context.Background(), "error closing database", err)
		}
	}()

	if err := migrate.MaybeRunDev(context.Background(), cfg, logg, dbClient); err != nil {
		logg.Error(context.Background(), "failed to run dev migrations", err)
		os.Exit(1)
	}

	redisClient, err := redis.New(context.Background(), cfg.Redis, logg)
	if err != nil {
		logg.Error(context.Background(), "failed to bootstrap redis", err)
		os.Exit(1)
	}
	defer func() {
		if err := redisClient.Close(); err != nil {
			logg.Error(context.Background(), "error closing redis", err)
		}
	}()

	catalogService, err := catalog.NewService(dbClient, catalog.NewRepository(dbClient.DB()), logg)
	if err != nil {
		logg.Error(context.Background(), "failed to create catalog service", err)
		os.Exit(1)
	}

	supplyService, err := supply.NewService(supply.NewRepository(dbClient.DB()), catalogService)
	if err != nil {
		logg.Error(context.Background(), "failed to create supply service", err)
		os.Exit(1)
	}

	historyService, err := history.NewService(history.NewRepository(dbClient.DB()), catalogService, cfg.Inventory.HistoryPageLimit)
	if err != nil {
		logg.Error(context.Background(), "failed to create history service", err)
		os.Exit(1)
	}

	inventoryMetrics := metrics.NewInventoryMetrics(prometheus.DefaultRegisterer)

	inventoryService, err := inventory.NewService(
		dbClient,
		inventory.NewRepository(dbClient.DB()),
		catalogService,
		supplyService,
		historyService,
		cfg.Inventory,
		logg,
		inventoryMetrics,
	)
	if err != nil {
		logg.Error(context.Background(), "failed to create inventory service", err)
		os.Exit(1)
	}

	port := os.Getenv("PORT")
	if port == "" {
		port = cfg.App.Port
	}
	addr := ":" + port
	ctx := logg.WithFields(context.Background(), map[string]any{
		"env":  cfg.App.Env,
		"addr": addr,
	})
	logg.Info(ctx, "starting api server")

	server := &http.Server{
		Addr: addr,
		Handler: routes.NewRouter(
			cfg,
			logg,
			dbClient,
			redisClient,
			inventoryService,
			historyService,
			supplyService,
			catalogService,
		),
	}

	if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		logg.Error(ctx, "api server stopped unexpectedly", err)
		os.Exit(1)
	}
}
