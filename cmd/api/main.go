package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"github.com/angelmondragon/platecost-backend/api/routes"
	"github.com/angelmondragon/platecost-backend/internal/audit"
	"github.com/angelmondragon/platecost-backend/internal/costimport"
	"github.com/angelmondragon/platecost-backend/internal/dishcost"
	"github.com/angelmondragon/platecost-backend/internal/menucost"
	"github.com/angelmondragon/platecost-backend/internal/uom"
	"github.com/angelmondragon/platecost-backend/pkg/config"
	"github.com/angelmondragon/platecost-backend/pkg/db"
	"github.com/angelmondragon/platecost-backend/pkg/logger"
	"github.com/angelmondragon/platecost-backend/pkg/metrics"
	"github.com/angelmondragon/platecost-backend/pkg/migrate"
	"github.com/angelmondragon/platecost-backend/pkg/redis"
)

const shutdownTimeout = 15 * time.Second

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
		Format:      cfg.App.LogFormat,
	})

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	dbClient, err := db.New(ctx, cfg.DB, cfg.FeatureFlags, logg)
	if err != nil {
		logg.Error(ctx, "failed to bootstrap database", err)
		os.Exit(1)
	}
	defer func() {
		if err := dbClient.Close(); err != nil {
			logg.Error(context.Background(), "error closing database", err)
		}
	}()

	if err := migrate.MaybeRunDev(ctx, cfg, logg, dbClient); err != nil {
		logg.Error(ctx, "failed to run dev migrations", err)
		os.Exit(1)
	}

	var redisClient *redis.Client
	if cfg.Redis.Enabled() {
		redisClient, err = redis.New(ctx, cfg.Redis, logg)
		if err != nil {
			logg.Error(ctx, "failed to bootstrap redis", err)
			os.Exit(1)
		}
		defer func() {
			if err := redisClient.Close(); err != nil {
				logg.Error(context.Background(), "error closing redis", err)
			}
		}()
	} else {
		logg.Warn(ctx, "redis not configured; locked report cache, confirm guard and idempotency disabled")
	}

	location, err := cfg.Import.Location()
	if err != nil {
		logg.Error(ctx, "failed to resolve import timezone", err)
		os.Exit(1)
	}

	registry := prometheus.NewRegistry()
	registry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	costingMetrics := metrics.NewCostingMetrics(registry)

	gormDB := dbClient.DB()

	auditService, err := audit.NewService(audit.NewRepository(gormDB))
	requireService(ctx, logg, "audit", err)

	uomService, err := uom.NewService(uom.NewRepository(gormDB))
	requireService(ctx, logg, "uom", err)

	dishRepo := dishcost.NewRepository(gormDB)
	dishService, err := dishcost.NewService(dishRepo)
	requireService(ctx, logg, "dish cost", err)

	menuParams := menucost.ServiceParams{
		Repo:     menucost.NewRepository(gormDB),
		DishRepo: dishRepo,
		Tx:       dbClient,
		Audit:    auditService,
		CacheTTL: cfg.Redis.ReportCacheTTL,
		Metrics:  costingMetrics,
		Logger:   logg,
	}
	importParams := costimport.ServiceParams{
		Repo:      costimport.NewRepository(gormDB),
		Tx:        dbClient,
		Audit:     auditService,
		GuardTTL:  cfg.Redis.ConfirmLockTTL,
		ChunkSize: cfg.Import.InsertChunkSize,
		Location:  location,
		Metrics:   costingMetrics,
		Logger:    logg,
	}
	if redisClient != nil {
		menuParams.Cache = redisClient
		importParams.Guard = redisClient
	}

	menuService, err := menucost.NewService(menuParams)
	requireService(ctx, logg, "menu cost", err)

	importService, err := costimport.NewService(importParams)
	requireService(ctx, logg, "cost import", err)

	port := os.Getenv("PORT")
	if port == "" {
		port = cfg.App.Port
	}
	addr := ":" + port
	ctx = logg.WithFields(ctx, map[string]any{"addr": addr, "env": cfg.App.Env})
	logg.Info(ctx, "starting api server")

	server := &http.Server{
		Addr: addr,
		Handler: routes.NewRouter(cfg, logg, dbClient, redisClient, registry,
			uomService, dishService, menuService, importService, auditService),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			logg.Error(ctx, "api server stopped unexpectedly", err)
			os.Exit(1)
		}
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), shutdownTimeout)
		defer cancel()
		logg.Info(shutdownCtx, "shutting down api server")
		if err := server.Shutdown(shutdownCtx); err != nil {
			logg.Error(shutdownCtx, "api server shutdown failed", err)
		}
	}
}

func requireService(ctx context.Context, logg *logger.Logger, name string, err error) {
	if err == nil {
		return
	}
	logg.Error(ctx, "failed to create "+name+" service", err)
	os.Exit(1)
}
