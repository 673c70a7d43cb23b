package main

import (
	"context"
	"database/sql"
	"errors"
	"log"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/kasunvimarshana/geo-ops-platform-sub000/internal/config"
	"github.com/kasunvimarshana/geo-ops-platform-sub000/internal/handlers"
	"github.com/kasunvimarshana/geo-ops-platform-sub000/internal/observability"
	"github.com/kasunvimarshana/geo-ops-platform-sub000/internal/repository"
	"github.com/kasunvimarshana/geo-ops-platform-sub000/internal/services"
	"golang.org/x/sync/errgroup"
)

// @title GeoOps Field Sync API
// @version 1.0
// @description Land measurement and offline-first sync backend for farm service operators.
// @BasePath /
// @securityDefinitions.apikey GatewayIdentity
// @in header
// @name X-Organization-ID
func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	observability.Configure(cfg.Telemetry.ServiceName, observability.ParseLevel(cfg.LogLevel))
	logger := observability.GetLogger()

	telemetry, err := observability.Initialize(ctx, observability.NewConfig(
		cfg.Telemetry.ServiceName,
		handlers.Version,
		cfg.Environment,
		cfg.Telemetry.Endpoint,
		cfg.Telemetry.Enabled,
	))
	if err != nil {
		log.Fatalf("Failed to initialize telemetry: %v", err)
	}

	var (
		httpMetrics     *observability.HTTPMetrics
		dbMetrics       *observability.DatabaseMetrics
		businessMetrics *observability.BusinessMetrics
	)
	if cfg.Telemetry.Enabled {
		if httpMetrics, err = observability.NewHTTPMetrics(); err != nil {
			log.Fatalf("Failed to create HTTP metrics: %v", err)
		}
		if dbMetrics, err = observability.NewDatabaseMetrics(); err != nil {
			log.Fatalf("Failed to create database metrics: %v", err)
		}
		if businessMetrics, err = observability.NewBusinessMetrics(); err != nil {
			log.Fatalf("Failed to create business metrics: %v", err)
		}
	}

	var (
		db      *sql.DB
		dialect repository.Dialect
	)
	if cfg.UsePostgres() {
		logger.Info("Using PostgreSQL database")
		db, err = repository.NewPostgresDB(cfg.DatabaseURL)
		dialect = repository.DialectPostgres
	} else {
		logger.WithField("path", cfg.DatabasePath).Info("Using SQLite database")
		db, err = repository.NewSQLiteDB(cfg.DatabasePath)
		dialect = repository.DialectSQLite
	}
	if err != nil {
		log.Fatalf("Failed to initialize database: %v", err)
	}
	defer db.Close()

	var wrap repository.QueryWrapper
	if cfg.Telemetry.Enabled {
		wrap = func(q repository.Querier) repository.Querier {
			return observability.NewTraceDB(q, dialect.Name(), dbMetrics)
		}
	}
	store := repository.NewStore(db, dialect, wrap)

	calc := services.NewGeoCalculator()
	conflicts := services.NewConflictLog(store)
	locks := services.NewKeyedLocker()
	hub := services.NewWebSocketHub()

	engine := services.NewSyncEngine(store, calc, conflicts, services.SyncEngineOptions{
		MaxBatchSize: cfg.Sync.MaxBatchSize,
		Notifier:     hub,
		Locks:        locks,
		Metrics:      businessMetrics,
	})
	tracking := services.NewTrackingIngest(store, cfg.Tracking.MaxBatchSize, businessMetrics)
	measurements := services.NewMeasurementService(store, calc, locks, hub, businessMetrics)

	router, err := handlers.NewRouter(handlers.RouterConfig{
		DB:               store,
		Engine:           engine,
		Conflicts:        conflicts,
		Tracking:         tracking,
		Measurements:     measurements,
		Hub:              hub,
		APIKey:           cfg.Security.APIKey,
		APIKeyHeader:     cfg.Security.APIKeyHeader,
		MinClientVersion: cfg.Sync.MinClientVersion,
		RequestTimeout:   time.Duration(cfg.RequestTimeoutSeconds) * time.Second,
		ServiceName:      cfg.Telemetry.ServiceName,
		HTTPMetrics:      httpMetrics,
		Tracing:          cfg.Telemetry.Enabled,
	})
	if err != nil {
		log.Fatalf("Failed to build router: %v", err)
	}

	srv := &http.Server{
		Addr:         cfg.ServerAddress,
		Handler:      router,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 120 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		return hub.Run(gctx)
	})

	g.Go(func() error {
		logger.WithFields(map[string]interface{}{
			"address":     cfg.ServerAddress,
			"environment": cfg.Environment,
			"version":     handlers.Version,
		}).Info("GeoOps server starting")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})

	g.Go(func() error {
		<-gctx.Done()
		logger.Info("Shutting down server...")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})

	if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		logger.Errorf("Server error: %v", err)
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := telemetry.Shutdown(shutdownCtx); err != nil {
		logger.Errorf("Telemetry shutdown failed: %v", err)
	}

	logger.Info("Server stopped")
}
