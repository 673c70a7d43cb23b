package handlers

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	_ "github.com/kasunvimarshana/geo-ops-platform-sub000/docs"
	"github.com/kasunvimarshana/geo-ops-platform-sub000/internal/middleware"
	"github.com/kasunvimarshana/geo-ops-platform-sub000/internal/observability"
	"github.com/kasunvimarshana/geo-ops-platform-sub000/internal/services"
	httpSwagger "github.com/swaggo/http-swagger"
)

// RouterConfig carries everything the HTTP surface is built from
type RouterConfig struct {
	DB           Pinger
	Engine       *services.SyncEngine
	Conflicts    *services.ConflictLog
	Tracking     *services.TrackingIngest
	Measurements *services.MeasurementService
	Hub          *services.WebSocketHub

	APIKey           string
	APIKeyHeader     string
	MinClientVersion string
	RequestTimeout   time.Duration

	// Optional; nil disables request tracing and metrics
	ServiceName string
	HTTPMetrics *observability.HTTPMetrics
	Tracing     bool
}

// publicPaths skip the gateway key check
var publicPaths = []string{"/health", "/api/health", "/version", "/swagger"}

// NewRouter builds the chi router with every route and middleware
func NewRouter(cfg RouterConfig) (http.Handler, error) {
	versionGate, err := middleware.RequireClientVersion(cfg.MinClientVersion)
	if err != nil {
		return nil, err
	}
	if cfg.RequestTimeout <= 0 {
		cfg.RequestTimeout = 60 * time.Second
	}

	healthHandler := NewHealthHandler(cfg.DB)
	syncHandler := NewSyncHandler(cfg.Engine)
	conflictHandler := NewConflictHandler(cfg.Conflicts)
	trackingHandler := NewTrackingHandler(cfg.Tracking)
	measurementHandler := NewMeasurementHandler(cfg.Measurements)
	wsHandler := NewWebSocketHandler(cfg.Hub)

	r := chi.NewRouter()

	r.Use(chimw.RequestID)
	r.Use(chimw.RealIP)
	r.Use(chimw.Logger)
	r.Use(chimw.Recoverer)
	if cfg.Tracing {
		r.Use(observability.TracingMiddleware(cfg.ServiceName))
	}
	if cfg.HTTPMetrics != nil {
		r.Use(observability.MetricsMiddleware(cfg.HTTPMetrics))
	}
	if cfg.APIKey != "" {
		r.Use(middleware.APIKeyAuth(cfg.APIKey, cfg.APIKeyHeader, publicPaths))
	}

	r.Get("/health", healthHandler.HealthCheck)
	r.Get("/api/health", healthHandler.HealthCheck)
	r.Get("/version", VersionHandler(cfg.MinClientVersion))
	r.Get("/swagger/*", httpSwagger.Handler(httpSwagger.URL("/swagger/doc.json")))

	r.Group(func(r chi.Router) {
		r.Use(middleware.RequireIdentity)

		r.Get("/ws", wsHandler.HandleConnection)

		r.Group(func(r chi.Router) {
			r.Use(chimw.Timeout(cfg.RequestTimeout))

			r.Route("/sync", func(r chi.Router) {
				r.Use(versionGate)
				r.Post("/push", syncHandler.Push)
				r.Get("/pull", syncHandler.Pull)
				r.Post("/resolve/{log_id}", syncHandler.Resolve)
				r.Get("/conflicts", conflictHandler.ListConflicts)
				r.Get("/conflicts/stats", conflictHandler.GetStats)
				r.Get("/conflicts/{log_id}", conflictHandler.GetConflict)
			})

			r.Route("/tracking", func(r chi.Router) {
				r.Use(versionGate)
				r.Post("/batch", trackingHandler.Batch)
				r.Get("/trail", trackingHandler.Trail)
			})

			r.Route("/measurements", func(r chi.Router) {
				r.Post("/", measurementHandler.Create)
				r.Get("/", measurementHandler.List)
				r.Post("/calculate", measurementHandler.Calculate)
				r.Get("/{id}", measurementHandler.Get)
				r.Put("/{id}/polygon", measurementHandler.ReplacePolygon)
				r.Delete("/{id}", measurementHandler.Delete)
			})
		})
	})

	return r, nil
}
