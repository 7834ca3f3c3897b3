package health

import (
	"context"
	"diffly_crawler/structs"

	"github.com/MonkyMars/gecho"
	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// HealthReporter is the health surface the routes expose.
type HealthReporter interface {
	GetServerHealthStatus() structs.ServerHealthStatus
	GetDatabaseHealthStatus(ctx context.Context) (structs.DependencyHealthStatus, error)
	GetCacheHealthStatus(ctx context.Context) (structs.DependencyHealthStatus, error)
}

type HealthRoutesManager struct {
	logger        *gecho.Logger
	healthService HealthReporter
}

func NewHealthRoutesManager(logger *gecho.Logger, healthService HealthReporter) *HealthRoutesManager {
	return &HealthRoutesManager{
		logger:        logger,
		healthService: healthService,
	}
}

func (hrm *HealthRoutesManager) RegisterRoutes(r chi.Router) {
	r.Get("/health/server", hrm.GetServerHealth)
	r.Get("/health/database", hrm.GetDatabaseHealth)
	r.Get("/health/cache", hrm.GetCacheHealth)

	// Prometheus metrics endpoint
	r.Get("/metrics", promhttp.Handler().ServeHTTP)
	RegisterMetrics()
}
