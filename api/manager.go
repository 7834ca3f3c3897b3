package api

import (
	"diffly_crawler/api/debug"
	"diffly_crawler/api/health"

	"github.com/go-chi/chi/v5"
)

type routerManager struct {
	healthRoutes *health.HealthRoutesManager
	debugRoutes  *debug.DebugRoutesManager
}

func NewRouterManager(
	healthRoutes *health.HealthRoutesManager,
	debugRoutes *debug.DebugRoutesManager,
) *routerManager {
	return &routerManager{
		healthRoutes: healthRoutes,
		debugRoutes:  debugRoutes,
	}
}

func (rm *routerManager) RegisterRoutes(r chi.Router) {
	rm.healthRoutes.RegisterRoutes(r)
	rm.debugRoutes.RegisterRoutes(r)
}
