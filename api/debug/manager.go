package debug

import (
	"diffly_crawler/config"

	"github.com/go-chi/chi/v5"
)

// CacheInspector exposes redis pool statistics. Nil stats mean the cache is
// not configured.
type CacheInspector interface {
	GetConnectionStats() map[string]any
}

type DebugRoutesManager struct {
	cacheService CacheInspector
}

func NewDebugRoutesManager(cacheService CacheInspector) *DebugRoutesManager {
	return &DebugRoutesManager{
		cacheService: cacheService,
	}
}

func (drm *DebugRoutesManager) RegisterRoutes(r chi.Router) {
	// Debug routes - only in non-production environments
	if !config.IsProduction() {
		r.Route("/debug", func(r chi.Router) {
			r.Get("/cache", drm.CacheStats)
		})
	}
}
