package services

import (
	"context"
	"diffly_crawler/database"
	"diffly_crawler/structs"
	"fmt"

	"github.com/MonkyMars/gecho"
)

type ServiceManager struct {
	logger *gecho.Logger
	config *structs.Config

	CacheService  *CacheService
	LockService   *LockService
	HealthService *HealthService
}

// NewServiceManager wires the long lived services. db may be nil for dry
// runs, in which case health reports the database as not enabled.
func NewServiceManager(logger *gecho.Logger, cfg *structs.Config, db *database.DB) *ServiceManager {
	cacheService := NewCacheService(logger, cfg.Cache)
	lockService := NewLockService(logger, cacheService, cfg.Cache.LockExpiry)
	healthService := NewHealthService(logger, db, cacheService)

	return &ServiceManager{
		logger:        logger,
		config:        cfg,
		CacheService:  cacheService,
		LockService:   lockService,
		HealthService: healthService,
	}
}

// OpenCatalogStore returns the store for one crawl run. Each run owns its
// own database pool, released when the run's pipeline closes the store.
func (sm *ServiceManager) OpenCatalogStore(ctx context.Context, dryRun bool) (CatalogStore, error) {
	if dryRun {
		return NewMemoryCatalogStore().Seed(sm.config.Crawler.PlatformName), nil
	}

	db, err := database.Connect(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to open catalog store: %w", err)
	}
	return NewPostgresCatalogStore(sm.logger, db, sm.CacheService), nil
}

func (sm *ServiceManager) Close() error {
	return sm.CacheService.Close()
}
