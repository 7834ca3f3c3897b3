package services

import (
	"context"
	"diffly_crawler/database"
	"diffly_crawler/structs"
	"runtime"
	"time"

	"github.com/MonkyMars/gecho"
)

var uptimeStart time.Time

func init() {
	uptimeStart = time.Now()
}

// HealthService reports process, database and cache health. A nil db
// (dry runs) is reported as not enabled.
type HealthService struct {
	logger *gecho.Logger
	db     *database.DB
	cache  *CacheService
	status structs.ServerHealthStatus
}

func NewHealthService(logger *gecho.Logger, db *database.DB, cache *CacheService) *HealthService {
	return &HealthService{
		logger: logger,
		db:     db,
		cache:  cache,
		status: structs.ServerHealthStatus{
			Uptime:       0,
			CurrentTime:  time.Now(),
			ServiceAlive: true,
			RamStats:     getRamStats(),
		},
	}
}

func getRamStats() *structs.RamStats {
	var m runtime.MemStats
	runtime.ReadMemStats(&m)

	totalMB := m.Sys / 1024 / 1024
	usedMB := m.Alloc / 1024 / 1024
	freeMB := totalMB - usedMB
	usedPercent := uint64(0)
	if totalMB > 0 {
		usedPercent = (usedMB * 100) / totalMB
	}

	return &structs.RamStats{
		TotalMB:     totalMB,
		UsedMB:      usedMB,
		FreeMB:      freeMB,
		UsedPercent: usedPercent,
	}
}

func (hs *HealthService) GetServerHealthStatus() structs.ServerHealthStatus {
	hs.status.Uptime = time.Since(uptimeStart).Seconds()
	hs.status.CurrentTime = time.Now()
	hs.status.RamStats = getRamStats()
	return hs.status
}

func (hs *HealthService) GetDatabaseHealthStatus(ctx context.Context) (structs.DependencyHealthStatus, error) {
	if hs.db == nil {
		return structs.DependencyHealthStatus{LastChecked: time.Now()}, nil
	}
	return hs.check(ctx, "Database", hs.db.Health)
}

func (hs *HealthService) GetCacheHealthStatus(ctx context.Context) (structs.DependencyHealthStatus, error) {
	if !hs.cache.Enabled() {
		return structs.DependencyHealthStatus{LastChecked: time.Now()}, nil
	}
	return hs.check(ctx, "Cache", hs.cache.Ping)
}

func (hs *HealthService) check(ctx context.Context, name string, ping func(context.Context) error) (structs.DependencyHealthStatus, error) {
	start := time.Now()
	err := ping(ctx)
	elapsed := time.Since(start).Milliseconds()

	status := structs.DependencyHealthStatus{
		Enabled:        true,
		Connected:      err == nil,
		LastChecked:    time.Now(),
		ResponseTimeMs: elapsed,
	}
	if err != nil {
		hs.logger.Error(name+" health check failed", gecho.Field("error", err))
	}
	return status, err
}
