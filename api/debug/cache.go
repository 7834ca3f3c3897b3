package debug

import (
	"net/http"

	"github.com/MonkyMars/gecho"
)

func (drm *DebugRoutesManager) CacheStats(w http.ResponseWriter, r *http.Request) {
	stats := drm.cacheService.GetConnectionStats()
	if stats == nil {
		gecho.NotFound(w,
			gecho.WithMessage("cache is not configured"),
			gecho.Send(),
		)
		return
	}

	gecho.Success(w,
		gecho.WithData(stats),
		gecho.Send(),
	)
}
