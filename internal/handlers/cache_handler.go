package handlers

import (
	"net/http"

	"github.com/getmentor/getmentor-sessions/internal/services"
	"github.com/gin-gonic/gin"
)

// CacheHandler exposes cache region statistics
type CacheHandler struct {
	stats services.CacheStatsProvider
}

// NewCacheHandler creates a new CacheHandler
func NewCacheHandler(stats services.CacheStatsProvider) *CacheHandler {
	return &CacheHandler{stats: stats}
}

// Stats handles GET /api/internal/cache/stats
func (h *CacheHandler) Stats(c *gin.Context) {
	regions := h.stats.Stats()

	out := make([]gin.H, 0, len(regions))
	for _, s := range regions {
		out = append(out, gin.H{
			"region":           s.Region,
			"ttlSeconds":       int(s.TTL.Seconds()),
			"maxEntries":       s.MaxEntries,
			"size":             s.Size,
			"hits":             s.Hits,
			"misses":           s.Misses,
			"hitRatio":         s.HitRatio(),
			"sizeEvictions":    s.SizeEvictions,
			"expiredEvictions": s.ExpiredEvictions,
		})
	}

	c.JSON(http.StatusOK, gin.H{"regions": out})
}
