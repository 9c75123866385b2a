package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/calebh/marketscout/internal/cache"
	"github.com/calebh/marketscout/internal/scheduler"
)

// StatusHandler serves the read-only monitor status endpoints.
type StatusHandler struct {
	sched        *scheduler.Scheduler
	listingCache *cache.ListingCache
}

// NewStatusHandler creates a StatusHandler.
// Parameters:
//   - sched: scheduler for job snapshots.
//   - listingCache: cache for statistics.
// Returns:
//   - *StatusHandler: handler instance.
func NewStatusHandler(sched *scheduler.Scheduler, listingCache *cache.ListingCache) *StatusHandler {
	return &StatusHandler{sched: sched, listingCache: listingCache}
}

// Health reports process liveness.
func (h *StatusHandler) Health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok", "service": "marketscout"})
}

// Jobs returns the current state of every scheduled job.
func (h *StatusHandler) Jobs(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"jobs": h.sched.Snapshot()})
}

// Stats returns cache statistics.
func (h *StatusHandler) Stats(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"cached_listings": h.listingCache.Size(c.Request.Context()),
		"cache_degraded":  h.listingCache.Degraded(),
	})
}
