// Package api exposes the read-only ops surface: health, scheduler job
// states and cache statistics. It renders no UI and accepts no mutations.
package api

import (
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/calebh/marketscout/internal/api/handler"
	"github.com/calebh/marketscout/internal/cache"
	"github.com/calebh/marketscout/internal/logger"
	"github.com/calebh/marketscout/internal/scheduler"
)

// SetupRouter configures the Gin router with all routes.
// Parameters:
//   - sched: scheduler for job snapshots.
//   - listingCache: cache for statistics.
//   - mode: gin mode (release, test, debug).
// Returns:
//   - *gin.Engine: configured router.
func SetupRouter(sched *scheduler.Scheduler, listingCache *cache.ListingCache, mode string) *gin.Engine {
	switch mode {
	case "release":
		gin.SetMode(gin.ReleaseMode)
	case "test":
		gin.SetMode(gin.TestMode)
	default:
		gin.SetMode(gin.DebugMode)
	}

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(requestLogger())

	statusHandler := handler.NewStatusHandler(sched, listingCache)

	r.GET("/health", statusHandler.Health)

	v1 := r.Group("/api/v1")
	{
		v1.GET("/jobs", statusHandler.Jobs)
		v1.GET("/stats", statusHandler.Stats)
	}

	return r
}

// requestLogger injects a request-scoped logger and logs completions.
func requestLogger() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		ctx := logger.WithFields(c.Request.Context(), logger.Fields{
			"request_id":          uuid.New().String(),
			logger.FieldComponent: "api",
		})
		c.Request = c.Request.WithContext(ctx)

		c.Next()

		logger.FromContext(ctx).WithFields(logger.Fields{
			"status":               c.Writer.Status(),
			logger.FieldDurationMs: time.Since(start).Milliseconds(),
		}).Infof("%s %s", c.Request.Method, c.Request.URL.Path)
	}
}
