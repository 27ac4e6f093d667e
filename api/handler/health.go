package handler

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/use-agent/gazette/models"
)

// Version is reported by the health endpoint.
const Version = "0.1.0"

// Health returns a handler for GET /api/v1/health.
//
// Reports both schedulers and degrades status when the article queue is
// longer than degradedQueue.
func Health(news News, degradedQueue int, startTime time.Time) gin.HandlerFunc {
	return func(c *gin.Context) {
		toc, articles := news.Stats()

		status := "healthy"
		if degradedQueue > 0 && articles.Pending > degradedQueue {
			status = "degraded"
		}

		c.JSON(http.StatusOK, models.HealthResponse{
			Status:   status,
			Uptime:   time.Since(startTime).Round(time.Second).String(),
			TOC:      toc,
			Articles: articles,
			Version:  Version,
		})
	}
}
