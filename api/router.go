package api

import (
	"time"

	"github.com/gin-gonic/gin"

	"github.com/use-agent/gazette/api/handler"
	"github.com/use-agent/gazette/api/middleware"
	"github.com/use-agent/gazette/config"
)

// NewRouter creates a configured Gin engine with all routes and middleware.
//
// Middleware chain:
//
//	Global:  Recovery → RequestID → Logger
//	API:     Auth (if enabled) → RateLimit
//
// Health endpoint is outside auth so monitoring probes always work.
func NewRouter(news handler.News, cfg *config.Config, startTime time.Time) *gin.Engine {
	gin.SetMode(cfg.Server.Mode)

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(middleware.RequestID())
	r.Use(gin.Logger())

	v1 := r.Group("/api/v1")

	// Health: no auth required.
	v1.GET("/health", handler.Health(news, cfg.Download.DegradedQueue, startTime))

	// Protected group: auth + rate limit.
	protected := v1.Group("")
	if cfg.Auth.Enabled {
		protected.Use(middleware.Auth(cfg.Auth.APIKeys))
	}
	protected.Use(middleware.RateLimit(cfg.RateLimit))

	protected.GET("/toc", handler.TableOfContents(news))
	protected.GET("/tracks", handler.Tracks(news))
	protected.POST("/article", handler.Article(news))

	return r
}
