package server

import (
	"strings"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"

	"github.com/autovant/RCA-Final-sub001/internal/handlers"
	"github.com/autovant/RCA-Final-sub001/internal/platform/envutil"
)

type RouterConfig struct {
	DetectionHandler *handlers.DetectionHandler
	IncidentsHandler *handlers.IncidentsHandler
	CacheHandler     *handlers.CacheHandler
}

func NewRouter(cfg RouterConfig) *gin.Engine {
	router := gin.Default()

	origins := strings.Split(envutil.String("CORS_ALLOW_ORIGINS", "http://localhost:3000"), ",")
	router.Use(cors.New(cors.Config{
		AllowOrigins:     origins,
		AllowMethods:     []string{"GET", "POST", "PUT", "DELETE", "PATCH", "OPTIONS"},
		AllowHeaders:     []string{"Authorization", "Content-Type", "X-Requested-With"},
		AllowCredentials: true,
	}))

	router.GET("/healthz", handlers.HealthCheck)
	router.GET("/metrics", handlers.Metrics)

	api := router.Group("/api/v1")
	{
		api.POST("/detection", cfg.DetectionHandler.Detect)
		api.GET("/detection/:job_id", cfg.DetectionHandler.GetByJob)

		api.GET("/incidents/:session_id/related", cfg.IncidentsHandler.Related)
		api.POST("/incidents/related/search", cfg.IncidentsHandler.SearchByText)

		api.POST("/cache/lookup", cfg.CacheHandler.Lookup)
		api.POST("/cache/entries", cfg.CacheHandler.Store)
		api.POST("/cache/purge", cfg.CacheHandler.Purge)
		api.POST("/cache/evictions", cfg.CacheHandler.ScheduleEviction)
	}

	return router
}
