package http

import (
	"github.com/gin-gonic/gin"
	"github.com/macrolens/shelfprice/config"
)

// SetupRouter creates and configures the Gin router
func SetupRouter(cfg *config.Config, handler *Handler) *gin.Engine {
	if cfg.Server.Environment == "production" {
		gin.SetMode(gin.ReleaseMode)
	}

	router := gin.New()

	// Global middleware
	router.Use(RequestIDMiddleware())
	router.Use(RecoveryMiddleware())
	router.Use(LoggerMiddleware())
	router.Use(CORSMiddleware(cfg.Server.AllowedOrigins))

	router.GET("/health", handler.HealthCheck)

	v1 := router.Group("/api/v1")
	{
		v1.GET("/sources", handler.ListSources)

		products := v1.Group("/products")
		{
			products.POST("/search", handler.SearchProducts)
		}
	}

	return router
}
