package api

import (
	"net/http"

	"alcyxob/fitness-protocols/internal/domain"
	"alcyxob/fitness-protocols/internal/logger"
	"alcyxob/fitness-protocols/internal/ratelimit"
	"alcyxob/fitness-protocols/internal/service"

	"github.com/gin-gonic/gin"
)

// Services bundles what the HTTP layer depends on.
type Services struct {
	Auth     service.AuthService
	Protocol service.ProtocolService
	Checkin  service.CheckinService
	Catalog  service.CatalogService
}

func SetupRoutes(router *gin.Engine, jwtSecret string, svcs Services, limiter ratelimit.Limiter, log *logger.Logger) {
	authHandler := NewAuthHandler(svcs.Auth)
	protocolHandler := NewProtocolHandler(svcs.Protocol, log)
	checkinHandler := NewCheckinHandler(svcs.Checkin, log)
	catalogHandler := NewCatalogHandler(svcs.Catalog, log)

	router.GET("/ping", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"message": "pong"})
	})

	apiV1 := router.Group("/api/v1")
	{
		authGroup := apiV1.Group("/auth")
		{
			authGroup.POST("/register", authHandler.Register)
			authGroup.POST("/login", authHandler.Login)
		}
	}

	protected := apiV1.Group("")
	protected.Use(AuthMiddleware(jwtSecret))
	{
		protected.GET("/me", func(c *gin.Context) {
			caller, err := getCaller(c)
			if err != nil {
				abortWithError(c, http.StatusInternalServerError, "Failed to get user ID from token")
				return
			}
			c.JSON(http.StatusOK, gin.H{"userId": caller.UserID.Hex(), "role": caller.Role})
		})

		// --- Protocol Routes ---
		protocols := protected.Group("/protocols")
		{
			// POST /api/v1/protocols/generate - quota applies before the pipeline runs
			protocols.POST("/generate", RateLimitMiddleware(limiter, log), protocolHandler.Generate)
			protocols.GET("", protocolHandler.History)
			protocols.GET("/active/:type", protocolHandler.GetActive)
			// Dry-run validation, nothing is generated or stored
			protocols.POST("/validate", protocolHandler.Validate)
		}

		// --- Check-in Routes ---
		checkins := protected.Group("/checkins")
		{
			checkins.POST("/photo-url", checkinHandler.RequestPhotoURL)
			checkins.POST("", checkinHandler.Create)
			checkins.GET("", checkinHandler.List)
		}

		// --- Admin Routes ---
		admin := protected.Group("/admin")
		admin.Use(RoleMiddleware(domain.RoleAdmin))
		{
			admin.GET("/catalog", catalogHandler.List)
			admin.PUT("/catalog", catalogHandler.Upsert)
			admin.DELETE("/catalog/:id", catalogHandler.Delete)
			admin.GET("/catalog/match", catalogHandler.Match)
		}
	}
}
