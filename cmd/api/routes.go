package main

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/therealutkarshpriyadarshi/ttsgate/internal/middleware"
)

func setupRouter(api *API, limiter *middleware.RateLimiter) *gin.Engine {
	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(middleware.Logger(api.logger))
	router.Use(middleware.CORS(api.opts.AllowedOrigins))

	// Health check
	router.GET("/health", api.healthCheck)

	basePath := api.opts.BasePath
	if basePath == "" {
		basePath = "/api/v1"
	}
	v1 := router.Group(basePath)

	throttled := middleware.RateLimit(limiter)

	// Auth
	authGroup := v1.Group("/auth")
	{
		authGroup.POST("/signup", throttled, api.signup)
		authGroup.POST("/login", throttled, api.login)
		authGroup.POST("/logout", api.logout)
		authGroup.GET("/me", api.auth.RequireUser(), api.me)
	}

	// Synthesis and usage
	v1.POST("/tts/synthesize", api.auth.RequireUser(), api.synthesize)
	v1.GET("/usage", api.auth.RequireUser(), api.getUsage)
	if api.opts.EnableTestRoutes {
		v1.POST("/usage/increment", api.auth.RequireUser(), api.incrementUsage)
	}

	// Admin
	adminGroup := v1.Group("/admin")
	{
		adminGroup.POST("/login", throttled, api.adminLogin)
		adminGroup.GET("/logout", api.logout)

		protected := adminGroup.Group("", api.auth.RequireAdmin())
		protected.POST("/add-admin", api.addAdmin)
		protected.GET("/dashboard", api.dashboard)
		protected.DELETE("/users/:id", api.deleteUser)
		protected.PATCH("/users/:id/reset-usage", api.resetUsage)
	}

	return router
}

// Health check endpoint
func (api *API) healthCheck(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), 5*time.Second)
	defer cancel()

	checks := make(map[string]string, len(api.health))
	healthy := true
	for _, hc := range api.health {
		if err := hc.Check(ctx); err != nil {
			api.logger.WithField("dependency", hc.Name).ErrorWithErr("Health check failed", err)
			checks[hc.Name] = "unhealthy"
			healthy = false
			continue
		}
		checks[hc.Name] = "healthy"
	}

	if !healthy {
		c.JSON(http.StatusServiceUnavailable, gin.H{
			"status": "unhealthy",
			"checks": checks,
		})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"status": "healthy",
		"checks": checks,
	})
}
