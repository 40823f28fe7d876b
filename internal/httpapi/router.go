package httpapi

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/hkim-dev/autopress/internal/common"
	"github.com/hkim-dev/autopress/internal/httpapi/handlers"
	"github.com/hkim-dev/autopress/internal/httpapi/middleware"
)

func NewRouter(h *handlers.Handler) *gin.Engine {
	r := gin.New()
	r.HandleMethodNotAllowed = true
	r.Use(gin.Logger())
	r.Use(middleware.Recovery())
	r.Use(middleware.RequestID())

	r.NoRoute(func(c *gin.Context) {
		common.Fail(c, http.StatusNotFound, 40400, "route not found")
	})
	r.NoMethod(func(c *gin.Context) {
		common.Fail(c, http.StatusMethodNotAllowed, 40500, "method not allowed")
	})

	r.GET("/ping", func(c *gin.Context) {
		common.OK(c, gin.H{"pong": true})
	})

	r.POST("/login", h.Login)

	// The external scheduler drives all progress through this route.
	r.POST("/cron/tick", middleware.CronSecret(h.Cfg.CronSecret), h.Tick)

	api := r.Group("/api")
	api.GET("/models", h.ListModels)
	api.GET("/sites", h.ListSites)
	api.GET("/jobs", h.ListJobs)
	api.GET("/jobs/:id", h.GetJob)
	api.POST("/publish", h.Publish)

	admin := api.Group("/")
	admin.Use(middleware.AuthRequired(h.Cfg.JWTSecret))
	admin.DELETE("/jobs/:id", h.DeleteJob)
	admin.POST("/sites", h.CreateSite)
	admin.PUT("/sites/:id", h.UpdateSite)
	admin.DELETE("/sites/:id", h.DeleteSite)
	admin.GET("/settings", h.GetSettings)
	admin.POST("/settings", h.SetSetting)
	admin.DELETE("/settings", h.DeleteSetting)

	return r
}
