package api

import (
	"github.com/gin-gonic/gin"
	"github.com/nsavage/wardendns/internal/api/handlers"
	"github.com/nsavage/wardendns/internal/api/middleware"
	"github.com/nsavage/wardendns/internal/config"
)

// RegisterRoutes wires the Control API's route table onto r.
func RegisterRoutes(r *gin.Engine, h *handlers.Handler, cfg *config.Config) {
	r.GET("/api/health", h.Health)
	r.POST("/api/auth/login", h.Login)

	authed := r.Group("/api")
	authed.Use(middleware.RequireAuth(cfg.API.SecretKey))

	authed.GET("/domain-logs", h.DomainLogs)
	authed.GET("/lists/stats", h.ListStats)
	authed.GET("/lists/:source/:list_type/domains", h.ListDomains)
	authed.POST("/lists/manual/:list_type/domains", h.CreateDomain)
	authed.DELETE("/lists/:source/:list_type/domains/:domain", h.DeleteDomain)
}
