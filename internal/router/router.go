// Package router registers the HTTP routes.
package router

import (
	"github.com/labstack/echo/v4"

	"github.com/iliyamo/checkin-core/internal/handler"
	"github.com/iliyamo/checkin-core/internal/middleware"
	"github.com/iliyamo/checkin-core/internal/model"
	"github.com/iliyamo/checkin-core/internal/ratelimit"
)

// Handlers bundles everything RegisterRoutes mounts.
type Handlers struct {
	Health   echo.HandlerFunc
	Auth     *handler.AuthHandler
	Checkin  *handler.CheckinHandler
	Pickup   *handler.PickupHandler
	Tracking *handler.TrackingHandler
	// LoginLimiter throttles login attempts per client; nil disables it.
	LoginLimiter ratelimit.Limiter
}

// RegisterRoutes mounts the public, tracking and authenticated routes.
func RegisterRoutes(e *echo.Echo, h Handlers, jwtSecret string) {
	e.GET("/healthz", h.Health)

	auth := e.Group("/v1/auth")
	if h.LoginLimiter != nil {
		auth.Use(middleware.RateLimit(h.LoginLimiter, middleware.ClientKey))
	}
	auth.POST("/login", h.Auth.Login)

	t := e.Group("/t")
	t.GET("/o/:token", h.Tracking.Open)
	t.GET("/c/:token", h.Tracking.Click)

	v1 := e.Group("/v1")
	v1.Use(middleware.JWTAuth(jwtSecret))
	v1.Use(middleware.RequireRole(model.RoleAdmin, model.RoleStaff, model.RoleKiosk))

	v1.POST("/checkins", h.Checkin.Create)
	v1.POST("/checkins/batch", h.Checkin.Batch)
	v1.POST("/checkins/validate", h.Checkin.Validate)
	v1.POST("/attendances/:id/checkout", h.Checkin.CheckOut)
	v1.GET("/locations/:id/attendance", h.Checkin.Current)
	v1.GET("/locations/:id/window", h.Checkin.Window)
	v1.GET("/people/:id/attendance", h.Checkin.History)

	// pickup desks are staffed; kiosks never release children
	v1.POST("/pickup/verify", h.Pickup.Verify, middleware.RequireRole(model.RoleAdmin, model.RoleStaff))
}
