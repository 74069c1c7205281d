// Package router wires the public API routes.
package router

import (
	"meter/internal/delivery/api/middleware"
	"meter/internal/delivery/api/router/handler"
	"meter/internal/infra/metrics"

	"github.com/labstack/echo/v4"
	"go.uber.org/fx"
)

type RouterParams struct {
	fx.In

	AuthHandler    *handler.AuthHandler
	BillingHandler *handler.BillingHandler
	HealthHandler  *handler.HealthHandler
	AuthMiddleware *middleware.AuthMiddleware
	Metrics        *metrics.Metrics
}

// router holds all the handlers that need to be registered.
type router struct {
	authHandler    *handler.AuthHandler
	billingHandler *handler.BillingHandler
	healthHandler  *handler.HealthHandler
	authMiddleware *middleware.AuthMiddleware
	metrics        *metrics.Metrics
}

// NewRouter is the constructor for the Router.
// Fx will inject the required handlers here.
func NewRouter(params RouterParams) *router {
	return &router{
		authHandler:    params.AuthHandler,
		billingHandler: params.BillingHandler,
		healthHandler:  params.HealthHandler,
		authMiddleware: params.AuthMiddleware,
		metrics:        params.Metrics,
	}
}

// RegisterRoutes sets up all the API routes for the application.
func (r *router) RegisterRoutes(e *echo.Echo) {
	e.GET("/metrics", echo.WrapHandler(r.metrics.Handler()))

	api := e.Group("/api")
	api.GET("/health", r.healthHandler.Health)
	api.GET("/version", r.healthHandler.Version)

	authGroup := api.Group("/auth")
	{
		authGroup.POST("/login", r.authHandler.Login)
		authGroup.POST("/refresh", r.authHandler.Refresh)
		authGroup.POST("/logout", r.authHandler.Logout)
		authGroup.GET("/me", r.authHandler.Me, r.authMiddleware.Authenticate)
	}

	billingGroup := api.Group("/billing")
	billingGroup.Use(r.authMiddleware.Authenticate)
	{
		billingGroup.GET("/plans", r.billingHandler.GetPlans)
		billingGroup.POST("/catalog/sync", r.billingHandler.SyncCatalog, r.authMiddleware.RequireCatalogSync())
	}

	stripeGroup := api.Group("/stripe")
	stripeGroup.Use(r.authMiddleware.Authenticate)
	{
		stripeGroup.GET("/health", r.billingHandler.ProviderHealth)
	}
}
