// Package auth provides tenant registration and dashboard login.
// This file defines the module that encapsulates all auth setup and route registration.
package auth

import (
	"tradesdesk_backend/internal/auth/handler"
	"tradesdesk_backend/internal/auth/service"
	"tradesdesk_backend/internal/events"
	apphttp "tradesdesk_backend/internal/http"
	"tradesdesk_backend/platform/config"
	"tradesdesk_backend/platform/logger"
	"tradesdesk_backend/platform/phone"
	"tradesdesk_backend/platform/validator"
)

// Module is the auth bounded context module implementing http.Module.
type Module struct {
	handler *handler.Handler
	service *service.Service
}

// NewModule creates and initializes the auth module with all its dependencies.
func NewModule(tenants service.TenantStore, phones phone.Normalizer, cfg config.AuthServiceConfig, eventBus events.Bus, val *validator.Validator, log *logger.Logger) *Module {
	svc := service.New(tenants, phones, cfg, eventBus, log)
	return &Module{
		handler: handler.New(svc, val),
		service: svc,
	}
}

// Name returns the module identifier.
func (m *Module) Name() string {
	return "auth"
}

// Service returns the auth service.
func (m *Module) Service() *service.Service {
	return m.service
}

// RegisterRoutes mounts auth routes on the provided router context.
func (m *Module) RegisterRoutes(ctx *apphttp.RouterContext) {
	// Public auth routes with stricter rate limiting
	authGroup := ctx.V1.Group("/auth")
	authGroup.Use(ctx.AuthRateLimiter.RateLimit())
	m.handler.RegisterRoutes(authGroup)

	ctx.Protected.GET("/auth/me", m.handler.GetMe)
}

// Compile-time check that Module implements http.Module
var _ apphttp.Module = (*Module)(nil)
