// Package dashboard provides the owner's view of jobs, conversations and
// customers, plus tenant settings.
// This file defines the module that encapsulates all dashboard setup and route registration.
package dashboard

import (
	"tradesdesk_backend/internal/dashboard/handler"
	"tradesdesk_backend/internal/dashboard/service"
	"tradesdesk_backend/internal/events"
	apphttp "tradesdesk_backend/internal/http"
	"tradesdesk_backend/platform/logger"
	"tradesdesk_backend/platform/phone"
	"tradesdesk_backend/platform/validator"
)

// Module is the dashboard bounded context module implementing http.Module.
type Module struct {
	handler *handler.Handler
	service *service.Service
}

// NewModule creates and initializes the dashboard module with all its dependencies.
func NewModule(store service.Store, tenants service.TenantStore, invalidator service.CacheInvalidator, digests service.DigestSender, phones phone.Normalizer, eventBus events.Bus, val *validator.Validator, log *logger.Logger) *Module {
	svc := service.New(store, tenants, invalidator, digests, phones, eventBus, log)
	return &Module{
		handler: handler.New(svc, val),
		service: svc,
	}
}

// Name returns the module identifier.
func (m *Module) Name() string {
	return "dashboard"
}

// Service returns the dashboard service.
func (m *Module) Service() *service.Service {
	return m.service
}

// RegisterRoutes mounts dashboard routes on the protected group.
func (m *Module) RegisterRoutes(ctx *apphttp.RouterContext) {
	m.handler.RegisterRoutes(ctx.Protected)
}

// Compile-time check that Module implements http.Module
var _ apphttp.Module = (*Module)(nil)
