// Package webhook receives WhatsApp Cloud API webhooks and feeds customer
// messages to the conversation dispatcher.
package webhook

import (
	apphttp "tradesdesk_backend/internal/http"
	"tradesdesk_backend/platform/config"
	"tradesdesk_backend/platform/logger"
)

// Module is the webhook module implementing http.Module.
type Module struct {
	handler   *Handler
	appSecret string
}

// NewModule wires the webhook service and handler. dedupe may be nil for a
// single-process deployment.
func NewModule(cfg config.WhatsAppConfig, tenants TenantResolver, dedupe Deduper, reader ReadMarker, sink Submitter, log *logger.Logger) *Module {
	service := NewService(tenants, dedupe, reader, sink, log)
	return &Module{
		handler:   NewHandler(service, cfg.GetWhatsAppVerifyToken(), log),
		appSecret: cfg.GetWhatsAppAppSecret(),
	}
}

// Name returns the module identifier.
func (m *Module) Name() string {
	return "webhook"
}

// RegisterRoutes mounts the public webhook endpoints at the engine root,
// where Meta is configured to call them.
func (m *Module) RegisterRoutes(ctx *apphttp.RouterContext) {
	ctx.Engine.GET("/webhook", m.handler.HandleVerify)
	ctx.Engine.POST("/webhook", SignatureMiddleware(m.appSecret), m.handler.HandleReceive)
}

// Wait blocks until background read receipts have been sent.
func (m *Module) Wait() {
	m.handler.Wait()
}

// Compile-time check that Module implements http.Module
var _ apphttp.Module = (*Module)(nil)
