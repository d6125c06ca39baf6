package http

import (
	"tradesdesk_backend/platform/config"
	"tradesdesk_backend/platform/httpkit"

	"github.com/gin-gonic/gin"
)

// Module is an HTTP-facing part of the service: the Meta webhook, tenant
// auth or the owner dashboard.
type Module interface {
	Name() string
	RegisterRoutes(ctx *RouterContext)
}

// RouterContext is what a module may mount routes on.
type RouterContext struct {
	// Engine is the root engine. Only the webhook uses it; Meta calls
	// /webhook outside /api.
	Engine *gin.Engine
	// V1 is /api/v1 without authentication (register, login).
	V1 *gin.RouterGroup
	// Protected is /api/v1 behind AuthRequired; handlers read the tenant
	// from httpkit.MustGetIdentity.
	Protected *gin.RouterGroup
	Config    config.JWTConfig
	// AuthMiddleware is AuthRequired, for modules that build their own group.
	AuthMiddleware gin.HandlerFunc
	// AuthRateLimiter throttles credential endpoints per client IP.
	AuthRateLimiter *httpkit.AuthRateLimiter
}
