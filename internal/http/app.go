// Package http wires the tradesdesk API: the Meta webhook, tenant auth and the
// owner dashboard.
package http

import (
	"context"

	"tradesdesk_backend/platform/config"
	"tradesdesk_backend/platform/logger"
)

// RouterConfig combines the config interfaces needed by the HTTP router.
type RouterConfig interface {
	config.HTTPConfig
	config.JWTConfig
}

// HealthChecker backs /api/ready. The database pool satisfies it.
type HealthChecker interface {
	Ping(ctx context.Context) error
}

// Drainer is background work that must finish before the process exits:
// webhook acknowledgements still decoding, queued conversation turns, async
// event handlers.
type Drainer interface {
	Wait()
}

// App holds the fully initialized application dependencies, built by
// cmd/api and handed to the router.
type App struct {
	Config  RouterConfig
	Logger  *logger.Logger
	Health  HealthChecker
	Modules []Module
	// Drainers are waited on in order after the HTTP server stops accepting
	// requests; later entries may still receive work from earlier ones.
	Drainers []Drainer
}

// Drain waits for every Drainer in order. It reports false when ctx ends
// first; the remaining work is abandoned.
func (a *App) Drain(ctx context.Context) bool {
	done := make(chan struct{})
	go func() {
		for _, d := range a.Drainers {
			d.Wait()
		}
		close(done)
	}()

	select {
	case <-done:
		return true
	case <-ctx.Done():
		return false
	}
}
