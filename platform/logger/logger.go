// Package logger provides structured logging for the booking assistant.
// It wraps log/slog and carries no business logic.
package logger

import (
	"context"
	"log/slog"
	"os"
	"strings"
)

type contextKey string

const (
	// RequestIDKey carries the inbound HTTP request id.
	RequestIDKey contextKey = "request_id"
	// TenantIDKey carries the tenant a request or event belongs to.
	TenantIDKey contextKey = "tenant_id"
	// ConversationKey carries the serialization key of a conversation.
	ConversationKey contextKey = "conversation_key"
)

// Logger wraps slog.Logger for structured logging
type Logger struct {
	*slog.Logger
}

// New creates a logger for the given environment. Development gets a
// human-readable text handler at debug level, everything else JSON at info.
func New(env string) *Logger {
	opts := &slog.HandlerOptions{Level: slog.LevelInfo}

	var handler slog.Handler
	if strings.EqualFold(env, "development") {
		opts.Level = slog.LevelDebug
		handler = slog.NewTextHandler(os.Stdout, opts)
	} else {
		handler = slog.NewJSONHandler(os.Stdout, opts)
	}

	return &Logger{Logger: slog.New(handler)}
}

// Discard returns a logger that drops everything. Used by tests.
func Discard() *Logger {
	return &Logger{Logger: slog.New(slog.NewTextHandler(discardWriter{}, &slog.HandlerOptions{Level: slog.LevelError + 4}))}
}

type discardWriter struct{}

func (discardWriter) Write(p []byte) (int, error) { return len(p), nil }

// WithContext returns a logger enriched with the ids stored in ctx.
func (l *Logger) WithContext(ctx context.Context) *Logger {
	if ctx == nil {
		return l
	}

	out := l
	if requestID, ok := ctx.Value(RequestIDKey).(string); ok && requestID != "" {
		out = out.with(slog.String("request_id", requestID))
	}
	if tenantID, ok := ctx.Value(TenantIDKey).(string); ok && tenantID != "" {
		out = out.with(slog.String("tenant_id", tenantID))
	}
	if key, ok := ctx.Value(ConversationKey).(string); ok && key != "" {
		out = out.with(slog.String("conversation_key", key))
	}
	return out
}

// WithTenant returns a logger scoped to a tenant.
func (l *Logger) WithTenant(tenantID string) *Logger {
	return l.with(slog.String("tenant_id", tenantID))
}

// WithConversation returns a logger scoped to a conversation.
func (l *Logger) WithConversation(conversationID string) *Logger {
	return l.with(slog.String("conversation_id", conversationID))
}

func (l *Logger) with(attr slog.Attr) *Logger {
	return &Logger{Logger: l.With(attr)}
}

// HTTPRequest logs an HTTP request
func (l *Logger) HTTPRequest(method, path string, status int, latencyMs float64, clientIP string) {
	l.Info("http_request",
		slog.String("method", method),
		slog.String("path", path),
		slog.Int("status", status),
		slog.Float64("latency_ms", latencyMs),
		slog.String("client_ip", clientIP),
	)
}

// HTTPError logs an HTTP error
func (l *Logger) HTTPError(method, path string, status int, err error, clientIP string) {
	l.Error("http_error",
		slog.String("method", method),
		slog.String("path", path),
		slog.Int("status", status),
		slog.String("error", err.Error()),
		slog.String("client_ip", clientIP),
	)
}

// AuthEvent logs dashboard login and registration attempts.
func (l *Logger) AuthEvent(event, email string, success bool, reason string) {
	if success {
		l.Info("auth_event",
			slog.String("event", event),
			slog.String("email", email),
			slog.Bool("success", true),
		)
		return
	}
	l.Warn("auth_event",
		slog.String("event", event),
		slog.String("email", email),
		slog.Bool("success", false),
		slog.String("reason", reason),
	)
}

// ExternalFailure logs a failed call to a collaborator (messaging channel,
// AI provider, calendar) that the caller recovered from.
func (l *Logger) ExternalFailure(collaborator, operation string, err error) {
	l.Warn("external_failure",
		slog.String("collaborator", collaborator),
		slog.String("operation", operation),
		slog.String("error", err.Error()),
	)
}

// DatabaseError logs database errors
func (l *Logger) DatabaseError(operation string, err error) {
	l.Error("database_error",
		slog.String("operation", operation),
		slog.String("error", err.Error()),
	)
}

// RateLimitExceeded logs rate limit events
func (l *Logger) RateLimitExceeded(clientIP, path string) {
	l.Warn("rate_limit_exceeded",
		slog.String("client_ip", clientIP),
		slog.String("path", path),
	)
}
