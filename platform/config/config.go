// Package config provides application configuration loading.
// This is part of the platform layer and contains no business logic.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// =============================================================================
// Module-Specific Config Interfaces (Principle of Least Privilege)
// =============================================================================

// DatabaseConfig provides database connection settings.
type DatabaseConfig interface {
	GetDatabaseURL() string
	GetDatabaseMaxConns() int
}

// JWTConfig provides JWT validation settings for middleware.
type JWTConfig interface {
	GetJWTSecret() string
}

// AuthServiceConfig provides settings needed by the auth service.
type AuthServiceConfig interface {
	JWTConfig
	GetAccessTokenTTL() time.Duration
}

// HTTPConfig provides settings for the HTTP server.
type HTTPConfig interface {
	GetHTTPAddr() string
	GetCORSAllowAll() bool
	GetCORSOrigins() []string
	GetCORSAllowCreds() bool
}

// RedisConfig provides the optional redis connection shared by locks,
// webhook dedupe, tenant invalidation and asynq.
type RedisConfig interface {
	GetRedisURL() string
	GetRedisTLSInsecure() bool
	IsRedisEnabled() bool
}

// SchedulerConfig provides settings for the asynq client and worker.
type SchedulerConfig interface {
	RedisConfig
	GetAsynqQueueName() string
	GetAsynqConcurrency() int
	GetDigestCron() string
	GetDigestTimezone() string
}

// WhatsAppConfig provides settings for the WhatsApp Cloud API and webhook.
type WhatsAppConfig interface {
	GetWhatsAppAPIBaseURL() string
	GetWhatsAppVerifyToken() string
	GetWhatsAppAppSecret() string
}

// AIConfig selects and configures the completion provider.
type AIConfig interface {
	GetAIProvider() string
	GetMoonshotAPIKey() string
	GetMoonshotModel() string
	GetGeminiAPIKey() string
	GetGeminiModel() string
	GetAITimeout() time.Duration
}

// CalendarConfig provides calendar call limits.
type CalendarConfig interface {
	GetCalendarTimeout() time.Duration
}

// TenantCacheConfig provides the resolver cache TTL.
type TenantCacheConfig interface {
	GetTenantCacheTTL() time.Duration
}

// PhoneConfig provides the region used to parse national numbers.
type PhoneConfig interface {
	GetPhoneDefaultRegion() string
}

// SMTPConfig provides settings for digest emails.
type SMTPConfig interface {
	GetSMTPHost() string
	GetSMTPPort() int
	GetSMTPUsername() string
	GetSMTPPassword() string
	GetSMTPFromName() string
	GetSMTPFromAddress() string
	IsSMTPEnabled() bool
}

// CleanupConfig controls how long quiet conversations stay open.
type CleanupConfig interface {
	GetConversationIdleTimeout() time.Duration
	GetCleanupInterval() time.Duration
}

// RelayConfig provides settings for the RabbitMQ event relay.
type RelayConfig interface {
	GetAMQPURL() string
	GetAMQPExchange() string
	IsRelayEnabled() bool
}

// =============================================================================
// Main Config Struct
// =============================================================================

// Config holds all application configuration values.
type Config struct {
	Env                 string
	HTTPAddr            string
	DatabaseURL         string
	DatabaseMaxConns    int
	JWTSecret           string
	AccessTokenTTL      time.Duration
	CORSAllowAll        bool
	CORSOrigins         []string
	CORSAllowCreds      bool
	RedisURL            string
	RedisTLSInsecure    bool
	AsynqQueueName      string
	AsynqConcurrency    int
	DigestCron          string
	DigestTimezone      string
	WhatsAppAPIBaseURL  string
	WhatsAppVerifyToken string
	WhatsAppAppSecret   string
	AIProvider          string
	MoonshotAPIKey      string
	MoonshotModel       string
	GeminiAPIKey        string
	GeminiModel         string
	AITimeout           time.Duration
	CalendarTimeout     time.Duration
	TenantCacheTTL      time.Duration
	PhoneDefaultRegion  string
	SMTPHost            string
	SMTPPort            int
	SMTPUsername        string
	SMTPPassword        string
	SMTPFromName        string
	SMTPFromAddress     string
	AMQPURL             string
	AMQPExchange        string
	ConversationIdle    time.Duration
	CleanupInterval     time.Duration
}

// =============================================================================
// Interface Implementations
// =============================================================================

// DatabaseConfig implementation
func (c *Config) GetDatabaseURL() string { return c.DatabaseURL }
func (c *Config) GetDatabaseMaxConns() int { return c.DatabaseMaxConns }

// JWTConfig / AuthServiceConfig implementation
func (c *Config) GetJWTSecret() string             { return c.JWTSecret }
func (c *Config) GetAccessTokenTTL() time.Duration { return c.AccessTokenTTL }

// HTTPConfig implementation
func (c *Config) GetHTTPAddr() string      { return c.HTTPAddr }
func (c *Config) GetCORSAllowAll() bool    { return c.CORSAllowAll }
func (c *Config) GetCORSOrigins() []string { return c.CORSOrigins }
func (c *Config) GetCORSAllowCreds() bool  { return c.CORSAllowCreds }

// RedisConfig / SchedulerConfig implementation
func (c *Config) GetRedisURL() string        { return c.RedisURL }
func (c *Config) GetRedisTLSInsecure() bool  { return c.RedisTLSInsecure }
func (c *Config) IsRedisEnabled() bool       { return c.RedisURL != "" }
func (c *Config) GetAsynqQueueName() string  { return c.AsynqQueueName }
func (c *Config) GetAsynqConcurrency() int   { return c.AsynqConcurrency }
func (c *Config) GetDigestCron() string      { return c.DigestCron }
func (c *Config) GetDigestTimezone() string  { return c.DigestTimezone }

// WhatsAppConfig implementation
func (c *Config) GetWhatsAppAPIBaseURL() string  { return c.WhatsAppAPIBaseURL }
func (c *Config) GetWhatsAppVerifyToken() string { return c.WhatsAppVerifyToken }
func (c *Config) GetWhatsAppAppSecret() string   { return c.WhatsAppAppSecret }

// AIConfig implementation
func (c *Config) GetAIProvider() string        { return c.AIProvider }
func (c *Config) GetMoonshotAPIKey() string    { return c.MoonshotAPIKey }
func (c *Config) GetMoonshotModel() string     { return c.MoonshotModel }
func (c *Config) GetGeminiAPIKey() string      { return c.GeminiAPIKey }
func (c *Config) GetGeminiModel() string       { return c.GeminiModel }
func (c *Config) GetAITimeout() time.Duration  { return c.AITimeout }

func (c *Config) GetCalendarTimeout() time.Duration { return c.CalendarTimeout }
func (c *Config) GetTenantCacheTTL() time.Duration  { return c.TenantCacheTTL }
func (c *Config) GetPhoneDefaultRegion() string     { return c.PhoneDefaultRegion }

// SMTPConfig implementation
func (c *Config) GetSMTPHost() string        { return c.SMTPHost }
func (c *Config) GetSMTPPort() int           { return c.SMTPPort }
func (c *Config) GetSMTPUsername() string    { return c.SMTPUsername }
func (c *Config) GetSMTPPassword() string    { return c.SMTPPassword }
func (c *Config) GetSMTPFromName() string    { return c.SMTPFromName }
func (c *Config) GetSMTPFromAddress() string { return c.SMTPFromAddress }
func (c *Config) IsSMTPEnabled() bool        { return c.SMTPHost != "" && c.SMTPFromAddress != "" }

// RelayConfig implementation
func (c *Config) GetAMQPURL() string      { return c.AMQPURL }
func (c *Config) GetAMQPExchange() string { return c.AMQPExchange }
func (c *Config) IsRelayEnabled() bool    { return c.AMQPURL != "" }

// CleanupConfig implementation
func (c *Config) GetConversationIdleTimeout() time.Duration { return c.ConversationIdle }
func (c *Config) GetCleanupInterval() time.Duration         { return c.CleanupInterval }

const (
	AIProviderMoonshot = "moonshot"
	AIProviderGemini   = "gemini"
)

// Load reads configuration from environment variables (and a .env file when
// present). Missing required values are a startup error.
func Load() (*Config, error) {
	_ = godotenv.Load()

	corsOrigins := splitCSV(getEnv("CORS_ORIGINS", "http://localhost:4200"))
	corsAllowAll := strings.EqualFold(getEnv("CORS_ALLOW_ALL", "false"), "true")
	if containsWildcard(corsOrigins) {
		corsAllowAll = true
	}

	cfg := &Config{
		Env:                 getEnv("APP_ENV", "development"),
		HTTPAddr:            getEnv("HTTP_ADDR", ":8080"),
		DatabaseURL:         getEnv("DATABASE_URL", ""),
		DatabaseMaxConns:    mustInt(getEnv("DATABASE_MAX_CONNS", "20")),
		JWTSecret:           getEnv("JWT_SECRET", ""),
		AccessTokenTTL:      mustDuration(getEnv("JWT_TTL", "168h")),
		CORSAllowAll:        corsAllowAll,
		CORSOrigins:         corsOrigins,
		CORSAllowCreds:      strings.EqualFold(getEnv("CORS_ALLOW_CREDENTIALS", "false"), "true"),
		RedisURL:            getEnv("REDIS_URL", ""),
		RedisTLSInsecure:    strings.EqualFold(getEnv("REDIS_TLS_INSECURE", "false"), "true"),
		AsynqQueueName:      getEnv("ASYNQ_QUEUE", "default"),
		AsynqConcurrency:    mustInt(getEnv("ASYNQ_CONCURRENCY", "5")),
		DigestCron:          getEnv("DIGEST_CRON", "0 8 * * *"),
		DigestTimezone:      getEnv("DIGEST_TIMEZONE", "Europe/London"),
		WhatsAppAPIBaseURL:  strings.TrimRight(getEnv("WHATSAPP_API_BASE_URL", "https://graph.facebook.com/v21.0"), "/"),
		WhatsAppVerifyToken: getEnv("WHATSAPP_VERIFY_TOKEN", ""),
		WhatsAppAppSecret:   getEnv("WHATSAPP_APP_SECRET", ""),
		AIProvider:          strings.ToLower(getEnv("AI_PROVIDER", AIProviderMoonshot)),
		MoonshotAPIKey:      getEnv("MOONSHOT_API_KEY", ""),
		MoonshotModel:       getEnv("MOONSHOT_MODEL", "kimi-k2-turbo-preview"),
		GeminiAPIKey:        getEnv("GEMINI_API_KEY", ""),
		GeminiModel:         getEnv("GEMINI_MODEL", "gemini-2.5-flash"),
		AITimeout:           mustDuration(getEnv("AI_TIMEOUT", "20s")),
		CalendarTimeout:     mustDuration(getEnv("CALENDAR_TIMEOUT", "10s")),
		TenantCacheTTL:      mustDuration(getEnv("TENANT_CACHE_TTL", "5m")),
		PhoneDefaultRegion:  strings.ToUpper(getEnv("PHONE_DEFAULT_REGION", "GB")),
		SMTPHost:            getEnv("SMTP_HOST", ""),
		SMTPPort:            mustInt(getEnv("SMTP_PORT", "587")),
		SMTPUsername:        getEnv("SMTP_USERNAME", ""),
		SMTPPassword:        getEnv("SMTP_PASSWORD", ""),
		SMTPFromName:        getEnv("SMTP_FROM_NAME", "Booking Assistant"),
		SMTPFromAddress:     getEnv("SMTP_FROM_ADDRESS", ""),
		AMQPURL:             getEnv("AMQP_URL", ""),
		AMQPExchange:        getEnv("AMQP_EXCHANGE", "booking.events"),
		ConversationIdle:    mustDuration(getEnv("CONVERSATION_IDLE_TIMEOUT", "168h")),
		CleanupInterval:     mustDuration(getEnv("CONVERSATION_CLEANUP_INTERVAL", "1h")),
	}

	if cfg.DatabaseURL == "" {
		return nil, fmt.Errorf("DATABASE_URL is required")
	}
	if cfg.JWTSecret == "" {
		return nil, fmt.Errorf("JWT_SECRET is required")
	}
	if cfg.WhatsAppVerifyToken == "" {
		return nil, fmt.Errorf("WHATSAPP_VERIFY_TOKEN is required")
	}
	switch cfg.AIProvider {
	case AIProviderMoonshot:
		if cfg.MoonshotAPIKey == "" {
			return nil, fmt.Errorf("MOONSHOT_API_KEY is required when AI_PROVIDER is moonshot")
		}
	case AIProviderGemini:
		if cfg.GeminiAPIKey == "" {
			return nil, fmt.Errorf("GEMINI_API_KEY is required when AI_PROVIDER is gemini")
		}
	default:
		return nil, fmt.Errorf("unsupported AI_PROVIDER %q", cfg.AIProvider)
	}
	if cfg.AccessTokenTTL <= 0 || cfg.AITimeout <= 0 || cfg.CalendarTimeout <= 0 || cfg.TenantCacheTTL <= 0 {
		return nil, fmt.Errorf("JWT_TTL, AI_TIMEOUT, CALENDAR_TIMEOUT and TENANT_CACHE_TTL must be positive durations")
	}
	if cfg.DatabaseMaxConns <= 0 {
		cfg.DatabaseMaxConns = 20
	}
	if cfg.AsynqConcurrency <= 0 {
		cfg.AsynqConcurrency = 5
	}
	if _, err := time.LoadLocation(cfg.DigestTimezone); err != nil {
		return nil, fmt.Errorf("DIGEST_TIMEZONE: %w", err)
	}
	if cfg.CORSAllowAll && cfg.CORSAllowCreds {
		return nil, fmt.Errorf("CORS_ALLOW_CREDENTIALS cannot be true when CORS_ALLOW_ALL is true")
	}

	return cfg, nil
}

func getEnv(key, fallback string) string {
	if val, ok := os.LookupEnv(key); ok {
		return val
	}
	return fallback
}

func mustDuration(value string) time.Duration {
	d, err := time.ParseDuration(value)
	if err != nil {
		return 0
	}
	return d
}

func mustInt(value string) int {
	result, err := strconv.Atoi(strings.TrimSpace(value))
	if err != nil {
		return 0
	}
	return result
}

func splitCSV(value string) []string {
	parts := strings.Split(value, ",")
	results := make([]string, 0, len(parts))
	for _, part := range parts {
		trimmed := strings.TrimSpace(part)
		if trimmed != "" {
			results = append(results, trimmed)
		}
	}
	return results
}

func containsWildcard(values []string) bool {
	for _, value := range values {
		if value == "*" {
			return true
		}
	}
	return false
}
