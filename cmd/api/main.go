package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"tradesdesk_backend/internal/adapters"
	"tradesdesk_backend/internal/assistant"
	"tradesdesk_backend/internal/auth"
	"tradesdesk_backend/internal/calendar"
	"tradesdesk_backend/internal/conversation"
	convrepo "tradesdesk_backend/internal/conversation/repository"
	"tradesdesk_backend/internal/dashboard"
	dashrepo "tradesdesk_backend/internal/dashboard/repository"
	"tradesdesk_backend/internal/digest"
	"tradesdesk_backend/internal/email"
	"tradesdesk_backend/internal/events"
	apphttp "tradesdesk_backend/internal/http"
	"tradesdesk_backend/internal/http/router"
	"tradesdesk_backend/internal/relay"
	"tradesdesk_backend/internal/scheduler"
	"tradesdesk_backend/internal/tenant"
	"tradesdesk_backend/internal/webhook"
	"tradesdesk_backend/internal/whatsapp"
	"tradesdesk_backend/platform/config"
	"tradesdesk_backend/platform/db"
	"tradesdesk_backend/platform/logger"
	"tradesdesk_backend/platform/phone"
	"tradesdesk_backend/platform/rediskit"
	"tradesdesk_backend/platform/validator"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"
)

const lockTTL = 3 * time.Minute

func main() {
	cfg, err := config.Load()
	if err != nil {
		panic("failed to load config: " + err.Error())
	}

	// Initialize structured logger
	log := logger.New(cfg.Env)
	log.Info("starting server", "env", cfg.Env, "addr", cfg.HTTPAddr)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// ========================================================================
	// Infrastructure Layer
	// ========================================================================

	var pool *pgxpool.Pool
	if err := withRetry(ctx, log, "database connection", 5, 2*time.Second, func() error {
		p, err := db.NewPool(ctx, cfg)
		if err != nil {
			return err
		}
		pool = p
		return nil
	}); err != nil {
		log.Error("failed to connect to database", "error", err)
		panic("failed to connect to database: " + err.Error())
	}
	defer pool.Close()
	log.Info("database connection established")

	if err := withRetry(ctx, log, "database migrations", 5, 2*time.Second, func() error {
		return db.RunMigrations(ctx, pool)
	}); err != nil {
		log.Error("failed to run database migrations", "error", err)
		panic("failed to run database migrations: " + err.Error())
	}
	log.Info("database migrations complete")

	rdb := initRedis(ctx, cfg, log)
	if rdb != nil {
		defer func() { _ = rdb.Close() }()
	}

	// Event bus for decoupled communication between modules
	eventBus := events.NewInMemoryBus(log)

	eventRelay := initRelay(ctx, cfg, log)
	if eventRelay != nil {
		eventRelay.Attach(eventBus)
		defer func() { _ = eventRelay.Close() }()
	}

	reminders, closeScheduler := initReminderScheduler(cfg, log)
	if closeScheduler != nil {
		defer closeScheduler()
	}

	// Shared validator instance for dependency injection
	val := validator.New()
	phones := phone.NewNormalizer(cfg.GetPhoneDefaultRegion())

	// ========================================================================
	// Tenants
	// ========================================================================

	tenantRepo := tenant.NewRepository(pool)
	tenantCache := tenant.NewCache(tenantRepo, cfg.GetTenantCacheTTL())
	tenantInvalidator := tenant.NewInvalidator(tenantCache, rdb, log)
	if err := tenantInvalidator.Start(ctx); err != nil {
		log.Warn("tenant invalidation fan-out unavailable; relying on cache TTL", "error", err)
	}

	// ========================================================================
	// Conversation core (Composition Root)
	// ========================================================================

	whatsappClient := whatsapp.NewClient(cfg, phones, log)
	messenger := adapters.NewWhatsAppMessenger(whatsappClient)

	completer, err := assistant.NewFromConfig(ctx, cfg)
	if err != nil {
		log.Error("failed to initialize assistant", "error", err)
		panic("failed to initialize assistant: " + err.Error())
	}

	conversationRouter := conversation.NewRouter(conversation.Deps{
		Tenants:         tenantCache,
		Store:           convrepo.New(pool),
		Messenger:       messenger,
		Completer:       completer,
		Calendar:        calendar.NewGoogle(),
		Reminders:       reminders,
		Bus:             eventBus,
		Log:             log,
		AITimeout:       cfg.GetAITimeout(),
		CalendarTimeout: cfg.GetCalendarTimeout(),
		Now:             time.Now,
	})

	var locker conversation.Locker
	var dedupe webhook.Deduper = webhook.NewMemoryDeduper()
	if rdb != nil {
		locker = conversation.NewRedisLocker(rdb, lockTTL)
		dedupe = webhook.NewRedisDeduper(rdb)
	}

	// Event processing outlives the signal context so queued messages can
	// finish during shutdown.
	dispatchCtx, cancelDispatch := context.WithCancel(context.WithoutCancel(ctx))
	defer cancelDispatch()
	dispatcher := conversation.NewDispatcher(dispatchCtx, conversationRouter, locker, log)

	// ========================================================================
	// Digest
	// ========================================================================

	digestSvc := digest.NewService(tenantRepo, digest.NewRepository(pool), messenger, email.NewSender(cfg), log)

	// ========================================================================
	// Domain Modules
	// ========================================================================

	webhookModule := webhook.NewModule(cfg, tenantCache, dedupe, whatsappClient, dispatcher, log)
	authModule := auth.NewModule(tenantRepo, phones, cfg, eventBus, val, log)
	dashboardModule := dashboard.NewModule(dashrepo.New(pool), tenantRepo, tenantInvalidator, digestSvc, phones, eventBus, val, log)

	// ========================================================================
	// HTTP Layer
	// ========================================================================

	app := &apphttp.App{
		Config: cfg,
		Logger: log,
		Health: pool,
		Modules: []apphttp.Module{
			webhookModule,
			authModule,
			dashboardModule,
		},
		Drainers: []apphttp.Drainer{webhookModule, dispatcher, eventBus},
	}

	engine := router.New(app)
	srv := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           engine,
		ReadHeaderTimeout: 10 * time.Second,
	}

	srvErr := make(chan error, 1)
	go func() {
		log.Info("server listening", "addr", cfg.HTTPAddr)
		srvErr <- srv.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		log.Info("shutdown signal received, gracefully shutting down")
	case err := <-srvErr:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error("server error", "error", err)
			panic("server error: " + err.Error())
		}
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error("server shutdown failed", "error", err)
	}

	if app.Drain(shutdownCtx) {
		log.Info("in-flight conversations drained")
	} else {
		log.Warn("shutdown timed out with conversations in flight")
	}
}

// initRedis returns nil when REDIS_URL is unset; locks, dedupe and cache
// invalidation then stay process-local.
func initRedis(ctx context.Context, cfg config.RedisConfig, log *logger.Logger) *redis.Client {
	if !cfg.IsRedisEnabled() {
		log.Warn("REDIS_URL not configured; running single-replica (no distributed locks or reminders)")
		return nil
	}

	var rdb *redis.Client
	if err := withRetry(ctx, log, "redis connection", 5, 2*time.Second, func() error {
		c, err := rediskit.NewClient(ctx, cfg)
		if err != nil {
			return err
		}
		rdb = c
		return nil
	}); err != nil {
		log.Error("failed to connect to redis", "error", err)
		panic("failed to connect to redis: " + err.Error())
	}
	log.Info("redis connection established")
	return rdb
}

func initRelay(ctx context.Context, cfg config.RelayConfig, log *logger.Logger) *relay.Relay {
	if !cfg.IsRelayEnabled() {
		return nil
	}

	pub, err := relay.Dial(ctx, cfg.GetAMQPURL(), cfg.GetAMQPExchange(), log)
	if err != nil {
		log.Error("failed to initialize event relay; domain events stay in-process", "error", err)
		return nil
	}
	log.Info("event relay connected", "exchange", cfg.GetAMQPExchange())
	return relay.New(pub, log)
}

func initReminderScheduler(cfg config.SchedulerConfig, log *logger.Logger) (conversation.ReminderScheduler, func()) {
	if cfg.GetRedisURL() == "" {
		log.Warn("REDIS_URL not configured; booking reminders disabled")
		return nil, nil
	}

	reminderClient, err := scheduler.NewClient(cfg)
	if err != nil {
		log.Error("failed to initialize reminder scheduler client", "error", err)
		return nil, nil
	}

	return reminderClient, func() {
		_ = reminderClient.Close()
	}
}

func withRetry(ctx context.Context, log *logger.Logger, name string, attempts int, baseDelay time.Duration, fn func() error) error {
	if attempts < 1 {
		return fmt.Errorf("%s: invalid retry attempts", name)
	}

	var lastErr error
	for attempt := 1; attempt <= attempts; attempt++ {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if err := fn(); err == nil {
			return nil
		} else {
			lastErr = err
			log.Warn("retryable operation failed", "operation", name, "attempt", attempt, "error", err)
		}

		if attempt < attempts {
			delay := time.Duration(attempt*attempt) * baseDelay
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(delay):
			}
		}
	}

	return errors.New(name + ": " + lastErr.Error())
}
