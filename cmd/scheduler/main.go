package main

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"syscall"
	"time"

	"tradesdesk_backend/internal/adapters"
	"tradesdesk_backend/internal/digest"
	"tradesdesk_backend/internal/email"
	"tradesdesk_backend/internal/scheduler"
	"tradesdesk_backend/internal/tenant"
	"tradesdesk_backend/internal/whatsapp"
	"tradesdesk_backend/platform/config"
	"tradesdesk_backend/platform/db"
	"tradesdesk_backend/platform/logger"
	"tradesdesk_backend/platform/phone"

	"github.com/jackc/pgx/v5/pgxpool"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		panic("failed to load config: " + err.Error())
	}

	log := logger.New(cfg.Env)
	log.Info("starting scheduler", "env", cfg.Env)

	if !cfg.IsRedisEnabled() {
		panic("REDIS_URL is required for the scheduler")
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

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

	tenantRepo := tenant.NewRepository(pool)
	messenger := adapters.NewWhatsAppMessenger(whatsapp.NewClient(cfg, phone.NewNormalizer(cfg.GetPhoneDefaultRegion()), log))
	digestSvc := digest.NewService(tenantRepo, digest.NewRepository(pool), messenger, email.NewSender(cfg), log)

	client, err := scheduler.NewClient(cfg)
	if err != nil {
		log.Error("failed to initialize scheduler client", "error", err)
		panic("failed to initialize scheduler client: " + err.Error())
	}
	defer func() { _ = client.Close() }()

	schedulerRepo := scheduler.NewRepository(pool)

	cleanup := scheduler.NewConversationCleanup(schedulerRepo, log, cfg.GetCleanupInterval(), cfg.GetConversationIdleTimeout())
	go cleanup.Run(ctx)

	periodic, err := scheduler.NewPeriodic(cfg, log)
	if err != nil {
		log.Error("failed to initialize periodic scheduler", "error", err)
		panic("failed to initialize periodic scheduler: " + err.Error())
	}
	go periodic.Run(ctx)

	worker, err := scheduler.NewWorker(cfg, scheduler.WorkerDeps{
		Bookings:  schedulerRepo,
		Tenants:   tenantRepo,
		Messenger: messenger,
		Digests:   digestSvc,
		Enqueuer:  client,
		Log:       log,
	})
	if err != nil {
		log.Error("failed to initialize scheduler worker", "error", err)
		panic("failed to initialize scheduler worker: " + err.Error())
	}

	worker.Run(ctx)
}

func withRetry(ctx context.Context, log *logger.Logger, name string, attempts int, baseDelay time.Duration, fn func() error) error {
	if attempts < 1 {
		return errors.New(name + ": invalid retry attempts")
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
