package scheduler

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"tradesdesk_backend/platform/config"
	"tradesdesk_backend/platform/logger"

	"github.com/hibiken/asynq"
)

// Periodic registers the cron-driven tasks: the daily digest fan-out.
type Periodic struct {
	scheduler *asynq.Scheduler
	log       *logger.Logger
}

func NewPeriodic(cfg config.SchedulerConfig, log *logger.Logger) (*Periodic, error) {
	redisURL := cfg.GetRedisURL()
	if redisURL == "" {
		return nil, fmt.Errorf("redis url not configured")
	}

	opt, err := redisClientOpt(redisURL, cfg.GetRedisTLSInsecure())
	if err != nil {
		return nil, err
	}

	loc, err := time.LoadLocation(cfg.GetDigestTimezone())
	if err != nil {
		return nil, fmt.Errorf("digest timezone: %w", err)
	}

	scheduler := asynq.NewScheduler(opt, &asynq.SchedulerOpts{Location: loc})
	entryID, err := scheduler.Register(cfg.GetDigestCron(), NewDigestFanoutTask(), asynq.Queue(queueName(cfg)))
	if err != nil {
		return nil, fmt.Errorf("register digest cron %q: %w", cfg.GetDigestCron(), err)
	}
	log.Info("daily digest scheduled",
		slog.String("cron", cfg.GetDigestCron()),
		slog.String("timezone", loc.String()),
		slog.String("entry_id", entryID),
	)

	return &Periodic{scheduler: scheduler, log: log}, nil
}

// Run starts the scheduler and stops it when ctx is done.
func (p *Periodic) Run(ctx context.Context) {
	if p == nil || p.scheduler == nil {
		return
	}

	if err := p.scheduler.Start(); err != nil {
		p.log.Error("periodic scheduler stopped", "error", err)
		return
	}
	<-ctx.Done()
	p.scheduler.Shutdown()
}
