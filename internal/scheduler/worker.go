package scheduler

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"tradesdesk_backend/internal/conversation"
	"tradesdesk_backend/internal/digest"
	"tradesdesk_backend/internal/tenant"
	"tradesdesk_backend/platform/apperr"
	"tradesdesk_backend/platform/config"
	"tradesdesk_backend/platform/logger"

	"github.com/google/uuid"
	"github.com/hibiken/asynq"
)

type BookingReader interface {
	Booking(ctx context.Context, tenantID, jobID uuid.UUID) (*Booking, error)
}

type TenantReader interface {
	GetByID(ctx context.Context, id uuid.UUID) (*tenant.Tenant, error)
	ListActive(ctx context.Context) ([]tenant.Tenant, error)
}

type DigestSender interface {
	Send(ctx context.Context, tenantID uuid.UUID) error
}

type DigestEnqueuer interface {
	EnqueueDigest(ctx context.Context, tenantID uuid.UUID, day string) error
}

// WorkerDeps are the collaborators the task handlers use.
type WorkerDeps struct {
	Bookings  BookingReader
	Tenants   TenantReader
	Messenger conversation.Messenger
	Digests   DigestSender
	Enqueuer  DigestEnqueuer
	Log       *logger.Logger
}

type Worker struct {
	server *asynq.Server
	mux    *asynq.ServeMux
	deps   WorkerDeps
	loc    *time.Location
	now    func() time.Time
}

func NewWorker(cfg config.SchedulerConfig, deps WorkerDeps) (*Worker, error) {
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

	concurrency := cfg.GetAsynqConcurrency()
	if concurrency < 1 {
		concurrency = 10
	}

	server := asynq.NewServer(opt, asynq.Config{
		Concurrency: concurrency,
		Queues: map[string]int{
			queueName(cfg): 1,
		},
	})

	w := newWorker(deps, loc)
	w.server = server
	return w, nil
}

func newWorker(deps WorkerDeps, loc *time.Location) *Worker {
	mux := asynq.NewServeMux()
	w := &Worker{mux: mux, deps: deps, loc: loc, now: time.Now}

	mux.HandleFunc(TaskBookingReminder, w.handleBookingReminder)
	mux.HandleFunc(TaskDigestFanout, w.handleDigestFanout)
	mux.HandleFunc(TaskDigestSend, w.handleDigestSend)
	return w
}

func (w *Worker) Run(ctx context.Context) {
	if w == nil || w.server == nil {
		return
	}

	go func() {
		<-ctx.Done()
		w.server.Shutdown()
	}()

	if err := w.server.Run(w.mux); err != nil {
		w.deps.Log.Error("scheduler worker stopped", "error", err)
	}
}

func (w *Worker) handleBookingReminder(ctx context.Context, task *asynq.Task) error {
	payload, err := ParseBookingReminderPayload(task)
	if err != nil {
		return fmt.Errorf("%w: %v", asynq.SkipRetry, err)
	}

	tenantID, err := uuid.Parse(payload.TenantID)
	if err != nil {
		return fmt.Errorf("%w: %v", asynq.SkipRetry, err)
	}
	jobID, err := uuid.Parse(payload.JobID)
	if err != nil {
		return fmt.Errorf("%w: %v", asynq.SkipRetry, err)
	}

	t, err := w.deps.Tenants.GetByID(ctx, tenantID)
	if err != nil {
		return skipIfNotFound(err)
	}
	if !t.Active || !t.ChannelConfigured() {
		return nil
	}

	b, err := w.deps.Bookings.Booking(ctx, tenantID, jobID)
	if err != nil {
		return skipIfNotFound(err)
	}

	// Only confirmed jobs still booked for the same time get a reminder.
	if b.Status != conversation.JobConfirmed || b.ScheduledAt == nil || !b.ScheduledAt.Equal(payload.AppointmentAt) {
		w.deps.Log.Debug("skipping stale booking reminder", slog.String("job_id", jobID.String()))
		return nil
	}

	return w.deps.Messenger.Send(ctx, t, b.CustomerPhone, reminderMessage(b, t.Location()))
}

func (w *Worker) handleDigestFanout(ctx context.Context, _ *asynq.Task) error {
	tenants, err := w.deps.Tenants.ListActive(ctx)
	if err != nil {
		return err
	}

	day := w.now().In(w.loc).Format(time.DateOnly)
	var errs []error
	for _, t := range tenants {
		if err := w.deps.Enqueuer.EnqueueDigest(ctx, t.ID, day); err != nil {
			errs = append(errs, fmt.Errorf("enqueue digest for %s: %w", t.ID, err))
		}
	}
	w.deps.Log.Info("daily digest fan-out", slog.Int("tenants", len(tenants)), slog.String("day", day))
	return errors.Join(errs...)
}

func (w *Worker) handleDigestSend(ctx context.Context, task *asynq.Task) error {
	payload, err := ParseDigestSendPayload(task)
	if err != nil {
		return fmt.Errorf("%w: %v", asynq.SkipRetry, err)
	}
	tenantID, err := uuid.Parse(payload.TenantID)
	if err != nil {
		return fmt.Errorf("%w: %v", asynq.SkipRetry, err)
	}

	err = w.deps.Digests.Send(ctx, tenantID)
	if errors.Is(err, digest.ErrNoRecipient) {
		w.deps.Log.Debug("digest skipped, no recipient", slog.String("tenant_id", tenantID.String()))
		return nil
	}
	if err != nil {
		return skipIfNotFound(err)
	}
	return nil
}

func reminderMessage(b *Booking, loc *time.Location) conversation.Outbound {
	at := b.ScheduledAt.In(loc)
	return conversation.Text("⏰ *Appointment reminder*\n\n" +
		"Your " + b.ServiceType + " appointment is at " + at.Format("3:04pm") + " on " + at.Format("Monday 2 January") + ".\n" +
		"📍 " + b.Address + "\n\n" +
		"Need to change it? Just reply here and our team will help.")
}

func skipIfNotFound(err error) error {
	if apperr.Is(err, apperr.KindNotFound) {
		return fmt.Errorf("%w: %v", asynq.SkipRetry, err)
	}
	return err
}
