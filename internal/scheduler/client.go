package scheduler

import (
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"time"

	"tradesdesk_backend/internal/conversation"
	"tradesdesk_backend/platform/config"

	"github.com/google/uuid"
	"github.com/hibiken/asynq"
	"github.com/redis/go-redis/v9"
)

const (
	reminderLead    = time.Hour
	digestRetention = 36 * time.Hour
	digestMaxRetry  = 3
)

type enqueuer interface {
	EnqueueContext(ctx context.Context, task *asynq.Task, opts ...asynq.Option) (*asynq.TaskInfo, error)
	Close() error
}

type Client struct {
	client enqueuer
	queue  string
	now    func() time.Time
}

var _ conversation.ReminderScheduler = (*Client)(nil)

func NewClient(cfg config.SchedulerConfig) (*Client, error) {
	redisURL := cfg.GetRedisURL()
	if redisURL == "" {
		return nil, fmt.Errorf("redis url not configured")
	}

	opt, err := redisClientOpt(redisURL, cfg.GetRedisTLSInsecure())
	if err != nil {
		return nil, err
	}

	return &Client{
		client: asynq.NewClient(opt),
		queue:  queueName(cfg),
		now:    time.Now,
	}, nil
}

func (c *Client) Close() error {
	if c == nil || c.client == nil {
		return nil
	}
	return c.client.Close()
}

// ScheduleBookingReminder enqueues a customer reminder one hour before the
// appointment. Appointments closer than that get no reminder. Rebooking the
// same job replaces nothing: the task id is unique per job and appointment.
func (c *Client) ScheduleBookingReminder(ctx context.Context, tenantID, jobID uuid.UUID, appointment time.Time) error {
	if c == nil || c.client == nil {
		return nil
	}

	runAt := appointment.Add(-reminderLead)
	if !runAt.After(c.now()) {
		return nil
	}

	task, err := NewBookingReminderTask(BookingReminderPayload{
		TenantID:      tenantID.String(),
		JobID:         jobID.String(),
		AppointmentAt: appointment.UTC(),
	})
	if err != nil {
		return err
	}

	taskID := fmt.Sprintf("reminder:%s:%d", jobID, appointment.Unix())
	_, err = c.client.EnqueueContext(ctx, task, asynq.ProcessAt(runAt), asynq.Queue(c.queue), asynq.TaskID(taskID))
	if errors.Is(err, asynq.ErrTaskIDConflict) {
		return nil
	}
	return err
}

// EnqueueDigest queues one tenant's digest for day. Repeated calls for the
// same tenant and day collapse into one task.
func (c *Client) EnqueueDigest(ctx context.Context, tenantID uuid.UUID, day string) error {
	if c == nil || c.client == nil {
		return nil
	}

	task, err := NewDigestSendTask(DigestSendPayload{TenantID: tenantID.String(), Day: day})
	if err != nil {
		return err
	}

	_, err = c.client.EnqueueContext(ctx, task,
		asynq.Queue(c.queue),
		asynq.TaskID("digest:"+tenantID.String()+":"+day),
		asynq.Retention(digestRetention),
		asynq.MaxRetry(digestMaxRetry),
	)
	if errors.Is(err, asynq.ErrTaskIDConflict) {
		return nil
	}
	return err
}

func queueName(cfg config.SchedulerConfig) string {
	if q := cfg.GetAsynqQueueName(); q != "" {
		return q
	}
	return "default"
}

func redisClientOpt(redisURL string, tlsInsecure bool) (asynq.RedisClientOpt, error) {
	opt, err := redis.ParseURL(redisURL)
	if err != nil {
		return asynq.RedisClientOpt{}, err
	}

	var tlsConfig *tls.Config
	if opt.TLSConfig != nil {
		clone := opt.TLSConfig.Clone()
		if tlsInsecure {
			clone.InsecureSkipVerify = true
		}
		tlsConfig = clone
	} else if tlsInsecure {
		tlsConfig = &tls.Config{InsecureSkipVerify: true}
	}

	return asynq.RedisClientOpt{
		Addr:      opt.Addr,
		Username:  opt.Username,
		Password:  opt.Password,
		DB:        opt.DB,
		TLSConfig: tlsConfig,
	}, nil
}
