package scheduler

import (
	"context"
	"errors"
	"fmt"
	"time"

	"tradesdesk_backend/internal/conversation"
	"tradesdesk_backend/platform/apperr"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Booking is what a reminder needs to know about a scheduled job.
type Booking struct {
	JobID         uuid.UUID
	Status        conversation.JobStatus
	ServiceType   string
	Address       string
	ScheduledAt   *time.Time
	CustomerPhone string
}

// Repository reads bookings and closes idle conversations for the worker.
type Repository struct {
	pool *pgxpool.Pool
}

func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

func (r *Repository) Booking(ctx context.Context, tenantID, jobID uuid.UUID) (*Booking, error) {
	var b Booking
	var status string
	err := r.pool.QueryRow(ctx, `
		SELECT j.id, j.status, j.service_type, j.address, j.scheduled_at, c.phone
		FROM jobs j
		JOIN customers c ON c.id = j.customer_id
		WHERE j.id = $1 AND j.tenant_id = $2`, jobID, tenantID,
	).Scan(&b.JobID, &status, &b.ServiceType, &b.Address, &b.ScheduledAt, &b.CustomerPhone)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperr.NotFound("job not found")
		}
		return nil, fmt.Errorf("get booking: %w", err)
	}
	b.Status = conversation.JobStatus(status)
	return &b, nil
}

// CloseIdleConversations moves open conversations untouched since before to
// DONE. Handed-off conversations stay frozen.
func (r *Repository) CloseIdleConversations(ctx context.Context, before time.Time) (int64, error) {
	tag, err := r.pool.Exec(ctx, `
		UPDATE conversations
		SET state = 'DONE', attributes = '{}', version = version + 1, updated_at = now()
		WHERE state NOT IN ('DONE', 'HANDOFF') AND updated_at < $1`, before)
	if err != nil {
		return 0, fmt.Errorf("close idle conversations: %w", err)
	}
	return tag.RowsAffected(), nil
}
