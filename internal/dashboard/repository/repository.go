// Package repository holds the dashboard's tenant-scoped read models and the
// few owner-driven writes (job status, handoff release).
package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"tradesdesk_backend/internal/conversation"
	"tradesdesk_backend/platform/apperr"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"golang.org/x/sync/errgroup"
)

const (
	errJobNotFound          = "job not found"
	errConversationNotFound = "conversation not found"
)

type Stats struct {
	TotalJobs           int
	Pending             int
	UrgentPending       int
	Confirmed           int
	Done                int
	NewJobsToday        int
	NewJobsThisWeek     int
	Customers           int
	ActiveConversations int
	Handoffs            int
}

// JobRow is a job with the customer it belongs to.
type JobRow struct {
	conversation.Job
	CustomerPhone string
	CustomerName  string
}

type JobFilter struct {
	Status conversation.JobStatus
	Limit  int
	Offset int
}

type ConversationRow struct {
	ID            uuid.UUID
	CustomerID    uuid.UUID
	CustomerPhone string
	CustomerName  string
	State         conversation.State
	HandedOff     bool
	History       []conversation.Turn
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

type CustomerRow struct {
	ID                uuid.UUID
	Phone             string
	Name              string
	JobCount          int
	ConversationCount int
	LastContactAt     *time.Time
	CreatedAt         time.Time
}

type Repository struct {
	pool *pgxpool.Pool
}

func New(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// Stats aggregates jobs, customers and conversations. today and week are
// the starts of the current day and week in the tenant's time zone.
func (r *Repository) Stats(ctx context.Context, tenantID uuid.UUID, today, week time.Time) (Stats, error) {
	var s Stats
	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		err := r.pool.QueryRow(gctx, `
			SELECT
				COUNT(*),
				COUNT(*) FILTER (WHERE status = 'PENDING'),
				COUNT(*) FILTER (WHERE status = 'PENDING' AND urgent),
				COUNT(*) FILTER (WHERE status = 'CONFIRMED'),
				COUNT(*) FILTER (WHERE status = 'DONE'),
				COUNT(*) FILTER (WHERE created_at >= $2),
				COUNT(*) FILTER (WHERE created_at >= $3)
			FROM jobs
			WHERE tenant_id = $1`, tenantID, today, week,
		).Scan(&s.TotalJobs, &s.Pending, &s.UrgentPending, &s.Confirmed, &s.Done, &s.NewJobsToday, &s.NewJobsThisWeek)
		if err != nil {
			return fmt.Errorf("count jobs: %w", err)
		}
		return nil
	})

	var customers, active, handoffs int
	g.Go(func() error {
		err := r.pool.QueryRow(gctx, `
			SELECT
				(SELECT COUNT(*) FROM customers WHERE tenant_id = $1),
				COUNT(*) FILTER (WHERE state NOT IN ('DONE', 'HANDOFF')),
				COUNT(*) FILTER (WHERE state = 'HANDOFF')
			FROM conversations
			WHERE tenant_id = $1`, tenantID,
		).Scan(&customers, &active, &handoffs)
		if err != nil {
			return fmt.Errorf("count conversations: %w", err)
		}
		return nil
	})

	if err := g.Wait(); err != nil {
		return Stats{}, err
	}
	s.Customers, s.ActiveConversations, s.Handoffs = customers, active, handoffs
	return s, nil
}

const jobColumns = `
	j.id, j.tenant_id, j.customer_id, j.service_type, j.description, j.address, j.urgent,
	j.quote_min, j.quote_max, j.status, j.scheduled_at, COALESCE(j.calendar_event_id, ''),
	COALESCE(j.calendar_link, ''), j.created_at, j.updated_at, c.phone, COALESCE(c.name, '')`

func scanJob(row pgx.Row) (JobRow, error) {
	var j JobRow
	var status string
	err := row.Scan(&j.ID, &j.TenantID, &j.CustomerID, &j.ServiceType, &j.Description, &j.Address, &j.Urgent,
		&j.QuoteMin, &j.QuoteMax, &status, &j.ScheduledAt, &j.CalendarEventID,
		&j.CalendarLink, &j.CreatedAt, &j.UpdatedAt, &j.CustomerPhone, &j.CustomerName)
	j.Status = conversation.JobStatus(status)
	return j, err
}

// ListJobs returns one page of jobs, newest first, and the total matching.
func (r *Repository) ListJobs(ctx context.Context, tenantID uuid.UUID, f JobFilter) ([]JobRow, int, error) {
	var total int
	if err := r.pool.QueryRow(ctx, `
		SELECT COUNT(*) FROM jobs
		WHERE tenant_id = $1 AND ($2 = '' OR status = $2)`,
		tenantID, string(f.Status),
	).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("count jobs: %w", err)
	}

	rows, err := r.pool.Query(ctx, `
		SELECT `+jobColumns+`
		FROM jobs j
		JOIN customers c ON c.id = j.customer_id
		WHERE j.tenant_id = $1 AND ($2 = '' OR j.status = $2)
		ORDER BY j.created_at DESC
		LIMIT $3 OFFSET $4`,
		tenantID, string(f.Status), f.Limit, f.Offset)
	if err != nil {
		return nil, 0, fmt.Errorf("list jobs: %w", err)
	}
	defer rows.Close()

	items := make([]JobRow, 0)
	for rows.Next() {
		j, err := scanJob(rows)
		if err != nil {
			return nil, 0, fmt.Errorf("scan job: %w", err)
		}
		items = append(items, j)
	}
	return items, total, rows.Err()
}

func (r *Repository) GetJob(ctx context.Context, tenantID, jobID uuid.UUID) (JobRow, error) {
	j, err := scanJob(r.pool.QueryRow(ctx, `
		SELECT `+jobColumns+`
		FROM jobs j
		JOIN customers c ON c.id = j.customer_id
		WHERE j.tenant_id = $1 AND j.id = $2`, tenantID, jobID))
	if errors.Is(err, pgx.ErrNoRows) {
		return JobRow{}, apperr.NotFound(errJobNotFound)
	}
	if err != nil {
		return JobRow{}, fmt.Errorf("get job: %w", err)
	}
	return j, nil
}

// UpdateJobStatus moves a job from one status to another. A job whose status
// changed since it was read is a Conflict.
func (r *Repository) UpdateJobStatus(ctx context.Context, tenantID, jobID uuid.UUID, from, to conversation.JobStatus) error {
	tag, err := r.pool.Exec(ctx, `
		UPDATE jobs SET status = $4, updated_at = now()
		WHERE tenant_id = $1 AND id = $2 AND status = $3`,
		tenantID, jobID, string(from), string(to))
	if err != nil {
		return fmt.Errorf("update job status: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return apperr.Conflict("job status changed, reload and try again")
	}
	return nil
}

// ListConversations returns the most recently active conversations.
func (r *Repository) ListConversations(ctx context.Context, tenantID uuid.UUID, limit int) ([]ConversationRow, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT v.id, v.customer_id, c.phone, COALESCE(c.name, ''), v.state, v.handed_off, v.history,
			v.created_at, v.updated_at
		FROM conversations v
		JOIN customers c ON c.id = v.customer_id
		WHERE v.tenant_id = $1
		ORDER BY v.updated_at DESC
		LIMIT $2`, tenantID, limit)
	if err != nil {
		return nil, fmt.Errorf("list conversations: %w", err)
	}
	defer rows.Close()

	items := make([]ConversationRow, 0)
	for rows.Next() {
		var v ConversationRow
		var state string
		var history []byte
		if err := rows.Scan(&v.ID, &v.CustomerID, &v.CustomerPhone, &v.CustomerName, &state, &v.HandedOff, &history,
			&v.CreatedAt, &v.UpdatedAt); err != nil {
			return nil, fmt.Errorf("scan conversation: %w", err)
		}
		v.State = conversation.State(state)
		if len(history) > 0 {
			_ = json.Unmarshal(history, &v.History)
		}
		items = append(items, v)
	}
	return items, rows.Err()
}

// ReleaseConversation closes a handed-off conversation so the customer's
// next message starts over at the menu.
func (r *Repository) ReleaseConversation(ctx context.Context, tenantID, conversationID uuid.UUID) error {
	tag, err := r.pool.Exec(ctx, `
		UPDATE conversations
		SET state = 'DONE', attributes = '{}', version = version + 1, updated_at = now()
		WHERE tenant_id = $1 AND id = $2 AND state = 'HANDOFF'`,
		tenantID, conversationID)
	if err != nil {
		return fmt.Errorf("release conversation: %w", err)
	}
	if tag.RowsAffected() > 0 {
		return nil
	}

	var exists bool
	if err := r.pool.QueryRow(ctx, `
		SELECT EXISTS (SELECT 1 FROM conversations WHERE tenant_id = $1 AND id = $2)`,
		tenantID, conversationID,
	).Scan(&exists); err != nil {
		return fmt.Errorf("check conversation: %w", err)
	}
	if !exists {
		return apperr.NotFound(errConversationNotFound)
	}
	return apperr.Conflict("conversation is not handed off")
}

func (r *Repository) ListCustomers(ctx context.Context, tenantID uuid.UUID) ([]CustomerRow, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT c.id, c.phone, COALESCE(c.name, ''),
			(SELECT COUNT(*) FROM jobs j WHERE j.customer_id = c.id),
			(SELECT COUNT(*) FROM conversations v WHERE v.customer_id = c.id),
			(SELECT MAX(v.updated_at) FROM conversations v WHERE v.customer_id = c.id),
			c.created_at
		FROM customers c
		WHERE c.tenant_id = $1
		ORDER BY c.created_at DESC`, tenantID)
	if err != nil {
		return nil, fmt.Errorf("list customers: %w", err)
	}
	defer rows.Close()

	items := make([]CustomerRow, 0)
	for rows.Next() {
		var c CustomerRow
		if err := rows.Scan(&c.ID, &c.Phone, &c.Name, &c.JobCount, &c.ConversationCount, &c.LastContactAt, &c.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan customer: %w", err)
		}
		items = append(items, c)
	}
	return items, rows.Err()
}
