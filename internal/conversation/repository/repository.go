// Package repository is the pgx-backed conversation.Store.
package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"tradesdesk_backend/internal/conversation"
	"tradesdesk_backend/platform/apperr"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

const (
	errConversationNotFound = "conversation not found"
	errJobNotFound          = "job not found"
	errStaleConversation    = "conversation was modified concurrently"
)

// Repository persists customers, conversations and jobs.
type Repository struct {
	pool *pgxpool.Pool
}

// New creates a new conversation repository.
func New(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

var _ conversation.Store = (*Repository)(nil)

func (r *Repository) UpsertCustomer(ctx context.Context, tenantID uuid.UUID, phone string) (*conversation.Customer, error) {
	query := `
		INSERT INTO customers (id, tenant_id, phone)
		VALUES ($1, $2, $3)
		ON CONFLICT (tenant_id, phone) DO UPDATE SET phone = EXCLUDED.phone
		RETURNING id, tenant_id, phone, COALESCE(name, ''), created_at`

	var c conversation.Customer
	err := r.pool.QueryRow(ctx, query, uuid.New(), tenantID, phone).
		Scan(&c.ID, &c.TenantID, &c.Phone, &c.Name, &c.CreatedAt)
	if err != nil {
		return nil, fmt.Errorf("failed to upsert customer: %w", err)
	}
	return &c, nil
}

const conversationColumns = `id, tenant_id, customer_id, state, attributes, history, handed_off, version, created_at, updated_at`

func scanConversation(row pgx.Row) (*conversation.Conversation, error) {
	var c conversation.Conversation
	var state string
	var attrs, history []byte
	if err := row.Scan(&c.ID, &c.TenantID, &c.CustomerID, &state, &attrs, &history,
		&c.HandedOff, &c.Version, &c.CreatedAt, &c.UpdatedAt); err != nil {
		return nil, err
	}
	c.State = conversation.State(state)

	// An undecodable bag leaves Attributes nil; the router resets such
	// conversations to the menu.
	if decoded, err := conversation.DecodeAttributes(c.State, attrs); err == nil {
		c.Attributes = decoded
	}
	if len(history) > 0 {
		if err := json.Unmarshal(history, &c.History); err != nil {
			c.History = nil
		}
	}
	return &c, nil
}

func (r *Repository) ActiveConversation(ctx context.Context, tenantID, customerID uuid.UUID) (*conversation.Conversation, error) {
	query := `SELECT ` + conversationColumns + `
		FROM conversations
		WHERE tenant_id = $1 AND customer_id = $2 AND state <> 'DONE'
		ORDER BY updated_at DESC
		LIMIT 1`

	c, err := scanConversation(r.pool.QueryRow(ctx, query, tenantID, customerID))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, apperr.NotFound(errConversationNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load active conversation: %w", err)
	}
	return c, nil
}

func (r *Repository) StartConversation(ctx context.Context, tenantID, customerID uuid.UUID, previous *conversation.Conversation) (*conversation.Conversation, error) {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	// Close every open conversation of the customer, not only previous, so
	// the one-open-per-customer index cannot reject the insert.
	if _, err := tx.Exec(ctx, `
		UPDATE conversations
		SET state = 'DONE', attributes = '{}', version = version + 1, updated_at = now()
		WHERE tenant_id = $1 AND customer_id = $2 AND state <> 'DONE' AND state <> 'HANDOFF'`,
		tenantID, customerID); err != nil {
		return nil, fmt.Errorf("failed to close conversations: %w", err)
	}
	if previous != nil && previous.State != conversation.StateHandoff {
		previous.State = conversation.StateDone
		previous.Attributes = conversation.DoneAttrs{}
	}

	c, err := scanConversation(tx.QueryRow(ctx, `
		INSERT INTO conversations (id, tenant_id, customer_id, state)
		VALUES ($1, $2, $3, $4)
		RETURNING `+conversationColumns,
		uuid.New(), tenantID, customerID, string(conversation.StateMenu)))
	if err != nil {
		return nil, fmt.Errorf("failed to create conversation: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("failed to commit conversation: %w", err)
	}
	return c, nil
}

func (r *Repository) SaveConversation(ctx context.Context, c *conversation.Conversation) error {
	attrs, err := conversation.EncodeAttributes(c.Attributes)
	if err != nil {
		return fmt.Errorf("failed to encode attributes: %w", err)
	}
	history := c.History
	if history == nil {
		history = []conversation.Turn{}
	}
	historyJSON, err := json.Marshal(history)
	if err != nil {
		return fmt.Errorf("failed to encode history: %w", err)
	}

	var version int
	err = r.pool.QueryRow(ctx, `
		UPDATE conversations
		SET state = $3, attributes = $4, history = $5, version = version + 1, updated_at = now()
		WHERE id = $1 AND version = $2 AND state <> 'HANDOFF'
		RETURNING version`,
		c.ID, c.Version, string(c.State), attrs, historyJSON,
	).Scan(&version)
	if errors.Is(err, pgx.ErrNoRows) {
		return apperr.Conflict(errStaleConversation)
	}
	if err != nil {
		return fmt.Errorf("failed to save conversation: %w", err)
	}
	c.Version = version
	return nil
}

func (r *Repository) MarkHandedOff(ctx context.Context, conversationID uuid.UUID) error {
	tag, err := r.pool.Exec(ctx, `
		UPDATE conversations
		SET state = 'HANDOFF', attributes = '{}', handed_off = TRUE, version = version + 1, updated_at = now()
		WHERE id = $1`, conversationID)
	if err != nil {
		return fmt.Errorf("failed to mark conversation handed off: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return apperr.NotFound(errConversationNotFound)
	}
	return nil
}

func (r *Repository) CreateJob(ctx context.Context, job *conversation.Job) error {
	err := r.pool.QueryRow(ctx, `
		INSERT INTO jobs (id, tenant_id, customer_id, service_type, description, address, urgent, quote_min, quote_max, status)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		RETURNING created_at, updated_at`,
		job.ID, job.TenantID, job.CustomerID, job.ServiceType, job.Description, job.Address,
		job.Urgent, job.QuoteMin, job.QuoteMax, string(job.Status),
	).Scan(&job.CreatedAt, &job.UpdatedAt)
	if err != nil {
		return fmt.Errorf("failed to create job: %w", err)
	}
	return nil
}

func (r *Repository) ConfirmJob(ctx context.Context, tenantID, jobID uuid.UUID) error {
	tag, err := r.pool.Exec(ctx, `
		UPDATE jobs SET status = 'CONFIRMED', updated_at = now()
		WHERE tenant_id = $1 AND id = $2 AND status IN ('PENDING', 'CONFIRMED')`,
		tenantID, jobID)
	if err != nil {
		return fmt.Errorf("failed to confirm job: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return apperr.NotFound(errJobNotFound)
	}
	return nil
}

func (r *Repository) JobExists(ctx context.Context, tenantID, jobID uuid.UUID) error {
	var exists bool
	if err := r.pool.QueryRow(ctx, `
		SELECT EXISTS (SELECT 1 FROM jobs WHERE tenant_id = $1 AND id = $2)`,
		tenantID, jobID).Scan(&exists); err != nil {
		return fmt.Errorf("failed to look up job: %w", err)
	}
	if !exists {
		return apperr.NotFound(errJobNotFound)
	}
	return nil
}

func (r *Repository) ScheduleJob(ctx context.Context, tenantID, jobID uuid.UUID, s conversation.Schedule) error {
	tag, err := r.pool.Exec(ctx, `
		UPDATE jobs
		SET scheduled_at = $3, calendar_event_id = NULLIF($4, ''), calendar_link = NULLIF($5, ''), updated_at = now()
		WHERE tenant_id = $1 AND id = $2`,
		tenantID, jobID, s.At, s.CalendarEventID, s.CalendarLink)
	if err != nil {
		return fmt.Errorf("failed to schedule job: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return apperr.NotFound(errJobNotFound)
	}
	return nil
}
