package tenant

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"tradesdesk_backend/platform/apperr"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

const (
	errTenantNotFound = "tenant not found"
	uniqueViolation   = "23505"
)

// Reader loads tenants.
type Reader interface {
	GetByID(ctx context.Context, id uuid.UUID) (*Tenant, error)
	GetByPhoneNumberID(ctx context.Context, phoneNumberID string) (*Tenant, error)
	GetByEmail(ctx context.Context, email string) (*Tenant, error)
	ListActive(ctx context.Context) ([]Tenant, error)
}

// Writer persists tenants.
type Writer interface {
	Create(ctx context.Context, t *Tenant) error
	UpdateSettings(ctx context.Context, id uuid.UUID, s Settings) (*Tenant, error)
}

// Repository is the full tenant store.
type Repository interface {
	Reader
	Writer
}

// Settings are the owner-editable parts of a tenant.
type Settings struct {
	Name                      string
	OwnerPhone                string
	WhatsAppToken             string
	WhatsAppPhoneNumberID     string
	GoogleServiceAccountEmail string
	GooglePrivateKey          string
	GoogleCalendarID          string
	BusinessHours             BusinessHours
}

// Repo is the pgx-backed Repository.
type Repo struct {
	pool *pgxpool.Pool
}

// NewRepository creates a new tenant repository.
func NewRepository(pool *pgxpool.Pool) *Repo {
	return &Repo{pool: pool}
}

var _ Repository = (*Repo)(nil)

const selectColumns = `
	id, name, slug, email, password_hash, whatsapp_token, COALESCE(whatsapp_phone_number_id, ''),
	google_service_account_email, google_private_key, google_calendar_id, owner_phone,
	business_hours, active, created_at, updated_at`

func scanTenant(row pgx.Row) (*Tenant, error) {
	var t Tenant
	var hours []byte
	if err := row.Scan(
		&t.ID, &t.Name, &t.Slug, &t.Email, &t.PasswordHash, &t.WhatsAppToken, &t.WhatsAppPhoneNumberID,
		&t.GoogleServiceAccountEmail, &t.GooglePrivateKey, &t.GoogleCalendarID, &t.OwnerPhone,
		&hours, &t.Active, &t.CreatedAt, &t.UpdatedAt,
	); err != nil {
		return nil, err
	}
	t.BusinessHours = DefaultBusinessHours()
	if len(hours) > 0 {
		if err := json.Unmarshal(hours, &t.BusinessHours); err != nil {
			t.BusinessHours = DefaultBusinessHours()
		}
	}
	return &t, nil
}

func (r *Repo) getOne(ctx context.Context, op, where string, arg any) (*Tenant, error) {
	t, err := scanTenant(r.pool.QueryRow(ctx, `SELECT `+selectColumns+` FROM tenants WHERE `+where, arg))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperr.NotFound(errTenantNotFound)
		}
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return t, nil
}

func (r *Repo) GetByID(ctx context.Context, id uuid.UUID) (*Tenant, error) {
	return r.getOne(ctx, "get tenant", "id = $1", id)
}

func (r *Repo) GetByPhoneNumberID(ctx context.Context, phoneNumberID string) (*Tenant, error) {
	return r.getOne(ctx, "get tenant by phone number id", "whatsapp_phone_number_id = $1", phoneNumberID)
}

func (r *Repo) GetByEmail(ctx context.Context, email string) (*Tenant, error) {
	return r.getOne(ctx, "get tenant by email", "lower(email) = lower($1)", email)
}

func (r *Repo) ListActive(ctx context.Context) ([]Tenant, error) {
	rows, err := r.pool.Query(ctx, `SELECT `+selectColumns+` FROM tenants WHERE active ORDER BY created_at`)
	if err != nil {
		return nil, fmt.Errorf("list active tenants: %w", err)
	}
	defer rows.Close()

	var out []Tenant
	for rows.Next() {
		t, err := scanTenant(rows)
		if err != nil {
			return nil, fmt.Errorf("scan tenant: %w", err)
		}
		out = append(out, *t)
	}
	return out, rows.Err()
}

func (r *Repo) Create(ctx context.Context, t *Tenant) error {
	hours, err := json.Marshal(t.BusinessHours)
	if err != nil {
		return fmt.Errorf("encode business hours: %w", err)
	}
	err = r.pool.QueryRow(ctx, `
		INSERT INTO tenants (
			id, name, slug, email, password_hash, whatsapp_token, whatsapp_phone_number_id,
			google_service_account_email, google_private_key, google_calendar_id, owner_phone,
			business_hours, active
		) VALUES ($1, $2, $3, $4, $5, $6, NULLIF($7, ''), $8, $9, $10, $11, $12, TRUE)
		RETURNING active, created_at, updated_at`,
		t.ID, t.Name, t.Slug, t.Email, t.PasswordHash, t.WhatsAppToken, t.WhatsAppPhoneNumberID,
		t.GoogleServiceAccountEmail, t.GooglePrivateKey, t.GoogleCalendarID, t.OwnerPhone, hours,
	).Scan(&t.Active, &t.CreatedAt, &t.UpdatedAt)
	if err != nil {
		if isUniqueViolation(err) {
			return apperr.Conflict("a tenant with this email, slug or phone number id already exists")
		}
		return fmt.Errorf("create tenant: %w", err)
	}
	return nil
}

func (r *Repo) UpdateSettings(ctx context.Context, id uuid.UUID, s Settings) (*Tenant, error) {
	hours, err := json.Marshal(s.BusinessHours)
	if err != nil {
		return nil, fmt.Errorf("encode business hours: %w", err)
	}
	t, err := scanTenant(r.pool.QueryRow(ctx, `
		UPDATE tenants SET
			name = $2, owner_phone = $3, whatsapp_token = $4, whatsapp_phone_number_id = NULLIF($5, ''),
			google_service_account_email = $6, google_private_key = $7, google_calendar_id = $8,
			business_hours = $9, updated_at = now()
		WHERE id = $1
		RETURNING `+selectColumns,
		id, s.Name, s.OwnerPhone, s.WhatsAppToken, s.WhatsAppPhoneNumberID,
		s.GoogleServiceAccountEmail, s.GooglePrivateKey, s.GoogleCalendarID, hours,
	))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperr.NotFound(errTenantNotFound)
		}
		if isUniqueViolation(err) {
			return nil, apperr.Conflict("phone number id is already used by another tenant")
		}
		return nil, fmt.Errorf("update tenant settings: %w", err)
	}
	return t, nil
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == uniqueViolation
}
