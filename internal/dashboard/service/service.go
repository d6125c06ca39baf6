// Package service implements the owner dashboard's use cases.
package service

import (
	"context"
	"errors"
	"math"
	"strings"
	"time"

	"tradesdesk_backend/internal/conversation"
	"tradesdesk_backend/internal/dashboard/repository"
	"tradesdesk_backend/internal/dashboard/transport"
	"tradesdesk_backend/internal/digest"
	"tradesdesk_backend/internal/events"
	"tradesdesk_backend/internal/tenant"
	"tradesdesk_backend/platform/apperr"
	"tradesdesk_backend/platform/logger"
	"tradesdesk_backend/platform/phone"

	"github.com/google/uuid"
)

const (
	defaultPageSize   = 20
	conversationLimit = 100
)

// Store is the dashboard's data access.
type Store interface {
	Stats(ctx context.Context, tenantID uuid.UUID, today, week time.Time) (repository.Stats, error)
	ListJobs(ctx context.Context, tenantID uuid.UUID, f repository.JobFilter) ([]repository.JobRow, int, error)
	GetJob(ctx context.Context, tenantID, jobID uuid.UUID) (repository.JobRow, error)
	UpdateJobStatus(ctx context.Context, tenantID, jobID uuid.UUID, from, to conversation.JobStatus) error
	ListConversations(ctx context.Context, tenantID uuid.UUID, limit int) ([]repository.ConversationRow, error)
	ReleaseConversation(ctx context.Context, tenantID, conversationID uuid.UUID) error
	ListCustomers(ctx context.Context, tenantID uuid.UUID) ([]repository.CustomerRow, error)
}

// TenantStore reads and updates the tenant's own settings.
type TenantStore interface {
	GetByID(ctx context.Context, id uuid.UUID) (*tenant.Tenant, error)
	UpdateSettings(ctx context.Context, id uuid.UUID, s tenant.Settings) (*tenant.Tenant, error)
}

// CacheInvalidator drops a tenant from every replica's resolver cache.
type CacheInvalidator interface {
	Invalidate(ctx context.Context, id uuid.UUID) error
}

// DigestSender sends the daily summary right away.
type DigestSender interface {
	Send(ctx context.Context, tenantID uuid.UUID) error
}

type Service struct {
	store      Store
	tenants    TenantStore
	invalidate CacheInvalidator
	digests    DigestSender
	phones     phone.Normalizer
	bus        events.Bus
	log        *logger.Logger
	now        func() time.Time
}

func New(store Store, tenants TenantStore, invalidate CacheInvalidator, digests DigestSender, phones phone.Normalizer, bus events.Bus, log *logger.Logger) *Service {
	return &Service{
		store:      store,
		tenants:    tenants,
		invalidate: invalidate,
		digests:    digests,
		phones:     phones,
		bus:        bus,
		log:        log,
		now:        time.Now,
	}
}

func (s *Service) Stats(ctx context.Context, tenantID uuid.UUID) (transport.StatsResponse, error) {
	t, err := s.tenants.GetByID(ctx, tenantID)
	if err != nil {
		return transport.StatsResponse{}, err
	}
	today, week := periodStarts(s.now(), t.Location())

	st, err := s.store.Stats(ctx, tenantID, today, week)
	if err != nil {
		return transport.StatsResponse{}, err
	}
	return transport.StatsResponse{
		TotalJobs:           st.TotalJobs,
		Pending:             st.Pending,
		UrgentPending:       st.UrgentPending,
		Confirmed:           st.Confirmed,
		Done:                st.Done,
		NewJobsToday:        st.NewJobsToday,
		NewJobsThisWeek:     st.NewJobsThisWeek,
		Customers:           st.Customers,
		ActiveConversations: st.ActiveConversations,
		Handoffs:            st.Handoffs,
	}, nil
}

func (s *Service) ListJobs(ctx context.Context, tenantID uuid.UUID, req transport.ListJobsRequest) (transport.JobListResponse, error) {
	page := max(req.Page, 1)
	pageSize := req.PageSize
	if pageSize <= 0 {
		pageSize = defaultPageSize
	}

	rows, total, err := s.store.ListJobs(ctx, tenantID, repository.JobFilter{
		Status: conversation.JobStatus(req.Status),
		Limit:  pageSize,
		Offset: (page - 1) * pageSize,
	})
	if err != nil {
		return transport.JobListResponse{}, err
	}

	items := make([]transport.JobResponse, 0, len(rows))
	for _, row := range rows {
		items = append(items, toJobResponse(row))
	}
	return transport.JobListResponse{
		Items:      items,
		Total:      total,
		Page:       page,
		PageSize:   pageSize,
		TotalPages: int(math.Ceil(float64(total) / float64(pageSize))),
	}, nil
}

func (s *Service) GetJob(ctx context.Context, tenantID, jobID uuid.UUID) (transport.JobResponse, error) {
	row, err := s.store.GetJob(ctx, tenantID, jobID)
	if err != nil {
		return transport.JobResponse{}, err
	}
	return toJobResponse(row), nil
}

// UpdateJobStatus moves a job forward. Moving back is a Conflict; setting the
// current status again is a no-op.
func (s *Service) UpdateJobStatus(ctx context.Context, tenantID, jobID uuid.UUID, req transport.UpdateJobStatusRequest) (transport.JobResponse, error) {
	next := conversation.JobStatus(req.Status)
	if !next.Valid() {
		return transport.JobResponse{}, apperr.Validation("unknown job status")
	}

	row, err := s.store.GetJob(ctx, tenantID, jobID)
	if err != nil {
		return transport.JobResponse{}, err
	}
	current := row.Status
	if !current.CanAdvanceTo(next) {
		return transport.JobResponse{}, apperr.Conflict("job status can only move forward")
	}
	if current == next {
		return toJobResponse(row), nil
	}

	if err := s.store.UpdateJobStatus(ctx, tenantID, jobID, current, next); err != nil {
		return transport.JobResponse{}, err
	}
	row.Status = next
	row.UpdatedAt = s.now()

	s.bus.Publish(ctx, events.JobStatusChanged{
		BaseEvent: events.NewBaseEvent(),
		TenantID:  tenantID,
		JobID:     jobID,
		OldStatus: string(current),
		NewStatus: string(next),
	})
	return toJobResponse(row), nil
}

func (s *Service) ListConversations(ctx context.Context, tenantID uuid.UUID) (transport.ConversationListResponse, error) {
	rows, err := s.store.ListConversations(ctx, tenantID, conversationLimit)
	if err != nil {
		return transport.ConversationListResponse{}, err
	}

	items := make([]transport.ConversationResponse, 0, len(rows))
	for _, row := range rows {
		history := make([]transport.TurnResponse, 0, len(row.History))
		for _, turn := range row.History {
			history = append(history, transport.TurnResponse{Role: turn.Role, Content: turn.Content})
		}
		items = append(items, transport.ConversationResponse{
			ID:            row.ID,
			CustomerID:    row.CustomerID,
			CustomerPhone: row.CustomerPhone,
			CustomerName:  row.CustomerName,
			State:         string(row.State),
			HandedOff:     row.HandedOff,
			History:       history,
			CreatedAt:     row.CreatedAt,
			UpdatedAt:     row.UpdatedAt,
		})
	}
	return transport.ConversationListResponse{Items: items}, nil
}

// ReleaseConversation hands a conversation back from the owner to the bot.
func (s *Service) ReleaseConversation(ctx context.Context, tenantID, conversationID uuid.UUID) error {
	if err := s.store.ReleaseConversation(ctx, tenantID, conversationID); err != nil {
		return err
	}
	s.bus.Publish(ctx, events.ConversationReleased{
		BaseEvent:      events.NewBaseEvent(),
		TenantID:       tenantID,
		ConversationID: conversationID,
	})
	return nil
}

func (s *Service) ListCustomers(ctx context.Context, tenantID uuid.UUID) (transport.CustomerListResponse, error) {
	rows, err := s.store.ListCustomers(ctx, tenantID)
	if err != nil {
		return transport.CustomerListResponse{}, err
	}

	items := make([]transport.CustomerResponse, 0, len(rows))
	for _, row := range rows {
		items = append(items, transport.CustomerResponse{
			ID:                row.ID,
			Phone:             row.Phone,
			Name:              row.Name,
			JobCount:          row.JobCount,
			ConversationCount: row.ConversationCount,
			LastContactAt:     row.LastContactAt,
			CreatedAt:         row.CreatedAt,
		})
	}
	return transport.CustomerListResponse{Items: items}, nil
}

func (s *Service) GetSettings(ctx context.Context, tenantID uuid.UUID) (transport.SettingsResponse, error) {
	t, err := s.tenants.GetByID(ctx, tenantID)
	if err != nil {
		return transport.SettingsResponse{}, err
	}
	return toSettingsResponse(t), nil
}

// UpdateSettings applies a partial update, then drops the tenant from every
// resolver cache so the webhook sees new credentials and hours at once.
func (s *Service) UpdateSettings(ctx context.Context, tenantID uuid.UUID, req transport.UpdateSettingsRequest) (transport.SettingsResponse, error) {
	t, err := s.tenants.GetByID(ctx, tenantID)
	if err != nil {
		return transport.SettingsResponse{}, err
	}

	settings := tenant.Settings{
		Name:                      t.Name,
		OwnerPhone:                t.OwnerPhone,
		WhatsAppToken:             t.WhatsAppToken,
		WhatsAppPhoneNumberID:     t.WhatsAppPhoneNumberID,
		GoogleServiceAccountEmail: t.GoogleServiceAccountEmail,
		GooglePrivateKey:          t.GooglePrivateKey,
		GoogleCalendarID:          t.GoogleCalendarID,
		BusinessHours:             t.BusinessHours,
	}
	applyString(&settings.Name, req.Name)
	if req.OwnerPhone != nil {
		settings.OwnerPhone = s.phones.E164(*req.OwnerPhone)
	}
	applyString(&settings.WhatsAppToken, req.WhatsAppToken)
	applyString(&settings.WhatsAppPhoneNumberID, req.WhatsAppPhoneNumberID)
	applyString(&settings.GoogleServiceAccountEmail, req.GoogleServiceAccountEmail)
	if req.GooglePrivateKey != nil {
		settings.GooglePrivateKey = *req.GooglePrivateKey
	}
	applyString(&settings.GoogleCalendarID, req.GoogleCalendarID)
	if req.BusinessHours != nil {
		settings.BusinessHours = tenant.BusinessHours{
			Start:    req.BusinessHours.Start,
			End:      req.BusinessHours.End,
			Days:     req.BusinessHours.Days,
			Timezone: req.BusinessHours.Timezone,
		}
		if settings.BusinessHours.Timezone == "" {
			settings.BusinessHours.Timezone = tenant.DefaultTimezone
		}
	}

	updated, err := s.tenants.UpdateSettings(ctx, tenantID, settings)
	if err != nil {
		return transport.SettingsResponse{}, err
	}

	if err := s.invalidate.Invalidate(ctx, tenantID); err != nil {
		// The cache TTL still bounds staleness.
		s.log.ExternalFailure("redis", "tenant invalidation", err)
	}
	s.bus.Publish(ctx, events.TenantUpdated{BaseEvent: events.NewBaseEvent(), TenantID: tenantID})

	return toSettingsResponse(updated), nil
}

// SendTestDigest sends today's digest now.
func (s *Service) SendTestDigest(ctx context.Context, tenantID uuid.UUID) (transport.DigestTestResponse, error) {
	if err := s.digests.Send(ctx, tenantID); err != nil {
		if errors.Is(err, digest.ErrNoRecipient) {
			return transport.DigestTestResponse{}, apperr.Validation("add an owner phone or email address first")
		}
		return transport.DigestTestResponse{}, err
	}
	return transport.DigestTestResponse{Sent: true}, nil
}

func applyString(dst *string, value *string) {
	if value != nil {
		*dst = strings.TrimSpace(*value)
	}
}

// periodStarts returns midnight today and midnight on the most recent Monday.
func periodStarts(now time.Time, loc *time.Location) (time.Time, time.Time) {
	local := now.In(loc)
	today := time.Date(local.Year(), local.Month(), local.Day(), 0, 0, 0, 0, loc)
	sinceMonday := (int(today.Weekday()) + 6) % 7
	return today, today.AddDate(0, 0, -sinceMonday)
}

func toJobResponse(row repository.JobRow) transport.JobResponse {
	return transport.JobResponse{
		ID:            row.ID,
		CustomerID:    row.CustomerID,
		CustomerPhone: row.CustomerPhone,
		CustomerName:  row.CustomerName,
		ServiceType:   row.ServiceType,
		Description:   row.Description,
		Address:       row.Address,
		Urgent:        row.Urgent,
		QuoteMin:      row.QuoteMin,
		QuoteMax:      row.QuoteMax,
		Status:        string(row.Status),
		ScheduledAt:   row.ScheduledAt,
		CalendarLink:  row.CalendarLink,
		CreatedAt:     row.CreatedAt,
		UpdatedAt:     row.UpdatedAt,
	}
}

func toSettingsResponse(t *tenant.Tenant) transport.SettingsResponse {
	days := t.BusinessHours.Days
	if days == nil {
		days = []int{}
	}
	return transport.SettingsResponse{
		ID:                        t.ID,
		Name:                      t.Name,
		Slug:                      t.Slug,
		Email:                     t.Email,
		OwnerPhone:                t.OwnerPhone,
		WhatsAppPhoneNumberID:     t.WhatsAppPhoneNumberID,
		WhatsAppConfigured:        t.ChannelConfigured(),
		GoogleServiceAccountEmail: t.GoogleServiceAccountEmail,
		GoogleCalendarID:          t.GoogleCalendarID,
		CalendarConfigured:        t.CalendarConfigured(),
		BusinessHours: transport.BusinessHours{
			Start:    t.BusinessHours.Start,
			End:      t.BusinessHours.End,
			Days:     days,
			Timezone: t.BusinessHours.Timezone,
		},
	}
}
