package service

import (
	"context"
	"strings"
	"time"

	"tradesdesk_backend/internal/auth/password"
	"tradesdesk_backend/internal/auth/transport"
	"tradesdesk_backend/internal/events"
	"tradesdesk_backend/internal/tenant"
	"tradesdesk_backend/platform/apperr"
	"tradesdesk_backend/platform/config"
	"tradesdesk_backend/platform/httpkit"
	"tradesdesk_backend/platform/logger"
	"tradesdesk_backend/platform/phone"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

const (
	msgInvalidCredentials = "invalid credentials"
	roleOwner             = "owner"
)

// TenantStore is the part of the tenant repository auth needs.
type TenantStore interface {
	GetByID(ctx context.Context, id uuid.UUID) (*tenant.Tenant, error)
	GetByEmail(ctx context.Context, email string) (*tenant.Tenant, error)
	Create(ctx context.Context, t *tenant.Tenant) error
}

type Service struct {
	tenants TenantStore
	phones  phone.Normalizer
	cfg     config.AuthServiceConfig
	bus     events.Bus
	log     *logger.Logger
	now     func() time.Time
}

func New(tenants TenantStore, phones phone.Normalizer, cfg config.AuthServiceConfig, bus events.Bus, log *logger.Logger) *Service {
	return &Service{tenants: tenants, phones: phones, cfg: cfg, bus: bus, log: log, now: time.Now}
}

// Register creates a tenant and returns an access token for it. A taken
// email, slug or phone-number id is an apperr Conflict.
func (s *Service) Register(ctx context.Context, req transport.RegisterRequest) (transport.AuthResponse, error) {
	email := normalizeEmail(req.Email)

	hash, err := password.Hash(req.Password)
	if err != nil {
		return transport.AuthResponse{}, err
	}

	hours := tenant.DefaultBusinessHours()
	if req.BusinessHours != nil {
		hours = tenant.BusinessHours{
			Start:    req.BusinessHours.Start,
			End:      req.BusinessHours.End,
			Days:     req.BusinessHours.Days,
			Timezone: req.BusinessHours.Timezone,
		}
		if hours.Timezone == "" {
			hours.Timezone = tenant.DefaultTimezone
		}
	}

	t := &tenant.Tenant{
		ID:                        uuid.New(),
		Name:                      strings.TrimSpace(req.Name),
		Slug:                      req.Slug,
		Email:                     email,
		PasswordHash:              hash,
		WhatsAppToken:             strings.TrimSpace(req.WhatsAppToken),
		WhatsAppPhoneNumberID:     strings.TrimSpace(req.WhatsAppPhoneNumberID),
		GoogleServiceAccountEmail: strings.TrimSpace(req.GoogleServiceAccountEmail),
		GooglePrivateKey:          req.GooglePrivateKey,
		GoogleCalendarID:          strings.TrimSpace(req.GoogleCalendarID),
		OwnerPhone:                s.phones.E164(req.OwnerPhone),
		BusinessHours:             hours,
	}

	if err := s.tenants.Create(ctx, t); err != nil {
		s.log.AuthEvent("register", email, false, err.Error())
		return transport.AuthResponse{}, err
	}
	s.log.AuthEvent("register", email, true, "")

	s.bus.Publish(ctx, events.TenantRegistered{
		BaseEvent: events.NewBaseEvent(),
		TenantID:  t.ID,
		Slug:      t.Slug,
	})

	return s.issue(t)
}

// Login checks the password and returns a fresh access token.
func (s *Service) Login(ctx context.Context, req transport.LoginRequest) (transport.AuthResponse, error) {
	email := normalizeEmail(req.Email)

	t, err := s.tenants.GetByEmail(ctx, email)
	if err != nil {
		if apperr.Is(err, apperr.KindNotFound) {
			s.log.AuthEvent("login", email, false, "unknown email")
			return transport.AuthResponse{}, apperr.Unauthorized(msgInvalidCredentials)
		}
		return transport.AuthResponse{}, err
	}

	if err := password.Compare(t.PasswordHash, req.Password); err != nil {
		s.log.AuthEvent("login", email, false, "wrong password")
		return transport.AuthResponse{}, apperr.Unauthorized(msgInvalidCredentials)
	}
	if !t.Active {
		s.log.AuthEvent("login", email, false, "tenant inactive")
		return transport.AuthResponse{}, apperr.Forbidden("account is disabled")
	}

	s.log.AuthEvent("login", email, true, "")
	return s.issue(t)
}

// Me returns the authenticated tenant's account.
func (s *Service) Me(ctx context.Context, tenantID uuid.UUID) (transport.TenantResponse, error) {
	t, err := s.tenants.GetByID(ctx, tenantID)
	if err != nil {
		return transport.TenantResponse{}, err
	}
	return toTenantResponse(t), nil
}

func (s *Service) issue(t *tenant.Tenant) (transport.AuthResponse, error) {
	ttl := s.cfg.GetAccessTokenTTL()
	token, err := s.signJWT(t.ID, []string{roleOwner}, ttl)
	if err != nil {
		return transport.AuthResponse{}, err
	}
	return transport.AuthResponse{
		AccessToken: token,
		ExpiresIn:   int64(ttl.Seconds()),
		Tenant:      toTenantResponse(t),
	}, nil
}

func (s *Service) signJWT(tenantID uuid.UUID, roles []string, ttl time.Duration) (string, error) {
	now := s.now()
	claims := jwt.MapClaims{
		"sub":       tenantID.String(),
		"tenant_id": tenantID.String(),
		"type":      httpkit.AccessTokenType,
		"roles":     roles,
		"exp":       now.Add(ttl).Unix(),
		"iat":       now.Unix(),
	}

	tokenObj := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return tokenObj.SignedString([]byte(s.cfg.GetJWTSecret()))
}

func toTenantResponse(t *tenant.Tenant) transport.TenantResponse {
	return transport.TenantResponse{ID: t.ID.String(), Name: t.Name, Slug: t.Slug, Email: t.Email}
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
