package service

import (
	"context"
	"strings"
	"sync"
	"testing"
	"time"

	"tradesdesk_backend/internal/auth/password"
	"tradesdesk_backend/internal/auth/transport"
	"tradesdesk_backend/internal/events"
	"tradesdesk_backend/internal/tenant"
	"tradesdesk_backend/platform/apperr"
	"tradesdesk_backend/platform/logger"
	"tradesdesk_backend/platform/phone"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

const testSecret = "test-secret"

type authConfig struct{}

func (authConfig) GetJWTSecret() string             { return testSecret }
func (authConfig) GetAccessTokenTTL() time.Duration { return time.Hour }

type memoryTenants struct {
	mu      sync.Mutex
	byEmail map[string]*tenant.Tenant
}

func newMemoryTenants() *memoryTenants {
	return &memoryTenants{byEmail: map[string]*tenant.Tenant{}}
}

func (m *memoryTenants) GetByID(_ context.Context, id uuid.UUID) (*tenant.Tenant, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, t := range m.byEmail {
		if t.ID == id {
			cp := *t
			return &cp, nil
		}
	}
	return nil, apperr.NotFound("tenant not found")
}

func (m *memoryTenants) GetByEmail(_ context.Context, email string) (*tenant.Tenant, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	t, ok := m.byEmail[email]
	if !ok {
		return nil, apperr.NotFound("tenant not found")
	}
	cp := *t
	return &cp, nil
}

func (m *memoryTenants) Create(_ context.Context, t *tenant.Tenant) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.byEmail[t.Email]; ok {
		return apperr.Conflict("tenant already exists")
	}
	t.Active = true
	cp := *t
	m.byEmail[t.Email] = &cp
	return nil
}

type recordingBus struct {
	events []events.Event
}

func (b *recordingBus) Publish(_ context.Context, e events.Event) { b.events = append(b.events, e) }
func (b *recordingBus) PublishSync(ctx context.Context, e events.Event) error {
	b.Publish(ctx, e)
	return nil
}
func (b *recordingBus) Subscribe(string, events.Handler) {}

func newTestService() (*Service, *memoryTenants, *recordingBus) {
	store := newMemoryTenants()
	bus := &recordingBus{}
	return New(store, phone.NewNormalizer("GB"), authConfig{}, bus, logger.Discard()), store, bus
}

func validRegistration() transport.RegisterRequest {
	return transport.RegisterRequest{
		Email:      "  Owner@Acme.co.uk ",
		Password:   "correct horse",
		Name:       "Acme Repairs",
		Slug:       "acme-repairs",
		OwnerPhone: "07400 123456",
	}
}

func TestRegisterStoresNormalizedTenant(t *testing.T) {
	svc, store, bus := newTestService()

	resp, err := svc.Register(context.Background(), validRegistration())
	if err != nil {
		t.Fatalf("register: %v", err)
	}

	stored, err := store.GetByEmail(context.Background(), "owner@acme.co.uk")
	if err != nil {
		t.Fatalf("expected tenant stored under lowercased email: %v", err)
	}
	if stored.OwnerPhone != "+447400123456" {
		t.Fatalf("expected E.164 owner phone, got %q", stored.OwnerPhone)
	}
	if stored.PasswordHash == "correct horse" || password.Compare(stored.PasswordHash, "correct horse") != nil {
		t.Fatal("expected bcrypt hash of the password")
	}
	if stored.BusinessHours.Timezone != tenant.DefaultTimezone || len(stored.BusinessHours.Days) == 0 {
		t.Fatalf("expected default business hours, got %+v", stored.BusinessHours)
	}
	if resp.Tenant.ID != stored.ID.String() || resp.ExpiresIn != int64(time.Hour.Seconds()) {
		t.Fatalf("unexpected response %+v", resp)
	}
	if len(bus.events) != 1 || bus.events[0].EventName() != "tenants.registered" {
		t.Fatalf("expected one TenantRegistered event, got %v", bus.events)
	}
}

func TestRegisterIssuesAccessTokenForTenant(t *testing.T) {
	svc, _, _ := newTestService()

	resp, err := svc.Register(context.Background(), validRegistration())
	if err != nil {
		t.Fatalf("register: %v", err)
	}

	claims := jwt.MapClaims{}
	_, err = jwt.ParseWithClaims(resp.AccessToken, claims, func(*jwt.Token) (any, error) {
		return []byte(testSecret), nil
	})
	if err != nil {
		t.Fatalf("parse token: %v", err)
	}
	if claims["tenant_id"] != resp.Tenant.ID || claims["sub"] != resp.Tenant.ID {
		t.Fatalf("expected tenant claims, got %v", claims)
	}
	if claims["type"] != "access" {
		t.Fatalf("expected access token type, got %v", claims["type"])
	}
}

func TestRegisterDuplicateEmailIsConflict(t *testing.T) {
	svc, _, _ := newTestService()
	if _, err := svc.Register(context.Background(), validRegistration()); err != nil {
		t.Fatalf("first register: %v", err)
	}

	req := validRegistration()
	req.Email = "OWNER@acme.co.uk"
	req.Slug = "other"
	_, err := svc.Register(context.Background(), req)
	if !apperr.Is(err, apperr.KindConflict) {
		t.Fatalf("expected conflict, got %v", err)
	}
}

func TestRegisterKeepsCustomHours(t *testing.T) {
	svc, store, _ := newTestService()
	req := validRegistration()
	req.BusinessHours = &transport.BusinessHours{Start: 7, End: 15, Days: []int{1, 2, 3, 4, 5, 6}}

	if _, err := svc.Register(context.Background(), req); err != nil {
		t.Fatalf("register: %v", err)
	}
	stored, _ := store.GetByEmail(context.Background(), "owner@acme.co.uk")
	if stored.BusinessHours.Start != 7 || stored.BusinessHours.End != 15 || len(stored.BusinessHours.Days) != 6 {
		t.Fatalf("unexpected hours %+v", stored.BusinessHours)
	}
	if stored.BusinessHours.Timezone != tenant.DefaultTimezone {
		t.Fatalf("expected default timezone when omitted, got %q", stored.BusinessHours.Timezone)
	}
}

func TestLogin(t *testing.T) {
	svc, store, _ := newTestService()
	if _, err := svc.Register(context.Background(), validRegistration()); err != nil {
		t.Fatalf("register: %v", err)
	}

	resp, err := svc.Login(context.Background(), transport.LoginRequest{Email: "OWNER@ACME.CO.UK", Password: "correct horse"})
	if err != nil {
		t.Fatalf("login: %v", err)
	}
	if resp.AccessToken == "" || !strings.EqualFold(resp.Tenant.Email, "owner@acme.co.uk") {
		t.Fatalf("unexpected login response %+v", resp)
	}

	tests := map[string]transport.LoginRequest{
		"wrong password": {Email: "owner@acme.co.uk", Password: "nope"},
		"unknown email":  {Email: "nobody@acme.co.uk", Password: "correct horse"},
	}
	for name, req := range tests {
		t.Run(name, func(t *testing.T) {
			_, err := svc.Login(context.Background(), req)
			if !apperr.Is(err, apperr.KindUnauthorized) {
				t.Fatalf("expected unauthorized, got %v", err)
			}
		})
	}

	store.byEmail["owner@acme.co.uk"].Active = false
	_, err = svc.Login(context.Background(), transport.LoginRequest{Email: "owner@acme.co.uk", Password: "correct horse"})
	if !apperr.Is(err, apperr.KindForbidden) {
		t.Fatalf("expected forbidden for inactive tenant, got %v", err)
	}
}

func TestMeReturnsTenant(t *testing.T) {
	svc, _, _ := newTestService()
	reg, err := svc.Register(context.Background(), validRegistration())
	if err != nil {
		t.Fatalf("register: %v", err)
	}

	me, err := svc.Me(context.Background(), uuid.MustParse(reg.Tenant.ID))
	if err != nil {
		t.Fatalf("me: %v", err)
	}
	if me.Slug != "acme-repairs" {
		t.Fatalf("unexpected tenant %+v", me)
	}

	if _, err := svc.Me(context.Background(), uuid.New()); !apperr.Is(err, apperr.KindNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
}
