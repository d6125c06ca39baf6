package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"tradesdesk_backend/internal/auth/service"
	"tradesdesk_backend/internal/events"
	"tradesdesk_backend/internal/tenant"
	"tradesdesk_backend/platform/apperr"
	"tradesdesk_backend/platform/httpkit"
	"tradesdesk_backend/platform/logger"
	"tradesdesk_backend/platform/phone"
	"tradesdesk_backend/platform/validator"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

type testConfig struct{}

func (testConfig) GetJWTSecret() string             { return "secret" }
func (testConfig) GetAccessTokenTTL() time.Duration { return time.Hour }

type singleTenantStore struct {
	tenant *tenant.Tenant
}

func (s *singleTenantStore) GetByID(_ context.Context, id uuid.UUID) (*tenant.Tenant, error) {
	if s.tenant == nil || s.tenant.ID != id {
		return nil, apperr.NotFound("tenant not found")
	}
	return s.tenant, nil
}

func (s *singleTenantStore) GetByEmail(_ context.Context, email string) (*tenant.Tenant, error) {
	if s.tenant == nil || s.tenant.Email != email {
		return nil, apperr.NotFound("tenant not found")
	}
	return s.tenant, nil
}

func (s *singleTenantStore) Create(_ context.Context, t *tenant.Tenant) error {
	if s.tenant != nil {
		return apperr.Conflict("tenant already exists")
	}
	t.Active = true
	s.tenant = t
	return nil
}

func newEngine() *gin.Engine {
	gin.SetMode(gin.TestMode)
	svc := service.New(&singleTenantStore{}, phone.NewNormalizer("GB"), testConfig{}, events.NewInMemoryBus(logger.Discard()), logger.Discard())
	h := New(svc, validator.New())

	engine := gin.New()
	h.RegisterRoutes(engine.Group("/auth"))
	engine.GET("/me", httpkit.AuthRequired(testConfig{}), h.GetMe)
	return engine
}

func post(engine *gin.Engine, path, body string) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	engine.ServeHTTP(rec, req)
	return rec
}

const registerBody = `{"email":"owner@acme.co.uk","password":"correct horse","name":"Acme Repairs","slug":"acme-repairs"}`

func TestRegisterLoginAndMe(t *testing.T) {
	engine := newEngine()

	if rec := post(engine, "/auth/register", registerBody); rec.Code != http.StatusCreated {
		t.Fatalf("register: expected 201, got %d: %s", rec.Code, rec.Body.String())
	}
	if rec := post(engine, "/auth/register", registerBody); rec.Code != http.StatusConflict {
		t.Fatalf("duplicate register: expected 409, got %d", rec.Code)
	}

	rec := post(engine, "/auth/login", `{"email":"owner@acme.co.uk","password":"correct horse"}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("login: expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	var resp struct {
		AccessToken string `json:"accessToken"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil || resp.AccessToken == "" {
		t.Fatalf("expected access token, got %s", rec.Body.String())
	}

	me := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/me", nil)
	req.Header.Set("Authorization", "Bearer "+resp.AccessToken)
	engine.ServeHTTP(me, req)
	if me.Code != http.StatusOK || !strings.Contains(me.Body.String(), "acme-repairs") {
		t.Fatalf("me: expected tenant, got %d: %s", me.Code, me.Body.String())
	}
}

func TestLoginWrongPasswordIsUnauthorized(t *testing.T) {
	engine := newEngine()
	post(engine, "/auth/register", registerBody)

	if rec := post(engine, "/auth/login", `{"email":"owner@acme.co.uk","password":"wrong"}`); rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", rec.Code)
	}
}

func TestRegisterValidation(t *testing.T) {
	cases := map[string]string{
		"malformed json": `{"email":`,
		"short password": `{"email":"a@b.co","password":"short","name":"A","slug":"acme"}`,
		"bad slug":       `{"email":"a@b.co","password":"correct horse","name":"A","slug":"Not A Slug"}`,
		"bad hours":      `{"email":"a@b.co","password":"correct horse","name":"A","slug":"acme","businessHours":{"start":18,"end":8,"days":[1]}}`,
	}
	engine := newEngine()
	for name, body := range cases {
		t.Run(name, func(t *testing.T) {
			if rec := post(engine, "/auth/register", body); rec.Code != http.StatusBadRequest {
				t.Fatalf("expected 400, got %d: %s", rec.Code, rec.Body.String())
			}
		})
	}
}
