package httpkit

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

type testJWTConfig struct{ secret string }

func (c testJWTConfig) GetJWTSecret() string { return c.secret }

func signToken(t *testing.T, secret string, claims jwt.MapClaims) string {
	t.Helper()
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(secret))
	if err != nil {
		t.Fatalf("sign token: %v", err)
	}
	return token
}

func newProtectedEngine(secret string) *gin.Engine {
	gin.SetMode(gin.TestMode)
	engine := gin.New()
	engine.GET("/me", AuthRequired(testJWTConfig{secret: secret}), func(c *gin.Context) {
		id := MustGetIdentity(c)
		if id == nil {
			return
		}
		c.String(http.StatusOK, id.TenantID().String())
	})
	return engine
}

func TestAuthRequiredAcceptsAccessToken(t *testing.T) {
	tenantID := uuid.New()
	token := signToken(t, "s3cret", jwt.MapClaims{
		"sub":       tenantID.String(),
		"tenant_id": tenantID.String(),
		"type":      AccessTokenType,
		"exp":       time.Now().Add(time.Hour).Unix(),
	})

	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/me", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	newProtectedEngine("s3cret").ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	if rec.Body.String() != tenantID.String() {
		t.Fatalf("expected tenant id in body, got %q", rec.Body.String())
	}
}

func TestAuthRequiredRejectsBadTokens(t *testing.T) {
	tenantID := uuid.New().String()
	cases := map[string]string{
		"missing":      "",
		"wrong secret": "Bearer " + signToken(t, "other", jwt.MapClaims{"sub": tenantID, "type": AccessTokenType}),
		"wrong type":   "Bearer " + signToken(t, "s3cret", jwt.MapClaims{"sub": tenantID, "type": "refresh"}),
		"expired": "Bearer " + signToken(t, "s3cret", jwt.MapClaims{
			"sub": tenantID, "type": AccessTokenType, "exp": time.Now().Add(-time.Hour).Unix(),
		}),
	}
	engine := newProtectedEngine("s3cret")
	for name, header := range cases {
		t.Run(name, func(t *testing.T) {
			rec := httptest.NewRecorder()
			req := httptest.NewRequest(http.MethodGet, "/me", nil)
			if header != "" {
				req.Header.Set("Authorization", header)
			}
			engine.ServeHTTP(rec, req)
			if rec.Code != http.StatusUnauthorized {
				t.Fatalf("expected 401, got %d", rec.Code)
			}
		})
	}
}

func TestRequestIDIsEchoed(t *testing.T) {
	gin.SetMode(gin.TestMode)
	engine := gin.New()
	engine.Use(RequestID())
	engine.GET("/", func(c *gin.Context) { c.Status(http.StatusNoContent) })

	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("X-Request-ID", "abc-123")
	engine.ServeHTTP(rec, req)

	if rec.Header().Get("X-Request-ID") != "abc-123" {
		t.Fatalf("expected request id to be echoed, got %q", rec.Header().Get("X-Request-ID"))
	}
}
