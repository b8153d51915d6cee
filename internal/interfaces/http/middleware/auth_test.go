package middleware

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/mailcenter/billing/internal/domain/directory"
	"github.com/mailcenter/billing/internal/domain/shared"
	"github.com/mailcenter/billing/internal/infrastructure/auth"
	"github.com/mailcenter/billing/internal/infrastructure/config"
	"github.com/mailcenter/billing/internal/infrastructure/logger"
	"github.com/mailcenter/billing/internal/interfaces/http/dto"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubTenants map[uuid.UUID]string

func (s stubTenants) FindTenant(_ context.Context, id uuid.UUID) (*directory.Tenant, error) {
	status, ok := s[id]
	if !ok {
		return nil, shared.ErrNotFound
	}
	return &directory.Tenant{ID: id, Status: status}, nil
}

var testVerifier = auth.NewTokenVerifier(config.JWTConfig{Secret: "test-secret-key-at-least-32-chars", Issuer: "mailcenter"})

type seen struct {
	tenant    uuid.UUID
	actor     *uuid.UUID
	logTenant string
}

func authRouter(cfg AuthConfig, perms ...string) (*gin.Engine, *seen) {
	got := &seen{}
	r := gin.New()
	r.Use(Authenticate(cfg))
	chain := []gin.HandlerFunc{}
	for _, p := range perms {
		chain = append(chain, RequirePermission(p))
	}
	chain = append(chain, func(c *gin.Context) {
		got.tenant, _ = GetTenantID(c)
		got.actor = GetActorID(c)
		got.logTenant = logger.GetTenantID(c.Request.Context())
		c.Status(http.StatusOK)
	})
	r.GET("/api/v1/billing/charges", chain...)
	r.GET("/health", func(c *gin.Context) { c.Status(http.StatusOK) })
	return r, got
}

func bearer(t *testing.T, in auth.IssueInput) string {
	t.Helper()
	token, err := testVerifier.Issue(in)
	require.NoError(t, err)
	return "Bearer " + token
}

func TestAuthenticate_Token(t *testing.T) {
	tenantID := uuid.New()
	userID := uuid.New()
	r, got := authRouter(AuthConfig{Verifier: testVerifier, Required: true})

	req := httptest.NewRequest(http.MethodGet, "/api/v1/billing/charges", nil)
	req.Header.Set(AuthHeaderKey, bearer(t, auth.IssueInput{TenantID: tenantID, UserID: &userID}))
	// header is ignored once a token is present
	req.Header.Set(TenantHeaderKey, uuid.NewString())
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, tenantID, got.tenant)
	require.NotNil(t, got.actor)
	assert.Equal(t, userID, *got.actor)
	assert.Equal(t, tenantID.String(), got.logTenant)
}

func TestAuthenticate_RequiredWithoutToken(t *testing.T) {
	r, _ := authRouter(AuthConfig{Verifier: testVerifier, Required: true})

	req := httptest.NewRequest(http.MethodGet, "/api/v1/billing/charges", nil)
	req.Header.Set(TenantHeaderKey, uuid.NewString())
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	assert.Equal(t, http.StatusUnauthorized, w.Code)
	assert.Equal(t, dto.ErrCodeUnauthorized, decodeError(t, w).Code)
	assert.NotEmpty(t, w.Header().Get("WWW-Authenticate"))
}

func TestAuthenticate_HeaderModeWhenOptional(t *testing.T) {
	tenantID := uuid.New()
	r, got := authRouter(AuthConfig{Verifier: testVerifier})

	req := httptest.NewRequest(http.MethodGet, "/api/v1/billing/charges", nil)
	req.Header.Set(TenantHeaderKey, tenantID.String())
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, tenantID, got.tenant)
	assert.Nil(t, got.actor)
}

func TestAuthenticate_Rejections(t *testing.T) {
	r, _ := authRouter(AuthConfig{Verifier: testVerifier})

	tests := []struct {
		name   string
		header map[string]string
		status int
		code   string
	}{
		{"no tenant", nil, http.StatusUnauthorized, dto.ErrCodeUnauthorized},
		{"bad tenant", map[string]string{TenantHeaderKey: "abc"}, http.StatusBadRequest, dto.ErrCodeBadRequest},
		{"basic auth", map[string]string{AuthHeaderKey: "Basic Zm9vOmJhcg=="}, http.StatusUnauthorized, dto.ErrCodeTokenInvalid},
		{"garbage token", map[string]string{AuthHeaderKey: "Bearer nope"}, http.StatusUnauthorized, dto.ErrCodeTokenInvalid},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/api/v1/billing/charges", nil)
			for k, v := range tt.header {
				req.Header.Set(k, v)
			}
			w := httptest.NewRecorder()
			r.ServeHTTP(w, req)

			assert.Equal(t, tt.status, w.Code)
			assert.Equal(t, tt.code, decodeError(t, w).Code)
		})
	}
}

func TestAuthenticate_TenantLookup(t *testing.T) {
	active, suspended := uuid.New(), uuid.New()
	r, _ := authRouter(AuthConfig{
		Verifier: testVerifier,
		Tenants:  stubTenants{active: directory.StatusActive, suspended: "suspended"},
	})

	for id, want := range map[uuid.UUID]int{
		active:     http.StatusOK,
		suspended:  http.StatusForbidden,
		uuid.New(): http.StatusForbidden,
	} {
		req := httptest.NewRequest(http.MethodGet, "/api/v1/billing/charges", nil)
		req.Header.Set(TenantHeaderKey, id.String())
		w := httptest.NewRecorder()
		r.ServeHTTP(w, req)
		assert.Equal(t, want, w.Code, id.String())
	}
}

func TestAuthenticate_SkipPaths(t *testing.T) {
	r, _ := authRouter(AuthConfig{Verifier: testVerifier, Required: true, SkipPaths: []string{"/health"}})

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/health", nil))

	assert.Equal(t, http.StatusOK, w.Code)
}

func TestRequirePermission(t *testing.T) {
	tenantID := uuid.New()
	r, _ := authRouter(AuthConfig{Verifier: testVerifier}, auth.PermBillingWrite)

	t.Run("token without permission", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/api/v1/billing/charges", nil)
		req.Header.Set(AuthHeaderKey, bearer(t, auth.IssueInput{TenantID: tenantID, Permissions: []string{auth.PermBillingRead}}))
		w := httptest.NewRecorder()
		r.ServeHTTP(w, req)
		assert.Equal(t, http.StatusForbidden, w.Code)
	})

	t.Run("token with permission", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/api/v1/billing/charges", nil)
		req.Header.Set(AuthHeaderKey, bearer(t, auth.IssueInput{TenantID: tenantID, Permissions: []string{auth.PermBillingWrite}}))
		w := httptest.NewRecorder()
		r.ServeHTTP(w, req)
		assert.Equal(t, http.StatusOK, w.Code)
	})

	t.Run("header mode passes", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/api/v1/billing/charges", nil)
		req.Header.Set(TenantHeaderKey, tenantID.String())
		w := httptest.NewRecorder()
		r.ServeHTTP(w, req)
		assert.Equal(t, http.StatusOK, w.Code)
	})
}
