package middleware

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/mailcenter/billing/internal/domain/directory"
	"github.com/mailcenter/billing/internal/domain/shared"
	"github.com/mailcenter/billing/internal/infrastructure/auth"
	"github.com/mailcenter/billing/internal/infrastructure/logger"
	"github.com/mailcenter/billing/internal/interfaces/http/dto"
	"go.uber.org/zap"
)

// Context keys and headers
const (
	ClaimsKey       = "auth_claims"
	TenantIDKey     = "tenant_id"
	ActorIDKey      = "actor_id"
	TenantHeaderKey = "X-Tenant-ID"
	AuthHeaderKey   = "Authorization"
	BearerPrefix    = "Bearer "
)

// TokenVerifier validates bearer tokens
type TokenVerifier interface {
	Verify(token string) (*auth.Claims, error)
}

// TenantLookup loads a tenant to check it is active
type TenantLookup interface {
	FindTenant(ctx context.Context, tenantID uuid.UUID) (*directory.Tenant, error)
}

// AuthConfig configures Authenticate
type AuthConfig struct {
	Verifier TokenVerifier
	// Required rejects requests without a bearer token. When false the
	// X-Tenant-ID header is trusted, which is meant for development and
	// for callers inside the platform network.
	Required bool
	// Tenants, when set, rejects unknown and inactive tenants
	Tenants   TenantLookup
	SkipPaths []string
	Logger    *zap.Logger
}

// Authenticate resolves the tenant of every request, from the token's
// tenant claim or, when tokens are optional, from X-Tenant-ID. A present
// but invalid token is always rejected.
func Authenticate(cfg AuthConfig) gin.HandlerFunc {
	log := cfg.Logger
	if log == nil {
		log = zap.NewNop()
	}

	return func(c *gin.Context) {
		for _, p := range cfg.SkipPaths {
			if c.Request.URL.Path == p {
				c.Next()
				return
			}
		}

		var (
			tenantRaw string
			actorID   string
		)
		header := c.GetHeader(AuthHeaderKey)
		switch {
		case header != "":
			if !strings.HasPrefix(header, BearerPrefix) || cfg.Verifier == nil {
				abortUnauthorized(c, dto.ErrCodeTokenInvalid, "Invalid authorization header")
				return
			}
			claims, err := cfg.Verifier.Verify(strings.TrimPrefix(header, BearerPrefix))
			if err != nil {
				log.Warn("Token rejected", zap.String("path", c.Request.URL.Path), zap.Error(err))
				if errors.Is(err, auth.ErrExpiredToken) {
					abortUnauthorized(c, dto.ErrCodeTokenExpired, "Token has expired")
				} else {
					abortUnauthorized(c, dto.ErrCodeTokenInvalid, "Invalid token")
				}
				return
			}
			c.Set(ClaimsKey, claims)
			tenantRaw = claims.TenantID
			actorID = claims.ActorID()
		case cfg.Required:
			abortUnauthorized(c, dto.ErrCodeUnauthorized, "Authentication required")
			return
		default:
			tenantRaw = c.GetHeader(TenantHeaderKey)
		}

		if tenantRaw == "" {
			abortUnauthorized(c, dto.ErrCodeUnauthorized, "Tenant not specified")
			return
		}
		tenantID, err := uuid.Parse(tenantRaw)
		if err != nil {
			abortWithError(c, http.StatusBadRequest, dto.ErrCodeBadRequest, "Invalid tenant ID format")
			return
		}

		if cfg.Tenants != nil {
			tenant, err := cfg.Tenants.FindTenant(c.Request.Context(), tenantID)
			switch {
			case errors.Is(err, shared.ErrNotFound):
				abortWithError(c, http.StatusForbidden, dto.ErrCodeForbidden, "Unknown tenant")
				return
			case err != nil:
				log.Error("Tenant lookup failed", zap.String("tenant_id", tenantID.String()), zap.Error(err))
				abortWithError(c, http.StatusInternalServerError, dto.ErrCodeInternal, "Tenant lookup failed")
				return
			case tenant.Status != directory.StatusActive:
				abortWithError(c, http.StatusForbidden, dto.ErrCodeForbidden, "Tenant is not active")
				return
			}
		}

		c.Set(TenantIDKey, tenantID)
		ctx := c.Request.Context()
		reqLogger := logger.FromContext(ctx)
		ctx, reqLogger = logger.WithTenantID(ctx, reqLogger, tenantID.String())
		if actorID != "" {
			c.Set(ActorIDKey, actorID)
			ctx, _ = logger.WithActorID(ctx, reqLogger, actorID)
		}
		c.Request = c.Request.WithContext(ctx)

		c.Next()
	}
}

// RequirePermission rejects token holders lacking permission. Header
// authenticated requests carry no claims and pass.
func RequirePermission(permission string) gin.HandlerFunc {
	return func(c *gin.Context) {
		if claims := GetClaims(c); claims != nil && !claims.HasPermission(permission) {
			abortWithError(c, http.StatusForbidden, dto.ErrCodeForbidden, "Missing permission "+permission)
			return
		}
		c.Next()
	}
}

// GetClaims returns the verified token claims, or nil
func GetClaims(c *gin.Context) *auth.Claims {
	if v, ok := c.Get(ClaimsKey); ok {
		if claims, ok := v.(*auth.Claims); ok {
			return claims
		}
	}
	return nil
}

// GetTenantID returns the tenant resolved by Authenticate
func GetTenantID(c *gin.Context) (uuid.UUID, bool) {
	if v, ok := c.Get(TenantIDKey); ok {
		if id, ok := v.(uuid.UUID); ok {
			return id, true
		}
	}
	return uuid.Nil, false
}

// GetActorID returns the acting user as a UUID when it is one
func GetActorID(c *gin.Context) *uuid.UUID {
	raw := c.GetString(ActorIDKey)
	if raw == "" {
		return nil
	}
	id, err := uuid.Parse(raw)
	if err != nil {
		return nil
	}
	return &id
}

func abortUnauthorized(c *gin.Context, code, message string) {
	c.Header("WWW-Authenticate", `Bearer realm="billing"`)
	abortWithError(c, http.StatusUnauthorized, code, message)
}
