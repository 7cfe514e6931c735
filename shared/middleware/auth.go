package middleware

import (
	"context"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/pavitra93/go-multi-tenant-saas/shared/apperror"
	"github.com/pavitra93/go-multi-tenant-saas/shared/models"
	"github.com/pavitra93/go-multi-tenant-saas/shared/utils"
	"github.com/sirupsen/logrus"
)

const (
	principalKey = "principal"
	tokenKey     = "access_token"
	tokenExpKey  = "access_token_exp"
)

// RevocationChecker reports whether a token was logged out
type RevocationChecker interface {
	IsRevoked(ctx context.Context, token string) (bool, error)
}

// AuthMiddleware handles JWT token validation
type AuthMiddleware struct {
	tokens      *utils.TokenManager
	revocations RevocationChecker
}

// NewAuthMiddleware creates the authentication middleware. revocations may be nil.
func NewAuthMiddleware(tokens *utils.TokenManager, revocations RevocationChecker) *AuthMiddleware {
	return &AuthMiddleware{tokens: tokens, revocations: revocations}
}

// RequireAuth validates the bearer token and stores the caller's Principal
func (am *AuthMiddleware) RequireAuth() gin.HandlerFunc {
	return func(c *gin.Context) {
		tokenString := extractToken(c)
		if tokenString == "" {
			abort(c, apperror.Unauthenticated("No token provided"))
			return
		}

		principal, expiresAt, err := am.tokens.Parse(tokenString)
		if err != nil {
			abort(c, apperror.Unauthenticated("Invalid or expired token"))
			return
		}

		if am.revocations != nil {
			revoked, err := am.revocations.IsRevoked(c.Request.Context(), tokenString)
			if err != nil {
				// fail open while the revocation store is unreachable
				logrus.WithError(err).Warn("token revocation check failed")
			} else if revoked {
				abort(c, apperror.Unauthenticated("Token has been revoked"))
				return
			}
		}

		c.Set(principalKey, principal)
		c.Set(tokenKey, tokenString)
		c.Set(tokenExpKey, expiresAt)
		c.Next()
	}
}

// RequireRole lets the request through only for the listed roles
func (am *AuthMiddleware) RequireRole(roles ...models.UserRole) gin.HandlerFunc {
	return func(c *gin.Context) {
		principal, ok := GetPrincipal(c)
		if !ok {
			abort(c, apperror.Unauthenticated("Authentication required"))
			return
		}
		if !principal.HasRole(roles...) {
			abort(c, apperror.Forbidden("Access denied"))
			return
		}
		c.Next()
	}
}

// extractToken extracts the JWT token from the Authorization header
func extractToken(c *gin.Context) string {
	authHeader := c.GetHeader("Authorization")
	if !strings.HasPrefix(authHeader, "Bearer ") {
		return ""
	}
	return strings.TrimSpace(strings.TrimPrefix(authHeader, "Bearer "))
}

// GetPrincipal returns the caller set by RequireAuth
func GetPrincipal(c *gin.Context) (*models.Principal, bool) {
	v, exists := c.Get(principalKey)
	if !exists {
		return nil, false
	}
	p, ok := v.(*models.Principal)
	return p, ok
}

// GetToken returns the raw bearer token and its expiry
func GetToken(c *gin.Context) (string, time.Time) {
	return c.GetString(tokenKey), c.GetTime(tokenExpKey)
}

func abort(c *gin.Context, err error) {
	_ = c.Error(err)
	c.Abort()
}
