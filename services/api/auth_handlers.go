package main

import (
	"errors"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/pavitra93/go-multi-tenant-saas/shared/apperror"
	"github.com/pavitra93/go-multi-tenant-saas/shared/audit"
	"github.com/pavitra93/go-multi-tenant-saas/shared/middleware"
	"github.com/pavitra93/go-multi-tenant-saas/shared/models"
	"github.com/pavitra93/go-multi-tenant-saas/shared/repository"
	"github.com/pavitra93/go-multi-tenant-saas/shared/utils"
	"github.com/sirupsen/logrus"
)

// RegisterRequest represents the self-service tenant sign-up request
type RegisterRequest struct {
	TenantName    string `json:"tenantName"`
	Subdomain     string `json:"subdomain"`
	AdminEmail    string `json:"adminEmail"`
	AdminPassword string `json:"adminPassword"`
	AdminFullName string `json:"adminFullName"`
}

// LoginRequest represents the login request. TenantSubdomain is accepted as an alias.
type LoginRequest struct {
	Email           string `json:"email"`
	Password        string `json:"password"`
	Subdomain       string `json:"subdomain"`
	TenantSubdomain string `json:"tenantSubdomain"`
}

type loginUser struct {
	ID       uuid.UUID       `json:"id"`
	Email    string          `json:"email"`
	FullName string          `json:"fullName"`
	Role     models.UserRole `json:"role"`
	TenantID *uuid.UUID      `json:"tenantId"`
}

// handleRegister creates a tenant on the free plan together with its first admin
func handleRegister(deps *Deps) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req RegisterRequest
		if err := bindJSON(c, &req); err != nil {
			abortWithError(c, err)
			return
		}

		name := strings.TrimSpace(req.TenantName)
		fullName := strings.TrimSpace(req.AdminFullName)
		email := normalizeEmail(req.AdminEmail)
		if name == "" || strings.TrimSpace(req.Subdomain) == "" || email == "" || req.AdminPassword == "" || fullName == "" {
			abortWithError(c, apperror.Validation("All fields are required"))
			return
		}
		subdomain, err := normalizeSubdomain(req.Subdomain)
		if err != nil {
			abortWithError(c, err)
			return
		}
		if len(req.AdminPassword) < utils.MinPasswordLength {
			abortWithError(c, apperror.Validation("Password must be at least 8 characters"))
			return
		}

		hash, err := utils.HashPassword(req.AdminPassword)
		if err != nil {
			abortWithError(c, apperror.Internal("hash password", err))
			return
		}

		tenant := models.NewTenant(name, subdomain, models.PlanFree)
		admin := &models.User{
			Email:        email,
			PasswordHash: hash,
			FullName:     fullName,
			Role:         models.RoleTenantAdmin,
			IsActive:     true,
		}
		if err := deps.Store.RegisterTenant(c.Request.Context(), tenant, admin); err != nil {
			abortWithError(c, storeError(err, "Tenant not found"))
			return
		}

		record(c, deps, audit.Entry{
			TenantID:   &tenant.ID,
			UserID:     &admin.ID,
			Action:     models.ActionTenantRegister,
			EntityType: "tenant",
			EntityID:   &tenant.ID,
			Metadata:   map[string]interface{}{"subdomain": tenant.Subdomain},
		})

		utils.CreatedResponse(c, "Tenant registered successfully", gin.H{
			"tenant": gin.H{
				"id":               tenant.ID,
				"name":             tenant.Name,
				"subdomain":        tenant.Subdomain,
				"subscriptionPlan": tenant.SubscriptionPlan,
				"maxUsers":         tenant.MaxUsers,
				"maxProjects":      tenant.MaxProjects,
			},
			"admin": gin.H{
				"id":       admin.ID,
				"email":    admin.Email,
				"fullName": admin.FullName,
				"role":     admin.Role,
			},
		})
	}
}

// handleLogin resolves the tenant by subdomain, verifies the password and issues a token
func handleLogin(deps *Deps) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req LoginRequest
		if err := bindJSON(c, &req); err != nil {
			abortWithError(c, err)
			return
		}

		email := normalizeEmail(req.Email)
		if email == "" || req.Password == "" {
			abortWithError(c, apperror.Validation("Email and password are required"))
			return
		}

		subdomain := req.Subdomain
		if subdomain == "" {
			subdomain = req.TenantSubdomain
		}
		subdomain = strings.ToLower(strings.TrimSpace(subdomain))

		ctx := c.Request.Context()
		var (
			user *models.User
			err  error
		)
		if subdomain == "" || subdomain == "admin" {
			user, err = deps.Store.SuperAdminByEmail(ctx, email)
		} else {
			tenant, terr := deps.Store.TenantBySubdomain(ctx, subdomain)
			if terr != nil {
				abortWithError(c, storeError(terr, "Tenant not found"))
				return
			}
			if !tenant.IsActive() {
				abortWithError(c, apperror.Forbidden("Tenant is not active"))
				return
			}
			user, err = deps.Store.UserByEmail(ctx, tenant.ID, email)
		}
		if err != nil {
			if errors.Is(err, repository.ErrNotFound) {
				abortWithError(c, apperror.Unauthenticated("Invalid credentials"))
				return
			}
			abortWithError(c, apperror.Internal("load user", err))
			return
		}

		ok, err := utils.CheckPassword(user.PasswordHash, req.Password)
		if err != nil {
			abortWithError(c, apperror.Internal("check password", err))
			return
		}
		if !ok {
			logrus.WithField("email", email).Debug("login rejected: wrong password")
			abortWithError(c, apperror.Unauthenticated("Invalid credentials"))
			return
		}
		if !user.IsActive {
			abortWithError(c, apperror.Forbidden("Account is inactive"))
			return
		}

		principal := models.Principal{UserID: user.ID, TenantID: user.TenantID, Role: user.Role}
		token, expiresAt, err := deps.Tokens.Issue(principal)
		if err != nil {
			abortWithError(c, apperror.Internal("issue token", err))
			return
		}

		record(c, deps, audit.Entry{
			TenantID:   user.TenantID,
			UserID:     &user.ID,
			Action:     models.ActionUserLogin,
			EntityType: "user",
			EntityID:   &user.ID,
		})

		utils.OKResponse(c, "Login successful", gin.H{
			"token":     token,
			"expiresAt": expiresAt.UTC(),
			"user": loginUser{
				ID:       user.ID,
				Email:    user.Email,
				FullName: user.FullName,
				Role:     user.Role,
				TenantID: user.TenantID,
			},
		})
	}
}

// handleProfile returns the caller with its tenant's plan details
func handleProfile(deps *Deps) gin.HandlerFunc {
	return func(c *gin.Context) {
		p := currentPrincipal(c)
		profile, err := deps.Store.Profile(c.Request.Context(), p.UserID)
		if err != nil {
			abortWithError(c, storeError(err, "User not found"))
			return
		}
		utils.OKResponse(c, "", profile)
	}
}

// handleLogout revokes the presented token until it expires. Without a revocation
// store logout is stateless and the client simply drops the token.
func handleLogout(deps *Deps) gin.HandlerFunc {
	return func(c *gin.Context) {
		token, expiresAt := middleware.GetToken(c)
		if deps.Revoker != nil {
			if err := deps.Revoker.Revoke(c.Request.Context(), token, expiresAt); err != nil {
				abortWithError(c, apperror.Internal("revoke token", err))
				return
			}
		}

		p := currentPrincipal(c)
		record(c, deps, audit.Entry{
			Action:     models.ActionUserLogout,
			EntityType: "user",
			EntityID:   &p.UserID,
		})

		utils.OKResponse(c, "Logged out successfully", nil)
	}
}
