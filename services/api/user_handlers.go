package main

import (
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/pavitra93/go-multi-tenant-saas/shared/apperror"
	"github.com/pavitra93/go-multi-tenant-saas/shared/audit"
	"github.com/pavitra93/go-multi-tenant-saas/shared/models"
	"github.com/pavitra93/go-multi-tenant-saas/shared/repository"
	"github.com/pavitra93/go-multi-tenant-saas/shared/utils"
)

// CreateUserRequest represents the create user request
type CreateUserRequest struct {
	Email    string          `json:"email"`
	Password string          `json:"password"`
	FullName string          `json:"fullName"`
	Role     models.UserRole `json:"role"`
	TenantID *uuid.UUID      `json:"tenantId"`
}

// UpdateUserRequest represents the update user request
type UpdateUserRequest struct {
	FullName *string          `json:"fullName"`
	Role     *models.UserRole `json:"role"`
	IsActive *bool            `json:"isActive"`
}

func handleCreateUser(deps *Deps) gin.HandlerFunc {
	return func(c *gin.Context) {
		createUser(c, deps, nil)
	}
}

// createUser adds a user to pathTenant, or to the tenant picked by the caller's role
func createUser(c *gin.Context, deps *Deps, pathTenant *uuid.UUID) {
	var req CreateUserRequest
	if err := bindJSON(c, &req); err != nil {
		abortWithError(c, err)
		return
	}

	email := normalizeEmail(req.Email)
	fullName := strings.TrimSpace(req.FullName)
	if email == "" || req.Password == "" || fullName == "" {
		abortWithError(c, apperror.Validation("Email, password and full name are required"))
		return
	}
	if len(req.Password) < utils.MinPasswordLength {
		abortWithError(c, apperror.Validation("Password must be at least 8 characters"))
		return
	}

	role := req.Role
	if role == "" {
		role = models.RoleUser
	}
	if !role.Valid() {
		abortWithError(c, apperror.Validation("Invalid role"))
		return
	}
	if role == models.RoleSuperAdmin {
		abortWithError(c, apperror.Forbidden("Cannot assign super_admin role"))
		return
	}

	requested := req.TenantID
	if pathTenant != nil {
		requested = pathTenant
	}
	tenantID, err := targetTenant(currentPrincipal(c), requested)
	if err != nil {
		abortWithError(c, err)
		return
	}

	hash, err := utils.HashPassword(req.Password)
	if err != nil {
		abortWithError(c, apperror.Internal("hash password", err))
		return
	}

	user := &models.User{
		TenantID:     &tenantID,
		Email:        email,
		PasswordHash: hash,
		FullName:     fullName,
		Role:         role,
		IsActive:     true,
	}
	if err := deps.Store.CreateUserWithinLimit(c.Request.Context(), user); err != nil {
		abortWithError(c, storeError(err, "Tenant not found"))
		return
	}

	record(c, deps, audit.Entry{
		TenantID:   &tenantID,
		Action:     models.ActionUserCreate,
		EntityType: "user",
		EntityID:   &user.ID,
		Metadata:   map[string]interface{}{"email": user.Email, "role": string(user.Role)},
	})

	utils.CreatedResponse(c, "User created successfully", user)
}

func handleGetUsers(deps *Deps) gin.HandlerFunc {
	return func(c *gin.Context) {
		requested, err := queryUUID(c, "tenantId")
		if err != nil {
			abortWithError(c, err)
			return
		}
		listUsers(c, deps, requested)
	}
}

func listUsers(c *gin.Context, deps *Deps, requested *uuid.UUID) {
	scope, err := tenantScope(currentPrincipal(c), requested)
	if err != nil {
		abortWithError(c, err)
		return
	}
	isActive, err := queryBool(c, "isActive")
	if err != nil {
		abortWithError(c, err)
		return
	}

	filter := repository.UserFilter{
		TenantID: scope,
		Search:   c.Query("search"),
		Role:     c.Query("role"),
		IsActive: isActive,
		Page:     pageFromQuery(c, 50),
	}
	users, total, err := deps.Store.ListUsers(c.Request.Context(), filter)
	if err != nil {
		abortWithError(c, storeError(err, "User not found"))
		return
	}
	utils.PaginatedResponse(c, users, utils.NewPagination(filter.Page.Page, filter.Page.Limit, total))
}

func handleGetUser(deps *Deps) gin.HandlerFunc {
	return func(c *gin.Context) {
		id, err := paramUUID(c, "id")
		if err != nil {
			abortWithError(c, err)
			return
		}
		user, err := deps.Store.UserByID(c.Request.Context(), id)
		if err != nil {
			abortWithError(c, storeError(err, "User not found"))
			return
		}
		if !currentPrincipal(c).CanReadUser(user) {
			abortWithError(c, apperror.Forbidden("Access denied"))
			return
		}
		utils.OKResponse(c, "", user)
	}
}

// handleUpdateUser lets admins edit users of their tenant and users edit their own name
func handleUpdateUser(deps *Deps) gin.HandlerFunc {
	return func(c *gin.Context) {
		id, err := paramUUID(c, "id")
		if err != nil {
			abortWithError(c, err)
			return
		}
		var req UpdateUserRequest
		if err := bindJSON(c, &req); err != nil {
			abortWithError(c, err)
			return
		}

		ctx := c.Request.Context()
		target, err := deps.Store.UserByID(ctx, id)
		if err != nil {
			abortWithError(c, storeError(err, "User not found"))
			return
		}

		p := currentPrincipal(c)
		if !p.CanReadUser(target) {
			abortWithError(c, apperror.Forbidden("Access denied"))
			return
		}
		if p.Role == models.RoleUser && (req.Role != nil || req.IsActive != nil) {
			abortWithError(c, apperror.Forbidden("Users can only change their own name"))
			return
		}
		if req.FullName != nil {
			name := strings.TrimSpace(*req.FullName)
			if name == "" {
				abortWithError(c, apperror.Validation("Full name cannot be empty"))
				return
			}
			req.FullName = &name
		}
		if req.Role != nil {
			if !req.Role.Valid() {
				abortWithError(c, apperror.Validation("Invalid role"))
				return
			}
			if *req.Role == models.RoleSuperAdmin {
				abortWithError(c, apperror.Forbidden("Cannot assign super_admin role"))
				return
			}
		}

		user, err := deps.Store.UpdateUser(ctx, id, repository.UserUpdate{
			FullName: req.FullName,
			Role:     req.Role,
			IsActive: req.IsActive,
		})
		if err != nil {
			abortWithError(c, storeError(err, "User not found"))
			return
		}

		record(c, deps, audit.Entry{
			TenantID:   user.TenantID,
			Action:     models.ActionUserUpdate,
			EntityType: "user",
			EntityID:   &user.ID,
			Metadata:   userChanges(req),
		})

		utils.OKResponse(c, "User updated successfully", user)
	}
}

func userChanges(req UpdateUserRequest) map[string]interface{} {
	changes := map[string]interface{}{}
	if req.FullName != nil {
		changes["fullName"] = *req.FullName
	}
	if req.Role != nil {
		changes["role"] = string(*req.Role)
	}
	if req.IsActive != nil {
		changes["isActive"] = *req.IsActive
	}
	return changes
}

// handleDeleteUser removes a user of the caller's tenant (admins only)
func handleDeleteUser(deps *Deps) gin.HandlerFunc {
	return func(c *gin.Context) {
		id, err := paramUUID(c, "id")
		if err != nil {
			abortWithError(c, err)
			return
		}
		p := currentPrincipal(c)
		if id == p.UserID {
			abortWithError(c, apperror.Forbidden("Cannot delete your own account"))
			return
		}

		ctx := c.Request.Context()
		target, err := deps.Store.UserByID(ctx, id)
		if err != nil {
			abortWithError(c, storeError(err, "User not found"))
			return
		}
		if !p.CanReadUser(target) {
			abortWithError(c, apperror.Forbidden("Access denied"))
			return
		}

		if err := deps.Store.DeleteUser(ctx, id); err != nil {
			abortWithError(c, storeError(err, "User not found"))
			return
		}

		record(c, deps, audit.Entry{
			TenantID:   target.TenantID,
			Action:     models.ActionUserDelete,
			EntityType: "user",
			EntityID:   &id,
			Metadata:   map[string]interface{}{"email": target.Email},
		})

		utils.OKResponse(c, "User deleted successfully", nil)
	}
}
