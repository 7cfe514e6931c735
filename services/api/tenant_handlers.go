package main

import (
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/pavitra93/go-multi-tenant-saas/shared/apperror"
	"github.com/pavitra93/go-multi-tenant-saas/shared/audit"
	"github.com/pavitra93/go-multi-tenant-saas/shared/models"
	"github.com/pavitra93/go-multi-tenant-saas/shared/repository"
	"github.com/pavitra93/go-multi-tenant-saas/shared/utils"
)

// CreateTenantRequest represents the create tenant request
type CreateTenantRequest struct {
	Name             string                  `json:"name"`
	Subdomain        string                  `json:"subdomain"`
	SubscriptionPlan models.SubscriptionPlan `json:"subscriptionPlan"`
}

// UpdateTenantRequest represents the update tenant request. Only Name is open to
// tenant admins; the rest is platform-administrator territory.
type UpdateTenantRequest struct {
	Name             *string                  `json:"name"`
	Status           *models.TenantStatus     `json:"status"`
	SubscriptionPlan *models.SubscriptionPlan `json:"subscriptionPlan"`
	MaxUsers         *int                     `json:"maxUsers"`
	MaxProjects      *int                     `json:"maxProjects"`
}

func (r UpdateTenantRequest) touchesPlatformFields() bool {
	return r.Status != nil || r.SubscriptionPlan != nil || r.MaxUsers != nil || r.MaxProjects != nil
}

func (r UpdateTenantRequest) validate() error {
	if r.Name != nil && strings.TrimSpace(*r.Name) == "" {
		return apperror.Validation("Tenant name cannot be empty")
	}
	if r.Status != nil && !r.Status.Valid() {
		return apperror.Validation("Invalid status")
	}
	if r.SubscriptionPlan != nil && !r.SubscriptionPlan.Valid() {
		return apperror.Validation("Invalid subscription plan")
	}
	if (r.MaxUsers != nil && *r.MaxUsers < 1) || (r.MaxProjects != nil && *r.MaxProjects < 1) {
		return apperror.Validation("Limits must be positive")
	}
	return nil
}

type tenantWithStats struct {
	*models.Tenant
	Stats *models.TenantStats `json:"stats"`
}

// handleCreateTenant handles tenant creation (super admin only)
func handleCreateTenant(deps *Deps) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req CreateTenantRequest
		if err := bindJSON(c, &req); err != nil {
			abortWithError(c, err)
			return
		}

		name := strings.TrimSpace(req.Name)
		if name == "" {
			abortWithError(c, apperror.Validation("Tenant name is required"))
			return
		}

		plan := req.SubscriptionPlan
		if plan == "" {
			plan = models.PlanFree
		}
		if !plan.Valid() {
			abortWithError(c, apperror.Validation("Invalid subscription plan"))
			return
		}

		raw := req.Subdomain
		if strings.TrimSpace(raw) == "" {
			raw = slugify(name)
		}
		subdomain, err := normalizeSubdomain(raw)
		if err != nil {
			abortWithError(c, err)
			return
		}

		tenant := models.NewTenant(name, subdomain, plan)
		if err := deps.Store.CreateTenant(c.Request.Context(), tenant); err != nil {
			abortWithError(c, storeError(err, "Tenant not found"))
			return
		}

		record(c, deps, audit.Entry{
			Action:     models.ActionTenantCreate,
			EntityType: "tenant",
			EntityID:   &tenant.ID,
			Metadata:   map[string]interface{}{"subdomain": tenant.Subdomain, "plan": string(tenant.SubscriptionPlan)},
		})

		utils.CreatedResponse(c, "Tenant created successfully", tenant)
	}
}

// handleGetTenants lists tenants with usage counters (super admin only)
func handleGetTenants(deps *Deps) gin.HandlerFunc {
	return func(c *gin.Context) {
		filter := repository.TenantFilter{
			Status:           c.Query("status"),
			SubscriptionPlan: c.Query("subscriptionPlan"),
			Page:             pageFromQuery(c, 10),
		}
		tenants, total, err := deps.Store.ListTenants(c.Request.Context(), filter)
		if err != nil {
			abortWithError(c, storeError(err, "Tenant not found"))
			return
		}
		utils.PaginatedResponse(c, tenants, utils.NewPagination(filter.Page.Page, filter.Page.Limit, total))
	}
}

// handleGetCurrentTenant returns the caller's own tenant
func handleGetCurrentTenant(deps *Deps) gin.HandlerFunc {
	return func(c *gin.Context) {
		p := currentPrincipal(c)
		if p.TenantID == nil {
			abortWithError(c, apperror.Validation("No tenant associated with this user"))
			return
		}
		tenant, err := deps.Store.TenantByID(c.Request.Context(), *p.TenantID)
		if err != nil {
			abortWithError(c, storeError(err, "Tenant not found"))
			return
		}
		utils.OKResponse(c, "", tenant)
	}
}

// handleGetTenant returns a tenant with row counts
func handleGetTenant(deps *Deps) gin.HandlerFunc {
	return func(c *gin.Context) {
		id, err := paramUUID(c, "id")
		if err != nil {
			abortWithError(c, err)
			return
		}
		if !currentPrincipal(c).CanAccessTenant(id) {
			abortWithError(c, apperror.Forbidden("Access denied"))
			return
		}

		ctx := c.Request.Context()
		tenant, err := deps.Store.TenantByID(ctx, id)
		if err != nil {
			abortWithError(c, storeError(err, "Tenant not found"))
			return
		}
		stats, err := deps.Store.TenantStats(ctx, id)
		if err != nil {
			abortWithError(c, storeError(err, "Tenant not found"))
			return
		}
		utils.OKResponse(c, "", tenantWithStats{Tenant: tenant, Stats: stats})
	}
}

// handleUpdateTenant handles updating a tenant
func handleUpdateTenant(deps *Deps) gin.HandlerFunc {
	return func(c *gin.Context) {
		id, err := paramUUID(c, "id")
		if err != nil {
			abortWithError(c, err)
			return
		}
		p := currentPrincipal(c)
		if !p.CanManageTenant(id) {
			abortWithError(c, apperror.Forbidden("Access denied"))
			return
		}

		var req UpdateTenantRequest
		if err := bindJSON(c, &req); err != nil {
			abortWithError(c, err)
			return
		}
		if !p.IsSuperAdmin() && req.touchesPlatformFields() {
			abortWithError(c, apperror.Forbidden("Only platform administrators can change status, plan or limits"))
			return
		}
		if err := req.validate(); err != nil {
			abortWithError(c, err)
			return
		}

		ctx := c.Request.Context()
		if _, err := deps.Store.TenantByID(ctx, id); err != nil {
			abortWithError(c, storeError(err, "Tenant not found"))
			return
		}

		update := repository.TenantUpdate{
			Status:           req.Status,
			SubscriptionPlan: req.SubscriptionPlan,
			MaxUsers:         req.MaxUsers,
			MaxProjects:      req.MaxProjects,
		}
		if req.Name != nil {
			name := strings.TrimSpace(*req.Name)
			update.Name = &name
		}
		tenant, err := deps.Store.UpdateTenant(ctx, id, update)
		if err != nil {
			abortWithError(c, storeError(err, "Tenant not found"))
			return
		}

		record(c, deps, audit.Entry{
			TenantID:   &tenant.ID,
			Action:     models.ActionTenantUpdate,
			EntityType: "tenant",
			EntityID:   &tenant.ID,
			Metadata:   tenantChanges(req),
		})

		utils.OKResponse(c, "Tenant updated successfully", tenant)
	}
}

func tenantChanges(req UpdateTenantRequest) map[string]interface{} {
	changes := map[string]interface{}{}
	if req.Name != nil {
		changes["name"] = *req.Name
	}
	if req.Status != nil {
		changes["status"] = string(*req.Status)
	}
	if req.SubscriptionPlan != nil {
		changes["subscriptionPlan"] = string(*req.SubscriptionPlan)
	}
	if req.MaxUsers != nil {
		changes["maxUsers"] = *req.MaxUsers
	}
	if req.MaxProjects != nil {
		changes["maxProjects"] = *req.MaxProjects
	}
	return changes
}

// handleDeleteTenant removes a tenant and everything it owns (super admin only)
func handleDeleteTenant(deps *Deps) gin.HandlerFunc {
	return func(c *gin.Context) {
		id, err := paramUUID(c, "id")
		if err != nil {
			abortWithError(c, err)
			return
		}

		if err := deps.Store.DeleteTenant(c.Request.Context(), id); err != nil {
			abortWithError(c, storeError(err, "Tenant not found"))
			return
		}

		record(c, deps, audit.Entry{
			Action:     models.ActionTenantDelete,
			EntityType: "tenant",
			EntityID:   &id,
		})

		utils.OKResponse(c, "Tenant deleted successfully", nil)
	}
}

// handleGetTenantUsers lists the users of the tenant named in the path
func handleGetTenantUsers(deps *Deps) gin.HandlerFunc {
	return func(c *gin.Context) {
		id, err := paramUUID(c, "id")
		if err != nil {
			abortWithError(c, err)
			return
		}
		listUsers(c, deps, &id)
	}
}

// handleCreateTenantUser adds a user to the tenant named in the path
func handleCreateTenantUser(deps *Deps) gin.HandlerFunc {
	return func(c *gin.Context) {
		id, err := paramUUID(c, "id")
		if err != nil {
			abortWithError(c, err)
			return
		}
		createUser(c, deps, &id)
	}
}
