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

// CreateProjectRequest represents the create project request
type CreateProjectRequest struct {
	Name        string               `json:"name"`
	Description string               `json:"description"`
	Status      models.ProjectStatus `json:"status"`
	TenantID    *uuid.UUID           `json:"tenantId"`
}

// UpdateProjectRequest represents the update project request
type UpdateProjectRequest struct {
	Name        *string               `json:"name"`
	Description *string               `json:"description"`
	Status      *models.ProjectStatus `json:"status"`
}

func handleCreateProject(deps *Deps) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req CreateProjectRequest
		if err := bindJSON(c, &req); err != nil {
			abortWithError(c, err)
			return
		}

		name := strings.TrimSpace(req.Name)
		if name == "" {
			abortWithError(c, apperror.Validation("Project name is required"))
			return
		}
		status := req.Status
		if status == "" {
			status = models.ProjectStatusActive
		}
		if !status.Valid() {
			abortWithError(c, apperror.Validation("Invalid status"))
			return
		}

		p := currentPrincipal(c)
		tenantID, err := targetTenant(p, req.TenantID)
		if err != nil {
			abortWithError(c, err)
			return
		}

		project := &models.Project{
			TenantID:    tenantID,
			Name:        name,
			Description: strings.TrimSpace(req.Description),
			Status:      status,
			CreatedBy:   &p.UserID,
		}
		ctx := c.Request.Context()
		if err := deps.Store.CreateProjectWithinLimit(ctx, project); err != nil {
			abortWithError(c, storeError(err, "Tenant not found"))
			return
		}
		summary, err := deps.Store.ProjectSummaryByID(ctx, project.ID)
		if err != nil {
			abortWithError(c, storeError(err, "Project not found"))
			return
		}

		record(c, deps, audit.Entry{
			TenantID:   &tenantID,
			Action:     models.ActionProjectCreate,
			EntityType: "project",
			EntityID:   &project.ID,
			Metadata:   map[string]interface{}{"name": project.Name},
		})

		utils.CreatedResponse(c, "Project created successfully", summary)
	}
}

func handleGetProjects(deps *Deps) gin.HandlerFunc {
	return func(c *gin.Context) {
		requested, err := queryUUID(c, "tenantId")
		if err != nil {
			abortWithError(c, err)
			return
		}
		scope, err := tenantScope(currentPrincipal(c), requested)
		if err != nil {
			abortWithError(c, err)
			return
		}

		filter := repository.ProjectFilter{
			TenantID: scope,
			Status:   c.Query("status"),
			Search:   c.Query("search"),
			Page:     pageFromQuery(c, 20),
		}
		projects, total, err := deps.Store.ListProjects(c.Request.Context(), filter)
		if err != nil {
			abortWithError(c, storeError(err, "Project not found"))
			return
		}
		utils.PaginatedResponse(c, projects, utils.NewPagination(filter.Page.Page, filter.Page.Limit, total))
	}
}

func handleGetProject(deps *Deps) gin.HandlerFunc {
	return func(c *gin.Context) {
		id, err := paramUUID(c, "id")
		if err != nil {
			abortWithError(c, err)
			return
		}
		summary, err := deps.Store.ProjectSummaryByID(c.Request.Context(), id)
		if err != nil {
			abortWithError(c, storeError(err, "Project not found"))
			return
		}
		if !currentPrincipal(c).CanAccessTenant(summary.TenantID) {
			abortWithError(c, apperror.Forbidden("Access denied"))
			return
		}
		utils.OKResponse(c, "", summary)
	}
}

// loadModifiableProject fetches the project in the path and checks the caller may change it
func loadModifiableProject(c *gin.Context, deps *Deps) (*models.Project, error) {
	id, err := paramUUID(c, "id")
	if err != nil {
		return nil, err
	}
	project, err := deps.Store.ProjectByID(c.Request.Context(), id)
	if err != nil {
		return nil, storeError(err, "Project not found")
	}
	p := currentPrincipal(c)
	if !p.CanAccessTenant(project.TenantID) {
		return nil, apperror.Forbidden("Access denied")
	}
	if !p.CanModifyProject(project) {
		return nil, apperror.Forbidden("You can only modify projects you created")
	}
	return project, nil
}

func handleUpdateProject(deps *Deps) gin.HandlerFunc {
	return func(c *gin.Context) {
		project, err := loadModifiableProject(c, deps)
		if err != nil {
			abortWithError(c, err)
			return
		}

		var req UpdateProjectRequest
		if err := bindJSON(c, &req); err != nil {
			abortWithError(c, err)
			return
		}
		if req.Name != nil {
			name := strings.TrimSpace(*req.Name)
			if name == "" {
				abortWithError(c, apperror.Validation("Project name cannot be empty"))
				return
			}
			req.Name = &name
		}
		if req.Status != nil && !req.Status.Valid() {
			abortWithError(c, apperror.Validation("Invalid status"))
			return
		}

		summary, err := deps.Store.UpdateProject(c.Request.Context(), project.ID, repository.ProjectUpdate{
			Name:        req.Name,
			Description: req.Description,
			Status:      req.Status,
		})
		if err != nil {
			abortWithError(c, storeError(err, "Project not found"))
			return
		}

		changes := map[string]interface{}{}
		if req.Name != nil {
			changes["name"] = *req.Name
		}
		if req.Status != nil {
			changes["status"] = string(*req.Status)
		}
		record(c, deps, audit.Entry{
			TenantID:   &project.TenantID,
			Action:     models.ActionProjectUpdate,
			EntityType: "project",
			EntityID:   &project.ID,
			Metadata:   changes,
		})

		utils.OKResponse(c, "Project updated successfully", summary)
	}
}

func handleDeleteProject(deps *Deps) gin.HandlerFunc {
	return func(c *gin.Context) {
		project, err := loadModifiableProject(c, deps)
		if err != nil {
			abortWithError(c, err)
			return
		}
		if err := deps.Store.DeleteProject(c.Request.Context(), project.ID); err != nil {
			abortWithError(c, storeError(err, "Project not found"))
			return
		}

		record(c, deps, audit.Entry{
			TenantID:   &project.TenantID,
			Action:     models.ActionProjectDelete,
			EntityType: "project",
			EntityID:   &project.ID,
			Metadata:   map[string]interface{}{"name": project.Name},
		})

		utils.OKResponse(c, "Project deleted successfully", nil)
	}
}

// handleGetProjectTasks lists the tasks of the project in the path
func handleGetProjectTasks(deps *Deps) gin.HandlerFunc {
	return func(c *gin.Context) {
		id, err := paramUUID(c, "id")
		if err != nil {
			abortWithError(c, err)
			return
		}
		listTasks(c, deps, &id)
	}
}
