package main

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/pavitra93/go-multi-tenant-saas/shared/apperror"
	"github.com/pavitra93/go-multi-tenant-saas/shared/audit"
	"github.com/pavitra93/go-multi-tenant-saas/shared/models"
	"github.com/pavitra93/go-multi-tenant-saas/shared/repository"
	"github.com/pavitra93/go-multi-tenant-saas/shared/utils"
)

const invalidTaskStatus = "Invalid status. Must be one of: todo, in_progress, completed"

// CreateTaskRequest represents the create task request
type CreateTaskRequest struct {
	ProjectID   *uuid.UUID          `json:"projectId"`
	Title       string              `json:"title"`
	Description string              `json:"description"`
	Status      models.TaskStatus   `json:"status"`
	Priority    models.TaskPriority `json:"priority"`
	AssignedTo  *uuid.UUID          `json:"assignedTo"`
	DueDate     *string             `json:"dueDate"`
}

// UpdateTaskRequest represents the update task request. assignedTo and dueDate
// distinguish an explicit null (clear) from an absent field (keep).
type UpdateTaskRequest struct {
	Title       *string              `json:"title"`
	Description *string              `json:"description"`
	Status      *models.TaskStatus   `json:"status"`
	Priority    *models.TaskPriority `json:"priority"`
	AssignedTo  Nullable[uuid.UUID]  `json:"assignedTo"`
	DueDate     Nullable[string]     `json:"dueDate"`
}

// UpdateTaskStatusRequest represents the status-only update request
type UpdateTaskStatusRequest struct {
	Status models.TaskStatus `json:"status"`
}

// checkAssignee verifies the assignee is a user of tenantID
func checkAssignee(ctx context.Context, deps *Deps, tenantID uuid.UUID, assignee *uuid.UUID) error {
	if assignee == nil {
		return nil
	}
	user, err := deps.Store.UserByID(ctx, *assignee)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return apperror.Validation("Invalid user assignment")
		}
		return apperror.Internal("load assignee", err)
	}
	if user.TenantID == nil || *user.TenantID != tenantID {
		return apperror.Validation("Invalid user assignment")
	}
	return nil
}

func handleCreateTask(deps *Deps) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req CreateTaskRequest
		if err := bindJSON(c, &req); err != nil {
			abortWithError(c, err)
			return
		}

		title := strings.TrimSpace(req.Title)
		if req.ProjectID == nil || title == "" {
			abortWithError(c, apperror.Validation("Project ID and title are required"))
			return
		}
		status := req.Status
		if status == "" {
			status = models.TaskStatusTodo
		}
		if !status.Valid() {
			abortWithError(c, apperror.Validation(invalidTaskStatus))
			return
		}
		priority := req.Priority
		if priority == "" {
			priority = models.PriorityMedium
		}
		if !priority.Valid() {
			abortWithError(c, apperror.Validation("Invalid priority. Must be one of: low, medium, high"))
			return
		}
		var dueDate *time.Time
		if req.DueDate != nil {
			d, err := parseDueDate(*req.DueDate)
			if err != nil {
				abortWithError(c, err)
				return
			}
			dueDate = d
		}

		ctx := c.Request.Context()
		project, err := deps.Store.ProjectByID(ctx, *req.ProjectID)
		if err != nil {
			abortWithError(c, storeError(err, "Project not found"))
			return
		}
		p := currentPrincipal(c)
		if !p.CanAccessTenant(project.TenantID) {
			abortWithError(c, apperror.Forbidden("Access denied"))
			return
		}
		if err := checkAssignee(ctx, deps, project.TenantID, req.AssignedTo); err != nil {
			abortWithError(c, err)
			return
		}

		task := &models.Task{
			ProjectID:   project.ID,
			TenantID:    project.TenantID,
			Title:       title,
			Description: strings.TrimSpace(req.Description),
			Status:      status,
			Priority:    priority,
			AssignedTo:  req.AssignedTo,
			CreatedBy:   &p.UserID,
			DueDate:     dueDate,
		}
		if err := deps.Store.CreateTask(ctx, task); err != nil {
			abortWithError(c, storeError(err, "Task not found"))
			return
		}
		detail, err := deps.Store.TaskDetailByID(ctx, task.ID)
		if err != nil {
			abortWithError(c, storeError(err, "Task not found"))
			return
		}

		record(c, deps, audit.Entry{
			TenantID:   &task.TenantID,
			Action:     models.ActionTaskCreate,
			EntityType: "task",
			EntityID:   &task.ID,
			Metadata:   map[string]interface{}{"title": task.Title, "projectId": task.ProjectID.String()},
		})

		utils.CreatedResponse(c, "Task created successfully", detail)
	}
}

// handleGetTasks lists tasks, optionally narrowed to ?projectId=
func handleGetTasks(deps *Deps) gin.HandlerFunc {
	return func(c *gin.Context) {
		projectID, err := queryUUID(c, "projectId")
		if err != nil {
			abortWithError(c, err)
			return
		}
		listTasks(c, deps, projectID)
	}
}

// handleGetTasksByProject serves /tasks/project/:projectId
func handleGetTasksByProject(deps *Deps) gin.HandlerFunc {
	return func(c *gin.Context) {
		id, err := paramUUID(c, "projectId")
		if err != nil {
			abortWithError(c, err)
			return
		}
		listTasks(c, deps, &id)
	}
}

// listTasks renders a page of tasks in listing order. With a project the project's
// tenant must be in reach; without one the caller's tenant scope applies.
func listTasks(c *gin.Context, deps *Deps, projectID *uuid.UUID) {
	ctx := c.Request.Context()
	p := currentPrincipal(c)

	filter := repository.TaskFilter{
		ProjectID: projectID,
		Status:    c.Query("status"),
		Priority:  c.Query("priority"),
		Search:    c.Query("search"),
		Page:      pageFromQuery(c, 50),
	}

	if projectID != nil {
		project, err := deps.Store.ProjectByID(ctx, *projectID)
		if err != nil {
			abortWithError(c, storeError(err, "Project not found"))
			return
		}
		if !p.CanAccessTenant(project.TenantID) {
			abortWithError(c, apperror.Forbidden("Access denied"))
			return
		}
		filter.TenantID = &project.TenantID
	} else {
		requested, err := queryUUID(c, "tenantId")
		if err != nil {
			abortWithError(c, err)
			return
		}
		scope, err := tenantScope(p, requested)
		if err != nil {
			abortWithError(c, err)
			return
		}
		filter.TenantID = scope
	}

	assignedTo, err := queryUUID(c, "assignedTo")
	if err != nil {
		abortWithError(c, err)
		return
	}
	filter.AssignedTo = assignedTo

	tasks, total, err := deps.Store.ListTasks(ctx, filter)
	if err != nil {
		abortWithError(c, storeError(err, "Task not found"))
		return
	}
	utils.PaginatedResponse(c, tasks, utils.NewPagination(filter.Page.Page, filter.Page.Limit, total))
}

func handleGetTask(deps *Deps) gin.HandlerFunc {
	return func(c *gin.Context) {
		id, err := paramUUID(c, "id")
		if err != nil {
			abortWithError(c, err)
			return
		}
		detail, err := deps.Store.TaskDetailByID(c.Request.Context(), id)
		if err != nil {
			abortWithError(c, storeError(err, "Task not found"))
			return
		}
		if !currentPrincipal(c).CanAccessTenant(detail.TenantID) {
			abortWithError(c, apperror.Forbidden("Access denied"))
			return
		}
		utils.OKResponse(c, "", detail)
	}
}

// loadModifiableTask fetches the task in the path and checks the caller may change it
func loadModifiableTask(c *gin.Context, deps *Deps) (*models.Task, error) {
	id, err := paramUUID(c, "id")
	if err != nil {
		return nil, err
	}
	task, err := deps.Store.TaskByID(c.Request.Context(), id)
	if err != nil {
		return nil, storeError(err, "Task not found")
	}
	p := currentPrincipal(c)
	if !p.CanAccessTenant(task.TenantID) {
		return nil, apperror.Forbidden("Access denied")
	}
	if !p.CanModifyTask(task) {
		return nil, apperror.Forbidden("You can only modify tasks you created or are assigned to")
	}
	return task, nil
}

func handleUpdateTask(deps *Deps) gin.HandlerFunc {
	return func(c *gin.Context) {
		task, err := loadModifiableTask(c, deps)
		if err != nil {
			abortWithError(c, err)
			return
		}

		var req UpdateTaskRequest
		if err := bindJSON(c, &req); err != nil {
			abortWithError(c, err)
			return
		}

		update := repository.TaskUpdate{
			Description: req.Description,
			Status:      req.Status,
			Priority:    req.Priority,
		}
		changes := map[string]interface{}{}
		if req.Title != nil {
			title := strings.TrimSpace(*req.Title)
			if title == "" {
				abortWithError(c, apperror.Validation("Title cannot be empty"))
				return
			}
			update.Title = &title
			changes["title"] = title
		}
		if req.Status != nil {
			if !req.Status.Valid() {
				abortWithError(c, apperror.Validation(invalidTaskStatus))
				return
			}
			changes["status"] = string(*req.Status)
		}
		if req.Priority != nil {
			if !req.Priority.Valid() {
				abortWithError(c, apperror.Validation("Invalid priority. Must be one of: low, medium, high"))
				return
			}
			changes["priority"] = string(*req.Priority)
		}

		ctx := c.Request.Context()
		if req.AssignedTo.Set {
			if err := checkAssignee(ctx, deps, task.TenantID, req.AssignedTo.Value); err != nil {
				abortWithError(c, err)
				return
			}
			update.SetAssignedTo = true
			update.AssignedTo = req.AssignedTo.Value
			changes["assignedTo"] = req.AssignedTo.Value
		}
		if req.DueDate.Set {
			var due *time.Time
			if req.DueDate.Value != nil {
				due, err = parseDueDate(*req.DueDate.Value)
				if err != nil {
					abortWithError(c, err)
					return
				}
			}
			update.SetDueDate = true
			update.DueDate = due
			changes["dueDate"] = due
		}

		detail, err := deps.Store.UpdateTask(ctx, task.ID, update)
		if err != nil {
			abortWithError(c, storeError(err, "Task not found"))
			return
		}

		record(c, deps, audit.Entry{
			TenantID:   &task.TenantID,
			Action:     models.ActionTaskUpdate,
			EntityType: "task",
			EntityID:   &task.ID,
			Metadata:   changes,
		})

		utils.OKResponse(c, "Task updated successfully", detail)
	}
}

func handleUpdateTaskStatus(deps *Deps) gin.HandlerFunc {
	return func(c *gin.Context) {
		task, err := loadModifiableTask(c, deps)
		if err != nil {
			abortWithError(c, err)
			return
		}

		var req UpdateTaskStatusRequest
		if err := bindJSON(c, &req); err != nil {
			abortWithError(c, err)
			return
		}
		if req.Status == "" {
			abortWithError(c, apperror.Validation("Status is required"))
			return
		}
		if !req.Status.Valid() {
			abortWithError(c, apperror.Validation(invalidTaskStatus))
			return
		}

		detail, err := deps.Store.UpdateTask(c.Request.Context(), task.ID, repository.TaskUpdate{Status: &req.Status})
		if err != nil {
			abortWithError(c, storeError(err, "Task not found"))
			return
		}

		record(c, deps, audit.Entry{
			TenantID:   &task.TenantID,
			Action:     models.ActionTaskStatusUpdate,
			EntityType: "task",
			EntityID:   &task.ID,
			Metadata: map[string]interface{}{
				"oldStatus": string(task.Status),
				"newStatus": string(req.Status),
			},
		})

		utils.OKResponse(c, "Task status updated successfully", detail)
	}
}

func handleDeleteTask(deps *Deps) gin.HandlerFunc {
	return func(c *gin.Context) {
		task, err := loadModifiableTask(c, deps)
		if err != nil {
			abortWithError(c, err)
			return
		}
		if err := deps.Store.DeleteTask(c.Request.Context(), task.ID); err != nil {
			abortWithError(c, storeError(err, "Task not found"))
			return
		}

		record(c, deps, audit.Entry{
			TenantID:   &task.TenantID,
			Action:     models.ActionTaskDelete,
			EntityType: "task",
			EntityID:   &task.ID,
			Metadata:   map[string]interface{}{"title": task.Title},
		})

		utils.OKResponse(c, "Task deleted successfully", nil)
	}
}
