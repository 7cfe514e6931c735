package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/pavitra93/go-multi-tenant-saas/shared/models"
	"gorm.io/gorm"
)

const taskDetailSelect = `tasks.*, users.full_name AS assigned_to_name, users.email AS assigned_to_email`

// Priority rank, then due date with nulls last, then newest first
var taskOrder = []string{
	"CASE tasks.priority WHEN 'high' THEN 1 WHEN 'medium' THEN 2 WHEN 'low' THEN 3 ELSE 4 END ASC",
	"CASE WHEN tasks.due_date IS NULL THEN 1 ELSE 0 END ASC",
	"tasks.due_date ASC",
	"tasks.created_at DESC",
}

// TaskFilter narrows ListTasks. Predicates are ANDed.
type TaskFilter struct {
	TenantID   *uuid.UUID
	ProjectID  *uuid.UUID
	Status     string
	Priority   string
	AssignedTo *uuid.UUID
	Search     string
	Page
}

func (f TaskFilter) scope(db *gorm.DB) *gorm.DB {
	if f.TenantID != nil {
		db = db.Where("tasks.tenant_id = ?", *f.TenantID)
	}
	if f.ProjectID != nil {
		db = db.Where("tasks.project_id = ?", *f.ProjectID)
	}
	if f.Status != "" {
		db = db.Where("tasks.status = ?", f.Status)
	}
	if f.Priority != "" {
		db = db.Where("tasks.priority = ?", f.Priority)
	}
	if f.AssignedTo != nil {
		db = db.Where("tasks.assigned_to = ?", *f.AssignedTo)
	}
	if f.Search != "" {
		db = db.Where("LOWER(tasks.title) LIKE ?", likePattern(f.Search))
	}
	return db
}

// TaskUpdate lists the writable task fields. AssignedTo and DueDate may be cleared,
// so each carries a Set flag next to its value.
type TaskUpdate struct {
	Title         *string
	Description   *string
	Status        *models.TaskStatus
	Priority      *models.TaskPriority
	SetAssignedTo bool
	AssignedTo    *uuid.UUID
	SetDueDate    bool
	DueDate       *time.Time
}

func (u TaskUpdate) columns() map[string]interface{} {
	cols := map[string]interface{}{}
	if u.Title != nil {
		cols["title"] = *u.Title
	}
	if u.Description != nil {
		cols["description"] = *u.Description
	}
	if u.Status != nil {
		cols["status"] = *u.Status
	}
	if u.Priority != nil {
		cols["priority"] = *u.Priority
	}
	if u.SetAssignedTo {
		if u.AssignedTo != nil {
			cols["assigned_to"] = *u.AssignedTo
		} else {
			cols["assigned_to"] = nil
		}
	}
	if u.SetDueDate {
		if u.DueDate != nil {
			cols["due_date"] = u.DueDate.UTC()
		} else {
			cols["due_date"] = nil
		}
	}
	return cols
}

func (s *Store) CreateTask(ctx context.Context, t *models.Task) error {
	if t.DueDate != nil {
		utc := t.DueDate.UTC()
		t.DueDate = &utc
	}
	if err := s.db.WithContext(ctx).Create(t).Error; err != nil {
		return fmt.Errorf("failed to create task: %w", err)
	}
	return nil
}

func (s *Store) TaskByID(ctx context.Context, id uuid.UUID) (*models.Task, error) {
	var task models.Task
	if err := s.db.WithContext(ctx).Where("id = ?", id).First(&task).Error; err != nil {
		return nil, err
	}
	return &task, nil
}

// TaskDetailByID returns the task with its assignee's name and email
func (s *Store) TaskDetailByID(ctx context.Context, id uuid.UUID) (*models.TaskDetail, error) {
	var detail models.TaskDetail
	res := s.db.WithContext(ctx).Table("tasks").
		Select(taskDetailSelect).
		Joins("LEFT JOIN users ON users.id = tasks.assigned_to").
		Where("tasks.id = ?", id).
		Limit(1).
		Scan(&detail)
	if res.Error != nil {
		return nil, fmt.Errorf("failed to load task: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		return nil, ErrNotFound
	}
	return &detail, nil
}

// ListTasks returns a page of tasks in listing order. The total comes from a
// separate count over the same predicate.
func (s *Store) ListTasks(ctx context.Context, f TaskFilter) ([]models.TaskDetail, int64, error) {
	var total int64
	if err := s.db.WithContext(ctx).Table("tasks").Scopes(f.scope).Count(&total).Error; err != nil {
		return nil, 0, fmt.Errorf("failed to count tasks: %w", err)
	}

	q := s.db.WithContext(ctx).Table("tasks").
		Select(taskDetailSelect).
		Joins("LEFT JOIN users ON users.id = tasks.assigned_to").
		Scopes(f.scope, f.Page.scope)
	for _, o := range taskOrder {
		q = q.Order(o)
	}

	rows := []models.TaskDetail{}
	if err := q.Scan(&rows).Error; err != nil {
		return nil, 0, fmt.Errorf("failed to list tasks: %w", err)
	}
	return rows, total, nil
}

func (s *Store) UpdateTask(ctx context.Context, id uuid.UUID, u TaskUpdate) (*models.TaskDetail, error) {
	if cols := u.columns(); len(cols) > 0 {
		if err := s.db.WithContext(ctx).Model(&models.Task{}).Where("id = ?", id).Updates(cols).Error; err != nil {
			return nil, fmt.Errorf("failed to update task: %w", err)
		}
	}
	return s.TaskDetailByID(ctx, id)
}

func (s *Store) DeleteTask(ctx context.Context, id uuid.UUID) error {
	res := s.db.WithContext(ctx).Where("id = ?", id).Delete(&models.Task{})
	if res.Error != nil {
		return fmt.Errorf("failed to delete task: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}
