package repository

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/pavitra93/go-multi-tenant-saas/shared/models"
	"gorm.io/gorm"
)

const projectSummarySelect = `projects.*, users.full_name AS creator_name,
	(SELECT COUNT(*) FROM tasks WHERE tasks.project_id = projects.id) AS task_count,
	(SELECT COUNT(*) FROM tasks WHERE tasks.project_id = projects.id AND tasks.status = 'completed') AS completed_task_count`

// ProjectFilter narrows ListProjects. A nil TenantID lists every tenant.
type ProjectFilter struct {
	TenantID *uuid.UUID
	Status   string
	Search   string
	Page
}

func (f ProjectFilter) scope(db *gorm.DB) *gorm.DB {
	if f.TenantID != nil {
		db = db.Where("projects.tenant_id = ?", *f.TenantID)
	}
	if f.Status != "" {
		db = db.Where("projects.status = ?", f.Status)
	}
	if f.Search != "" {
		db = db.Where("LOWER(projects.name) LIKE ?", likePattern(f.Search))
	}
	return db
}

// ProjectUpdate lists the writable project fields; nil means unchanged
type ProjectUpdate struct {
	Name        *string
	Description *string
	Status      *models.ProjectStatus
}

func (u ProjectUpdate) columns() map[string]interface{} {
	cols := map[string]interface{}{}
	if u.Name != nil {
		cols["name"] = *u.Name
	}
	if u.Description != nil {
		cols["description"] = *u.Description
	}
	if u.Status != nil {
		cols["status"] = *u.Status
	}
	return cols
}

// CreateProjectWithinLimit inserts p unless its tenant already holds max_projects projects.
// The tenant row is locked for the count and insert.
func (s *Store) CreateProjectWithinLimit(ctx context.Context, p *models.Project) error {
	return s.WithTx(ctx, func(tx *Store) error {
		tenant, err := tx.lockTenant(ctx, p.TenantID)
		if err != nil {
			return err
		}
		var count int64
		if err := tx.db.Model(&models.Project{}).Where("tenant_id = ?", tenant.ID).Count(&count).Error; err != nil {
			return fmt.Errorf("failed to count projects: %w", err)
		}
		if count >= int64(tenant.MaxProjects) {
			return &LimitError{Resource: "project", Max: tenant.MaxProjects, Plan: tenant.SubscriptionPlan}
		}
		if err := tx.db.Create(p).Error; err != nil {
			return fmt.Errorf("failed to create project: %w", err)
		}
		return nil
	})
}

func (s *Store) ProjectByID(ctx context.Context, id uuid.UUID) (*models.Project, error) {
	var project models.Project
	if err := s.db.WithContext(ctx).Where("id = ?", id).First(&project).Error; err != nil {
		return nil, err
	}
	return &project, nil
}

// ProjectSummaryByID returns the project with its creator name and task counters
func (s *Store) ProjectSummaryByID(ctx context.Context, id uuid.UUID) (*models.ProjectSummary, error) {
	var summary models.ProjectSummary
	res := s.db.WithContext(ctx).Table("projects").
		Select(projectSummarySelect).
		Joins("LEFT JOIN users ON users.id = projects.created_by").
		Where("projects.id = ?", id).
		Limit(1).
		Scan(&summary)
	if res.Error != nil {
		return nil, fmt.Errorf("failed to load project: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		return nil, ErrNotFound
	}
	return &summary, nil
}

// ListProjects returns a page of projects with counters, newest first
func (s *Store) ListProjects(ctx context.Context, f ProjectFilter) ([]models.ProjectSummary, int64, error) {
	var total int64
	if err := s.db.WithContext(ctx).Table("projects").Scopes(f.scope).Count(&total).Error; err != nil {
		return nil, 0, fmt.Errorf("failed to count projects: %w", err)
	}

	rows := []models.ProjectSummary{}
	err := s.db.WithContext(ctx).Table("projects").
		Select(projectSummarySelect).
		Joins("LEFT JOIN users ON users.id = projects.created_by").
		Scopes(f.scope, f.Page.scope).
		Order("projects.created_at DESC").
		Scan(&rows).Error
	if err != nil {
		return nil, 0, fmt.Errorf("failed to list projects: %w", err)
	}
	return rows, total, nil
}

func (s *Store) UpdateProject(ctx context.Context, id uuid.UUID, u ProjectUpdate) (*models.ProjectSummary, error) {
	if cols := u.columns(); len(cols) > 0 {
		if err := s.db.WithContext(ctx).Model(&models.Project{}).Where("id = ?", id).Updates(cols).Error; err != nil {
			return nil, fmt.Errorf("failed to update project: %w", err)
		}
	}
	return s.ProjectSummaryByID(ctx, id)
}

// DeleteProject removes a project and its tasks
func (s *Store) DeleteProject(ctx context.Context, id uuid.UUID) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("project_id = ?", id).Delete(&models.Task{}).Error; err != nil {
			return fmt.Errorf("failed to delete tasks: %w", err)
		}
		res := tx.Where("id = ?", id).Delete(&models.Project{})
		if res.Error != nil {
			return fmt.Errorf("failed to delete project: %w", res.Error)
		}
		if res.RowsAffected == 0 {
			return ErrNotFound
		}
		return nil
	})
}
