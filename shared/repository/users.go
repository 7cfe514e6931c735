package repository

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/pavitra93/go-multi-tenant-saas/shared/models"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// UserFilter narrows ListUsers. A nil TenantID lists every tenant.
type UserFilter struct {
	TenantID *uuid.UUID
	Search   string
	Role     string
	IsActive *bool
	Page
}

func (f UserFilter) scope(db *gorm.DB) *gorm.DB {
	if f.TenantID != nil {
		db = db.Where("tenant_id = ?", *f.TenantID)
	}
	if f.Search != "" {
		pattern := likePattern(f.Search)
		db = db.Where("(LOWER(full_name) LIKE ? OR LOWER(email) LIKE ?)", pattern, pattern)
	}
	if f.Role != "" {
		db = db.Where("role = ?", f.Role)
	}
	if f.IsActive != nil {
		db = db.Where("is_active = ?", *f.IsActive)
	}
	return db
}

// UserUpdate lists the writable user fields; nil means unchanged
type UserUpdate struct {
	FullName *string
	Role     *models.UserRole
	IsActive *bool
}

func (u UserUpdate) columns() map[string]interface{} {
	cols := map[string]interface{}{}
	if u.FullName != nil {
		cols["full_name"] = *u.FullName
	}
	if u.Role != nil {
		cols["role"] = *u.Role
	}
	if u.IsActive != nil {
		cols["is_active"] = *u.IsActive
	}
	return cols
}

// emailTaken checks uniqueness of email inside tenantID (or among super admins when nil)
func (s *Store) emailTaken(ctx context.Context, tenantID *uuid.UUID, email string) (bool, error) {
	q := s.db.WithContext(ctx).Model(&models.User{}).Where("email = ?", email)
	if tenantID == nil {
		q = q.Where("tenant_id IS NULL")
	} else {
		q = q.Where("tenant_id = ?", *tenantID)
	}
	var count int64
	if err := q.Count(&count).Error; err != nil {
		return false, fmt.Errorf("failed to check email: %w", err)
	}
	return count > 0, nil
}

// CreateUser inserts u without checking the tenant's user limit
func (s *Store) CreateUser(ctx context.Context, u *models.User) error {
	taken, err := s.emailTaken(ctx, u.TenantID, u.Email)
	if err != nil {
		return err
	}
	if taken {
		return ErrEmailTaken
	}
	if err := s.db.WithContext(ctx).Create(u).Error; err != nil {
		if isDuplicate(err) {
			return ErrEmailTaken
		}
		return fmt.Errorf("failed to create user: %w", err)
	}
	return nil
}

// CreateUserWithinLimit inserts u unless its tenant already holds max_users users.
// The tenant row is locked for the count and insert, so concurrent creates serialize.
func (s *Store) CreateUserWithinLimit(ctx context.Context, u *models.User) error {
	if u.TenantID == nil {
		return fmt.Errorf("tenant id is required")
	}
	return s.WithTx(ctx, func(tx *Store) error {
		tenant, err := tx.lockTenant(ctx, *u.TenantID)
		if err != nil {
			return err
		}
		var count int64
		if err := tx.db.Model(&models.User{}).Where("tenant_id = ?", tenant.ID).Count(&count).Error; err != nil {
			return fmt.Errorf("failed to count users: %w", err)
		}
		if count >= int64(tenant.MaxUsers) {
			return &LimitError{Resource: "user", Max: tenant.MaxUsers, Plan: tenant.SubscriptionPlan}
		}
		return tx.CreateUser(ctx, u)
	})
}

func (s *Store) lockTenant(ctx context.Context, id uuid.UUID) (*models.Tenant, error) {
	var tenant models.Tenant
	err := s.db.WithContext(ctx).
		Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("id = ?", id).
		First(&tenant).Error
	if err != nil {
		return nil, err
	}
	return &tenant, nil
}

func (s *Store) UserByID(ctx context.Context, id uuid.UUID) (*models.User, error) {
	var user models.User
	if err := s.db.WithContext(ctx).Where("id = ?", id).First(&user).Error; err != nil {
		return nil, err
	}
	return &user, nil
}

// UserByEmail finds a user of tenantID by email
func (s *Store) UserByEmail(ctx context.Context, tenantID uuid.UUID, email string) (*models.User, error) {
	var user models.User
	if err := s.db.WithContext(ctx).Where("tenant_id = ? AND email = ?", tenantID, email).First(&user).Error; err != nil {
		return nil, err
	}
	return &user, nil
}

// SuperAdminByEmail finds a tenantless super admin
func (s *Store) SuperAdminByEmail(ctx context.Context, email string) (*models.User, error) {
	var user models.User
	err := s.db.WithContext(ctx).
		Where("email = ? AND role = ? AND tenant_id IS NULL", email, models.RoleSuperAdmin).
		First(&user).Error
	if err != nil {
		return nil, err
	}
	return &user, nil
}

// Profile returns the user joined with its tenant's plan details
func (s *Store) Profile(ctx context.Context, id uuid.UUID) (*models.UserProfile, error) {
	var profile models.UserProfile
	res := s.db.WithContext(ctx).Table("users").
		Select(`users.id, users.email, users.full_name, users.role, users.is_active, users.tenant_id, users.created_at,
			tenants.name AS tenant_name, tenants.subdomain, tenants.subscription_plan,
			tenants.max_users, tenants.max_projects`).
		Joins("LEFT JOIN tenants ON tenants.id = users.tenant_id").
		Where("users.id = ?", id).
		Limit(1).
		Scan(&profile)
	if res.Error != nil {
		return nil, fmt.Errorf("failed to load profile: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		return nil, ErrNotFound
	}
	return &profile, nil
}

// ListUsers returns a page of users, newest first
func (s *Store) ListUsers(ctx context.Context, f UserFilter) ([]models.User, int64, error) {
	var total int64
	if err := s.db.WithContext(ctx).Model(&models.User{}).Scopes(f.scope).Count(&total).Error; err != nil {
		return nil, 0, fmt.Errorf("failed to count users: %w", err)
	}
	users := []models.User{}
	err := s.db.WithContext(ctx).Scopes(f.scope, f.Page.scope).Order("created_at DESC").Find(&users).Error
	if err != nil {
		return nil, 0, fmt.Errorf("failed to list users: %w", err)
	}
	return users, total, nil
}

func (s *Store) UpdateUser(ctx context.Context, id uuid.UUID, u UserUpdate) (*models.User, error) {
	if cols := u.columns(); len(cols) > 0 {
		if err := s.db.WithContext(ctx).Model(&models.User{}).Where("id = ?", id).Updates(cols).Error; err != nil {
			return nil, fmt.Errorf("failed to update user: %w", err)
		}
	}
	return s.UserByID(ctx, id)
}

// DeleteUser removes a user and clears its references on projects and tasks
func (s *Store) DeleteUser(ctx context.Context, id uuid.UUID) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Model(&models.Task{}).Where("assigned_to = ?", id).Update("assigned_to", nil).Error; err != nil {
			return fmt.Errorf("failed to unassign tasks: %w", err)
		}
		if err := tx.Model(&models.Task{}).Where("created_by = ?", id).Update("created_by", nil).Error; err != nil {
			return fmt.Errorf("failed to clear task creator: %w", err)
		}
		if err := tx.Model(&models.Project{}).Where("created_by = ?", id).Update("created_by", nil).Error; err != nil {
			return fmt.Errorf("failed to clear project creator: %w", err)
		}
		res := tx.Where("id = ?", id).Delete(&models.User{})
		if res.Error != nil {
			return fmt.Errorf("failed to delete user: %w", res.Error)
		}
		if res.RowsAffected == 0 {
			return ErrNotFound
		}
		return nil
	})
}
