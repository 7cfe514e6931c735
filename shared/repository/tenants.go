package repository

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/pavitra93/go-multi-tenant-saas/shared/models"
	"gorm.io/gorm"
)

// TenantFilter narrows ListTenants
type TenantFilter struct {
	Status           string
	SubscriptionPlan string
	Page
}

func (f TenantFilter) scope(db *gorm.DB) *gorm.DB {
	if f.Status != "" {
		db = db.Where("tenants.status = ?", f.Status)
	}
	if f.SubscriptionPlan != "" {
		db = db.Where("tenants.subscription_plan = ?", f.SubscriptionPlan)
	}
	return db
}

// TenantUpdate lists the writable tenant fields; nil means unchanged
type TenantUpdate struct {
	Name             *string
	Status           *models.TenantStatus
	SubscriptionPlan *models.SubscriptionPlan
	MaxUsers         *int
	MaxProjects      *int
}

func (u TenantUpdate) columns() map[string]interface{} {
	cols := map[string]interface{}{}
	if u.Name != nil {
		cols["name"] = *u.Name
	}
	if u.Status != nil {
		cols["status"] = *u.Status
	}
	if u.SubscriptionPlan != nil {
		cols["subscription_plan"] = *u.SubscriptionPlan
	}
	if u.MaxUsers != nil {
		cols["max_users"] = *u.MaxUsers
	}
	if u.MaxProjects != nil {
		cols["max_projects"] = *u.MaxProjects
	}
	return cols
}

// SubdomainExists reports whether a tenant already uses subdomain
func (s *Store) SubdomainExists(ctx context.Context, subdomain string) (bool, error) {
	var count int64
	if err := s.db.WithContext(ctx).Model(&models.Tenant{}).Where("subdomain = ?", subdomain).Count(&count).Error; err != nil {
		return false, fmt.Errorf("failed to check subdomain: %w", err)
	}
	return count > 0, nil
}

// CreateTenant inserts tenant, failing with ErrSubdomainTaken on a duplicate subdomain
func (s *Store) CreateTenant(ctx context.Context, tenant *models.Tenant) error {
	exists, err := s.SubdomainExists(ctx, tenant.Subdomain)
	if err != nil {
		return err
	}
	if exists {
		return ErrSubdomainTaken
	}
	if err := s.db.WithContext(ctx).Create(tenant).Error; err != nil {
		if isDuplicate(err) {
			return ErrSubdomainTaken
		}
		return fmt.Errorf("failed to create tenant: %w", err)
	}
	return nil
}

// RegisterTenant creates tenant and its first admin atomically
func (s *Store) RegisterTenant(ctx context.Context, tenant *models.Tenant, admin *models.User) error {
	return s.WithTx(ctx, func(tx *Store) error {
		if err := tx.CreateTenant(ctx, tenant); err != nil {
			return err
		}
		admin.TenantID = &tenant.ID
		return tx.CreateUser(ctx, admin)
	})
}

func (s *Store) TenantByID(ctx context.Context, id uuid.UUID) (*models.Tenant, error) {
	var tenant models.Tenant
	if err := s.db.WithContext(ctx).Where("id = ?", id).First(&tenant).Error; err != nil {
		return nil, err
	}
	return &tenant, nil
}

func (s *Store) TenantBySubdomain(ctx context.Context, subdomain string) (*models.Tenant, error) {
	var tenant models.Tenant
	if err := s.db.WithContext(ctx).Where("subdomain = ?", subdomain).First(&tenant).Error; err != nil {
		return nil, err
	}
	return &tenant, nil
}

// ListTenants returns a page of tenants with user and project counts
func (s *Store) ListTenants(ctx context.Context, f TenantFilter) ([]models.TenantSummary, int64, error) {
	var total int64
	if err := s.db.WithContext(ctx).Model(&models.Tenant{}).Scopes(f.scope).Count(&total).Error; err != nil {
		return nil, 0, fmt.Errorf("failed to count tenants: %w", err)
	}

	rows := []models.TenantSummary{}
	err := s.db.WithContext(ctx).Table("tenants").
		Select(`tenants.*,
			(SELECT COUNT(*) FROM users WHERE users.tenant_id = tenants.id) AS total_users,
			(SELECT COUNT(*) FROM projects WHERE projects.tenant_id = tenants.id) AS total_projects`).
		Scopes(f.scope, f.Page.scope).
		Order("tenants.created_at DESC").
		Scan(&rows).Error
	if err != nil {
		return nil, 0, fmt.Errorf("failed to list tenants: %w", err)
	}
	return rows, total, nil
}

// TenantStats counts the rows a tenant owns
func (s *Store) TenantStats(ctx context.Context, id uuid.UUID) (*models.TenantStats, error) {
	var stats models.TenantStats
	db := s.db.WithContext(ctx)
	if err := db.Model(&models.User{}).Where("tenant_id = ?", id).Count(&stats.TotalUsers).Error; err != nil {
		return nil, fmt.Errorf("failed to count users: %w", err)
	}
	if err := db.Model(&models.Project{}).Where("tenant_id = ?", id).Count(&stats.TotalProjects).Error; err != nil {
		return nil, fmt.Errorf("failed to count projects: %w", err)
	}
	if err := db.Model(&models.Task{}).Where("tenant_id = ?", id).Count(&stats.TotalTasks).Error; err != nil {
		return nil, fmt.Errorf("failed to count tasks: %w", err)
	}
	return &stats, nil
}

// UpdateTenant applies u and returns the stored tenant
func (s *Store) UpdateTenant(ctx context.Context, id uuid.UUID, u TenantUpdate) (*models.Tenant, error) {
	if cols := u.columns(); len(cols) > 0 {
		if err := s.db.WithContext(ctx).Model(&models.Tenant{}).Where("id = ?", id).Updates(cols).Error; err != nil {
			return nil, fmt.Errorf("failed to update tenant: %w", err)
		}
	}
	return s.TenantByID(ctx, id)
}

// DeleteTenant removes a tenant with its tasks, projects and users in one transaction.
// Audit logs are kept.
func (s *Store) DeleteTenant(ctx context.Context, id uuid.UUID) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("tenant_id = ?", id).Delete(&models.Task{}).Error; err != nil {
			return fmt.Errorf("failed to delete tasks: %w", err)
		}
		if err := tx.Where("tenant_id = ?", id).Delete(&models.Project{}).Error; err != nil {
			return fmt.Errorf("failed to delete projects: %w", err)
		}
		if err := tx.Where("tenant_id = ?", id).Delete(&models.User{}).Error; err != nil {
			return fmt.Errorf("failed to delete users: %w", err)
		}
		res := tx.Where("id = ?", id).Delete(&models.Tenant{})
		if res.Error != nil {
			return fmt.Errorf("failed to delete tenant: %w", res.Error)
		}
		if res.RowsAffected == 0 {
			return ErrNotFound
		}
		return nil
	})
}

// CountTenants returns how many tenants exist
func (s *Store) CountTenants(ctx context.Context) (int64, error) {
	var count int64
	err := s.db.WithContext(ctx).Model(&models.Tenant{}).Count(&count).Error
	return count, err
}
