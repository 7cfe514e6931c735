package main

import (
	"context"
	"fmt"
	"time"

	"github.com/pavitra93/go-multi-tenant-saas/shared/models"
	"github.com/pavitra93/go-multi-tenant-saas/shared/repository"
	"github.com/pavitra93/go-multi-tenant-saas/shared/utils"
	"github.com/sirupsen/logrus"
)

type seedUser struct {
	email    string
	password string
	fullName string
	role     models.UserRole
}

var demoUsers = []seedUser{
	{email: "user1@demo.com", password: "User@123", fullName: "Demo User One", role: models.RoleUser},
	{email: "user2@demo.com", password: "User@123", fullName: "Demo User Two", role: models.RoleUser},
}

// Seed loads a super admin and a demo tenant. It does nothing once any tenant exists.
func Seed(ctx context.Context, store *repository.Store) error {
	count, err := store.CountTenants(ctx)
	if err != nil {
		return fmt.Errorf("failed to count tenants: %w", err)
	}
	if count > 0 {
		logrus.Info("database already seeded, skipping")
		return nil
	}

	return store.WithTx(ctx, func(tx *repository.Store) error {
		super, err := newSeedUser(seedUser{
			email: "superadmin@system.com", password: "Admin@123", fullName: "Super Admin", role: models.RoleSuperAdmin,
		})
		if err != nil {
			return err
		}
		if err := tx.CreateUser(ctx, super); err != nil {
			return err
		}

		tenant := models.NewTenant("Demo Company", "demo", models.PlanPro)
		admin, err := newSeedUser(seedUser{
			email: "admin@demo.com", password: "Demo@123", fullName: "Demo Admin", role: models.RoleTenantAdmin,
		})
		if err != nil {
			return err
		}
		if err := tx.RegisterTenant(ctx, tenant, admin); err != nil {
			return err
		}

		members := make([]*models.User, 0, len(demoUsers))
		for _, su := range demoUsers {
			u, err := newSeedUser(su)
			if err != nil {
				return err
			}
			u.TenantID = &tenant.ID
			if err := tx.CreateUserWithinLimit(ctx, u); err != nil {
				return err
			}
			members = append(members, u)
		}

		project := &models.Project{
			TenantID:    tenant.ID,
			Name:        "Website Redesign",
			Description: "Refresh the marketing site",
			Status:      models.ProjectStatusActive,
			CreatedBy:   &admin.ID,
		}
		if err := tx.CreateProjectWithinLimit(ctx, project); err != nil {
			return err
		}

		due := time.Now().UTC().AddDate(0, 0, 14).Truncate(24 * time.Hour)
		tasks := []*models.Task{
			{Title: "Design homepage mockup", Status: models.TaskStatusInProgress, Priority: models.PriorityHigh, AssignedTo: &members[0].ID, DueDate: &due},
			{Title: "Write copy for landing page", Status: models.TaskStatusTodo, Priority: models.PriorityMedium, AssignedTo: &members[1].ID},
			{Title: "Set up analytics", Status: models.TaskStatusTodo, Priority: models.PriorityLow},
		}
		for _, t := range tasks {
			t.ProjectID = project.ID
			t.TenantID = tenant.ID
			t.CreatedBy = &admin.ID
			if err := tx.CreateTask(ctx, t); err != nil {
				return err
			}
		}

		logrus.WithFields(logrus.Fields{
			"tenant": tenant.Subdomain,
			"users":  len(members) + 2,
			"tasks":  len(tasks),
		}).Info("seed data created")
		return nil
	})
}

func newSeedUser(su seedUser) (*models.User, error) {
	hash, err := utils.HashPassword(su.password)
	if err != nil {
		return nil, err
	}
	return &models.User{
		Email:        su.email,
		PasswordHash: hash,
		FullName:     su.fullName,
		Role:         su.role,
		IsActive:     true,
	}, nil
}
