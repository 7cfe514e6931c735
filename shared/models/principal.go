package models

import (
	"github.com/google/uuid"
)

// Principal is the authenticated caller as carried in the access token
type Principal struct {
	UserID   uuid.UUID  `json:"userId"`
	TenantID *uuid.UUID `json:"tenantId"`
	Role     UserRole   `json:"role"`
}

func (p *Principal) IsSuperAdmin() bool {
	return p.Role == RoleSuperAdmin
}

func (p *Principal) IsTenantAdmin() bool {
	return p.Role == RoleTenantAdmin
}

// HasRole reports whether the caller holds one of roles
func (p *Principal) HasRole(roles ...UserRole) bool {
	for _, r := range roles {
		if p.Role == r {
			return true
		}
	}
	return false
}

// CanAccessTenant reports whether the caller may read data of tenantID.
// Super admins are not bound to a tenant.
func (p *Principal) CanAccessTenant(tenantID uuid.UUID) bool {
	if p.IsSuperAdmin() {
		return true
	}
	return p.TenantID != nil && *p.TenantID == tenantID
}

// CanManageTenant reports whether the caller may administer tenantID
func (p *Principal) CanManageTenant(tenantID uuid.UUID) bool {
	if p.IsSuperAdmin() {
		return true
	}
	return p.IsTenantAdmin() && p.CanAccessTenant(tenantID)
}

// CanModifyProject applies tenant scope and, for plain users, creator ownership
func (p *Principal) CanModifyProject(project *Project) bool {
	if !p.CanAccessTenant(project.TenantID) {
		return false
	}
	if p.Role != RoleUser {
		return true
	}
	return project.CreatedBy != nil && *project.CreatedBy == p.UserID
}

// CanModifyTask applies tenant scope and, for plain users, creator or assignee ownership
func (p *Principal) CanModifyTask(task *Task) bool {
	if !p.CanAccessTenant(task.TenantID) {
		return false
	}
	if p.Role != RoleUser {
		return true
	}
	if task.CreatedBy != nil && *task.CreatedBy == p.UserID {
		return true
	}
	return task.AssignedTo != nil && *task.AssignedTo == p.UserID
}

// CanReadUser lets plain users see only themselves
func (p *Principal) CanReadUser(u *User) bool {
	if p.IsSuperAdmin() {
		return true
	}
	if p.Role == RoleUser {
		return u.ID == p.UserID
	}
	return u.TenantID != nil && p.CanAccessTenant(*u.TenantID)
}
