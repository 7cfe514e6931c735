package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

type UserRole string

const (
	RoleSuperAdmin  UserRole = "super_admin"
	RoleTenantAdmin UserRole = "tenant_admin"
	RoleUser        UserRole = "user"
)

// Valid reports whether r is a known role
func (r UserRole) Valid() bool {
	switch r {
	case RoleSuperAdmin, RoleTenantAdmin, RoleUser:
		return true
	}
	return false
}

// User represents an account. TenantID is nil only for super admins.
type User struct {
	ID           uuid.UUID  `json:"id" gorm:"type:uuid;primaryKey"`
	TenantID     *uuid.UUID `json:"tenantId" gorm:"type:uuid;index;uniqueIndex:idx_users_tenant_email,priority:1"`
	Email        string     `json:"email" gorm:"type:varchar(255);not null;uniqueIndex:idx_users_tenant_email,priority:2"`
	PasswordHash string     `json:"-" gorm:"type:varchar(255);not null"`
	FullName     string     `json:"fullName" gorm:"type:varchar(255);not null"`
	Role         UserRole   `json:"role" gorm:"type:varchar(20);not null;default:'user'"`
	IsActive     bool       `json:"isActive" gorm:"not null;default:true"`
	CreatedAt    time.Time  `json:"createdAt"`
	UpdatedAt    time.Time  `json:"updatedAt"`

	Tenant *Tenant `json:"-" gorm:"foreignKey:TenantID;constraint:OnDelete:CASCADE"`
}

func (User) TableName() string {
	return "users"
}

func (u *User) BeforeCreate(tx *gorm.DB) error {
	if u.ID == uuid.Nil {
		u.ID = uuid.New()
	}
	return nil
}

// UserProfile is a user joined with the plan details of its tenant
type UserProfile struct {
	ID               uuid.UUID         `json:"id"`
	Email            string            `json:"email"`
	FullName         string            `json:"fullName"`
	Role             UserRole          `json:"role"`
	IsActive         bool              `json:"isActive"`
	TenantID         *uuid.UUID        `json:"tenantId"`
	TenantName       *string           `json:"tenantName"`
	Subdomain        *string           `json:"subdomain"`
	SubscriptionPlan *SubscriptionPlan `json:"subscriptionPlan"`
	MaxUsers         *int              `json:"maxUsers"`
	MaxProjects      *int              `json:"maxProjects"`
	CreatedAt        time.Time         `json:"createdAt"`
}
