package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// TenantStatus represents whether a tenant may sign in
type TenantStatus string

const (
	TenantStatusActive    TenantStatus = "active"
	TenantStatusSuspended TenantStatus = "suspended"
)

// SubscriptionPlan represents the billing plan of a tenant
type SubscriptionPlan string

const (
	PlanFree       SubscriptionPlan = "free"
	PlanPro        SubscriptionPlan = "pro"
	PlanEnterprise SubscriptionPlan = "enterprise"
)

// PlanLimits holds the resource ceilings a plan grants at tenant creation
type PlanLimits struct {
	MaxUsers    int
	MaxProjects int
}

var planLimits = map[SubscriptionPlan]PlanLimits{
	PlanFree:       {MaxUsers: 5, MaxProjects: 3},
	PlanPro:        {MaxUsers: 25, MaxProjects: 15},
	PlanEnterprise: {MaxUsers: 100, MaxProjects: 50},
}

// Limits returns the default limits for the plan. Unknown plans get the free limits.
func (p SubscriptionPlan) Limits() PlanLimits {
	if l, ok := planLimits[p]; ok {
		return l
	}
	return planLimits[PlanFree]
}

// Valid reports whether p is a known plan
func (p SubscriptionPlan) Valid() bool {
	_, ok := planLimits[p]
	return ok
}

// Valid reports whether s is a known tenant status
func (s TenantStatus) Valid() bool {
	return s == TenantStatusActive || s == TenantStatusSuspended
}

// Tenant represents an isolated customer organization
type Tenant struct {
	ID               uuid.UUID        `json:"id" gorm:"type:uuid;primaryKey"`
	Name             string           `json:"name" gorm:"type:varchar(255);not null"`
	Subdomain        string           `json:"subdomain" gorm:"type:varchar(63);not null;uniqueIndex"`
	Status           TenantStatus     `json:"status" gorm:"type:varchar(20);not null;default:'active'"`
	SubscriptionPlan SubscriptionPlan `json:"subscriptionPlan" gorm:"type:varchar(20);not null;default:'free'"`
	MaxUsers         int              `json:"maxUsers" gorm:"not null"`
	MaxProjects      int              `json:"maxProjects" gorm:"not null"`
	CreatedAt        time.Time        `json:"createdAt"`
	UpdatedAt        time.Time        `json:"updatedAt"`
}

// NewTenant builds an active tenant with the limits of the given plan
func NewTenant(name, subdomain string, plan SubscriptionPlan) *Tenant {
	limits := plan.Limits()
	return &Tenant{
		ID:               uuid.New(),
		Name:             name,
		Subdomain:        subdomain,
		Status:           TenantStatusActive,
		SubscriptionPlan: plan,
		MaxUsers:         limits.MaxUsers,
		MaxProjects:      limits.MaxProjects,
	}
}

// IsActive reports whether users of the tenant may log in
func (t *Tenant) IsActive() bool {
	return t.Status == TenantStatusActive
}

// BeforeCreate assigns an id when the caller did not
func (t *Tenant) BeforeCreate(tx *gorm.DB) error {
	if t.ID == uuid.Nil {
		t.ID = uuid.New()
	}
	return nil
}

// TableName returns the table name for the Tenant model
func (Tenant) TableName() string {
	return "tenants"
}

// TenantSummary is a tenant row with usage counters for listings
type TenantSummary struct {
	Tenant
	TotalUsers    int64 `json:"totalUsers"`
	TotalProjects int64 `json:"totalProjects"`
}

// TenantStats holds usage counters for a single tenant
type TenantStats struct {
	TotalUsers    int64 `json:"totalUsers"`
	TotalProjects int64 `json:"totalProjects"`
	TotalTasks    int64 `json:"totalTasks"`
}
