package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// Audit actions
const (
	ActionTenantRegister   = "TENANT_REGISTER"
	ActionTenantCreate     = "TENANT_CREATE"
	ActionTenantUpdate     = "TENANT_UPDATE"
	ActionTenantDelete     = "TENANT_DELETE"
	ActionUserLogin        = "USER_LOGIN"
	ActionUserLogout       = "USER_LOGOUT"
	ActionUserCreate       = "USER_CREATE"
	ActionUserUpdate       = "USER_UPDATE"
	ActionUserDelete       = "USER_DELETE"
	ActionProjectCreate    = "PROJECT_CREATE"
	ActionProjectUpdate    = "PROJECT_UPDATE"
	ActionProjectDelete    = "PROJECT_DELETE"
	ActionTaskCreate       = "TASK_CREATE"
	ActionTaskUpdate       = "TASK_UPDATE"
	ActionTaskStatusUpdate = "TASK_STATUS_UPDATE"
	ActionTaskDelete       = "TASK_DELETE"
)

// AuditLog is an append-only record of a sensitive action.
// It carries no foreign keys so history outlives deleted tenants.
type AuditLog struct {
	ID         uuid.UUID         `json:"id" gorm:"type:uuid;primaryKey"`
	TenantID   *uuid.UUID        `json:"tenantId" gorm:"type:uuid;index"`
	UserID     *uuid.UUID        `json:"userId" gorm:"type:uuid;index"`
	Action     string            `json:"action" gorm:"type:varchar(64);not null;index"`
	EntityType string            `json:"entityType" gorm:"type:varchar(32)"`
	EntityID   *uuid.UUID        `json:"entityId" gorm:"type:uuid"`
	IPAddress  string            `json:"ipAddress" gorm:"type:varchar(64)"`
	Metadata   datatypes.JSONMap `json:"metadata"`
	CreatedAt  time.Time         `json:"createdAt" gorm:"index"`
}

func (AuditLog) TableName() string {
	return "audit_logs"
}

func (a *AuditLog) BeforeCreate(tx *gorm.DB) error {
	if a.ID == uuid.Nil {
		a.ID = uuid.New()
	}
	return nil
}

// AllModels lists every table in migration order
func AllModels() []interface{} {
	return []interface{}{&Tenant{}, &User{}, &Project{}, &Task{}, &AuditLog{}}
}
