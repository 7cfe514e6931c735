package repository

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/pavitra93/go-multi-tenant-saas/shared/models"
	"gorm.io/gorm"
)

// AuditFilter narrows ListAuditLogs
type AuditFilter struct {
	TenantID   *uuid.UUID
	Action     string
	EntityType string
	Page
}

func (f AuditFilter) scope(db *gorm.DB) *gorm.DB {
	if f.TenantID != nil {
		db = db.Where("tenant_id = ?", *f.TenantID)
	}
	if f.Action != "" {
		db = db.Where("action = ?", f.Action)
	}
	if f.EntityType != "" {
		db = db.Where("entity_type = ?", f.EntityType)
	}
	return db
}

func (s *Store) InsertAuditLog(ctx context.Context, entry *models.AuditLog) error {
	if err := s.db.WithContext(ctx).Create(entry).Error; err != nil {
		return fmt.Errorf("failed to insert audit log: %w", err)
	}
	return nil
}

// ListAuditLogs returns a page of audit entries, newest first
func (s *Store) ListAuditLogs(ctx context.Context, f AuditFilter) ([]models.AuditLog, int64, error) {
	var total int64
	if err := s.db.WithContext(ctx).Model(&models.AuditLog{}).Scopes(f.scope).Count(&total).Error; err != nil {
		return nil, 0, fmt.Errorf("failed to count audit logs: %w", err)
	}
	logs := []models.AuditLog{}
	if err := s.db.WithContext(ctx).Scopes(f.scope, f.Page.scope).Order("created_at DESC").Find(&logs).Error; err != nil {
		return nil, 0, fmt.Errorf("failed to list audit logs: %w", err)
	}
	return logs, total, nil
}
