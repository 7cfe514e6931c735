// Package repository is the data access layer. Every query that touches tenant-owned rows
// takes the tenant scope explicitly; authorization decisions stay with the caller.
package repository

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/pavitra93/go-multi-tenant-saas/shared/models"
	"gorm.io/gorm"
)

var (
	// ErrNotFound aliases gorm's sentinel so callers need not import gorm
	ErrNotFound = gorm.ErrRecordNotFound

	ErrSubdomainTaken = errors.New("subdomain already exists")
	ErrEmailTaken     = errors.New("email already exists in tenant")
)

// LimitError is returned when a tenant has used up its plan allowance
type LimitError struct {
	Resource string
	Max      int
	Plan     models.SubscriptionPlan
}

func (e *LimitError) Error() string {
	return fmt.Sprintf("%s limit reached (%d %ss max for %s plan)",
		strings.ToUpper(e.Resource[:1])+e.Resource[1:], e.Max, e.Resource, e.Plan)
}

// Store wraps the injected database handle
type Store struct {
	db *gorm.DB
}

func New(db *gorm.DB) *Store {
	return &Store{db: db}
}

// DB exposes the underlying handle for health checks and migrations
func (s *Store) DB() *gorm.DB {
	return s.db
}

// Ping checks database connectivity
func (s *Store) Ping(ctx context.Context) error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.PingContext(ctx)
}

// WithTx runs fn inside a transaction bound to a Store
func (s *Store) WithTx(ctx context.Context, fn func(tx *Store) error) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return fn(&Store{db: tx})
	})
}

// Page is an offset page request
type Page struct {
	Page  int
	Limit int
}

func (p Page) offset() int {
	if p.Page < 1 {
		return 0
	}
	return (p.Page - 1) * p.Limit
}

func (p Page) scope(db *gorm.DB) *gorm.DB {
	return db.Limit(p.Limit).Offset(p.offset())
}

func likePattern(s string) string {
	return "%" + strings.ToLower(strings.TrimSpace(s)) + "%"
}

func isDuplicate(err error) bool {
	return errors.Is(err, gorm.ErrDuplicatedKey)
}
