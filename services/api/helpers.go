package main

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/pavitra93/go-multi-tenant-saas/shared/apperror"
	"github.com/pavitra93/go-multi-tenant-saas/shared/audit"
	"github.com/pavitra93/go-multi-tenant-saas/shared/middleware"
	"github.com/pavitra93/go-multi-tenant-saas/shared/models"
	"github.com/pavitra93/go-multi-tenant-saas/shared/repository"
	"github.com/pavitra93/go-multi-tenant-saas/shared/utils"
)

const maxPageLimit = 100

var subdomainPattern = regexp.MustCompile(`^[a-z0-9]([a-z0-9-]*[a-z0-9])?$`)

// TokenRevoker checks and records logged-out tokens
type TokenRevoker interface {
	Revoke(ctx context.Context, token string, expiresAt time.Time) error
	IsRevoked(ctx context.Context, token string) (bool, error)
}

// Deps is everything the handlers need. Revoker may be nil.
type Deps struct {
	Store   *repository.Store
	Tokens  *utils.TokenManager
	Revoker TokenRevoker
	Audit   audit.Recorder
}

// abortWithError hands err to middleware.ErrorHandler for rendering
func abortWithError(c *gin.Context, err error) {
	_ = c.Error(err)
	c.Abort()
}

// storeError translates repository errors into client-facing ones.
// notFound names the missing entity, e.g. "Project not found".
func storeError(err error, notFound string) error {
	var appErr *apperror.Error
	var limitErr *repository.LimitError
	switch {
	case errors.As(err, &appErr):
		return err
	case errors.Is(err, repository.ErrNotFound):
		return apperror.NotFound(notFound)
	case errors.Is(err, repository.ErrSubdomainTaken):
		return apperror.Conflict("Subdomain already exists")
	case errors.Is(err, repository.ErrEmailTaken):
		return apperror.Conflict("Email already exists in this tenant")
	case errors.As(err, &limitErr):
		return apperror.Forbidden(limitErr.Error())
	}
	return apperror.Internal("store failure", err)
}

// bindJSON decodes the body into req. Unknown fields are rejected by the router config.
func bindJSON(c *gin.Context, req interface{}) error {
	if err := c.ShouldBindJSON(req); err != nil {
		return apperror.Validation("Invalid request body: " + err.Error())
	}
	return nil
}

func paramUUID(c *gin.Context, name string) (uuid.UUID, error) {
	id, err := uuid.Parse(c.Param(name))
	if err != nil {
		return uuid.Nil, apperror.Validation("Invalid ID format")
	}
	return id, nil
}

// queryUUID returns nil when key is absent
func queryUUID(c *gin.Context, key string) (*uuid.UUID, error) {
	raw := strings.TrimSpace(c.Query(key))
	if raw == "" {
		return nil, nil
	}
	id, err := uuid.Parse(raw)
	if err != nil {
		return nil, apperror.Validation("Invalid " + key)
	}
	return &id, nil
}

// queryBool returns nil when key is absent
func queryBool(c *gin.Context, key string) (*bool, error) {
	raw := strings.TrimSpace(c.Query(key))
	if raw == "" {
		return nil, nil
	}
	v, err := strconv.ParseBool(raw)
	if err != nil {
		return nil, apperror.Validation("Invalid " + key)
	}
	return &v, nil
}

// pageFromQuery reads page and limit. Bad or missing values fall back to page 1 and
// defaultLimit; limit is capped at maxPageLimit.
func pageFromQuery(c *gin.Context, defaultLimit int) repository.Page {
	page, err := strconv.Atoi(c.Query("page"))
	if err != nil || page < 1 {
		page = 1
	}
	limit, err := strconv.Atoi(c.Query("limit"))
	if err != nil || limit < 1 {
		limit = defaultLimit
	}
	if limit > maxPageLimit {
		limit = maxPageLimit
	}
	return repository.Page{Page: page, Limit: limit}
}

func currentPrincipal(c *gin.Context) *models.Principal {
	p, ok := middleware.GetPrincipal(c)
	if !ok {
		// routes using this always run behind RequireAuth
		panic("principal missing from context")
	}
	return p
}

// tenantScope resolves which tenant a request acts on. Super admins may name one through
// requested (nil means every tenant); everyone else is pinned to their own tenant.
func tenantScope(p *models.Principal, requested *uuid.UUID) (*uuid.UUID, error) {
	if p.IsSuperAdmin() {
		return requested, nil
	}
	if p.TenantID == nil {
		return nil, apperror.Validation("No tenant associated with this user")
	}
	if requested != nil && *requested != *p.TenantID {
		return nil, apperror.Forbidden("Access denied")
	}
	return p.TenantID, nil
}

// targetTenant is tenantScope for writes, where a tenant must be chosen
func targetTenant(p *models.Principal, requested *uuid.UUID) (uuid.UUID, error) {
	scope, err := tenantScope(p, requested)
	if err != nil {
		return uuid.Nil, err
	}
	if scope == nil {
		return uuid.Nil, apperror.Validation("tenantId is required")
	}
	return *scope, nil
}

// record queues an audit entry attributed to the caller, if any
func record(c *gin.Context, deps *Deps, e audit.Entry) {
	if deps.Audit == nil {
		return
	}
	if p, ok := middleware.GetPrincipal(c); ok {
		if e.UserID == nil {
			e.UserID = &p.UserID
		}
		if e.TenantID == nil {
			e.TenantID = p.TenantID
		}
	}
	e.IPAddress = c.ClientIP()
	deps.Audit.Record(e)
}

// Nullable tells an absent JSON field apart from an explicit null
type Nullable[T any] struct {
	Set   bool
	Value *T
}

func (n *Nullable[T]) UnmarshalJSON(data []byte) error {
	n.Set = true
	if bytes.Equal(bytes.TrimSpace(data), []byte("null")) {
		n.Value = nil
		return nil
	}
	var v T
	if err := json.Unmarshal(data, &v); err != nil {
		return err
	}
	n.Value = &v
	return nil
}

// parseDueDate accepts a calendar date or an RFC 3339 timestamp
func parseDueDate(raw string) (*time.Time, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil, nil
	}
	if t, err := time.Parse("2006-01-02", raw); err == nil {
		return &t, nil
	}
	t, err := time.Parse(time.RFC3339, raw)
	if err != nil {
		return nil, apperror.Validation("Invalid due date, expected YYYY-MM-DD or RFC 3339")
	}
	utc := t.UTC()
	return &utc, nil
}

// normalizeSubdomain lowercases and validates a subdomain
func normalizeSubdomain(raw string) (string, error) {
	sub := strings.ToLower(strings.TrimSpace(raw))
	if len(sub) > 63 || !subdomainPattern.MatchString(sub) {
		return "", apperror.Validation("Subdomain may only contain lowercase letters, digits and hyphens")
	}
	if sub == "admin" {
		return "", apperror.Validation("Subdomain is reserved")
	}
	return sub, nil
}

// slugify turns a tenant name into a subdomain candidate
func slugify(name string) string {
	var b strings.Builder
	dash := false
	for _, r := range strings.ToLower(strings.TrimSpace(name)) {
		switch {
		case (r >= 'a' && r <= 'z') || (r >= '0' && r <= '9'):
			b.WriteRune(r)
			dash = false
		case b.Len() > 0 && !dash:
			b.WriteByte('-')
			dash = true
		}
	}
	slug := strings.TrimRight(b.String(), "-")
	if len(slug) > 63 {
		slug = strings.TrimRight(slug[:63], "-")
	}
	return slug
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
