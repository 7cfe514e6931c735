package main

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/pavitra93/go-multi-tenant-saas/shared/models"
	"github.com/pavitra93/go-multi-tenant-saas/shared/repository"
	"github.com/pavitra93/go-multi-tenant-saas/shared/utils"
	"github.com/sirupsen/logrus"
)

// handleGetAuditLogs lists audit entries. Tenant admins see their own tenant only.
func handleGetAuditLogs(deps *Deps) gin.HandlerFunc {
	return func(c *gin.Context) {
		requested, err := queryUUID(c, "tenantId")
		if err != nil {
			abortWithError(c, err)
			return
		}
		scope, err := tenantScope(currentPrincipal(c), requested)
		if err != nil {
			abortWithError(c, err)
			return
		}

		filter := repository.AuditFilter{
			TenantID:   scope,
			Action:     c.Query("action"),
			EntityType: c.Query("entityType"),
			Page:       pageFromQuery(c, 50),
		}
		logs, total, err := deps.Store.ListAuditLogs(c.Request.Context(), filter)
		if err != nil {
			abortWithError(c, storeError(err, "Audit log not found"))
			return
		}
		if logs == nil {
			logs = []models.AuditLog{}
		}
		utils.PaginatedResponse(c, logs, utils.NewPagination(filter.Page.Page, filter.Page.Limit, total))
	}
}

func handleHealth() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"success":   true,
			"message":   "Server is running",
			"timestamp": utils.Timestamp(),
		})
	}
}

// handleDatabaseHealth pings the database with a short deadline
func handleDatabaseHealth(deps *Deps) gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
		defer cancel()

		if err := deps.Store.Ping(ctx); err != nil {
			logrus.WithError(err).Error("database health check failed")
			c.JSON(http.StatusInternalServerError, gin.H{
				"success":   false,
				"message":   "Database connection failed",
				"timestamp": utils.Timestamp(),
			})
			return
		}
		c.JSON(http.StatusOK, gin.H{
			"success":   true,
			"message":   "OK",
			"data":      gin.H{"database": "connected"},
			"timestamp": utils.Timestamp(),
		})
	}
}

func handleInfo() gin.HandlerFunc {
	return func(c *gin.Context) {
		utils.OKResponse(c, "Multi-tenant SaaS API", gin.H{
			"version": version,
			"endpoints": gin.H{
				"health":    "/api/health",
				"auth":      "/api/auth",
				"tenants":   "/api/tenants",
				"users":     "/api/users",
				"projects":  "/api/projects",
				"tasks":     "/api/tasks",
				"auditLogs": "/api/audit-logs",
				"metrics":   "/metrics",
			},
		})
	}
}
