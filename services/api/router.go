package main

import (
	"github.com/gin-gonic/gin"
	"github.com/gin-gonic/gin/binding"
	"github.com/pavitra93/go-multi-tenant-saas/shared/middleware"
	"github.com/pavitra93/go-multi-tenant-saas/shared/models"
	"github.com/pavitra93/go-multi-tenant-saas/shared/utils"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

func init() {
	binding.EnableDecoderDisallowUnknownFields = true
}

// NewRouter wires middleware and every route onto a fresh engine
func NewRouter(deps *Deps, corsOrigin string) *gin.Engine {
	router := gin.New()
	router.Use(
		middleware.Recovery(),
		middleware.RequestID(),
		middleware.AccessLog(),
		middleware.CORS(corsOrigin),
		middleware.ErrorHandler(),
	)

	var revocations middleware.RevocationChecker
	if deps.Revoker != nil {
		revocations = deps.Revoker
	}
	auth := middleware.NewAuthMiddleware(deps.Tokens, revocations)
	admins := auth.RequireRole(models.RoleSuperAdmin, models.RoleTenantAdmin)
	superAdmin := auth.RequireRole(models.RoleSuperAdmin)

	router.GET("/", handleInfo())
	router.GET("/health", handleHealth())
	router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	api := router.Group("/api")
	api.GET("/health", handleDatabaseHealth(deps))

	authRoutes := api.Group("/auth")
	{
		authRoutes.POST("/register", handleRegister(deps))
		authRoutes.POST("/register-tenant", handleRegister(deps))
		authRoutes.POST("/login", handleLogin(deps))
		authRoutes.GET("/profile", auth.RequireAuth(), handleProfile(deps))
		authRoutes.GET("/me", auth.RequireAuth(), handleProfile(deps))
		authRoutes.POST("/logout", auth.RequireAuth(), handleLogout(deps))
	}

	protected := api.Group("")
	protected.Use(auth.RequireAuth())

	tenants := protected.Group("/tenants")
	{
		tenants.POST("", superAdmin, handleCreateTenant(deps))
		tenants.GET("", superAdmin, handleGetTenants(deps))
		tenants.GET("/current", handleGetCurrentTenant(deps))
		tenants.GET("/:id", handleGetTenant(deps))
		tenants.PUT("/:id", admins, handleUpdateTenant(deps))
		tenants.DELETE("/:id", superAdmin, handleDeleteTenant(deps))
		tenants.GET("/:id/users", admins, handleGetTenantUsers(deps))
		tenants.POST("/:id/users", admins, handleCreateTenantUser(deps))
	}

	users := protected.Group("/users")
	{
		users.POST("", admins, handleCreateUser(deps))
		users.GET("", handleGetUsers(deps))
		users.GET("/:id", handleGetUser(deps))
		users.PUT("/:id", handleUpdateUser(deps))
		users.DELETE("/:id", admins, handleDeleteUser(deps))
	}

	projects := protected.Group("/projects")
	{
		projects.POST("", handleCreateProject(deps))
		projects.GET("", handleGetProjects(deps))
		projects.GET("/:id", handleGetProject(deps))
		projects.PUT("/:id", handleUpdateProject(deps))
		projects.DELETE("/:id", handleDeleteProject(deps))
		projects.GET("/:id/tasks", handleGetProjectTasks(deps))
	}

	tasks := protected.Group("/tasks")
	{
		tasks.POST("", handleCreateTask(deps))
		tasks.GET("", handleGetTasks(deps))
		tasks.GET("/project/:projectId", handleGetTasksByProject(deps))
		tasks.GET("/:id", handleGetTask(deps))
		tasks.PUT("/:id", handleUpdateTask(deps))
		tasks.PATCH("/:id/status", handleUpdateTaskStatus(deps))
		tasks.DELETE("/:id", handleDeleteTask(deps))
	}

	protected.GET("/audit-logs", admins, handleGetAuditLogs(deps))

	router.NoRoute(func(c *gin.Context) {
		utils.NotFoundResponse(c, "Endpoint not found")
	})

	return router
}
