package api

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/imprecode/gestion-visitas/internal/middleware"
	"github.com/imprecode/gestion-visitas/internal/models"
	"github.com/imprecode/gestion-visitas/internal/token"
	"go.uber.org/zap"
)

// Handlers bundles everything the router mounts.
type Handlers struct {
	Auth     *AuthHandler
	Visits   *VisitHandler
	Approval *ApprovalHandler
	Invoices *InvoiceHandler
	Users    *UserHandler
	Reports  *ReportHandler
}

// RegisterRoutes mounts all endpoints. Everything under /api except login and
// refresh sits behind the session gateway.
func RegisterRoutes(router *gin.Engine, h Handlers, tokens *token.Service, logger *zap.Logger) {
	router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"status":  "healthy",
			"service": "gestion-visitas",
			"time":    time.Now().Format(time.RFC3339),
		})
	})

	api := router.Group("/api")
	api.POST("/login", h.Auth.Login)
	api.POST("/refresh", h.Auth.Refresh)

	protected := api.Group("")
	protected.Use(middleware.SessionGateway(tokens, logger))
	{
		protected.POST("/logout", h.Auth.Logout)
		protected.POST("/password", h.Users.ChangePassword)

		visits := protected.Group("/visits")
		{
			visits.POST("", middleware.RequireRole(models.RoleGestor, models.RolePracticante), h.Visits.Create)
			visits.GET("", h.Visits.ListMine)
			visits.GET("/:id", h.Visits.Get)
			visits.POST("/:id/complete", h.Visits.Complete)

			visits.GET("/:id/invoice", h.Invoices.Get)
			visits.POST("/:id/invoice", h.Invoices.Submit)
			visits.POST("/:id/invoice/files", h.Invoices.Upload)
		}

		approvals := protected.Group("/approvals")
		approvals.Use(middleware.RequireRole(models.RoleAprobador, models.RoleVicepresidente))
		{
			approvals.GET("", h.Approval.Queue)
			approvals.POST("/:id/decision", h.Approval.Decide)
		}

		admin := protected.Group("/admin")
		admin.Use(middleware.RequireRole(models.RoleAdmin))
		{
			admin.GET("/users", h.Users.List)
			admin.POST("/users", h.Users.Create)
			admin.PUT("/users/:id/role", h.Users.UpdateRole)
			admin.DELETE("/users/:id", h.Users.Delete)

			admin.GET("/reports/summary", h.Reports.Summary)
			admin.GET("/reports/export", h.Reports.Export)
		}
	}
}
