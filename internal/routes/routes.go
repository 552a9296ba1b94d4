package routes

import (
	"github.com/gin-gonic/gin"

	"github.com/NghiaaPham/ServiceCenter-sub002/internal/app"
	"github.com/NghiaaPham/ServiceCenter-sub002/internal/config"
	"github.com/NghiaaPham/ServiceCenter-sub002/internal/handlers"
	"github.com/NghiaaPham/ServiceCenter-sub002/internal/middleware"
)

func RegisterRoutes(r *gin.Engine, c *app.Container, cfg *config.Config) {

	// ======================================================
	// GLOBAL MIDDLEWARE
	// ======================================================
	r.Use(middleware.RequestID())
	r.Use(middleware.CORSMiddleware(cfg.CORSOrigins))

	// ======================================================
	// HANDLERS
	// ======================================================
	healthHandler := handlers.NewHealthHandler(c.DB)
	authHandler := handlers.NewAuthHandler(c.DB, cfg)
	meHandler := handlers.NewMeHandler(c.DB)
	appointmentHandler := handlers.NewAppointmentHandler(c)
	workOrderHandler := handlers.NewWorkOrderHandler(c)
	paymentHandler := handlers.NewPaymentHandler(c)
	reconciliationHandler := handlers.NewReconciliationHandler(c)
	auditLogsHandler := handlers.NewAuditLogsHandler(c.DB, c.Location)

	r.GET("/health", healthHandler.Check)

	api := r.Group("/api")
	{
		// ------------------------------
		// PUBLIC
		// ------------------------------
		api.POST("/auth/register", authHandler.Register)
		api.POST("/auth/login", authHandler.Login)
		api.GET("/availability", appointmentHandler.Availability)

		// Gateways authenticate by signature, not by token.
		api.POST("/webhooks/payments/:provider", paymentHandler.Webhook)

		// ------------------------------
		// AUTHENTICATED
		// ------------------------------
		secured := api.Group("/")
		secured.Use(middleware.AuthMiddleware(cfg))
		{
			secured.GET("/me", meHandler.GetMe)

			// ------------------------------
			// CUSTOMER (staff may act on their behalf)
			// ------------------------------
			secured.POST("/appointments", appointmentHandler.Create)
			secured.GET("/appointments", appointmentHandler.ListMine)
			secured.GET("/appointments/:id", appointmentHandler.Get)
			secured.PATCH("/appointments/:id", appointmentHandler.Update)
			secured.DELETE("/appointments/:id", appointmentHandler.Delete)
			secured.POST("/appointments/:id/cancel", appointmentHandler.Cancel)
			secured.POST("/appointments/:id/reschedule", appointmentHandler.Reschedule)
			secured.POST("/appointments/:id/payments", appointmentHandler.PrePayment)

			secured.GET("/payments/intents/:id", paymentHandler.GetIntent)
			secured.POST("/work-orders/:id/approve-extras", workOrderHandler.ApproveExtras)
		}

		// ------------------------------
		// STAFF
		// ------------------------------
		staff := api.Group("/staff")
		staff.Use(
			middleware.AuthMiddleware(cfg),
			middleware.RequireRole(middleware.RoleAdvisor, middleware.RoleTechnician, middleware.RoleManager),
		)
		{
			staff.GET("/appointments", appointmentHandler.ListByDate)
			staff.GET("/appointments/:id", appointmentHandler.Get)
			staff.POST("/appointments/:id/confirm", appointmentHandler.Confirm)
			staff.POST("/appointments/:id/check-in", appointmentHandler.CheckIn)
			staff.POST("/appointments/:id/no-show", appointmentHandler.NoShow)
			staff.POST("/appointments/:id/cancel", appointmentHandler.Cancel)
			staff.POST("/appointments/:id/payments/resync", appointmentHandler.ResyncPayment)

			staff.POST("/work-orders", workOrderHandler.CreateWalkIn)
			staff.GET("/work-orders/:id", workOrderHandler.Get)
			staff.GET("/work-orders/:id/invoice", workOrderHandler.Invoice)
			staff.POST("/work-orders/:id/assign", workOrderHandler.Assign)
			staff.POST("/work-orders/:id/start", workOrderHandler.Start)
			staff.POST("/work-orders/:id/transition", workOrderHandler.Transition)
			staff.POST("/work-orders/:id/parts", workOrderHandler.AddPart)
			staff.POST("/work-orders/:id/checklist/:itemId/complete", workOrderHandler.CompleteChecklistItem)
			staff.POST("/work-orders/:id/complete", workOrderHandler.Complete)
			staff.POST("/work-orders/:id/cancel", workOrderHandler.Cancel)

			staff.POST("/payments/intents/:id/cancel", paymentHandler.CancelIntent)
			staff.POST("/refunds", paymentHandler.RequestRefund)
			staff.POST("/refunds/:id/process", paymentHandler.ProcessRefund)

			staff.GET("/audit-logs", auditLogsHandler.List)
		}

		// ------------------------------
		// ADMIN
		// ------------------------------
		admin := api.Group("/admin")
		admin.Use(
			middleware.AuthMiddleware(cfg),
			middleware.RequireRole(middleware.RoleManager),
		)
		{
			admin.POST("/reconciliation/run", reconciliationHandler.Run)
			admin.GET("/reconciliation/reports/:date", reconciliationHandler.Report)
		}
	}
}
