package router

import (
	"github.com/gin-gonic/gin"

	"contract-engine/api/handler"
	"contract-engine/api/middleware"
)

func RegisterRoutes(r *gin.Engine, h *handler.ContractHandler, jwtSecret string) {
	api := r.Group("/api/v1")
	api.Use(middleware.AuthMiddleware(jwtSecret))
	{
		contract := api.Group("/contracts")
		{
			contract.POST("", h.Create)
			contract.GET("", h.List)
			contract.GET("/stats", h.Stats)
			contract.GET("/:id", h.Get)
			contract.PUT("/:id", h.Update)
			contract.POST("/:id/transition", h.Transition)
			contract.POST("/:id/intent", h.RecordIntent)
			contract.POST("/:id/grants", h.Share)
			contract.POST("/:id/documents", h.RecordDocument)
			contract.GET("/:id/documents", h.ListDocuments)
			contract.GET("/:id/fields", h.Fields)
			contract.POST("/:id/extractions", h.SubmitBatch)
			contract.GET("/:id/extractions", h.ListBatches)
			contract.GET("/:id/audit", h.AuditQuery)
			contract.GET("/:id/audit/verify", h.AuditVerify)
			contract.GET("/:id/notifications", h.ContractTasks)
		}
		extraction := api.Group("/extractions")
		{
			extraction.POST("/:id/approve", h.Approve)
			extraction.POST("/:id/reject", h.Reject)
			extraction.POST("/:id/cancel", h.CancelBatch)
		}
		notification := api.Group("/notifications")
		{
			notification.POST("/reconcile", h.Reconcile)
			notification.GET("", h.PendingNotifications)
			notification.POST("/:id/delivery", h.DeliveryCallback)
		}
	}
}
