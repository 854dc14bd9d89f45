package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"contract-engine/api/middleware"
	"contract-engine/api/response"
	"contract-engine/types"
)

// Reconcile triggers the scheduler pass by hand. The cron job runs the same
// pass on its own cadence.
func (h *ContractHandler) Reconcile(c *gin.Context) {
	p := middleware.GetPrincipal(c)
	if p.Role != types.RoleITAdmin && p.Role != types.RoleSystem {
		response.Error(c, &types.AuthorizationError{
			PrincipalID: p.ID,
			Capability:  types.CapRunScheduler,
			Reason:      "manual reconciliation is restricted to IT admin",
		})
		return
	}
	result, err := h.notify.Reconcile(c.Request.Context(), h.clock())
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, result)
}

// PendingNotifications lists scheduled tasks for the delivery collaborator.
func (h *ContractHandler) PendingNotifications(c *gin.Context) {
	tasks, err := h.notify.Pending(c.Request.Context())
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, gin.H{"tasks": tasks, "total": len(tasks)})
}

type deliveryCallbackRequest struct {
	Status string `json:"status"` // sent | failed
}

// DeliveryCallback records the delivery collaborator's outcome for a task.
func (h *ContractHandler) DeliveryCallback(c *gin.Context) {
	var req deliveryCallbackRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Fail(c, http.StatusBadRequest, "invalid request body: "+err.Error())
		return
	}
	if err := h.notify.MarkDelivery(c.Request.Context(), c.Param("id"), types.DeliveryStatus(req.Status)); err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, nil)
}

// ContractTasks lists every notification task for a contract, superseded
// ones included.
func (h *ContractHandler) ContractTasks(c *gin.Context) {
	tasks, err := h.notify.Tasks(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, gin.H{"tasks": tasks})
}
