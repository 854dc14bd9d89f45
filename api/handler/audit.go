package handler

import (
	"strconv"

	"github.com/gin-gonic/gin"

	"contract-engine/api/middleware"
	"contract-engine/api/response"
)

// AuditQuery exports a contract's ledger ordered by sequence. from/to are
// sequence bounds; restart a paged export by passing from = last seen + 1.
func (h *ContractHandler) AuditQuery(c *gin.Context) {
	p := middleware.GetPrincipal(c)
	from, _ := strconv.ParseInt(c.DefaultQuery("from", "1"), 10, 64)
	to, _ := strconv.ParseInt(c.DefaultQuery("to", "0"), 10, 64)

	events, err := h.audit.Query(c.Request.Context(), p, c.Param("id"), from, to)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, gin.H{"events": events, "total": len(events)})
}

// AuditVerify recomputes payload hashes and reports the first mismatch.
func (h *ContractHandler) AuditVerify(c *gin.Context) {
	p := middleware.GetPrincipal(c)
	result, err := h.audit.Verify(c.Request.Context(), p, c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, result)
}
