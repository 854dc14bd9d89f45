package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"contract-engine/api/middleware"
	"contract-engine/api/response"
	"contract-engine/service"
	"contract-engine/types"
)

type submitBatchRequest struct {
	DocumentRef string                 `json:"document_ref"`
	ContentHash string                 `json:"content_hash"`
	Candidates  []types.FieldCandidate `json:"candidates"`
	Text        string                 `json:"text"`
}

// SubmitBatch records extraction candidates for a contract, either supplied
// directly or produced by the configured extractor from raw text.
func (h *ContractHandler) SubmitBatch(c *gin.Context) {
	p := middleware.GetPrincipal(c)
	var req submitBatchRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Fail(c, http.StatusBadRequest, "invalid request body: "+err.Error())
		return
	}
	batch, err := h.provenance.SubmitBatch(c.Request.Context(), p, &service.SubmitBatchInput{
		ContractID:  c.Param("id"),
		DocumentRef: req.DocumentRef,
		ContentHash: req.ContentHash,
		Candidates:  req.Candidates,
		Text:        req.Text,
	})
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, batch)
}

func (h *ContractHandler) ListBatches(c *gin.Context) {
	p := middleware.GetPrincipal(c)
	batches, err := h.provenance.ListBatches(c.Request.Context(), p, c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, gin.H{"batches": batches})
}

type approveRequest struct {
	Field      string `json:"field"`
	FinalValue string `json:"final_value"`
}

// Approve marks one candidate as the human-verified value.
func (h *ContractHandler) Approve(c *gin.Context) {
	p := middleware.GetPrincipal(c)
	var req approveRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Fail(c, http.StatusBadRequest, "invalid request body: "+err.Error())
		return
	}
	rec, err := h.provenance.Approve(c.Request.Context(), p, c.Param("id"), req.Field, req.FinalValue)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, rec)
}

type rejectRequest struct {
	Field  string `json:"field"`
	Reason string `json:"reason"`
}

// Reject discards one pending candidate.
func (h *ContractHandler) Reject(c *gin.Context) {
	p := middleware.GetPrincipal(c)
	var req rejectRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Fail(c, http.StatusBadRequest, "invalid request body: "+err.Error())
		return
	}
	if err := h.provenance.Reject(c.Request.Context(), p, c.Param("id"), req.Field, req.Reason); err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, nil)
}

// CancelBatch discards a batch that has no approvals yet.
func (h *ContractHandler) CancelBatch(c *gin.Context) {
	p := middleware.GetPrincipal(c)
	if err := h.provenance.Cancel(c.Request.Context(), p, c.Param("id")); err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, nil)
}
