package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"contract-engine/api/middleware"
	"contract-engine/api/response"
	"contract-engine/service"
	"contract-engine/types"
)

type createContractRequest struct {
	Title            string   `json:"title"`
	OwnerID          string   `json:"owner_id"`
	VendorID         string   `json:"vendor_id"`
	EffectiveDate    string   `json:"effective_date"`
	TerminationDate  string   `json:"termination_date"`
	NoticePeriodDays int      `json:"notice_period_days"`
	Sensitive        bool     `json:"sensitive"`
	Tags             []string `json:"tags"`
}

// Create opens a new contract in Draft.
func (h *ContractHandler) Create(c *gin.Context) {
	p := middleware.GetPrincipal(c)
	var req createContractRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Fail(c, http.StatusBadRequest, "invalid request body: "+err.Error())
		return
	}
	effective, err := parseDate("effective_date", req.EffectiveDate)
	if err != nil {
		response.Error(c, err)
		return
	}
	termination, err := parseDate("termination_date", req.TerminationDate)
	if err != nil {
		response.Error(c, err)
		return
	}

	contract, err := h.lifecycle.Create(c.Request.Context(), p, &service.CreateContractInput{
		Title:            req.Title,
		OwnerID:          req.OwnerID,
		VendorID:         req.VendorID,
		EffectiveDate:    effective,
		TerminationDate:  termination,
		NoticePeriodDays: req.NoticePeriodDays,
		Sensitive:        req.Sensitive,
		Tags:             req.Tags,
	})
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, contract)
}

func (h *ContractHandler) List(c *gin.Context) {
	contracts, err := h.lifecycle.List(c.Request.Context())
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, gin.H{"contracts": contracts, "total": len(contracts)})
}

func (h *ContractHandler) Stats(c *gin.Context) {
	stats, err := h.lifecycle.Stats(c.Request.Context())
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, gin.H{"stats": stats})
}

// Get returns the contract together with its field report.
func (h *ContractHandler) Get(c *gin.Context) {
	p := middleware.GetPrincipal(c)
	id := c.Param("id")

	contract, err := h.lifecycle.Get(c.Request.Context(), p, id)
	if err != nil {
		response.Error(c, err)
		return
	}
	fields, err := h.provenance.FieldReport(c.Request.Context(), p, id)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, gin.H{"contract": contract, "fields": fields})
}

type transitionRequest struct {
	Target               string `json:"target"`
	ExpectedVersion      int64  `json:"expected_version"`
	Reason               string `json:"reason"`
	EffectiveDate        string `json:"effective_date"`
	TerminationDate      string `json:"termination_date"`
	RetentionHoldExpired bool   `json:"retention_hold_expired"`
}

// Transition requests one edge of the lifecycle graph.
func (h *ContractHandler) Transition(c *gin.Context) {
	p := middleware.GetPrincipal(c)
	var req transitionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Fail(c, http.StatusBadRequest, "invalid request body: "+err.Error())
		return
	}
	effective, err := parseDate("effective_date", req.EffectiveDate)
	if err != nil {
		response.Error(c, err)
		return
	}
	termination, err := parseDate("termination_date", req.TerminationDate)
	if err != nil {
		response.Error(c, err)
		return
	}

	contract, err := h.lifecycle.Transition(c.Request.Context(), p, c.Param("id"), &service.TransitionRequest{
		Target:               types.State(req.Target),
		ExpectedVersion:      req.ExpectedVersion,
		Reason:               req.Reason,
		EffectiveDate:        effective,
		TerminationDate:      termination,
		RetentionHoldExpired: req.RetentionHoldExpired,
	})
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, contract)
}

type updateDraftRequest struct {
	ExpectedVersion  int64    `json:"expected_version"`
	Title            *string  `json:"title"`
	VendorID         *string  `json:"vendor_id"`
	EffectiveDate    string   `json:"effective_date"`
	TerminationDate  string   `json:"termination_date"`
	NoticePeriodDays *int     `json:"notice_period_days"`
	Sensitive        *bool    `json:"sensitive"`
	Tags             []string `json:"tags"`
}

// Update corrects a Draft in place.
func (h *ContractHandler) Update(c *gin.Context) {
	p := middleware.GetPrincipal(c)
	var req updateDraftRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Fail(c, http.StatusBadRequest, "invalid request body: "+err.Error())
		return
	}
	effective, err := parseDate("effective_date", req.EffectiveDate)
	if err != nil {
		response.Error(c, err)
		return
	}
	termination, err := parseDate("termination_date", req.TerminationDate)
	if err != nil {
		response.Error(c, err)
		return
	}

	contract, err := h.lifecycle.UpdateDraft(c.Request.Context(), p, c.Param("id"), &service.UpdateDraftInput{
		ExpectedVersion:  req.ExpectedVersion,
		Title:            req.Title,
		VendorID:         req.VendorID,
		EffectiveDate:    effective,
		TerminationDate:  termination,
		NoticePeriodDays: req.NoticePeriodDays,
		Sensitive:        req.Sensitive,
		Tags:             req.Tags,
	})
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, contract)
}

type intentRequest struct {
	ExpectedVersion int64  `json:"expected_version"`
	Intent          string `json:"intent"`
	Rationale       string `json:"rationale"`
}

// RecordIntent records the renewal decision for an active or expiring
// contract.
func (h *ContractHandler) RecordIntent(c *gin.Context) {
	p := middleware.GetPrincipal(c)
	var req intentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Fail(c, http.StatusBadRequest, "invalid request body: "+err.Error())
		return
	}
	contract, err := h.lifecycle.RecordIntent(c.Request.Context(), p, c.Param("id"), &service.IntentRequest{
		ExpectedVersion: req.ExpectedVersion,
		Intent:          types.RenewalIntent(req.Intent),
		Rationale:       req.Rationale,
	})
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, contract)
}

type shareRequest struct {
	PrincipalID string `json:"principal_id"`
	Capability  string `json:"capability"`
}

// Share adds an explicit grant on the contract.
func (h *ContractHandler) Share(c *gin.Context) {
	p := middleware.GetPrincipal(c)
	var req shareRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Fail(c, http.StatusBadRequest, "invalid request body: "+err.Error())
		return
	}
	g := &types.Grant{
		ContractID:  c.Param("id"),
		PrincipalID: req.PrincipalID,
		Capability:  types.Capability(req.Capability),
	}
	if err := h.lifecycle.Share(c.Request.Context(), p, g); err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, g)
}

type recordDocumentRequest struct {
	Filename string `json:"filename"`
	SHA256   string `json:"sha256"`
}

// RecordDocument registers document-version metadata (never bytes).
func (h *ContractHandler) RecordDocument(c *gin.Context) {
	p := middleware.GetPrincipal(c)
	var req recordDocumentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Fail(c, http.StatusBadRequest, "invalid request body: "+err.Error())
		return
	}
	doc, err := h.lifecycle.RecordDocument(c.Request.Context(), p, c.Param("id"), req.Filename, req.SHA256)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, doc)
}

func (h *ContractHandler) ListDocuments(c *gin.Context) {
	p := middleware.GetPrincipal(c)
	docs, err := h.lifecycle.ListDocuments(c.Request.Context(), p, c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, gin.H{"documents": docs})
}

// Fields returns the field report on its own.
func (h *ContractHandler) Fields(c *gin.Context) {
	p := middleware.GetPrincipal(c)
	fields, err := h.provenance.FieldReport(c.Request.Context(), p, c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, gin.H{"fields": fields})
}
