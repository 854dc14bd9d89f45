package handler

import (
	"time"

	"contract-engine/service"
	"contract-engine/types"
)

// ContractHandler is the HTTP surface of the engine. It does request
// parsing only; every decision (guards, authorization, atomic commits)
// lives in the services.
type ContractHandler struct {
	lifecycle  *service.LifecycleService
	provenance *service.ProvenanceService
	audit      *service.AuditService
	notify     *service.NotificationService
	clock      func() time.Time
}

func NewContractHandler(
	lifecycle *service.LifecycleService,
	provenance *service.ProvenanceService,
	audit *service.AuditService,
	notify *service.NotificationService,
) *ContractHandler {
	return &ContractHandler{
		lifecycle:  lifecycle,
		provenance: provenance,
		audit:      audit,
		notify:     notify,
		clock:      time.Now,
	}
}

// WithClock overrides the reconciliation time source, for tests.
func (h *ContractHandler) WithClock(clock func() time.Time) *ContractHandler {
	h.clock = clock
	return h
}

const dateLayout = "2006-01-02"

// parseDate converts an optional YYYY-MM-DD string.
func parseDate(field, value string) (*time.Time, error) {
	if value == "" {
		return nil, nil
	}
	t, err := time.Parse(dateLayout, value)
	if err != nil {
		return nil, &types.ValidationError{Field: field, Reason: "expected YYYY-MM-DD"}
	}
	return &t, nil
}
