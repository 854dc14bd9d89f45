package types

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"time"
)

// Audit action names. The ledger records accepted actions only; denied
// attempts never reach it.
const (
	ActionContractCreated  = "contract.created"
	ActionContractUpdated  = "contract.updated"
	ActionStateTransition  = "contract.transition"
	ActionDocumentRecorded = "document.recorded"
	ActionBatchSubmitted   = "extraction.submitted"
	ActionBatchCancelled   = "extraction.cancelled"
	ActionFieldApproved    = "field.approved"
	ActionFieldRejected    = "field.rejected"
)

// AuditEvent is append-only and immutable once written. Sequence is scoped
// to the contract, strictly increasing and gapless starting at 1.
// Corrections are new events referencing the corrected one, never updates.
type AuditEvent struct {
	ContractID  string    `json:"contract_id"`
	Sequence    int64     `json:"sequence"`
	ActorID     string    `json:"actor_id"`
	Action      string    `json:"action"`
	BeforeState State     `json:"before_state,omitempty"`
	AfterState  State     `json:"after_state,omitempty"`
	Detail      string    `json:"detail,omitempty"`
	Timestamp   time.Time `json:"timestamp"`
	PayloadHash string    `json:"payload_hash"`
}

// auditPayload is the canonical representation hashed for tamper detection.
// Field order is fixed; timestamps are rendered in UTC RFC3339 so the hash
// is stable across storage round-trips.
type auditPayload struct {
	ContractID  string `json:"contract_id"`
	Sequence    int64  `json:"sequence"`
	ActorID     string `json:"actor_id"`
	Action      string `json:"action"`
	BeforeState string `json:"before_state"`
	AfterState  string `json:"after_state"`
	Detail      string `json:"detail"`
	Timestamp   string `json:"timestamp"`
}

// ComputeHash returns the sha256 hex digest of the event's canonical payload.
func (e *AuditEvent) ComputeHash() string {
	p := auditPayload{
		ContractID:  e.ContractID,
		Sequence:    e.Sequence,
		ActorID:     e.ActorID,
		Action:      e.Action,
		BeforeState: string(e.BeforeState),
		AfterState:  string(e.AfterState),
		Detail:      e.Detail,
		Timestamp:   e.Timestamp.UTC().Format(time.RFC3339Nano),
	}
	raw, _ := json.Marshal(p)
	sum := sha256.Sum256(raw)
	return hex.EncodeToString(sum[:])
}

// Seal stamps the payload hash. Call once, immediately before append.
func (e *AuditEvent) Seal() {
	e.PayloadHash = e.ComputeHash()
}

// VerifyResult reports the outcome of a ledger tamper check.
type VerifyResult struct {
	ContractID    string `json:"contract_id"`
	EventsChecked int    `json:"events_checked"`
	OK            bool   `json:"ok"`
	FirstMismatch int64  `json:"first_mismatch,omitempty"` // sequence of first bad event
}
