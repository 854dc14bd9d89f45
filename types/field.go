package types

import "time"

// FieldSource tags where a field value came from. Only verified values are
// authoritative; extracted values stay provisional until a human approves
// them.
type FieldSource string

const (
	SourceExtracted FieldSource = "extracted"
	SourceVerified  FieldSource = "verified"
)

// FieldRecord is the provenance store entry for one contract field.
// Confidence is meaningful only while Source is extracted; ApproverID only
// once Source is verified.
type FieldRecord struct {
	ContractID string      `json:"contract_id"`
	Name       string      `json:"name"`
	Value      string      `json:"value"`
	Source     FieldSource `json:"source"`
	Confidence float64     `json:"confidence,omitempty"`
	ApproverID string      `json:"approver_id,omitempty"`
	BatchID    string      `json:"batch_id,omitempty"`
	UpdatedAt  time.Time   `json:"updated_at"`
}

// FieldStatus classifies a field for consumers.
const (
	FieldStatusVerified   = "verified"
	FieldStatusUnverified = "unverified"
)

// FieldReport is what reporting and notifications see for one field: the
// authoritative value if a human approved one, plus every pending candidate.
// The two are never merged; an unapproved field reports as unverified even
// when candidates exist.
type FieldReport struct {
	Name       string        `json:"name"`
	Status     string        `json:"status"` // verified | unverified
	Value      string        `json:"value,omitempty"`
	ApproverID string        `json:"approver_id,omitempty"`
	Candidates []FieldRecord `json:"candidates,omitempty"`
}
