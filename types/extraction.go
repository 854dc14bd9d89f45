package types

import "time"

// BatchStatus is derived from candidate decisions: pending until the first
// decision, partially-approved while decisions are mixed or incomplete,
// approved/rejected once every candidate is decided.
type BatchStatus string

const (
	BatchPending           BatchStatus = "pending"
	BatchPartiallyApproved BatchStatus = "partially-approved"
	BatchApproved          BatchStatus = "approved"
	BatchRejected          BatchStatus = "rejected"
)

// Candidate decision states.
type CandidateStatus string

const (
	CandidatePending  CandidateStatus = "pending"
	CandidateApproved CandidateStatus = "approved"
	CandidateRejected CandidateStatus = "rejected"
)

// FieldCandidate is one proposed value inside a batch, straight from the
// extraction collaborator and therefore untrusted until approved.
type FieldCandidate struct {
	Name       string          `json:"name"`
	Value      string          `json:"value"`
	Confidence float64         `json:"confidence"`
	Status     CandidateStatus `json:"status"`
	Reason     string          `json:"reason,omitempty"` // set on rejection
}

// ExtractionBatch groups the candidates proposed from one document version.
// ContentHash is opaque provenance from the document collaborator; the
// engine never re-derives it.
type ExtractionBatch struct {
	ID          string           `json:"id"`
	ContractID  string           `json:"contract_id"`
	DocumentRef string           `json:"document_ref"`
	ContentHash string           `json:"content_hash,omitempty"`
	Status      BatchStatus      `json:"status"`
	Candidates  []FieldCandidate `json:"candidates"`
	SubmittedBy string           `json:"submitted_by"`
	CreatedAt   time.Time        `json:"created_at"`
	UpdatedAt   time.Time        `json:"updated_at"`
}

// DeriveStatus recomputes the batch status from its candidates.
func (b *ExtractionBatch) DeriveStatus() BatchStatus {
	var pending, approved, rejected int
	for _, c := range b.Candidates {
		switch c.Status {
		case CandidateApproved:
			approved++
		case CandidateRejected:
			rejected++
		default:
			pending++
		}
	}
	switch {
	case pending == len(b.Candidates):
		return BatchPending
	case pending > 0:
		return BatchPartiallyApproved
	case approved == 0:
		return BatchRejected
	case rejected == 0:
		return BatchApproved
	default:
		return BatchPartiallyApproved
	}
}

// ExtractedField is the tuple shape returned by the extraction collaborator.
type ExtractedField struct {
	Name       string  `json:"name" jsonschema:"description=snake_case field name,required"`
	Value      string  `json:"value" jsonschema:"description=extracted value as plain text,required"`
	Confidence float64 `json:"confidence" jsonschema:"description=model confidence between 0 and 1,required"`
}
