package types

import "time"

// DocumentRef is document-version metadata registered against a contract.
// The engine never touches file bytes: the document collaborator stores
// them and supplies the sha256, which is kept as opaque provenance.
type DocumentRef struct {
	ID         string    `json:"id"`
	ContractID string    `json:"contract_id"`
	Filename   string    `json:"filename"`
	Version    int       `json:"version"` // per-contract, starts at 1
	SHA256     string    `json:"sha256"`
	UploadedAt time.Time `json:"uploaded_at"`
}
