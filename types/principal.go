package types

// Role is the fixed role set carried by an authenticated principal. The
// engine never authenticates anyone itself; the identity collaborator hands
// it an already-verified principal.
type Role string

const (
	RoleITAdmin       Role = "it_admin"
	RoleBusinessAdmin Role = "business_admin"
	RoleOwner         Role = "owner"
	RoleReviewer      Role = "reviewer"

	// RoleSystem is the internal actor used by the scheduled reconciliation
	// pass for clock-driven transitions. It is never minted into a token.
	RoleSystem Role = "system"
)

// Capability names a single permission checked by the authorization gate.
type Capability string

const (
	CapActivate      Capability = "lifecycle.activate"
	CapMarkExpiring  Capability = "lifecycle.mark_expiring"
	CapTerminate     Capability = "lifecycle.terminate"
	CapRenew         Capability = "lifecycle.renew"
	CapArchive       Capability = "lifecycle.archive"
	CapEditContract  Capability = "contract.edit"
	CapReadContract  Capability = "contract.read"
	CapSubmitExtract Capability = "extraction.submit"
	CapApproveField  Capability = "extraction.approve"
	CapRunScheduler  Capability = "scheduler.run"
)

// Grant is one explicit share entry: it extends a principal's rights on a
// single contract. Absence of a grant is deny-by-default.
type Grant struct {
	ContractID  string     `json:"contract_id"`
	PrincipalID string     `json:"principal_id"`
	Capability  Capability `json:"capability"`
}

// Principal is the authenticated caller as supplied by the identity
// collaborator: id, role claim and any explicit grants.
type Principal struct {
	ID     string  `json:"id"`
	Role   Role    `json:"role"`
	Grants []Grant `json:"grants,omitempty"`
}

// HasGrant reports whether an explicit share covers (contract, capability).
func (p *Principal) HasGrant(contractID string, cap Capability) bool {
	for _, g := range p.Grants {
		if g.ContractID == contractID && g.Capability == cap {
			return true
		}
	}
	return false
}

// SystemPrincipal is the actor recorded for scheduler-driven mutations.
var SystemPrincipal = Principal{ID: "system", Role: RoleSystem}
