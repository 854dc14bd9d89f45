package service

import (
	"log/slog"
	"sync/atomic"

	"contract-engine/types"
)

// Gate is the authorization decision point. Authorize is a pure function of
// its arguments: no session memory, no cached decisions, so every mutating
// entry point calls it again on the current contract.
type Gate struct {
	denied atomic.Int64 // denied-attempt counter, surfaced via logs only
}

func NewGate() *Gate {
	return &Gate{}
}

// DeniedCount returns how many attempts the gate has rejected since start.
// Denials are an observability concern, never audit events.
func (g *Gate) DeniedCount() int64 {
	return g.denied.Load()
}

// Authorize decides (principal, capability, contract). extra holds
// server-side grants for the contract, merged with the grants the identity
// collaborator embedded in the principal. Absence of a grant is deny.
func (g *Gate) Authorize(p *types.Principal, cap types.Capability, c *types.Contract, extra []types.Grant) error {
	if allowed, reason := g.decide(p, cap, c, extra); !allowed {
		g.denied.Add(1)
		slog.Warn("authorization denied",
			"principal", p.ID,
			"role", p.Role,
			"capability", cap,
			"contract", c.ID,
			"reason", reason,
		)
		return &types.AuthorizationError{PrincipalID: p.ID, Capability: cap, Reason: reason}
	}
	return nil
}

func (g *Gate) decide(p *types.Principal, cap types.Capability, c *types.Contract, extra []types.Grant) (bool, string) {
	switch p.Role {
	case types.RoleITAdmin:
		return true, ""

	case types.RoleSystem:
		// The scheduler actor drives clock-guarded edges only.
		switch cap {
		case types.CapMarkExpiring, types.CapTerminate, types.CapArchive, types.CapRunScheduler, types.CapReadContract:
			return true, ""
		}
		return false, "system actor limited to clock-driven actions"

	case types.RoleBusinessAdmin:
		switch cap {
		case types.CapApproveField:
			// Business Admin cannot approve extractions on contracts they
			// do not own unless explicitly shared.
			if c.OwnerID == p.ID || hasGrant(p, extra, c.ID, cap) {
				return true, ""
			}
			return false, "approval requires ownership or an explicit share"
		case types.CapArchive, types.CapRunScheduler:
			return false, "archival is restricted to IT admin or the scheduled job"
		case types.CapRenew, types.CapMarkExpiring:
			// The renewal decision and the manual expiring trigger belong to
			// the contract owner (or the clock), not to admins at large.
			if c.OwnerID == p.ID || hasGrant(p, extra, c.ID, cap) {
				return true, ""
			}
			return false, "lifecycle edge reserved for the contract owner"
		default:
			return true, ""
		}

	case types.RoleOwner:
		if cap == types.CapReadContract {
			return true, ""
		}
		if c.OwnerID == p.ID {
			switch cap {
			case types.CapArchive:
				return false, "archival is restricted to IT admin or the scheduled job"
			case types.CapRunScheduler:
				return false, "owners do not run the scheduler"
			default:
				return true, ""
			}
		}
		if hasGrant(p, extra, c.ID, cap) {
			return true, ""
		}
		return false, "not the contract owner and no explicit share"

	case types.RoleReviewer:
		switch cap {
		case types.CapApproveField, types.CapReadContract:
			return true, ""
		}
		return false, "reviewers may only approve or reject extractions"
	}

	return false, "unknown role"
}

func hasGrant(p *types.Principal, extra []types.Grant, contractID string, cap types.Capability) bool {
	if p.HasGrant(contractID, cap) {
		return true
	}
	for _, g := range extra {
		if g.ContractID == contractID && g.PrincipalID == p.ID && g.Capability == cap {
			return true
		}
	}
	return false
}
