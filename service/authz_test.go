package service

import (
	"errors"
	"testing"

	"contract-engine/types"
)

func TestGatePolicy(t *testing.T) {
	contract := &types.Contract{ID: "c-1", State: types.StateActive, OwnerID: "alice"}

	tests := []struct {
		name      string
		principal types.Principal
		cap       types.Capability
		grants    []types.Grant
		allow     bool
	}{
		{
			name:      "it admin does everything",
			principal: types.Principal{ID: "ivan", Role: types.RoleITAdmin},
			cap:       types.CapArchive,
			allow:     true,
		},
		{
			name:      "owner edits own contract",
			principal: types.Principal{ID: "alice", Role: types.RoleOwner},
			cap:       types.CapEditContract,
			allow:     true,
		},
		{
			name:      "owner cannot archive",
			principal: types.Principal{ID: "alice", Role: types.RoleOwner},
			cap:       types.CapArchive,
			allow:     false,
		},
		{
			name:      "other owner reads only",
			principal: types.Principal{ID: "bob", Role: types.RoleOwner},
			cap:       types.CapReadContract,
			allow:     true,
		},
		{
			name:      "other owner cannot edit without a share",
			principal: types.Principal{ID: "bob", Role: types.RoleOwner},
			cap:       types.CapEditContract,
			allow:     false,
		},
		{
			name:      "share unlocks the granted capability",
			principal: types.Principal{ID: "bob", Role: types.RoleOwner},
			cap:       types.CapEditContract,
			grants:    []types.Grant{{ContractID: "c-1", PrincipalID: "bob", Capability: types.CapEditContract}},
			allow:     true,
		},
		{
			name:      "share is capability-scoped",
			principal: types.Principal{ID: "bob", Role: types.RoleOwner},
			cap:       types.CapTerminate,
			grants:    []types.Grant{{ContractID: "c-1", PrincipalID: "bob", Capability: types.CapEditContract}},
			allow:     false,
		},
		{
			name:      "business admin edits any contract",
			principal: types.Principal{ID: "bella", Role: types.RoleBusinessAdmin},
			cap:       types.CapEditContract,
			allow:     true,
		},
		{
			name:      "business admin cannot approve unowned extractions",
			principal: types.Principal{ID: "bella", Role: types.RoleBusinessAdmin},
			cap:       types.CapApproveField,
			allow:     false,
		},
		{
			name:      "business admin approves with a share",
			principal: types.Principal{ID: "bella", Role: types.RoleBusinessAdmin},
			cap:       types.CapApproveField,
			grants:    []types.Grant{{ContractID: "c-1", PrincipalID: "bella", Capability: types.CapApproveField}},
			allow:     true,
		},
		{
			name:      "business admin cannot renew an unowned contract",
			principal: types.Principal{ID: "bella", Role: types.RoleBusinessAdmin},
			cap:       types.CapRenew,
			allow:     false,
		},
		{
			name:      "business admin cannot mark an unowned contract expiring",
			principal: types.Principal{ID: "bella", Role: types.RoleBusinessAdmin},
			cap:       types.CapMarkExpiring,
			allow:     false,
		},
		{
			name:      "business admin renews with a share",
			principal: types.Principal{ID: "bella", Role: types.RoleBusinessAdmin},
			cap:       types.CapRenew,
			grants:    []types.Grant{{ContractID: "c-1", PrincipalID: "bella", Capability: types.CapRenew}},
			allow:     true,
		},
		{
			name:      "business admin cannot archive",
			principal: types.Principal{ID: "bella", Role: types.RoleBusinessAdmin},
			cap:       types.CapArchive,
			allow:     false,
		},
		{
			name:      "reviewer approves fields",
			principal: types.Principal{ID: "rita", Role: types.RoleReviewer},
			cap:       types.CapApproveField,
			allow:     true,
		},
		{
			name:      "reviewer never transitions",
			principal: types.Principal{ID: "rita", Role: types.RoleReviewer},
			cap:       types.CapTerminate,
			allow:     false,
		},
		{
			name:      "system drives clock edges",
			principal: types.SystemPrincipal,
			cap:       types.CapMarkExpiring,
			allow:     true,
		},
		{
			name:      "system never edits content",
			principal: types.SystemPrincipal,
			cap:       types.CapEditContract,
			allow:     false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			gate := NewGate()
			err := gate.Authorize(&tt.principal, tt.cap, contract, tt.grants)
			if tt.allow && err != nil {
				t.Errorf("expected allow, got %v", err)
			}
			if !tt.allow {
				var authErr *types.AuthorizationError
				if !errors.As(err, &authErr) {
					t.Errorf("expected AuthorizationError, got %v", err)
				}
				if gate.DeniedCount() != 1 {
					t.Errorf("denial not counted: %d", gate.DeniedCount())
				}
			}
		})
	}
}

func TestGateCountsDenials(t *testing.T) {
	gate := NewGate()
	contract := &types.Contract{ID: "c-1", OwnerID: "alice"}
	rita := &types.Principal{ID: "rita", Role: types.RoleReviewer}

	for i := 0; i < 3; i++ {
		_ = gate.Authorize(rita, types.CapTerminate, contract, nil)
	}
	if got := gate.DeniedCount(); got != 3 {
		t.Errorf("expected 3 denials, got %d", got)
	}
}

func TestGrantsEmbeddedInPrincipal(t *testing.T) {
	gate := NewGate()
	contract := &types.Contract{ID: "c-1", OwnerID: "alice"}
	bob := &types.Principal{
		ID:   "bob",
		Role: types.RoleOwner,
		Grants: []types.Grant{
			{ContractID: "c-1", PrincipalID: "bob", Capability: types.CapSubmitExtract},
		},
	}

	if err := gate.Authorize(bob, types.CapSubmitExtract, contract, nil); err != nil {
		t.Errorf("token-embedded grant ignored: %v", err)
	}
	if err := gate.Authorize(bob, types.CapSubmitExtract, &types.Contract{ID: "c-2", OwnerID: "alice"}, nil); err == nil {
		t.Error("grant must be scoped to its contract")
	}
}
