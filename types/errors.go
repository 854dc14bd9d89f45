package types

import "fmt"

// ValidationError rejects malformed input before any state change. Fully
// recoverable by caller correction.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return fmt.Sprintf("validation failed: %s", e.Reason)
	}
	return fmt.Sprintf("validation failed on %s: %s", e.Field, e.Reason)
}

// AuthorizationError means the principal lacks the capability. No partial
// effect; denials are counted in logs, never written to the audit ledger.
type AuthorizationError struct {
	PrincipalID string
	Capability  Capability
	Reason      string
}

func (e *AuthorizationError) Error() string {
	return fmt.Sprintf("principal %s denied %s: %s", e.PrincipalID, e.Capability, e.Reason)
}

// ConflictError signals a stale optimistic-concurrency token. The caller
// must refetch and retry; the engine never merges concurrent writes.
type ConflictError struct {
	ContractID      string
	ExpectedVersion int64
}

func (e *ConflictError) Error() string {
	return fmt.Sprintf("contract %s: expected version %d is stale", e.ContractID, e.ExpectedVersion)
}

// InvalidStateError rejects a transition not in the table, or any mutation
// of an Archived contract.
type InvalidStateError struct {
	ContractID string
	From       State
	To         State
	Reason     string
}

func (e *InvalidStateError) Error() string {
	if e.To != "" {
		return fmt.Sprintf("contract %s: no transition %s -> %s", e.ContractID, e.From, e.To)
	}
	return fmt.Sprintf("contract %s in state %s: %s", e.ContractID, e.From, e.Reason)
}

// SequenceGapError is an internal-consistency fault: an audit append did not
// carry the next expected per-contract sequence number. It implies a bug in
// the single-writer discipline and needs operator attention.
type SequenceGapError struct {
	ContractID string
	Expected   int64
	Got        int64
}

func (e *SequenceGapError) Error() string {
	return fmt.Sprintf("audit sequence gap on contract %s: expected %d, got %d", e.ContractID, e.Expected, e.Got)
}

// NotFoundError reports a missing entity by kind and id.
type NotFoundError struct {
	Kind string
	ID   string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s %s not found", e.Kind, e.ID)
}
