// Package storage defines the persistence ports the engine's services talk
// to. Two implementations exist: storage/postgres (gorm) for deployments and
// storage/memory for tests and single-node dev mode.
//
// Every mutator that changes contract state takes the audit event recording
// it and commits both in one atomic unit: a state change is never persisted
// without its audit record, and an audit record is never written unless the
// state change happened.
package storage

import (
	"context"

	"contract-engine/types"
)

// ContractStore owns the contract aggregate and its transition commits.
type ContractStore interface {
	// CreateContract persists a new Draft contract together with its
	// contract.created audit event (sequence 1).
	CreateContract(ctx context.Context, c *types.Contract, ev *types.AuditEvent) error

	GetContract(ctx context.Context, id string) (*types.Contract, error)
	ListContracts(ctx context.Context, states ...types.State) ([]*types.Contract, error)
	CountByState(ctx context.Context) ([]types.StateCount, error)

	// CommitTransition atomically applies the already-validated contract
	// update and appends its audit event. It fails with ConflictError when
	// expectedVersion is stale and SequenceGapError when ev.Sequence is not
	// the next per-contract sequence number; in either case nothing is
	// written.
	CommitTransition(ctx context.Context, updated *types.Contract, expectedVersion int64, ev *types.AuditEvent) error
}

// DocumentStore keeps the per-contract document-version registry
// (metadata and content hash only, never bytes).
type DocumentStore interface {
	// RecordDocument assigns the next per-contract version, persists the
	// ref and appends its audit event atomically.
	RecordDocument(ctx context.Context, doc *types.DocumentRef, ev *types.AuditEvent) error
	ListDocuments(ctx context.Context, contractID string) ([]types.DocumentRef, error)
}

// ProvenanceStore keeps extraction batches and verified field records.
type ProvenanceStore interface {
	// SaveBatch persists a new batch of provisional candidates and its
	// audit event. Verified field records are never touched.
	SaveBatch(ctx context.Context, batch *types.ExtractionBatch, ev *types.AuditEvent) error

	GetBatch(ctx context.Context, id string) (*types.ExtractionBatch, error)
	ListBatches(ctx context.Context, contractID string) ([]*types.ExtractionBatch, error)

	// CommitApproval atomically writes the verified field record, the
	// updated batch, the contract version bump and the audit event.
	// expectedVersion serializes approvals against lifecycle transitions.
	CommitApproval(ctx context.Context, contractID string, expectedVersion int64, batch *types.ExtractionBatch, rec *types.FieldRecord, ev *types.AuditEvent) error

	// CommitBatchUpdate persists a candidate rejection or batch
	// cancellation with its audit event. Field records stay untouched.
	CommitBatchUpdate(ctx context.Context, batch *types.ExtractionBatch, ev *types.AuditEvent) error

	// GetField returns the verified record for (contract, field), or a
	// NotFoundError when no approval exists yet.
	GetField(ctx context.Context, contractID, name string) (*types.FieldRecord, error)
	ListFields(ctx context.Context, contractID string) ([]types.FieldRecord, error)
}

// AuditStore is the read surface of the append-only ledger plus the sequence
// cursor mutating commits build on. There is no update or delete, anywhere.
type AuditStore interface {
	LastSequence(ctx context.Context, contractID string) (int64, error)

	// QueryEvents returns events ordered by sequence, fromSeq inclusive.
	// toSeq <= 0 means no upper bound. Restart a query by passing the last
	// seen sequence + 1.
	QueryEvents(ctx context.Context, contractID string, fromSeq, toSeq int64) ([]types.AuditEvent, error)
}

// TaskStore keeps notification tasks for the reconciliation pass.
type TaskStore interface {
	GetTask(ctx context.Context, id string) (*types.NotificationTask, error)
	// ActiveTask returns the one non-superseded task for (contract, kind,
	// level), or nil when none exists.
	ActiveTask(ctx context.Context, contractID string, kind types.NotificationKind, level int) (*types.NotificationTask, error)
	ListTasks(ctx context.Context, contractID string) ([]types.NotificationTask, error)
	ListByStatus(ctx context.Context, status types.DeliveryStatus) ([]types.NotificationTask, error)
	SaveTask(ctx context.Context, task *types.NotificationTask) error
	UpdateTaskStatus(ctx context.Context, id string, status types.DeliveryStatus) error
}

// GrantStore holds explicit per-contract shares.
type GrantStore interface {
	SaveGrant(ctx context.Context, g *types.Grant) error
	ListGrants(ctx context.Context, contractID string) ([]types.Grant, error)
}

// Store is the full persistence surface the engine wires at startup.
type Store interface {
	ContractStore
	DocumentStore
	ProvenanceStore
	AuditStore
	TaskStore
	GrantStore
}
