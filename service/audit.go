package service

import (
	"context"

	"contract-engine/storage"
	"contract-engine/types"
)

// AuditService is the export/query surface of the ledger. Nothing else
// reads the ledger; nothing at all rewrites it.
type AuditService struct {
	store storage.Store
	gate  *Gate
}

func NewAuditService(store storage.Store, gate *Gate) *AuditService {
	return &AuditService{store: store, gate: gate}
}

// Query returns the contract's events ordered by sequence, fromSeq
// inclusive, toSeq <= 0 for no upper bound. Restart by passing the last
// seen sequence + 1. Audit export stays available even for Archived
// contracts.
func (s *AuditService) Query(ctx context.Context, p *types.Principal, contractID string, fromSeq, toSeq int64) ([]types.AuditEvent, error) {
	c, err := s.store.GetContract(ctx, contractID)
	if err != nil {
		return nil, err
	}
	grants, err := s.store.ListGrants(ctx, contractID)
	if err != nil {
		return nil, err
	}
	if err := s.gate.Authorize(p, types.CapReadContract, c, grants); err != nil {
		return nil, err
	}
	if fromSeq < 1 {
		fromSeq = 1
	}
	return s.store.QueryEvents(ctx, contractID, fromSeq, toSeq)
}

// Verify recomputes every event's payload hash and reports the first
// mismatch. Detection only: prevention is the append-only single-writer
// discipline on the write path.
func (s *AuditService) Verify(ctx context.Context, p *types.Principal, contractID string) (*types.VerifyResult, error) {
	c, err := s.store.GetContract(ctx, contractID)
	if err != nil {
		return nil, err
	}
	grants, err := s.store.ListGrants(ctx, contractID)
	if err != nil {
		return nil, err
	}
	if err := s.gate.Authorize(p, types.CapReadContract, c, grants); err != nil {
		return nil, err
	}

	result := &types.VerifyResult{ContractID: contractID, OK: true}
	const page = 256
	next := int64(1)
	for {
		events, err := s.store.QueryEvents(ctx, contractID, next, next+page-1)
		if err != nil {
			return nil, err
		}
		for i := range events {
			result.EventsChecked++
			ev := events[i]
			if ev.Sequence != next {
				// A gap is as bad as a bad hash.
				result.OK = false
				result.FirstMismatch = next
				return result, nil
			}
			if ev.ComputeHash() != ev.PayloadHash {
				result.OK = false
				result.FirstMismatch = ev.Sequence
				return result, nil
			}
			next++
		}
		if len(events) < page {
			return result, nil
		}
	}
}
