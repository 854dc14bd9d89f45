package service

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"contract-engine/pkg/logger"
	"contract-engine/storage"
	"contract-engine/types"
)

// Extractor is the opaque extraction collaborator: document text in,
// untrusted (field, value, confidence) tuples out. Production wires the
// eino/ollama adapter in logic/extract; tests use a fake.
type Extractor interface {
	Extract(ctx context.Context, text string) ([]types.ExtractedField, error)
}

// SubmitBatchInput carries candidates directly, or raw document text for
// the extractor to propose them.
type SubmitBatchInput struct {
	ContractID  string                 `json:"contract_id"`
	DocumentRef string                 `json:"document_ref"`
	ContentHash string                 `json:"content_hash"`
	Candidates  []types.FieldCandidate `json:"candidates"`
	Text        string                 `json:"text"`
}

// ProvenanceService coordinates the extraction workflow and owns the field
// records. Machine output stays provisional; only an explicit human
// approval produces an authoritative value.
type ProvenanceService struct {
	store     storage.Store
	gate      *Gate
	extractor Extractor
	clock     func() time.Time
}

func NewProvenanceService(store storage.Store, gate *Gate, extractor Extractor) *ProvenanceService {
	return &ProvenanceService{store: store, gate: gate, extractor: extractor, clock: time.Now}
}

func (s *ProvenanceService) WithClock(clock func() time.Time) *ProvenanceService {
	s.clock = clock
	return s
}

// SubmitBatch records a new batch of provisional candidates. Existing
// verified fields are never touched; conflicting candidates across batches
// simply coexist until a human decides.
func (s *ProvenanceService) SubmitBatch(ctx context.Context, p *types.Principal, in *SubmitBatchInput) (*types.ExtractionBatch, error) {
	c, err := s.store.GetContract(ctx, in.ContractID)
	if err != nil {
		return nil, err
	}
	if !c.Mutable() {
		return nil, &types.InvalidStateError{ContractID: c.ID, From: c.State, Reason: "archived contracts are read-only"}
	}
	grants, err := s.store.ListGrants(ctx, c.ID)
	if err != nil {
		return nil, err
	}
	if err := s.gate.Authorize(p, types.CapSubmitExtract, c, grants); err != nil {
		return nil, err
	}

	candidates := in.Candidates
	if len(candidates) == 0 && in.Text != "" {
		if s.extractor == nil {
			return nil, &types.ValidationError{Field: "text", Reason: "no extractor configured"}
		}
		fields, err := s.extractor.Extract(ctx, in.Text)
		if err != nil {
			return nil, fmt.Errorf("extraction failed: %w", err)
		}
		for _, f := range fields {
			candidates = append(candidates, types.FieldCandidate{
				Name:       f.Name,
				Value:      f.Value,
				Confidence: f.Confidence,
			})
		}
	}
	if len(candidates) == 0 {
		return nil, &types.ValidationError{Field: "candidates", Reason: "batch needs at least one candidate"}
	}
	for i := range candidates {
		if candidates[i].Name == "" {
			return nil, &types.ValidationError{Field: "candidates", Reason: "candidate field name required"}
		}
		candidates[i].Status = types.CandidatePending
	}

	now := s.clock()
	batch := &types.ExtractionBatch{
		ID:          uuid.NewString(),
		ContractID:  in.ContractID,
		DocumentRef: in.DocumentRef,
		ContentHash: in.ContentHash,
		Status:      types.BatchPending,
		Candidates:  candidates,
		SubmittedBy: p.ID,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	last, err := s.store.LastSequence(ctx, c.ID)
	if err != nil {
		return nil, err
	}
	ev := &types.AuditEvent{
		ContractID:  c.ID,
		Sequence:    last + 1,
		ActorID:     p.ID,
		Action:      types.ActionBatchSubmitted,
		BeforeState: c.State,
		AfterState:  c.State,
		Detail:      fmt.Sprintf("batch %s: %d candidates from %s", batch.ID, len(candidates), in.DocumentRef),
		Timestamp:   now,
	}
	ev.Seal()

	if err := s.store.SaveBatch(ctx, batch, ev); err != nil {
		return nil, err
	}
	logger.Info(ctx, "extraction batch submitted", "batch_id", batch.ID, "contract_id", c.ID, "candidates", len(candidates))
	return batch, nil
}

// Approve turns one pending candidate into the authoritative field value.
// finalValue lets the reviewer correct the machine's proposal; empty keeps
// it. The commit bumps the contract version once, like a transition does.
func (s *ProvenanceService) Approve(ctx context.Context, p *types.Principal, batchID, fieldName, finalValue string) (*types.FieldRecord, error) {
	batch, err := s.store.GetBatch(ctx, batchID)
	if err != nil {
		return nil, err
	}
	c, err := s.store.GetContract(ctx, batch.ContractID)
	if err != nil {
		return nil, err
	}
	if !c.Mutable() {
		return nil, &types.InvalidStateError{ContractID: c.ID, From: c.State, Reason: "archived contracts are read-only"}
	}
	grants, err := s.store.ListGrants(ctx, c.ID)
	if err != nil {
		return nil, err
	}
	if err := s.gate.Authorize(p, types.CapApproveField, c, grants); err != nil {
		return nil, err
	}

	idx := pendingCandidate(batch, fieldName)
	if idx < 0 {
		return nil, &types.ValidationError{Field: fieldName, Reason: "no pending candidate for this field in the batch"}
	}

	value := finalValue
	if value == "" {
		value = batch.Candidates[idx].Value
	}

	before := "<unverified>"
	if prev, err := s.store.GetField(ctx, c.ID, fieldName); err == nil {
		before = prev.Value
	}

	now := s.clock()
	batch.Candidates[idx].Status = types.CandidateApproved
	batch.Status = batch.DeriveStatus()
	batch.UpdatedAt = now

	rec := &types.FieldRecord{
		ContractID: c.ID,
		Name:       fieldName,
		Value:      value,
		Source:     types.SourceVerified,
		ApproverID: p.ID,
		BatchID:    batchID,
		UpdatedAt:  now,
	}

	last, err := s.store.LastSequence(ctx, c.ID)
	if err != nil {
		return nil, err
	}
	ev := &types.AuditEvent{
		ContractID:  c.ID,
		Sequence:    last + 1,
		ActorID:     p.ID,
		Action:      types.ActionFieldApproved,
		BeforeState: c.State,
		AfterState:  c.State,
		Detail:      fmt.Sprintf("field %s: %q -> %q (batch %s)", fieldName, before, value, batchID),
		Timestamp:   now,
	}
	ev.Seal()

	if err := s.store.CommitApproval(ctx, c.ID, c.Version, batch, rec, ev); err != nil {
		return nil, err
	}
	logger.Info(ctx, "field approved", "contract_id", c.ID, "field", fieldName, "approver", p.ID)
	return rec, nil
}

// Reject discards one pending candidate. Any verified value stays exactly
// as it was.
func (s *ProvenanceService) Reject(ctx context.Context, p *types.Principal, batchID, fieldName, reason string) error {
	batch, err := s.store.GetBatch(ctx, batchID)
	if err != nil {
		return err
	}
	c, err := s.store.GetContract(ctx, batch.ContractID)
	if err != nil {
		return err
	}
	if !c.Mutable() {
		return &types.InvalidStateError{ContractID: c.ID, From: c.State, Reason: "archived contracts are read-only"}
	}
	grants, err := s.store.ListGrants(ctx, c.ID)
	if err != nil {
		return err
	}
	if err := s.gate.Authorize(p, types.CapApproveField, c, grants); err != nil {
		return err
	}

	idx := pendingCandidate(batch, fieldName)
	if idx < 0 {
		return &types.ValidationError{Field: fieldName, Reason: "no pending candidate for this field in the batch"}
	}

	now := s.clock()
	batch.Candidates[idx].Status = types.CandidateRejected
	batch.Candidates[idx].Reason = reason
	batch.Status = batch.DeriveStatus()
	batch.UpdatedAt = now

	last, err := s.store.LastSequence(ctx, c.ID)
	if err != nil {
		return err
	}
	ev := &types.AuditEvent{
		ContractID:  c.ID,
		Sequence:    last + 1,
		ActorID:     p.ID,
		Action:      types.ActionFieldRejected,
		BeforeState: c.State,
		AfterState:  c.State,
		Detail:      fmt.Sprintf("field %s candidate rejected: %s (batch %s)", fieldName, reason, batchID),
		Timestamp:   now,
	}
	ev.Seal()

	return s.store.CommitBatchUpdate(ctx, batch, ev)
}

// Cancel discards a batch before any approval was recorded. Approved fields
// are final and only change through a new approval, so a batch with any
// approved candidate cannot be cancelled.
func (s *ProvenanceService) Cancel(ctx context.Context, p *types.Principal, batchID string) error {
	batch, err := s.store.GetBatch(ctx, batchID)
	if err != nil {
		return err
	}
	c, err := s.store.GetContract(ctx, batch.ContractID)
	if err != nil {
		return err
	}
	grants, err := s.store.ListGrants(ctx, c.ID)
	if err != nil {
		return err
	}
	if err := s.gate.Authorize(p, types.CapSubmitExtract, c, grants); err != nil {
		return err
	}
	for _, cand := range batch.Candidates {
		if cand.Status == types.CandidateApproved {
			return &types.ValidationError{Field: "batch", Reason: "batch already has approvals and cannot be cancelled"}
		}
	}

	now := s.clock()
	for i := range batch.Candidates {
		if batch.Candidates[i].Status == types.CandidatePending {
			batch.Candidates[i].Status = types.CandidateRejected
			batch.Candidates[i].Reason = "batch cancelled"
		}
	}
	batch.Status = types.BatchRejected
	batch.UpdatedAt = now

	last, err := s.store.LastSequence(ctx, c.ID)
	if err != nil {
		return err
	}
	ev := &types.AuditEvent{
		ContractID:  c.ID,
		Sequence:    last + 1,
		ActorID:     p.ID,
		Action:      types.ActionBatchCancelled,
		BeforeState: c.State,
		AfterState:  c.State,
		Detail:      fmt.Sprintf("batch %s cancelled", batchID),
		Timestamp:   now,
	}
	ev.Seal()

	return s.store.CommitBatchUpdate(ctx, batch, ev)
}

// FieldReport assembles the consumer view: the verified value when one
// exists, every pending candidate as provisional, and unverified status for
// fields no human has approved. Extracted and verified values are never
// merged.
func (s *ProvenanceService) FieldReport(ctx context.Context, p *types.Principal, contractID string) ([]types.FieldReport, error) {
	c, err := s.store.GetContract(ctx, contractID)
	if err != nil {
		return nil, err
	}
	grants, err := s.store.ListGrants(ctx, c.ID)
	if err != nil {
		return nil, err
	}
	if err := s.gate.Authorize(p, types.CapReadContract, c, grants); err != nil {
		return nil, err
	}

	verified, err := s.store.ListFields(ctx, contractID)
	if err != nil {
		return nil, err
	}
	batches, err := s.store.ListBatches(ctx, contractID)
	if err != nil {
		return nil, err
	}

	reports := make(map[string]*types.FieldReport)
	order := []string{}
	ensure := func(name string) *types.FieldReport {
		if r, ok := reports[name]; ok {
			return r
		}
		r := &types.FieldReport{Name: name, Status: types.FieldStatusUnverified}
		reports[name] = r
		order = append(order, name)
		return r
	}

	for _, rec := range verified {
		r := ensure(rec.Name)
		r.Status = types.FieldStatusVerified
		r.Value = rec.Value
		r.ApproverID = rec.ApproverID
	}
	for _, b := range batches {
		for _, cand := range b.Candidates {
			if cand.Status != types.CandidatePending {
				continue
			}
			r := ensure(cand.Name)
			r.Candidates = append(r.Candidates, types.FieldRecord{
				ContractID: contractID,
				Name:       cand.Name,
				Value:      cand.Value,
				Source:     types.SourceExtracted,
				Confidence: cand.Confidence,
				BatchID:    b.ID,
				UpdatedAt:  b.UpdatedAt,
			})
		}
	}

	out := make([]types.FieldReport, 0, len(order))
	for _, name := range order {
		out = append(out, *reports[name])
	}
	return out, nil
}

func (s *ProvenanceService) ListBatches(ctx context.Context, p *types.Principal, contractID string) ([]*types.ExtractionBatch, error) {
	c, err := s.store.GetContract(ctx, contractID)
	if err != nil {
		return nil, err
	}
	grants, err := s.store.ListGrants(ctx, c.ID)
	if err != nil {
		return nil, err
	}
	if err := s.gate.Authorize(p, types.CapReadContract, c, grants); err != nil {
		return nil, err
	}
	return s.store.ListBatches(ctx, contractID)
}

func pendingCandidate(batch *types.ExtractionBatch, fieldName string) int {
	for i := range batch.Candidates {
		if batch.Candidates[i].Name == fieldName && batch.Candidates[i].Status == types.CandidatePending {
			return i
		}
	}
	return -1
}
