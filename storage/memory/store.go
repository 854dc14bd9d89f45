// Package memory is the map-backed implementation of the storage ports,
// used by tests and the memory driver in dev mode. A single RWMutex guards
// the maps; commits for one contract are therefore trivially serialized and
// the ledger invariants are checked the same way the postgres store checks
// them.
package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"contract-engine/storage"
	"contract-engine/types"
)

type Store struct {
	mu        sync.RWMutex
	contracts map[string]*types.Contract
	events    map[string][]types.AuditEvent // contractID -> events ordered by sequence
	fields    map[string]map[string]types.FieldRecord
	batches   map[string]*types.ExtractionBatch
	docs      map[string][]types.DocumentRef
	tasks     map[string]*types.NotificationTask
	grants    map[string][]types.Grant
}

var _ storage.Store = (*Store)(nil)

func NewStore() *Store {
	return &Store{
		contracts: make(map[string]*types.Contract),
		events:    make(map[string][]types.AuditEvent),
		fields:    make(map[string]map[string]types.FieldRecord),
		batches:   make(map[string]*types.ExtractionBatch),
		docs:      make(map[string][]types.DocumentRef),
		tasks:     make(map[string]*types.NotificationTask),
		grants:    make(map[string][]types.Grant),
	}
}

// appendEvent enforces the gapless per-contract sequence. Callers hold mu.
func (s *Store) appendEvent(ev *types.AuditEvent) error {
	last := int64(0)
	if evs := s.events[ev.ContractID]; len(evs) > 0 {
		last = evs[len(evs)-1].Sequence
	}
	if ev.Sequence != last+1 {
		return &types.SequenceGapError{ContractID: ev.ContractID, Expected: last + 1, Got: ev.Sequence}
	}
	s.events[ev.ContractID] = append(s.events[ev.ContractID], *ev)
	return nil
}

func copyContract(c *types.Contract) *types.Contract {
	cp := *c
	if c.Tags != nil {
		cp.Tags = append([]string(nil), c.Tags...)
	}
	return &cp
}

func copyBatch(b *types.ExtractionBatch) *types.ExtractionBatch {
	cp := *b
	cp.Candidates = append([]types.FieldCandidate(nil), b.Candidates...)
	return &cp
}

func (s *Store) CreateContract(_ context.Context, c *types.Contract, ev *types.AuditEvent) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.appendEvent(ev); err != nil {
		return err
	}
	s.contracts[c.ID] = copyContract(c)
	return nil
}

func (s *Store) GetContract(_ context.Context, id string) (*types.Contract, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	c, ok := s.contracts[id]
	if !ok {
		return nil, &types.NotFoundError{Kind: "contract", ID: id}
	}
	return copyContract(c), nil
}

func (s *Store) ListContracts(_ context.Context, states ...types.State) ([]*types.Contract, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []*types.Contract
	for _, c := range s.contracts {
		if len(states) > 0 && !stateIn(c.State, states) {
			continue
		}
		out = append(out, copyContract(c))
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out, nil
}

func stateIn(st types.State, states []types.State) bool {
	for _, s := range states {
		if s == st {
			return true
		}
	}
	return false
}

func (s *Store) CountByState(_ context.Context) ([]types.StateCount, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	counts := make(map[types.State]int64)
	for _, c := range s.contracts {
		counts[c.State]++
	}
	out := make([]types.StateCount, 0, len(counts))
	for st, n := range counts {
		out = append(out, types.StateCount{State: st, Total: n})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].State < out[j].State })
	return out, nil
}

func (s *Store) CommitTransition(_ context.Context, updated *types.Contract, expectedVersion int64, ev *types.AuditEvent) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	current, ok := s.contracts[updated.ID]
	if !ok {
		return &types.NotFoundError{Kind: "contract", ID: updated.ID}
	}
	if current.Version != expectedVersion {
		return &types.ConflictError{ContractID: updated.ID, ExpectedVersion: expectedVersion}
	}
	if err := s.appendEvent(ev); err != nil {
		return err
	}
	s.contracts[updated.ID] = copyContract(updated)
	return nil
}

func (s *Store) RecordDocument(_ context.Context, doc *types.DocumentRef, ev *types.AuditEvent) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.contracts[doc.ContractID]; !ok {
		return &types.NotFoundError{Kind: "contract", ID: doc.ContractID}
	}
	doc.Version = len(s.docs[doc.ContractID]) + 1
	if err := s.appendEvent(ev); err != nil {
		return err
	}
	s.docs[doc.ContractID] = append(s.docs[doc.ContractID], *doc)
	return nil
}

func (s *Store) ListDocuments(_ context.Context, contractID string) ([]types.DocumentRef, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]types.DocumentRef(nil), s.docs[contractID]...), nil
}

func (s *Store) SaveBatch(_ context.Context, batch *types.ExtractionBatch, ev *types.AuditEvent) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.contracts[batch.ContractID]; !ok {
		return &types.NotFoundError{Kind: "contract", ID: batch.ContractID}
	}
	if err := s.appendEvent(ev); err != nil {
		return err
	}
	s.batches[batch.ID] = copyBatch(batch)
	return nil
}

func (s *Store) GetBatch(_ context.Context, id string) (*types.ExtractionBatch, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	b, ok := s.batches[id]
	if !ok {
		return nil, &types.NotFoundError{Kind: "extraction batch", ID: id}
	}
	return copyBatch(b), nil
}

func (s *Store) ListBatches(_ context.Context, contractID string) ([]*types.ExtractionBatch, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []*types.ExtractionBatch
	for _, b := range s.batches {
		if b.ContractID == contractID {
			out = append(out, copyBatch(b))
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out, nil
}

func (s *Store) CommitApproval(_ context.Context, contractID string, expectedVersion int64, batch *types.ExtractionBatch, rec *types.FieldRecord, ev *types.AuditEvent) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	current, ok := s.contracts[contractID]
	if !ok {
		return &types.NotFoundError{Kind: "contract", ID: contractID}
	}
	if current.Version != expectedVersion {
		return &types.ConflictError{ContractID: contractID, ExpectedVersion: expectedVersion}
	}
	if err := s.appendEvent(ev); err != nil {
		return err
	}
	if s.fields[contractID] == nil {
		s.fields[contractID] = make(map[string]types.FieldRecord)
	}
	s.fields[contractID][rec.Name] = *rec
	s.batches[batch.ID] = copyBatch(batch)
	cp := copyContract(current)
	cp.Version = expectedVersion + 1
	cp.UpdatedAt = ev.Timestamp
	s.contracts[contractID] = cp
	return nil
}

func (s *Store) CommitBatchUpdate(_ context.Context, batch *types.ExtractionBatch, ev *types.AuditEvent) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.batches[batch.ID]; !ok {
		return &types.NotFoundError{Kind: "extraction batch", ID: batch.ID}
	}
	if err := s.appendEvent(ev); err != nil {
		return err
	}
	s.batches[batch.ID] = copyBatch(batch)
	return nil
}

func (s *Store) GetField(_ context.Context, contractID, name string) (*types.FieldRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	rec, ok := s.fields[contractID][name]
	if !ok {
		return nil, &types.NotFoundError{Kind: "field", ID: contractID + "/" + name}
	}
	cp := rec
	return &cp, nil
}

func (s *Store) ListFields(_ context.Context, contractID string) ([]types.FieldRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]types.FieldRecord, 0, len(s.fields[contractID]))
	for _, rec := range s.fields[contractID] {
		out = append(out, rec)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

func (s *Store) LastSequence(_ context.Context, contractID string) (int64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	evs := s.events[contractID]
	if len(evs) == 0 {
		return 0, nil
	}
	return evs[len(evs)-1].Sequence, nil
}

func (s *Store) QueryEvents(_ context.Context, contractID string, fromSeq, toSeq int64) ([]types.AuditEvent, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []types.AuditEvent
	for _, ev := range s.events[contractID] {
		if ev.Sequence < fromSeq {
			continue
		}
		if toSeq > 0 && ev.Sequence > toSeq {
			break
		}
		out = append(out, ev)
	}
	return out, nil
}

func (s *Store) GetTask(_ context.Context, id string) (*types.NotificationTask, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	t, ok := s.tasks[id]
	if !ok {
		return nil, &types.NotFoundError{Kind: "notification task", ID: id}
	}
	cp := *t
	return &cp, nil
}

func (s *Store) ActiveTask(_ context.Context, contractID string, kind types.NotificationKind, level int) (*types.NotificationTask, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, t := range s.tasks {
		if t.ContractID == contractID && t.Kind == kind && t.Level == level && t.Active() {
			cp := *t
			return &cp, nil
		}
	}
	return nil, nil
}

func (s *Store) ListTasks(_ context.Context, contractID string) ([]types.NotificationTask, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []types.NotificationTask
	for _, t := range s.tasks {
		if t.ContractID == contractID {
			out = append(out, *t)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out, nil
}

func (s *Store) ListByStatus(_ context.Context, status types.DeliveryStatus) ([]types.NotificationTask, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []types.NotificationTask
	for _, t := range s.tasks {
		if t.Status == status {
			out = append(out, *t)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].DueAt.Before(out[j].DueAt) })
	return out, nil
}

func (s *Store) SaveTask(_ context.Context, task *types.NotificationTask) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	// One active task per (contract, kind, level): a concurrent pass that
	// already scheduled the same deadline wins and this save is a no-op.
	for _, t := range s.tasks {
		if t.ID != task.ID && t.ContractID == task.ContractID &&
			t.Kind == task.Kind && t.Level == task.Level && t.Active() {
			return nil
		}
	}
	cp := *task
	s.tasks[task.ID] = &cp
	return nil
}

func (s *Store) UpdateTaskStatus(_ context.Context, id string, status types.DeliveryStatus) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	t, ok := s.tasks[id]
	if !ok {
		return &types.NotFoundError{Kind: "notification task", ID: id}
	}
	t.Status = status
	t.UpdatedAt = time.Now()
	return nil
}

func (s *Store) SaveGrant(_ context.Context, g *types.Grant) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.grants[g.ContractID] = append(s.grants[g.ContractID], *g)
	return nil
}

func (s *Store) ListGrants(_ context.Context, contractID string) ([]types.Grant, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]types.Grant(nil), s.grants[contractID]...), nil
}
