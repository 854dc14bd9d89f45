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

// TransitionRequest carries everything a caller supplies for one edge.
// ExpectedVersion is the optimistic-concurrency token: when it is stale the
// commit fails with ConflictError and the caller retries against the
// refreshed contract.
type TransitionRequest struct {
	Target          types.State `json:"target"`
	ExpectedVersion int64       `json:"expected_version"`
	Reason          string      `json:"reason"`

	// Renewal edge (Expiring -> Active) only.
	EffectiveDate   *time.Time `json:"effective_date,omitempty"`
	TerminationDate *time.Time `json:"termination_date,omitempty"`

	// Archive edge only: external retention-policy input.
	RetentionHoldExpired bool `json:"retention_hold_expired,omitempty"`
}

type guardFunc func(c *types.Contract, req *TransitionRequest, p *types.Principal, now time.Time) error
type applyFunc func(c *types.Contract, req *TransitionRequest, now time.Time)

// transitionRule is one edge of the fixed lifecycle graph. The graph is a
// plain table, not a rule engine, so each guard stays testable in isolation.
type transitionRule struct {
	from       types.State
	to         types.State
	capability types.Capability
	guard      guardFunc
	apply      applyFunc
}

var transitionTable = []transitionRule{
	{
		from:       types.StateDraft,
		to:         types.StateActive,
		capability: types.CapActivate,
		guard: func(c *types.Contract, _ *TransitionRequest, _ *types.Principal, _ time.Time) error {
			if c.OwnerID == "" {
				return &types.ValidationError{Field: "owner_id", Reason: "owner must be set before activation"}
			}
			if c.VendorID == "" {
				return &types.ValidationError{Field: "vendor_id", Reason: "vendor must be set before activation"}
			}
			if c.EffectiveDate == nil {
				return &types.ValidationError{Field: "effective_date", Reason: "effective date required for activation"}
			}
			return nil
		},
		apply: func(c *types.Contract, _ *TransitionRequest, _ time.Time) {
			c.State = types.StateActive
		},
	},
	{
		from:       types.StateActive,
		to:         types.StateExpiring,
		capability: types.CapMarkExpiring,
		guard: func(c *types.Contract, _ *TransitionRequest, p *types.Principal, now time.Time) error {
			// Inside the notice window the clock drives the edge; outside
			// it only a human trigger is accepted.
			if p.Role != types.RoleSystem {
				return nil
			}
			deadline := c.NoticeDeadline()
			if deadline == nil {
				return &types.ValidationError{Field: "termination_date", Reason: "termination date required to enter notice window"}
			}
			if now.Before(*deadline) {
				return &types.ValidationError{Field: "termination_date", Reason: "outside the notice window"}
			}
			return nil
		},
		apply: func(c *types.Contract, _ *TransitionRequest, _ time.Time) {
			c.State = types.StateExpiring
		},
	},
	{
		from:       types.StateExpiring,
		to:         types.StateTerminated,
		capability: types.CapTerminate,
		guard: func(c *types.Contract, _ *TransitionRequest, _ *types.Principal, now time.Time) error {
			if c.RenewalIntent == types.IntentTerminate {
				return nil
			}
			if c.RenewalIntent == types.IntentRenew {
				// A recorded renew decision must be withdrawn before the
				// contract can be terminated by date alone.
				return &types.ValidationError{Field: "renewal_intent", Reason: "contract has a recorded renew decision"}
			}
			if c.TerminationDate != nil && !now.Before(*c.TerminationDate) {
				// Termination date reached with no renewal action.
				return nil
			}
			return &types.ValidationError{Field: "renewal_intent", Reason: "no terminate decision and termination date not reached"}
		},
		apply: func(c *types.Contract, req *TransitionRequest, _ time.Time) {
			c.State = types.StateTerminated
			c.RenewalIntent = types.IntentTerminate
			if req.Reason != "" {
				c.RenewalRationale = req.Reason
			}
		},
	},
	{
		from:       types.StateExpiring,
		to:         types.StateActive,
		capability: types.CapRenew,
		guard: func(c *types.Contract, req *TransitionRequest, _ *types.Principal, _ time.Time) error {
			if c.RenewalIntent != types.IntentRenew {
				return &types.ValidationError{Field: "renewal_intent", Reason: "renewal requires a recorded renew decision"}
			}
			if req.EffectiveDate == nil || req.TerminationDate == nil {
				return &types.ValidationError{Field: "termination_date", Reason: "renewal requires new effective and termination dates"}
			}
			if !req.TerminationDate.After(*req.EffectiveDate) {
				return &types.ValidationError{Field: "termination_date", Reason: "termination date must follow effective date"}
			}
			return nil
		},
		apply: func(c *types.Contract, req *TransitionRequest, _ time.Time) {
			c.State = types.StateActive
			c.EffectiveDate = req.EffectiveDate
			c.TerminationDate = req.TerminationDate
			c.RenewalIntent = types.IntentUndecided
			if req.Reason != "" {
				c.RenewalRationale = req.Reason
			}
		},
	},
	{
		from:       types.StateTerminated,
		to:         types.StateArchived,
		capability: types.CapArchive,
		guard: func(_ *types.Contract, req *TransitionRequest, _ *types.Principal, _ time.Time) error {
			if !req.RetentionHoldExpired {
				return &types.ValidationError{Field: "retention_hold_expired", Reason: "retention hold still in effect"}
			}
			return nil
		},
		apply: func(c *types.Contract, _ *TransitionRequest, _ time.Time) {
			c.State = types.StateArchived
		},
	},
}

func findRule(from, to types.State) *transitionRule {
	for i := range transitionTable {
		if transitionTable[i].from == from && transitionTable[i].to == to {
			return &transitionTable[i]
		}
	}
	return nil
}

// CreateContractInput is the payload for creating a Draft.
type CreateContractInput struct {
	Title            string     `json:"title"`
	OwnerID          string     `json:"owner_id"`
	VendorID         string     `json:"vendor_id"`
	EffectiveDate    *time.Time `json:"effective_date"`
	TerminationDate  *time.Time `json:"termination_date"`
	NoticePeriodDays int        `json:"notice_period_days"`
	Sensitive        bool       `json:"sensitive"`
	Tags             []string   `json:"tags"`
}

// UpdateDraftInput corrects a Draft in place. Non-nil fields are applied.
type UpdateDraftInput struct {
	ExpectedVersion  int64      `json:"expected_version"`
	Title            *string    `json:"title"`
	VendorID         *string    `json:"vendor_id"`
	EffectiveDate    *time.Time `json:"effective_date"`
	TerminationDate  *time.Time `json:"termination_date"`
	NoticePeriodDays *int       `json:"notice_period_days"`
	Sensitive        *bool      `json:"sensitive"`
	Tags             []string   `json:"tags"`
}

// LifecycleService owns contract state and validates every transition
// against the table, the guard and the authorization gate before the store
// commits state + audit event atomically.
type LifecycleService struct {
	store storage.Store
	gate  *Gate
	clock func() time.Time
}

func NewLifecycleService(store storage.Store, gate *Gate) *LifecycleService {
	return &LifecycleService{store: store, gate: gate, clock: time.Now}
}

// WithClock overrides the time source, for deterministic tests.
func (s *LifecycleService) WithClock(clock func() time.Time) *LifecycleService {
	s.clock = clock
	return s
}

func (s *LifecycleService) Create(ctx context.Context, p *types.Principal, in *CreateContractInput) (*types.Contract, error) {
	if in.Title == "" {
		return nil, &types.ValidationError{Field: "title", Reason: "required"}
	}
	if p.Role == types.RoleReviewer || p.Role == types.RoleSystem {
		return nil, &types.AuthorizationError{PrincipalID: p.ID, Capability: types.CapEditContract, Reason: "role cannot create contracts"}
	}
	ownerID := in.OwnerID
	if ownerID == "" {
		ownerID = p.ID
	}
	if in.NoticePeriodDays < 0 {
		return nil, &types.ValidationError{Field: "notice_period_days", Reason: "must not be negative"}
	}

	now := s.clock()
	c := &types.Contract{
		ID:               uuid.NewString(),
		Title:            in.Title,
		State:            types.StateDraft,
		OwnerID:          ownerID,
		VendorID:         in.VendorID,
		EffectiveDate:    in.EffectiveDate,
		TerminationDate:  in.TerminationDate,
		NoticePeriodDays: in.NoticePeriodDays,
		RenewalIntent:    types.IntentUndecided,
		Sensitive:        in.Sensitive,
		Tags:             in.Tags,
		Version:          1,
		CreatedAt:        now,
		UpdatedAt:        now,
	}
	ev := &types.AuditEvent{
		ContractID: c.ID,
		Sequence:   1,
		ActorID:    p.ID,
		Action:     types.ActionContractCreated,
		AfterState: types.StateDraft,
		Detail:     fmt.Sprintf("contract %q created", in.Title),
		Timestamp:  now,
	}
	ev.Seal()

	if err := s.store.CreateContract(ctx, c, ev); err != nil {
		return nil, err
	}
	logger.Info(ctx, "contract created", "contract_id", c.ID, "owner", ownerID)
	return c, nil
}

func (s *LifecycleService) Get(ctx context.Context, p *types.Principal, id string) (*types.Contract, error) {
	c, err := s.store.GetContract(ctx, id)
	if err != nil {
		return nil, err
	}
	grants, err := s.store.ListGrants(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := s.gate.Authorize(p, types.CapReadContract, c, grants); err != nil {
		return nil, err
	}
	return c, nil
}

func (s *LifecycleService) List(ctx context.Context) ([]*types.Contract, error) {
	return s.store.ListContracts(ctx)
}

func (s *LifecycleService) Stats(ctx context.Context) ([]types.StateCount, error) {
	return s.store.CountByState(ctx)
}

// Transition executes one edge of the lifecycle graph. Order matters: edge
// lookup, then guard, then authorization, then the atomic commit; any
// failure leaves the contract unchanged with no event emitted.
func (s *LifecycleService) Transition(ctx context.Context, p *types.Principal, contractID string, req *TransitionRequest) (*types.Contract, error) {
	c, err := s.store.GetContract(ctx, contractID)
	if err != nil {
		return nil, err
	}
	if !c.Mutable() {
		return nil, &types.InvalidStateError{ContractID: c.ID, From: c.State, Reason: "archived contracts are read-only"}
	}

	rule := findRule(c.State, req.Target)
	if rule == nil {
		return nil, &types.InvalidStateError{ContractID: c.ID, From: c.State, To: req.Target}
	}

	now := s.clock()
	if err := rule.guard(c, req, p, now); err != nil {
		return nil, err
	}

	grants, err := s.store.ListGrants(ctx, c.ID)
	if err != nil {
		return nil, err
	}
	if err := s.gate.Authorize(p, rule.capability, c, grants); err != nil {
		return nil, err
	}

	updated := *c
	if c.Tags != nil {
		updated.Tags = append([]string(nil), c.Tags...)
	}
	rule.apply(&updated, req, now)
	updated.Version = req.ExpectedVersion + 1
	updated.UpdatedAt = now

	last, err := s.store.LastSequence(ctx, c.ID)
	if err != nil {
		return nil, err
	}
	ev := &types.AuditEvent{
		ContractID:  c.ID,
		Sequence:    last + 1,
		ActorID:     p.ID,
		Action:      types.ActionStateTransition,
		BeforeState: c.State,
		AfterState:  updated.State,
		Detail:      req.Reason,
		Timestamp:   now,
	}
	ev.Seal()

	if err := s.store.CommitTransition(ctx, &updated, req.ExpectedVersion, ev); err != nil {
		return nil, err
	}
	logger.Info(ctx, "contract transitioned",
		"contract_id", c.ID,
		"from", c.State,
		"to", updated.State,
		"actor", p.ID,
		"version", updated.Version,
	)
	return &updated, nil
}

// UpdateDraft corrects a Draft in place; other states only change through
// transitions.
func (s *LifecycleService) UpdateDraft(ctx context.Context, p *types.Principal, contractID string, in *UpdateDraftInput) (*types.Contract, error) {
	c, err := s.store.GetContract(ctx, contractID)
	if err != nil {
		return nil, err
	}
	if c.State != types.StateDraft {
		return nil, &types.InvalidStateError{ContractID: c.ID, From: c.State, Reason: "in-place corrections are limited to drafts"}
	}
	grants, err := s.store.ListGrants(ctx, c.ID)
	if err != nil {
		return nil, err
	}
	if err := s.gate.Authorize(p, types.CapEditContract, c, grants); err != nil {
		return nil, err
	}

	updated := *c
	if in.Title != nil {
		if *in.Title == "" {
			return nil, &types.ValidationError{Field: "title", Reason: "required"}
		}
		updated.Title = *in.Title
	}
	if in.VendorID != nil {
		updated.VendorID = *in.VendorID
	}
	if in.EffectiveDate != nil {
		updated.EffectiveDate = in.EffectiveDate
	}
	if in.TerminationDate != nil {
		updated.TerminationDate = in.TerminationDate
	}
	if in.NoticePeriodDays != nil {
		if *in.NoticePeriodDays < 0 {
			return nil, &types.ValidationError{Field: "notice_period_days", Reason: "must not be negative"}
		}
		updated.NoticePeriodDays = *in.NoticePeriodDays
	}
	if in.Sensitive != nil {
		updated.Sensitive = *in.Sensitive
	}
	if in.Tags != nil {
		updated.Tags = in.Tags
	}

	now := s.clock()
	updated.Version = in.ExpectedVersion + 1
	updated.UpdatedAt = now

	last, err := s.store.LastSequence(ctx, c.ID)
	if err != nil {
		return nil, err
	}
	ev := &types.AuditEvent{
		ContractID:  c.ID,
		Sequence:    last + 1,
		ActorID:     p.ID,
		Action:      types.ActionContractUpdated,
		BeforeState: c.State,
		AfterState:  c.State,
		Detail:      "draft corrected in place",
		Timestamp:   now,
	}
	ev.Seal()

	if err := s.store.CommitTransition(ctx, &updated, in.ExpectedVersion, ev); err != nil {
		return nil, err
	}
	return &updated, nil
}

// IntentRequest records the renewal decision ahead of the edge that acts
// on it. Intent is input to the Expiring guards: terminate permits the
// Terminated edge immediately, renew stops the scheduler from
// auto-terminating while the replacement dates are negotiated.
type IntentRequest struct {
	ExpectedVersion int64               `json:"expected_version"`
	Intent          types.RenewalIntent `json:"intent"`
	Rationale       string              `json:"rationale"`
}

func (s *LifecycleService) RecordIntent(ctx context.Context, p *types.Principal, contractID string, req *IntentRequest) (*types.Contract, error) {
	switch req.Intent {
	case types.IntentUndecided, types.IntentRenew, types.IntentTerminate:
	default:
		return nil, &types.ValidationError{Field: "intent", Reason: "must be undecided, renew or terminate"}
	}

	c, err := s.store.GetContract(ctx, contractID)
	if err != nil {
		return nil, err
	}
	if c.State != types.StateActive && c.State != types.StateExpiring {
		return nil, &types.InvalidStateError{ContractID: c.ID, From: c.State, Reason: "renewal decisions apply to active or expiring contracts"}
	}
	grants, err := s.store.ListGrants(ctx, c.ID)
	if err != nil {
		return nil, err
	}
	if err := s.gate.Authorize(p, types.CapEditContract, c, grants); err != nil {
		return nil, err
	}

	now := s.clock()
	updated := *c
	updated.RenewalIntent = req.Intent
	updated.RenewalRationale = req.Rationale
	updated.Version = req.ExpectedVersion + 1
	updated.UpdatedAt = now

	last, err := s.store.LastSequence(ctx, c.ID)
	if err != nil {
		return nil, err
	}
	ev := &types.AuditEvent{
		ContractID:  c.ID,
		Sequence:    last + 1,
		ActorID:     p.ID,
		Action:      types.ActionContractUpdated,
		BeforeState: c.State,
		AfterState:  c.State,
		Detail:      fmt.Sprintf("renewal intent set to %s: %s", req.Intent, req.Rationale),
		Timestamp:   now,
	}
	ev.Seal()

	if err := s.store.CommitTransition(ctx, &updated, req.ExpectedVersion, ev); err != nil {
		return nil, err
	}
	logger.Info(ctx, "renewal intent recorded", "contract_id", c.ID, "intent", req.Intent, "actor", p.ID)
	return &updated, nil
}

// Share adds an explicit grant for a contract. Only the owner, a business
// admin or IT admin may share.
func (s *LifecycleService) Share(ctx context.Context, p *types.Principal, g *types.Grant) error {
	c, err := s.store.GetContract(ctx, g.ContractID)
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
	if err := s.gate.Authorize(p, types.CapEditContract, c, grants); err != nil {
		return err
	}
	if g.PrincipalID == "" || g.Capability == "" {
		return &types.ValidationError{Field: "grant", Reason: "principal and capability required"}
	}
	return s.store.SaveGrant(ctx, g)
}

// RecordDocument registers document-version metadata against a contract.
// Only the hash travels through the engine; bytes live with the document
// collaborator.
func (s *LifecycleService) RecordDocument(ctx context.Context, p *types.Principal, contractID, filename, sha256 string) (*types.DocumentRef, error) {
	if filename == "" || sha256 == "" {
		return nil, &types.ValidationError{Field: "document", Reason: "filename and sha256 required"}
	}
	c, err := s.store.GetContract(ctx, contractID)
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
	if err := s.gate.Authorize(p, types.CapEditContract, c, grants); err != nil {
		return nil, err
	}

	now := s.clock()
	doc := &types.DocumentRef{
		ID:         uuid.NewString(),
		ContractID: contractID,
		Filename:   filename,
		SHA256:     sha256,
		UploadedAt: now,
	}
	last, err := s.store.LastSequence(ctx, contractID)
	if err != nil {
		return nil, err
	}
	ev := &types.AuditEvent{
		ContractID:  contractID,
		Sequence:    last + 1,
		ActorID:     p.ID,
		Action:      types.ActionDocumentRecorded,
		BeforeState: c.State,
		AfterState:  c.State,
		Detail:      fmt.Sprintf("document %s recorded", filename),
		Timestamp:   now,
	}
	ev.Seal()

	if err := s.store.RecordDocument(ctx, doc, ev); err != nil {
		return nil, err
	}
	return doc, nil
}

func (s *LifecycleService) ListDocuments(ctx context.Context, p *types.Principal, contractID string) ([]types.DocumentRef, error) {
	if _, err := s.Get(ctx, p, contractID); err != nil {
		return nil, err
	}
	return s.store.ListDocuments(ctx, contractID)
}
