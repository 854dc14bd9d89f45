package service

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"contract-engine/storage/memory"
	"contract-engine/types"
)

func date(s string) *time.Time {
	t, err := time.Parse("2006-01-02", s)
	if err != nil {
		panic(err)
	}
	return &t
}

func fixedClock(s string) func() time.Time {
	t := *date(s)
	return func() time.Time { return t }
}

type testEnv struct {
	store      *memory.Store
	gate       *Gate
	lifecycle  *LifecycleService
	provenance *ProvenanceService
	audit      *AuditService
}

func newTestEnv(now string) *testEnv {
	store := memory.NewStore()
	gate := NewGate()
	clock := fixedClock(now)
	return &testEnv{
		store:      store,
		gate:       gate,
		lifecycle:  NewLifecycleService(store, gate).WithClock(clock),
		provenance: NewProvenanceService(store, gate, nil).WithClock(clock),
		audit:      NewAuditService(store, gate),
	}
}

func ownerPrincipal(id string) *types.Principal {
	return &types.Principal{ID: id, Role: types.RoleOwner}
}

// newDraft creates a draft owned by "alice" that satisfies the activation
// guard.
func (e *testEnv) newDraft(t *testing.T) *types.Contract {
	t.Helper()
	c, err := e.lifecycle.Create(context.Background(), ownerPrincipal("alice"), &CreateContractInput{
		Title:            "SaaS subscription",
		VendorID:         "vendor-1",
		EffectiveDate:    date("2024-01-01"),
		TerminationDate:  date("2024-12-31"),
		NoticePeriodDays: 180,
	})
	if err != nil {
		t.Fatalf("create contract: %v", err)
	}
	return c
}

func (e *testEnv) mustTransition(t *testing.T, p *types.Principal, id string, req *TransitionRequest) *types.Contract {
	t.Helper()
	c, err := e.lifecycle.Transition(context.Background(), p, id, req)
	if err != nil {
		t.Fatalf("transition to %s: %v", req.Target, err)
	}
	return c
}

func TestCreateStartsInDraft(t *testing.T) {
	env := newTestEnv("2024-01-15")
	c := env.newDraft(t)

	if c.State != types.StateDraft {
		t.Errorf("expected Draft, got %s", c.State)
	}
	if c.Version != 1 {
		t.Errorf("expected version 1, got %d", c.Version)
	}

	events, err := env.store.QueryEvents(context.Background(), c.ID, 1, 0)
	if err != nil {
		t.Fatalf("query events: %v", err)
	}
	if len(events) != 1 {
		t.Fatalf("expected 1 audit event, got %d", len(events))
	}
	if events[0].Sequence != 1 || events[0].Action != types.ActionContractCreated {
		t.Errorf("unexpected first event: %+v", events[0])
	}
}

func TestValidTransitionIncrementsVersionAndAuditsOnce(t *testing.T) {
	env := newTestEnv("2024-01-15")
	c := env.newDraft(t)
	alice := ownerPrincipal("alice")

	updated := env.mustTransition(t, alice, c.ID, &TransitionRequest{
		Target:          types.StateActive,
		ExpectedVersion: c.Version,
		Reason:          "signed",
	})

	if updated.State != types.StateActive {
		t.Errorf("expected Active, got %s", updated.State)
	}
	if updated.Version != c.Version+1 {
		t.Errorf("expected version %d, got %d", c.Version+1, updated.Version)
	}

	events, _ := env.store.QueryEvents(context.Background(), c.ID, 1, 0)
	if len(events) != 2 {
		t.Fatalf("expected 2 events (create + transition), got %d", len(events))
	}
	ev := events[1]
	if ev.BeforeState != types.StateDraft || ev.AfterState != types.StateActive {
		t.Errorf("event states wrong: before=%s after=%s", ev.BeforeState, ev.AfterState)
	}
	if ev.Action != types.ActionStateTransition {
		t.Errorf("expected transition action, got %s", ev.Action)
	}
}

func TestInvalidEdgeFailsWithInvalidStateError(t *testing.T) {
	env := newTestEnv("2024-01-15")
	c := env.newDraft(t)
	alice := ownerPrincipal("alice")

	_, err := env.lifecycle.Transition(context.Background(), alice, c.ID, &TransitionRequest{
		Target:          types.StateTerminated,
		ExpectedVersion: c.Version,
	})
	var stateErr *types.InvalidStateError
	if !errors.As(err, &stateErr) {
		t.Fatalf("expected InvalidStateError, got %v", err)
	}

	refreshed, _ := env.store.GetContract(context.Background(), c.ID)
	if refreshed.State != types.StateDraft || refreshed.Version != 1 {
		t.Errorf("contract changed on failed transition: state=%s version=%d", refreshed.State, refreshed.Version)
	}
	events, _ := env.store.QueryEvents(context.Background(), c.ID, 1, 0)
	if len(events) != 1 {
		t.Errorf("failed transition emitted an event: %d events", len(events))
	}
}

func TestActivationGuardRequiresVendorAndEffectiveDate(t *testing.T) {
	env := newTestEnv("2024-01-15")
	alice := ownerPrincipal("alice")
	c, err := env.lifecycle.Create(context.Background(), alice, &CreateContractInput{
		Title: "incomplete deal",
	})
	if err != nil {
		t.Fatalf("create: %v", err)
	}

	_, err = env.lifecycle.Transition(context.Background(), alice, c.ID, &TransitionRequest{
		Target:          types.StateActive,
		ExpectedVersion: c.Version,
	})
	var valErr *types.ValidationError
	if !errors.As(err, &valErr) {
		t.Fatalf("expected ValidationError, got %v", err)
	}
}

func TestReviewerCannotTransition(t *testing.T) {
	env := newTestEnv("2024-01-15")
	c := env.newDraft(t)
	reviewer := &types.Principal{ID: "rita", Role: types.RoleReviewer}

	_, err := env.lifecycle.Transition(context.Background(), reviewer, c.ID, &TransitionRequest{
		Target:          types.StateActive,
		ExpectedVersion: c.Version,
	})
	var authErr *types.AuthorizationError
	if !errors.As(err, &authErr) {
		t.Fatalf("expected AuthorizationError, got %v", err)
	}

	refreshed, _ := env.store.GetContract(context.Background(), c.ID)
	if refreshed.State != types.StateDraft {
		t.Errorf("state changed on denied transition: %s", refreshed.State)
	}
	events, _ := env.store.QueryEvents(context.Background(), c.ID, 1, 0)
	if len(events) != 1 {
		t.Errorf("denied transition reached the ledger: %d events", len(events))
	}
	if env.gate.DeniedCount() == 0 {
		t.Error("denial was not counted")
	}
}

func TestConcurrentTransitionsOneWins(t *testing.T) {
	env := newTestEnv("2024-01-15")
	c := env.newDraft(t)
	alice := ownerPrincipal("alice")

	req := &TransitionRequest{Target: types.StateActive, ExpectedVersion: c.Version}
	errs := make([]error, 2)
	var wg sync.WaitGroup
	for i := 0; i < 2; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, errs[i] = env.lifecycle.Transition(context.Background(), alice, c.ID, req)
		}(i)
	}
	wg.Wait()

	var conflicts, successes int
	for _, err := range errs {
		switch {
		case err == nil:
			successes++
		default:
			var conflictErr *types.ConflictError
			if !errors.As(err, &conflictErr) {
				t.Fatalf("expected ConflictError, got %v", err)
			}
			conflicts++
		}
	}
	if successes != 1 || conflicts != 1 {
		t.Fatalf("expected exactly one winner, got %d successes %d conflicts", successes, conflicts)
	}

	// The loser retries against the refreshed contract: Active -> Expiring
	// by manual owner trigger.
	refreshed, _ := env.store.GetContract(context.Background(), c.ID)
	if _, err := env.lifecycle.Transition(context.Background(), alice, c.ID, &TransitionRequest{
		Target:          types.StateExpiring,
		ExpectedVersion: refreshed.Version,
	}); err != nil {
		t.Fatalf("retry after conflict failed: %v", err)
	}
}

func TestFullLifecycleToArchived(t *testing.T) {
	env := newTestEnv("2024-01-15")
	c := env.newDraft(t)
	alice := ownerPrincipal("alice")
	itAdmin := &types.Principal{ID: "ivan", Role: types.RoleITAdmin}

	c = env.mustTransition(t, alice, c.ID, &TransitionRequest{Target: types.StateActive, ExpectedVersion: 1})
	c = env.mustTransition(t, alice, c.ID, &TransitionRequest{Target: types.StateExpiring, ExpectedVersion: 2})

	// Terminating before the termination date needs a recorded decision.
	_, err := env.lifecycle.Transition(context.Background(), alice, c.ID, &TransitionRequest{
		Target:          types.StateTerminated,
		ExpectedVersion: 3,
	})
	var valErr *types.ValidationError
	if !errors.As(err, &valErr) {
		t.Fatalf("expected ValidationError without a terminate decision, got %v", err)
	}
	c, err = env.lifecycle.RecordIntent(context.Background(), alice, c.ID, &IntentRequest{
		ExpectedVersion: 3,
		Intent:          types.IntentTerminate,
		Rationale:       "vendor dropped",
	})
	if err != nil {
		t.Fatalf("record intent: %v", err)
	}

	c = env.mustTransition(t, alice, c.ID, &TransitionRequest{
		Target:          types.StateTerminated,
		ExpectedVersion: 4,
	})
	if c.RenewalIntent != types.IntentTerminate {
		t.Errorf("termination should keep intent, got %s", c.RenewalIntent)
	}

	// Owners cannot archive.
	_, err = env.lifecycle.Transition(context.Background(), alice, c.ID, &TransitionRequest{
		Target:               types.StateArchived,
		ExpectedVersion:      5,
		RetentionHoldExpired: true,
	})
	var authErr *types.AuthorizationError
	if !errors.As(err, &authErr) {
		t.Fatalf("expected AuthorizationError for owner archive, got %v", err)
	}

	// Retention hold still in effect.
	_, err = env.lifecycle.Transition(context.Background(), itAdmin, c.ID, &TransitionRequest{
		Target:          types.StateArchived,
		ExpectedVersion: 5,
	})
	if !errors.As(err, &valErr) {
		t.Fatalf("expected ValidationError without retention input, got %v", err)
	}

	c = env.mustTransition(t, itAdmin, c.ID, &TransitionRequest{
		Target:               types.StateArchived,
		ExpectedVersion:      5,
		RetentionHoldExpired: true,
	})
	if c.State != types.StateArchived || c.Version != 6 {
		t.Fatalf("expected Archived v6, got %s v%d", c.State, c.Version)
	}

	// Archived is read-only.
	_, err = env.lifecycle.UpdateDraft(context.Background(), itAdmin, c.ID, &UpdateDraftInput{ExpectedVersion: 6})
	var stateErr *types.InvalidStateError
	if !errors.As(err, &stateErr) {
		t.Fatalf("expected InvalidStateError on archived mutation, got %v", err)
	}
	// ...but audit export still works.
	events, err := env.audit.Query(context.Background(), itAdmin, c.ID, 1, 0)
	if err != nil {
		t.Fatalf("audit export on archived contract: %v", err)
	}
	if len(events) != 6 {
		t.Errorf("expected 6 events, got %d", len(events))
	}
}

func TestRenewalResetsDatesAndIntent(t *testing.T) {
	env := newTestEnv("2024-08-01")
	c := env.newDraft(t)
	alice := ownerPrincipal("alice")

	c = env.mustTransition(t, alice, c.ID, &TransitionRequest{Target: types.StateActive, ExpectedVersion: 1})
	c = env.mustTransition(t, alice, c.ID, &TransitionRequest{Target: types.StateExpiring, ExpectedVersion: 2})

	// Renewal without a recorded renew decision is rejected.
	_, err := env.lifecycle.Transition(context.Background(), alice, c.ID, &TransitionRequest{
		Target:          types.StateActive,
		ExpectedVersion: 3,
		EffectiveDate:   date("2025-01-01"),
		TerminationDate: date("2025-12-31"),
	})
	var valErr *types.ValidationError
	if !errors.As(err, &valErr) {
		t.Fatalf("expected ValidationError, got %v", err)
	}

	c, err = env.lifecycle.RecordIntent(context.Background(), alice, c.ID, &IntentRequest{
		ExpectedVersion: 3,
		Intent:          types.IntentRenew,
		Rationale:       "pricing still competitive",
	})
	if err != nil {
		t.Fatalf("record intent: %v", err)
	}

	// ...and with intent recorded, new dates are still mandatory.
	_, err = env.lifecycle.Transition(context.Background(), alice, c.ID, &TransitionRequest{
		Target:          types.StateActive,
		ExpectedVersion: 4,
	})
	if !errors.As(err, &valErr) {
		t.Fatalf("expected ValidationError without new dates, got %v", err)
	}

	c = env.mustTransition(t, alice, c.ID, &TransitionRequest{
		Target:          types.StateActive,
		ExpectedVersion: 4,
		EffectiveDate:   date("2025-01-01"),
		TerminationDate: date("2025-12-31"),
		Reason:          "renewed for 2025",
	})
	if c.State != types.StateActive {
		t.Errorf("expected Active after renewal, got %s", c.State)
	}
	if !c.TerminationDate.Equal(*date("2025-12-31")) {
		t.Errorf("termination date not replaced: %v", c.TerminationDate)
	}
	if c.RenewalIntent != types.IntentUndecided {
		t.Errorf("renewal must reset intent, got %s", c.RenewalIntent)
	}
}

func TestRenewalEdgesReservedForOwner(t *testing.T) {
	env := newTestEnv("2024-08-01")
	c := env.newDraft(t)
	alice := ownerPrincipal("alice")
	bella := &types.Principal{ID: "bella", Role: types.RoleBusinessAdmin}

	c = env.mustTransition(t, alice, c.ID, &TransitionRequest{Target: types.StateActive, ExpectedVersion: 1})

	var authErr *types.AuthorizationError
	_, err := env.lifecycle.Transition(context.Background(), bella, c.ID, &TransitionRequest{
		Target:          types.StateExpiring,
		ExpectedVersion: 2,
	})
	if !errors.As(err, &authErr) {
		t.Fatalf("business admin marked an unowned contract expiring: %v", err)
	}

	c = env.mustTransition(t, alice, c.ID, &TransitionRequest{Target: types.StateExpiring, ExpectedVersion: 2})
	if _, err := env.lifecycle.RecordIntent(context.Background(), alice, c.ID, &IntentRequest{
		ExpectedVersion: 3,
		Intent:          types.IntentRenew,
	}); err != nil {
		t.Fatalf("record intent: %v", err)
	}

	_, err = env.lifecycle.Transition(context.Background(), bella, c.ID, &TransitionRequest{
		Target:          types.StateActive,
		ExpectedVersion: 4,
		EffectiveDate:   date("2025-01-01"),
		TerminationDate: date("2025-12-31"),
	})
	if !errors.As(err, &authErr) {
		t.Fatalf("business admin renewed an unowned contract: %v", err)
	}

	// The owner completes the same edge.
	c = env.mustTransition(t, alice, c.ID, &TransitionRequest{
		Target:          types.StateActive,
		ExpectedVersion: 4,
		EffectiveDate:   date("2025-01-01"),
		TerminationDate: date("2025-12-31"),
	})
	if c.State != types.StateActive {
		t.Errorf("owner renewal failed, state %s", c.State)
	}
}

func TestRenewIntentBlocksManualTermination(t *testing.T) {
	env := newTestEnv("2025-01-02") // past the 2024-12-31 termination date
	c := env.newDraft(t)
	alice := ownerPrincipal("alice")

	c = env.mustTransition(t, alice, c.ID, &TransitionRequest{Target: types.StateActive, ExpectedVersion: 1})
	c = env.mustTransition(t, alice, c.ID, &TransitionRequest{Target: types.StateExpiring, ExpectedVersion: 2})
	if _, err := env.lifecycle.RecordIntent(context.Background(), alice, c.ID, &IntentRequest{
		ExpectedVersion: 3,
		Intent:          types.IntentRenew,
	}); err != nil {
		t.Fatalf("record intent: %v", err)
	}

	// Even past the termination date, the recorded renew decision holds.
	_, err := env.lifecycle.Transition(context.Background(), alice, c.ID, &TransitionRequest{
		Target:          types.StateTerminated,
		ExpectedVersion: 4,
	})
	var valErr *types.ValidationError
	if !errors.As(err, &valErr) {
		t.Fatalf("expected ValidationError while renew intent stands, got %v", err)
	}

	// Withdrawing the decision reopens the edge.
	if _, err := env.lifecycle.RecordIntent(context.Background(), alice, c.ID, &IntentRequest{
		ExpectedVersion: 4,
		Intent:          types.IntentTerminate,
		Rationale:       "negotiation fell through",
	}); err != nil {
		t.Fatalf("re-record intent: %v", err)
	}
	c = env.mustTransition(t, alice, c.ID, &TransitionRequest{
		Target:          types.StateTerminated,
		ExpectedVersion: 5,
	})
	if c.State != types.StateTerminated {
		t.Errorf("expected Terminated, got %s", c.State)
	}
}

func TestSystemMarkExpiringRespectsNoticeWindow(t *testing.T) {
	env := newTestEnv("2024-01-15") // termination 2024-12-31, notice 180d => window opens 2024-07-04
	c := env.newDraft(t)
	alice := ownerPrincipal("alice")
	c = env.mustTransition(t, alice, c.ID, &TransitionRequest{Target: types.StateActive, ExpectedVersion: 1})

	system := types.SystemPrincipal
	_, err := env.lifecycle.Transition(context.Background(), &system, c.ID, &TransitionRequest{
		Target:          types.StateExpiring,
		ExpectedVersion: 2,
	})
	var valErr *types.ValidationError
	if !errors.As(err, &valErr) {
		t.Fatalf("expected ValidationError outside notice window, got %v", err)
	}

	// Inside the window the clock may drive the edge.
	env.lifecycle.WithClock(fixedClock("2024-07-04"))
	if _, err := env.lifecycle.Transition(context.Background(), &system, c.ID, &TransitionRequest{
		Target:          types.StateExpiring,
		ExpectedVersion: 2,
	}); err != nil {
		t.Fatalf("system transition inside window failed: %v", err)
	}
}

func TestUpdateDraftBumpsVersionAndAudits(t *testing.T) {
	env := newTestEnv("2024-01-15")
	c := env.newDraft(t)
	alice := ownerPrincipal("alice")

	title := "SaaS subscription (amended)"
	updated, err := env.lifecycle.UpdateDraft(context.Background(), alice, c.ID, &UpdateDraftInput{
		ExpectedVersion: c.Version,
		Title:           &title,
	})
	if err != nil {
		t.Fatalf("update draft: %v", err)
	}
	if updated.Title != title || updated.Version != 2 {
		t.Errorf("draft not corrected: %+v", updated)
	}

	// In-place corrections outside Draft are refused.
	updated = env.mustTransition(t, alice, c.ID, &TransitionRequest{Target: types.StateActive, ExpectedVersion: 2})
	_, err = env.lifecycle.UpdateDraft(context.Background(), alice, c.ID, &UpdateDraftInput{ExpectedVersion: updated.Version})
	var stateErr *types.InvalidStateError
	if !errors.As(err, &stateErr) {
		t.Fatalf("expected InvalidStateError, got %v", err)
	}
}

func TestRecordDocumentVersionsPerContract(t *testing.T) {
	env := newTestEnv("2024-01-15")
	c := env.newDraft(t)
	alice := ownerPrincipal("alice")

	d1, err := env.lifecycle.RecordDocument(context.Background(), alice, c.ID, "msa.pdf", "aa11")
	if err != nil {
		t.Fatalf("record document: %v", err)
	}
	d2, err := env.lifecycle.RecordDocument(context.Background(), alice, c.ID, "msa-signed.pdf", "bb22")
	if err != nil {
		t.Fatalf("record document: %v", err)
	}
	if d1.Version != 1 || d2.Version != 2 {
		t.Errorf("expected versions 1 and 2, got %d and %d", d1.Version, d2.Version)
	}

	docs, _ := env.lifecycle.ListDocuments(context.Background(), alice, c.ID)
	if len(docs) != 2 {
		t.Errorf("expected 2 documents, got %d", len(docs))
	}
}
