package types

import (
	"testing"
	"time"
)

func TestHashIsStableAcrossTimezoneRepresentation(t *testing.T) {
	utc := time.Date(2024, 6, 15, 12, 0, 0, 0, time.UTC)
	shanghai := utc.In(time.FixedZone("CST", 8*3600))

	a := AuditEvent{ContractID: "c-1", Sequence: 1, ActorID: "alice", Action: ActionContractCreated, Timestamp: utc}
	b := AuditEvent{ContractID: "c-1", Sequence: 1, ActorID: "alice", Action: ActionContractCreated, Timestamp: shanghai}
	if a.ComputeHash() != b.ComputeHash() {
		t.Error("hash must not depend on the timestamp's zone representation")
	}
}

func TestHashCoversEveryPayloadField(t *testing.T) {
	base := AuditEvent{
		ContractID:  "c-1",
		Sequence:    2,
		ActorID:     "alice",
		Action:      ActionStateTransition,
		BeforeState: StateDraft,
		AfterState:  StateActive,
		Detail:      "signed",
		Timestamp:   time.Date(2024, 6, 15, 12, 0, 0, 0, time.UTC),
	}
	base.Seal()

	mutations := map[string]func(e *AuditEvent){
		"sequence":     func(e *AuditEvent) { e.Sequence = 3 },
		"actor":        func(e *AuditEvent) { e.ActorID = "bob" },
		"action":       func(e *AuditEvent) { e.Action = ActionContractUpdated },
		"before state": func(e *AuditEvent) { e.BeforeState = StateActive },
		"after state":  func(e *AuditEvent) { e.AfterState = StateExpiring },
		"detail":       func(e *AuditEvent) { e.Detail = "doctored" },
		"timestamp":    func(e *AuditEvent) { e.Timestamp = e.Timestamp.Add(time.Second) },
	}
	for name, mutate := range mutations {
		ev := base
		mutate(&ev)
		if ev.ComputeHash() == base.PayloadHash {
			t.Errorf("changing %s did not change the hash", name)
		}
	}
}

func TestSealMatchesComputeHash(t *testing.T) {
	ev := AuditEvent{ContractID: "c-1", Sequence: 1, Action: ActionContractCreated, Timestamp: time.Now()}
	ev.Seal()
	if ev.PayloadHash != ev.ComputeHash() {
		t.Error("sealed hash must verify against the payload")
	}
}
