package types

import "time"

// NotificationKind distinguishes the first reminder from its escalations.
type NotificationKind string

const (
	KindReminder   NotificationKind = "reminder"
	KindEscalation NotificationKind = "escalation"
)

// DeliveryStatus of a notification task. Superseded tasks are kept, not
// mutated back to scheduled: recomputed dates create replacements.
type DeliveryStatus string

const (
	DeliveryScheduled  DeliveryStatus = "scheduled"
	DeliverySent       DeliveryStatus = "sent"
	DeliveryFailed     DeliveryStatus = "failed"
	DeliverySuperseded DeliveryStatus = "superseded"
)

// NotificationTask is one deliverable reminder derived from contract dates.
// At most one non-superseded task exists per (contract, kind, level).
// Delivery itself belongs to the external collaborator; the engine only owns
// task state.
type NotificationTask struct {
	ID         string           `json:"id"`
	ContractID string           `json:"contract_id"`
	Kind       NotificationKind `json:"kind"`
	Level      int              `json:"level"` // 0 for the base reminder
	DueAt      time.Time        `json:"due_at"`
	Status     DeliveryStatus   `json:"status"`
	CreatedAt  time.Time        `json:"created_at"`
	UpdatedAt  time.Time        `json:"updated_at"`
}

// Active reports whether the task still counts toward the one-active-task
// invariant.
func (t *NotificationTask) Active() bool {
	return t.Status != DeliverySuperseded
}
