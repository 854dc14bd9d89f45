package types

import "time"

// State is the lifecycle state of a contract. Transitions are forward-only
// except the Expiring -> Active renewal edge; Archived is terminal and
// read-only.
type State string

const (
	StateDraft      State = "Draft"
	StateActive     State = "Active"
	StateExpiring   State = "Expiring"
	StateTerminated State = "Terminated"
	StateArchived   State = "Archived"
)

// RenewalIntent records the owner's decision for an expiring contract.
type RenewalIntent string

const (
	IntentUndecided RenewalIntent = "undecided"
	IntentRenew     RenewalIntent = "renew"
	IntentTerminate RenewalIntent = "terminate"
)

// Contract is the aggregate the lifecycle engine owns. Version is the
// optimistic-concurrency token: it increments exactly once per accepted
// transition or field commit, and every mutating commit re-checks it.
type Contract struct {
	ID               string        `json:"id"`
	Title            string        `json:"title"`
	State            State         `json:"state"`
	OwnerID          string        `json:"owner_id"`
	VendorID         string        `json:"vendor_id,omitempty"`
	EffectiveDate    *time.Time    `json:"effective_date,omitempty"`
	TerminationDate  *time.Time    `json:"termination_date,omitempty"`
	NoticePeriodDays int           `json:"notice_period_days"`
	RenewalIntent    RenewalIntent `json:"renewal_intent"`
	RenewalRationale string        `json:"renewal_rationale,omitempty"`
	Sensitive        bool          `json:"sensitive"`
	Tags             []string      `json:"tags,omitempty"`
	Version          int64         `json:"version"`
	CreatedAt        time.Time     `json:"created_at"`
	UpdatedAt        time.Time     `json:"updated_at"`
}

// NoticeDeadline is the last day a renewal decision can be taken:
// terminationDate - noticePeriodDays. Nil when terminationDate is unset.
func (c *Contract) NoticeDeadline() *time.Time {
	if c.TerminationDate == nil {
		return nil
	}
	d := c.TerminationDate.AddDate(0, 0, -c.NoticePeriodDays)
	return &d
}

// Mutable reports whether the contract still accepts mutations. Archived
// contracts are read-only; only audit export remains available.
func (c *Contract) Mutable() bool {
	return c.State != StateArchived
}

// StateCount is one row of the dashboard stats view.
type StateCount struct {
	State State `json:"state"`
	Total int64 `json:"total"`
}
