package service

import (
	"context"
	"time"

	"github.com/google/uuid"

	"contract-engine/pkg/logger"
	"contract-engine/storage"
	"contract-engine/types"
)

// SchedulerConfig are the reconciliation knobs. LeadTimeDays shifts the
// base reminder ahead of the notice deadline; escalations land
// EscalationStepDays after it per level.
type SchedulerConfig struct {
	LeadTimeDays       int `yaml:"lead_time_days"`
	EscalationStepDays int `yaml:"escalation_step_days"`
	MaxEscalationLevel int `yaml:"max_escalation_level"`
	RetentionHoldDays  int `yaml:"retention_hold_days"`
}

func (c *SchedulerConfig) defaults() {
	if c.EscalationStepDays <= 0 {
		c.EscalationStepDays = 7
	}
	if c.MaxEscalationLevel <= 0 {
		c.MaxEscalationLevel = 2
	}
	if c.RetentionHoldDays <= 0 {
		c.RetentionHoldDays = 365
	}
}

// ReconcileResult summarizes one pass.
type ReconcileResult struct {
	ContractsSeen   int `json:"contracts_seen"`
	Transitions     int `json:"transitions"`
	TasksCreated    int `json:"tasks_created"`
	TasksSuperseded int `json:"tasks_superseded"`
}

// NotificationService derives reminder tasks from contract dates and runs
// the clock-driven lifecycle edges. Reconcile takes the current time as a
// parameter, so the pass is deterministic under an injected clock, and it
// is idempotent: a second pass over unchanged data creates nothing.
type NotificationService struct {
	store     storage.Store
	lifecycle *LifecycleService
	cfg       SchedulerConfig
}

func NewNotificationService(store storage.Store, lifecycle *LifecycleService, cfg SchedulerConfig) *NotificationService {
	cfg.defaults()
	return &NotificationService{store: store, lifecycle: lifecycle, cfg: cfg}
}

// Reconcile is safe to run from multiple concurrent workers: task creation
// keys on (contract, kind, level) and transitions ride the optimistic
// version check, so the loser of any race sees a no-op or a conflict and
// moves on.
func (s *NotificationService) Reconcile(ctx context.Context, now time.Time) (*ReconcileResult, error) {
	res := &ReconcileResult{}

	if err := s.runClockTransitions(ctx, now, res); err != nil {
		return nil, err
	}

	contracts, err := s.store.ListContracts(ctx, types.StateActive, types.StateExpiring)
	if err != nil {
		return nil, err
	}
	for _, c := range contracts {
		res.ContractsSeen++
		if c.TerminationDate == nil {
			continue
		}
		if err := s.reconcileContract(ctx, c, now, res); err != nil {
			return nil, err
		}
	}

	if err := s.supersedeSettled(ctx, res); err != nil {
		return nil, err
	}

	logger.Info(ctx, "reconciliation pass finished",
		"contracts", res.ContractsSeen,
		"transitions", res.Transitions,
		"tasks_created", res.TasksCreated,
		"tasks_superseded", res.TasksSuperseded,
	)
	return res, nil
}

// runClockTransitions drives the time-guarded lifecycle edges as the system
// actor. A ConflictError means another worker got there first; that is fine.
func (s *NotificationService) runClockTransitions(ctx context.Context, now time.Time, res *ReconcileResult) error {
	active, err := s.store.ListContracts(ctx, types.StateActive)
	if err != nil {
		return err
	}
	for _, c := range active {
		deadline := c.NoticeDeadline()
		if deadline == nil || now.Before(*deadline) {
			continue
		}
		s.tryTransition(ctx, c, &TransitionRequest{
			Target:          types.StateExpiring,
			ExpectedVersion: c.Version,
			Reason:          "notice window reached",
		}, res)
	}

	expiring, err := s.store.ListContracts(ctx, types.StateExpiring)
	if err != nil {
		return err
	}
	for _, c := range expiring {
		if c.RenewalIntent == types.IntentRenew {
			// Renewal is the owner's call; the clock never renews.
			continue
		}
		if c.TerminationDate == nil || now.Before(*c.TerminationDate) {
			continue
		}
		s.tryTransition(ctx, c, &TransitionRequest{
			Target:          types.StateTerminated,
			ExpectedVersion: c.Version,
			Reason:          "termination date reached without renewal",
		}, res)
	}

	terminated, err := s.store.ListContracts(ctx, types.StateTerminated)
	if err != nil {
		return err
	}
	hold := time.Duration(s.cfg.RetentionHoldDays) * 24 * time.Hour
	for _, c := range terminated {
		if c.TerminationDate == nil || now.Sub(*c.TerminationDate) < hold {
			continue
		}
		s.tryTransition(ctx, c, &TransitionRequest{
			Target:               types.StateArchived,
			ExpectedVersion:      c.Version,
			Reason:               "retention hold expired",
			RetentionHoldExpired: true,
		}, res)
	}
	return nil
}

func (s *NotificationService) tryTransition(ctx context.Context, c *types.Contract, req *TransitionRequest, res *ReconcileResult) {
	p := types.SystemPrincipal
	if _, err := s.lifecycle.Transition(ctx, &p, c.ID, req); err != nil {
		// Conflicts are expected under concurrent passes; everything else
		// is worth a log line but must not abort the sweep.
		logger.Warn(ctx, "scheduled transition skipped",
			"contract_id", c.ID, "target", req.Target, "error", err)
		return
	}
	res.Transitions++
}

// dueAt computes the task deadline for an escalation level:
// terminationDate - noticePeriodDays - leadTime, each escalation stepping
// closer to the termination date.
func (s *NotificationService) dueAt(c *types.Contract, level int) time.Time {
	days := -(c.NoticePeriodDays + s.cfg.LeadTimeDays) + level*s.cfg.EscalationStepDays
	return c.TerminationDate.AddDate(0, 0, days)
}

func (s *NotificationService) reconcileContract(ctx context.Context, c *types.Contract, now time.Time, res *ReconcileResult) error {
	if err := s.supersedeStale(ctx, c, res); err != nil {
		return err
	}
	if err := s.ensureTask(ctx, c, types.KindReminder, 0, res); err != nil {
		return err
	}

	if c.RenewalIntent != types.IntentUndecided {
		// A decision was made; no escalation needed.
		return nil
	}
	for level := 1; level <= s.cfg.MaxEscalationLevel; level++ {
		prevKind := types.KindEscalation
		if level == 1 {
			prevKind = types.KindReminder
		}
		prev, err := s.store.ActiveTask(ctx, c.ID, prevKind, level-1)
		if err != nil {
			return err
		}
		if prev == nil || now.Before(prev.DueAt) {
			break
		}
		if err := s.ensureTask(ctx, c, types.KindEscalation, level, res); err != nil {
			return err
		}
	}
	return nil
}

// supersedeStale retires every scheduled task whose dueAt no longer matches
// the value recomputed from the contract's current dates. Escalation tasks
// from a previous cycle would otherwise survive a renewal and be delivered
// against dates that no longer exist.
func (s *NotificationService) supersedeStale(ctx context.Context, c *types.Contract, res *ReconcileResult) error {
	tasks, err := s.store.ListTasks(ctx, c.ID)
	if err != nil {
		return err
	}
	for _, t := range tasks {
		if t.Status != types.DeliveryScheduled {
			continue
		}
		if t.DueAt.Equal(s.dueAt(c, t.Level)) {
			continue
		}
		if err := s.store.UpdateTaskStatus(ctx, t.ID, types.DeliverySuperseded); err != nil {
			return err
		}
		res.TasksSuperseded++
	}
	return nil
}

// ensureTask creates the task when missing and supersedes it when the
// contract's dates moved since it was scheduled. Matching dueAt means
// nothing to do, which is what makes the pass idempotent.
func (s *NotificationService) ensureTask(ctx context.Context, c *types.Contract, kind types.NotificationKind, level int, res *ReconcileResult) error {
	due := s.dueAt(c, level)
	existing, err := s.store.ActiveTask(ctx, c.ID, kind, level)
	if err != nil {
		return err
	}
	if existing != nil {
		if existing.DueAt.Equal(due) {
			return nil
		}
		if err := s.store.UpdateTaskStatus(ctx, existing.ID, types.DeliverySuperseded); err != nil {
			return err
		}
		res.TasksSuperseded++
	}
	task := &types.NotificationTask{
		ID:         uuid.NewString(),
		ContractID: c.ID,
		Kind:       kind,
		Level:      level,
		DueAt:      due,
		Status:     types.DeliveryScheduled,
		CreatedAt:  time.Now(),
		UpdatedAt:  time.Now(),
	}
	if err := s.store.SaveTask(ctx, task); err != nil {
		return err
	}
	res.TasksCreated++
	return nil
}

// supersedeSettled retires scheduled tasks whose contract already left the
// Active/Expiring window.
func (s *NotificationService) supersedeSettled(ctx context.Context, res *ReconcileResult) error {
	scheduled, err := s.store.ListByStatus(ctx, types.DeliveryScheduled)
	if err != nil {
		return err
	}
	for _, t := range scheduled {
		c, err := s.store.GetContract(ctx, t.ContractID)
		if err != nil {
			return err
		}
		if c.State == types.StateActive || c.State == types.StateExpiring {
			continue
		}
		if err := s.store.UpdateTaskStatus(ctx, t.ID, types.DeliverySuperseded); err != nil {
			return err
		}
		res.TasksSuperseded++
	}
	return nil
}

// Pending lists scheduled tasks for the delivery collaborator to pick up.
func (s *NotificationService) Pending(ctx context.Context) ([]types.NotificationTask, error) {
	return s.store.ListByStatus(ctx, types.DeliveryScheduled)
}

// MarkDelivery records the delivery collaborator's callback.
func (s *NotificationService) MarkDelivery(ctx context.Context, taskID string, status types.DeliveryStatus) error {
	if status != types.DeliverySent && status != types.DeliveryFailed {
		return &types.ValidationError{Field: "status", Reason: "delivery status must be sent or failed"}
	}
	task, err := s.store.GetTask(ctx, taskID)
	if err != nil {
		return err
	}
	if task.Status != types.DeliveryScheduled {
		return &types.ValidationError{Field: "status", Reason: "task is not awaiting delivery"}
	}
	return s.store.UpdateTaskStatus(ctx, taskID, status)
}

// Tasks lists every task for a contract, superseded ones included.
func (s *NotificationService) Tasks(ctx context.Context, contractID string) ([]types.NotificationTask, error) {
	return s.store.ListTasks(ctx, contractID)
}
