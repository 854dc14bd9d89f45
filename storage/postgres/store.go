package postgres

import (
	"context"
	"errors"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"contract-engine/storage"
	"contract-engine/types"
)

// Store is the gorm-backed implementation of the storage ports. Every
// mutating commit runs in one transaction that first takes a row lock on the
// contract; that lock is the per-contract single-writer discipline behind
// the gapless audit sequence.
type Store struct {
	db *gorm.DB
}

var _ storage.Store = (*Store)(nil)

func NewStore(db *gorm.DB) *Store {
	return &Store{db: db}
}

// lockContract loads the contract row FOR UPDATE inside tx.
func lockContract(tx *gorm.DB, id string) (*contractRow, error) {
	var row contractRow
	err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("id = ?", id).
		First(&row).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, &types.NotFoundError{Kind: "contract", ID: id}
	}
	if err != nil {
		return nil, err
	}
	return &row, nil
}

// appendEventTx validates the gapless sequence and inserts the event.
// Callers hold the contract row lock.
func appendEventTx(tx *gorm.DB, ev *types.AuditEvent) error {
	var last int64
	err := tx.Model(&auditEventRow{}).
		Where("contract_id = ?", ev.ContractID).
		Select("COALESCE(MAX(sequence), 0)").
		Scan(&last).Error
	if err != nil {
		return err
	}
	if ev.Sequence != last+1 {
		return &types.SequenceGapError{ContractID: ev.ContractID, Expected: last + 1, Got: ev.Sequence}
	}
	return tx.Create(toEventRow(ev)).Error
}

func (s *Store) CreateContract(ctx context.Context, c *types.Contract, ev *types.AuditEvent) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(toContractRow(c)).Error; err != nil {
			return err
		}
		return appendEventTx(tx, ev)
	})
}

func (s *Store) GetContract(ctx context.Context, id string) (*types.Contract, error) {
	var row contractRow
	err := s.db.WithContext(ctx).Where("id = ?", id).First(&row).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, &types.NotFoundError{Kind: "contract", ID: id}
	}
	if err != nil {
		return nil, err
	}
	return fromContractRow(&row), nil
}

func (s *Store) ListContracts(ctx context.Context, states ...types.State) ([]*types.Contract, error) {
	tx := s.db.WithContext(ctx).Model(&contractRow{})
	if len(states) > 0 {
		tx = tx.Where("state IN ?", states)
	}
	var rows []contractRow
	if err := tx.Order("created_at").Find(&rows).Error; err != nil {
		return nil, err
	}
	out := make([]*types.Contract, 0, len(rows))
	for i := range rows {
		out = append(out, fromContractRow(&rows[i]))
	}
	return out, nil
}

func (s *Store) CountByState(ctx context.Context) ([]types.StateCount, error) {
	var out []types.StateCount
	err := s.db.WithContext(ctx).
		Model(&contractRow{}).
		Select("state, COUNT(*) AS total").
		Group("state").
		Order("state").
		Scan(&out).Error
	return out, err
}

func (s *Store) CommitTransition(ctx context.Context, updated *types.Contract, expectedVersion int64, ev *types.AuditEvent) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		current, err := lockContract(tx, updated.ID)
		if err != nil {
			return err
		}
		if current.Version != expectedVersion {
			return &types.ConflictError{ContractID: updated.ID, ExpectedVersion: expectedVersion}
		}
		if err := appendEventTx(tx, ev); err != nil {
			return err
		}
		return tx.Model(&contractRow{}).
			Where("id = ? AND version = ?", updated.ID, expectedVersion).
			Select("*").Omit("id", "created_at").
			Updates(toContractRow(updated)).Error
	})
}

func (s *Store) RecordDocument(ctx context.Context, doc *types.DocumentRef, ev *types.AuditEvent) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if _, err := lockContract(tx, doc.ContractID); err != nil {
			return err
		}
		var maxVersion int
		err := tx.Model(&documentRow{}).
			Where("contract_id = ?", doc.ContractID).
			Select("COALESCE(MAX(version), 0)").
			Scan(&maxVersion).Error
		if err != nil {
			return err
		}
		doc.Version = maxVersion + 1
		if err := appendEventTx(tx, ev); err != nil {
			return err
		}
		return tx.Create(toDocumentRow(doc)).Error
	})
}

func (s *Store) ListDocuments(ctx context.Context, contractID string) ([]types.DocumentRef, error) {
	var rows []documentRow
	err := s.db.WithContext(ctx).
		Where("contract_id = ?", contractID).
		Order("version").
		Find(&rows).Error
	if err != nil {
		return nil, err
	}
	out := make([]types.DocumentRef, 0, len(rows))
	for i := range rows {
		out = append(out, fromDocumentRow(&rows[i]))
	}
	return out, nil
}

func (s *Store) SaveBatch(ctx context.Context, batch *types.ExtractionBatch, ev *types.AuditEvent) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if _, err := lockContract(tx, batch.ContractID); err != nil {
			return err
		}
		if err := appendEventTx(tx, ev); err != nil {
			return err
		}
		return tx.Create(toBatchRow(batch)).Error
	})
}

func (s *Store) GetBatch(ctx context.Context, id string) (*types.ExtractionBatch, error) {
	var row extractionBatchRow
	err := s.db.WithContext(ctx).Where("id = ?", id).First(&row).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, &types.NotFoundError{Kind: "extraction batch", ID: id}
	}
	if err != nil {
		return nil, err
	}
	return fromBatchRow(&row), nil
}

func (s *Store) ListBatches(ctx context.Context, contractID string) ([]*types.ExtractionBatch, error) {
	var rows []extractionBatchRow
	err := s.db.WithContext(ctx).
		Where("contract_id = ?", contractID).
		Order("created_at").
		Find(&rows).Error
	if err != nil {
		return nil, err
	}
	out := make([]*types.ExtractionBatch, 0, len(rows))
	for i := range rows {
		out = append(out, fromBatchRow(&rows[i]))
	}
	return out, nil
}

func (s *Store) CommitApproval(ctx context.Context, contractID string, expectedVersion int64, batch *types.ExtractionBatch, rec *types.FieldRecord, ev *types.AuditEvent) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		current, err := lockContract(tx, contractID)
		if err != nil {
			return err
		}
		if current.Version != expectedVersion {
			return &types.ConflictError{ContractID: contractID, ExpectedVersion: expectedVersion}
		}
		if err := appendEventTx(tx, ev); err != nil {
			return err
		}
		row := toFieldRow(rec)
		if err := tx.Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "contract_id"}, {Name: "name"}},
			UpdateAll: true,
		}).Create(row).Error; err != nil {
			return err
		}
		if err := tx.Model(&extractionBatchRow{}).
			Where("id = ?", batch.ID).
			Updates(map[string]any{
				"status":     string(batch.Status),
				"candidates": toBatchRow(batch).Candidates,
				"updated_at": ev.Timestamp,
			}).Error; err != nil {
			return err
		}
		return tx.Model(&contractRow{}).
			Where("id = ? AND version = ?", contractID, expectedVersion).
			Updates(map[string]any{
				"version":    expectedVersion + 1,
				"updated_at": ev.Timestamp,
			}).Error
	})
}

func (s *Store) CommitBatchUpdate(ctx context.Context, batch *types.ExtractionBatch, ev *types.AuditEvent) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if _, err := lockContract(tx, batch.ContractID); err != nil {
			return err
		}
		if err := appendEventTx(tx, ev); err != nil {
			return err
		}
		return tx.Model(&extractionBatchRow{}).
			Where("id = ?", batch.ID).
			Updates(map[string]any{
				"status":     string(batch.Status),
				"candidates": toBatchRow(batch).Candidates,
				"updated_at": ev.Timestamp,
			}).Error
	})
}

func (s *Store) GetField(ctx context.Context, contractID, name string) (*types.FieldRecord, error) {
	var row fieldRecordRow
	err := s.db.WithContext(ctx).
		Where("contract_id = ? AND name = ?", contractID, name).
		First(&row).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, &types.NotFoundError{Kind: "field", ID: contractID + "/" + name}
	}
	if err != nil {
		return nil, err
	}
	rec := fromFieldRow(&row)
	return &rec, nil
}

func (s *Store) ListFields(ctx context.Context, contractID string) ([]types.FieldRecord, error) {
	var rows []fieldRecordRow
	err := s.db.WithContext(ctx).
		Where("contract_id = ?", contractID).
		Order("name").
		Find(&rows).Error
	if err != nil {
		return nil, err
	}
	out := make([]types.FieldRecord, 0, len(rows))
	for i := range rows {
		out = append(out, fromFieldRow(&rows[i]))
	}
	return out, nil
}

func (s *Store) LastSequence(ctx context.Context, contractID string) (int64, error) {
	var last int64
	err := s.db.WithContext(ctx).
		Model(&auditEventRow{}).
		Where("contract_id = ?", contractID).
		Select("COALESCE(MAX(sequence), 0)").
		Scan(&last).Error
	return last, err
}

func (s *Store) QueryEvents(ctx context.Context, contractID string, fromSeq, toSeq int64) ([]types.AuditEvent, error) {
	tx := s.db.WithContext(ctx).
		Model(&auditEventRow{}).
		Where("contract_id = ? AND sequence >= ?", contractID, fromSeq)
	if toSeq > 0 {
		tx = tx.Where("sequence <= ?", toSeq)
	}
	var rows []auditEventRow
	if err := tx.Order("sequence").Find(&rows).Error; err != nil {
		return nil, err
	}
	out := make([]types.AuditEvent, 0, len(rows))
	for i := range rows {
		out = append(out, fromEventRow(&rows[i]))
	}
	return out, nil
}

func (s *Store) GetTask(ctx context.Context, id string) (*types.NotificationTask, error) {
	var row notificationTaskRow
	err := s.db.WithContext(ctx).Where("id = ?", id).First(&row).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, &types.NotFoundError{Kind: "notification task", ID: id}
	}
	if err != nil {
		return nil, err
	}
	t := fromTaskRow(&row)
	return &t, nil
}

func (s *Store) ActiveTask(ctx context.Context, contractID string, kind types.NotificationKind, level int) (*types.NotificationTask, error) {
	var row notificationTaskRow
	err := s.db.WithContext(ctx).
		Where("contract_id = ? AND kind = ? AND level = ? AND status <> ?",
			contractID, string(kind), level, string(types.DeliverySuperseded)).
		First(&row).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	t := fromTaskRow(&row)
	return &t, nil
}

func (s *Store) ListTasks(ctx context.Context, contractID string) ([]types.NotificationTask, error) {
	var rows []notificationTaskRow
	err := s.db.WithContext(ctx).
		Where("contract_id = ?", contractID).
		Order("created_at").
		Find(&rows).Error
	if err != nil {
		return nil, err
	}
	out := make([]types.NotificationTask, 0, len(rows))
	for i := range rows {
		out = append(out, fromTaskRow(&rows[i]))
	}
	return out, nil
}

func (s *Store) ListByStatus(ctx context.Context, status types.DeliveryStatus) ([]types.NotificationTask, error) {
	var rows []notificationTaskRow
	err := s.db.WithContext(ctx).
		Where("status = ?", string(status)).
		Order("due_at").
		Find(&rows).Error
	if err != nil {
		return nil, err
	}
	out := make([]types.NotificationTask, 0, len(rows))
	for i := range rows {
		out = append(out, fromTaskRow(&rows[i]))
	}
	return out, nil
}

func (s *Store) SaveTask(ctx context.Context, task *types.NotificationTask) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if _, err := lockContract(tx, task.ContractID); err != nil {
			return err
		}
		// One active task per (contract, kind, level): a concurrent pass
		// that already scheduled the same deadline wins.
		var n int64
		err := tx.Model(&notificationTaskRow{}).
			Where("contract_id = ? AND kind = ? AND level = ? AND status <> ? AND id <> ?",
				task.ContractID, string(task.Kind), task.Level,
				string(types.DeliverySuperseded), task.ID).
			Count(&n).Error
		if err != nil {
			return err
		}
		if n > 0 {
			return nil
		}
		return tx.Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "id"}},
			UpdateAll: true,
		}).Create(toTaskRow(task)).Error
	})
}

func (s *Store) UpdateTaskStatus(ctx context.Context, id string, status types.DeliveryStatus) error {
	result := s.db.WithContext(ctx).
		Model(&notificationTaskRow{}).
		Where("id = ?", id).
		Updates(map[string]any{"status": string(status), "updated_at": time.Now()})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return &types.NotFoundError{Kind: "notification task", ID: id}
	}
	return nil
}

func (s *Store) SaveGrant(ctx context.Context, g *types.Grant) error {
	return s.db.WithContext(ctx).
		Clauses(clause.OnConflict{DoNothing: true}).
		Create(&grantRow{
			ContractID:  g.ContractID,
			PrincipalID: g.PrincipalID,
			Capability:  string(g.Capability),
		}).Error
}

func (s *Store) ListGrants(ctx context.Context, contractID string) ([]types.Grant, error) {
	var rows []grantRow
	err := s.db.WithContext(ctx).
		Where("contract_id = ?", contractID).
		Find(&rows).Error
	if err != nil {
		return nil, err
	}
	out := make([]types.Grant, 0, len(rows))
	for _, r := range rows {
		out = append(out, types.Grant{
			ContractID:  r.ContractID,
			PrincipalID: r.PrincipalID,
			Capability:  types.Capability(r.Capability),
		})
	}
	return out, nil
}
