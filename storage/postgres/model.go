package postgres

import (
	"encoding/json"
	"time"

	"contract-engine/types"
)

// contractRow maps the contracts table. Version is the optimistic lock
// checked by every mutating commit.
type contractRow struct {
	ID               string     `gorm:"column:id;primaryKey;type:uuid"`
	Title            string     `gorm:"column:title;type:varchar(255);not null"`
	State            string     `gorm:"column:state;type:varchar(20);index;not null"`
	OwnerID          string     `gorm:"column:owner_id;type:varchar(64);index;not null"`
	VendorID         string     `gorm:"column:vendor_id;type:varchar(64);index"`
	EffectiveDate    *time.Time `gorm:"column:effective_date;type:date"`
	TerminationDate  *time.Time `gorm:"column:termination_date;type:date;index"`
	NoticePeriodDays int        `gorm:"column:notice_period_days"`
	RenewalIntent    string     `gorm:"column:renewal_intent;type:varchar(20);default:undecided"`
	RenewalRationale string     `gorm:"column:renewal_rationale;type:text"`
	Sensitive        bool       `gorm:"column:sensitive;default:false"`
	Tags             string     `gorm:"column:tags;type:text"` // JSON-encoded []string
	Version          int64      `gorm:"column:version;not null"`
	CreatedAt        time.Time
	UpdatedAt        time.Time
}

func (contractRow) TableName() string { return "contracts" }

// auditEventRow maps the append-only audit_events table. The composite
// unique index backs the gapless per-contract sequence; no update or delete
// path exists in this package.
type auditEventRow struct {
	ContractID  string    `gorm:"column:contract_id;type:uuid;uniqueIndex:idx_audit_contract_seq;not null"`
	Sequence    int64     `gorm:"column:sequence;uniqueIndex:idx_audit_contract_seq;not null"`
	ActorID     string    `gorm:"column:actor_id;type:varchar(64);not null"`
	Action      string    `gorm:"column:action;type:varchar(64);not null"`
	BeforeState string    `gorm:"column:before_state;type:varchar(20)"`
	AfterState  string    `gorm:"column:after_state;type:varchar(20)"`
	Detail      string    `gorm:"column:detail;type:text"`
	Timestamp   time.Time `gorm:"column:timestamp;not null"`
	PayloadHash string    `gorm:"column:payload_hash;type:char(64);not null"`
}

func (auditEventRow) TableName() string { return "audit_events" }

type fieldRecordRow struct {
	ContractID string    `gorm:"column:contract_id;type:uuid;uniqueIndex:idx_field_contract_name;not null"`
	Name       string    `gorm:"column:name;type:varchar(100);uniqueIndex:idx_field_contract_name;not null"`
	Value      string    `gorm:"column:value;type:text"`
	Source     string    `gorm:"column:source;type:varchar(20);not null"`
	Confidence float64   `gorm:"column:confidence"`
	ApproverID string    `gorm:"column:approver_id;type:varchar(64)"`
	BatchID    string    `gorm:"column:batch_id;type:uuid"`
	UpdatedAt  time.Time `gorm:"column:updated_at"`
}

func (fieldRecordRow) TableName() string { return "field_records" }

type extractionBatchRow struct {
	ID          string    `gorm:"column:id;primaryKey;type:uuid"`
	ContractID  string    `gorm:"column:contract_id;type:uuid;index;not null"`
	DocumentRef string    `gorm:"column:document_ref;type:varchar(255)"`
	ContentHash string    `gorm:"column:content_hash;type:varchar(128)"`
	Status      string    `gorm:"column:status;type:varchar(30);index;not null"`
	Candidates  string    `gorm:"column:candidates;type:text;not null"` // JSON-encoded []FieldCandidate
	SubmittedBy string    `gorm:"column:submitted_by;type:varchar(64)"`
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

func (extractionBatchRow) TableName() string { return "extraction_batches" }

type documentRow struct {
	ID         string    `gorm:"column:id;primaryKey;type:uuid"`
	ContractID string    `gorm:"column:contract_id;type:uuid;uniqueIndex:idx_doc_contract_version;not null"`
	Filename   string    `gorm:"column:filename;type:varchar(255);not null"`
	Version    int       `gorm:"column:version;uniqueIndex:idx_doc_contract_version;not null"`
	SHA256     string    `gorm:"column:sha256;type:char(64);not null"`
	UploadedAt time.Time `gorm:"column:uploaded_at"`
}

func (documentRow) TableName() string { return "contract_documents" }

type notificationTaskRow struct {
	ID         string    `gorm:"column:id;primaryKey;type:uuid"`
	ContractID string    `gorm:"column:contract_id;type:uuid;index;not null"`
	Kind       string    `gorm:"column:kind;type:varchar(20);not null"`
	Level      int       `gorm:"column:level;not null"`
	DueAt      time.Time `gorm:"column:due_at;index;not null"`
	Status     string    `gorm:"column:status;type:varchar(20);index;not null"`
	CreatedAt  time.Time
	UpdatedAt  time.Time
}

func (notificationTaskRow) TableName() string { return "notification_tasks" }

type grantRow struct {
	ContractID  string `gorm:"column:contract_id;type:uuid;uniqueIndex:idx_grant;not null"`
	PrincipalID string `gorm:"column:principal_id;type:varchar(64);uniqueIndex:idx_grant;not null"`
	Capability  string `gorm:"column:capability;type:varchar(64);uniqueIndex:idx_grant;not null"`
}

func (grantRow) TableName() string { return "contract_grants" }

func toContractRow(c *types.Contract) *contractRow {
	tags := ""
	if len(c.Tags) > 0 {
		raw, _ := json.Marshal(c.Tags)
		tags = string(raw)
	}
	return &contractRow{
		ID:               c.ID,
		Title:            c.Title,
		State:            string(c.State),
		OwnerID:          c.OwnerID,
		VendorID:         c.VendorID,
		EffectiveDate:    c.EffectiveDate,
		TerminationDate:  c.TerminationDate,
		NoticePeriodDays: c.NoticePeriodDays,
		RenewalIntent:    string(c.RenewalIntent),
		RenewalRationale: c.RenewalRationale,
		Sensitive:        c.Sensitive,
		Tags:             tags,
		Version:          c.Version,
		CreatedAt:        c.CreatedAt,
		UpdatedAt:        c.UpdatedAt,
	}
}

func fromContractRow(r *contractRow) *types.Contract {
	var tags []string
	if r.Tags != "" {
		_ = json.Unmarshal([]byte(r.Tags), &tags)
	}
	return &types.Contract{
		ID:               r.ID,
		Title:            r.Title,
		State:            types.State(r.State),
		OwnerID:          r.OwnerID,
		VendorID:         r.VendorID,
		EffectiveDate:    r.EffectiveDate,
		TerminationDate:  r.TerminationDate,
		NoticePeriodDays: r.NoticePeriodDays,
		RenewalIntent:    types.RenewalIntent(r.RenewalIntent),
		RenewalRationale: r.RenewalRationale,
		Sensitive:        r.Sensitive,
		Tags:             tags,
		Version:          r.Version,
		CreatedAt:        r.CreatedAt,
		UpdatedAt:        r.UpdatedAt,
	}
}

func toEventRow(ev *types.AuditEvent) *auditEventRow {
	return &auditEventRow{
		ContractID:  ev.ContractID,
		Sequence:    ev.Sequence,
		ActorID:     ev.ActorID,
		Action:      ev.Action,
		BeforeState: string(ev.BeforeState),
		AfterState:  string(ev.AfterState),
		Detail:      ev.Detail,
		Timestamp:   ev.Timestamp,
		PayloadHash: ev.PayloadHash,
	}
}

func fromEventRow(r *auditEventRow) types.AuditEvent {
	return types.AuditEvent{
		ContractID:  r.ContractID,
		Sequence:    r.Sequence,
		ActorID:     r.ActorID,
		Action:      r.Action,
		BeforeState: types.State(r.BeforeState),
		AfterState:  types.State(r.AfterState),
		Detail:      r.Detail,
		Timestamp:   r.Timestamp,
		PayloadHash: r.PayloadHash,
	}
}

func toBatchRow(b *types.ExtractionBatch) *extractionBatchRow {
	raw, _ := json.Marshal(b.Candidates)
	return &extractionBatchRow{
		ID:          b.ID,
		ContractID:  b.ContractID,
		DocumentRef: b.DocumentRef,
		ContentHash: b.ContentHash,
		Status:      string(b.Status),
		Candidates:  string(raw),
		SubmittedBy: b.SubmittedBy,
		CreatedAt:   b.CreatedAt,
		UpdatedAt:   b.UpdatedAt,
	}
}

func fromBatchRow(r *extractionBatchRow) *types.ExtractionBatch {
	var candidates []types.FieldCandidate
	_ = json.Unmarshal([]byte(r.Candidates), &candidates)
	return &types.ExtractionBatch{
		ID:          r.ID,
		ContractID:  r.ContractID,
		DocumentRef: r.DocumentRef,
		ContentHash: r.ContentHash,
		Status:      types.BatchStatus(r.Status),
		Candidates:  candidates,
		SubmittedBy: r.SubmittedBy,
		CreatedAt:   r.CreatedAt,
		UpdatedAt:   r.UpdatedAt,
	}
}

func toFieldRow(f *types.FieldRecord) *fieldRecordRow {
	return &fieldRecordRow{
		ContractID: f.ContractID,
		Name:       f.Name,
		Value:      f.Value,
		Source:     string(f.Source),
		Confidence: f.Confidence,
		ApproverID: f.ApproverID,
		BatchID:    f.BatchID,
		UpdatedAt:  f.UpdatedAt,
	}
}

func fromFieldRow(r *fieldRecordRow) types.FieldRecord {
	return types.FieldRecord{
		ContractID: r.ContractID,
		Name:       r.Name,
		Value:      r.Value,
		Source:     types.FieldSource(r.Source),
		Confidence: r.Confidence,
		ApproverID: r.ApproverID,
		BatchID:    r.BatchID,
		UpdatedAt:  r.UpdatedAt,
	}
}

func toTaskRow(t *types.NotificationTask) *notificationTaskRow {
	return &notificationTaskRow{
		ID:         t.ID,
		ContractID: t.ContractID,
		Kind:       string(t.Kind),
		Level:      t.Level,
		DueAt:      t.DueAt,
		Status:     string(t.Status),
		CreatedAt:  t.CreatedAt,
		UpdatedAt:  t.UpdatedAt,
	}
}

func fromTaskRow(r *notificationTaskRow) types.NotificationTask {
	return types.NotificationTask{
		ID:         r.ID,
		ContractID: r.ContractID,
		Kind:       types.NotificationKind(r.Kind),
		Level:      r.Level,
		DueAt:      r.DueAt,
		Status:     types.DeliveryStatus(r.Status),
		CreatedAt:  r.CreatedAt,
		UpdatedAt:  r.UpdatedAt,
	}
}

func toDocumentRow(d *types.DocumentRef) *documentRow {
	return &documentRow{
		ID:         d.ID,
		ContractID: d.ContractID,
		Filename:   d.Filename,
		Version:    d.Version,
		SHA256:     d.SHA256,
		UploadedAt: d.UploadedAt,
	}
}

func fromDocumentRow(r *documentRow) types.DocumentRef {
	return types.DocumentRef{
		ID:         r.ID,
		ContractID: r.ContractID,
		Filename:   r.Filename,
		Version:    r.Version,
		SHA256:     r.SHA256,
		UploadedAt: r.UploadedAt,
	}
}
