package voting

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// AuditAction names the lifecycle transition an audit record captures.
type AuditAction string

const (
	// AuditActionCreate records a vote's initial attribute set.
	AuditActionCreate AuditAction = "create"
	// AuditActionUpdate records the changed-field diff of an update.
	AuditActionUpdate AuditAction = "update"
	// AuditActionDestroy records a vote's removal.
	AuditActionDestroy AuditAction = "destroy"
)

// AuditRecord is one append-only entry in the vote audit trail.
type AuditRecord struct {
	ID                string      `gorm:"column:id;primaryKey;size:190;not null"`
	VoteID            uint        `gorm:"column:vote_id;not null;index"`
	Action            AuditAction `gorm:"column:action;size:16;not null"`
	ChangesJSON       string      `gorm:"column:changes_json;type:text;not null"`
	UpdaterID         *uint       `gorm:"column:updater_id"`
	RecordedAtSeconds int64       `gorm:"column:recorded_at_s;not null;index"`
}

// TableName provides the explicit table binding for GORM.
func (AuditRecord) TableName() string {
	return "vote_audits"
}

// IDProvider issues identifiers for audit records.
type IDProvider interface {
	NewID() (string, error)
}

type uuidProvider struct{}

// NewUUIDProvider constructs an IDProvider that issues UUIDv7 identifiers.
func NewUUIDProvider() IDProvider {
	return &uuidProvider{}
}

func (p *uuidProvider) NewID() (string, error) {
	value, err := uuid.NewV7()
	if err != nil {
		return "", err
	}
	return value.String(), nil
}

var errMissingAuditDatabase = errors.New("voting: audit log database handle is required")

// AuditLogConfig describes the dependencies of the audit log.
type AuditLogConfig struct {
	Database   *gorm.DB
	Clock      func() time.Time
	IDProvider IDProvider
	Logger     *zap.Logger
}

// AuditLog appends vote lifecycle records. It is called after the mutating
// transaction commits; its own failures are logged and never propagated,
// so an audit outage cannot roll back a vote mutation.
type AuditLog struct {
	db     *gorm.DB
	now    func() time.Time
	ids    IDProvider
	logger *zap.Logger
}

// NewAuditLog constructs the audit log.
func NewAuditLog(cfg AuditLogConfig) (*AuditLog, error) {
	if cfg.Database == nil {
		return nil, errMissingAuditDatabase
	}
	clock := cfg.Clock
	if clock == nil {
		clock = time.Now
	}
	ids := cfg.IDProvider
	if ids == nil {
		ids = NewUUIDProvider()
	}
	logger := cfg.Logger
	if logger == nil {
		logger = noOpLogger
	}
	return &AuditLog{db: cfg.Database, now: clock, ids: ids, logger: logger}, nil
}

// Record appends one audit entry. Updates with an empty diff are dropped.
func (l *AuditLog) Record(ctx context.Context, action AuditAction, voteID uint, changes map[string]any, updaterID *uint) {
	if action == AuditActionUpdate && len(changes) == 0 {
		return
	}
	if changes == nil {
		changes = map[string]any{}
	}

	payload, err := json.Marshal(changes)
	if err != nil {
		l.logger.Error("audit record marshal failed",
			zap.Uint("vote_id", voteID), zap.String("action", string(action)), zap.Error(err))
		return
	}
	recordID, err := l.ids.NewID()
	if err != nil {
		l.logger.Error("audit record id generation failed",
			zap.Uint("vote_id", voteID), zap.String("action", string(action)), zap.Error(err))
		return
	}

	record := AuditRecord{
		ID:                recordID,
		VoteID:            voteID,
		Action:            action,
		ChangesJSON:       string(payload),
		UpdaterID:         updaterID,
		RecordedAtSeconds: l.now().UTC().Unix(),
	}
	if err := l.db.WithContext(ctx).Create(&record).Error; err != nil {
		l.logger.Error("audit record insert failed",
			zap.Uint("vote_id", voteID), zap.String("action", string(action)), zap.Error(err))
	}
}

// Trail returns the audit entries for a vote, oldest first.
func (l *AuditLog) Trail(ctx context.Context, voteID uint) ([]AuditRecord, error) {
	var records []AuditRecord
	err := l.db.WithContext(ctx).
		Where("vote_id = ?", voteID).
		Order("recorded_at_s ASC, id ASC").
		Find(&records).Error
	if err != nil {
		return nil, err
	}
	return records, nil
}
