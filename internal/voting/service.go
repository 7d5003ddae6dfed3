package voting

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"
	"gorm.io/gorm"
)

var (
	errMissingDatabase = errors.New("voting: database handle is required")

	noOpLogger = zap.NewNop()
)

// ServiceConfig describes the dependencies of the voting service.
type ServiceConfig struct {
	Database *gorm.DB
	Clock    func() time.Time
	Audit    *AuditLog
	Logger   *zap.Logger
}

// Service is the voting and attendance core: vote lifecycle, ballot
// casting, and presence tracking. Every mutating operation executes as a
// single transaction; audit records are appended after commit.
type Service struct {
	db     *gorm.DB
	now    func() time.Time
	audit  *AuditLog
	logger *zap.Logger
}

// NewService constructs the voting service. When no audit log is supplied
// one is built over the same database handle.
func NewService(cfg ServiceConfig) (*Service, error) {
	if cfg.Database == nil {
		return nil, errMissingDatabase
	}
	clock := cfg.Clock
	if clock == nil {
		clock = time.Now
	}
	logger := cfg.Logger
	if logger == nil {
		logger = noOpLogger
	}
	audit := cfg.Audit
	if audit == nil {
		built, err := NewAuditLog(AuditLogConfig{Database: cfg.Database, Clock: clock, Logger: logger})
		if err != nil {
			return nil, err
		}
		audit = built
	}
	return &Service{db: cfg.Database, now: clock, audit: audit, logger: logger}, nil
}

// Audit exposes the audit log for trail queries.
func (s *Service) Audit() *AuditLog {
	return s.audit
}

// Get returns the vote with its options, ordered as created.
func (s *Service) Get(ctx context.Context, voteID uint) (*Vote, error) {
	var vote Vote
	err := s.db.WithContext(ctx).
		Preload("Options", func(db *gorm.DB) *gorm.DB { return db.Order("vote_options.id ASC") }).
		Take(&vote, voteID).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, fmt.Errorf("%w: id %d", ErrVoteNotFound, voteID)
	}
	if err != nil {
		return nil, err
	}
	return &vote, nil
}

// CurrentOpen returns the globally open vote, or nil when none is open.
func (s *Service) CurrentOpen(ctx context.Context) (*Vote, error) {
	var vote Vote
	err := s.db.WithContext(ctx).
		Preload("Options", func(db *gorm.DB) *gorm.DB { return db.Order("vote_options.id ASC") }).
		Where("status = ?", VoteStatusOpen).
		Take(&vote).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &vote, nil
}

// ListBySubItem returns a sub-item's votes in position order.
func (s *Service) ListBySubItem(ctx context.Context, subItemID uint) ([]Vote, error) {
	var votes []Vote
	err := s.db.WithContext(ctx).
		Preload("Options", func(db *gorm.DB) *gorm.DB { return db.Order("vote_options.id ASC") }).
		Where("sub_item_id = ?", subItemID).
		Order("position ASC").
		Find(&votes).Error
	if err != nil {
		return nil, err
	}
	return votes, nil
}
