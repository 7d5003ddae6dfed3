package meeting

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

var (
	// ErrSubItemNotFound indicates the sub-item id did not resolve.
	ErrSubItemNotFound = errors.New("meeting: sub-item not found")
	// ErrSubItemClosed indicates an attempt to move a closed sub-item
	// backwards in its lifecycle.
	ErrSubItemClosed = errors.New("meeting: sub-item already closed")

	errMissingDatabase = errors.New("meeting: database handle is required")

	noOpLogger = zap.NewNop()
)

// ServiceConfig describes the dependencies of the agenda service.
type ServiceConfig struct {
	Database *gorm.DB
	Clock    func() time.Time
	Logger   *zap.Logger
}

// Service drives the sub-item currency signal consumed by the voting core.
type Service struct {
	db     *gorm.DB
	now    func() time.Time
	logger *zap.Logger
}

// NewService constructs the agenda service.
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
	return &Service{db: cfg.Database, now: clock, logger: logger}, nil
}

// CurrentSubItem returns the active sub-item, or nil when the meeting is
// between items.
func (s *Service) CurrentSubItem(ctx context.Context) (*SubItem, error) {
	var subItem SubItem
	err := s.db.WithContext(ctx).
		Where("status = ?", SubItemStatusCurrent).
		Take(&subItem).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &subItem, nil
}

// SetCurrent advances the named sub-item to current and closes whichever
// sub-item held currency before. Closed sub-items never reopen.
func (s *Service) SetCurrent(ctx context.Context, subItemID uint) (*SubItem, error) {
	var subItem SubItem
	txErr := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
			Take(&subItem, subItemID).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return fmt.Errorf("%w: id %d", ErrSubItemNotFound, subItemID)
		}
		if err != nil {
			return err
		}
		if subItem.Status == SubItemStatusCurrent {
			return nil
		}
		if subItem.Status == SubItemStatusClosed {
			return fmt.Errorf("%w: id %d", ErrSubItemClosed, subItemID)
		}

		if err := tx.Model(&SubItem{}).
			Where("status = ?", SubItemStatusCurrent).
			Update("status", SubItemStatusClosed).Error; err != nil {
			return err
		}

		subItem.Status = SubItemStatusCurrent
		return tx.Model(&subItem).Update("status", SubItemStatusCurrent).Error
	})
	if txErr != nil {
		return nil, txErr
	}

	s.logger.Info("sub-item set current", zap.Uint("sub_item_id", subItemID))
	return &subItem, nil
}

// SetClosed closes the named sub-item. Idempotent.
func (s *Service) SetClosed(ctx context.Context, subItemID uint) (*SubItem, error) {
	var subItem SubItem
	txErr := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
			Take(&subItem, subItemID).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return fmt.Errorf("%w: id %d", ErrSubItemNotFound, subItemID)
		}
		if err != nil {
			return err
		}
		if subItem.Status == SubItemStatusClosed {
			return nil
		}
		subItem.Status = SubItemStatusClosed
		return tx.Model(&subItem).Update("status", SubItemStatusClosed).Error
	})
	if txErr != nil {
		return nil, txErr
	}

	s.logger.Info("sub-item closed", zap.Uint("sub_item_id", subItemID))
	return &subItem, nil
}
