package voting

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/agora-portal/backend/internal/meeting"
	"github.com/agora-portal/backend/internal/users"
)

// Attend marks a member as present at the meeting. It requires an active
// sub-item; an open vote does not block arrival. Idempotent.
func (s *Service) Attend(ctx context.Context, userID uint) error {
	txErr := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		user, err := lockUser(tx, userID)
		if err != nil {
			return err
		}

		var current meeting.SubItem
		err = tx.Where("status = ?", meeting.SubItemStatusCurrent).Take(&current).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ErrNoCurrentSubItem
		}
		if err != nil {
			return err
		}

		if user.Presence {
			return nil
		}
		return tx.Model(user).Update("presence", true).Error
	})
	if txErr != nil {
		return txErr
	}

	s.logger.Info("member attending", zap.Uint("user_id", userID))
	return nil
}

// Unattend marks a member as absent. It fails while any vote is open (no
// leaving mid-round) and when no sub-item is active. Idempotent.
func (s *Service) Unattend(ctx context.Context, userID uint) error {
	txErr := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		user, err := lockUser(tx, userID)
		if err != nil {
			return err
		}

		var open Vote
		err = tx.Where("status = ?", VoteStatusOpen).Take(&open).Error
		if err == nil {
			return fmt.Errorf("%w: vote %d", ErrVoteOpen, open.ID)
		}
		if !errors.Is(err, gorm.ErrRecordNotFound) {
			return err
		}

		var current meeting.SubItem
		err = tx.Where("status = ?", meeting.SubItemStatusCurrent).Take(&current).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ErrNoCurrentSubItem
		}
		if err != nil {
			return err
		}

		if !user.Presence {
			return nil
		}
		return tx.Model(user).Update("presence", false).Error
	})
	if txErr != nil {
		return txErr
	}

	s.logger.Info("member left", zap.Uint("user_id", userID))
	return nil
}

// UnattendAll resets the presence flag for every member. It is the
// end-of-meeting bulk reset and deliberately performs no open-vote check;
// callers invoke it once the meeting is over.
func (s *Service) UnattendAll(ctx context.Context) error {
	result := s.db.WithContext(ctx).
		Model(&users.User{}).
		Where("presence = ?", true).
		Update("presence", false)
	if result.Error != nil {
		return result.Error
	}

	s.logger.Info("presence reset for all members", zap.Int64("affected", result.RowsAffected))
	return nil
}

// PresentCount returns the number of members currently marked present.
func (s *Service) PresentCount(ctx context.Context) (int, error) {
	var count int64
	err := s.db.WithContext(ctx).
		Model(&users.User{}).
		Where("presence = ?", true).
		Count(&count).Error
	if err != nil {
		return 0, err
	}
	return int(count), nil
}

func lockUser(tx *gorm.DB, userID uint) (*users.User, error) {
	var user users.User
	err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).Take(&user, userID).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, fmt.Errorf("%w: user %d", ErrNotFound, userID)
	}
	if err != nil {
		return nil, err
	}
	return &user, nil
}
