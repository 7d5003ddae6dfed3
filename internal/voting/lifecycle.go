package voting

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"go.uber.org/zap"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/agora-portal/backend/internal/meeting"
	"github.com/agora-portal/backend/internal/users"
)

// Create inserts a new vote in the future status, appended to the end of
// its sub-item's position list. Blank option labels are dropped.
func (s *Service) Create(ctx context.Context, actorID *uint, draft VoteDraft) (*Vote, error) {
	if fieldErrors := draft.Validate(); len(fieldErrors) > 0 {
		return nil, fieldErrors
	}

	vote := Vote{
		SubItemID: draft.SubItemID,
		Title:     strings.TrimSpace(draft.Title),
		Status:    VoteStatusFuture,
		Choices:   draft.Choices,
	}
	txErr := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var subItem meeting.SubItem
		if err := tx.Take(&subItem, draft.SubItemID).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				fieldErrors := ValidationErrors{}
				fieldErrors.Add("sub_item", "does not exist")
				return fieldErrors
			}
			return err
		}

		var maxPosition int
		err := tx.Model(&Vote{}).
			Where("sub_item_id = ?", draft.SubItemID).
			Select("COALESCE(MAX(position), 0)").
			Scan(&maxPosition).Error
		if err != nil {
			return err
		}
		vote.Position = maxPosition + 1

		if err := tx.Create(&vote).Error; err != nil {
			return err
		}
		for _, label := range draft.Options {
			label = strings.TrimSpace(label)
			if label == "" {
				continue
			}
			option := VoteOption{VoteID: vote.ID, Title: label}
			if err := tx.Create(&option).Error; err != nil {
				return err
			}
			vote.Options = append(vote.Options, option)
		}
		return nil
	})
	if txErr != nil {
		return nil, txErr
	}

	s.audit.Record(ctx, AuditActionCreate, vote.ID, map[string]any{
		"sub_item_id": vote.SubItemID,
		"title":       vote.Title,
		"status":      vote.Status,
		"choices":     vote.Choices,
		"position":    vote.Position,
	}, actorID)
	s.logger.Info("vote created", zap.Uint("vote_id", vote.ID), zap.Uint("sub_item_id", vote.SubItemID))
	return &vote, nil
}

// Update applies title/choices changes to a vote. The audit diff carries
// only the fields that actually changed; an empty diff emits no record.
func (s *Service) Update(ctx context.Context, actorID *uint, voteID uint, changes VoteChanges) (*Vote, error) {
	if changes.Title != nil && strings.TrimSpace(*changes.Title) == "" {
		fieldErrors := ValidationErrors{}
		fieldErrors.Add("title", "is required")
		return nil, fieldErrors
	}
	if changes.Choices != nil && *changes.Choices < 1 {
		fieldErrors := ValidationErrors{}
		fieldErrors.Add("choices", "must be at least 1")
		return nil, fieldErrors
	}

	var vote Vote
	diff := map[string]any{}
	txErr := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := lockVote(tx, voteID, &vote); err != nil {
			return err
		}

		updates := map[string]any{}
		if changes.Title != nil && strings.TrimSpace(*changes.Title) != vote.Title {
			updates["title"] = strings.TrimSpace(*changes.Title)
		}
		if changes.Choices != nil && *changes.Choices != vote.Choices {
			updates["choices"] = *changes.Choices
		}
		if len(updates) == 0 {
			return nil
		}
		if err := tx.Model(&vote).Updates(updates).Error; err != nil {
			return err
		}
		for field, value := range updates {
			diff[field] = value
		}
		return nil
	})
	if txErr != nil {
		return nil, txErr
	}

	if changes.Reset {
		diff["reset"] = ""
	}
	s.audit.Record(ctx, AuditActionUpdate, vote.ID, diff, actorID)
	return &vote, nil
}

// Open transitions a vote to the open status. It fails when a different
// vote is already open or when the vote's sub-item is not current.
// Opening an already-open vote is a no-op.
func (s *Service) Open(ctx context.Context, actorID *uint, voteID uint) (*Vote, error) {
	var vote Vote
	opened := false
	txErr := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := lockVote(tx, voteID, &vote); err != nil {
			return err
		}
		if vote.IsOpen() {
			return nil
		}

		var open Vote
		err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
			Where("status = ?", VoteStatusOpen).
			Take(&open).Error
		if err == nil {
			return fmt.Errorf("%w: vote %d is open", ErrAnotherVoteOpen, open.ID)
		}
		if !errors.Is(err, gorm.ErrRecordNotFound) {
			return err
		}

		var subItem meeting.SubItem
		if err := tx.Take(&subItem, vote.SubItemID).Error; err != nil {
			return err
		}
		if !subItem.Current() {
			return fmt.Errorf("%w: sub-item %d is %s", ErrSubItemNotCurrent, subItem.ID, subItem.Status)
		}

		vote.Status = VoteStatusOpen
		opened = true
		return tx.Model(&vote).Update("status", VoteStatusOpen).Error
	})
	if txErr != nil {
		return nil, txErr
	}

	if opened {
		s.audit.Record(ctx, AuditActionUpdate, vote.ID, map[string]any{"status": VoteStatusOpen}, actorID)
		s.logger.Info("vote opened", zap.Uint("vote_id", vote.ID))
	}
	return &vote, nil
}

// Close transitions an open vote to closed and freezes the quorum
// snapshot: present_users is the count of attending members taken inside
// the same transaction that flips the status, and is never recomputed.
func (s *Service) Close(ctx context.Context, actorID *uint, voteID uint) (*Vote, error) {
	var vote Vote
	txErr := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := lockVote(tx, voteID, &vote); err != nil {
			return err
		}
		if !vote.IsOpen() {
			return fmt.Errorf("%w: vote %d is %s", ErrVoteNotOpen, vote.ID, vote.Status)
		}

		var presentCount int64
		err := tx.Model(&users.User{}).
			Where("presence = ?", true).
			Count(&presentCount).Error
		if err != nil {
			return err
		}

		vote.Status = VoteStatusClosed
		vote.PresentUsers = int(presentCount)
		return tx.Model(&vote).Updates(map[string]any{
			"status":        VoteStatusClosed,
			"present_users": vote.PresentUsers,
		}).Error
	})
	if txErr != nil {
		return nil, txErr
	}

	s.audit.Record(ctx, AuditActionUpdate, vote.ID, map[string]any{
		"status":        VoteStatusClosed,
		"present_users": vote.PresentUsers,
	}, actorID)
	s.logger.Info("vote closed",
		zap.Uint("vote_id", vote.ID), zap.Int("present_users", vote.PresentUsers))
	return &vote, nil
}

// Destroy soft-deletes a vote together with its options, ballots, and
// ballot-option links, then closes the position gap among its siblings.
func (s *Service) Destroy(ctx context.Context, actorID *uint, voteID uint) error {
	var vote Vote
	txErr := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := lockVote(tx, voteID, &vote); err != nil {
			return err
		}

		postIDs := tx.Model(&VotePost{}).Where("vote_id = ?", vote.ID).Select("id")
		if err := tx.Where("vote_post_id IN (?)", postIDs).Delete(&VotePostOption{}).Error; err != nil {
			return err
		}
		if err := tx.Where("vote_id = ?", vote.ID).Delete(&VotePost{}).Error; err != nil {
			return err
		}
		if err := tx.Where("vote_id = ?", vote.ID).Delete(&VoteOption{}).Error; err != nil {
			return err
		}
		if err := tx.Delete(&vote).Error; err != nil {
			return err
		}

		return tx.Model(&Vote{}).
			Where("sub_item_id = ? AND position > ?", vote.SubItemID, vote.Position).
			UpdateColumn("position", gorm.Expr("position - ?", 1)).Error
	})
	if txErr != nil {
		return txErr
	}

	s.audit.Record(ctx, AuditActionDestroy, vote.ID, map[string]any{}, actorID)
	s.logger.Info("vote destroyed", zap.Uint("vote_id", vote.ID))
	return nil
}

// Reorder moves a vote to the given position among its sub-item siblings,
// renumbering the rows in between. Positions are clamped to the list.
func (s *Service) Reorder(ctx context.Context, actorID *uint, voteID uint, position int) (*Vote, error) {
	var vote Vote
	moved := false
	txErr := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := lockVote(tx, voteID, &vote); err != nil {
			return err
		}

		var siblingCount int64
		err := tx.Model(&Vote{}).
			Where("sub_item_id = ?", vote.SubItemID).
			Count(&siblingCount).Error
		if err != nil {
			return err
		}
		if position < 1 {
			position = 1
		}
		if position > int(siblingCount) {
			position = int(siblingCount)
		}
		if position == vote.Position {
			return nil
		}

		if position < vote.Position {
			err = tx.Model(&Vote{}).
				Where("sub_item_id = ? AND position >= ? AND position < ?", vote.SubItemID, position, vote.Position).
				UpdateColumn("position", gorm.Expr("position + ?", 1)).Error
		} else {
			err = tx.Model(&Vote{}).
				Where("sub_item_id = ? AND position > ? AND position <= ?", vote.SubItemID, vote.Position, position).
				UpdateColumn("position", gorm.Expr("position - ?", 1)).Error
		}
		if err != nil {
			return err
		}

		vote.Position = position
		moved = true
		return tx.Model(&vote).UpdateColumn("position", position).Error
	})
	if txErr != nil {
		return nil, txErr
	}

	if moved {
		s.audit.Record(ctx, AuditActionUpdate, vote.ID, map[string]any{"position": vote.Position}, actorID)
	}
	return &vote, nil
}

func lockVote(tx *gorm.DB, voteID uint, vote *Vote) error {
	err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).Take(vote, voteID).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return fmt.Errorf("%w: id %d", ErrVoteNotFound, voteID)
	}
	return err
}
