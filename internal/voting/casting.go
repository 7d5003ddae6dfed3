package voting

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/agora-portal/backend/internal/users"
)

// Cast records or replaces a member's ballot for an open vote.
//
// Validation failures are returned as ValidationErrors and leave every
// tally untouched. A first cast creates the ballot and increments the
// chosen option counts; a recast replaces the stored option set, applying
// increments and decrements only to the symmetric difference. An empty
// option set is a valid abstention. Tally writes are atomic column
// expressions, so concurrent casts on the same option never lose updates.
func (s *Service) Cast(ctx context.Context, userID, voteID uint, optionIDs []uint) (*VotePost, error) {
	chosen := dedupe(optionIDs)

	var post VotePost
	txErr := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var vote Vote
		if err := lockVote(tx, voteID, &vote); err != nil {
			return err
		}
		var user users.User
		if err := tx.Take(&user, userID).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return fmt.Errorf("%w: user %d", ErrNotFound, userID)
			}
			return err
		}

		var options []VoteOption
		if err := tx.Where("vote_id = ?", vote.ID).Find(&options).Error; err != nil {
			return err
		}
		owned := make(map[uint]bool, len(options))
		for _, option := range options {
			owned[option.ID] = true
		}

		fieldErrors := ValidationErrors{}
		if !vote.IsOpen() {
			fieldErrors.Add("vote", "is not open")
		}
		for _, optionID := range chosen {
			if !owned[optionID] {
				fieldErrors.Add("options", fmt.Sprintf("option %d does not belong to the vote", optionID))
			}
		}
		if len(chosen) > vote.Choices {
			fieldErrors.Add("options", fmt.Sprintf("at most %d choices allowed", vote.Choices))
		}
		if len(fieldErrors) > 0 {
			return fieldErrors
		}

		err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
			Where("user_id = ? AND vote_id = ?", userID, vote.ID).
			Take(&post).Error
		switch {
		case errors.Is(err, gorm.ErrRecordNotFound):
			post = VotePost{UserID: userID, VoteID: vote.ID, Selected: len(chosen)}
			if err := tx.Create(&post).Error; err != nil {
				return err
			}
			return applyBallotDiff(tx, post.ID, nil, chosen)
		case err != nil:
			return err
		}

		var links []VotePostOption
		if err := tx.Where("vote_post_id = ?", post.ID).Find(&links).Error; err != nil {
			return err
		}
		previous := make([]uint, 0, len(links))
		for _, link := range links {
			previous = append(previous, link.VoteOptionID)
		}

		if err := applyBallotDiff(tx, post.ID, previous, chosen); err != nil {
			return err
		}
		post.Selected = len(chosen)
		return tx.Model(&post).Update("selected", post.Selected).Error
	})
	if txErr != nil {
		return nil, txErr
	}

	s.logger.Debug("ballot recorded",
		zap.Uint("user_id", userID), zap.Uint("vote_id", voteID), zap.Int("selected", post.Selected))
	return &post, nil
}

// applyBallotDiff reconciles the stored option links with the new choice
// set and adjusts the option tallies by the set difference only.
func applyBallotDiff(tx *gorm.DB, postID uint, previous, next []uint) error {
	previousSet := make(map[uint]bool, len(previous))
	for _, optionID := range previous {
		previousSet[optionID] = true
	}
	nextSet := make(map[uint]bool, len(next))
	for _, optionID := range next {
		nextSet[optionID] = true
	}

	for _, optionID := range previous {
		if nextSet[optionID] {
			continue
		}
		if err := tx.Where("vote_post_id = ? AND vote_option_id = ?", postID, optionID).
			Delete(&VotePostOption{}).Error; err != nil {
			return err
		}
		if err := tx.Model(&VoteOption{}).
			Where("id = ?", optionID).
			UpdateColumn("count", gorm.Expr("count - ?", 1)).Error; err != nil {
			return err
		}
	}
	for _, optionID := range next {
		if previousSet[optionID] {
			continue
		}
		if err := tx.Create(&VotePostOption{VotePostID: postID, VoteOptionID: optionID}).Error; err != nil {
			return err
		}
		if err := tx.Model(&VoteOption{}).
			Where("id = ?", optionID).
			UpdateColumn("count", gorm.Expr("count + ?", 1)).Error; err != nil {
			return err
		}
	}
	return nil
}

// Ballot returns the member's stored ballot for a vote together with the
// chosen option ids, or nil when no ballot exists.
func (s *Service) Ballot(ctx context.Context, userID, voteID uint) (*VotePost, []uint, error) {
	var post VotePost
	err := s.db.WithContext(ctx).
		Where("user_id = ? AND vote_id = ?", userID, voteID).
		Take(&post).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil, nil
	}
	if err != nil {
		return nil, nil, err
	}

	var links []VotePostOption
	if err := s.db.WithContext(ctx).
		Where("vote_post_id = ?", post.ID).
		Order("vote_option_id ASC").
		Find(&links).Error; err != nil {
		return nil, nil, err
	}
	optionIDs := make([]uint, 0, len(links))
	for _, link := range links {
		optionIDs = append(optionIDs, link.VoteOptionID)
	}
	return &post, optionIDs, nil
}

func dedupe(ids []uint) []uint {
	seen := make(map[uint]bool, len(ids))
	unique := make([]uint, 0, len(ids))
	for _, id := range ids {
		if seen[id] {
			continue
		}
		seen[id] = true
		unique = append(unique, id)
	}
	return unique
}
