package database

import (
	"errors"
	"time"

	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/agora-portal/backend/internal/users"
	"github.com/agora-portal/backend/internal/voting"
)

const (
	migrationResetStalePresence    = "2026-05-12_reset_stale_presence"
	migrationBackfillVotePositions = "2026-05-12_backfill_vote_positions"
)

type migrationRecord struct {
	Name             string `gorm:"column:name;primaryKey;size:190;not null"`
	AppliedAtSeconds int64  `gorm:"column:applied_at_s;not null"`
}

func (migrationRecord) TableName() string {
	return "db_migrations"
}

type migrationDefinition struct {
	name  string
	apply func(*gorm.DB) error
}

func applyMigrations(db *gorm.DB, logger *zap.Logger) error {
	migrations := []migrationDefinition{
		{name: migrationResetStalePresence, apply: resetStalePresence},
		{name: migrationBackfillVotePositions, apply: backfillVotePositions},
	}

	for _, migration := range migrations {
		var record migrationRecord
		err := db.Where("name = ?", migration.name).Take(&record).Error
		if err == nil {
			continue
		}
		if !errors.Is(err, gorm.ErrRecordNotFound) {
			return err
		}
		if err := migration.apply(db); err != nil {
			return err
		}
		appliedAt := time.Now().UTC().Unix()
		if err := db.Create(&migrationRecord{Name: migration.name, AppliedAtSeconds: appliedAt}).Error; err != nil {
			return err
		}
		if logger != nil {
			logger.Info("database migration applied", zap.String("migration", migration.name))
		}
	}
	return nil
}

// Presence flags are meeting-scoped; rows imported from the previous
// portal carried them as permanent attributes.
func resetStalePresence(db *gorm.DB) error {
	return db.Model(&users.User{}).
		Where("presence = ?", true).
		Update("presence", false).Error
}

// Imported votes predate explicit list positions and all arrived with
// position 0; number them by creation order within each sub-item.
func backfillVotePositions(db *gorm.DB) error {
	var subItemIDs []uint
	err := db.Model(&voting.Vote{}).
		Where("position = ?", 0).
		Distinct("sub_item_id").
		Pluck("sub_item_id", &subItemIDs).Error
	if err != nil {
		return err
	}

	for _, subItemID := range subItemIDs {
		var votes []voting.Vote
		if err := db.Where("sub_item_id = ?", subItemID).
			Order("created_at ASC, id ASC").
			Find(&votes).Error; err != nil {
			return err
		}
		for index, vote := range votes {
			if err := db.Model(&vote).
				UpdateColumn("position", index+1).Error; err != nil {
				return err
			}
		}
	}
	return nil
}
