package voting

import (
	"strings"
	"time"

	"gorm.io/gorm"
)

// VoteStatus enumerates the lifecycle of a voting round. The open status
// is guarded by the lifecycle manager: at most one vote is open globally.
type VoteStatus string

const (
	// VoteStatusFuture marks a round that has not yet been opened.
	VoteStatusFuture VoteStatus = "future"
	// VoteStatusOpen marks the round currently accepting ballots.
	VoteStatusOpen VoteStatus = "open"
	// VoteStatusClosed marks a finished round with a frozen quorum snapshot.
	VoteStatusClosed VoteStatus = "closed"
)

// Vote is one voting round scoped to an agenda sub-item.
type Vote struct {
	ID           uint           `gorm:"column:id;primaryKey"`
	SubItemID    uint           `gorm:"column:sub_item_id;not null;index:idx_votes_sub_item_position,priority:1"`
	Title        string         `gorm:"column:title;size:255;not null"`
	Status       VoteStatus     `gorm:"column:status;size:16;not null;default:'future';index"`
	Choices      int            `gorm:"column:choices;not null;default:1"`
	PresentUsers int            `gorm:"column:present_users;not null;default:0"`
	Position     int            `gorm:"column:position;not null;default:0;index:idx_votes_sub_item_position,priority:2"`
	CreatedAt    time.Time      `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt    time.Time      `gorm:"column:updated_at;autoUpdateTime"`
	DeletedAt    gorm.DeletedAt `gorm:"column:deleted_at;index"`

	Options []VoteOption `gorm:"foreignKey:VoteID"`
}

// TableName provides the explicit table binding for GORM.
func (Vote) TableName() string {
	return "votes"
}

// IsOpen reports whether the round is accepting ballots.
func (v Vote) IsOpen() bool {
	return v.Status == VoteStatusOpen
}

// VoteOption is one selectable choice within a vote. Count is the live
// ballot tally, maintained with atomic column updates.
type VoteOption struct {
	ID        uint           `gorm:"column:id;primaryKey"`
	VoteID    uint           `gorm:"column:vote_id;not null;index"`
	Title     string         `gorm:"column:title;size:255;not null"`
	Count     int            `gorm:"column:count;not null;default:0"`
	CreatedAt time.Time      `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt time.Time      `gorm:"column:updated_at;autoUpdateTime"`
	DeletedAt gorm.DeletedAt `gorm:"column:deleted_at;index"`
}

// TableName provides the explicit table binding for GORM.
func (VoteOption) TableName() string {
	return "vote_options"
}

// VotePost is one member's ballot for one vote. At most one exists per
// (user, vote) pair; recasting replaces the option set in place.
type VotePost struct {
	ID        uint           `gorm:"column:id;primaryKey"`
	UserID    uint           `gorm:"column:user_id;not null;uniqueIndex:idx_vote_posts_user_vote,priority:1"`
	VoteID    uint           `gorm:"column:vote_id;not null;uniqueIndex:idx_vote_posts_user_vote,priority:2"`
	Selected  int            `gorm:"column:selected;not null;default:0"`
	CreatedAt time.Time      `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt time.Time      `gorm:"column:updated_at;autoUpdateTime"`
	DeletedAt gorm.DeletedAt `gorm:"column:deleted_at;index"`
}

// TableName provides the explicit table binding for GORM.
func (VotePost) TableName() string {
	return "vote_posts"
}

// VotePostOption links a ballot to one chosen option.
type VotePostOption struct {
	VotePostID   uint `gorm:"column:vote_post_id;primaryKey"`
	VoteOptionID uint `gorm:"column:vote_option_id;primaryKey"`
}

// TableName provides the explicit table binding for GORM.
func (VotePostOption) TableName() string {
	return "vote_post_options"
}

// VoteDraft carries the caller-supplied attributes for creating a vote.
// Blank option labels are dropped rather than rejected.
type VoteDraft struct {
	SubItemID uint
	Title     string
	Choices   int
	Options   []string
}

// Validate reports field-level problems with the draft.
func (d VoteDraft) Validate() ValidationErrors {
	fieldErrors := ValidationErrors{}
	if strings.TrimSpace(d.Title) == "" {
		fieldErrors.Add("title", "is required")
	}
	if d.Choices < 1 {
		fieldErrors.Add("choices", "must be at least 1")
	}
	if d.SubItemID == 0 {
		fieldErrors.Add("sub_item", "is required")
	}
	return fieldErrors
}

// VoteChanges carries the mutable attributes for updating a vote. Nil
// pointers leave the attribute untouched. Reset marks the audit record of
// an administrative tally reset.
type VoteChanges struct {
	Title   *string
	Choices *int
	Reset   bool
}
