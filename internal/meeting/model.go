package meeting

import (
	"time"

	"gorm.io/gorm"
)

// SubItemStatus enumerates the linear lifecycle of an agenda sub-item.
type SubItemStatus string

const (
	// SubItemStatusFuture marks a sub-item not yet reached by the meeting.
	SubItemStatusFuture SubItemStatus = "future"
	// SubItemStatusCurrent marks the sub-item the meeting is on right now.
	SubItemStatusCurrent SubItemStatus = "current"
	// SubItemStatusClosed marks a sub-item the meeting has finished with.
	SubItemStatusClosed SubItemStatus = "closed"
)

// Item is a top-level agenda entry.
type Item struct {
	ID        uint           `gorm:"column:id;primaryKey"`
	Title     string         `gorm:"column:title;size:255;not null"`
	SortIndex int            `gorm:"column:sort_index;not null;default:0"`
	CreatedAt time.Time      `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt time.Time      `gorm:"column:updated_at;autoUpdateTime"`
	DeletedAt gorm.DeletedAt `gorm:"column:deleted_at;index"`
}

// TableName provides the explicit table binding for GORM.
func (Item) TableName() string {
	return "agenda_items"
}

// SubItem is a sub-entry of an agenda item. At most one sub-item is
// current at any time; votes may only open under the current one.
type SubItem struct {
	ID        uint           `gorm:"column:id;primaryKey"`
	ItemID    uint           `gorm:"column:item_id;not null;index"`
	Title     string         `gorm:"column:title;size:255;not null"`
	Status    SubItemStatus  `gorm:"column:status;size:16;not null;default:'future';index"`
	SortIndex int            `gorm:"column:sort_index;not null;default:0"`
	CreatedAt time.Time      `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt time.Time      `gorm:"column:updated_at;autoUpdateTime"`
	DeletedAt gorm.DeletedAt `gorm:"column:deleted_at;index"`
}

// TableName provides the explicit table binding for GORM.
func (SubItem) TableName() string {
	return "agenda_sub_items"
}

// Current reports whether the sub-item is the active one.
func (s SubItem) Current() bool {
	return s.Status == SubItemStatusCurrent
}
