package users

import (
	"strings"
	"time"

	"gorm.io/gorm"
)

// User captures the member slice this backend cares about: identity for
// display, the meeting presence flag, and the legacy votecode token.
type User struct {
	ID        uint           `gorm:"column:id;primaryKey"`
	Email     string         `gorm:"column:email;size:320;not null;uniqueIndex"`
	FirstName string         `gorm:"column:firstname;size:120;not null"`
	LastName  string         `gorm:"column:lastname;size:120;not null"`
	Presence  bool           `gorm:"column:presence;not null;default:false;index"`
	Votecode  string         `gorm:"column:votecode;size:64"`
	CreatedAt time.Time      `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt time.Time      `gorm:"column:updated_at;autoUpdateTime"`
	DeletedAt gorm.DeletedAt `gorm:"column:deleted_at;index"`
}

// TableName provides the explicit table binding for GORM.
func (User) TableName() string {
	return "users"
}

// DisplayName renders the member's name, falling back to email when the
// name fields are blank.
func (u User) DisplayName() string {
	name := strings.TrimSpace(strings.TrimSpace(u.FirstName) + " " + strings.TrimSpace(u.LastName))
	if name == "" {
		return u.Email
	}
	return name
}
