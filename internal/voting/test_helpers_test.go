package voting

import (
	"fmt"
	"testing"
	"time"

	sqlite "github.com/glebarez/sqlite"
	"gorm.io/gorm"

	"github.com/agora-portal/backend/internal/meeting"
	"github.com/agora-portal/backend/internal/users"
)

type sequentialIDGenerator struct {
	next int
}

func (g *sequentialIDGenerator) NewID() (string, error) {
	g.next++
	return fmt.Sprintf("audit-%d", g.next), nil
}

func newTestService(t *testing.T) (*Service, *gorm.DB) {
	t.Helper()

	dsn := fmt.Sprintf("file:agora_voting_test_%d?mode=memory&cache=shared", time.Now().UnixNano())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	if err != nil {
		t.Fatalf("failed to open sqlite: %v", err)
	}
	sqlDB, err := db.DB()
	if err != nil {
		t.Fatalf("failed to access sql db: %v", err)
	}
	sqlDB.SetMaxOpenConns(1)

	if err := db.AutoMigrate(
		&users.User{},
		&meeting.Item{},
		&meeting.SubItem{},
		&Vote{},
		&VoteOption{},
		&VotePost{},
		&VotePostOption{},
		&AuditRecord{},
	); err != nil {
		t.Fatalf("failed to migrate: %v", err)
	}

	clock := func() time.Time { return time.Unix(1750000000, 0).UTC() }
	audit, err := NewAuditLog(AuditLogConfig{
		Database:   db,
		Clock:      clock,
		IDProvider: &sequentialIDGenerator{},
	})
	if err != nil {
		t.Fatalf("failed to construct audit log: %v", err)
	}

	service, err := NewService(ServiceConfig{
		Database: db,
		Clock:    clock,
		Audit:    audit,
	})
	if err != nil {
		t.Fatalf("failed to construct voting service: %v", err)
	}

	return service, db
}

var testUserSequence int

func createTestUser(t *testing.T, db *gorm.DB, present bool) users.User {
	t.Helper()
	testUserSequence++
	user := users.User{
		Email:     fmt.Sprintf("member%d@example.org", testUserSequence),
		FirstName: "Test",
		LastName:  "Member",
		Presence:  present,
	}
	if err := db.Create(&user).Error; err != nil {
		t.Fatalf("failed to create user: %v", err)
	}
	return user
}

func createTestSubItem(t *testing.T, db *gorm.DB, status meeting.SubItemStatus) meeting.SubItem {
	t.Helper()
	item := meeting.Item{Title: "Agenda item"}
	if err := db.Create(&item).Error; err != nil {
		t.Fatalf("failed to create agenda item: %v", err)
	}
	subItem := meeting.SubItem{ItemID: item.ID, Title: "Sub-item", Status: status}
	if err := db.Create(&subItem).Error; err != nil {
		t.Fatalf("failed to create sub-item: %v", err)
	}
	return subItem
}

func createTestVote(t *testing.T, db *gorm.DB, subItemID uint, status VoteStatus, choices, optionCount int) Vote {
	t.Helper()
	var position int64
	if err := db.Model(&Vote{}).Where("sub_item_id = ?", subItemID).Count(&position).Error; err != nil {
		t.Fatalf("failed to count sibling votes: %v", err)
	}
	vote := Vote{
		SubItemID: subItemID,
		Title:     "Motion",
		Status:    status,
		Choices:   choices,
		Position:  int(position) + 1,
	}
	if err := db.Create(&vote).Error; err != nil {
		t.Fatalf("failed to create vote: %v", err)
	}
	for i := 0; i < optionCount; i++ {
		option := VoteOption{VoteID: vote.ID, Title: fmt.Sprintf("Option %d", i+1)}
		if err := db.Create(&option).Error; err != nil {
			t.Fatalf("failed to create option: %v", err)
		}
		vote.Options = append(vote.Options, option)
	}
	return vote
}

func optionCount(t *testing.T, db *gorm.DB, optionID uint) int {
	t.Helper()
	var option VoteOption
	if err := db.Take(&option, optionID).Error; err != nil {
		t.Fatalf("failed to load option %d: %v", optionID, err)
	}
	return option.Count
}
