package meeting

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	sqlite "github.com/glebarez/sqlite"
	"gorm.io/gorm"
)

func newTestService(t *testing.T) (*Service, *gorm.DB) {
	t.Helper()

	dsn := fmt.Sprintf("file:agora_meeting_test_%d?mode=memory&cache=shared", time.Now().UnixNano())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	if err != nil {
		t.Fatalf("failed to open sqlite: %v", err)
	}
	if err := db.AutoMigrate(&Item{}, &SubItem{}); err != nil {
		t.Fatalf("failed to migrate: %v", err)
	}

	service, err := NewService(ServiceConfig{Database: db})
	if err != nil {
		t.Fatalf("failed to construct meeting service: %v", err)
	}
	return service, db
}

func createSubItem(t *testing.T, db *gorm.DB, status SubItemStatus) SubItem {
	t.Helper()
	item := Item{Title: "Agenda item"}
	if err := db.Create(&item).Error; err != nil {
		t.Fatalf("failed to create agenda item: %v", err)
	}
	subItem := SubItem{ItemID: item.ID, Title: "Sub-item", Status: status}
	if err := db.Create(&subItem).Error; err != nil {
		t.Fatalf("failed to create sub-item: %v", err)
	}
	return subItem
}

func TestSetCurrentClosesPreviousCurrent(t *testing.T) {
	service, db := newTestService(t)
	previous := createSubItem(t, db, SubItemStatusCurrent)
	next := createSubItem(t, db, SubItemStatusFuture)

	updated, err := service.SetCurrent(context.Background(), next.ID)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if updated.Status != SubItemStatusCurrent {
		t.Fatalf("expected current status, got %s", updated.Status)
	}

	var reloadedPrevious SubItem
	if err := db.Take(&reloadedPrevious, previous.ID).Error; err != nil {
		t.Fatalf("failed to reload previous sub-item: %v", err)
	}
	if reloadedPrevious.Status != SubItemStatusClosed {
		t.Fatalf("previous current must close, got %s", reloadedPrevious.Status)
	}

	var currentCount int64
	if err := db.Model(&SubItem{}).Where("status = ?", SubItemStatusCurrent).Count(&currentCount).Error; err != nil {
		t.Fatalf("failed to count current sub-items: %v", err)
	}
	if currentCount != 1 {
		t.Fatalf("expected exactly one current sub-item, got %d", currentCount)
	}
}

func TestSetCurrentRejectsClosedSubItem(t *testing.T) {
	service, db := newTestService(t)
	closed := createSubItem(t, db, SubItemStatusClosed)

	_, err := service.SetCurrent(context.Background(), closed.ID)
	if !errors.Is(err, ErrSubItemClosed) {
		t.Fatalf("expected ErrSubItemClosed, got %v", err)
	}
}

func TestSetCurrentIsIdempotent(t *testing.T) {
	service, db := newTestService(t)
	subItem := createSubItem(t, db, SubItemStatusCurrent)

	updated, err := service.SetCurrent(context.Background(), subItem.ID)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if updated.Status != SubItemStatusCurrent {
		t.Fatalf("expected current status, got %s", updated.Status)
	}
}

func TestSetClosed(t *testing.T) {
	service, db := newTestService(t)
	subItem := createSubItem(t, db, SubItemStatusCurrent)

	updated, err := service.SetClosed(context.Background(), subItem.ID)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if updated.Status != SubItemStatusClosed {
		t.Fatalf("expected closed status, got %s", updated.Status)
	}

	// Closing again is a no-op.
	if _, err := service.SetClosed(context.Background(), subItem.ID); err != nil {
		t.Fatalf("second close must succeed: %v", err)
	}
}

func TestCurrentSubItem(t *testing.T) {
	service, db := newTestService(t)

	current, err := service.CurrentSubItem(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if current != nil {
		t.Fatalf("expected no current sub-item, got %+v", current)
	}

	subItem := createSubItem(t, db, SubItemStatusCurrent)
	current, err = service.CurrentSubItem(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if current == nil || current.ID != subItem.ID {
		t.Fatalf("expected sub-item %d, got %+v", subItem.ID, current)
	}
}

func TestSubItemNotFound(t *testing.T) {
	service, _ := newTestService(t)

	if _, err := service.SetCurrent(context.Background(), 42); !errors.Is(err, ErrSubItemNotFound) {
		t.Fatalf("expected ErrSubItemNotFound, got %v", err)
	}
	if _, err := service.SetClosed(context.Background(), 42); !errors.Is(err, ErrSubItemNotFound) {
		t.Fatalf("expected ErrSubItemNotFound, got %v", err)
	}
}
