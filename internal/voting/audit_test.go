package voting

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/agora-portal/backend/internal/meeting"
)

func auditRecords(t *testing.T, service *Service, voteID uint) []AuditRecord {
	t.Helper()
	records, err := service.Audit().Trail(context.Background(), voteID)
	if err != nil {
		t.Fatalf("failed to load audit trail: %v", err)
	}
	return records
}

func decodeChanges(t *testing.T, record AuditRecord) map[string]any {
	t.Helper()
	changes := map[string]any{}
	if err := json.Unmarshal([]byte(record.ChangesJSON), &changes); err != nil {
		t.Fatalf("failed to decode audit changes: %v", err)
	}
	return changes
}

func TestAuditRecordsCreateWithFullAttributes(t *testing.T) {
	service, db := newTestService(t)
	subItem := createTestSubItem(t, db, meeting.SubItemStatusCurrent)
	actor := createTestUser(t, db, false)

	vote, err := service.Create(context.Background(), &actor.ID, VoteDraft{
		SubItemID: subItem.ID, Title: "Motion", Choices: 2, Options: []string{"Yes", "No"},
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	records := auditRecords(t, service, vote.ID)
	if len(records) != 1 {
		t.Fatalf("expected 1 audit record, got %d", len(records))
	}
	if records[0].Action != AuditActionCreate {
		t.Fatalf("expected create action, got %s", records[0].Action)
	}
	if records[0].UpdaterID == nil || *records[0].UpdaterID != actor.ID {
		t.Fatalf("expected updater %d, got %v", actor.ID, records[0].UpdaterID)
	}

	changes := decodeChanges(t, records[0])
	if changes["title"] != "Motion" {
		t.Fatalf("expected title in create diff, got %v", changes)
	}
	if changes["status"] != string(VoteStatusFuture) {
		t.Fatalf("expected status in create diff, got %v", changes)
	}
}

func TestAuditRecordsUpdateDiffOnly(t *testing.T) {
	service, db := newTestService(t)
	subItem := createTestSubItem(t, db, meeting.SubItemStatusCurrent)
	vote := createTestVote(t, db, subItem.ID, VoteStatusFuture, 1, 0)

	title := "Amended motion"
	if _, err := service.Update(context.Background(), nil, vote.ID, VoteChanges{Title: &title}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	records := auditRecords(t, service, vote.ID)
	if len(records) != 1 {
		t.Fatalf("expected 1 audit record, got %d", len(records))
	}
	changes := decodeChanges(t, records[0])
	if changes["title"] != title {
		t.Fatalf("expected title diff, got %v", changes)
	}
	if _, ok := changes["choices"]; ok {
		t.Fatalf("unchanged fields must not appear in the diff: %v", changes)
	}
	if records[0].UpdaterID != nil {
		t.Fatalf("system updates carry a null updater, got %v", records[0].UpdaterID)
	}
}

func TestAuditSuppressesEmptyUpdateDiff(t *testing.T) {
	service, db := newTestService(t)
	subItem := createTestSubItem(t, db, meeting.SubItemStatusCurrent)
	vote := createTestVote(t, db, subItem.ID, VoteStatusFuture, 1, 0)

	sameTitle := vote.Title
	if _, err := service.Update(context.Background(), nil, vote.ID, VoteChanges{Title: &sameTitle}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if records := auditRecords(t, service, vote.ID); len(records) != 0 {
		t.Fatalf("no-op update must not audit, got %d records", len(records))
	}
}

func TestAuditRecordsResetMarker(t *testing.T) {
	service, db := newTestService(t)
	subItem := createTestSubItem(t, db, meeting.SubItemStatusCurrent)
	vote := createTestVote(t, db, subItem.ID, VoteStatusFuture, 1, 0)

	choices := 3
	if _, err := service.Update(context.Background(), nil, vote.ID, VoteChanges{Choices: &choices, Reset: true}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	records := auditRecords(t, service, vote.ID)
	if len(records) != 1 {
		t.Fatalf("expected 1 audit record, got %d", len(records))
	}
	changes := decodeChanges(t, records[0])
	if _, ok := changes["reset"]; !ok {
		t.Fatalf("expected reset marker in diff, got %v", changes)
	}
}

func TestAuditRecordsLifecycleTransitions(t *testing.T) {
	service, db := newTestService(t)
	subItem := createTestSubItem(t, db, meeting.SubItemStatusCurrent)
	vote := createTestVote(t, db, subItem.ID, VoteStatusFuture, 1, 2)
	createTestUser(t, db, true)

	if _, err := service.Open(context.Background(), nil, vote.ID); err != nil {
		t.Fatalf("unexpected open error: %v", err)
	}
	if _, err := service.Close(context.Background(), nil, vote.ID); err != nil {
		t.Fatalf("unexpected close error: %v", err)
	}
	if err := service.Destroy(context.Background(), nil, vote.ID); err != nil {
		t.Fatalf("unexpected destroy error: %v", err)
	}

	records := auditRecords(t, service, vote.ID)
	if len(records) != 3 {
		t.Fatalf("expected 3 audit records, got %d", len(records))
	}
	if records[0].Action != AuditActionUpdate || records[1].Action != AuditActionUpdate {
		t.Fatalf("open and close audit as updates, got %s and %s", records[0].Action, records[1].Action)
	}
	if records[2].Action != AuditActionDestroy {
		t.Fatalf("expected destroy action last, got %s", records[2].Action)
	}

	closeDiff := decodeChanges(t, records[1])
	if closeDiff["present_users"] != float64(1) {
		t.Fatalf("close diff must carry the quorum snapshot, got %v", closeDiff)
	}
}
