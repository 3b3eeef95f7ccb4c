package job

import (
	"testing"
	"time"
)

func TestSweepArchive_UserCompletionPastThreshold(t *testing.T) {
	now := time.Now().UTC()
	done := now.Add(-31 * 24 * time.Hour)
	j := &Job{ID: "a", Status: StatusCompleted, CompletedAt: &done, CompletedAtSource: SourceUser}

	if !SweepArchive([]*Job{j}, now, DefaultArchiveAfter) {
		t.Fatal("sweep reported no change")
	}
	if !j.Archived || j.ArchivedAt == nil {
		t.Fatalf("job not archived: %+v", j)
	}
	if len(j.StatusHistory) != 1 || j.StatusHistory[0].Message != AutoArchiveMessage {
		t.Errorf("statusHistory = %+v, want one auto-archive entry", j.StatusHistory)
	}
}

func TestSweepArchive_SystemCompletionNeverArchived(t *testing.T) {
	now := time.Now().UTC()
	done := now.Add(-365 * 24 * time.Hour)
	j := &Job{ID: "a", Status: StatusCompleted, CompletedAt: &done, CompletedAtSource: SourceSystem}

	if SweepArchive([]*Job{j}, now, DefaultArchiveAfter) {
		t.Fatal("system-sourced completion was archived")
	}
	if j.Archived {
		t.Errorf("archived = true, want false")
	}
}

func TestSweepArchive_RecentCompletionUntouched(t *testing.T) {
	now := time.Now().UTC()
	done := now.Add(-10 * 24 * time.Hour)
	j := &Job{ID: "a", Status: StatusCompleted, CompletedAt: &done, CompletedAtSource: SourceUser}

	if SweepArchive([]*Job{j}, now, DefaultArchiveAfter) {
		t.Fatal("job inside the threshold was changed")
	}
}

func TestSweepArchive_SelfHealsArchivedWithoutCompletion(t *testing.T) {
	now := time.Now().UTC()
	j := &Job{ID: "a", Status: "In Progress", Archived: true, ArchivedAt: &now}

	if !SweepArchive([]*Job{j}, now, DefaultArchiveAfter) {
		t.Fatal("sweep reported no change")
	}
	if j.Archived || j.ArchivedAt != nil {
		t.Errorf("job not un-archived: %+v", j)
	}
}

func TestSweepArchive_AlreadyArchivedLeftAlone(t *testing.T) {
	now := time.Now().UTC()
	done := now.Add(-60 * 24 * time.Hour)
	j := &Job{ID: "a", Status: StatusCompleted, CompletedAt: &done, CompletedAtSource: SourceUser, Archived: true, ArchivedAt: &done}

	if SweepArchive([]*Job{j}, now, DefaultArchiveAfter) {
		t.Fatal("already-archived job was changed")
	}
	if len(j.StatusHistory) != 0 {
		t.Errorf("statusHistory grew: %+v", j.StatusHistory)
	}
}
