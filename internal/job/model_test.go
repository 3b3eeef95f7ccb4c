package job

import (
	"encoding/json"
	"testing"
	"time"
)

func strPtr(s string) *string { return &s }

func TestValidate_RejectsBadType(t *testing.T) {
	j := &Job{Type: "Screenprint", Description: "ten shirts"}
	if err := j.Validate(); err == nil {
		t.Fatal("expected error for unknown job type")
	}
}

func TestValidate_RequiresDescription(t *testing.T) {
	j := &Job{Type: TypeDTF, Description: "   "}
	if err := j.Validate(); err == nil {
		t.Fatal("expected error for blank description")
	}
}

func TestValidate_DefaultsQuantityToOne(t *testing.T) {
	j := &Job{Type: TypeEmbroidery, Description: "cap logo"}
	if err := j.Validate(); err != nil {
		t.Fatalf("Validate: %v", err)
	}
	if j.Quantity != 1 {
		t.Errorf("quantity = %v, want 1", j.Quantity)
	}
}

func TestQuantity_AcceptsNumericString(t *testing.T) {
	var j Job
	if err := json.Unmarshal([]byte(`{"type":"DTF","description":"x","quantity":"12"}`), &j); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if j.Quantity != 12 {
		t.Errorf("quantity = %v, want 12", j.Quantity)
	}
}

func TestQuantity_RejectsNonNumericString(t *testing.T) {
	var j Job
	if err := json.Unmarshal([]byte(`{"quantity":"a dozen"}`), &j); err == nil {
		t.Fatal("expected error for non-numeric quantity")
	}
}

func TestApply_CompletedStampsSystemSource(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	j := &Job{ID: "a", Status: "In Progress"}
	p := &Patch{Status: strPtr(StatusCompleted)}
	p.Apply(j, now)

	if j.CompletedAt == nil || !j.CompletedAt.Equal(now) {
		t.Fatalf("completedAt = %v, want %v", j.CompletedAt, now)
	}
	if j.CompletedAtSource != SourceSystem {
		t.Errorf("completedAtSource = %q, want %q", j.CompletedAtSource, SourceSystem)
	}
	if !j.UpdatedAt.Equal(now) {
		t.Errorf("updatedAt = %v, want %v", j.UpdatedAt, now)
	}
}

func TestApply_ExplicitSourceWins(t *testing.T) {
	now := time.Now().UTC()
	j := &Job{ID: "a"}
	p := &Patch{Status: strPtr(StatusCompleted), CompletedAtSource: strPtr(SourceUser)}
	p.Apply(j, now)

	if j.CompletedAtSource != SourceUser {
		t.Errorf("completedAtSource = %q, want %q", j.CompletedAtSource, SourceUser)
	}
	if j.CompletedAt == nil {
		t.Error("completedAt not stamped")
	}
}

func TestApply_ReopenClearsCompletionAndArchival(t *testing.T) {
	now := time.Now().UTC()
	done := now.Add(-40 * 24 * time.Hour)
	j := &Job{
		ID:                "a",
		Status:            StatusCompleted,
		CompletedAt:       &done,
		CompletedAtSource: SourceUser,
		Archived:          true,
		ArchivedAt:        &done,
	}
	p := &Patch{Status: strPtr("In Progress")}
	p.Apply(j, now)

	if j.CompletedAt != nil || j.CompletedAtSource != "" {
		t.Errorf("completion not cleared: %v %q", j.CompletedAt, j.CompletedAtSource)
	}
	if j.Archived || j.ArchivedAt != nil {
		t.Errorf("archival not cleared: %v %v", j.Archived, j.ArchivedAt)
	}
}

func TestApply_PreservesUntouchedFields(t *testing.T) {
	now := time.Now().UTC()
	j := &Job{ID: "a", Type: TypeDTF, Description: "front print", Quantity: 5}
	p := &Patch{Priority: strPtr("High")}
	p.Apply(j, now)

	if j.Type != TypeDTF || j.Description != "front print" || j.Quantity != 5 {
		t.Errorf("untouched fields changed: %+v", j)
	}
	if j.Priority != "High" {
		t.Errorf("priority = %q, want High", j.Priority)
	}
}

func TestPatchValidate_RejectsBlankDescription(t *testing.T) {
	p := &Patch{Description: strPtr("")}
	if err := p.Validate(); err == nil {
		t.Fatal("expected error for blank description patch")
	}
}
