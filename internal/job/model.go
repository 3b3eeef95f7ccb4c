package job

import (
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"
)

// Job types recognised by the shop.
const (
	TypeDTF        = "DTF"
	TypeEmbroidery = "Embroidery"
)

// StatusCompleted is the one status value with lifecycle meaning: it drives
// completion stamping and auto-archival.
const StatusCompleted = "Completed"

// Provenance of a completedAt timestamp.
const (
	SourceUser   = "user"
	SourceSystem = "system"
)

// StatusEntry is one append-only audit record on a job.
type StatusEntry struct {
	At      time.Time `json:"at"`
	Message string    `json:"message"`
}

// Quantity accepts both JSON numbers and numeric strings on the wire.
// Tablet clients historically sent quantities as strings.
type Quantity float64

func (q *Quantity) UnmarshalJSON(data []byte) error {
	s := strings.TrimSpace(string(data))
	if s == "null" || s == `""` {
		*q = 0
		return nil
	}
	if strings.HasPrefix(s, `"`) {
		var raw string
		if err := json.Unmarshal(data, &raw); err != nil {
			return err
		}
		n, err := strconv.ParseFloat(strings.TrimSpace(raw), 64)
		if err != nil {
			return errors.New("quantity must be a number")
		}
		*q = Quantity(n)
		return nil
	}
	var n float64
	if err := json.Unmarshal(data, &n); err != nil {
		return errors.New("quantity must be a number")
	}
	*q = Quantity(n)
	return nil
}

// Job is the unit of work tracked by the shop. Field names follow the wire
// format consumed by the UI shell.
type Job struct {
	ID                string        `json:"id"`
	JobNumber         string        `json:"jobNumber,omitempty"`
	Type              string        `json:"type"`
	Description       string        `json:"description"`
	Quantity          Quantity      `json:"quantity"`
	CustomerName      string        `json:"customerName,omitempty"`
	DueDate           string        `json:"dueDate,omitempty"`
	Priority          string        `json:"priority,omitempty"`
	Status            string        `json:"status,omitempty"`
	CompletedAt       *time.Time    `json:"completedAt,omitempty"`
	CompletedAtSource string        `json:"completedAtSource,omitempty"`
	Archived          bool          `json:"archived,omitempty"`
	ArchivedAt        *time.Time    `json:"archivedAt,omitempty"`
	StatusHistory     []StatusEntry `json:"statusHistory,omitempty"`
	CreatedAt         time.Time     `json:"createdAt"`
	UpdatedAt         time.Time     `json:"updatedAt"`
}

// Validate enforces the creation invariants. Both the local path and the
// LAN-proxied path go through this, so the two entry points cannot drift.
func (j *Job) Validate() error {
	if j == nil {
		return errors.New("invalid job payload")
	}
	if j.Type != TypeDTF && j.Type != TypeEmbroidery {
		return fmt.Errorf("job type must be %q or %q", TypeDTF, TypeEmbroidery)
	}
	if strings.TrimSpace(j.Description) == "" {
		return errors.New("description is required")
	}
	if j.Quantity == 0 {
		j.Quantity = 1
	}
	return nil
}

// Patch is a partial update to a job. Nil fields are left untouched.
type Patch struct {
	Type              *string       `json:"type,omitempty"`
	Description       *string       `json:"description,omitempty"`
	Quantity          *Quantity     `json:"quantity,omitempty"`
	CustomerName      *string       `json:"customerName,omitempty"`
	DueDate           *string       `json:"dueDate,omitempty"`
	Priority          *string       `json:"priority,omitempty"`
	Status            *string       `json:"status,omitempty"`
	CompletedAt       *time.Time    `json:"completedAt,omitempty"`
	CompletedAtSource *string       `json:"completedAtSource,omitempty"`
	Archived          *bool         `json:"archived,omitempty"`
	ArchivedAt        *time.Time    `json:"archivedAt,omitempty"`
	StatusHistory     []StatusEntry `json:"statusHistory,omitempty"`
}

// Validate rejects patch values that would break record invariants.
func (p *Patch) Validate() error {
	if p == nil {
		return errors.New("invalid patch payload")
	}
	if p.Type != nil && *p.Type != TypeDTF && *p.Type != TypeEmbroidery {
		return fmt.Errorf("job type must be %q or %q", TypeDTF, TypeEmbroidery)
	}
	if p.Description != nil && strings.TrimSpace(*p.Description) == "" {
		return errors.New("description must not be empty")
	}
	return nil
}

// Apply merges the patch over j, preserving id and jobNumber, and applies the
// status transition side effects:
//
//   - status set to "Completed" with no completedAt stamps completedAt=now and
//     defaults completedAtSource to "system"; an explicit source in the patch
//     always wins.
//   - status set to anything else clears completedAt, completedAtSource,
//     archived and archivedAt regardless of their prior values, so reopening
//     a job always un-archives it.
func (p *Patch) Apply(j *Job, now time.Time) {
	if p.Type != nil {
		j.Type = *p.Type
	}
	if p.Description != nil {
		j.Description = *p.Description
	}
	if p.Quantity != nil {
		j.Quantity = *p.Quantity
	}
	if p.CustomerName != nil {
		j.CustomerName = *p.CustomerName
	}
	if p.DueDate != nil {
		j.DueDate = *p.DueDate
	}
	if p.Priority != nil {
		j.Priority = *p.Priority
	}
	if p.Status != nil {
		j.Status = *p.Status
	}
	if p.CompletedAt != nil {
		j.CompletedAt = p.CompletedAt
	}
	if p.CompletedAtSource != nil {
		j.CompletedAtSource = *p.CompletedAtSource
	}
	if p.Archived != nil {
		j.Archived = *p.Archived
	}
	if p.ArchivedAt != nil {
		j.ArchivedAt = p.ArchivedAt
	}
	if p.StatusHistory != nil {
		j.StatusHistory = p.StatusHistory
	}

	if p.Status != nil {
		if *p.Status == StatusCompleted {
			if j.CompletedAt == nil {
				t := now
				j.CompletedAt = &t
				if p.CompletedAtSource == nil {
					j.CompletedAtSource = SourceSystem
				}
			}
		} else {
			j.CompletedAt = nil
			j.CompletedAtSource = ""
			j.Archived = false
			j.ArchivedAt = nil
		}
	}

	j.UpdatedAt = now
}
