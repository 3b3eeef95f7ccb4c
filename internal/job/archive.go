package job

import "time"

// AutoArchiveMessage is the audit entry appended when a job is archived
// automatically.
const AutoArchiveMessage = "Auto-archived (Completed 30+ days ago)"

// DefaultArchiveAfter is how long a user-completed job stays visible before
// it is archived automatically.
const DefaultArchiveAfter = 30 * 24 * time.Hour

// SweepArchive applies the archival policy to every job in place and reports
// whether anything changed. It runs on every job-list read, not on a timer.
//
// Two rules:
//
//  1. Self-heal: a job marked archived without a completion timestamp was
//     archived by a bug; it is un-archived rather than trusted.
//  2. A job completed by a user (completedAtSource "user") at least `after`
//     ago is archived with an audit entry. System-set completions, e.g. from
//     a bulk import, are never archived automatically.
func SweepArchive(jobs []*Job, now time.Time, after time.Duration) bool {
	changed := false
	for _, j := range jobs {
		if j.Archived && j.CompletedAt == nil {
			j.Archived = false
			j.ArchivedAt = nil
			changed = true
			continue
		}
		if j.Status != StatusCompleted || j.Archived {
			continue
		}
		if j.CompletedAt == nil || j.CompletedAtSource != SourceUser {
			continue
		}
		if now.Sub(*j.CompletedAt) < after {
			continue
		}
		t := now
		j.Archived = true
		j.ArchivedAt = &t
		j.StatusHistory = append(j.StatusHistory, StatusEntry{At: now, Message: AutoArchiveMessage})
		changed = true
	}
	return changed
}
