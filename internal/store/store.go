// Package store owns the persisted job document: a single JSON file holding
// every job plus the job-number counter. All mutations are serialized through
// one mutex and follow load -> mutate -> save, so at most one writer touches
// the document at a time and a crash loses only the in-flight request.
package store

import (
	"crypto/sha256"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/floorsync/floorsync/internal/job"
	"github.com/floorsync/floorsync/internal/metrics"
)

// ErrNotFound is returned when an id does not match any job.
var ErrNotFound = errors.New("job not found")

// Document is the full persisted state of a master.
type Document struct {
	Jobs       []*job.Job `json:"jobs"`
	NextJobSeq int        `json:"nextJobSeq,omitempty"`
}

// Options tune numbering and archival. Zero values fall back to defaults.
type Options struct {
	// JobPrefix is prepended to every assigned job number.
	JobPrefix string
	// JobFloor is the first number handed out on an empty store.
	JobFloor int
	// ArchiveAfter is how long a user-completed job stays un-archived.
	ArchiveAfter time.Duration
	Logger       *slog.Logger
}

const (
	defaultJobPrefix = "FS-"
	defaultJobFloor  = 1000
)

// Store reads and writes the job document at a fixed path.
type Store struct {
	mu   sync.Mutex
	path string
	opts Options

	// lastSaved holds the hash of the last document this store wrote, so the
	// file watcher can tell our own writes apart from out-of-band
	// replacements.
	lastSaved atomic.Value

	now func() time.Time
}

// Open returns a store over the document at path. The file does not need to
// exist yet; a missing, empty or malformed file reads as an empty document.
func Open(path string, opts Options) *Store {
	if opts.JobPrefix == "" {
		opts.JobPrefix = defaultJobPrefix
	}
	if opts.JobFloor == 0 {
		opts.JobFloor = defaultJobFloor
	}
	if opts.ArchiveAfter == 0 {
		opts.ArchiveAfter = job.DefaultArchiveAfter
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	return &Store{path: path, opts: opts, now: func() time.Time { return time.Now().UTC() }}
}

// Path returns the location of the backing file.
func (s *Store) Path() string { return s.path }

// load reads the document, failing open to an empty one. Corruption must
// never take the service down; losing sight of a damaged file beats
// crash-looping on it, and the operator is told loudly.
func (s *Store) load() Document {
	var doc Document
	raw, err := os.ReadFile(s.path)
	if err != nil {
		if !os.IsNotExist(err) {
			s.opts.Logger.Error("store unreadable, starting empty", "path", s.path, "error", err)
		}
		return Document{Jobs: []*job.Job{}}
	}
	if len(raw) == 0 {
		return Document{Jobs: []*job.Job{}}
	}
	if err := json.Unmarshal(raw, &doc); err != nil {
		s.opts.Logger.Error("store corrupt, starting empty", "path", s.path, "error", err)
		return Document{Jobs: []*job.Job{}}
	}
	if doc.Jobs == nil {
		doc.Jobs = []*job.Job{}
	}
	return doc
}

// save writes the whole document atomically: serialize to a temp file in the
// same directory, then rename over the old one. Readers never see a partial
// write.
func (s *Store) save(doc Document) error {
	if err := os.MkdirAll(filepath.Dir(s.path), 0o755); err != nil {
		return fmt.Errorf("create data dir: %w", err)
	}
	raw, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return fmt.Errorf("encode store: %w", err)
	}
	tmp := s.path + ".tmp"
	if err := os.WriteFile(tmp, raw, 0o644); err != nil {
		return fmt.Errorf("write store: %w", err)
	}
	if err := os.Rename(tmp, s.path); err != nil {
		return fmt.Errorf("replace store: %w", err)
	}
	s.lastSaved.Store(sha256.Sum256(raw))
	return nil
}

// nextJobNumber returns the formatted next number and advances the counter.
// A document without a counter (pre-counter data, or a hand-edited file) gets
// one derived from the highest existing number so numbering stays strictly
// increasing across restarts. The derived value is written back into the
// document, so the scan runs at most once.
func (s *Store) nextJobNumber(doc *Document) string {
	if doc.NextJobSeq == 0 {
		max := s.opts.JobFloor - 1
		for _, j := range doc.Jobs {
			var n int
			if _, err := fmt.Sscanf(j.JobNumber, s.opts.JobPrefix+"%d", &n); err == nil && n > max {
				max = n
			}
		}
		doc.NextJobSeq = max + 1
	}
	current := doc.NextJobSeq
	doc.NextJobSeq++
	return fmt.Sprintf("%s%d", s.opts.JobPrefix, current)
}

// List returns every job, most recent first, after applying the archival
// sweep. If the sweep changed anything the document is persisted before the
// jobs are returned.
func (s *Store) List() ([]*job.Job, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	doc := s.load()
	before := archivedCount(doc.Jobs)
	if job.SweepArchive(doc.Jobs, s.now(), s.opts.ArchiveAfter) {
		if after := archivedCount(doc.Jobs); after > before {
			metrics.JobsAutoArchivedTotal.Add(float64(after - before))
		}
		if err := s.save(doc); err != nil {
			return nil, err
		}
	}
	return doc.Jobs, nil
}

func archivedCount(jobs []*job.Job) int {
	n := 0
	for _, j := range jobs {
		if j.Archived {
			n++
		}
	}
	return n
}

// Add validates j, assigns id and job number where absent, stamps timestamps
// and prepends it to the document.
func (s *Store) Add(j *job.Job) (*job.Job, error) {
	if err := j.Validate(); err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	doc := s.load()
	now := s.now()
	if j.ID == "" {
		j.ID = uuid.New().String()
	}
	if j.JobNumber == "" {
		j.JobNumber = s.nextJobNumber(&doc)
	}
	if j.CreatedAt.IsZero() {
		j.CreatedAt = now
	}
	j.UpdatedAt = now

	doc.Jobs = append([]*job.Job{j}, doc.Jobs...)
	if err := s.save(doc); err != nil {
		return nil, err
	}
	return j, nil
}

// Update merges p over the job with the given id, applying the completion
// side effects, and persists. Returns ErrNotFound for unknown ids.
func (s *Store) Update(id string, p *job.Patch) (*job.Job, error) {
	if err := p.Validate(); err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	doc := s.load()
	for _, j := range doc.Jobs {
		if j.ID != id {
			continue
		}
		p.Apply(j, s.now())
		if err := s.save(doc); err != nil {
			return nil, err
		}
		return j, nil
	}
	return nil, ErrNotFound
}

// Delete removes the job with the given id and persists. Returns ErrNotFound
// for unknown ids.
func (s *Store) Delete(id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	doc := s.load()
	for i, j := range doc.Jobs {
		if j.ID != id {
			continue
		}
		doc.Jobs = append(doc.Jobs[:i], doc.Jobs[i+1:]...)
		return s.save(doc)
	}
	return ErrNotFound
}

// Count returns the number of jobs in the document.
func (s *Store) Count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.load().Jobs)
}

// Snapshot returns the raw document, for export.
func (s *Store) Snapshot() Document {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.load()
}

// Replace swaps the whole document, for restore. The jobs slice must be
// present (possibly empty); anything else is rejected as an invalid backup.
func (s *Store) Replace(doc Document) error {
	if doc.Jobs == nil {
		return errors.New("backup must contain a jobs array")
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.save(doc)
}
