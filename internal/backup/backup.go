// Package backup moves the persisted documents in and out of
// operator-chosen files. Restores replace the live document wholesale and
// notify the UI so it re-reads.
package backup

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"

	"github.com/floorsync/floorsync/internal/event"
	"github.com/floorsync/floorsync/internal/settings"
	"github.com/floorsync/floorsync/internal/store"
)

// ExportStore writes the current job document to path and returns the job
// count.
func ExportStore(s *store.Store, path string) (int, error) {
	doc := s.Snapshot()
	raw, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return 0, fmt.Errorf("encode backup: %w", err)
	}
	if err := os.WriteFile(path, raw, 0o644); err != nil {
		return 0, fmt.Errorf("write backup: %w", err)
	}
	return len(doc.Jobs), nil
}

// ImportStore replaces the live job document with the one at path. The file
// must hold a jobs array; anything else is rejected before touching the live
// document. bus may be nil.
func ImportStore(s *store.Store, path string, bus *event.Bus) (int, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return 0, fmt.Errorf("read backup: %w", err)
	}
	var doc store.Document
	if err := json.Unmarshal(raw, &doc); err != nil {
		return 0, errors.New("invalid backup file")
	}
	if err := s.Replace(doc); err != nil {
		return 0, err
	}
	if bus != nil {
		bus.Publish(event.Event{Name: event.StoreRestore, Payload: map[string]int{"jobsCount": len(doc.Jobs)}})
	}
	return len(doc.Jobs), nil
}

// ExportSettings writes the settings document to path.
func ExportSettings(set *settings.Store, path string) error {
	raw, err := json.MarshalIndent(set.Get(), "", "  ")
	if err != nil {
		return fmt.Errorf("encode settings backup: %w", err)
	}
	if err := os.WriteFile(path, raw, 0o644); err != nil {
		return fmt.Errorf("write settings backup: %w", err)
	}
	return nil
}

// ImportSettings replaces the settings document with the one at path.
func ImportSettings(set *settings.Store, path string) error {
	raw, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read settings backup: %w", err)
	}
	var next settings.Settings
	if err := json.Unmarshal(raw, &next); err != nil {
		return errors.New("invalid settings backup")
	}
	return set.Replace(next)
}
