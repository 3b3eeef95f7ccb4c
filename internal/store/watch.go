package store

import (
	"context"
	"crypto/sha256"
	"os"
	"path/filepath"

	"github.com/fsnotify/fsnotify"
)

// Watch reports out-of-band replacements of the store file (a manual restore,
// an operator editing the JSON) by calling onChange. Events caused by the
// store's own saves are recognised by content and suppressed. Blocks until
// ctx is cancelled.
func (s *Store) Watch(ctx context.Context, onChange func()) error {
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	defer w.Close()

	// Watch the directory, not the file: save() renames a temp file over the
	// document, which replaces the watched inode.
	if err := w.Add(filepath.Dir(s.path)); err != nil {
		return err
	}

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case ev, ok := <-w.Events:
			if !ok {
				return nil
			}
			if filepath.Base(ev.Name) != filepath.Base(s.path) {
				continue
			}
			if !ev.Has(fsnotify.Write) && !ev.Has(fsnotify.Create) && !ev.Has(fsnotify.Rename) {
				continue
			}
			if s.matchesLastSave() {
				continue
			}
			onChange()
		case err, ok := <-w.Errors:
			if !ok {
				return nil
			}
			s.opts.Logger.Warn("store watcher", "error", err)
		}
	}
}

// matchesLastSave reports whether the file on disk is byte-identical to the
// document this store last wrote, marking the event as an echo of our own
// save.
func (s *Store) matchesLastSave() bool {
	last, ok := s.lastSaved.Load().([sha256.Size]byte)
	if !ok {
		return false
	}
	raw, err := os.ReadFile(s.path)
	if err != nil {
		return false
	}
	return sha256.Sum256(raw) == last
}
