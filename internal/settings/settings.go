// Package settings persists per-machine preferences: the master's address,
// the shared LAN key and whatever else the UI stores. One JSON file, merge
// writes, same fail-open discipline as the job store.
package settings

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
)

// Settings is the persisted preference document. Unknown keys written by
// newer UI versions ride along in Extra so a merge never drops them.
type Settings struct {
	ServerAddr string `json:"serverAddr,omitempty"`
	LANKey     string `json:"lanKey,omitempty"`

	Extra map[string]json.RawMessage `json:"-"`
}

type settingsAlias Settings

func (s Settings) MarshalJSON() ([]byte, error) {
	merged := map[string]json.RawMessage{}
	for k, v := range s.Extra {
		merged[k] = v
	}
	known, err := json.Marshal(settingsAlias(s))
	if err != nil {
		return nil, err
	}
	var knownMap map[string]json.RawMessage
	if err := json.Unmarshal(known, &knownMap); err != nil {
		return nil, err
	}
	for k, v := range knownMap {
		merged[k] = v
	}
	return json.Marshal(merged)
}

func (s *Settings) UnmarshalJSON(data []byte) error {
	var known settingsAlias
	if err := json.Unmarshal(data, &known); err != nil {
		return err
	}
	*s = Settings(known)
	var all map[string]json.RawMessage
	if err := json.Unmarshal(data, &all); err != nil {
		return err
	}
	delete(all, "serverAddr")
	delete(all, "lanKey")
	if len(all) > 0 {
		s.Extra = all
	}
	return nil
}

// Patch is a partial update to the settings document. Nil fields leave the
// stored value alone; a pointer to the empty string clears the key, which is
// how an operator disables LAN auth or reverts to standalone.
type Patch struct {
	ServerAddr *string `json:"serverAddr,omitempty"`
	LANKey     *string `json:"lanKey,omitempty"`

	Extra map[string]json.RawMessage `json:"-"`
}

type patchAlias Patch

func (p *Patch) UnmarshalJSON(data []byte) error {
	var known patchAlias
	if err := json.Unmarshal(data, &known); err != nil {
		return err
	}
	*p = Patch(known)
	var all map[string]json.RawMessage
	if err := json.Unmarshal(data, &all); err != nil {
		return err
	}
	delete(all, "serverAddr")
	delete(all, "lanKey")
	if len(all) > 0 {
		p.Extra = all
	}
	return nil
}

// Store reads and writes the settings document.
type Store struct {
	mu     sync.Mutex
	path   string
	logger *slog.Logger
}

// Open returns a settings store at path. Missing or damaged files read as
// empty settings.
func Open(path string, logger *slog.Logger) *Store {
	if logger == nil {
		logger = slog.Default()
	}
	return &Store{path: path, logger: logger}
}

// Path returns the location of the backing file.
func (s *Store) Path() string { return s.path }

// Get returns the current settings.
func (s *Store) Get() Settings {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.load()
}

// Save merges patch over the stored settings and persists the result. Keys
// present in the patch overwrite, including with the empty string; absent
// keys are left alone.
func (s *Store) Save(patch Patch) (Settings, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	current := s.load()
	if patch.ServerAddr != nil {
		current.ServerAddr = *patch.ServerAddr
	}
	if patch.LANKey != nil {
		current.LANKey = *patch.LANKey
	}
	for k, v := range patch.Extra {
		if current.Extra == nil {
			current.Extra = map[string]json.RawMessage{}
		}
		current.Extra[k] = v
	}
	if err := s.save(current); err != nil {
		return Settings{}, err
	}
	return current, nil
}

// Replace swaps the whole document, for restore.
func (s *Store) Replace(next Settings) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.save(next)
}

// LANKey returns the configured shared secret, trimmed, or "" when auth is
// not configured. Read per request so key changes apply without a restart.
func (s *Store) LANKey() string {
	return strings.TrimSpace(s.Get().LANKey)
}

func (s *Store) load() Settings {
	var out Settings
	raw, err := os.ReadFile(s.path)
	if err != nil {
		if !os.IsNotExist(err) {
			s.logger.Error("settings unreadable, using defaults", "path", s.path, "error", err)
		}
		return Settings{}
	}
	if len(raw) == 0 {
		return Settings{}
	}
	if err := json.Unmarshal(raw, &out); err != nil {
		s.logger.Error("settings corrupt, using defaults", "path", s.path, "error", err)
		return Settings{}
	}
	return out
}

func (s *Store) save(next Settings) error {
	if err := os.MkdirAll(filepath.Dir(s.path), 0o755); err != nil {
		return fmt.Errorf("create data dir: %w", err)
	}
	raw, err := json.MarshalIndent(next, "", "  ")
	if err != nil {
		return fmt.Errorf("encode settings: %w", err)
	}
	tmp := s.path + ".tmp"
	if err := os.WriteFile(tmp, raw, 0o644); err != nil {
		return fmt.Errorf("write settings: %w", err)
	}
	if err := os.Rename(tmp, s.path); err != nil {
		return fmt.Errorf("replace settings: %w", err)
	}
	return nil
}
