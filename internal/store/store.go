// Package store persists moxie state as JSON files under a single root
// directory. The orchestrator's run snapshot, session metadata, transcripts,
// and usage counters all live here; the in-memory owners stay authoritative
// and treat the files as best-effort durability.
package store

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"
)

// MoxieDir is the name of the state directory created under the home root.
const MoxieDir = ".moxie"

type Store struct {
	root string // path to the .moxie directory
	mu   sync.RWMutex
}

// New creates a Store rooted at dir/.moxie.
func New(dir string) (*Store, error) {
	return &Store{root: filepath.Join(dir, MoxieDir)}, nil
}

// Init creates the directory layout.
func (s *Store) Init() error {
	dirs := []string{
		s.root,
		filepath.Join(s.root, "sessions"),
	}
	for _, d := range dirs {
		if err := os.MkdirAll(d, 0755); err != nil {
			return fmt.Errorf("creating directory %s: %w", d, err)
		}
	}
	return nil
}

// Root returns the store's root directory.
func (s *Store) Root() string {
	return s.root
}

// Helpers

// writeJSON marshals v and writes it atomically (temp file + rename) so a
// crash mid-write never leaves a truncated file behind.
func (s *Store) writeJSON(path string, v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return err
	}
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0644); err != nil {
		return err
	}
	return os.Rename(tmp, path)
}

func (s *Store) readJSON(path string, v any) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	return json.Unmarshal(data, v)
}

func (s *Store) writeJSONLocked(path string, v any) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.writeJSON(path, v)
}

func (s *Store) readJSONLocked(path string, v any) error {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.readJSON(path, v)
}

// sessionDir returns the directory holding one session's files. Session keys
// contain colons ("agent:main:subagent:r1"); they are flattened to a safe
// directory name.
func (s *Store) sessionDir(sessionKey string) string {
	return filepath.Join(s.root, "sessions", sanitizeKey(sessionKey))
}

func sanitizeKey(key string) string {
	var b strings.Builder
	for _, r := range key {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9',
			r == '.', r == '_', r == '-':
			b.WriteRune(r)
		default:
			b.WriteByte('-')
		}
	}
	return b.String()
}

func nowUTC() time.Time {
	return time.Now().UTC()
}
