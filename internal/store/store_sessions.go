// store_sessions.go contains session metadata, transcript, and usage methods.
package store

import (
	"bufio"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/moxieworks/moxie/internal/usage"
)

// EnsureSession creates the session's metadata file if it does not exist yet.
func (s *Store) EnsureSession(sessionKey string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	path := filepath.Join(s.sessionDir(sessionKey), "meta.json")
	if _, err := os.Stat(path); err == nil {
		return nil
	}
	return s.writeJSON(path, &SessionMeta{Key: sessionKey, CreatedAt: nowUTC()})
}

// GetSession loads a session's metadata.
func (s *Store) GetSession(sessionKey string) (*SessionMeta, error) {
	var meta SessionMeta
	if err := s.readJSONLocked(filepath.Join(s.sessionDir(sessionKey), "meta.json"), &meta); err != nil {
		return nil, err
	}
	return &meta, nil
}

// ListSessions returns metadata for every known session, sorted by key.
func (s *Store) ListSessions() ([]SessionMeta, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	dir := filepath.Join(s.root, "sessions")
	entries, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, err
	}

	var metas []SessionMeta
	for _, e := range entries {
		if !e.IsDir() {
			continue
		}
		var meta SessionMeta
		if err := s.readJSON(filepath.Join(dir, e.Name(), "meta.json"), &meta); err != nil {
			continue
		}
		metas = append(metas, meta)
	}
	sort.Slice(metas, func(i, j int) bool { return metas[i].Key < metas[j].Key })
	return metas, nil
}

// PatchSessionLabel updates a session's label, creating the session if needed.
func (s *Store) PatchSessionLabel(sessionKey, label string) error {
	if err := s.EnsureSession(sessionKey); err != nil {
		return err
	}
	meta, err := s.GetSession(sessionKey)
	if err != nil {
		return err
	}
	meta.Label = label
	meta.UpdatedAt = nowUTC()
	return s.writeJSONLocked(filepath.Join(s.sessionDir(sessionKey), "meta.json"), meta)
}

// PatchSessionTarget records where announces for this session should go.
func (s *Store) PatchSessionTarget(sessionKey, channel, to, accountID string) error {
	if err := s.EnsureSession(sessionKey); err != nil {
		return err
	}
	meta, err := s.GetSession(sessionKey)
	if err != nil {
		return err
	}
	meta.Channel = channel
	meta.To = to
	meta.AccountID = accountID
	meta.UpdatedAt = nowUTC()
	return s.writeJSONLocked(filepath.Join(s.sessionDir(sessionKey), "meta.json"), meta)
}

// DeleteSession removes a session's metadata and usage counters. When
// deleteTranscript is true the transcript file is removed too; otherwise it
// survives for later inspection.
func (s *Store) DeleteSession(sessionKey string, deleteTranscript bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	dir := s.sessionDir(sessionKey)
	if deleteTranscript {
		return os.RemoveAll(dir)
	}
	for _, name := range []string{"meta.json", "usage.json"} {
		if err := os.Remove(filepath.Join(dir, name)); err != nil && !os.IsNotExist(err) {
			return err
		}
	}
	return nil
}

// --- Transcript ---

// AppendTranscriptEntry appends one entry to the session's entries.jsonl.
func (s *Store) AppendTranscriptEntry(sessionKey string, entry TranscriptEntry) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	dir := s.sessionDir(sessionKey)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return err
	}
	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = nowUTC()
	}

	f, err := os.OpenFile(filepath.Join(dir, "entries.jsonl"), os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
	if err != nil {
		return err
	}
	defer f.Close()

	data, err := json.Marshal(entry)
	if err != nil {
		return err
	}
	_, err = f.Write(append(data, '\n'))
	return err
}

// LastAssistantReply returns the text of the most recent assistant entry in
// the session transcript, or "" when there is none.
func (s *Store) LastAssistantReply(sessionKey string) (string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	f, err := os.Open(filepath.Join(s.sessionDir(sessionKey), "entries.jsonl"))
	if err != nil {
		if os.IsNotExist(err) {
			return "", nil
		}
		return "", err
	}
	defer f.Close()

	last := ""
	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 0, 256*1024), 2*1024*1024)
	for scanner.Scan() {
		var entry TranscriptEntry
		if err := json.Unmarshal(scanner.Bytes(), &entry); err != nil {
			continue
		}
		if entry.Role == "assistant" && strings.TrimSpace(entry.Text) != "" {
			last = entry.Text
		}
	}
	return last, scanner.Err()
}

// TranscriptPath returns the path of the session's transcript file.
func (s *Store) TranscriptPath(sessionKey string) string {
	return filepath.Join(s.sessionDir(sessionKey), "entries.jsonl")
}

// --- Usage ---

// ReadSessionUsage returns the accumulated usage for a session. A session
// with no recorded usage yields an error so callers can poll and retry —
// usage figures often lag run completion.
func (s *Store) ReadSessionUsage(sessionKey string) (*usage.Totals, error) {
	var totals usage.Totals
	if err := s.readJSONLocked(filepath.Join(s.sessionDir(sessionKey), "usage.json"), &totals); err != nil {
		return nil, fmt.Errorf("no usage recorded for %s: %w", sessionKey, err)
	}
	return &totals, nil
}

// AddSessionUsage accumulates a usage sample into the session's counters.
func (s *Store) AddSessionUsage(sessionKey string, sample usage.Totals) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	path := filepath.Join(s.sessionDir(sessionKey), "usage.json")
	var totals usage.Totals
	// Missing file is fine; counters start at zero.
	_ = s.readJSON(path, &totals)
	totals.Add(sample)
	return s.writeJSON(path, &totals)
}
