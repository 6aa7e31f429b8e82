package sessions

import (
	"github.com/moxieworks/moxie/internal/store"
	"github.com/moxieworks/moxie/internal/usage"
)

// FileStore adapts the JSON file store to the session-store surface the
// orchestrator consumes.
type FileStore struct {
	store *store.Store
}

// NewFileStore wraps a store.
func NewFileStore(s *store.Store) *FileStore {
	return &FileStore{store: s}
}

// Ensure creates the session's metadata file if missing.
func (f *FileStore) Ensure(sessionKey string) error {
	return f.store.EnsureSession(sessionKey)
}

// PatchLabel sets a session's label.
func (f *FileStore) PatchLabel(sessionKey, label string) error {
	return f.store.PatchSessionLabel(sessionKey, label)
}

// Delete removes the session; the transcript survives unless deleteTranscript
// is set.
func (f *FileStore) Delete(sessionKey string, deleteTranscript bool) error {
	return f.store.DeleteSession(sessionKey, deleteTranscript)
}

// ReadUsage returns accumulated usage. It errors while nothing has been
// recorded yet, so callers poll with short bounded retries.
func (f *FileStore) ReadUsage(sessionKey string) (*usage.Totals, error) {
	return f.store.ReadSessionUsage(sessionKey)
}

// TranscriptPath returns the path of the session's transcript file.
func (f *FileStore) TranscriptPath(sessionKey string) string {
	return f.store.TranscriptPath(sessionKey)
}

// Append adds one transcript entry.
func (f *FileStore) Append(sessionKey string, entry store.TranscriptEntry) error {
	return f.store.AppendTranscriptEntry(sessionKey, entry)
}

// LastReply returns the most recent non-empty assistant entry.
func (f *FileStore) LastReply(sessionKey string) (string, error) {
	return f.store.LastAssistantReply(sessionKey)
}
