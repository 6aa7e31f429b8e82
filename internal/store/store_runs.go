// store_runs.go persists the orchestrator's run snapshot: one versioned JSON
// file holding every live run record.
package store

import (
	"os"
	"path/filepath"

	"github.com/moxieworks/moxie/internal/debug"
)

// RunSnapshotVersion is the current snapshot schema version. A mismatch on
// load yields an empty registry; there is no migration path.
const RunSnapshotVersion = 1

type runSnapshot struct {
	Version int                   `json:"version"`
	Runs    map[string]*RunRecord `json:"runs"`
}

func (s *Store) runSnapshotPath() string {
	return filepath.Join(s.root, "subagent-runs.json")
}

// LoadRuns reads the run snapshot. A missing file, a parse failure, or a
// schema-version mismatch all degrade to an empty map — the callers treat the
// snapshot as best-effort durability, never as a source of truth to repair.
// The derived AnnounceHandled flag is reconstructed from the completion
// timestamp.
func (s *Store) LoadRuns() map[string]*RunRecord {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var snap runSnapshot
	if err := s.readJSON(s.runSnapshotPath(), &snap); err != nil {
		if !os.IsNotExist(err) {
			debug.LogKV("store", "run snapshot unreadable; starting empty", "error", err)
		}
		return map[string]*RunRecord{}
	}
	if snap.Version != RunSnapshotVersion {
		debug.LogKV("store", "run snapshot version mismatch; starting empty",
			"got", snap.Version, "want", RunSnapshotVersion)
		return map[string]*RunRecord{}
	}
	if snap.Runs == nil {
		return map[string]*RunRecord{}
	}
	for id, rec := range snap.Runs {
		if rec == nil {
			delete(snap.Runs, id)
			continue
		}
		rec.AnnounceHandled = !rec.AnnounceCompletedAt.IsZero()
	}
	return snap.Runs
}

// SaveRuns writes the full run snapshot atomically. The derived handled flag
// carries a `json:"-"` tag and is therefore stripped on write.
func (s *Store) SaveRuns(runs map[string]*RunRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.writeJSON(s.runSnapshotPath(), runSnapshot{
		Version: RunSnapshotVersion,
		Runs:    runs,
	})
}
