package orchestrator

import (
	"sort"
	"sync"
	"time"

	"github.com/moxieworks/moxie/internal/debug"
	"github.com/moxieworks/moxie/internal/store"
)

// Registry is the authoritative in-memory map of run records. It is the sole
// writer of the record map and of the durable snapshot; every other component
// mutates records through its operations. Each mutation persists before the
// lock is released, so the snapshot never runs ahead of memory.
type Registry struct {
	mu    sync.Mutex
	runs  map[string]*store.RunRecord
	store *store.Store
}

// NewRegistry creates an empty registry backed by the given store.
func NewRegistry(s *store.Store) *Registry {
	return &Registry{
		runs:  make(map[string]*store.RunRecord),
		store: s,
	}
}

// Register stores a record and persists. An existing ID is overwritten; that
// only happens if an ID collides, which the tool layer's random IDs make
// practically impossible.
func (r *Registry) Register(rec *store.RunRecord) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.runs[rec.RunID]; exists {
		debug.LogKV("registry", "overwriting existing run record", "run_id", rec.RunID)
	}
	r.runs[rec.RunID] = rec
	r.persistLocked()
}

// BeginAnnounce is the atomic check-and-set deciding which completion
// detector runs the announce flow. It returns false when the run is unknown,
// already announced, or already claimed; the single caller that receives true
// owns the announce. The handled flag is set before the announce runs, so a
// crash mid-announce resumes as not-yet-handled: an accepted at-least-once
// tradeoff.
func (r *Registry) BeginAnnounce(runID string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	rec, ok := r.runs[runID]
	if !ok {
		return false
	}
	if rec.AnnounceHandled || !rec.AnnounceCompletedAt.IsZero() {
		return false
	}
	rec.AnnounceHandled = true
	r.persistLocked()
	return true
}

// Finalize applies a run's cleanup policy after its announce flow concludes.
// Delete-policy runs are removed unconditionally. Keep-policy runs get their
// completion timestamp only when the announce actually went out; otherwise
// the record stays untouched and is retried only through restart resumption.
func (r *Registry) Finalize(runID string, cleanup store.CleanupMode, didAnnounce bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	rec, ok := r.runs[runID]
	if !ok {
		return
	}
	switch {
	case cleanup == store.CleanupDelete:
		delete(r.runs, runID)
	case didAnnounce:
		rec.AnnounceCompletedAt = time.Now().UTC()
	default:
		return
	}
	r.persistLocked()
}

// Release removes a run unconditionally. Used by explicit cancellation and by
// the sweeper.
func (r *Registry) Release(runID string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.runs[runID]; !ok {
		return
	}
	delete(r.runs, runID)
	r.persistLocked()
}

// Get returns a copy of a run record, or nil.
func (r *Registry) Get(runID string) *store.RunRecord {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.runs[runID].Clone()
}

// List returns copies of all records, oldest first.
func (r *Registry) List() []*store.RunRecord {
	r.mu.Lock()
	defer r.mu.Unlock()

	out := make([]*store.RunRecord, 0, len(r.runs))
	for _, rec := range r.runs {
		out = append(out, rec.Clone())
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out
}

// Len returns the number of tracked runs.
func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.runs)
}

// MarkStarted records a run's start timestamp if not already set.
func (r *Registry) MarkStarted(runID string, at time.Time) {
	r.mu.Lock()
	defer r.mu.Unlock()

	rec, ok := r.runs[runID]
	if !ok || !rec.StartedAt.IsZero() {
		return
	}
	rec.StartedAt = at.UTC()
	r.persistLocked()
}

// MarkEnded records a run's end timestamp if not already set.
func (r *Registry) MarkEnded(runID string, at time.Time) {
	r.mu.Lock()
	defer r.mu.Unlock()

	rec, ok := r.runs[runID]
	if !ok || !rec.EndedAt.IsZero() {
		return
	}
	rec.EndedAt = at.UTC()
	r.persistLocked()
}

// Merge folds a loaded snapshot into the registry without overwriting any
// run already tracked in memory, and returns the IDs that were added.
func (r *Registry) Merge(loaded map[string]*store.RunRecord) []string {
	r.mu.Lock()
	defer r.mu.Unlock()

	var added []string
	for id, rec := range loaded {
		if _, exists := r.runs[id]; exists {
			continue
		}
		r.runs[id] = rec
		added = append(added, id)
	}
	sort.Strings(added)
	if len(added) > 0 {
		r.persistLocked()
	}
	return added
}

// Expired returns copies of records whose archive deadline has passed.
func (r *Registry) Expired(now time.Time) []*store.RunRecord {
	r.mu.Lock()
	defer r.mu.Unlock()

	var out []*store.RunRecord
	for _, rec := range r.runs {
		if !rec.ArchiveAt.IsZero() && rec.ArchiveAt.Before(now) {
			out = append(out, rec.Clone())
		}
	}
	return out
}

// persistLocked saves the snapshot. Write failures are swallowed: memory
// stays authoritative until the next successful save.
func (r *Registry) persistLocked() {
	if r.store == nil {
		return
	}
	if err := r.store.SaveRuns(r.runs); err != nil {
		debug.LogKV("registry", "snapshot save failed", "err", err)
	}
}
