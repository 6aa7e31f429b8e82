package orchestrator

import (
	"context"

	"github.com/moxieworks/moxie/internal/debug"
)

// Resume reconciles the durable snapshot with the registry after a process
// restart. It runs at most once per process lifetime; later calls are no-ops.
// Restored runs that already ended re-enter the announce race with waiting
// disabled; still-pending runs get a fresh, shorter waiter. Runs whose
// completion timestamp survived the restart need nothing.
func (o *Orchestrator) Resume() {
	o.resumeOnce.Do(o.resume)
}

func (o *Orchestrator) resume() {
	if o.registry.store == nil {
		return
	}
	loaded := o.registry.store.LoadRuns()
	if len(loaded) == 0 {
		return
	}
	added := o.registry.Merge(loaded)
	debug.LogKV("resume", "snapshot merged",
		"loaded", len(loaded), "restored", len(added))

	resumeWait := o.subCfg().EffectiveResumeWait()
	for _, runID := range added {
		if o.markResumed(runID) {
			continue
		}
		rec := o.registry.Get(runID)
		if rec == nil {
			continue
		}
		if !rec.ArchiveAt.IsZero() {
			o.ensureSweeper()
		}
		switch {
		case rec.AnnounceHandled:
			// Completion timestamp survived; nothing left to do.
		case !rec.EndedAt.IsZero():
			if o.registry.BeginAnnounce(runID) {
				debug.LogKV("resume", "re-announcing ended run", "run_id", runID)
				go o.announceRun(context.Background(), runID, announceOpts{})
			}
		default:
			debug.LogKV("resume", "re-watching pending run",
				"run_id", runID, "bound", resumeWait.String())
			go o.watchRun(runID, resumeWait)
		}
	}
}

// markResumed records that runID went through resumption; it reports whether
// it already had.
func (o *Orchestrator) markResumed(runID string) bool {
	o.resumedMu.Lock()
	defer o.resumedMu.Unlock()

	if o.resumed[runID] {
		return true
	}
	o.resumed[runID] = true
	return false
}
