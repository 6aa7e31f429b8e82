package orchestrator

import (
	"time"

	"github.com/moxieworks/moxie/internal/debug"
)

// ensureSweeper starts the eviction timer if it is not already running. The
// sweeper stops itself once the registry drains, so there is no idle-timer
// leak between bursts of runs.
func (o *Orchestrator) ensureSweeper() {
	o.sweepMu.Lock()
	defer o.sweepMu.Unlock()

	if o.sweepRunning {
		return
	}
	o.sweepRunning = true
	o.sweepStop = make(chan struct{})
	go o.sweepLoop(o.sweepStop)
}

func (o *Orchestrator) stopSweeper() {
	o.sweepMu.Lock()
	defer o.sweepMu.Unlock()

	if !o.sweepRunning {
		return
	}
	close(o.sweepStop)
	o.sweepRunning = false
}

func (o *Orchestrator) sweepLoop(stop chan struct{}) {
	ticker := time.NewTicker(o.subCfg().EffectiveSweepInterval())
	defer ticker.Stop()

	for {
		select {
		case <-stop:
			return
		case <-ticker.C:
			o.sweepOnce(o.now())
			if o.registry.Len() == 0 {
				o.releaseSweeper(stop)
				return
			}
		}
	}
}

// releaseSweeper marks the sweeper stopped, but only if stop is still the
// current generation; a restarted sweeper must not be torn down by its
// predecessor.
func (o *Orchestrator) releaseSweeper(stop chan struct{}) {
	o.sweepMu.Lock()
	defer o.sweepMu.Unlock()

	if o.sweepRunning && o.sweepStop == stop {
		o.sweepRunning = false
	}
}

// sweepOnce evicts every record whose archive deadline has passed, deleting
// the child transcript best-effort, and returns the eviction count.
func (o *Orchestrator) sweepOnce(now time.Time) int {
	expired := o.registry.Expired(now)
	for _, rec := range expired {
		o.registry.Release(rec.RunID)
		if err := o.sessions.Delete(rec.ChildSessionKey, true); err != nil {
			debug.LogKV("sweeper", "transcript delete failed",
				"run_id", rec.RunID, "session", rec.ChildSessionKey, "err", err)
		}
		debug.LogKV("sweeper", "evicted expired run",
			"run_id", rec.RunID, "archive_at", rec.ArchiveAt.Format(time.RFC3339))
	}
	return len(expired)
}
