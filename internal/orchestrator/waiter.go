package orchestrator

import (
	"context"
	"time"

	"github.com/moxieworks/moxie/internal/debug"
)

// watchRun is the completion waiter: one bounded remote wait call per run. On
// a terminal status it records timestamps and enters the announce race; on a
// timeout or transport error it gives up silently. Recovery after a give-up
// happens only through restart resumption.
func (o *Orchestrator) watchRun(runID string, timeout time.Duration) {
	outcome, err := o.runtime.Wait(context.Background(), runID, timeout)
	if err != nil {
		debug.LogKV("orchestrator", "wait call failed", "run_id", runID, "err", err)
		return
	}
	switch outcome.Status {
	case StatusOK, StatusError:
		if !outcome.StartedAt.IsZero() {
			o.registry.MarkStarted(runID, outcome.StartedAt)
		}
		endedAt := outcome.EndedAt
		if endedAt.IsZero() {
			endedAt = o.now()
		}
		o.registry.MarkEnded(runID, endedAt)
		if o.registry.BeginAnnounce(runID) {
			debug.LogKV("orchestrator", "waiter won announce race",
				"run_id", runID, "status", outcome.Status)
			o.announceRun(context.Background(), runID, announceOpts{})
		}
	case StatusTimeout:
		debug.LogKV("orchestrator", "wait timed out; giving up until restart",
			"run_id", runID, "timeout", timeout.String())
	default:
		debug.LogKV("orchestrator", "wait returned unknown status",
			"run_id", runID, "status", outcome.Status)
	}
}
