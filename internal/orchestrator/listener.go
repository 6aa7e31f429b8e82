package orchestrator

import (
	"context"

	"github.com/moxieworks/moxie/internal/debug"
	"github.com/moxieworks/moxie/internal/events"
)

// handleEvent is the lifecycle listener: the fast completion-detection path
// for runs executing in the same process. It races the waiter for the
// announce; BeginAnnounce decides the winner.
func (o *Orchestrator) handleEvent(ev events.Event) {
	if ev.Stream != events.StreamLifecycle || ev.RunID == "" {
		return
	}
	switch ev.Phase {
	case events.PhaseStart:
		o.registry.MarkStarted(ev.RunID, o.now())
	case events.PhaseEnd, events.PhaseError:
		o.registry.MarkEnded(ev.RunID, o.now())
		if o.registry.BeginAnnounce(ev.RunID) {
			debug.LogKV("orchestrator", "listener won announce race",
				"run_id", ev.RunID, "phase", string(ev.Phase))
			go o.announceRun(context.Background(), ev.RunID, announceOpts{})
		}
	}
}
