package orchestrator

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/moxieworks/moxie/internal/debug"
	"github.com/moxieworks/moxie/internal/store"
	"github.com/moxieworks/moxie/internal/usage"
)

// announceOpts tunes one announce flow pass.
type announceOpts struct {
	// wait bounds how long to wait for a still-running run before reading
	// its reply. Zero disables waiting (the run is known to have ended, or
	// waiting was explicitly disabled during resume).
	wait time.Duration
	// keyPrefix overrides the idempotency-key prefix ("" = subagent).
	keyPrefix string
	// exchangeNote, when set, tells the drafting agent this was a direct
	// peer exchange to summarize rather than a background task.
	exchangeNote string
}

const (
	announceKeyPrefix = "subagent-announce:"
	chatKeyPrefix     = "chat-announce:"
)

// announceRun executes the announce flow for a run whose BeginAnnounce the
// caller has already won. Every external call is independently best-effort;
// nothing propagates to the registration caller. The cleanup policy is
// applied whatever happens, so the caller only learns whether a message was
// actually delivered.
func (o *Orchestrator) announceRun(ctx context.Context, runID string, opts announceOpts) (announced bool) {
	rec := o.registry.Get(runID)
	if rec == nil {
		return false
	}

	defer func() {
		if rec.Label != "" {
			if err := o.sessions.PatchLabel(rec.ChildSessionKey, rec.Label); err != nil {
				debug.LogKV("announce", "label patch failed", "run_id", runID, "err", err)
			}
		}
		o.registry.Finalize(runID, rec.Cleanup, announced)
		if rec.Cleanup == store.CleanupDelete {
			if err := o.sessions.Delete(rec.ChildSessionKey, true); err != nil {
				debug.LogKV("announce", "child session delete failed", "run_id", runID, "err", err)
			}
		}
		debug.LogKV("announce", "announce flow concluded",
			"run_id", runID, "announced", announced, "cleanup", string(rec.Cleanup))
	}()

	// Step 1: obtain the final reply, waiting if the run may still be going.
	if rec.EndedAt.IsZero() && opts.wait > 0 {
		bound := min(opts.wait, o.subCfg().EffectiveAnnounceWait())
		if outcome, err := o.runtime.Wait(ctx, runID, bound); err == nil {
			if !outcome.StartedAt.IsZero() {
				o.registry.MarkStarted(runID, outcome.StartedAt)
			}
			if !outcome.EndedAt.IsZero() {
				o.registry.MarkEnded(runID, outcome.EndedAt)
			}
			if upd := o.registry.Get(runID); upd != nil {
				rec = upd
			}
		} else {
			debug.LogKV("announce", "pre-announce wait failed", "run_id", runID, "err", err)
		}
	}
	result, err := o.runtime.ReadLastReply(ctx, rec.ChildSessionKey)
	if err != nil {
		debug.LogKV("announce", "reply read failed", "run_id", runID, "err", err)
	}

	// Step 2: one more best-effort read.
	if strings.TrimSpace(result) == "" {
		result, _ = o.runtime.ReadLastReply(ctx, rec.ChildSessionKey)
	}

	// Step 3: resolve where the announce should go. Nobody listening means
	// no delivery and no error.
	target, err := o.messenger.ResolveAnnounceTarget(ctx, rec.RequesterSessionKey, rec.RequesterDisplayKey)
	if err != nil {
		debug.LogKV("announce", "target resolve failed", "run_id", runID, "err", err)
		return false
	}
	if target == nil {
		debug.LogKV("announce", "no announce target; skipping delivery", "run_id", runID)
		return false
	}

	// Step 4: the child agent drafts its own announce.
	prompt := o.announcePrompt(rec, target, result, opts.exchangeNote)
	draft, err := o.runTurn(ctx, rec.ChildSessionKey, prompt, LaneAnnounce, o.subCfg().EffectiveAnnounceWait())
	if err != nil {
		debug.LogKV("announce", "draft turn failed", "run_id", runID, "err", err)
	}

	// Step 5: skip protocol.
	if strings.TrimSpace(draft) == "" || o.skipSentinel(draft) {
		debug.LogKV("announce", "draft empty or skip sentinel; suppressing delivery", "run_id", runID)
		return false
	}

	// Step 6: machine-generated stats line.
	message := draft
	if stats := o.statsLine(rec); stats != "" {
		message += "\n\n" + stats
	}

	// Step 7: deliver with an idempotency key.
	prefix := opts.keyPrefix
	if prefix == "" {
		prefix = announceKeyPrefix
	}
	err = o.messenger.Deliver(ctx, Delivery{
		To:             target.To,
		Message:        message,
		Channel:        target.Channel,
		AccountID:      target.AccountID,
		IdempotencyKey: prefix + runID,
	})
	if err != nil {
		debug.LogKV("announce", "delivery failed", "run_id", runID, "err", err)
		return false
	}
	return true
	// Step 8 (label patch + cleanup) runs in the deferred block above.
}

// runTurn runs one synchronous turn on a session: start, bounded wait, read
// the reply.
func (o *Orchestrator) runTurn(ctx context.Context, sessionKey, message, lane string, bound time.Duration) (string, error) {
	id, err := o.runtime.Start(ctx, sessionKey, message, "", lane, "")
	if err != nil {
		return "", fmt.Errorf("starting %s turn on %s: %w", lane, sessionKey, err)
	}
	if id != "" {
		if _, err := o.runtime.Wait(ctx, id, bound); err != nil {
			return "", fmt.Errorf("waiting for %s turn on %s: %w", lane, sessionKey, err)
		}
	}
	return o.runtime.ReadLastReply(ctx, sessionKey)
}

// announcePrompt composes the drafting instruction for the child agent.
func (o *Orchestrator) announcePrompt(rec *store.RunRecord, target *AnnounceTarget, result, exchangeNote string) string {
	var b strings.Builder
	if exchangeNote != "" {
		b.WriteString("You just finished a direct exchange with another agent. ")
		b.WriteString(exchangeNote)
		b.WriteString("\n")
	} else {
		b.WriteString("A background task you ran has finished. ")
	}
	b.WriteString("Draft a short message for the person who requested it.\n\n")
	requester := rec.RequesterDisplayKey
	if requester == "" {
		requester = rec.RequesterSessionKey
	}
	fmt.Fprintf(&b, "Requester: %s (channel: %s)\n", requester, target.Channel)
	fmt.Fprintf(&b, "Task: %s\n", rec.Task)
	if strings.TrimSpace(result) != "" {
		fmt.Fprintf(&b, "Result:\n%s\n", result)
	} else {
		b.WriteString("Result: (no final reply was captured)\n")
	}
	fmt.Fprintf(&b, "\nReply with only the message to send. Reply with exactly %s if there is nothing worth announcing.",
		o.chatCfg().EffectiveSkipSentinel())
	return b.String()
}

// statsLine builds the trailing usage summary. Usage figures often lag run
// completion, so the usage store is polled a few times before giving up.
func (o *Orchestrator) statsLine(rec *store.RunRecord) string {
	parts := []string{"run " + rec.RunID}

	if !rec.EndedAt.IsZero() {
		from := rec.StartedAt
		if from.IsZero() {
			from = rec.CreatedAt
		}
		if d := rec.EndedAt.Sub(from); d > 0 {
			parts = append(parts, d.Round(time.Second).String())
		}
	}

	if totals := o.pollUsage(rec.ChildSessionKey); totals != nil {
		parts = append(parts, fmt.Sprintf("%s in / %s out (%s total)",
			usage.FormatTokens(totals.InputTokens),
			usage.FormatTokens(totals.OutputTokens),
			usage.FormatTokens(totals.Total())))
		if cost, ok := usage.Cost(totals); ok {
			parts = append(parts, fmt.Sprintf("~$%.2f", cost))
		}
	}

	parts = append(parts, "session "+rec.ChildSessionKey)
	if p := o.sessions.TranscriptPath(rec.ChildSessionKey); p != "" {
		parts = append(parts, "transcript "+p)
	}
	return "[" + strings.Join(parts, " | ") + "]"
}

func (o *Orchestrator) pollUsage(sessionKey string) *usage.Totals {
	const tries = 3
	for i := 0; i < tries; i++ {
		if totals, err := o.sessions.ReadUsage(sessionKey); err == nil && !totals.Empty() {
			return totals
		}
		if i < tries-1 {
			time.Sleep(250 * time.Millisecond)
		}
	}
	return nil
}
