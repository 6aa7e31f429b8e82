package orchestrator

import (
	"context"
	"strings"
	"time"

	"github.com/moxieworks/moxie/internal/debug"
	"github.com/moxieworks/moxie/internal/sessions"
	"github.com/moxieworks/moxie/internal/store"
)

// SendRequest is one direct agent-to-agent send.
type SendRequest struct {
	FromAgentID    string
	FromSessionKey string
	ToAgentID      string
	ToSessionKey   string // defaults to the target agent's main session
	Message        string
	// Timeout bounds the synchronous leg. Zero switches the send into
	// fire-and-forget: the call returns immediately and the rest of the
	// exchange proceeds detached.
	Timeout time.Duration
	// MaxTurns overrides the configured ping-pong bound (0 = config).
	MaxTurns int
}

// SendResult is the synchronous outcome of a send.
type SendResult struct {
	Status string `json:"status"` // ok, accepted, error, timeout or forbidden
	RunID  string `json:"run_id,omitempty"`
	Reply  string `json:"reply,omitempty"`
	Error  string `json:"error,omitempty"`
}

// SendToSession sends a message to another live session and drives the
// bounded ping-pong exchange. The authorization gate runs before any remote
// call; a failed gate returns forbidden having touched nothing.
func (o *Orchestrator) SendToSession(ctx context.Context, req SendRequest) SendResult {
	chat := o.chatCfg()
	if !chat.PeerAllowed(req.FromAgentID) || !chat.PeerAllowed(req.ToAgentID) {
		debug.LogKV("pingpong", "cross-agent send forbidden",
			"from", req.FromAgentID, "to", req.ToAgentID)
		return SendResult{Status: StatusForbidden, Error: "cross-agent messaging not allowed for this pair"}
	}
	if strings.TrimSpace(req.Message) == "" {
		return SendResult{Status: StatusError, Error: "empty message"}
	}
	if req.FromSessionKey == "" {
		req.FromSessionKey = sessions.MainKey(req.FromAgentID)
	}
	if req.ToSessionKey == "" {
		req.ToSessionKey = sessions.MainKey(req.ToAgentID)
	}

	// Immediate round: start the target's turn.
	runID, err := o.runtime.Start(ctx, req.ToSessionKey, req.Message, "", LaneChat, "")
	if err != nil {
		debug.LogKV("pingpong", "send start failed", "to", req.ToSessionKey, "err", err)
		return SendResult{Status: StatusError, Error: err.Error()}
	}
	if runID == "" {
		runID = newRunID()
	}

	now := o.now()
	rec := &store.RunRecord{
		RunID:               runID,
		ChildSessionKey:     req.ToSessionKey,
		RequesterSessionKey: req.FromSessionKey,
		Task:                req.Message,
		Cleanup:             store.CleanupKeep,
		CreatedAt:           now,
		ArchiveAt:           now.Add(o.subCfg().EffectiveRetention()),
	}
	o.registerRun(rec)

	if req.Timeout <= 0 {
		go o.runExchange(runID, req, "")
		return SendResult{Status: StatusAccepted, RunID: runID}
	}

	outcome, err := o.runtime.Wait(ctx, runID, req.Timeout)
	if err != nil {
		debug.LogKV("pingpong", "send wait failed", "run_id", runID, "err", err)
		go o.runExchange(runID, req, "")
		return SendResult{Status: StatusError, RunID: runID, Error: err.Error()}
	}
	if outcome.Status == StatusTimeout {
		go o.runExchange(runID, req, "")
		return SendResult{Status: StatusTimeout, RunID: runID}
	}
	at := outcome.EndedAt
	if at.IsZero() {
		at = o.now()
	}
	o.registry.MarkEnded(runID, at)
	reply, _ := o.runtime.ReadLastReply(ctx, req.ToSessionKey)

	go o.runExchange(runID, req, reply)
	if outcome.Status == StatusError {
		return SendResult{Status: StatusError, RunID: runID, Reply: reply}
	}
	return SendResult{Status: StatusOK, RunID: runID, Reply: reply}
}

// runExchange drives the bounded alternation and the final announce turn.
// Each side receives the other's latest reply as its next input; roles swap
// every turn. An empty reply or the skip sentinel stops the exchange early.
func (o *Orchestrator) runExchange(runID string, req SendRequest, firstReply string) {
	ctx := context.Background()
	reply := firstReply
	if reply == "" {
		// Fire-and-forget leg: the immediate round has not been waited on
		// yet. Wait for it here, detached.
		outcome, err := o.runtime.Wait(ctx, runID, o.subCfg().EffectiveWaitTimeout())
		switch {
		case err != nil:
			debug.LogKV("pingpong", "detached wait failed", "run_id", runID, "err", err)
		case outcome.Status == StatusTimeout:
			debug.LogKV("pingpong", "detached wait timed out", "run_id", runID)
		default:
			at := outcome.EndedAt
			if at.IsZero() {
				at = o.now()
			}
			o.registry.MarkEnded(runID, at)
			reply, _ = o.runtime.ReadLastReply(ctx, req.ToSessionKey)
		}
	}

	maxTurns := req.MaxTurns
	if maxTurns <= 0 {
		maxTurns = o.chatCfg().EffectiveMaxTurns()
	}
	bound := o.subCfg().EffectiveWaitTimeout()

	if maxTurns > 0 && req.FromAgentID != req.ToAgentID {
		// Requester speaks on even turns, target on odd ones; the immediate
		// round already consumed the target's first reply.
		sides := [2]string{req.FromSessionKey, req.ToSessionKey}
		for turn := 0; turn < maxTurns; turn++ {
			if strings.TrimSpace(reply) == "" || o.skipSentinel(reply) {
				debug.LogKV("pingpong", "exchange stopped early",
					"run_id", runID, "turn", turn)
				break
			}
			speaker := sides[turn%2]
			next, err := o.runTurn(ctx, speaker, reply, LaneChat, bound)
			if err != nil {
				debug.LogKV("pingpong", "exchange turn failed",
					"run_id", runID, "turn", turn, "session", speaker, "err", err)
				break
			}
			reply = next
		}
	}

	// Final announce turn on the target session, summarizing the exchange.
	// The immediate round may still be in flight when the detached wait
	// failed or timed out; the announce flow gets a bounded wait of its own.
	if o.registry.BeginAnnounce(runID) {
		o.announceRun(ctx, runID, announceOpts{
			wait:         bound,
			keyPrefix:    chatKeyPrefix,
			exchangeNote: "Summarize the full conversation for the requester.",
		})
	}
}
