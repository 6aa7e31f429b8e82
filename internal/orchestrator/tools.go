package orchestrator

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/moxieworks/moxie/internal/debug"
	"github.com/moxieworks/moxie/internal/sessions"
	"github.com/moxieworks/moxie/internal/store"
)

// SpawnRequest registers a new background run.
type SpawnRequest struct {
	AgentID             string // agent running the child (defaults to the requester's agent)
	RequesterSessionKey string
	RequesterDisplayKey string
	Task                string
	Label               string
	Cleanup             store.CleanupMode // defaults to delete
	// Timeout bounds the completion waiter (0 = configured default).
	Timeout time.Duration
}

// SpawnResult is the synchronous outcome of a spawn. Status is accepted on
// success; the announce arrives later through the messaging subsystem.
type SpawnResult struct {
	Status string `json:"status"`
	RunID  string `json:"run_id,omitempty"`
	Error  string `json:"error,omitempty"`
}

// Spawn validates the request, starts the child, registers the run, and arms
// the completion waiter. It performs only synchronous validation and always
// returns promptly; everything else is background.
func (o *Orchestrator) Spawn(ctx context.Context, req SpawnRequest) SpawnResult {
	if strings.TrimSpace(req.Task) == "" {
		return SpawnResult{Status: StatusError, Error: "empty task"}
	}
	if req.RequesterSessionKey == "" {
		return SpawnResult{Status: StatusError, Error: "missing requester session"}
	}
	if req.Cleanup == "" {
		req.Cleanup = store.CleanupDelete
	}
	if !req.Cleanup.Valid() {
		return SpawnResult{Status: StatusError, Error: fmt.Sprintf("unknown cleanup mode %q", req.Cleanup)}
	}
	agentID := req.AgentID
	if agentID == "" {
		agentID = sessions.AgentOf(req.RequesterSessionKey)
	}
	if agentID == "" {
		return SpawnResult{Status: StatusError, Error: "cannot determine target agent"}
	}

	runID := newRunID()
	childKey := sessions.SubagentKey(agentID, runID)
	if err := o.sessions.Ensure(childKey); err != nil {
		debug.LogKV("spawn", "child session create failed", "session", childKey, "err", err)
	}

	startedID, err := o.runtime.Start(ctx, childKey, req.Task, subagentSystemPrompt(req.Task), LaneSubagent, req.Label)
	if err != nil {
		return SpawnResult{Status: StatusError, Error: err.Error()}
	}
	if startedID != "" {
		runID = startedID
	}

	now := o.now()
	rec := &store.RunRecord{
		RunID:               runID,
		ChildSessionKey:     childKey,
		RequesterSessionKey: req.RequesterSessionKey,
		RequesterDisplayKey: req.RequesterDisplayKey,
		Task:                req.Task,
		Cleanup:             req.Cleanup,
		Label:               req.Label,
		CreatedAt:           now,
	}
	if req.Cleanup == store.CleanupKeep {
		// Computed once at registration, never recomputed.
		rec.ArchiveAt = now.Add(o.subCfg().EffectiveRetention())
	}
	o.registerRun(rec)

	timeout := req.Timeout
	if timeout <= 0 {
		timeout = o.subCfg().EffectiveWaitTimeout()
	}
	go o.watchRun(runID, timeout)

	return SpawnResult{Status: StatusAccepted, RunID: runID}
}

// Stop cancels a tracked run: the record is released and the child session
// removed with its transcript. The underlying runtime execution, if still
// going, finishes unobserved.
func (o *Orchestrator) Stop(runID string) error {
	rec := o.registry.Get(runID)
	if rec == nil {
		return fmt.Errorf("unknown run %q", runID)
	}
	o.registry.Release(runID)
	if err := o.sessions.Delete(rec.ChildSessionKey, true); err != nil {
		return fmt.Errorf("deleting child session: %w", err)
	}
	debug.LogKV("spawn", "run stopped", "run_id", runID)
	return nil
}

// subagentSystemPrompt is the extra system prompt given to child runs.
func subagentSystemPrompt(task string) string {
	return "You are a background subagent. Work autonomously on the task below, " +
		"then produce one final reply summarizing what you did and what you found. " +
		"Your final reply is relayed to the person who requested the work.\n\nTask: " + task
}
