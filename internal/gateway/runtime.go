package gateway

import (
	"context"
	"time"

	"github.com/moxieworks/moxie/internal/orchestrator"
)

// The client implements both orchestrator.Runtime and
// orchestrator.Messenger over the gateway's JSON envelope protocol.

const rpcTimeout = 30 * time.Second

type startParams struct {
	SessionKey        string `json:"session_key"`
	Message           string `json:"message"`
	ExtraSystemPrompt string `json:"extra_system_prompt,omitempty"`
	Lane              string `json:"lane,omitempty"`
	Label             string `json:"label,omitempty"`
}

type startResult struct {
	RunID string `json:"run_id"`
}

// Start begins a run on a session through the gateway.
func (c *Client) Start(ctx context.Context, sessionKey, message, extraSystemPrompt, lane, label string) (string, error) {
	var res startResult
	err := c.callTimeout(ctx, rpcTimeout, "agent.start", startParams{
		SessionKey:        sessionKey,
		Message:           message,
		ExtraSystemPrompt: extraSystemPrompt,
		Lane:              lane,
		Label:             label,
	}, &res)
	if err != nil {
		return "", err
	}
	return res.RunID, nil
}

type waitParams struct {
	RunID     string `json:"run_id"`
	TimeoutMs int64  `json:"timeout_ms"`
}

type waitResult struct {
	Status    string    `json:"status"`
	StartedAt time.Time `json:"started_at,omitzero"`
	EndedAt   time.Time `json:"ended_at,omitzero"`
}

// Wait blocks until the run ends or the timeout elapses. The RPC deadline
// runs a little past the wait bound so the gateway's own timeout answer
// arrives first.
func (c *Client) Wait(ctx context.Context, runID string, timeout time.Duration) (orchestrator.WaitOutcome, error) {
	var res waitResult
	err := c.callTimeout(ctx, timeout+rpcTimeout, "agent.wait", waitParams{
		RunID:     runID,
		TimeoutMs: timeout.Milliseconds(),
	}, &res)
	if err != nil {
		return orchestrator.WaitOutcome{}, err
	}
	return orchestrator.WaitOutcome{
		Status:    res.Status,
		StartedAt: res.StartedAt,
		EndedAt:   res.EndedAt,
	}, nil
}

type readReplyParams struct {
	SessionKey string `json:"session_key"`
}

type readReplyResult struct {
	Reply string `json:"reply"`
}

// ReadLastReply fetches the session's most recent assistant reply.
func (c *Client) ReadLastReply(ctx context.Context, sessionKey string) (string, error) {
	var res readReplyResult
	if err := c.callTimeout(ctx, rpcTimeout, "agent.readLastReply", readReplyParams{SessionKey: sessionKey}, &res); err != nil {
		return "", err
	}
	return res.Reply, nil
}

type resolveParams struct {
	SessionKey string `json:"session_key"`
	DisplayKey string `json:"display_key,omitempty"`
}

type resolveResult struct {
	Target *orchestrator.AnnounceTarget `json:"target"`
}

// ResolveAnnounceTarget maps a requester session to a deliverable address. A
// nil target means nobody is listening on any channel.
func (c *Client) ResolveAnnounceTarget(ctx context.Context, sessionKey, displayKey string) (*orchestrator.AnnounceTarget, error) {
	var res resolveResult
	err := c.callTimeout(ctx, rpcTimeout, "chat.resolveTarget", resolveParams{
		SessionKey: sessionKey,
		DisplayKey: displayKey,
	}, &res)
	if err != nil {
		return nil, err
	}
	return res.Target, nil
}

type deliverParams struct {
	To             string `json:"to"`
	Message        string `json:"message"`
	Channel        string `json:"channel,omitempty"`
	AccountID      string `json:"account_id,omitempty"`
	IdempotencyKey string `json:"idempotency_key"`
}

// Deliver sends one outbound message through the gateway.
func (c *Client) Deliver(ctx context.Context, d orchestrator.Delivery) error {
	return c.callTimeout(ctx, rpcTimeout, "chat.deliver", deliverParams{
		To:             d.To,
		Message:        d.Message,
		Channel:        d.Channel,
		AccountID:      d.AccountID,
		IdempotencyKey: d.IdempotencyKey,
	}, nil)
}

// StopRun asks the gateway to relay a stop to the daemon owning the run's
// registry, so the snapshot file keeps a single writer.
func (c *Client) StopRun(ctx context.Context, runID string) error {
	return c.callTimeout(ctx, rpcTimeout, "tool.stop", stopParams{RunID: runID}, nil)
}
