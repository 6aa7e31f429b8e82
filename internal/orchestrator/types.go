// Package orchestrator coordinates background subagent runs and direct
// agent-to-agent exchanges: the run registry and its durable snapshot, the
// two racing completion detectors, the announce flow, the ping-pong exchange,
// the sweeper, and restart resumption.
package orchestrator

import (
	"context"
	"time"

	"github.com/moxieworks/moxie/internal/usage"
)

// Result statuses shared by the tool surface.
const (
	StatusOK        = "ok"
	StatusError     = "error"
	StatusTimeout   = "timeout"
	StatusAccepted  = "accepted"
	StatusForbidden = "forbidden"
)

// Lanes tag invocations for the execution runtime. The runtime treats them as
// opaque.
const (
	LaneSubagent = "subagent"
	LaneChat     = "chat"
	LaneAnnounce = "announce"
)

// WaitOutcome is the terminal state reported by a wait call.
type WaitOutcome struct {
	Status    string // ok, error or timeout
	StartedAt time.Time
	EndedAt   time.Time
}

// Runtime is the LLM/tool execution runtime the orchestrator drives. All
// methods are remote calls and may block up to their bound.
type Runtime interface {
	// Start begins a new turn on a session and returns the run ID assigned
	// by the runtime ("" means the caller's proposed ID was kept).
	Start(ctx context.Context, sessionKey, message, extraSystemPrompt, lane, label string) (string, error)
	// Wait blocks until the run reaches a terminal state or the timeout
	// elapses.
	Wait(ctx context.Context, runID string, timeout time.Duration) (WaitOutcome, error)
	// ReadLastReply returns the session's most recent assistant reply.
	ReadLastReply(ctx context.Context, sessionKey string) (string, error)
}

// AnnounceTarget is a resolved delivery address for a requester session.
type AnnounceTarget struct {
	Channel   string `json:"channel"`
	To        string `json:"to"`
	AccountID string `json:"account_id,omitempty"`
}

// Delivery is one outbound announce message.
type Delivery struct {
	To             string
	Message        string
	Channel        string
	AccountID      string
	IdempotencyKey string
}

// Messenger is the chat messaging subsystem.
type Messenger interface {
	// ResolveAnnounceTarget maps a requester session to a deliverable
	// address. A nil target with nil error means nobody is listening.
	ResolveAnnounceTarget(ctx context.Context, sessionKey, displayKey string) (*AnnounceTarget, error)
	Deliver(ctx context.Context, d Delivery) error
}

// SessionStore is the session metadata and usage surface the orchestrator
// needs. *sessions.FileStore satisfies it.
type SessionStore interface {
	Ensure(sessionKey string) error
	PatchLabel(sessionKey, label string) error
	Delete(sessionKey string, deleteTranscript bool) error
	// ReadUsage errors while no usage has been recorded; callers poll with
	// short bounded retries since usage figures lag run completion.
	ReadUsage(sessionKey string) (*usage.Totals, error)
	TranscriptPath(sessionKey string) string
}
