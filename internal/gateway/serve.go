package gateway

import (
	"context"
	"encoding/json"
	"time"

	"github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"

	"github.com/moxieworks/moxie/internal/debug"
	"github.com/moxieworks/moxie/internal/orchestrator"
	"github.com/moxieworks/moxie/internal/store"
	"github.com/moxieworks/moxie/internal/usage"
)

// Tools is the orchestrator surface exposed to inbound gateway calls.
// *orchestrator.Orchestrator satisfies it.
type Tools interface {
	Spawn(ctx context.Context, req orchestrator.SpawnRequest) orchestrator.SpawnResult
	SendToSession(ctx context.Context, req orchestrator.SendRequest) orchestrator.SendResult
	Stop(runID string) error
}

type spawnParams struct {
	AgentID             string `json:"agent_id,omitempty"`
	RequesterSessionKey string `json:"requester_session_key"`
	RequesterDisplayKey string `json:"requester_display_key,omitempty"`
	Task                string `json:"task"`
	Label               string `json:"label,omitempty"`
	Cleanup             string `json:"cleanup,omitempty"`
	TimeoutMs           int64  `json:"timeout_ms,omitempty"`
}

type stopParams struct {
	RunID string `json:"run_id"`
}

type appendParams struct {
	SessionKey string        `json:"session_key"`
	Role       string        `json:"role"`
	Text       string        `json:"text"`
	Usage      *usage.Totals `json:"usage,omitempty"`
}

type sendParams struct {
	FromAgentID    string `json:"from_agent_id"`
	FromSessionKey string `json:"from_session_key,omitempty"`
	ToAgentID      string `json:"to_agent_id"`
	ToSessionKey   string `json:"to_session_key,omitempty"`
	Message        string `json:"message"`
	TimeoutMs      int64  `json:"timeout_ms,omitempty"`
	MaxTurns       int    `json:"max_turns,omitempty"`
}

// handleRequest dispatches one inbound tool call and writes its response.
func (c *Client) handleRequest(conn *websocket.Conn, env envelope) {
	ctx := context.Background()
	resp := envelope{ID: env.ID}

	switch env.Method {
	case "tool.spawn":
		var p spawnParams
		if err := json.Unmarshal(env.Params, &p); err != nil {
			resp.Error = "bad spawn params: " + err.Error()
			break
		}
		if c.tools == nil {
			resp.Error = "no tool handler registered"
			break
		}
		res := c.tools.Spawn(ctx, orchestrator.SpawnRequest{
			AgentID:             p.AgentID,
			RequesterSessionKey: p.RequesterSessionKey,
			RequesterDisplayKey: p.RequesterDisplayKey,
			Task:                p.Task,
			Label:               p.Label,
			Cleanup:             store.CleanupMode(p.Cleanup),
			Timeout:             time.Duration(p.TimeoutMs) * time.Millisecond,
		})
		resp.Result, _ = json.Marshal(res)
	case "tool.send":
		var p sendParams
		if err := json.Unmarshal(env.Params, &p); err != nil {
			resp.Error = "bad send params: " + err.Error()
			break
		}
		if c.tools == nil {
			resp.Error = "no tool handler registered"
			break
		}
		res := c.tools.SendToSession(ctx, orchestrator.SendRequest{
			FromAgentID:    p.FromAgentID,
			FromSessionKey: p.FromSessionKey,
			ToAgentID:      p.ToAgentID,
			ToSessionKey:   p.ToSessionKey,
			Message:        p.Message,
			Timeout:        time.Duration(p.TimeoutMs) * time.Millisecond,
			MaxTurns:       p.MaxTurns,
		})
		resp.Result, _ = json.Marshal(res)
	case "tool.stop":
		var p stopParams
		if err := json.Unmarshal(env.Params, &p); err != nil {
			resp.Error = "bad stop params: " + err.Error()
			break
		}
		if c.tools == nil {
			resp.Error = "no tool handler registered"
			break
		}
		if err := c.tools.Stop(p.RunID); err != nil {
			resp.Error = err.Error()
			break
		}
		resp.Result = json.RawMessage(`{"ok":true}`)
	case "session.append":
		var p appendParams
		if err := json.Unmarshal(env.Params, &p); err != nil {
			resp.Error = "bad append params: " + err.Error()
			break
		}
		if c.appender == nil {
			resp.Error = "no appender registered"
			break
		}
		err := c.appender.Append(p.SessionKey, store.TranscriptEntry{
			Role:      p.Role,
			Text:      p.Text,
			Usage:     p.Usage,
			CreatedAt: time.Now().UTC(),
		})
		if err != nil {
			resp.Error = err.Error()
			break
		}
		resp.Result = json.RawMessage(`{"ok":true}`)
	default:
		resp.Error = "unknown method " + env.Method
	}

	c.respond(conn, resp)
}

func (c *Client) respond(conn *websocket.Conn, resp envelope) {
	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := wsjson.Write(ctx, conn, resp); err != nil {
		debug.LogKV("gateway", "response write failed", "id", resp.ID, "err", err)
	}
}
