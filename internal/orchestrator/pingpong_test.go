package orchestrator

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/moxieworks/moxie/internal/config"
	"github.com/moxieworks/moxie/internal/usage"
)

func TestSendForbiddenWithoutAllowList(t *testing.T) {
	h := newHarness(t, "")
	h.o.cfg.Chat = config.ChatConfig{CrossAgentEnabled: true, AllowedPeers: []string{"main"}}

	res := h.o.SendToSession(context.Background(), SendRequest{
		FromAgentID: "main",
		ToAgentID:   "rogue",
		Message:     "hello",
		Timeout:     time.Second,
	})
	if res.Status != StatusForbidden {
		t.Fatalf("status = %q, want forbidden", res.Status)
	}

	// Zero remote calls of any kind.
	h.rt.mu.Lock()
	starts, waited := len(h.rt.starts), len(h.rt.waited)
	h.rt.mu.Unlock()
	if starts != 0 || waited != 0 {
		t.Fatalf("remote calls after forbidden send: %d starts, %d waits, want 0/0", starts, waited)
	}
	h.msg.mu.Lock()
	resolves, deliveries := h.msg.resolveCalls, len(h.msg.deliveries)
	h.msg.mu.Unlock()
	if resolves != 0 || deliveries != 0 {
		t.Fatalf("messenger touched after forbidden send: %d resolves, %d deliveries", resolves, deliveries)
	}
}

func TestSendForbiddenWhenDisabled(t *testing.T) {
	h := newHarness(t, "")
	h.o.cfg.Chat = config.ChatConfig{AllowedPeers: []string{"*"}}

	res := h.o.SendToSession(context.Background(), SendRequest{
		FromAgentID: "main",
		ToAgentID:   "support",
		Message:     "hello",
	})
	if res.Status != StatusForbidden {
		t.Fatalf("status = %q, want forbidden", res.Status)
	}
}

func TestPingPongTurnBound(t *testing.T) {
	h := newHarness(t, "")
	const maxTurns = 3

	fromKey := "agent:main:main"
	toKey := "agent:support:main"
	h.rt.setReply(fromKey, "main says more")
	h.rt.setReply(toKey, "support says more")
	if err := h.st.AddSessionUsage(toKey, usage.Totals{InputTokens: 10, OutputTokens: 10, Model: "claude-sonnet-4"}); err != nil {
		t.Fatalf("AddSessionUsage: %v", err)
	}

	res := h.o.SendToSession(context.Background(), SendRequest{
		FromAgentID: "main",
		ToAgentID:   "support",
		Message:     "let's coordinate",
		Timeout:     time.Second,
		MaxTurns:    maxTurns,
	})
	if res.Status != StatusOK {
		t.Fatalf("status = %q (%s), want ok", res.Status, res.Error)
	}
	if res.Reply != "support says more" {
		t.Fatalf("reply = %q, want the target's immediate reply", res.Reply)
	}

	waitFor(t, "final announce", func() bool { return len(h.msg.delivered()) == 1 })

	// Exactly: 1 immediate send + maxTurns alternation turns on the chat
	// lane, then 1 announce turn.
	chatStarts := h.rt.startsByLane(LaneChat)
	if len(chatStarts) != 1+maxTurns {
		t.Fatalf("chat-lane starts = %d, want %d", len(chatStarts), 1+maxTurns)
	}
	// Alternation: requester speaks first, then sides swap each turn.
	wantSessions := []string{toKey, fromKey, toKey, fromKey}
	for i, c := range chatStarts {
		if c.SessionKey != wantSessions[i] {
			t.Fatalf("chat turn %d on %s, want %s", i, c.SessionKey, wantSessions[i])
		}
	}
	if n := len(h.rt.startsByLane(LaneAnnounce)); n != 1 {
		t.Fatalf("announce-lane starts = %d, want 1", n)
	}

	d := h.msg.delivered()[0]
	if d.IdempotencyKey != chatKeyPrefix+res.RunID {
		t.Fatalf("IdempotencyKey = %q, want %s%s", d.IdempotencyKey, chatKeyPrefix, res.RunID)
	}
}

func TestPingPongStopsOnSkipSentinel(t *testing.T) {
	h := newHarness(t, "")

	fromKey := "agent:main:main"
	toKey := "agent:support:main"
	h.rt.setReply(toKey, "support's answer")
	h.rt.setReply(fromKey, config.DefaultSkipSentinel)

	res := h.o.SendToSession(context.Background(), SendRequest{
		FromAgentID: "main",
		ToAgentID:   "support",
		Message:     "quick question",
		Timeout:     time.Second,
		MaxTurns:    5,
	})
	if res.Status != StatusOK {
		t.Fatalf("status = %q, want ok", res.Status)
	}

	// Turn 1: requester replies with the sentinel; turn 2 must not happen.
	// The final announce turn still runs on the target session, but its
	// draft is the target's reply, so a delivery goes out.
	waitFor(t, "exchange conclusion", func() bool {
		got := h.o.registry.Get(res.RunID)
		return got != nil && got.AnnounceHandled
	})
	waitFor(t, "announce delivery", func() bool { return len(h.msg.delivered()) == 1 })

	chatStarts := h.rt.startsByLane(LaneChat)
	if len(chatStarts) != 2 {
		t.Fatalf("chat-lane starts = %d, want 2 (send + one turn before sentinel)", len(chatStarts))
	}
}

func TestSendFireAndForget(t *testing.T) {
	h := newHarness(t, "")

	toKey := "agent:support:main"
	h.rt.setReply(toKey, config.DefaultSkipSentinel) // stop immediately, suppress announce

	res := h.o.SendToSession(context.Background(), SendRequest{
		FromAgentID: "main",
		ToAgentID:   "support",
		Message:     "fyi only",
		// Timeout zero: fire-and-forget.
	})
	if res.Status != StatusAccepted {
		t.Fatalf("status = %q, want accepted", res.Status)
	}
	if res.Reply != "" {
		t.Fatalf("fire-and-forget returned a reply: %q", res.Reply)
	}

	// The detached leg still runs to its announce conclusion.
	waitFor(t, "detached conclusion", func() bool {
		got := h.o.registry.Get(res.RunID)
		return got != nil && got.AnnounceHandled
	})
	if n := len(h.msg.delivered()); n != 0 {
		t.Fatalf("deliveries = %d, want 0 (sentinel suppressed)", n)
	}
}

func TestSendReportsErrorOutcome(t *testing.T) {
	h := newHarness(t, "")
	h.rt.outcome = &WaitOutcome{Status: StatusError}

	fromKey := "agent:main:main"
	toKey := "agent:support:main"
	h.rt.setReply(toKey, "it broke: stack trace follows")
	h.rt.setReply(fromKey, config.DefaultSkipSentinel)

	res := h.o.SendToSession(context.Background(), SendRequest{
		FromAgentID: "main",
		ToAgentID:   "support",
		Message:     "run the migration",
		Timeout:     time.Second,
	})
	if res.Status != StatusError {
		t.Fatalf("status = %q, want error", res.Status)
	}
	if res.Reply != "it broke: stack trace follows" {
		t.Fatalf("reply = %q, want the target's last reply", res.Reply)
	}

	// The run did end, just unsuccessfully.
	rec := h.o.registry.Get(res.RunID)
	if rec == nil || rec.EndedAt.IsZero() {
		t.Fatalf("record = %+v, want an end timestamp", rec)
	}

	// The detached conclusion still announces the exchange.
	waitFor(t, "exchange conclusion", func() bool {
		got := h.o.registry.Get(res.RunID)
		return got != nil && got.AnnounceHandled
	})
}

func TestDetachedTimeoutLeavesRunPending(t *testing.T) {
	h := newHarness(t, "")
	h.rt.outcome = &WaitOutcome{Status: StatusTimeout}

	toKey := "agent:support:main"
	h.rt.setReply(toKey, "late but done")

	res := h.o.SendToSession(context.Background(), SendRequest{
		FromAgentID: "main",
		ToAgentID:   "support",
		Message:     "slow job",
		// Timeout zero: fire-and-forget, so the detached leg owns the wait.
	})
	if res.Status != StatusAccepted {
		t.Fatalf("status = %q, want accepted", res.Status)
	}

	waitFor(t, "detached conclusion", func() bool {
		got := h.o.registry.Get(res.RunID)
		return got != nil && got.AnnounceHandled
	})

	// A timed-out wait is not an ended run.
	rec := h.o.registry.Get(res.RunID)
	if !rec.EndedAt.IsZero() {
		t.Fatalf("EndedAt = %v, want zero after timeout", rec.EndedAt)
	}

	// The announce flow performed its own bounded pre-wait: once detached,
	// once inside the flow.
	if n := h.rt.waitedCount(res.RunID); n != 2 {
		t.Fatalf("Wait calls for run = %d, want 2", n)
	}

	// The reply still went out, read best-effort by the announce flow.
	waitFor(t, "announce delivery", func() bool { return len(h.msg.delivered()) == 1 })
	if !strings.Contains(h.msg.delivered()[0].Message, "late but done") {
		t.Fatalf("announce message = %q, want the late reply", h.msg.delivered()[0].Message)
	}
}

func TestExchangePromptCarriesReply(t *testing.T) {
	h := newHarness(t, "")

	fromKey := "agent:main:main"
	toKey := "agent:support:main"
	h.rt.setReply(toKey, "support's take")
	h.rt.setReply(fromKey, config.DefaultSkipSentinel)

	res := h.o.SendToSession(context.Background(), SendRequest{
		FromAgentID: "main",
		ToAgentID:   "support",
		Message:     "thoughts?",
		Timeout:     time.Second,
		MaxTurns:    2,
	})
	if res.Status != StatusOK {
		t.Fatalf("status = %q, want ok", res.Status)
	}
	waitFor(t, "exchange conclusion", func() bool {
		got := h.o.registry.Get(res.RunID)
		return got != nil && got.AnnounceHandled
	})

	chatStarts := h.rt.startsByLane(LaneChat)
	if len(chatStarts) != 2 {
		t.Fatalf("chat-lane starts = %d, want 2", len(chatStarts))
	}
	// The requester's turn receives the target's reply as input.
	if !strings.Contains(chatStarts[1].Message, "support's take") {
		t.Fatalf("turn input = %q, want the peer's latest reply", chatStarts[1].Message)
	}
}
