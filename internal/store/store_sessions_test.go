package store

import (
	"os"
	"testing"

	"github.com/moxieworks/moxie/internal/usage"
)

func TestSessionMetaLifecycle(t *testing.T) {
	s := newTestStore(t)
	key := "agent:main:subagent:ab12cd34"

	if err := s.EnsureSession(key); err != nil {
		t.Fatalf("EnsureSession: %v", err)
	}
	// Idempotent.
	if err := s.EnsureSession(key); err != nil {
		t.Fatalf("EnsureSession (repeat): %v", err)
	}

	if err := s.PatchSessionLabel(key, "research-task"); err != nil {
		t.Fatalf("PatchSessionLabel: %v", err)
	}
	if err := s.PatchSessionTarget(key, "telegram", "user-42", "acct-1"); err != nil {
		t.Fatalf("PatchSessionTarget: %v", err)
	}

	meta, err := s.GetSession(key)
	if err != nil {
		t.Fatalf("GetSession: %v", err)
	}
	if meta.Label != "research-task" {
		t.Fatalf("Label = %q, want %q", meta.Label, "research-task")
	}
	if meta.Channel != "telegram" || meta.To != "user-42" || meta.AccountID != "acct-1" {
		t.Fatalf("target = %q/%q/%q, want telegram/user-42/acct-1", meta.Channel, meta.To, meta.AccountID)
	}

	metas, err := s.ListSessions()
	if err != nil {
		t.Fatalf("ListSessions: %v", err)
	}
	if len(metas) != 1 || metas[0].Key != key {
		t.Fatalf("ListSessions = %+v, want one session %q", metas, key)
	}
}

func TestTranscriptAppendAndLastReply(t *testing.T) {
	s := newTestStore(t)
	key := "agent:main:subagent:r1"

	if got, err := s.LastAssistantReply(key); err != nil || got != "" {
		t.Fatalf("LastAssistantReply on empty = %q, %v, want \"\", nil", got, err)
	}

	entries := []TranscriptEntry{
		{Role: "user", Text: "summarize the report"},
		{Role: "assistant", Text: "working on it"},
		{Role: "assistant", Text: "here is the summary"},
		{Role: "assistant", Text: "   "},
	}
	for _, e := range entries {
		if err := s.AppendTranscriptEntry(key, e); err != nil {
			t.Fatalf("AppendTranscriptEntry: %v", err)
		}
	}

	got, err := s.LastAssistantReply(key)
	if err != nil {
		t.Fatalf("LastAssistantReply: %v", err)
	}
	if got != "here is the summary" {
		t.Fatalf("LastAssistantReply = %q, want %q", got, "here is the summary")
	}
}

func TestDeleteSession(t *testing.T) {
	s := newTestStore(t)
	key := "agent:main:subagent:r9"

	if err := s.EnsureSession(key); err != nil {
		t.Fatalf("EnsureSession: %v", err)
	}
	if err := s.AppendTranscriptEntry(key, TranscriptEntry{Role: "assistant", Text: "done"}); err != nil {
		t.Fatalf("AppendTranscriptEntry: %v", err)
	}

	// Keep transcript.
	if err := s.DeleteSession(key, false); err != nil {
		t.Fatalf("DeleteSession(keep transcript): %v", err)
	}
	if _, err := s.GetSession(key); err == nil {
		t.Fatalf("GetSession after delete succeeded, want error")
	}
	if _, err := os.Stat(s.TranscriptPath(key)); err != nil {
		t.Fatalf("transcript removed when it should survive: %v", err)
	}

	// Delete everything.
	if err := s.DeleteSession(key, true); err != nil {
		t.Fatalf("DeleteSession(delete transcript): %v", err)
	}
	if _, err := os.Stat(s.TranscriptPath(key)); !os.IsNotExist(err) {
		t.Fatalf("transcript still present after full delete")
	}
}

func TestSessionUsageAccumulates(t *testing.T) {
	s := newTestStore(t)
	key := "agent:main:subagent:r2"

	if _, err := s.ReadSessionUsage(key); err == nil {
		t.Fatalf("ReadSessionUsage on empty session succeeded, want error")
	}

	if err := s.AddSessionUsage(key, usage.Totals{InputTokens: 100, OutputTokens: 20, Model: "claude-opus-4"}); err != nil {
		t.Fatalf("AddSessionUsage: %v", err)
	}
	if err := s.AddSessionUsage(key, usage.Totals{InputTokens: 50, OutputTokens: 10}); err != nil {
		t.Fatalf("AddSessionUsage: %v", err)
	}

	totals, err := s.ReadSessionUsage(key)
	if err != nil {
		t.Fatalf("ReadSessionUsage: %v", err)
	}
	if totals.InputTokens != 150 || totals.OutputTokens != 30 {
		t.Fatalf("totals = %d in / %d out, want 150 / 30", totals.InputTokens, totals.OutputTokens)
	}
	if totals.Model != "claude-opus-4" {
		t.Fatalf("Model = %q, want claude-opus-4", totals.Model)
	}
}
