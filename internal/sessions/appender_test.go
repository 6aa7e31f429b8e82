package sessions

import (
	"testing"

	"github.com/moxieworks/moxie/internal/store"
	"github.com/moxieworks/moxie/internal/usage"
)

func newTestFileStore(t *testing.T) (*FileStore, *store.Store) {
	t.Helper()
	st, err := store.New(t.TempDir())
	if err != nil {
		t.Fatalf("store.New: %v", err)
	}
	if err := st.Init(); err != nil {
		t.Fatalf("store.Init: %v", err)
	}
	return NewFileStore(st), st
}

func TestUsageRecorderAccumulates(t *testing.T) {
	fs, st := newTestFileStore(t)
	rec := NewUsageRecorder(fs, st)
	key := "agent:main:subagent:r1"

	entries := []store.TranscriptEntry{
		{Role: "assistant", Text: "thinking", Usage: &usage.Totals{InputTokens: 100, OutputTokens: 10}},
		{Role: "assistant", Text: "done", Usage: &usage.Totals{InputTokens: 40, OutputTokens: 5, Model: "gpt-5"}},
		{Role: "user", Text: "thanks"}, // no usage sample
	}
	for _, e := range entries {
		if err := rec.Append(key, e); err != nil {
			t.Fatalf("Append: %v", err)
		}
	}

	totals, err := fs.ReadUsage(key)
	if err != nil {
		t.Fatalf("ReadUsage: %v", err)
	}
	if totals.InputTokens != 140 || totals.OutputTokens != 15 {
		t.Fatalf("totals = %d in / %d out, want 140 / 15", totals.InputTokens, totals.OutputTokens)
	}

	// The transcript still received every entry.
	last, err := fs.LastReply(key)
	if err != nil {
		t.Fatalf("LastReply: %v", err)
	}
	if last != "done" {
		t.Fatalf("LastReply = %q, want done", last)
	}
}
