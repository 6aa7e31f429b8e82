package orchestrator

import (
	"testing"
	"time"

	"github.com/moxieworks/moxie/internal/store"
)

func newTestRegistry(t *testing.T) *Registry {
	t.Helper()
	st, err := store.New(t.TempDir())
	if err != nil {
		t.Fatalf("store.New: %v", err)
	}
	if err := st.Init(); err != nil {
		t.Fatalf("store.Init: %v", err)
	}
	return NewRegistry(st)
}

func testRecord(runID string, cleanup store.CleanupMode) *store.RunRecord {
	return &store.RunRecord{
		RunID:               runID,
		ChildSessionKey:     "agent:main:subagent:" + runID,
		RequesterSessionKey: "agent:main:main",
		Task:                "task",
		Cleanup:             cleanup,
		CreatedAt:           time.Now().UTC(),
	}
}

func TestBeginAnnounceIdempotent(t *testing.T) {
	r := newTestRegistry(t)
	r.Register(testRecord("r1", store.CleanupKeep))

	if !r.BeginAnnounce("r1") {
		t.Fatalf("first BeginAnnounce = false, want true")
	}
	for i := 0; i < 5; i++ {
		if r.BeginAnnounce("r1") {
			t.Fatalf("BeginAnnounce call %d = true, want false", i+2)
		}
	}
	if r.BeginAnnounce("unknown") {
		t.Fatalf("BeginAnnounce on unknown run = true, want false")
	}
}

func TestBeginAnnounceRejectsCompleted(t *testing.T) {
	r := newTestRegistry(t)
	rec := testRecord("r1", store.CleanupKeep)
	rec.AnnounceCompletedAt = time.Now().UTC()
	r.Register(rec)

	if r.BeginAnnounce("r1") {
		t.Fatalf("BeginAnnounce on completed run = true, want false")
	}
}

func TestFinalizePolicies(t *testing.T) {
	r := newTestRegistry(t)

	// delete removes unconditionally, announced or not.
	r.Register(testRecord("d1", store.CleanupDelete))
	r.Finalize("d1", store.CleanupDelete, false)
	if r.Get("d1") != nil {
		t.Fatalf("delete-policy run still present after Finalize")
	}

	// keep + announced stamps the completion time.
	r.Register(testRecord("k1", store.CleanupKeep))
	r.Finalize("k1", store.CleanupKeep, true)
	if got := r.Get("k1"); got == nil || got.AnnounceCompletedAt.IsZero() {
		t.Fatalf("keep-policy announced run = %+v, want completion stamp", r.Get("k1"))
	}

	// keep + not announced leaves the record untouched.
	r.Register(testRecord("k2", store.CleanupKeep))
	r.Finalize("k2", store.CleanupKeep, false)
	if got := r.Get("k2"); got == nil || !got.AnnounceCompletedAt.IsZero() {
		t.Fatalf("keep-policy unannounced run = %+v, want untouched record", r.Get("k2"))
	}
}

func TestMergeKeepsFresherInMemory(t *testing.T) {
	r := newTestRegistry(t)
	live := testRecord("r1", store.CleanupKeep)
	live.Label = "live"
	r.Register(live)

	stale := testRecord("r1", store.CleanupKeep)
	stale.Label = "stale"
	other := testRecord("r2", store.CleanupDelete)

	added := r.Merge(map[string]*store.RunRecord{"r1": stale, "r2": other})
	if len(added) != 1 || added[0] != "r2" {
		t.Fatalf("Merge added = %v, want [r2]", added)
	}
	if got := r.Get("r1"); got.Label != "live" {
		t.Fatalf("r1 label = %q, want live (in-memory entry must win)", got.Label)
	}
}

func TestMarkTimestampsSetOnce(t *testing.T) {
	r := newTestRegistry(t)
	r.Register(testRecord("r1", store.CleanupKeep))

	t1 := time.Date(2026, 8, 1, 10, 0, 0, 0, time.UTC)
	t2 := t1.Add(time.Hour)
	r.MarkStarted("r1", t1)
	r.MarkStarted("r1", t2)
	r.MarkEnded("r1", t1)
	r.MarkEnded("r1", t2)

	got := r.Get("r1")
	if !got.StartedAt.Equal(t1) || !got.EndedAt.Equal(t1) {
		t.Fatalf("timestamps = %v/%v, want both %v (first write wins)", got.StartedAt, got.EndedAt, t1)
	}
}
