package cli

import (
	"testing"
	"time"

	"github.com/moxieworks/moxie/internal/store"
)

func TestRunState(t *testing.T) {
	now := time.Now().UTC()
	cases := []struct {
		name string
		rec  store.RunRecord
		want string
	}{
		{"pending", store.RunRecord{CreatedAt: now}, "pending"},
		{"running", store.RunRecord{CreatedAt: now, StartedAt: now}, "running"},
		{"ended", store.RunRecord{CreatedAt: now, StartedAt: now, EndedAt: now}, "ended"},
		{"announced", store.RunRecord{CreatedAt: now, EndedAt: now, AnnounceCompletedAt: now}, "announced"},
	}
	for _, tc := range cases {
		if got := runState(&tc.rec); got != tc.want {
			t.Errorf("%s: runState = %q, want %q", tc.name, got, tc.want)
		}
	}
}

func TestAgeString(t *testing.T) {
	cases := []struct {
		age  time.Duration
		want string
	}{
		{30 * time.Second, "30s"},
		{5 * time.Minute, "5m"},
		{3 * time.Hour, "3h"},
		{49 * time.Hour, "2d"},
	}
	for _, tc := range cases {
		if got := ageString(time.Now().Add(-tc.age)); got != tc.want {
			t.Errorf("ageString(-%v) = %q, want %q", tc.age, got, tc.want)
		}
	}
	if got := ageString(time.Time{}); got != "-" {
		t.Errorf("ageString(zero) = %q, want -", got)
	}
}

func TestStopDirect(t *testing.T) {
	st, err := store.New(t.TempDir())
	if err != nil {
		t.Fatalf("store.New: %v", err)
	}
	if err := st.Init(); err != nil {
		t.Fatalf("store.Init: %v", err)
	}

	childKey := "agent:main:subagent:ab12cd34"
	if err := st.EnsureSession(childKey); err != nil {
		t.Fatalf("EnsureSession: %v", err)
	}
	runs := map[string]*store.RunRecord{
		"ab12cd34": {
			RunID:               "ab12cd34",
			ChildSessionKey:     childKey,
			RequesterSessionKey: "agent:main:main",
			Task:                "long job",
			Cleanup:             store.CleanupKeep,
			CreatedAt:           time.Now().UTC(),
		},
	}
	if err := st.SaveRuns(runs); err != nil {
		t.Fatalf("SaveRuns: %v", err)
	}

	if err := stopDirect(st, "ab12cd34"); err != nil {
		t.Fatalf("stopDirect: %v", err)
	}
	if left := st.LoadRuns(); len(left) != 0 {
		t.Fatalf("runs after stop = %d, want 0", len(left))
	}
	if _, err := st.GetSession(childKey); err == nil {
		t.Fatalf("child session survived stop")
	}

	if err := stopDirect(st, "ab12cd34"); err == nil {
		t.Fatalf("stopDirect on unknown run succeeded, want error")
	}
}
