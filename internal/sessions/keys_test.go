package sessions

import "testing"

func TestKeyHelpers(t *testing.T) {
	if got := MainKey("main"); got != "agent:main:main" {
		t.Fatalf("MainKey = %q, want agent:main:main", got)
	}
	if got := SubagentKey("main", "ab12cd34"); got != "agent:main:subagent:ab12cd34" {
		t.Fatalf("SubagentKey = %q", got)
	}
	if got := ChatKey("main", "support"); got != "agent:main:chat:support" {
		t.Fatalf("ChatKey = %q", got)
	}
}

func TestAgentOf(t *testing.T) {
	cases := []struct {
		key  string
		want string
	}{
		{"agent:main:main", "main"},
		{"agent:support:subagent:ab12cd34", "support"},
		{"bogus", ""},
		{"session:main:main", ""},
	}
	for _, tc := range cases {
		if got := AgentOf(tc.key); got != tc.want {
			t.Errorf("AgentOf(%q) = %q, want %q", tc.key, got, tc.want)
		}
	}
}

func TestSubagentKeys(t *testing.T) {
	if !IsSubagent("agent:main:subagent:r1") {
		t.Fatalf("IsSubagent = false for subagent key")
	}
	if IsSubagent("agent:main:main") {
		t.Fatalf("IsSubagent = true for main key")
	}
	if got := RunOf("agent:main:subagent:r1"); got != "r1" {
		t.Fatalf("RunOf = %q, want r1", got)
	}
	if got := RunOf("agent:main:main"); got != "" {
		t.Fatalf("RunOf on main key = %q, want \"\"", got)
	}
}
