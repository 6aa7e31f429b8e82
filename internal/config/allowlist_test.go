package config

import "testing"

func TestPeerAllowed(t *testing.T) {
	cfg := &ChatConfig{
		CrossAgentEnabled: true,
		AllowedPeers:      []string{"researcher", "support-*", "Ops-Team"},
	}

	cases := []struct {
		peer string
		want bool
	}{
		{"researcher", true},
		{"RESEARCHER", true},
		{"support-tier1", true},
		{"support-", true},
		{"ops-team", true},
		{"supportX", false},
		{"billing", false},
		{"", false},
		{"  researcher  ", true},
	}
	for _, tc := range cases {
		if got := cfg.PeerAllowed(tc.peer); got != tc.want {
			t.Errorf("PeerAllowed(%q) = %v, want %v", tc.peer, got, tc.want)
		}
	}
}

func TestPeerAllowedDisabled(t *testing.T) {
	cfg := &ChatConfig{AllowedPeers: []string{"*"}}
	if cfg.PeerAllowed("anyone") {
		t.Fatalf("PeerAllowed with cross-agent disabled = true, want false")
	}
}

func TestPeerAllowedEmptyList(t *testing.T) {
	cfg := &ChatConfig{CrossAgentEnabled: true}
	if cfg.PeerAllowed("researcher") {
		t.Fatalf("PeerAllowed with empty allow list = true, want false")
	}
}

func TestEffectiveDefaults(t *testing.T) {
	var sub *SubagentsConfig
	if got := sub.EffectiveRetention().Hours(); got != 24 {
		t.Errorf("EffectiveRetention on nil = %vh, want 24h", got)
	}
	if got := sub.EffectiveSweepInterval().Seconds(); got != 60 {
		t.Errorf("EffectiveSweepInterval on nil = %vs, want 60s", got)
	}

	var chat *ChatConfig
	if got := chat.EffectiveMaxTurns(); got != 5 {
		t.Errorf("EffectiveMaxTurns on nil = %d, want 5", got)
	}
	if got := chat.EffectiveSkipSentinel(); got != DefaultSkipSentinel {
		t.Errorf("EffectiveSkipSentinel on nil = %q, want %q", got, DefaultSkipSentinel)
	}

	chat = &ChatConfig{MaxPingPongTurns: 3, SkipSentinel: "NO_ANNOUNCE"}
	if got := chat.EffectiveMaxTurns(); got != 3 {
		t.Errorf("EffectiveMaxTurns = %d, want 3", got)
	}
	if got := chat.EffectiveSkipSentinel(); got != "NO_ANNOUNCE" {
		t.Errorf("EffectiveSkipSentinel = %q, want NO_ANNOUNCE", got)
	}
}
