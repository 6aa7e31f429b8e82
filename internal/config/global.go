// Package config loads and saves user-level moxie preferences from
// ~/.moxie/config.json.
package config

import (
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"time"
)

// SubagentsConfig tunes the background-run orchestrator.
type SubagentsConfig struct {
	ArchiveRetentionHours int `json:"archive_retention_hours,omitempty"` // how long kept runs survive after announce (0 = 24h)
	SweepIntervalSeconds  int `json:"sweep_interval_seconds,omitempty"`  // sweeper tick (0 = 60s)
	AnnounceWaitSeconds   int `json:"announce_wait_seconds,omitempty"`   // cap on waiting for a finished run's reply (0 = 60s)
	ResumeWaitSeconds     int `json:"resume_wait_seconds,omitempty"`     // bounded wait per resumed run at startup (0 = 10s)
	WaitTimeoutSeconds    int `json:"wait_timeout_seconds,omitempty"`    // default bound on the post-registration wait call (0 = 10m)
}

// EffectiveRetention returns the archive retention window.
func (c *SubagentsConfig) EffectiveRetention() time.Duration {
	if c == nil || c.ArchiveRetentionHours <= 0 {
		return 24 * time.Hour
	}
	return time.Duration(c.ArchiveRetentionHours) * time.Hour
}

// EffectiveSweepInterval returns how often the sweeper scans for expired runs.
func (c *SubagentsConfig) EffectiveSweepInterval() time.Duration {
	if c == nil || c.SweepIntervalSeconds <= 0 {
		return 60 * time.Second
	}
	return time.Duration(c.SweepIntervalSeconds) * time.Second
}

// EffectiveAnnounceWait returns the cap on waiting for a run's final reply.
func (c *SubagentsConfig) EffectiveAnnounceWait() time.Duration {
	if c == nil || c.AnnounceWaitSeconds <= 0 {
		return 60 * time.Second
	}
	return time.Duration(c.AnnounceWaitSeconds) * time.Second
}

// EffectiveWaitTimeout returns the default bound on the wait call issued
// right after a run is registered.
func (c *SubagentsConfig) EffectiveWaitTimeout() time.Duration {
	if c == nil || c.WaitTimeoutSeconds <= 0 {
		return 10 * time.Minute
	}
	return time.Duration(c.WaitTimeoutSeconds) * time.Second
}

// EffectiveResumeWait returns the bounded wait used per run when re-attaching
// after a restart.
func (c *SubagentsConfig) EffectiveResumeWait() time.Duration {
	if c == nil || c.ResumeWaitSeconds <= 0 {
		return 10 * time.Second
	}
	return time.Duration(c.ResumeWaitSeconds) * time.Second
}

// ChatConfig governs agent-to-agent messaging.
type ChatConfig struct {
	CrossAgentEnabled bool     `json:"cross_agent_enabled,omitempty"` // master switch for peer-to-peer sends
	AllowedPeers      []string `json:"allowed_peers,omitempty"`       // agent IDs or glob patterns the local agent may message
	MaxPingPongTurns  int      `json:"max_ping_pong_turns,omitempty"` // alternating reply turns per exchange (0 = 5)
	SkipSentinel      string   `json:"skip_sentinel,omitempty"`       // reply value that suppresses delivery ("" = built-in)
}

// DefaultSkipSentinel is the reply prefix that suppresses announce delivery.
const DefaultSkipSentinel = "ANNOUNCE_SKIP"

// EffectiveMaxTurns returns the ping-pong turn budget.
func (c *ChatConfig) EffectiveMaxTurns() int {
	if c == nil || c.MaxPingPongTurns <= 0 {
		return 5
	}
	return c.MaxPingPongTurns
}

// EffectiveSkipSentinel returns the skip marker, falling back to the built-in.
func (c *ChatConfig) EffectiveSkipSentinel() string {
	if c == nil || c.SkipSentinel == "" {
		return DefaultSkipSentinel
	}
	return c.SkipSentinel
}

// GatewayConfig holds the chat gateway connection settings.
type GatewayConfig struct {
	URL   string `json:"url,omitempty"`   // websocket endpoint, e.g. ws://127.0.0.1:18789/ws
	Token string `json:"token,omitempty"` // bearer token sent on connect
}

// DefaultGatewayURL is used when the config does not name an endpoint.
const DefaultGatewayURL = "ws://127.0.0.1:18789/ws"

// EffectiveURL returns the gateway endpoint, falling back to the default.
func (g *GatewayConfig) EffectiveURL() string {
	if g == nil || g.URL == "" {
		return DefaultGatewayURL
	}
	return g.URL
}

// GlobalConfig holds user-level preferences stored in ~/.moxie/config.json.
type GlobalConfig struct {
	Subagents SubagentsConfig `json:"subagents,omitempty"`
	Chat      ChatConfig      `json:"chat,omitempty"`
	Gateway   GatewayConfig   `json:"gateway,omitempty"`
}

// Dir returns the global moxie config directory (~/.moxie), creating it if needed.
func Dir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		home = os.TempDir()
	}
	dir := filepath.Join(home, ".moxie")
	os.MkdirAll(dir, 0755)
	return dir
}

// configPath returns the full path to ~/.moxie/config.json.
func configPath() string {
	return filepath.Join(Dir(), "config.json")
}

// Load reads ~/.moxie/config.json, returning an empty config if the file is absent.
func Load() (*GlobalConfig, error) {
	data, err := os.ReadFile(configPath())
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return &GlobalConfig{}, nil
		}
		return nil, err
	}

	var cfg GlobalConfig
	if err := json.Unmarshal(data, &cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Save writes the global config to ~/.moxie/config.json.
func Save(cfg *GlobalConfig) error {
	if cfg == nil {
		cfg = &GlobalConfig{}
	}
	data, err := json.MarshalIndent(cfg, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(configPath(), data, 0644)
}
