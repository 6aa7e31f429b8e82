package config

import (
	"path"
	"strings"
)

// PeerAllowed reports whether the local agent may message agentID. Entries in
// the allow list match exactly (case-insensitive) or as path.Match globs, so
// "support-*" admits every support agent. An empty list allows nobody.
func (c *ChatConfig) PeerAllowed(agentID string) bool {
	if c == nil || !c.CrossAgentEnabled {
		return false
	}
	agentID = strings.ToLower(strings.TrimSpace(agentID))
	if agentID == "" {
		return false
	}
	for _, pattern := range c.AllowedPeers {
		pattern = strings.ToLower(strings.TrimSpace(pattern))
		if pattern == "" {
			continue
		}
		if pattern == agentID {
			return true
		}
		if ok, err := path.Match(pattern, agentID); err == nil && ok {
			return true
		}
	}
	return false
}
