// Package sessions provides session-key conventions and the file-backed
// session store the orchestrator talks to.
package sessions

import "strings"

// Session keys follow the platform convention:
//
//	agent:<agentID>:main                  top-level session of an agent
//	agent:<agentID>:subagent:<runID>      child session of a background run
//	agent:<agentID>:chat:<peerID>         peer exchange scratch session

// MainKey returns the top-level session key for an agent.
func MainKey(agentID string) string {
	return "agent:" + agentID + ":main"
}

// SubagentKey returns the child session key for a background run.
func SubagentKey(agentID, runID string) string {
	return "agent:" + agentID + ":subagent:" + runID
}

// ChatKey returns the scratch session key used for a peer exchange.
func ChatKey(agentID, peerID string) string {
	return "agent:" + agentID + ":chat:" + peerID
}

// AgentOf extracts the agent ID from a session key, or "" when the key does
// not follow the convention.
func AgentOf(sessionKey string) string {
	parts := strings.Split(sessionKey, ":")
	if len(parts) < 3 || parts[0] != "agent" {
		return ""
	}
	return parts[1]
}

// IsSubagent reports whether the key names a background run's child session.
func IsSubagent(sessionKey string) bool {
	parts := strings.Split(sessionKey, ":")
	return len(parts) == 4 && parts[0] == "agent" && parts[2] == "subagent"
}

// RunOf extracts the run ID from a subagent session key, or "".
func RunOf(sessionKey string) string {
	if !IsSubagent(sessionKey) {
		return ""
	}
	return strings.Split(sessionKey, ":")[3]
}
