package store

import (
	"time"

	"github.com/moxieworks/moxie/internal/usage"
)

// CleanupMode decides what happens to a run's record and child session once
// its announce has run.
type CleanupMode string

const (
	// CleanupDelete removes the record and the child session after the
	// announce flow concludes, whether or not delivery succeeded.
	CleanupDelete CleanupMode = "delete"
	// CleanupKeep retains the record (stamped with the announce completion
	// time) and leaves the child session alive until the sweeper evicts it.
	CleanupKeep CleanupMode = "keep"
)

// Valid reports whether m is a known cleanup mode.
func (m CleanupMode) Valid() bool {
	return m == CleanupDelete || m == CleanupKeep
}

// RunRecord tracks one background run from registration to announce.
type RunRecord struct {
	RunID               string      `json:"run_id"`
	ChildSessionKey     string      `json:"child_session_key"`
	RequesterSessionKey string      `json:"requester_session_key"`
	RequesterDisplayKey string      `json:"requester_display_key,omitempty"`
	Task                string      `json:"task"`
	Cleanup             CleanupMode `json:"cleanup"`
	Label               string      `json:"label,omitempty"`
	CreatedAt           time.Time   `json:"created_at"`
	StartedAt           time.Time   `json:"started_at,omitzero"`
	EndedAt             time.Time   `json:"ended_at,omitzero"`
	ArchiveAt           time.Time   `json:"archive_at,omitzero"`
	AnnounceCompletedAt time.Time   `json:"announce_completed_at,omitzero"`

	// AnnounceHandled is the mutual-exclusion gate between the two
	// completion-detection paths. It is derived from AnnounceCompletedAt at
	// load time and never persisted, so the durable and in-memory views
	// cannot disagree.
	AnnounceHandled bool `json:"-"`
}

// Clone returns a copy of the record.
func (r *RunRecord) Clone() *RunRecord {
	if r == nil {
		return nil
	}
	c := *r
	return &c
}

// SessionMeta is the persisted metadata of one agent session.
type SessionMeta struct {
	Key       string    `json:"key"`
	Label     string    `json:"label,omitempty"`
	Channel   string    `json:"channel,omitempty"`
	To        string    `json:"to,omitempty"`
	AccountID string    `json:"account_id,omitempty"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at,omitzero"`
}

// TranscriptEntry is one line of a session transcript (entries.jsonl).
type TranscriptEntry struct {
	Role      string        `json:"role"`
	Text      string        `json:"text,omitempty"`
	Usage     *usage.Totals `json:"usage,omitempty"`
	CreatedAt time.Time     `json:"created_at,omitzero"`
}
