package sessions

import (
	"github.com/moxieworks/moxie/internal/debug"
	"github.com/moxieworks/moxie/internal/store"
)

// Appender receives transcript entries for a session.
type Appender interface {
	Append(sessionKey string, entry store.TranscriptEntry) error
}

// UsageRecorder decorates an Appender so that entries carrying usage samples
// also accumulate into the session's usage counters. It is composed at
// construction time; the underlying appender is never modified.
type UsageRecorder struct {
	next  Appender
	store *store.Store
}

// NewUsageRecorder wraps next.
func NewUsageRecorder(next Appender, s *store.Store) *UsageRecorder {
	return &UsageRecorder{next: next, store: s}
}

// Append records the entry's usage sample, then delegates. A failed usage
// write never blocks the transcript append.
func (u *UsageRecorder) Append(sessionKey string, entry store.TranscriptEntry) error {
	if entry.Usage != nil && !entry.Usage.Empty() {
		if err := u.store.AddSessionUsage(sessionKey, *entry.Usage); err != nil {
			debug.LogKV("sessions", "usage accumulate failed", "session", sessionKey, "err", err)
		}
	}
	return u.next.Append(sessionKey, entry)
}
