// Package events defines the in-process lifecycle event stream shared by the
// agent runtime and the orchestrator.
package events

import (
	"sort"
	"sync"
)

// StreamLifecycle is the stream name for run phase-change events.
const StreamLifecycle = "lifecycle"

// Phase is a run lifecycle phase.
type Phase string

const (
	PhaseStart Phase = "start"
	PhaseEnd   Phase = "end"
	PhaseError Phase = "error"
)

// Event reports a single run phase change.
type Event struct {
	RunID  string
	Stream string
	Phase  Phase
	Data   map[string]any
}

// Lifecycle builds a lifecycle event for a run.
func Lifecycle(runID string, phase Phase) Event {
	return Event{RunID: runID, Stream: StreamLifecycle, Phase: phase}
}

// Bus fans events out to subscribers. Publish calls each subscriber
// synchronously in subscription order; subscribers that need to block must
// hand off to their own goroutine.
type Bus struct {
	mu   sync.Mutex
	next int
	subs map[int]func(Event)
}

// NewBus creates an empty event bus.
func NewBus() *Bus {
	return &Bus{subs: make(map[int]func(Event))}
}

// Subscribe registers fn and returns an unsubscribe function. Unsubscribing
// twice is harmless.
func (b *Bus) Subscribe(fn func(Event)) func() {
	b.mu.Lock()
	id := b.next
	b.next++
	b.subs[id] = fn
	b.mu.Unlock()

	return func() {
		b.mu.Lock()
		delete(b.subs, id)
		b.mu.Unlock()
	}
}

// Publish delivers ev to every current subscriber.
func (b *Bus) Publish(ev Event) {
	b.mu.Lock()
	fns := make([]func(Event), 0, len(b.subs))
	ids := make([]int, 0, len(b.subs))
	for id := range b.subs {
		ids = append(ids, id)
	}
	// Map order is random; deliver in subscription order so announce races
	// stay reproducible.
	sort.Ints(ids)
	for _, id := range ids {
		fns = append(fns, b.subs[id])
	}
	b.mu.Unlock()

	for _, fn := range fns {
		fn(ev)
	}
}
