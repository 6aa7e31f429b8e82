package orchestrator

import (
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/moxieworks/moxie/internal/config"
	"github.com/moxieworks/moxie/internal/debug"
	"github.com/moxieworks/moxie/internal/events"
	"github.com/moxieworks/moxie/internal/store"
)

// Options configures an Orchestrator.
type Options struct {
	Store     *store.Store
	Runtime   Runtime
	Messenger Messenger
	Sessions  SessionStore
	Bus       *events.Bus
	Config    *config.GlobalConfig

	// Now overrides the clock in tests.
	Now func() time.Time
}

// Orchestrator owns the run registry, the lifecycle listener subscription,
// the sweeper timer, and the resume guard. Build one per process and pass it
// by reference to the tool layer; it keeps no package-level state.
type Orchestrator struct {
	registry  *Registry
	runtime   Runtime
	messenger Messenger
	sessions  SessionStore
	bus       *events.Bus
	cfg       *config.GlobalConfig
	now       func() time.Time

	unsubscribe func()

	sweepMu      sync.Mutex
	sweepStop    chan struct{}
	sweepRunning bool

	resumeOnce sync.Once
	resumedMu  sync.Mutex
	resumed    map[string]bool
}

// New builds an Orchestrator and subscribes its lifecycle listener to the
// event bus.
func New(opts Options) *Orchestrator {
	o := &Orchestrator{
		registry:  NewRegistry(opts.Store),
		runtime:   opts.Runtime,
		messenger: opts.Messenger,
		sessions:  opts.Sessions,
		bus:       opts.Bus,
		cfg:       opts.Config,
		now:       opts.Now,
		resumed:   make(map[string]bool),
	}
	if o.cfg == nil {
		o.cfg = &config.GlobalConfig{}
	}
	if o.now == nil {
		o.now = func() time.Time { return time.Now().UTC() }
	}
	if o.bus != nil {
		o.unsubscribe = o.bus.Subscribe(o.handleEvent)
	}
	return o
}

// Close detaches the listener and stops the sweeper. In-flight announce
// flows are not interrupted.
func (o *Orchestrator) Close() {
	if o.unsubscribe != nil {
		o.unsubscribe()
		o.unsubscribe = nil
	}
	o.stopSweeper()
}

// Registry exposes the run registry for inspection surfaces (runs CLI,
// status).
func (o *Orchestrator) Registry() *Registry {
	return o.registry
}

func (o *Orchestrator) subCfg() *config.SubagentsConfig { return &o.cfg.Subagents }
func (o *Orchestrator) chatCfg() *config.ChatConfig     { return &o.cfg.Chat }

// skipSentinel reports whether a drafted reply should suppress delivery.
func (o *Orchestrator) skipSentinel(reply string) bool {
	return strings.TrimSpace(reply) == o.chatCfg().EffectiveSkipSentinel()
}

// newRunID returns a short random run identifier.
func newRunID() string {
	return uuid.NewString()[:8]
}

// registerRun stores the record, persists, and arms the sweeper when the
// record carries an archive deadline.
func (o *Orchestrator) registerRun(rec *store.RunRecord) {
	o.registry.Register(rec)
	debug.LogKV("orchestrator", "run registered",
		"run_id", rec.RunID,
		"child", rec.ChildSessionKey,
		"requester", rec.RequesterSessionKey,
		"cleanup", string(rec.Cleanup),
	)
	if !rec.ArchiveAt.IsZero() {
		o.ensureSweeper()
	}
}
