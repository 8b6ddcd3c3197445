// Package shell wires the tab registry, view pool, filter engine,
// throttler, and session persister into one coordinator owning the
// browsing state.
//
// All mutations run on the shell's owner goroutine: callers either run
// there already (the Run loop) or hand work over via Dispatch. The
// subsystems keep internal locks, so read paths (snapshots, status)
// stay safe from any goroutine.
package shell

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/crynn/crynn/internal/application/port"
	"github.com/crynn/crynn/internal/config"
	"github.com/crynn/crynn/internal/domain/entity"
	"github.com/crynn/crynn/internal/filtering"
	"github.com/crynn/crynn/internal/logging"
	"github.com/crynn/crynn/internal/session"
	"github.com/crynn/crynn/internal/tabs"
	"github.com/crynn/crynn/internal/throttle"
	"github.com/crynn/crynn/internal/tracing"
	"github.com/crynn/crynn/internal/viewpool"
)

const taskQueueSize = 64

// Compile-time interface checks.
var (
	_ port.NavigationEvents = (*Shell)(nil)
	_ throttle.ViewResolver = (*Shell)(nil)
)

// Shell owns the browsing session: which tabs exist, which views are
// bound to them, what the filter engine applies, and when the session
// hits disk.
type Shell struct {
	cfg    *config.Config
	tracer *tracing.Tracer

	registry  *tabs.Registry
	pool      *viewpool.Pool
	engine    *filtering.Engine
	throttler *throttle.Throttler
	persister *session.Persister
	watcher   *filtering.Watcher

	tasks  chan func()
	done   chan struct{}
	closed atomic.Bool

	mu      sync.RWMutex
	handles map[entity.TabID]*viewpool.Handle
	spans   map[entity.TabID]*tracing.Span

	ctx     context.Context
	unsubs  []func()
	started bool
}

// New assembles a shell from its collaborators. The factory constructs
// web views, the store persists session snapshots; both come from the
// bootstrap so tests can substitute fakes.
func New(cfg *config.Config, factory port.WebViewFactory, store port.SnapshotStore, tracer *tracing.Tracer) *Shell {
	if cfg == nil {
		cfg = config.DefaultConfig()
	}
	if tracer == nil {
		tracer = tracing.Noop()
	}

	s := &Shell{
		cfg:     cfg,
		tracer:  tracer,
		tasks:   make(chan func(), taskQueueSize),
		done:    make(chan struct{}),
		handles: make(map[entity.TabID]*viewpool.Handle),
		spans:   make(map[entity.TabID]*tracing.Span),
		ctx:     context.Background(),
	}

	s.registry = tabs.NewRegistry(tabs.Config{})
	s.pool = viewpool.New(factory, tracer, viewpool.Config{MaxPoolSize: cfg.Pool.MaxSize})

	compiler := filtering.NewCompiler()
	s.engine = filtering.NewEngine(filtering.Config{
		Enabled:  cfg.Filtering.Enabled,
		Compile:  compiler.CompileSources,
		Dispatch: s.Dispatch,
		OnStatus: s.onFilterStatus,
	})

	s.throttler = throttle.New(s)
	s.persister = session.New(store, s.registry, time.Duration(cfg.Session.QuietIntervalMs)*time.Millisecond)

	return s
}

// Start restores the previous session, attaches the subsystems to the
// registry's event stream, and kicks off the initial filter compile.
func (s *Shell) Start(ctx context.Context) error {
	log := logging.FromContext(ctx)
	defer s.tracer.Begin("shell-start", "").End()

	if s.started {
		return nil
	}
	s.started = true
	s.ctx = ctx

	restored := false
	if s.cfg.Session.Restore {
		restored = s.persister.RestoreIfNeeded(ctx)
	}
	if !restored && s.cfg.Homepage != "" && s.cfg.Homepage != entity.DefaultURL {
		s.registry.SetURL(ctx, s.registry.ActiveID(), s.cfg.Homepage)
	}

	s.unsubs = append(s.unsubs,
		s.registry.Subscribe(func(ev tabs.Event) { s.onRegistryEvent(ctx, ev) }),
		s.throttler.Attach(ctx, s.registry),
		s.persister.Start(ctx),
	)

	if s.cfg.Pool.Prewarm {
		s.pool.PrewarmIfNeeded(ctx)
	}

	if files := s.cfg.Filtering.RuleFiles; len(files) > 0 {
		sources, err := filtering.ReadSources(ctx, files)
		if err != nil {
			log.Warn().Err(err).Msg("failed to read filter rule files")
		} else if _, err := s.engine.Compile(ctx, sources...); err != nil {
			log.Warn().Err(err).Msg("initial filter compile not started")
		}

		watcher, err := filtering.WatchRuleFiles(ctx, s.engine, files, 0)
		if err != nil {
			log.Warn().Err(err).Msg("filter rule watcher unavailable")
		} else {
			s.watcher = watcher
		}
	}

	s.ensureView(ctx, s.registry.ActiveID())

	log.Info().
		Int("tabs", s.registry.Count()).
		Bool("restored", restored).
		Msg("shell started")

	return nil
}

// Run drains the task queue until the context is canceled or the shell
// is closed. Compile results and other background completions re-enter
// the owner goroutine here.
func (s *Shell) Run(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-s.done:
			return nil
		case fn := <-s.tasks:
			fn()
		}
	}
}

// Dispatch queues fn onto the owner goroutine. Work dispatched after
// Close is dropped.
func (s *Shell) Dispatch(fn func()) {
	if s.closed.Load() {
		return
	}
	select {
	case s.tasks <- fn:
	case <-s.done:
	}
}

// Close flushes pending session state and tears down views. Safe to
// call once; subsequent calls are no-ops.
func (s *Shell) Close(ctx context.Context) {
	if s.closed.Swap(true) {
		return
	}
	close(s.done)

	for _, unsub := range s.unsubs {
		unsub()
	}
	s.unsubs = nil

	if s.watcher != nil {
		_ = s.watcher.Close()
	}

	s.persister.Stop(ctx)

	s.mu.Lock()
	handles := s.handles
	s.handles = make(map[entity.TabID]*viewpool.Handle)
	for _, sp := range s.spans {
		sp.End()
	}
	s.spans = make(map[entity.TabID]*tracing.Span)
	s.mu.Unlock()

	for _, h := range handles {
		s.pool.Release(ctx, h)
	}
	s.pool.Close(ctx)

	logging.FromContext(ctx).Info().Msg("shell closed")
}

// HandleFor implements throttle.ViewResolver.
func (s *Shell) HandleFor(id entity.TabID) *viewpool.Handle {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.handles[id]
}

func (s *Shell) onRegistryEvent(ctx context.Context, ev tabs.Event) {
	switch ev.Kind {
	case tabs.EventTabCreated:
		s.tracer.Event("tab-created", string(ev.TabID))
	case tabs.EventTabClosed:
		s.tracer.Event("tab-closed", string(ev.TabID))
		s.releaseView(ctx, ev.TabID)
	case tabs.EventActiveChanged:
		if prev := s.HandleFor(ev.Previous); prev != nil {
			prev.SetVisible(false)
		}
		s.ensureView(ctx, ev.TabID)
	}
}

// ensureView binds a pool view to the tab if it does not have one yet
// and brings it on screen.
func (s *Shell) ensureView(ctx context.Context, id entity.TabID) {
	if id == "" {
		return
	}
	log := logging.FromContext(ctx)

	if h := s.HandleFor(id); h != nil {
		h.SetVisible(true)
		return
	}

	tab := s.registry.Get(id)
	if tab == nil {
		return
	}

	h, err := s.pool.Acquire(ctx, s.engine.BindingFor(tab.URL))
	if err != nil {
		log.Error().Err(err).Str("tab", string(id)).Msg("failed to acquire view")
		return
	}

	s.mu.Lock()
	s.handles[id] = h
	s.mu.Unlock()

	h.SetVisible(true)
	if err := h.Navigate(ctx, tab.URL); err != nil {
		log.Warn().Err(err).Str("tab", string(id)).Str("url", tab.URL).Msg("navigation failed")
	}
}

// releaseView gives the tab's view back to the pool, exactly once.
func (s *Shell) releaseView(ctx context.Context, id entity.TabID) {
	s.mu.Lock()
	h, ok := s.handles[id]
	delete(s.handles, id)
	if sp := s.spans[id]; sp != nil {
		sp.End()
		delete(s.spans, id)
	}
	s.mu.Unlock()

	if ok {
		s.pool.Release(ctx, h)
	}
}

// onFilterStatus reapplies bindings when a new ruleset becomes ready or
// filtering is switched off, so live views track the engine's state.
func (s *Shell) onFilterStatus(st filtering.Status) {
	log := logging.FromContext(s.ctx)
	log.Debug().
		Str("state", string(st.State)).
		Uint64("request_id", st.RequestID).
		Str("fingerprint", st.Fingerprint).
		Msg("filter status changed")

	switch st.State {
	case filtering.StateReady, filtering.StateDisabled:
		s.rebindAll(s.ctx)
	case filtering.StateFailed:
		log.Warn().Str("error", st.Err).Msg("filter compile failed, previous ruleset stays active")
	}
}

func (s *Shell) rebindAll(ctx context.Context) {
	s.mu.RLock()
	handles := make(map[entity.TabID]*viewpool.Handle, len(s.handles))
	for id, h := range s.handles {
		handles[id] = h
	}
	s.mu.RUnlock()

	for id, h := range handles {
		tab := s.registry.Get(id)
		if tab == nil {
			continue
		}
		h.Apply(ctx, s.engine.BindingFor(tab.URL))
	}
}
