// Package viewpool manages reusable rendering-view handles.
//
// Constructing a native rendering context is expensive, so released views are
// cleared and kept on a bounded free list for the next acquire. Every acquire
// hands out a fresh Handle that owns the view until it is released; released
// handles go inert, which makes use-after-release and double-release
// structurally hard rather than merely discouraged.
package viewpool

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/crynn/crynn/internal/application/port"
	"github.com/crynn/crynn/internal/logging"
	"github.com/crynn/crynn/internal/tracing"
)

// ErrClosed is returned by Acquire after the pool has shut down.
var ErrClosed = errors.New("viewpool: pool closed")

// DefaultMaxPoolSize bounds the free list when no size is configured.
const DefaultMaxPoolSize = 4

// Binding attaches content-filtering state to a view before it is handed out.
type Binding interface {
	ApplyTo(ctx context.Context, view port.WebView)
}

// Config configures pool behavior.
type Config struct {
	// MaxPoolSize is the maximum number of free views kept for reuse.
	MaxPoolSize int
}

// Pool acquires, releases and prewarms rendering views.
type Pool struct {
	factory port.WebViewFactory
	tracer  *tracing.Tracer
	free    chan port.WebView
	maxSize int

	mu          sync.Mutex
	outstanding map[uint64]*Handle

	nextID atomic.Uint64
	closed atomic.Bool
}

// Handle is the caller's exclusive grant on one view.
// It is valid from Acquire until exactly one Release.
type Handle struct {
	id        uint64
	view      port.WebView
	released  atomic.Bool
	throttled atomic.Bool
}

// New creates a view pool backed by the given factory.
func New(factory port.WebViewFactory, tracer *tracing.Tracer, cfg Config) *Pool {
	if cfg.MaxPoolSize <= 0 {
		cfg.MaxPoolSize = DefaultMaxPoolSize
	}
	return &Pool{
		factory:     factory,
		tracer:      tracer,
		free:        make(chan port.WebView, cfg.MaxPoolSize),
		maxSize:     cfg.MaxPoolSize,
		outstanding: make(map[uint64]*Handle),
	}
}

// PrewarmIfNeeded constructs one hidden free view to absorb first-use
// construction latency. Idempotent: does nothing while a free view exists.
func (p *Pool) PrewarmIfNeeded(ctx context.Context) {
	log := logging.FromContext(ctx)

	if p.closed.Load() || len(p.free) > 0 {
		return
	}

	sp := p.tracer.Begin("view_prewarm", "")
	defer sp.End()

	view, err := p.factory.NewWebView(ctx)
	if err != nil {
		log.Warn().Err(err).Msg("failed to prewarm view")
		return
	}
	view.SetVisible(false)

	select {
	case p.free <- view:
		log.Debug().Msg("prewarmed view added to pool")
	default:
		view.Destroy()
	}
}

// Acquire returns a view handle, reusing a free view when one is available
// and constructing a new one otherwise. The filter binding is attached before
// the handle is returned. Construction failures are surfaced to the caller.
func (p *Pool) Acquire(ctx context.Context, binding Binding) (*Handle, error) {
	log := logging.FromContext(ctx)

	if p.closed.Load() {
		return nil, ErrClosed
	}

	var view port.WebView
	select {
	case view = <-p.free:
		// Reused views carry no state: content, rules and throttling were
		// cleared on release. Drop stale rules again before rebinding.
		view.RemoveContentRules()
		log.Debug().Msg("acquired view from pool")
	default:
		sp := p.tracer.Begin("view_construct", "")
		v, err := p.factory.NewWebView(ctx)
		sp.End()
		if err != nil {
			return nil, fmt.Errorf("construct web view: %w", err)
		}
		view = v
		log.Debug().Msg("pool empty, constructed new view")
	}

	if binding != nil {
		binding.ApplyTo(ctx, view)
	}

	h := &Handle{id: p.nextID.Add(1), view: view}
	p.mu.Lock()
	p.outstanding[h.id] = h
	p.mu.Unlock()
	return h, nil
}

// Release returns the handle's view to the pool, or destroys it when the free
// list is full. Must be called exactly once per acquired handle; extra calls
// are logged and ignored.
func (p *Pool) Release(ctx context.Context, h *Handle) {
	log := logging.FromContext(ctx)

	if h == nil {
		return
	}
	if h.released.Swap(true) {
		log.Warn().Uint64("handle", h.id).Msg("double release of view handle")
		return
	}

	p.mu.Lock()
	delete(p.outstanding, h.id)
	p.mu.Unlock()

	view := h.view
	h.view = nil

	view.StopLoading()
	view.ClearContent()
	view.RemoveContentRules()
	view.SetThrottled(false)
	view.SetVisible(false)

	if p.closed.Load() {
		view.Destroy()
		return
	}

	select {
	case p.free <- view:
		log.Debug().Uint64("handle", h.id).Msg("view returned to pool")
	default:
		log.Debug().Uint64("handle", h.id).Msg("pool full, destroying view")
		view.Destroy()
	}
}

// FreeSize returns the current free-list size.
func (p *Pool) FreeSize() int {
	return len(p.free)
}

// Outstanding returns the number of handles acquired and not yet released.
func (p *Pool) Outstanding() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.outstanding)
}

// Close shuts down the pool and destroys all free views.
// Handles still outstanding are destroyed when released.
func (p *Pool) Close(ctx context.Context) {
	if p.closed.Swap(true) {
		return
	}

	close(p.free)
	for view := range p.free {
		view.Destroy()
	}
	logging.FromContext(ctx).Debug().Msg("view pool closed")
}

// Navigate loads a URL in the handle's view. No-op error after release.
func (h *Handle) Navigate(ctx context.Context, url string) error {
	view := h.liveView()
	if view == nil {
		return errors.New("viewpool: navigate on released handle")
	}
	return view.LoadURL(ctx, url)
}

// SetThrottled toggles the view's background throttle flag.
// Idempotent: setting the current state is a no-op.
func (h *Handle) SetThrottled(throttled bool) {
	view := h.liveView()
	if view == nil {
		return
	}
	if h.throttled.Swap(throttled) == throttled {
		return
	}
	view.SetThrottled(throttled)
}

// Apply runs a binding against the handle's view. No-op after release.
func (h *Handle) Apply(ctx context.Context, binding Binding) {
	view := h.liveView()
	if view == nil || binding == nil {
		return
	}
	binding.ApplyTo(ctx, view)
}

// Throttled reports the handle's current throttle flag.
func (h *Handle) Throttled() bool {
	return h.throttled.Load()
}

// SetVisible shows or hides the view.
func (h *Handle) SetVisible(visible bool) {
	if view := h.liveView(); view != nil {
		view.SetVisible(visible)
	}
}

// Released reports whether the handle has been given back to the pool.
func (h *Handle) Released() bool {
	return h == nil || h.released.Load()
}

func (h *Handle) liveView() port.WebView {
	if h == nil || h.released.Load() {
		return nil
	}
	return h.view
}
