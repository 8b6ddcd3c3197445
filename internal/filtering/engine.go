package filtering

import (
	"context"
	"net/url"
	"sync"

	"github.com/crynn/crynn/internal/application/port"
	"github.com/crynn/crynn/internal/logging"
)

// State describes the ruleset lifecycle.
type State string

const (
	StateDisabled  State = "disabled"
	StateCompiling State = "compiling"
	StateReady     State = "ready"
	StateFailed    State = "failed"
)

// Status is a point-in-time view of the engine, delivered to the status
// callback on every transition.
type Status struct {
	State       State
	RequestID   uint64
	Fingerprint string
	RuleCount   int
	Err         string
}

// CompileFunc compiles rule sources into a ruleset.
type CompileFunc func(ctx context.Context, sources ...[]byte) (*Ruleset, error)

// Config configures an Engine.
type Config struct {
	// Enabled is the initial global blocking flag.
	Enabled bool
	// Compile overrides the default compiler. Used by tests to control
	// completion order.
	Compile CompileFunc
	// Dispatch delivers compile results back onto the owner goroutine.
	// Nil runs them inline on the compile goroutine.
	Dispatch func(func())
	// OnStatus is invoked on every state transition.
	OnStatus func(Status)
}

// Engine compiles and caches blocking rulesets and tracks per-host
// exceptions.
//
// Compilation runs off the owner thread; only the most recently requested
// compile's result is applied, results from superseded requests are discarded
// when they arrive. A previously Ready ruleset stays authoritative through
// recompiles and failures, so filtering never silently turns itself off while
// an update is in flight.
type Engine struct {
	exceptions *HostExceptionSet

	compileFn CompileFunc
	dispatch  func(func())
	onStatus  func(Status)

	mu           sync.Mutex
	enabled      bool
	compileState State // zero value until the first compile
	latest       uint64
	ready        *Ruleset
	lastErr      error
	lastSources  [][]byte
}

// NewEngine creates a filter engine.
func NewEngine(cfg Config) *Engine {
	e := &Engine{
		exceptions: NewHostExceptionSet(),
		compileFn:  cfg.Compile,
		dispatch:   cfg.Dispatch,
		onStatus:   cfg.OnStatus,
		enabled:    cfg.Enabled,
	}
	if e.compileFn == nil {
		e.compileFn = NewCompiler().CompileSources
	}
	if e.dispatch == nil {
		e.dispatch = func(fn func()) { fn() }
	}
	return e
}

// SetEnabled toggles the global blocking flag. Turning blocking on triggers a
// recompile of the last known sources unless a ruleset is already Ready.
func (e *Engine) SetEnabled(ctx context.Context, enabled bool) {
	e.mu.Lock()
	e.enabled = enabled
	needCompile := enabled && e.compileState != StateReady && len(e.lastSources) > 0
	sources := e.lastSources
	e.mu.Unlock()

	logging.FromContext(ctx).Info().Bool("enabled", enabled).Msg("content filtering toggled")
	e.notify()

	if needCompile {
		_, _ = e.Compile(ctx, sources...)
	}
}

// Enabled returns the global blocking flag.
func (e *Engine) Enabled() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.enabled
}

// Compile starts an asynchronous compile of the given rule sources and
// returns its request id. Later requests supersede earlier ones
// (last-writer-wins, no queueing). With no sources, the previously supplied
// ones are reused.
func (e *Engine) Compile(ctx context.Context, sources ...[]byte) (uint64, error) {
	e.mu.Lock()
	if len(sources) == 0 {
		sources = e.lastSources
	}
	if len(sources) == 0 {
		e.mu.Unlock()
		return 0, ErrNoSources
	}
	e.lastSources = sources
	e.latest++
	id := e.latest
	e.compileState = StateCompiling
	e.mu.Unlock()

	logging.FromContext(ctx).Debug().
		Uint64("request_id", id).
		Int("sources", len(sources)).
		Msg("ruleset compile requested")
	e.notify()

	go func() {
		rs, err := e.compileFn(ctx, sources...)
		e.dispatch(func() { e.applyResult(ctx, id, rs, err) })
	}()
	return id, nil
}

// applyResult applies a finished compile if it is still the latest request.
func (e *Engine) applyResult(ctx context.Context, id uint64, rs *Ruleset, err error) {
	log := logging.FromContext(ctx)

	e.mu.Lock()
	if id != e.latest {
		e.mu.Unlock()
		log.Debug().Uint64("request_id", id).Msg("discarding superseded compile result")
		return
	}

	if err != nil {
		e.compileState = StateFailed
		e.lastErr = err
		keeping := e.ready != nil
		e.mu.Unlock()

		log.Warn().Err(err).
			Uint64("request_id", id).
			Bool("previous_ruleset_kept", keeping).
			Msg("ruleset compile failed")
		e.notify()
		return
	}

	e.compileState = StateReady
	e.ready = rs
	e.lastErr = nil
	e.mu.Unlock()

	log.Info().
		Uint64("request_id", id).
		Str("fingerprint", rs.Fingerprint).
		Int("rules", rs.Len()).
		Msg("ruleset active")
	e.notify()
}

// CurrentRuleset returns the latest Ready ruleset. It returns nil while
// disabled, and nil when no compile has ever succeeded.
func (e *Engine) CurrentRuleset() *Ruleset {
	e.mu.Lock()
	defer e.mu.Unlock()
	if !e.enabled {
		return nil
	}
	return e.ready
}

// ToggleHost flips the per-host exception for host and reports whether the
// host is now exempted.
func (e *Engine) ToggleHost(ctx context.Context, host string) bool {
	exempt := e.exceptions.Toggle(host)
	logging.FromContext(ctx).Debug().
		Str("host", NormalizeHost(host)).
		Bool("exempt", exempt).
		Msg("host exception toggled")
	return exempt
}

// IsBlockingEnabled reports whether blocking applies to the given host.
func (e *Engine) IsBlockingEnabled(host string) bool {
	e.mu.Lock()
	enabled := e.enabled
	e.mu.Unlock()
	return enabled && !e.exceptions.Contains(host)
}

// Exceptions exposes the host exception set.
func (e *Engine) Exceptions() *HostExceptionSet {
	return e.exceptions
}

// Status returns the engine's current lifecycle status.
func (e *Engine) Status() Status {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.statusLocked()
}

func (e *Engine) statusLocked() Status {
	st := Status{RequestID: e.latest}
	switch {
	case !e.enabled:
		st.State = StateDisabled
	case e.compileState == "":
		st.State = StateDisabled
	default:
		st.State = e.compileState
	}
	if e.ready != nil {
		st.Fingerprint = e.ready.Fingerprint
		st.RuleCount = e.ready.Len()
	}
	if e.lastErr != nil {
		st.Err = e.lastErr.Error()
	}
	return st
}

func (e *Engine) notify() {
	if e.onStatus == nil {
		return
	}
	e.mu.Lock()
	st := e.statusLocked()
	e.mu.Unlock()
	e.onStatus(st)
}

// BindingFor returns the filter binding to attach to a view that is about to
// navigate to pageURL. The binding resolves the ruleset and host exception at
// apply time, so it always reflects the engine's latest Ready state.
func (e *Engine) BindingFor(pageURL string) *ViewBinding {
	return &ViewBinding{engine: e, host: HostOf(pageURL)}
}

// ViewBinding attaches the engine's current ruleset to a view, subject to
// host exceptions and the global flag.
type ViewBinding struct {
	engine *Engine
	host   string
}

// ApplyTo implements the view pool's binding contract.
func (b *ViewBinding) ApplyTo(ctx context.Context, view port.WebView) {
	log := logging.FromContext(ctx)

	if !b.engine.IsBlockingEnabled(b.host) {
		view.RemoveContentRules()
		log.Debug().Str("host", b.host).Msg("filtering not applied to view")
		return
	}

	rs := b.engine.CurrentRuleset()
	if rs == nil {
		log.Debug().Str("host", b.host).Msg("no ready ruleset to apply")
		return
	}
	view.ApplyContentRules(rs.Fingerprint, rs.JSON())
	log.Debug().
		Str("host", b.host).
		Str("fingerprint", rs.Fingerprint).
		Msg("content filter applied to view")
}

// HostOf extracts the lowercased host from a URL, tolerating bare hosts.
func HostOf(raw string) string {
	if raw == "" {
		return ""
	}
	if u, err := url.Parse(raw); err == nil && u.Host != "" {
		return NormalizeHost(u.Hostname())
	}
	return NormalizeHost(raw)
}
