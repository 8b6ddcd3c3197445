// Package tracing emits lifecycle and timing spans for the browser core.
//
// Spans are paired begin/end records (app launch, per-tab page loads) and
// single events (tab created/closed). A nil Tracer or a Tracer without a sink
// degrades to a no-op; nothing in this package can fail or panic.
package tracing

import (
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"
)

// Tracer writes spans to a zerolog sink.
// Thread-safe for use across goroutines.
type Tracer struct {
	logger  *zerolog.Logger
	enabled bool
	t0      time.Time
	seq     atomic.Uint64
}

// Span is one in-flight begin/end pair.
type Span struct {
	tracer *Tracer
	id     uint64
	name   string
	tab    string
	start  time.Time
	done   atomic.Bool
}

// New creates a tracer backed by the given sink.
// A nil sink yields a disabled tracer.
func New(logger *zerolog.Logger) *Tracer {
	return &Tracer{
		logger:  logger,
		enabled: logger != nil,
		t0:      time.Now(),
	}
}

// Noop returns a tracer that records nothing.
func Noop() *Tracer {
	return &Tracer{}
}

// Enabled reports whether spans are being recorded.
func (t *Tracer) Enabled() bool {
	return t != nil && t.enabled
}

// Begin opens a span. tab may be empty for process-wide spans.
// The returned span is never nil; End on it is always safe.
func (t *Tracer) Begin(name, tab string) *Span {
	sp := &Span{name: name, tab: tab, start: time.Now()}
	if !t.Enabled() {
		return sp
	}
	sp.tracer = t
	sp.id = t.seq.Add(1)

	ev := t.logger.Debug().
		Str("span", name).
		Uint64("span_id", sp.id).
		Int64("t_ms", time.Since(t.t0).Milliseconds())
	if tab != "" {
		ev = ev.Str("tab", tab)
	}
	ev.Msgf("trace: %s begin", name)
	return sp
}

// End closes the span and records its duration. Idempotent.
func (sp *Span) End() {
	if sp == nil || sp.tracer == nil || sp.done.Swap(true) {
		return
	}
	t := sp.tracer
	ev := t.logger.Debug().
		Str("span", sp.name).
		Uint64("span_id", sp.id).
		Int64("dur_ms", time.Since(sp.start).Milliseconds())
	if sp.tab != "" {
		ev = ev.Str("tab", sp.tab)
	}
	ev.Msgf("trace: %s end (+%dms)", sp.name, time.Since(sp.start).Milliseconds())
}

// Event records a single instantaneous event.
func (t *Tracer) Event(name, tab string) {
	if !t.Enabled() {
		return
	}
	ev := t.logger.Debug().
		Str("event", name).
		Int64("t_ms", time.Since(t.t0).Milliseconds())
	if tab != "" {
		ev = ev.Str("tab", tab)
	}
	ev.Msgf("trace: %s", name)
}
