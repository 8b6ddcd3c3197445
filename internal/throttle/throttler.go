// Package throttle reduces background-tab resource usage.
//
// The throttler is an observer of active-tab changes, not an owner of view
// handles: it demotes the previously active tab's view to throttled and
// promotes the newly active one, resolving tabs to views through a narrow
// interface so it never reaches into the pool or the registry.
package throttle

import (
	"context"

	"github.com/crynn/crynn/internal/domain/entity"
	"github.com/crynn/crynn/internal/logging"
	"github.com/crynn/crynn/internal/tabs"
	"github.com/crynn/crynn/internal/viewpool"
)

// ViewResolver maps a tab to its currently bound view handle.
// Returns nil for tabs with no bound view.
type ViewResolver interface {
	HandleFor(id entity.TabID) *viewpool.Handle
}

// Throttler toggles the per-view throttle flag as tabs move in and out of
// the active position.
type Throttler struct {
	resolver ViewResolver
}

// New creates a throttler.
func New(resolver ViewResolver) *Throttler {
	return &Throttler{resolver: resolver}
}

// Attach subscribes the throttler to a registry's active-tab changes and
// returns the unsubscribe func.
func (t *Throttler) Attach(ctx context.Context, registry *tabs.Registry) func() {
	return registry.Subscribe(func(ev tabs.Event) {
		if ev.Kind != tabs.EventActiveChanged {
			return
		}
		t.OnActiveChanged(ctx, ev.Previous, ev.TabID)
	})
}

// OnActiveChanged demotes the previous tab's view and promotes the current
// one. Handle.SetThrottled is idempotent, so redundant notifications cause
// no engine side effects.
func (t *Throttler) OnActiveChanged(ctx context.Context, previous, current entity.TabID) {
	log := logging.FromContext(ctx)

	if h := t.resolver.HandleFor(previous); h != nil {
		h.SetThrottled(true)
		log.Trace().Str("tab_id", string(previous)).Msg("view throttled")
	}
	if h := t.resolver.HandleFor(current); h != nil {
		h.SetThrottled(false)
		log.Trace().Str("tab_id", string(current)).Msg("view unthrottled")
	}
}
