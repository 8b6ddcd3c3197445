// Package session persists and restores tab-registry snapshots.
package session

import (
	"context"
	"sync"
	"time"

	"github.com/crynn/crynn/internal/application/port"
	"github.com/crynn/crynn/internal/logging"
	"github.com/crynn/crynn/internal/tabs"
)

// DefaultQuietInterval is the debounce quiet period before a write.
const DefaultQuietInterval = 600 * time.Millisecond

// Persister debounces registry mutations into durable snapshot writes.
//
// Every mutation cancels the previously scheduled write and schedules a
// fresh one, so a burst of edits collapses to exactly one write after the
// burst quiets. The write itself runs on the timer goroutine against the
// snapshot store; a failed write keeps the dirty flag set so the next
// mutation retries instead of surfacing a fatal error.
type Persister struct {
	store    port.SnapshotStore
	registry *tabs.Registry
	interval time.Duration

	mu      sync.Mutex
	timer   *time.Timer
	dirty   bool
	ctx     context.Context
	cancel  context.CancelFunc
	started bool
}

// New creates a persister for the given registry and store.
// A non-positive interval falls back to DefaultQuietInterval.
func New(store port.SnapshotStore, registry *tabs.Registry, interval time.Duration) *Persister {
	if interval <= 0 {
		interval = DefaultQuietInterval
	}
	return &Persister{
		store:    store,
		registry: registry,
		interval: interval,
	}
}

// RestoreIfNeeded loads the last snapshot into the registry.
// Missing or corrupt snapshots are not errors: the registry keeps its
// default single blank tab and startup proceeds.
func (p *Persister) RestoreIfNeeded(ctx context.Context) bool {
	log := logging.FromContext(ctx)

	state, err := p.store.Load(ctx)
	if err != nil {
		log.Warn().Err(err).Msg("failed to load session snapshot, starting fresh")
		return false
	}
	if state == nil {
		log.Debug().Msg("no session snapshot to restore")
		return false
	}
	if !p.registry.RestoreFromSnapshot(state) {
		log.Warn().Msg("session snapshot was empty, starting fresh")
		return false
	}

	log.Info().
		Int("tabs", len(state.Tabs)).
		Time("saved_at", state.SavedAt).
		Msg("session restored")
	return true
}

// Start subscribes to registry mutations and begins scheduling writes.
// Returns the unsubscribe func.
func (p *Persister) Start(ctx context.Context) func() {
	p.mu.Lock()
	p.ctx, p.cancel = context.WithCancel(ctx)
	p.started = true
	p.mu.Unlock()

	logging.FromContext(ctx).Debug().
		Dur("quiet_interval", p.interval).
		Msg("session persister started")

	return p.registry.Subscribe(func(tabs.Event) { p.MarkDirty() })
}

// MarkDirty notes that registry state changed and reschedules the debounced
// write: the pending timer (if any) is canceled and a fresh quiet interval
// begins.
func (p *Persister) MarkDirty() {
	p.mu.Lock()
	defer p.mu.Unlock()

	if !p.started {
		return
	}
	p.dirty = true

	if p.timer != nil {
		p.timer.Stop()
	}
	p.timer = time.AfterFunc(p.interval, func() {
		p.mu.Lock()
		ctx := p.ctx
		p.mu.Unlock()
		if ctx == nil || ctx.Err() != nil {
			return
		}
		p.saveSnapshot(ctx)
	})
}

// Flush writes any pending snapshot synchronously. Called on shutdown so a
// pending debounced write is never dropped.
func (p *Persister) Flush(ctx context.Context) {
	p.mu.Lock()
	if p.timer != nil {
		p.timer.Stop()
		p.timer = nil
	}
	dirty := p.dirty
	p.mu.Unlock()

	if dirty {
		p.saveSnapshot(ctx)
	}
}

// Stop flushes pending state and detaches the persister.
func (p *Persister) Stop(ctx context.Context) {
	p.Flush(ctx)

	p.mu.Lock()
	if p.cancel != nil {
		p.cancel()
	}
	p.started = false
	p.mu.Unlock()
}

func (p *Persister) saveSnapshot(ctx context.Context) {
	log := logging.FromContext(ctx)

	p.mu.Lock()
	p.dirty = false
	p.mu.Unlock()

	snap := p.registry.Snapshot()
	if err := p.store.Save(ctx, snap); err != nil {
		// Keep the state dirty so the next mutation retries the write.
		p.mu.Lock()
		p.dirty = true
		p.mu.Unlock()
		log.Error().Err(err).Msg("failed to save session snapshot")
		return
	}

	log.Debug().
		Int("tabs", len(snap.Tabs)).
		Msg("session snapshot saved")
}
