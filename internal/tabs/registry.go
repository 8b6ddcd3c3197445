// Package tabs owns the ordered tab list and active-tab selection.
//
// The registry is the single owner of Tab entities. UI-facing operations
// mutate it synchronously; observers (session persistence, throttling, view
// binding) subscribe to its change-event stream instead of being reached into.
package tabs

import (
	"context"
	"sync"

	"github.com/google/uuid"

	"github.com/crynn/crynn/internal/domain/entity"
	"github.com/crynn/crynn/internal/logging"
)

// DefaultMaxRecentlyClosed bounds the reopen stack.
const DefaultMaxRecentlyClosed = 10

// EventKind discriminates registry change events.
type EventKind string

const (
	EventTabCreated    EventKind = "tab_created"
	EventTabClosed     EventKind = "tab_closed"
	EventTabUpdated    EventKind = "tab_updated"
	EventActiveChanged EventKind = "active_changed"
)

// Event is one registry change notification.
// Previous is set only for EventActiveChanged.
type Event struct {
	Kind     EventKind
	TabID    entity.TabID
	Previous entity.TabID
}

// Config configures a Registry.
type Config struct {
	// GenerateID produces tab ids. Defaults to random UUIDs.
	GenerateID func() entity.TabID
	// MaxRecentlyClosed bounds the reopen stack. Defaults to 10.
	MaxRecentlyClosed int
}

// Registry is the ordered tab list plus active-tab selection.
//
// Mutations are expected on the owner goroutine; the internal mutex exists so
// background readers (the persister taking a snapshot) stay safe. Operations
// on unknown ids are silent no-ops. The list is never observably empty: a
// default blank tab is auto-created whenever the last tab goes away.
type Registry struct {
	mu       sync.Mutex
	tabs     []*entity.Tab
	activeID entity.TabID
	closed   []*entity.Tab // recently closed, most recent last
	genID    func() entity.TabID
	maxStack int

	subMu   sync.Mutex
	subs    map[int]func(Event)
	nextSub int
}

// NewRegistry creates a registry seeded with one default blank tab.
func NewRegistry(cfg Config) *Registry {
	r := &Registry{
		genID:    cfg.GenerateID,
		maxStack: cfg.MaxRecentlyClosed,
		subs:     make(map[int]func(Event)),
	}
	if r.genID == nil {
		r.genID = func() entity.TabID { return entity.TabID(uuid.NewString()) }
	}
	if r.maxStack <= 0 {
		r.maxStack = DefaultMaxRecentlyClosed
	}

	tab := entity.NewTab(r.genID(), "")
	r.tabs = []*entity.Tab{tab}
	r.activeID = tab.ID
	return r
}

// Subscribe registers a change handler and returns an unsubscribe func.
// Handlers run synchronously on the mutating goroutine, after the mutation
// has been applied.
func (r *Registry) Subscribe(fn func(Event)) func() {
	r.subMu.Lock()
	id := r.nextSub
	r.nextSub++
	r.subs[id] = fn
	r.subMu.Unlock()

	return func() {
		r.subMu.Lock()
		delete(r.subs, id)
		r.subMu.Unlock()
	}
}

func (r *Registry) emit(events []Event) {
	if len(events) == 0 {
		return
	}
	r.subMu.Lock()
	handlers := make([]func(Event), 0, len(r.subs))
	for _, fn := range r.subs {
		handlers = append(handlers, fn)
	}
	r.subMu.Unlock()

	for _, ev := range events {
		for _, fn := range handlers {
			fn(ev)
		}
	}
}

// NewTab appends a tab with the given or default URL.
func (r *Registry) NewTab(ctx context.Context, url string, activate bool) entity.TabID {
	r.mu.Lock()
	tab := entity.NewTab(r.genID(), url)
	r.tabs = append(r.tabs, tab)

	events := []Event{{Kind: EventTabCreated, TabID: tab.ID}}
	if activate && r.activeID != tab.ID {
		prev := r.activeID
		r.activeID = tab.ID
		events = append(events, Event{Kind: EventActiveChanged, TabID: tab.ID, Previous: prev})
	}
	r.mu.Unlock()

	logging.FromContext(ctx).Debug().
		Str("tab_id", string(tab.ID)).
		Str("url", tab.URL).
		Bool("activate", activate).
		Msg("tab created")

	r.emit(events)
	return tab.ID
}

// CloseTab removes the tab, recording it on the reopen stack first.
// If the closed tab was active, the replacement is the tab now at the same
// index, else the new last tab, else a freshly created blank tab.
func (r *Registry) CloseTab(ctx context.Context, id entity.TabID) {
	r.mu.Lock()
	idx := r.indexOfLocked(id)
	if idx < 0 {
		r.mu.Unlock()
		return
	}

	removed := r.tabs[idx]
	r.pushClosedLocked(removed)
	r.tabs = append(r.tabs[:idx], r.tabs[idx+1:]...)

	events := []Event{{Kind: EventTabClosed, TabID: id}}

	if r.activeID == id {
		var replacement *entity.Tab
		switch {
		case idx < len(r.tabs):
			replacement = r.tabs[idx]
		case len(r.tabs) > 0:
			replacement = r.tabs[len(r.tabs)-1]
		default:
			replacement = entity.NewTab(r.genID(), "")
			r.tabs = append(r.tabs, replacement)
			events = append(events, Event{Kind: EventTabCreated, TabID: replacement.ID})
		}
		r.activeID = replacement.ID
		events = append(events, Event{Kind: EventActiveChanged, TabID: replacement.ID, Previous: id})
	}
	r.mu.Unlock()

	logging.FromContext(ctx).Debug().
		Str("tab_id", string(id)).
		Msg("tab closed")

	r.emit(events)
}

// ReopenClosed pops the most recently closed tab and reinserts it at the end
// of the list, activating it. Returns false when the stack is empty.
func (r *Registry) ReopenClosed(ctx context.Context) (entity.TabID, bool) {
	r.mu.Lock()
	if len(r.closed) == 0 {
		r.mu.Unlock()
		return "", false
	}

	tab := r.closed[len(r.closed)-1]
	r.closed = r.closed[:len(r.closed)-1]
	r.tabs = append(r.tabs, tab)

	events := []Event{{Kind: EventTabCreated, TabID: tab.ID}}
	if r.activeID != tab.ID {
		prev := r.activeID
		r.activeID = tab.ID
		events = append(events, Event{Kind: EventActiveChanged, TabID: tab.ID, Previous: prev})
	}
	r.mu.Unlock()

	logging.FromContext(ctx).Debug().
		Str("tab_id", string(tab.ID)).
		Str("url", tab.URL).
		Msg("tab reopened")

	r.emit(events)
	return tab.ID, true
}

// DuplicateTab creates a tab with the source's URL and pinned state,
// inserted immediately after the source. Returns false for unknown ids.
func (r *Registry) DuplicateTab(ctx context.Context, id entity.TabID) (entity.TabID, bool) {
	r.mu.Lock()
	idx := r.indexOfLocked(id)
	if idx < 0 {
		r.mu.Unlock()
		return "", false
	}

	src := r.tabs[idx]
	dup := entity.NewTab(r.genID(), src.URL)
	dup.Pinned = src.Pinned

	r.tabs = append(r.tabs, nil)
	copy(r.tabs[idx+2:], r.tabs[idx+1:])
	r.tabs[idx+1] = dup
	r.mu.Unlock()

	logging.FromContext(ctx).Debug().
		Str("tab_id", string(dup.ID)).
		Str("source", string(id)).
		Msg("tab duplicated")

	r.emit([]Event{{Kind: EventTabCreated, TabID: dup.ID}})
	return dup.ID, true
}

// SetActive selects the given tab. No-op for unknown ids.
// Emits ActiveChanged exactly once and never when the selection is unchanged.
func (r *Registry) SetActive(ctx context.Context, id entity.TabID) {
	r.mu.Lock()
	if r.indexOfLocked(id) < 0 || r.activeID == id {
		r.mu.Unlock()
		return
	}
	prev := r.activeID
	r.activeID = id
	r.mu.Unlock()

	logging.FromContext(ctx).Debug().
		Str("tab_id", string(id)).
		Str("previous", string(prev)).
		Msg("active tab changed")

	r.emit([]Event{{Kind: EventActiveChanged, TabID: id, Previous: prev}})
}

// NextTab activates the tab after the current one, wrapping around.
func (r *Registry) NextTab(ctx context.Context) {
	r.cycle(ctx, 1)
}

// PreviousTab activates the tab before the current one, wrapping around.
func (r *Registry) PreviousTab(ctx context.Context) {
	r.cycle(ctx, -1)
}

func (r *Registry) cycle(ctx context.Context, dir int) {
	r.mu.Lock()
	if len(r.tabs) < 2 {
		r.mu.Unlock()
		return
	}
	idx := r.indexOfLocked(r.activeID)
	if idx < 0 {
		idx = 0
	}
	next := (idx + dir + len(r.tabs)) % len(r.tabs)
	id := r.tabs[next].ID
	r.mu.Unlock()

	r.SetActive(ctx, id)
}

// SetURL updates a tab's URL.
func (r *Registry) SetURL(ctx context.Context, id entity.TabID, url string) {
	r.update(ctx, id, func(t *entity.Tab) { t.URL = url })
}

// SetTitle updates a tab's title.
func (r *Registry) SetTitle(ctx context.Context, id entity.TabID, title string) {
	r.update(ctx, id, func(t *entity.Tab) { t.Title = title })
}

// TogglePinned flips a tab's pinned flag.
func (r *Registry) TogglePinned(ctx context.Context, id entity.TabID) {
	r.update(ctx, id, func(t *entity.Tab) { t.Pinned = !t.Pinned })
}

// ToggleReaderMode flips a tab's reader-mode flag.
func (r *Registry) ToggleReaderMode(ctx context.Context, id entity.TabID) {
	r.update(ctx, id, func(t *entity.Tab) { t.ReaderMode = !t.ReaderMode })
}

// ToggleMuted flips a tab's muted flag.
func (r *Registry) ToggleMuted(ctx context.Context, id entity.TabID) {
	r.update(ctx, id, func(t *entity.Tab) { t.Muted = !t.Muted })
}

func (r *Registry) update(ctx context.Context, id entity.TabID, fn func(*entity.Tab)) {
	r.mu.Lock()
	idx := r.indexOfLocked(id)
	if idx < 0 {
		r.mu.Unlock()
		return
	}
	fn(r.tabs[idx])
	r.mu.Unlock()

	logging.FromContext(ctx).Trace().
		Str("tab_id", string(id)).
		Msg("tab updated")

	r.emit([]Event{{Kind: EventTabUpdated, TabID: id}})
}

// Snapshot returns a point-in-time copy of the registry state.
// Safe to call from any goroutine.
func (r *Registry) Snapshot() *entity.SessionState {
	r.mu.Lock()
	defer r.mu.Unlock()
	return entity.SnapshotFromTabs(r.tabs, r.activeID)
}

// RestoreFromSnapshot replaces the tab list and active id from a persisted
// snapshot. Emits no events; callers subscribe after startup restore.
// An empty snapshot leaves the registry untouched.
func (r *Registry) RestoreFromSnapshot(state *entity.SessionState) bool {
	restored, activeID := state.Restore()
	if len(restored) == 0 {
		return false
	}

	r.mu.Lock()
	r.tabs = restored
	r.activeID = activeID
	r.mu.Unlock()
	return true
}

// Tabs returns copies of all tabs in display order.
func (r *Registry) Tabs() []*entity.Tab {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]*entity.Tab, 0, len(r.tabs))
	for _, t := range r.tabs {
		out = append(out, t.Clone())
	}
	return out
}

// Get returns a copy of the tab with the given id, or nil.
func (r *Registry) Get(id entity.TabID) *entity.Tab {
	r.mu.Lock()
	defer r.mu.Unlock()
	idx := r.indexOfLocked(id)
	if idx < 0 {
		return nil
	}
	return r.tabs[idx].Clone()
}

// ActiveID returns the active tab's id.
func (r *Registry) ActiveID() entity.TabID {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.activeID
}

// ActiveTab returns a copy of the active tab.
func (r *Registry) ActiveTab() *entity.Tab {
	return r.Get(r.ActiveID())
}

// Count returns the number of open tabs.
func (r *Registry) Count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.tabs)
}

// RecentlyClosedCount returns the reopen stack depth.
func (r *Registry) RecentlyClosedCount() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.closed)
}

func (r *Registry) indexOfLocked(id entity.TabID) int {
	for i, t := range r.tabs {
		if t.ID == id {
			return i
		}
	}
	return -1
}

func (r *Registry) pushClosedLocked(tab *entity.Tab) {
	r.closed = append(r.closed, tab)
	if len(r.closed) > r.maxStack {
		r.closed = r.closed[len(r.closed)-r.maxStack:]
	}
}
