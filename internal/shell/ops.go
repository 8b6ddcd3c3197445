package shell

import (
	"context"

	"github.com/crynn/crynn/internal/domain/entity"
	"github.com/crynn/crynn/internal/filtering"
	"github.com/crynn/crynn/internal/logging"
	"github.com/crynn/crynn/internal/tabs"
)

// Tab surface. These run on the owner goroutine; the registry events
// they emit drive view acquisition and release.

// NewTab opens a tab and focuses it. An empty URL falls back to the
// configured homepage.
func (s *Shell) NewTab(ctx context.Context, url string) entity.TabID {
	if url == "" {
		url = s.cfg.Homepage
	}
	return s.registry.NewTab(ctx, url, true)
}

// CloseTab closes the tab and releases its view.
func (s *Shell) CloseTab(ctx context.Context, id entity.TabID) {
	s.registry.CloseTab(ctx, id)
}

// DuplicateTab opens a copy of the tab right after it, unfocused.
func (s *Shell) DuplicateTab(ctx context.Context, id entity.TabID) (entity.TabID, bool) {
	return s.registry.DuplicateTab(ctx, id)
}

// ReopenClosed restores the most recently closed tab.
func (s *Shell) ReopenClosed(ctx context.Context) (entity.TabID, bool) {
	return s.registry.ReopenClosed(ctx)
}

// ActivateTab focuses the tab, binding a view to it if needed.
func (s *Shell) ActivateTab(ctx context.Context, id entity.TabID) {
	s.registry.SetActive(ctx, id)
}

// NextTab focuses the tab after the active one, wrapping around.
func (s *Shell) NextTab(ctx context.Context) {
	s.registry.NextTab(ctx)
}

// PreviousTab focuses the tab before the active one, wrapping around.
func (s *Shell) PreviousTab(ctx context.Context) {
	s.registry.PreviousTab(ctx)
}

// Navigate points the tab at a new URL, rebinding its filter rules for
// the new host.
func (s *Shell) Navigate(ctx context.Context, id entity.TabID, url string) {
	tab := s.registry.Get(id)
	if tab == nil {
		return
	}
	s.registry.SetURL(ctx, id, url)

	h := s.HandleFor(id)
	if h == nil {
		return
	}
	h.Apply(ctx, s.engine.BindingFor(url))
	if err := h.Navigate(ctx, url); err != nil {
		logging.FromContext(ctx).Warn().Err(err).Str("tab", string(id)).Str("url", url).Msg("navigation failed")
	}
}

// TogglePinned flips the tab's pinned flag.
func (s *Shell) TogglePinned(ctx context.Context, id entity.TabID) {
	s.registry.TogglePinned(ctx, id)
}

// ToggleReaderMode flips the tab's reader-mode flag.
func (s *Shell) ToggleReaderMode(ctx context.Context, id entity.TabID) {
	s.registry.ToggleReaderMode(ctx, id)
}

// ToggleMuted flips the tab's muted flag.
func (s *Shell) ToggleMuted(ctx context.Context, id entity.TabID) {
	s.registry.ToggleMuted(ctx, id)
}

// Subscribe registers fn for tab lifecycle events. The returned func
// removes the subscription.
func (s *Shell) Subscribe(fn func(tabs.Event)) func() {
	return s.registry.Subscribe(fn)
}

// Tabs returns the current tab strip in order.
func (s *Shell) Tabs() []*entity.Tab {
	return s.registry.Tabs()
}

// ActiveTab returns the focused tab.
func (s *Shell) ActiveTab() *entity.Tab {
	return s.registry.ActiveTab()
}

// Filtering surface.

// ToggleBlocking flips the global blocking flag and returns the new
// state. Views are rebound once the engine settles.
func (s *Shell) ToggleBlocking(ctx context.Context) bool {
	enabled := !s.engine.Enabled()
	s.engine.SetEnabled(ctx, enabled)
	return enabled
}

// BlockingEnabled reports the global blocking flag.
func (s *Shell) BlockingEnabled() bool {
	return s.engine.Enabled()
}

// BlockingEnabledFor reports whether requests from the host would be
// filtered, accounting for the global flag and host exceptions.
func (s *Shell) BlockingEnabledFor(host string) bool {
	return s.engine.IsBlockingEnabled(host)
}

// SetBlocking sets the global blocking flag if it differs from the
// current state.
func (s *Shell) SetBlocking(ctx context.Context, enabled bool) {
	if enabled == s.engine.Enabled() {
		return
	}
	s.engine.SetEnabled(ctx, enabled)
}

// ToggleHostException exempts or re-includes a host and rebinds live
// views. Returns true when the host is now exempt.
func (s *Shell) ToggleHostException(ctx context.Context, host string) bool {
	exempt := s.engine.ToggleHost(ctx, host)
	s.rebindAll(ctx)
	return exempt
}

// ToggleActiveHostException toggles the exception for the active tab's
// host. The second return is false when the active tab has no host.
func (s *Shell) ToggleActiveHostException(ctx context.Context) (bool, bool) {
	tab := s.registry.ActiveTab()
	if tab == nil {
		return false, false
	}
	host := filtering.HostOf(tab.URL)
	if host == "" {
		return false, false
	}
	return s.ToggleHostException(ctx, host), true
}

// FilterStatus reports the engine's current state.
func (s *Shell) FilterStatus() filtering.Status {
	return s.engine.Status()
}

// CompileRules requests an asynchronous recompile from raw rule
// sources. Superseded requests are discarded on completion.
func (s *Shell) CompileRules(ctx context.Context, sources ...[]byte) error {
	_, err := s.engine.Compile(ctx, sources...)
	return err
}

// Navigation event sink (port.NavigationEvents).

// OnLoadStart opens a page-load trace span for the tab.
func (s *Shell) OnLoadStart(tabID string, url string) {
	id := entity.TabID(tabID)

	s.mu.Lock()
	if prev := s.spans[id]; prev != nil {
		prev.End()
	}
	s.spans[id] = s.tracer.Begin("page-load", tabID)
	s.mu.Unlock()

	logging.FromContext(s.ctx).Debug().Str("tab", tabID).Str("url", url).Msg("load started")
}

// OnLoadFinish closes the page-load span and records the final URL.
func (s *Shell) OnLoadFinish(tabID string, url string) {
	id := entity.TabID(tabID)

	s.mu.Lock()
	if sp := s.spans[id]; sp != nil {
		sp.End()
		delete(s.spans, id)
	}
	s.mu.Unlock()

	if s.registry.Get(id) != nil {
		s.registry.SetURL(s.ctx, id, url)
	}
}
