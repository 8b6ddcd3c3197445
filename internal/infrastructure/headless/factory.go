// Package headless provides a web view implementation that renders
// nothing. It backs the CLI when no rendering engine is attached and
// doubles as a scriptable endpoint for automation.
package headless

import (
	"context"
	"sync"
	"sync/atomic"

	"github.com/crynn/crynn/internal/application/port"
	"github.com/crynn/crynn/internal/logging"
	"github.com/rs/zerolog"
)

// Compile-time interface checks.
var (
	_ port.WebView        = (*View)(nil)
	_ port.WebViewFactory = (*Factory)(nil)
)

// Factory builds headless views.
type Factory struct {
	nextID atomic.Uint64
}

// NewFactory creates a headless view factory.
func NewFactory() *Factory {
	return &Factory{}
}

// NewWebView implements port.WebViewFactory. It never fails.
func (f *Factory) NewWebView(ctx context.Context) (port.WebView, error) {
	id := f.nextID.Add(1)
	log := logging.FromContext(ctx).With().Uint64("view", id).Logger()
	log.Debug().Msg("headless view created")
	return &View{log: log}, nil
}

// View tracks the state a real rendering view would have, without
// painting anything.
type View struct {
	log zerolog.Logger

	mu          sync.Mutex
	url         string
	visible     bool
	throttled   bool
	fingerprint string
	destroyed   bool
}

func (v *View) LoadURL(_ context.Context, url string) error {
	v.mu.Lock()
	v.url = url
	v.mu.Unlock()
	v.log.Debug().Str("url", url).Msg("load")
	return nil
}

func (v *View) StopLoading() {}

func (v *View) ClearContent() {
	v.mu.Lock()
	v.url = ""
	v.mu.Unlock()
}

func (v *View) SetVisible(visible bool) {
	v.mu.Lock()
	v.visible = visible
	v.mu.Unlock()
}

func (v *View) SetThrottled(throttled bool) {
	v.mu.Lock()
	v.throttled = throttled
	v.mu.Unlock()
	v.log.Debug().Bool("throttled", throttled).Msg("throttle changed")
}

func (v *View) ApplyContentRules(fingerprint string, _ []byte) {
	v.mu.Lock()
	v.fingerprint = fingerprint
	v.mu.Unlock()
}

func (v *View) RemoveContentRules() {
	v.mu.Lock()
	v.fingerprint = ""
	v.mu.Unlock()
}

func (v *View) Destroy() {
	v.mu.Lock()
	v.destroyed = true
	v.mu.Unlock()
	v.log.Debug().Msg("headless view destroyed")
}

// URL returns the last loaded URL.
func (v *View) URL() string {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.url
}
