package throttle_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/crynn/crynn/internal/application/port"
	"github.com/crynn/crynn/internal/domain/entity"
	"github.com/crynn/crynn/internal/logging"
	"github.com/crynn/crynn/internal/tabs"
	"github.com/crynn/crynn/internal/throttle"
	"github.com/crynn/crynn/internal/tracing"
	"github.com/crynn/crynn/internal/viewpool"
)

func testCtx() context.Context {
	logger := logging.NewFromConfigValues("debug", "console")
	return logging.WithContext(context.Background(), logger)
}

type countingView struct{ throttleCalls int }

func (v *countingView) LoadURL(context.Context, string) error { return nil }
func (v *countingView) StopLoading()                          {}
func (v *countingView) ClearContent()                         {}
func (v *countingView) SetVisible(bool)                       {}
func (v *countingView) SetThrottled(bool)                     { v.throttleCalls++ }
func (v *countingView) ApplyContentRules(string, []byte)      {}
func (v *countingView) RemoveContentRules()                   {}
func (v *countingView) Destroy()                              {}

type viewFactory struct{ views []*countingView }

func (f *viewFactory) NewWebView(context.Context) (port.WebView, error) {
	v := &countingView{}
	f.views = append(f.views, v)
	return v, nil
}

type mapResolver struct{ handles map[entity.TabID]*viewpool.Handle }

func (r *mapResolver) HandleFor(id entity.TabID) *viewpool.Handle { return r.handles[id] }

func TestThrottler_DemotesPreviousPromotesCurrent(t *testing.T) {
	ctx := testCtx()
	factory := &viewFactory{}
	pool := viewpool.New(factory, tracing.Noop(), viewpool.Config{MaxPoolSize: 2})

	ha, err := pool.Acquire(ctx, nil)
	require.NoError(t, err)
	hb, err := pool.Acquire(ctx, nil)
	require.NoError(t, err)

	resolver := &mapResolver{handles: map[entity.TabID]*viewpool.Handle{"a": ha, "b": hb}}
	tr := throttle.New(resolver)

	tr.OnActiveChanged(ctx, "a", "b")
	assert.True(t, ha.Throttled())
	assert.False(t, hb.Throttled())

	tr.OnActiveChanged(ctx, "b", "a")
	assert.False(t, ha.Throttled())
	assert.True(t, hb.Throttled())
}

func TestThrottler_IdempotentPerHandle(t *testing.T) {
	ctx := testCtx()
	factory := &viewFactory{}
	pool := viewpool.New(factory, tracing.Noop(), viewpool.Config{MaxPoolSize: 2})

	ha, err := pool.Acquire(ctx, nil)
	require.NoError(t, err)
	resolver := &mapResolver{handles: map[entity.TabID]*viewpool.Handle{"a": ha}}
	tr := throttle.New(resolver)

	// "a" keeps losing the active position; only the first demotion reaches
	// the engine.
	tr.OnActiveChanged(ctx, "a", "x")
	tr.OnActiveChanged(ctx, "a", "y")
	tr.OnActiveChanged(ctx, "a", "z")
	assert.Equal(t, 1, factory.views[0].throttleCalls)
}

func TestThrottler_TracksRegistryEvents(t *testing.T) {
	ctx := testCtx()
	factory := &viewFactory{}
	pool := viewpool.New(factory, tracing.Noop(), viewpool.Config{MaxPoolSize: 2})

	registry := tabs.NewRegistry(tabs.Config{})
	first := registry.ActiveID()

	h, err := pool.Acquire(ctx, nil)
	require.NoError(t, err)
	resolver := &mapResolver{handles: map[entity.TabID]*viewpool.Handle{first: h}}

	unsubscribe := throttle.New(resolver).Attach(ctx, registry)
	defer unsubscribe()

	registry.NewTab(ctx, "https://a.com", true)
	assert.True(t, h.Throttled(), "view of the demoted tab is throttled")

	registry.SetActive(ctx, first)
	assert.False(t, h.Throttled())
}
