package filtering_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/crynn/crynn/internal/filtering"
	"github.com/crynn/crynn/internal/logging"
)

func testCtx() context.Context {
	logger := logging.NewFromConfigValues("debug", "console")
	return logging.WithContext(context.Background(), logger)
}

func mustRuleset(t *testing.T, marker string) *filtering.Ruleset {
	t.Helper()
	rs, err := filtering.NewRuleset([]filtering.Rule{{
		Trigger: filtering.Trigger{URLFilter: marker},
		Action:  filtering.Action{Type: filtering.ActionBlock},
	}})
	require.NoError(t, err)
	return rs
}

// gatedCompiler compiles source "v1" only after the gate opens; everything
// else completes immediately.
func gatedCompiler(t *testing.T, gate <-chan struct{}) filtering.CompileFunc {
	t.Helper()
	return func(_ context.Context, sources ...[]byte) (*filtering.Ruleset, error) {
		marker := string(sources[0])
		if marker == "v1" {
			<-gate
		}
		if marker == "bad" {
			return nil, errors.New("syntax error at line 3")
		}
		rs, err := filtering.NewRuleset([]filtering.Rule{{
			Trigger: filtering.Trigger{URLFilter: marker},
			Action:  filtering.Action{Type: filtering.ActionBlock},
		}})
		return rs, err
	}
}

func TestEngine_LastWriterWinsRegardlessOfCompletionOrder(t *testing.T) {
	ctx := testCtx()
	gate := make(chan struct{})
	applied := make(chan struct{}, 8)

	eng := filtering.NewEngine(filtering.Config{
		Enabled: true,
		Compile: gatedCompiler(t, gate),
		Dispatch: func(fn func()) {
			fn()
			applied <- struct{}{}
		},
	})

	v1, err := eng.Compile(ctx, []byte("v1"))
	require.NoError(t, err)
	v2, err := eng.Compile(ctx, []byte("v2"))
	require.NoError(t, err)
	assert.Greater(t, v2, v1)

	// v2 completes first and becomes Ready.
	waitSignal(t, applied)
	want := mustRuleset(t, "v2").Fingerprint
	require.NotNil(t, eng.CurrentRuleset())
	assert.Equal(t, want, eng.CurrentRuleset().Fingerprint)

	// v1 finishes late; its result must be discarded.
	close(gate)
	waitSignal(t, applied)
	assert.Equal(t, want, eng.CurrentRuleset().Fingerprint)
	assert.Equal(t, filtering.StateReady, eng.Status().State)
}

func TestEngine_CompileFailureKeepsPreviousReady(t *testing.T) {
	ctx := testCtx()
	applied := make(chan struct{}, 8)
	var statuses []filtering.Status

	eng := filtering.NewEngine(filtering.Config{
		Enabled:  true,
		Compile:  gatedCompiler(t, nil),
		Dispatch: func(fn func()) { fn(); applied <- struct{}{} },
		OnStatus: func(st filtering.Status) { statuses = append(statuses, st) },
	})

	_, err := eng.Compile(ctx, []byte("good"))
	require.NoError(t, err)
	waitSignal(t, applied)
	require.NotNil(t, eng.CurrentRuleset())
	good := eng.CurrentRuleset().Fingerprint

	_, err = eng.Compile(ctx, []byte("bad"))
	require.NoError(t, err)
	waitSignal(t, applied)

	st := eng.Status()
	assert.Equal(t, filtering.StateFailed, st.State)
	assert.Contains(t, st.Err, "syntax error")

	// The previous Ready ruleset stays authoritative.
	require.NotNil(t, eng.CurrentRuleset())
	assert.Equal(t, good, eng.CurrentRuleset().Fingerprint)
	assert.NotEmpty(t, statuses)
}

func TestEngine_CompileWithoutSources(t *testing.T) {
	eng := filtering.NewEngine(filtering.Config{Enabled: true})
	_, err := eng.Compile(testCtx())
	assert.ErrorIs(t, err, filtering.ErrNoSources)
}

func TestEngine_ToggleHostIsInvolution(t *testing.T) {
	ctx := testCtx()
	eng := filtering.NewEngine(filtering.Config{Enabled: true})

	before := eng.IsBlockingEnabled("example.com")
	assert.True(t, eng.ToggleHost(ctx, "Example.COM"))
	assert.False(t, eng.IsBlockingEnabled("example.com"))
	assert.False(t, eng.ToggleHost(ctx, "example.com"))
	assert.Equal(t, before, eng.IsBlockingEnabled("example.com"))
	assert.Zero(t, eng.Exceptions().Count())
}

func TestEngine_CurrentRulesetNilWhileDisabled(t *testing.T) {
	ctx := testCtx()
	applied := make(chan struct{}, 8)

	eng := filtering.NewEngine(filtering.Config{
		Enabled:  false,
		Compile:  gatedCompiler(t, nil),
		Dispatch: func(fn func()) { fn(); applied <- struct{}{} },
	})

	_, err := eng.Compile(ctx, []byte("v2"))
	require.NoError(t, err)
	waitSignal(t, applied)

	assert.Nil(t, eng.CurrentRuleset(), "disabled engine exposes no ruleset")
	assert.Equal(t, filtering.StateDisabled, eng.Status().State)
	assert.False(t, eng.IsBlockingEnabled("example.com"))

	eng.SetEnabled(ctx, true)
	require.NotNil(t, eng.CurrentRuleset())
	assert.True(t, eng.IsBlockingEnabled("example.com"))
}

func TestEngine_EnableTriggersRecompileOfLastSources(t *testing.T) {
	ctx := testCtx()
	applied := make(chan struct{}, 8)
	calls := 0

	eng := filtering.NewEngine(filtering.Config{
		Enabled: false,
		Compile: func(ctx context.Context, sources ...[]byte) (*filtering.Ruleset, error) {
			calls++
			if calls == 1 {
				return nil, errors.New("transient failure")
			}
			return filtering.NewCompiler().CompileSources(ctx, sources...)
		},
		Dispatch: func(fn func()) { fn(); applied <- struct{}{} },
	})

	_, err := eng.Compile(ctx, []byte("||ads.example.com^\n"))
	require.NoError(t, err)
	waitSignal(t, applied)
	require.Nil(t, eng.CurrentRuleset())

	eng.SetEnabled(ctx, true)
	waitSignal(t, applied)
	assert.NotNil(t, eng.CurrentRuleset())
	assert.Equal(t, 2, calls)
}

func TestEngine_BindingAppliesRulesSubjectToExceptions(t *testing.T) {
	ctx := testCtx()
	applied := make(chan struct{}, 8)

	eng := filtering.NewEngine(filtering.Config{
		Enabled:  true,
		Compile:  gatedCompiler(t, nil),
		Dispatch: func(fn func()) { fn(); applied <- struct{}{} },
	})
	_, err := eng.Compile(ctx, []byte("v2"))
	require.NoError(t, err)
	waitSignal(t, applied)

	view := &recordingView{}
	eng.BindingFor("https://news.example.com/article").ApplyTo(ctx, view)
	assert.Equal(t, 1, view.appliedRules)

	eng.ToggleHost(ctx, "ads-ok.example.org")
	view2 := &recordingView{}
	eng.BindingFor("https://Ads-OK.example.org/").ApplyTo(ctx, view2)
	assert.Equal(t, 0, view2.appliedRules)
	assert.Equal(t, 1, view2.removedRules)
}

func waitSignal(t *testing.T, ch <-chan struct{}) {
	t.Helper()
	select {
	case <-ch:
	case <-time.After(5 * time.Second):
		t.Fatal("timed out waiting for compile result")
	}
}

// recordingView implements the WebView port for binding tests.
type recordingView struct {
	appliedRules int
	removedRules int
}

func (v *recordingView) LoadURL(context.Context, string) error { return nil }
func (v *recordingView) StopLoading()                          {}
func (v *recordingView) ClearContent()                         {}
func (v *recordingView) SetVisible(bool)                       {}
func (v *recordingView) SetThrottled(bool)                     {}
func (v *recordingView) ApplyContentRules(string, []byte)      { v.appliedRules++ }
func (v *recordingView) RemoveContentRules()                   { v.removedRules++ }
func (v *recordingView) Destroy()                              {}
