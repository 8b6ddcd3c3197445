package shell

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/crynn/crynn/internal/application/port"
	"github.com/crynn/crynn/internal/config"
	"github.com/crynn/crynn/internal/domain/entity"
	"github.com/crynn/crynn/internal/filtering"
	"github.com/crynn/crynn/internal/tracing"
)

func testCtx() context.Context {
	return context.Background()
}

type fakeView struct {
	mu          sync.Mutex
	loads       []string
	visible     bool
	throttled   bool
	fingerprint string
	removals    int
	destroyed   bool
}

func (v *fakeView) LoadURL(_ context.Context, url string) error {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.loads = append(v.loads, url)
	return nil
}

func (v *fakeView) StopLoading()  {}
func (v *fakeView) ClearContent() {}

func (v *fakeView) SetVisible(visible bool) {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.visible = visible
}

func (v *fakeView) SetThrottled(throttled bool) {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.throttled = throttled
}

func (v *fakeView) ApplyContentRules(fingerprint string, _ []byte) {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.fingerprint = fingerprint
}

func (v *fakeView) RemoveContentRules() {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.fingerprint = ""
	v.removals++
}

func (v *fakeView) Destroy() {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.destroyed = true
}

func (v *fakeView) lastLoad() string {
	v.mu.Lock()
	defer v.mu.Unlock()
	if len(v.loads) == 0 {
		return ""
	}
	return v.loads[len(v.loads)-1]
}

func (v *fakeView) isThrottled() bool {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.throttled
}

func (v *fakeView) appliedFingerprint() string {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.fingerprint
}

type fakeFactory struct {
	mu    sync.Mutex
	views []*fakeView
}

func (f *fakeFactory) NewWebView(context.Context) (port.WebView, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	v := &fakeView{}
	f.views = append(f.views, v)
	return v, nil
}

func (f *fakeFactory) built() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.views)
}

type memStore struct {
	mu    sync.Mutex
	state *entity.SessionState
	saves int
}

func (s *memStore) Save(_ context.Context, state *entity.SessionState) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.state = state
	s.saves++
	return nil
}

func (s *memStore) Load(context.Context) (*entity.SessionState, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state, nil
}

func (s *memStore) Delete(context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.state = nil
	return nil
}

func testConfig() *config.Config {
	cfg := config.DefaultConfig()
	cfg.Homepage = "https://home.example.com"
	cfg.Pool.Prewarm = false
	cfg.Session.QuietIntervalMs = 50
	cfg.Filtering.RuleFiles = nil
	return cfg
}

// startShell builds a shell over fakes and runs its owner loop.
func startShell(t *testing.T, cfg *config.Config, store port.SnapshotStore) (*Shell, *fakeFactory) {
	t.Helper()

	if cfg == nil {
		cfg = testConfig()
	}
	if store == nil {
		store = &memStore{}
	}

	factory := &fakeFactory{}
	s := New(cfg, factory, store, tracing.Noop())
	require.NoError(t, s.Start(testCtx()))

	ctx, cancel := context.WithCancel(testCtx())
	go func() { _ = s.Run(ctx) }()
	t.Cleanup(func() {
		s.Close(testCtx())
		cancel()
	})

	return s, factory
}

func TestStart_FreshSessionOpensHomepage(t *testing.T) {
	s, factory := startShell(t, nil, nil)

	active := s.ActiveTab()
	require.NotNil(t, active)
	assert.Equal(t, "https://home.example.com", active.URL)

	require.Equal(t, 1, factory.built())
	assert.Equal(t, "https://home.example.com", factory.views[0].lastLoad())
}

func TestStart_RestoresPersistedSession(t *testing.T) {
	store := &memStore{state: &entity.SessionState{
		Version: entity.SessionStateVersion,
		Tabs: []entity.TabSnapshot{
			{ID: "t1", URL: "https://one.example.com"},
			{ID: "t2", URL: "https://two.example.com"},
		},
		ActiveID: "t2",
	}}

	s, factory := startShell(t, nil, store)

	tabs := s.Tabs()
	require.Len(t, tabs, 2)
	assert.Equal(t, entity.TabID("t2"), s.ActiveTab().ID)

	// Only the active tab gets a view.
	require.Equal(t, 1, factory.built())
	assert.Equal(t, "https://two.example.com", factory.views[0].lastLoad())
}

func TestNewTab_BindsViewAndCloseReleasesIt(t *testing.T) {
	s, factory := startShell(t, nil, nil)

	id := s.NewTab(testCtx(), "https://docs.example.com")
	require.Equal(t, 2, factory.built())
	assert.Equal(t, "https://docs.example.com", factory.views[1].lastLoad())

	s.CloseTab(testCtx(), id)
	assert.Nil(t, s.HandleFor(id))

	// The released view went back to the free list, not destroyed.
	factory.views[1].mu.Lock()
	destroyed := factory.views[1].destroyed
	factory.views[1].mu.Unlock()
	assert.False(t, destroyed)
}

func TestActivation_ThrottlesBackgroundView(t *testing.T) {
	s, factory := startShell(t, nil, nil)

	first := s.ActiveTab().ID
	s.NewTab(testCtx(), "https://docs.example.com")

	require.Equal(t, 2, factory.built())
	assert.True(t, factory.views[0].isThrottled())
	assert.False(t, factory.views[1].isThrottled())

	s.ActivateTab(testCtx(), first)
	assert.False(t, factory.views[0].isThrottled())
	assert.True(t, factory.views[1].isThrottled())
}

func TestCompileRules_AppliesToLiveViews(t *testing.T) {
	s, factory := startShell(t, nil, nil)

	require.NoError(t, s.CompileRules(testCtx(), []byte("||ads.example.com^\n")))

	require.Eventually(t, func() bool {
		return factory.views[0].appliedFingerprint() != ""
	}, 2*time.Second, 10*time.Millisecond, "compiled ruleset never reached the view")

	st := s.FilterStatus()
	assert.Equal(t, filtering.StateReady, st.State)
	assert.Equal(t, 1, st.RuleCount)
}

func TestToggleHostException_RemovesRulesFromExemptHost(t *testing.T) {
	s, factory := startShell(t, nil, nil)

	require.NoError(t, s.CompileRules(testCtx(), []byte("||ads.example.com^\n")))
	require.Eventually(t, func() bool {
		return factory.views[0].appliedFingerprint() != ""
	}, 2*time.Second, 10*time.Millisecond)

	exempt, ok := s.ToggleActiveHostException(testCtx())
	require.True(t, ok)
	assert.True(t, exempt)
	assert.Empty(t, factory.views[0].appliedFingerprint())

	exempt, ok = s.ToggleActiveHostException(testCtx())
	require.True(t, ok)
	assert.False(t, exempt)
	assert.NotEmpty(t, factory.views[0].appliedFingerprint())
}

func TestToggleBlocking_DisablingStripsRules(t *testing.T) {
	s, factory := startShell(t, nil, nil)

	require.NoError(t, s.CompileRules(testCtx(), []byte("||ads.example.com^\n")))
	require.Eventually(t, func() bool {
		return factory.views[0].appliedFingerprint() != ""
	}, 2*time.Second, 10*time.Millisecond)

	assert.False(t, s.ToggleBlocking(testCtx()))
	assert.Empty(t, factory.views[0].appliedFingerprint())
}

func TestClose_FlushesSessionToStore(t *testing.T) {
	store := &memStore{}
	cfg := testConfig()
	cfg.Session.QuietIntervalMs = 60_000 // force the flush path

	s, _ := startShell(t, cfg, store)

	s.NewTab(testCtx(), "https://docs.example.com")
	s.Close(testCtx())

	store.mu.Lock()
	defer store.mu.Unlock()
	require.NotNil(t, store.state)
	assert.Len(t, store.state.Tabs, 2)
	assert.GreaterOrEqual(t, store.saves, 1)
}

func TestOnLoadFinish_UpdatesTabURL(t *testing.T) {
	s, _ := startShell(t, nil, nil)

	id := s.ActiveTab().ID
	s.OnLoadStart(string(id), "https://home.example.com")
	s.OnLoadFinish(string(id), "https://home.example.com/welcome")

	assert.Equal(t, "https://home.example.com/welcome", s.ActiveTab().URL)
}

func TestNavigate_RebindsAndLoads(t *testing.T) {
	s, factory := startShell(t, nil, nil)

	id := s.ActiveTab().ID
	s.Navigate(testCtx(), id, "https://news.example.org")

	assert.Equal(t, "https://news.example.org", s.ActiveTab().URL)
	assert.Equal(t, "https://news.example.org", factory.views[0].lastLoad())
}
