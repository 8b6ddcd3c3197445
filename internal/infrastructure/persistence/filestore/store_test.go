package filestore

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/crynn/crynn/internal/domain/entity"
)

func testCtx() context.Context {
	return context.Background()
}

func sampleState() *entity.SessionState {
	return &entity.SessionState{
		Version: entity.SessionStateVersion,
		Tabs: []entity.TabSnapshot{
			{ID: "t1", URL: "https://example.com", Title: "Example", Pinned: true},
			{ID: "t2", URL: "https://news.example.org", Title: "News"},
		},
		ActiveID: "t2",
		SavedAt:  time.Now().UTC(),
	}
}

func TestStore_SaveLoadRoundTrip(t *testing.T) {
	store := New(filepath.Join(t.TempDir(), "session.json"))

	require.NoError(t, store.Save(testCtx(), sampleState()))

	loaded, err := store.Load(testCtx())
	require.NoError(t, err)
	require.NotNil(t, loaded)

	assert.Equal(t, entity.SessionStateVersion, loaded.Version)
	require.Len(t, loaded.Tabs, 2)
	assert.Equal(t, entity.TabID("t2"), loaded.ActiveID)
	assert.Equal(t, "https://example.com", loaded.Tabs[0].URL)
	assert.True(t, loaded.Tabs[0].Pinned)
}

func TestStore_LoadMissingReturnsNil(t *testing.T) {
	store := New(filepath.Join(t.TempDir(), "session.json"))

	loaded, err := store.Load(testCtx())
	require.NoError(t, err)
	assert.Nil(t, loaded)
}

func TestStore_LoadCorruptFileErrors(t *testing.T) {
	path := filepath.Join(t.TempDir(), "session.json")
	require.NoError(t, os.WriteFile(path, []byte("{not json"), 0o600))

	loaded, err := New(path).Load(testCtx())
	require.Error(t, err)
	assert.Nil(t, loaded)
}

func TestStore_LoadNewerVersionErrors(t *testing.T) {
	path := filepath.Join(t.TempDir(), "session.json")
	require.NoError(t, os.WriteFile(path, []byte(`{"version": 99, "tabs": []}`), 0o600))

	_, err := New(path).Load(testCtx())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "newer than supported")
}

func TestStore_SaveReplacesPreviousSnapshot(t *testing.T) {
	store := New(filepath.Join(t.TempDir(), "session.json"))

	first := sampleState()
	require.NoError(t, store.Save(testCtx(), first))

	second := sampleState()
	second.Tabs = second.Tabs[:1]
	second.ActiveID = "t1"
	require.NoError(t, store.Save(testCtx(), second))

	loaded, err := store.Load(testCtx())
	require.NoError(t, err)
	require.Len(t, loaded.Tabs, 1)
	assert.Equal(t, entity.TabID("t1"), loaded.ActiveID)

	// No temp files left behind.
	entries, err := os.ReadDir(filepath.Dir(store.Path()))
	require.NoError(t, err)
	require.Len(t, entries, 1)
}

func TestStore_SaveCreatesParentDirectory(t *testing.T) {
	store := New(filepath.Join(t.TempDir(), "nested", "deeper", "session.json"))

	require.NoError(t, store.Save(testCtx(), sampleState()))

	loaded, err := store.Load(testCtx())
	require.NoError(t, err)
	require.NotNil(t, loaded)
}

func TestStore_DeleteIsIdempotent(t *testing.T) {
	store := New(filepath.Join(t.TempDir(), "session.json"))

	require.NoError(t, store.Save(testCtx(), sampleState()))
	require.NoError(t, store.Delete(testCtx()))
	require.NoError(t, store.Delete(testCtx()))

	loaded, err := store.Load(testCtx())
	require.NoError(t, err)
	assert.Nil(t, loaded)
}
