package scenestore_test

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sammwyy/easel/api"
	"github.com/sammwyy/easel/api/apitest"
	"github.com/sammwyy/easel/core/scenestore"
)

func openStore(t *testing.T) *scenestore.Store {
	t.Helper()
	store, err := scenestore.Open(filepath.Join(t.TempDir(), "scenes"), api.NewLogger("scenestore"))
	require.NoError(t, err)
	return store
}

func TestStore_SaveLoadRoundTrip(t *testing.T) {
	store := openStore(t)

	elements := []api.Element{
		{ID: "r1", Type: api.ElementRectangle, X: 10, Y: 20, Width: 100, Height: 50, Version: 3},
		{ID: "a1", Type: api.ElementArrow, StartBinding: &api.Binding{ElementID: "r1"}, CustomData: map[string]any{"k": "v"}},
	}
	appState := api.AppState{Name: "board", Zoom: 1.5, SelectedElementIDs: map[string]bool{"r1": true}}

	saved, err := store.Save("  board  ", elements, appState)
	require.NoError(t, err)
	assert.Equal(t, "board", saved.Name)
	assert.False(t, saved.CreatedAt.IsZero())

	elements[0].X = 999
	elements[1].StartBinding.ElementID = "changed"
	assert.Equal(t, 10.0, saved.Elements[0].X)
	assert.Equal(t, "r1", saved.Elements[1].StartBinding.ElementID)

	loaded, err := store.Load(saved.ID.String())
	require.NoError(t, err)
	assert.Equal(t, saved.ID, loaded.ID)
	assert.Equal(t, "board", loaded.Name)
	require.Len(t, loaded.Elements, 2)
	assert.Equal(t, "r1", loaded.Elements[1].StartBinding.ElementID)
	assert.Equal(t, "v", loaded.Elements[1].CustomData["k"])
	assert.True(t, loaded.AppState.SelectedElementIDs["r1"])
	assert.Equal(t, 1.5, loaded.AppState.Zoom)
}

func TestStore_SaveRejectsEmptyName(t *testing.T) {
	store := openStore(t)

	_, err := store.Save(" ", nil, api.AppState{})
	apitest.AssertErrorCode(t, err, scenestore.CodeInvalid)
	assert.ErrorIs(t, err, scenestore.ErrInvalid)
}

func TestStore_SaveNilElements(t *testing.T) {
	store := openStore(t)

	saved, err := store.Save("empty", nil, api.AppState{})
	require.NoError(t, err)

	loaded, err := store.Load(saved.ID.String())
	require.NoError(t, err)
	assert.NotNil(t, loaded.Elements)
	assert.Empty(t, loaded.Elements)
}

func TestStore_NotFound(t *testing.T) {
	store := openStore(t)

	tests := []struct {
		name string
		id   string
	}{
		{"malformed id", "not-a-ulid"},
		{"unknown id", "01ARZ3NDEKTSV4RRFFQ69G5FAV"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := store.Load(tt.id)
			apitest.AssertErrorCode(t, err, scenestore.CodeNotFound)
			assert.ErrorIs(t, err, scenestore.ErrNotFound)

			err = store.Delete(tt.id)
			apitest.AssertErrorCode(t, err, scenestore.CodeNotFound)
		})
	}
}

func TestStore_Delete(t *testing.T) {
	store := openStore(t)

	saved, err := store.Save("doomed", nil, api.AppState{})
	require.NoError(t, err)

	require.NoError(t, store.Delete(saved.ID.String()))
	_, err = store.Load(saved.ID.String())
	assert.ErrorIs(t, err, scenestore.ErrNotFound)
}

func TestStore_ListNewestFirst(t *testing.T) {
	store := openStore(t)

	first, err := store.Save("first", []api.Element{{ID: "x"}}, api.AppState{})
	require.NoError(t, err)
	second, err := store.Save("second", nil, api.AppState{})
	require.NoError(t, err)

	// stray files are ignored
	require.NoError(t, os.WriteFile(filepath.Join(store.Dir(), "notes.txt"), []byte("x"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(store.Dir(), "01ARZ3NDEKTSV4RRFFQ69G5FAV.json"), []byte("{broken"), 0o644))

	summaries, err := store.List()
	require.NoError(t, err)
	require.Len(t, summaries, 2)
	assert.Equal(t, second.ID, summaries[0].ID)
	assert.Equal(t, first.ID, summaries[1].ID)
	assert.Equal(t, 1, summaries[1].Elements)
}

func TestIsSceneFile(t *testing.T) {
	assert.True(t, scenestore.IsSceneFile("/tmp/01ARZ3NDEKTSV4RRFFQ69G5FAV.json"))
	assert.False(t, scenestore.IsSceneFile("01ARZ3NDEKTSV4RRFFQ69G5FAV.json.tmp"))
	assert.False(t, scenestore.IsSceneFile("board.json"))
	assert.False(t, scenestore.IsSceneFile(".scene-123.tmp"))
}

func TestOpen_RequiresDir(t *testing.T) {
	_, err := scenestore.Open("", api.NewLogger("scenestore"))
	assert.ErrorIs(t, err, scenestore.ErrInvalid)
}
