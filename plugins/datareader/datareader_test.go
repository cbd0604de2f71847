package datareader_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sammwyy/easel/api"
	"github.com/sammwyy/easel/api/apitest"
	"github.com/sammwyy/easel/core/canvas"
	"github.com/sammwyy/easel/plugins/datareader"
)

func TestReader_RequiresInitialize(t *testing.T) {
	p := datareader.New()

	_, err := p.GetAllElements()
	apitest.AssertErrorCode(t, err, api.CodeUninitialized)
	assert.ErrorIs(t, err, api.ErrUninitialized)
	assert.Contains(t, err.Error(), datareader.ID)

	_, err = p.ReadAllElements()
	assert.ErrorIs(t, err, api.ErrUninitialized)
	_, err = p.ReadSelectedElements()
	assert.ErrorIs(t, err, api.ErrUninitialized)

	// activation alone does not bind a host
	require.NoError(t, p.Activate())
	_, err = p.GetAllElements()
	assert.ErrorIs(t, err, api.ErrUninitialized)
}

func TestReader_RebindObservesNewHost(t *testing.T) {
	p := datareader.New()

	first := apitest.NewFakeHost(api.Element{ID: "a"})
	second := apitest.NewFakeHost(api.Element{ID: "b"}, api.Element{ID: "c"})

	require.NoError(t, p.Initialize(first))
	elements, err := p.GetAllElements()
	require.NoError(t, err)
	assert.Len(t, elements, 1)

	require.NoError(t, p.Initialize(second))
	elements, err = p.GetAllElements()
	require.NoError(t, err)
	require.Len(t, elements, 2)
	assert.Equal(t, "b", elements[0].ID)
}

func TestReader_ReadAllSkipsDeleted(t *testing.T) {
	p := datareader.New()
	require.NoError(t, p.Initialize(apitest.NewFakeHost(
		api.Element{ID: "a"},
		api.Element{ID: "gone", IsDeleted: true},
	)))

	elements, err := p.ReadAllElements()
	require.NoError(t, err)
	require.Len(t, elements, 1)
	assert.Equal(t, "a", elements[0].ID)
}

func TestReader_ReadSelected(t *testing.T) {
	host := apitest.NewFakeHost(api.Element{ID: "a"}, api.Element{ID: "b"}, api.Element{ID: "c"})
	host.Select("c", "a")

	p := datareader.New()
	require.NoError(t, p.Initialize(host))

	selected, err := p.ReadSelectedElements()
	require.NoError(t, err)
	require.Len(t, selected, 2)
	assert.Equal(t, "a", selected[0].ID)
	assert.Equal(t, "c", selected[1].ID)
}

func TestReader_EndToEnd(t *testing.T) {
	c := canvas.New()
	p := datareader.New()
	require.NoError(t, p.Initialize(c))
	require.NoError(t, p.Activate())

	require.NoError(t, c.UpdateScene(api.SceneUpdate{Elements: []api.Element{{ID: "one"}}}))
	last := []api.Element{
		{ID: "r1", Type: api.ElementRectangle, Width: 10, Height: 10},
		{ID: "r2", Type: api.ElementEllipse, X: 50, IsDeleted: true},
		{ID: "a1", Type: api.ElementArrow, Version: 3, EndBinding: &api.Binding{ElementID: "r1"}},
	}
	require.NoError(t, c.UpdateScene(api.SceneUpdate{Elements: last}))

	got, err := p.GetAllElements()
	require.NoError(t, err)
	assert.Equal(t, last, got)
	assert.NoError(t, p.OnSceneUpdate())
}
