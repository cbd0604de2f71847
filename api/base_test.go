package api_test

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sammwyy/easel/api"
	"github.com/sammwyy/easel/api/apitest"
)

// countingPlugin reads through the guarded host accessor
type countingPlugin struct {
	*api.Base
}

func newCountingPlugin() *countingPlugin {
	return &countingPlugin{Base: api.NewBase(api.PluginMeta{ID: "counter", Name: "Counter"})}
}

func (p *countingPlugin) count() (int, error) {
	host, err := p.Host()
	if err != nil {
		return 0, err
	}
	return len(host.GetSceneElements()), nil
}

func TestBase_HostBeforeInitializeFails(t *testing.T) {
	p := newCountingPlugin()

	_, err := p.count()
	require.Error(t, err)
	assert.True(t, errors.Is(err, api.ErrUninitialized))
	apitest.AssertErrorCode(t, err, api.CodeUninitialized)
	assert.Equal(t, api.StateConstructed, p.State())
}

func TestBase_HostAfterInitialize(t *testing.T) {
	p := newCountingPlugin()
	host := apitest.NewFakeHost(api.Element{ID: "a"}, api.Element{ID: "b"})

	require.NoError(t, p.Initialize(host))
	n, err := p.count()
	require.NoError(t, err)
	assert.Equal(t, 2, n)
	assert.Equal(t, api.StateInitialized, p.State())
}

func TestBase_ReinitializeRebinds(t *testing.T) {
	p := newCountingPlugin()
	first := apitest.NewFakeHost(api.Element{ID: "a"})
	second := apitest.NewFakeHost(api.Element{ID: "x"}, api.Element{ID: "y"}, api.Element{ID: "z"})

	require.NoError(t, p.Initialize(first))
	require.NoError(t, p.Initialize(second))

	host, err := p.Host()
	require.NoError(t, err)
	assert.Same(t, second, host)

	n, err := p.count()
	require.NoError(t, err)
	assert.Equal(t, 3, n)
}

func TestBase_InitializeNilHost(t *testing.T) {
	p := newCountingPlugin()

	err := p.Initialize(nil)
	require.Error(t, err)
	assert.True(t, errors.Is(err, api.ErrInvalidHost))
	apitest.AssertErrorCode(t, err, api.CodeInvalidHost)
	assert.Equal(t, api.StateConstructed, p.State())
}

func TestBase_ActivateDeactivateIdempotent(t *testing.T) {
	p := newCountingPlugin()
	require.NoError(t, p.Initialize(apitest.NewFakeHost()))

	sequence := []func() error{
		p.Activate, p.Activate, p.Deactivate, p.Deactivate,
		p.Activate, p.Deactivate, p.Activate, p.Activate,
	}
	for _, step := range sequence {
		require.NoError(t, step())
	}
	assert.Equal(t, api.StateActive, p.State())
	assert.True(t, p.IsActive())

	require.NoError(t, p.Deactivate())
	assert.Equal(t, api.StateDeactivated, p.State())
}

func TestBase_DeactivateWithoutActivateKeepsState(t *testing.T) {
	p := newCountingPlugin()
	require.NoError(t, p.Initialize(apitest.NewFakeHost()))

	require.NoError(t, p.Deactivate())
	assert.Equal(t, api.StateInitialized, p.State())
}

func TestBase_DefaultHooksAreNoops(t *testing.T) {
	p := newCountingPlugin()

	assert.NoError(t, p.OnSceneUpdate())
	assert.NoError(t, p.OnSelectionChange())
}

func TestBase_Dispose(t *testing.T) {
	p := newCountingPlugin()
	require.NoError(t, p.Initialize(apitest.NewFakeHost()))
	require.NoError(t, p.Activate())

	require.NoError(t, p.Dispose())
	require.NoError(t, p.Dispose())
	assert.Equal(t, api.StateDisposed, p.State())

	_, err := p.Host()
	assert.True(t, errors.Is(err, api.ErrDisposed))
	apitest.AssertErrorCode(t, p.Initialize(apitest.NewFakeHost()), api.CodeDisposed)
	apitest.AssertErrorCode(t, p.Activate(), api.CodeDisposed)
	apitest.AssertErrorCode(t, p.Deactivate(), api.CodeDisposed)
}

func TestBase_MetaIsACopy(t *testing.T) {
	deps := []string{"a", "b"}
	b := api.NewBase(api.PluginMeta{ID: "p", Dependencies: deps})
	deps[0] = "mutated"

	meta := b.Meta()
	assert.Equal(t, []string{"a", "b"}, meta.Dependencies)

	meta.Dependencies[1] = "mutated"
	assert.Equal(t, []string{"a", "b"}, b.Meta().Dependencies)
}

func TestState_String(t *testing.T) {
	tests := []struct {
		state api.State
		want  string
	}{
		{api.StateConstructed, "constructed"},
		{api.StateInitialized, "initialized"},
		{api.StateActive, "active"},
		{api.StateDeactivated, "deactivated"},
		{api.StateDisposed, "disposed"},
		{api.State(99), "unknown"},
	}
	for _, tt := range tests {
		t.Run(tt.want, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.state.String())
		})
	}
}
