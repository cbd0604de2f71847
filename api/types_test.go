package api_test

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sammwyy/easel/api"
	"github.com/sammwyy/easel/api/apitest"
)

func TestPluginMeta_Validate(t *testing.T) {
	tests := []struct {
		name    string
		meta    api.PluginMeta
		wantErr bool
	}{
		{"minimal", api.PluginMeta{ID: "reader"}, false},
		{"with deps and version", api.PluginMeta{ID: "o", Dependencies: []string{"a", "b"}, Version: "1.2.3"}, false},
		{"missing id", api.PluginMeta{Name: "nameless"}, true},
		{"self dependency", api.PluginMeta{ID: "o", Dependencies: []string{"a", "o"}}, true},
		{"empty dependency", api.PluginMeta{ID: "o", Dependencies: []string{""}}, true},
		{"duplicate dependency", api.PluginMeta{ID: "o", Dependencies: []string{"a", "a"}}, true},
		{"bad version", api.PluginMeta{ID: "o", Version: "one"}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.meta.Validate()
			if !tt.wantErr {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.True(t, errors.Is(err, api.ErrInvalidMeta))
			apitest.AssertErrorCode(t, err, api.CodeInvalidMeta)
		})
	}
}

func TestCloneElements(t *testing.T) {
	original := []api.Element{{
		ID:           "arrow",
		Type:         api.ElementArrow,
		StartBinding: &api.Binding{ElementID: "a"},
		CustomData:   map[string]any{"k": "v"},
	}}

	clone := api.CloneElements(original)
	clone[0].StartBinding.ElementID = "changed"
	clone[0].CustomData["k"] = "changed"

	assert.Equal(t, "a", original[0].StartBinding.ElementID)
	assert.Equal(t, "v", original[0].CustomData["k"])
	assert.Nil(t, api.CloneElements(nil))
}

func TestAppState_Clone(t *testing.T) {
	s := api.AppState{SelectedElementIDs: map[string]bool{"a": true}}
	c := s.Clone()
	c.SelectedElementIDs["b"] = true

	assert.Len(t, s.SelectedElementIDs, 1)
}
