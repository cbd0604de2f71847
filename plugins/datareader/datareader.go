// Package datareader is a plugin that reads scene content from the host.
package datareader

import (
	"github.com/sammwyy/easel/api"
)

// ID is the plugin id
const ID = "canvas-data-reader"

// Plugin reads elements from the bound host
type Plugin struct {
	*api.Base
}

// New creates the data reader plugin
func New() *Plugin {
	return &Plugin{
		Base: api.NewBase(api.PluginMeta{
			ID:          ID,
			Name:        "Canvas Data Reader",
			Description: "Reads scene elements and selection from the canvas",
			Version:     "1.0.0",
			Author:      "Easel Team",
		}),
	}
}

// GetAllElements returns the current scene elements
func (p *Plugin) GetAllElements() ([]api.Element, error) {
	host, err := p.Host()
	if err != nil {
		return nil, err
	}
	return host.GetSceneElements(), nil
}

// ReadAllElements returns the live (not deleted) elements and logs how many
// were read
func (p *Plugin) ReadAllElements() ([]api.Element, error) {
	elements, err := p.GetAllElements()
	if err != nil {
		return nil, err
	}

	live := make([]api.Element, 0, len(elements))
	for _, e := range elements {
		if !e.IsDeleted {
			live = append(live, e)
		}
	}

	p.Logger().Info("Read elements", "count", len(live), "total", len(elements))
	return live, nil
}

// ReadSelectedElements returns the selected live elements in scene order
func (p *Plugin) ReadSelectedElements() ([]api.Element, error) {
	host, err := p.Host()
	if err != nil {
		return nil, err
	}

	selected := host.GetAppState().SelectedElementIDs
	var result []api.Element
	for _, e := range host.GetSceneElements() {
		if selected[e.ID] && !e.IsDeleted {
			result = append(result, e)
		}
	}
	return result, nil
}

// OnSceneUpdate logs the new element count while active
func (p *Plugin) OnSceneUpdate() error {
	if !p.IsActive() {
		return nil
	}
	host, err := p.Host()
	if err != nil {
		return err
	}
	p.Logger().Debug("Scene updated", "elements", len(host.GetSceneElements()))
	return nil
}
