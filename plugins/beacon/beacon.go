// Package beacon is a signal-emission plugin that announces canvas changes.
package beacon

import (
	"sort"

	"github.com/sammwyy/easel/api"
)

// ID is the plugin id
const ID = "selection-beacon"

// Signal types emitted by the beacon
const (
	SignalSelectionChanged = "selection.changed"
	SignalSceneChanged     = "scene.changed"
)

// Plugin emits a signal for every scene and selection change while active
type Plugin struct {
	*api.SignalBase
}

// Compile-time interface check.
var _ api.SignalEmitter = (*Plugin)(nil)

// New creates the beacon publishing onto sink
func New(sink api.SignalSink) *Plugin {
	return &Plugin{
		SignalBase: api.NewSignalBase(api.PluginMeta{
			ID:          ID,
			Name:        "Selection Beacon",
			Description: "Emits signals when the scene or selection changes",
			Version:     "1.0.0",
			Author:      "Easel Team",
		}, sink),
	}
}

// OnSelectionChange emits the sorted selected ids
func (p *Plugin) OnSelectionChange() error {
	if !p.IsActive() {
		return nil
	}
	host, err := p.Host()
	if err != nil {
		return err
	}

	ids := make([]string, 0)
	for id, selected := range host.GetAppState().SelectedElementIDs {
		if selected {
			ids = append(ids, id)
		}
	}
	sort.Strings(ids)

	return p.EmitSignal(SignalSelectionChanged, map[string]interface{}{
		"selected": ids,
	})
}

// OnSceneUpdate emits the live element count
func (p *Plugin) OnSceneUpdate() error {
	if !p.IsActive() {
		return nil
	}
	host, err := p.Host()
	if err != nil {
		return err
	}

	live := 0
	for _, e := range host.GetSceneElements() {
		if !e.IsDeleted {
			live++
		}
	}

	return p.EmitSignal(SignalSceneChanged, map[string]interface{}{
		"elements": live,
	})
}
