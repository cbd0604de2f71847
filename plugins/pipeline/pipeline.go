// Package pipeline is an orchestrator that turns bound arrows on the canvas
// into a visualized flow and announces the result.
package pipeline

import (
	"github.com/samber/oops"

	"github.com/sammwyy/easel/api"
	"github.com/sammwyy/easel/plugins/beacon"
	"github.com/sammwyy/easel/plugins/datareader"
	"github.com/sammwyy/easel/plugins/flowview"
)

// ID is the plugin id
const ID = "flow-pipeline"

// SignalCoordinated is emitted after a successful coordination
const SignalCoordinated = "flow.coordinated"

// ElementReader is what the pipeline needs from its reader dependency
type ElementReader interface {
	ReadAllElements() ([]api.Element, error)
}

// Plugin coordinates the reader, the flow view and the beacon
type Plugin struct {
	*api.OrchestratorBase
}

// Compile-time interface check.
var _ api.Orchestrator = (*Plugin)(nil)

// New creates the pipeline orchestrator
func New() *Plugin {
	return &Plugin{
		OrchestratorBase: api.NewOrchestratorBase(api.PluginMeta{
			ID:           ID,
			Name:         "Flow Pipeline",
			Description:  "Visualizes the flow described by bound arrows",
			Dependencies: []string{datareader.ID, flowview.ID, beacon.ID},
			Version:      "1.0.0",
			Author:       "Easel Team",
		}),
	}
}

// CoordinateFlow reads the scene through the registered reader, derives one
// edge per bound arrow, draws the edges through the registered visualizer and
// emits flow.coordinated through the registered emitter. Only the reader is
// required.
func (p *Plugin) CoordinateFlow() error {
	errb := oops.Code(api.CodeIncomplete).In("orchestrator").With("orchestrator", ID)

	managed, ok := p.Managed(datareader.ID)
	if !ok {
		return errb.With("missing", datareader.ID).Wrapf(api.ErrIncomplete, "no %s registered", datareader.ID)
	}
	reader, ok := managed.(ElementReader)
	if !ok {
		return errb.With("plugin_id", datareader.ID).Wrapf(api.ErrIncomplete, "%s cannot read elements", datareader.ID)
	}

	elements, err := reader.ReadAllElements()
	if err != nil {
		return err
	}
	edges := Edges(elements)

	drawn := false
	if managed, ok := p.Managed(flowview.ID); ok {
		if fv, ok := api.AsFlowVisualizer(managed); ok {
			if err := fv.VisualizeFlow(edges); err != nil {
				return err
			}
			drawn = true
		}
	}
	if !drawn {
		p.Logger().Warn("Flow visualizer not registered, skipping", "dependency", flowview.ID)
	}

	payload := map[string]interface{}{
		"orchestrator": ID,
		"edges":        len(edges),
		"drawn":        drawn,
	}
	if managed, ok := p.Managed(beacon.ID); ok {
		if se, ok := api.AsSignalEmitter(managed); ok {
			if err := se.EmitSignal(SignalCoordinated, payload); err != nil {
				return err
			}
		}
	} else {
		p.Logger().Warn("Signal emitter not registered, skipping", "dependency", beacon.ID)
	}

	p.Logger().Info("Flow coordinated", "edges", len(edges), "drawn", drawn)
	return nil
}

// Edges derives flow edges from live arrows bound at both ends. Arrows drawn
// by the flow view are ignored.
func Edges(elements []api.Element) []flowview.Edge {
	edges := make([]flowview.Edge, 0)
	for _, e := range elements {
		if e.Type != api.ElementArrow || e.IsDeleted || flowview.IsFlowArrow(e) {
			continue
		}
		if e.StartBinding == nil || e.EndBinding == nil {
			continue
		}
		edges = append(edges, flowview.Edge{
			From:  e.StartBinding.ElementID,
			To:    e.EndBinding.ElementID,
			Label: e.Text,
		})
	}
	return edges
}
