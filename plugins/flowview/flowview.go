// Package flowview is a flow-visualization plugin that draws data-flow edges
// as arrows between existing canvas elements.
package flowview

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/samber/oops"

	"github.com/sammwyy/easel/api"
)

// ID is the plugin id
const ID = "flow-view"

// CustomDataKey tags the arrows drawn by this plugin
const CustomDataKey = "flowView"

// CodeInvalidFlow is the error code for flow data that cannot be decoded
const CodeInvalidFlow = "FLOW_INVALID"

// ErrInvalidFlow is returned for unsupported or malformed flow data
var ErrInvalidFlow = errors.New("invalid flow data")

// Edge is a directed flow between two elements
type Edge struct {
	From  string `json:"from"`
	To    string `json:"to"`
	Label string `json:"label,omitempty"`
}

// Flow is a set of edges
type Flow struct {
	Edges []Edge `json:"edges"`
}

// Plugin draws flows on the canvas
type Plugin struct {
	*api.Base
}

// Compile-time interface check.
var _ api.FlowVisualizer = (*Plugin)(nil)

// New creates the flow view plugin
func New() *Plugin {
	return &Plugin{
		Base: api.NewBase(api.PluginMeta{
			ID:          ID,
			Name:        "Flow View",
			Description: "Draws data-flow edges as arrows between elements",
			Version:     "1.0.0",
			Author:      "Easel Team",
		}),
	}
}

// ArrowID returns the element id used for the arrow of an edge
func ArrowID(e Edge) string {
	return fmt.Sprintf("flow:%s->%s", e.From, e.To)
}

// IsFlowArrow reports whether an element was drawn by this plugin
func IsFlowArrow(e api.Element) bool {
	tagged, _ := e.CustomData[CustomDataKey].(bool)
	return tagged
}

// VisualizeFlow replaces previously drawn flow arrows with one arrow per edge.
// data may be []Edge, Flow, *Flow, or JSON of either as []byte or string.
// Edges whose endpoints are not on the canvas are skipped.
func (p *Plugin) VisualizeFlow(data any) error {
	edges, err := DecodeEdges(data)
	if err != nil {
		return err
	}

	host, err := p.Host()
	if err != nil {
		return err
	}

	current := host.GetSceneElements()
	next := make([]api.Element, 0, len(current)+len(edges))
	byID := make(map[string]api.Element, len(current))
	removed := 0
	for _, e := range current {
		if IsFlowArrow(e) {
			removed++
			continue
		}
		next = append(next, e)
		if !e.IsDeleted {
			byID[e.ID] = e
		}
	}

	drawn := make(map[string]bool, len(edges))
	skipped := 0
	for _, edge := range edges {
		from, okFrom := byID[edge.From]
		to, okTo := byID[edge.To]
		if !okFrom || !okTo {
			skipped++
			p.Logger().Warn("Skipping edge with unknown endpoint", "from", edge.From, "to", edge.To)
			continue
		}

		id := ArrowID(edge)
		if drawn[id] {
			continue
		}
		drawn[id] = true
		next = append(next, arrow(id, edge, from, to))
	}

	if err := host.UpdateScene(api.SceneUpdate{Elements: next}); err != nil {
		return oops.In("flowview").With("plugin_id", ID).Wrapf(err, "update scene")
	}

	p.Logger().Info("Flow visualized", "arrows", len(drawn), "removed", removed, "skipped", skipped)
	return nil
}

func arrow(id string, edge Edge, from, to api.Element) api.Element {
	fx, fy := from.Center()
	tx, ty := to.Center()
	return api.Element{
		ID:           id,
		Type:         api.ElementArrow,
		X:            fx,
		Y:            fy,
		Width:        tx - fx,
		Height:       ty - fy,
		StrokeColor:  "#1971c2",
		Text:         edge.Label,
		StartBinding: &api.Binding{ElementID: edge.From},
		EndBinding:   &api.Binding{ElementID: edge.To},
		CustomData:   map[string]any{CustomDataKey: true},
	}
}

// DecodeEdges converts the accepted flow data shapes into edges
func DecodeEdges(data any) ([]Edge, error) {
	errb := oops.Code(CodeInvalidFlow).In("flowview")

	switch v := data.(type) {
	case nil:
		return nil, nil
	case []Edge:
		return v, nil
	case Flow:
		return v.Edges, nil
	case *Flow:
		if v == nil {
			return nil, nil
		}
		return v.Edges, nil
	case string:
		return DecodeEdges([]byte(v))
	case []byte:
		var edges []Edge
		if err := json.Unmarshal(v, &edges); err == nil {
			return edges, nil
		}
		var flow Flow
		if err := json.Unmarshal(v, &flow); err != nil {
			return nil, errb.Wrapf(ErrInvalidFlow, "decode flow json: %v", err)
		}
		return flow.Edges, nil
	default:
		return nil, errb.With("type", fmt.Sprintf("%T", data)).Wrapf(ErrInvalidFlow, "unsupported flow data %T", data)
	}
}
