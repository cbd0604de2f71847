package api

import (
	"time"

	"github.com/oklog/ulid/v2"
	"github.com/samber/oops"
)

// FlowVisualizer is implemented by plugins that render or communicate a
// data-flow view on the canvas.
type FlowVisualizer interface {
	Plugin
	VisualizeFlow(data any) error
}

// SignalEmitter is implemented by plugins that emit typed events outward
type SignalEmitter interface {
	Plugin
	EmitSignal(eventType string, payload any) error
}

// Capability names a structural plugin variant
type Capability string

// Known capabilities
const (
	CapabilityFlow         Capability = "flow"
	CapabilitySignal       Capability = "signal"
	CapabilityOrchestrator Capability = "orchestrator"
)

// Capabilities lists the variants p implements, in a fixed order
func Capabilities(p Plugin) []Capability {
	var caps []Capability
	if _, ok := p.(FlowVisualizer); ok {
		caps = append(caps, CapabilityFlow)
	}
	if _, ok := p.(SignalEmitter); ok {
		caps = append(caps, CapabilitySignal)
	}
	if _, ok := p.(Orchestrator); ok {
		caps = append(caps, CapabilityOrchestrator)
	}
	return caps
}

// AsFlowVisualizer narrows p to the flow-visualization capability
func AsFlowVisualizer(p Plugin) (FlowVisualizer, bool) {
	fv, ok := p.(FlowVisualizer)
	return fv, ok
}

// AsSignalEmitter narrows p to the signal-emission capability
func AsSignalEmitter(p Plugin) (SignalEmitter, bool) {
	se, ok := p.(SignalEmitter)
	return se, ok
}

// AsOrchestrator narrows p to the orchestrator capability
func AsOrchestrator(p Plugin) (Orchestrator, bool) {
	o, ok := p.(Orchestrator)
	return o, ok
}

// SignalBase is the lifecycle base for signal-emission plugins. It implements
// EmitSignal by publishing onto the sink given at construction.
type SignalBase struct {
	*Base
	sink SignalSink
}

// NewSignalBase creates a signal-emission base publishing to sink
func NewSignalBase(meta PluginMeta, sink SignalSink) *SignalBase {
	return &SignalBase{
		Base: NewBase(meta),
		sink: sink,
	}
}

// EmitSignal publishes a signal stamped with this plugin as its source
func (s *SignalBase) EmitSignal(eventType string, payload any) error {
	errb := oops.Code(CodeInvalidSignal).In("signal").With("plugin_id", s.ID())

	if eventType == "" {
		return errb.Wrapf(ErrInvalidSignal, "event type is required")
	}
	if s.sink == nil {
		return errb.With("type", eventType).Wrapf(ErrInvalidSignal, "no signal sink configured")
	}

	signal := Signal{
		ID:        ulid.Make().String(),
		Source:    s.ID(),
		Type:      eventType,
		Timestamp: time.Now(),
		Payload:   payload,
	}
	if err := s.sink.Publish(signal); err != nil {
		return oops.In("signal").
			With("plugin_id", s.ID()).
			With("type", eventType).
			Wrapf(err, "publish signal")
	}

	s.Logger().Debug("Signal emitted", "type", eventType, "id", signal.ID)
	return nil
}
