package api

import (
	"strings"
	"sync"
)

// Orchestrator is a plugin that manages other plugin instances and
// coordinates their combined behavior.
type Orchestrator interface {
	Plugin

	// RegisterPlugin admits p into the managed registry only when p's id is
	// one of the orchestrator's own dependencies. Rejections are logged and
	// reported as false; they are never errors.
	RegisterPlugin(p Plugin) bool

	// CoordinateFlow produces the combined effect across managed plugins
	CoordinateFlow() error
}

// OrchestratorBase implements the registry half of Orchestrator. Embedders
// supply CoordinateFlow.
type OrchestratorBase struct {
	*Base
	managed map[string]Plugin
	mutex   sync.RWMutex
}

// NewOrchestratorBase creates an orchestrator base. meta.Dependencies is the
// registration allow-list.
func NewOrchestratorBase(meta PluginMeta) *OrchestratorBase {
	return &OrchestratorBase{
		Base:    NewBase(meta),
		managed: make(map[string]Plugin),
	}
}

// Initialize binds the host and logs the resolved dependency list. It does
// not look for dependency instances; they arrive through RegisterPlugin.
func (o *OrchestratorBase) Initialize(host HostAPI) error {
	if err := o.Base.Initialize(host); err != nil {
		return err
	}

	deps := "None"
	if len(o.meta.Dependencies) > 0 {
		deps = strings.Join(o.meta.Dependencies, ", ")
	}
	o.Logger().Info("Orchestrator initialized", "name", o.meta.Name, "dependencies", deps)
	return nil
}

// RegisterPlugin admits p when its id is a declared dependency. A second
// registration under the same id replaces the first.
func (o *OrchestratorBase) RegisterPlugin(p Plugin) bool {
	if p == nil {
		o.Logger().Warn("Orchestrator ignored nil plugin registration", "name", o.meta.Name)
		return false
	}

	candidate := p.Meta()
	if !o.meta.DependsOn(candidate.ID) {
		o.Logger().Warn("Orchestrator rejected plugin not listed as a dependency",
			"name", o.meta.Name,
			"candidate", candidate.ID,
			"candidate_name", candidate.Name)
		return false
	}

	o.mutex.Lock()
	_, replaced := o.managed[candidate.ID]
	o.managed[candidate.ID] = p
	o.mutex.Unlock()

	o.Logger().Info("Orchestrator registered plugin",
		"name", o.meta.Name,
		"registered", candidate.ID,
		"replaced", replaced)
	return true
}

// Managed returns a registered plugin by id
func (o *OrchestratorBase) Managed(id string) (Plugin, bool) {
	o.mutex.RLock()
	defer o.mutex.RUnlock()

	p, ok := o.managed[id]
	return p, ok
}

// ManagedPlugins returns a copy of the registry
func (o *OrchestratorBase) ManagedPlugins() map[string]Plugin {
	o.mutex.RLock()
	defer o.mutex.RUnlock()

	result := make(map[string]Plugin, len(o.managed))
	for k, v := range o.managed {
		result[k] = v
	}
	return result
}

// Missing returns declared dependencies that are not registered yet, in
// declaration order
func (o *OrchestratorBase) Missing() []string {
	o.mutex.RLock()
	defer o.mutex.RUnlock()

	var missing []string
	for _, dep := range o.meta.Dependencies {
		if _, ok := o.managed[dep]; !ok {
			missing = append(missing, dep)
		}
	}
	return missing
}

// Dispose clears the registry and disposes the base
func (o *OrchestratorBase) Dispose() error {
	o.mutex.Lock()
	o.managed = make(map[string]Plugin)
	o.mutex.Unlock()

	return o.Base.Dispose()
}
