package plugin

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"plugin"
	"strings"
	"sync"

	"github.com/samber/oops"

	"github.com/sammwyy/easel/api"
	"github.com/sammwyy/easel/core/metrics"
)

// Hook names used in logs and metrics
const (
	HookSceneUpdate     = "scene_update"
	HookSelectionChange = "selection_change"
)

// LoadedPlugin represents a plugin known to the manager
type LoadedPlugin struct {
	Plugin   api.Plugin
	FilePath string
	Enabled  bool
}

// Manager owns plugin instances and drives their lifecycle against one host
type Manager struct {
	pluginDir string
	plugins   map[string]*LoadedPlugin
	order     []string
	logger    api.Logger
	metrics   *metrics.Metrics
	mutex     sync.RWMutex
}

// Option configures a Manager
type Option func(*Manager)

// WithMetrics records registrations and dispatches on m
func WithMetrics(m *metrics.Metrics) Option {
	return func(pm *Manager) {
		pm.metrics = m
	}
}

// NewManager creates a new plugin manager
func NewManager(pluginDir string, logger api.Logger, opts ...Option) *Manager {
	m := &Manager{
		pluginDir: pluginDir,
		plugins:   make(map[string]*LoadedPlugin),
		logger:    logger,
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Add registers a plugin instance. The id must be unique within the manager.
func (m *Manager) Add(p api.Plugin) error {
	return m.add(p, "")
}

func (m *Manager) add(p api.Plugin, path string) error {
	if p == nil {
		return oops.Code(api.CodeInvalidMeta).In("manager").Wrapf(api.ErrInvalidMeta, "plugin is nil")
	}

	meta := p.Meta()
	if err := meta.Validate(); err != nil {
		return err
	}

	m.mutex.Lock()
	defer m.mutex.Unlock()

	if _, exists := m.plugins[meta.ID]; exists {
		return oops.Code(api.CodeDuplicate).In("manager").
			With("plugin_id", meta.ID).
			Errorf("plugin %s is already loaded", meta.ID)
	}

	m.plugins[meta.ID] = &LoadedPlugin{
		Plugin:   p,
		FilePath: path,
		Enabled:  true,
	}
	m.order = append(m.order, meta.ID)

	m.logger.Info("Loaded plugin", "id", meta.ID, "name", meta.Name, "version", meta.Version)
	return nil
}

// LoadAll loads all shared-object plugins from the plugin directory
func (m *Manager) LoadAll() error {
	if m.pluginDir == "" {
		return nil
	}
	if _, err := os.Stat(m.pluginDir); os.IsNotExist(err) {
		m.logger.Warn("Plugin directory does not exist", "dir", m.pluginDir)
		return nil
	}

	entries, err := os.ReadDir(m.pluginDir)
	if err != nil {
		return fmt.Errorf("failed to read plugin directory: %w", err)
	}

	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), ".so") {
			continue
		}
		pluginPath := filepath.Join(m.pluginDir, entry.Name())
		if err := m.LoadPlugin(pluginPath); err != nil {
			m.logger.Error("Failed to load plugin", "path", pluginPath, "error", err)
		}
	}

	m.logger.Info("Loaded plugins", "count", m.Len())
	return nil
}

// LoadPlugin loads a single plugin from the specified path. The shared
// object must export `NewPlugin func() api.Plugin`.
func (m *Manager) LoadPlugin(pluginPath string) error {
	m.logger.Debug("Loading plugin", "path", pluginPath)

	p, err := plugin.Open(pluginPath)
	if err != nil {
		return fmt.Errorf("failed to open plugin: %w", err)
	}

	newPluginSym, err := p.Lookup("NewPlugin")
	if err != nil {
		return fmt.Errorf("plugin does not export NewPlugin function: %w", err)
	}

	newPluginFunc, ok := newPluginSym.(func() api.Plugin)
	if !ok {
		return fmt.Errorf("NewPlugin is not a valid function")
	}

	return m.add(newPluginFunc(), pluginPath)
}

// Get returns a plugin by id
func (m *Manager) Get(id string) (*LoadedPlugin, bool) {
	m.mutex.RLock()
	defer m.mutex.RUnlock()

	lp, exists := m.plugins[id]
	return lp, exists
}

// Len returns the number of plugins
func (m *Manager) Len() int {
	m.mutex.RLock()
	defer m.mutex.RUnlock()
	return len(m.order)
}

// Plugins returns all plugins in the order they were added
func (m *Manager) Plugins() []*LoadedPlugin {
	m.mutex.RLock()
	defer m.mutex.RUnlock()

	result := make([]*LoadedPlugin, 0, len(m.order))
	for _, id := range m.order {
		result = append(result, m.plugins[id])
	}
	return result
}

// SetEnabled toggles whether a plugin takes part in activation and dispatch
func (m *Manager) SetEnabled(id string, enabled bool) error {
	m.mutex.Lock()
	defer m.mutex.Unlock()

	lp, ok := m.plugins[id]
	if !ok {
		return notFound(id)
	}
	lp.Enabled = enabled
	return nil
}

// Order returns plugin ids so that every present dependency precedes its
// dependents. Ties keep insertion order. Absent dependencies are logged and
// otherwise ignored.
func (m *Manager) Order() ([]string, error) {
	m.mutex.RLock()
	defer m.mutex.RUnlock()

	const (
		unvisited = iota
		visiting
		done
	)
	marks := make(map[string]int, len(m.order))
	result := make([]string, 0, len(m.order))

	var visit func(id string, path []string) error
	visit = func(id string, path []string) error {
		switch marks[id] {
		case done:
			return nil
		case visiting:
			cycle := append(path, id)
			return oops.Code(api.CodeDependencyCycle).In("manager").
				With("cycle", cycle).
				Errorf("dependency cycle: %s", strings.Join(cycle, " -> "))
		}

		marks[id] = visiting
		for _, dep := range m.plugins[id].Plugin.Meta().Dependencies {
			if _, ok := m.plugins[dep]; !ok {
				m.logger.Warn("Plugin dependency not loaded", "plugin", id, "dependency", dep)
				continue
			}
			if err := visit(dep, append(path, id)); err != nil {
				return err
			}
		}
		marks[id] = done
		result = append(result, id)
		return nil
	}

	for _, id := range m.order {
		if err := visit(id, nil); err != nil {
			return nil, err
		}
	}
	return result, nil
}

// ordered returns the plugins in dependency order
func (m *Manager) ordered() ([]*LoadedPlugin, error) {
	ids, err := m.Order()
	if err != nil {
		return nil, err
	}

	m.mutex.RLock()
	defer m.mutex.RUnlock()

	result := make([]*LoadedPlugin, 0, len(ids))
	for _, id := range ids {
		result = append(result, m.plugins[id])
	}
	return result, nil
}

// InitializeAll binds host to every plugin in dependency order. A plugin that
// fails to initialize is disabled and the error is returned joined with others.
func (m *Manager) InitializeAll(host api.HostAPI) error {
	plugins, err := m.ordered()
	if err != nil {
		return err
	}

	var errs []error
	for _, lp := range plugins {
		meta := lp.Plugin.Meta()
		if err := lp.Plugin.Initialize(host); err != nil {
			api.LogError(m.logger, "Failed to initialize plugin", err)
			m.setEnabled(meta.ID, false)
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// WireOrchestrators offers every present and enabled dependency to each
// orchestrator. It returns, per orchestrator, the dependencies still
// unregistered after wiring.
func (m *Manager) WireOrchestrators() map[string][]string {
	incomplete := make(map[string][]string)
	for _, lp := range m.Plugins() {
		orch, ok := api.AsOrchestrator(lp.Plugin)
		if !ok {
			continue
		}
		meta := orch.Meta()
		for _, dep := range meta.Dependencies {
			target, exists := m.Get(dep)
			if !exists || !m.isEnabled(target) {
				m.logger.Warn("Orchestrator dependency not available", "orchestrator", meta.ID, "dependency", dep)
				continue
			}
			admitted := orch.RegisterPlugin(target.Plugin)
			m.metrics.RecordRegistration(meta.ID, admitted)
		}

		reporter, ok := orch.(interface{ Missing() []string })
		if !ok {
			continue
		}
		if missing := reporter.Missing(); len(missing) > 0 {
			m.logger.Warn("Orchestrator incomplete", "orchestrator", meta.ID, "missing", missing)
			incomplete[meta.ID] = missing
		}
	}
	return incomplete
}

// ActivateAll activates enabled plugins in dependency order
func (m *Manager) ActivateAll() error {
	plugins, err := m.ordered()
	if err != nil {
		return err
	}

	var errs []error
	for _, lp := range plugins {
		if !m.isEnabled(lp) {
			continue
		}
		if err := lp.Plugin.Activate(); err != nil {
			api.LogError(m.logger, "Failed to activate plugin", err)
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// DeactivateAll deactivates plugins in reverse dependency order
func (m *Manager) DeactivateAll() error {
	plugins, err := m.ordered()
	if err != nil {
		plugins = m.Plugins()
	}

	var errs []error
	for i := len(plugins) - 1; i >= 0; i-- {
		if err := plugins[i].Plugin.Deactivate(); err != nil {
			api.LogError(m.logger, "Failed to deactivate plugin", err)
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// DispatchSceneUpdate calls OnSceneUpdate on every enabled plugin
func (m *Manager) DispatchSceneUpdate() error {
	return m.dispatch(HookSceneUpdate, api.Plugin.OnSceneUpdate)
}

// DispatchSelectionChange calls OnSelectionChange on every enabled plugin
func (m *Manager) DispatchSelectionChange() error {
	return m.dispatch(HookSelectionChange, api.Plugin.OnSelectionChange)
}

// dispatch invokes hook on each enabled plugin in insertion order. One
// plugin's failure never keeps the others from being called.
func (m *Manager) dispatch(hook string, call func(api.Plugin) error) error {
	m.metrics.RecordDispatch(hook)

	var errs []error
	for _, lp := range m.Plugins() {
		if !m.isEnabled(lp) {
			continue
		}
		id := lp.Plugin.Meta().ID
		if err := call(lp.Plugin); err != nil {
			m.metrics.RecordHookError(id, hook)
			m.logger.Error("Plugin hook failed", "plugin", id, "hook", hook, "error", err)
			errs = append(errs, fmt.Errorf("%s %s: %w", id, hook, err))
		}
	}
	return errors.Join(errs...)
}

// Coordinate runs CoordinateFlow on the orchestrator with the given id
func (m *Manager) Coordinate(id string) error {
	lp, ok := m.Get(id)
	if !ok {
		return notFound(id)
	}
	orch, ok := api.AsOrchestrator(lp.Plugin)
	if !ok {
		return oops.Code(api.CodeNotOrchestrator).In("manager").
			With("plugin_id", id).
			Errorf("plugin %s is not an orchestrator", id)
	}
	return orch.CoordinateFlow()
}

// Orchestrators returns the ids of every orchestrator plugin in insertion order
func (m *Manager) Orchestrators() []string {
	var ids []string
	for _, lp := range m.Plugins() {
		if _, ok := api.AsOrchestrator(lp.Plugin); ok {
			ids = append(ids, lp.Plugin.Meta().ID)
		}
	}
	return ids
}

// DisposeAll disposes every plugin implementing api.Disposer in reverse
// dependency order and forgets all plugins
func (m *Manager) DisposeAll() {
	plugins, err := m.ordered()
	if err != nil {
		plugins = m.Plugins()
	}

	for i := len(plugins) - 1; i >= 0; i-- {
		d, ok := plugins[i].Plugin.(api.Disposer)
		if !ok {
			continue
		}
		if err := d.Dispose(); err != nil {
			m.logger.Error("Failed to dispose plugin", "id", plugins[i].Plugin.Meta().ID, "error", err)
		}
	}

	m.mutex.Lock()
	m.plugins = make(map[string]*LoadedPlugin)
	m.order = nil
	m.mutex.Unlock()

	m.logger.Info("Plugins disposed", "count", len(plugins))
}

func (m *Manager) isEnabled(lp *LoadedPlugin) bool {
	m.mutex.RLock()
	defer m.mutex.RUnlock()
	return lp.Enabled
}

func (m *Manager) setEnabled(id string, enabled bool) {
	m.mutex.Lock()
	defer m.mutex.Unlock()
	if lp, ok := m.plugins[id]; ok {
		lp.Enabled = enabled
	}
}

func notFound(id string) error {
	return oops.Code(api.CodeNotFound).In("manager").
		With("plugin_id", id).
		Errorf("plugin %s is not loaded", id)
}
