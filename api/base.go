package api

import (
	"strings"
	"sync"

	"github.com/samber/oops"
)

// Base is the shared lifecycle implementation embedded by plugins. It stores
// the bound host reference and guards every host-dependent access.
type Base struct {
	meta   PluginMeta
	host   HostAPI
	state  State
	logger Logger
	mutex  sync.RWMutex
}

// NewBase creates the lifecycle base for a plugin
func NewBase(meta PluginMeta) *Base {
	meta = meta.Clone()
	return &Base{
		meta:   meta,
		state:  StateConstructed,
		logger: NewLogger("plugin").With("plugin", meta.ID),
	}
}

// Meta returns a copy of the plugin metadata
func (b *Base) Meta() PluginMeta {
	return b.meta.Clone()
}

// ID returns the plugin id
func (b *Base) ID() string {
	return b.meta.ID
}

// Name returns the display name
func (b *Base) Name() string {
	return b.meta.Name
}

// Logger returns the plugin logger
func (b *Base) Logger() Logger {
	b.mutex.RLock()
	defer b.mutex.RUnlock()
	return b.logger
}

// SetLogger replaces the plugin logger
func (b *Base) SetLogger(logger Logger) {
	if logger == nil {
		return
	}
	b.mutex.Lock()
	b.logger = logger.With("plugin", b.meta.ID)
	b.mutex.Unlock()
}

// State returns the lifecycle state
func (b *Base) State() State {
	b.mutex.RLock()
	defer b.mutex.RUnlock()
	return b.state
}

// IsActive reports whether the plugin is in the active state
func (b *Base) IsActive() bool {
	return b.State() == StateActive
}

// Initialize binds the host reference. Any previous reference is replaced.
// Dependencies are only logged here; satisfying them is up to orchestrators.
func (b *Base) Initialize(host HostAPI) error {
	if host == nil {
		return oops.Code(CodeInvalidHost).In("plugin").
			With("plugin_id", b.meta.ID).
			Wrap(ErrInvalidHost)
	}

	b.mutex.Lock()
	if b.state == StateDisposed {
		b.mutex.Unlock()
		return b.disposedError()
	}
	rebind := b.host != nil
	b.host = host
	if b.state == StateConstructed {
		b.state = StateInitialized
	}
	logger := b.logger
	b.mutex.Unlock()

	logger.Info("Plugin initialized", "name", b.meta.Name, "rebind", rebind)
	if len(b.meta.Dependencies) > 0 {
		logger.Info("Plugin dependencies", "depends_on", strings.Join(b.meta.Dependencies, ", "))
	}
	return nil
}

// Host returns the bound host API or the uninitialized-use error
func (b *Base) Host() (HostAPI, error) {
	b.mutex.RLock()
	defer b.mutex.RUnlock()

	if b.state == StateDisposed {
		return nil, b.disposedError()
	}
	if b.host == nil {
		return nil, oops.Code(CodeUninitialized).In("plugin").
			With("plugin_id", b.meta.ID).
			With("plugin_name", b.meta.Name).
			Wrapf(ErrUninitialized, "plugin %s (%s)", b.meta.Name, b.meta.ID)
	}
	return b.host, nil
}

// Activate marks the plugin active. Repeated calls only log again.
func (b *Base) Activate() error {
	b.mutex.Lock()
	if b.state == StateDisposed {
		b.mutex.Unlock()
		return b.disposedError()
	}
	b.state = StateActive
	logger := b.logger
	b.mutex.Unlock()

	logger.Info("Plugin activated", "name", b.meta.Name)
	return nil
}

// Deactivate marks an active plugin deactivated. Repeated calls only log again.
func (b *Base) Deactivate() error {
	b.mutex.Lock()
	if b.state == StateDisposed {
		b.mutex.Unlock()
		return b.disposedError()
	}
	if b.state == StateActive {
		b.state = StateDeactivated
	}
	logger := b.logger
	b.mutex.Unlock()

	logger.Info("Plugin deactivated", "name", b.meta.Name)
	return nil
}

// OnSceneUpdate does nothing by default
func (b *Base) OnSceneUpdate() error {
	return nil
}

// OnSelectionChange does nothing by default
func (b *Base) OnSelectionChange() error {
	return nil
}

// Dispose drops the host reference and moves to the terminal state
func (b *Base) Dispose() error {
	b.mutex.Lock()
	already := b.state == StateDisposed
	b.host = nil
	b.state = StateDisposed
	logger := b.logger
	b.mutex.Unlock()

	if !already {
		logger.Info("Plugin disposed", "name", b.meta.Name)
	}
	return nil
}

func (b *Base) disposedError() error {
	return oops.Code(CodeDisposed).In("plugin").
		With("plugin_id", b.meta.ID).
		Wrap(ErrDisposed)
}
