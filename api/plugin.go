package api

// Plugin is the main interface that all canvas plugins must implement.
// Embedding *Base provides default implementations of every method.
type Plugin interface {
	// Meta returns plugin metadata
	Meta() PluginMeta

	// Initialize binds the host canvas API. Calling it again rebinds.
	Initialize(host HostAPI) error

	// Activate is called when the plugin is enabled
	Activate() error

	// Deactivate is called when the plugin is disabled. A deactivated
	// plugin may be activated again.
	Deactivate() error

	// OnSceneUpdate is called by the host after the scene content changed
	OnSceneUpdate() error

	// OnSelectionChange is called by the host after the selection changed
	OnSelectionChange() error
}

// Disposer is implemented by plugins that release resources when the host
// session ends. A disposed plugin cannot be initialized again.
type Disposer interface {
	Dispose() error
}
