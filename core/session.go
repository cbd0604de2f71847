package core

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"sync"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/sammwyy/easel/api"
	"github.com/sammwyy/easel/core/canvas"
	"github.com/sammwyy/easel/core/config"
	"github.com/sammwyy/easel/core/eventbus"
	"github.com/sammwyy/easel/core/filewatcher"
	"github.com/sammwyy/easel/core/metrics"
	"github.com/sammwyy/easel/core/plugin"
	"github.com/sammwyy/easel/core/scenestore"
	"github.com/sammwyy/easel/plugins"
	"github.com/sammwyy/easel/plugins/luasignal"
)

// SessionSource is the signal source used by the session itself
const SessionSource = "session"

// Signal types handled by the session loop
const (
	SignalCoordinate   = "flow.coordinate"
	SignalSceneSave    = "scene.save"
	SignalSceneLoad    = "scene.load"
	SignalSceneReplace = "scene.replace"
	SignalSceneSelect  = "scene.select"
	SignalScenesChange = "scenes.changed"
)

// Session hosts one canvas and the plugins bound to it. Plugin methods only
// ever run on the session loop goroutine.
type Session struct {
	config        *config.Config
	logger        api.Logger
	canvas        *canvas.Canvas
	eventBus      *eventbus.EventBus
	sceneStore    *scenestore.Store
	sceneWatcher  *filewatcher.FileWatcher
	pluginManager *plugin.Manager
	metrics       *metrics.Metrics
	metricsServer *metrics.Server

	queueMutex sync.Mutex
	queue      []func()
	wake       chan struct{}
	notify     chan struct{}
	ready      chan struct{}
	done       chan struct{}

	pendingMutex     sync.Mutex
	pendingScene     bool
	pendingSelection bool
}

// NewSession creates a new session from configuration
func NewSession(cfg *config.Config) (*Session, error) {
	if cfg == nil {
		cfg = config.DefaultConfig()
	}

	s := &Session{
		config: cfg,
		logger: api.NewLogger("core"),
		canvas: canvas.New(),
		wake:   make(chan struct{}, 1),
		notify: make(chan struct{}, 1),
		ready:  make(chan struct{}),
		done:   make(chan struct{}),
	}

	if cfg.Core.MetricsAddr != "" {
		s.metricsServer, s.metrics = metrics.NewServer(cfg.Core.MetricsAddr, api.NewLogger("metrics"))
	} else {
		s.metrics = metrics.NewMetrics(prometheus.NewRegistry())
	}

	var err error
	s.sceneStore, err = scenestore.Open(cfg.Core.SceneDir, api.NewLogger("scenestore"))
	if err != nil {
		return nil, fmt.Errorf("failed to open scene store: %w", err)
	}

	s.sceneWatcher, err = filewatcher.NewFileWatcher(s.sceneStore.Dir(), scenestore.IsSceneFile, api.NewLogger("filewatcher"))
	if err != nil {
		return nil, fmt.Errorf("failed to create file watcher: %w", err)
	}

	s.eventBus = eventbus.NewEventBus(cfg.Core.SocketPath, api.NewLogger("eventbus"), s.metrics)
	s.pluginManager = plugin.NewManager(cfg.Core.PluginDir, api.NewLogger("plugin"), plugin.WithMetrics(s.metrics))

	s.canvas.Subscribe(s.onCanvasChange)
	s.eventBus.SetIngest(s.Submit)
	s.sceneWatcher.Subscribe(func(filewatcher.Event) {
		s.do(s.publishSceneCount)
	})

	return s, nil
}

// Canvas returns the session canvas
func (s *Session) Canvas() *canvas.Canvas {
	return s.canvas
}

// Bus returns the signal bus
func (s *Session) Bus() *eventbus.EventBus {
	return s.eventBus
}

// Plugins returns the plugin manager
func (s *Session) Plugins() *plugin.Manager {
	return s.pluginManager
}

// Scenes returns the scene store
func (s *Session) Scenes() *scenestore.Store {
	return s.sceneStore
}

// Metrics returns the session metrics
func (s *Session) Metrics() *metrics.Metrics {
	return s.metrics
}

// Ready is closed once plugins are active and the loop is running
func (s *Session) Ready() <-chan struct{} {
	return s.ready
}

// Run starts the session and blocks until ctx is cancelled
func (s *Session) Run(ctx context.Context) error {
	s.logger.Info("Starting easel session")
	defer close(s.done)

	// Check and create PID file
	if err := s.createPIDFile(); err != nil {
		return fmt.Errorf("failed to create PID file: %w", err)
	}
	defer s.removePIDFile()

	if s.metricsServer != nil {
		if err := s.metricsServer.Start(); err != nil {
			return fmt.Errorf("failed to start metrics server: %w", err)
		}
		defer func() {
			stopCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			if err := s.metricsServer.Stop(stopCtx); err != nil {
				s.logger.Error("Failed to stop metrics server", "error", err)
			}
		}()
	}

	// Start event bus
	if err := s.eventBus.Start(); err != nil {
		return fmt.Errorf("failed to start event bus: %w", err)
	}
	defer s.eventBus.Stop()

	// Start scene watcher
	if err := s.sceneWatcher.Start(); err != nil {
		return fmt.Errorf("failed to start file watcher: %w", err)
	}
	defer s.sceneWatcher.Stop()

	// Load plugins
	if err := s.loadPlugins(); err != nil {
		return fmt.Errorf("failed to load plugins: %w", err)
	}
	defer s.pluginManager.DisposeAll()

	if err := s.pluginManager.InitializeAll(s.canvas); err != nil {
		s.logger.Error("Some plugins failed to initialize", "error", err)
	}
	s.pluginManager.WireOrchestrators()

	if err := s.pluginManager.ActivateAll(); err != nil {
		s.logger.Error("Some plugins failed to activate", "error", err)
	}
	defer func() {
		if err := s.pluginManager.DeactivateAll(); err != nil {
			s.logger.Error("Some plugins failed to deactivate", "error", err)
		}
	}()

	s.logger.Info("Easel session started", "plugins", s.pluginManager.Len(), "scenes", s.sceneStore.Dir())
	close(s.ready)

	s.loop(ctx)

	s.logger.Info("Easel session shutting down")
	return nil
}

// loadPlugins adds the built-in plugins and the shared-object plugins,
// honoring the enabled flags from configuration
func (s *Session) loadPlugins() error {
	opts := plugins.Options{Sink: s.eventBus}
	if script, ok := s.config.PluginString(luasignal.ID, "script"); ok && script != "" {
		if !filepath.IsAbs(script) && s.config.Path != "" {
			script = filepath.Join(filepath.Dir(s.config.Path), script)
		}
		opts.LuaScript = script
	}

	builtins, err := plugins.Builtins(opts)
	if err != nil {
		return err
	}

	for _, p := range builtins {
		id := p.Meta().ID
		if !s.config.IsPluginEnabled(id) {
			s.logger.Info("Plugin disabled", "plugin", id)
			continue
		}
		if err := s.pluginManager.Add(p); err != nil {
			return err
		}
	}

	if err := s.pluginManager.LoadAll(); err != nil {
		return err
	}

	for _, lp := range s.pluginManager.Plugins() {
		id := lp.Plugin.Meta().ID
		if lp.FilePath != "" && !s.config.IsPluginEnabled(id) {
			s.logger.Info("Plugin disabled", "plugin", id, "path", lp.FilePath)
			if err := s.pluginManager.SetEnabled(id, false); err != nil {
				return err
			}
		}
	}
	return nil
}

// loop runs plugin work until ctx is cancelled
func (s *Session) loop(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case <-s.wake:
			s.runQueued()
		case <-s.notify:
			s.flush()
		}
	}
}

// onCanvasChange records a change for the loop. It may run on any goroutine,
// including the loop itself when a plugin updates the scene from a hook.
func (s *Session) onCanvasChange(change canvas.Change) {
	s.pendingMutex.Lock()
	switch change {
	case canvas.ChangeScene:
		s.pendingScene = true
	case canvas.ChangeSelection:
		s.pendingSelection = true
	}
	s.pendingMutex.Unlock()

	select {
	case s.notify <- struct{}{}:
	default:
	}
}

// flush dispatches the pending canvas changes to plugins
func (s *Session) flush() {
	s.pendingMutex.Lock()
	scene, selection := s.pendingScene, s.pendingSelection
	s.pendingScene, s.pendingSelection = false, false
	s.pendingMutex.Unlock()

	if scene {
		_ = s.pluginManager.DispatchSceneUpdate()
	}
	if selection {
		_ = s.pluginManager.DispatchSelectionChange()
	}
}

// do queues fn onto the loop. It never blocks, so it is safe from any
// goroutine including the loop; queued work runs in submission order.
func (s *Session) do(fn func()) {
	s.queueMutex.Lock()
	s.queue = append(s.queue, fn)
	s.queueMutex.Unlock()

	select {
	case s.wake <- struct{}{}:
	default:
	}
}

// runQueued runs the work queued so far. Work queued meanwhile wakes the
// loop again.
func (s *Session) runQueued() {
	s.queueMutex.Lock()
	queued := s.queue
	s.queue = nil
	s.queueMutex.Unlock()

	for _, fn := range queued {
		fn()
	}
}

// Submit queues an incoming signal for handling on the loop
func (s *Session) Submit(signal api.Signal) {
	s.do(func() {
		s.handleSignal(signal)
	})
}

// handleSignal runs session commands and forwards every other signal to
// bus subscribers
func (s *Session) handleSignal(signal api.Signal) {
	var err error

	switch signal.Type {
	case SignalCoordinate:
		err = s.coordinate(payloadString(signal.Payload, "orchestrator"))
	case SignalSceneSave:
		err = s.saveScene(payloadString(signal.Payload, "name"))
	case SignalSceneLoad:
		err = s.loadScene(payloadString(signal.Payload, "id"))
	case SignalSceneReplace:
		err = s.replaceScene(signal.Payload)
	case SignalSceneSelect:
		s.canvas.Select(payloadStrings(signal.Payload, "ids")...)
	default:
		err = s.eventBus.Publish(signal)
	}

	if err != nil {
		api.LogError(s.logger, "Failed to handle signal", err)
	}
}

// coordinate runs one orchestrator, or every orchestrator when id is empty
func (s *Session) coordinate(id string) error {
	if id != "" {
		return s.pluginManager.Coordinate(id)
	}
	for _, oid := range s.pluginManager.Orchestrators() {
		if err := s.pluginManager.Coordinate(oid); err != nil {
			api.LogError(s.logger, "Orchestrator failed", err)
		}
	}
	return nil
}

func (s *Session) saveScene(name string) error {
	_, err := s.sceneStore.Save(name, s.canvas.GetSceneElements(), s.canvas.GetAppState())
	return err
}

func (s *Session) loadScene(id string) error {
	scene, err := s.sceneStore.Load(id)
	if err != nil {
		return err
	}
	appState := scene.AppState
	return s.canvas.UpdateScene(api.SceneUpdate{
		Elements: scene.Elements,
		AppState: &appState,
	})
}

func (s *Session) replaceScene(payload any) error {
	var body struct {
		Elements []api.Element `json:"elements"`
	}
	data, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("failed to encode scene payload: %w", err)
	}
	if err := json.Unmarshal(data, &body); err != nil {
		return fmt.Errorf("failed to decode scene payload: %w", err)
	}
	if body.Elements == nil {
		body.Elements = []api.Element{}
	}
	return s.canvas.UpdateScene(api.SceneUpdate{Elements: body.Elements})
}

// publishSceneCount announces the number of stored scenes
func (s *Session) publishSceneCount() {
	summaries, err := s.sceneStore.List()
	if err != nil {
		s.logger.Error("Failed to list scenes", "error", err)
		return
	}
	if err := s.eventBus.Publish(api.Signal{
		Source:  SessionSource,
		Type:    SignalScenesChange,
		Payload: map[string]interface{}{"count": len(summaries)},
	}); err != nil {
		s.logger.Error("Failed to publish scene count", "error", err)
	}
}

func payloadString(payload any, key string) string {
	switch p := payload.(type) {
	case map[string]interface{}:
		if v, ok := p[key].(string); ok {
			return v
		}
	case map[string]string:
		return p[key]
	}
	return ""
}

func payloadStrings(payload any, key string) []string {
	p, ok := payload.(map[string]interface{})
	if !ok {
		return nil
	}
	switch v := p[key].(type) {
	case []string:
		return v
	case []interface{}:
		out := make([]string, 0, len(v))
		for _, item := range v {
			if str, ok := item.(string); ok {
				out = append(out, str)
			}
		}
		return out
	}
	return nil
}

// createPIDFile creates a PID file
func (s *Session) createPIDFile() error {
	pidFile := s.config.Core.PIDFile
	if pidFile == "" {
		return nil
	}

	// Check if PID file already exists
	if data, err := os.ReadFile(pidFile); err == nil {
		if pid, err := strconv.Atoi(string(data)); err == nil && pid != os.Getpid() {
			// Check if process is running
			if process, err := os.FindProcess(pid); err == nil {
				if err := process.Signal(syscall.Signal(0)); err == nil {
					return fmt.Errorf("session is already running with PID %d", pid)
				}
			}
		}
	}

	// Write current PID
	pid := os.Getpid()
	if err := os.WriteFile(pidFile, []byte(strconv.Itoa(pid)), 0644); err != nil {
		return fmt.Errorf("failed to write PID file: %w", err)
	}

	s.logger.Debug("Created PID file", "path", pidFile, "pid", pid)
	return nil
}

// removePIDFile removes the PID file
func (s *Session) removePIDFile() {
	if s.config.Core.PIDFile != "" {
		if err := os.Remove(s.config.Core.PIDFile); err != nil && !os.IsNotExist(err) {
			s.logger.Error("Failed to remove PID file", "path", s.config.Core.PIDFile, "error", err)
		}
	}
}
