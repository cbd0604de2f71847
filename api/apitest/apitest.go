// Package apitest provides fakes and assertions for testing plugins.
package apitest

import (
	"sync"
	"testing"

	"github.com/samber/oops"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sammwyy/easel/api"
)

// FakeHost is a minimal in-memory api.HostAPI
type FakeHost struct {
	mutex    sync.Mutex
	elements []api.Element
	appState api.AppState
	updates  int
}

// NewFakeHost creates a host holding the given elements
func NewFakeHost(elements ...api.Element) *FakeHost {
	return &FakeHost{elements: api.CloneElements(elements)}
}

func (h *FakeHost) GetSceneElements() []api.Element {
	h.mutex.Lock()
	defer h.mutex.Unlock()
	out := api.CloneElements(h.elements)
	if out == nil {
		out = []api.Element{}
	}
	return out
}

func (h *FakeHost) GetAppState() api.AppState {
	h.mutex.Lock()
	defer h.mutex.Unlock()
	return h.appState.Clone()
}

func (h *FakeHost) UpdateScene(update api.SceneUpdate) error {
	h.mutex.Lock()
	defer h.mutex.Unlock()
	if update.Elements != nil {
		h.elements = api.CloneElements(update.Elements)
	}
	if update.AppState != nil {
		h.appState = update.AppState.Clone()
	}
	h.updates++
	return nil
}

// Select replaces the selection
func (h *FakeHost) Select(ids ...string) {
	h.mutex.Lock()
	defer h.mutex.Unlock()
	h.appState.SelectedElementIDs = make(map[string]bool, len(ids))
	for _, id := range ids {
		h.appState.SelectedElementIDs[id] = true
	}
}

// Updates returns how many times UpdateScene was called
func (h *FakeHost) Updates() int {
	h.mutex.Lock()
	defer h.mutex.Unlock()
	return h.updates
}

// StubPlugin is a plugin that records its hook invocations
type StubPlugin struct {
	*api.Base

	mutex          sync.Mutex
	Calls          []string
	SceneErr       error
	SelectionErr   error
	InitializedFor []api.HostAPI
}

// NewStubPlugin creates a stub plugin with the given id and dependencies
func NewStubPlugin(id string, deps ...string) *StubPlugin {
	return &StubPlugin{
		Base: api.NewBase(api.PluginMeta{ID: id, Name: "stub " + id, Dependencies: deps}),
	}
}

func (p *StubPlugin) record(call string) {
	p.mutex.Lock()
	p.Calls = append(p.Calls, call)
	p.mutex.Unlock()
}

func (p *StubPlugin) Initialize(host api.HostAPI) error {
	p.record("initialize")
	p.mutex.Lock()
	p.InitializedFor = append(p.InitializedFor, host)
	p.mutex.Unlock()
	return p.Base.Initialize(host)
}

func (p *StubPlugin) Activate() error {
	p.record("activate")
	return p.Base.Activate()
}

func (p *StubPlugin) Deactivate() error {
	p.record("deactivate")
	return p.Base.Deactivate()
}

func (p *StubPlugin) OnSceneUpdate() error {
	p.record("scene")
	return p.SceneErr
}

func (p *StubPlugin) OnSelectionChange() error {
	p.record("selection")
	return p.SelectionErr
}

func (p *StubPlugin) Dispose() error {
	p.record("dispose")
	return p.Base.Dispose()
}

// CallLog returns a copy of the recorded calls
func (p *StubPlugin) CallLog() []string {
	p.mutex.Lock()
	defer p.mutex.Unlock()
	return append([]string(nil), p.Calls...)
}

// RecordingSink is an api.SignalSink that keeps every published signal
type RecordingSink struct {
	mutex   sync.Mutex
	signals []api.Signal
	Err     error
}

func (s *RecordingSink) Publish(signal api.Signal) error {
	if s.Err != nil {
		return s.Err
	}
	s.mutex.Lock()
	s.signals = append(s.signals, signal)
	s.mutex.Unlock()
	return nil
}

// Signals returns a copy of the published signals
func (s *RecordingSink) Signals() []api.Signal {
	s.mutex.Lock()
	defer s.mutex.Unlock()
	return append([]api.Signal(nil), s.signals...)
}

// Types returns the types of the published signals in order
func (s *RecordingSink) Types() []string {
	s.mutex.Lock()
	defer s.mutex.Unlock()
	types := make([]string, 0, len(s.signals))
	for _, sig := range s.signals {
		types = append(types, sig.Type)
	}
	return types
}

// AssertErrorCode asserts that err is an oops error with the given code
func AssertErrorCode(t *testing.T, err error, code string) {
	t.Helper()
	oopsErr, ok := oops.AsOops(err)
	require.True(t, ok, "expected oops error, got %T", err)
	assert.Equal(t, code, oopsErr.Code())
}
