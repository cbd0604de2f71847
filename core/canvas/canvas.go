// Package canvas is the in-memory host canvas used by the embedding session.
package canvas

import (
	"sync"

	"github.com/sammwyy/easel/api"
)

// Change identifies what part of the canvas changed
type Change int

// Canvas changes
const (
	ChangeScene Change = iota + 1
	ChangeSelection
)

// String returns a string representation of the change
func (c Change) String() string {
	switch c {
	case ChangeScene:
		return "scene"
	case ChangeSelection:
		return "selection"
	default:
		return "unknown"
	}
}

// Observer is notified after a canvas mutation
type Observer func(change Change)

// Canvas holds scene content and view state and implements api.HostAPI
type Canvas struct {
	elements  []api.Element
	appState  api.AppState
	observers []Observer
	revision  uint64
	mutex     sync.RWMutex
}

// Compile-time interface check.
var _ api.HostAPI = (*Canvas)(nil)

// New creates an empty canvas
func New() *Canvas {
	return &Canvas{
		elements: []api.Element{},
		appState: api.AppState{Zoom: 1, SelectedElementIDs: map[string]bool{}},
	}
}

// GetSceneElements returns a copy of the current elements
func (c *Canvas) GetSceneElements() []api.Element {
	c.mutex.RLock()
	defer c.mutex.RUnlock()

	return api.CloneElements(c.elements)
}

// Revision returns how many times the elements were replaced
func (c *Canvas) Revision() uint64 {
	c.mutex.RLock()
	defer c.mutex.RUnlock()
	return c.revision
}

// GetAppState returns a copy of the current view state
func (c *Canvas) GetAppState() api.AppState {
	c.mutex.RLock()
	defer c.mutex.RUnlock()

	return c.appState.Clone()
}

// UpdateScene replaces elements and/or app state. Elements are stored exactly
// as given; every element write advances the scene revision.
func (c *Canvas) UpdateScene(update api.SceneUpdate) error {
	var changes []Change

	c.mutex.Lock()
	if update.Elements != nil {
		c.elements = api.CloneElements(update.Elements)
		c.revision++
		changes = append(changes, ChangeScene)
	}

	if update.AppState != nil {
		before := c.appState.SelectedElementIDs
		c.appState = update.AppState.Clone()
		if c.appState.SelectedElementIDs == nil {
			c.appState.SelectedElementIDs = map[string]bool{}
		}
		if !sameSelection(before, c.appState.SelectedElementIDs) {
			changes = append(changes, ChangeSelection)
		}
	}
	observers := append([]Observer(nil), c.observers...)
	c.mutex.Unlock()

	notify(observers, changes)
	return nil
}

// Select replaces the selection with ids
func (c *Canvas) Select(ids ...string) {
	selected := make(map[string]bool, len(ids))
	for _, id := range ids {
		selected[id] = true
	}

	c.mutex.Lock()
	changed := !sameSelection(c.appState.SelectedElementIDs, selected)
	c.appState.SelectedElementIDs = selected
	observers := append([]Observer(nil), c.observers...)
	c.mutex.Unlock()

	if changed {
		notify(observers, []Change{ChangeSelection})
	}
}

// Subscribe registers an observer called after every mutation
func (c *Canvas) Subscribe(observer Observer) {
	c.mutex.Lock()
	defer c.mutex.Unlock()

	c.observers = append(c.observers, observer)
}

func notify(observers []Observer, changes []Change) {
	for _, change := range changes {
		for _, observer := range observers {
			observer(change)
		}
	}
}

func sameSelection(a, b map[string]bool) bool {
	count := func(m map[string]bool) int {
		n := 0
		for _, v := range m {
			if v {
				n++
			}
		}
		return n
	}
	if count(a) != count(b) {
		return false
	}
	for k, v := range a {
		if v && !b[k] {
			return false
		}
	}
	return true
}
