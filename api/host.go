package api

// HostAPI is the canvas surface exposed to plugins. One instance is shared by
// every plugin of a host session; plugins hold a reference, never ownership.
type HostAPI interface {
	// GetSceneElements returns a read-only snapshot of the drawable elements
	// in scene order.
	GetSceneElements() []Element

	// GetAppState returns a snapshot of the current view state
	GetAppState() AppState

	// UpdateScene replaces host scene content
	UpdateScene(update SceneUpdate) error
}

// Element is a drawable item on the canvas
type Element struct {
	ID              string         `json:"id"`
	Type            string         `json:"type"`
	X               float64        `json:"x"`
	Y               float64        `json:"y"`
	Width           float64        `json:"width"`
	Height          float64        `json:"height"`
	Angle           float64        `json:"angle,omitempty"`
	StrokeColor     string         `json:"strokeColor,omitempty"`
	BackgroundColor string         `json:"backgroundColor,omitempty"`
	Text            string         `json:"text,omitempty"`
	StartBinding    *Binding       `json:"startBinding,omitempty"`
	EndBinding      *Binding       `json:"endBinding,omitempty"`
	Version         int            `json:"version"`
	IsDeleted       bool           `json:"isDeleted,omitempty"`
	CustomData      map[string]any `json:"customData,omitempty"`
}

// Binding attaches an arrow end to another element
type Binding struct {
	ElementID string `json:"elementId"`
}

// Center returns the center point of the element's bounding box
func (e Element) Center() (float64, float64) {
	return e.X + e.Width/2, e.Y + e.Height/2
}

// Element types used by the built-in plugins
const (
	ElementRectangle = "rectangle"
	ElementEllipse   = "ellipse"
	ElementArrow     = "arrow"
)

// AppState is the host's view state
type AppState struct {
	Name                string          `json:"name,omitempty"`
	ViewBackgroundColor string          `json:"viewBackgroundColor,omitempty"`
	ScrollX             float64         `json:"scrollX"`
	ScrollY             float64         `json:"scrollY"`
	Zoom                float64         `json:"zoom"`
	SelectedElementIDs  map[string]bool `json:"selectedElementIds,omitempty"`
}

// Clone returns a copy that shares no maps with s
func (s AppState) Clone() AppState {
	out := s
	if s.SelectedElementIDs != nil {
		out.SelectedElementIDs = make(map[string]bool, len(s.SelectedElementIDs))
		for k, v := range s.SelectedElementIDs {
			out.SelectedElementIDs[k] = v
		}
	}
	return out
}

// SceneUpdate describes a scene replacement. A nil Elements slice leaves the
// elements untouched (an empty non-nil slice clears the scene); a nil
// AppState leaves the view state untouched.
type SceneUpdate struct {
	Elements []Element `json:"elements,omitempty"`
	AppState *AppState `json:"appState,omitempty"`
}

// CloneElements copies a slice of elements including bindings and custom data
func CloneElements(elements []Element) []Element {
	if elements == nil {
		return nil
	}
	out := make([]Element, len(elements))
	for i, e := range elements {
		if e.StartBinding != nil {
			b := *e.StartBinding
			e.StartBinding = &b
		}
		if e.EndBinding != nil {
			b := *e.EndBinding
			e.EndBinding = &b
		}
		if e.CustomData != nil {
			cd := make(map[string]any, len(e.CustomData))
			for k, v := range e.CustomData {
				cd[k] = v
			}
			e.CustomData = cd
		}
		out[i] = e
	}
	return out
}
