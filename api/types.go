package api

import (
	"time"

	"github.com/Masterminds/semver/v3"
	"github.com/samber/oops"
)

// PluginMeta contains metadata about a plugin
type PluginMeta struct {
	ID           string   `json:"id" toml:"id"`
	Name         string   `json:"name" toml:"name"`
	Description  string   `json:"description,omitempty" toml:"description"`
	Dependencies []string `json:"dependencies,omitempty" toml:"dependencies"`
	Version      string   `json:"version,omitempty" toml:"version"`
	Author       string   `json:"author,omitempty" toml:"author"`
}

// Clone returns a copy whose dependency list is not shared with m
func (m PluginMeta) Clone() PluginMeta {
	out := m
	if m.Dependencies != nil {
		out.Dependencies = append([]string(nil), m.Dependencies...)
	}
	return out
}

// DependsOn reports whether id is in the dependency list
func (m PluginMeta) DependsOn(id string) bool {
	for _, dep := range m.Dependencies {
		if dep == id {
			return true
		}
	}
	return false
}

// Validate checks the identity invariants: a non-empty id, no self
// dependency, no empty or repeated dependency, and a semver version if set.
func (m PluginMeta) Validate() error {
	errb := oops.Code(CodeInvalidMeta).In("plugin").With("plugin_id", m.ID)

	if m.ID == "" {
		return errb.Wrapf(ErrInvalidMeta, "plugin id is required")
	}

	seen := make(map[string]struct{}, len(m.Dependencies))
	for _, dep := range m.Dependencies {
		switch {
		case dep == "":
			return errb.Wrapf(ErrInvalidMeta, "empty dependency id")
		case dep == m.ID:
			return errb.Wrapf(ErrInvalidMeta, "plugin %s depends on itself", m.ID)
		}
		if _, dup := seen[dep]; dup {
			return errb.With("dependency", dep).Wrapf(ErrInvalidMeta, "dependency %s listed twice", dep)
		}
		seen[dep] = struct{}{}
	}

	if m.Version != "" {
		if _, err := semver.NewVersion(m.Version); err != nil {
			return errb.With("version", m.Version).Wrapf(ErrInvalidMeta, "invalid version: %v", err)
		}
	}

	return nil
}

// State is the lifecycle state of a plugin instance
type State int

// Lifecycle states
const (
	// StateConstructed - fields set, no host reference
	StateConstructed State = iota

	// StateInitialized - host reference bound
	StateInitialized

	// StateActive - activated
	StateActive

	// StateDeactivated - deactivated, may be activated again
	StateDeactivated

	// StateDisposed - terminal
	StateDisposed
)

// String returns a string representation of the state
func (s State) String() string {
	switch s {
	case StateConstructed:
		return "constructed"
	case StateInitialized:
		return "initialized"
	case StateActive:
		return "active"
	case StateDeactivated:
		return "deactivated"
	case StateDisposed:
		return "disposed"
	default:
		return "unknown"
	}
}

// Signal is an event emitted by a plugin outward to the host
type Signal struct {
	ID        string    `json:"id"`
	Source    string    `json:"source"`
	Type      string    `json:"type"`
	Timestamp time.Time `json:"timestamp"`
	Payload   any       `json:"payload,omitempty"`
}

// SignalFilter defines criteria for filtering signals
type SignalFilter struct {
	Sources []string          `json:"sources,omitempty"`
	Types   []string          `json:"types,omitempty"`
	Regex   map[string]string `json:"regex,omitempty"`
}

// SignalHandler is a function that processes signals
type SignalHandler func(signal Signal) error

// SignalSink receives the signals emitted by plugins
type SignalSink interface {
	Publish(signal Signal) error
}

// SignalSinkFunc adapts a function to SignalSink
type SignalSinkFunc func(signal Signal) error

// Publish calls f(signal)
func (f SignalSinkFunc) Publish(signal Signal) error {
	return f(signal)
}
