// Package plugins assembles the plugins shipped with easel.
package plugins

import (
	"github.com/sammwyy/easel/api"
	"github.com/sammwyy/easel/plugins/beacon"
	"github.com/sammwyy/easel/plugins/datareader"
	"github.com/sammwyy/easel/plugins/flowview"
	"github.com/sammwyy/easel/plugins/luasignal"
	"github.com/sammwyy/easel/plugins/pipeline"
)

// Options configures the built-in plugins
type Options struct {
	// Sink receives signals from the signal-emission plugins
	Sink api.SignalSink

	// LuaScript is the path of the lua-signal script; empty leaves the
	// plugin out
	LuaScript string
}

// Builtins creates the built-in plugins, dependencies before dependents
func Builtins(opts Options) ([]api.Plugin, error) {
	result := []api.Plugin{
		datareader.New(),
		flowview.New(),
		beacon.New(opts.Sink),
		pipeline.New(),
	}

	if opts.LuaScript != "" {
		lp, err := luasignal.NewFromFile(opts.Sink, opts.LuaScript)
		if err != nil {
			return nil, err
		}
		result = append(result, lp)
	}

	return result, nil
}

// Info describes a plugin for listings
type Info struct {
	Meta         api.PluginMeta   `json:"meta"`
	Capabilities []api.Capability `json:"capabilities"`
	Source       string           `json:"source"`
	Enabled      bool             `json:"enabled"`
}

// Catalog describes every built-in plugin, including the optional ones
func Catalog() []Info {
	all := []api.Plugin{
		datareader.New(),
		flowview.New(),
		beacon.New(nil),
		pipeline.New(),
		luasignal.New(nil, ""),
	}

	result := make([]Info, 0, len(all))
	for _, p := range all {
		result = append(result, Describe(p, "builtin", true))
	}
	return result
}

// Describe builds the listing entry of a plugin
func Describe(p api.Plugin, source string, enabled bool) Info {
	caps := api.Capabilities(p)
	if caps == nil {
		caps = []api.Capability{}
	}
	return Info{
		Meta:         p.Meta(),
		Capabilities: caps,
		Source:       source,
		Enabled:      enabled,
	}
}
