// Package luasignal runs a sandboxed Lua script as a signal-emission plugin.
//
// The script may define any of these globals:
//
//	function on_scene_update(scene) end      -- scene.count, scene.elements[i].id/type/x/y/width/height/text
//	function on_selection_change(ids) end    -- sorted array of selected element ids
//
// and may call emit(type, payload) to publish a signal.
package luasignal

import (
	"context"
	"fmt"
	"os"
	"sort"
	"sync"
	"time"

	"github.com/samber/oops"
	lua "github.com/yuin/gopher-lua"

	"github.com/sammwyy/easel/api"
)

// ID is the plugin id
const ID = "lua-signal"

// CodeScript is the error code for script load and hook failures
const CodeScript = "LUA_SCRIPT_ERROR"

// Hook function names looked up in the script
const (
	HookSceneUpdate     = "on_scene_update"
	HookSelectionChange = "on_selection_change"
)

// DefaultTimeout bounds script loading and each hook call
const DefaultTimeout = time.Second

// unsafeBaseFunctions allow filesystem access and are removed from the state
var unsafeBaseFunctions = []string{"dofile", "loadfile", "loadstring", "load"}

// Plugin hosts one Lua script
type Plugin struct {
	*api.SignalBase

	script  string
	name    string
	timeout time.Duration
	state   *lua.LState
	mutex   sync.Mutex
}

// Compile-time interface checks.
var (
	_ api.SignalEmitter = (*Plugin)(nil)
	_ api.Disposer      = (*Plugin)(nil)
)

// New creates the plugin for the given script source
func New(sink api.SignalSink, script string) *Plugin {
	return &Plugin{
		SignalBase: api.NewSignalBase(api.PluginMeta{
			ID:          ID,
			Name:        "Lua Signal",
			Description: "Runs a sandboxed Lua script on canvas changes",
			Version:     "1.0.0",
			Author:      "Easel Team",
		}, sink),
		script:  script,
		name:    "<inline>",
		timeout: DefaultTimeout,
	}
}

// SetTimeout changes how long the script may run per load or hook call.
// Non-positive values restore DefaultTimeout.
func (p *Plugin) SetTimeout(timeout time.Duration) {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	p.mutex.Lock()
	p.timeout = timeout
	p.mutex.Unlock()
}

// bounded runs fn with a deadline on L. Must be called with p.mutex held.
func (p *Plugin) bounded(L *lua.LState, fn func() error) error {
	ctx, cancel := context.WithTimeout(context.Background(), p.timeout)
	defer cancel()

	L.SetContext(ctx)
	defer L.RemoveContext()
	return fn()
}

// NewFromFile creates the plugin from a script file
func NewFromFile(sink api.SignalSink, path string) (*Plugin, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read lua script: %w", err)
	}
	p := New(sink, string(data))
	p.name = path
	return p, nil
}

// Initialize binds the host and loads the script on first use
func (p *Plugin) Initialize(host api.HostAPI) error {
	if err := p.SignalBase.Initialize(host); err != nil {
		return err
	}

	p.mutex.Lock()
	defer p.mutex.Unlock()

	if p.state != nil {
		return nil
	}

	L, err := p.newState()
	if err != nil {
		return err
	}
	if err := p.bounded(L, func() error { return L.DoString(p.script) }); err != nil {
		L.Close()
		return oops.Code(CodeScript).In("lua").
			With("plugin_id", ID).
			With("script", p.name).
			Wrapf(err, "load script")
	}
	p.state = L

	p.Logger().Info("Lua script loaded", "script", p.name)
	return nil
}

// newState creates a sandboxed state with the emit function installed
func (p *Plugin) newState() (*lua.LState, error) {
	L := lua.NewState(lua.Options{SkipOpenLibs: true})

	libs := []struct {
		name string
		fn   lua.LGFunction
	}{
		{lua.BaseLibName, lua.OpenBase},
		{lua.TabLibName, lua.OpenTable},
		{lua.StringLibName, lua.OpenString},
		{lua.MathLibName, lua.OpenMath},
	}
	for _, lib := range libs {
		if err := L.CallByParam(lua.P{
			Fn:      L.NewFunction(lib.fn),
			NRet:    0,
			Protect: true,
		}, lua.LString(lib.name)); err != nil {
			L.Close()
			return nil, fmt.Errorf("failed to open library %s: %w", lib.name, err)
		}
	}

	for _, fn := range unsafeBaseFunctions {
		L.SetGlobal(fn, lua.LNil)
	}

	L.SetGlobal("emit", L.NewFunction(p.luaEmit))
	return L, nil
}

// luaEmit implements emit(type, payload)
func (p *Plugin) luaEmit(L *lua.LState) int {
	eventType := L.CheckString(1)
	payload := toGoValue(L.Get(2))

	if err := p.EmitSignal(eventType, payload); err != nil {
		L.RaiseError("emit %s: %s", eventType, err.Error())
	}
	return 0
}

// OnSceneUpdate calls on_scene_update(scene) while active
func (p *Plugin) OnSceneUpdate() error {
	if !p.IsActive() {
		return nil
	}
	host, err := p.Host()
	if err != nil {
		return err
	}
	elements := host.GetSceneElements()

	return p.call(HookSceneUpdate, func(L *lua.LState) lua.LValue {
		list := L.NewTable()
		for _, e := range elements {
			if e.IsDeleted {
				continue
			}
			t := L.NewTable()
			L.SetField(t, "id", lua.LString(e.ID))
			L.SetField(t, "type", lua.LString(e.Type))
			L.SetField(t, "x", lua.LNumber(e.X))
			L.SetField(t, "y", lua.LNumber(e.Y))
			L.SetField(t, "width", lua.LNumber(e.Width))
			L.SetField(t, "height", lua.LNumber(e.Height))
			L.SetField(t, "text", lua.LString(e.Text))
			list.Append(t)
		}

		scene := L.NewTable()
		L.SetField(scene, "count", lua.LNumber(list.Len()))
		L.SetField(scene, "elements", list)
		return scene
	})
}

// OnSelectionChange calls on_selection_change(ids) while active
func (p *Plugin) OnSelectionChange() error {
	if !p.IsActive() {
		return nil
	}
	host, err := p.Host()
	if err != nil {
		return err
	}

	var ids []string
	for id, selected := range host.GetAppState().SelectedElementIDs {
		if selected {
			ids = append(ids, id)
		}
	}
	sort.Strings(ids)

	return p.call(HookSelectionChange, func(L *lua.LState) lua.LValue {
		t := L.NewTable()
		for _, id := range ids {
			t.Append(lua.LString(id))
		}
		return t
	})
}

// call invokes a global hook with one argument if the script defines it
func (p *Plugin) call(hook string, arg func(L *lua.LState) lua.LValue) error {
	p.mutex.Lock()
	defer p.mutex.Unlock()

	L := p.state
	if L == nil {
		return nil
	}

	fn := L.GetGlobal(hook)
	if fn.Type() != lua.LTFunction {
		return nil
	}

	err := p.bounded(L, func() error {
		return L.CallByParam(lua.P{
			Fn:      fn,
			NRet:    0,
			Protect: true,
		}, arg(L))
	})
	if err != nil {
		return oops.Code(CodeScript).In("lua").
			With("plugin_id", ID).
			With("hook", hook).
			With("timeout", p.timeout).
			Wrapf(err, "call %s", hook)
	}
	return nil
}

// Dispose closes the Lua state
func (p *Plugin) Dispose() error {
	p.mutex.Lock()
	if p.state != nil {
		p.state.Close()
		p.state = nil
	}
	p.mutex.Unlock()

	return p.SignalBase.Dispose()
}

// toGoValue converts a Lua value into plain Go data. Tables with contiguous
// integer keys from 1 become slices, other tables become maps.
func toGoValue(lv lua.LValue) interface{} {
	return toGoValueVisited(lv, make(map[*lua.LTable]bool))
}

func toGoValueVisited(lv lua.LValue, visited map[*lua.LTable]bool) interface{} {
	switch v := lv.(type) {
	case lua.LBool:
		return bool(v)
	case lua.LNumber:
		f := float64(v)
		if f == float64(int64(f)) {
			return int64(f)
		}
		return f
	case lua.LString:
		return string(v)
	case *lua.LTable:
		if visited[v] {
			return nil
		}
		visited[v] = true
		return tableToGo(v, visited)
	default:
		return nil
	}
}

func tableToGo(t *lua.LTable, visited map[*lua.LTable]bool) interface{} {
	n := t.MaxN()
	count := 0
	t.ForEach(func(_, _ lua.LValue) {
		count++
	})

	if n > 0 && n == count {
		arr := make([]interface{}, n)
		for i := 1; i <= n; i++ {
			arr[i-1] = toGoValueVisited(t.RawGetInt(i), visited)
		}
		return arr
	}

	m := make(map[string]interface{}, count)
	t.ForEach(func(k, v lua.LValue) {
		m[k.String()] = toGoValueVisited(v, visited)
	})
	return m
}
