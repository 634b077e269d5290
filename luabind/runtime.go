package luabind

import (
	"fmt"
	"math"
	"os"
	"regexp"
	"strings"
	"sync"

	"github.com/tliron/commonlog"
	lua "github.com/yuin/gopher-lua"

	"github.com/chazu/cellbridge/bridge"
	"github.com/chazu/cellbridge/convert"
	"github.com/chazu/cellbridge/preprocess"
	"github.com/chazu/cellbridge/script"
)

var log = commonlog.GetLogger("cellbridge.lua")

// Global names installed into the Lua state.
const (
	NativeGlobal     = "Native"
	CallPublicGlobal = "Call_Public"
	HookGlobal       = "Native_Hook"
	PublicGlobal     = "Public"
	FloatGlobal      = "Float"
	RefGlobal        = "Ref"

	// PtrField is the field of a Ref holding its reference wrapper.
	PtrField = "ptr"
)

var validSignature = regexp.MustCompile(`^[ifsb]+$`)

// Runtime is a Lua state connected to a bridge. It is the bridge's event
// dispatcher: functions registered with Public receive machine events.
type Runtime struct {
	L            *lua.LState
	Engine       *Engine
	Bridge       *bridge.Bridge
	Preprocessor *preprocess.Transformer

	mu         sync.RWMutex
	listeners  map[string][]*lua.LFunction
	signatures map[string]string
}

// NewRuntime creates a Lua state, a bridge over it and installs the
// scripting surface. opts are passed to bridge.New; the runtime installs
// itself as the dispatcher.
func NewRuntime(opts ...bridge.Option) (*Runtime, error) {
	L := lua.NewState(lua.Options{SkipOpenLibs: true})
	if err := openLibs(L); err != nil {
		L.Close()
		return nil, err
	}

	r := &Runtime{
		L:            L,
		Engine:       NewEngine(L),
		Preprocessor: preprocess.NewFor(preprocess.Lua),
		listeners:    make(map[string][]*lua.LFunction),
		signatures:   make(map[string]string),
	}

	b, err := bridge.New(r.Engine, append(opts, bridge.WithDispatcher(r))...)
	if err != nil {
		L.Close()
		return nil, err
	}
	r.Bridge = b

	r.install()
	return r, nil
}

// libs is the subset of the standard library scripts get. io and os are left
// out; scripts reach the host through natives.
var libs = []struct {
	name string
	open lua.LGFunction
}{
	{lua.LoadLibName, lua.OpenPackage},
	{lua.BaseLibName, lua.OpenBase},
	{lua.TabLibName, lua.OpenTable},
	{lua.StringLibName, lua.OpenString},
	{lua.MathLibName, lua.OpenMath},
}

func openLibs(L *lua.LState) error {
	for _, lib := range libs {
		if err := L.CallByParam(lua.P{Fn: L.NewFunction(lib.open), NRet: 0, Protect: true}, lua.LString(lib.name)); err != nil {
			return fmt.Errorf("open %s: %w", lib.name, err)
		}
	}
	return nil
}

// Close tears down the bridge and the Lua state.
func (r *Runtime) Close() {
	r.Bridge.Close()
	r.L.Close()
}

// DoString preprocesses and runs a chunk of Lua source.
func (r *Runtime) DoString(src string) error {
	return r.run(src, "<string>")
}

// DoFile preprocesses and runs a Lua file.
func (r *Runtime) DoFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("cannot read %s: %w", path, err)
	}
	return r.run(string(data), path)
}

func (r *Runtime) run(src, name string) error {
	src = r.Preprocessor.Transform(src)
	fn, err := r.L.Load(strings.NewReader(src), name)
	if err != nil {
		return fmt.Errorf("loading %s: %w", name, err)
	}
	r.L.Push(fn)
	if err := r.L.PCall(0, lua.MultRet, nil); err != nil {
		return fmt.Errorf("running %s: %w", name, err)
	}
	return nil
}

// ---------------------------------------------------------------------------
// Dispatcher
// ---------------------------------------------------------------------------

// HasListeners implements bridge.Dispatcher.
func (r *Runtime) HasListeners(event string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.listeners[event]) > 0
}

// Signature implements bridge.Dispatcher.
func (r *Runtime) Signature(event string) string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.signatures[event]
}

// Emit implements bridge.Dispatcher. Listeners run in registration order;
// the last one's result is returned. A failing listener stops the event.
func (r *Runtime) Emit(event string, args []script.Value) (script.Value, error) {
	r.mu.RLock()
	fns := append([]*lua.LFunction(nil), r.listeners[event]...)
	r.mu.RUnlock()

	var ret script.Value = lua.LNil
	for _, fn := range fns {
		v, err := r.Engine.Call(fn, args)
		if err != nil {
			return nil, fmt.Errorf("listener for %s: %w", event, err)
		}
		ret = v
	}
	return ret, nil
}

// ---------------------------------------------------------------------------
// Scripting surface
// ---------------------------------------------------------------------------

func (r *Runtime) install() {
	L := r.L

	L.SetGlobal(NativeGlobal, r.proxy(func(L *lua.LState, name string) lua.LValue {
		if _, ok := r.Bridge.Registry.Get(name); !ok {
			L.RaiseError("%s", (&bridge.ReferenceError{Kind: "native", Name: name}).Error())
		}
		return L.NewFunction(func(L *lua.LState) int {
			v, err := r.Bridge.Invoke(name, args(L, 1))
			if err != nil {
				L.RaiseError("%s", err.Error())
			}
			L.Push(lv(v))
			return 1
		})
	}))

	L.SetGlobal(CallPublicGlobal, r.proxy(func(L *lua.LState, name string) lua.LValue {
		return L.NewFunction(func(L *lua.LState) int {
			v, err := r.Bridge.CallPublic(name, args(L, 1))
			if err != nil {
				L.RaiseError("%s", err.Error())
			}
			L.Push(lv(v))
			return 1
		})
	}))

	L.SetGlobal(HookGlobal, L.NewFunction(r.nativeHook))
	L.SetGlobal(PublicGlobal, L.NewFunction(r.public))
	L.SetGlobal(FloatGlobal, L.NewFunction(luaFloat))
	L.SetGlobal(RefGlobal, L.NewFunction(luaRef))
}

// proxy returns an empty table whose fields are produced on access by get.
func (r *Runtime) proxy(get func(L *lua.LState, name string) lua.LValue) *lua.LTable {
	L := r.L
	t := L.NewTable()
	mt := L.NewTable()
	L.SetField(mt, "__index", L.NewFunction(func(L *lua.LState) int {
		L.Push(get(L, L.CheckString(2)))
		return 1
	}))
	L.SetMetatable(t, mt)
	return t
}

// args collects the call arguments from position from onwards.
func args(L *lua.LState, from int) []script.Value {
	top := L.GetTop()
	if top < from {
		return nil
	}
	out := make([]script.Value, 0, top-from+1)
	for i := from; i <= top; i++ {
		out = append(out, L.Get(i))
	}
	return out
}

// Native_Hook(name, fn)
func (r *Runtime) nativeHook(L *lua.LState) int {
	name, ok := L.Get(1).(lua.LString)
	fn, isFn := L.Get(2).(*lua.LFunction)
	if !ok || !isFn {
		L.RaiseError("Usage: %s(string, function)", HookGlobal)
	}
	r.Bridge.RegisterHook(string(name), fn)
	return 0
}

// Public(name, [signature,] fn)
func (r *Runtime) public(L *lua.LState) int {
	name, ok := L.Get(1).(lua.LString)
	if !ok || name == "" {
		L.RaiseError("Event name must be a non-empty string.")
	}

	top := L.GetTop()
	fn, ok := L.Get(top).(*lua.LFunction)
	if !ok || top < 2 {
		L.RaiseError("Public '%s' requires a callback function.", name)
	}
	sig := ""
	if top > 2 {
		if s, ok := L.Get(2).(lua.LString); ok {
			sig = string(s)
		}
	}

	if sig != "" && !validSignature.MatchString(sig) {
		L.RaiseError("Public '%s' contains invalid signature types. Allowed: [i, f, s, b]. Got: '%s'", name, sig)
	}
	if fn.Proto != nil {
		n := int(fn.Proto.NumParameters)
		if n > 0 && sig == "" {
			L.RaiseError("Public '%s' implies parameters (%d) but no signature was provided.", name, n)
		}
		if len(sig) != n {
			L.RaiseError("Signature mismatch for '%s'. Signature '%s' expects %d args, but callback defines %d.", name, sig, len(sig), n)
		}
	}

	r.mu.Lock()
	r.signatures[string(name)] = sig
	r.listeners[string(name)] = append(r.listeners[string(name)], fn)
	r.mu.Unlock()

	log.Debugf("public %s registered with signature %q", name, sig)
	return 0
}

// Float(x) marks x as a float even when it is integral, by moving it to the
// next float64 towards +Inf. The cell conversion to float32 rounds the step
// away. Magnitudes of 2^52 and above have no fractional float64 neighbour
// and still pass as integers.
func luaFloat(L *lua.LState) int {
	n := float64(lua.LVAsNumber(L.Get(1)))
	if !math.IsInf(n, 0) && n == math.Trunc(n) {
		n = math.Nextafter(n, math.Inf(1))
	}
	L.Push(lua.LNumber(n))
	return 1
}

// Ref(initial) creates a reference: pass the table itself to read its value,
// or its ptr field to let a native write value.
func luaRef(L *lua.LState) int {
	init := L.Get(1)
	if init == lua.LNil {
		init = lua.LNumber(0)
	}
	ref := L.NewTable()
	L.SetField(ref, convert.ValueField, init)
	L.SetField(ref, convert.RefMarker, lua.LTrue)

	ptr := L.NewTable()
	L.SetField(ptr, convert.PointerMarker, lua.LTrue)
	L.SetField(ptr, convert.ParentField, ref)
	L.SetField(ref, PtrField, ptr)

	L.Push(ref)
	return 1
}
