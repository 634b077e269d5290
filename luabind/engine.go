// Package luabind runs Lua scripts against a bridge. It adapts gopher-lua to
// the engine interface and installs the scripting surface: Native,
// Call_Public, Native_Hook, Public, Float and Ref.
package luabind

import (
	"errors"
	"fmt"

	lua "github.com/yuin/gopher-lua"

	"github.com/chazu/cellbridge/script"
)

// Engine is a script.Engine over one Lua state. Like the state itself it
// must only be used from one goroutine at a time.
type Engine struct {
	L *lua.LState
}

// NewEngine wraps L.
func NewEngine(L *lua.LState) *Engine {
	return &Engine{L: L}
}

func lv(v script.Value) lua.LValue {
	if x, ok := v.(lua.LValue); ok && x != nil {
		return x
	}
	return lua.LNil
}

// Kind implements script.Engine. Lua has no null, so nil is undefined.
func (e *Engine) Kind(v script.Value) script.Kind {
	switch lv(v).(type) {
	case *lua.LNilType:
		return script.KindUndefined
	case lua.LBool:
		return script.KindBool
	case lua.LNumber:
		return script.KindNumber
	case lua.LString:
		return script.KindString
	case *lua.LTable:
		return script.KindObject
	case *lua.LFunction:
		return script.KindFunction
	}
	return script.KindOther
}

func (e *Engine) ToNumber(v script.Value) float64 {
	if n, ok := lv(v).(lua.LNumber); ok {
		return float64(n)
	}
	return 0
}

func (e *Engine) ToBool(v script.Value) bool {
	return lua.LVAsBool(lv(v))
}

func (e *Engine) ToString(v script.Value) string {
	return lua.LVAsString(lv(v))
}

func (e *Engine) Has(obj script.Value, key string) bool {
	v, ok := e.Get(obj, key)
	return ok && v != lua.LNil
}

// Get reads a field, honouring __index metamethods.
func (e *Engine) Get(obj script.Value, key string) (script.Value, bool) {
	t, ok := lv(obj).(*lua.LTable)
	if !ok {
		return lua.LNil, false
	}
	v := e.L.GetField(t, key)
	return v, v != lua.LNil
}

func (e *Engine) Set(obj script.Value, key string, val script.Value) error {
	t, ok := lv(obj).(*lua.LTable)
	if !ok {
		return fmt.Errorf("cannot set field %q on %s", key, lv(obj).Type())
	}
	e.L.SetField(t, key, lv(val))
	return nil
}

func (e *Engine) NewInt(n int32) script.Value { return lua.LNumber(n) }
func (e *Engine) NewNumber(f float64) script.Value { return lua.LNumber(f) }
func (e *Engine) NewBool(b bool) script.Value { return lua.LBool(b) }
func (e *Engine) NewString(s string) script.Value { return lua.LString(s) }
func (e *Engine) Undefined() script.Value { return lua.LNil }

// Call runs fn in protected mode and returns its first result.
func (e *Engine) Call(fn script.Value, args []script.Value) (script.Value, error) {
	f, ok := lv(fn).(*lua.LFunction)
	if !ok {
		return nil, script.ErrNotCallable
	}
	largs := make([]lua.LValue, len(args))
	for i, a := range args {
		largs[i] = lv(a)
	}
	if err := e.L.CallByParam(lua.P{Fn: f, NRet: 1, Protect: true}, largs...); err != nil {
		var apiErr *lua.ApiError
		if errors.As(err, &apiErr) {
			return nil, fmt.Errorf("lua: %s", apiErr.Object.String())
		}
		return nil, err
	}
	ret := e.L.Get(-1)
	e.L.Pop(1)
	return ret, nil
}

func (e *Engine) Global(name string) (script.Value, bool) {
	v := e.L.GetGlobal(name)
	return v, v != lua.LNil
}

var _ script.Engine = (*Engine)(nil)
