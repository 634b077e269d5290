package script

import (
	"errors"
	"fmt"
	"sync"
)

// ---------------------------------------------------------------------------
// GoEngine: an Engine over plain Go values
// ---------------------------------------------------------------------------

// Null is the GoEngine null value. A nil Value is undefined.
var Null = null{}

type null struct{}

// Func is a GoEngine function value.
type Func func(args []Value) (Value, error)

// Object is a GoEngine object: a set of named fields. Safe for concurrent
// use.
type Object struct {
	mu     sync.RWMutex
	fields map[string]Value
}

// NewObject creates an object holding a copy of fields.
func NewObject(fields map[string]Value) *Object {
	o := &Object{fields: make(map[string]Value, len(fields))}
	for k, v := range fields {
		o.fields[k] = v
	}
	return o
}

// Get returns the named field.
func (o *Object) Get(key string) (Value, bool) {
	o.mu.RLock()
	defer o.mu.RUnlock()
	v, ok := o.fields[key]
	return v, ok
}

// Set assigns the named field.
func (o *Object) Set(key string, v Value) {
	o.mu.Lock()
	o.fields[key] = v
	o.mu.Unlock()
}

// ErrNotCallable is returned when Call is given something other than a Func.
var ErrNotCallable = errors.New("script: value is not callable")

// GoEngine maps engine values onto Go values:
//
//	nil           undefined
//	Null          null
//	bool          boolean
//	ints, floats  number
//	string        string
//	*Object       object
//	Func          function
//
// Integers are produced as int and numbers as float64. GoEngine is safe for
// concurrent use.
type GoEngine struct {
	mu      sync.RWMutex
	globals map[string]Value
}

// NewGoEngine creates an engine with no globals.
func NewGoEngine() *GoEngine {
	return &GoEngine{globals: make(map[string]Value)}
}

// SetGlobal defines a global.
func (e *GoEngine) SetGlobal(name string, v Value) {
	e.mu.Lock()
	e.globals[name] = v
	e.mu.Unlock()
}

// Global implements Engine.
func (e *GoEngine) Global(name string) (Value, bool) {
	e.mu.RLock()
	defer e.mu.RUnlock()
	v, ok := e.globals[name]
	return v, ok
}

// Kind implements Engine.
func (e *GoEngine) Kind(v Value) Kind {
	switch v.(type) {
	case nil:
		return KindUndefined
	case null:
		return KindNull
	case bool:
		return KindBool
	case int, int8, int16, int32, int64, uint, uint8, uint16, uint32, uint64, float32, float64:
		return KindNumber
	case string:
		return KindString
	case *Object:
		return KindObject
	case Func:
		return KindFunction
	default:
		return KindOther
	}
}

// ToNumber implements Engine.
func (e *GoEngine) ToNumber(v Value) float64 {
	switch n := v.(type) {
	case int:
		return float64(n)
	case int8:
		return float64(n)
	case int16:
		return float64(n)
	case int32:
		return float64(n)
	case int64:
		return float64(n)
	case uint:
		return float64(n)
	case uint8:
		return float64(n)
	case uint16:
		return float64(n)
	case uint32:
		return float64(n)
	case uint64:
		return float64(n)
	case float32:
		return float64(n)
	case float64:
		return n
	}
	return 0
}

// ToBool implements Engine.
func (e *GoEngine) ToBool(v Value) bool {
	b, _ := v.(bool)
	return b
}

// ToString implements Engine.
func (e *GoEngine) ToString(v Value) string {
	s, _ := v.(string)
	return s
}

// Has implements Engine.
func (e *GoEngine) Has(obj Value, key string) bool {
	_, ok := e.Get(obj, key)
	return ok
}

// Get implements Engine.
func (e *GoEngine) Get(obj Value, key string) (Value, bool) {
	o, ok := obj.(*Object)
	if !ok {
		return nil, false
	}
	return o.Get(key)
}

// Set implements Engine.
func (e *GoEngine) Set(obj Value, key string, val Value) error {
	o, ok := obj.(*Object)
	if !ok {
		return fmt.Errorf("script: cannot set %q on %s", key, e.Kind(obj))
	}
	o.Set(key, val)
	return nil
}

func (e *GoEngine) NewInt(n int32) Value      { return int(n) }
func (e *GoEngine) NewNumber(f float64) Value { return f }
func (e *GoEngine) NewBool(b bool) Value      { return b }
func (e *GoEngine) NewString(s string) Value  { return s }
func (e *GoEngine) Undefined() Value          { return nil }

// Call implements Engine.
func (e *GoEngine) Call(fn Value, args []Value) (Value, error) {
	f, ok := fn.(Func)
	if !ok {
		return nil, ErrNotCallable
	}
	return f(args)
}
