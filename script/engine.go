// Package script defines the scripting-engine side of the native call bridge.
//
// The bridge never inspects engine values directly. It asks the Engine for a
// value's Kind, reads primitives through the accessor methods, and builds new
// values through the constructor methods.
package script

import "math"

// Value is an opaque engine value.
type Value any

// Kind is the dynamic type of an engine value as seen by the bridge.
type Kind uint8

const (
	KindUndefined Kind = iota
	KindNull
	KindBool
	KindNumber
	KindString
	KindObject
	KindFunction
	KindOther
)

var kindNames = [...]string{
	KindUndefined: "undefined",
	KindNull:      "null",
	KindBool:      "boolean",
	KindNumber:    "number",
	KindString:    "string",
	KindObject:    "object",
	KindFunction:  "function",
	KindOther:     "other",
}

func (k Kind) String() string {
	if int(k) < len(kindNames) {
		return kindNames[k]
	}
	return "unknown"
}

// Engine is the scripting runtime the bridge talks to. Implementations are
// not required to be safe for concurrent use unless documented otherwise;
// the bridge only touches an engine from the goroutine that owns it.
type Engine interface {
	// Kind classifies v.
	Kind(v Value) Kind

	// ToNumber, ToBool and ToString read primitives. They are only called
	// on values of the matching Kind.
	ToNumber(v Value) float64
	ToBool(v Value) bool
	ToString(v Value) string

	// Has reports whether obj carries the named field.
	Has(obj Value, key string) bool
	// Get reads a field; ok is false when the field is missing.
	Get(obj Value, key string) (val Value, ok bool)
	// Set writes a field.
	Set(obj Value, key string, val Value) error

	NewInt(n int32) Value
	NewNumber(f float64) Value
	NewBool(b bool) Value
	NewString(s string) Value
	Undefined() Value

	// Call invokes fn with args. A raised script error is returned as err.
	Call(fn Value, args []Value) (Value, error)
	// Global resolves a global by name.
	Global(name string) (Value, bool)
}

// IsInt32 reports whether f is exactly representable as an int32. Negative
// zero is not.
func IsInt32(f float64) bool {
	if f != math.Trunc(f) || f < math.MinInt32 || f > math.MaxInt32 {
		return false
	}
	return f != 0 || !math.Signbit(f)
}

// ToInt32 converts f with wrap-around semantics: NaN and infinities become 0,
// everything else is truncated and reduced modulo 2^32.
func ToInt32(f float64) int32 {
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return 0
	}
	t := math.Trunc(f)
	m := math.Mod(t, 1<<32)
	if m < 0 {
		m += 1 << 32
	}
	return int32(uint32(m))
}
