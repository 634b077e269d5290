// Package convert turns scripting-engine values into machine cells and
// writes output parameters back after a native call returns.
package convert

import (
	"math"

	"github.com/tliron/commonlog"

	"github.com/chazu/cellbridge/charset"
	"github.com/chazu/cellbridge/script"
	"github.com/chazu/cellbridge/vm"
)

var log = commonlog.GetLogger("cellbridge.convert")

// Field names of the reference object shapes.
//
// A reference wrapper is {__ptr: true, parent: {value: v}}: the native writes
// through the cell and parent.value is updated after the call.
// A reference alias is {__ref: true, value: v} and converts as v.
const (
	ValueField    = "value"
	ParentField   = "parent"
	PointerMarker = "__ptr"
	RefMarker     = "__ref"
)

// DefaultStringBufferSize is the minimum scratch size, in cells, of a string
// passed by reference.
const DefaultStringBufferSize = 4096

// Class is the closed set of argument shapes the converter understands.
type Class uint8

const (
	ClassUnsupported Class = iota
	ClassInt
	ClassFloat
	ClassBool
	ClassString
	ClassRefWrapper
	ClassRefAlias
)

var classNames = [...]string{
	ClassUnsupported: "unsupported",
	ClassInt:         "int",
	ClassFloat:       "float",
	ClassBool:        "bool",
	ClassString:      "string",
	ClassRefWrapper:  "ref-wrapper",
	ClassRefAlias:    "ref-alias",
}

func (c Class) String() string {
	if int(c) < len(classNames) {
		return classNames[c]
	}
	return "unknown"
}

// Converter converts values for one engine. It holds no per-call state and
// may be shared.
type Converter struct {
	Engine           script.Engine
	Charset          charset.Transcoder
	StringBufferSize int
}

// New creates a converter. A nil transcoder means strings pass through as
// UTF-8 bytes.
func New(e script.Engine, tr charset.Transcoder) *Converter {
	if tr == nil {
		tr = charset.Identity
	}
	return &Converter{
		Engine:           e,
		Charset:          tr,
		StringBufferSize: DefaultStringBufferSize,
	}
}

// classified carries what classification had to read anyway.
type classified struct {
	class  Class
	num    float64
	parent script.Value // ClassRefWrapper: the object owning value
	inner  script.Value // ClassRefWrapper: parent.value; ClassRefAlias: value
}

// Classify reports the shape of v.
func (c *Converter) Classify(v script.Value) Class {
	return c.classify(v).class
}

func (c *Converter) classify(v script.Value) classified {
	e := c.Engine
	switch e.Kind(v) {
	case script.KindNumber:
		n := e.ToNumber(v)
		if script.IsInt32(n) {
			return classified{class: ClassInt, num: n}
		}
		return classified{class: ClassFloat, num: n}
	case script.KindBool:
		return classified{class: ClassBool}
	case script.KindString:
		return classified{class: ClassString}
	case script.KindObject:
	default:
		return classified{class: ClassUnsupported}
	}

	if e.Has(v, PointerMarker) {
		if parent, ok := e.Get(v, ParentField); ok && e.Kind(parent) == script.KindObject {
			inner, _ := e.Get(parent, ValueField)
			switch e.Kind(inner) {
			case script.KindNumber, script.KindBool, script.KindString:
				return classified{class: ClassRefWrapper, parent: parent, inner: inner}
			}
		}
	}
	if e.Has(v, RefMarker) {
		inner, _ := e.Get(v, ValueField)
		return classified{class: ClassRefAlias, inner: inner}
	}
	return classified{class: ClassUnsupported}
}

// ToCell converts v for a call on m. Scratch memory is allotted on m's heap
// and owned by the returned Result. Values the converter does not understand
// become a zero cell.
func (c *Converter) ToCell(v script.Value, m *vm.Machine) Result {
	cl := c.classify(v)
	switch cl.class {
	case ClassInt:
		return Result{Cell: vm.Cell(int32(cl.num))}
	case ClassFloat:
		return Result{Cell: vm.FloatCell(float32(cl.num))}
	case ClassBool:
		return Result{Cell: vm.BoolCell(c.Engine.ToBool(v))}
	case ClassString:
		target := c.Charset.ToTarget(c.Engine.ToString(v))
		r, _ := c.stringScratch(m, target, len(target)+1)
		return r
	case ClassRefWrapper:
		return c.refToCell(cl, m)
	case ClassRefAlias:
		return c.ToCell(cl.inner, m)
	}
	return Result{}
}

func (c *Converter) refToCell(cl classified, m *vm.Machine) Result {
	e := c.Engine
	switch e.Kind(cl.inner) {
	case script.KindNumber:
		n := e.ToNumber(cl.inner)
		if n != math.Floor(n) {
			return c.refCell(m, cl.parent, vm.FloatCell(float32(n)), UpdateFloat)
		}
		return c.refCell(m, cl.parent, vm.Cell(script.ToInt32(n)), UpdateInt)
	case script.KindBool:
		return c.refCell(m, cl.parent, vm.BoolCell(e.ToBool(cl.inner)), UpdateBool)
	}

	target := c.Charset.ToTarget(e.ToString(cl.inner))
	size := max(c.StringBufferSize, len(target)+1)
	r, ok := c.stringScratch(m, target, size)
	if !ok {
		return r
	}
	r.Update = PendingUpdate{
		Kind:   UpdateString,
		Parent: cl.parent,
		Phys:   r.scratch.Phys(),
		Size:   size,
	}
	return r
}

// refCell allots a single seeded cell and records an update of kind against
// parent.
func (c *Converter) refCell(m *vm.Machine, parent script.Value, seed vm.Cell, kind UpdateKind) Result {
	s, err := vm.NewScratch(m, 1)
	if err != nil {
		log.Debugf("reference argument degraded to zero: %s", err)
		return Result{}
	}
	phys := s.Phys()
	phys[0] = seed
	return Result{
		Cell:    s.Addr(),
		scratch: s,
		Update:  PendingUpdate{Kind: kind, Parent: parent, Phys: phys},
	}
}

// stringScratch copies an encoded string into size cells of scratch, one byte
// per cell, zero terminated.
func (c *Converter) stringScratch(m *vm.Machine, target string, size int) (Result, bool) {
	s, err := vm.NewScratch(m, size)
	if err != nil {
		log.Debugf("string argument degraded to zero: %s", err)
		return Result{}, false
	}
	phys := s.Phys()
	for i := 0; i < len(target); i++ {
		phys[i] = vm.Cell(target[i])
	}
	phys[len(target)] = 0
	return Result{Cell: s.Addr(), scratch: s}, true
}

// ToEventResultCode maps a scripted handler's return value onto the machine's
// public return convention.
func (c *Converter) ToEventResultCode(v script.Value) vm.Cell {
	e := c.Engine
	switch e.Kind(v) {
	case script.KindBool:
		if e.ToBool(v) {
			return vm.Continue
		}
		return vm.Stop
	case script.KindNumber:
		if n := e.ToNumber(v); script.IsInt32(n) {
			return vm.Cell(int32(n))
		}
	}
	return vm.Continue
}
