package convert

import (
	"github.com/chazu/cellbridge/script"
	"github.com/chazu/cellbridge/vm"
)

// UpdateKind tags what a pending update writes back.
type UpdateKind uint8

const (
	UpdateNone UpdateKind = iota
	UpdateInt
	UpdateFloat
	UpdateBool
	UpdateString
)

// PendingUpdate describes a value to write into Parent.value once the native
// call that received the scratch cells has returned. It borrows the scratch
// memory and must not outlive the call.
type PendingUpdate struct {
	Kind   UpdateKind
	Parent script.Value
	Phys   []vm.Cell
	Size   int // string buffer size in cells
}

// Result is one converted argument: the cell to pass, the scratch memory
// backing it (if any) and an optional pending update.
type Result struct {
	Cell    vm.Cell
	Update  PendingUpdate
	scratch *vm.Scratch
}

// HasUpdate reports whether the argument is an output parameter.
func (r *Result) HasUpdate() bool {
	return r.Update.Kind != UpdateNone
}

// Scratch returns the memory owned by the result, or nil.
func (r *Result) Scratch() *vm.Scratch {
	return r.scratch
}

// Release frees the result's scratch memory. Any pending update is dropped
// with it.
func (r *Result) Release() {
	r.scratch.Release()
	r.scratch = nil
	r.Update = PendingUpdate{}
}

// ApplyUpdates writes each update back into its parent object, in order.
func (c *Converter) ApplyUpdates(updates []PendingUpdate) {
	for i := range updates {
		c.apply(&updates[i])
	}
}

// ApplyResults applies the pending updates carried by rs, in order.
func (c *Converter) ApplyResults(rs []Result) {
	for i := range rs {
		if rs[i].HasUpdate() {
			c.apply(&rs[i].Update)
		}
	}
}

func (c *Converter) apply(u *PendingUpdate) {
	if u.Kind == UpdateNone || len(u.Phys) == 0 {
		return
	}

	e := c.Engine
	var v script.Value
	switch u.Kind {
	case UpdateInt:
		v = e.NewInt(int32(u.Phys[0]))
	case UpdateFloat:
		v = e.NewNumber(float64(u.Phys[0].Float()))
	case UpdateBool:
		v = e.NewBool(u.Phys[0] != 0)
	case UpdateString:
		raw := vm.GetString(u.Phys, u.Size)
		v = e.NewString(c.Charset.ToUTF8(raw))
	default:
		return
	}

	if err := e.Set(u.Parent, ValueField, v); err != nil {
		log.Warningf("write back to reference failed: %s", err)
	}
}
