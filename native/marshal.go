package native

import (
	"fmt"
	"time"

	"github.com/chazu/cellbridge/convert"
	"github.com/chazu/cellbridge/hook"
	"github.com/chazu/cellbridge/script"
	"github.com/chazu/cellbridge/vm"
)

// StackArgs is the largest argument count served from fixed-size arrays.
const StackArgs = 16

// CallRecord describes one completed native call.
type CallRecord struct {
	Name     string
	Args     []vm.Cell // converted argument cells; nil when a hook vetoed
	Result   vm.Cell
	Hooked   bool // a hook stopped the call before the native ran
	Start    time.Time
	Duration time.Duration
}

// Tracer observes completed native calls.
type Tracer interface {
	TraceCall(rec CallRecord)
}

// Marshaler performs native calls for scripted callers.
type Marshaler struct {
	Converter *convert.Converter
	Hooks     *hook.Chain
	Pool      *vm.SandboxPool
	Tracer    Tracer
}

// NewMarshaler creates a marshaler. hooks and tracer may be nil.
func NewMarshaler(c *convert.Converter, hooks *hook.Chain, pool *vm.SandboxPool) *Marshaler {
	if pool == nil {
		pool = vm.NewSandboxPool(vm.DefaultSandboxSize)
	}
	return &Marshaler{Converter: c, Hooks: hooks, Pool: pool}
}

// Invoke calls b's native with args. Hooks run first and may supply the
// result instead. Scratch memory for the arguments lives in a sandbox checked
// out for the duration of the call; output parameters are written back after
// the native returns.
func (mm *Marshaler) Invoke(b *Binding, args []script.Value) (script.Value, error) {
	if b == nil || b.Native == nil {
		return nil, ErrNoNative
	}
	start := time.Now()

	if mm.Hooks != nil && mm.Hooks.Active() {
		if stop, v := mm.Hooks.Dispatch(b.Name, args); stop {
			mm.trace(CallRecord{Name: b.Name, Hooked: true, Start: start})
			return v, nil
		}
	}

	sb := mm.Pool.Acquire()
	defer mm.Pool.Release(sb)
	m := sb.Rewind()

	var ret vm.Cell
	var cells []vm.Cell
	if len(args) <= StackArgs {
		ret, cells = mm.callStack(b, m, args)
	} else {
		ret, cells = mm.callHeap(b, m, args)
	}

	mm.trace(CallRecord{Name: b.Name, Args: cells, Result: ret, Start: start})
	return mm.result(b, ret), nil
}

func (mm *Marshaler) result(b *Binding, ret vm.Cell) script.Value {
	e := mm.Converter.Engine
	if b.FloatReturn {
		return e.NewNumber(float64(ret.Float()))
	}
	return e.NewInt(int32(ret))
}

// callStack serves small calls without allocating per-call slices.
func (mm *Marshaler) callStack(b *Binding, m *vm.Machine, args []script.Value) (vm.Cell, []vm.Cell) {
	var results [StackArgs]convert.Result
	var params [StackArgs + 1]vm.Cell
	n := len(args)
	defer releaseAll(results[:n])

	params[0] = vm.Cell(n * vm.CellWidth)
	for i, a := range args {
		results[i] = mm.Converter.ToCell(a, m)
		params[i+1] = results[i].Cell
	}

	ret := b.Native(m, params[:n+1])
	mm.Converter.ApplyResults(results[:n])
	return ret, mm.traced(params[1 : n+1])
}

func (mm *Marshaler) callHeap(b *Binding, m *vm.Machine, args []script.Value) (vm.Cell, []vm.Cell) {
	n := len(args)
	results := make([]convert.Result, n)
	params := make([]vm.Cell, n+1)
	defer releaseAll(results)

	params[0] = vm.Cell(n * vm.CellWidth)
	for i, a := range args {
		results[i] = mm.Converter.ToCell(a, m)
		params[i+1] = results[i].Cell
	}

	ret := b.Native(m, params)
	mm.Converter.ApplyResults(results)
	return ret, mm.traced(params[1:])
}

// traced copies the argument cells when a tracer wants them.
func (mm *Marshaler) traced(cells []vm.Cell) []vm.Cell {
	if mm.Tracer == nil {
		return nil
	}
	return append([]vm.Cell(nil), cells...)
}

func (mm *Marshaler) trace(rec CallRecord) {
	if mm.Tracer == nil {
		return
	}
	rec.Duration = time.Since(rec.Start)
	mm.Tracer.TraceCall(rec)
}

func releaseAll(rs []convert.Result) {
	for i := len(rs) - 1; i >= 0; i-- {
		rs[i].Release()
	}
}

// Call is a convenience for invoking by name through a registry.
func (mm *Marshaler) Call(r *Registry, name string, args ...script.Value) (script.Value, error) {
	b, ok := r.Get(name)
	if !ok {
		return nil, fmt.Errorf("native %q: %w", name, ErrNoNative)
	}
	return mm.Invoke(b, args)
}
