package native

import (
	"bytes"
	"testing"

	"github.com/chazu/cellbridge/convert"
	"github.com/chazu/cellbridge/hook"
	"github.com/chazu/cellbridge/script"
	"github.com/chazu/cellbridge/vm"
)

type fixture struct {
	engine *script.GoEngine
	hooks  *hook.Chain
	mm     *Marshaler
}

func newFixture() *fixture {
	e := script.NewGoEngine()
	hooks := hook.NewChain(e)
	return &fixture{
		engine: e,
		hooks:  hooks,
		mm:     NewMarshaler(convert.New(e, nil), hooks, vm.NewSandboxPool(0)),
	}
}

// sum returns the sum of its argument cells.
func sum(m *vm.Machine, params []vm.Cell) vm.Cell {
	var s vm.Cell
	for _, c := range params[1:] {
		s += c
	}
	return s
}

// weightedSum returns sum(i * arg_i) so argument order matters.
func weightedSum(m *vm.Machine, params []vm.Cell) vm.Cell {
	var s vm.Cell
	for i, c := range params[1:] {
		s += vm.Cell(i+1) * c
	}
	return s
}

// setRefs writes 100+i through every reference argument.
func setRefs(m *vm.Machine, params []vm.Cell) vm.Cell {
	for i, addr := range params[1:] {
		if phys, err := m.Addr(addr); err == nil {
			phys[0] = vm.Cell(100 + i)
		}
	}
	return 0
}

// ---------------------------------------------------------------------------
// Registry
// ---------------------------------------------------------------------------

func TestGenerateBindings(t *testing.T) {
	table := vm.NewNativeTable()
	table.Register("floatadd", sum)
	table.Register("GetPlayerScore", sum)
	table.Declare("MissingNative")

	r := NewRegistry(nil)
	got := r.Generate(table)
	if len(got) != 2 || r.Len() != 2 {
		t.Fatalf("Generate produced %d bindings, want 2", len(got))
	}
	if _, ok := r.Get("MissingNative"); ok {
		t.Error("unresolved native was bound")
	}

	fa, ok := r.Get("floatadd")
	if !ok || !fa.FloatReturn {
		t.Errorf("floatadd binding = %+v, want float return", fa)
	}
	if fa.Hash != vm.HashName("floatadd") {
		t.Errorf("floatadd hash = %x", fa.Hash)
	}
	if gs, _ := r.Get("GetPlayerScore"); gs.FloatReturn {
		t.Error("GetPlayerScore marked float return")
	}

	r.Clear()
	if r.Len() != 0 {
		t.Error("Clear left bindings")
	}
}

func TestCustomFloatReturnList(t *testing.T) {
	r := NewRegistry([]string{"GetPlayerHealth"})
	if !r.IsFloatReturn("GetPlayerHealth") || r.IsFloatReturn("float") {
		t.Error("custom float-return list not honoured")
	}
}

func TestManifestRoundTrip(t *testing.T) {
	table := vm.NewNativeTable()
	table.Register("floatmul", sum)
	table.Register("print", sum)
	r := NewRegistry(nil)
	r.Generate(table)

	data, err := MarshalManifest(r.Manifest())
	if err != nil {
		t.Fatal(err)
	}
	again, _ := MarshalManifest(r.Manifest())
	if !bytes.Equal(data, again) {
		t.Error("manifest encoding is not deterministic")
	}

	m, err := UnmarshalManifest(data)
	if err != nil {
		t.Fatal(err)
	}
	if len(m.Bindings) != 2 || m.Bindings[0].Name != "floatmul" || !m.Bindings[0].FloatReturn {
		t.Errorf("manifest = %+v", m)
	}
	if m.Bindings[1].Hash != vm.HashName("print") {
		t.Errorf("print hash = %x", m.Bindings[1].Hash)
	}

	if _, err := UnmarshalManifest([]byte{0xff}); err == nil {
		t.Error("expected an error for garbage input")
	}
}

// ---------------------------------------------------------------------------
// Marshaler
// ---------------------------------------------------------------------------

func TestInvokeNoArgs(t *testing.T) {
	f := newFixture()
	var got []vm.Cell
	b := &Binding{Name: "GetTickCount", Native: func(m *vm.Machine, params []vm.Cell) vm.Cell {
		got = append([]vm.Cell(nil), params...)
		return 77
	}}

	v, err := f.mm.Invoke(b, nil)
	if err != nil {
		t.Fatal(err)
	}
	if v != 77 {
		t.Errorf("Invoke = %#v, want 77", v)
	}
	if len(got) != 1 || got[0] != 0 {
		t.Errorf("params = %v, want [0]", got)
	}
}

func TestInvokeParamBlock(t *testing.T) {
	f := newFixture()
	var got []vm.Cell
	b := &Binding{Name: "f", Native: func(m *vm.Machine, params []vm.Cell) vm.Cell {
		got = append([]vm.Cell(nil), params...)
		return 0
	}}

	f.mm.Invoke(b, []script.Value{5, 1.5, true})
	want := []vm.Cell{12, 5, vm.FloatCell(1.5), 1}
	if len(got) != len(want) {
		t.Fatalf("params = %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("params[%d] = %d, want %d", i, got[i], want[i])
		}
	}
}

func TestInvokeFloatReturn(t *testing.T) {
	f := newFixture()
	b := &Binding{Name: "floatadd", FloatReturn: true, Native: func(m *vm.Machine, params []vm.Cell) vm.Cell {
		return vm.FloatCell(params[1].Float() + params[2].Float())
	}}

	v, err := f.mm.Invoke(b, []script.Value{1.25, 2.5})
	if err != nil {
		t.Fatal(err)
	}
	if v != 3.75 {
		t.Errorf("floatadd(1.25, 2.5) = %#v, want 3.75", v)
	}
}

func TestInvokeNilNative(t *testing.T) {
	f := newFixture()
	if _, err := f.mm.Invoke(&Binding{Name: "x"}, nil); err != ErrNoNative {
		t.Errorf("err = %v, want ErrNoNative", err)
	}
	if _, err := f.mm.Call(NewRegistry(nil), "missing"); err == nil {
		t.Error("Call(missing) should fail")
	}
}

func TestInvokeHookVeto(t *testing.T) {
	for _, veto := range []script.Value{false, 0} {
		f := newFixture()
		called := false
		b := &Binding{Name: "Kick", Native: func(*vm.Machine, []vm.Cell) vm.Cell {
			called = true
			return 1
		}}
		f.hooks.Register("Kick", script.Func(func([]script.Value) (script.Value, error) {
			return veto, nil
		}))

		v, err := f.mm.Invoke(b, []script.Value{3})
		if err != nil {
			t.Fatal(err)
		}
		if called {
			t.Errorf("hook returning %#v: native was invoked", veto)
		}
		if v != veto {
			t.Errorf("hook returning %#v: Invoke = %#v", veto, v)
		}
	}
}

func TestInvokeHookPassThrough(t *testing.T) {
	f := newFixture()
	b := &Binding{Name: "sum", Native: sum}
	var seen []script.Value
	f.hooks.Register("sum", script.Func(func(args []script.Value) (script.Value, error) {
		seen = args
		return true, nil
	}))

	v, _ := f.mm.Invoke(b, []script.Value{2, 3})
	if v != 5 {
		t.Errorf("Invoke = %#v, want 5", v)
	}
	if len(seen) != 2 {
		t.Errorf("hook saw %v", seen)
	}
}

func TestInvokeWritesBackReferences(t *testing.T) {
	f := newFixture()
	b := &Binding{Name: "GetPlayerPos", Native: setRefs}

	var args []script.Value
	var parents []*script.Object
	for i := 0; i < 3; i++ {
		p := script.NewObject(map[string]script.Value{"value": 0})
		parents = append(parents, p)
		args = append(args, script.NewObject(map[string]script.Value{
			convert.PointerMarker: true,
			convert.ParentField:   p,
		}))
	}

	if _, err := f.mm.Invoke(b, args); err != nil {
		t.Fatal(err)
	}
	for i, p := range parents {
		if v, _ := f.engine.Get(p, "value"); v != 100+i {
			t.Errorf("ref %d = %#v, want %d", i, v, 100+i)
		}
	}
}

func TestSandboxRewoundAndReturned(t *testing.T) {
	f := newFixture()
	var heaps []vm.Cell
	b := &Binding{Name: "h", Native: func(m *vm.Machine, params []vm.Cell) vm.Cell {
		heaps = append(heaps, m.Heap())
		return 0
	}}

	for i := 0; i < 3; i++ {
		f.mm.Invoke(b, []script.Value{"a string", "another"})
	}
	if f.mm.Pool.Created() != 1 || f.mm.Pool.Idle() != 1 {
		t.Errorf("pool created %d idle %d, want 1/1", f.mm.Pool.Created(), f.mm.Pool.Idle())
	}
	for i := 1; i < len(heaps); i++ {
		if heaps[i] != heaps[0] {
			t.Errorf("heap at call %d = %d, want %d", i, heaps[i], heaps[0])
		}
	}
}

func argsOf(n int) []script.Value {
	args := make([]script.Value, n)
	for i := range args {
		switch i % 3 {
		case 0:
			args[i] = i
		case 1:
			args[i] = float64(i) + 0.5
		default:
			args[i] = i%2 == 0
		}
	}
	return args
}

func TestStackAndHeapPathsAgree(t *testing.T) {
	f := newFixture()
	b := &Binding{Name: "w", Native: weightedSum}

	for _, n := range []int{0, 1, StackArgs - 1, StackArgs, StackArgs + 1, 40} {
		args := argsOf(n)

		sb := f.mm.Pool.Acquire()
		stackRet, stackCells := f.mm.callStack(b, sb.Rewind(), args[:min(n, StackArgs)])
		heapRet, heapCells := f.mm.callHeap(b, sb.Rewind(), args[:min(n, StackArgs)])
		f.mm.Pool.Release(sb)

		if stackRet != heapRet {
			t.Errorf("n=%d: stack path = %d, heap path = %d", n, stackRet, heapRet)
		}
		if len(stackCells) != 0 || len(heapCells) != 0 {
			t.Errorf("n=%d: cells recorded without a tracer", n)
		}

		v, err := f.mm.Invoke(b, args)
		if err != nil {
			t.Fatal(err)
		}
		want := weightedSum(nil, append([]vm.Cell{0}, cellsOf(f, args)...))
		if v != int(want) {
			t.Errorf("n=%d: Invoke = %#v, want %d", n, v, want)
		}
	}
}

func cellsOf(f *fixture, args []script.Value) []vm.Cell {
	m := vm.NewMachine("expect", 1024)
	out := make([]vm.Cell, len(args))
	for i, a := range args {
		out[i] = f.mm.Converter.ToCell(a, m).Cell
	}
	return out
}

func TestRefsAcrossThreshold(t *testing.T) {
	for _, n := range []int{StackArgs, StackArgs + 1} {
		f := newFixture()
		b := &Binding{Name: "refs", Native: setRefs}

		args := make([]script.Value, n)
		parents := make([]*script.Object, n)
		for i := range args {
			parents[i] = script.NewObject(map[string]script.Value{"value": -1})
			args[i] = script.NewObject(map[string]script.Value{
				convert.PointerMarker: true,
				convert.ParentField:   parents[i],
			})
		}
		f.mm.Invoke(b, args)
		for i, p := range parents {
			if v, _ := f.engine.Get(p, "value"); v != 100+i {
				t.Errorf("n=%d: ref %d = %#v, want %d", n, i, v, 100+i)
			}
		}
	}
}

type memTracer struct {
	recs []CallRecord
}

func (t *memTracer) TraceCall(rec CallRecord) { t.recs = append(t.recs, rec) }

func TestTracer(t *testing.T) {
	f := newFixture()
	tr := &memTracer{}
	f.mm.Tracer = tr

	f.mm.Invoke(&Binding{Name: "sum", Native: sum}, []script.Value{4, 5})
	f.hooks.Register("sum", script.Func(func([]script.Value) (script.Value, error) { return 0, nil }))
	f.mm.Invoke(&Binding{Name: "sum", Native: sum}, []script.Value{4, 5})

	if len(tr.recs) != 2 {
		t.Fatalf("traced %d calls, want 2", len(tr.recs))
	}
	r := tr.recs[0]
	if r.Name != "sum" || r.Result != 9 || r.Hooked || len(r.Args) != 2 || r.Args[1] != 5 {
		t.Errorf("first record = %+v", r)
	}
	if !tr.recs[1].Hooked || tr.recs[1].Args != nil {
		t.Errorf("second record = %+v", tr.recs[1])
	}
}
