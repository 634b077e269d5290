package bridge

import (
	"fmt"

	"github.com/chazu/cellbridge/convert"
	"github.com/chazu/cellbridge/script"
	"github.com/chazu/cellbridge/vm"
)

// Signature characters for event parameters.
const (
	SigInt    = 'i'
	SigFloat  = 'f'
	SigString = 's'
	SigBool   = 'b'
)

// CallPublic runs the named public function of a loaded machine with args
// and returns its result. Arguments are converted against the machine that
// owns the public; reference arguments are written back after it returns.
// Execution errors inside the public are logged, not returned.
func (b *Bridge) CallPublic(name string, args []script.Value) (script.Value, error) {
	m, idx, err := b.Programs.FindPublic(name)
	if err != nil {
		return nil, &ReferenceError{Kind: "public", Name: name}
	}

	results := make([]convert.Result, len(args))
	defer func() {
		for i := len(results) - 1; i >= 0; i-- {
			results[i].Release()
		}
	}()
	for i, a := range args {
		results[i] = b.Converter.ToCell(a, m)
	}

	mark := m.Mark()
	for i := len(results) - 1; i >= 0; i-- {
		if err := m.Push(results[i].Cell); err != nil {
			m.Restore(mark)
			return nil, fmt.Errorf("call public %s: push argument %d: %w", name, i, err)
		}
	}

	ret, err := m.Exec(idx)
	m.Restore(mark)
	b.Converter.ApplyResults(results)

	if err != nil {
		log.Errorf("error executing public %s: %s", name, err)
	}
	return b.Engine.NewInt(int32(ret)), nil
}

// HandlePublic delivers a machine event to scripted listeners. It reports
// the listeners' result code and whether the machine should go on to run its
// own handler. Events on the skip list and events nobody listens to proceed
// untouched.
func (b *Bridge) HandlePublic(name string, m *vm.Machine, args []vm.Cell) (result vm.Cell, proceed bool) {
	if b.skip[name] || b.Dispatcher == nil || !b.Dispatcher.HasListeners(name) {
		return vm.Continue, true
	}

	values := b.decodeArgs(m, b.Dispatcher.Signature(name), args)
	v, err := b.Dispatcher.Emit(name, values)
	if err != nil {
		log.Errorf("listener for %s failed: %s", name, err)
		return vm.Continue, true
	}

	result = b.Converter.ToEventResultCode(v)
	if b.inverted[name] {
		return result, result != vm.Continue
	}
	return result, result != vm.Stop
}

// EventPublic returns a public function that offers each call to scripted
// listeners first and runs next only when they let the event proceed. next
// may be nil.
func (b *Bridge) EventPublic(name string, next vm.PublicFunc) vm.PublicFunc {
	return func(m *vm.Machine, args []vm.Cell) (vm.Cell, error) {
		ret, proceed := b.HandlePublic(name, m, args)
		if !proceed || next == nil {
			return ret, nil
		}
		return next(m, args)
	}
}

// decodeArgs converts event parameters by their signature characters.
// Parameters beyond the signature decode as integers.
func (b *Bridge) decodeArgs(m *vm.Machine, sig string, args []vm.Cell) []script.Value {
	e := b.Engine
	out := make([]script.Value, len(args))
	for i, c := range args {
		var kind byte = SigInt
		if i < len(sig) {
			kind = sig[i]
		}
		switch kind {
		case SigFloat:
			out[i] = e.NewNumber(float64(c.Float()))
		case SigString:
			out[i] = e.NewString(b.readString(m, c))
		case SigBool:
			out[i] = e.NewBool(c != 0)
		default:
			out[i] = e.NewInt(int32(c))
		}
	}
	return out
}

func (b *Bridge) readString(m *vm.Machine, addr vm.Cell) string {
	phys, err := m.Addr(addr)
	if err != nil {
		log.Debugf("event string argument unreadable: %s", err)
		return ""
	}
	n := vm.StrLen(phys)
	if n == 0 {
		return ""
	}
	return b.Converter.Charset.ToUTF8(vm.GetString(phys, n))
}
