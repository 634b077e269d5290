package vm

import (
	"errors"
	"fmt"
	"sync"
)

// Machine errors. These mirror the error codes a cell machine reports to its
// host; callers compare with errors.Is.
var (
	ErrMemory        = errors.New("vm: insufficient memory")
	ErrMemAccess     = errors.New("vm: invalid memory access")
	ErrStackOverflow = errors.New("vm: stack/heap collision")
	ErrIndex         = errors.New("vm: invalid public index")
	ErrNotFound      = errors.New("vm: function not found")
)

// stackMargin is the gap kept free between the heap top and the stack
// pointer, in bytes.
const stackMargin = 16 * CellWidth

// PublicFunc implements a public function hosted by a machine. args holds the
// pushed parameters in declaration order.
type PublicFunc func(m *Machine, args []Cell) (Cell, error)

type public struct {
	name string
	fn   PublicFunc
}

// Machine is the state block a native function receives. It owns a data
// segment addressed in bytes: the heap grows up from hlw and the stack grows
// down from stp.
//
// A Machine is not safe for concurrent use.
type Machine struct {
	Name string

	data []Cell

	hlw Cell // heap low water mark (end of static data)
	hea Cell // heap top
	stk Cell // stack pointer
	stp Cell // stack top

	paramcount int

	mu        sync.RWMutex
	publics   []public
	publicIdx map[string]int
}

// Mark captures the heap and stack pointers so they can be restored after a
// push/exec sequence.
type Mark struct {
	hea        Cell
	stk        Cell
	paramcount int
}

// NewMachine creates a machine with a data segment of size bytes (rounded up
// to whole cells). The whole segment is available to the heap and stack.
func NewMachine(name string, size int) *Machine {
	n := Cells(size)
	m := &Machine{
		Name:      name,
		data:      make([]Cell, n),
		publicIdx: make(map[string]int),
	}
	m.stp = Cell(n * CellWidth)
	m.Reset()
	return m
}

// Reset rewinds the heap and stack to empty and clears the parameter count.
func (m *Machine) Reset() {
	m.stk = m.stp
	m.hea = m.hlw
	m.paramcount = 0
}

// Size returns the data segment size in bytes.
func (m *Machine) Size() int {
	return len(m.data) * CellWidth
}

// Heap returns the current heap top.
func (m *Machine) Heap() Cell { return m.hea }

// Stack returns the current stack pointer.
func (m *Machine) Stack() Cell { return m.stk }

// ParamCount returns the number of cells pushed since the last Exec.
func (m *Machine) ParamCount() int { return m.paramcount }

// Mark returns the current heap and stack pointers.
func (m *Machine) Mark() Mark {
	return Mark{hea: m.hea, stk: m.stk, paramcount: m.paramcount}
}

// Restore rewinds the heap and stack pointers and the pending parameter
// count to a previous Mark.
func (m *Machine) Restore(mk Mark) {
	m.hea = mk.hea
	m.stk = mk.stk
	m.paramcount = mk.paramcount
}

// ---------------------------------------------------------------------------
// Heap
// ---------------------------------------------------------------------------

// Allot reserves cells on the heap and returns the machine address of the
// block together with a zeroed view of its cells.
func (m *Machine) Allot(cells int) (Cell, []Cell, error) {
	if cells <= 0 {
		return 0, nil, fmt.Errorf("allot %d cells: %w", cells, ErrMemory)
	}
	need := int64(cells) * CellWidth
	if int64(m.hea)+need > int64(m.stk)-stackMargin {
		return 0, nil, fmt.Errorf("allot %d cells: %w", cells, ErrMemory)
	}
	addr := m.hea
	m.hea += Cell(need)

	start := int(addr) / CellWidth
	phys := m.data[start : start+cells : start+cells]
	clear(phys)
	return addr, phys, nil
}

// Release frees every heap block at or above addr.
func (m *Machine) Release(addr Cell) {
	if m.hea > addr {
		m.hea = addr
	}
}

// Addr translates a machine address into a view of the cells starting there.
// The view ends at the end of the region (heap or stack) containing addr.
func (m *Machine) Addr(addr Cell) ([]Cell, error) {
	if addr < 0 || addr%CellWidth != 0 {
		return nil, fmt.Errorf("address %d: %w", addr, ErrMemAccess)
	}
	var end Cell
	switch {
	case addr < m.hea:
		end = m.hea
	case addr >= m.stk && addr < m.stp:
		end = m.stp
	default:
		return nil, fmt.Errorf("address %d: %w", addr, ErrMemAccess)
	}
	return m.data[int(addr)/CellWidth : int(end)/CellWidth], nil
}

// ---------------------------------------------------------------------------
// Stack and publics
// ---------------------------------------------------------------------------

// Push pushes a cell onto the stack. Arguments for Exec are pushed in
// reverse order.
func (m *Machine) Push(c Cell) error {
	if m.stk-CellWidth < m.hea+stackMargin {
		return ErrStackOverflow
	}
	m.stk -= CellWidth
	m.data[int(m.stk)/CellWidth] = c
	m.paramcount++
	return nil
}

// RegisterPublic adds (or replaces) a public function and returns its index.
func (m *Machine) RegisterPublic(name string, fn PublicFunc) int {
	m.mu.Lock()
	defer m.mu.Unlock()

	if idx, ok := m.publicIdx[name]; ok {
		m.publics[idx].fn = fn
		return idx
	}
	idx := len(m.publics)
	m.publics = append(m.publics, public{name: name, fn: fn})
	m.publicIdx[name] = idx
	return idx
}

// FindPublic returns the index of the named public function.
func (m *Machine) FindPublic(name string) (int, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	idx, ok := m.publicIdx[name]
	if !ok {
		return -1, fmt.Errorf("public %q: %w", name, ErrNotFound)
	}
	return idx, nil
}

// Exec runs the public function at index with the cells pushed since the last
// Exec, then pops them.
func (m *Machine) Exec(index int) (Cell, error) {
	m.mu.RLock()
	if index < 0 || index >= len(m.publics) {
		m.mu.RUnlock()
		return 0, fmt.Errorf("exec %d: %w", index, ErrIndex)
	}
	fn := m.publics[index].fn
	m.mu.RUnlock()

	n := m.paramcount
	base := int(m.stk) / CellWidth
	args := make([]Cell, n)
	copy(args, m.data[base:base+n])

	m.paramcount = 0
	ret, err := fn(m, args)
	m.stk += Cell(n * CellWidth)
	return ret, err
}
