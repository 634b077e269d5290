package vm

// Scratch is heap memory allotted for the duration of one call. The owner
// must call Release exactly when the memory is no longer needed; releasing
// twice is a no-op.
type Scratch struct {
	m        *Machine
	addr     Cell
	phys     []Cell
	released bool
}

// NewScratch allots cells on m's heap.
func NewScratch(m *Machine, cells int) (*Scratch, error) {
	addr, phys, err := m.Allot(cells)
	if err != nil {
		return nil, err
	}
	return &Scratch{m: m, addr: addr, phys: phys}, nil
}

// Addr returns the machine address of the block.
func (s *Scratch) Addr() Cell { return s.addr }

// Phys returns the cells backing the block.
func (s *Scratch) Phys() []Cell { return s.phys }

// Len returns the block size in cells.
func (s *Scratch) Len() int { return len(s.phys) }

// Release returns the block to the machine's heap.
func (s *Scratch) Release() {
	if s == nil || s.released {
		return
	}
	s.released = true
	s.m.Release(s.addr)
}
