package vm

import (
	"fmt"
	"sync"
)

// Programs tracks the loaded machines so public functions can be found by
// name across all of them. The first machine added becomes the primary one.
type Programs struct {
	mu       sync.RWMutex
	machines []*Machine
	primary  *Machine
}

// NewPrograms creates an empty program set.
func NewPrograms() *Programs {
	return &Programs{}
}

// Add registers a loaded machine.
func (p *Programs) Add(m *Machine) {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.machines = append(p.machines, m)
	if p.primary == nil {
		p.primary = m
	}
}

// Remove unregisters a machine. If it was primary, the next loaded machine
// takes its place.
func (p *Programs) Remove(m *Machine) {
	p.mu.Lock()
	defer p.mu.Unlock()

	for i, x := range p.machines {
		if x == m {
			p.machines = append(p.machines[:i], p.machines[i+1:]...)
			break
		}
	}
	if p.primary == m {
		p.primary = nil
		if len(p.machines) > 0 {
			p.primary = p.machines[0]
		}
	}
}

// SetPrimary overrides the primary machine.
func (p *Programs) SetPrimary(m *Machine) {
	p.mu.Lock()
	p.primary = m
	p.mu.Unlock()
}

// Primary returns the primary machine, or nil.
func (p *Programs) Primary() *Machine {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.primary
}

// FindPublic searches the loaded machines in load order for a public named
// name, then falls back to the primary machine.
func (p *Programs) FindPublic(name string) (*Machine, int, error) {
	p.mu.RLock()
	machines := append([]*Machine(nil), p.machines...)
	primary := p.primary
	p.mu.RUnlock()

	for _, m := range machines {
		if idx, err := m.FindPublic(name); err == nil {
			return m, idx, nil
		}
	}
	if primary != nil {
		if idx, err := primary.FindPublic(name); err == nil {
			return primary, idx, nil
		}
	}
	return nil, -1, fmt.Errorf("public %q: %w", name, ErrNotFound)
}
