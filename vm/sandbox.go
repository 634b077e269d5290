package vm

import (
	"sync"
	"sync/atomic"
)

// DefaultSandboxSize is the data segment size of a sandbox, in bytes.
const DefaultSandboxSize = 64 * 1024

// Sandbox is a reusable machine that hosts scratch allocations for one
// in-flight native call. It is rewound, not reallocated, between calls.
type Sandbox struct {
	m *Machine
}

// NewSandbox creates a sandbox with a data segment of size bytes.
func NewSandbox(size int) *Sandbox {
	if size <= 0 {
		size = DefaultSandboxSize
	}
	return &Sandbox{m: NewMachine("sandbox", size)}
}

// Rewind empties the sandbox heap and stack and returns its machine.
func (s *Sandbox) Rewind() *Machine {
	s.m.Reset()
	return s.m
}

// Machine returns the sandbox machine without rewinding it.
func (s *Sandbox) Machine() *Machine {
	return s.m
}

// SandboxPool hands out sandboxes so that no two concurrent calls share one.
// Sandboxes are created lazily and kept for reuse; the pool never frees them.
type SandboxPool struct {
	size    int
	mu      sync.Mutex
	idle    []*Sandbox
	created atomic.Int64
}

// NewSandboxPool creates a pool of sandboxes of size bytes each.
func NewSandboxPool(size int) *SandboxPool {
	if size <= 0 {
		size = DefaultSandboxSize
	}
	return &SandboxPool{size: size}
}

// Acquire checks out a rewound sandbox.
func (p *SandboxPool) Acquire() *Sandbox {
	p.mu.Lock()
	if n := len(p.idle); n > 0 {
		s := p.idle[n-1]
		p.idle = p.idle[:n-1]
		p.mu.Unlock()
		s.Rewind()
		return s
	}
	p.mu.Unlock()

	p.created.Add(1)
	return NewSandbox(p.size)
}

// Release returns a sandbox to the pool.
func (p *SandboxPool) Release(s *Sandbox) {
	if s == nil {
		return
	}
	p.mu.Lock()
	p.idle = append(p.idle, s)
	p.mu.Unlock()
}

// Created returns how many sandboxes the pool has allocated.
func (p *SandboxPool) Created() int {
	return int(p.created.Load())
}

// Idle returns how many sandboxes are waiting for reuse.
func (p *SandboxPool) Idle() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.idle)
}
