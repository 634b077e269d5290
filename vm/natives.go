package vm

import (
	"sort"
	"sync"

	"github.com/zeebo/xxh3"
)

// Native is a machine-side function callable through the native convention.
// params[0] holds the byte size of the argument block and params[1:] the
// argument cells.
type Native func(m *Machine, params []Cell) Cell

// NativeName pairs a declared native name with its hash.
type NativeName struct {
	Hash uint32
	Name string
}

// HashName returns the stable identifier used to look up a native by name.
func HashName(name string) uint32 {
	return uint32(xxh3.HashString(name))
}

// NativeTable holds the natives a loaded program declares and the
// implementations registered for them. A name may be declared without an
// implementation; FindNative then reports nil.
type NativeTable struct {
	mu    sync.RWMutex
	funcs map[uint32]Native
	names map[uint32]string
}

// NewNativeTable creates an empty table.
func NewNativeTable() *NativeTable {
	return &NativeTable{
		funcs: make(map[uint32]Native),
		names: make(map[uint32]string),
	}
}

// Declare records a native name without an implementation.
func (t *NativeTable) Declare(name string) uint32 {
	h := HashName(name)
	t.mu.Lock()
	t.names[h] = name
	t.mu.Unlock()
	return h
}

// Register declares name and binds its implementation.
func (t *NativeTable) Register(name string, fn Native) uint32 {
	h := HashName(name)
	t.mu.Lock()
	t.names[h] = name
	t.funcs[h] = fn
	t.mu.Unlock()
	return h
}

// FindNative returns the implementation for hash, or nil.
func (t *NativeTable) FindNative(hash uint32) Native {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.funcs[hash]
}

// Lookup returns the implementation registered under name, or nil.
func (t *NativeTable) Lookup(name string) Native {
	return t.FindNative(HashName(name))
}

// Names returns every declared native, sorted by name.
func (t *NativeTable) Names() []NativeName {
	t.mu.RLock()
	out := make([]NativeName, 0, len(t.names))
	for h, n := range t.names {
		out = append(out, NativeName{Hash: h, Name: n})
	}
	t.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

// Len returns the number of declared natives.
func (t *NativeTable) Len() int {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return len(t.names)
}
