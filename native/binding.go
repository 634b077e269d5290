// Package native exposes machine natives to scripted code: it generates one
// binding per declared native and marshals calls through them.
package native

import (
	"errors"
	"sort"
	"sync"

	"github.com/tliron/commonlog"

	"github.com/chazu/cellbridge/vm"
)

var log = commonlog.GetLogger("cellbridge.native")

// ErrNoNative is returned when a binding has no implementation to call.
var ErrNoNative = errors.New("native: function pointer is nil")

// DefaultFloatReturn lists the natives whose result cell holds a float.
var DefaultFloatReturn = []string{
	"float", "floatabs", "floatsqroot",
	"floatadd", "floatsub", "floatmul", "floatdiv",
	"floatsin", "floatcos", "floattan",
	"floatasin", "floatacos", "floatatan", "floatatan2",
	"floatlog", "floatfract", "floatpower",
	"NetStats_PacketLossPercent",
}

// Binding connects a scripted callable to one native.
type Binding struct {
	Name        string
	Hash        uint32
	Native      vm.Native
	FloatReturn bool
}

// Registry holds the bindings generated for the loaded program.
type Registry struct {
	mu       sync.RWMutex
	bindings map[string]*Binding
	float    map[string]bool
}

// NewRegistry creates an empty registry. floatReturn names the natives
// returning floats; nil selects DefaultFloatReturn.
func NewRegistry(floatReturn []string) *Registry {
	if floatReturn == nil {
		floatReturn = DefaultFloatReturn
	}
	r := &Registry{
		bindings: make(map[string]*Binding),
		float:    make(map[string]bool, len(floatReturn)),
	}
	for _, name := range floatReturn {
		r.float[name] = true
	}
	return r
}

// IsFloatReturn reports whether name is on the float-return list.
func (r *Registry) IsFloatReturn(name string) bool {
	return r.float[name]
}

// Generate creates a binding for every native declared in table. Names whose
// hash does not resolve to an implementation are skipped with a warning.
// Bindings from an earlier Generate are kept unless replaced.
func (r *Registry) Generate(table *vm.NativeTable) []*Binding {
	names := table.Names()
	out := make([]*Binding, 0, len(names))

	for _, n := range names {
		fn := table.FindNative(n.Hash)
		if fn == nil {
			log.Warningf("native %s has no implementation, binding skipped", n.Name)
			continue
		}
		out = append(out, &Binding{
			Name:        n.Name,
			Hash:        n.Hash,
			Native:      fn,
			FloatReturn: r.float[n.Name],
		})
	}

	r.mu.Lock()
	for _, b := range out {
		r.bindings[b.Name] = b
	}
	r.mu.Unlock()

	log.Infof("generated %d native bindings (%d declared)", len(out), len(names))
	return out
}

// Get returns the binding for name.
func (r *Registry) Get(name string) (*Binding, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	b, ok := r.bindings[name]
	return b, ok
}

// Bindings returns every binding sorted by name.
func (r *Registry) Bindings() []*Binding {
	r.mu.RLock()
	out := make([]*Binding, 0, len(r.bindings))
	for _, b := range r.bindings {
		out = append(out, b)
	}
	r.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

// Len returns the number of bindings.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.bindings)
}

// Clear drops every binding.
func (r *Registry) Clear() {
	r.mu.Lock()
	r.bindings = make(map[string]*Binding)
	r.mu.Unlock()
}
