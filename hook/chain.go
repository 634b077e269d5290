// Package hook keeps scripted interceptors for native calls. Interceptors
// run most-recently-registered first and may veto the call.
package hook

import (
	"sync"
	"sync/atomic"

	"github.com/google/uuid"
	"github.com/tliron/commonlog"

	"github.com/chazu/cellbridge/script"
)

var log = commonlog.GetLogger("cellbridge.hook")

// Handle identifies one registered interceptor.
type Handle struct {
	Name string
	ID   uuid.UUID
}

type entry struct {
	id uuid.UUID
	fn script.Value
}

// Chain maps native names to their interceptors. Registration happens at
// setup and teardown; Dispatch may be called from any goroutine.
type Chain struct {
	engine script.Engine

	mu      sync.RWMutex
	entries map[string][]entry
	active  atomic.Bool
}

// NewChain creates an empty chain calling interceptors through e.
func NewChain(e script.Engine) *Chain {
	return &Chain{
		engine:  e,
		entries: make(map[string][]entry),
	}
}

// Active reports whether any interceptor is registered. It is a single
// atomic load.
func (c *Chain) Active() bool {
	return c.active.Load()
}

// Register appends fn to the interceptors of name.
func (c *Chain) Register(name string, fn script.Value) Handle {
	h := Handle{Name: name, ID: uuid.New()}

	c.mu.Lock()
	c.entries[name] = append(c.entries[name], entry{id: h.ID, fn: fn})
	c.mu.Unlock()

	c.active.Store(true)
	log.Debugf("hook registered for %s (%s)", name, h.ID)
	return h
}

// Unregister removes the interceptor identified by h. It reports whether an
// entry was removed.
func (c *Chain) Unregister(h Handle) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	list := c.entries[h.Name]
	for i, e := range list {
		if e.id != h.ID {
			continue
		}
		list = append(list[:i:i], list[i+1:]...)
		if len(list) == 0 {
			delete(c.entries, h.Name)
		} else {
			c.entries[h.Name] = list
		}
		c.active.Store(len(c.entries) > 0)
		return true
	}
	return false
}

// Len returns the number of interceptors registered for name.
func (c *Chain) Len(name string) int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.entries[name])
}

// Dispatch runs the interceptors of name against args, newest first. The
// first interceptor returning false or a number that truncates to zero stops
// the chain; stop is then true and result is the value it returned. An
// interceptor that fails is logged and skipped.
func (c *Chain) Dispatch(name string, args []script.Value) (stop bool, result script.Value) {
	c.mu.RLock()
	list := c.entries[name]
	c.mu.RUnlock()

	// list is never mutated in place, so the snapshot stays valid unlocked.
	for i := len(list) - 1; i >= 0; i-- {
		v, err := c.engine.Call(list[i].fn, args)
		if err != nil {
			log.Errorf("hook for %s failed: %s", name, err)
			continue
		}
		if c.vetoes(v) {
			return true, v
		}
	}
	return false, nil
}

func (c *Chain) vetoes(v script.Value) bool {
	switch c.engine.Kind(v) {
	case script.KindBool:
		return !c.engine.ToBool(v)
	case script.KindNumber:
		return script.ToInt32(c.engine.ToNumber(v)) == 0
	}
	return false
}

// Clear drops every interceptor.
func (c *Chain) Clear() {
	c.mu.Lock()
	c.entries = make(map[string][]entry)
	c.mu.Unlock()

	c.active.Store(false)
}
