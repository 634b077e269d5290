package bridge

import (
	"errors"
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/petermattis/goid"

	"github.com/chazu/cellbridge/script"
)

// ErrWorkerStopped is returned by Do once the worker has been stopped.
var ErrWorkerStopped = errors.New("bridge: worker stopped")

type request struct {
	fn   func(*Bridge) (script.Value, error)
	done chan result
}

type result struct {
	value script.Value
	err   error
}

// Worker serializes engine access through a single goroutine. Scripting
// engines are single-threaded; machine goroutines delivering events or
// calling into script must go through the worker.
type Worker struct {
	bridge   *Bridge
	requests chan request
	quit     chan struct{}
	stop     sync.Once
	owner    atomic.Int64 // goroutine id of the loop
}

// NewWorker creates a Worker and starts its goroutine.
func NewWorker(b *Bridge) *Worker {
	w := &Worker{
		bridge:   b,
		requests: make(chan request, 64),
		quit:     make(chan struct{}),
	}
	started := make(chan struct{})
	go w.loop(started)
	<-started
	return w
}

func (w *Worker) loop(started chan<- struct{}) {
	w.owner.Store(goid.Get())
	close(started)
	for {
		select {
		case req := <-w.requests:
			req.done <- w.execute(req.fn)
		case <-w.quit:
			return
		}
	}
}

// execute runs fn, turning a panic into an error.
func (w *Worker) execute(fn func(*Bridge) (script.Value, error)) (res result) {
	defer func() {
		if r := recover(); r != nil {
			res.err = fmt.Errorf("%v", r)
		}
	}()
	res.value, res.err = fn(w.bridge)
	return res
}

// Do runs fn on the worker goroutine and waits for it. Called from the
// worker goroutine itself, as when a public running on the worker delivers
// an event, fn runs inline.
func (w *Worker) Do(fn func(*Bridge) (script.Value, error)) (script.Value, error) {
	if goid.Get() == w.owner.Load() {
		res := w.execute(fn)
		return res.value, res.err
	}
	req := request{fn: fn, done: make(chan result, 1)}
	select {
	case w.requests <- req:
	case <-w.quit:
		return nil, ErrWorkerStopped
	}
	select {
	case res := <-req.done:
		return res.value, res.err
	case <-w.quit:
		return nil, ErrWorkerStopped
	}
}

// Invoke calls a native on the worker goroutine.
func (w *Worker) Invoke(name string, args []script.Value) (script.Value, error) {
	return w.Do(func(b *Bridge) (script.Value, error) {
		return b.Invoke(name, args)
	})
}

// CallPublic calls a public on the worker goroutine.
func (w *Worker) CallPublic(name string, args []script.Value) (script.Value, error) {
	return w.Do(func(b *Bridge) (script.Value, error) {
		return b.CallPublic(name, args)
	})
}

// Stop shuts down the worker goroutine. It is safe to call more than once.
func (w *Worker) Stop() {
	w.stop.Do(func() { close(w.quit) })
}
