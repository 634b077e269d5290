// Package bridge ties a scripting engine to cell machines: scripted code
// calls natives and publics through it, and machine events reach scripted
// listeners through it.
package bridge

import (
	"fmt"

	"github.com/tliron/commonlog"

	"github.com/chazu/cellbridge/charset"
	"github.com/chazu/cellbridge/config"
	"github.com/chazu/cellbridge/convert"
	"github.com/chazu/cellbridge/hook"
	"github.com/chazu/cellbridge/native"
	"github.com/chazu/cellbridge/script"
	"github.com/chazu/cellbridge/vm"
)

var log = commonlog.GetLogger("cellbridge.bridge")

// Dispatcher delivers machine events to scripted listeners.
type Dispatcher interface {
	// HasListeners reports whether anything listens for event.
	HasListeners(event string) bool
	// Signature returns the parameter type string declared for event.
	Signature(event string) string
	// Emit calls the listeners of event and returns the last result.
	Emit(event string, args []script.Value) (script.Value, error)
}

// ReferenceError reports a native or public that cannot be resolved.
type ReferenceError struct {
	Kind string // "native" or "public"
	Name string
}

func (e *ReferenceError) Error() string {
	return fmt.Sprintf("The %s '%s' was not found.", e.Kind, e.Name)
}

// Bridge owns every service a scripted runtime needs to talk to machines.
type Bridge struct {
	Engine     script.Engine
	Converter  *convert.Converter
	Hooks      *hook.Chain
	Registry   *native.Registry
	Marshaler  *native.Marshaler
	Pool       *vm.SandboxPool
	Programs   *vm.Programs
	Dispatcher Dispatcher
	Config     *config.Config

	skip     map[string]bool
	inverted map[string]bool
}

type options struct {
	programs   *vm.Programs
	dispatcher Dispatcher
	transcoder charset.Transcoder
	tracer     native.Tracer
	config     *config.Config
}

// Option configures a Bridge.
type Option func(*options)

// WithPrograms sets the machines searched by CallPublic.
func WithPrograms(p *vm.Programs) Option {
	return func(o *options) { o.programs = p }
}

// WithDispatcher sets the event dispatcher used by HandlePublic.
func WithDispatcher(d Dispatcher) Option {
	return func(o *options) { o.dispatcher = d }
}

// WithTranscoder overrides the transcoder derived from the configuration.
func WithTranscoder(tr charset.Transcoder) Option {
	return func(o *options) { o.transcoder = tr }
}

// WithTracer reports every native call to t.
func WithTracer(t native.Tracer) Option {
	return func(o *options) { o.tracer = t }
}

// WithConfig sets the configuration. Without it defaults apply.
func WithConfig(c *config.Config) Option {
	return func(o *options) { o.config = c }
}

// New creates a bridge for engine e.
func New(e script.Engine, opts ...Option) (*Bridge, error) {
	var o options
	for _, opt := range opts {
		opt(&o)
	}
	cfg := o.config
	if cfg == nil {
		cfg = config.Default()
	}

	tr := o.transcoder
	if tr == nil {
		var err error
		tr, err = charset.New(cfg.Encoding.Enabled, cfg.Encoding.Target)
		if err != nil {
			return nil, fmt.Errorf("bridge: %w", err)
		}
	}

	conv := convert.New(e, tr)
	if cfg.Natives.StringBufferSize > 0 {
		conv.StringBufferSize = cfg.Natives.StringBufferSize
	}
	hooks := hook.NewChain(e)
	pool := vm.NewSandboxPool(cfg.Sandbox.Size)
	mm := native.NewMarshaler(conv, hooks, pool)
	mm.Tracer = o.tracer

	programs := o.programs
	if programs == nil {
		programs = vm.NewPrograms()
	}

	return &Bridge{
		Engine:     e,
		Converter:  conv,
		Hooks:      hooks,
		Registry:   native.NewRegistry(cfg.Natives.FloatReturn),
		Marshaler:  mm,
		Pool:       pool,
		Programs:   programs,
		Dispatcher: o.dispatcher,
		Config:     cfg,
		skip:       set(cfg.Events.Skip),
		inverted:   set(cfg.Events.Inverted),
	}, nil
}

func set(names []string) map[string]bool {
	m := make(map[string]bool, len(names))
	for _, n := range names {
		m[n] = true
	}
	return m
}

// ---------------------------------------------------------------------------
// Natives and hooks
// ---------------------------------------------------------------------------

// GenerateBindings creates bindings for every native declared in table.
func (b *Bridge) GenerateBindings(table *vm.NativeTable) []*native.Binding {
	return b.Registry.Generate(table)
}

// Invoke calls the named native with args.
func (b *Bridge) Invoke(name string, args []script.Value) (script.Value, error) {
	bd, ok := b.Registry.Get(name)
	if !ok {
		return nil, &ReferenceError{Kind: "native", Name: name}
	}
	return b.Marshaler.Invoke(bd, args)
}

// RegisterHook intercepts calls to the named native with fn.
func (b *Bridge) RegisterHook(name string, fn script.Value) hook.Handle {
	return b.Hooks.Register(name, fn)
}

// Close drops every hook and binding.
func (b *Bridge) Close() {
	b.Hooks.Clear()
	b.Registry.Clear()
	log.Debug("bridge closed")
}
