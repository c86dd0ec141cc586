package engine

import (
	"slices"
	"sync"

	"github.com/pkg/errors"
	"k8s.io/klog/v2"

	"github.com/born-ml/ortkit/ort"
)

// ErrLeakedHandles is returned by Close when objects were never released.
var ErrLeakedHandles = errors.New("engine closed with live handles")

// Engine is an in-process CPU inference engine implementing ort.API.
//
// Objects handed out through the API are kept in a handle table. The table
// is safe for concurrent use; a single session must not be run from two
// goroutines at once.
type Engine struct {
	opts     Options
	builtins *Registry
	exec     *Context
	handles  handleTable

	defaultAllocator ort.Allocator
}

var _ ort.API = (*Engine)(nil)

// New creates an engine.
func New(opts Options) *Engine {
	if len(opts.ExecutionProviders) == 0 {
		opts.ExecutionProviders = []string{CPUExecutionProvider}
	}
	e := &Engine{
		opts:     opts,
		builtins: NewRegistry(),
		exec:     &Context{Parallel: opts.Parallel},
		handles:  handleTable{objects: make(map[uintptr]any)},
	}
	e.defaultAllocator = ort.Allocator(e.handles.put(newAllocator(opts.DefaultAllocator)))
	return e
}

// Options returns the engine options.
func (e *Engine) Options() Options {
	return e.opts
}

// Builtins returns the registry of standard operators.
func (e *Engine) Builtins() *Registry {
	return e.builtins
}

// LiveHandles returns the number of handles not yet released, not counting
// the default allocator.
func (e *Engine) LiveHandles() int {
	return e.handles.len() - 1
}

// Close reports objects that were never released and allocators with live
// blocks. The engine must not be used afterwards.
func (e *Engine) Close() error {
	e.handles.mu.Lock()
	defer e.handles.mu.Unlock()
	leaked := 0
	for h, obj := range e.handles.objects {
		if alloc, ok := obj.(*allocator); ok {
			if stats := alloc.stats(); stats.LiveBlocks > 0 {
				klog.Warningf("engine: allocator %q closed with %s", alloc.cfg.Name, stats)
				leaked++
			}
			if ort.Allocator(h) == e.defaultAllocator {
				continue
			}
		}
		if ort.Allocator(h) != e.defaultAllocator {
			klog.Warningf("engine: %T handle %#x was never released", obj, h)
			leaked++
		}
	}
	e.handles.objects = nil
	if leaked > 0 {
		return errors.WithMessagef(ErrLeakedHandles, "%d leaks", leaked)
	}
	return nil
}

// handleTable maps opaque handles to engine objects.
type handleTable struct {
	mu      sync.Mutex
	next    uintptr
	objects map[uintptr]any
}

func (t *handleTable) put(obj any) uintptr {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.next++
	t.objects[t.next] = obj
	return t.next
}

func (t *handleTable) get(h uintptr) (any, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	obj, ok := t.objects[h]
	return obj, ok
}

func (t *handleTable) drop(h uintptr) (any, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	obj, ok := t.objects[h]
	if ok {
		delete(t.objects, h)
	}
	return obj, ok
}

func (t *handleTable) len() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.objects)
}

// lookup resolves h to an object of type T.
func lookup[T any](t *handleTable, h uintptr, kind string) (T, error) {
	var zero T
	if h == 0 {
		return zero, ort.NewStatus(ort.InvalidArgument, "%s handle is null", kind)
	}
	obj, ok := t.get(h)
	if !ok {
		return zero, ort.NewStatus(ort.InvalidArgument, "invalid %s handle %#x", kind, h)
	}
	typed, ok := obj.(T)
	if !ok {
		return zero, ort.NewStatus(ort.InvalidArgument, "handle %#x is a %T, not a %s", h, obj, kind)
	}
	return typed, nil
}

// release drops h if it refers to a T. Null and unknown handles are ignored.
func release[T any](t *handleTable, h uintptr) (T, bool) {
	var zero T
	if h == 0 {
		return zero, false
	}
	if _, err := lookup[T](t, h, ""); err != nil {
		return zero, false
	}
	obj, ok := t.drop(h)
	if !ok {
		return zero, false
	}
	return obj.(T), true
}

// providerSupported reports whether an operator asking for provider can run.
func (e *Engine) providerSupported(provider string) bool {
	return provider == "" || slices.Contains(e.opts.ExecutionProviders, provider)
}
