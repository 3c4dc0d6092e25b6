package jsonrpc

import (
	"context"
	"slices"
)

// Handler serves one registered method.
//
// A handler returns its result, or a *Failure to signal an expected RPC
// failure. Any other error is a fault and is not reported to the caller as a
// wire error.
type Handler interface {
	ServeRPC(ctx context.Context, params Value, id Value) (any, error)
}

// HandlerFunc adapts a function to a Handler.
type HandlerFunc func(ctx context.Context, params Value, id Value) (any, error)

func (f HandlerFunc) ServeRPC(ctx context.Context, params Value, id Value) (any, error) {
	return f(ctx, params, id)
}

// Registry maps method names to handlers.
//
// A Registry has no internal locking. It is safe for concurrent Has and Invoke
// calls once registration is complete; Register must not run concurrently with
// any other method.
type Registry struct {
	methods map[string]Handler
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{methods: make(map[string]Handler)}
}

// Register binds name to h. It returns a *DuplicateMethodError if name is
// already registered, leaving the existing handler in place.
func (r *Registry) Register(name string, h Handler) error {
	if name == "" || isNilHandler(h) {
		return ErrInvalidRegistration
	}
	if _, exists := r.methods[name]; exists {
		return &DuplicateMethodError{Name: name}
	}
	r.methods[name] = h
	return nil
}

// RegisterFunc binds name to fn.
func (r *Registry) RegisterFunc(name string, fn func(ctx context.Context, params Value, id Value) (any, error)) error {
	if fn == nil {
		return ErrInvalidRegistration
	}
	return r.Register(name, HandlerFunc(fn))
}

// MustRegister is like Register but panics on error. Use it for startup
// registration where a conflict is a programming error.
func (r *Registry) MustRegister(name string, h Handler) {
	if err := r.Register(name, h); err != nil {
		panic(err)
	}
}

// Has reports whether name is registered.
func (r *Registry) Has(name string) bool {
	_, ok := r.methods[name]
	return ok
}

// Invoke calls the handler registered for name synchronously. The handler's
// result and error are returned as-is.
func (r *Registry) Invoke(ctx context.Context, name string, params Value, id Value) (any, error) {
	h, ok := r.methods[name]
	if !ok {
		return nil, &UnknownMethodError{Name: name}
	}
	return h.ServeRPC(ctx, params, id)
}

// Methods returns the registered names in sorted order.
func (r *Registry) Methods() []string {
	names := make([]string, 0, len(r.methods))
	for name := range r.methods {
		names = append(names, name)
	}
	slices.Sort(names)
	return names
}

// Len returns the number of registered methods.
func (r *Registry) Len() int {
	return len(r.methods)
}

// Wrap returns a new registry holding every handler passed through fn. The
// receiver is not modified.
func (r *Registry) Wrap(fn func(name string, h Handler) Handler) *Registry {
	out := &Registry{methods: make(map[string]Handler, len(r.methods))}
	for name, h := range r.methods {
		out.methods[name] = fn(name, h)
	}
	return out
}

func isNilHandler(h Handler) bool {
	if h == nil {
		return true
	}
	if f, ok := h.(HandlerFunc); ok && f == nil {
		return true
	}
	return false
}
