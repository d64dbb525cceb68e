// Package toolregistry is the only way the Executor touches external stores
// and the LLM-backed tools; the Analyzer, the EntryRouter and the DIRECT path
// call model.Client directly. A Registry maps tool names to Handlers; the Executor
// invokes tools only by name, never by importing a store/model package
// directly.
package toolregistry

import (
	"context"
	"fmt"
	"sync"
)

// Error is the typed failure a Handler reports. It always carries the tool
// name and an underlying cause so the Executor can record a precise entry in
// PlanResult.Errors without inspecting the tool body.
type Error struct {
	ToolName string
	Cause    error
}

func (e *Error) Error() string {
	return fmt.Sprintf("tool %q: %v", e.ToolName, e.Cause)
}

// Unwrap exposes Cause to errors.Is/errors.As.
func (e *Error) Unwrap() error { return e.Cause }

// Handler executes one named tool. Implementations must be pure with
// respect to the Registry (no shared mutable state across calls) and may
// block on I/O; they report failure by returning a non-nil error, which the
// Registry wraps as *Error.
type Handler func(ctx context.Context, args map[string]any) (any, error)

// Registry is a concurrency-safe name→Handler map. Registration happens once
// at process start; Call is safe for concurrent use from many goroutines
// (the Executor's fan-out).
type Registry struct {
	mu       sync.RWMutex
	handlers map[string]Handler
}

// New returns an empty Registry.
func New() *Registry {
	return &Registry{handlers: make(map[string]Handler)}
}

// Register adds (or replaces) the handler for name. Intended to be called
// once per tool during process wiring, not under concurrent load.
func (r *Registry) Register(name string, h Handler) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.handlers[name] = h
}

// Lookup returns the handler registered for name, if any.
func (r *Registry) Lookup(name string) (Handler, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	h, ok := r.handlers[name]
	return h, ok
}

// Call dispatches name with args and wraps any failure as *Error.
func (r *Registry) Call(ctx context.Context, name string, args map[string]any) (any, error) {
	h, ok := r.Lookup(name)
	if !ok {
		return nil, &Error{ToolName: name, Cause: fmt.Errorf("tool not registered")}
	}
	out, err := h(ctx, args)
	if err != nil {
		return nil, &Error{ToolName: name, Cause: err}
	}
	return out, nil
}

// Names returns the set of registered tool names. Used by tests and
// diagnostics, not by the Executor's dispatch path.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]string, 0, len(r.handlers))
	for name := range r.handlers {
		out = append(out, name)
	}
	return out
}

// Required tool names, per §4.1. Handlers registered under these names
// receive the arguments documented in domain.go and must return the
// corresponding result type.
const (
	ToolGetCoinPrice         = "get_coin_price"
	ToolMakeSemanticQuery    = "make_semantic_query"
	ToolSemanticSearch       = "semantic_search"
	ToolSummarizePriceData   = "summarize_price_data"
	ToolSummarizeNewsChunks  = "summarize_news_chunks"
)
