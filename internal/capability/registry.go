// Package capability defines the host-provided capability registry: the only
// channel through which sandboxed code may observe or affect the outside
// world.
package capability

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
)

// Func is a single host capability. It receives a structured argument object
// and returns a string, conventionally JSON-encoded. The context carries the
// deadline of the sandbox run that issued the call.
type Func func(ctx context.Context, args map[string]any) (string, error)

type entry struct {
	fn  Func
	doc string
}

// Registry maps capability names to callables. A Registry is safe for
// concurrent use; registration normally happens once at startup.
type Registry struct {
	mu      sync.RWMutex
	entries map[string]entry
}

func NewRegistry() *Registry {
	return &Registry{entries: make(map[string]entry)}
}

// Register adds a named capability with a one-line description used when the
// registry is rendered into a synthesis prompt. Registering an existing name
// overwrites the previous callable.
func (r *Registry) Register(name, doc string, fn Func) {
	if fn == nil {
		return
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.entries[name] = entry{fn: fn, doc: doc}
}

// Lookup returns the callable for name, or false if it is not registered.
func (r *Registry) Lookup(name string) (Func, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	e, ok := r.entries[name]
	return e.fn, ok
}

// Names returns the registered capability names in sorted order.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.entries))
	for name := range r.entries {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Describe renders a human-readable summary of the registry for embedding in
// a synthesis prompt. Empty registries yield a fixed "none" marker so the
// prompt never contains a dangling section.
func (r *Registry) Describe() string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if len(r.entries) == 0 {
		return "(no capabilities available)"
	}
	names := make([]string, 0, len(r.entries))
	for name := range r.entries {
		names = append(names, name)
	}
	sort.Strings(names)
	var sb strings.Builder
	for _, name := range names {
		doc := r.entries[name].doc
		if doc == "" {
			doc = "no description"
		}
		fmt.Fprintf(&sb, "- api.%s(args): %s\n", name, doc)
	}
	return strings.TrimRight(sb.String(), "\n")
}

// Len returns the number of registered capabilities.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.entries)
}
