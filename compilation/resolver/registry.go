// Package resolver provides the process-wide registry consulted when a reference of a build cannot be located at
// the path it was registered with, along with discovery of the Go modules available to the running process.
package resolver

import (
	"sync"

	"github.com/crytic/stencil/compilation/types"
)

// ModuleHandle describes a Go module located on disk.
type ModuleHandle struct {
	// Name is the normalized key the module is registered under.
	Name string `json:"name"`

	// Path is the module path declared by the module.
	Path string `json:"path"`

	// Version is the module version, or empty for a module which is not versioned (such as the main module).
	Version string `json:"version,omitempty"`

	// Dir is the directory holding the module's go.mod.
	Dir string `json:"dir"`
}

// Registry maps normalized reference keys to module handles. It is safe for concurrent use. Entries are never
// evicted and the first registration of a key wins.
type Registry struct {
	mutex   sync.RWMutex
	entries map[string]ModuleHandle
	order   []string
}

var (
	defaultRegistry     *Registry
	defaultRegistryOnce sync.Once
)

// Default returns the process-wide Registry, creating it on first use. It lives for the lifetime of the process.
func Default() *Registry {
	defaultRegistryOnce.Do(func() {
		defaultRegistry = NewRegistry()
	})
	return defaultRegistry
}

// NewRegistry returns an empty Registry.
func NewRegistry() *Registry {
	return &Registry{
		entries: make(map[string]ModuleHandle),
		order:   make([]string, 0),
	}
}

// Register adds the handle under the normalized form of its Name, or of its Path if Name is empty. Returns false if
// no key could be derived or the key is already registered, in which case the registry is unchanged.
func (r *Registry) Register(handle ModuleHandle) bool {
	key := handle.Name
	if key == "" {
		key = handle.Path
	}
	key = types.NormalizeReferenceKey(key)
	if key == "" {
		return false
	}
	handle.Name = key

	r.mutex.Lock()
	defer r.mutex.Unlock()
	if _, exists := r.entries[key]; exists {
		return false
	}
	r.entries[key] = handle
	r.order = append(r.order, key)
	return true
}

// Lookup returns the handle registered under the normalized form of key, if any.
func (r *Registry) Lookup(key string) (ModuleHandle, bool) {
	r.mutex.RLock()
	defer r.mutex.RUnlock()
	handle, ok := r.entries[types.NormalizeReferenceKey(key)]
	return handle, ok
}

// Entries returns the registered handles in registration order.
func (r *Registry) Entries() []ModuleHandle {
	r.mutex.RLock()
	defer r.mutex.RUnlock()
	handles := make([]ModuleHandle, 0, len(r.order))
	for _, key := range r.order {
		handles = append(handles, r.entries[key])
	}
	return handles
}

// Len returns the number of registered handles.
func (r *Registry) Len() int {
	r.mutex.RLock()
	defer r.mutex.RUnlock()
	return len(r.order)
}
