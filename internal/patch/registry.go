package patch

import (
	"fmt"
	"sort"
	"sync"
)

// Registry maps patch IDs to their bodies. Bodies are Go functions registered
// ahead of time; patch declarations on disk only name them.
type Registry struct {
	mu     sync.RWMutex
	bodies map[string]Body
}

func NewRegistry() *Registry {
	return &Registry{bodies: make(map[string]Body)}
}

// Default is the registry populated by init() functions of body packages.
var Default = NewRegistry()

// Register adds a body under id. It panics on an invalid or duplicate id.
func (r *Registry) Register(id string, body Body) {
	parsed, err := ParseID(id)
	if err != nil {
		panic(err.Error())
	}
	if body == nil {
		panic(fmt.Sprintf("patch %s registered with nil body", id))
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	key := parsed.String()
	if _, exists := r.bodies[key]; exists {
		panic(fmt.Sprintf("patch %s already registered", key))
	}
	r.bodies[key] = body
}

func (r *Registry) Lookup(id ID) (Body, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	b, ok := r.bodies[id.String()]
	return b, ok
}

// IDs returns the registered ids in sorted order.
func (r *Registry) IDs() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	ids := make([]string, 0, len(r.bodies))
	for id := range r.bodies {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

func Register(id string, body Body) {
	Default.Register(id, body)
}
