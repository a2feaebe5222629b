package kinds

import (
	"fmt"
	"sync"
)

// Registry holds the known resource kinds.
type Registry struct {
	mu    sync.RWMutex
	kinds map[string]*Kind
	order []string
}

func NewRegistry() *Registry {
	return &Registry{
		kinds: make(map[string]*Kind),
	}
}

// Default returns a registry with every built-in kind registered.
func Default() *Registry {
	r := NewRegistry()
	for _, k := range []*Kind{Workflow(), Layout(), MessageType(), Partial(), Guide(), Translation()} {
		if err := r.Register(k); err != nil {
			panic(err)
		}
	}
	return r
}

// Register adds a kind. Names and command names must be unique.
func (r *Registry) Register(k *Kind) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, name := range []string{k.Name, k.Command} {
		if _, exists := r.kinds[name]; exists {
			return fmt.Errorf("kind already registered: %s", name)
		}
	}
	r.kinds[k.Name] = k
	r.kinds[k.Command] = k
	r.order = append(r.order, k.Name)
	return nil
}

// Get returns a kind by name or command name.
func (r *Registry) Get(name string) (*Kind, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	k, ok := r.kinds[name]
	if !ok {
		return nil, fmt.Errorf("unknown resource kind: %s", name)
	}
	return k, nil
}

// All returns every kind in registration order.
func (r *Registry) All() []*Kind {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]*Kind, len(r.order))
	for i, name := range r.order {
		out[i] = r.kinds[name]
	}
	return out
}
