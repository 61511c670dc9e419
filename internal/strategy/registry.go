package strategy

import (
	"fmt"
	"sort"
	"sync"
)

// Registry maps strategy names to Signal implementations. The engine looks
// up the active signal by the configured name.
type Registry struct {
	mu      sync.RWMutex
	signals map[string]Signal
}

// NewRegistry creates a Registry pre-populated with the built-in signals.
func NewRegistry() *Registry {
	r := &Registry{signals: make(map[string]Signal)}
	r.Register(NewSMACross())
	r.Register(NewBandTouch())
	return r
}

// Register adds (or replaces) a signal under its own name.
func (r *Registry) Register(s Signal) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.signals[s.Name()] = s
}

// Get returns the signal registered under name.
func (r *Registry) Get(name string) (Signal, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	s, ok := r.signals[name]
	if !ok {
		return nil, fmt.Errorf("strategy: unknown signal %q", name)
	}
	return s, nil
}

// List returns all registered names in sorted order.
func (r *Registry) List() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.signals))
	for name := range r.signals {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
