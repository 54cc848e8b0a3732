package scope

import (
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/goliatone/go-remote-resource/condition"
)

// Registry maps scope names to definitions. Names are case-insensitive.
type Registry struct {
	mu   sync.RWMutex
	defs map[string]Definition
}

// NewRegistry builds a registry holding defs.
func NewRegistry(defs ...Definition) (*Registry, error) {
	r := &Registry{defs: make(map[string]Definition, len(defs))}
	for _, def := range defs {
		if err := r.Register(def); err != nil {
			return nil, err
		}
	}
	return r, nil
}

// Register validates def and stores it, guarding against duplicates.
func (r *Registry) Register(def Definition) error {
	if err := def.Validate(); err != nil {
		return err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.defs == nil {
		r.defs = make(map[string]Definition)
	}
	key := strings.ToLower(def.Name)
	if _, exists := r.defs[key]; exists {
		return fmt.Errorf("%w: %q", ErrDuplicateScope, def.Name)
	}
	r.defs[key] = def
	return nil
}

// Override stores def, replacing any definition with the same name.
func (r *Registry) Override(def Definition) error {
	if err := def.Validate(); err != nil {
		return err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.defs == nil {
		r.defs = make(map[string]Definition)
	}
	r.defs[strings.ToLower(def.Name)] = def
	return nil
}

// Lookup returns the definition registered under name.
func (r *Registry) Lookup(name string) (Definition, bool) {
	if r == nil {
		return Definition{}, false
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	def, ok := r.defs[strings.ToLower(name)]
	return def, ok
}

// Apply resolves name and builds a condition for class. Arity errors are
// reported before the builder runs.
func (r *Registry) Apply(class, name string, args ...any) (condition.Condition, error) {
	def, ok := r.Lookup(name)
	if !ok {
		return condition.Condition{}, fmt.Errorf("%w: %q on %s", ErrUnknownScope, name, class)
	}
	return def.Apply(class, args...)
}

// Names returns the registered scope names sorted alphabetically.
func (r *Registry) Names() []string {
	if r == nil {
		return nil
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.defs))
	for _, def := range r.defs {
		names = append(names, def.Name)
	}
	sort.Strings(names)
	return names
}

// Len returns the number of definitions.
func (r *Registry) Len() int {
	if r == nil {
		return 0
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.defs)
}

// Clone returns an independent copy of the registry.
func (r *Registry) Clone() *Registry {
	clone := &Registry{defs: make(map[string]Definition)}
	if r == nil {
		return clone
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	for key, def := range r.defs {
		def.Params = append([]Param(nil), def.Params...)
		clone.defs[key] = def
	}
	return clone
}
