package migration

import (
	"fmt"
	"strings"
	"sync"
)

// Registry is an ordered, append-only list of migration units.
// Registration order is application order.
type Registry struct {
	mu     sync.RWMutex
	units  []Unit
	index  map[string]int
	sealed bool
}

// NewRegistry registers units in order and stops at the first error.
func NewRegistry(units ...Unit) (*Registry, error) {
	r := &Registry{index: make(map[string]int)}
	for _, u := range units {
		if err := r.Register(u); err != nil {
			return nil, err
		}
	}
	return r, nil
}

// Register appends u. It fails with *DuplicateIdentifierError when u.ID is
// already present, ErrInvalidUnit for an empty ID or nil Apply, and
// ErrRegistrySealed once a run has started.
func (r *Registry) Register(u Unit) error {
	if strings.TrimSpace(u.ID) == "" {
		return fmt.Errorf("%w: empty identifier", ErrInvalidUnit)
	}
	if u.Apply == nil {
		return fmt.Errorf("%w: %q has no apply function", ErrInvalidUnit, u.ID)
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if r.sealed {
		return ErrRegistrySealed
	}
	if r.index == nil {
		r.index = make(map[string]int)
	}
	if _, ok := r.index[u.ID]; ok {
		return &DuplicateIdentifierError{ID: u.ID}
	}
	r.index[u.ID] = len(r.units)
	r.units = append(r.units, u)
	return nil
}

// All returns a copy of the registered units in insertion order.
func (r *Registry) All() []Unit {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]Unit, len(r.units))
	copy(out, r.units)
	return out
}

// IDs returns the registered identifiers in insertion order.
func (r *Registry) IDs() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]string, len(r.units))
	for i, u := range r.units {
		out[i] = u.ID
	}
	return out
}

func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.units)
}

// Seal makes the registry immutable. Runner seals it when a run starts.
func (r *Registry) Seal() {
	r.mu.Lock()
	r.sealed = true
	r.mu.Unlock()
}

func (r *Registry) Sealed() bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.sealed
}
