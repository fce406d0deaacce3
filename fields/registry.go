// Package fields is the per-partition store of named cell fields.
package fields

import (
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"
)

// AlphaPrefix is the name prefix of volume-fraction fields.
const AlphaPrefix = "alpha."

// ErrNotFound matches every LookupError via errors.Is.
var ErrNotFound = errors.New("field not found")

// AlphaName returns the volume-fraction field name of a phase.
func AlphaName(phase string) string {
	return AlphaPrefix + phase
}

// LookupError reports a field that is not registered.
type LookupError struct {
	Name      string
	Available []string
}

func (e *LookupError) Error() string {
	if len(e.Available) == 0 {
		return fmt.Sprintf("field %q not found: no fields registered", e.Name)
	}
	return fmt.Sprintf("field %q not found; available fields: %s", e.Name, strings.Join(e.Available, ", "))
}

// Is makes errors.Is(err, ErrNotFound) hold.
func (e *LookupError) Is(target error) bool {
	return target == ErrNotFound
}

// ScalarField is one value per local cell.
type ScalarField struct {
	Name   string
	Values []float64
}

// NewScalarField allocates a zeroed field of n cells.
func NewScalarField(name string, n int) *ScalarField {
	return &ScalarField{Name: name, Values: make([]float64, n)}
}

// Uniform allocates a field of n cells set to v.
func Uniform(name string, n int, v float64) *ScalarField {
	f := NewScalarField(name, n)
	for i := range f.Values {
		f.Values[i] = v
	}
	return f
}

// Registry holds the fields of one mesh partition.
type Registry struct {
	mu     sync.RWMutex
	scalar map[string]*ScalarField
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{scalar: make(map[string]*ScalarField)}
}

// Store registers f under its name, replacing any previous field.
func (r *Registry) Store(f *ScalarField) error {
	if f == nil || f.Name == "" {
		return errors.New("cannot store an unnamed field")
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.scalar[f.Name] = f
	return nil
}

// LookupScalar returns the field registered under name, or a *LookupError.
func (r *Registry) LookupScalar(name string) (*ScalarField, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	f, ok := r.scalar[name]
	if !ok {
		return nil, &LookupError{Name: name, Available: r.namesLocked()}
	}
	return f, nil
}

// Remove unregisters name. It reports whether the field existed.
func (r *Registry) Remove(name string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	_, ok := r.scalar[name]
	delete(r.scalar, name)
	return ok
}

// Names returns the registered field names, sorted.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.namesLocked()
}

func (r *Registry) namesLocked() []string {
	names := make([]string, 0, len(r.scalar))
	for n := range r.scalar {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}
