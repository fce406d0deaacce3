package functionobject

import (
	"fmt"
	"sort"
	"sync"

	"foammonitor/dictionary"
)

// Builder constructs a function object from its Spec.
type Builder func(spec Spec) (FunctionObject, error)

var (
	registryMu sync.RWMutex
	registry   = map[string]Builder{}
)

// Register adds a builder under typeName. It is called from main at startup;
// registering the same type twice panics.
func Register(typeName string, b Builder) {
	if typeName == "" || b == nil {
		panic("functionobject: Register needs a type name and a builder")
	}
	registryMu.Lock()
	defer registryMu.Unlock()
	if _, dup := registry[typeName]; dup {
		panic(fmt.Sprintf("functionobject: type %q registered twice", typeName))
	}
	registry[typeName] = b
}

// Registered reports whether typeName has a builder.
func Registered(typeName string) bool {
	registryMu.RLock()
	defer registryMu.RUnlock()
	_, ok := registry[typeName]
	return ok
}

// Types returns the registered type names, sorted.
func Types() []string {
	registryMu.RLock()
	defer registryMu.RUnlock()
	types := make([]string, 0, len(registry))
	for t := range registry {
		types = append(types, t)
	}
	sort.Strings(types)
	return types
}

// New builds the function object described by spec. The type is read from
// the "type" entry of spec.Dict.
func New(spec Spec) (FunctionObject, error) {
	typeName, err := dictionary.Get[string](spec.Dict, "type")
	if err != nil {
		return nil, fmt.Errorf("function object %q: %w", spec.Name, err)
	}

	registryMu.RLock()
	b, ok := registry[typeName]
	registryMu.RUnlock()
	if !ok {
		return nil, &UnknownTypeError{Name: spec.Name, Type: typeName, Registered: Types()}
	}

	if err := spec.Region.Validate(); err != nil {
		return nil, fmt.Errorf("function object %q: %w", spec.Name, err)
	}
	obj, err := b(spec)
	if err != nil {
		return nil, fmt.Errorf("function object %q (%s): %w", spec.Name, typeName, err)
	}
	return obj, nil
}
