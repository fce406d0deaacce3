// Package dictionary provides the keyed configuration object handed to
// function objects and the host. It wraps a YAML mapping node so that key
// order from the case file is preserved.
package dictionary

import (
	"errors"
	"fmt"

	"gopkg.in/yaml.v3"
)

// MissingKeyError is returned by Get and SubDict when a required entry is absent.
type MissingKeyError struct {
	Key   string
	Scope string
}

func (e *MissingKeyError) Error() string {
	if e.Scope != "" {
		return fmt.Sprintf("entry %q not found in dictionary %q", e.Key, e.Scope)
	}
	return fmt.Sprintf("entry %q not found in dictionary", e.Key)
}

// Dict is an ordered set of keyed entries. A nil *Dict behaves as empty.
type Dict struct {
	scope string
	node  *yaml.Node
}

// New returns an empty dictionary.
func New(scope string) *Dict {
	return &Dict{scope: scope, node: &yaml.Node{Kind: yaml.MappingNode, Tag: "!!map"}}
}

// Parse decodes a YAML document whose top level is a mapping.
func Parse(data []byte) (*Dict, error) {
	var doc yaml.Node
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("failed to parse dictionary: %w", err)
	}
	if doc.Kind == 0 {
		return New(""), nil
	}
	if doc.Kind == yaml.DocumentNode && len(doc.Content) > 0 {
		return FromNode("", doc.Content[0])
	}
	return FromNode("", &doc)
}

// FromNode wraps an existing mapping node.
func FromNode(scope string, node *yaml.Node) (*Dict, error) {
	if node == nil {
		return New(scope), nil
	}
	if node.Kind != yaml.MappingNode {
		return nil, fmt.Errorf("dictionary %q: expected a mapping, got %s", scope, kindName(node.Kind))
	}
	return &Dict{scope: scope, node: node}, nil
}

// FromMap builds a dictionary from a Go map. Key order is not defined.
func FromMap(scope string, m map[string]any) (*Dict, error) {
	var node yaml.Node
	if err := node.Encode(m); err != nil {
		return nil, fmt.Errorf("dictionary %q: %w", scope, err)
	}
	return FromNode(scope, &node)
}

// MustFromMap is FromMap for literals in tests and defaults.
func MustFromMap(scope string, m map[string]any) *Dict {
	d, err := FromMap(scope, m)
	if err != nil {
		panic(err)
	}
	return d
}

// Scope returns the dictionary name used in error messages.
func (d *Dict) Scope() string {
	if d == nil {
		return ""
	}
	return d.scope
}

// Keys returns entry names in file order.
func (d *Dict) Keys() []string {
	if d == nil || d.node == nil {
		return nil
	}
	keys := make([]string, 0, len(d.node.Content)/2)
	for i := 0; i+1 < len(d.node.Content); i += 2 {
		keys = append(keys, d.node.Content[i].Value)
	}
	return keys
}

// Has reports whether key is present.
func (d *Dict) Has(key string) bool {
	return d.lookup(key) != nil
}

// IsDict reports whether key is present and holds a sub-dictionary.
func (d *Dict) IsDict(key string) bool {
	n := d.lookup(key)
	return n != nil && n.Kind == yaml.MappingNode
}

// SubDict returns the sub-dictionary stored under key.
func (d *Dict) SubDict(key string) (*Dict, error) {
	n := d.lookup(key)
	if n == nil {
		return nil, &MissingKeyError{Key: key, Scope: d.Scope()}
	}
	return FromNode(d.childScope(key), n)
}

// SubDictOrEmpty returns the sub-dictionary under key, or an empty one.
func (d *Dict) SubDictOrEmpty(key string) (*Dict, error) {
	if !d.Has(key) {
		return New(d.childScope(key)), nil
	}
	return d.SubDict(key)
}

// ReadIfPresent decodes the entry under key into out when present.
// It reports whether the entry existed. out is untouched on a decode error.
func (d *Dict) ReadIfPresent(key string, out any) (bool, error) {
	n := d.lookup(key)
	if n == nil {
		return false, nil
	}
	if err := n.Decode(out); err != nil {
		return true, fmt.Errorf("dictionary %q: entry %q: %w", d.Scope(), key, err)
	}
	return true, nil
}

// Decode decodes the whole dictionary into out.
func (d *Dict) Decode(out any) error {
	if d == nil || d.node == nil {
		return nil
	}
	if err := d.node.Decode(out); err != nil {
		return fmt.Errorf("dictionary %q: %w", d.Scope(), err)
	}
	return nil
}

// Node exposes the underlying mapping node.
func (d *Dict) Node() *yaml.Node {
	if d == nil {
		return nil
	}
	return d.node
}

// Get decodes a required entry.
func Get[T any](d *Dict, key string) (T, error) {
	var v T
	ok, err := d.ReadIfPresent(key, &v)
	if err != nil {
		return v, err
	}
	if !ok {
		return v, &MissingKeyError{Key: key, Scope: d.Scope()}
	}
	return v, nil
}

// GetOrDefault decodes an optional entry, returning def when it is absent.
func GetOrDefault[T any](d *Dict, key string, def T) (T, error) {
	v, err := Get[T](d, key)
	var missing *MissingKeyError
	if errors.As(err, &missing) {
		return def, nil
	}
	if err != nil {
		return def, err
	}
	return v, nil
}

func (d *Dict) lookup(key string) *yaml.Node {
	if d == nil || d.node == nil {
		return nil
	}
	for i := 0; i+1 < len(d.node.Content); i += 2 {
		if d.node.Content[i].Value == key {
			return d.node.Content[i+1]
		}
	}
	return nil
}

func (d *Dict) childScope(key string) string {
	if d.Scope() == "" {
		return key
	}
	return d.Scope() + "." + key
}

func kindName(k yaml.Kind) string {
	switch k {
	case yaml.DocumentNode:
		return "document"
	case yaml.SequenceNode:
		return "sequence"
	case yaml.MappingNode:
		return "mapping"
	case yaml.ScalarNode:
		return "scalar"
	case yaml.AliasNode:
		return "alias"
	default:
		return "empty node"
	}
}
