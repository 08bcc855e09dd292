// Package tree defines sparkwheel's recursive value model (spec §3.1): a
// scalar, an ordered sequence, or an order-preserving mapping. Mapping key
// order is preserved (for deterministic traversal, spec §4.6) but carries
// no semantic meaning; sequence order is semantic.
package tree

import "gopkg.in/yaml.v3"

// Tree is the dynamic type of any addressable node: nil, bool, string,
// int (as decoded by the loader) or int64, float64, *Mapping, or []any. There is no static Go type for this
// union; callers type-switch the way they would on a decoded YAML/JSON
// value.
type Tree = any

// Mapping is an order-preserving string-keyed map. Plain Go maps don't
// preserve insertion order, which the resolver and composer both rely on
// (spec §4.6: "mapping children are visited in their insertion order").
type Mapping struct {
	keys   []string
	values map[string]any
}

// NewMapping returns an empty Mapping.
func NewMapping() *Mapping {
	return &Mapping{values: make(map[string]any)}
}

// Len reports the number of keys.
func (m *Mapping) Len() int {
	if m == nil {
		return 0
	}
	return len(m.keys)
}

// Keys returns the keys in insertion order. The returned slice must not be
// mutated by the caller.
func (m *Mapping) Keys() []string {
	if m == nil {
		return nil
	}
	return m.keys
}

// Get returns the value at key and whether it was present.
func (m *Mapping) Get(key string) (any, bool) {
	if m == nil {
		return nil, false
	}
	v, ok := m.values[key]
	return v, ok
}

// Has reports whether key is present.
func (m *Mapping) Has(key string) bool {
	if m == nil {
		return false
	}
	_, ok := m.values[key]
	return ok
}

// Set installs value at key, appending to the key order if key is new.
func (m *Mapping) Set(key string, value any) {
	if _, ok := m.values[key]; !ok {
		m.keys = append(m.keys, key)
	}
	m.values[key] = value
}

// Delete removes key, preserving the order of the remaining keys.
func (m *Mapping) Delete(key string) {
	if _, ok := m.values[key]; !ok {
		return
	}
	delete(m.values, key)
	for i, k := range m.keys {
		if k == key {
			m.keys = append(m.keys[:i], m.keys[i+1:]...)
			break
		}
	}
}

// Range calls fn for every key/value pair in insertion order, stopping
// early if fn returns false.
func (m *Mapping) Range(fn func(key string, value any) bool) {
	if m == nil {
		return
	}
	for _, k := range m.keys {
		if !fn(k, m.values[k]) {
			return
		}
	}
}

// Clone performs a deep copy of the mapping and every nested Tree value.
func (m *Mapping) Clone() *Mapping {
	if m == nil {
		return nil
	}
	out := NewMapping()
	m.Range(func(k string, v any) bool {
		out.Set(k, DeepCopy(v))
		return true
	})
	return out
}

// DeepCopy recursively copies a Tree value. Scalars are immutable in Go and
// are returned as-is; *Mapping and []any are copied structurally.
func DeepCopy(v any) any {
	switch t := v.(type) {
	case *Mapping:
		return t.Clone()
	case []any:
		out := make([]any, len(t))
		for i, e := range t {
			out[i] = DeepCopy(e)
		}
		return out
	default:
		return v
	}
}

// IsMapping reports whether v is a *Mapping.
func IsMapping(v any) (*Mapping, bool) {
	m, ok := v.(*Mapping)
	return m, ok
}

// IsSequence reports whether v is a []any.
func IsSequence(v any) ([]any, bool) {
	s, ok := v.([]any)
	return s, ok
}

// MarshalYAML renders the mapping as a yaml.Node in insertion order, so a
// resolved tree prints the way its source file was ordered instead of
// Go's randomized map iteration order.
func (m *Mapping) MarshalYAML() (any, error) {
	node := &yaml.Node{Kind: yaml.MappingNode}
	for _, k := range m.Keys() {
		v, _ := m.Get(k)
		keyNode := &yaml.Node{}
		if err := keyNode.Encode(k); err != nil {
			return nil, err
		}
		valueNode := &yaml.Node{}
		if err := valueNode.Encode(v); err != nil {
			return nil, err
		}
		node.Content = append(node.Content, keyNode, valueNode)
	}
	return node, nil
}

// FromStringMap builds a Mapping from a plain map in the given key order.
// Useful for constructing literal trees in Go code (e.g. ad-hoc overrides)
// without round-tripping through YAML.
func FromStringMap(order []string, values map[string]any) *Mapping {
	m := NewMapping()
	for _, k := range order {
		if v, ok := values[k]; ok {
			m.Set(k, v)
		}
	}
	return m
}
