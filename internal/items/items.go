// Package items implements the Item classifier (spec §3.6, §4.5): turning
// a preprocessed Tree into a flat Id -> Item table.
package items

import (
	"strconv"
	"strings"

	"github.com/project-lighter/sparkwheel/internal/path"
	"github.com/project-lighter/sparkwheel/internal/tree"
)

// Kind discriminates the three addressable node shapes.
type Kind int

const (
	// Plain covers non-string scalars, non-expression strings, and
	// containers (mappings without _target_, and lists).
	Plain Kind = iota
	// Expression covers strings beginning with '$'.
	Expression
	// Component covers mappings carrying the reserved _target_ key.
	Component
)

func (k Kind) String() string {
	switch k {
	case Expression:
		return "Expression"
	case Component:
		return "Component"
	default:
		return "Plain"
	}
}

// Item is the classified form of one addressable node.
type Item struct {
	Kind Kind
	ID   string

	// Value holds the raw value for Plain items (a scalar, *tree.Mapping,
	// or []any container).
	Value any

	// Source holds the expression text (with the leading '$' stripped)
	// for Expression items.
	Source string

	// Spec holds the component mapping for Component items.
	Spec *tree.Mapping
}

// reservedKeys are the special keys inside a Component spec; everything
// else is a named argument.
var reservedKeys = map[string]bool{
	"_target_":   true,
	"_disabled_": true,
	"_mode_":     true,
	"_requires_": true,
}

// Classify walks root and returns the flat Id -> Item table.
func Classify(root tree.Tree) map[string]*Item {
	out := map[string]*Item{}
	classifyAt(root, "", out)
	return out
}

func classifyAt(node tree.Tree, id string, out map[string]*Item) {
	switch v := node.(type) {
	case *tree.Mapping:
		if v.Has("_target_") {
			out[id] = &Item{Kind: Component, ID: id, Spec: v}
		} else {
			out[id] = &Item{Kind: Plain, ID: id, Value: v}
		}
		v.Range(func(key string, value any) bool {
			classifyAt(value, path.Child(id, key), out)
			return true
		})

	case []any:
		out[id] = &Item{Kind: Plain, ID: id, Value: v}
		for i, elem := range v {
			classifyAt(elem, path.Child(id, strconv.Itoa(i)), out)
		}

	case string:
		if strings.HasPrefix(v, "$") {
			out[id] = &Item{Kind: Expression, ID: id, Source: v[1:]}
		} else {
			out[id] = &Item{Kind: Plain, ID: id, Value: v}
		}

	default:
		out[id] = &Item{Kind: Plain, ID: id, Value: v}
	}
}

// Target returns the component's _target_ value (a dotted symbol name or
// a pre-resolved callable) and whether it was present.
func Target(spec *tree.Mapping) (any, bool) {
	return spec.Get("_target_")
}

// Disabled reports a component's _disabled_ value: truthy bool, or the
// case-insensitive, trimmed string "true".
func Disabled(spec *tree.Mapping) bool {
	v, ok := spec.Get("_disabled_")
	if !ok {
		return false
	}
	switch t := v.(type) {
	case bool:
		return t
	case string:
		return strings.EqualFold(strings.TrimSpace(t), "true")
	default:
		return false
	}
}

// Mode returns a component's _mode_, defaulting to "default".
func Mode(spec *tree.Mapping) string {
	v, ok := spec.Get("_mode_")
	if !ok {
		return "default"
	}
	if s, ok := v.(string); ok {
		return s
	}
	return "default"
}

// Requires returns a component's _requires_ list of reference/expression
// strings that must resolve before the component itself does.
func Requires(spec *tree.Mapping) []string {
	v, ok := spec.Get("_requires_")
	if !ok {
		return nil
	}
	seq, ok := tree.IsSequence(v)
	if !ok {
		return nil
	}
	out := make([]string, 0, len(seq))
	for _, e := range seq {
		if s, ok := e.(string); ok {
			out = append(out, s)
		}
	}
	return out
}

// ArgKeys returns a component spec's non-reserved keys, in declaration
// order, for use as the keyword arguments passed to the target symbol.
func ArgKeys(spec *tree.Mapping) []string {
	out := make([]string, 0, spec.Len())
	for _, k := range spec.Keys() {
		if !reservedKeys[k] {
			out = append(out, k)
		}
	}
	return out
}
