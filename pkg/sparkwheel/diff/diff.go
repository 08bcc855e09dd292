// Package diff computes a structural comparison between two resolved
// or raw config trees: which ids were added, removed, changed, or left
// unchanged. Terminal rendering (color, unified-diff formatting) is
// out of scope here — see cmd/sparkwheel, whose --pretty mode renders
// the two source files through the teacher's homeport/dyff and
// gonvenience/ytbx dependencies instead of rendering a Diff.
package diff

import (
	"fmt"
	"reflect"
	"sort"

	"github.com/project-lighter/sparkwheel/internal/path"
	"github.com/project-lighter/sparkwheel/internal/tree"
)

// Change pairs the old and new value at an id present in both trees
// with different values.
type Change struct {
	Old any
	New any
}

// Diff is the structural comparison result between two trees, keyed
// by flattened Id (spec.md §3.2's "::" addressing, not dotted Python
// keys).
type Diff struct {
	Added     map[string]any
	Removed   map[string]any
	Changed   map[string]Change
	Unchanged map[string]any
}

// HasChanges reports whether anything was added, removed, or changed.
func (d Diff) HasChanges() bool {
	return len(d.Added) > 0 || len(d.Removed) > 0 || len(d.Changed) > 0
}

// Summary renders a short human-readable count, e.g. "2 changed, 1
// added" or "no changes" when the trees are identical.
func (d Diff) Summary() string {
	var parts []string
	if n := len(d.Changed); n > 0 {
		parts = append(parts, fmt.Sprintf("%d changed", n))
	}
	if n := len(d.Added); n > 0 {
		parts = append(parts, fmt.Sprintf("%d added", n))
	}
	if n := len(d.Removed); n > 0 {
		parts = append(parts, fmt.Sprintf("%d removed", n))
	}
	if len(parts) == 0 {
		return "no changes"
	}
	out := parts[0]
	for _, p := range parts[1:] {
		out += ", " + p
	}
	return out
}

// Compare flattens a and b into Id -> leaf-value maps and buckets
// every Id present in either into Added, Removed, Changed, or
// Unchanged.
func Compare(a, b tree.Tree) Diff {
	flatA := flatten(a, "")
	flatB := flatten(b, "")

	diff := Diff{
		Added:     map[string]any{},
		Removed:   map[string]any{},
		Changed:   map[string]Change{},
		Unchanged: map[string]any{},
	}

	all := map[string]bool{}
	for k := range flatA {
		all[k] = true
	}
	for k := range flatB {
		all[k] = true
	}

	for key := range all {
		va, inA := flatA[key]
		vb, inB := flatB[key]
		switch {
		case inA && inB:
			if equalValue(va, vb) {
				diff.Unchanged[key] = va
			} else {
				diff.Changed[key] = Change{Old: va, New: vb}
			}
		case inB:
			diff.Added[key] = vb
		default:
			diff.Removed[key] = va
		}
	}

	return diff
}

// flatten mirrors the original _flatten_config: it walks mappings
// (skipping the "_meta_" key, which never appears as a scalar leaf)
// and joins child ids with "::", leaving sequences as leaf values
// rather than flattening per-index, since list identity under
// resolution is positional, not key-addressed.
func flatten(v tree.Tree, prefix string) map[string]any {
	out := map[string]any{}
	m, ok := tree.IsMapping(v)
	if !ok {
		if prefix != "" {
			out[prefix] = v
		}
		return out
	}

	for _, k := range m.Keys() {
		if k == "_meta_" {
			continue
		}
		child, _ := m.Get(k)
		childID := path.Child(prefix, k)
		if childMap, isMap := tree.IsMapping(child); isMap {
			for ck, cv := range flatten(childMap, childID) {
				out[ck] = cv
			}
		} else {
			out[childID] = child
		}
	}
	return out
}

func equalValue(a, b any) bool {
	return reflect.DeepEqual(a, b)
}

// SortedKeys returns every Id touched by the diff (added, removed,
// changed, unchanged), sorted, for deterministic rendering.
func (d Diff) SortedKeys() []string {
	seen := map[string]bool{}
	for k := range d.Added {
		seen[k] = true
	}
	for k := range d.Removed {
		seen[k] = true
	}
	for k := range d.Changed {
		seen[k] = true
	}
	for k := range d.Unchanged {
		seen[k] = true
	}
	keys := make([]string, 0, len(seen))
	for k := range seen {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
