// Package merge implements the Composer (spec §3.4, §4.3): combining a base
// Tree with an override Tree under three explicit operators keyed off a
// leading character on the override's mapping keys.
package merge

import (
	"fmt"

	"github.com/project-lighter/sparkwheel/internal/path"
	"github.com/project-lighter/sparkwheel/internal/tree"
)

// MergeError reports an operator misuse: a `~` applied to a missing
// sub-key, a non-integer/out-of-range list index, or a `~` value that is
// neither null, "", nor a list.
type MergeError struct {
	ID     string
	Reason string
}

func (e *MergeError) Error() string {
	if e.ID != "" {
		return fmt.Sprintf("%s: %s", e.ID, e.Reason)
	}
	return e.Reason
}

type op int

const (
	opCompose op = iota
	opReplace
	opRemove
)

// classify splits a leading operator character off an override key. The
// legacy `+` prefix is recognized and treated as plain compose (spec §9:
// "a single, documented behavior... `+` as a recognized-but-equivalent-to-
// default alias").
func classify(key string) (op, string) {
	if key == "" {
		return opCompose, key
	}
	switch key[0] {
	case '=':
		return opReplace, key[1:]
	case '~':
		return opRemove, key[1:]
	case '+':
		return opCompose, key[1:]
	default:
		return opCompose, key
	}
}

// Merge combines override into base and returns the result. base is never
// mutated; override values are deep-copied when installed.
func Merge(base, override tree.Tree) (tree.Tree, error) {
	return mergeAt(base, override, "")
}

func mergeAt(base, override tree.Tree, id string) (tree.Tree, error) {
	overrideMap, overrideIsMap := tree.IsMapping(override)
	baseMap, baseIsMap := tree.IsMapping(base)
	if !overrideIsMap || !baseIsMap {
		// Invariant 2: a non-mapping on either side means override wins
		// outright (primitive, list, or a mapping/non-mapping mismatch).
		return tree.DeepCopy(override), nil
	}

	result := baseMap.Clone()

	var failure error
	overrideMap.Range(func(key string, value any) bool {
		kind, bare := classify(key)
		childID := path.Child(id, bare)

		switch kind {
		case opReplace:
			result.Set(bare, tree.DeepCopy(value))

		case opRemove:
			if err := applyRemove(result, bare, value, childID); err != nil {
				failure = err
				return false
			}

		case opCompose:
			existing, exists := result.Get(bare)
			if exists {
				if existingMap, ok := tree.IsMapping(existing); ok {
					if valueMap, ok2 := tree.IsMapping(value); ok2 {
						merged, err := mergeAt(existingMap, valueMap, childID)
						if err != nil {
							failure = err
							return false
						}
						result.Set(bare, merged)
						return true
					}
				}
				if existingSeq, ok := tree.IsSequence(existing); ok {
					if valueSeq, ok2 := tree.IsSequence(value); ok2 {
						combined := make([]any, 0, len(existingSeq)+len(valueSeq))
						for _, v := range existingSeq {
							combined = append(combined, tree.DeepCopy(v))
						}
						for _, v := range valueSeq {
							combined = append(combined, tree.DeepCopy(v))
						}
						result.Set(bare, combined)
						return true
					}
				}
			}
			result.Set(bare, tree.DeepCopy(value))
		}
		return true
	})
	if failure != nil {
		return nil, failure
	}
	return result, nil
}

// applyRemove implements the `~KEY` operator's validation (spec §3.4).
func applyRemove(m *tree.Mapping, key string, value any, id string) error {
	if value == nil {
		m.Delete(key)
		return nil
	}
	if s, ok := value.(string); ok && s == "" {
		m.Delete(key)
		return nil
	}

	list, ok := tree.IsSequence(value)
	if !ok {
		return &MergeError{ID: id, Reason: fmt.Sprintf("~%s: value must be null, empty string, or a list", key)}
	}

	existing, exists := m.Get(key)
	if !exists {
		if len(list) == 0 {
			return nil
		}
		return &MergeError{ID: id, Reason: fmt.Sprintf("cannot remove from non-existent key %q", key)}
	}

	if dictBase, ok := tree.IsMapping(existing); ok {
		cloned := dictBase.Clone()
		for _, item := range list {
			subKey, ok := item.(string)
			if !ok {
				return &MergeError{ID: id, Reason: fmt.Sprintf("~%s: sub-key list must contain strings, got %T", key, item)}
			}
			if !cloned.Has(subKey) {
				return &MergeError{ID: id, Reason: fmt.Sprintf("~%s: sub-key %q does not exist", key, subKey)}
			}
			cloned.Delete(subKey)
		}
		m.Set(key, cloned)
		return nil
	}

	if seqBase, ok := tree.IsSequence(existing); ok {
		n := len(seqBase)
		toDelete := make(map[int]bool, len(list))
		for _, item := range list {
			idx, ok := asInt(item)
			if !ok {
				return &MergeError{ID: id, Reason: fmt.Sprintf("~%s: index list must contain integers, got %v", key, item)}
			}
			norm := idx
			if norm < 0 {
				norm += n
			}
			if norm < 0 || norm >= n {
				return &MergeError{ID: id, Reason: fmt.Sprintf("~%s: index %d out of range for length %d", key, idx, n)}
			}
			toDelete[norm] = true
		}
		out := make([]any, 0, n-len(toDelete))
		for i, v := range seqBase {
			if toDelete[i] {
				continue
			}
			out = append(out, tree.DeepCopy(v))
		}
		m.Set(key, out)
		return nil
	}

	return &MergeError{ID: id, Reason: fmt.Sprintf("cannot apply ~%s: existing value is neither a mapping nor a list", key)}
}

func asInt(v any) (int, bool) {
	switch n := v.(type) {
	case int:
		return n, true
	case int64:
		return int(n), true
	case float64:
		if n == float64(int(n)) {
			return int(n), true
		}
		return 0, false
	default:
		return 0, false
	}
}
