// Package resolver implements the Resolver (spec §4.6): lazy,
// memoizing, cycle-detecting resolution of a classified Item table into
// concrete values, including reference substitution, expression
// evaluation, and component instantiation.
package resolver

import (
	"fmt"
	"regexp"
	"sort"
	"strconv"
	"strings"

	"github.com/texttheater/golang-levenshtein/levenshtein"

	"github.com/project-lighter/sparkwheel/internal/items"
	"github.com/project-lighter/sparkwheel/internal/log"
	"github.com/project-lighter/sparkwheel/internal/path"
	"github.com/project-lighter/sparkwheel/internal/tree"
	"github.com/project-lighter/sparkwheel/pkg/sparkwheel/expr"
	"github.com/project-lighter/sparkwheel/pkg/sparkwheel/symbol"
)

// Options controls one Resolve call, per spec §4.6's resolve(id, opts).
type Options struct {
	Instantiate           bool
	EvalExpr              bool
	AllowMissingReference bool
}

// DefaultOptions returns {Instantiate: true, EvalExpr: true}.
func DefaultOptions() Options {
	return Options{Instantiate: true, EvalExpr: true}
}

// KeyNotFoundError reports a reference or a direct Resolve call against
// an id absent from the item table.
type KeyNotFoundError struct {
	ID         string
	Suggestion string
}

func (e *KeyNotFoundError) Error() string {
	if e.Suggestion != "" {
		return fmt.Sprintf("no such id %q (did you mean %q?)", e.ID, e.Suggestion)
	}
	return fmt.Sprintf("no such id %q", e.ID)
}

// CircularReferenceError reports a dependency cycle, with the chain of
// ids from the first insertion to the one that re-entered.
type CircularReferenceError struct {
	Chain []string
}

func (e *CircularReferenceError) Error() string {
	return fmt.Sprintf("circular reference: %s", strings.Join(e.Chain, " -> "))
}

// Resolver holds the per-Config resolution state: the classified item
// table, the memo, and the in-progress set for cycle detection.
type Resolver struct {
	items      map[string]*items.Item
	resolved   map[string]any
	inProgress map[string]bool
	chain      []string
	globals    map[string]any
	host       expr.Host
	symbols    symbol.Loader
}

// New builds a Resolver over a classified item table. globals is the
// expression host's captured-globals scope, shared across every
// Expression item (spec §3.6 calls this "captured_globals").
func New(itemTable map[string]*items.Item, globals map[string]any, host expr.Host, symbols symbol.Loader) *Resolver {
	return &Resolver{
		items:      itemTable,
		resolved:   map[string]any{},
		inProgress: map[string]bool{},
		globals:    globals,
		host:       host,
		symbols:    symbols,
	}
}

// Reset clears the memo. Called whenever the owning Config is mutated
// via set/merge (spec §4.6: "mutating... invalidates the entire memo").
func (r *Resolver) Reset() {
	r.resolved = map[string]any{}
	r.inProgress = map[string]bool{}
	r.chain = nil
}

// Resolve is resolve_one(id) from spec §4.6.
func (r *Resolver) Resolve(id string, opts Options) (any, error) {
	if v, ok := r.resolved[id]; ok {
		return v, nil
	}
	if r.inProgress[id] {
		return nil, &CircularReferenceError{Chain: append(append([]string{}, r.chain...), id)}
	}
	item, ok := r.items[id]
	if !ok {
		return nil, &KeyNotFoundError{ID: id, Suggestion: r.suggest(id)}
	}

	r.inProgress[id] = true
	r.chain = append(r.chain, id)
	defer func() {
		delete(r.inProgress, id)
		r.chain = r.chain[:len(r.chain)-1]
	}()

	for _, ref := range findReferences(item) {
		if _, err := r.Resolve(ref, opts); err != nil {
			if opts.AllowMissingReference && isMissing(err) {
				log.Warn("missing reference %q (allowed): leaving unresolved", ref)
				continue
			}
			return nil, err
		}
	}

	if item.Kind == items.Component {
		rawReqs, _ := item.Spec.Get("_requires_")
		reqs, _ := tree.IsSequence(rawReqs)
		for i, raw := range reqs {
			req, ok := raw.(string)
			if !ok {
				continue
			}
			reqID := bareID(req)
			if strings.HasPrefix(req, "$") {
				// An expression entry is resolved as its own classified item.
				reqID = path.Child(path.Child(item.ID, "_requires_"), strconv.Itoa(i))
			}
			if _, err := r.Resolve(reqID, opts); err != nil {
				return nil, err
			}
		}
	}

	value, err := r.produce(item, opts)
	if err != nil {
		return nil, err
	}

	r.resolved[id] = value
	return value, nil
}

func isMissing(err error) bool {
	_, ok := err.(*KeyNotFoundError)
	return ok
}

func (r *Resolver) suggest(id string) string {
	best, bestDist := "", -1
	for cand := range r.items {
		d := levenshtein.DistanceForStrings([]rune(id), []rune(cand), levenshtein.DefaultOptions)
		if bestDist == -1 || d < bestDist {
			best, bestDist = cand, d
		}
	}
	return best
}

func (r *Resolver) produce(item *items.Item, opts Options) (any, error) {
	switch item.Kind {
	case items.Expression:
		if !opts.EvalExpr {
			return "$" + item.Source, nil
		}
		return r.evaluateExpression(item, opts)
	case items.Component:
		return r.instantiateComponent(item, opts)
	default:
		return r.substitutePlain(item, opts)
	}
}

func (r *Resolver) substitutePlain(item *items.Item, opts Options) (any, error) {
	switch v := item.Value.(type) {
	case *tree.Mapping:
		return r.substituteMapping(item.ID, v, opts)
	case []any:
		return r.substituteSequence(item.ID, v, opts)
	case string:
		if ref, ok := bareReference(v); ok {
			val, err := r.Resolve(ref, opts)
			if err != nil {
				if opts.AllowMissingReference && isMissing(err) {
					log.Warn("missing reference %q (allowed): leaving token textual", ref)
					return v, nil
				}
				return nil, err
			}
			return val, nil
		}
		return v, nil
	default:
		return v, nil
	}
}

func (r *Resolver) substituteMapping(id string, m *tree.Mapping, opts Options) (*tree.Mapping, error) {
	out := tree.NewMapping()
	var failure error
	m.Range(func(key string, _ any) bool {
		childID := path.Child(id, key)
		val, err := r.Resolve(childID, opts)
		if err != nil {
			if opts.AllowMissingReference && isMissing(err) {
				log.Warn("missing reference %q (allowed): dropped from container", childID)
				return true
			}
			failure = err
			return false
		}
		if r.isDisabledComponent(childID) {
			return true
		}
		out.Set(key, val)
		return true
	})
	if failure != nil {
		return nil, failure
	}
	return out, nil
}

func (r *Resolver) substituteSequence(id string, seq []any, opts Options) ([]any, error) {
	out := make([]any, 0, len(seq))
	for i := range seq {
		childID := path.Child(id, strconv.Itoa(i))
		val, err := r.Resolve(childID, opts)
		if err != nil {
			if opts.AllowMissingReference && isMissing(err) {
				log.Warn("missing reference %q (allowed): dropped from container", childID)
				continue
			}
			return nil, err
		}
		if r.isDisabledComponent(childID) {
			continue
		}
		out = append(out, val)
	}
	return out, nil
}

func (r *Resolver) isDisabledComponent(id string) bool {
	item, ok := r.items[id]
	return ok && item.Kind == items.Component && items.Disabled(item.Spec)
}

var exprRefPattern = regexp.MustCompile(`@[A-Za-z_][A-Za-z0-9_]*(?:::[A-Za-z0-9_]+)*`)

func (r *Resolver) evaluateExpression(item *items.Item, opts Options) (any, error) {
	refs := extractExprRefs(item.Source)
	// Longest-id-first so a short ref's text can't corrupt a longer
	// ref's token before it is substituted (spec §4.6).
	sort.Slice(refs, func(i, j int) bool { return len(refs[i]) > len(refs[j]) })

	rewritten := item.Source
	locals := make(map[string]any, len(refs))
	for _, ref := range refs {
		val, err := r.Resolve(ref, opts)
		if err != nil {
			if opts.AllowMissingReference && isMissing(err) {
				log.Warn("missing reference %q (allowed) in expression at %q", ref, item.ID)
				continue
			}
			return nil, err
		}
		locals[ref] = val
		rewritten = strings.ReplaceAll(rewritten, "@"+ref, "["+ref+"]")
	}

	return r.host.Evaluate(rewritten, r.globals, locals)
}

func (r *Resolver) instantiateComponent(item *items.Item, opts Options) (any, error) {
	spec := item.Spec
	if items.Disabled(spec) {
		return nil, nil
	}

	argKeys := items.ArgKeys(spec)
	kwargs := make(map[string]any, len(argKeys))
	for _, k := range argKeys {
		childID := path.Child(item.ID, k)
		val, err := r.Resolve(childID, opts)
		if err != nil {
			if opts.AllowMissingReference && isMissing(err) {
				log.Warn("missing reference %q (allowed): argument dropped", childID)
				continue
			}
			return nil, err
		}
		if r.isDisabledComponent(childID) {
			continue
		}
		kwargs[k] = val
	}

	targetRaw, _ := items.Target(spec)
	target, err := r.resolveTargetValue(targetRaw, opts)
	if err != nil {
		return nil, err
	}

	if !opts.Instantiate {
		out := tree.NewMapping()
		out.Set("_target_", target)
		for _, k := range argKeys {
			if v, ok := kwargs[k]; ok {
				out.Set(k, v)
			}
		}
		return out, nil
	}

	mode := symbol.Mode(items.Mode(spec))
	return r.symbols.Invoke(target, mode, kwargs)
}

func (r *Resolver) resolveTargetValue(targetRaw any, opts Options) (any, error) {
	s, ok := targetRaw.(string)
	if !ok {
		return targetRaw, nil
	}
	if ref, isRef := bareReference(s); isRef {
		return r.Resolve(ref, opts)
	}
	return s, nil
}

func bareReference(s string) (string, bool) {
	if strings.HasPrefix(s, "@") {
		return s[1:], true
	}
	return "", false
}

func bareID(s string) string {
	if ref, ok := bareReference(s); ok {
		return ref
	}
	return s
}

func extractExprRefs(source string) []string {
	matches := exprRefPattern.FindAllString(source, -1)
	seen := map[string]bool{}
	out := make([]string, 0, len(matches))
	for _, m := range matches {
		id := m[1:]
		if !seen[id] {
			seen[id] = true
			out = append(out, id)
		}
	}
	return out
}

func findReferences(item *items.Item) []string {
	switch item.Kind {
	case items.Expression:
		return extractExprRefs(item.Source)

	case items.Component:
		refs := make([]string, 0, len(items.ArgKeys(item.Spec))+1)
		for _, k := range items.ArgKeys(item.Spec) {
			refs = append(refs, path.Child(item.ID, k))
		}
		if targetRaw, ok := items.Target(item.Spec); ok {
			if s, ok2 := targetRaw.(string); ok2 {
				if ref, ok3 := bareReference(s); ok3 {
					refs = append(refs, ref)
				}
			}
		}
		return refs

	default: // Plain
		switch v := item.Value.(type) {
		case *tree.Mapping:
			refs := make([]string, 0, v.Len())
			for _, k := range v.Keys() {
				refs = append(refs, path.Child(item.ID, k))
			}
			return refs
		case []any:
			refs := make([]string, 0, len(v))
			for i := range v {
				refs = append(refs, path.Child(item.ID, strconv.Itoa(i)))
			}
			return refs
		case string:
			if ref, ok := bareReference(v); ok {
				return []string{ref}
			}
			return nil
		default:
			return nil
		}
	}
}
