// Package symbol defines the symbol loader contract (spec §4.8) and a
// Registry implementation: a dotted-name namespace of Go values, with
// Levenshtein-distance suggestions on lookup failure and kwargs-style
// invocation for component instantiation.
package symbol

import (
	"fmt"
	"reflect"
	"sort"
	"strings"

	"github.com/texttheater/golang-levenshtein/levenshtein"

	"github.com/project-lighter/sparkwheel/internal/log"
)

// Mode mirrors a Component's _mode_ (spec §3.6).
type Mode string

const (
	ModeDefault  Mode = "default"
	ModeCallable Mode = "callable"
	ModeDebug    Mode = "debug"
)

// Callable is the uniform calling convention every registered symbol
// must satisfy: Go has no runtime parameter names to match kwargs
// against, so every invocable symbol takes its arguments as a single
// name->value map instead of a native parameter list.
type Callable func(kwargs map[string]any) (any, error)

// Loader resolves dotted names to values and invokes them under a mode.
type Loader interface {
	Resolve(dottedName string) (any, error)
	Invoke(target any, mode Mode, kwargs map[string]any) (any, error)
}

// ModuleNotFoundError reports a dotted-name lookup failure, with a
// best-effort suggestion drawn from the last enclosing namespace's
// members.
type ModuleNotFoundError struct {
	Target     string
	Suggestion string
}

func (e *ModuleNotFoundError) Error() string {
	if e.Suggestion != "" {
		return fmt.Sprintf("symbol %q not found (did you mean %q?)", e.Target, e.Suggestion)
	}
	return fmt.Sprintf("symbol %q not found", e.Target)
}

// InstantiationError wraps a failure invoking a resolved symbol.
type InstantiationError struct {
	Target string
	Err    error
}

func (e *InstantiationError) Error() string {
	return fmt.Sprintf("instantiating %q: %v", e.Target, e.Err)
}

func (e *InstantiationError) Unwrap() error { return e.Err }

// Registry is a dotted-name tree of registered values. Intermediate
// segments hold nested map[string]any "modules"; leaves hold any Go
// value (typically a Callable, but any value a component may reference
// via _target_ is valid).
type Registry struct {
	root map[string]any
}

// NewRegistry returns an empty Registry.
func NewRegistry() *Registry {
	return &Registry{root: map[string]any{}}
}

// Register installs value at dottedName, creating intermediate
// namespace maps as needed.
func (r *Registry) Register(dottedName string, value any) {
	segments := strings.Split(dottedName, ".")
	cur := r.root
	for _, seg := range segments[:len(segments)-1] {
		next, ok := cur[seg]
		if !ok {
			m := map[string]any{}
			cur[seg] = m
			cur = m
			continue
		}
		m, ok := next.(map[string]any)
		if !ok {
			m = map[string]any{}
			cur[seg] = m
		}
		cur = m
	}
	cur[segments[len(segments)-1]] = value
}

// Has reports whether dottedName resolves to something.
func (r *Registry) Has(dottedName string) bool {
	_, err := r.Resolve(dottedName)
	return err == nil
}

// Resolve traverses dottedName through the registry. On failure it
// suggests the member of the last successfully reached namespace with the
// smallest Levenshtein distance (golang-levenshtein's default options;
// transpositions are not counted as a single edit).
func (r *Registry) Resolve(dottedName string) (any, error) {
	segments := strings.Split(dottedName, ".")
	var cur any = r.root

	for _, seg := range segments {
		m, ok := cur.(map[string]any)
		if !ok {
			return nil, &ModuleNotFoundError{Target: dottedName}
		}
		next, ok := m[seg]
		if !ok {
			return nil, &ModuleNotFoundError{Target: dottedName, Suggestion: suggest(seg, members(m))}
		}
		cur = next
	}
	return cur, nil
}

func members(namespace map[string]any) []string {
	out := make([]string, 0, len(namespace))
	for k := range namespace {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}

func suggest(target string, candidates []string) string {
	best, bestDist := "", -1
	for _, c := range candidates {
		d := levenshtein.DistanceForStrings([]rune(target), []rune(c), levenshtein.DefaultOptions)
		if bestDist == -1 || d < bestDist {
			best, bestDist = c, d
		}
	}
	return best
}

// Invoke resolves target if it's a dotted name (or uses it directly if
// it's an already-resolved value), then applies mode per spec §4.8.
func (r *Registry) Invoke(target any, mode Mode, kwargs map[string]any) (any, error) {
	resolved := target
	targetName := fmt.Sprintf("%v", target)
	if name, ok := target.(string); ok {
		v, err := r.Resolve(name)
		if err != nil {
			return nil, err
		}
		resolved = v
		targetName = name
	}

	switch mode {
	case ModeCallable:
		if len(kwargs) == 0 {
			return resolved, nil
		}
		return bindPartial(resolved, kwargs), nil

	case ModeDebug:
		log.Debug("entering instantiation debug hook for %s", targetName)
		fallthrough

	case ModeDefault, "":
		v, err := invoke(resolved, kwargs)
		if err != nil {
			return nil, &InstantiationError{Target: targetName, Err: err}
		}
		return v, nil

	default:
		return nil, &InstantiationError{Target: targetName, Err: fmt.Errorf("unknown mode %q", mode)}
	}
}

func bindPartial(v any, kwargs map[string]any) Callable {
	captured := make(map[string]any, len(kwargs))
	for k, val := range kwargs {
		captured[k] = val
	}
	return func(extra map[string]any) (any, error) {
		merged := make(map[string]any, len(captured)+len(extra))
		for k, val := range captured {
			merged[k] = val
		}
		for k, val := range extra {
			merged[k] = val
		}
		return invoke(v, merged)
	}
}

func invoke(v any, kwargs map[string]any) (any, error) {
	if fn, ok := v.(Callable); ok {
		return fn(kwargs)
	}

	rv := reflect.ValueOf(v)
	if rv.Kind() != reflect.Func {
		return nil, fmt.Errorf("value of type %T is not invocable (must satisfy symbol.Callable)", v)
	}

	ft := rv.Type()
	if ft.NumIn() != 1 || !reflect.TypeOf(kwargs).AssignableTo(ft.In(0)) {
		return nil, fmt.Errorf("function %s does not accept a map[string]any kwargs argument", ft)
	}

	results := rv.Call([]reflect.Value{reflect.ValueOf(kwargs)})
	switch len(results) {
	case 1:
		return results[0].Interface(), nil
	case 2:
		if errVal, ok := results[1].Interface().(error); ok {
			return results[0].Interface(), errVal
		}
		return results[0].Interface(), nil
	default:
		return nil, fmt.Errorf("function %s has an unsupported return signature", ft)
	}
}
