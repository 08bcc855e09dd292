// Package expr defines the expression host contract (spec §4.7) and a
// default implementation backed by Knetic/govaluate.
package expr

import (
	"fmt"
	"strings"

	"github.com/Knetic/govaluate"

	"github.com/project-lighter/sparkwheel/internal/log"
)

// Host evaluates a `$`-prefixed expression source in a combined
// globals/locals scope. The resolver builds locals for every `@ID`
// reference found in the source (keyed by the absolute id text) before
// calling Evaluate; the spec's "__local_refs" synthetic dictionary is
// this locals map.
type Host interface {
	Evaluate(source string, globals, locals map[string]any) (any, error)
}

// Importer resolves a dotted symbol name on behalf of the `$import`/
// `$from ... import ...` pseudo-statements. Implemented by
// symbol.Registry.
type Importer interface {
	Resolve(dottedName string) (any, error)
}

// EvaluationError wraps a failure from the host, per spec §4.7.
type EvaluationError struct {
	Source string
	Err    error
}

func (e *EvaluationError) Error() string {
	return fmt.Sprintf("evaluating %q: %v", e.Source, e.Err)
}

func (e *EvaluationError) Unwrap() error { return e.Err }

// Govaluate is the default Host, using Knetic/govaluate for arithmetic,
// comparison, and boolean-logic expressions, and reference lookups via
// govaluate's `[bracketed name]` accessor syntax (the resolver rewrites
// `@a::b` to `[a::b]` before calling Evaluate).
type Govaluate struct {
	Imports Importer
}

// NewGovaluate returns a Govaluate host. imports may be nil, in which
// case `$import`/`$from` statements fail with an error.
func NewGovaluate(imports Importer) *Govaluate {
	return &Govaluate{Imports: imports}
}

func (g *Govaluate) Evaluate(source string, globals, locals map[string]any) (any, error) {
	trimmed := strings.TrimSpace(source)

	switch {
	case strings.HasPrefix(trimmed, "import "):
		return g.evalImport(strings.TrimSpace(strings.TrimPrefix(trimmed, "import ")), globals)
	case trimmed == "import":
		return nil, &EvaluationError{Source: source, Err: fmt.Errorf("import statement names no module")}
	case strings.HasPrefix(trimmed, "from "):
		return g.evalFromImport(strings.TrimPrefix(trimmed, "from "), globals)
	}

	expression, err := govaluate.NewEvaluableExpression(trimmed)
	if err != nil {
		return nil, &EvaluationError{Source: source, Err: err}
	}

	params := make(map[string]any, len(globals)+len(locals))
	for k, v := range globals {
		params[k] = v
	}
	for k, v := range locals {
		if _, collide := globals[k]; collide {
			log.Warn("expression local %q shadows a global of the same name; local wins", k)
		}
		params[k] = v
	}

	result, err := expression.Evaluate(params)
	if err != nil {
		return nil, &EvaluationError{Source: source, Err: err}
	}
	return result, nil
}

func (g *Govaluate) evalImport(spec string, globals map[string]any) (any, error) {
	// "Multiple imports in one statement are discouraged; the first
	// symbol is taken."
	first := strings.TrimSpace(strings.Split(spec, ",")[0])
	if first == "" {
		return nil, &EvaluationError{Source: "import " + spec, Err: fmt.Errorf("empty import target")}
	}
	val, err := g.resolve(first)
	if err != nil {
		return nil, &EvaluationError{Source: "import " + spec, Err: err}
	}
	bindName := first
	if idx := strings.LastIndex(first, "."); idx >= 0 {
		bindName = first[idx+1:]
	}
	globals[bindName] = val
	return val, nil
}

func (g *Govaluate) evalFromImport(rest string, globals map[string]any) (any, error) {
	parts := strings.SplitN(rest, " import ", 2)
	if len(parts) != 2 {
		return nil, &EvaluationError{Source: "from " + rest, Err: fmt.Errorf(`malformed "from ... import ..." statement`)}
	}
	module := strings.TrimSpace(parts[0])
	first := strings.TrimSpace(strings.Split(parts[1], ",")[0])

	symbolName, bindName := first, first
	if asParts := strings.SplitN(first, " as ", 2); len(asParts) == 2 {
		symbolName = strings.TrimSpace(asParts[0])
		bindName = strings.TrimSpace(asParts[1])
	}

	full := module + "." + symbolName
	val, err := g.resolve(full)
	if err != nil {
		return nil, &EvaluationError{Source: "from " + rest, Err: err}
	}
	globals[bindName] = val
	return val, nil
}

func (g *Govaluate) resolve(dottedName string) (any, error) {
	if g.Imports == nil {
		return nil, fmt.Errorf("no symbol importer configured, cannot resolve %q", dottedName)
	}
	return g.Imports.Resolve(dottedName)
}
