package sparkwheel

import (
	"github.com/project-lighter/sparkwheel/internal/loader"
	"github.com/project-lighter/sparkwheel/internal/merge"
	"github.com/project-lighter/sparkwheel/internal/preprocess"
	"github.com/project-lighter/sparkwheel/internal/resolver"
	"github.com/project-lighter/sparkwheel/pkg/sparkwheel/expr"
	"github.com/project-lighter/sparkwheel/pkg/sparkwheel/symbol"
)

// The taxonomy below (spec §7) is realized as the concrete error types
// each pipeline stage already returns, re-exported here under the names
// a caller of the façade would reach for with errors.As. Every variant
// keeps its own Unwrap, so errors.Is/errors.As compose through them
// exactly as they do inside the stage that raised them.
type (
	// LoadError reports YAML syntax, an unreadable file, or a
	// non-YAML extension.
	LoadError = loader.LoadError

	// MergeError reports operator misuse during composition: `~` on a
	// missing dict key, a non-integer or out-of-range list index, or a
	// value shape the operator can't apply to.
	MergeError = merge.MergeError

	// CircularMacroError reports a cycle in macro expansion.
	CircularMacroError = preprocess.CircularMacroError

	// MacroTargetError reports a macro token whose file or id could
	// not be located.
	MacroTargetError = preprocess.MacroTargetError

	// KeyNotFound reports a lookup or reference resolution failure.
	// When raised by Resolve it suggests the known id with the smallest
	// Levenshtein distance; no similarity threshold is applied, so a
	// suggestion is given whenever any id exists.
	KeyNotFound = resolver.KeyNotFoundError

	// CircularReference reports a cycle in the @ reference graph.
	CircularReference = resolver.CircularReferenceError

	// EvaluationError reports the expression host rejecting or
	// failing a $ source.
	EvaluationError = expr.EvaluationError

	// InstantiationError reports a resolved symbol that raised during
	// invocation.
	InstantiationError = symbol.InstantiationError

	// ModuleNotFoundError reports a dotted _target_ that could not be
	// located, with a Levenshtein-distance suggestion across the members
	// of the last namespace the lookup reached.
	ModuleNotFoundError = symbol.ModuleNotFoundError
)
