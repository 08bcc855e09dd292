// Package preprocess implements the Preprocessor (spec §4.4): a single
// walk over a composed Tree that rewrites relative reference/macro
// prefixes to absolute ones and inlines macros, producing a Tree whose
// only remaining string sigils are absolute `@ID` references and `$EXPR`
// expressions.
package preprocess

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/project-lighter/sparkwheel/internal/loader"
	"github.com/project-lighter/sparkwheel/internal/path"
	"github.com/project-lighter/sparkwheel/internal/tree"
)

// CircularMacroError reports a macro token that references itself,
// directly or through a chain of other macros.
type CircularMacroError struct {
	Token string
	Chain []string
}

func (e *CircularMacroError) Error() string {
	return fmt.Sprintf("circular macro expansion at %q (chain: %s)", e.Token, strings.Join(e.Chain, " -> "))
}

// MacroTargetError reports a macro whose target id does not exist in the
// resolved source tree.
type MacroTargetError struct {
	Token  string
	Reason string
}

func (e *MacroTargetError) Error() string {
	return fmt.Sprintf("macro %q: %s", e.Token, e.Reason)
}

// Options configures macro expansion of file-qualified macros.
type Options struct {
	// LoaderOptions is forwarded to loader.LoadFile for any %FILE::ID
	// macro target.
	LoaderOptions loader.Options
}

// Preprocess walks root and returns a new Tree with every relative
// prefix resolved and every macro inlined. root is not mutated.
func Preprocess(root tree.Tree, opts Options) (tree.Tree, error) {
	p := &preprocessor{
		self:      root,
		opts:      opts,
		expanding: map[string]bool{},
		fileCache: map[string]tree.Tree{},
	}
	return p.walk(root, "")
}

type preprocessor struct {
	self      tree.Tree // this Config's own composed tree, for fileless macros
	opts      Options
	expanding map[string]bool
	fileCache map[string]tree.Tree
	chain     []string
}

func (p *preprocessor) walk(node tree.Tree, id string) (tree.Tree, error) {
	switch v := node.(type) {
	case string:
		rewritten, err := path.ResolveRelative(id, v)
		if err != nil {
			return nil, err
		}
		if isMacro(rewritten) {
			return p.expandMacro(rewritten, id)
		}
		return rewritten, nil

	case *tree.Mapping:
		out := tree.NewMapping()
		var failure error
		v.Range(func(key string, value any) bool {
			child, err := p.walk(value, path.Child(id, key))
			if err != nil {
				failure = err
				return false
			}
			out.Set(key, child)
			return true
		})
		if failure != nil {
			return nil, failure
		}
		return out, nil

	case []any:
		out := make([]any, len(v))
		for i, elem := range v {
			child, err := p.walk(elem, path.Child(id, strconv.Itoa(i)))
			if err != nil {
				return nil, err
			}
			out[i] = child
		}
		return out, nil

	default:
		return v, nil
	}
}

func isMacro(s string) bool {
	return strings.HasPrefix(s, "%")
}

func (p *preprocessor) expandMacro(token, callSiteID string) (tree.Tree, error) {
	if p.expanding[token] {
		return nil, &CircularMacroError{Token: token, Chain: append(append([]string{}, p.chain...), token)}
	}

	file, id := path.SplitFileAndID(token[1:])

	var source tree.Tree
	if file == "" {
		source = p.self
	} else {
		cached, ok := p.fileCache[file]
		if !ok {
			loaded, _, err := loader.LoadFile(file, p.opts.LoaderOptions)
			if err != nil {
				return nil, &MacroTargetError{Token: token, Reason: err.Error()}
			}
			cached = loaded
			p.fileCache[file] = cached
		}
		source = cached
	}

	target, err := getByID(source, id)
	if err != nil {
		return nil, &MacroTargetError{Token: token, Reason: err.Error()}
	}

	p.expanding[token] = true
	p.chain = append(p.chain, token)
	defer func() {
		delete(p.expanding, token)
		p.chain = p.chain[:len(p.chain)-1]
	}()

	// Preprocess the extracted subtree in its own coordinate system: its
	// relative refs resolve against id, not callSiteID.
	processed, err := p.walk(target, id)
	if err != nil {
		return nil, err
	}
	return tree.DeepCopy(processed), nil
}

// getByID descends root by id's segments, returning an error if any
// segment is missing or addresses through a non-container value.
func getByID(root tree.Tree, id string) (tree.Tree, error) {
	if id == "" {
		return root, nil
	}
	cur := root
	for _, seg := range path.Split(id) {
		switch v := cur.(type) {
		case *tree.Mapping:
			val, ok := v.Get(seg)
			if !ok {
				return nil, fmt.Errorf("no such id %q (missing key %q)", id, seg)
			}
			cur = val
		case []any:
			idx, err := strconv.Atoi(seg)
			if err != nil || idx < 0 || idx >= len(v) {
				return nil, fmt.Errorf("no such id %q (invalid list index %q)", id, seg)
			}
			cur = v[idx]
		default:
			return nil, fmt.Errorf("no such id %q (%q is not a container)", id, seg)
		}
	}
	return cur, nil
}
