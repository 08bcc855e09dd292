package sparkwheel

import (
	"fmt"

	"github.com/project-lighter/sparkwheel/internal/items"
	"github.com/project-lighter/sparkwheel/internal/loader"
	"github.com/project-lighter/sparkwheel/internal/merge"
	"github.com/project-lighter/sparkwheel/internal/metadata"
	"github.com/project-lighter/sparkwheel/internal/path"
	"github.com/project-lighter/sparkwheel/internal/preprocess"
	"github.com/project-lighter/sparkwheel/internal/resolver"
	"github.com/project-lighter/sparkwheel/internal/tree"
	"github.com/project-lighter/sparkwheel/pkg/sparkwheel/expr"
	"github.com/project-lighter/sparkwheel/pkg/sparkwheel/symbol"
)

// Config is the engine's public façade: data holds the raw, unresolved
// tree; metadata holds per-id source locations; a Resolver is built
// lazily the first time Resolve is called and torn down again whenever
// Set or Merge invalidates it.
type Config struct {
	data     tree.Tree
	metadata *metadata.Registry
	globals  map[string]any
	settings Settings

	host    expr.Host
	symbols symbol.Loader

	parsed   bool
	resolver *resolver.Resolver
}

// ConfigOption configures a Config at construction time.
type ConfigOption func(*Config)

// WithSettings overrides the process environment's Settings for this
// Config instance only.
func WithSettings(s Settings) ConfigOption {
	return func(c *Config) { c.settings = s }
}

// WithHost overrides the default govaluate expression host.
func WithHost(h expr.Host) ConfigOption {
	return func(c *Config) { c.host = h }
}

// WithSymbols overrides the default (empty) symbol registry, e.g. to
// supply a *symbol.Registry pre-populated with WithBuiltins() or an
// application's own components.
func WithSymbols(s symbol.Loader) ConfigOption {
	return func(c *Config) { c.symbols = s }
}

func newConfig(opts ...ConfigOption) *Config {
	c := &Config{
		data:     tree.NewMapping(),
		metadata: metadata.NewRegistry(),
		globals:  map[string]any{},
		settings: DefaultSettings(),
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.symbols == nil {
		c.symbols = symbol.NewRegistry()
	}
	if c.host == nil {
		if importer, ok := c.symbols.(expr.Importer); ok {
			c.host = expr.NewGovaluate(importer)
		} else {
			c.host = expr.NewGovaluate(nil)
		}
	}
	return c
}

// Load builds a fresh Config from source: a single file path, a slice
// of file paths (composed in order), or an in-memory Tree literal
// (*tree.Mapping or map[string]any). globals seeds the expression
// host's global namespace (spec §4.7); a string value is resolved
// through the symbol loader the way spec.md's globals contract allows
// ("Pre-imported packages for expressions").
func Load(source any, globals map[string]any, opts ...ConfigOption) (*Config, error) {
	c := newConfig(opts...)

	for k, v := range globals {
		if name, ok := v.(string); ok {
			resolved, err := c.symbols.Resolve(name)
			if err != nil {
				return nil, err
			}
			c.globals[k] = resolved
			continue
		}
		c.globals[k] = v
	}

	switch src := source.(type) {
	case nil:
		// empty config
	case string:
		if err := c.loadFile(src); err != nil {
			return nil, err
		}
	case []string:
		for _, f := range src {
			if err := c.loadFile(f); err != nil {
				return nil, err
			}
		}
	case *tree.Mapping, map[string]any:
		c.data = toTree(src)
	default:
		c.data = src
	}

	return c, nil
}

func toTree(v any) tree.Tree {
	switch t := v.(type) {
	case map[string]any:
		out := tree.NewMapping()
		for k, val := range t {
			out.Set(k, toTree(val))
		}
		return out
	case []any:
		out := make([]any, len(t))
		for i, val := range t {
			out[i] = toTree(val)
		}
		return out
	}
	return v
}

func (c *Config) loadFile(filepath string) error {
	data, meta, err := loader.LoadFile(filepath, loader.Options{StrictKeys: c.settings.StrictKeys})
	if err != nil {
		return err
	}
	merged, err := merge.Merge(c.data, data)
	if err != nil {
		return err
	}
	c.data = merged
	c.metadata.Merge(meta)
	c.invalidate()
	return nil
}

// Get returns the raw, unresolved value at id ("" for the whole tree).
func (c *Config) Get(id string) (any, error) {
	v, ok := lookup(c.data, id)
	if !ok {
		return nil, &resolver.KeyNotFoundError{ID: id}
	}
	return v, nil
}

// GetOr returns the raw value at id, or def if id is absent.
func (c *Config) GetOr(id string, def any) any {
	v, err := c.Get(id)
	if err != nil {
		return def
	}
	return v
}

func lookup(root tree.Tree, id string) (any, bool) {
	if id == "" {
		return root, true
	}
	cur := root
	for _, seg := range path.Split(id) {
		switch node := cur.(type) {
		case *tree.Mapping:
			v, ok := node.Get(seg)
			if !ok {
				return nil, false
			}
			cur = v
		case []any:
			idx, err := parseIndex(seg, len(node))
			if err != nil {
				return nil, false
			}
			cur = node[idx]
		default:
			return nil, false
		}
	}
	return cur, true
}

func parseIndex(seg string, length int) (int, error) {
	var idx int
	if _, err := fmt.Sscanf(seg, "%d", &idx); err != nil {
		return 0, err
	}
	if idx < 0 {
		idx += length
	}
	if idx < 0 || idx >= length {
		return 0, fmt.Errorf("index %s out of range", seg)
	}
	return idx, nil
}

// Set writes value at id, creating missing intermediate mappings, and
// invalidates any existing resolution memo.
func (c *Config) Set(id string, value any) {
	value = toTree(value)
	if id == "" {
		c.data = value
		c.invalidate()
		return
	}

	root, ok := tree.IsMapping(c.data)
	if !ok {
		root = tree.NewMapping()
		c.data = root
	}

	segments := path.Split(id)
	cur := root
	for _, seg := range segments[:len(segments)-1] {
		next, ok := cur.Get(seg)
		child, isMapping := tree.IsMapping(next)
		if !ok || !isMapping {
			child = tree.NewMapping()
			cur.Set(seg, child)
		}
		cur = child
	}
	cur.Set(segments[len(segments)-1], value)
	c.invalidate()
}

// Contains reports whether id resolves to a raw value.
func (c *Config) Contains(id string) bool {
	_, ok := lookup(c.data, id)
	return ok
}

// Merge composes source into the current tree. source is a file path
// or a Tree literal. A map literal with no key containing :: is composed
// structurally through internal/merge (which honours =/~ key prefixes).
// If any key contains ::, every key is applied as a per-path update
// instead: ~KEY deletes the id, +KEY composes when both sides are
// mappings, and any other key is written with Set.
func (c *Config) Merge(source any) error {
	switch src := source.(type) {
	case string:
		data, meta, err := loader.LoadFile(src, loader.Options{StrictKeys: c.settings.StrictKeys})
		if err != nil {
			return err
		}
		merged, err := merge.Merge(c.data, data)
		if err != nil {
			return err
		}
		c.data = merged
		c.metadata.Merge(meta)
		c.invalidate()
		return nil

	case map[string]any:
		return c.mergeOverrides(src)

	default:
		merged, err := merge.Merge(c.data, src)
		if err != nil {
			return err
		}
		c.data = merged
		c.invalidate()
		return nil
	}
}

func (c *Config) mergeOverrides(overrides map[string]any) error {
	hasPath := false
	for k := range overrides {
		if containsSep(k) {
			hasPath = true
			break
		}
	}

	if !hasPath {
		merged, err := merge.Merge(c.data, toTree(overrides))
		if err != nil {
			return err
		}
		c.data = merged
		c.invalidate()
		return nil
	}

	for k, v := range overrides {
		op, bareKey := stripDirective(k)
		switch op {
		case "~":
			c.deleteAt(bareKey)
		case "+":
			existing, ok := lookup(c.data, bareKey)
			existingMap, existingIsMapping := tree.IsMapping(existing)
			newValue, newIsMapping := tree.IsMapping(toTree(v))
			if ok && existingIsMapping && newIsMapping {
				merged, err := merge.Merge(existingMap, newValue)
				if err != nil {
					return err
				}
				c.Set(bareKey, merged)
			} else {
				c.Set(bareKey, v)
			}
		default:
			c.Set(bareKey, v)
		}
	}
	c.invalidate()
	return nil
}

func stripDirective(key string) (op, rest string) {
	if len(key) == 0 {
		return "", key
	}
	switch key[0] {
	case '=', '~', '+':
		return string(key[0]), key[1:]
	default:
		return "", key
	}
}

func containsSep(s string) bool {
	for i := 0; i+1 < len(s); i++ {
		if s[i] == ':' && s[i+1] == ':' {
			return true
		}
	}
	return false
}

func (c *Config) deleteAt(id string) {
	parentID, lastKey := path.Parent(id)
	parentVal, ok := lookup(c.data, parentID)
	if !ok {
		return
	}
	if m, ok := tree.IsMapping(parentVal); ok {
		m.Delete(lastKey)
	}
}

func (c *Config) invalidate() {
	c.parsed = false
	if c.resolver != nil {
		c.resolver.Reset()
	}
}

// ResolveOptions configures a single Resolve call.
type ResolveOptions struct {
	Instantiate bool
	EvalExpr    bool
	Lazy        bool
	HasDefault  bool
	Default     any
}

// ResolveOption is a functional option for Resolve.
type ResolveOption func(*ResolveOptions)

// WithInstantiate toggles _target_ instantiation (default true).
func WithInstantiate(b bool) ResolveOption {
	return func(o *ResolveOptions) { o.Instantiate = b }
}

// WithEvalExpr toggles $ expression evaluation (default true).
func WithEvalExpr(b bool) ResolveOption {
	return func(o *ResolveOptions) { o.EvalExpr = b }
}

// WithLazy toggles reuse of a prior parse/memo (default true); false
// forces a fresh Preprocess -> Classify -> Resolver setup.
func WithLazy(b bool) ResolveOption {
	return func(o *ResolveOptions) { o.Lazy = b }
}

// WithDefault supplies a fallback value returned instead of raising
// KeyNotFound when id is absent.
func WithDefault(v any) ResolveOption {
	return func(o *ResolveOptions) { o.HasDefault = true; o.Default = v }
}

func defaultResolveOptions() ResolveOptions {
	return ResolveOptions{Instantiate: true, EvalExpr: true, Lazy: true}
}

// Resolve parses the config (lazily, on first call or when a prior
// Set/Merge invalidated the memo) and evaluates id: references are
// followed, $ expressions are evaluated, and _target_ components are
// instantiated, per spec §4.6.
func (c *Config) Resolve(id string, opts ...ResolveOption) (any, error) {
	ro := defaultResolveOptions()
	for _, opt := range opts {
		opt(&ro)
	}

	if !c.parsed || !ro.Lazy {
		if err := c.parse(); err != nil {
			return nil, err
		}
	}

	v, err := c.resolver.Resolve(id, resolver.Options{
		Instantiate:           ro.Instantiate,
		EvalExpr:              ro.EvalExpr,
		AllowMissingReference: c.settings.AllowMissingReference,
	})
	if err != nil {
		if ro.HasDefault {
			var notFound *resolver.KeyNotFoundError
			if asKeyNotFound(err, &notFound) {
				return ro.Default, nil
			}
		}
		return nil, err
	}
	return v, nil
}

func asKeyNotFound(err error, target **resolver.KeyNotFoundError) bool {
	if e, ok := err.(*resolver.KeyNotFoundError); ok {
		*target = e
		return true
	}
	return false
}

func (c *Config) parse() error {
	preprocessed, err := preprocess.Preprocess(c.data, preprocess.Options{
		LoaderOptions: loader.Options{StrictKeys: c.settings.StrictKeys},
	})
	if err != nil {
		return err
	}
	c.data = preprocessed

	itemTable := items.Classify(c.data)
	c.resolver = resolver.New(itemTable, c.globals, c.host, c.symbols)
	c.parsed = true
	return nil
}
