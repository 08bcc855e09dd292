// Package loader reads a single YAML document into a tree.Tree plus a
// metadata.Registry recording where every mapping came from (spec §3.2,
// §3.3). It never merges across files; internal/merge owns that.
package loader

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/project-lighter/sparkwheel/internal/log"
	"github.com/project-lighter/sparkwheel/internal/metadata"
	"github.com/project-lighter/sparkwheel/internal/path"
	"github.com/project-lighter/sparkwheel/internal/tree"
)

// Options controls loader strictness. Zero value is the lenient default.
type Options struct {
	// StrictKeys turns a duplicate mapping key from a warning into a
	// LoadError. Mirrors SPARKWHEEL_STRICT_KEYS in the original.
	StrictKeys bool
}

// LoadError reports a problem loading a single file: a bad extension, a
// duplicate key under strict mode, or an underlying I/O/parse failure.
type LoadError struct {
	File string
	Msg  string
	Err  error
}

func (e *LoadError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.File, e.Msg, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.File, e.Msg)
}

func (e *LoadError) Unwrap() error { return e.Err }

// LoadFile reads filepath and returns its root value as a tree.Tree along
// with a metadata.Registry populated with one SourceLocation per mapping
// node. An empty or all-comments file yields an empty *tree.Mapping, not an
// error.
func LoadFile(filepath string, opts Options) (tree.Tree, *metadata.Registry, error) {
	if filepath == "" {
		return tree.NewMapping(), metadata.NewRegistry(), nil
	}

	if !path.IsYAMLPath(filepath) {
		return nil, nil, &LoadError{File: filepath, Msg: fmt.Sprintf(`unknown file input: must be a YAML file (.yaml or .yml)`)}
	}

	if strings.Contains(filepath, "..") {
		log.Warn("config file path contains '..' (parent directory reference): %s; ensure this path comes from a trusted source", filepath)
	}

	data, err := os.ReadFile(filepath)
	if err != nil {
		return nil, nil, &LoadError{File: filepath, Msg: "reading file", Err: err}
	}

	var doc yaml.Node
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, nil, &LoadError{File: filepath, Msg: "parsing YAML", Err: err}
	}

	registry := metadata.NewRegistry()

	if doc.Kind == 0 || len(doc.Content) == 0 {
		return tree.NewMapping(), registry, nil
	}

	dec := &decoder{file: filepath, registry: registry, opts: opts}
	root, err := dec.convert(doc.Content[0], "")
	if err != nil {
		return nil, nil, err
	}
	if root == nil {
		return tree.NewMapping(), registry, nil
	}
	return root, registry, nil
}

// LoadFiles loads each file in order and returns the SEQUENCE of
// (tree, registry) pairs, unmerged. Merging across files under the
// default-compose/"="/"~" rules is internal/merge's responsibility, not
// the loader's.
func LoadFiles(filepaths []string, opts Options) ([]tree.Tree, []*metadata.Registry, error) {
	trees := make([]tree.Tree, 0, len(filepaths))
	registries := make([]*metadata.Registry, 0, len(filepaths))
	for _, fp := range filepaths {
		t, r, err := LoadFile(fp, opts)
		if err != nil {
			return nil, nil, err
		}
		trees = append(trees, t)
		registries = append(registries, r)
	}
	return trees, registries, nil
}

type decoder struct {
	file     string
	registry *metadata.Registry
	opts     Options
}

func (d *decoder) convert(n *yaml.Node, id string) (any, error) {
	switch n.Kind {
	case yaml.DocumentNode:
		if len(n.Content) == 0 {
			return nil, nil
		}
		return d.convert(n.Content[0], id)
	case yaml.AliasNode:
		return d.convert(n.Alias, id)
	case yaml.MappingNode:
		return d.convertMapping(n, id)
	case yaml.SequenceNode:
		return d.convertSequence(n, id)
	default:
		var v any
		if err := n.Decode(&v); err != nil {
			return nil, &LoadError{File: d.file, Msg: fmt.Sprintf("decoding scalar at line %d", n.Line), Err: err}
		}
		return v, nil
	}
}

func (d *decoder) convertMapping(n *yaml.Node, id string) (any, error) {
	m := tree.NewMapping()
	seen := make(map[string]bool, len(n.Content)/2)

	for i := 0; i+1 < len(n.Content); i += 2 {
		keyNode, valNode := n.Content[i], n.Content[i+1]
		var key string
		if err := keyNode.Decode(&key); err != nil {
			return nil, &LoadError{File: d.file, Msg: fmt.Sprintf("non-string mapping key at line %d", keyNode.Line), Err: err}
		}

		if seen[key] {
			msg := fmt.Sprintf("duplicate key %q at line %d", key, keyNode.Line)
			if d.opts.StrictKeys {
				return nil, &LoadError{File: d.file, Msg: msg}
			}
			log.Warn("%s: %s", d.file, msg)
		}
		seen[key] = true

		childID := path.Child(id, key)
		v, err := d.convert(valNode, childID)
		if err != nil {
			return nil, err
		}
		if _, isMapping := v.(*tree.Mapping); isMapping {
			// A nested mapping is located at the line of the key that
			// declares it.
			d.registry.Set(childID, metadata.SourceLocation{File: d.file, Line: keyNode.Line, Column: keyNode.Column, ID: childID})
		}
		m.Set(key, v)
	}

	d.registry.Set(id, metadata.SourceLocation{
		File:   d.file,
		Line:   n.Line,
		Column: n.Column,
		ID:     id,
	})
	return m, nil
}

func (d *decoder) convertSequence(n *yaml.Node, id string) (any, error) {
	out := make([]any, 0, len(n.Content))
	for i, item := range n.Content {
		childID := path.Child(id, strconv.Itoa(i))
		v, err := d.convert(item, childID)
		if err != nil {
			return nil, err
		}
		out = append(out, v)
	}
	return out, nil
}
