// Package sparkwheel is the public façade over the loader, composer,
// preprocessor, item classifier, and resolver: Config.Load parses and
// merges sources, Config.Get/Set read and write the raw tree, and
// Config.Resolve evaluates references, expressions, and components.
package sparkwheel
