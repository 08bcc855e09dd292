package loader

import (
	"os"
	"path/filepath"
	"testing"

	. "github.com/smartystreets/goconvey/convey"

	"github.com/project-lighter/sparkwheel/internal/tree"
)

func writeTemp(t *testing.T, name, contents string) string {
	t.Helper()
	p := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(p, []byte(contents), 0o644); err != nil {
		t.Fatal(err)
	}
	return p
}

func TestLoadFile(t *testing.T) {
	Convey("Given a simple YAML document", t, func() {
		p := writeTemp(t, "config.yaml", "model:\n  lr: 0.001\n  layers: [1, 2, 3]\n")

		Convey("it decodes into an ordered Mapping with a populated registry", func() {
			root, registry, err := LoadFile(p, Options{})
			So(err, ShouldBeNil)

			m, ok := tree.IsMapping(root)
			So(ok, ShouldBeTrue)
			So(m.Keys(), ShouldResemble, []string{"model"})

			model, _ := m.Get("model")
			modelMap, ok := tree.IsMapping(model)
			So(ok, ShouldBeTrue)
			lr, _ := modelMap.Get("lr")
			So(lr, ShouldEqual, 0.001)

			layers, _ := modelMap.Get("layers")
			seq, ok := tree.IsSequence(layers)
			So(ok, ShouldBeTrue)
			So(len(seq), ShouldEqual, 3)

			loc, ok := registry.Get("model")
			So(ok, ShouldBeTrue)
			So(loc.File, ShouldEqual, p)
			So(loc.Line, ShouldEqual, 1)
		})
	})

	Convey("Given a non-YAML extension", t, func() {
		p := writeTemp(t, "config.txt", "a: 1\n")

		Convey("LoadFile rejects it", func() {
			_, _, err := LoadFile(p, Options{})
			So(err, ShouldNotBeNil)
		})
	})

	Convey("Given a document with a duplicate key", t, func() {
		p := writeTemp(t, "dup.yaml", "a: 1\na: 2\n")

		Convey("by default it warns and keeps the last value", func() {
			root, _, err := LoadFile(p, Options{})
			So(err, ShouldBeNil)
			m, _ := tree.IsMapping(root)
			v, _ := m.Get("a")
			So(v, ShouldEqual, 2)
		})

		Convey("under StrictKeys it is a fatal LoadError", func() {
			_, _, err := LoadFile(p, Options{StrictKeys: true})
			So(err, ShouldNotBeNil)
		})
	})

	Convey("Given an empty file", t, func() {
		p := writeTemp(t, "empty.yaml", "")

		Convey("it loads as an empty Mapping, not an error", func() {
			root, registry, err := LoadFile(p, Options{})
			So(err, ShouldBeNil)
			So(registry, ShouldNotBeNil)
			m, ok := tree.IsMapping(root)
			So(ok, ShouldBeTrue)
			So(m.Len(), ShouldEqual, 0)
		})
	})
}

func TestLoadFiles(t *testing.T) {
	Convey("Given two files loaded in sequence", t, func() {
		p1 := writeTemp(t, "one.yaml", "a: 1\n")
		p2 := writeTemp(t, "two.yaml", "b: 2\n")

		Convey("each keeps its own tree and registry, unmerged", func() {
			trees, registries, err := LoadFiles([]string{p1, p2}, Options{})
			So(err, ShouldBeNil)
			So(len(trees), ShouldEqual, 2)
			So(len(registries), ShouldEqual, 2)

			m1, _ := tree.IsMapping(trees[0])
			So(m1.Has("a"), ShouldBeTrue)
			So(m1.Has("b"), ShouldBeFalse)
		})
	})
}
