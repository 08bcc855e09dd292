package preprocess

import (
	"os"
	"path/filepath"
	"testing"

	. "github.com/smartystreets/goconvey/convey"

	"github.com/project-lighter/sparkwheel/internal/tree"
)

func mapOf(pairs ...any) *tree.Mapping {
	m := tree.NewMapping()
	for i := 0; i+1 < len(pairs); i += 2 {
		m.Set(pairs[i].(string), pairs[i+1])
	}
	return m
}

func TestPreprocessRelativeRewrite(t *testing.T) {
	Convey("Given a tree whose nested node references a relative sibling", t, func() {
		root := mapOf("parent", mapOf(
			"sib", int64(1),
			"ref", "@::sib",
		))

		Convey("the relative prefix is rewritten to an absolute one", func() {
			out, err := Preprocess(root, Options{})
			So(err, ShouldBeNil)

			parent := must(out.(*tree.Mapping), "parent").(*tree.Mapping)
			ref, _ := parent.Get("ref")
			So(ref, ShouldEqual, "@parent::sib")
		})
	})
}

func TestPreprocessMacroSameConfig(t *testing.T) {
	Convey("Given a tree with a macro referencing another part of itself", t, func() {
		root := mapOf(
			"base", mapOf("lr", int64(1), "momentum", int64(2)),
			"derived", "%base",
		)

		Convey("the macro is replaced with a deep, independent copy of its target", func() {
			out, err := Preprocess(root, Options{})
			So(err, ShouldBeNil)
			result := out.(*tree.Mapping)

			derived := must(result, "derived").(*tree.Mapping)
			lr, _ := derived.Get("lr")
			So(lr, ShouldEqual, int64(1))

			derived.Set("lr", int64(999))
			base := must(result, "base").(*tree.Mapping)
			baseLR, _ := base.Get("lr")
			So(baseLR, ShouldEqual, int64(1))
		})
	})
}

func TestPreprocessMacroCrossFile(t *testing.T) {
	Convey("Given a macro that references another YAML file", t, func() {
		dir := t.TempDir()
		otherPath := filepath.Join(dir, "shared.yaml")
		err := os.WriteFile(otherPath, []byte("defaults:\n  batch_size: 32\n"), 0o644)
		So(err, ShouldBeNil)

		root := mapOf("cfg", "%"+otherPath+"::defaults")

		Convey("the target file is loaded and its sub-tree inlined", func() {
			out, err := Preprocess(root, Options{})
			So(err, ShouldBeNil)
			result := out.(*tree.Mapping)
			cfg := must(result, "cfg").(*tree.Mapping)
			bs, _ := cfg.Get("batch_size")
			So(bs, ShouldEqual, 32)
		})
	})
}

func TestPreprocessCircularMacro(t *testing.T) {
	Convey("Given two macros that reference each other", t, func() {
		root := mapOf(
			"a", "%b",
			"b", "%a",
		)

		Convey("expansion raises a CircularMacroError", func() {
			_, err := Preprocess(root, Options{})
			So(err, ShouldNotBeNil)
			_, ok := err.(*CircularMacroError)
			So(ok, ShouldBeTrue)
		})
	})
}

func must(m *tree.Mapping, key string) any {
	v, _ := m.Get(key)
	return v
}
