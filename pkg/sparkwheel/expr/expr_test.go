package expr

import (
	"fmt"
	"testing"

	. "github.com/smartystreets/goconvey/convey"
)

type stubImporter struct {
	values map[string]any
}

func (s *stubImporter) Resolve(dottedName string) (any, error) {
	v, ok := s.values[dottedName]
	if !ok {
		return nil, fmt.Errorf("no such symbol %q", dottedName)
	}
	return v, nil
}

func TestGovaluateArithmetic(t *testing.T) {
	Convey("Given a plain arithmetic expression", t, func() {
		host := NewGovaluate(nil)

		Convey("it evaluates using the combined globals/locals scope", func() {
			result, err := host.Evaluate("1 + 2 * 3", nil, nil)
			So(err, ShouldBeNil)
			So(result, ShouldEqual, 7.0)
		})
	})
}

func TestGovaluateReferenceLookup(t *testing.T) {
	Convey("Given an expression referencing a bracketed local", t, func() {
		host := NewGovaluate(nil)
		locals := map[string]any{"model::lr": 0.1}

		Convey("bracket syntax reaches into the locals map", func() {
			result, err := host.Evaluate("[model::lr] * 10", nil, locals)
			So(err, ShouldBeNil)
			So(result, ShouldEqual, 1.0)
		})

		Convey("a local shadows a global of the same name", func() {
			globals := map[string]any{"x": 1.0}
			locals2 := map[string]any{"x": 99.0}
			result, err := host.Evaluate("x", globals, locals2)
			So(err, ShouldBeNil)
			So(result, ShouldEqual, 99.0)
		})
	})
}

func TestGovaluateImport(t *testing.T) {
	Convey("Given an importer resolving dotted names", t, func() {
		importer := &stubImporter{values: map[string]any{
			"math":      "the math module",
			"math.sqrt": "sqrt fn",
		}}
		host := NewGovaluate(importer)
		globals := map[string]any{}

		Convey("$import X resolves and binds the last path segment", func() {
			result, err := host.Evaluate("import math", globals, nil)
			So(err, ShouldBeNil)
			So(result, ShouldEqual, "the math module")
			So(globals["math"], ShouldEqual, "the math module")
		})

		Convey("$from X import Y resolves and binds Y", func() {
			result, err := host.Evaluate("from math import sqrt", globals, nil)
			So(err, ShouldBeNil)
			So(result, ShouldEqual, "sqrt fn")
			So(globals["sqrt"], ShouldEqual, "sqrt fn")
		})

		Convey("from X import Y as Z binds the alias instead", func() {
			_, err := host.Evaluate("from math import sqrt as squareroot", globals, nil)
			So(err, ShouldBeNil)
			So(globals["squareroot"], ShouldEqual, "sqrt fn")
			_, aliased := globals["sqrt"]
			So(aliased, ShouldBeFalse)
		})

		Convey("without an importer, import statements fail", func() {
			bare := NewGovaluate(nil)
			_, err := bare.Evaluate("import math", globals, nil)
			So(err, ShouldNotBeNil)
		})
	})
}
