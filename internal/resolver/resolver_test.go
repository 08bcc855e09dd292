package resolver

import (
	"fmt"
	"testing"

	. "github.com/smartystreets/goconvey/convey"

	"github.com/project-lighter/sparkwheel/internal/items"
	"github.com/project-lighter/sparkwheel/internal/tree"
	"github.com/project-lighter/sparkwheel/pkg/sparkwheel/expr"
	"github.com/project-lighter/sparkwheel/pkg/sparkwheel/symbol"
)

func mapOf(pairs ...any) *tree.Mapping {
	m := tree.NewMapping()
	for i := 0; i+1 < len(pairs); i += 2 {
		m.Set(pairs[i].(string), pairs[i+1])
	}
	return m
}

func newResolver(root tree.Tree, reg *symbol.Registry) *Resolver {
	table := items.Classify(root)
	if reg == nil {
		reg = symbol.NewRegistry()
	}
	host := expr.NewGovaluate(reg)
	return New(table, map[string]any{}, host, reg)
}

func TestResolvePlainAndReferences(t *testing.T) {
	Convey("Given a tree with a plain value and a reference to it", t, func() {
		root := mapOf(
			"lr", 0.1,
			"ref", "@lr",
		)
		r := newResolver(root, nil)

		Convey("a reference resolves to the referenced value", func() {
			v, err := r.Resolve("ref", DefaultOptions())
			So(err, ShouldBeNil)
			So(v, ShouldEqual, 0.1)
		})

		Convey("resolving the same id twice returns the memoized value", func() {
			v1, _ := r.Resolve("lr", DefaultOptions())
			v2, _ := r.Resolve("lr", DefaultOptions())
			So(v1, ShouldEqual, v2)
		})
	})
}

func TestResolveContainers(t *testing.T) {
	Convey("Given a nested mapping and a list", t, func() {
		root := mapOf(
			"model", mapOf("lr", 0.1, "momentum", 0.9),
			"layers", []any{int64(1), int64(2), int64(3)},
		)
		r := newResolver(root, nil)

		Convey("resolving the container resolves its children and rebuilds it", func() {
			v, err := r.Resolve("model", DefaultOptions())
			So(err, ShouldBeNil)
			m := v.(*tree.Mapping)
			lr, _ := m.Get("lr")
			So(lr, ShouldEqual, 0.1)
		})

		Convey("resolving a list rebuilds it in order", func() {
			v, err := r.Resolve("layers", DefaultOptions())
			So(err, ShouldBeNil)
			So(v, ShouldResemble, []any{int64(1), int64(2), int64(3)})
		})
	})
}

func TestResolveExpression(t *testing.T) {
	Convey("Given an expression using the @ID reference form", t, func() {
		root := mapOf(
			"lr", 0.1,
			"total", "$@lr * 10",
		)
		r := newResolver(root, nil)

		Convey("the resolver rewrites @ID to a bracket accessor before evaluating", func() {
			v, err := r.Resolve("total", DefaultOptions())
			So(err, ShouldBeNil)
			So(v, ShouldEqual, 1.0)
		})
	})

	Convey("Given eval_expr disabled", t, func() {
		root := mapOf("total", "$1 + 1")
		r := newResolver(root, nil)
		opts := Options{Instantiate: true, EvalExpr: false}

		Convey("the expression resolves to its own source, unevaluated", func() {
			v, err := r.Resolve("total", opts)
			So(err, ShouldBeNil)
			So(v, ShouldEqual, "$1 + 1")
		})
	})
}

func TestResolveComponent(t *testing.T) {
	Convey("Given a component with an argument referencing another id", t, func() {
		reg := symbol.NewRegistry()
		reg.Register("pkg.Build", symbol.Callable(func(kwargs map[string]any) (any, error) {
			return fmt.Sprintf("built lr=%v", kwargs["lr"]), nil
		}))

		root := mapOf(
			"lr", 0.1,
			"optimizer", mapOf(
				"_target_", "pkg.Build",
				"lr", "@lr",
			),
		)
		r := newResolver(root, reg)

		Convey("instantiation calls the registered target with resolved kwargs", func() {
			v, err := r.Resolve("optimizer", DefaultOptions())
			So(err, ShouldBeNil)
			So(v, ShouldEqual, "built lr=0.1")
		})

		Convey("with instantiate disabled, the substituted spec is returned instead", func() {
			opts := Options{Instantiate: false, EvalExpr: true}
			v, err := r.Resolve("optimizer", opts)
			So(err, ShouldBeNil)
			m := v.(*tree.Mapping)
			lr, _ := m.Get("lr")
			So(lr, ShouldEqual, 0.1)
		})
	})

	Convey("Given a disabled component nested in a parent mapping", t, func() {
		reg := symbol.NewRegistry()
		reg.Register("pkg.Build", symbol.Callable(func(kwargs map[string]any) (any, error) {
			return "built", nil
		}))
		root := mapOf(
			"container", mapOf(
				"kept", int64(1),
				"dropped", mapOf("_target_", "pkg.Build", "_disabled_", true),
			),
		)
		r := newResolver(root, reg)

		Convey("the disabled component is dropped from its parent mapping", func() {
			v, err := r.Resolve("container", DefaultOptions())
			So(err, ShouldBeNil)
			m := v.(*tree.Mapping)
			So(m.Has("dropped"), ShouldBeFalse)
			So(m.Has("kept"), ShouldBeTrue)
		})
	})
}

func TestResolveCircularReference(t *testing.T) {
	Convey("Given two ids that reference each other", t, func() {
		root := mapOf("a", "@b", "b", "@a")
		r := newResolver(root, nil)

		Convey("resolving either raises CircularReferenceError", func() {
			_, err := r.Resolve("a", DefaultOptions())
			So(err, ShouldNotBeNil)
			_, ok := err.(*CircularReferenceError)
			So(ok, ShouldBeTrue)
		})
	})
}

func TestResolveMissingReference(t *testing.T) {
	Convey("Given a reference to a missing id", t, func() {
		root := mapOf("ref", "@nowhere")
		r := newResolver(root, nil)

		Convey("by default it is a fatal KeyNotFoundError", func() {
			_, err := r.Resolve("ref", DefaultOptions())
			So(err, ShouldNotBeNil)
			_, ok := err.(*KeyNotFoundError)
			So(ok, ShouldBeTrue)
		})

		Convey("with AllowMissingReference it resolves to the textual token instead", func() {
			opts := Options{Instantiate: true, EvalExpr: true, AllowMissingReference: true}
			v, err := r.Resolve("ref", opts)
			So(err, ShouldBeNil)
			So(v, ShouldEqual, "@nowhere")
		})
	})
}

func TestResolveReset(t *testing.T) {
	Convey("Given a resolver that has already memoized a value", t, func() {
		root := mapOf("a", int64(1))
		r := newResolver(root, nil)
		_, _ = r.Resolve("a", DefaultOptions())

		Convey("Reset clears the memo so a later mutation is picked up", func() {
			r.Reset()
			r.items["a"].Value = int64(2)
			v, err := r.Resolve("a", DefaultOptions())
			So(err, ShouldBeNil)
			So(v, ShouldEqual, int64(2))
		})
	})
}
