package symbol

import (
	"fmt"
	"testing"

	. "github.com/smartystreets/goconvey/convey"
)

func TestRegistryResolve(t *testing.T) {
	Convey("Given a registry with a nested dotted name", t, func() {
		r := NewRegistry()
		r.Register("torch.optim.Adam", Callable(func(kwargs map[string]any) (any, error) {
			return fmt.Sprintf("Adam(%v)", kwargs["lr"]), nil
		}))

		Convey("Resolve finds it by its full dotted path", func() {
			v, err := r.Resolve("torch.optim.Adam")
			So(err, ShouldBeNil)
			So(v, ShouldNotBeNil)
		})

		Convey("Resolve on a near-miss name returns a suggestion", func() {
			_, err := r.Resolve("torch.optim.Adamm")
			So(err, ShouldNotBeNil)
			notFound, ok := err.(*ModuleNotFoundError)
			So(ok, ShouldBeTrue)
			So(notFound.Suggestion, ShouldEqual, "Adam")
		})

		Convey("Resolve on a missing top-level name fails", func() {
			_, err := r.Resolve("tensorflow.optim.Adam")
			So(err, ShouldNotBeNil)
		})
	})
}

func TestRegistryInvoke(t *testing.T) {
	Convey("Given a registered constructor", t, func() {
		r := NewRegistry()
		r.Register("pkg.Build", Callable(func(kwargs map[string]any) (any, error) {
			return fmt.Sprintf("built lr=%v", kwargs["lr"]), nil
		}))

		Convey("default mode calls the target with kwargs", func() {
			v, err := r.Invoke("pkg.Build", ModeDefault, map[string]any{"lr": 0.1})
			So(err, ShouldBeNil)
			So(v, ShouldEqual, "built lr=0.1")
		})

		Convey("callable mode with no kwargs returns the raw symbol", func() {
			v, err := r.Invoke("pkg.Build", ModeCallable, nil)
			So(err, ShouldBeNil)
			_, ok := v.(Callable)
			So(ok, ShouldBeTrue)
		})

		Convey("callable mode with kwargs returns a bound partial", func() {
			v, err := r.Invoke("pkg.Build", ModeCallable, map[string]any{"lr": 0.5})
			So(err, ShouldBeNil)
			partial, ok := v.(Callable)
			So(ok, ShouldBeTrue)

			result, err := partial(nil)
			So(err, ShouldBeNil)
			So(result, ShouldEqual, "built lr=0.5")
		})

		Convey("an already-resolved callable value works the same as a dotted name", func() {
			fn := Callable(func(kwargs map[string]any) (any, error) { return "direct", nil })
			v, err := r.Invoke(fn, ModeDefault, nil)
			So(err, ShouldBeNil)
			So(v, ShouldEqual, "direct")
		})

		Convey("invoking an unresolvable target fails", func() {
			_, err := r.Invoke("pkg.Missing", ModeDefault, nil)
			So(err, ShouldNotBeNil)
		})
	})
}
