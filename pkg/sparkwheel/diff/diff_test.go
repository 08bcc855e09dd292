package diff

import (
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

func TestCompareIdentical(t *testing.T) {
	Convey("Given two structurally identical trees", t, func() {
		a := mapOf("model", mapOf("lr", 0.1, "momentum", 0.9))
		b := mapOf("model", mapOf("lr", 0.1, "momentum", 0.9))

		d := Compare(a, b)

		Convey("there are no changes and the summary says so", func() {
			So(d.HasChanges(), ShouldBeFalse)
			So(d.Summary(), ShouldEqual, "no changes")
			So(d.Unchanged, ShouldContainKey, "model::lr")
		})
	})
}

func TestCompareAddedRemovedChanged(t *testing.T) {
	Convey("Given a base and a modified tree", t, func() {
		a := mapOf("model", mapOf("lr", 0.1, "old_param", 1))
		b := mapOf("model", mapOf("lr", 0.01, "dropout", 0.2))

		d := Compare(a, b)

		Convey("lr is changed, old_param is removed, dropout is added", func() {
			So(d.Changed["model::lr"], ShouldResemble, Change{Old: 0.1, New: 0.01})
			So(d.Removed, ShouldContainKey, "model::old_param")
			So(d.Added, ShouldContainKey, "model::dropout")
		})

		Convey("HasChanges is true and the summary counts every bucket", func() {
			So(d.HasChanges(), ShouldBeTrue)
			So(d.Summary(), ShouldEqual, "1 changed, 1 added, 1 removed")
		})
	})
}

func TestCompareSkipsMeta(t *testing.T) {
	Convey("Given a tree with a _meta_ key", t, func() {
		a := mapOf("_meta_", mapOf("version", "1"), "lr", 0.1)
		b := mapOf("_meta_", mapOf("version", "2"), "lr", 0.1)

		d := Compare(a, b)

		Convey("the _meta_ subtree never appears in the diff", func() {
			So(d.HasChanges(), ShouldBeFalse)
		})
	})
}

func TestSortedKeys(t *testing.T) {
	Convey("Given a diff with keys across every bucket", t, func() {
		a := mapOf("b", 1, "c", 2)
		b := mapOf("a", 1, "b", 2)

		d := Compare(a, b)

		Convey("SortedKeys returns every touched id in order", func() {
			So(d.SortedKeys(), ShouldResemble, []string{"a", "b", "c"})
		})
	})
}
