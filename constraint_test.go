package quarry

import (
	"errors"
	"testing"

	. "github.com/smartystreets/goconvey/convey"
	"go.mongodb.org/mongo-driver/bson"
)

func TestMergeWhere(t *testing.T) {
	Convey("Given existing and incoming constraint trees", t, func() {
		Convey("Disjoint keys combine", func() {
			merged, err := mergeWhere(
				bson.M{"city": "SF"},
				bson.M{"wins": bson.M{"$gt": 10}},
			)
			So(err, ShouldBeNil)
			So(merged, ShouldResemble, bson.M{
				"city": "SF",
				"wins": bson.M{"$gt": 10},
			})
		})

		Convey("Disjoint operators on one key combine into a range", func() {
			merged, err := mergeWhere(
				bson.M{"wins": bson.M{"$gte": 10}},
				bson.M{"wins": bson.M{"$lte": 50}},
			)
			So(err, ShouldBeNil)
			So(merged, ShouldResemble, bson.M{
				"wins": bson.M{"$gte": 10, "$lte": 50},
			})
		})

		Convey("A second literal for a key is rejected", func() {
			_, err := mergeWhere(
				bson.M{"city": "SF"},
				bson.M{"city": "LA"},
			)
			So(errors.Is(err, ErrDuplicateClause), ShouldBeTrue)
			So(err.Error(), ShouldContainSubstring, "city")
		})

		Convey("A literal against an operator map is rejected", func() {
			_, err := mergeWhere(
				bson.M{"wins": bson.M{"$gt": 10}},
				bson.M{"wins": 25},
			)
			So(errors.Is(err, ErrDuplicateClause), ShouldBeTrue)
		})

		Convey("An operator map against a literal is rejected", func() {
			_, err := mergeWhere(
				bson.M{"wins": 25},
				bson.M{"wins": bson.M{"$gt": 10}},
			)
			So(errors.Is(err, ErrDuplicateClause), ShouldBeTrue)
		})

		Convey("An overlapping operator is rejected", func() {
			_, err := mergeWhere(
				bson.M{"wins": bson.M{"$gt": 10}},
				bson.M{"wins": bson.M{"$gt": 20}},
			)
			So(errors.Is(err, ErrDuplicateCondition), ShouldBeTrue)
			So(err.Error(), ShouldContainSubstring, "$gt")
		})

		Convey("Both inputs stay untouched", func() {
			existing := bson.M{"wins": bson.M{"$gte": 10}}
			incoming := bson.M{"wins": bson.M{"$lte": 50}}

			merged, err := mergeWhere(existing, incoming)
			So(err, ShouldBeNil)

			merged["wins"].(bson.M)["$gte"] = 99
			So(existing, ShouldResemble, bson.M{"wins": bson.M{"$gte": 10}})
			So(incoming, ShouldResemble, bson.M{"wins": bson.M{"$lte": 50}})
		})

		Convey("Merging into an empty tree adopts the incoming constraints", func() {
			merged, err := mergeWhere(nil, bson.M{"city": "SF"})
			So(err, ShouldBeNil)
			So(merged, ShouldResemble, bson.M{"city": "SF"})
		})
	})
}
