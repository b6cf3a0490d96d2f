package quarry

import (
	"fmt"

	"github.com/hashicorp/go-multierror"
	"go.mongodb.org/mongo-driver/bson"
)

// WhereEqualTo constrains key to equal value. A second clause for the same
// key conflicts, equality cannot be combined with operator conditions.
func (query *Query) WhereEqualTo(key string, value any) *Query {
	return query.mergeConstraint(key, copyOperand(value))
}

func (query *Query) WhereNotEqualTo(key string, value any) *Query {
	return query.addCondition(key, opNotEqual, copyOperand(value))
}

func (query *Query) WhereLessThan(key string, value any) *Query {
	return query.addCondition(key, opLessThan, value)
}

func (query *Query) WhereLessThanOrEqualTo(key string, value any) *Query {
	return query.addCondition(key, opLessOrEqual, value)
}

func (query *Query) WhereGreaterThan(key string, value any) *Query {
	return query.addCondition(key, opGreaterThan, value)
}

func (query *Query) WhereGreaterThanOrEqualTo(key string, value any) *Query {
	return query.addCondition(key, opGreaterOrEqual, value)
}

// WhereContainedIn constrains key to equal one of values. The slice is
// copied, later caller mutations do not leak into the snapshot.
func (query *Query) WhereContainedIn(key string, values []any) *Query {
	return query.addCondition(key, opIn, copyValues(values))
}

func (query *Query) WhereNotContainedIn(key string, values []any) *Query {
	return query.addCondition(key, opNotIn, copyValues(values))
}

// WhereContainsAll constrains an array field to contain every given value.
func (query *Query) WhereContainsAll(key string, values []any) *Query {
	return query.addCondition(key, opAll, copyValues(values))
}

func (query *Query) WhereExists(key string) *Query {
	return query.addCondition(key, opExists, true)
}

func (query *Query) WhereDoesNotExist(key string) *Query {
	return query.addCondition(key, opExists, false)
}

// WhereContains matches values containing substring anywhere. The literal
// is quoted so pattern metacharacters in it match verbatim.
func (query *Query) WhereContains(key, substring string) *Query {
	return query.addCondition(key, opRegex, regexQuote(substring))
}

func (query *Query) WhereStartsWith(key, prefix string) *Query {
	return query.addCondition(key, opRegex, "^"+regexQuote(prefix))
}

func (query *Query) WhereEndsWith(key, suffix string) *Query {
	return query.addCondition(key, opRegex, regexQuote(suffix)+"$")
}

/*
WhereMatches constrains key with a server-evaluated pattern. The pattern
must carry RegexPortable; anything else fails fast here rather than at the
server. Flag-derived modifiers are folded into the caller's modifier
string, and the modifier parameter is always sent, even when empty.
*/
func (query *Query) WhereMatches(key string, pattern Regex, modifiers string) *Query {
	if query.err != nil {
		return query
	}
	if !pattern.flags.has(RegexPortable) {
		return query.fail(fmt.Errorf("%w: %s", ErrPatternDialect, key))
	}
	return query.mergeConstraint(key, bson.M{
		opRegex:   pattern.pattern,
		opOptions: pattern.options(modifiers),
	})
}

// WhereNear sorts results by distance from point.
func (query *Query) WhereNear(key string, point GeoPoint) *Query {
	return query.addCondition(key, opNearSphere, point)
}

// WhereWithinDistance limits results to those within distance of point,
// nearest first.
func (query *Query) WhereWithinDistance(key string, point GeoPoint, distance GeoDistance) *Query {
	return query.mergeConstraint(key, bson.M{
		opNearSphere:  point,
		opMaxDistance: distance.Radians,
	})
}

// WhereWithinGeoBox limits results to points inside the rectangle spanned
// by the southwest and northeast corners.
func (query *Query) WhereWithinGeoBox(key string, southwest, northeast GeoPoint) *Query {
	return query.mergeConstraint(key, bson.M{
		opWithin: bson.M{opBox: []any{southwest, northeast}},
	})
}

// WhereMatchesQuery constrains key to objects matched by inner. The inner
// query is embedded with its collection name when parameters are built; a
// failed inner query fails this one immediately.
func (query *Query) WhereMatchesQuery(key string, inner *Query) *Query {
	if inner.err != nil {
		return query.fail(inner.err)
	}
	return query.addCondition(key, opInQuery, inner)
}

func (query *Query) WhereDoesNotMatchQuery(key string, inner *Query) *Query {
	if inner.err != nil {
		return query.fail(inner.err)
	}
	return query.addCondition(key, opNotInQuery, inner)
}

// WhereMatchesKeyInQuery constrains key to values that innerKey takes on
// objects matched by inner.
func (query *Query) WhereMatchesKeyInQuery(key, innerKey string, inner *Query) *Query {
	if inner.err != nil {
		return query.fail(inner.err)
	}
	return query.mergeConstraint(key, bson.M{
		opSelect: bson.M{"query": inner, "key": innerKey},
	})
}

func (query *Query) WhereDoesNotMatchKeyInQuery(key, innerKey string, inner *Query) *Query {
	if inner.err != nil {
		return query.fail(inner.err)
	}
	return query.mergeConstraint(key, bson.M{
		opDontSelect: bson.M{"query": inner, "key": innerKey},
	})
}

func (query *Query) addCondition(key, op string, operand any) *Query {
	return query.mergeConstraint(key, bson.M{op: operand})
}

func (query *Query) mergeConstraint(key string, constraint any) *Query {
	if query.err != nil {
		return query
	}
	merged, err := mergeWhere(query.where, bson.M{key: constraint})
	if err != nil {
		return query.fail(err)
	}
	next := query.derive()
	next.where = merged
	return next
}

func copyOperand(value any) any {
	if values, ok := value.([]any); ok {
		return copyValues(values)
	}
	return value
}

func copyValues(values []any) []any {
	out := make([]any, len(values))
	copy(out, values)
	return out
}

/*
Or combines the sources into a single disjunction over the same collection.
Sources must be pure filters; ordering, includes, selection, paging, and
redirects cannot be merged meaningfully, so every offending source is
reported. Source errors propagate into the result.
*/
func Or(queries ...*Query) *Query {
	var errs *multierror.Error
	collection := ""
	subWheres := make([]bson.M, 0, len(queries))

	for idx, source := range queries {
		if source.err != nil {
			errs = multierror.Append(errs, source.err)
			continue
		}
		if collection == "" {
			collection = source.collection
		} else if source.collection != collection {
			errs = multierror.Append(errs, fmt.Errorf("%w: %s, %s",
				ErrMixedCollections, collection, source.collection))
		}
		if source.hasNonFilterClauses() {
			errs = multierror.Append(errs, fmt.Errorf("%w: query %d",
				ErrNonFilterSubquery, idx))
		}
		where := source.where
		if where == nil {
			where = bson.M{}
		}
		subWheres = append(subWheres, where)
	}

	if err := errs.ErrorOrNil(); err != nil {
		return &Query{collection: collection, err: err}
	}

	result := NewQuery(collection)
	if result.err != nil {
		return result
	}

	next := result.derive()
	next.where = bson.M{opOr: subWheres}
	return next
}
