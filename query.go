// Package quarry composes and executes read queries against a Quarry object
// store. Queries are immutable: every refinement returns a new snapshot, so
// a query value can be shared, branched, and reused safely.
package quarry

import (
	"fmt"
	"strings"

	"go.mongodb.org/mongo-driver/bson"
)

// InstallationCollection is the reserved system collection holding device
// installation records. Client-side queries against it are rejected.
const InstallationCollection = "_Installation"

type Query struct {
	collection string
	where      bson.M
	orderKeys  []string
	includes   map[string]struct{}
	selects    map[string]struct{}
	skip       *int
	limit      *int
	redirect   string
	err        error
}

func NewQuery(collection string) *Query {
	query := &Query{collection: collection}
	if collection == "" {
		query.err = ErrMissingCollection
	}
	return query
}

func (query *Query) Collection() string {
	return query.collection
}

// Err reports the first construction or validation error recorded on this
// snapshot. A failed snapshot stays usable as a value but refuses to encode
// or execute.
func (query *Query) Err() error {
	return query.err
}

// derive shallow-copies the snapshot. Shared containers are never mutated;
// refinements replace whichever container they change.
func (query *Query) derive() *Query {
	next := *query
	return &next
}

func (query *Query) fail(err error) *Query {
	if query.err != nil {
		return query
	}
	next := query.derive()
	next.err = err
	return next
}

// OrderBy replaces any existing ordering with an ascending sort on key.
func (query *Query) OrderBy(key string) *Query {
	return query.replaceOrder(key)
}

// OrderByDescending replaces any existing ordering with a descending sort
// on key.
func (query *Query) OrderByDescending(key string) *Query {
	return query.replaceOrder(descendingPrefix + key)
}

// ThenBy appends an ascending secondary sort key. It requires a primary
// ordering to exist.
func (query *Query) ThenBy(key string) *Query {
	return query.appendOrder(key)
}

// ThenByDescending appends a descending secondary sort key. It requires a
// primary ordering to exist.
func (query *Query) ThenByDescending(key string) *Query {
	return query.appendOrder(descendingPrefix + key)
}

const descendingPrefix = "-"

func (query *Query) replaceOrder(signed string) *Query {
	if query.err != nil {
		return query
	}
	next := query.derive()
	next.orderKeys = dedupeOrder([]string{signed})
	return next
}

func (query *Query) appendOrder(signed string) *Query {
	if query.err != nil {
		return query
	}
	if len(query.orderKeys) == 0 {
		return query.fail(fmt.Errorf("%w: %s", ErrNoOrdering, strings.TrimPrefix(signed, descendingPrefix)))
	}
	keys := make([]string, 0, len(query.orderKeys)+1)
	keys = append(keys, query.orderKeys...)
	keys = append(keys, signed)
	next := query.derive()
	next.orderKeys = dedupeOrder(keys)
	return next
}

// dedupeOrder drops repeated signed keys, keeping the first occurrence so
// the resulting sort order is deterministic.
func dedupeOrder(keys []string) []string {
	seen := make(map[string]struct{}, len(keys))
	out := make([]string, 0, len(keys))
	for _, key := range keys {
		if _, dup := seen[key]; dup {
			continue
		}
		seen[key] = struct{}{}
		out = append(out, key)
	}
	return out
}

// Include marks a pointer field whose referenced objects the server should
// inline in the results. Adding the same path twice is a no-op.
func (query *Query) Include(path string) *Query {
	if query.err != nil {
		return query
	}
	next := query.derive()
	next.includes = addToSet(query.includes, path)
	return next
}

// Select restricts returned fields to the given keys. Calls accumulate as a
// set union.
func (query *Query) Select(keys ...string) *Query {
	if query.err != nil {
		return query
	}
	next := query.derive()
	next.selects = addToSet(query.selects, keys...)
	return next
}

func addToSet(set map[string]struct{}, members ...string) map[string]struct{} {
	out := make(map[string]struct{}, len(set)+len(members))
	for member := range set {
		out[member] = struct{}{}
	}
	for _, member := range members {
		out[member] = struct{}{}
	}
	return out
}

// Skip adds count to the number of results skipped. Repeated calls
// accumulate.
func (query *Query) Skip(count int) *Query {
	if query.err != nil {
		return query
	}
	total := count
	if query.skip != nil {
		total += *query.skip
	}
	next := query.derive()
	next.skip = &total
	return next
}

// Limit caps the number of results. Repeated calls replace the cap; zero is
// a valid cap and yields no results.
func (query *Query) Limit(count int) *Query {
	if query.err != nil {
		return query
	}
	value := count
	next := query.derive()
	next.limit = &value
	return next
}

// RedirectClassNameForKey asks the server to retarget the query to the
// collection referenced by the given key, echoing the resolved name back.
func (query *Query) RedirectClassNameForKey(key string) *Query {
	if query.err != nil {
		return query
	}
	next := query.derive()
	next.redirect = key
	return next
}

// hasNonFilterClauses reports whether the snapshot carries anything beyond
// where constraints. Such snapshots cannot be combined into a disjunction.
func (query *Query) hasNonFilterClauses() bool {
	return len(query.orderKeys) > 0 ||
		len(query.includes) > 0 ||
		len(query.selects) > 0 ||
		query.skip != nil ||
		query.limit != nil ||
		query.redirect != ""
}
