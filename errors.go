package quarry

import "errors"

// Sentinel errors returned by query construction and execution. Callers match
// them with errors.Is; wrapped variants carry the offending key or collection.
var (
	ErrMissingCollection  = errors.New("collection name must not be empty")
	ErrDuplicateClause    = errors.New("more than one where clause for the given key provided")
	ErrDuplicateCondition = errors.New("more than one condition for the given key provided")
	ErrNoOrdering         = errors.New("secondary sort requires a primary ordering")
	ErrPatternDialect     = errors.New("pattern must be built with the portable regex flag")
	ErrMixedCollections   = errors.New("all queries in an or must target the same collection")
	ErrNonFilterSubquery  = errors.New("cannot combine non-filtering clauses in an or")
	ErrNonPageable        = errors.New("iteration requires a query without ordering, skip, or limit")
	ErrReservedCollection = errors.New("queries against the installation collection are not allowed")
	ErrObjectNotFound     = errors.New("no object found for the given query")
)
