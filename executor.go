package quarry

import "context"

// Actor identifies who a query runs as. The zero value is an anonymous
// request.
type Actor struct {
	SessionToken string
}

/*
Executor dispatches encoded queries to a store. Implementations receive the
wire parameter mapping and the target collection separately; the mapping
never carries the top-level collection name. This package ships two
implementations, mongoexec over a MongoDB database and rest over the HTTP
protocol.
*/
type Executor interface {
	Find(ctx context.Context, collection string, params Params, actor Actor) ([]ObjectState, error)
	Count(ctx context.Context, collection string, params Params, actor Actor) (int64, error)
}
