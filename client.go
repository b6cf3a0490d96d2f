package quarry

import (
	"context"
	"fmt"
	"sync"

	"github.com/hashicorp/go-multierror"
	"github.com/panjf2000/ants/v2"
	"go.uber.org/zap"
)

const (
	defaultBatchSize   = 100
	defaultConcurrency = 4
)

/*
Client executes queries through a bound Executor and materializes the
results. It is safe for concurrent use; all state is set at construction.
*/
type Client struct {
	exec Executor
	mat  Materializer
	log  *zap.Logger
}

type ClientOption func(*Client)

func WithMaterializer(materializer Materializer) ClientOption {
	return func(client *Client) {
		client.mat = materializer
	}
}

func WithLogger(logger *zap.Logger) ClientOption {
	return func(client *Client) {
		client.log = logger
	}
}

func NewClient(exec Executor, opts ...ClientOption) *Client {
	client := &Client{
		exec: exec,
		mat:  NewMaterializer(),
	}
	for _, opt := range opts {
		opt(client)
	}
	if client.log == nil {
		client.log = zap.NewNop()
	}
	return client
}

/*
prepare runs the shared pre-dispatch checks: a latched snapshot error, the
reserved system collection, and a context that is already done all surface
here, before anything reaches the executor.
*/
func (client *Client) prepare(ctx context.Context, query *Query) (Params, error) {
	if err := query.Err(); err != nil {
		return nil, err
	}
	if query.collection == InstallationCollection {
		return nil, fmt.Errorf("%w: %s", ErrReservedCollection, query.collection)
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return query.BuildParameters(false)
}

// Find runs the query and materializes every result.
func (client *Client) Find(ctx context.Context, query *Query, actor Actor) ([]*Object, error) {
	params, err := client.prepare(ctx, query)
	if err != nil {
		return nil, err
	}

	client.log.Debug("find",
		zap.String("collection", query.collection),
		zap.Int("params", len(params)))

	states, err := client.exec.Find(ctx, query.collection, params, actor)
	if err != nil {
		return nil, err
	}

	objects := make([]*Object, 0, len(states))
	for _, state := range states {
		object, err := client.mat.FromState(query.collection, state)
		if err != nil {
			return nil, err
		}
		objects = append(objects, object)
	}
	return objects, nil
}

// First runs the query capped at one result and returns it, or
// ErrObjectNotFound when nothing matches.
func (client *Client) First(ctx context.Context, query *Query, actor Actor) (*Object, error) {
	objects, err := client.Find(ctx, query.Limit(1), actor)
	if err != nil {
		return nil, err
	}
	if len(objects) == 0 {
		return nil, fmt.Errorf("%w: %s", ErrObjectNotFound, query.collection)
	}
	return objects[0], nil
}

// Count runs the query and returns how many objects match.
func (client *Client) Count(ctx context.Context, query *Query, actor Actor) (int64, error) {
	params, err := client.prepare(ctx, query)
	if err != nil {
		return 0, err
	}

	client.log.Debug("count", zap.String("collection", query.collection))

	return client.exec.Count(ctx, query.collection, params, actor)
}

/*
GetByID fetches a single object by identifier. The lookup is a derived
query: an equality constraint on the identifier with a limit of one,
keeping the source's include and selection sets while dropping its filters
and paging. A miss reports the identifier.
*/
func (client *Client) GetByID(ctx context.Context, query *Query, id string, actor Actor) (*Object, error) {
	derived := &Query{
		collection: query.collection,
		includes:   query.includes,
		selects:    query.selects,
		err:        query.err,
	}
	derived = derived.WhereEqualTo(fieldObjectID, id).Limit(1)

	objects, err := client.Find(ctx, derived, actor)
	if err != nil {
		return nil, err
	}
	if len(objects) == 0 {
		return nil, fmt.Errorf("%w: %s %q", ErrObjectNotFound, query.collection, id)
	}
	return objects[0], nil
}

/*
FindEach streams every matching object through fn in stable batches,
paging with an ascending identifier cursor. The iterator owns ordering and
paging, so the source must not set them. A non-nil error from fn stops the
iteration and is returned as-is.
*/
func (client *Client) FindEach(ctx context.Context, query *Query, actor Actor, batchSize int, fn func(*Object) error) error {
	if err := query.Err(); err != nil {
		return err
	}
	if query.hasPaging() {
		return fmt.Errorf("%w: %s", ErrNonPageable, query.collection)
	}
	if batchSize <= 0 {
		batchSize = defaultBatchSize
	}

	cursor := ""
	for {
		page := query.OrderBy(fieldObjectID).Limit(batchSize)
		if cursor != "" {
			page = page.WhereGreaterThan(fieldObjectID, cursor)
		}

		objects, err := client.Find(ctx, page, actor)
		if err != nil {
			return err
		}
		for _, object := range objects {
			if err := fn(object); err != nil {
				return err
			}
			cursor = object.id
		}
		if len(objects) < batchSize {
			return nil
		}
	}
}

/*
FindAll fans the queries out over a bounded worker pool and collects the
results in input order. Individual failures do not stop the other queries;
they aggregate into the returned error.
*/
func (client *Client) FindAll(ctx context.Context, queries []*Query, actor Actor, concurrency int) ([][]*Object, error) {
	if concurrency <= 0 {
		concurrency = defaultConcurrency
	}

	pool, err := ants.NewPool(concurrency, ants.WithPanicHandler(func(v any) {
		client.log.Error("find worker panicked", zap.Any("panic", v))
	}))
	if err != nil {
		return nil, err
	}
	defer pool.Release()

	var (
		wg   sync.WaitGroup
		mu   sync.Mutex
		errs *multierror.Error
	)
	results := make([][]*Object, len(queries))

	for idx, query := range queries {
		wg.Add(1)
		submitErr := pool.Submit(func() {
			defer wg.Done()
			objects, findErr := client.Find(ctx, query, actor)
			mu.Lock()
			defer mu.Unlock()
			if findErr != nil {
				errs = multierror.Append(errs, fmt.Errorf("%s: %w", query.collection, findErr))
				return
			}
			results[idx] = objects
		})
		if submitErr != nil {
			wg.Done()
			mu.Lock()
			errs = multierror.Append(errs, submitErr)
			mu.Unlock()
		}
	}

	wg.Wait()
	return results, errs.ErrorOrNil()
}

// hasPaging reports whether the snapshot sets ordering, skip, or limit.
func (query *Query) hasPaging() bool {
	return len(query.orderKeys) > 0 || query.skip != nil || query.limit != nil
}
