// Package mongoexec runs encoded queries directly against a MongoDB
// database. It is the reference Executor: the parameter mapping a query
// builds is translated into a native find or count, embedded queries
// and all.
package mongoexec

import (
	"context"

	"github.com/pkg/errors"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.uber.org/zap"

	"github.com/quarryhq/quarry"
)

// Executor dispatches parameter mappings against a single database.
type Executor struct {
	db  *mongo.Database
	log *zap.Logger
}

var _ quarry.Executor = (*Executor)(nil)

// Option configures an Executor.
type Option func(*Executor)

// WithLogger attaches a structured logger. Without one the executor
// stays silent.
func WithLogger(logger *zap.Logger) Option {
	return func(executor *Executor) {
		executor.log = logger
	}
}

// New returns an Executor over the given database.
func New(db *mongo.Database, opts ...Option) *Executor {
	executor := &Executor{db: db}

	for _, opt := range opts {
		opt(executor)
	}

	if executor.log == nil {
		executor.log = zap.NewNop()
	}

	return executor
}

/*
Find translates the parameter mapping into a native find against the
target collection and decodes every matching document. A redirect key
retargets the collection first; a zero limit short-circuits without
touching the database.
*/
func (executor *Executor) Find(
	ctx context.Context, collection string, params quarry.Params, actor quarry.Actor,
) ([]quarry.ObjectState, error) {
	plan, err := executor.plan(ctx, collection, params, actor)
	if err != nil {
		return nil, err
	}

	if plan.empty {
		return []quarry.ObjectState{}, nil
	}

	executor.log.Debug("mongo find",
		zap.String("collection", plan.collection),
		zap.Any("filter", plan.filter))

	opts := options.Find()

	if len(plan.sort) > 0 {
		opts.SetSort(plan.sort)
	}

	if len(plan.projection) > 0 {
		opts.SetProjection(plan.projection)
	}

	if plan.skip > 0 {
		opts.SetSkip(plan.skip)
	}

	if plan.limit > 0 {
		opts.SetLimit(plan.limit)
	}

	cursor, err := executor.db.Collection(plan.collection).Find(ctx, plan.filter, opts)
	if err != nil {
		executor.log.Error("mongo find failed",
			zap.Error(err), zap.String("collection", plan.collection))
		return nil, errors.Wrapf(err, "find %s", plan.collection)
	}

	defer cursor.Close(ctx)

	states := make([]quarry.ObjectState, 0)
	if err = cursor.All(ctx, &states); err != nil {
		return nil, errors.Wrapf(err, "decode %s documents", plan.collection)
	}

	return states, nil
}

/*
Count translates the parameter mapping into a native count. Ordering,
projection, and includes do not change what matches and are ignored;
skip and limit still bound the tally.
*/
func (executor *Executor) Count(
	ctx context.Context, collection string, params quarry.Params, actor quarry.Actor,
) (int64, error) {
	plan, err := executor.plan(ctx, collection, params, actor)
	if err != nil {
		return 0, err
	}

	if plan.empty {
		return 0, nil
	}

	executor.log.Debug("mongo count",
		zap.String("collection", plan.collection),
		zap.Any("filter", plan.filter))

	opts := options.Count()

	if plan.skip > 0 {
		opts.SetSkip(plan.skip)
	}

	if plan.limit > 0 {
		opts.SetLimit(plan.limit)
	}

	total, err := executor.db.Collection(plan.collection).CountDocuments(ctx, plan.filter, opts)
	if err != nil {
		executor.log.Error("mongo count failed",
			zap.Error(err), zap.String("collection", plan.collection))
		return 0, errors.Wrapf(err, "count %s", plan.collection)
	}

	return total, nil
}

// findPlan is a translated query ready to run. empty marks plans that
// cannot match anything, a zero limit or a redirect with no pointer to
// follow.
type findPlan struct {
	collection string
	filter     bson.M
	sort       bson.D
	projection bson.D
	skip       int64
	limit      int64
	empty      bool
}

func (executor *Executor) plan(
	ctx context.Context, collection string, params quarry.Params, actor quarry.Actor,
) (*findPlan, error) {
	plan := &findPlan{collection: collection}

	if key, ok := stringParam(params, "redirectClassNameForKey"); ok && key != "" {
		target, err := executor.redirect(ctx, collection, key)
		if err != nil {
			return nil, err
		}

		if target == "" {
			plan.empty = true
			return plan, nil
		}

		executor.log.Debug("redirected collection",
			zap.String("from", collection),
			zap.String("to", target),
			zap.String("key", key))
		plan.collection = target
	}

	tr := &translator{resolve: executor.Find, actor: actor}

	filter, err := tr.filter(ctx, params["where"])
	if err != nil {
		return nil, err
	}

	plan.filter = filter

	if order, ok := stringParam(params, "order"); ok && order != "" {
		plan.sort = buildSort(order)
	}

	if keys, ok := stringParam(params, "keys"); ok && keys != "" {
		plan.projection = buildProjection(keys)
	}

	if skip, ok := intParam(params, "skip"); ok && skip > 0 {
		plan.skip = skip
	}

	if limit, ok := intParam(params, "limit"); ok {
		if limit > 0 {
			plan.limit = limit
		} else {
			plan.empty = true
		}
	}

	return plan, nil
}

/*
redirect samples one document holding a pointer under key and returns
the collection that pointer targets. An empty name means no document
carries the pointer, so there is nothing to follow.
*/
func (executor *Executor) redirect(ctx context.Context, collection, key string) (string, error) {
	probe := bson.M{key + ".className": bson.M{"$exists": true}}

	var sample quarry.ObjectState

	err := executor.db.Collection(collection).FindOne(ctx, probe).Decode(&sample)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return "", nil
	}

	if err != nil {
		return "", errors.Wrapf(err, "sample %s.%s", collection, key)
	}

	target, ok := docString(sample[key], "className")
	if !ok || target == "" {
		return "", errors.Errorf("%s.%s does not hold a pointer", collection, key)
	}

	return target, nil
}
