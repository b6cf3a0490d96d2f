package quarry

import (
	"fmt"
	"sort"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

// ObjectState is the raw server state of a single object, keyed by field
// name, before materialization.
type ObjectState = bson.M

// Reserved state fields lifted out of the data map during materialization.
const (
	fieldCreatedAt = "createdAt"
	fieldUpdatedAt = "updatedAt"
)

/*
Object is a materialized, read-only result. Reserved fields are decoded
into typed accessors; everything else stays in the data map behind Get.
*/
type Object struct {
	collection string
	id         string
	createdAt  time.Time
	updatedAt  time.Time
	data       bson.M
}

func (object *Object) Collection() string {
	return object.collection
}

func (object *Object) ID() string {
	return object.id
}

func (object *Object) CreatedAt() time.Time {
	return object.createdAt
}

func (object *Object) UpdatedAt() time.Time {
	return object.updatedAt
}

func (object *Object) Get(key string) (any, bool) {
	value, ok := object.data[key]
	return value, ok
}

func (object *Object) Keys() []string {
	keys := make([]string, 0, len(object.data))
	for key := range object.data {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	return keys
}

// Ref returns a pointer to this object, usable as a constraint operand.
func (object *Object) Ref() ObjectRef {
	return ObjectRef{Collection: object.collection, ID: object.id}
}

// Materializer turns raw server state into domain objects.
type Materializer interface {
	FromState(collection string, state ObjectState) (*Object, error)
}

type stateMaterializer struct{}

// NewMaterializer returns the default Materializer. It accepts timestamps
// as RFC3339 strings, tagged date maps, native times, or driver datetimes.
func NewMaterializer() Materializer {
	return stateMaterializer{}
}

func (stateMaterializer) FromState(collection string, state ObjectState) (*Object, error) {
	object := &Object{
		collection: collection,
		data:       make(bson.M, len(state)),
	}

	for key, value := range state {
		switch key {
		case fieldObjectID:
			id, ok := value.(string)
			if !ok {
				return nil, fmt.Errorf("objectId must be a string, got %T", value)
			}
			object.id = id
		case fieldCreatedAt:
			created, err := decodeTimestamp(value)
			if err != nil {
				return nil, fmt.Errorf("createdAt: %w", err)
			}
			object.createdAt = created
		case fieldUpdatedAt:
			updated, err := decodeTimestamp(value)
			if err != nil {
				return nil, fmt.Errorf("updatedAt: %w", err)
			}
			object.updatedAt = updated
		default:
			object.data[key] = value
		}
	}

	return object, nil
}

func decodeTimestamp(value any) (time.Time, error) {
	switch value := value.(type) {
	case time.Time:
		return value, nil
	case primitive.DateTime:
		return value.Time().UTC(), nil
	case string:
		return time.Parse(time.RFC3339, value)
	case bson.M:
		iso, ok := value[fieldISO].(string)
		if !ok {
			return time.Time{}, fmt.Errorf("date map lacks an iso field")
		}
		return time.Parse(time.RFC3339, iso)
	case map[string]any:
		return decodeTimestamp(bson.M(value))
	default:
		return time.Time{}, fmt.Errorf("cannot decode a timestamp from %T", value)
	}
}
