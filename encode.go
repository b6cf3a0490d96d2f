package quarry

import (
	"sort"
	"strings"
	"time"

	"go.mongodb.org/mongo-driver/bson"
)

// Params is the wire parameter mapping a query encodes to. Marshaling it
// with encoding/json yields canonical bytes: map keys are emitted sorted,
// so the same snapshot always produces the same payload.
type Params map[string]any

// Wire parameter names.
const (
	paramWhere     = "where"
	paramOrder     = "order"
	paramSkip      = "skip"
	paramLimit     = "limit"
	paramInclude   = "include"
	paramKeys      = "keys"
	paramClassName = "className"
	paramRedirect  = "redirectClassNameForKey"
)

// Wire value type markers.
const (
	typeKey     = "__type"
	typePointer = "Pointer"
	typeGeo     = "GeoPoint"
	typeDate    = "Date"

	fieldClassName = "className"
	fieldObjectID  = "objectId"
	fieldISO       = "iso"
	fieldLatitude  = "latitude"
	fieldLongitude = "longitude"
)

// isoFormat renders instants as UTC with millisecond precision, the only
// date form the server accepts.
const isoFormat = "2006-01-02T15:04:05.000Z"

/*
BuildParameters encodes the snapshot into its wire parameter mapping.
Unset clauses are omitted entirely; a set limit of zero still encodes. The
collection name is only included when the mapping is embedded inside
another query's constraint, the top-level name travels in the request path
instead. The returned mapping shares no containers with the snapshot.
*/
func (query *Query) BuildParameters(includeCollectionName bool) (Params, error) {
	if query.err != nil {
		return nil, query.err
	}

	params := make(Params)

	if len(query.where) > 0 {
		where, err := encodeValue(query.where)
		if err != nil {
			return nil, err
		}
		params[paramWhere] = where
	}
	if len(query.orderKeys) > 0 {
		params[paramOrder] = strings.Join(query.orderKeys, ",")
	}
	if query.skip != nil {
		params[paramSkip] = *query.skip
	}
	if query.limit != nil {
		params[paramLimit] = *query.limit
	}
	if len(query.includes) > 0 {
		params[paramInclude] = joinSorted(query.includes)
	}
	if len(query.selects) > 0 {
		params[paramKeys] = joinSorted(query.selects)
	}
	if query.redirect != "" {
		params[paramRedirect] = query.redirect
	}
	if includeCollectionName {
		params[paramClassName] = query.collection
	}

	return params, nil
}

/*
encodeValue translates an operand into its wire form. Domain values become
tagged maps, embedded queries become parameter mappings carrying their
collection name, and containers are rebuilt recursively so no snapshot
structure is aliased into the output. Anything else passes through.
*/
func encodeValue(value any) (any, error) {
	switch value := value.(type) {
	case GeoPoint:
		return bson.M{
			typeKey:        typeGeo,
			fieldLatitude:  value.Latitude,
			fieldLongitude: value.Longitude,
		}, nil
	case ObjectRef:
		return bson.M{
			typeKey:        typePointer,
			fieldClassName: value.Collection,
			fieldObjectID:  value.ID,
		}, nil
	case *Object:
		return bson.M{
			typeKey:        typePointer,
			fieldClassName: value.collection,
			fieldObjectID:  value.id,
		}, nil
	case time.Time:
		return bson.M{
			typeKey:  typeDate,
			fieldISO: value.UTC().Format(isoFormat),
		}, nil
	case *Query:
		return value.BuildParameters(true)
	case bson.M:
		out := make(bson.M, len(value))
		for key, entry := range value {
			encoded, err := encodeValue(entry)
			if err != nil {
				return nil, err
			}
			out[key] = encoded
		}
		return out, nil
	case map[string]any:
		out := make(bson.M, len(value))
		for key, entry := range value {
			encoded, err := encodeValue(entry)
			if err != nil {
				return nil, err
			}
			out[key] = encoded
		}
		return out, nil
	case []bson.M:
		out := make([]any, len(value))
		for idx, entry := range value {
			encoded, err := encodeValue(entry)
			if err != nil {
				return nil, err
			}
			out[idx] = encoded
		}
		return out, nil
	case []any:
		out := make([]any, len(value))
		for idx, entry := range value {
			encoded, err := encodeValue(entry)
			if err != nil {
				return nil, err
			}
			out[idx] = encoded
		}
		return out, nil
	default:
		return value, nil
	}
}

func joinSorted(set map[string]struct{}) string {
	members := make([]string, 0, len(set))
	for member := range set {
		members = append(members, member)
	}
	sort.Strings(members)
	return strings.Join(members, ",")
}
