package quarry

import (
	"fmt"

	"go.mongodb.org/mongo-driver/bson"
)

// Wire operator names. A constraint tree maps field names to either a bare
// literal (equality) or a bson.M keyed by these operators.
const (
	opNotEqual       = "$ne"
	opLessThan       = "$lt"
	opLessOrEqual    = "$lte"
	opGreaterThan    = "$gt"
	opGreaterOrEqual = "$gte"
	opIn             = "$in"
	opNotIn          = "$nin"
	opAll            = "$all"
	opExists         = "$exists"
	opRegex          = "$regex"
	opOptions        = "$options"
	opNearSphere     = "$nearSphere"
	opMaxDistance    = "$maxDistance"
	opWithin         = "$within"
	opBox            = "$box"
	opInQuery        = "$inQuery"
	opNotInQuery     = "$notInQuery"
	opSelect         = "$select"
	opDontSelect     = "$dontSelect"
	opOr             = "$or"
)

/*
mergeWhere combines two constraint trees into a fresh one, leaving both
inputs untouched. A key may carry one bare literal or one operator map;
a second literal for the same key is rejected, and operator maps only
combine while their operators stay disjoint.
*/
func mergeWhere(existing, incoming bson.M) (bson.M, error) {
	merged := make(bson.M, len(existing)+len(incoming))
	for key, value := range existing {
		merged[key] = value
	}

	for key, value := range incoming {
		current, present := merged[key]
		if !present {
			merged[key] = value
			continue
		}

		currentOps, currentIsMap := current.(bson.M)
		incomingOps, incomingIsMap := value.(bson.M)
		if !currentIsMap || !incomingIsMap {
			return nil, fmt.Errorf("%w: %s", ErrDuplicateClause, key)
		}

		combined := make(bson.M, len(currentOps)+len(incomingOps))
		for op, operand := range currentOps {
			combined[op] = operand
		}
		for op, operand := range incomingOps {
			if _, taken := combined[op]; taken {
				return nil, fmt.Errorf("%w: %s %s", ErrDuplicateCondition, key, op)
			}
			combined[op] = operand
		}
		merged[key] = combined
	}

	return merged, nil
}
