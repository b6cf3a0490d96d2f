package mongoexec

import (
	"context"
	"sort"
	"strings"

	"github.com/pkg/errors"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"

	"github.com/quarryhq/quarry"
)

// resolver executes an embedded parameter mapping and returns the raw
// matching documents. The executor passes its own Find here, so
// embedded queries nest to any depth.
type resolver func(
	ctx context.Context, collection string, params quarry.Params, actor quarry.Actor,
) ([]quarry.ObjectState, error)

// translator rewrites one wire operator tree into a native mongo
// filter.
type translator struct {
	resolve resolver
	actor   quarry.Actor
}

/*
filter translates a where clause. Literal constraints pass through with
tagged values rewritten to their stored form, operator maps translate
operator by operator, and $or recurses arm by arm. Pointer equality
becomes dotted className/objectId constraints so matching does not
depend on stored field order.
*/
func (tr *translator) filter(ctx context.Context, where any) (bson.M, error) {
	if where == nil {
		return bson.M{}, nil
	}

	clause, ok := asDocument(where)
	if !ok {
		return nil, errors.Errorf("where clause must be a document, got %T", where)
	}

	out := make(bson.M, len(clause))

	for field, value := range clause {
		if field == "$or" {
			arms, err := tr.disjunction(ctx, value)
			if err != nil {
				return nil, err
			}

			out[field] = arms
			continue
		}

		doc, isDoc := asDocument(value)

		if isDoc && operatorsOnly(doc) {
			if err := tr.constraint(ctx, out, field, doc); err != nil {
				return nil, err
			}
			continue
		}

		if isDoc {
			if tag, _ := docString(doc, "__type"); tag == "Pointer" {
				target, okName := docString(doc, "className")
				id, okID := docString(doc, "objectId")

				if !okName || !okID {
					return nil, errors.Errorf(
						"pointer constraint on %q lacks className or objectId", field)
				}

				out[field+".className"] = target
				out[field+".objectId"] = id
				continue
			}
		}

		out[field] = storedValue(value)
	}

	return out, nil
}

func (tr *translator) disjunction(ctx context.Context, value any) ([]bson.M, error) {
	arms, ok := asList(value)
	if !ok {
		return nil, errors.Errorf("$or expects a list of clauses, got %T", value)
	}

	out := make([]bson.M, 0, len(arms))

	for _, arm := range arms {
		sub, err := tr.filter(ctx, arm)
		if err != nil {
			return nil, err
		}

		out = append(out, sub)
	}

	return out, nil
}

/*
constraint translates one operator map. Most operators carry over with
their operands rewritten to stored form. The exceptions: regexes fold
their options into a primitive.Regex, geo operators flatten tagged
points into legacy longitude/latitude pairs, and the four
embedded-query operators run their query and collapse into plain
containment.
*/
func (tr *translator) constraint(
	ctx context.Context, out bson.M, field string, ops map[string]any,
) error {
	node := make(bson.M, len(ops))

	for op, operand := range ops {
		switch op {
		case "$options":
			// Folded into $regex.

		case "$regex":
			pattern, ok := operand.(string)
			if !ok {
				return errors.Errorf("$regex on %q expects a string pattern, got %T", field, operand)
			}

			modifiers, _ := ops["$options"].(string)
			node[op] = primitive.Regex{Pattern: pattern, Options: modifiers}

		case "$in", "$nin", "$all":
			members, ok := asList(operand)
			if !ok {
				return errors.Errorf("%s on %q expects a list, got %T", op, field, operand)
			}

			node[op] = storedList(members)

		case "$inQuery", "$notInQuery":
			ids, err := tr.pointerIDs(ctx, operand)
			if err != nil {
				return errors.Wrapf(err, "%s on %q", op, field)
			}

			containment := "$in"
			if op == "$notInQuery" {
				containment = "$nin"
			}

			out[field+".objectId"] = bson.M{containment: ids}

		case "$select", "$dontSelect":
			values, err := tr.keyValues(ctx, operand)
			if err != nil {
				return errors.Wrapf(err, "%s on %q", op, field)
			}

			containment := "$in"
			if op == "$dontSelect" {
				containment = "$nin"
			}

			node[containment] = values

		case "$nearSphere":
			pair, err := coordinatePair(operand)
			if err != nil {
				return errors.Wrapf(err, "$nearSphere on %q", field)
			}

			node[op] = pair

		case "$maxDistance":
			node[op] = operand

		case "$within":
			box, err := boxCorners(operand)
			if err != nil {
				return errors.Wrapf(err, "$within on %q", field)
			}

			node["$geoWithin"] = bson.M{"$box": box}

		default:
			node[op] = storedValue(operand)
		}
	}

	if len(node) > 0 {
		out[field] = node
	}

	return nil
}

// embedded runs the parameter mapping of an embedded query. The mapping
// carries its collection under className; everything else is the query
// itself.
func (tr *translator) embedded(ctx context.Context, operand any) ([]quarry.ObjectState, error) {
	spec, ok := asDocument(operand)
	if !ok {
		return nil, errors.Errorf("embedded query must be a document, got %T", operand)
	}

	collection, ok := docString(spec, "className")
	if !ok || collection == "" {
		return nil, errors.New("embedded query carries no className")
	}

	params := make(quarry.Params, len(spec)-1)

	for name, value := range spec {
		if name != "className" {
			params[name] = value
		}
	}

	return tr.resolve(ctx, collection, params, tr.actor)
}

// pointerIDs harvests the object ids an embedded query matches.
func (tr *translator) pointerIDs(ctx context.Context, operand any) ([]any, error) {
	states, err := tr.embedded(ctx, operand)
	if err != nil {
		return nil, err
	}

	ids := make([]any, 0, len(states))

	for _, state := range states {
		if id, ok := docString(state, "objectId"); ok {
			ids = append(ids, id)
		}
	}

	return ids, nil
}

/*
keyValues harvests the values under key from every document an embedded
query matches. Dotted keys walk nested documents; documents missing the
key contribute nothing.
*/
func (tr *translator) keyValues(ctx context.Context, operand any) ([]any, error) {
	spec, ok := asDocument(operand)
	if !ok {
		return nil, errors.Errorf("key selection expects a document, got %T", operand)
	}

	key, ok := docString(spec, "key")
	if !ok || key == "" {
		return nil, errors.New("key selection carries no key")
	}

	states, err := tr.embedded(ctx, spec["query"])
	if err != nil {
		return nil, err
	}

	values := make([]any, 0, len(states))

	for _, state := range states {
		if value, ok := lookupPath(state, key); ok {
			values = append(values, value)
		}
	}

	return values, nil
}

/*
storedValue rewrites a wire literal into the form documents are stored
in. Tagged maps become canonical ordered documents, containers rewrite
element-wise, and plain scalars pass through untouched.
*/
func storedValue(value any) any {
	if doc, ok := asDocument(value); ok {
		if _, tagged := doc["__type"]; tagged {
			return canonicalDocument(doc)
		}

		out := make(bson.M, len(doc))

		for name, entry := range doc {
			out[name] = storedValue(entry)
		}

		return out
	}

	if members, ok := asList(value); ok {
		return storedList(members)
	}

	return value
}

func storedList(members []any) []any {
	out := make([]any, len(members))

	for idx, member := range members {
		out[idx] = storedValue(member)
	}

	return out
}

// canonicalDocument orders a tagged map's fields the way the encoder
// emits them, __type first and the rest sorted, so embedded-document
// equality matches the stored bytes.
func canonicalDocument(doc map[string]any) bson.D {
	names := make([]string, 0, len(doc))

	for name := range doc {
		names = append(names, name)
	}

	sort.Strings(names)

	out := make(bson.D, 0, len(names))

	for _, name := range names {
		out = append(out, bson.E{Key: name, Value: storedValue(doc[name])})
	}

	return out
}

// coordinatePair flattens a tagged GeoPoint into the legacy longitude,
// latitude pair mongo's planar geo operators take.
func coordinatePair(value any) ([]float64, error) {
	doc, ok := asDocument(value)
	if !ok {
		return nil, errors.Errorf("expected a GeoPoint, got %T", value)
	}

	latitude, okLat := asFloat(doc["latitude"])
	longitude, okLng := asFloat(doc["longitude"])

	if !okLat || !okLng {
		return nil, errors.New("GeoPoint lacks latitude or longitude")
	}

	return []float64{longitude, latitude}, nil
}

// boxCorners unpacks {$box: [southwest, northeast]} into coordinate
// pairs.
func boxCorners(value any) ([][]float64, error) {
	doc, ok := asDocument(value)
	if !ok {
		return nil, errors.Errorf("expected a $box document, got %T", value)
	}

	corners, ok := asList(doc["$box"])
	if !ok || len(corners) != 2 {
		return nil, errors.New("$box expects exactly two corners")
	}

	southwest, err := coordinatePair(corners[0])
	if err != nil {
		return nil, err
	}

	northeast, err := coordinatePair(corners[1])
	if err != nil {
		return nil, err
	}

	return [][]float64{southwest, northeast}, nil
}

// buildSort expands the signed ordering keys into a sort document.
func buildSort(order string) bson.D {
	sortDoc := make(bson.D, 0, 2)

	for _, key := range strings.Split(order, ",") {
		key = strings.TrimSpace(key)
		if key == "" {
			continue
		}

		direction := 1
		if strings.HasPrefix(key, "-") {
			direction = -1
			key = key[1:]
		}

		sortDoc = append(sortDoc, bson.E{Key: key, Value: direction})
	}

	return sortDoc
}

// buildProjection turns the keys list into an inclusion projection.
// Identity and timestamp fields always come along.
func buildProjection(keys string) bson.D {
	projection := make(bson.D, 0, 4)
	seen := make(map[string]bool)

	for _, key := range strings.Split(keys, ",") {
		key = strings.TrimSpace(key)
		if key == "" || seen[key] {
			continue
		}

		seen[key] = true
		projection = append(projection, bson.E{Key: key, Value: 1})
	}

	for _, key := range []string{"objectId", "createdAt", "updatedAt"} {
		if !seen[key] {
			projection = append(projection, bson.E{Key: key, Value: 1})
		}
	}

	return projection
}

// operatorsOnly reports whether every key of a constraint document is
// an operator. Tagged values carry __type, so a single plain key marks
// the document as a literal.
func operatorsOnly(doc map[string]any) bool {
	if len(doc) == 0 {
		return false
	}

	for name := range doc {
		if !strings.HasPrefix(name, "$") {
			return false
		}
	}

	return true
}

// lookupPath resolves a possibly dotted key against a document.
func lookupPath(doc any, path string) (any, bool) {
	current := doc

	for _, segment := range strings.Split(path, ".") {
		value, ok := docField(current, segment)
		if !ok {
			return nil, false
		}

		current = value
	}

	return current, true
}

// docField reads one field from whichever document shape the driver or
// the wire handed us.
func docField(doc any, field string) (any, bool) {
	switch doc := doc.(type) {
	case bson.M:
		value, ok := doc[field]
		return value, ok
	case map[string]any:
		value, ok := doc[field]
		return value, ok
	case quarry.Params:
		value, ok := doc[field]
		return value, ok
	case bson.D:
		for _, entry := range doc {
			if entry.Key == field {
				return entry.Value, true
			}
		}
	}

	return nil, false
}

func docString(doc any, field string) (string, bool) {
	value, ok := docField(doc, field)
	if !ok {
		return "", false
	}

	name, ok := value.(string)
	return name, ok
}

func asDocument(value any) (map[string]any, bool) {
	switch value := value.(type) {
	case bson.M:
		return value, true
	case map[string]any:
		return value, true
	case quarry.Params:
		return value, true
	}

	return nil, false
}

func asList(value any) ([]any, bool) {
	switch value := value.(type) {
	case []any:
		return value, true
	case bson.A:
		return value, true
	case []bson.M:
		out := make([]any, len(value))
		for idx, member := range value {
			out[idx] = member
		}
		return out, true
	}

	return nil, false
}

func asFloat(value any) (float64, bool) {
	switch value := value.(type) {
	case float64:
		return value, true
	case float32:
		return float64(value), true
	case int:
		return float64(value), true
	case int32:
		return float64(value), true
	case int64:
		return float64(value), true
	}

	return 0, false
}

func stringParam(params quarry.Params, name string) (string, bool) {
	value, ok := params[name].(string)
	return value, ok
}

func intParam(params quarry.Params, name string) (int64, bool) {
	switch value := params[name].(type) {
	case int:
		return int64(value), true
	case int32:
		return int64(value), true
	case int64:
		return value, true
	case float64:
		return int64(value), true
	}

	return 0, false
}
