package mongoexec

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"

	"github.com/quarryhq/quarry"
)

type resolvedCall struct {
	collection string
	params     quarry.Params
}

type stubResolver struct {
	states []quarry.ObjectState
	err    error
	calls  []resolvedCall
}

func (stub *stubResolver) resolve(
	_ context.Context, collection string, params quarry.Params, _ quarry.Actor,
) ([]quarry.ObjectState, error) {
	stub.calls = append(stub.calls, resolvedCall{collection: collection, params: params})
	return stub.states, stub.err
}

func newTranslator(stub *stubResolver) *translator {
	return &translator{resolve: stub.resolve}
}

func geoDoc(latitude, longitude float64) bson.M {
	return bson.M{"__type": "GeoPoint", "latitude": latitude, "longitude": longitude}
}

func TestFilter_NilWhereMatchesEverything(t *testing.T) {
	tr := newTranslator(&stubResolver{})

	filter, err := tr.filter(context.Background(), nil)
	require.NoError(t, err)
	assert.Equal(t, bson.M{}, filter)
}

func TestFilter_LiteralsPassThrough(t *testing.T) {
	tr := newTranslator(&stubResolver{})

	filter, err := tr.filter(context.Background(), bson.M{
		"playerName": "Dan Stemkoski",
		"cheatMode":  false,
	})
	require.NoError(t, err)
	assert.Equal(t, bson.M{"playerName": "Dan Stemkoski", "cheatMode": false}, filter)
}

func TestFilter_OperatorMapCarriesOver(t *testing.T) {
	tr := newTranslator(&stubResolver{})

	filter, err := tr.filter(context.Background(), bson.M{
		"score": bson.M{"$gt": 1000, "$lte": 3000},
	})
	require.NoError(t, err)
	assert.Equal(t, bson.M{"score": bson.M{"$gt": 1000, "$lte": 3000}}, filter)
}

func TestFilter_RegexFoldsOptions(t *testing.T) {
	tr := newTranslator(&stubResolver{})

	filter, err := tr.filter(context.Background(), bson.M{
		"name": bson.M{"$regex": "^Big Daddy", "$options": "im"},
	})
	require.NoError(t, err)
	assert.Equal(t, bson.M{
		"name": bson.M{"$regex": primitive.Regex{Pattern: "^Big Daddy", Options: "im"}},
	}, filter)
}

func TestFilter_RegexWithoutOptions(t *testing.T) {
	tr := newTranslator(&stubResolver{})

	filter, err := tr.filter(context.Background(), bson.M{
		"name": bson.M{"$regex": "^\\QSan\\E"},
	})
	require.NoError(t, err)
	assert.Equal(t, bson.M{
		"name": bson.M{"$regex": primitive.Regex{Pattern: "^\\QSan\\E"}},
	}, filter)
}

func TestFilter_RegexPatternMustBeString(t *testing.T) {
	tr := newTranslator(&stubResolver{})

	_, err := tr.filter(context.Background(), bson.M{"name": bson.M{"$regex": 7}})
	assert.ErrorContains(t, err, "$regex")
}

func TestFilter_PointerEqualityUsesDottedFields(t *testing.T) {
	tr := newTranslator(&stubResolver{})

	filter, err := tr.filter(context.Background(), bson.M{
		"post": bson.M{"__type": "Pointer", "className": "Post", "objectId": "1zEcyElZ80"},
	})
	require.NoError(t, err)
	assert.Equal(t, bson.M{
		"post.className": "Post",
		"post.objectId":  "1zEcyElZ80",
	}, filter)
}

func TestFilter_PointerInsideListBecomesCanonical(t *testing.T) {
	tr := newTranslator(&stubResolver{})

	filter, err := tr.filter(context.Background(), bson.M{
		"post": bson.M{"$in": []any{
			bson.M{"__type": "Pointer", "className": "Post", "objectId": "a"},
		}},
	})
	require.NoError(t, err)
	assert.Equal(t, bson.M{
		"post": bson.M{"$in": []any{bson.D{
			{Key: "__type", Value: "Pointer"},
			{Key: "className", Value: "Post"},
			{Key: "objectId", Value: "a"},
		}}},
	}, filter)
}

func TestFilter_DateLiteralBecomesCanonical(t *testing.T) {
	tr := newTranslator(&stubResolver{})

	filter, err := tr.filter(context.Background(), bson.M{
		"createdAt": bson.M{"$gte": bson.M{"__type": "Date", "iso": "2024-03-05T12:30:45.123Z"}},
	})
	require.NoError(t, err)
	assert.Equal(t, bson.M{
		"createdAt": bson.M{"$gte": bson.D{
			{Key: "__type", Value: "Date"},
			{Key: "iso", Value: "2024-03-05T12:30:45.123Z"},
		}},
	}, filter)
}

func TestFilter_NearSphereFlattensToLegacyPair(t *testing.T) {
	tr := newTranslator(&stubResolver{})

	filter, err := tr.filter(context.Background(), bson.M{
		"location": bson.M{"$nearSphere": geoDoc(40, -30), "$maxDistance": 0.5},
	})
	require.NoError(t, err)
	assert.Equal(t, bson.M{
		"location": bson.M{
			"$nearSphere":  []float64{-30, 40},
			"$maxDistance": 0.5,
		},
	}, filter)
}

func TestFilter_WithinBecomesGeoWithinBox(t *testing.T) {
	tr := newTranslator(&stubResolver{})

	filter, err := tr.filter(context.Background(), bson.M{
		"location": bson.M{"$within": bson.M{
			"$box": []any{geoDoc(37.71, -122.53), geoDoc(30.82, -122.37)},
		}},
	})
	require.NoError(t, err)
	assert.Equal(t, bson.M{
		"location": bson.M{"$geoWithin": bson.M{
			"$box": [][]float64{{-122.53, 37.71}, {-122.37, 30.82}},
		}},
	}, filter)
}

func TestFilter_BoxNeedsTwoCorners(t *testing.T) {
	tr := newTranslator(&stubResolver{})

	_, err := tr.filter(context.Background(), bson.M{
		"location": bson.M{"$within": bson.M{"$box": []any{geoDoc(1, 2)}}},
	})
	assert.ErrorContains(t, err, "two corners")
}

func TestFilter_OrRecursesArmByArm(t *testing.T) {
	tr := newTranslator(&stubResolver{})

	filter, err := tr.filter(context.Background(), bson.M{
		"$or": []any{
			bson.M{"wins": bson.M{"$lt": 5}},
			bson.M{"wins": bson.M{"$gt": 150}},
		},
	})
	require.NoError(t, err)
	assert.Equal(t, bson.M{
		"$or": []bson.M{
			{"wins": bson.M{"$lt": 5}},
			{"wins": bson.M{"$gt": 150}},
		},
	}, filter)
}

func TestFilter_InQueryCollapsesToContainment(t *testing.T) {
	stub := &stubResolver{states: []quarry.ObjectState{
		{"objectId": "a"},
		{"objectId": "b"},
	}}
	tr := newTranslator(stub)

	filter, err := tr.filter(context.Background(), bson.M{
		"post": bson.M{"$inQuery": bson.M{
			"className": "Post",
			"where":     bson.M{"image": bson.M{"$exists": true}},
		}},
	})
	require.NoError(t, err)
	assert.Equal(t, bson.M{
		"post.objectId": bson.M{"$in": []any{"a", "b"}},
	}, filter)

	require.Len(t, stub.calls, 1)
	assert.Equal(t, "Post", stub.calls[0].collection)
	assert.Equal(t, quarry.Params{
		"where": bson.M{"image": bson.M{"$exists": true}},
	}, stub.calls[0].params)
}

func TestFilter_NotInQueryUsesNin(t *testing.T) {
	stub := &stubResolver{states: []quarry.ObjectState{{"objectId": "a"}}}
	tr := newTranslator(stub)

	filter, err := tr.filter(context.Background(), bson.M{
		"post": bson.M{"$notInQuery": bson.M{"className": "Post"}},
	})
	require.NoError(t, err)
	assert.Equal(t, bson.M{
		"post.objectId": bson.M{"$nin": []any{"a"}},
	}, filter)
}

func TestFilter_SelectHarvestsKeyValues(t *testing.T) {
	stub := &stubResolver{states: []quarry.ObjectState{
		{"city": "Mesa"},
		{"city": "Burbank"},
	}}
	tr := newTranslator(stub)

	filter, err := tr.filter(context.Background(), bson.M{
		"hometown": bson.M{"$select": bson.M{
			"key": "city",
			"query": bson.M{
				"className": "Team",
				"where":     bson.M{"winPct": bson.M{"$gt": 0.5}},
			},
		}},
	})
	require.NoError(t, err)
	assert.Equal(t, bson.M{
		"hometown": bson.M{"$in": []any{"Mesa", "Burbank"}},
	}, filter)

	require.Len(t, stub.calls, 1)
	assert.Equal(t, "Team", stub.calls[0].collection)
}

func TestFilter_DontSelectUsesNin(t *testing.T) {
	stub := &stubResolver{states: []quarry.ObjectState{{"city": "Mesa"}}}
	tr := newTranslator(stub)

	filter, err := tr.filter(context.Background(), bson.M{
		"hometown": bson.M{"$dontSelect": bson.M{
			"key":   "city",
			"query": bson.M{"className": "Team"},
		}},
	})
	require.NoError(t, err)
	assert.Equal(t, bson.M{
		"hometown": bson.M{"$nin": []any{"Mesa"}},
	}, filter)
}

func TestFilter_SelectWalksDottedKeys(t *testing.T) {
	stub := &stubResolver{states: []quarry.ObjectState{
		{"venue": bson.D{{Key: "city", Value: "Tucson"}}},
		{"name": "no venue"},
	}}
	tr := newTranslator(stub)

	filter, err := tr.filter(context.Background(), bson.M{
		"hometown": bson.M{"$select": bson.M{
			"key":   "venue.city",
			"query": bson.M{"className": "Team"},
		}},
	})
	require.NoError(t, err)
	assert.Equal(t, bson.M{
		"hometown": bson.M{"$in": []any{"Tucson"}},
	}, filter)
}

func TestFilter_EmbeddedQueryNeedsClassName(t *testing.T) {
	tr := newTranslator(&stubResolver{})

	_, err := tr.filter(context.Background(), bson.M{
		"post": bson.M{"$inQuery": bson.M{"where": bson.M{}}},
	})
	assert.ErrorContains(t, err, "className")
}

func TestFilter_EmbeddedQueryErrorSurfaces(t *testing.T) {
	stub := &stubResolver{err: errors.New("backend unavailable")}
	tr := newTranslator(stub)

	_, err := tr.filter(context.Background(), bson.M{
		"post": bson.M{"$inQuery": bson.M{"className": "Post"}},
	})
	assert.ErrorContains(t, err, "backend unavailable")
}

func TestFilter_RejectsScalarWhere(t *testing.T) {
	tr := newTranslator(&stubResolver{})

	_, err := tr.filter(context.Background(), "score > 1000")
	assert.ErrorContains(t, err, "document")
}

func TestBuildSort_SignedKeys(t *testing.T) {
	sort := buildSort("-score,playerName")
	assert.Equal(t, bson.D{
		{Key: "score", Value: -1},
		{Key: "playerName", Value: 1},
	}, sort)
}

func TestBuildProjection_ForcesIdentityFields(t *testing.T) {
	projection := buildProjection("score,playerName")
	assert.Equal(t, bson.D{
		{Key: "score", Value: 1},
		{Key: "playerName", Value: 1},
		{Key: "objectId", Value: 1},
		{Key: "createdAt", Value: 1},
		{Key: "updatedAt", Value: 1},
	}, projection)
}

func TestBuildProjection_DoesNotDuplicateForcedFields(t *testing.T) {
	projection := buildProjection("objectId,score")
	assert.Equal(t, bson.D{
		{Key: "objectId", Value: 1},
		{Key: "score", Value: 1},
		{Key: "createdAt", Value: 1},
		{Key: "updatedAt", Value: 1},
	}, projection)
}
