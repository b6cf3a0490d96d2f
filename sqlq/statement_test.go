package sqlq

import (
	"fmt"
	"testing"

	. "github.com/smartystreets/goconvey/convey"
	"go.mongodb.org/mongo-driver/bson"

	"github.com/quarryhq/quarry"
)

var stmts = []map[string]interface{}{{
	"sql":   "SQL (MYSQL DIALECT) TO QUARRY, LET'S GO!",
	"error": "syntax error at position 4 near 'sql'",
}, {
	"sql":        "SELECT * FROM players",
	"error":      nil,
	"operation":  "find",
	"collection": "players",
	"params":     quarry.Params{},
}, {
	"sql":        "select * from players where objectId = 'xWMyZ4YEGZ'",
	"error":      nil,
	"operation":  "find",
	"collection": "players",
	"params": quarry.Params{
		"where": bson.M{"objectId": "xWMyZ4YEGZ"},
	},
}, {
	"sql":        "SELECT playerName FROM game_scores WHERE score >= 1000",
	"error":      nil,
	"operation":  "find",
	"collection": "game_scores",
	"params": quarry.Params{
		"keys":  "playerName",
		"where": bson.M{"score": bson.M{"$gte": 1000}},
	},
}, {
	"sql":        "SELECT * FROM game_scores WHERE score BETWEEN 100 AND 500",
	"error":      nil,
	"operation":  "find",
	"collection": "game_scores",
	"params": quarry.Params{
		"where": bson.M{"score": bson.M{"$gte": 100, "$lte": 500}},
	},
}, {
	"sql":        "SELECT * FROM game_scores WHERE playerName IN ('Jonathan Walsh', 'Dario Wunsch')",
	"error":      nil,
	"operation":  "find",
	"collection": "game_scores",
	"params": quarry.Params{
		"where": bson.M{"playerName": bson.M{"$in": []any{"Jonathan Walsh", "Dario Wunsch"}}},
	},
}, {
	"sql":        "SELECT * FROM game_scores WHERE playerName NOT IN ('Shawn Simon')",
	"error":      nil,
	"operation":  "find",
	"collection": "game_scores",
	"params": quarry.Params{
		"where": bson.M{"playerName": bson.M{"$nin": []any{"Shawn Simon"}}},
	},
}, {
	"sql":        "SELECT * FROM game_scores WHERE cheatMode IS NOT NULL",
	"error":      nil,
	"operation":  "find",
	"collection": "game_scores",
	"params": quarry.Params{
		"where": bson.M{"cheatMode": bson.M{"$exists": true}},
	},
}, {
	"sql":        "SELECT * FROM game_scores WHERE cheatMode IS NULL",
	"error":      nil,
	"operation":  "find",
	"collection": "game_scores",
	"params": quarry.Params{
		"where": bson.M{"cheatMode": bson.M{"$exists": false}},
	},
}, {
	"sql":        "SELECT * FROM game_scores WHERE cheatMode = false",
	"error":      nil,
	"operation":  "find",
	"collection": "game_scores",
	"params": quarry.Params{
		"where": bson.M{"cheatMode": false},
	},
}, {
	"sql":        "SELECT * FROM sauces WHERE name LIKE '%Daddy%'",
	"error":      nil,
	"operation":  "find",
	"collection": "sauces",
	"params": quarry.Params{
		"where": bson.M{"name": bson.M{"$regex": `\QDaddy\E`}},
	},
}, {
	"sql":        "SELECT * FROM sauces WHERE name LIKE 'Big%'",
	"error":      nil,
	"operation":  "find",
	"collection": "sauces",
	"params": quarry.Params{
		"where": bson.M{"name": bson.M{"$regex": `^\QBig\E`}},
	},
}, {
	"sql":        "SELECT * FROM sauces WHERE name LIKE '%Sauce'",
	"error":      nil,
	"operation":  "find",
	"collection": "sauces",
	"params": quarry.Params{
		"where": bson.M{"name": bson.M{"$regex": `\QSauce\E$`}},
	},
}, {
	"sql":        "SELECT * FROM sauces WHERE name LIKE 'B_g%Daddy'",
	"error":      nil,
	"operation":  "find",
	"collection": "sauces",
	"params": quarry.Params{
		"where": bson.M{"name": bson.M{"$regex": "^B.g.*Daddy$", "$options": "i"}},
	},
}, {
	"sql":        "SELECT * FROM sauces WHERE name LIKE 'Exact'",
	"error":      nil,
	"operation":  "find",
	"collection": "sauces",
	"params": quarry.Params{
		"where": bson.M{"name": "Exact"},
	},
}, {
	"sql":        "SELECT * FROM players WHERE wins < 5 OR wins > 150",
	"error":      nil,
	"operation":  "find",
	"collection": "players",
	"params": quarry.Params{
		"where": bson.M{"$or": []any{
			bson.M{"wins": bson.M{"$lt": 5}},
			bson.M{"wins": bson.M{"$gt": 150}},
		}},
	},
}, {
	"sql":        "SELECT * FROM products WHERE (category = 'Electronics' OR category = 'Accessories') AND price >= 100",
	"error":      nil,
	"operation":  "find",
	"collection": "products",
	"params": quarry.Params{
		"where": bson.M{
			"$or": []any{
				bson.M{"category": "Electronics"},
				bson.M{"category": "Accessories"},
			},
			"price": bson.M{"$gte": 100},
		},
	},
}, {
	"sql":        "SELECT * FROM questions WHERE theme.nl = 'Some Theme'",
	"error":      nil,
	"operation":  "find",
	"collection": "questions",
	"params": quarry.Params{
		"where": bson.M{"theme.nl": "Some Theme"},
	},
}, {
	"sql":        "SELECT uuid FROM answers ORDER BY createdAt DESC, uuid ASC LIMIT 25 OFFSET 5",
	"error":      nil,
	"operation":  "find",
	"collection": "answers",
	"params": quarry.Params{
		"keys":  "uuid",
		"order": "-createdAt,uuid",
		"limit": 25,
		"skip":  5,
	},
}, {
	"sql":        "SELECT a.uuid FROM answers a LIMIT 13, 1",
	"error":      nil,
	"operation":  "first",
	"collection": "answers",
	"params": quarry.Params{
		"keys":  "uuid",
		"limit": 1,
		"skip":  13,
	},
}, {
	"sql":        "SELECT * FROM fanchecks LIMIT 1",
	"error":      nil,
	"operation":  "first",
	"collection": "fanchecks",
	"params": quarry.Params{
		"limit": 1,
	},
}, {
	"sql":        "SELECT COUNT(*) FROM game_scores",
	"error":      nil,
	"operation":  "count",
	"collection": "game_scores",
	"params":     quarry.Params{},
}, {
	"sql":        "SELECT COUNT(*) FROM game_scores WHERE score > 1000",
	"error":      nil,
	"operation":  "count",
	"collection": "game_scores",
	"params": quarry.Params{
		"where": bson.M{"score": bson.M{"$gt": 1000}},
	},
}, {
	"sql":        "SELECT teamName FROM `Team`",
	"error":      nil,
	"operation":  "find",
	"collection": "Team",
	"params": quarry.Params{
		"keys": "teamName",
	},
}, {
	"sql":   "SELECT u.name, p.city FROM users u JOIN profiles p ON u.id = p.user_id",
	"error": "JOIN",
}, {
	"sql":   "SELECT department, COUNT(*) FROM employees GROUP BY department",
	"error": "GROUP BY",
}, {
	"sql":   "SELECT name FROM products HAVING name > 'a'",
	"error": "HAVING",
}, {
	"sql":   "SELECT DISTINCT theme FROM questions",
	"error": "DISTINCT",
}, {
	"sql":   "SELECT AVG(salary) FROM employees",
	"error": "avg",
}, {
	"sql":   "SELECT COUNT(user_id) FROM events",
	"error": "COUNT over a column",
}, {
	"sql":   "SELECT COUNT(DISTINCT user_id) FROM events",
	"error": "COUNT(DISTINCT)",
}, {
	"sql":   "SELECT name, COUNT(*) FROM employees",
	"error": "mixing COUNT with columns",
}, {
	"sql":   "SELECT * FROM players WHERE city IN (SELECT city FROM teams)",
	"error": "unsupported sql construct",
}, {
	"sql":   "SELECT * FROM players WHERE wins = losses",
	"error": "unsupported sql construct",
}, {
	"sql":   "SELECT * FROM players WHERE wins = 1 AND wins = 2",
	"error": "more than one where clause",
}, {
	"sql":   "SELECT * FROM a, b",
	"error": "multiple FROM tables",
}, {
	"sql":   "UPDATE players SET wins = 1",
	"error": "only SELECT is translated",
}}

func TestStatement(t *testing.T) {
	Convey("Given a sqlq statement", t, func() {
		for idx, stmt := range stmts {
			testCase := newTestCase(idx, stmt)
			testCase.run(t)
		}
	})
}

type testCase struct {
	idx    int
	stmt   map[string]interface{}
	result *Result
	err    error
	sql    string
}

func newTestCase(idx int, stmt map[string]interface{}) *testCase {
	return &testCase{
		idx:  idx,
		stmt: stmt,
		sql:  stmt["sql"].(string),
	}
}

func (tc *testCase) run(_ *testing.T) {
	Convey(fmt.Sprintf("[%d] %s", tc.idx, tc.sql), func() {
		tc.build()
		tc.testInvalidSQL()
		tc.testValidSQL()
	})
}

func (tc *testCase) build() {
	statement := NewStatement(tc.sql)
	tc.result, tc.err = statement.Build()
}

func (tc *testCase) testInvalidSQL() {
	Convey(fmt.Sprintf("[%d] When the statement cannot translate", tc.idx), func() {
		if errMsg, ok := tc.stmt["error"].(string); ok {
			tc.assertError(errMsg)
		}
	})
}

func (tc *testCase) testValidSQL() {
	Convey(fmt.Sprintf("[%d] When the statement translates", tc.idx), func() {
		if _, ok := tc.stmt["error"].(string); !ok {
			tc.assertNoError()
			tc.assertOperation()
			tc.assertCollection()
			tc.assertParams()
		}
	})
}

func (tc *testCase) assertError(errMsg string) {
	Convey(fmt.Sprintf("[%d] should error with %s", tc.idx, errMsg), func() {
		So(tc.err, ShouldNotBeNil)
		So(tc.err.Error(), ShouldContainSubstring, errMsg)
	})
}

func (tc *testCase) assertNoError() {
	Convey(fmt.Sprintf("[%d] should not error", tc.idx), func() {
		So(tc.err, ShouldBeNil)
		So(tc.result, ShouldNotBeNil)
	})
}

func (tc *testCase) assertOperation() {
	if operation, ok := tc.stmt["operation"].(string); ok {
		Convey(fmt.Sprintf("[%d] should dispatch as %s", tc.idx, operation), func() {
			So(tc.result.Operation, ShouldEqual, Operation(operation))
		})
	}
}

func (tc *testCase) assertCollection() {
	if collection, ok := tc.stmt["collection"].(string); ok {
		Convey(fmt.Sprintf("[%d] should target [%s]", tc.idx, collection), func() {
			So(tc.result.Query.Collection(), ShouldEqual, collection)
		})
	}
}

func (tc *testCase) assertParams() {
	if params, ok := tc.stmt["params"].(quarry.Params); ok {
		Convey(fmt.Sprintf("[%d] should encode %v", tc.idx, params), func() {
			encoded, err := tc.result.Query.BuildParameters(false)
			So(err, ShouldBeNil)
			So(encoded, ShouldResemble, params)
		})
	}
}
