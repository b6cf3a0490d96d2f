package sqlq

import (
	"fmt"
	"strconv"

	"github.com/xwb1989/sqlparser"
)

/*
parseOperand converts a SQL literal into the Go value the query builder
takes. Strings stay strings, numbers become int or float64, and booleans
map directly. A bare NULL has no wire encoding; the IS forms carry that
meaning instead.
*/
func parseOperand(expr sqlparser.Expr) (any, error) {
	switch expr := expr.(type) {
	case *sqlparser.SQLVal:
		return parseSQLValue(expr)
	case sqlparser.BoolVal:
		return bool(expr), nil
	case *sqlparser.NullVal:
		return nil, unsupported("NULL comparison, use IS NULL")
	default:
		return nil, unsupported(fmt.Sprintf("%T value", expr))
	}
}

func parseSQLValue(val *sqlparser.SQLVal) (any, error) {
	switch val.Type {
	case sqlparser.StrVal:
		return string(val.Val), nil
	case sqlparser.IntVal:
		num, err := strconv.Atoi(string(val.Val))
		if err != nil {
			return nil, err
		}
		return num, nil
	case sqlparser.FloatVal:
		num, err := strconv.ParseFloat(string(val.Val), 64)
		if err != nil {
			return nil, err
		}
		return num, nil
	default:
		return nil, unsupported(fmt.Sprintf("literal type %d", val.Type))
	}
}

func parseTuple(tuple sqlparser.ValTuple) ([]any, error) {
	values := make([]any, 0, len(tuple))
	for _, val := range tuple {
		value, err := parseOperand(val)
		if err != nil {
			return nil, err
		}
		values = append(values, value)
	}
	return values, nil
}
