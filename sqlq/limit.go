package sqlq

import (
	"fmt"
	"strconv"

	"github.com/xwb1989/sqlparser"
)

func (statement *Statement) parseLimit(node *sqlparser.Limit) error {
	if node == nil {
		return nil
	}

	if node.Rowcount != nil {
		count, err := intValue(node.Rowcount)
		if err != nil {
			return err
		}
		statement.limit = &count
	}

	if node.Offset != nil {
		offset, err := intValue(node.Offset)
		if err != nil {
			return err
		}
		statement.offset = &offset
	}

	return nil
}

func intValue(expr sqlparser.Expr) (int, error) {
	val, ok := expr.(*sqlparser.SQLVal)
	if !ok || val.Type != sqlparser.IntVal {
		return 0, unsupported(fmt.Sprintf("%T in LIMIT", expr))
	}
	return strconv.Atoi(string(val.Val))
}
