package sqlq

import (
	"fmt"

	"github.com/xwb1989/sqlparser"

	"github.com/quarryhq/quarry"
)

type orderKey struct {
	field      string
	descending bool
}

func (statement *Statement) parseOrderBy(orderBy sqlparser.OrderBy) error {
	for _, order := range orderBy {
		col, ok := order.Expr.(*sqlparser.ColName)
		if !ok {
			return unsupported(fmt.Sprintf("%T in ORDER BY", order.Expr))
		}
		statement.orders = append(statement.orders, orderKey{
			field:      qualifiedName(col),
			descending: order.Direction == sqlparser.DescScr,
		})
	}
	return nil
}

func (order orderKey) apply(query *quarry.Query, first bool) *quarry.Query {
	switch {
	case first && order.descending:
		return query.OrderByDescending(order.field)
	case first:
		return query.OrderBy(order.field)
	case order.descending:
		return query.ThenByDescending(order.field)
	default:
		return query.ThenBy(order.field)
	}
}
