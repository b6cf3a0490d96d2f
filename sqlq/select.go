package sqlq

import (
	"fmt"

	"github.com/xwb1989/sqlparser"
)

/*
parseProjection converts the SELECT expressions into a key selection. A star
selects everything, so it clears any keys collected before it and stops.
Columns accumulate; the only function with a translation is a bare COUNT,
which flips the dispatch to a count instead of shaping the projection.
*/
func (statement *Statement) parseProjection(node sqlparser.SelectExprs) error {
	for _, expr := range node {
		switch expr := expr.(type) {
		case *sqlparser.StarExpr:
			statement.selects = nil
			return nil
		case *sqlparser.AliasedExpr:
			if err := statement.parseProjectionExpr(expr); err != nil {
				return err
			}
		default:
			return unsupported(fmt.Sprintf("%T in SELECT", expr))
		}
	}

	if statement.countAll && len(statement.selects) > 0 {
		return unsupported("mixing COUNT with columns")
	}
	return nil
}

func (statement *Statement) parseProjectionExpr(expr *sqlparser.AliasedExpr) error {
	switch expr := expr.Expr.(type) {
	case *sqlparser.ColName:
		statement.selects = append(statement.selects, expr.Name.CompliantName())
	case *sqlparser.FuncExpr:
		return statement.parseCount(expr)
	case *sqlparser.Subquery:
		return unsupported("subquery in SELECT")
	default:
		return unsupported(fmt.Sprintf("%T in SELECT", expr))
	}
	return nil
}

/*
parseCount accepts COUNT over a star and nothing else. Counting a column or
a DISTINCT set needs aggregation the store does not offer.
*/
func (statement *Statement) parseCount(node *sqlparser.FuncExpr) error {
	if node.Name.Lowered() != "count" {
		return unsupported(fmt.Sprintf("%s()", node.Name.String()))
	}
	if node.Distinct {
		return unsupported("COUNT(DISTINCT)")
	}
	if len(node.Exprs) != 1 {
		return unsupported("COUNT arity")
	}
	if _, ok := node.Exprs[0].(*sqlparser.StarExpr); !ok {
		return unsupported("COUNT over a column")
	}

	statement.countAll = true
	return nil
}
