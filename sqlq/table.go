package sqlq

import (
	"github.com/xwb1989/sqlparser"
)

func (statement *Statement) parseFrom(from sqlparser.TableExprs) error {
	if len(from) != 1 {
		return unsupported("multiple FROM tables")
	}

	aliased, ok := from[0].(*sqlparser.AliasedTableExpr)
	if !ok {
		return unsupported("JOIN")
	}

	tableName, ok := aliased.Expr.(sqlparser.TableName)
	if !ok {
		return unsupported("subquery in FROM")
	}

	if name := tableName.Name.CompliantName(); name != "" {
		statement.collection = tableName.Name.String()
	}
	return nil
}
