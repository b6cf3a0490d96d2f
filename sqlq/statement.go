// Package sqlq translates read-only SQL statements into quarry queries.
// The supported surface is the subset a single-collection object store can
// answer: SELECT with filters, ordering, and paging. Anything that needs
// server-side aggregation reports an unsupported error instead of guessing.
package sqlq

import (
	"errors"
	"fmt"

	errnie "github.com/theapemachine/errnie"
	"github.com/xwb1989/sqlparser"

	"github.com/quarryhq/quarry"
)

// ErrUnsupportedSQL marks constructs the wire format cannot express.
var ErrUnsupportedSQL = errors.New("unsupported sql construct")

func unsupported(what string) error {
	return fmt.Errorf("%w: %s", ErrUnsupportedSQL, what)
}

// Operation tells the caller how to dispatch the translated query.
type Operation string

const (
	OpFind  Operation = "find"
	OpFirst Operation = "first"
	OpCount Operation = "count"
)

// Result pairs the translated query with its dispatch operation.
type Result struct {
	Query     *quarry.Query
	Operation Operation
}

type Statement struct {
	raw  string
	stmt sqlparser.Statement
	err  error

	collection string
	filter     *quarry.Query
	selects    []string
	orders     []orderKey
	limit      *int
	offset     *int
	countAll   bool
}

func NewStatement(raw string) *Statement {
	return &Statement{raw: raw}
}

func (statement *Statement) Build() (*Result, error) {
	if err := statement.validate(); err != nil {
		return nil, err
	}

	if err := statement.parseSQL(); err != nil {
		return nil, err
	}

	return statement.finalize()
}

func (statement *Statement) validate() error {
	if statement == nil {
		return fmt.Errorf("statement is nil")
	}
	if statement.err != nil {
		return statement.err
	}
	return nil
}

func (statement *Statement) parseSQL() error {
	var err error
	statement.stmt, err = sqlparser.Parse(statement.raw)
	if err != nil {
		return errnie.Error(err)
	}

	if _, ok := statement.stmt.(*sqlparser.Select); !ok {
		return errnie.Error(unsupported(fmt.Sprintf("%T, only SELECT is translated", statement.stmt)))
	}

	return errnie.Error(sqlparser.Walk(statement.visit, statement.stmt))
}

func (statement *Statement) visit(node sqlparser.SQLNode) (bool, error) {
	switch node := node.(type) {
	case *sqlparser.Select:
		if err := statement.parseSelectNode(node); err != nil {
			return false, err
		}
	case sqlparser.SelectExprs:
		if err := statement.parseProjection(node); err != nil {
			return false, err
		}
	case *sqlparser.Where:
		if err := statement.parseWhere(node); err != nil {
			return false, err
		}
	case *sqlparser.Limit:
		if err := statement.parseLimit(node); err != nil {
			return false, err
		}
	case *sqlparser.JoinTableExpr:
		return false, unsupported("JOIN")
	case *sqlparser.Subquery:
		return false, unsupported("subquery")
	case sqlparser.TableExprs, sqlparser.TableName:
		// Handled from the select node.
	default:
	}
	return true, nil
}

func (statement *Statement) parseSelectNode(node *sqlparser.Select) error {
	if node.Distinct != "" {
		return unsupported("DISTINCT")
	}
	if len(node.GroupBy) > 0 {
		return unsupported("GROUP BY")
	}
	if node.Having != nil {
		return unsupported("HAVING")
	}

	if statement.collection == "" {
		if err := statement.parseFrom(node.From); err != nil {
			return err
		}
	}

	return statement.parseOrderBy(node.OrderBy)
}

// finalize assembles the translated query from the recorded clauses. The
// filter comes first so merge conflicts latch before view and paging
// refinements, and count dispatches drop paging entirely.
func (statement *Statement) finalize() (*Result, error) {
	query := statement.filter
	if query == nil {
		query = quarry.NewQuery(statement.collection)
	}

	operation := OpFind
	switch {
	case statement.countAll:
		operation = OpCount
	case statement.limit != nil && *statement.limit == 1:
		operation = OpFirst
	}

	if len(statement.selects) > 0 {
		query = query.Select(statement.selects...)
	}
	for idx, order := range statement.orders {
		query = order.apply(query, idx == 0)
	}
	if operation != OpCount {
		if statement.offset != nil {
			query = query.Skip(*statement.offset)
		}
		if statement.limit != nil {
			query = query.Limit(*statement.limit)
		}
	}

	if err := query.Err(); err != nil {
		return nil, err
	}
	return &Result{Query: query, Operation: operation}, nil
}
