package sqlq

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/xwb1989/sqlparser"

	"github.com/quarryhq/quarry"
)

/*
parseWhere translates the WHERE clause into a filter query. The clause is
split into its AND conjuncts; at most one of them may be an OR group, which
becomes the disjunction base the remaining conjuncts refine. Conflicting
conjuncts for the same field latch on the query and surface when the
statement finalizes.
*/
func (statement *Statement) parseWhere(node *sqlparser.Where) error {
	if node == nil || node.Expr == nil {
		return nil
	}

	filter, err := statement.buildFilter(node.Expr)
	if err != nil {
		return err
	}
	statement.filter = filter
	return nil
}

func (statement *Statement) buildFilter(expr sqlparser.Expr) (*quarry.Query, error) {
	conjuncts := flattenAnd(expr)

	var disjunction *sqlparser.OrExpr
	plain := make([]sqlparser.Expr, 0, len(conjuncts))
	for _, conjunct := range conjuncts {
		if orExpr, ok := conjunct.(*sqlparser.OrExpr); ok {
			if disjunction != nil {
				return nil, unsupported("more than one OR group per scope")
			}
			disjunction = orExpr
			continue
		}
		plain = append(plain, conjunct)
	}

	query := quarry.NewQuery(statement.collection)
	if disjunction != nil {
		var err error
		if query, err = statement.buildDisjunction(disjunction); err != nil {
			return nil, err
		}
	}

	for _, conjunct := range plain {
		var err error
		if query, err = statement.applyConjunct(query, conjunct); err != nil {
			return nil, err
		}
	}
	return query, nil
}

func (statement *Statement) buildDisjunction(expr *sqlparser.OrExpr) (*quarry.Query, error) {
	arms := flattenOr(expr)
	sources := make([]*quarry.Query, 0, len(arms))

	for _, arm := range arms {
		source, err := statement.buildFilter(arm)
		if err != nil {
			return nil, err
		}
		sources = append(sources, source)
	}

	return quarry.Or(sources...), nil
}

func (statement *Statement) applyConjunct(query *quarry.Query, expr sqlparser.Expr) (*quarry.Query, error) {
	switch expr := expr.(type) {
	case *sqlparser.ComparisonExpr:
		return statement.applyComparison(query, expr)
	case *sqlparser.RangeCond:
		return statement.applyRange(query, expr)
	case *sqlparser.IsExpr:
		return statement.applyIs(query, expr)
	default:
		return nil, unsupported(fmt.Sprintf("%T in WHERE", expr))
	}
}

func (statement *Statement) applyComparison(query *quarry.Query, expr *sqlparser.ComparisonExpr) (*quarry.Query, error) {
	col, ok := expr.Left.(*sqlparser.ColName)
	if !ok {
		return nil, unsupported(fmt.Sprintf("%T on the left of %s", expr.Left, expr.Operator))
	}
	field := qualifiedName(col)

	switch expr.Operator {
	case "in", "not in":
		tuple, ok := expr.Right.(sqlparser.ValTuple)
		if !ok {
			return nil, unsupported(fmt.Sprintf("%T after %s", expr.Right, expr.Operator))
		}
		values, err := parseTuple(tuple)
		if err != nil {
			return nil, err
		}
		if expr.Operator == "not in" {
			return query.WhereNotContainedIn(field, values), nil
		}
		return query.WhereContainedIn(field, values), nil
	case "like":
		pattern, ok := expr.Right.(*sqlparser.SQLVal)
		if !ok || pattern.Type != sqlparser.StrVal {
			return nil, unsupported("non-literal LIKE pattern")
		}
		return applyLike(query, field, string(pattern.Val)), nil
	case "not like":
		return nil, unsupported("NOT LIKE")
	}

	value, err := parseOperand(expr.Right)
	if err != nil {
		return nil, err
	}

	switch expr.Operator {
	case "=":
		return query.WhereEqualTo(field, value), nil
	case "!=":
		return query.WhereNotEqualTo(field, value), nil
	case "<":
		return query.WhereLessThan(field, value), nil
	case "<=":
		return query.WhereLessThanOrEqualTo(field, value), nil
	case ">":
		return query.WhereGreaterThan(field, value), nil
	case ">=":
		return query.WhereGreaterThanOrEqualTo(field, value), nil
	default:
		return nil, unsupported(fmt.Sprintf("operator %s", expr.Operator))
	}
}

func (statement *Statement) applyRange(query *quarry.Query, expr *sqlparser.RangeCond) (*quarry.Query, error) {
	if expr.Operator != "between" {
		return nil, unsupported("NOT BETWEEN")
	}

	col, ok := expr.Left.(*sqlparser.ColName)
	if !ok {
		return nil, unsupported(fmt.Sprintf("%T in BETWEEN", expr.Left))
	}

	from, err := parseOperand(expr.From)
	if err != nil {
		return nil, err
	}
	to, err := parseOperand(expr.To)
	if err != nil {
		return nil, err
	}

	field := qualifiedName(col)
	return query.WhereGreaterThanOrEqualTo(field, from).WhereLessThanOrEqualTo(field, to), nil
}

func (statement *Statement) applyIs(query *quarry.Query, expr *sqlparser.IsExpr) (*quarry.Query, error) {
	col, ok := expr.Expr.(*sqlparser.ColName)
	if !ok {
		return nil, unsupported(fmt.Sprintf("%T in IS", expr.Expr))
	}
	field := qualifiedName(col)

	switch expr.Operator {
	case "is null":
		return query.WhereDoesNotExist(field), nil
	case "is not null":
		return query.WhereExists(field), nil
	case "is true":
		return query.WhereEqualTo(field, true), nil
	case "is false":
		return query.WhereEqualTo(field, false), nil
	case "is not true":
		return query.WhereNotEqualTo(field, true), nil
	case "is not false":
		return query.WhereNotEqualTo(field, false), nil
	default:
		return nil, unsupported(expr.Operator)
	}
}

/*
applyLike maps a LIKE pattern onto the narrowest matching refinement. A
pattern whose only wildcards are anchoring percents becomes a quoted
substring, prefix, or suffix match; no wildcard at all means equality.
Anything else is rewritten into an anchored case-insensitive expression
with % and _ as their regex equivalents.
*/
func applyLike(query *quarry.Query, field, pattern string) *quarry.Query {
	trimmed := strings.TrimSuffix(strings.TrimPrefix(pattern, "%"), "%")
	simple := !strings.ContainsAny(trimmed, "%_")

	switch {
	case simple && strings.HasPrefix(pattern, "%") && strings.HasSuffix(pattern, "%"):
		return query.WhereContains(field, trimmed)
	case simple && strings.HasSuffix(pattern, "%"):
		return query.WhereStartsWith(field, trimmed)
	case simple && strings.HasPrefix(pattern, "%"):
		return query.WhereEndsWith(field, trimmed)
	case simple:
		return query.WhereEqualTo(field, pattern)
	default:
		return query.WhereMatches(field,
			quarry.NewRegex(likeToRegex(pattern), quarry.RegexPortable|quarry.RegexIgnoreCase), "")
	}
}

func likeToRegex(pattern string) string {
	var out, literal strings.Builder
	flush := func() {
		out.WriteString(regexp.QuoteMeta(literal.String()))
		literal.Reset()
	}

	out.WriteString("^")
	for _, r := range pattern {
		switch r {
		case '%':
			flush()
			out.WriteString(".*")
		case '_':
			flush()
			out.WriteString(".")
		default:
			literal.WriteRune(r)
		}
	}
	flush()
	out.WriteString("$")
	return out.String()
}

func flattenAnd(expr sqlparser.Expr) []sqlparser.Expr {
	switch expr := expr.(type) {
	case *sqlparser.AndExpr:
		return append(flattenAnd(expr.Left), flattenAnd(expr.Right)...)
	case *sqlparser.ParenExpr:
		return flattenAnd(expr.Expr)
	default:
		return []sqlparser.Expr{expr}
	}
}

func flattenOr(expr sqlparser.Expr) []sqlparser.Expr {
	switch expr := expr.(type) {
	case *sqlparser.OrExpr:
		return append(flattenOr(expr.Left), flattenOr(expr.Right)...)
	case *sqlparser.ParenExpr:
		return flattenOr(expr.Expr)
	default:
		return []sqlparser.Expr{expr}
	}
}

func qualifiedName(col *sqlparser.ColName) string {
	return strings.TrimPrefix(strings.Join([]string{col.Qualifier.Name.String(), col.Name.String()}, "."), ".")
}
