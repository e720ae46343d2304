package querysql

import (
	"fmt"
	"reflect"
	"strings"

	"github.com/pgschema/relmig/internal/command"
	"github.com/pgschema/relmig/internal/query"
	"github.com/pgschema/relmig/internal/sqlgen"
)

// genContext is the state of one generation call. Fragments are rendered in
// textual order so positional parameters are bound in the order they appear.
type genContext struct {
	helper    sqlgen.Helper
	dialect   *dialect
	params    map[string]any
	builder   *command.Builder
	cacheable bool
}

const indentation = "    "

func indent(s string) string {
	lines := strings.Split(s, "\n")
	for i, l := range lines {
		if l != "" {
			lines[i] = indentation + l
		}
	}
	return strings.Join(lines, "\n")
}

func (c *genContext) ident(name string) string {
	return c.helper.DelimitIdentifier(name)
}

func (c *genContext) selectSQL(sel *query.Select) (string, error) {
	var sb strings.Builder
	sb.WriteString("SELECT ")
	if sel.Distinct {
		sb.WriteString("DISTINCT ")
	}
	if c.dialect.paging == fetchPaging && sel.Limit != nil && sel.Offset == nil {
		top, err := c.sql(sel.Limit)
		if err != nil {
			return "", err
		}
		sb.WriteString("TOP(" + top + ") ")
	}

	if len(sel.Projection) == 0 {
		sb.WriteString("1")
	}
	for i, p := range sel.Projection {
		if i > 0 {
			sb.WriteString(", ")
		}
		s, err := c.sql(p)
		if err != nil {
			return "", err
		}
		sb.WriteString(s)
	}

	for i, t := range sel.Tables {
		var (
			s   string
			err error
		)
		if i == 0 {
			sb.WriteString("\nFROM ")
			s, err = c.sourceSQL(t)
		} else {
			sb.WriteString("\n")
			s, err = c.joinSQL(t)
		}
		if err != nil {
			return "", err
		}
		sb.WriteString(s)
	}

	if sel.Predicate != nil {
		s, err := c.sql(sel.Predicate)
		if err != nil {
			return "", err
		}
		sb.WriteString("\nWHERE " + s)
	}

	if len(sel.Orderings) > 0 {
		sb.WriteString("\nORDER BY ")
		for i, o := range sel.Orderings {
			if i > 0 {
				sb.WriteString(", ")
			}
			s, err := c.sql(o.Expr)
			if err != nil {
				return "", err
			}
			sb.WriteString(s)
			if o.Descending {
				sb.WriteString(" DESC")
			}
		}
	} else if c.dialect.paging == fetchPaging && sel.Offset != nil {
		sb.WriteString("\nORDER BY (SELECT 1)")
	}

	paging, err := c.pagingSQL(sel)
	if err != nil {
		return "", err
	}
	sb.WriteString(paging)
	return sb.String(), nil
}

// pagingSQL renders the row limiting clause that follows ORDER BY.
func (c *genContext) pagingSQL(sel *query.Select) (string, error) {
	if sel.Offset == nil && (sel.Limit == nil || c.dialect.paging == fetchPaging) {
		return "", nil
	}
	var sb strings.Builder

	switch c.dialect.paging {
	case fetchPaging:
		offset, err := c.sql(sel.Offset)
		if err != nil {
			return "", err
		}
		sb.WriteString("\nOFFSET " + offset + " ROWS")
		if sel.Limit != nil {
			limit, err := c.sql(sel.Limit)
			if err != nil {
				return "", err
			}
			sb.WriteString(" FETCH NEXT " + limit + " ROWS ONLY")
		}
	case limitPaging:
		switch {
		case sel.Limit != nil:
			limit, err := c.sql(sel.Limit)
			if err != nil {
				return "", err
			}
			sb.WriteString("\nLIMIT " + limit)
		case c.dialect.unboundedLimit != "":
			sb.WriteString("\nLIMIT " + c.dialect.unboundedLimit)
		}
		if sel.Offset != nil {
			offset, err := c.sql(sel.Offset)
			if err != nil {
				return "", err
			}
			if sb.Len() == 0 {
				sb.WriteString("\n")
			} else {
				sb.WriteString(" ")
			}
			sb.WriteString("OFFSET " + offset)
		}
	}
	return sb.String(), nil
}

func (c *genContext) sourceSQL(e query.Expression) (string, error) {
	switch e := e.(type) {
	case *query.Table:
		s := c.helper.DelimitQualified(e.Name, e.Schema)
		if e.Alias != "" {
			s += " AS " + c.ident(e.Alias)
		}
		return s, nil
	case *query.Select:
		inner, err := c.selectSQL(e)
		if err != nil {
			return "", err
		}
		s := "(\n" + indent(inner) + "\n)"
		if e.Alias != "" {
			s += " AS " + c.ident(e.Alias)
		}
		return s, nil
	}
	return "", unhandled(e, "not a table source")
}

func (c *genContext) joinSQL(e query.Expression) (string, error) {
	switch e := e.(type) {
	case *query.CrossJoin:
		s, err := c.sourceSQL(e.Table)
		return "CROSS JOIN " + s, err
	case *query.CrossJoinLateral:
		if c.dialect.lateral == "" {
			return "", unhandled(e, "lateral joins are not supported by "+string(c.helper.Dialect()))
		}
		s, err := c.sourceSQL(e.Table)
		return c.dialect.lateral + " " + s, err
	case *query.InnerJoin:
		return c.conditionalJoin("INNER JOIN ", e.Table, e.On)
	case *query.LeftJoin:
		return c.conditionalJoin("LEFT JOIN ", e.Table, e.On)
	case *query.Table, *query.Select:
		s, err := c.sourceSQL(e)
		return "CROSS JOIN " + s, err
	}
	return "", unhandled(e, "not a join")
}

func (c *genContext) conditionalJoin(keyword string, table, on query.Expression) (string, error) {
	s, err := c.sourceSQL(table)
	if err != nil {
		return "", err
	}
	if on == nil {
		return "", fmt.Errorf("%sjoin without a condition", strings.ToLower(keyword))
	}
	cond, err := c.sql(on)
	if err != nil {
		return "", err
	}
	return keyword + s + " ON " + cond, nil
}

// sql renders an expression.
func (c *genContext) sql(e query.Expression) (string, error) {
	switch e := e.(type) {
	case *query.Column:
		if e.Table == "" {
			return c.ident(e.Name), nil
		}
		return c.ident(e.Table) + "." + c.ident(e.Name), nil
	case *query.Alias:
		s, err := c.sql(e.Expr)
		if err != nil {
			return "", err
		}
		return s + " AS " + c.ident(e.Alias), nil
	case *query.Constant:
		if e.Value == nil {
			return "NULL", nil
		}
		return c.helper.GenerateLiteral(e.Value), nil
	case *query.Parameter:
		return c.parameter(e)
	case *query.Binary:
		return c.binary(e)
	case *query.Not:
		s, err := c.sql(e.Operand)
		if err != nil {
			return "", err
		}
		return "NOT (" + s + ")", nil
	case *query.IsNull:
		s, err := c.operand(e.Operand)
		if err != nil {
			return "", err
		}
		if e.Negated {
			return s + " IS NOT NULL", nil
		}
		return s + " IS NULL", nil
	case *query.In:
		return c.in(e)
	case *query.Like:
		return c.like(e)
	case *query.Exists:
		inner, err := c.selectSQL(e.Subquery)
		if err != nil {
			return "", err
		}
		keyword := "EXISTS ("
		if e.Negated {
			keyword = "NOT EXISTS ("
		}
		return keyword + "\n" + indent(inner) + "\n)", nil
	case *query.Case:
		return c.caseSQL(e)
	case *query.Coalesce:
		args, err := c.list([]query.Expression{e.Left, e.Right})
		if err != nil {
			return "", err
		}
		return "COALESCE(" + args + ")", nil
	case *query.Function:
		name := e.Name
		if e.Schema != "" {
			name = c.ident(e.Schema) + "." + c.ident(e.Name)
		}
		if e.Niladic {
			return name, nil
		}
		args, err := c.list(e.Args)
		if err != nil {
			return "", err
		}
		return name + "(" + args + ")", nil
	case *query.Cast:
		s, err := c.sql(e.Operand)
		if err != nil {
			return "", err
		}
		return "CAST(" + s + " AS " + e.StoreType + ")", nil
	case *query.Aggregate:
		if e.Operand == nil {
			if e.Func != query.Count {
				return "", unhandled(e, e.Func.String()+" without an operand")
			}
			return "COUNT(*)", nil
		}
		s, err := c.sql(e.Operand)
		if err != nil {
			return "", err
		}
		if e.Distinct {
			s = "DISTINCT " + s
		}
		return e.Func.String() + "(" + s + ")", nil
	case *query.StringCompare:
		op, ok := binaryOperators[e.Op]
		if !ok || !e.Op.IsComparison() {
			return "", unhandled(e, "operator "+e.Op.String())
		}
		left, err := c.operand(e.Left)
		if err != nil {
			return "", err
		}
		right, err := c.operand(e.Right)
		if err != nil {
			return "", err
		}
		return left + op + right, nil
	case *query.Select:
		inner, err := c.selectSQL(e)
		if err != nil {
			return "", err
		}
		return "(\n" + indent(inner) + "\n)", nil
	case *query.Table, *query.CrossJoin, *query.CrossJoinLateral, *query.InnerJoin, *query.LeftJoin:
		return "", unhandled(e, "table sources are only valid in FROM")
	}
	return "", unhandled(e, "")
}

func (c *genContext) list(es []query.Expression) (string, error) {
	parts := make([]string, len(es))
	for i, e := range es {
		s, err := c.sql(e)
		if err != nil {
			return "", err
		}
		parts[i] = s
	}
	return strings.Join(parts, ", "), nil
}

// operand renders e for use inside another operator, parenthesizing
// compound expressions.
func (c *genContext) operand(e query.Expression) (string, error) {
	s, err := c.sql(e)
	if err != nil {
		return "", err
	}
	switch e.(type) {
	case *query.Binary, *query.StringCompare:
		return "(" + s + ")", nil
	}
	return s, nil
}

func (c *genContext) binary(e *query.Binary) (string, error) {
	child := func(x query.Expression) (string, error) {
		if b, ok := x.(*query.Binary); ok && b.Op == e.Op && e.Op.IsLogical() {
			return c.sql(x)
		}
		return c.operand(x)
	}
	left, err := child(e.Left)
	if err != nil {
		return "", err
	}
	right, err := child(e.Right)
	if err != nil {
		return "", err
	}
	if e.Op == query.Concat {
		return c.dialect.concat(left, right), nil
	}
	op, ok := binaryOperators[e.Op]
	if !ok {
		return "", unhandled(e, "operator "+e.Op.String())
	}
	return left + op + right, nil
}

func (c *genContext) like(e *query.Like) (string, error) {
	match, err := c.operand(e.Match)
	if err != nil {
		return "", err
	}
	pattern, err := c.operand(e.Pattern)
	if err != nil {
		return "", err
	}
	s := match + " LIKE " + pattern
	if e.Escape != nil {
		escape, err := c.sql(e.Escape)
		if err != nil {
			return "", err
		}
		s += " ESCAPE " + escape
	}
	return s, nil
}

func (c *genContext) caseSQL(e *query.Case) (string, error) {
	var sb strings.Builder
	sb.WriteString("CASE")
	if e.Operand != nil {
		s, err := c.sql(e.Operand)
		if err != nil {
			return "", err
		}
		sb.WriteString(" " + s)
	}
	for _, w := range e.Whens {
		test, err := c.sql(w.Test)
		if err != nil {
			return "", err
		}
		result, err := c.sql(w.Result)
		if err != nil {
			return "", err
		}
		sb.WriteString(" WHEN " + test + " THEN " + result)
	}
	if e.Else != nil {
		s, err := c.sql(e.Else)
		if err != nil {
			return "", err
		}
		sb.WriteString(" ELSE " + s)
	}
	sb.WriteString(" END")
	return sb.String(), nil
}

func (c *genContext) parameter(p *query.Parameter) (string, error) {
	v, ok := c.params[p.Name]
	if !ok {
		return "", fmt.Errorf("no value for parameter %q", p.Name)
	}
	if isCollection(v) {
		return "", unhandled(p, "collection parameter outside IN")
	}
	return c.builder.AddParameter(p.Name, v), nil
}

func isCollection(v any) bool {
	if v == nil {
		return false
	}
	if _, ok := v.([]byte); ok {
		return false
	}
	k := reflect.TypeOf(v).Kind()
	return k == reflect.Slice || k == reflect.Array
}

// inValue is one element of a flattened IN list: a literal or an
// expression rendered later, in textual order.
type inValue struct {
	literal string
	expr    query.Expression
}

// in renders IN. Literal and parameter collections are flattened. NULL
// elements are split off into IS NULL so that NULL matches NULL, a nullable
// item under NOT IN matches, and an empty list is a constant condition.
func (c *genContext) in(e *query.In) (string, error) {
	if e.Subquery != nil {
		item, err := c.operand(e.Item)
		if err != nil {
			return "", err
		}
		inner, err := c.selectSQL(e.Subquery)
		if err != nil {
			return "", err
		}
		keyword := " IN ("
		if e.Negated {
			keyword = " NOT IN ("
		}
		return item + keyword + "\n" + indent(inner) + "\n)", nil
	}

	var values []inValue
	hasNull := false
	add := func(v query.Expression) error {
		switch v := v.(type) {
		case *query.Constant:
			if v.Value == nil {
				hasNull = true
			} else {
				values = append(values, inValue{literal: c.helper.GenerateLiteral(v.Value)})
			}
		case *query.Parameter:
			pv, ok := c.params[v.Name]
			if !ok {
				return fmt.Errorf("no value for parameter %q", v.Name)
			}
			switch {
			case pv == nil:
				hasNull = true
			case isCollection(pv):
				c.cacheable = false
				rv := reflect.ValueOf(pv)
				for i := 0; i < rv.Len(); i++ {
					elem := rv.Index(i).Interface()
					if elem == nil {
						hasNull = true
						continue
					}
					values = append(values, inValue{literal: c.helper.GenerateLiteral(elem)})
				}
			default:
				values = append(values, inValue{expr: v})
			}
		default:
			values = append(values, inValue{expr: v})
		}
		return nil
	}
	for _, v := range e.Values {
		if err := add(v); err != nil {
			return "", err
		}
	}
	if e.Parameter != nil {
		if err := add(e.Parameter); err != nil {
			return "", err
		}
	}

	if len(values) == 0 {
		if !hasNull {
			if e.Negated {
				return "1 = 1", nil
			}
			return "0 = 1", nil
		}
		item, err := c.operand(e.Item)
		if err != nil {
			return "", err
		}
		if e.Negated {
			return item + " IS NOT NULL", nil
		}
		return item + " IS NULL", nil
	}

	item, err := c.operand(e.Item)
	if err != nil {
		return "", err
	}
	parts := make([]string, len(values))
	for i, v := range values {
		if v.expr == nil {
			parts[i] = v.literal
			continue
		}
		if parts[i], err = c.sql(v.expr); err != nil {
			return "", err
		}
	}
	keyword := " IN ("
	if e.Negated {
		keyword = " NOT IN ("
	}
	s := item + keyword + strings.Join(parts, ", ") + ")"
	// A NULL item is not in any list.
	nullItemMatches := e.Negated && !hasNull && nullable(e.Item, c.params)
	if !hasNull && !nullItemMatches {
		return s, nil
	}

	// The item is rendered again so positional parameters stay in order.
	again, err := c.operand(e.Item)
	if err != nil {
		return "", err
	}
	if e.Negated && hasNull {
		return "(" + s + " AND " + again + " IS NOT NULL)", nil
	}
	return "(" + s + " OR " + again + " IS NULL)", nil
}
