package query

import (
	"fmt"

	"github.com/pgschema/relmig/model"
)

// Kind names the node type of e, for error messages.
func Kind(e Expression) string {
	switch e.(type) {
	case *Select:
		return "Select"
	case *Table:
		return "Table"
	case *Column:
		return "Column"
	case *Alias:
		return "Alias"
	case *CrossJoin:
		return "CrossJoin"
	case *CrossJoinLateral:
		return "CrossJoinLateral"
	case *InnerJoin:
		return "InnerJoin"
	case *LeftJoin:
		return "LeftJoin"
	case *Constant:
		return "Constant"
	case *Parameter:
		return "Parameter"
	case *Binary:
		return "Binary"
	case *Not:
		return "Not"
	case *IsNull:
		return "IsNull"
	case *In:
		return "In"
	case *Like:
		return "Like"
	case *Exists:
		return "Exists"
	case *Case:
		return "Case"
	case *Coalesce:
		return "Coalesce"
	case *Function:
		return "Function"
	case *Cast:
		return "Cast"
	case *Aggregate:
		return "Aggregate"
	case *StringCompare:
		return "StringCompare"
	}
	return fmt.Sprintf("%T", e)
}

// IsPredicate reports whether e is a search condition in SQL rather than a
// scalar value.
func IsPredicate(e Expression) bool {
	switch e := e.(type) {
	case *Binary:
		return e.Op.IsComparison() || e.Op.IsLogical()
	case *Not, *IsNull, *In, *Like, *Exists, *StringCompare:
		return true
	}
	return false
}

// MapChildren returns a shallow copy of e with every direct child replaced
// by f(child). Nil children are skipped.
func MapChildren(e Expression, f func(Expression) Expression) Expression {
	opt := func(c Expression) Expression {
		if c == nil {
			return nil
		}
		return f(c)
	}
	list := func(cs []Expression) []Expression {
		if cs == nil {
			return nil
		}
		out := make([]Expression, len(cs))
		for i, c := range cs {
			out[i] = opt(c)
		}
		return out
	}
	sub := func(s *Select) *Select {
		if s == nil {
			return nil
		}
		r, ok := f(s).(*Select)
		if !ok {
			return s
		}
		return r
	}

	switch e := e.(type) {
	case *Select:
		c := *e
		c.Projection = list(e.Projection)
		c.Tables = list(e.Tables)
		c.Predicate = opt(e.Predicate)
		if e.Orderings != nil {
			c.Orderings = make([]Ordering, len(e.Orderings))
			for i, o := range e.Orderings {
				c.Orderings[i] = Ordering{Expr: opt(o.Expr), Descending: o.Descending}
			}
		}
		c.Limit = opt(e.Limit)
		c.Offset = opt(e.Offset)
		return &c
	case *Alias:
		return &Alias{Expr: opt(e.Expr), Alias: e.Alias}
	case *CrossJoin:
		return &CrossJoin{Table: opt(e.Table)}
	case *CrossJoinLateral:
		return &CrossJoinLateral{Table: opt(e.Table)}
	case *InnerJoin:
		return &InnerJoin{Table: opt(e.Table), On: opt(e.On)}
	case *LeftJoin:
		return &LeftJoin{Table: opt(e.Table), On: opt(e.On)}
	case *Binary:
		return &Binary{Op: e.Op, Left: opt(e.Left), Right: opt(e.Right)}
	case *Not:
		return &Not{Operand: opt(e.Operand)}
	case *IsNull:
		return &IsNull{Operand: opt(e.Operand), Negated: e.Negated}
	case *In:
		return &In{Item: opt(e.Item), Values: list(e.Values), Parameter: e.Parameter, Subquery: sub(e.Subquery), Negated: e.Negated}
	case *Like:
		return &Like{Match: opt(e.Match), Pattern: opt(e.Pattern), Escape: opt(e.Escape)}
	case *Exists:
		return &Exists{Subquery: sub(e.Subquery), Negated: e.Negated}
	case *Case:
		c := &Case{Operand: opt(e.Operand), Else: opt(e.Else)}
		for _, w := range e.Whens {
			c.Whens = append(c.Whens, When{Test: opt(w.Test), Result: opt(w.Result)})
		}
		return c
	case *Coalesce:
		return &Coalesce{Left: opt(e.Left), Right: opt(e.Right)}
	case *Function:
		c := *e
		c.Args = list(e.Args)
		return &c
	case *Cast:
		return &Cast{Operand: opt(e.Operand), StoreType: e.StoreType, Type: e.Type}
	case *Aggregate:
		return &Aggregate{Func: e.Func, Operand: opt(e.Operand), Distinct: e.Distinct, Type: e.Type}
	case *StringCompare:
		return &StringCompare{Op: e.Op, Left: opt(e.Left), Right: opt(e.Right)}
	}
	// Leaves: Table, Column, Constant, Parameter.
	return e
}

// Rewrite applies f bottom-up to every node of e except the insides of
// nested Select statements.
func Rewrite(e Expression, f func(Expression) Expression) Expression {
	if e == nil {
		return nil
	}
	if _, ok := e.(*Select); ok {
		return f(e)
	}
	return f(MapChildren(e, func(c Expression) Expression { return Rewrite(c, f) }))
}

// True and False are boolean constants.
func True() *Constant  { return &Constant{Value: true, Type: model.TypeBool} }
func False() *Constant { return &Constant{Value: false, Type: model.TypeBool} }

// BoolValue returns the value of a boolean constant.
func BoolValue(e Expression) (value, ok bool) {
	c, isConst := e.(*Constant)
	if !isConst {
		return false, false
	}
	value, ok = c.Value.(bool)
	return value, ok
}

// IsNullConstant reports whether e is the NULL literal.
func IsNullConstant(e Expression) bool {
	c, ok := e.(*Constant)
	return ok && c.Value == nil
}

func AndAll(operands ...Expression) Expression {
	return fold(AndAlso, operands)
}

func OrAll(operands ...Expression) Expression {
	return fold(OrElse, operands)
}

func fold(op Operator, operands []Expression) Expression {
	var result Expression
	for _, o := range operands {
		if result == nil {
			result = o
			continue
		}
		result = &Binary{Op: op, Left: result, Right: o}
	}
	return result
}

// Invert returns the comparison operator that is true exactly when op is false.
func (op Operator) Invert() (Operator, bool) {
	switch op {
	case Equal:
		return NotEqual, true
	case NotEqual:
		return Equal, true
	case GreaterThan:
		return LessThanOrEqual, true
	case GreaterThanOrEqual:
		return LessThan, true
	case LessThan:
		return GreaterThanOrEqual, true
	case LessThanOrEqual:
		return GreaterThan, true
	}
	return op, false
}
