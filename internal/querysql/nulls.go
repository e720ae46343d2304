package querysql

import (
	"reflect"

	"github.com/pgschema/relmig/internal/query"
)

// nullable reports whether e can evaluate to NULL given the parameter values.
func nullable(e query.Expression, params map[string]any) bool {
	switch e := e.(type) {
	case *query.Column:
		return e.Nullable
	case *query.Constant:
		return e.Value == nil
	case *query.Parameter:
		return params[e.Name] == nil
	case *query.Alias:
		return nullable(e.Expr, params)
	case *query.Binary:
		return nullable(e.Left, params) || nullable(e.Right, params)
	case *query.StringCompare:
		return nullable(e.Left, params) || nullable(e.Right, params)
	case *query.Not:
		return nullable(e.Operand, params)
	case *query.Like:
		return nullable(e.Match, params) || nullable(e.Pattern, params)
	case *query.In:
		return nullable(e.Item, params)
	case *query.Case:
		if e.Else == nil || nullable(e.Else, params) {
			return true
		}
		for _, w := range e.Whens {
			if nullable(w.Result, params) {
				return true
			}
		}
		return false
	case *query.Coalesce:
		return nullable(e.Right, params)
	case *query.Function:
		return e.Nullable
	case *query.Cast:
		return nullable(e.Operand, params)
	case *query.Aggregate:
		return e.Func != query.Count
	case *query.Select:
		return true
	}
	// IsNull, Exists
	return false
}

// isNullValue reports whether e is the NULL literal or a parameter bound to nil.
func isNullValue(e query.Expression, params map[string]any) bool {
	switch e := e.(type) {
	case *query.Constant:
		return e.Value == nil
	case *query.Parameter:
		v, ok := params[e.Name]
		return ok && v == nil
	}
	return false
}

// transformNullComparisons turns comparisons with NULL into IS [NOT] NULL
// and folds comparisons between two NULLs to constants.
func transformNullComparisons(e query.Expression, params map[string]any) query.Expression {
	return query.Rewrite(e, func(e query.Expression) query.Expression {
		b, ok := e.(*query.Binary)
		if !ok || (b.Op != query.Equal && b.Op != query.NotEqual) {
			return e
		}
		leftNull, rightNull := isNullValue(b.Left, params), isNullValue(b.Right, params)
		switch {
		case leftNull && rightNull:
			if b.Op == query.Equal {
				return query.True()
			}
			return query.False()
		case leftNull:
			return &query.IsNull{Operand: b.Right, Negated: b.Op == query.NotEqual}
		case rightNull:
			return &query.IsNull{Operand: b.Left, Negated: b.Op == query.NotEqual}
		}
		return e
	})
}

type expansion int

const (
	// optimizedExpansion may yield NULL where the two-valued result is
	// false. That is only equivalent outside negation.
	optimizedExpansion expansion = iota
	fullExpansion
)

// nullsExpander rewrites equality so that two NULLs compare equal and NULL
// differs from every value, matching two-valued comparison semantics.
type nullsExpander struct {
	mode   expansion
	params map[string]any
	failed bool
}

// expandNulls tries the optimized expansion and falls back to the full one
// when a nullable equality appears under negation.
func expandNulls(e query.Expression, params map[string]any) query.Expression {
	optimized := &nullsExpander{mode: optimizedExpansion, params: params}
	if out := optimized.expand(e, false); !optimized.failed {
		return out
	}
	full := &nullsExpander{mode: fullExpansion, params: params}
	return full.expand(e, false)
}

func (x *nullsExpander) expand(e query.Expression, negated bool) query.Expression {
	switch e := e.(type) {
	case nil:
		return nil
	case *query.Select:
		// Subqueries are expanded when they are generated.
		return e
	case *query.Not:
		return &query.Not{Operand: x.expand(e.Operand, !negated)}
	case *query.Binary:
		left, right := x.expand(e.Left, negated), x.expand(e.Right, negated)
		switch e.Op {
		case query.Equal:
			return x.equal(left, right, negated)
		case query.NotEqual:
			return x.notEqual(left, right)
		}
		return &query.Binary{Op: e.Op, Left: left, Right: right}
	}
	return query.MapChildren(e, func(c query.Expression) query.Expression {
		return x.expand(c, negated)
	})
}

func (x *nullsExpander) equal(left, right query.Expression, negated bool) query.Expression {
	eq := &query.Binary{Op: query.Equal, Left: left, Right: right}
	leftNullable, rightNullable := nullable(left, x.params), nullable(right, x.params)
	if !leftNullable && !rightNullable {
		return eq
	}

	if x.mode == optimizedExpansion {
		if negated {
			x.failed = true
			return eq
		}
		if leftNullable && rightNullable {
			return query.OrAll(eq, bothNull(left, right))
		}
		return eq
	}

	if leftNullable && rightNullable {
		return query.OrAll(
			query.AndAll(eq, notNull(left), notNull(right)),
			bothNull(left, right),
		)
	}
	if leftNullable {
		return query.AndAll(eq, notNull(left))
	}
	return query.AndAll(eq, notNull(right))
}

// notEqual is exact in both modes: NULL differs from any value and two
// NULLs are not different.
func (x *nullsExpander) notEqual(left, right query.Expression) query.Expression {
	ne := &query.Binary{Op: query.NotEqual, Left: left, Right: right}
	leftNullable, rightNullable := nullable(left, x.params), nullable(right, x.params)
	switch {
	case leftNullable && rightNullable:
		return query.AndAll(
			query.OrAll(ne, isNull(left), isNull(right)),
			query.OrAll(notNull(left), notNull(right)),
		)
	case leftNullable:
		return query.OrAll(ne, isNull(left))
	case rightNullable:
		return query.OrAll(ne, isNull(right))
	}
	return ne
}

func isNull(e query.Expression) query.Expression {
	return &query.IsNull{Operand: e}
}

func notNull(e query.Expression) query.Expression {
	return &query.IsNull{Operand: e, Negated: true}
}

func bothNull(left, right query.Expression) query.Expression {
	return query.AndAll(isNull(left), isNull(right))
}

// reducePredicate folds boolean constants out of AND, OR and NOT, and
// compares constants.
func reducePredicate(e query.Expression) query.Expression {
	return query.Rewrite(e, func(e query.Expression) query.Expression {
		switch e := e.(type) {
		case *query.Binary:
			l, lok := query.BoolValue(e.Left)
			r, rok := query.BoolValue(e.Right)
			switch e.Op {
			case query.AndAlso:
				switch {
				case (lok && !l) || (rok && !r):
					return query.False()
				case lok:
					return e.Right
				case rok:
					return e.Left
				}
			case query.OrElse:
				switch {
				case (lok && l) || (rok && r):
					return query.True()
				case lok:
					return e.Right
				case rok:
					return e.Left
				}
			case query.Equal, query.NotEqual:
				lc, lconst := e.Left.(*query.Constant)
				rc, rconst := e.Right.(*query.Constant)
				if lconst && rconst && lc.Value != nil && rc.Value != nil {
					same := reflect.DeepEqual(lc.Value, rc.Value)
					if e.Op == query.Equal {
						return boolConstant(same)
					}
					return boolConstant(!same)
				}
			}
		case *query.Not:
			if v, ok := query.BoolValue(e.Operand); ok {
				return boolConstant(!v)
			}
		}
		return e
	})
}

func boolConstant(v bool) *query.Constant {
	if v {
		return query.True()
	}
	return query.False()
}

// optimizeNegations pushes NOT down: De Morgan over AND and OR, inverted
// comparisons and negated IS NULL, IN and EXISTS.
func optimizeNegations(e query.Expression) query.Expression {
	return query.Rewrite(e, func(e query.Expression) query.Expression {
		if n, ok := e.(*query.Not); ok {
			return negate(n.Operand)
		}
		return e
	})
}

func negate(e query.Expression) query.Expression {
	switch e := e.(type) {
	case *query.Not:
		return e.Operand
	case *query.Binary:
		switch e.Op {
		case query.AndAlso:
			return &query.Binary{Op: query.OrElse, Left: negate(e.Left), Right: negate(e.Right)}
		case query.OrElse:
			return &query.Binary{Op: query.AndAlso, Left: negate(e.Left), Right: negate(e.Right)}
		}
		if inverted, ok := e.Op.Invert(); ok {
			return &query.Binary{Op: inverted, Left: e.Left, Right: e.Right}
		}
	case *query.StringCompare:
		if inverted, ok := e.Op.Invert(); ok {
			return &query.StringCompare{Op: inverted, Left: e.Left, Right: e.Right}
		}
	case *query.IsNull:
		return &query.IsNull{Operand: e.Operand, Negated: !e.Negated}
	case *query.In:
		c := *e
		c.Negated = !e.Negated
		return &c
	case *query.Exists:
		return &query.Exists{Subquery: e.Subquery, Negated: !e.Negated}
	case *query.Constant:
		if v, ok := e.Value.(bool); ok {
			return boolConstant(!v)
		}
	}
	return &query.Not{Operand: e}
}

// reduceBooleanComparisons drops comparisons of a boolean against TRUE or
// FALSE in favor of the boolean itself or its negation.
func reduceBooleanComparisons(e query.Expression) query.Expression {
	return query.Rewrite(e, func(e query.Expression) query.Expression {
		b, ok := e.(*query.Binary)
		if !ok || (b.Op != query.Equal && b.Op != query.NotEqual) {
			return e
		}
		operand, value, ok := booleanComparison(b)
		if !ok {
			return e
		}
		if value == (b.Op == query.Equal) {
			return operand
		}
		return negate(operand)
	})
}

func booleanComparison(b *query.Binary) (operand query.Expression, value, ok bool) {
	if v, isBool := query.BoolValue(b.Right); isBool {
		if _, leftConst := b.Left.(*query.Constant); !leftConst {
			return b.Left, v, true
		}
	}
	if v, isBool := query.BoolValue(b.Left); isBool {
		if _, rightConst := b.Right.(*query.Constant); !rightConst {
			return b.Right, v, true
		}
	}
	return nil, false, false
}

// optimizePredicate runs the rewrite pipeline over a search condition.
func optimizePredicate(e query.Expression, params map[string]any) query.Expression {
	if e == nil {
		return nil
	}
	e = transformNullComparisons(e, params)
	e = expandNulls(e, params)
	e = reducePredicate(e)
	e = optimizeNegations(e)
	e = reduceBooleanComparisons(e)
	return e
}

// optimizeScalar runs the pipeline over a value position, where the result
// must be exactly TRUE or FALSE, so only the full expansion is valid.
func optimizeScalar(e query.Expression, params map[string]any) query.Expression {
	if e == nil {
		return nil
	}
	e = transformNullComparisons(e, params)
	full := &nullsExpander{mode: fullExpansion, params: params}
	e = full.expand(e, false)
	e = reducePredicate(e)
	e = optimizeNegations(e)
	e = reduceBooleanComparisons(e)
	return e
}
