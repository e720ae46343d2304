package querysql

import (
	"github.com/pgschema/relmig/internal/query"
	"github.com/pgschema/relmig/model"
)

// prepareSelect runs the predicate pipeline over every clause of sel and
// places scalar/predicate boundary conversions. Nested selects are prepared
// the same way.
func prepareSelect(sel *query.Select, params map[string]any) *query.Select {
	if sel == nil {
		return nil
	}
	p := preparer{params: params}
	out := *sel
	out.Projection = p.scalars(sel.Projection)
	if sel.Tables != nil {
		out.Tables = make([]query.Expression, len(sel.Tables))
		for i, t := range sel.Tables {
			out.Tables[i] = p.source(t)
		}
	}
	out.Predicate = p.predicate(sel.Predicate)
	if sel.Orderings != nil {
		out.Orderings = make([]query.Ordering, len(sel.Orderings))
		for i, o := range sel.Orderings {
			out.Orderings[i] = query.Ordering{Expr: p.scalar(o.Expr), Descending: o.Descending}
		}
	}
	out.Limit = p.scalar(sel.Limit)
	out.Offset = p.scalar(sel.Offset)
	return &out
}

type preparer struct {
	params map[string]any
}

func (p preparer) predicate(e query.Expression) query.Expression {
	if e == nil {
		return nil
	}
	return p.toPredicate(optimizePredicate(e, p.params))
}

func (p preparer) scalar(e query.Expression) query.Expression {
	if e == nil {
		return nil
	}
	return p.toScalar(optimizeScalar(e, p.params))
}

func (p preparer) scalars(es []query.Expression) []query.Expression {
	if es == nil {
		return nil
	}
	out := make([]query.Expression, len(es))
	for i, e := range es {
		out[i] = p.scalar(e)
	}
	return out
}

func (p preparer) source(e query.Expression) query.Expression {
	switch e := e.(type) {
	case *query.Select:
		return prepareSelect(e, p.params)
	case *query.CrossJoin:
		return &query.CrossJoin{Table: p.source(e.Table)}
	case *query.CrossJoinLateral:
		return &query.CrossJoinLateral{Table: p.source(e.Table)}
	case *query.InnerJoin:
		return &query.InnerJoin{Table: p.source(e.Table), On: p.predicate(e.On)}
	case *query.LeftJoin:
		return &query.LeftJoin{Table: p.source(e.Table), On: p.predicate(e.On)}
	}
	return e
}

// toPredicate converts e for a position that requires a search condition.
// Scalar booleans are compared with TRUE.
func (p preparer) toPredicate(e query.Expression) query.Expression {
	switch e := e.(type) {
	case *query.Binary:
		if e.Op.IsLogical() {
			return &query.Binary{Op: e.Op, Left: p.toPredicate(e.Left), Right: p.toPredicate(e.Right)}
		}
		if e.Op.IsComparison() {
			return &query.Binary{Op: e.Op, Left: p.toScalar(e.Left), Right: p.toScalar(e.Right)}
		}
	case *query.Not:
		return &query.Not{Operand: p.toPredicate(e.Operand)}
	case *query.IsNull, *query.Like, *query.StringCompare:
		return query.MapChildren(e, p.toScalar)
	case *query.In:
		return &query.In{
			Item:      p.toScalar(e.Item),
			Values:    p.scalarList(e.Values),
			Parameter: e.Parameter,
			Subquery:  prepareSelect(e.Subquery, p.params),
			Negated:   e.Negated,
		}
	case *query.Exists:
		return &query.Exists{Subquery: prepareSelect(e.Subquery, p.params), Negated: e.Negated}
	case *query.Constant:
		if v, ok := e.Value.(bool); ok {
			left := 0
			if v {
				left = 1
			}
			return &query.Binary{
				Op:    query.Equal,
				Left:  &query.Constant{Value: left, Type: model.TypeInt32},
				Right: &query.Constant{Value: 1, Type: model.TypeInt32},
			}
		}
	}
	return &query.Binary{Op: query.Equal, Left: p.toScalar(e), Right: query.True()}
}

// toScalar converts e for a value position. Search conditions become
// CASE WHEN <condition> THEN TRUE ELSE FALSE END.
func (p preparer) toScalar(e query.Expression) query.Expression {
	if query.IsPredicate(e) {
		return &query.Case{
			Whens: []query.When{{Test: p.toPredicate(e), Result: query.True()}},
			Else:  query.False(),
		}
	}
	switch e := e.(type) {
	case *query.Select:
		return prepareSelect(e, p.params)
	case *query.Case:
		c := &query.Case{}
		if e.Operand != nil {
			c.Operand = p.toScalar(e.Operand)
		}
		for _, w := range e.Whens {
			var test query.Expression
			if e.Operand == nil {
				test = p.toPredicate(w.Test)
			} else {
				test = p.toScalar(w.Test)
			}
			c.Whens = append(c.Whens, query.When{Test: test, Result: p.toScalar(w.Result)})
		}
		if e.Else != nil {
			c.Else = p.toScalar(e.Else)
		}
		return c
	}
	return query.MapChildren(e, p.toScalar)
}

func (p preparer) scalarList(es []query.Expression) []query.Expression {
	if es == nil {
		return nil
	}
	out := make([]query.Expression, len(es))
	for i, e := range es {
		out[i] = p.toScalar(e)
	}
	return out
}
