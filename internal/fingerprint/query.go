package fingerprint

import (
	"fmt"
	"strconv"

	"github.com/zeebo/xxh3"

	"github.com/pgschema/relmig/internal/query"
)

// QueryHash returns a structural hash of an expression tree. Parameter
// values are not part of the tree; two trees differing only in the values
// bound to their parameters hash equally.
func QueryHash(e query.Expression) uint64 {
	w := hashWriter{h: xxh3.New()}
	w.expr(e)
	return w.h.Sum64()
}

type hashWriter struct {
	h *xxh3.Hasher
}

func (w hashWriter) str(s string) {
	w.h.WriteString(strconv.Itoa(len(s)))
	w.h.WriteString(":")
	w.h.WriteString(s)
}

func (w hashWriter) flag(b bool) {
	if b {
		w.h.WriteString("1")
	} else {
		w.h.WriteString("0")
	}
}

func (w hashWriter) list(es []query.Expression) {
	w.str(strconv.Itoa(len(es)))
	for _, e := range es {
		w.expr(e)
	}
}

func (w hashWriter) expr(e query.Expression) {
	w.str(query.Kind(e))
	switch e := e.(type) {
	case nil:
	case *query.Select:
		w.sel(e)
	case *query.Table:
		w.str(e.Schema)
		w.str(e.Name)
		w.str(e.Alias)
	case *query.Column:
		w.str(e.Table)
		w.str(e.Name)
		w.str(string(e.Type))
		w.flag(e.Nullable)
	case *query.Alias:
		w.expr(e.Expr)
		w.str(e.Alias)
	case *query.CrossJoin:
		w.expr(e.Table)
	case *query.CrossJoinLateral:
		w.expr(e.Table)
	case *query.InnerJoin:
		w.expr(e.Table)
		w.expr(e.On)
	case *query.LeftJoin:
		w.expr(e.Table)
		w.expr(e.On)
	case *query.Constant:
		w.str(fmt.Sprintf("%T:%v", e.Value, e.Value))
		w.str(string(e.Type))
	case *query.Parameter:
		w.str(e.Name)
		w.str(string(e.Type))
	case *query.Binary:
		w.str(e.Op.String())
		w.expr(e.Left)
		w.expr(e.Right)
	case *query.Not:
		w.expr(e.Operand)
	case *query.IsNull:
		w.expr(e.Operand)
		w.flag(e.Negated)
	case *query.In:
		w.expr(e.Item)
		w.list(e.Values)
		if e.Parameter != nil {
			w.expr(e.Parameter)
		} else {
			w.expr(nil)
		}
		w.subquery(e.Subquery)
		w.flag(e.Negated)
	case *query.Like:
		w.expr(e.Match)
		w.expr(e.Pattern)
		w.expr(e.Escape)
	case *query.Exists:
		w.subquery(e.Subquery)
		w.flag(e.Negated)
	case *query.Case:
		w.expr(e.Operand)
		w.str(strconv.Itoa(len(e.Whens)))
		for _, when := range e.Whens {
			w.expr(when.Test)
			w.expr(when.Result)
		}
		w.expr(e.Else)
	case *query.Coalesce:
		w.expr(e.Left)
		w.expr(e.Right)
	case *query.Function:
		w.str(e.Schema)
		w.str(e.Name)
		w.list(e.Args)
		w.str(string(e.Type))
		w.flag(e.Nullable)
		w.flag(e.Niladic)
	case *query.Cast:
		w.expr(e.Operand)
		w.str(e.StoreType)
		w.str(string(e.Type))
	case *query.Aggregate:
		w.str(e.Func.String())
		w.expr(e.Operand)
		w.flag(e.Distinct)
		w.str(string(e.Type))
	case *query.StringCompare:
		w.str(e.Op.String())
		w.expr(e.Left)
		w.expr(e.Right)
	}
}

// subquery writes s, treating a nil pointer like a missing expression.
func (w hashWriter) subquery(s *query.Select) {
	if s == nil {
		w.expr(nil)
		return
	}
	w.expr(s)
}

func (w hashWriter) sel(s *query.Select) {
	w.list(s.Projection)
	w.list(s.Tables)
	w.expr(s.Predicate)
	w.str(strconv.Itoa(len(s.Orderings)))
	for _, o := range s.Orderings {
		w.expr(o.Expr)
		w.flag(o.Descending)
	}
	w.expr(s.Limit)
	w.expr(s.Offset)
	w.flag(s.Distinct)
	w.str(s.Alias)
}
