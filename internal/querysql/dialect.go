package querysql

import (
	"github.com/pgschema/relmig/internal/query"
	"github.com/pgschema/relmig/internal/sqlgen"
)

type pagingStyle int

const (
	// fetchPaging writes TOP(n) without an offset and OFFSET .. FETCH NEXT otherwise.
	fetchPaging pagingStyle = iota
	// limitPaging writes LIMIT n OFFSET m.
	limitPaging
)

type dialect struct {
	paging pagingStyle
	// unboundedLimit is written as the LIMIT when only an offset is given
	// and the dialect requires a LIMIT before OFFSET.
	unboundedLimit string
	// lateral is the keyword of a lateral cross join; empty when the
	// dialect has none.
	lateral string
	concat  func(left, right string) string
}

func infixConcat(op string) func(string, string) string {
	return func(left, right string) string { return left + op + right }
}

var dialects = map[sqlgen.Dialect]*dialect{
	sqlgen.SQLServer: {
		paging:  fetchPaging,
		lateral: "CROSS APPLY",
		concat:  infixConcat(" + "),
	},
	sqlgen.Postgres: {
		paging:  limitPaging,
		lateral: "CROSS JOIN LATERAL",
		concat:  infixConcat(" || "),
	},
	sqlgen.SQLite: {
		paging:         limitPaging,
		unboundedLimit: "-1",
		concat:         infixConcat(" || "),
	},
	sqlgen.MySQL: {
		paging:         limitPaging,
		unboundedLimit: "18446744073709551615",
		lateral:        "CROSS JOIN LATERAL",
		concat:         func(left, right string) string { return "CONCAT(" + left + ", " + right + ")" },
	},
}

// binaryOperators maps operators to their SQL text. Concat is dialect-specific.
var binaryOperators = map[query.Operator]string{
	query.Equal:              " = ",
	query.NotEqual:           " <> ",
	query.GreaterThan:        " > ",
	query.GreaterThanOrEqual: " >= ",
	query.LessThan:           " < ",
	query.LessThanOrEqual:    " <= ",
	query.AndAlso:            " AND ",
	query.OrElse:             " OR ",
	query.Add:                " + ",
	query.Subtract:           " - ",
	query.Multiply:           " * ",
	query.Divide:             " / ",
	query.Modulo:             " % ",
	query.And:                " & ",
	query.Or:                 " | ",
}
