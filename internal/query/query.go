// Package query defines the relational expression tree that the query SQL
// generator lowers to SQL. Nodes are immutable: rewrites build new trees.
package query

import (
	"github.com/pgschema/relmig/model"
)

// Expression is a node of a relational expression tree. The set of
// implementations is closed: only types in this package satisfy it.
type Expression interface {
	isExpression()
}

// Operator is a binary operator.
type Operator int

const (
	Equal Operator = iota
	NotEqual
	GreaterThan
	GreaterThanOrEqual
	LessThan
	LessThanOrEqual
	AndAlso
	OrElse
	Add
	Subtract
	Multiply
	Divide
	Modulo
	And
	Or
	Concat
)

var operatorNames = [...]string{
	Equal:              "Equal",
	NotEqual:           "NotEqual",
	GreaterThan:        "GreaterThan",
	GreaterThanOrEqual: "GreaterThanOrEqual",
	LessThan:           "LessThan",
	LessThanOrEqual:    "LessThanOrEqual",
	AndAlso:            "AndAlso",
	OrElse:             "OrElse",
	Add:                "Add",
	Subtract:           "Subtract",
	Multiply:           "Multiply",
	Divide:             "Divide",
	Modulo:             "Modulo",
	And:                "And",
	Or:                 "Or",
	Concat:             "Concat",
}

func (op Operator) String() string {
	if int(op) < len(operatorNames) {
		return operatorNames[op]
	}
	return "Operator(?)"
}

// IsComparison reports whether op compares its operands.
func (op Operator) IsComparison() bool {
	return op >= Equal && op <= LessThanOrEqual
}

// IsLogical reports whether op is AND or OR over predicates.
func (op Operator) IsLogical() bool {
	return op == AndAlso || op == OrElse
}

// AggregateFunc is an aggregate function.
type AggregateFunc int

const (
	Count AggregateFunc = iota
	Sum
	Min
	Max
	Avg
)

var aggregateNames = [...]string{Count: "COUNT", Sum: "SUM", Min: "MIN", Max: "MAX", Avg: "AVG"}

func (f AggregateFunc) String() string {
	if int(f) < len(aggregateNames) {
		return aggregateNames[f]
	}
	return "AGGREGATE(?)"
}

// Select is a SELECT statement. It is also a source (with an Alias) and a
// scalar subquery.
type Select struct {
	Projection []Expression
	Tables     []Expression
	Predicate  Expression
	Orderings  []Ordering
	Limit      Expression
	Offset     Expression
	Distinct   bool
	Alias      string
}

// Ordering is one ORDER BY term.
type Ordering struct {
	Expr       Expression
	Descending bool
}

type Table struct {
	Name   string
	Schema string
	Alias  string
}

// Column references a column of the source with the given alias.
type Column struct {
	Name     string
	Table    string
	Type     model.ClrType
	Nullable bool
}

// Alias names a projected expression.
type Alias struct {
	Expr  Expression
	Alias string
}

type CrossJoin struct {
	Table Expression
}

// CrossJoinLateral joins a source that may reference earlier sources.
type CrossJoinLateral struct {
	Table Expression
}

type InnerJoin struct {
	Table Expression
	On    Expression
}

type LeftJoin struct {
	Table Expression
	On    Expression
}

// Constant is a literal value. A nil Value is NULL.
type Constant struct {
	Value any
	Type  model.ClrType
}

// Parameter is bound at generation time from the parameter values. A
// parameter whose value is a slice is a collection and may only appear in In.
type Parameter struct {
	Name string
	Type model.ClrType
}

type Binary struct {
	Op    Operator
	Left  Expression
	Right Expression
}

type Not struct {
	Operand Expression
}

type IsNull struct {
	Operand Expression
	Negated bool
}

// In tests Item against a value list, a collection parameter or a subquery.
// Exactly one of Values, Parameter and Subquery is set.
type In struct {
	Item      Expression
	Values    []Expression
	Parameter *Parameter
	Subquery  *Select
	Negated   bool
}

type Like struct {
	Match   Expression
	Pattern Expression
	Escape  Expression
}

type Exists struct {
	Subquery *Select
	Negated  bool
}

// Case is a searched CASE when Operand is nil, a simple CASE otherwise.
type Case struct {
	Operand Expression
	Whens   []When
	Else    Expression
}

type When struct {
	Test   Expression
	Result Expression
}

type Coalesce struct {
	Left  Expression
	Right Expression
}

// Function calls a SQL function. Niladic functions are written without
// parentheses.
type Function struct {
	Name     string
	Schema   string
	Args     []Expression
	Type     model.ClrType
	Nullable bool
	Niladic  bool
}

type Cast struct {
	Operand   Expression
	StoreType string
	Type      model.ClrType
}

// Aggregate applies an aggregate function. A nil Operand with Count is COUNT(*).
type Aggregate struct {
	Func     AggregateFunc
	Operand  Expression
	Distinct bool
	Type     model.ClrType
}

// StringCompare compares two strings with a comparison operator.
type StringCompare struct {
	Op    Operator
	Left  Expression
	Right Expression
}

func (*Select) isExpression()           {}
func (*Table) isExpression()            {}
func (*Column) isExpression()           {}
func (*Alias) isExpression()            {}
func (*CrossJoin) isExpression()        {}
func (*CrossJoinLateral) isExpression() {}
func (*InnerJoin) isExpression()        {}
func (*LeftJoin) isExpression()         {}
func (*Constant) isExpression()         {}
func (*Parameter) isExpression()        {}
func (*Binary) isExpression()           {}
func (*Not) isExpression()              {}
func (*IsNull) isExpression()           {}
func (*In) isExpression()               {}
func (*Like) isExpression()             {}
func (*Exists) isExpression()           {}
func (*Case) isExpression()             {}
func (*Coalesce) isExpression()         {}
func (*Function) isExpression()         {}
func (*Cast) isExpression()             {}
func (*Aggregate) isExpression()        {}
func (*StringCompare) isExpression()    {}
