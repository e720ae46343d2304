// Package querysql lowers relational expression trees to SQL commands. Each
// call rewrites the tree through a fixed pipeline (null comparisons, null
// semantics expansion, predicate reduction, negation push-down, boolean
// comparison reduction, search condition translation) and then renders it
// with recursive functions that return SQL fragments.
package querysql

import (
	"fmt"

	"github.com/pgschema/relmig/internal/command"
	"github.com/pgschema/relmig/internal/query"
	"github.com/pgschema/relmig/internal/sqlgen"
)

// UnhandledNodeError reports an expression node that cannot be lowered to SQL.
type UnhandledNodeError struct {
	Kind   string
	Reason string
}

func (e *UnhandledNodeError) Error() string {
	if e.Reason != "" {
		return fmt.Sprintf("unhandled expression node %s: %s", e.Kind, e.Reason)
	}
	return fmt.Sprintf("unhandled expression node %s", e.Kind)
}

func unhandled(e query.Expression, reason string) error {
	return &UnhandledNodeError{Kind: query.Kind(e), Reason: reason}
}

// Generator produces SQL for one dialect. It holds no per-call state and is
// safe for concurrent use.
type Generator struct {
	helper  sqlgen.Helper
	dialect *dialect
}

// New returns a generator using the given helper.
func New(helper sqlgen.Helper) (*Generator, error) {
	d, ok := dialects[helper.Dialect()]
	if !ok {
		return nil, fmt.Errorf("unsupported dialect %q", helper.Dialect())
	}
	return &Generator{helper: helper, dialect: d}, nil
}

// ForDialect returns a generator with the default helper of d.
func ForDialect(d sqlgen.Dialect) (*Generator, error) {
	helper, err := sqlgen.New(d)
	if err != nil {
		return nil, err
	}
	return New(helper)
}

// Compiled is a generated command and whether it may be reused for other
// parameter values with the same nullness.
type Compiled struct {
	Command   *command.Command
	cacheable bool
}

// IsCacheable reports whether the SQL text depends only on the tree and the
// nullness of parameter values. Inlined parameter collections make it depend
// on the values themselves.
func (c *Compiled) IsCacheable() bool {
	return c.cacheable
}

// Compile generates the command for sel with the given parameter values.
func (g *Generator) Compile(sel *query.Select, params map[string]any) (*Compiled, error) {
	if sel == nil {
		return nil, fmt.Errorf("no select to generate")
	}
	ctx := &genContext{
		helper:    g.helper,
		dialect:   g.dialect,
		params:    params,
		builder:   command.NewBuilder(g.helper),
		cacheable: true,
	}
	text, err := ctx.selectSQL(prepareSelect(sel, params))
	if err != nil {
		return nil, err
	}
	ctx.builder.Append(text)
	return &Compiled{Command: ctx.builder.Build(), cacheable: ctx.cacheable}, nil
}

// GenerateSQL generates the command for sel with the given parameter values.
func (g *Generator) GenerateSQL(sel *query.Select, params map[string]any) (*command.Command, error) {
	c, err := g.Compile(sel, params)
	if err != nil {
		return nil, err
	}
	return c.Command, nil
}
