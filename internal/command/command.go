package command

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/pgschema/relmig/internal/logger"
)

// Execer runs statements. *sql.DB, *sql.Conn and *sql.Tx satisfy it.
type Execer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

// Querier runs queries. *sql.DB, *sql.Conn and *sql.Tx satisfy it.
type Querier interface {
	Execer
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// Command is SQL text with its bound parameters.
type Command struct {
	Text       string
	Parameters []Parameter
	named      bool
}

// Args converts the parameters into database/sql arguments.
func (c *Command) Args() []any {
	args := make([]any, 0, len(c.Parameters))
	for _, p := range c.Parameters {
		if c.named {
			args = append(args, sql.Named(p.Name, p.Value))
		} else {
			args = append(args, p.Value)
		}
	}
	return args
}

// ExecuteNonQuery runs the command and returns the number of affected rows.
func (c *Command) ExecuteNonQuery(ctx context.Context, e Execer) (int64, error) {
	result, err := execWithLogging(ctx, e, c.Text, c.Args())
	if err != nil {
		return 0, err
	}
	n, err := result.RowsAffected()
	if err != nil {
		// Not every driver reports affected rows for DDL.
		return 0, nil
	}
	return n, nil
}

// ExecuteScalar runs the command and returns the first column of the first
// row, or nil when there are no rows.
func (c *Command) ExecuteScalar(ctx context.Context, q Querier) (any, error) {
	rows, err := c.ExecuteReader(ctx, q)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	if !rows.Next() {
		return nil, rows.Err()
	}
	columns, err := rows.Columns()
	if err != nil {
		return nil, err
	}
	values := make([]any, len(columns))
	ptrs := make([]any, len(columns))
	for i := range values {
		ptrs[i] = &values[i]
	}
	if err := rows.Scan(ptrs...); err != nil {
		return nil, fmt.Errorf("failed to scan scalar: %w", err)
	}
	if len(values) == 0 {
		return nil, nil
	}
	return values[0], rows.Err()
}

// ExecuteReader runs the command and returns its rows. The caller closes them.
func (c *Command) ExecuteReader(ctx context.Context, q Querier) (*sql.Rows, error) {
	log := logger.Get()
	if logger.IsDebug() {
		log.Debug("Executing SQL query", "sql", c.Text, "parameters", len(c.Parameters))
	}
	rows, err := q.QueryContext(ctx, c.Text, c.Args()...)
	if err != nil {
		if logger.IsDebug() {
			log.Debug("SQL query failed", "error", err)
		}
		return nil, fmt.Errorf("failed to execute query: %w", err)
	}
	return rows, nil
}

// WithValues returns a copy of c whose parameters take their values from
// values. Parameters without an entry keep their value.
func (c *Command) WithValues(values map[string]any) *Command {
	out := &Command{Text: c.Text, named: c.named, Parameters: make([]Parameter, len(c.Parameters))}
	for i, p := range c.Parameters {
		if v, ok := values[p.Name]; ok {
			p.Value = v
		}
		out.Parameters[i] = p
	}
	return out
}
