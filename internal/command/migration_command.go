package command

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/pgschema/relmig/internal/logger"
	"github.com/pgschema/relmig/internal/sqlgen"
)

// MigrationCommand is one DDL command produced for a migration.
type MigrationCommand struct {
	CommandText string
	// TransactionSuppressed marks statements that must run outside a transaction.
	TransactionSuppressed bool
}

// Execute runs the command without parameters.
func (c MigrationCommand) Execute(ctx context.Context, e Execer) error {
	_, err := execWithLogging(ctx, e, c.CommandText, nil)
	return err
}

// ListBuilder accumulates migration commands. Text is appended to the
// current command until EndCommand closes it.
type ListBuilder struct {
	helper   sqlgen.Helper
	current  *Builder
	commands []MigrationCommand
}

// NewListBuilder returns an empty command list builder.
func NewListBuilder(helper sqlgen.Helper) *ListBuilder {
	return &ListBuilder{helper: helper, current: NewBuilder(helper)}
}

func (l *ListBuilder) Append(s string) *ListBuilder {
	l.current.Append(s)
	return l
}

func (l *ListBuilder) AppendLine(s string) *ListBuilder {
	l.current.AppendLine(s)
	return l
}

func (l *ListBuilder) AppendLines(s string) *ListBuilder {
	l.current.AppendLines(s)
	return l
}

func (l *ListBuilder) IncrementIndent() *ListBuilder {
	l.current.IncrementIndent()
	return l
}

func (l *ListBuilder) DecrementIndent() *ListBuilder {
	l.current.DecrementIndent()
	return l
}

// Indent increments the indent and returns a func restoring it.
func (l *ListBuilder) Indent() func() {
	return l.current.Indent()
}

// EndCommand closes the current command. Empty commands are discarded.
func (l *ListBuilder) EndCommand(suppressTransaction bool) *ListBuilder {
	if l.current.Len() != 0 {
		l.commands = append(l.commands, MigrationCommand{
			CommandText:           l.current.String(),
			TransactionSuppressed: suppressTransaction,
		})
	}
	l.current = NewBuilder(l.helper)
	return l
}

// GetCommandList closes any open command and returns the list.
func (l *ListBuilder) GetCommandList() []MigrationCommand {
	l.EndCommand(false)
	return l.commands
}

func execWithLogging(ctx context.Context, e Execer, text string, args []any) (sql.Result, error) {
	isDebug := logger.IsDebug()
	if isDebug {
		logger.Get().Debug("Executing SQL", "sql", text)
	}

	result, err := e.ExecContext(ctx, text, args...)

	if isDebug {
		if err != nil {
			logger.Get().Debug("SQL execution failed", "error", err)
		} else {
			logger.Get().Debug("SQL execution succeeded")
		}
	}
	if err != nil {
		return nil, fmt.Errorf("failed to execute SQL: %w", err)
	}
	return result, nil
}
