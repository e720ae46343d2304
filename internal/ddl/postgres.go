package ddl

import (
	"fmt"
	"strings"

	pg_query "github.com/pganalyze/pg_query_go/v6"

	"github.com/pgschema/relmig/internal/operations"
)

type postgresDialect struct{ ansi }

// columnDefinition writes name, type, nullability, identity, generation
// and default in the order PostgreSQL documents for column constraints.
func (postgresDialect) columnDefinition(g *generation, c column) error {
	storeType, err := g.storeType(c)
	if err != nil {
		return err
	}
	g.Append(g.ident(c.name)).Append(" ").Append(storeType)
	g.Append(nullability(c.def))
	switch {
	case c.def.ComputedSQL != "":
		g.Append(" GENERATED ALWAYS AS (").Append(c.def.ComputedSQL).Append(") STORED")
	case c.def.Identity:
		g.Append(" GENERATED BY DEFAULT AS IDENTITY")
	default:
		g.Append(defaultClause(g, c.def))
	}
	return nil
}

func (postgresDialect) ensureSchema(g *generation, op *operations.EnsureSchema) error {
	if strings.EqualFold(op.Name, "public") {
		return nil
	}
	g.Append("CREATE SCHEMA IF NOT EXISTS ").Append(g.ident(op.Name))
	return g.end()
}

func (d postgresDialect) createTable(g *generation, op *operations.CreateTable) error {
	return writeCreateTable(g, d, op, createTableOptions{})
}

func (postgresDialect) renameTable(g *generation, op *operations.RenameTable) error {
	g.Append("ALTER TABLE ").Append(g.table(op.Name, op.Schema)).
		Append(" RENAME TO ").Append(g.ident(op.NewName))
	return g.end()
}

func (postgresDialect) moveTable(g *generation, op *operations.MoveTable) error {
	g.Append("ALTER TABLE ").Append(g.table(op.Name, op.Schema)).
		Append(" SET SCHEMA ").Append(g.ident(postgresSchema(op.NewSchema)))
	return g.end()
}

func (d postgresDialect) addColumn(g *generation, op *operations.AddColumn) error {
	return writeAddColumn(g, d, op)
}

// alterColumn emits one statement per changed aspect of the column, all in
// a single command.
func (postgresDialect) alterColumn(g *generation, op *operations.AlterColumn) error {
	if op.ComputedSQL != op.OldColumn.ComputedSQL {
		return &NotSupportedError{Dialect: g.helper.Dialect(), Operation: "changing the expression of a generated column"}
	}
	c := column{name: op.Name, table: op.Table, schema: op.Schema, def: &op.ColumnDefinition}
	storeType, err := g.storeType(c)
	if err != nil {
		return err
	}

	alter := func() {
		g.Append("ALTER TABLE ").Append(g.table(op.Table, op.Schema)).
			Append(" ALTER COLUMN ").Append(g.ident(op.Name))
	}

	alter()
	g.Append(" TYPE ").Append(storeType)
	g.terminate()

	alter()
	if op.Nullable {
		g.Append(" DROP NOT NULL")
	} else {
		g.Append(" SET NOT NULL")
	}
	g.terminate()

	if op.ComputedSQL == "" && !op.Identity {
		alter()
		if clause := defaultClause(g, &op.ColumnDefinition); clause != "" {
			g.Append(" SET").Append(clause)
		} else {
			g.Append(" DROP DEFAULT")
		}
		g.terminate()
	}

	g.EndCommand(false)
	return nil
}

func (postgresDialect) dropIndex(g *generation, op *operations.DropIndex) error {
	g.Append("DROP INDEX ").Append(g.table(op.Name, op.Schema))
	return g.end()
}

func (postgresDialect) renameIndex(g *generation, op *operations.RenameIndex) error {
	g.Append("ALTER INDEX ").Append(g.table(op.Name, op.Schema)).
		Append(" RENAME TO ").Append(g.ident(op.NewName))
	return g.end()
}

func (postgresDialect) createSequence(g *generation, op *operations.CreateSequence) error {
	return writeCreateSequence(g, op)
}

func (postgresDialect) alterSequence(g *generation, op *operations.AlterSequence) error {
	return writeAlterSequence(g, op)
}

func (postgresDialect) restartSequence(g *generation, op *operations.RestartSequence) error {
	return writeRestartSequence(g, op)
}

func (postgresDialect) dropSequence(g *generation, op *operations.DropSequence) error {
	return writeDropSequence(g, op)
}

func (postgresDialect) renameSequence(g *generation, op *operations.RenameSequence) error {
	g.Append("ALTER SEQUENCE ").Append(g.table(op.Name, op.Schema)).
		Append(" RENAME TO ").Append(g.ident(op.NewName))
	return g.end()
}

func (postgresDialect) moveSequence(g *generation, op *operations.MoveSequence) error {
	g.Append("ALTER SEQUENCE ").Append(g.table(op.Name, op.Schema)).
		Append(" SET SCHEMA ").Append(g.ident(postgresSchema(op.NewSchema)))
	return g.end()
}

// rawSQL splits the script into statements so each one becomes its own
// command and errors point at the failing statement.
func (postgresDialect) rawSQL(g *generation, op *operations.RawSQL) error {
	statements, err := pg_query.SplitWithParser(op.SQL, true)
	if err != nil {
		return fmt.Errorf("failed to split SQL statements: %w", err)
	}
	for _, stmt := range statements {
		stmt = strings.TrimSpace(stmt)
		if stmt == "" {
			continue
		}
		if !strings.HasSuffix(stmt, ";") {
			stmt += ";"
		}
		g.AppendLines(stmt)
		g.EndCommand(op.SuppressTransaction)
	}
	return nil
}

func postgresSchema(schema string) string {
	if schema == "" {
		return "public"
	}
	return schema
}
