package ddl

import (
	"regexp"
	"strings"

	"github.com/pgschema/relmig/internal/operations"
	"github.com/pgschema/relmig/model"
)

type sqlServerDialect struct{ ansi }

func (sqlServerDialect) columnDefinition(g *generation, c column) error {
	g.Append(g.ident(c.name))
	if c.def.ComputedSQL != "" {
		g.Append(" AS (").Append(c.def.ComputedSQL).Append(")")
		return nil
	}
	storeType, err := g.storeType(c)
	if err != nil {
		return err
	}
	g.Append(" ").Append(storeType)
	g.Append(nullability(c.def))
	if c.def.Identity {
		g.Append(" IDENTITY")
	}
	g.Append(defaultClause(g, c.def))
	return nil
}

func (sqlServerDialect) ensureSchema(g *generation, op *operations.EnsureSchema) error {
	if strings.EqualFold(op.Name, "dbo") {
		return nil
	}
	create := "CREATE SCHEMA " + g.ident(op.Name) + ";"
	g.Append("IF SCHEMA_ID(").Append(g.literal(op.Name)).
		Append(") IS NULL EXEC(").Append(g.literal(create)).Append(")")
	return g.end()
}

func (d sqlServerDialect) createTable(g *generation, op *operations.CreateTable) error {
	return writeCreateTable(g, d, op, createTableOptions{onDelete: sqlServerOnDelete})
}

// SQL Server has no RESTRICT; NO ACTION behaves the same for immediate checks.
func sqlServerOnDelete(action model.ReferentialAction) string {
	if action == model.Restrict {
		return ""
	}
	return onDeleteClause(action)
}

func (sqlServerDialect) renameTable(g *generation, op *operations.RenameTable) error {
	return spRename(g, g.table(op.Name, op.Schema), op.NewName, "")
}

func (sqlServerDialect) moveTable(g *generation, op *operations.MoveTable) error {
	g.Append("ALTER SCHEMA ").Append(g.ident(sqlServerSchema(op.NewSchema))).
		Append(" TRANSFER ").Append(g.table(op.Name, sqlServerSchema(op.Schema)))
	return g.end()
}

func (d sqlServerDialect) addColumn(g *generation, op *operations.AddColumn) error {
	return writeAddColumn(g, d, op)
}

// alterColumn drops the column's default constraint first because ALTER
// COLUMN fails while one is bound, then re-adds the new default.
func (d sqlServerDialect) alterColumn(g *generation, op *operations.AlterColumn) error {
	if op.ComputedSQL != "" || op.OldColumn.ComputedSQL != "" {
		return &NotSupportedError{Dialect: g.helper.Dialect(), Operation: "altering a computed column"}
	}
	if op.Identity != op.OldColumn.Identity {
		return &NotSupportedError{Dialect: g.helper.Dialect(), Operation: "changing the identity of a column"}
	}

	dropDefaultConstraint(g, op.Table, op.Schema, op.Name)

	def := op.ColumnDefinition
	def.Identity = false
	def.DefaultValue, def.DefaultSQL = nil, ""
	g.Append("ALTER TABLE ").Append(g.table(op.Table, op.Schema)).Append(" ALTER COLUMN ")
	if err := d.columnDefinition(g, column{name: op.Name, table: op.Table, schema: op.Schema, def: &def}); err != nil {
		return err
	}
	g.terminate()

	if clause := defaultClause(g, &op.ColumnDefinition); clause != "" {
		g.Append("ALTER TABLE ").Append(g.table(op.Table, op.Schema)).
			Append(" ADD").Append(clause).Append(" FOR ").Append(g.ident(op.Name))
		g.terminate()
	}
	g.EndCommand(false)
	return nil
}

func (sqlServerDialect) dropColumn(g *generation, op *operations.DropColumn) error {
	dropDefaultConstraint(g, op.Table, op.Schema, op.Name)
	g.Append("ALTER TABLE ").Append(g.table(op.Table, op.Schema)).
		Append(" DROP COLUMN ").Append(g.ident(op.Name))
	return g.end()
}

func (sqlServerDialect) renameColumn(g *generation, op *operations.RenameColumn) error {
	return spRename(g, g.table(op.Table, op.Schema)+"."+g.ident(op.Name), op.NewName, "COLUMN")
}

func (sqlServerDialect) addForeignKey(g *generation, op *operations.AddForeignKey) error {
	g.Append("ALTER TABLE ").Append(g.table(op.Table, op.Schema)).Append(" ADD ")
	foreignKeyConstraint(g, op, sqlServerOnDelete(op.OnDelete))
	return g.end()
}

func (sqlServerDialect) dropIndex(g *generation, op *operations.DropIndex) error {
	g.Append("DROP INDEX ").Append(g.ident(op.Name)).
		Append(" ON ").Append(g.table(op.Table, op.Schema))
	return g.end()
}

func (sqlServerDialect) renameIndex(g *generation, op *operations.RenameIndex) error {
	return spRename(g, g.table(op.Table, op.Schema)+"."+g.ident(op.Name), op.NewName, "INDEX")
}

func (sqlServerDialect) createSequence(g *generation, op *operations.CreateSequence) error {
	return writeCreateSequence(g, op)
}

func (sqlServerDialect) alterSequence(g *generation, op *operations.AlterSequence) error {
	return writeAlterSequence(g, op)
}

func (sqlServerDialect) restartSequence(g *generation, op *operations.RestartSequence) error {
	return writeRestartSequence(g, op)
}

func (sqlServerDialect) dropSequence(g *generation, op *operations.DropSequence) error {
	return writeDropSequence(g, op)
}

func (sqlServerDialect) renameSequence(g *generation, op *operations.RenameSequence) error {
	return spRename(g, g.table(op.Name, op.Schema), op.NewName, "")
}

func (sqlServerDialect) moveSequence(g *generation, op *operations.MoveSequence) error {
	g.Append("ALTER SCHEMA ").Append(g.ident(sqlServerSchema(op.NewSchema))).
		Append(" TRANSFER ").Append(g.table(op.Name, sqlServerSchema(op.Schema)))
	return g.end()
}

var batchSeparator = regexp.MustCompile(`(?im)^\s*GO\s*$`)

// rawSQL splits the script on GO lines; each batch becomes its own command.
func (sqlServerDialect) rawSQL(g *generation, op *operations.RawSQL) error {
	for _, batch := range batchSeparator.Split(op.SQL, -1) {
		batch = strings.TrimSpace(batch)
		if batch == "" {
			continue
		}
		g.AppendLines(batch)
		g.EndCommand(op.SuppressTransaction)
	}
	return nil
}

func spRename(g *generation, object, newName, kind string) error {
	g.Append("EXEC sp_rename ").Append(g.literal(object)).Append(", ").Append(g.literal(newName))
	if kind != "" {
		g.Append(", ").Append(g.literal(kind))
	}
	return g.end()
}

func dropDefaultConstraint(g *generation, table, schema, name string) {
	v := g.nextVariable()
	g.AppendLine("DECLARE " + v + " sysname;")
	g.AppendLine("SELECT " + v + " = [d].[name]")
	g.AppendLine("FROM [sys].[default_constraints] [d]")
	g.AppendLine("INNER JOIN [sys].[columns] [c] ON [d].[parent_column_id] = [c].[column_id] AND [d].[parent_object_id] = [c].[object_id]")
	g.Append("WHERE ([d].[parent_object_id] = OBJECT_ID(").Append(g.literal(g.table(table, schema))).
		Append(") AND [c].[name] = ").Append(g.literal(name)).AppendLine(");")
	g.Append("IF " + v + " IS NOT NULL EXEC(").
		Append(g.literal("ALTER TABLE " + g.table(table, schema) + " DROP CONSTRAINT [")).
		Append(" + " + v + " + ").Append("'];')")
	g.terminate()
}

func sqlServerSchema(schema string) string {
	if schema == "" {
		return "dbo"
	}
	return schema
}
