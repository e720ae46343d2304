// Package history manages the table that records which migrations have been
// applied to a database.
package history

import (
	"context"
	"fmt"
	"strings"

	"github.com/pgschema/relmig/internal/command"
	"github.com/pgschema/relmig/internal/database"
	"github.com/pgschema/relmig/internal/ddl"
	"github.com/pgschema/relmig/internal/differ"
	"github.com/pgschema/relmig/internal/operations"
	"github.com/pgschema/relmig/internal/sqlgen"
	"github.com/pgschema/relmig/model"
)

const (
	// DefaultTableName is the history table used unless Options names another.
	DefaultTableName = "__EFMigrationsHistory"

	migrationIDColumn     = "MigrationId"
	productVersionColumn  = "ProductVersion"
	migrationIDMaxLength  = 150
	productVersionMaxSize = 32
)

// Row is one applied migration.
type Row struct {
	MigrationID    string
	ProductVersion string
}

// Options overrides the location of the history table.
type Options struct {
	TableName string
	Schema    string
}

// Repository reads and writes the history table. The table itself is
// described as a one-entity model and created through the regular differ and
// DDL generator.
type Repository struct {
	gen     *ddl.Generator
	helper  sqlgen.Helper
	db      command.Querier
	creator database.Creator

	table  string
	schema string
	model  *model.Model
	create []operations.Operation
}

// New builds a repository. db and creator may be nil when only scripts are
// needed.
func New(gen *ddl.Generator, db command.Querier, creator database.Creator, opts Options) (*Repository, error) {
	table := opts.TableName
	if table == "" {
		table = DefaultTableName
	}

	idLength, versionLength := migrationIDMaxLength, productVersionMaxSize
	m, err := model.New("", []*model.EntityType{{
		Name:   "HistoryRow",
		Table:  table,
		Schema: opts.Schema,
		Properties: []*model.Property{
			{Name: migrationIDColumn, Type: model.TypeString, MaxLength: &idLength},
			{Name: productVersionColumn, Type: model.TypeString, MaxLength: &versionLength},
		},
		PrimaryKey: &model.Key{Properties: []string{migrationIDColumn}},
	}}, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to build history model: %w", err)
	}

	return &Repository{
		gen:     gen,
		helper:  gen.Helper(),
		db:      db,
		creator: creator,
		table:   table,
		schema:  opts.Schema,
		model:   m,
		create:  differ.New(gen.Mapper()).GetDifferences(nil, m),
	}, nil
}

// WithConnection returns a copy of r that runs its queries on q.
func (r *Repository) WithConnection(q command.Querier) *Repository {
	c := *r
	c.db = q
	return &c
}

// TableName returns the unqualified history table name.
func (r *Repository) TableName() string {
	return r.table
}

// Schema returns the history table schema, empty for the default schema.
func (r *Repository) Schema() string {
	return r.schema
}

// Model returns the one-entity model describing the history table.
func (r *Repository) Model() *model.Model {
	return r.model
}

// Exists reports whether the history table exists. A missing database means
// a missing table.
func (r *Repository) Exists(ctx context.Context) (bool, error) {
	if r.creator != nil {
		ok, err := r.creator.Exists(ctx)
		if err != nil {
			return false, err
		}
		if !ok {
			return false, nil
		}
	}
	if r.db == nil {
		return false, fmt.Errorf("history repository has no connection")
	}

	v, err := r.existsCommand().ExecuteScalar(ctx, r.db)
	if err != nil {
		return false, fmt.Errorf("failed to check for history table %s: %w", r.table, err)
	}
	return database.Truthy(v), nil
}

func (r *Repository) existsCommand() *command.Command {
	b := command.NewBuilder(r.helper)
	lit := r.helper.GenerateLiteral
	switch r.helper.Dialect() {
	case sqlgen.Postgres:
		schema := "current_schema()"
		if r.schema != "" {
			schema = lit(r.schema)
		}
		b.AppendLine("SELECT EXISTS (").
			IncrementIndent().
			AppendLine("SELECT 1 FROM pg_catalog.pg_class c").
			AppendLine("JOIN pg_catalog.pg_namespace n ON n.oid = c.relnamespace").
			Append("WHERE n.nspname = ").Append(schema).
			Append(" AND c.relname = ").AppendLine(lit(r.table)).
			DecrementIndent().
			Append(")")
	case sqlgen.SQLServer:
		b.Append("SELECT OBJECT_ID(").
			Append(lit(r.helper.DelimitQualified(r.table, r.schema))).
			Append(")")
	case sqlgen.SQLite:
		b.Append(`SELECT COUNT(*) FROM "sqlite_master" WHERE "name" = `).
			Append(lit(r.table)).
			Append(` AND "type" = 'table'`)
	case sqlgen.MySQL:
		schema := "DATABASE()"
		if r.schema != "" {
			schema = lit(r.schema)
		}
		b.Append("SELECT COUNT(*) FROM information_schema.tables WHERE table_name = ").
			Append(lit(r.table)).
			Append(" AND table_schema = ").Append(schema)
	}
	b.Append(r.helper.StatementTerminator())
	return b.Build()
}

// GetAppliedMigrations returns the recorded migrations ordered by id. It is
// empty when the history table does not exist.
func (r *Repository) GetAppliedMigrations(ctx context.Context) ([]Row, error) {
	exists, err := r.Exists(ctx)
	if err != nil {
		return nil, err
	}
	if !exists {
		return nil, nil
	}

	b := command.NewBuilder(r.helper)
	b.Append("SELECT ").Append(r.ident(migrationIDColumn)).Append(", ").AppendLine(r.ident(productVersionColumn)).
		Append("FROM ").AppendLine(r.qualifiedTable()).
		Append("ORDER BY ").Append(r.ident(migrationIDColumn)).Append(r.helper.StatementTerminator())

	rows, err := b.Build().ExecuteReader(ctx, r.db)
	if err != nil {
		return nil, fmt.Errorf("failed to read migration history: %w", err)
	}
	defer rows.Close()

	var applied []Row
	for rows.Next() {
		var row Row
		if err := rows.Scan(&row.MigrationID, &row.ProductVersion); err != nil {
			return nil, fmt.Errorf("failed to scan history row: %w", err)
		}
		applied = append(applied, row)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read migration history: %w", err)
	}
	return applied, nil
}

// GetInsertScript returns the statement recording row as applied.
func (r *Repository) GetInsertScript(row Row) string {
	b := command.NewBuilder(r.helper)
	b.Append("INSERT INTO ").Append(r.qualifiedTable()).
		Append(" (").Append(r.ident(migrationIDColumn)).Append(", ").Append(r.ident(productVersionColumn)).AppendLine(")").
		Append("VALUES (").Append(r.helper.GenerateLiteral(row.MigrationID)).Append(", ").
		Append(r.helper.GenerateLiteral(row.ProductVersion)).Append(")").
		AppendLine(r.helper.StatementTerminator())
	return b.String()
}

// GetDeleteScript returns the statement removing the record of a migration.
func (r *Repository) GetDeleteScript(migrationID string) string {
	b := command.NewBuilder(r.helper)
	b.Append("DELETE FROM ").AppendLine(r.qualifiedTable()).
		Append("WHERE ").Append(r.ident(migrationIDColumn)).Append(" = ").
		Append(r.helper.GenerateLiteral(migrationID)).
		AppendLine(r.helper.StatementTerminator())
	return b.String()
}

// GetCreateCommands returns the commands creating the history table.
func (r *Repository) GetCreateCommands() ([]command.MigrationCommand, error) {
	return r.gen.Generate(r.create, r.model)
}

// GetCreateScript returns the history table DDL as one script.
func (r *Repository) GetCreateScript() (string, error) {
	commands, err := r.GetCreateCommands()
	if err != nil {
		return "", err
	}
	var sb strings.Builder
	for _, c := range commands {
		sb.WriteString(c.CommandText)
	}
	return sb.String(), nil
}

// GetDropCommands returns the commands dropping the history table.
func (r *Repository) GetDropCommands() ([]command.MigrationCommand, error) {
	return r.gen.Generate([]operations.Operation{
		&operations.DropTable{Name: r.table, Schema: r.schema},
	}, nil)
}

func (r *Repository) ident(name string) string {
	return r.helper.DelimitIdentifier(name)
}

func (r *Repository) qualifiedTable() string {
	return r.helper.DelimitQualified(r.table, r.schema)
}
