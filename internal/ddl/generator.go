// Package ddl turns migration operations into dialect-specific DDL commands.
package ddl

import (
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/pgschema/relmig/internal/command"
	"github.com/pgschema/relmig/internal/migration"
	"github.com/pgschema/relmig/internal/operations"
	"github.com/pgschema/relmig/internal/sqlgen"
	"github.com/pgschema/relmig/internal/typemap"
	"github.com/pgschema/relmig/model"
)

// ErrUnknownOperation is returned for an operation outside the known set.
var ErrUnknownOperation = errors.New("unknown migration operation")

// NotSupportedError reports an operation the dialect cannot express.
type NotSupportedError struct {
	Dialect   sqlgen.Dialect
	Operation string
}

func (e *NotSupportedError) Error() string {
	return fmt.Sprintf("%s is not supported by %s", e.Operation, e.Dialect)
}

func notSupported(g *generation, op operations.Operation) error {
	return &NotSupportedError{Dialect: g.helper.Dialect(), Operation: operations.Kind(op)}
}

// Generator produces migration commands for one dialect.
type Generator struct {
	helper  sqlgen.Helper
	mapper  typemap.Mapper
	dialect dialect
}

// New returns a generator using the given helper and type mapper, which
// must target the same dialect.
func New(helper sqlgen.Helper, mapper typemap.Mapper) (*Generator, error) {
	if helper.Dialect() != mapper.Dialect() {
		return nil, fmt.Errorf("helper dialect %s does not match type mapper dialect %s", helper.Dialect(), mapper.Dialect())
	}
	var d dialect
	switch helper.Dialect() {
	case sqlgen.Postgres:
		d = postgresDialect{}
	case sqlgen.SQLServer:
		d = sqlServerDialect{}
	case sqlgen.SQLite:
		d = sqliteDialect{}
	case sqlgen.MySQL:
		d = mysqlDialect{}
	default:
		return nil, fmt.Errorf("unsupported dialect %q", helper.Dialect())
	}
	return &Generator{helper: helper, mapper: mapper, dialect: d}, nil
}

// ForDialect returns a generator with the default helper and type mapper of d.
func ForDialect(d sqlgen.Dialect) (*Generator, error) {
	helper, err := sqlgen.New(d)
	if err != nil {
		return nil, err
	}
	mapper, err := typemap.New(d)
	if err != nil {
		return nil, err
	}
	return New(helper, mapper)
}

// Helper returns the SQL helper the generator writes with.
func (gen *Generator) Helper() sqlgen.Helper {
	return gen.helper
}

// Mapper returns the type mapper used for columns without a store type.
func (gen *Generator) Mapper() typemap.Mapper {
	return gen.mapper
}

// Generate renders ops in order. The model is the one the operations lead
// to; it supplies store types for columns that do not name one.
func (gen *Generator) Generate(ops []operations.Operation, m *model.Model) ([]command.MigrationCommand, error) {
	g := &generation{
		ListBuilder: command.NewListBuilder(gen.helper),
		helper:      gen.helper,
		mapper:      gen.mapper,
		model:       m,
	}
	for _, op := range ops {
		if err := gen.generate(g, op); err != nil {
			return nil, fmt.Errorf("failed to generate %s: %w", operations.Describe(op), err)
		}
	}
	return g.GetCommandList(), nil
}

func (gen *Generator) generate(g *generation, op operations.Operation) error {
	d := gen.dialect
	switch op := op.(type) {
	case *operations.EnsureSchema:
		return d.ensureSchema(g, op)
	case *operations.CreateTable:
		return d.createTable(g, op)
	case *operations.DropTable:
		g.Append("DROP TABLE ").Append(g.table(op.Name, op.Schema))
		return g.end()
	case *operations.RenameTable:
		return d.renameTable(g, op)
	case *operations.MoveTable:
		return d.moveTable(g, op)
	case *operations.AddColumn:
		return d.addColumn(g, op)
	case *operations.AlterColumn:
		return d.alterColumn(g, op)
	case *operations.DropColumn:
		return d.dropColumn(g, op)
	case *operations.RenameColumn:
		return d.renameColumn(g, op)
	case *operations.AddPrimaryKey:
		return d.addPrimaryKey(g, op)
	case *operations.DropPrimaryKey:
		return d.dropPrimaryKey(g, op)
	case *operations.AddUniqueConstraint:
		return d.addUniqueConstraint(g, op)
	case *operations.DropUniqueConstraint:
		return d.dropUniqueConstraint(g, op)
	case *operations.AddForeignKey:
		return d.addForeignKey(g, op)
	case *operations.DropForeignKey:
		return d.dropForeignKey(g, op)
	case *operations.CreateIndex:
		return d.createIndex(g, op)
	case *operations.DropIndex:
		return d.dropIndex(g, op)
	case *operations.RenameIndex:
		return d.renameIndex(g, op)
	case *operations.CreateSequence:
		return d.createSequence(g, op)
	case *operations.AlterSequence:
		return d.alterSequence(g, op)
	case *operations.RestartSequence:
		return d.restartSequence(g, op)
	case *operations.DropSequence:
		return d.dropSequence(g, op)
	case *operations.RenameSequence:
		return d.renameSequence(g, op)
	case *operations.MoveSequence:
		return d.moveSequence(g, op)
	case *operations.RawSQL:
		return d.rawSQL(g, op)
	default:
		return migration.NewOperationError(fmt.Errorf("%w: %T", ErrUnknownOperation, op))
	}
}

// dialect renders the operations whose SQL differs between databases.
type dialect interface {
	columnDefinition(g *generation, c column) error

	ensureSchema(g *generation, op *operations.EnsureSchema) error
	createTable(g *generation, op *operations.CreateTable) error
	renameTable(g *generation, op *operations.RenameTable) error
	moveTable(g *generation, op *operations.MoveTable) error
	addColumn(g *generation, op *operations.AddColumn) error
	alterColumn(g *generation, op *operations.AlterColumn) error
	dropColumn(g *generation, op *operations.DropColumn) error
	renameColumn(g *generation, op *operations.RenameColumn) error
	addPrimaryKey(g *generation, op *operations.AddPrimaryKey) error
	dropPrimaryKey(g *generation, op *operations.DropPrimaryKey) error
	addUniqueConstraint(g *generation, op *operations.AddUniqueConstraint) error
	dropUniqueConstraint(g *generation, op *operations.DropUniqueConstraint) error
	addForeignKey(g *generation, op *operations.AddForeignKey) error
	dropForeignKey(g *generation, op *operations.DropForeignKey) error
	createIndex(g *generation, op *operations.CreateIndex) error
	dropIndex(g *generation, op *operations.DropIndex) error
	renameIndex(g *generation, op *operations.RenameIndex) error
	createSequence(g *generation, op *operations.CreateSequence) error
	alterSequence(g *generation, op *operations.AlterSequence) error
	restartSequence(g *generation, op *operations.RestartSequence) error
	dropSequence(g *generation, op *operations.DropSequence) error
	renameSequence(g *generation, op *operations.RenameSequence) error
	moveSequence(g *generation, op *operations.MoveSequence) error
	rawSQL(g *generation, op *operations.RawSQL) error
}

// column is a column definition in the context of its table.
type column struct {
	name   string
	table  string
	schema string
	def    *operations.ColumnDefinition
	// key is set when the column takes part in a key of a table being created.
	key bool
}

// generation is the state of one Generate call.
type generation struct {
	*command.ListBuilder
	helper sqlgen.Helper
	mapper typemap.Mapper
	model  *model.Model

	variables int
}

func (g *generation) ident(name string) string {
	return g.helper.DelimitIdentifier(name)
}

func (g *generation) table(name, schema string) string {
	return g.helper.DelimitQualified(name, schema)
}

func (g *generation) columnList(names []string) string {
	quoted := make([]string, len(names))
	for i, n := range names {
		quoted[i] = g.ident(n)
	}
	return strings.Join(quoted, ", ")
}

func (g *generation) literal(v any) string {
	return g.helper.GenerateLiteral(v)
}

// end terminates the statement and closes the command.
func (g *generation) end() error {
	g.AppendLine(g.helper.StatementTerminator())
	g.EndCommand(false)
	return nil
}

// terminate ends the statement without closing the command.
func (g *generation) terminate() {
	g.AppendLine(g.helper.StatementTerminator())
}

func (g *generation) nextVariable() string {
	v := "@var" + strconv.Itoa(g.variables)
	g.variables++
	return v
}

// storeType resolves the store type of c: an explicit store type wins, then
// the type of a structurally identical property of the model, then the
// dialect default.
func (g *generation) storeType(c column) (string, error) {
	if c.def.StoreType != "" {
		return c.def.StoreType, nil
	}
	if g.model != nil {
		if p := g.model.FindColumn(c.schema, c.table, c.name); p != nil && sameFacets(p, c.def) {
			return typemap.StoreType(g.mapper, g.model.FindTable(c.schema, c.table), p)
		}
	}
	return g.mapper.FindMapping(c.def.Type, typemap.Facets{
		MaxLength:  c.def.MaxLength,
		Unicode:    c.def.Unicode,
		RowVersion: c.def.RowVersion,
		Key:        c.key,
	})
}

func sameFacets(p *model.Property, def *operations.ColumnDefinition) bool {
	return p.Type == def.Type &&
		p.RowVersion == def.RowVersion &&
		equalInt(p.MaxLength, def.MaxLength) &&
		equalBool(p.Unicode, def.Unicode)
}

func equalInt(a, b *int) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	return *a == *b
}

func equalBool(a, b *bool) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	return *a == *b
}

// nullability returns the NULL / NOT NULL clause of a column.
func nullability(def *operations.ColumnDefinition) string {
	if def.Nullable {
		return " NULL"
	}
	return " NOT NULL"
}

// defaultClause returns the DEFAULT clause of a column, or "".
func defaultClause(g *generation, def *operations.ColumnDefinition) string {
	switch {
	case def.DefaultSQL != "":
		return " DEFAULT (" + def.DefaultSQL + ")"
	case def.DefaultValue != nil:
		return " DEFAULT " + g.literal(def.DefaultValue)
	}
	return ""
}

func onDeleteClause(action model.ReferentialAction) string {
	if action == "" || action == model.NoAction {
		return ""
	}
	return " ON DELETE " + string(action)
}

// ansi implements the operations every dialect spells the same way and
// rejects the ones that have no portable form. Dialects embed it and
// override what they need.
type ansi struct{}

func (ansi) ensureSchema(g *generation, op *operations.EnsureSchema) error {
	return notSupported(g, op)
}

func (ansi) renameTable(g *generation, op *operations.RenameTable) error {
	return notSupported(g, op)
}

func (ansi) moveTable(g *generation, op *operations.MoveTable) error {
	return notSupported(g, op)
}

func (ansi) alterColumn(g *generation, op *operations.AlterColumn) error {
	return notSupported(g, op)
}

func (ansi) dropColumn(g *generation, op *operations.DropColumn) error {
	g.Append("ALTER TABLE ").Append(g.table(op.Table, op.Schema)).
		Append(" DROP COLUMN ").Append(g.ident(op.Name))
	return g.end()
}

func (ansi) renameColumn(g *generation, op *operations.RenameColumn) error {
	g.Append("ALTER TABLE ").Append(g.table(op.Table, op.Schema)).
		Append(" RENAME COLUMN ").Append(g.ident(op.Name)).
		Append(" TO ").Append(g.ident(op.NewName))
	return g.end()
}

func (ansi) addPrimaryKey(g *generation, op *operations.AddPrimaryKey) error {
	g.Append("ALTER TABLE ").Append(g.table(op.Table, op.Schema)).
		Append(" ADD CONSTRAINT ").Append(g.ident(op.Name)).
		Append(" PRIMARY KEY (").Append(g.columnList(op.Columns)).Append(")")
	return g.end()
}

func (ansi) dropPrimaryKey(g *generation, op *operations.DropPrimaryKey) error {
	return dropConstraint(g, op.Table, op.Schema, op.Name)
}

func (ansi) addUniqueConstraint(g *generation, op *operations.AddUniqueConstraint) error {
	g.Append("ALTER TABLE ").Append(g.table(op.Table, op.Schema)).
		Append(" ADD CONSTRAINT ").Append(g.ident(op.Name)).
		Append(" UNIQUE (").Append(g.columnList(op.Columns)).Append(")")
	return g.end()
}

func (ansi) dropUniqueConstraint(g *generation, op *operations.DropUniqueConstraint) error {
	return dropConstraint(g, op.Table, op.Schema, op.Name)
}

func (ansi) addForeignKey(g *generation, op *operations.AddForeignKey) error {
	g.Append("ALTER TABLE ").Append(g.table(op.Table, op.Schema)).Append(" ADD ")
	foreignKeyConstraint(g, op, onDeleteClause(op.OnDelete))
	return g.end()
}

func (ansi) dropForeignKey(g *generation, op *operations.DropForeignKey) error {
	return dropConstraint(g, op.Table, op.Schema, op.Name)
}

func (ansi) createIndex(g *generation, op *operations.CreateIndex) error {
	g.Append("CREATE ")
	if op.Unique {
		g.Append("UNIQUE ")
	}
	g.Append("INDEX ").Append(g.ident(op.Name)).
		Append(" ON ").Append(g.table(op.Table, op.Schema)).
		Append(" (").Append(g.columnList(op.Columns)).Append(")")
	if op.Filter != "" {
		g.Append(" WHERE ").Append(op.Filter)
	}
	return g.end()
}

func (ansi) dropIndex(g *generation, op *operations.DropIndex) error {
	return notSupported(g, op)
}

func (ansi) renameIndex(g *generation, op *operations.RenameIndex) error {
	return notSupported(g, op)
}

func (ansi) createSequence(g *generation, op *operations.CreateSequence) error {
	return notSupported(g, op)
}

func (ansi) alterSequence(g *generation, op *operations.AlterSequence) error {
	return notSupported(g, op)
}

func (ansi) restartSequence(g *generation, op *operations.RestartSequence) error {
	return notSupported(g, op)
}

func (ansi) dropSequence(g *generation, op *operations.DropSequence) error {
	return notSupported(g, op)
}

func (ansi) renameSequence(g *generation, op *operations.RenameSequence) error {
	return notSupported(g, op)
}

func (ansi) moveSequence(g *generation, op *operations.MoveSequence) error {
	return notSupported(g, op)
}

func (ansi) rawSQL(g *generation, op *operations.RawSQL) error {
	g.AppendLines(op.SQL)
	g.EndCommand(op.SuppressTransaction)
	return nil
}

func dropConstraint(g *generation, table, schema, name string) error {
	g.Append("ALTER TABLE ").Append(g.table(table, schema)).
		Append(" DROP CONSTRAINT ").Append(g.ident(name))
	return g.end()
}

func foreignKeyConstraint(g *generation, fk *operations.AddForeignKey, onDelete string) {
	g.Append("CONSTRAINT ").Append(g.ident(fk.Name)).
		Append(" FOREIGN KEY (").Append(g.columnList(fk.Columns)).
		Append(") REFERENCES ").Append(g.table(fk.PrincipalTable, fk.PrincipalSchema)).
		Append(" (").Append(g.columnList(fk.PrincipalColumns)).Append(")").
		Append(onDelete)
}

// createTableOptions lets dialects adjust the shared CREATE TABLE layout.
type createTableOptions struct {
	// inlineKey names a column that carries the primary key inline; the
	// table-level primary key constraint is then omitted.
	inlineKey string
	onDelete  func(model.ReferentialAction) string
}

func writeCreateTable(g *generation, d dialect, op *operations.CreateTable, opts createTableOptions) error {
	if opts.onDelete == nil {
		opts.onDelete = onDeleteClause
	}
	keys := keyColumns(op)

	g.Append("CREATE TABLE ").Append(g.table(op.Name, op.Schema)).AppendLine(" (")
	restore := g.Indent()

	var lines int
	next := func() {
		if lines > 0 {
			g.AppendLine(",")
		}
		lines++
	}

	for _, c := range op.Columns {
		next()
		col := column{name: c.Name, table: op.Name, schema: op.Schema, def: &c.ColumnDefinition, key: keys[c.Name]}
		if err := d.columnDefinition(g, col); err != nil {
			restore()
			return err
		}
		if c.Name == opts.inlineKey && op.PrimaryKey != nil {
			g.Append(" CONSTRAINT ").Append(g.ident(op.PrimaryKey.Name)).Append(" PRIMARY KEY AUTOINCREMENT")
		}
	}
	if op.PrimaryKey != nil && opts.inlineKey == "" {
		next()
		g.Append("CONSTRAINT ").Append(g.ident(op.PrimaryKey.Name)).
			Append(" PRIMARY KEY (").Append(g.columnList(op.PrimaryKey.Columns)).Append(")")
	}
	for _, uc := range op.UniqueConstraints {
		next()
		g.Append("CONSTRAINT ").Append(g.ident(uc.Name)).
			Append(" UNIQUE (").Append(g.columnList(uc.Columns)).Append(")")
	}
	for _, fk := range op.ForeignKeys {
		next()
		foreignKeyConstraint(g, fk, opts.onDelete(fk.OnDelete))
	}
	if lines > 0 {
		g.AppendLine("")
	}

	restore()
	g.Append(")")
	return g.end()
}

func keyColumns(op *operations.CreateTable) map[string]bool {
	keys := map[string]bool{}
	add := func(cols []string) {
		for _, c := range cols {
			keys[c] = true
		}
	}
	if op.PrimaryKey != nil {
		add(op.PrimaryKey.Columns)
	}
	for _, uc := range op.UniqueConstraints {
		add(uc.Columns)
	}
	for _, fk := range op.ForeignKeys {
		add(fk.Columns)
	}
	return keys
}

func writeAddColumn(g *generation, d dialect, op *operations.AddColumn) error {
	g.Append("ALTER TABLE ").Append(g.table(op.Table, op.Schema)).Append(" ADD ")
	if err := d.columnDefinition(g, column{name: op.Name, table: op.Table, schema: op.Schema, def: &op.ColumnDefinition}); err != nil {
		return err
	}
	return g.end()
}

// sequenceOptions renders the options shared by CREATE and ALTER SEQUENCE.
func sequenceOptions(g *generation, incrementBy int, minValue, maxValue *int64, cyclic bool) {
	g.Append(" INCREMENT BY ").Append(strconv.Itoa(incrementBy))
	if minValue != nil {
		g.Append(" MINVALUE ").Append(strconv.FormatInt(*minValue, 10))
	} else {
		g.Append(" NO MINVALUE")
	}
	if maxValue != nil {
		g.Append(" MAXVALUE ").Append(strconv.FormatInt(*maxValue, 10))
	} else {
		g.Append(" NO MAXVALUE")
	}
	if cyclic {
		g.Append(" CYCLE")
	} else {
		g.Append(" NO CYCLE")
	}
}

func writeCreateSequence(g *generation, op *operations.CreateSequence) error {
	storeType, err := g.mapper.FindMapping(op.Type, typemap.Facets{})
	if err != nil {
		return err
	}
	g.Append("CREATE SEQUENCE ").Append(g.table(op.Name, op.Schema)).
		Append(" AS ").Append(storeType).
		Append(" START WITH ").Append(strconv.FormatInt(op.StartValue, 10))
	sequenceOptions(g, op.IncrementBy, op.MinValue, op.MaxValue, op.Cyclic)
	return g.end()
}

func writeAlterSequence(g *generation, op *operations.AlterSequence) error {
	g.Append("ALTER SEQUENCE ").Append(g.table(op.Name, op.Schema))
	sequenceOptions(g, op.IncrementBy, op.MinValue, op.MaxValue, op.Cyclic)
	return g.end()
}

func writeRestartSequence(g *generation, op *operations.RestartSequence) error {
	g.Append("ALTER SEQUENCE ").Append(g.table(op.Name, op.Schema)).
		Append(" RESTART WITH ").Append(strconv.FormatInt(op.StartValue, 10))
	return g.end()
}

func writeDropSequence(g *generation, op *operations.DropSequence) error {
	g.Append("DROP SEQUENCE ").Append(g.table(op.Name, op.Schema))
	return g.end()
}
