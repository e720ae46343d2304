package ddl

import (
	"github.com/pgschema/relmig/internal/operations"
)

type mysqlDialect struct{ ansi }

func (mysqlDialect) columnDefinition(g *generation, c column) error {
	storeType, err := g.storeType(c)
	if err != nil {
		return err
	}
	g.Append(g.ident(c.name)).Append(" ").Append(storeType)
	if c.def.ComputedSQL != "" {
		g.Append(" GENERATED ALWAYS AS (").Append(c.def.ComputedSQL).Append(") STORED")
	}
	g.Append(nullability(c.def))
	if c.def.Identity {
		g.Append(" AUTO_INCREMENT")
	} else if c.def.ComputedSQL == "" {
		g.Append(defaultClause(g, c.def))
	}
	return nil
}

func (d mysqlDialect) createTable(g *generation, op *operations.CreateTable) error {
	return writeCreateTable(g, d, op, createTableOptions{})
}

func (mysqlDialect) renameTable(g *generation, op *operations.RenameTable) error {
	g.Append("RENAME TABLE ").Append(g.table(op.Name, op.Schema)).
		Append(" TO ").Append(g.table(op.NewName, op.Schema))
	return g.end()
}

func (d mysqlDialect) addColumn(g *generation, op *operations.AddColumn) error {
	return writeAddColumn(g, d, op)
}

// alterColumn restates the whole column with MODIFY.
func (d mysqlDialect) alterColumn(g *generation, op *operations.AlterColumn) error {
	g.Append("ALTER TABLE ").Append(g.table(op.Table, op.Schema)).Append(" MODIFY ")
	if err := d.columnDefinition(g, column{name: op.Name, table: op.Table, schema: op.Schema, def: &op.ColumnDefinition}); err != nil {
		return err
	}
	return g.end()
}

func (mysqlDialect) dropPrimaryKey(g *generation, op *operations.DropPrimaryKey) error {
	g.Append("ALTER TABLE ").Append(g.table(op.Table, op.Schema)).Append(" DROP PRIMARY KEY")
	return g.end()
}

func (mysqlDialect) dropUniqueConstraint(g *generation, op *operations.DropUniqueConstraint) error {
	g.Append("ALTER TABLE ").Append(g.table(op.Table, op.Schema)).
		Append(" DROP INDEX ").Append(g.ident(op.Name))
	return g.end()
}

func (mysqlDialect) dropForeignKey(g *generation, op *operations.DropForeignKey) error {
	g.Append("ALTER TABLE ").Append(g.table(op.Table, op.Schema)).
		Append(" DROP FOREIGN KEY ").Append(g.ident(op.Name))
	return g.end()
}

func (d mysqlDialect) createIndex(g *generation, op *operations.CreateIndex) error {
	if op.Filter != "" {
		return &NotSupportedError{Dialect: g.helper.Dialect(), Operation: "filtered indexes"}
	}
	return d.ansi.createIndex(g, op)
}

func (mysqlDialect) dropIndex(g *generation, op *operations.DropIndex) error {
	g.Append("DROP INDEX ").Append(g.ident(op.Name)).
		Append(" ON ").Append(g.table(op.Table, op.Schema))
	return g.end()
}

func (mysqlDialect) renameIndex(g *generation, op *operations.RenameIndex) error {
	g.Append("ALTER TABLE ").Append(g.table(op.Table, op.Schema)).
		Append(" RENAME INDEX ").Append(g.ident(op.Name)).
		Append(" TO ").Append(g.ident(op.NewName))
	return g.end()
}
