package ddl

import (
	"github.com/pgschema/relmig/internal/operations"
)

// sqliteDialect covers what ALTER TABLE in SQLite can do. Changes that
// need a table rebuild are reported as not supported.
type sqliteDialect struct{ ansi }

func (sqliteDialect) columnDefinition(g *generation, c column) error {
	storeType, err := g.storeType(c)
	if err != nil {
		return err
	}
	g.Append(g.ident(c.name)).Append(" ").Append(storeType)
	g.Append(nullability(c.def))
	if c.def.ComputedSQL != "" {
		g.Append(" GENERATED ALWAYS AS (").Append(c.def.ComputedSQL).Append(") STORED")
		return nil
	}
	g.Append(defaultClause(g, c.def))
	return nil
}

// SQLite has a single schema per database file.
func (sqliteDialect) ensureSchema(*generation, *operations.EnsureSchema) error {
	return nil
}

// createTable declares a single-column identity key inline, the only form
// SQLite accepts for AUTOINCREMENT.
func (d sqliteDialect) createTable(g *generation, op *operations.CreateTable) error {
	var opts createTableOptions
	if pk := op.PrimaryKey; pk != nil && len(pk.Columns) == 1 {
		for _, c := range op.Columns {
			if c.Name == pk.Columns[0] && c.Identity {
				opts.inlineKey = c.Name
			}
		}
	}
	return writeCreateTable(g, d, op, opts)
}

func (sqliteDialect) renameTable(g *generation, op *operations.RenameTable) error {
	g.Append("ALTER TABLE ").Append(g.table(op.Name, op.Schema)).
		Append(" RENAME TO ").Append(g.ident(op.NewName))
	return g.end()
}

func (d sqliteDialect) addColumn(g *generation, op *operations.AddColumn) error {
	return writeAddColumn(g, d, op)
}

func (sqliteDialect) addPrimaryKey(g *generation, op *operations.AddPrimaryKey) error {
	return notSupported(g, op)
}

func (sqliteDialect) dropPrimaryKey(g *generation, op *operations.DropPrimaryKey) error {
	return notSupported(g, op)
}

func (sqliteDialect) addUniqueConstraint(g *generation, op *operations.AddUniqueConstraint) error {
	return notSupported(g, op)
}

func (sqliteDialect) dropUniqueConstraint(g *generation, op *operations.DropUniqueConstraint) error {
	return notSupported(g, op)
}

func (sqliteDialect) addForeignKey(g *generation, op *operations.AddForeignKey) error {
	return notSupported(g, op)
}

func (sqliteDialect) dropForeignKey(g *generation, op *operations.DropForeignKey) error {
	return notSupported(g, op)
}

func (sqliteDialect) dropIndex(g *generation, op *operations.DropIndex) error {
	g.Append("DROP INDEX ").Append(g.ident(op.Name))
	return g.end()
}
