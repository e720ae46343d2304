package differ

import (
	"strings"

	"github.com/pgschema/relmig/model"
)

// diffContext carries what one GetDifferences call learned about the table
// mapping between the two models. It is never shared between calls.
type diffContext struct {
	source *model.Model
	target *model.Model

	// tables maps each matched source table to its target table.
	tables map[*model.Table]*model.Table
	// dropped holds the source tables that have no target.
	dropped map[*model.Table]bool
}

func newDiffContext(source, target *model.Model) *diffContext {
	return &diffContext{
		source:  source,
		target:  target,
		tables:  map[*model.Table]*model.Table{},
		dropped: map[*model.Table]bool{},
	}
}

// needsSchema reports whether objects placed in schema need an EnsureSchema.
// The target's default schema is assumed to exist already.
func (c *diffContext) needsSchema(schema string) bool {
	if schema == "" {
		return false
	}
	return c.target == nil || !strings.EqualFold(schema, c.target.DefaultSchema)
}

// principalOf returns the table a foreign key of m points at.
func principalOf(m *model.Model, fk *model.ForeignKey) *model.Table {
	return m.TableOf(fk.PrincipalEntity)
}

func tableKey(schema, name string) string {
	return strings.ToLower(schema + "." + name)
}
