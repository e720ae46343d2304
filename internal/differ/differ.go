// Package differ computes the schema operations that turn one model snapshot
// into another.
package differ

import (
	"fmt"
	"strings"

	"github.com/pgschema/relmig/internal/operations"
	"github.com/pgschema/relmig/internal/typemap"
	"github.com/pgschema/relmig/model"
)

// Differ compares two models. It holds no per-call state and may be used
// concurrently.
type Differ struct {
	mapper typemap.Mapper
}

// New returns a differ that compares columns by their store types as resolved by mapper.
func New(mapper typemap.Mapper) *Differ {
	return &Differ{mapper: mapper}
}

// HasDifferences reports whether GetDifferences would return any operation.
func (d *Differ) HasDifferences(source, target *model.Model) bool {
	return len(d.GetDifferences(source, target)) > 0
}

// GetDifferences returns the ordered operations transforming source into
// target. Either model may be nil, meaning an empty database.
func (d *Differ) GetDifferences(source, target *model.Model) []operations.Operation {
	ctx := newDiffContext(source, target)

	var ops []operations.Operation
	ops = append(ops, d.diffTables(ctx)...)
	ops = append(ops, d.diffSequences(ctx)...)
	return sortOperations(ops, ctx)
}

func (d *Differ) diffTables(ctx *diffContext) []operations.Operation {
	pairs, removed, added := matchCollection(ctx.source.Tables(), ctx.target.Tables(),
		func(s, t *model.Table) bool { return strings.EqualFold(s.Root.Name, t.Root.Name) },
		func(s, t *model.Table) bool {
			return strings.EqualFold(s.Name, t.Name) && strings.EqualFold(s.Schema, t.Schema)
		},
		func(s, t *model.Table) bool { return strings.EqualFold(s.Name, t.Name) },
	)

	// Children of matched tables refer to principals through the context,
	// so the whole table mapping is recorded before any child is compared.
	for _, p := range pairs {
		ctx.tables[p.source] = p.target
	}
	for _, s := range removed {
		ctx.dropped[s] = true
	}

	var ops []operations.Operation
	for _, p := range pairs {
		ops = append(ops, d.diffTable(ctx, p.source, p.target)...)
	}
	for _, t := range added {
		ops = append(ops, d.addTable(ctx, t)...)
	}
	for _, s := range removed {
		ops = append(ops, &operations.DropTable{Name: s.Name, Schema: s.Schema})
	}
	return ops
}

func (d *Differ) diffTable(ctx *diffContext, source, target *model.Table) []operations.Operation {
	var ops []operations.Operation

	if source.Name != target.Name {
		ops = append(ops, &operations.RenameTable{Name: source.Name, Schema: source.Schema, NewName: target.Name})
	}
	if !strings.EqualFold(source.Schema, target.Schema) {
		if ctx.needsSchema(target.Schema) {
			ops = append(ops, &operations.EnsureSchema{Name: target.Schema})
		}
		ops = append(ops, &operations.MoveTable{Name: target.Name, Schema: source.Schema, NewSchema: target.Schema})
	}

	ops = append(ops, d.diffProperties(source, target)...)
	ops = append(ops, diffPrimaryKeys(source, target)...)
	ops = append(ops, diffKeys(source, target)...)
	ops = append(ops, diffForeignKeys(ctx, source, target)...)
	ops = append(ops, diffIndexes(source, target)...)
	return ops
}

func (d *Differ) addTable(ctx *diffContext, t *model.Table) []operations.Operation {
	var ops []operations.Operation
	if ctx.needsSchema(t.Schema) {
		ops = append(ops, &operations.EnsureSchema{Name: t.Schema})
	}

	create := &operations.CreateTable{Name: t.Name, Schema: t.Schema}
	for _, p := range t.Properties {
		create.Columns = append(create.Columns, addColumn(t, p))
	}
	if t.PrimaryKey != nil {
		create.PrimaryKey = addPrimaryKey(t, t.PrimaryKey)
	}
	for _, k := range t.Keys {
		create.UniqueConstraints = append(create.UniqueConstraints, addUniqueConstraint(t, k))
	}
	for _, fk := range t.ForeignKeys {
		create.ForeignKeys = append(create.ForeignKeys, addForeignKey(ctx.target, t, fk))
	}
	ops = append(ops, create)

	for _, ix := range t.Indexes {
		ops = append(ops, createIndex(t, ix))
	}
	return ops
}

func (d *Differ) diffProperties(source, target *model.Table) []operations.Operation {
	pairs, removed, added := matchCollection(source.Properties, target.Properties,
		func(s, t *model.Property) bool { return strings.EqualFold(s.Name, t.Name) },
		func(s, t *model.Property) bool { return strings.EqualFold(s.Column, t.Column) },
	)

	var ops []operations.Operation
	for _, p := range pairs {
		if p.source.Column != p.target.Column {
			ops = append(ops, &operations.RenameColumn{
				Name:    p.source.Column,
				Table:   target.Name,
				Schema:  target.Schema,
				NewName: p.target.Column,
			})
		}
		if op := d.alterColumn(source, target, p.source, p.target); op != nil {
			ops = append(ops, op)
		}
	}
	for _, p := range added {
		ops = append(ops, addColumn(target, p))
	}
	for _, p := range removed {
		ops = append(ops, &operations.DropColumn{Name: p.Column, Table: source.Name, Schema: source.Schema})
	}
	return ops
}

func (d *Differ) alterColumn(sourceTable, targetTable *model.Table, source, target *model.Property) *operations.AlterColumn {
	oldDef := columnDefinition(sourceTable, source)
	newDef := columnDefinition(targetTable, target)

	storeTypeChanged := typemap.Normalize(d.storeType(sourceTable, source)) != typemap.Normalize(d.storeType(targetTable, target))
	changed := storeTypeChanged ||
		oldDef.Nullable != newDef.Nullable ||
		!sameValue(oldDef.DefaultValue, newDef.DefaultValue) ||
		oldDef.DefaultSQL != newDef.DefaultSQL ||
		oldDef.ComputedSQL != newDef.ComputedSQL
	if !changed {
		return nil
	}

	return &operations.AlterColumn{
		Name:             target.Column,
		Table:            targetTable.Name,
		Schema:           targetTable.Schema,
		ColumnDefinition: newDef,
		OldColumn:        oldDef,
		Destructive:      storeTypeChanged || (oldDef.Nullable && !newDef.Nullable),
	}
}

// storeType resolves the store type used for comparison. Every CLR type has
// a mapping in every dialect, so the fallback only covers unmapped types.
func (d *Differ) storeType(t *model.Table, p *model.Property) string {
	st, err := typemap.StoreType(d.mapper, t, p)
	if err != nil {
		return string(p.Type)
	}
	return st
}

func diffPrimaryKeys(source, target *model.Table) []operations.Operation {
	s, t := source.PrimaryKey, target.PrimaryKey
	if s != nil && t != nil && strings.EqualFold(s.Name, t.Name) &&
		equalNames(source.Columns(s.Properties), target.Columns(t.Properties)) {
		return nil
	}

	var ops []operations.Operation
	if s != nil {
		ops = append(ops, &operations.DropPrimaryKey{Name: s.Name, Table: source.Name, Schema: source.Schema})
	}
	if t != nil {
		ops = append(ops, addPrimaryKey(target, t))
	}
	return ops
}

func diffKeys(source, target *model.Table) []operations.Operation {
	_, removed, added := matchCollection(source.Keys, target.Keys,
		func(s, t *model.Key) bool {
			return strings.EqualFold(s.Name, t.Name) &&
				equalNames(source.Columns(s.Properties), target.Columns(t.Properties))
		},
	)

	var ops []operations.Operation
	for _, k := range removed {
		ops = append(ops, &operations.DropUniqueConstraint{Name: k.Name, Table: source.Name, Schema: source.Schema})
	}
	for _, k := range added {
		ops = append(ops, addUniqueConstraint(target, k))
	}
	return ops
}

func diffForeignKeys(ctx *diffContext, source, target *model.Table) []operations.Operation {
	_, removed, added := matchCollection(source.ForeignKeys, target.ForeignKeys,
		func(s, t *model.ForeignKey) bool {
			sp, tp := principalOf(ctx.source, s), principalOf(ctx.target, t)
			return strings.EqualFold(s.Name, t.Name) &&
				equalNames(source.Columns(s.Properties), target.Columns(t.Properties)) &&
				sp != nil && tp != nil && ctx.tables[sp] == tp &&
				equalNames(sp.Columns(s.PrincipalProperties), tp.Columns(t.PrincipalProperties)) &&
				s.OnDelete == t.OnDelete
		},
	)

	var ops []operations.Operation
	for _, fk := range removed {
		ops = append(ops, &operations.DropForeignKey{Name: fk.Name, Table: source.Name, Schema: source.Schema})
	}
	for _, fk := range added {
		ops = append(ops, addForeignKey(ctx.target, target, fk))
	}
	return ops
}

func diffIndexes(source, target *model.Table) []operations.Operation {
	sameShape := func(s, t *model.Index) bool {
		return s.Unique == t.Unique && s.Filter == t.Filter &&
			equalNames(source.Columns(s.Properties), target.Columns(t.Properties))
	}
	pairs, removed, added := matchCollection(source.Indexes, target.Indexes,
		func(s, t *model.Index) bool { return strings.EqualFold(s.Name, t.Name) && sameShape(s, t) },
		sameShape,
	)

	var ops []operations.Operation
	for _, p := range pairs {
		if p.source.Name != p.target.Name {
			ops = append(ops, &operations.RenameIndex{
				Name:    p.source.Name,
				Table:   target.Name,
				Schema:  target.Schema,
				NewName: p.target.Name,
			})
		}
	}
	for _, ix := range removed {
		ops = append(ops, &operations.DropIndex{Name: ix.Name, Table: source.Name, Schema: source.Schema})
	}
	for _, ix := range added {
		ops = append(ops, createIndex(target, ix))
	}
	return ops
}

func (d *Differ) diffSequences(ctx *diffContext) []operations.Operation {
	pairs, removed, added := matchCollection(sequencesOf(ctx.source), sequencesOf(ctx.target),
		func(s, t *model.Sequence) bool {
			return strings.EqualFold(s.Name, t.Name) && strings.EqualFold(s.Schema, t.Schema) && s.Type == t.Type
		},
		func(s, t *model.Sequence) bool { return strings.EqualFold(s.Name, t.Name) && s.Type == t.Type },
	)

	var ops []operations.Operation
	for _, p := range pairs {
		s, t := p.source, p.target
		if !strings.EqualFold(s.Schema, t.Schema) {
			if ctx.needsSchema(t.Schema) {
				ops = append(ops, &operations.EnsureSchema{Name: t.Schema})
			}
			ops = append(ops, &operations.MoveSequence{Name: s.Name, Schema: s.Schema, NewSchema: t.Schema})
		}
		if s.Name != t.Name {
			ops = append(ops, &operations.RenameSequence{Name: s.Name, Schema: t.Schema, NewName: t.Name})
		}
		if s.IncrementBy != t.IncrementBy || !sameBound(s.MinValue, t.MinValue) ||
			!sameBound(s.MaxValue, t.MaxValue) || s.Cyclic != t.Cyclic {
			ops = append(ops, &operations.AlterSequence{
				Name:        t.Name,
				Schema:      t.Schema,
				IncrementBy: t.IncrementBy,
				MinValue:    t.MinValue,
				MaxValue:    t.MaxValue,
				Cyclic:      t.Cyclic,
			})
		}
		if s.StartValue != t.StartValue {
			ops = append(ops, &operations.RestartSequence{Name: t.Name, Schema: t.Schema, StartValue: t.StartValue})
		}
	}
	for _, t := range added {
		if ctx.needsSchema(t.Schema) {
			ops = append(ops, &operations.EnsureSchema{Name: t.Schema})
		}
		ops = append(ops, &operations.CreateSequence{
			Name:        t.Name,
			Schema:      t.Schema,
			Type:        t.Type,
			StartValue:  t.StartValue,
			IncrementBy: t.IncrementBy,
			MinValue:    t.MinValue,
			MaxValue:    t.MaxValue,
			Cyclic:      t.Cyclic,
		})
	}
	for _, s := range removed {
		ops = append(ops, &operations.DropSequence{Name: s.Name, Schema: s.Schema})
	}
	return ops
}

func sequencesOf(m *model.Model) []*model.Sequence {
	if m == nil {
		return nil
	}
	return m.Sequences
}

// columnDefinition describes the column of p in t. Columns of derived
// entity types are always nullable since rows of other types in the
// hierarchy leave them empty.
func columnDefinition(t *model.Table, p *model.Property) operations.ColumnDefinition {
	return operations.ColumnDefinition{
		Type:         p.Type,
		StoreType:    p.StoreType,
		Nullable:     p.Nullable || !declaredByRoot(t, p),
		MaxLength:    p.MaxLength,
		Unicode:      p.Unicode,
		RowVersion:   p.RowVersion,
		Identity:     p.Identity,
		DefaultValue: p.DefaultValue,
		DefaultSQL:   p.DefaultSQL,
		ComputedSQL:  p.ComputedSQL,
	}
}

func declaredByRoot(t *model.Table, p *model.Property) bool {
	for _, rp := range t.Root.Properties {
		if rp == p {
			return true
		}
	}
	return false
}

func addColumn(t *model.Table, p *model.Property) *operations.AddColumn {
	return &operations.AddColumn{
		Name:             p.Column,
		Table:            t.Name,
		Schema:           t.Schema,
		ColumnDefinition: columnDefinition(t, p),
	}
}

func addPrimaryKey(t *model.Table, k *model.Key) *operations.AddPrimaryKey {
	return &operations.AddPrimaryKey{Name: k.Name, Table: t.Name, Schema: t.Schema, Columns: t.Columns(k.Properties)}
}

func addUniqueConstraint(t *model.Table, k *model.Key) *operations.AddUniqueConstraint {
	return &operations.AddUniqueConstraint{Name: k.Name, Table: t.Name, Schema: t.Schema, Columns: t.Columns(k.Properties)}
}

func addForeignKey(m *model.Model, t *model.Table, fk *model.ForeignKey) *operations.AddForeignKey {
	principal := principalOf(m, fk)
	return &operations.AddForeignKey{
		Name:             fk.Name,
		Table:            t.Name,
		Schema:           t.Schema,
		Columns:          t.Columns(fk.Properties),
		PrincipalTable:   principal.Name,
		PrincipalSchema:  principal.Schema,
		PrincipalColumns: principal.Columns(fk.PrincipalProperties),
		OnDelete:         fk.OnDelete,
	}
}

func createIndex(t *model.Table, ix *model.Index) *operations.CreateIndex {
	return &operations.CreateIndex{
		Name:    ix.Name,
		Table:   t.Name,
		Schema:  t.Schema,
		Columns: t.Columns(ix.Properties),
		Unique:  ix.Unique,
		Filter:  ix.Filter,
	}
}

func sameValue(a, b any) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	return fmt.Sprint(a) == fmt.Sprint(b)
}

func sameBound(a, b *int64) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	return *a == *b
}
