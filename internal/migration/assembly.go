package migration

import (
	"fmt"
	"sort"
	"strings"

	"github.com/pgschema/relmig/model"
)

// Assembly is the ordered catalog of local migrations.
type Assembly struct {
	migrations []*Migration
	byID       map[string]*Migration
}

// NewAssembly sorts migrations by id and rejects duplicates.
func NewAssembly(migrations []*Migration) (*Assembly, error) {
	sorted := append([]*Migration(nil), migrations...)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].ID < sorted[j].ID })

	byID := make(map[string]*Migration, len(sorted))
	for _, m := range sorted {
		if !IsValidID(m.ID) {
			return nil, fmt.Errorf("migration id %q does not have the form yyyyMMddHHmmss_Name", m.ID)
		}
		if _, dup := byID[m.ID]; dup {
			return nil, fmt.Errorf("%w: %s", ErrDuplicateMigration, m.ID)
		}
		byID[m.ID] = m
	}
	return &Assembly{migrations: sorted, byID: byID}, nil
}

// Migrations returns the migrations ordered by id.
func (a *Assembly) Migrations() []*Migration {
	return a.migrations
}

// Len returns the number of migrations.
func (a *Assembly) Len() int {
	return len(a.migrations)
}

// Find returns the migration with the given id, or nil.
func (a *Assembly) Find(id string) *Migration {
	return a.byID[id]
}

// Index returns the position of the migration with the given id, or -1.
func (a *Assembly) Index(id string) int {
	i := sort.Search(len(a.migrations), func(i int) bool { return a.migrations[i].ID >= id })
	if i < len(a.migrations) && a.migrations[i].ID == id {
		return i
	}
	return -1
}

// Last returns the newest migration, or nil when there are none.
func (a *Assembly) Last() *Migration {
	if len(a.migrations) == 0 {
		return nil
	}
	return a.migrations[len(a.migrations)-1]
}

// ModelSnapshot returns the target model of the newest migration, or nil.
func (a *Assembly) ModelSnapshot() *model.Model {
	if last := a.Last(); last != nil {
		return last.TargetModel
	}
	return nil
}

// FindMigrationID resolves an id or a name. An exact id wins; otherwise the
// name is compared case-insensitively and must match exactly one migration.
func (a *Assembly) FindMigrationID(nameOrID string) (string, error) {
	if _, ok := a.byID[nameOrID]; ok {
		return nameOrID, nil
	}

	var found []string
	for _, m := range a.migrations {
		if strings.EqualFold(m.Name(), nameOrID) {
			found = append(found, m.ID)
		}
	}
	switch len(found) {
	case 0:
		return "", fmt.Errorf("%w: %s", ErrMigrationNotFound, nameOrID)
	case 1:
		return found[0], nil
	}
	return "", fmt.Errorf("%w: %s matches %s", ErrAmbiguousMigration, nameOrID, strings.Join(found, ", "))
}
