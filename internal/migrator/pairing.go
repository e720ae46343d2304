package migrator

import (
	"errors"
	"fmt"
	"sort"

	"github.com/pgschema/relmig/internal/history"
	"github.com/pgschema/relmig/internal/migration"
)

// ErrLocalMigrationNotFound means the database records a migration that is
// not among the local migrations: the database is ahead of the code.
var ErrLocalMigrationNotFound = errors.New("applied migration not found locally")

// Pairing splits the local migrations into applied and pending ones. Both
// lists are ordered by id.
type Pairing struct {
	Applied []*migration.Migration
	Pending []*migration.Migration
}

// PairMigrations merge-joins local migrations, sorted by id, with history
// rows in one pass. Every history row must match a local migration.
func PairMigrations(local []*migration.Migration, rows []history.Row) (Pairing, error) {
	ids := make([]string, len(rows))
	for i, r := range rows {
		ids[i] = r.MigrationID
	}
	sort.Strings(ids)

	var p Pairing
	i, j := 0, 0
	for j < len(ids) {
		if i == len(local) || local[i].ID > ids[j] {
			return Pairing{}, migration.NewOperationError(fmt.Errorf("%w: %s", ErrLocalMigrationNotFound, ids[j]))
		}
		if local[i].ID == ids[j] {
			p.Applied = append(p.Applied, local[i])
			j++
		} else {
			p.Pending = append(p.Pending, local[i])
		}
		i++
	}
	p.Pending = append(p.Pending, local[i:]...)
	return p, nil
}
