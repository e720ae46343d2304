// Package migrator applies and reverts migrations against a database and
// keeps the history table in step.
package migrator

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/pgschema/relmig/internal/command"
	"github.com/pgschema/relmig/internal/database"
	"github.com/pgschema/relmig/internal/ddl"
	"github.com/pgschema/relmig/internal/history"
	"github.com/pgschema/relmig/internal/logger"
	"github.com/pgschema/relmig/internal/migration"
	"github.com/pgschema/relmig/internal/sqlgen"
	"github.com/pgschema/relmig/model"
)

// Config wires a migrator to its collaborators. DB and Creator may be nil
// for script generation.
type Config struct {
	Assembly       *migration.Assembly
	History        *history.Repository
	Generator      *ddl.Generator
	DB             *sql.DB
	Creator        database.Creator
	ProductVersion string
}

// Migrator moves a database between migrations.
type Migrator struct {
	assembly       *migration.Assembly
	history        *history.Repository
	gen            *ddl.Generator
	helper         sqlgen.Helper
	db             *sql.DB
	creator        database.Creator
	productVersion string
}

// New returns a migrator for the given configuration.
func New(cfg Config) *Migrator {
	return &Migrator{
		assembly:       cfg.Assembly,
		history:        cfg.History,
		gen:            cfg.Generator,
		helper:         cfg.Generator.Helper(),
		db:             cfg.DB,
		creator:        cfg.Creator,
		productVersion: cfg.ProductVersion,
	}
}

// Assembly returns the local migrations.
func (m *Migrator) Assembly() *migration.Assembly {
	return m.assembly
}

// Plan is what a migration run will do, in execution order.
type Plan struct {
	CreateHistory bool
	Revert        []*migration.Migration
	Apply         []*migration.Migration
	DropHistory   bool
}

// Empty reports whether the plan changes nothing.
func (p *Plan) Empty() bool {
	return !p.CreateHistory && !p.DropHistory && len(p.Revert) == 0 && len(p.Apply) == 0
}

// ResolveTarget maps a target to a migration index. An empty target is the
// newest migration and InitialDatabase is -1.
func (m *Migrator) ResolveTarget(target string) (int, error) {
	switch target {
	case "":
		return m.assembly.Len() - 1, nil
	case migration.InitialDatabase:
		return -1, nil
	}
	id, err := m.assembly.FindMigrationID(target)
	if err != nil {
		return 0, migration.NewOperationError(err)
	}
	return m.assembly.Index(id), nil
}

// PlanFor computes the reverts and applies needed to reach target from the
// given history.
func (m *Migrator) PlanFor(rows []history.Row, historyExists bool, target string) (*Plan, error) {
	index, err := m.ResolveTarget(target)
	if err != nil {
		return nil, err
	}
	pairing, err := PairMigrations(m.assembly.Migrations(), rows)
	if err != nil {
		return nil, err
	}

	plan := &Plan{}
	for i := len(pairing.Applied) - 1; i >= 0; i-- {
		if mig := pairing.Applied[i]; m.assembly.Index(mig.ID) > index {
			plan.Revert = append(plan.Revert, mig)
		}
	}
	for _, mig := range pairing.Pending {
		if m.assembly.Index(mig.ID) <= index {
			plan.Apply = append(plan.Apply, mig)
		}
	}
	plan.CreateHistory = len(plan.Apply) > 0 && !historyExists
	plan.DropHistory = index == -1 && historyExists
	return plan, nil
}

// Migrate brings the database to target: an id, a name, InitialDatabase or
// empty for the newest migration. Reverts run before applies.
func (m *Migrator) Migrate(ctx context.Context, target string) error {
	log := logger.Get()

	dbExists := true
	if m.creator != nil {
		var err error
		if dbExists, err = m.creator.Exists(ctx); err != nil {
			return err
		}
	}

	var (
		conn    *sql.Conn
		release func(context.Context) error
	)
	closeConn := func() {
		if release != nil {
			if err := release(context.WithoutCancel(ctx)); err != nil {
				log.Warn("Failed to release migration lock", "error", err)
			}
		}
		if conn != nil {
			conn.Close()
		}
	}
	defer closeConn()

	var (
		rows          []history.Row
		historyExists bool
	)
	if dbExists {
		var err error
		if conn, release, err = m.connect(ctx); err != nil {
			return err
		}
		repo := m.history.WithConnection(conn)
		if historyExists, err = repo.Exists(ctx); err != nil {
			return err
		}
		if historyExists {
			if rows, err = repo.GetAppliedMigrations(ctx); err != nil {
				return err
			}
		}
	}

	plan, err := m.PlanFor(rows, historyExists, target)
	if err != nil {
		return err
	}
	if plan.Empty() {
		log.Info("No migrations were applied. The database is already up to date.")
		return nil
	}

	commands, err := m.commandsFor(plan)
	if err != nil {
		return err
	}

	if !dbExists {
		if err := m.creator.Create(ctx); err != nil {
			return err
		}
		if conn, release, err = m.connect(ctx); err != nil {
			return err
		}
	}

	for _, mig := range plan.Revert {
		log.Info("Reverting migration", "id", mig.ID)
	}
	for _, mig := range plan.Apply {
		log.Info("Applying migration", "id", mig.ID)
	}
	if err := executeCommands(ctx, conn, commands, m.isolation()); err != nil {
		return err
	}
	if plan.DropHistory {
		log.Info("Dropped migration history table", "table", m.history.TableName())
	}
	return nil
}

func (m *Migrator) connect(ctx context.Context) (*sql.Conn, func(context.Context) error, error) {
	if m.db == nil {
		return nil, nil, errors.New("migrator has no database connection")
	}
	conn, err := m.db.Conn(ctx)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to open connection: %w", err)
	}
	release, err := acquireLock(ctx, conn, m.helper, lockKey(m.history.Schema(), m.history.TableName()))
	if err != nil {
		conn.Close()
		return nil, nil, err
	}
	return conn, release, nil
}

// isolation is serializable except on SQLite, whose driver accepts only the
// default level and serializes writers anyway.
func (m *Migrator) isolation() sql.IsolationLevel {
	if m.helper.Dialect() == sqlgen.SQLite {
		return sql.LevelDefault
	}
	return sql.LevelSerializable
}

// commandsFor generates every command of a plan in execution order.
func (m *Migrator) commandsFor(plan *Plan) ([]command.MigrationCommand, error) {
	var commands []command.MigrationCommand

	if plan.CreateHistory {
		create, err := m.history.GetCreateCommands()
		if err != nil {
			return nil, err
		}
		commands = append(commands, create...)
	}
	for _, mig := range plan.Revert {
		revert, err := m.revertCommands(mig)
		if err != nil {
			return nil, err
		}
		commands = append(commands, revert...)
	}
	for _, mig := range plan.Apply {
		apply, err := m.applyCommands(mig)
		if err != nil {
			return nil, err
		}
		commands = append(commands, apply...)
	}
	if plan.DropHistory {
		drop, err := m.history.GetDropCommands()
		if err != nil {
			return nil, err
		}
		commands = append(commands, drop...)
	}
	return commands, nil
}

func (m *Migrator) applyCommands(mig *migration.Migration) ([]command.MigrationCommand, error) {
	commands, err := m.gen.Generate(mig.Up, mig.TargetModel)
	if err != nil {
		return nil, fmt.Errorf("failed to generate migration %s: %w", mig.ID, err)
	}
	insert := m.history.GetInsertScript(history.Row{MigrationID: mig.ID, ProductVersion: m.productVersion})
	return append(commands, command.MigrationCommand{CommandText: insert}), nil
}

// revertCommands generates the Down operations against the model the
// database returns to, which is the target model of the previous migration.
func (m *Migrator) revertCommands(mig *migration.Migration) ([]command.MigrationCommand, error) {
	commands, err := m.gen.Generate(mig.Down, m.previousModel(mig))
	if err != nil {
		return nil, fmt.Errorf("failed to generate revert of migration %s: %w", mig.ID, err)
	}
	return append(commands, command.MigrationCommand{CommandText: m.history.GetDeleteScript(mig.ID)}), nil
}

func (m *Migrator) previousModel(mig *migration.Migration) *model.Model {
	if i := m.assembly.Index(mig.ID); i > 0 {
		return m.assembly.Migrations()[i-1].TargetModel
	}
	return nil
}

// GetAppliedMigrations returns the ids recorded in the history table.
func (m *Migrator) GetAppliedMigrations(ctx context.Context) ([]string, error) {
	pairing, err := m.pairing(ctx)
	if err != nil {
		return nil, err
	}
	return idsOf(pairing.Applied), nil
}

// GetPendingMigrations returns the ids of local migrations not yet applied.
func (m *Migrator) GetPendingMigrations(ctx context.Context) ([]string, error) {
	pairing, err := m.pairing(ctx)
	if err != nil {
		return nil, err
	}
	return idsOf(pairing.Pending), nil
}

func (m *Migrator) pairing(ctx context.Context) (Pairing, error) {
	repo := m.history
	if m.db != nil {
		repo = repo.WithConnection(m.db)
	}
	rows, err := repo.GetAppliedMigrations(ctx)
	if err != nil {
		return Pairing{}, err
	}
	return PairMigrations(m.assembly.Migrations(), rows)
}

func idsOf(migrations []*migration.Migration) []string {
	ids := make([]string, len(migrations))
	for i, mig := range migrations {
		ids[i] = mig.ID
	}
	return ids
}
