// Package tools is the entry contract of the command line: one method per
// tooling operation, each reporting through a ResultHandler instead of
// returning to the caller for presentation.
package tools

import (
	"context"
	"errors"
	"fmt"
	"runtime/debug"
	"slices"
	"time"

	"github.com/pgschema/relmig/internal/command"
	"github.com/pgschema/relmig/internal/database"
	"github.com/pgschema/relmig/internal/ddl"
	"github.com/pgschema/relmig/internal/differ"
	"github.com/pgschema/relmig/internal/fingerprint"
	"github.com/pgschema/relmig/internal/history"
	"github.com/pgschema/relmig/internal/logger"
	"github.com/pgschema/relmig/internal/migration"
	"github.com/pgschema/relmig/internal/migrator"
	"github.com/pgschema/relmig/internal/operations"
	"github.com/pgschema/relmig/internal/sqlgen"
	"github.com/pgschema/relmig/model"
)

// OperationErrorKind is the kind reported for errors meant to be shown to
// the user without diagnostics.
const OperationErrorKind = "OperationError"

var (
	ErrNoMigrations     = errors.New("there are no migrations")
	ErrMigrationApplied = errors.New("migration has already been applied to the database")
	ErrNameInUse        = errors.New("migration name is already in use")
	ErrNoModel          = errors.New("no model file configured")
	ErrNoConnection     = errors.New("no database connection configured")
)

// ResultHandler receives the outcome of one operation. Exactly one of the
// methods is called per operation.
type ResultHandler interface {
	OnResult(value any)
	OnError(kind, message, stack string)
}

// Options configure an Executor. Connection may be nil for operations that
// do not touch the database.
type Options struct {
	Dialect        sqlgen.Dialect
	Connection     *database.ConnectionConfig
	MigrationsDir  string
	ModelPath      string
	History        history.Options
	ProductVersion string
	Verbose        bool
	// Now stamps new migration ids. Defaults to time.Now.
	Now func() time.Time
}

// Executor runs tooling operations.
type Executor struct {
	opts    Options
	handler ResultHandler
	gen     *ddl.Generator
	differ  *differ.Differ
}

// AddMigrationResult describes a scaffolded migration.
type AddMigrationResult struct {
	ID         string
	Path       string
	Operations int
}

// MigrationInfo is one entry of GetMigrations.
type MigrationInfo struct {
	ID      string
	Name    string
	Applied bool
}

// RemoveMigrationResult names the removed migration.
type RemoveMigrationResult struct {
	ID       string
	Reverted bool
}

// NewExecutor returns an executor reporting to handler.
func NewExecutor(opts Options, handler ResultHandler) (*Executor, error) {
	gen, err := ddl.ForDialect(opts.Dialect)
	if err != nil {
		return nil, err
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	return &Executor{
		opts:    opts,
		handler: handler,
		gen:     gen,
		differ:  differ.New(gen.Mapper()),
	}, nil
}

// AddMigration scaffolds a migration from the difference between the newest
// migration's model snapshot and the current model.
func (e *Executor) AddMigration(ctx context.Context, name string) error {
	return e.execute(func() (any, error) {
		assembly, err := migration.LoadDir(ctx, e.opts.MigrationsDir)
		if err != nil {
			return nil, err
		}
		current, err := e.loadModel()
		if err != nil {
			return nil, err
		}

		normalized, err := migration.NormalizeName(name)
		if err != nil {
			return nil, migration.NewOperationError(err)
		}
		if _, err := assembly.FindMigrationID(normalized); err == nil {
			return nil, migration.NewOperationError(fmt.Errorf("%w: %s", ErrNameInUse, normalized))
		}

		id, err := e.nextID(assembly, normalized)
		if err != nil {
			return nil, migration.NewOperationError(err)
		}

		previous := assembly.ModelSnapshot()
		up := e.differ.GetDifferences(previous, current)
		mig := &migration.Migration{
			ID:             id,
			ProductVersion: e.opts.ProductVersion,
			Up:             operations.List(up),
			Down:           operations.List(e.differ.GetDifferences(current, previous)),
			TargetModel:    current,
		}
		path, err := migration.WriteFile(e.opts.MigrationsDir, mig)
		if err != nil {
			return nil, err
		}
		if len(up) == 0 {
			logger.Get().Warn("Migration has no operations; the model has not changed", "migration", id)
		}
		logger.Get().Info("Added migration", "migration", id, "path", path)
		return &AddMigrationResult{ID: id, Path: path, Operations: len(up)}, nil
	})
}

// nextID stamps a new id that sorts after every existing migration.
func (e *Executor) nextID(assembly *migration.Assembly, name string) (string, error) {
	now := e.opts.Now()
	for {
		id, err := migration.GenerateID(name, now)
		if err != nil {
			return "", err
		}
		last := assembly.Last()
		if last == nil || id > last.ID {
			return id, nil
		}
		now = now.Add(time.Second)
	}
}

// UpdateDatabase migrates the database to target, which may be empty for
// the newest migration or "0" to revert everything.
func (e *Executor) UpdateDatabase(ctx context.Context, target string) error {
	return e.execute(func() (any, error) {
		m, closeDB, err := e.migrator(ctx, true)
		if err != nil {
			return nil, err
		}
		defer closeDB()
		return nil, m.Migrate(ctx, target)
	})
}

// ScriptMigration generates the SQL moving a database from one migration to
// another.
func (e *Executor) ScriptMigration(ctx context.Context, from, to string) error {
	return e.execute(func() (any, error) {
		m, closeDB, err := e.migrator(ctx, false)
		if err != nil {
			return nil, err
		}
		defer closeDB()
		return m.GenerateScript(from, to)
	})
}

// RemoveMigration deletes the newest migration file. An applied migration
// is only removed with force, after reverting it.
func (e *Executor) RemoveMigration(ctx context.Context, force bool) error {
	return e.execute(func() (any, error) {
		m, closeDB, err := e.migrator(ctx, e.opts.Connection != nil)
		if err != nil {
			return nil, err
		}
		defer closeDB()

		last := m.Assembly().Last()
		if last == nil {
			return nil, migration.NewOperationError(ErrNoMigrations)
		}

		result := &RemoveMigrationResult{ID: last.ID}
		if e.opts.Connection != nil {
			applied, err := m.GetAppliedMigrations(ctx)
			if err != nil {
				return nil, err
			}
			if slices.Contains(applied, last.ID) {
				if !force {
					return nil, migration.NewOperationError(fmt.Errorf("%w: %s; revert it and try again", ErrMigrationApplied, last.ID))
				}
				target := migration.InitialDatabase
				if n := m.Assembly().Len(); n > 1 {
					target = m.Assembly().Migrations()[n-2].ID
				}
				if err := m.Migrate(ctx, target); err != nil {
					return nil, err
				}
				result.Reverted = true
			}
		}

		if err := migration.RemoveFile(e.opts.MigrationsDir, last.ID); err != nil {
			return nil, err
		}
		logger.Get().Info("Removed migration", "migration", last.ID)
		return result, nil
	})
}

// GetMigrations lists local migrations. Without a connection every
// migration is reported as not applied.
func (e *Executor) GetMigrations(ctx context.Context) error {
	return e.execute(func() (any, error) {
		m, closeDB, err := e.migrator(ctx, e.opts.Connection != nil)
		if err != nil {
			return nil, err
		}
		defer closeDB()

		var applied []string
		if e.opts.Connection != nil {
			if applied, err = m.GetAppliedMigrations(ctx); err != nil {
				return nil, err
			}
		} else {
			logger.Get().Debug("No connection configured; listing local migrations only")
		}

		migrations := m.Assembly().Migrations()
		infos := make([]MigrationInfo, len(migrations))
		for i, mig := range migrations {
			infos[i] = MigrationInfo{ID: mig.ID, Name: mig.Name(), Applied: slices.Contains(applied, mig.ID)}
		}
		return infos, nil
	})
}

// HasPendingModelChanges reports whether the current model differs from the
// newest migration's snapshot.
func (e *Executor) HasPendingModelChanges(ctx context.Context) error {
	return e.execute(func() (any, error) {
		assembly, err := migration.LoadDir(ctx, e.opts.MigrationsDir)
		if err != nil {
			return nil, err
		}
		current, err := e.loadModel()
		if err != nil {
			return nil, err
		}
		snapshot := assembly.ModelSnapshot()

		want, err := fingerprint.ComputeFingerprint(snapshot)
		if err != nil {
			return nil, err
		}
		got, err := fingerprint.ComputeFingerprint(current)
		if err != nil {
			return nil, err
		}
		if fingerprint.Compare(want, got) == nil {
			return false, nil
		}
		return e.differ.HasDifferences(snapshot, current), nil
	})
}

func (e *Executor) loadModel() (*model.Model, error) {
	if e.opts.ModelPath == "" {
		return nil, migration.NewOperationError(ErrNoModel)
	}
	m, err := model.Load(e.opts.ModelPath)
	if err != nil {
		return nil, migration.NewOperationError(err)
	}
	return m, nil
}

// migrator wires a migrator over the migrations directory. With connect it
// opens the configured database; the returned func closes it.
func (e *Executor) migrator(ctx context.Context, connect bool) (*migrator.Migrator, func(), error) {
	assembly, err := migration.LoadDir(ctx, e.opts.MigrationsDir)
	if err != nil {
		return nil, nil, err
	}
	cfg := migrator.Config{
		Assembly:       assembly,
		Generator:      e.gen,
		ProductVersion: e.opts.ProductVersion,
	}
	closeDB := func() {}

	if connect {
		if e.opts.Connection == nil {
			return nil, nil, migration.NewOperationError(ErrNoConnection)
		}
		db, err := database.Open(e.opts.Connection)
		if err != nil {
			return nil, nil, err
		}
		creator, err := database.NewCreator(e.opts.Connection)
		if err != nil {
			db.Close()
			return nil, nil, err
		}
		cfg.DB, cfg.Creator = db, creator
		closeDB = func() { db.Close() }
	}

	var q command.Querier
	if cfg.DB != nil {
		q = cfg.DB
	}
	repo, err := history.New(e.gen, q, cfg.Creator, e.opts.History)
	if err != nil {
		closeDB()
		return nil, nil, err
	}
	cfg.History = repo
	return migrator.New(cfg), closeDB, nil
}

// execute runs an operation and reports its outcome. Operation errors are
// reported without a stack unless verbose output is on.
func (e *Executor) execute(op func() (any, error)) error {
	result, err := op()
	if err == nil {
		e.handler.OnResult(result)
		return nil
	}

	var opErr *migration.OperationError
	if errors.As(err, &opErr) {
		stack := ""
		if e.opts.Verbose {
			stack = string(debug.Stack())
		}
		e.handler.OnError(OperationErrorKind, err.Error(), stack)
		return err
	}
	e.handler.OnError(fmt.Sprintf("%T", rootCause(err)), err.Error(), string(debug.Stack()))
	return err
}

func rootCause(err error) error {
	for {
		next := errors.Unwrap(err)
		if next == nil {
			return err
		}
		err = next
	}
}
