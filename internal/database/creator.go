package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"io/fs"
	"os"

	"github.com/pgschema/relmig/internal/command"
	"github.com/pgschema/relmig/internal/logger"
	"github.com/pgschema/relmig/internal/sqlgen"
)

// Creator checks for and creates the database a connection targets.
type Creator interface {
	Exists(ctx context.Context) (bool, error)
	Create(ctx context.Context) error
}

// NewCreator returns the creator for the configured dialect.
func NewCreator(config *ConnectionConfig) (Creator, error) {
	switch config.Dialect {
	case sqlgen.SQLite:
		return sqliteCreator{path: config.Database}, nil
	case sqlgen.Postgres:
		return &serverCreator{
			config:      config,
			maintenance: "postgres",
			exists:      "SELECT EXISTS (SELECT 1 FROM pg_catalog.pg_database WHERE datname = ",
			existsEnd:   ")",
		}, nil
	case sqlgen.SQLServer:
		return &serverCreator{
			config:      config,
			maintenance: "master",
			exists:      "SELECT CASE WHEN DB_ID(",
			existsEnd:   ") IS NULL THEN 0 ELSE 1 END",
		}, nil
	case sqlgen.MySQL:
		return &serverCreator{
			config:      config,
			maintenance: "",
			exists:      "SELECT COUNT(*) FROM information_schema.SCHEMATA WHERE SCHEMA_NAME = ",
			existsEnd:   "",
		}, nil
	}
	return nil, fmt.Errorf("unsupported dialect %q", config.Dialect)
}

// serverCreator talks to a maintenance database on the same server, since
// the target database cannot be connected to before it exists.
type serverCreator struct {
	config      *ConnectionConfig
	maintenance string
	exists      string
	existsEnd   string
}

func (c *serverCreator) Exists(ctx context.Context) (bool, error) {
	db, err := c.open(ctx)
	if err != nil {
		return false, err
	}
	defer db.Close()

	b := command.NewBuilder(sqlgen.MustNew(c.config.Dialect))
	b.Append(c.exists).Append(b.AddParameter("name", c.config.Database)).Append(c.existsEnd)
	v, err := b.Build().ExecuteScalar(ctx, db)
	if err != nil {
		return false, fmt.Errorf("failed to check whether database %s exists: %w", c.config.Database, err)
	}
	return Truthy(v), nil
}

func (c *serverCreator) Create(ctx context.Context) error {
	db, err := c.open(ctx)
	if err != nil {
		return err
	}
	defer db.Close()

	helper := sqlgen.MustNew(c.config.Dialect)
	logger.Get().Info("Creating database", "database", c.config.Database)
	b := command.NewBuilder(helper).Append("CREATE DATABASE ").Append(helper.DelimitIdentifier(c.config.Database))
	if _, err := b.Build().ExecuteNonQuery(ctx, db); err != nil {
		return fmt.Errorf("failed to create database %s: %w", c.config.Database, err)
	}
	return nil
}

func (c *serverCreator) open(ctx context.Context) (*sql.DB, error) {
	maintenance := *c.config
	maintenance.Database = c.maintenance
	return Connect(ctx, &maintenance)
}

type sqliteCreator struct {
	path string
}

func (c sqliteCreator) Exists(context.Context) (bool, error) {
	if c.path == "" || c.path == ":memory:" {
		return true, nil
	}
	_, err := os.Stat(c.path)
	switch {
	case err == nil:
		return true, nil
	case errors.Is(err, fs.ErrNotExist):
		return false, nil
	}
	return false, fmt.Errorf("failed to check database file: %w", err)
}

func (c sqliteCreator) Create(context.Context) error {
	logger.Get().Info("Creating database", "database", c.path)
	f, err := os.OpenFile(c.path, os.O_CREATE|os.O_RDWR, 0o644)
	if err != nil {
		return fmt.Errorf("failed to create database file: %w", err)
	}
	return f.Close()
}

// Truthy interprets a scalar returned by an existence query. Drivers
// return booleans, integers or their text form depending on the dialect.
func Truthy(v any) bool {
	switch v := v.(type) {
	case nil:
		return false
	case bool:
		return v
	case int64:
		return v != 0
	case int32:
		return v != 0
	case int:
		return v != 0
	case []byte:
		s := string(v)
		return s != "" && s != "0" && s != "false" && s != "f"
	case string:
		return v != "" && v != "0" && v != "false" && v != "f"
	}
	return true
}
