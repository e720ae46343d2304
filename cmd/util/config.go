package util

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/pgschema/relmig/internal/database"
	"github.com/pgschema/relmig/internal/history"
	"github.com/pgschema/relmig/internal/sqlgen"
	"github.com/pgschema/relmig/internal/tools"
	"github.com/pgschema/relmig/internal/version"
)

// Config holds the global flags shared by every command.
type Config struct {
	Debug   bool
	NoColor bool

	Dialect  string
	Host     string
	Port     int
	Database string
	User     string
	Password string
	SSLMode  string

	MigrationsDir string
	ModelPath     string
	HistoryTable  string
	HistorySchema string
}

// Global is bound to the root command's persistent flags.
var Global = &Config{}

// BindFlags registers the global flags on cmd.
func (c *Config) BindFlags(cmd *cobra.Command) {
	flags := cmd.PersistentFlags()
	flags.BoolVar(&c.Debug, "debug", false, "Enable debug logging")
	flags.BoolVar(&c.NoColor, "no-color", false, "Disable colored output")
	flags.StringVar(&c.Dialect, "dialect", "postgres", "Database dialect (postgres, sqlserver, sqlite, mysql) (env: RELMIG_DIALECT)")
	flags.StringVar(&c.Host, "host", "localhost", "Database server host (env: PGHOST)")
	flags.IntVar(&c.Port, "port", 0, "Database server port, 0 for the dialect default (env: PGPORT)")
	flags.StringVar(&c.Database, "db", "", "Database name, or file path for sqlite (env: PGDATABASE)")
	flags.StringVar(&c.User, "user", "", "Database user name (env: PGUSER)")
	flags.StringVar(&c.Password, "password", "", "Database password (env: PGPASSWORD)")
	flags.StringVar(&c.SSLMode, "sslmode", "", "SSL mode passed to the driver")
	flags.StringVar(&c.MigrationsDir, "migrations", "migrations", "Directory holding migration files (env: RELMIG_MIGRATIONS)")
	flags.StringVar(&c.ModelPath, "model", "model.yaml", "Model document (env: RELMIG_MODEL)")
	flags.StringVar(&c.HistoryTable, "history-table", history.DefaultTableName, "Migrations history table name")
	flags.StringVar(&c.HistorySchema, "history-schema", "", "Migrations history table schema")
}

// Connection returns the connection configuration, or an error when no
// database is named.
func (c *Config) Connection() (*database.ConnectionConfig, error) {
	dialect, err := sqlgen.ParseDialect(c.Dialect)
	if err != nil {
		return nil, err
	}
	if c.Database == "" {
		return nil, fmt.Errorf("database name is required (use --db flag or PGDATABASE environment variable)")
	}
	return &database.ConnectionConfig{
		Dialect:         dialect,
		Host:            c.Host,
		Port:            c.Port,
		Database:        c.Database,
		User:            c.User,
		Password:        c.Password,
		SSLMode:         c.SSLMode,
		ApplicationName: "relmig",
	}, nil
}

// NewExecutor builds the tooling executor. The database connection is only
// configured when connect is set.
func (c *Config) NewExecutor(handler tools.ResultHandler, connect bool) (*tools.Executor, error) {
	dialect, err := sqlgen.ParseDialect(c.Dialect)
	if err != nil {
		return nil, err
	}
	opts := tools.Options{
		Dialect:        dialect,
		MigrationsDir:  c.MigrationsDir,
		ModelPath:      c.ModelPath,
		History:        history.Options{TableName: c.HistoryTable, Schema: c.HistorySchema},
		ProductVersion: version.ProductVersion(),
		Verbose:        c.Debug,
	}
	if connect {
		if opts.Connection, err = c.Connection(); err != nil {
			return nil, err
		}
	}
	return tools.NewExecutor(opts, handler)
}
