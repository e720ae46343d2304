// Package database opens connections for each supported dialect and creates
// the target database when it does not exist yet.
package database

import (
	"context"
	"database/sql"
	"fmt"
	"net"
	"net/url"
	"strconv"
	"strings"

	"github.com/go-sql-driver/mysql"
	_ "github.com/jackc/pgx/v5/stdlib"
	_ "github.com/microsoft/go-mssqldb"
	_ "modernc.org/sqlite"

	"github.com/pgschema/relmig/internal/logger"
	"github.com/pgschema/relmig/internal/sqlgen"
)

// ConnectionConfig holds database connection parameters
type ConnectionConfig struct {
	Dialect         sqlgen.Dialect
	Host            string
	Port            int
	Database        string
	User            string
	Password        string
	SSLMode         string
	ApplicationName string
}

// DefaultPort returns the conventional server port of a dialect, or 0.
func DefaultPort(d sqlgen.Dialect) int {
	switch d {
	case sqlgen.Postgres:
		return 5432
	case sqlgen.SQLServer:
		return 1433
	case sqlgen.MySQL:
		return 3306
	}
	return 0
}

// DriverName returns the database/sql driver registered for a dialect.
func DriverName(d sqlgen.Dialect) (string, error) {
	switch d {
	case sqlgen.Postgres:
		return "pgx", nil
	case sqlgen.SQLServer:
		return "sqlserver", nil
	case sqlgen.SQLite:
		return "sqlite", nil
	case sqlgen.MySQL:
		return "mysql", nil
	}
	return "", fmt.Errorf("unsupported dialect %q", d)
}

// Connect establishes a database connection using the provided configuration
func Connect(ctx context.Context, config *ConnectionConfig) (*sql.DB, error) {
	log := logger.Get()

	log.Debug("Attempting database connection",
		"dialect", config.Dialect,
		"host", config.Host,
		"port", config.Port,
		"database", config.Database,
		"user", config.User,
		"sslmode", config.SSLMode,
		"application_name", config.ApplicationName,
	)

	driver, err := DriverName(config.Dialect)
	if err != nil {
		return nil, err
	}
	dsn, err := DSN(config)
	if err != nil {
		return nil, err
	}

	conn, err := sql.Open(driver, dsn)
	if err != nil {
		log.Debug("Database connection failed", "error", err)
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	// Test the connection
	if err := conn.PingContext(ctx); err != nil {
		log.Debug("Database ping failed", "error", err)
		conn.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	log.Debug("Database connection established successfully")
	return conn, nil
}

// Open returns a handle without contacting the server. It is used for the
// target database before it is known to exist.
func Open(config *ConnectionConfig) (*sql.DB, error) {
	driver, err := DriverName(config.Dialect)
	if err != nil {
		return nil, err
	}
	dsn, err := DSN(config)
	if err != nil {
		return nil, err
	}
	db, err := sql.Open(driver, dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	return db, nil
}

// DSN builds the driver connection string for the configured dialect.
func DSN(config *ConnectionConfig) (string, error) {
	switch config.Dialect {
	case sqlgen.Postgres:
		return postgresDSN(config), nil
	case sqlgen.SQLServer:
		return sqlServerDSN(config), nil
	case sqlgen.SQLite:
		return sqliteDSN(config), nil
	case sqlgen.MySQL:
		return mysqlDSN(config), nil
	}
	return "", fmt.Errorf("unsupported dialect %q", config.Dialect)
}

// postgresDSN constructs a PostgreSQL connection string from connection parameters
func postgresDSN(config *ConnectionConfig) string {
	var parts []string

	parts = append(parts, fmt.Sprintf("host=%s", config.Host))
	parts = append(parts, fmt.Sprintf("port=%d", portOrDefault(config)))
	parts = append(parts, fmt.Sprintf("dbname=%s", config.Database))
	parts = append(parts, fmt.Sprintf("user=%s", config.User))

	if config.Password != "" {
		parts = append(parts, fmt.Sprintf("password=%s", config.Password))
	}

	if config.SSLMode != "" {
		parts = append(parts, fmt.Sprintf("sslmode=%s", config.SSLMode))
	}

	if config.ApplicationName != "" {
		parts = append(parts, fmt.Sprintf("application_name=%s", config.ApplicationName))
	}

	return strings.Join(parts, " ")
}

func sqlServerDSN(config *ConnectionConfig) string {
	query := url.Values{}
	if config.Database != "" {
		query.Set("database", config.Database)
	}
	if config.ApplicationName != "" {
		query.Set("app name", config.ApplicationName)
	}
	if config.SSLMode == "disable" {
		query.Set("encrypt", "disable")
	}
	u := url.URL{
		Scheme:   "sqlserver",
		User:     url.UserPassword(config.User, config.Password),
		Host:     net.JoinHostPort(config.Host, strconv.Itoa(portOrDefault(config))),
		RawQuery: query.Encode(),
	}
	return u.String()
}

func mysqlDSN(config *ConnectionConfig) string {
	cfg := mysql.NewConfig()
	cfg.User = config.User
	cfg.Passwd = config.Password
	cfg.Net = "tcp"
	cfg.Addr = net.JoinHostPort(config.Host, strconv.Itoa(portOrDefault(config)))
	cfg.DBName = config.Database
	cfg.MultiStatements = true
	cfg.ParseTime = true
	if config.ApplicationName != "" {
		cfg.ConnectionAttributes = "program_name:" + config.ApplicationName
	}
	return cfg.FormatDSN()
}

// sqliteDSN enables foreign key enforcement, which SQLite leaves off per connection.
func sqliteDSN(config *ConnectionConfig) string {
	path := config.Database
	if path == "" || path == ":memory:" {
		return "file::memory:?_pragma=foreign_keys(1)"
	}
	return "file:" + path + "?_pragma=foreign_keys(1)"
}

func portOrDefault(config *ConnectionConfig) int {
	if config.Port != 0 {
		return config.Port
	}
	return DefaultPort(config.Dialect)
}
