// Package sqlgen provides the dialect-specific primitives used when
// generating SQL text: identifier delimiting, literal formatting, parameter
// naming and statement terminators.
package sqlgen

import (
	"encoding/hex"
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
)

// Dialect names a supported database engine.
type Dialect string

const (
	Postgres  Dialect = "postgres"
	SQLServer Dialect = "sqlserver"
	SQLite    Dialect = "sqlite"
	MySQL     Dialect = "mysql"
)

// Dialects lists the supported dialects.
var Dialects = []Dialect{Postgres, SQLServer, SQLite, MySQL}

// ParseDialect resolves a dialect name, accepting a few common aliases.
func ParseDialect(name string) (Dialect, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "postgres", "postgresql", "pg", "pgx":
		return Postgres, nil
	case "sqlserver", "mssql":
		return SQLServer, nil
	case "sqlite", "sqlite3":
		return SQLite, nil
	case "mysql", "mariadb":
		return MySQL, nil
	}
	return "", fmt.Errorf("unsupported dialect %q (supported: postgres, sqlserver, sqlite, mysql)", name)
}

// Helper is the dialect plug-in consumed by the DDL, history and query generators.
type Helper interface {
	Dialect() Dialect

	// DelimitIdentifier quotes a single identifier.
	DelimitIdentifier(name string) string

	// DelimitQualified quotes a possibly schema-qualified name.
	DelimitQualified(name, schema string) string

	// EscapeLiteral escapes a string for use inside a quoted literal.
	EscapeLiteral(s string) string

	// GenerateLiteral renders v as a SQL literal.
	GenerateLiteral(v any) string

	// GenerateParameterName returns the placeholder for the parameter with
	// the given name and 1-based ordinal.
	GenerateParameterName(name string, ordinal int) string

	// NamedParameters reports whether placeholders bind by name.
	NamedParameters() bool

	StatementTerminator() string

	// BatchTerminator separates batches in generated scripts.
	BatchTerminator() string
}

// New returns the helper for a dialect.
func New(d Dialect) (Helper, error) {
	switch d {
	case Postgres:
		return postgresHelper{}, nil
	case SQLServer:
		return sqlServerHelper{}, nil
	case SQLite:
		return sqliteHelper{}, nil
	case MySQL:
		return mysqlHelper{}, nil
	}
	return nil, fmt.Errorf("unsupported dialect %q", d)
}

// MustNew is like New but panics on an unknown dialect.
func MustNew(d Dialect) Helper {
	h, err := New(d)
	if err != nil {
		panic(err)
	}
	return h
}

// base carries the literal formatting shared by all dialects. Dialects
// override the parts that differ through the hooks.
type base struct {
	stringLit  func(string) string
	boolLit    func(bool) string
	bytesLit   func([]byte) string
	timeFormat string
}

func (b base) literal(v any) string {
	switch v := v.(type) {
	case nil:
		return "NULL"
	case string:
		return b.stringLit(v)
	case bool:
		return b.boolLit(v)
	case int:
		return strconv.Itoa(v)
	case int8:
		return strconv.FormatInt(int64(v), 10)
	case int16:
		return strconv.FormatInt(int64(v), 10)
	case int32:
		return strconv.FormatInt(int64(v), 10)
	case int64:
		return strconv.FormatInt(v, 10)
	case uint:
		return strconv.FormatUint(uint64(v), 10)
	case uint8:
		return strconv.FormatUint(uint64(v), 10)
	case uint16:
		return strconv.FormatUint(uint64(v), 10)
	case uint32:
		return strconv.FormatUint(uint64(v), 10)
	case uint64:
		return strconv.FormatUint(v, 10)
	case float32:
		return formatFloat(float64(v), 32)
	case float64:
		return formatFloat(v, 64)
	case []byte:
		return b.bytesLit(v)
	case time.Time:
		return b.stringLit(v.Format(b.timeFormat))
	case uuid.UUID:
		return b.stringLit(v.String())
	case fmt.Stringer:
		return b.stringLit(v.String())
	}
	return b.stringLit(fmt.Sprint(v))
}

func formatFloat(f float64, bits int) string {
	if math.IsInf(f, 0) || math.IsNaN(f) {
		return "'" + strconv.FormatFloat(f, 'g', -1, bits) + "'"
	}
	s := strconv.FormatFloat(f, 'g', -1, bits)
	if !strings.ContainsAny(s, ".eE") {
		s += ".0"
	}
	return s
}

func quoteWith(open, close string) func(string) string {
	return func(name string) string {
		return open + strings.ReplaceAll(name, close, close+close) + close
	}
}

func singleQuoted(s string) string {
	return "'" + strings.ReplaceAll(s, "'", "''") + "'"
}

func hexBytes(prefix, suffix string) func([]byte) string {
	return func(b []byte) string {
		return prefix + strings.ToUpper(hex.EncodeToString(b)) + suffix
	}
}

func qualify(quote func(string) string, name, schema string) string {
	if schema == "" {
		return quote(name)
	}
	return quote(schema) + "." + quote(name)
}
