package sqlgen

import (
	"strconv"
	"strings"

	"github.com/lib/pq"
)

type postgresHelper struct{}

var postgresBase = base{
	stringLit:  pq.QuoteLiteral,
	boolLit:    func(b bool) string { return strings.ToUpper(strconv.FormatBool(b)) },
	bytesLit:   hexBytes(`'\x`, `'::bytea`),
	timeFormat: "2006-01-02 15:04:05.999999Z07:00",
}

func (postgresHelper) Dialect() Dialect { return Postgres }
func (postgresHelper) DelimitIdentifier(n string) string { return pq.QuoteIdentifier(n) }
func (postgresHelper) DelimitQualified(n, s string) string {
	return qualify(pq.QuoteIdentifier, n, s)
}
func (postgresHelper) EscapeLiteral(s string) string { return strings.ReplaceAll(s, "'", "''") }
func (postgresHelper) GenerateLiteral(v any) string { return postgresBase.literal(v) }
func (postgresHelper) GenerateParameterName(_ string, ordinal int) string {
	return "$" + strconv.Itoa(ordinal)
}
func (postgresHelper) NamedParameters() bool { return false }
func (postgresHelper) StatementTerminator() string { return ";" }
func (postgresHelper) BatchTerminator() string { return "" }

type sqlServerHelper struct{}

var sqlServerQuote = quoteWith("[", "]")

var sqlServerBase = base{
	stringLit:  func(s string) string { return "N" + singleQuoted(s) },
	boolLit:    func(b bool) string { return map[bool]string{true: "CAST(1 AS bit)", false: "CAST(0 AS bit)"}[b] },
	bytesLit:   hexBytes("0x", ""),
	timeFormat: "2006-01-02T15:04:05.9999999",
}

func (sqlServerHelper) Dialect() Dialect { return SQLServer }
func (sqlServerHelper) DelimitIdentifier(n string) string { return sqlServerQuote(n) }
func (sqlServerHelper) DelimitQualified(n, s string) string {
	return qualify(sqlServerQuote, n, s)
}
func (sqlServerHelper) EscapeLiteral(s string) string { return strings.ReplaceAll(s, "'", "''") }
func (sqlServerHelper) GenerateLiteral(v any) string { return sqlServerBase.literal(v) }
func (sqlServerHelper) GenerateParameterName(name string, _ int) string {
	return "@" + name
}
func (sqlServerHelper) NamedParameters() bool { return true }
func (sqlServerHelper) StatementTerminator() string { return ";" }
func (sqlServerHelper) BatchTerminator() string { return "GO" }

type sqliteHelper struct{}

var sqliteQuote = quoteWith(`"`, `"`)

var sqliteBase = base{
	stringLit:  singleQuoted,
	boolLit:    func(b bool) string { return map[bool]string{true: "1", false: "0"}[b] },
	bytesLit:   hexBytes("X'", "'"),
	timeFormat: "2006-01-02 15:04:05.999999999",
}

func (sqliteHelper) Dialect() Dialect { return SQLite }
func (sqliteHelper) DelimitIdentifier(n string) string { return sqliteQuote(n) }

// SQLite has no schemas; the schema is dropped.
func (sqliteHelper) DelimitQualified(n, _ string) string { return sqliteQuote(n) }
func (sqliteHelper) EscapeLiteral(s string) string { return strings.ReplaceAll(s, "'", "''") }
func (sqliteHelper) GenerateLiteral(v any) string { return sqliteBase.literal(v) }
func (sqliteHelper) GenerateParameterName(name string, _ int) string {
	return "@" + name
}
func (sqliteHelper) NamedParameters() bool { return true }
func (sqliteHelper) StatementTerminator() string { return ";" }
func (sqliteHelper) BatchTerminator() string { return "" }

type mysqlHelper struct{}

var mysqlQuote = quoteWith("`", "`")

var mysqlBase = base{
	stringLit: func(s string) string {
		return "'" + strings.NewReplacer(`\`, `\\`, "'", "''").Replace(s) + "'"
	},
	boolLit:    func(b bool) string { return strings.ToUpper(strconv.FormatBool(b)) },
	bytesLit:   hexBytes("X'", "'"),
	timeFormat: "2006-01-02 15:04:05.999999",
}

func (mysqlHelper) Dialect() Dialect { return MySQL }
func (mysqlHelper) DelimitIdentifier(n string) string { return mysqlQuote(n) }
func (mysqlHelper) DelimitQualified(n, s string) string {
	return qualify(mysqlQuote, n, s)
}
func (mysqlHelper) EscapeLiteral(s string) string {
	return strings.NewReplacer(`\`, `\\`, "'", "''").Replace(s)
}
func (mysqlHelper) GenerateLiteral(v any) string { return mysqlBase.literal(v) }
func (mysqlHelper) GenerateParameterName(string, int) string {
	return "?"
}
func (mysqlHelper) NamedParameters() bool { return false }
func (mysqlHelper) StatementTerminator() string { return ";" }
func (mysqlHelper) BatchTerminator() string { return "" }
