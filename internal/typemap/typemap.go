// Package typemap resolves the store type of a column from its CLR type and
// facets for each supported dialect.
package typemap

import (
	"fmt"
	"strings"

	"github.com/pgschema/relmig/internal/sqlgen"
	"github.com/pgschema/relmig/model"
)

// Facets are the column attributes that influence the default store type.
type Facets struct {
	MaxLength  *int
	Unicode    *bool
	RowVersion bool
	// Key is set for columns taking part in a key, foreign key or index;
	// some dialects cannot index unbounded types.
	Key bool
}

// Mapper maps CLR types to store types.
type Mapper interface {
	Dialect() sqlgen.Dialect

	// FindMapping returns the default store type for a CLR type.
	FindMapping(t model.ClrType, f Facets) (string, error)
}

// New returns the mapper for a dialect.
func New(d sqlgen.Dialect) (Mapper, error) {
	switch d {
	case sqlgen.Postgres:
		return postgresMapper{}, nil
	case sqlgen.SQLServer:
		return sqlServerMapper{}, nil
	case sqlgen.SQLite:
		return sqliteMapper{}, nil
	case sqlgen.MySQL:
		return mysqlMapper{}, nil
	}
	return nil, fmt.Errorf("unsupported dialect %q", d)
}

// MustNew is like New but panics on an unknown dialect.
func MustNew(d sqlgen.Dialect) Mapper {
	m, err := New(d)
	if err != nil {
		panic(err)
	}
	return m
}

// StoreType resolves the store type of a property of table t: an explicit
// store type wins, otherwise the dialect default for its CLR type and facets.
func StoreType(m Mapper, t *model.Table, p *model.Property) (string, error) {
	if p.StoreType != "" {
		return p.StoreType, nil
	}
	return m.FindMapping(p.Type, FacetsOf(t, p))
}

// FacetsOf collects the facets of a property.
func FacetsOf(t *model.Table, p *model.Property) Facets {
	f := Facets{MaxLength: p.MaxLength, Unicode: p.Unicode, RowVersion: p.RowVersion}
	if t != nil {
		f.Key = t.IsKeyColumn(p)
	}
	return f
}

// UnsupportedTypeError reports a CLR type without a mapping in a dialect.
type UnsupportedTypeError struct {
	Dialect sqlgen.Dialect
	Type    model.ClrType
}

func (e *UnsupportedTypeError) Error() string {
	return fmt.Sprintf("no %s store type mapping for %q", e.Dialect, e.Type)
}

func unicode(f Facets) bool {
	return f.Unicode == nil || *f.Unicode
}

type postgresMapper struct{}

func (postgresMapper) Dialect() sqlgen.Dialect { return sqlgen.Postgres }

func (postgresMapper) FindMapping(t model.ClrType, f Facets) (string, error) {
	switch t {
	case model.TypeString:
		if f.MaxLength != nil {
			return fmt.Sprintf("character varying(%d)", *f.MaxLength), nil
		}
		return "text", nil
	case model.TypeInt16:
		return "smallint", nil
	case model.TypeInt32:
		return "integer", nil
	case model.TypeInt64:
		return "bigint", nil
	case model.TypeBool:
		return "boolean", nil
	case model.TypeDecimal:
		return "numeric", nil
	case model.TypeFloat32:
		return "real", nil
	case model.TypeFloat64:
		return "double precision", nil
	case model.TypeDateTime:
		return "timestamp without time zone", nil
	case model.TypeDateTimeOffset:
		return "timestamp with time zone", nil
	case model.TypeBytes:
		if f.RowVersion {
			return "xid", nil
		}
		return "bytea", nil
	case model.TypeUUID:
		return "uuid", nil
	}
	return "", &UnsupportedTypeError{Dialect: sqlgen.Postgres, Type: t}
}

type sqlServerMapper struct{}

func (sqlServerMapper) Dialect() sqlgen.Dialect { return sqlgen.SQLServer }

func (sqlServerMapper) FindMapping(t model.ClrType, f Facets) (string, error) {
	switch t {
	case model.TypeString:
		prefix := "nvarchar"
		if !unicode(f) {
			prefix = "varchar"
		}
		switch {
		case f.MaxLength != nil:
			return fmt.Sprintf("%s(%d)", prefix, *f.MaxLength), nil
		case f.Key && unicode(f):
			return "nvarchar(450)", nil
		case f.Key:
			return "varchar(900)", nil
		}
		return prefix + "(max)", nil
	case model.TypeInt16:
		return "smallint", nil
	case model.TypeInt32:
		return "int", nil
	case model.TypeInt64:
		return "bigint", nil
	case model.TypeBool:
		return "bit", nil
	case model.TypeDecimal:
		return "decimal(18,2)", nil
	case model.TypeFloat32:
		return "real", nil
	case model.TypeFloat64:
		return "float", nil
	case model.TypeDateTime:
		return "datetime2", nil
	case model.TypeDateTimeOffset:
		return "datetimeoffset", nil
	case model.TypeBytes:
		switch {
		case f.RowVersion:
			return "rowversion", nil
		case f.MaxLength != nil:
			return fmt.Sprintf("varbinary(%d)", *f.MaxLength), nil
		case f.Key:
			return "varbinary(900)", nil
		}
		return "varbinary(max)", nil
	case model.TypeUUID:
		return "uniqueidentifier", nil
	}
	return "", &UnsupportedTypeError{Dialect: sqlgen.SQLServer, Type: t}
}

type sqliteMapper struct{}

func (sqliteMapper) Dialect() sqlgen.Dialect { return sqlgen.SQLite }

func (sqliteMapper) FindMapping(t model.ClrType, _ Facets) (string, error) {
	switch t {
	case model.TypeString, model.TypeDecimal, model.TypeDateTime, model.TypeDateTimeOffset, model.TypeUUID:
		return "TEXT", nil
	case model.TypeInt16, model.TypeInt32, model.TypeInt64, model.TypeBool:
		return "INTEGER", nil
	case model.TypeFloat32, model.TypeFloat64:
		return "REAL", nil
	case model.TypeBytes:
		return "BLOB", nil
	}
	return "", &UnsupportedTypeError{Dialect: sqlgen.SQLite, Type: t}
}

type mysqlMapper struct{}

func (mysqlMapper) Dialect() sqlgen.Dialect { return sqlgen.MySQL }

func (mysqlMapper) FindMapping(t model.ClrType, f Facets) (string, error) {
	switch t {
	case model.TypeString:
		switch {
		case f.MaxLength != nil:
			return fmt.Sprintf("varchar(%d)", *f.MaxLength), nil
		case f.Key:
			return "varchar(255)", nil
		}
		return "longtext", nil
	case model.TypeInt16:
		return "smallint", nil
	case model.TypeInt32:
		return "int", nil
	case model.TypeInt64:
		return "bigint", nil
	case model.TypeBool:
		return "tinyint(1)", nil
	case model.TypeDecimal:
		return "decimal(65,30)", nil
	case model.TypeFloat32:
		return "float", nil
	case model.TypeFloat64:
		return "double", nil
	case model.TypeDateTime, model.TypeDateTimeOffset:
		return "datetime(6)", nil
	case model.TypeBytes:
		switch {
		case f.RowVersion:
			return "timestamp(6)", nil
		case f.MaxLength != nil:
			return fmt.Sprintf("varbinary(%d)", *f.MaxLength), nil
		case f.Key:
			return "varbinary(767)", nil
		}
		return "longblob", nil
	case model.TypeUUID:
		return "char(36)", nil
	}
	return "", &UnsupportedTypeError{Dialect: sqlgen.MySQL, Type: t}
}

// Normalize lowercases a store type and collapses whitespace so that
// equivalent spellings compare equal.
func Normalize(storeType string) string {
	return strings.Join(strings.Fields(strings.ToLower(storeType)), " ")
}
