package sqlgen

import (
	"testing"

	"github.com/google/uuid"
)

func TestDelimitQualified(t *testing.T) {
	tests := []struct {
		dialect Dialect
		name    string
		schema  string
		want    string
	}{
		{Postgres, "Products", "", `"Products"`},
		{Postgres, `we"ird`, "app", `"app"."we""ird"`},
		{SQLServer, "Products", "dbo", "[dbo].[Products]"},
		{SQLServer, "a]b", "", "[a]]b]"},
		{SQLite, "Products", "ignored", `"Products"`},
		{MySQL, "Products", "shop", "`shop`.`Products`"},
	}

	for _, tt := range tests {
		t.Run(string(tt.dialect)+"/"+tt.name, func(t *testing.T) {
			got := MustNew(tt.dialect).DelimitQualified(tt.name, tt.schema)
			if got != tt.want {
				t.Errorf("DelimitQualified(%q, %q) = %s, want %s", tt.name, tt.schema, got, tt.want)
			}
		})
	}
}

func TestGenerateLiteral(t *testing.T) {
	id := uuid.MustParse("6ba7b810-9dad-11d1-80b4-00c04fd430c8")

	tests := []struct {
		dialect Dialect
		value   any
		want    string
	}{
		{Postgres, nil, "NULL"},
		{Postgres, "it's", "'it''s'"},
		{Postgres, true, "TRUE"},
		{Postgres, []byte{0xde, 0xad}, `'\xDEAD'::bytea`},
		{Postgres, id, "'6ba7b810-9dad-11d1-80b4-00c04fd430c8'"},
		{SQLServer, "it's", "N'it''s'"},
		{SQLServer, false, "CAST(0 AS bit)"},
		{SQLServer, []byte{0x01}, "0x01"},
		{SQLite, true, "1"},
		{SQLite, []byte{0xab}, "X'AB'"},
		{MySQL, `a\b`, `'a\\b'`},
		{MySQL, 42, "42"},
		{Postgres, 1.5, "1.5"},
		{Postgres, float64(3), "3.0"},
		{Postgres, int64(-7), "-7"},
	}

	for _, tt := range tests {
		got := MustNew(tt.dialect).GenerateLiteral(tt.value)
		if got != tt.want {
			t.Errorf("%s: GenerateLiteral(%#v) = %s, want %s", tt.dialect, tt.value, got, tt.want)
		}
	}
}

func TestGenerateParameterName(t *testing.T) {
	if got := MustNew(Postgres).GenerateParameterName("p0", 3); got != "$3" {
		t.Errorf("postgres placeholder = %s, want $3", got)
	}
	if got := MustNew(SQLServer).GenerateParameterName("p0", 3); got != "@p0" {
		t.Errorf("sqlserver placeholder = %s, want @p0", got)
	}
	if got := MustNew(MySQL).GenerateParameterName("p0", 3); got != "?" {
		t.Errorf("mysql placeholder = %s, want ?", got)
	}
}

func TestParseDialect(t *testing.T) {
	for in, want := range map[string]Dialect{"PostgreSQL": Postgres, "mssql": SQLServer, "sqlite3": SQLite, "MariaDB": MySQL} {
		got, err := ParseDialect(in)
		if err != nil || got != want {
			t.Errorf("ParseDialect(%q) = %s, %v; want %s", in, got, err, want)
		}
	}
	if _, err := ParseDialect("oracle"); err == nil {
		t.Error("expected an error for an unsupported dialect")
	}
}
