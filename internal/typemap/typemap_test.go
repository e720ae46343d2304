package typemap

import (
	"errors"
	"testing"

	"github.com/pgschema/relmig/internal/sqlgen"
	"github.com/pgschema/relmig/model"
)

func TestFindMapping(t *testing.T) {
	fifty := 50
	ascii := false

	tests := []struct {
		dialect sqlgen.Dialect
		clr     model.ClrType
		facets  Facets
		want    string
	}{
		{sqlgen.Postgres, model.TypeString, Facets{}, "text"},
		{sqlgen.Postgres, model.TypeString, Facets{MaxLength: &fifty}, "character varying(50)"},
		{sqlgen.Postgres, model.TypeDateTimeOffset, Facets{}, "timestamp with time zone"},
		{sqlgen.SQLServer, model.TypeString, Facets{}, "nvarchar(max)"},
		{sqlgen.SQLServer, model.TypeString, Facets{Key: true}, "nvarchar(450)"},
		{sqlgen.SQLServer, model.TypeString, Facets{Unicode: &ascii, MaxLength: &fifty}, "varchar(50)"},
		{sqlgen.SQLServer, model.TypeBytes, Facets{RowVersion: true}, "rowversion"},
		{sqlgen.SQLServer, model.TypeBool, Facets{}, "bit"},
		{sqlgen.SQLite, model.TypeBool, Facets{}, "INTEGER"},
		{sqlgen.SQLite, model.TypeUUID, Facets{}, "TEXT"},
		{sqlgen.MySQL, model.TypeString, Facets{Key: true}, "varchar(255)"},
		{sqlgen.MySQL, model.TypeUUID, Facets{}, "char(36)"},
	}

	for _, tt := range tests {
		got, err := MustNew(tt.dialect).FindMapping(tt.clr, tt.facets)
		if err != nil {
			t.Fatalf("%s/%s: unexpected error: %v", tt.dialect, tt.clr, err)
		}
		if got != tt.want {
			t.Errorf("%s/%s: got %q, want %q", tt.dialect, tt.clr, got, tt.want)
		}
	}
}

func TestFindMappingUnsupported(t *testing.T) {
	_, err := MustNew(sqlgen.Postgres).FindMapping("money", Facets{})
	var unsupported *UnsupportedTypeError
	if !errors.As(err, &unsupported) {
		t.Fatalf("expected UnsupportedTypeError, got %v", err)
	}
}

func TestStoreTypePrefersExplicitType(t *testing.T) {
	p := &model.Property{Name: "Price", Type: model.TypeDecimal, StoreType: "numeric(10,2)"}
	got, err := StoreType(MustNew(sqlgen.Postgres), nil, p)
	if err != nil || got != "numeric(10,2)" {
		t.Fatalf("StoreType = %q, %v; want numeric(10,2)", got, err)
	}
}

func TestNormalize(t *testing.T) {
	if Normalize("Character  Varying(50)") != Normalize("character varying(50)") {
		t.Error("expected case and whitespace differences to normalize away")
	}
}
